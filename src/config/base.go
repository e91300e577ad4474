package config

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"github.com/stake-plus/raidparty/src/data"
	"gorm.io/gorm"
)

// Store backends understood by LoadBase.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreMySQL  = "mysql"
)

var (
	env   = newViper()
	envMu sync.Mutex
)

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("RAIDPARTY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// UseFile layers a config file (yaml, toml, json...) under the environment.
func UseFile(path string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if path == "" {
		return nil
	}
	env.SetConfigFile(path)
	return env.ReadInConfig()
}

// Base contains common configuration fields
type Base struct {
	Token        string
	GuildID      string
	StoreBackend string
	RedisURL     string
	RedisPrefix  string
	MySQLDSN     string
	LogLevel     string
	LogFormat    string
}

// LoadBase loads common configuration. db may be nil when the settings table
// is not available yet.
func LoadBase(db *gorm.DB) Base {
	if db != nil {
		if err := data.LoadSettings(db); err != nil {
			log.Warn().Err(err).Msg("config: settings table unavailable, using environment")
		}
	}

	return Base{
		Token:        GetSetting("discord_token", "DISCORD_TOKEN", ""),
		GuildID:      GetSetting("guild_id", "GUILD_ID", ""),
		StoreBackend: strings.ToLower(GetSetting("store_backend", "STORE_BACKEND", StoreRedis)),
		RedisURL:     GetSetting("redis_url", "REDIS_URL", "redis://127.0.0.1:6379/0"),
		RedisPrefix:  GetSetting("redis_prefix", "REDIS_PREFIX", "raidparty"),
		MySQLDSN:     GetSetting("mysql_dsn", "MYSQL_DSN", ""),
		LogLevel:     GetSetting("log_level", "LOG_LEVEL", "info"),
		LogFormat:    GetSetting("log_format", "LOG_FORMAT", "console"),
	}
}

// GetSetting retrieves a setting from the database cache, then the
// environment (envKey, or RAIDPARTY_<NAME>) or config file, then defaultValue.
func GetSetting(name, envKey, defaultValue string) string {
	val := data.GetSetting(name)
	if val == "" {
		if envKey != "" {
			_ = env.BindEnv(name, "RAIDPARTY_"+strings.ToUpper(name), envKey)
		}
		val = env.GetString(name)
	}
	if val == "" {
		val = defaultValue
	}
	return val
}

func getBoolSetting(name, envKey string, defaultValue bool) bool {
	return parseBoolDefault(GetSetting(name, envKey, ""), defaultValue)
}

func getIntSetting(name, envKey string, defaultValue int) int {
	v := GetSetting(name, envKey, "")
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		log.Warn().Str("setting", name).Str("value", v).Msg("config: invalid integer, using default")
		return defaultValue
	}
	return n
}

func getDurationSetting(name, envKey string, defaultValue time.Duration) time.Duration {
	v := GetSetting(name, envKey, "")
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		log.Warn().Str("setting", name).Str("value", v).Msg("config: invalid duration, using default")
		return defaultValue
	}
	return d
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
