package config

import (
	"time"

	"gorm.io/gorm"
)

// PartyConfig tunes the party engine and its background sweeps.
type PartyConfig struct {
	Base
	// WarningEvery sends a deletion reminder on every Nth message after a
	// deletion has been scheduled.
	WarningEvery int
	// RaidGrace is added to a raid's end time to schedule its deletion.
	RaidGrace time.Duration
	// AnnouncementDeleteDelay is how long a "moved to" notice stays up.
	AnnouncementDeleteDelay time.Duration
	ExpirySweep             string
	ReconcileSweep          string
	RefreshSweep            string
	ModeratorRoleID         string
	Enabled                 bool
}

// LoadPartyConfig loads party engine configuration
func LoadPartyConfig(db *gorm.DB) PartyConfig {
	return PartyConfig{
		Base:                    LoadBase(db),
		WarningEvery:            getIntSetting("party_warning_every", "PARTY_WARNING_EVERY", 5),
		RaidGrace:               getDurationSetting("party_raid_grace", "PARTY_RAID_GRACE", 15*time.Minute),
		AnnouncementDeleteDelay: getDurationSetting("party_announcement_delete_delay", "PARTY_ANNOUNCEMENT_DELETE_DELAY", 10*time.Minute),
		ExpirySweep:             GetSetting("party_expiry_sweep", "PARTY_EXPIRY_SWEEP", "@every 1m"),
		ReconcileSweep:          GetSetting("party_reconcile_sweep", "PARTY_RECONCILE_SWEEP", "@every 15m"),
		RefreshSweep:            GetSetting("party_refresh_sweep", "PARTY_REFRESH_SWEEP", "@every 5m"),
		ModeratorRoleID:         GetSetting("party_moderator_role", "PARTY_MODERATOR_ROLE", ""),
		Enabled:                 getBoolSetting("enable_parties", "ENABLE_PARTIES", true),
	}
}

// AdminConfig holds the admin HTTP API configuration
type AdminConfig struct {
	Enabled      bool
	Listen       string
	JWTSecret    string
	AllowOrigins []string
}

// LoadAdminConfig loads admin API configuration
func LoadAdminConfig(db *gorm.DB) AdminConfig {
	return AdminConfig{
		Enabled:      getBoolSetting("enable_admin_api", "ENABLE_ADMIN_API", false),
		Listen:       GetSetting("admin_listen", "ADMIN_LISTEN", ":8080"),
		JWTSecret:    GetSetting("admin_jwt_secret", "ADMIN_JWT_SECRET", ""),
		AllowOrigins: splitList(GetSetting("admin_allow_origins", "ADMIN_ALLOW_ORIGINS", "http://localhost:3000")),
	}
}
