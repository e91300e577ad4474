package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/stake-plus/raidparty/src/actions"
	sharedconfig "github.com/stake-plus/raidparty/src/config"
	shareddata "github.com/stake-plus/raidparty/src/data"
	"gorm.io/gorm"
)

func main() {
	configFile := flag.String("config", "", "optional config file layered under the environment")
	flag.Parse()

	if err := sharedconfig.UseFile(*configFile); err != nil {
		log.Fatal().Err(err).Str("file", *configFile).Msg("config: read file")
	}

	base := sharedconfig.LoadBase(nil)

	// One DB connection serves both the settings table and the mysql store.
	var db *gorm.DB
	if base.MySQLDSN != "" {
		conn, err := shareddata.ConnectMySQL(base.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("db: connect")
		}
		db = conn
		base = sharedconfig.LoadBase(db)
	}
	sharedconfig.SetupLogging(base)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := shareddata.OpenStore(ctx, shareddata.OpenOptions{
		Backend:     base.StoreBackend,
		RedisURL:    base.RedisURL,
		RedisPrefix: base.RedisPrefix,
		DB:          db,
	})
	if err != nil {
		log.Fatal().Err(err).Str("backend", base.StoreBackend).Msg("store: open")
	}
	defer closeStore()

	manager, err := actions.StartAll(ctx, db, store)
	if err != nil {
		log.Fatal().Err(err).Msg("actions start")
	}

	// Wait for termination
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	manager.Stop(ctx)
}
