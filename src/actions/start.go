package actions

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/stake-plus/raidparty/src/actions/parties"
	"github.com/stake-plus/raidparty/src/api"
	sharedconfig "github.com/stake-plus/raidparty/src/config"
	"github.com/stake-plus/raidparty/src/data"
	"gorm.io/gorm"
)

// StartAll wires up enabled modules over store and starts the manager.
func StartAll(ctx context.Context, db *gorm.DB, store data.Store) (*Manager, error) {
	mgr := NewManager()

	partyCfg := sharedconfig.LoadPartyConfig(db)
	if !partyCfg.Enabled {
		log.Info().Msg("actions: parties module disabled via configuration")
		if err := mgr.Start(ctx); err != nil {
			return nil, err
		}
		return mgr, nil
	}

	partiesMod, err := parties.NewModule(&partyCfg, store)
	if err != nil {
		return nil, fmt.Errorf("actions: init parties module: %w", err)
	}
	if err := mgr.Add(partiesMod); err != nil {
		return nil, fmt.Errorf("actions: add parties module: %w", err)
	}

	adminCfg := sharedconfig.LoadAdminConfig(db)
	if adminCfg.Enabled {
		mod, err := api.NewModule(&adminCfg, partiesMod.Manager())
		if err != nil {
			return nil, fmt.Errorf("actions: init admin api: %w", err)
		}
		if err := mgr.Add(mod); err != nil {
			return nil, fmt.Errorf("actions: add admin api: %w", err)
		}
	} else {
		log.Info().Msg("actions: admin API disabled via configuration")
	}

	if err := mgr.Start(ctx); err != nil {
		return nil, err
	}
	return mgr, nil
}
