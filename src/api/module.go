package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stake-plus/raidparty/src/actions/core"
	sharedconfig "github.com/stake-plus/raidparty/src/config"
)

var _ core.Module = (*Module)(nil)

const shutdownTimeout = 10 * time.Second

// Module runs the admin HTTP API.
type Module struct {
	config *sharedconfig.AdminConfig
	server *http.Server
}

func NewModule(cfg *sharedconfig.AdminConfig, reg Registry) (*Module, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("api: admin_jwt_secret is required")
	}
	if len(cfg.AllowOrigins) == 0 {
		return nil, errors.New("api: admin_allow_origins needs at least one origin")
	}
	return &Module{
		config: cfg,
		server: &http.Server{
			Addr:              cfg.Listen,
			Handler:           NewRouter(*cfg, reg),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Name implements core.Module.
func (m *Module) Name() string { return "admin-api" }

func (m *Module) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", m.server.Addr)
	if err != nil {
		return fmt.Errorf("api: listen %s: %w", m.server.Addr, err)
	}
	go func() {
		if err := m.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("api: server stopped")
		}
	}()
	log.Info().Str("listen", ln.Addr().String()).Msg("api: admin API listening")
	return nil
}

func (m *Module) Stop(ctx context.Context) {
	shutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := m.server.Shutdown(shutCtx); err != nil {
		log.Warn().Err(err).Msg("api: shutdown")
	}
}
