package data

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// OpenOptions selects the Store backend.
type OpenOptions struct {
	// Backend is one of "memory", "redis" or "mysql".
	Backend     string
	RedisURL    string
	RedisPrefix string
	// DB is required for the mysql backend.
	DB *gorm.DB
}

// OpenStore builds the configured Store. The returned close func releases
// backend connections and is never nil.
func OpenStore(ctx context.Context, opts OpenOptions) (Store, func() error, error) {
	noop := func() error { return nil }

	switch opts.Backend {
	case "memory":
		log.Warn().Msg("data: using in-memory store, parties will not survive a restart")
		return NewMemoryStore(), noop, nil
	case "redis", "":
		rdb, err := ConnectRedis(opts.RedisURL)
		if err != nil {
			return nil, noop, err
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, noop, fmt.Errorf("redis: ping: %w", err)
		}
		return NewRedisStore(rdb, opts.RedisPrefix), rdb.Close, nil
	case "mysql":
		if opts.DB == nil {
			return nil, noop, errors.New("data: mysql backend needs a database connection")
		}
		store, err := NewMySQLStore(opts.DB)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil
	default:
		return nil, noop, fmt.Errorf("data: unknown store backend %q", opts.Backend)
	}
}
