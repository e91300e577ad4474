package data

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "raidparty"

// ConnectRedis parses a redis:// url and returns a client.
func ConnectRedis(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return redis.NewClient(opt), nil
}

// RedisStore keeps active parties in one hash and each archive bucket in a list.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore wraps a client. An empty prefix uses "raidparty".
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) activeKey() string {
	return s.prefix + ":active"
}

func (s *RedisStore) archiveKey(key string) string {
	return s.prefix + ":archive:" + key
}

func (s *RedisStore) ListActive(ctx context.Context) (map[string][]byte, error) {
	vals, err := s.rdb.HGetAll(ctx, s.activeKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list active: %w", err)
	}
	out := make(map[string][]byte, len(vals))
	for k, v := range vals {
		out[k] = []byte(v)
	}
	return out, nil
}

func (s *RedisStore) GetActive(ctx context.Context, channelID string) ([]byte, error) {
	v, err := s.rdb.HGet(ctx, s.activeKey(), channelID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get active %s: %w", channelID, err)
	}
	return v, nil
}

func (s *RedisStore) SetActive(ctx context.Context, channelID string, record []byte) error {
	if err := s.rdb.HSet(ctx, s.activeKey(), channelID, record).Err(); err != nil {
		return fmt.Errorf("redis: set active %s: %w", channelID, err)
	}
	return nil
}

func (s *RedisStore) RemoveActive(ctx context.Context, channelID string) error {
	if err := s.rdb.HDel(ctx, s.activeKey(), channelID).Err(); err != nil {
		return fmt.Errorf("redis: remove active %s: %w", channelID, err)
	}
	return nil
}

func (s *RedisStore) AppendArchived(ctx context.Context, key string, record []byte) error {
	if err := s.rdb.RPush(ctx, s.archiveKey(key), record).Err(); err != nil {
		return fmt.Errorf("redis: archive %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) ListArchived(ctx context.Context, key string) ([][]byte, error) {
	vals, err := s.rdb.LRange(ctx, s.archiveKey(key), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list archive %s: %w", key, err)
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte(v)
	}
	return out, nil
}
