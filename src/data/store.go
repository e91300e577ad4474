package data

import (
	"context"
	"errors"
)

// ErrRecordNotFound is returned when an active party record does not exist.
var ErrRecordNotFound = errors.New("data: record not found")

// Store is the durable key-value layer behind the party registry. Active
// records are keyed by hosting channel id; archived records are appended to a
// bucket keyed by location.
type Store interface {
	ListActive(ctx context.Context) (map[string][]byte, error)
	GetActive(ctx context.Context, channelID string) ([]byte, error)
	SetActive(ctx context.Context, channelID string, record []byte) error
	RemoveActive(ctx context.Context, channelID string) error
	AppendArchived(ctx context.Context, key string, record []byte) error
	ListArchived(ctx context.Context, key string) ([][]byte, error)
}
