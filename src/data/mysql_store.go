package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ActiveParty is one live party record keyed by its hosting channel.
type ActiveParty struct {
	ChannelID string `gorm:"primaryKey;size:64"`
	Record    string `gorm:"type:longtext;not null"`
	UpdatedAt time.Time
}

// ArchivedParty is one element of an archive bucket.
type ArchivedParty struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	LocationKey string `gorm:"size:128;index;not null"`
	Record      string `gorm:"type:longtext;not null"`
	CreatedAt   time.Time
}

// MySQLStore persists parties through gorm.
type MySQLStore struct {
	db *gorm.DB
}

// NewMySQLStore migrates the party tables and returns the store.
func NewMySQLStore(db *gorm.DB) (*MySQLStore, error) {
	if err := db.AutoMigrate(&ActiveParty{}, &ArchivedParty{}, &Setting{}); err != nil {
		return nil, fmt.Errorf("mysql: migrate party tables: %w", err)
	}
	return &MySQLStore{db: db}, nil
}

func (s *MySQLStore) ListActive(ctx context.Context) (map[string][]byte, error) {
	var rows []ActiveParty
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("mysql: list active: %w", err)
	}
	out := make(map[string][]byte, len(rows))
	for _, row := range rows {
		out[row.ChannelID] = []byte(row.Record)
	}
	return out, nil
}

func (s *MySQLStore) GetActive(ctx context.Context, channelID string) ([]byte, error) {
	var row ActiveParty
	err := s.db.WithContext(ctx).First(&row, "channel_id = ?", channelID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mysql: get active %s: %w", channelID, err)
	}
	return []byte(row.Record), nil
}

func (s *MySQLStore) SetActive(ctx context.Context, channelID string, record []byte) error {
	row := ActiveParty{ChannelID: channelID, Record: string(record)}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "channel_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"record", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("mysql: set active %s: %w", channelID, err)
	}
	return nil
}

func (s *MySQLStore) RemoveActive(ctx context.Context, channelID string) error {
	if err := s.db.WithContext(ctx).Delete(&ActiveParty{}, "channel_id = ?", channelID).Error; err != nil {
		return fmt.Errorf("mysql: remove active %s: %w", channelID, err)
	}
	return nil
}

func (s *MySQLStore) AppendArchived(ctx context.Context, key string, record []byte) error {
	row := ArchivedParty{LocationKey: key, Record: string(record)}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("mysql: archive %s: %w", key, err)
	}
	return nil
}

func (s *MySQLStore) ListArchived(ctx context.Context, key string) ([][]byte, error) {
	var rows []ArchivedParty
	if err := s.db.WithContext(ctx).Where("location_key = ?", key).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("mysql: list archive %s: %w", key, err)
	}
	out := make([][]byte, len(rows))
	for i, row := range rows {
		out[i] = []byte(row.Record)
	}
	return out, nil
}
