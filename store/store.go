// Package store persists envelopes published with the persistent flag and
// serves a recipient's recent history.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kbukum/notify/database"
	"github.com/kbukum/notify/envelope"
	"github.com/kbukum/notify/gateway"
)

// History limits.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// EventRecord is the persisted form of an envelope.
type EventRecord struct {
	ID          string    `gorm:"primaryKey;size:64"`
	RecipientID string    `gorm:"size:255;not null;index:idx_recipient_created,priority:1"`
	Type        string    `gorm:"size:64;not null"`
	Data        string    `gorm:"type:text;not null"`
	Permalink   string    `gorm:"size:2048"`
	CreatedAt   time.Time `gorm:"not null;index:idx_recipient_created,priority:2"`
}

// TableName implements gorm's Tabler.
func (EventRecord) TableName() string { return "events" }

func recordOf(env envelope.Envelope) EventRecord {
	return EventRecord{
		ID:          env.ID,
		RecipientID: env.RecipientID,
		Type:        env.Type,
		Data:        string(env.Data),
		Permalink:   env.Permalink,
		CreatedAt:   env.CreatedAt.UTC(),
	}
}

// Envelope converts the record back.
func (r EventRecord) Envelope() envelope.Envelope {
	return envelope.Envelope{
		ID:          r.ID,
		Type:        r.Type,
		RecipientID: r.RecipientID,
		Data:        json.RawMessage(r.Data),
		Permalink:   r.Permalink,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

// Store reads and writes EventRecords.
type Store struct {
	db *gorm.DB
}

var _ gateway.Store = (*Store)(nil)

// New creates a Store on db. The events table must exist; register
// EventRecord with the database component's auto-migration.
func New(db *database.DB) *Store {
	return &Store{db: db.GormDB}
}

// Save inserts env. Saving the same id twice is a no-op, so retried
// writes are safe.
func (s *Store) Save(ctx context.Context, env envelope.Envelope) error {
	rec := recordOf(env)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save event %s: %w", env.ID, err)
	}
	return nil
}

// Recent returns up to limit envelopes for recipientID, newest first.
// limit is clamped to [1, MaxLimit].
func (s *Store) Recent(ctx context.Context, recipientID string, limit int) ([]envelope.Envelope, error) {
	limit = max(1, min(limit, MaxLimit))

	var records []EventRecord
	err := s.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", recipientID, err)
	}

	out := make([]envelope.Envelope, len(records))
	for i, r := range records {
		out[i] = r.Envelope()
	}
	return out, nil
}
