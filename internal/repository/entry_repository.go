package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"focus-tasks/internal/model"
)

// ErrKeyNotFound is returned by a KeyValue when nothing is stored under a key.
var ErrKeyNotFound = errors.New("key not found")

// KeyValue is the storage contract the gateway writes JSON documents into.
type KeyValue interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// EntryRepository stores documents as rows of the entries table.
type EntryRepository struct {
	db *gorm.DB
}

func NewEntryRepository(db *gorm.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

func (r *EntryRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var entry model.Entry
	err := r.db.WithContext(ctx).Where(map[string]any{"key": key}).First(&entry).Error
	switch {
	case err == nil:
		return []byte(entry.Value), nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrKeyNotFound
	default:
		return nil, fmt.Errorf("find entry %q: %w", key, err)
	}
}

func (r *EntryRepository) Set(ctx context.Context, key string, value []byte) error {
	entry := model.Entry{Key: key, Value: string(value), UpdatedAt: time.Now()}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("save entry %q: %w", key, err)
	}
	return nil
}
