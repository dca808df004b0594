package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/zulandar/trainer/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore persists values as rows of the kv_items table. It backs both the
// sqlite and mysql drivers.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GormStore. The kv_items table must already exist
// (see db.AutoMigrate).
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("kv: gorm store: db is required")
	}
	return &GormStore{db: db}, nil
}

// Get returns the value stored under key.
func (s *GormStore) Get(ctx context.Context, key string) (string, error) {
	var item models.KVItem
	err := s.db.WithContext(ctx).Where("item_key = ?", key).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("kv: get %s: %w", key, err)
	}
	return item.Value, nil
}

// Set upserts value under key.
func (s *GormStore) Set(ctx context.Context, key, value string) error {
	item := models.KVItem{Key: key, Value: value}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&item)
	if result.Error != nil {
		return fmt.Errorf("kv: set %s: %w", key, result.Error)
	}
	return nil
}
