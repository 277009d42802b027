/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package configstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/friendsincode/grimnir_kiosk/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DBStore keeps the configuration in a named row of rotation_configs.
type DBStore struct {
	db   *gorm.DB
	name string
}

// NewDBStore creates a DBStore. The schema must already be migrated.
func NewDBStore(db *gorm.DB, name string) *DBStore {
	if name == "" {
		name = "default"
	}
	return &DBStore{db: db, name: name}
}

// Name implements Store.
func (s *DBStore) Name() string { return "db:" + s.db.Dialector.Name() }

// Load implements Store.
func (s *DBStore) Load(ctx context.Context) (models.RotationConfig, error) {
	var row models.StoredConfig
	err := s.db.WithContext(ctx).Where("name = ?", s.name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.RotationConfig{}, ErrNotFound
	}
	if err != nil {
		return models.RotationConfig{}, fmt.Errorf("load config %q: %w", s.name, err)
	}
	return row.Config, nil
}

// Save implements Store. It upserts on the unique name.
func (s *DBStore) Save(ctx context.Context, cfg models.RotationConfig) error {
	row := models.StoredConfig{
		ID:     uuid.NewString(),
		Name:   s.name,
		Config: cfg,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"config", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save config %q: %w", s.name, err)
	}
	return nil
}
