/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// StoredConfig persists a named rotation configuration in SQL backends.
type StoredConfig struct {
	ID        string         `gorm:"type:varchar(36);primaryKey"`
	Name      string         `gorm:"type:varchar(64);uniqueIndex"`
	Config    RotationConfig `gorm:"serializer:json"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides for GORM.
func (StoredConfig) TableName() string {
	return "rotation_configs"
}
