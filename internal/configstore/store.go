/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package configstore persists the rotation configuration.
package configstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/friendsincode/grimnir_kiosk/internal/models"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned by a Store when nothing has been persisted yet.
var ErrNotFound = errors.New("rotation config not found")

// ErrMalformed wraps decode failures of a persisted document.
var ErrMalformed = errors.New("malformed rotation config")

// Store is a persistence backend for the rotation configuration.
type Store interface {
	Name() string
	Load(ctx context.Context) (models.RotationConfig, error)
	Save(ctx context.Context, cfg models.RotationConfig) error
}

// Format is a serialization format for file and object backends.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func encode(cfg models.RotationConfig, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(cfg)
	default:
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}
}

func decode(data []byte, format Format) (models.RotationConfig, error) {
	var cfg models.RotationConfig
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return models.RotationConfig{}, fmt.Errorf("%w: %s: %v", ErrMalformed, format, err)
	}
	return cfg, nil
}
