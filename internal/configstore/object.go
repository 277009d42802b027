/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package configstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/friendsincode/grimnir_kiosk/internal/models"
	"github.com/friendsincode/grimnir_kiosk/internal/storage"
)

// ObjectStore keeps the configuration as a document in object storage.
type ObjectStore struct {
	objects storage.ObjectStore
	key     string
	format  Format
}

// NewObjectStore creates an ObjectStore. A key without an extension gets ".json".
func NewObjectStore(objects storage.ObjectStore, key string) *ObjectStore {
	if key == "" {
		key = "default"
	}
	format := FormatJSON
	lower := strings.ToLower(key)
	switch {
	case strings.HasSuffix(lower, ".yaml"), strings.HasSuffix(lower, ".yml"):
		format = FormatYAML
	case !strings.HasSuffix(lower, ".json"):
		key += ".json"
	}
	return &ObjectStore{objects: objects, key: key, format: format}
}

// Name implements Store.
func (s *ObjectStore) Name() string { return "s3" }

// Key returns the object key.
func (s *ObjectStore) Key() string { return s.key }

// Load implements Store.
func (s *ObjectStore) Load(ctx context.Context) (models.RotationConfig, error) {
	data, err := s.objects.Get(ctx, s.key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return models.RotationConfig{}, ErrNotFound
	}
	if err != nil {
		return models.RotationConfig{}, fmt.Errorf("load config object: %w", err)
	}
	return decode(data, s.format)
}

// Save implements Store.
func (s *ObjectStore) Save(ctx context.Context, cfg models.RotationConfig) error {
	data, err := encode(cfg, s.format)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	contentType := "application/json"
	if s.format == FormatYAML {
		contentType = "application/yaml"
	}
	if err := s.objects.Put(ctx, s.key, data, contentType); err != nil {
		return fmt.Errorf("save config object: %w", err)
	}
	return nil
}
