/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package configstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/friendsincode/grimnir_kiosk/internal/models"
)

// FileStore keeps the configuration in a local JSON or YAML file.
type FileStore struct {
	path   string
	format Format
}

// NewFileStore picks the format from the extension: .yaml and .yml are YAML, anything else JSON.
func NewFileStore(path string) *FileStore {
	format := FormatJSON
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = FormatYAML
	}
	return &FileStore{path: path, format: format}
}

// Name implements Store.
func (s *FileStore) Name() string { return "file" }

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Load implements Store.
func (s *FileStore) Load(_ context.Context) (models.RotationConfig, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.RotationConfig{}, ErrNotFound
		}
		return models.RotationConfig{}, fmt.Errorf("read %s: %w", s.path, err)
	}
	return decode(data, s.format)
}

// Save implements Store. The file is replaced atomically.
func (s *FileStore) Save(_ context.Context, cfg models.RotationConfig) error {
	data, err := encode(cfg, s.format)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}
