/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/grimnir_kiosk/internal/config"
	"github.com/friendsincode/grimnir_kiosk/internal/configstore"
	"github.com/friendsincode/grimnir_kiosk/internal/db"
	"github.com/friendsincode/grimnir_kiosk/internal/display"
	"github.com/friendsincode/grimnir_kiosk/internal/storage"
)

// OpenStore builds the configured persistence backend. The returned database is
// non-nil for gorm backends and must be closed by the caller.
func OpenStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (configstore.Store, *gorm.DB, error) {
	switch {
	case cfg.ConfigBackend == config.BackendFile:
		return configstore.NewFileStore(cfg.ConfigPath), nil, nil

	case cfg.ConfigBackend.IsDatabase():
		database, err := db.Connect(cfg.ConfigBackend, cfg.DBDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(database); err != nil {
			_ = db.Close(database)
			return nil, nil, err
		}
		return configstore.NewDBStore(database, cfg.ConfigName), database, nil

	case cfg.ConfigBackend == config.BackendS3:
		objects, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			UsePathStyle:    cfg.S3UsePathStyle,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return configstore.NewObjectStore(objects, cfg.ConfigName), nil, nil
	}

	return nil, nil, fmt.Errorf("unsupported config backend %q", cfg.ConfigBackend)
}

// NewDriver builds the configured display driver.
func NewDriver(cfg *config.Config, logger zerolog.Logger) display.Driver {
	if cfg.DisplayDriver == config.DriverLog {
		return display.NewLogDriver(logger)
	}
	return display.NewRodDriver(display.RodConfig{
		Bin:         cfg.BrowserBin,
		Headless:    cfg.BrowserHeadless,
		ControlURL:  cfg.BrowserControlURL,
		LoadTimeout: cfg.PageLoadTimeout,
	}, logger)
}
