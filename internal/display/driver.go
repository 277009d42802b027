/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package display drives the screen the kiosk rotates destinations on.
package display

import (
	"context"
	"errors"
)

var (
	// ErrAcquire is returned when the display resource cannot be initialized.
	ErrAcquire = errors.New("display acquisition failed")
	// ErrShowFailed is returned when a destination could not be shown.
	ErrShowFailed = errors.New("display show failed")
	// ErrForeignHandle is returned when a handle from another driver is passed in.
	ErrForeignHandle = errors.New("handle not issued by this driver")
	// ErrReleased is returned when showing on a handle that was already released.
	ErrReleased = errors.New("handle already released")
)

// Handle identifies an acquired display resource.
type Handle interface {
	ID() string
}

// Driver renders destinations. Acquire and Release bracket exclusive use of the
// screen; Show may block until the destination has loaded.
type Driver interface {
	Name() string
	Acquire(ctx context.Context) (Handle, error)
	Show(ctx context.Context, h Handle, locator string) error
	// Release is best effort. Errors are reported for logging only.
	Release(h Handle) error
}
