/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// RoleAdmin is the only role the kiosk knows about.
const RoleAdmin = "admin"

// ErrInvalidCredentials is returned for any username or password mismatch.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Admin is the single operator account allowed to drive the kiosk.
type Admin struct {
	username string
	hash     []byte
}

// NewAdmin builds the operator account. A bcrypt hash wins over a plaintext
// password, which is hashed once at startup.
func NewAdmin(username, passwordHash, password string) (*Admin, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("admin username is required")
	}

	if passwordHash != "" {
		if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
			return nil, fmt.Errorf("admin password hash: %w", err)
		}
		return &Admin{username: username, hash: []byte(passwordHash)}, nil
	}

	if password == "" {
		return nil, fmt.Errorf("admin password is required")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return &Admin{username: username, hash: []byte(hash)}, nil
}

// Username returns the configured operator name.
func (a *Admin) Username() string { return a.username }

// Authenticate checks a login attempt.
func (a *Admin) Authenticate(username, password string) (*Claims, error) {
	userOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(username)), []byte(a.username)) == 1
	// Always run bcrypt so a wrong username costs the same as a wrong password.
	passErr := bcrypt.CompareHashAndPassword(a.hash, []byte(password))
	if !userOK || passErr != nil {
		return nil, ErrInvalidCredentials
	}
	return &Claims{Username: a.username, Role: RoleAdmin}, nil
}

// HashPassword returns a bcrypt hash suitable for KIOSK_ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
