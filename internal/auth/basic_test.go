// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package auth

import (
	"errors"
	"io"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/excubitor/internal/logging"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

func TestNewBasicAuthManager(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		wantErr  bool
	}{
		{name: "valid", username: "admin", password: "correct-horse", wantErr: false},
		{name: "empty username", username: "", password: "correct-horse", wantErr: true},
		{name: "short password", username: "admin", password: "short", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBasicAuthManager(tt.username, tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewBasicAuthManager() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewBasicAuthManagerFromHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword() error = %v", err)
	}

	tests := []struct {
		name    string
		hash    string
		wantErr bool
	}{
		{name: "valid hash", hash: string(hash), wantErr: false},
		{name: "not a hash", hash: "plaintext-is-not-a-hash", wantErr: true},
		{name: "empty hash", hash: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBasicAuthManagerFromHash("admin", tt.hash)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewBasicAuthManagerFromHash() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCredentials(t *testing.T) {
	manager, err := NewBasicAuthManager("admin", "correct-horse")
	if err != nil {
		t.Fatalf("NewBasicAuthManager() error = %v", err)
	}

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{name: "correct", username: "admin", password: "correct-horse", wantErr: nil},
		{name: "wrong password", username: "admin", password: "wrong-password", wantErr: ErrInvalidCredentials},
		{name: "wrong username", username: "intruder", password: "correct-horse", wantErr: ErrInvalidCredentials},
		{name: "both wrong", username: "intruder", password: "wrong-password", wantErr: ErrInvalidCredentials},
		{name: "empty", username: "", password: "", wantErr: ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := manager.ValidateCredentials(tt.username, tt.password)
			if !errors.Is(err, tt.wantErr) && err != tt.wantErr {
				t.Errorf("ValidateCredentials() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
