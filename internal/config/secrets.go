// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package config

import (
	"fmt"
	"os"
	"strings"
)

// resolveSecretFiles replaces secret values with the contents of their *_FILE
// counterparts. File-based secrets take precedence over inline values so
// container secret mounts win over leftover environment variables.
func (c *Config) resolveSecretFiles() error {
	if err := resolveSecret(&c.Frigate.Password, c.Frigate.PasswordFile, "FRIGATE_PASSWORD_FILE"); err != nil {
		return err
	}
	if err := resolveSecret(&c.MQTT.Password, c.MQTT.PasswordFile, "MQTT_PASSWORD_FILE"); err != nil {
		return err
	}
	return resolveSecret(&c.Notify.Webhook.Secret, c.Notify.Webhook.SecretFile, "NOTIFY_WEBHOOK_SECRET_FILE")
}

// resolveSecret loads a single secret file into dst when path is set.
// Trailing whitespace is stripped; most secret files end with a newline.
func resolveSecret(dst *string, path, fieldName string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return fmt.Errorf("%s: %w", fieldName, err)
	}
	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return fmt.Errorf("%s: file %s is empty", fieldName, path)
	}
	*dst = secret
	return nil
}
