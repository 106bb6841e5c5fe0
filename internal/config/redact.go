// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package config

const redacted = "[REDACTED]"

// Redacted returns a copy of the config safe to expose over the admin API:
// every credential field is masked while its presence stays visible.
func (c *Config) Redacted() *Config {
	cp := *c

	cp.Frigate.Password = mask(c.Frigate.Password)
	cp.MQTT.Password = mask(c.MQTT.Password)
	cp.Notify.Webhook.Secret = mask(c.Notify.Webhook.Secret)
	cp.Notify.Discord.WebhookURL = mask(c.Notify.Discord.WebhookURL)
	cp.Notify.Ntfy.AccessToken = mask(c.Notify.Ntfy.AccessToken)
	cp.Security.JWTSecret = mask(c.Security.JWTSecret)
	cp.Security.AdminPass = mask(c.Security.AdminPass)
	cp.Security.AdminHash = mask(c.Security.AdminHash)
	cp.Security.OIDC.ClientSecret = mask(c.Security.OIDC.ClientSecret)

	return &cp
}

func mask(value string) string {
	if value == "" {
		return ""
	}
	return redacted
}
