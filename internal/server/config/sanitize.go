package config

import (
	"maps"
	"strings"
)

// Sanitize returns a copy of the config that is safe to log. A pinned
// session token is masked.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg
	sanitized.Manifest = maps.Clone(cfg.Manifest)

	if sanitized.Session.Token != "" {
		sanitized.Session.Token = maskSecret(sanitized.Session.Token)
	}
	return &sanitized
}

// maskSecret masks a secret value for safe logging.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
