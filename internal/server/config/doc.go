// Package config provides the corslight-server configuration.
//
// This package defines the configuration structure and its validation:
//
//   - spec.go: ServerConfig struct definition
//   - default.go: Default configuration values
//   - verify.go: Validation (addresses, origins, manifest, storage)
//   - sanitize.go: Log-safe copy of a configuration
//
// Configuration is loaded via internal/infra/confloader from a YAML file,
// CORSLIGHT_* environment variables and command-line flags.
package config
