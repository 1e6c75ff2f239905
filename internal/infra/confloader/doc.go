// Package confloader loads layered configuration with koanf.
//
// Sources, later overriding earlier: struct defaults already present in the
// target, a YAML file, CORSLIGHT_* environment variables, and explicit maps
// (typically command-line flags).
//
// Environment variables nest with a double underscore so that keys
// containing single underscores survive:
//
//	CORSLIGHT_STORAGE__DATA_DIR=/srv/corslight  ->  storage.data_dir
//	CORSLIGHT_LOG__LEVEL=debug                  ->  log.level
//
// Watcher reports edits of a watched file, coalescing the bursts of events
// editors produce, so a server can hot-reload its manifest.
package confloader
