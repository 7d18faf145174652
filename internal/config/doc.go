// Package config loads, validates, and watches the warden configuration
// file.
//
// Configuration lives in TOML at ~/.config/warden/config.toml by default,
// with a project-local warden.toml fallback for development. Loading expands
// paths, applies defaults, and validates before anything else runs; a config
// problem should never survive past process startup. The watcher feeds
// log-level changes into a live slog.LevelVar so a running daemon can be
// turned up to debug without a restart.
package config
