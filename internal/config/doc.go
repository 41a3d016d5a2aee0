// Package config loads, normalizes, and validates cymatics configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the service environment variables
// such as DATA_DIR and WHISPER_MODEL, optionally sourced from a .env file.
// The Config type centralizes every knob the daemon and CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
