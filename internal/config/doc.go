// Package config loads, normalizes, and validates vodwatch configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the VODWATCH_CHANNELS environment
// fallback for the watch list. Channel names are case-folded and de-duplicated
// on load so the rest of the system can compare them directly.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
