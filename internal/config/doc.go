// Package config loads, normalizes, and validates offsettweak configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes the chart
// extensions, ledger file name, delta presets, encoding fallback order, and
// the state directory that holds the run lock and history journal.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
