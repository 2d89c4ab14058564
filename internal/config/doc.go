// Package config loads, normalizes, and validates qoxide configuration data.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and honours the QOXIDE_DB and QOXIDE_POSTGRES_DSN environment
// fallbacks. Command-line flags are applied on top of the loaded Config by the
// CLI, not here.
package config
