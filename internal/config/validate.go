package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case BackendSQLite:
		if c.Store.Path == "" {
			return errors.New("store.path must be set for the sqlite backend")
		}
	case BackendMemory:
	case BackendPostgres:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("store.postgres_dsn is required for the postgres backend. Set %s or edit the config file", envPostgresDSN)
		}
	default:
		return fmt.Errorf("store.backend must be one of %s, %s, %s (got %q)", BackendSQLite, BackendMemory, BackendPostgres, c.Store.Backend)
	}
	if c.Store.BusyTimeoutMS < 0 {
		return errors.New("store.busy_timeout_ms must be non-negative")
	}
	if c.Store.MaxOpenConns < 0 {
		return errors.New("store.max_open_conns must be non-negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
}
