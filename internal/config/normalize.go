package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeStore(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeStore() error {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = defaultStoreBackend
	}

	if value, ok := os.LookupEnv(envStorePath); ok && strings.TrimSpace(value) != "" {
		c.Store.Path = value
	}
	c.Store.Path = strings.TrimSpace(c.Store.Path)
	if c.Store.Path == "" {
		c.Store.Path = defaultStorePath
	}
	if c.Store.Path != MemoryPath {
		var err error
		if c.Store.Path, err = expandPath(c.Store.Path); err != nil {
			return fmt.Errorf("store.path: %w", err)
		}
	}

	if c.Store.PostgresDSN == "" {
		if value, ok := os.LookupEnv(envPostgresDSN); ok {
			c.Store.PostgresDSN = value
		}
	}
	c.Store.PostgresDSN = strings.TrimSpace(c.Store.PostgresDSN)

	if c.Store.BusyTimeoutMS == 0 {
		c.Store.BusyTimeoutMS = defaultBusyTimeoutMS
	}
	if c.Store.MaxOpenConns == 0 {
		c.Store.MaxOpenConns = defaultMaxOpenConns
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// SetStorePath overrides store.path, expanding it unless it names the
// in-memory store.
func (c *Config) SetStorePath(path string) error {
	path = strings.TrimSpace(path)
	if path == MemoryPath {
		c.Store.Path = path
		return nil
	}
	if path == "" {
		path = defaultStorePath
	}
	expanded, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("store.path: %w", err)
	}
	c.Store.Path = expanded
	return nil
}
