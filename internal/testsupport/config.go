package testsupport

import (
	"path/filepath"
	"testing"

	"qoxide/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config whose SQLite database lives in a per-test temp
// directory. Logging is left at its defaults.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Store.Path = filepath.Join(base, "qoxide.db")
	cfgVal.Store.BusyTimeoutMS = 2000

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBackend selects the storage backend on the test config.
func WithBackend(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Store.Backend = name
	}
}

// WithInMemorySQLite points the SQLite backend at an ephemeral database.
func WithInMemorySQLite() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Store.Backend = config.BackendSQLite
		b.cfg.Store.Path = config.MemoryPath
	}
}

// WithPostgresDSN selects the postgres backend with dsn.
func WithPostgresDSN(dsn string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Store.Backend = config.BackendPostgres
		b.cfg.Store.PostgresDSN = dsn
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Store.Path)
}
