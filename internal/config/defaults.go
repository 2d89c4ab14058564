package config

// Backend names accepted by store.backend.
const (
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// MemoryPath selects the ephemeral SQLite mode.
const MemoryPath = ":memory:"

const (
	defaultConfigPath    = "~/.config/qoxide/config.toml"
	projectConfigName    = "qoxide.toml"
	defaultStoreBackend  = BackendSQLite
	defaultStorePath     = "./qoxide.db"
	defaultBusyTimeoutMS = 5000
	defaultMaxOpenConns  = 8
	defaultLogFormat     = "console"
	defaultLogLevel      = "warn"

	envStorePath   = "QOXIDE_DB"
	envPostgresDSN = "QOXIDE_POSTGRES_DSN"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Store: Store{
			Backend:       defaultStoreBackend,
			Path:          defaultStorePath,
			BusyTimeoutMS: defaultBusyTimeoutMS,
			MaxOpenConns:  defaultMaxOpenConns,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
