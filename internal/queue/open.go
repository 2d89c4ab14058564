package queue

import (
	"fmt"
	"time"

	"qoxide/internal/config"
)

// Open builds a Queue on the backend named by cfg.Store.Backend.
func Open(cfg *config.Config, opts ...Option) (*Queue, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrStoreUnavailable)
	}

	var (
		backend Backend
		err     error
	)
	switch cfg.Store.Backend {
	case config.BackendSQLite, "":
		backend, err = OpenSQLite(cfg.Store.Path,
			WithSQLiteBusyTimeout(time.Duration(cfg.Store.BusyTimeoutMS)*time.Millisecond),
			WithSQLiteMaxOpenConns(cfg.Store.MaxOpenConns),
		)
	case config.BackendMemory:
		backend = NewMemoryStore()
	case config.BackendPostgres:
		backend, err = OpenPostgres(cfg.Store.PostgresDSN,
			WithPostgresMaxOpenConns(cfg.Store.MaxOpenConns),
		)
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrStoreUnavailable, cfg.Store.Backend)
	}
	if err != nil {
		return nil, wrapOp("open", 0, err)
	}
	return New(backend, opts...), nil
}
