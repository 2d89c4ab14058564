package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// MemoryPath selects the ephemeral in-process SQLite database.
const MemoryPath = ":memory:"

const (
	sqliteBusyCode       = 5
	sqliteLockedCode     = 6
	sqliteCorruptCode    = 11
	sqliteCantOpenCode   = 14
	sqliteConstraintCode = 19
	sqliteNotADBCode     = 26
	sqliteForeignKeyCode = 787

	defaultBusyTimeout = 5 * time.Second
)

// SQLiteOption tunes OpenSQLite.
type SQLiteOption func(*sqliteOptions)

type sqliteOptions struct {
	busyTimeout  time.Duration
	maxOpenConns int
}

// WithSQLiteBusyTimeout sets how long a connection waits on another writer's
// lock before reporting the store as unavailable.
func WithSQLiteBusyTimeout(d time.Duration) SQLiteOption {
	return func(o *sqliteOptions) {
		if d > 0 {
			o.busyTimeout = d
		}
	}
}

// WithSQLiteMaxOpenConns caps the connection pool of a file-backed store.
// In-memory stores always use a single connection.
func WithSQLiteMaxOpenConns(n int) SQLiteOption {
	return func(o *sqliteOptions) {
		if n > 0 {
			o.maxOpenConns = n
		}
	}
}

// SQLiteStore is a Backend on SQLite.
type SQLiteStore struct {
	db       *sql.DB
	path     string
	inMemory bool
}

// OpenSQLite opens or creates the queue database at path. An empty path or
// MemoryPath opens a private in-memory database that lives until Close.
func OpenSQLite(path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	options := sqliteOptions{busyTimeout: defaultBusyTimeout}
	for _, opt := range opts {
		opt(&options)
	}

	path = strings.TrimSpace(path)
	inMemory := path == "" || path == MemoryPath
	if inMemory {
		path = MemoryPath
	} else if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create database directory: %w", ErrStoreUnavailable, err)
		}
	}

	db, err := sql.Open("sqlite", sqliteDSN(path, inMemory, options.busyTimeout))
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite db: %w", ErrStoreUnavailable, err)
	}
	if inMemory {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	} else if options.maxOpenConns > 0 {
		db.SetMaxOpenConns(options.maxOpenConns)
	}

	store := &SQLiteStore{db: db, path: path, inMemory: inMemory}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// AttachSQLite builds a store on a caller-owned handle opened with the
// "sqlite" driver. Connection pragmas are the caller's job; the DSN should at
// least enable foreign_keys. The schema is created when missing.
func AttachSQLite(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: nil database handle", ErrStoreUnavailable)
	}
	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func sqliteDSN(path string, inMemory bool, busyTimeout time.Duration) string {
	params := url.Values{}
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeout.Milliseconds()))
	if !inMemory {
		params.Add("_pragma", "journal_mode(WAL)")
		params.Add("_pragma", "synchronous(FULL)")
	}
	params.Set("_txlock", "immediate")
	return path + "?" + params.Encode()
}

// Path returns the database file path, or MemoryPath for in-memory stores.
func (s *SQLiteStore) Path() string {
	return s.path
}

// InMemory reports whether the store is ephemeral.
func (s *SQLiteStore) InMemory() bool {
	return s.inMemory
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func sqliteCode(err error) (int, bool) {
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		return coder.Code(), true
	}
	return 0, false
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := sqliteCode(err); ok {
		switch code & 0xff {
		case sqliteBusyCode, sqliteLockedCode:
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// classifySQLiteError attaches a queue error kind to a driver error.
func classifySQLiteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, sql.ErrConnDone) || isSQLiteBusy(err) ||
		strings.Contains(err.Error(), "database is closed") {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
		return fmt.Errorf("%w: %w", ErrIntegrityViolation, err)
	}
	if code, ok := sqliteCode(err); ok {
		if code == sqliteForeignKeyCode {
			return fmt.Errorf("%w: %w", ErrIntegrityViolation, err)
		}
		switch code & 0xff {
		case sqliteCantOpenCode, sqliteNotADBCode, sqliteCorruptCode:
			return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		case sqliteConstraintCode:
			return fmt.Errorf("%w: %w", ErrStoreFailure, err)
		}
	}
	return fmt.Errorf("%w: %w", ErrStoreFailure, err)
}
