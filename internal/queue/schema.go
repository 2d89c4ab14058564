package queue

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
// Users will need to recreate their queue database after schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

var requiredTables = map[string][]string{
	"payloads": {"id", "data"},
	"messages": {"id", "state", "payload_id", "attempt_count"},
}

// initSchema creates the schema on a fresh database or verifies the version
// of an existing one. It runs inside one write transaction so two processes
// opening the same new file cannot both create it.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin schema tx: %w", ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	var tableExists int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("%w: check schema_version table: %w", ErrStoreUnavailable, err)
	}

	if tableExists == 0 {
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("%w: create schema: %w", ErrStoreUnavailable, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("%w: record schema version: %w", ErrStoreUnavailable, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("%w: commit schema: %w", ErrStoreUnavailable, err)
		}
		return nil
	}

	var version int
	if err := tx.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("%w: read schema version: %w", ErrStoreUnavailable, err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: %w: database has version %d, expected %d (delete the database to recreate it)",
			ErrStoreUnavailable, ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}
