package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// CheckHealth returns diagnostic information about the queue database.
func (s *SQLiteStore) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{
		DBPath:   s.path,
		InMemory: s.inMemory,
	}

	if s.inMemory {
		health.DatabaseExists = true
	} else if s.path != "" {
		info, err := os.Stat(s.path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return health, nil
			}
			return health, fmt.Errorf("stat queue database: %w", err)
		}
		if info.IsDir() {
			return health, fmt.Errorf("queue database path %q is a directory", s.path)
		}
		health.DatabaseExists = true
	}

	if s.db == nil {
		return health, errors.New("queue database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping queue database: %w", err)
	}
	health.DatabaseReadable = true

	if err := s.db.QueryRowContext(connCtx, "SELECT version FROM schema_version LIMIT 1").Scan(&health.SchemaVersion); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("read schema version: %w", err)
	}

	tables := make([]string, 0, len(requiredTables))
	for table := range requiredTables {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	for _, table := range tables {
		columns, err := s.tableColumns(connCtx, table)
		if err != nil {
			health.Error = err.Error()
			return health, err
		}
		if len(columns) == 0 {
			health.MissingTables = append(health.MissingTables, table)
			continue
		}
		health.TablesPresent = append(health.TablesPresent, table)
		present := make(map[string]struct{}, len(columns))
		for _, col := range columns {
			present[col] = struct{}{}
		}
		for _, col := range requiredTables[table] {
			if _, ok := present[col]; !ok {
				health.MissingColumns = append(health.MissingColumns, table+"."+col)
			}
		}
	}

	if len(health.MissingTables) == 0 {
		if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM messages").Scan(&health.TotalMessages); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count messages: %w", err)
		}
		if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM payloads").Scan(&health.TotalPayloads); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count payloads: %w", err)
		}
	}

	var integrityResult string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	fkRows, err := s.db.QueryContext(connCtx, "PRAGMA foreign_key_check")
	if err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("foreign key check: %w", err)
	}
	defer fkRows.Close()
	for fkRows.Next() {
		health.ForeignKeyErrors++
	}
	if err := fkRows.Err(); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("iterate foreign key check: %w", err)
	}

	return health, nil
}

func (s *SQLiteStore) tableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table info %s: %w", table, err)
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table info %s: %w", table, err)
	}
	return columns, nil
}

// Healthy reports whether the diagnostics found nothing wrong.
func (h DatabaseHealth) Healthy() bool {
	return h.DatabaseExists && h.DatabaseReadable && h.IntegrityCheck &&
		h.SchemaVersion == schemaVersion && h.ForeignKeyErrors == 0 &&
		len(h.MissingTables) == 0 && len(h.MissingColumns) == 0 && h.Error == ""
}
