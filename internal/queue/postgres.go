package queue

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// postgresSchemaLockKey serializes concurrent schema bootstrap across clients.
const postgresSchemaLockKey = 0x716f7869

const postgresSchemaV1 = `
CREATE TABLE IF NOT EXISTS payloads (
  id   BIGSERIAL PRIMARY KEY,
  data BYTEA NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
  id            BIGSERIAL PRIMARY KEY,
  state         TEXT NOT NULL CHECK (state IN ('PENDING', 'RESERVED', 'COMPLETED')),
  payload_id    BIGINT NOT NULL REFERENCES payloads(id),
  attempt_count INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_messages_state ON messages(state, id);
`

const postgresClaimSQL = `
WITH next AS (
  SELECT id
  FROM messages
  WHERE state = $2
  ORDER BY id
  LIMIT 1
  FOR UPDATE SKIP LOCKED
)
UPDATE messages m
SET state = $1, attempt_count = m.attempt_count + 1
FROM next
WHERE m.id = next.id
RETURNING m.id, m.state, m.payload_id, m.attempt_count,
  (SELECT p.id FROM payloads p WHERE p.id = m.payload_id),
  (SELECT p.data FROM payloads p WHERE p.id = m.payload_id)
`

// PostgresOption tunes OpenPostgres.
type PostgresOption func(*postgresOptions)

type postgresOptions struct {
	maxOpenConns   int
	connectTimeout time.Duration
}

// WithPostgresMaxOpenConns caps the connection pool.
func WithPostgresMaxOpenConns(n int) PostgresOption {
	return func(o *postgresOptions) {
		if n > 0 {
			o.maxOpenConns = n
		}
	}
}

// WithPostgresConnectTimeout bounds the initial ping and schema bootstrap.
func WithPostgresConnectTimeout(d time.Duration) PostgresOption {
	return func(o *postgresOptions) {
		if d > 0 {
			o.connectTimeout = d
		}
	}
}

// PostgresStore is a Backend on PostgreSQL through the pgx driver.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects to dsn and creates the schema when missing.
func OpenPostgres(dsn string, opts ...PostgresOption) (*PostgresStore, error) {
	options := postgresOptions{maxOpenConns: 8, connectTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(&options)
	}

	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%w: empty postgres dsn", ErrStoreUnavailable)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open postgres: %w", ErrStoreUnavailable, err)
	}
	db.SetMaxOpenConns(options.maxOpenConns)

	ctx, cancel := context.WithTimeout(context.Background(), options.connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping postgres: %w", ErrStoreUnavailable, err)
	}

	s := &PostgresStore{db: db}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) init(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin schema tx: %w", ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(postgresSchemaLockKey)); err != nil {
		return fmt.Errorf("%w: lock schema: %w", ErrStoreUnavailable, err)
	}
	if _, err := tx.ExecContext(ctx, postgresSchemaV1); err != nil {
		return fmt.Errorf("%w: create schema: %w", ErrStoreUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit schema: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Insert implements Backend.
func (s *PostgresStore) Insert(ctx context.Context, payload []byte) (int64, error) {
	ctx = ensureContext(ctx)
	if payload == nil {
		payload = []byte{}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, classifyPostgresError(fmt.Errorf("begin insert tx: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	var payloadID int64
	if err := tx.QueryRowContext(ctx, `INSERT INTO payloads (data) VALUES ($1) RETURNING id`, payload).Scan(&payloadID); err != nil {
		return 0, classifyPostgresError(fmt.Errorf("insert payload: %w", err))
	}
	var messageID int64
	if err := tx.QueryRowContext(ctx,
		`INSERT INTO messages (state, payload_id) VALUES ($1, $2) RETURNING id`,
		string(StatePending), payloadID,
	).Scan(&messageID); err != nil {
		return 0, classifyPostgresError(fmt.Errorf("insert message: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return 0, classifyPostgresError(fmt.Errorf("commit insert: %w", err))
	}
	return messageID, nil
}

// ClaimOldest implements Backend. SKIP LOCKED lets concurrent claimers pass
// over a row another transaction is already taking.
func (s *PostgresStore) ClaimOldest(ctx context.Context) (*Message, error) {
	ctx = ensureContext(ctx)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classifyPostgresError(fmt.Errorf("begin reserve tx: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, postgresClaimSQL, string(StateReserved), string(StatePending))
	msg, err := scanMessageWithPayload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		if errors.Is(err, ErrIntegrityViolation) {
			return nil, err
		}
		return nil, classifyPostgresError(fmt.Errorf("claim oldest: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return nil, classifyPostgresError(fmt.Errorf("commit reserve: %w", err))
	}
	return msg, nil
}

// Transition implements Backend.
func (s *PostgresStore) Transition(ctx context.Context, id int64, from, to State) error {
	ctx = ensureContext(ctx)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classifyPostgresError(fmt.Errorf("begin transition tx: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE messages SET state = $1 WHERE id = $2 AND state = $3`,
		string(to), id, string(from),
	)
	if err != nil {
		return classifyPostgresError(fmt.Errorf("update state: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return classifyPostgresError(fmt.Errorf("rows affected: %w", err))
	}
	if affected == 1 {
		if err := tx.Commit(); err != nil {
			return classifyPostgresError(fmt.Errorf("commit transition: %w", err))
		}
		return nil
	}

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT state FROM messages WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return classifyPostgresError(fmt.Errorf("read state: %w", err))
	}
	current, err := ParseState(raw)
	if err != nil {
		return err
	}
	return &TransitionError{ID: id, Current: current, Want: from}
}

// Lookup implements Backend.
func (s *PostgresStore) Lookup(ctx context.Context, id int64) (*Message, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+`, p.id, p.data
         FROM messages m LEFT JOIN payloads p ON p.id = m.payload_id
         WHERE m.id = $1`,
		id,
	)
	msg, err := scanMessageWithPayload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		if errors.Is(err, ErrIntegrityViolation) {
			return nil, err
		}
		return nil, classifyPostgresError(fmt.Errorf("lookup message: %w", err))
	}
	return msg, nil
}

// Counts implements Backend.
func (s *PostgresStore) Counts(ctx context.Context) (map[State]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM messages GROUP BY state`)
	if err != nil {
		return nil, classifyPostgresError(fmt.Errorf("queue counts: %w", err))
	}
	defer rows.Close()

	counts := make(map[State]int, len(allStates))
	for rows.Next() {
		var (
			raw   string
			count int
		)
		if err := rows.Scan(&raw, &count); err != nil {
			return nil, classifyPostgresError(fmt.Errorf("scan counts: %w", err))
		}
		state, err := ParseState(raw)
		if err != nil {
			return nil, err
		}
		counts[state] = count
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPostgresError(fmt.Errorf("iterate counts: %w", err))
	}
	return counts, nil
}

func classifyPostgresError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		strings.Contains(err.Error(), "database is closed") {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23503":
			return fmt.Errorf("%w: %w", ErrIntegrityViolation, err)
		case strings.HasPrefix(pgErr.Code, "08"), pgErr.Code == "53300", pgErr.Code == "57P01":
			return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%w: %w", ErrStoreFailure, err)
}
