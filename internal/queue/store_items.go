package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Insert stores the payload and a Pending message pointing at it in one
// transaction, so a message is never visible without its payload.
func (s *SQLiteStore) Insert(ctx context.Context, payload []byte) (int64, error) {
	ctx = ensureContext(ctx)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, classifySQLiteError(fmt.Errorf("begin insert tx: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `INSERT INTO payloads (data) VALUES (coalesce(?, x''))`, payload)
	if err != nil {
		return 0, classifySQLiteError(fmt.Errorf("insert payload: %w", err))
	}
	payloadID, err := res.LastInsertId()
	if err != nil {
		return 0, classifySQLiteError(fmt.Errorf("payload insert id: %w", err))
	}

	res, err = tx.ExecContext(ctx,
		`INSERT INTO messages (state, payload_id) VALUES (?, ?)`,
		string(StatePending),
		payloadID,
	)
	if err != nil {
		return 0, classifySQLiteError(fmt.Errorf("insert message: %w", err))
	}
	messageID, err := res.LastInsertId()
	if err != nil {
		return 0, classifySQLiteError(fmt.Errorf("message insert id: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return 0, classifySQLiteError(fmt.Errorf("commit insert: %w", err))
	}
	return messageID, nil
}

// Lookup fetches a message and its payload by message id.
func (s *SQLiteStore) Lookup(ctx context.Context, id int64) (*Message, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+`, p.id, p.data
         FROM messages m LEFT JOIN payloads p ON p.id = m.payload_id
         WHERE m.id = ?`,
		id,
	)
	msg, err := scanMessageWithPayload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyScanError(fmt.Errorf("lookup message: %w", err))
	}
	return msg, nil
}

// Counts returns the number of messages in each state.
func (s *SQLiteStore) Counts(ctx context.Context) (map[State]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM messages GROUP BY state`)
	if err != nil {
		return nil, classifySQLiteError(fmt.Errorf("queue counts: %w", err))
	}
	defer rows.Close()

	counts := make(map[State]int, len(allStates))
	for rows.Next() {
		var (
			raw   string
			count int
		)
		if err := rows.Scan(&raw, &count); err != nil {
			return nil, classifySQLiteError(fmt.Errorf("scan counts: %w", err))
		}
		state, err := ParseState(raw)
		if err != nil {
			return nil, err
		}
		counts[state] = count
	}
	if err := rows.Err(); err != nil {
		return nil, classifySQLiteError(fmt.Errorf("iterate counts: %w", err))
	}
	return counts, nil
}
