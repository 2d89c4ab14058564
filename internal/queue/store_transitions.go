package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// claimOldestSQL is the whole claim: the oldest Pending row is chosen and
// flipped in the same statement, inside a write transaction.
const claimOldestSQL = `UPDATE messages
SET state = ?, attempt_count = attempt_count + 1
WHERE id = (
    SELECT id FROM messages
    WHERE state = ?
    ORDER BY id
    LIMIT 1
)
RETURNING id, state, payload_id, attempt_count`

// ClaimOldest reserves the oldest Pending message and returns it with its
// payload, or nil when nothing is Pending.
func (s *SQLiteStore) ClaimOldest(ctx context.Context) (*Message, error) {
	ctx = ensureContext(ctx)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classifySQLiteError(fmt.Errorf("begin reserve tx: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, claimOldestSQL, string(StateReserved), string(StatePending))
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyScanError(fmt.Errorf("claim oldest: %w", err))
	}

	var data []byte
	err = tx.QueryRowContext(ctx, `SELECT data FROM payloads WHERE id = ?`, msg.PayloadID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: message %d references missing payload %d", ErrIntegrityViolation, msg.ID, msg.PayloadID)
	}
	if err != nil {
		return nil, classifySQLiteError(fmt.Errorf("read payload: %w", err))
	}
	msg.Payload = normalizePayload(data)

	if err := tx.Commit(); err != nil {
		return nil, classifySQLiteError(fmt.Errorf("commit reserve: %w", err))
	}
	return msg, nil
}

// Transition moves message id from one state to another if it is currently
// in from. A miss is resolved against the current row inside the same
// transaction so the reported reason matches what blocked the update.
func (s *SQLiteStore) Transition(ctx context.Context, id int64, from, to State) error {
	ctx = ensureContext(ctx)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classifySQLiteError(fmt.Errorf("begin transition tx: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE messages SET state = ? WHERE id = ? AND state = ?`,
		string(to), id, string(from),
	)
	if err != nil {
		return classifySQLiteError(fmt.Errorf("update state: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return classifySQLiteError(fmt.Errorf("rows affected: %w", err))
	}
	if affected == 1 {
		if err := tx.Commit(); err != nil {
			return classifySQLiteError(fmt.Errorf("commit transition: %w", err))
		}
		return nil
	}

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT state FROM messages WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return classifySQLiteError(fmt.Errorf("read state: %w", err))
	}
	current, err := ParseState(raw)
	if err != nil {
		return err
	}
	return &TransitionError{ID: id, Current: current, Want: from}
}
