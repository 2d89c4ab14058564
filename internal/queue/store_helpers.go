package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const messageColumns = "m.id, m.state, m.payload_id, m.attempt_count"

type rowScanner interface {
	Scan(dest ...any) error
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func scanMessage(scanner rowScanner) (*Message, error) {
	var (
		msg      Message
		stateRaw string
	)
	if err := scanner.Scan(&msg.ID, &stateRaw, &msg.PayloadID, &msg.Attempts); err != nil {
		return nil, err
	}
	state, err := ParseState(stateRaw)
	if err != nil {
		return nil, err
	}
	msg.State = state
	return &msg, nil
}

func scanMessageWithPayload(scanner rowScanner) (*Message, error) {
	var (
		msg       Message
		stateRaw  string
		payloadID sql.NullInt64
		data      []byte
	)
	if err := scanner.Scan(&msg.ID, &stateRaw, &msg.PayloadID, &msg.Attempts, &payloadID, &data); err != nil {
		return nil, err
	}
	state, err := ParseState(stateRaw)
	if err != nil {
		return nil, err
	}
	if !payloadID.Valid {
		return nil, fmt.Errorf("%w: message %d references missing payload %d", ErrIntegrityViolation, msg.ID, msg.PayloadID)
	}
	msg.State = state
	msg.Payload = normalizePayload(data)
	return &msg, nil
}

// classifyScanError keeps integrity failures raised while decoding a row and
// classifies everything else as a driver error.
func classifyScanError(err error) error {
	if errors.Is(err, ErrIntegrityViolation) {
		return err
	}
	return classifySQLiteError(err)
}

func normalizePayload(data []byte) []byte {
	if data == nil {
		return []byte{}
	}
	return data
}
