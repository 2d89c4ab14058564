package queue

import (
	"context"
	"errors"
	"log/slog"

	"qoxide/internal/logging"
)

// Option configures a Queue.
type Option func(*Queue)

// WithLogger attaches a structured logger. A nil logger keeps the no-op default.
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logging.NewComponentLogger(logger, "queue")
		}
	}
}

// Queue drives the message state machine on top of a Backend.
type Queue struct {
	backend Backend
	logger  *slog.Logger
}

// New wraps backend in a Queue. The Queue owns backend and closes it on Close.
func New(backend Backend, opts ...Option) *Queue {
	q := &Queue{
		backend: backend,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Backend exposes the underlying storage handle.
func (q *Queue) Backend() Backend {
	return q.backend
}

// Add enqueues payload as a new Pending message and returns its id. A nil
// payload is stored as zero bytes.
func (q *Queue) Add(ctx context.Context, payload []byte) (int64, error) {
	if payload == nil {
		payload = []byte{}
	}
	id, err := q.backend.Insert(ctx, payload)
	if err != nil {
		return 0, wrapOp("add", 0, err)
	}
	q.logger.Debug("message added",
		logging.Int64(logging.FieldMessageID, id),
		logging.Int(logging.FieldPayloadBytes, len(payload)),
	)
	return id, nil
}

// Reserve claims the oldest Pending message. It returns nil, nil when no
// message is Pending.
func (q *Queue) Reserve(ctx context.Context) (*Message, error) {
	msg, err := q.backend.ClaimOldest(ctx)
	if err != nil {
		return nil, wrapOp("reserve", 0, err)
	}
	if msg == nil {
		q.logger.Debug("no pending messages")
		return nil, nil
	}
	if msg.Payload == nil {
		msg.Payload = []byte{}
	}
	q.logger.Debug("message reserved",
		logging.Int64(logging.FieldMessageID, msg.ID),
		logging.Int(logging.FieldAttempts, msg.Attempts),
	)
	return msg, nil
}

// Complete marks a Reserved message as Completed.
func (q *Queue) Complete(ctx context.Context, id int64) error {
	return q.transition(ctx, id, completeTransition)
}

// Fail returns a Reserved message to Pending so it can be reserved again.
func (q *Queue) Fail(ctx context.Context, id int64) error {
	return q.transition(ctx, id, failTransition)
}

func (q *Queue) transition(ctx context.Context, id int64, t transition) error {
	err := q.backend.Transition(ctx, id, t.from, t.to)
	if err != nil {
		var te *TransitionError
		if errors.As(err, &te) && te.Op == "" {
			te.Op = t.op
		}
		q.logger.Debug("transition rejected",
			logging.Int64(logging.FieldMessageID, id),
			logging.String(logging.FieldOp, t.op),
			logging.Error(err),
		)
		return wrapOp(t.op, id, err)
	}
	q.logger.Debug("message transitioned",
		logging.Int64(logging.FieldMessageID, id),
		logging.String(logging.FieldOp, t.op),
		logging.String(logging.FieldState, t.to.String()),
	)
	return nil
}

// Get returns a message and its payload without changing its state.
func (q *Queue) Get(ctx context.Context, id int64) (*Message, error) {
	msg, err := q.backend.Lookup(ctx, id)
	if err != nil {
		return nil, wrapOp("get", id, err)
	}
	if msg == nil {
		return nil, wrapOp("get", id, ErrNotFound)
	}
	if msg.Payload == nil {
		msg.Payload = []byte{}
	}
	return msg, nil
}

// Size reports message counts grouped by state.
func (q *Queue) Size(ctx context.Context) (Sizes, error) {
	counts, err := q.backend.Counts(ctx)
	if err != nil {
		return Sizes{}, wrapOp("size", 0, err)
	}
	sizes, err := sizesFromCounts(counts)
	if err != nil {
		return Sizes{}, wrapOp("size", 0, err)
	}
	return sizes, nil
}

// Close releases the backend.
func (q *Queue) Close() error {
	if q == nil || q.backend == nil {
		return nil
	}
	return q.backend.Close()
}
