package queue

import "context"

// Backend is the storage handle a Queue delegates to. Implementations must
// make each method all-or-nothing and must make ClaimOldest a single
// indivisible select-and-update: two concurrent callers never receive the
// same message.
type Backend interface {
	// Insert stores payload and a Pending message referencing it in one
	// transaction and returns the message id.
	Insert(ctx context.Context, payload []byte) (int64, error)
	// ClaimOldest flips the Pending message with the lowest id to Reserved
	// and returns it with its payload. It returns nil, nil when nothing is
	// Pending.
	ClaimOldest(ctx context.Context) (*Message, error)
	// Transition moves message id from one state to another only if it is
	// currently in from. It returns ErrNotFound for an unknown id and a
	// *TransitionError when the current state differs.
	Transition(ctx context.Context, id int64, from, to State) error
	// Lookup returns the message and its payload, or nil, nil when absent.
	Lookup(ctx context.Context, id int64) (*Message, error)
	// Counts returns message counts keyed by state from one read snapshot.
	Counts(ctx context.Context) (map[State]int, error)
	Close() error
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

var (
	_ Backend = (*SQLiteStore)(nil)
	_ Backend = (*MemoryStore)(nil)
	_ Backend = (*PostgresStore)(nil)
)
