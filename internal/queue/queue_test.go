package queue

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"qoxide/internal/logging"
)

// stubBackend returns canned results so engine behavior can be checked
// without a store.
type stubBackend struct {
	insertErr   error
	claim       *Message
	claimErr    error
	transErr    error
	lookup      *Message
	lookupErr   error
	counts      map[State]int
	countsErr   error
	inserted    [][]byte
	transitions []string
	closed      bool
}

func (b *stubBackend) Insert(_ context.Context, payload []byte) (int64, error) {
	b.inserted = append(b.inserted, payload)
	if b.insertErr != nil {
		return 0, b.insertErr
	}
	return int64(len(b.inserted)), nil
}

func (b *stubBackend) ClaimOldest(context.Context) (*Message, error) {
	return b.claim, b.claimErr
}

func (b *stubBackend) Transition(_ context.Context, id int64, from, to State) error {
	b.transitions = append(b.transitions, fmt.Sprintf("%d:%s->%s", id, from, to))
	return b.transErr
}

func (b *stubBackend) Lookup(context.Context, int64) (*Message, error) {
	return b.lookup, b.lookupErr
}

func (b *stubBackend) Counts(context.Context) (map[State]int, error) {
	return b.counts, b.countsErr
}

func (b *stubBackend) Close() error {
	b.closed = true
	return nil
}

func TestQueueAddNormalizesNilPayload(t *testing.T) {
	backend := &stubBackend{}
	q := New(backend)

	if _, err := q.Add(context.Background(), nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(backend.inserted) != 1 || backend.inserted[0] == nil {
		t.Fatalf("expected non-nil empty payload, got %#v", backend.inserted)
	}
}

func TestQueueTransitionsUseReservedSource(t *testing.T) {
	backend := &stubBackend{}
	q := New(backend)
	ctx := context.Background()

	if err := q.Complete(ctx, 7); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := q.Fail(ctx, 8); err != nil {
		t.Fatalf("fail: %v", err)
	}
	want := []string{"7:RESERVED->COMPLETED", "8:RESERVED->PENDING"}
	if strings.Join(backend.transitions, ",") != strings.Join(want, ",") {
		t.Fatalf("got %v want %v", backend.transitions, want)
	}
}

func TestQueueWrapsBackendErrors(t *testing.T) {
	storeDown := fmt.Errorf("%w: disk gone", ErrStoreUnavailable)
	tests := []struct {
		name     string
		backend  *stubBackend
		call     func(*Queue) error
		wantKind Kind
		wantOp   string
		wantID   int64
	}{
		{
			name:     "add unavailable",
			backend:  &stubBackend{insertErr: storeDown},
			call:     func(q *Queue) error { _, err := q.Add(context.Background(), []byte("x")); return err },
			wantKind: KindStoreUnavailable,
			wantOp:   "add",
		},
		{
			name:     "reserve unclassified",
			backend:  &stubBackend{claimErr: errors.New("boom")},
			call:     func(q *Queue) error { _, err := q.Reserve(context.Background()); return err },
			wantKind: KindStoreFailure,
			wantOp:   "reserve",
		},
		{
			name:     "complete not found",
			backend:  &stubBackend{transErr: ErrNotFound},
			call:     func(q *Queue) error { return q.Complete(context.Background(), 3) },
			wantKind: KindNotFound,
			wantOp:   "complete",
			wantID:   3,
		},
		{
			name:     "fail wrong state",
			backend:  &stubBackend{transErr: &TransitionError{ID: 4, Current: StateCompleted, Want: StateReserved}},
			call:     func(q *Queue) error { return q.Fail(context.Background(), 4) },
			wantKind: KindInvalidStateTransition,
			wantOp:   "fail",
			wantID:   4,
		},
		{
			name:     "get missing",
			backend:  &stubBackend{},
			call:     func(q *Queue) error { _, err := q.Get(context.Background(), 5); return err },
			wantKind: KindNotFound,
			wantOp:   "get",
			wantID:   5,
		},
		{
			name:     "size bad state",
			backend:  &stubBackend{counts: map[State]int{"DEAD": 1}},
			call:     func(q *Queue) error { _, err := q.Size(context.Background()); return err },
			wantKind: KindIntegrityViolation,
			wantOp:   "size",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call(New(tt.backend))
			var qerr *Error
			if !errors.As(err, &qerr) {
				t.Fatalf("expected *Error, got %T %v", err, err)
			}
			if qerr.Kind != tt.wantKind || qerr.Op != tt.wantOp || qerr.ID != tt.wantID {
				t.Fatalf("got kind=%s op=%s id=%d", qerr.Kind, qerr.Op, qerr.ID)
			}
			if KindOf(err) != tt.wantKind {
				t.Fatalf("KindOf: got %s", KindOf(err))
			}
		})
	}
}

func TestQueueFillsTransitionOp(t *testing.T) {
	q := New(&stubBackend{transErr: &TransitionError{ID: 9, Current: StatePending, Want: StateReserved}})
	err := q.Complete(context.Background(), 9)
	var te *TransitionError
	if !errors.As(err, &te) || te.Op != "complete" {
		t.Fatalf("expected op on transition error, got %v", err)
	}
	if !strings.Contains(err.Error(), "complete message 9: state is PENDING, want RESERVED") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestQueueReserveEmpty(t *testing.T) {
	msg, err := New(&stubBackend{}).Reserve(context.Background())
	if err != nil || msg != nil {
		t.Fatalf("expected nil, nil; got %v, %v", msg, err)
	}
}

func TestQueueLogsWithoutPayload(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	backend := &stubBackend{claim: &Message{ID: 1, State: StateReserved, Payload: []byte("secret-bytes"), Attempts: 1}}
	q := New(backend, WithLogger(logger))

	if _, err := q.Add(context.Background(), []byte("secret-bytes")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := q.Reserve(context.Background()); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "secret-bytes") {
		t.Fatalf("payload leaked into logs: %s", out)
	}
	for _, want := range []string{`"component":"queue"`, `"` + logging.FieldMessageID + `":1`, `"payload_bytes":12`, "message reserved"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in logs: %s", want, out)
		}
	}
}

func TestQueueCloseClosesBackend(t *testing.T) {
	backend := &stubBackend{}
	if err := New(backend).Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !backend.closed {
		t.Fatal("expected backend closed")
	}
	var nilQueue *Queue
	if err := nilQueue.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}
