package queue

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

type backendFactory struct {
	name string
	new  func(t *testing.T) Backend
}

func contractBackendFactories() []backendFactory {
	out := []backendFactory{
		{
			name: "memory",
			new: func(t *testing.T) Backend {
				t.Helper()
				s := NewMemoryStore()
				t.Cleanup(func() { _ = s.Close() })
				return s
			},
		},
		{
			name: "sqlite",
			new: func(t *testing.T) Backend {
				t.Helper()
				s, err := OpenSQLite(filepath.Join(t.TempDir(), "qoxide.db"))
				if err != nil {
					t.Fatalf("open sqlite store: %v", err)
				}
				t.Cleanup(func() { _ = s.Close() })
				return s
			},
		},
		{
			name: "sqlite-memory",
			new: func(t *testing.T) Backend {
				t.Helper()
				s, err := OpenSQLite(MemoryPath)
				if err != nil {
					t.Fatalf("open in-memory sqlite store: %v", err)
				}
				t.Cleanup(func() { _ = s.Close() })
				return s
			},
		},
	}

	dsn := strings.TrimSpace(os.Getenv("QOXIDE_TEST_POSTGRES_DSN"))
	if dsn != "" {
		out = append(out, backendFactory{
			name: "postgres",
			new: func(t *testing.T) Backend {
				t.Helper()
				s, err := OpenPostgres(dsn)
				if err != nil {
					t.Fatalf("open postgres store: %v", err)
				}
				if _, err := s.db.Exec(`TRUNCATE messages, payloads RESTART IDENTITY`); err != nil {
					t.Fatalf("truncate postgres tables: %v", err)
				}
				t.Cleanup(func() { _ = s.Close() })
				return s
			},
		})
	}

	return out
}

func mustAdd(t *testing.T, q *Queue, payload []byte) int64 {
	t.Helper()
	id, err := q.Add(context.Background(), payload)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	return id
}

func mustReserve(t *testing.T, q *Queue) *Message {
	t.Helper()
	msg, err := q.Reserve(context.Background())
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if msg == nil {
		t.Fatal("reserve: expected a message, got none")
	}
	return msg
}

func mustState(t *testing.T, q *Queue, id int64, want State) {
	t.Helper()
	msg, err := q.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get %d: %v", id, err)
	}
	if msg.State != want {
		t.Fatalf("message %d: state %s, want %s", id, msg.State, want)
	}
}

func TestContract_AddReturnsIncreasingIDs(t *testing.T) {
	for _, factory := range contractBackendFactories() {
		t.Run(factory.name, func(t *testing.T) {
			q := New(factory.new(t))

			first := mustAdd(t, q, []byte("a"))
			second := mustAdd(t, q, []byte("b"))
			if second <= first {
				t.Fatalf("expected increasing ids, got %d then %d", first, second)
			}
			mustState(t, q, first, StatePending)
			mustState(t, q, second, StatePending)
		})
	}
}

func TestContract_ReserveIsFIFO(t *testing.T) {
	for _, factory := range contractBackendFactories() {
		t.Run(factory.name, func(t *testing.T) {
			q := New(factory.new(t))

			payloads := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
			ids := make([]int64, 0, len(payloads))
			for _, p := range payloads {
				ids = append(ids, mustAdd(t, q, p))
			}

			for i, wantID := range ids {
				msg := mustReserve(t, q)
				if msg.ID != wantID {
					t.Fatalf("reserve %d: got id %d want %d", i, msg.ID, wantID)
				}
				if !bytes.Equal(msg.Payload, payloads[i]) {
					t.Fatalf("reserve %d: got payload %q want %q", i, msg.Payload, payloads[i])
				}
				if msg.State != StateReserved {
					t.Fatalf("reserve %d: state %s", i, msg.State)
				}
			}

			msg, err := q.Reserve(context.Background())
			if err != nil {
				t.Fatalf("reserve on drained queue: %v", err)
			}
			if msg != nil {
				t.Fatalf("expected no message, got id %d", msg.ID)
			}
		})
	}
}

func TestContract_ReserveEmptyQueue(t *testing.T) {
	for _, factory := range contractBackendFactories() {
		t.Run(factory.name, func(t *testing.T) {
			q := New(factory.new(t))

			msg, err := q.Reserve(context.Background())
			if err != nil {
				t.Fatalf("reserve: %v", err)
			}
			if msg != nil {
				t.Fatalf("expected nil message, got %+v", msg)
			}
			sizes, err := q.Size(context.Background())
			if err != nil {
				t.Fatalf("size: %v", err)
			}
			if sizes != (Sizes{}) {
				t.Fatalf("empty reserve changed sizes: %+v", sizes)
			}
		})
	}
}

func TestContract_ConcurrentReservesAreDisjoint(t *testing.T) {
	const (
		messages = 60
		workers  = 6
	)
	for _, factory := range contractBackendFactories() {
		t.Run(factory.name, func(t *testing.T) {
			q := New(factory.new(t))
			for i := 0; i < messages; i++ {
				mustAdd(t, q, []byte{byte(i)})
			}

			var (
				mu   sync.Mutex
				seen = make(map[int64]int)
				errs []error
				wg   sync.WaitGroup
			)
			for w := 0; w < workers; w++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for {
						msg, err := q.Reserve(context.Background())
						if err != nil {
							mu.Lock()
							errs = append(errs, err)
							mu.Unlock()
							return
						}
						if msg == nil {
							return
						}
						mu.Lock()
						seen[msg.ID]++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			if len(errs) > 0 {
				t.Fatalf("concurrent reserve errors: %v", errs)
			}
			if len(seen) != messages {
				t.Fatalf("expected %d distinct reservations, got %d", messages, len(seen))
			}
			for id, n := range seen {
				if n != 1 {
					t.Fatalf("message %d reserved %d times", id, n)
				}
			}
			sizes, err := q.Size(context.Background())
			if err != nil {
				t.Fatalf("size: %v", err)
			}
			if sizes.Reserved != messages || sizes.Pending != 0 {
				t.Fatalf("unexpected sizes after drain: %+v", sizes)
			}
		})
	}
}

func TestContract_CompleteAndFailRequireReserved(t *testing.T) {
	for _, factory := range contractBackendFactories() {
		t.Run(factory.name, func(t *testing.T) {
			ctx := context.Background()
			q := New(factory.new(t))

			pending := mustAdd(t, q, []byte("pending"))

			err := q.Complete(ctx, pending)
			var te *TransitionError
			if !errors.As(err, &te) {
				t.Fatalf("complete pending: expected TransitionError, got %v", err)
			}
			if te.Current != StatePending || te.Want != StateReserved || te.Op != "complete" {
				t.Fatalf("unexpected transition error: %+v", te)
			}
			if !errors.Is(err, ErrInvalidStateTransition) {
				t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
			}
			if KindOf(err) != KindInvalidStateTransition {
				t.Fatalf("unexpected kind %q", KindOf(err))
			}
			mustState(t, q, pending, StatePending)

			if err := q.Fail(ctx, pending); !errors.Is(err, ErrInvalidStateTransition) {
				t.Fatalf("fail pending: expected ErrInvalidStateTransition, got %v", err)
			}
			mustState(t, q, pending, StatePending)

			msg := mustReserve(t, q)
			if err := q.Complete(ctx, msg.ID); err != nil {
				t.Fatalf("complete reserved: %v", err)
			}
			mustState(t, q, msg.ID, StateCompleted)

			err = q.Complete(ctx, msg.ID)
			if !errors.As(err, &te) || te.Current != StateCompleted {
				t.Fatalf("complete twice: expected TransitionError from COMPLETED, got %v", err)
			}
			if err := q.Fail(ctx, msg.ID); !errors.Is(err, ErrInvalidStateTransition) {
				t.Fatalf("fail completed: expected ErrInvalidStateTransition, got %v", err)
			}
			mustState(t, q, msg.ID, StateCompleted)
		})
	}
}

func TestContract_UnknownIDIsNotFound(t *testing.T) {
	for _, factory := range contractBackendFactories() {
		t.Run(factory.name, func(t *testing.T) {
			ctx := context.Background()
			q := New(factory.new(t))
			mustAdd(t, q, []byte("x"))

			for name, op := range map[string]func(context.Context, int64) error{
				"complete": q.Complete,
				"fail":     q.Fail,
			} {
				err := op(ctx, 9999)
				if !errors.Is(err, ErrNotFound) {
					t.Fatalf("%s unknown id: expected ErrNotFound, got %v", name, err)
				}
				if KindOf(err) != KindNotFound {
					t.Fatalf("%s unknown id: kind %q", name, KindOf(err))
				}
			}
			if _, err := q.Get(ctx, 9999); !errors.Is(err, ErrNotFound) {
				t.Fatalf("get unknown id: expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestContract_FailReturnsMessageToPending(t *testing.T) {
	for _, factory := range contractBackendFactories() {
		t.Run(factory.name, func(t *testing.T) {
			ctx := context.Background()
			q := New(factory.new(t))

			id := mustAdd(t, q, []byte("retry me"))
			first := mustReserve(t, q)
			if first.ID != id || first.Attempts != 1 {
				t.Fatalf("first reserve: %+v", first)
			}
			if err := q.Fail(ctx, id); err != nil {
				t.Fatalf("fail: %v", err)
			}
			mustState(t, q, id, StatePending)

			second := mustReserve(t, q)
			if second.ID != id {
				t.Fatalf("expected failed message %d back, got %d", id, second.ID)
			}
			if second.Attempts != 2 {
				t.Fatalf("expected 2 attempts, got %d", second.Attempts)
			}
			if !bytes.Equal(second.Payload, []byte("retry me")) {
				t.Fatalf("payload changed across fail: %q", second.Payload)
			}
		})
	}
}

func TestContract_FailedMessageKeepsItsPlace(t *testing.T) {
	for _, factory := range contractBackendFactories() {
		t.Run(factory.name, func(t *testing.T) {
			ctx := context.Background()
			q := New(factory.new(t))

			older := mustAdd(t, q, []byte("older"))
			msg := mustReserve(t, q)
			newer := mustAdd(t, q, []byte("newer"))
			if err := q.Fail(ctx, msg.ID); err != nil {
				t.Fatalf("fail: %v", err)
			}

			if got := mustReserve(t, q); got.ID != older {
				t.Fatalf("expected older message %d first, got %d", older, got.ID)
			}
			if got := mustReserve(t, q); got.ID != newer {
				t.Fatalf("expected newer message %d second, got %d", newer, got.ID)
			}
		})
	}
}

func TestContract_SizeCountsByState(t *testing.T) {
	for _, factory := range contractBackendFactories() {
		t.Run(factory.name, func(t *testing.T) {
			ctx := context.Background()
			q := New(factory.new(t))

			for i := 0; i < 5; i++ {
				mustAdd(t, q, []byte{byte(i)})
			}
			first := mustReserve(t, q)
			mustReserve(t, q)
			if err := q.Complete(ctx, first.ID); err != nil {
				t.Fatalf("complete: %v", err)
			}

			sizes, err := q.Size(ctx)
			if err != nil {
				t.Fatalf("size: %v", err)
			}
			want := Sizes{Total: 5, Pending: 3, Reserved: 1, Completed: 1}
			if sizes != want {
				t.Fatalf("got %+v want %+v", sizes, want)
			}
			if sizes.Total != sizes.Pending+sizes.Reserved+sizes.Completed {
				t.Fatalf("total does not equal the sum of states: %+v", sizes)
			}
		})
	}
}

func TestContract_PayloadsRoundTripExactly(t *testing.T) {
	large := make([]byte, 1<<20)
	for i := range large {
		large[i] = byte(i * 7)
	}
	cases := []struct {
		name    string
		payload []byte
	}{
		{name: "empty", payload: []byte{}},
		{name: "nil", payload: nil},
		{name: "binary", payload: []byte{0x00, 0xff, 0x00, 0x10, '\n'}},
		{name: "1MiB", payload: large},
	}
	for _, factory := range contractBackendFactories() {
		t.Run(factory.name, func(t *testing.T) {
			for _, tc := range cases {
				t.Run(tc.name, func(t *testing.T) {
					ctx := context.Background()
					q := New(factory.new(t))

					id := mustAdd(t, q, tc.payload)
					want := tc.payload
					if want == nil {
						want = []byte{}
					}

					got, err := q.Get(ctx, id)
					if err != nil {
						t.Fatalf("get: %v", err)
					}
					if got.Payload == nil || !bytes.Equal(got.Payload, want) {
						t.Fatalf("get payload mismatch: len %d want %d", len(got.Payload), len(want))
					}

					msg := mustReserve(t, q)
					if msg.Payload == nil || !bytes.Equal(msg.Payload, want) {
						t.Fatalf("reserve payload mismatch: len %d want %d", len(msg.Payload), len(want))
					}
				})
			}
		})
	}
}

func TestContract_GetDoesNotChangeState(t *testing.T) {
	for _, factory := range contractBackendFactories() {
		t.Run(factory.name, func(t *testing.T) {
			ctx := context.Background()
			q := New(factory.new(t))
			id := mustAdd(t, q, []byte("peek"))

			for i := 0; i < 3; i++ {
				msg, err := q.Get(ctx, id)
				if err != nil {
					t.Fatalf("get: %v", err)
				}
				if msg.State != StatePending || msg.Attempts != 0 {
					t.Fatalf("get mutated message: %+v", msg)
				}
			}
			if got := mustReserve(t, q); got.ID != id {
				t.Fatalf("expected %d, got %d", id, got.ID)
			}
		})
	}
}

func TestContract_ClosedBackendIsUnavailable(t *testing.T) {
	for _, factory := range contractBackendFactories() {
		t.Run(factory.name, func(t *testing.T) {
			q := New(factory.new(t))
			if err := q.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}
			_, err := q.Add(context.Background(), []byte("late"))
			if !errors.Is(err, ErrStoreUnavailable) {
				t.Fatalf("expected ErrStoreUnavailable after close, got %v", err)
			}
		})
	}
}
