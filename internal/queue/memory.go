package queue

import (
	"context"
	"fmt"
	"sync"
)

type memoryMessage struct {
	state     State
	payloadID int64
	attempts  int
}

// MemoryStore is a Backend for hosts without a SQL engine. It has no native
// conditional update, so one mutex serializes every read-modify-write.
type MemoryStore struct {
	mu            sync.Mutex
	closed        bool
	nextMessageID int64
	nextPayloadID int64
	payloads      map[int64][]byte
	messages      map[int64]*memoryMessage
	// pending holds Pending message ids in ascending order.
	pending []int64
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		payloads: make(map[int64][]byte),
		messages: make(map[int64]*memoryMessage),
	}
}

func (s *MemoryStore) checkOpen(ctx context.Context) error {
	if err := ensureContext(ctx).Err(); err != nil {
		return err
	}
	if s.closed {
		return fmt.Errorf("%w: memory store is closed", ErrStoreUnavailable)
	}
	return nil
}

// Insert implements Backend.
func (s *MemoryStore) Insert(ctx context.Context, payload []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(ctx); err != nil {
		return 0, err
	}

	s.nextPayloadID++
	s.payloads[s.nextPayloadID] = cloneBytes(payload)
	s.nextMessageID++
	id := s.nextMessageID
	s.messages[id] = &memoryMessage{state: StatePending, payloadID: s.nextPayloadID}
	s.pending = append(s.pending, id)
	return id, nil
}

// ClaimOldest implements Backend.
func (s *MemoryStore) ClaimOldest(ctx context.Context) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}
	if len(s.pending) == 0 {
		return nil, nil
	}

	id := s.pending[0]
	m, ok := s.messages[id]
	if !ok || m.state != StatePending {
		return nil, fmt.Errorf("%w: pending index references message %d", ErrIntegrityViolation, id)
	}
	data, ok := s.payloads[m.payloadID]
	if !ok {
		return nil, fmt.Errorf("%w: message %d references missing payload %d", ErrIntegrityViolation, id, m.payloadID)
	}

	s.pending = s.pending[1:]
	m.state = StateReserved
	m.attempts++
	return &Message{
		ID:        id,
		State:     m.state,
		PayloadID: m.payloadID,
		Payload:   cloneBytes(data),
		Attempts:  m.attempts,
	}, nil
}

// Transition implements Backend.
func (s *MemoryStore) Transition(ctx context.Context, id int64, from, to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(ctx); err != nil {
		return err
	}

	m, ok := s.messages[id]
	if !ok {
		return ErrNotFound
	}
	if m.state != from {
		return &TransitionError{ID: id, Current: m.state, Want: from}
	}
	m.state = to
	if to == StatePending {
		s.insertPending(id)
	}
	return nil
}

// insertPending keeps pending sorted so a failed message regains its place
// ahead of anything added after it.
func (s *MemoryStore) insertPending(id int64) {
	i := len(s.pending)
	for i > 0 && s.pending[i-1] > id {
		i--
	}
	s.pending = append(s.pending, 0)
	copy(s.pending[i+1:], s.pending[i:])
	s.pending[i] = id
}

// Lookup implements Backend.
func (s *MemoryStore) Lookup(ctx context.Context, id int64) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}

	m, ok := s.messages[id]
	if !ok {
		return nil, nil
	}
	data, ok := s.payloads[m.payloadID]
	if !ok {
		return nil, fmt.Errorf("%w: message %d references missing payload %d", ErrIntegrityViolation, id, m.payloadID)
	}
	return &Message{
		ID:        id,
		State:     m.state,
		PayloadID: m.payloadID,
		Payload:   cloneBytes(data),
		Attempts:  m.attempts,
	}, nil
}

// Counts implements Backend.
func (s *MemoryStore) Counts(ctx context.Context) (map[State]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}

	counts := make(map[State]int, len(allStates))
	for _, m := range s.messages {
		counts[m.state]++
	}
	return counts, nil
}

// Close implements Backend. Later calls report ErrStoreUnavailable.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
