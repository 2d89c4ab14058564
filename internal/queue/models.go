package queue

import (
	"fmt"
	"strings"
)

// State represents the lifecycle position of a message.
type State string

const (
	StatePending   State = "PENDING"
	StateReserved  State = "RESERVED"
	StateCompleted State = "COMPLETED"
)

var allStates = []State{
	StatePending,
	StateReserved,
	StateCompleted,
}

// AllStates returns the states in lifecycle order.
func AllStates() []State {
	out := make([]State, len(allStates))
	copy(out, allStates)
	return out
}

// ParseState maps the stored textual form back to a State. Unknown values
// are rejected rather than passed through.
func ParseState(raw string) (State, error) {
	switch State(strings.TrimSpace(raw)) {
	case StatePending:
		return StatePending, nil
	case StateReserved:
		return StateReserved, nil
	case StateCompleted:
		return StateCompleted, nil
	default:
		return "", fmt.Errorf("%w: unknown message state %q", ErrIntegrityViolation, raw)
	}
}

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	_, err := ParseState(string(s))
	return err == nil
}

func (s State) String() string {
	return string(s)
}

// Message is a queue entry together with the payload it references.
type Message struct {
	ID        int64
	State     State
	PayloadID int64
	Payload   []byte
	// Attempts counts how many times the message has been reserved.
	Attempts int
}

// Sizes is a per-state count of messages taken from one read snapshot.
type Sizes struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Reserved  int `json:"reserved"`
	Completed int `json:"completed"`
}

// sizesFromCounts folds a backend count map into Sizes. Every key must be a
// known state.
func sizesFromCounts(counts map[State]int) (Sizes, error) {
	var sizes Sizes
	for state, count := range counts {
		switch state {
		case StatePending:
			sizes.Pending += count
		case StateReserved:
			sizes.Reserved += count
		case StateCompleted:
			sizes.Completed += count
		default:
			return Sizes{}, fmt.Errorf("%w: unknown message state %q", ErrIntegrityViolation, string(state))
		}
		sizes.Total += count
	}
	return sizes, nil
}

type transition struct {
	op   string
	from State
	to   State
}

var (
	completeTransition = transition{op: "complete", from: StateReserved, to: StateCompleted}
	failTransition     = transition{op: "fail", from: StateReserved, to: StatePending}
)

// DatabaseHealth captures diagnostic information about a SQLite queue database.
type DatabaseHealth struct {
	DBPath           string
	InMemory         bool
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	TablesPresent    []string
	MissingTables    []string
	MissingColumns   []string
	IntegrityCheck   bool
	ForeignKeyErrors int
	TotalMessages    int
	TotalPayloads    int
	Error            string
}
