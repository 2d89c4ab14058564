package queue

import (
	"errors"
	"fmt"
)

// Kind classifies queue failures so callers can react without string matching.
type Kind string

const (
	KindStoreUnavailable       Kind = "store_unavailable"
	KindNotFound               Kind = "not_found"
	KindInvalidStateTransition Kind = "invalid_state_transition"
	KindIntegrityViolation     Kind = "integrity_violation"
	KindStoreFailure           Kind = "store_failure"
)

var (
	// ErrStoreUnavailable reports that the backing store could not be opened,
	// initialized, or reached.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrNotFound reports an operation on a message id that does not exist.
	ErrNotFound = errors.New("message not found")
	// ErrInvalidStateTransition reports an operation on a message that is not
	// in the required source state.
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrIntegrityViolation reports broken message/payload linkage or an
	// unrecognized stored state.
	ErrIntegrityViolation = errors.New("integrity violation")
	// ErrStoreFailure reports an I/O or constraint failure raised by a store
	// that was otherwise reachable.
	ErrStoreFailure = errors.New("store failure")
)

var kindSentinels = []struct {
	kind Kind
	err  error
}{
	{KindNotFound, ErrNotFound},
	{KindInvalidStateTransition, ErrInvalidStateTransition},
	{KindIntegrityViolation, ErrIntegrityViolation},
	{KindStoreUnavailable, ErrStoreUnavailable},
	{KindStoreFailure, ErrStoreFailure},
}

// ErrorClassifier allows errors to declare their classification.
type ErrorClassifier interface {
	ErrorKind() string
}

// TransitionError describes a complete or fail call against a message that
// was not Reserved.
type TransitionError struct {
	ID      int64
	Op      string
	Current State
	Want    State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s message %d: state is %s, want %s", e.Op, e.ID, e.Current, e.Want)
}

// Is matches ErrInvalidStateTransition.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}

// ErrorKind implements ErrorClassifier.
func (e *TransitionError) ErrorKind() string {
	return string(KindInvalidStateTransition)
}

// Error is returned by every Queue operation. It records the operation, the
// message id when one applies, and the failure kind.
type Error struct {
	Op   string
	ID   int64
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.ID > 0 {
		return fmt.Sprintf("queue %s %d: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("queue %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets an error whose cause carries no sentinel still match the sentinel
// for its kind.
func (e *Error) Is(target error) bool {
	for _, s := range kindSentinels {
		if s.kind == e.Kind {
			return target == s.err
		}
	}
	return false
}

// ErrorKind implements ErrorClassifier.
func (e *Error) ErrorKind() string {
	return string(e.Kind)
}

// KindOf returns the classification of err. Errors carrying no known kind are
// treated as store failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var qerr *Error
	if errors.As(err, &qerr) {
		return qerr.Kind
	}
	for _, s := range kindSentinels {
		if errors.Is(err, s.err) {
			return s.kind
		}
	}
	return KindStoreFailure
}

func wrapOp(op string, id int64, err error) error {
	if err == nil {
		return nil
	}
	var qerr *Error
	if errors.As(err, &qerr) {
		return err
	}
	return &Error{Op: op, ID: id, Kind: KindOf(err), Err: err}
}
