package assignment

import (
	"errors"
	"fmt"
)

// Kind classifies why the engine rejected an operation.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNotFound: the assignment, driver or vehicle does not exist.
	KindNotFound
	// KindConflict: the change would break a uniqueness or exclusivity rule.
	KindConflict
	// KindInvalidState: the assignment can no longer be edited.
	KindInvalidState
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidState:
		return "invalid_state"
	default:
		return "unknown"
	}
}

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
)

// Error is a classified rejection returned by the engine.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrConflict) and friends match on Kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrConflict:
		return e.Kind == KindConflict
	case ErrInvalidState:
		return e.Kind == KindInvalidState
	}
	return false
}

// KindOf returns the classification of err, or KindUnknown for store and
// infrastructure failures. Bare or wrapped sentinels classify as their kind.
func KindOf(err error) Kind {
	var e *Error
	switch {
	case err == nil:
		return KindUnknown
	case errors.As(err, &e):
		return e.Kind
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	}
	return KindUnknown
}

func notFound(msg string, err error) error {
	return &Error{Kind: KindNotFound, Msg: msg, Err: err}
}

func conflict(msg string, err error) error {
	return &Error{Kind: KindConflict, Msg: msg, Err: err}
}

func invalidState(msg string) error {
	return &Error{Kind: KindInvalidState, Msg: msg}
}
