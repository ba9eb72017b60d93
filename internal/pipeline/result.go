package pipeline

import "fmt"

// State is the outcome of a pipeline stage that may legitimately find
// nothing to do.
type State int

const (
	StateNotFound State = iota
	StateFound
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateFound:
		return "found"
	case StateNotFound:
		return "not found"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Result carries a stage's value together with its State. Value is only
// meaningful when State is StateFound; Err only when StateFailed.
type Result[T any] struct {
	Value T
	State State
	Err   error
}

// Found wraps a successful value.
func Found[T any](v T) Result[T] {
	return Result[T]{Value: v, State: StateFound}
}

// NotFound reports that the stage had nothing to return.
func NotFound[T any]() Result[T] {
	return Result[T]{State: StateNotFound}
}

// Failed wraps an error.
func Failed[T any](err error) Result[T] {
	return Result[T]{State: StateFailed, Err: err}
}

// Unwrap converts the result into the conventional value/error pair,
// mapping StateNotFound to ErrNotFound.
func (r Result[T]) Unwrap() (T, error) {
	switch r.State {
	case StateFound:
		return r.Value, nil
	case StateFailed:
		return r.Value, r.Err
	default:
		return r.Value, ErrNotFound
	}
}
