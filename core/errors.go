package core

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy means the operation cannot proceed right now; retrying may succeed.
	ErrBusy = errors.New("busy")

	// ErrNonExistent means a referenced endpoint, slot or task does not exist.
	ErrNonExistent = errors.New("non-existent")

	// ErrStopping means a stop request is already underway.
	ErrStopping = errors.New("stopping")

	// ErrAlreadyExists means the target is already connected or registered.
	ErrAlreadyExists = errors.New("already exists")

	// ErrAny is matched by every error created with AnyError.
	ErrAny = errors.New("error")

	// ErrIO is matched by every error created with IOError.
	ErrIO = errors.New("io error")
)

type anyError struct {
	msg string
}

func (e *anyError) Error() string        { return e.msg }
func (e *anyError) Is(target error) bool { return target == ErrAny }

// AnyError returns an opaque user-level failure carrying msg.
func AnyError(msg string) error {
	return &anyError{msg: msg}
}

type ioError struct {
	cause error
}

func (e *ioError) Error() string        { return fmt.Sprintf("io error: %v", e.cause) }
func (e *ioError) Unwrap() error        { return e.cause }
func (e *ioError) Is(target error) bool { return target == ErrIO }

// IOError tags err as coming from an external I/O collaborator.
// It returns nil when err is nil.
func IOError(err error) error {
	if err == nil {
		return nil
	}
	return &ioError{cause: err}
}
