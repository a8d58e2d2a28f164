// Package fault classifies errors raised by the decision core.
package fault

import (
	"errors"
	"fmt"
)

// #region kind
// Kind names the error category a failure belongs to. Degraded inputs and
// insufficient evidence resolve to defaults or empty results and have no kind.
type Kind string

const (
	// KindInvalidArgument marks a caller bug such as an empty candidate set.
	KindInvalidArgument Kind = "INVALID_ARGUMENT"
	// KindCollaboratorFailure marks a failed embedding, store or metric call.
	KindCollaboratorFailure Kind = "COLLABORATOR_FAILURE"
)

// #endregion kind

// #region error
// Error is a classified failure.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, msg, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same kind with no message set, so
// errors.Is(err, &Error{Kind: KindInvalidArgument}) works as a kind check.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Op == ""
}

// #endregion error

// #region constructors
// InvalidArgument builds a KindInvalidArgument error.
func InvalidArgument(op, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidArgument, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Collaborator wraps a failed collaborator call.
func Collaborator(op string, cause error) *Error {
	return &Error{Kind: KindCollaboratorFailure, Op: op, Message: "collaborator call failed", Cause: cause}
}

// #endregion constructors

// #region helpers
// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	return errors.Is(err, &Error{Kind: kind})
}

// #endregion helpers
