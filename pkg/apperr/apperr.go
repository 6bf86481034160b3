// Package apperr classifies errors so transports can map them to responses
// without knowing which package produced them.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	Internal Kind = iota
	Validation
	NotFound
	Conflict
	Forbidden
	Unauthorized
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation_error"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Forbidden:
		return "forbidden"
	case Unauthorized:
		return "unauthorized"
	default:
		return "internal_error"
	}
}

// Error is a classified error. Domain packages declare their sentinels as
// *Error values and wrap them with fmt.Errorf to add detail.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first *Error in err's chain, Internal when
// there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Detail is the message safe to show to a client.
func Detail(err error) string {
	if KindOf(err) == Internal {
		return "internal server error"
	}
	return err.Error()
}
