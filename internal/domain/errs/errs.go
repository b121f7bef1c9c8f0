// Package errs defines the error kinds surfaced to callers and the
// operation-tagged error type used to carry them.
package errs

import (
	"errors"
	"fmt"
)

// Kind is a sentinel classifying an error for transports.
type Kind struct {
	code string
}

func (k *Kind) Error() string { return k.code }

// Code returns the wire code of the kind.
func (k *Kind) Code() string { return k.code }

// Error kinds.
var (
	ErrInvalidArgument = &Kind{code: "invalid-argument"}
	ErrNotFound        = &Kind{code: "not-found"}
	ErrInternal        = &Kind{code: "internal"}
)

// Error tags a failure with the operation that produced it and its kind.
type Error struct {
	Op   string
	Kind *Kind
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil && e.Kind == nil:
		return e.Op
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind.code)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewKind returns an error of kind k with no underlying cause.
func NewKind(op string, k *Kind) error {
	return &Error{Op: op, Kind: k}
}

// WrapKind wraps err as kind k. A nil err yields nil.
func WrapKind(op string, k *Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: k, Err: err}
}

// Wrap tags err with op, keeping any kind already present and defaulting
// to ErrInternal otherwise. A nil err yields nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: KindOf(err), Err: err}
}

// Invalidf builds an invalid-argument error with a formatted message.
func Invalidf(op, format string, args ...any) error {
	return &Error{Op: op, Kind: ErrInvalidArgument, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the kind carried by err, ErrInternal when none is.
func KindOf(err error) *Kind {
	var k *Kind
	if errors.As(err, &k) {
		return k
	}
	return ErrInternal
}

// Code returns the wire code for err.
func Code(err error) string {
	return KindOf(err).code
}

// Message returns the cause text with the outer op prefixes stripped.
func Message(err error) string {
	for {
		e, ok := err.(*Error)
		if !ok {
			return err.Error()
		}
		if e.Err == nil {
			if e.Kind == nil {
				return e.Op
			}
			return e.Kind.code
		}
		err = e.Err
	}
}
