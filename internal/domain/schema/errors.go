package schema

import "errors"

// Sentinel kinds for record and catalog errors.
var (
	ErrUnknownField = errors.New("unknown test field")
	ErrUnknownTest  = errors.New("unknown test")
	ErrInvalidValue = errors.New("invalid measurement value")
	ErrEmptyPatch   = errors.New("no fields to update")
)
