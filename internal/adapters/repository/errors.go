package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound            = errors.New("not found")
	ErrAthleteNotInSession = errors.New("athlete not in session")
	ErrAlreadyExists       = errors.New("already exists")
	ErrUnknownDriver       = errors.New("unknown store driver")
)
