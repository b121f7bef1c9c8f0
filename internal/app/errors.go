package service

import "errors"

// Validation errors.
var (
	ErrSessionNameRequired = errors.New("session name is required")
	ErrAthletesRequired    = errors.New("at least one athlete id is required")
	ErrBlankAthleteID      = errors.New("athlete ids must not be blank")
	ErrAthleteIDRequired   = errors.New("athlete id is required")
	ErrTestRequired        = errors.New("test is required")
)
