package aggregation

import "errors"

// ErrNoRecord is returned when an athlete has no record in the session.
var ErrNoRecord = errors.New("athlete has no record in session")
