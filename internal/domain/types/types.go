// Package types contains common types used across the application
package types

// Entry is one ranked athlete within a base test.
type Entry struct {
	Rank      int     `json:"rank"`
	AthleteID string  `json:"athleteId"`
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
}

// Stats summarizes what the store currently holds.
type Stats struct {
	Sessions       int `json:"sessions"`
	Athletes       int `json:"athletes"`
	RosterEntries  int `json:"rosterEntries"`
	MeasuredFields int `json:"measuredFields"`
}
