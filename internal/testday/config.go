// Package testday drives a running athlete testing service through a
// simulated testing day: sign-ups, one session, concurrent result entry,
// then a dashboard check against a locally computed expectation.
package testday

import "time"

// Config holds configuration for a simulated testing day.
type Config struct {
	BaseURL     string        // Base URL of the service
	NumAthletes int           // Number of athletes to sign up
	Workers     int           // Number of concurrent workers
	Timeout     time.Duration // HTTP request timeout
	RankingSize int           // Ranking length the server is configured with
	Seed        uint64        // Seed for generated results
	OutputFile  string        // Optional JSON file receiving the generated results
	Verbose     bool          // Enable verbose logging
}

// Stats holds run statistics.
type Stats struct {
	AthletesSignedUp int
	SignUpsFailed    int
	PatchesSent      int
	PatchesFailed    int
	FieldsRecorded   int
	TestsVerified    int
	Mismatches       int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}

// athleteRequest is the sign-up body.
type athleteRequest struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Team         string `json:"team"`
	JerseyNumber int    `json:"jerseyNumber"`
}

type athleteResponse struct {
	ID string `json:"id"`
}

type sessionRequest struct {
	SessionName string   `json:"sessionName"`
	AthleteIDs  []string `json:"athleteIds"`
}

type sessionResponse struct {
	SessionID string `json:"sessionId"`
}
