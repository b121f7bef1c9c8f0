package model

import (
	"fmt"
	"time"

	"github.com/wintality/athlete-testing/internal/domain/schema"
)

// Session is one testing event: a named roster of athletes and one test
// record per distinct athlete on it.
type Session struct {
	ID        string                   `json:"id"`
	Name      string                   `json:"name"`
	CreatedAt time.Time                `json:"date"`
	Athletes  []string                 `json:"athletes"`
	Tests     map[string]schema.Record `json:"tests"`
}

// NewSession builds a session whose every roster athlete holds an empty
// record. The roster is kept as given, so a repeated id shares one record.
func NewSession(id, name string, athleteIDs []string, now time.Time) Session {
	s := Session{
		ID:        id,
		Name:      name,
		CreatedAt: now,
		Athletes:  append([]string(nil), athleteIDs...),
		Tests:     make(map[string]schema.Record, len(athleteIDs)),
	}
	for _, a := range athleteIDs {
		if _, ok := s.Tests[a]; !ok {
			s.Tests[a] = schema.NewRecord()
		}
	}
	return s
}

// Clone returns a deep copy.
func (s Session) Clone() Session {
	out := s
	out.Athletes = append([]string(nil), s.Athletes...)
	out.Tests = make(map[string]schema.Record, len(s.Tests))
	for a, rec := range s.Tests {
		out.Tests[a] = rec.Clone()
	}
	return out
}

// HasAthlete reports whether id is on the roster.
func (s Session) HasAthlete(id string) bool {
	for _, a := range s.Athletes {
		if a == id {
			return true
		}
	}
	return false
}

// DistinctRoster returns roster ids in order with repeats dropped.
func (s Session) DistinctRoster() []string {
	seen := make(map[string]struct{}, len(s.Athletes))
	out := make([]string, 0, len(s.Athletes))
	for _, a := range s.Athletes {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

// AddAthletes appends ids not yet on the roster, each with an empty record,
// and returns those actually added. Existing records are left untouched.
func (s *Session) AddAthletes(ids []string) []string {
	if s.Tests == nil {
		s.Tests = make(map[string]schema.Record)
	}
	var added []string
	for _, id := range ids {
		if id == "" || s.HasAthlete(id) {
			continue
		}
		s.Athletes = append(s.Athletes, id)
		if _, ok := s.Tests[id]; !ok {
			s.Tests[id] = schema.NewRecord()
		}
		added = append(added, id)
	}
	return added
}

// Validate checks that every roster athlete owns a record.
func (s Session) Validate() error {
	for _, a := range s.Athletes {
		if _, ok := s.Tests[a]; !ok {
			return fmt.Errorf("athlete %q has no test record", a)
		}
	}
	return nil
}
