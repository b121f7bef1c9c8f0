package aggregation

import (
	"fmt"

	"github.com/wintality/athlete-testing/internal/domain/model"
	"github.com/wintality/athlete-testing/internal/domain/schema"
)

// Attempt is one slot of a base test.
type Attempt struct {
	Field   string   `json:"field"`
	Attempt int      `json:"attempt"`
	Value   *float64 `json:"value"`
}

// Feedback shows one athlete's attempts at a base test with the best one
// marked.
type Feedback struct {
	SessionID   string    `json:"sessionId"`
	AthleteID   string    `json:"athleteId"`
	Name        string    `json:"name"`
	Test        string    `json:"test"`
	Label       string    `json:"label"`
	Unit        string    `json:"unit"`
	TimeBased   bool      `json:"timeBased"`
	Attempts    []Attempt `json:"attempts"`
	Best        *float64  `json:"best"`
	BestAttempt int       `json:"bestAttempt,omitempty"`
	Mean        *float64  `json:"mean"`
}

// Feedback builds the attempt breakdown of athlete a for test in s.
// The best attempt is the minimum for time-based tests and the maximum
// otherwise; the earliest attempt wins ties.
func (e *Engine) Feedback(s model.Session, a model.Athlete, test string) (Feedback, error) {
	d, ok := schema.DefinitionOf(test)
	if !ok {
		return Feedback{}, fmt.Errorf("%w: %s", schema.ErrUnknownTest, test)
	}
	rec, ok := s.Tests[a.ID]
	if !ok {
		return Feedback{}, fmt.Errorf("%w: %s", ErrNoRecord, a.ID)
	}

	fb := Feedback{
		SessionID: s.ID,
		AthleteID: a.ID,
		Name:      a.DisplayName(),
		Test:      d.Name,
		Label:     d.Label,
		Unit:      d.Unit,
		TimeBased: schema.TimeBased(d.Name),
	}
	var measured []float64
	for i, field := range d.Fields() {
		at := Attempt{Field: field, Attempt: i + 1}
		if v, ok := rec.Value(field); ok {
			at.Value = schema.Float(v)
			measured = append(measured, v)
			if fb.Best == nil || better(v, *fb.Best, fb.TimeBased) {
				fb.Best = schema.Float(v)
				fb.BestAttempt = i + 1
			}
		}
		fb.Attempts = append(fb.Attempts, at)
	}
	if len(measured) > 0 {
		fb.Mean = schema.Float(mean(measured))
	}
	return fb, nil
}

func better(v, best float64, lowerIsBetter bool) bool {
	if lowerIsBetter {
		return v < best
	}
	return v > best
}
