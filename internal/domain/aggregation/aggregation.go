// Package aggregation derives dashboard views from session records:
// per-test averages and rankings, and per-athlete attempt feedback.
// Nothing computed here is persisted.
package aggregation

import (
	"sort"

	"github.com/wintality/athlete-testing/internal/domain/model"
	"github.com/wintality/athlete-testing/internal/domain/schema"
	"github.com/wintality/athlete-testing/internal/domain/types"
)

// DefaultRankingSize is the number of athletes listed per test.
const DefaultRankingSize = 5

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithRankingSize sets how many athletes each ranking keeps.
// Non-positive values are ignored.
func WithRankingSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.rankingSize = n
		}
	}
}

// Engine computes dashboards. It holds no state besides configuration and
// is safe for concurrent use.
type Engine struct {
	rankingSize int
}

// NewEngine creates an engine with the given options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{rankingSize: DefaultRankingSize}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RankingSize reports the configured ranking length.
func (e *Engine) RankingSize() int { return e.rankingSize }

// Summary is the aggregate of one base test across a session.
type Summary struct {
	Test         string        `json:"test"`
	Label        string        `json:"label"`
	Unit         string        `json:"unit,omitempty"`
	TimeBased    bool          `json:"timeBased"`
	Average      *float64      `json:"average"`
	Participants int           `json:"participants"`
	Top          []types.Entry `json:"top"`
}

// Dashboard is the aggregate of a whole session.
type Dashboard struct {
	SessionID   string    `json:"sessionId"`
	SessionName string    `json:"sessionName"`
	Tests       []Summary `json:"tests"`
}

// Lookup returns the summary of a base test.
func (d Dashboard) Lookup(test string) (Summary, bool) {
	for _, s := range d.Tests {
		if s.Test == test {
			return s, true
		}
	}
	return Summary{}, false
}

// Averages maps each base test to its global average, nil when no athlete
// was measured.
func (d Dashboard) Averages() map[string]*float64 {
	out := make(map[string]*float64, len(d.Tests))
	for _, s := range d.Tests {
		out[s.Test] = s.Average
	}
	return out
}

// Rankings maps each base test to its ranked entries.
func (d Dashboard) Rankings() map[string][]types.Entry {
	out := make(map[string][]types.Entry, len(d.Tests))
	for _, s := range d.Tests {
		out[s.Test] = s.Top
	}
	return out
}

// Aggregate computes the dashboard for s. Athletes missing from the
// athletes map are displayed by id.
func (e *Engine) Aggregate(s model.Session, athletes map[string]model.Athlete) Dashboard {
	values := make(map[string]map[string]*float64, len(s.Tests))
	for id, rec := range s.Tests {
		values[id] = rec.Values()
	}
	names := make(map[string]string, len(athletes))
	for id, a := range athletes {
		names[id] = a.DisplayName()
	}
	return Dashboard{
		SessionID:   s.ID,
		SessionName: s.Name,
		Tests:       e.AggregateValues(s.Athletes, values, names),
	}
}

type athleteMean struct {
	athleteID string
	mean      float64
}

// AggregateValues aggregates raw per-athlete field maps. Keys outside the
// catalog are grouped by the attempt naming convention. Every catalog test
// is reported; foreign tests only when measured.
func (e *Engine) AggregateValues(roster []string, values map[string]map[string]*float64, names map[string]string) []Summary {
	roster = distinct(roster)

	means := make(map[string][]athleteMean)
	for _, athleteID := range roster {
		for test, attempts := range groupAttempts(values[athleteID]) {
			means[test] = append(means[test], athleteMean{athleteID: athleteID, mean: mean(attempts)})
		}
	}

	tests := make([]string, 0, len(means)+len(schema.Catalog()))
	for _, d := range schema.Catalog() {
		tests = append(tests, d.Name)
	}
	for test := range means {
		if schema.TestOrder(test) < 0 {
			tests = append(tests, test)
		}
	}
	schema.SortTests(tests)

	out := make([]Summary, 0, len(tests))
	for _, test := range tests {
		out = append(out, e.summarize(test, means[test], names))
	}
	return out
}

func (e *Engine) summarize(test string, ms []athleteMean, names map[string]string) Summary {
	s := Summary{
		Test:         test,
		Label:        test,
		TimeBased:    schema.TimeBased(test),
		Participants: len(ms),
		Top:          []types.Entry{},
	}
	if d, ok := schema.DefinitionOf(test); ok {
		s.Label = d.Label
		s.Unit = d.Unit
	}
	if len(ms) == 0 {
		return s
	}

	var sum float64
	for _, m := range ms {
		sum += m.mean
	}
	avg := sum / float64(len(ms))
	s.Average = &avg

	ranked := append([]athleteMean(nil), ms...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if s.TimeBased {
			return ranked[i].mean < ranked[j].mean
		}
		return ranked[i].mean > ranked[j].mean
	})
	if len(ranked) > e.rankingSize {
		ranked = ranked[:e.rankingSize]
	}
	for i, m := range ranked {
		name := names[m.athleteID]
		if name == "" {
			name = m.athleteID
		}
		s.Top = append(s.Top, types.Entry{Rank: i + 1, AthleteID: m.athleteID, Name: name, Value: m.mean})
	}
	return s
}

// groupAttempts collects measured values per base test in attempt order.
func groupAttempts(fields map[string]*float64) map[string][]float64 {
	slots := make([]schema.Slot, 0, len(fields))
	for key, v := range fields {
		if v == nil {
			continue
		}
		slots = append(slots, schema.ParseField(key))
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Attempt != slots[j].Attempt {
			return slots[i].Attempt < slots[j].Attempt
		}
		return slots[i].Field < slots[j].Field
	})
	out := make(map[string][]float64)
	for _, slot := range slots {
		out[slot.Test] = append(out[slot.Test], *fields[slot.Field])
	}
	return out
}

func mean(vs []float64) float64 {
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
