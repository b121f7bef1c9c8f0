package testday

import (
	"fmt"
	"math"

	"github.com/wintality/athlete-testing/internal/domain/aggregation"
)

// verifyDashboard recomputes the dashboard from the recorded values and
// lists every difference from the served one. Names are not compared.
func verifyDashboard(roster []string, recorded map[string]map[string]*float64, got aggregation.Dashboard, rankingSize int) []string {
	engine := aggregation.NewEngine(aggregation.WithRankingSize(rankingSize))
	want := engine.AggregateValues(roster, recorded, nil)

	var out []string
	if len(want) != len(got.Tests) {
		out = append(out, fmt.Sprintf("expected %d tests, got %d", len(want), len(got.Tests)))
	}
	for _, w := range want {
		g, ok := got.Lookup(w.Test)
		if !ok {
			out = append(out, fmt.Sprintf("%s: missing", w.Test))
			continue
		}
		if !sameAverage(w.Average, g.Average) {
			out = append(out, fmt.Sprintf("%s: average %v, got %v", w.Test, deref(w.Average), deref(g.Average)))
		}
		if len(w.Top) != len(g.Top) {
			out = append(out, fmt.Sprintf("%s: %d ranked, got %d", w.Test, len(w.Top), len(g.Top)))
			continue
		}
		for i := range w.Top {
			if w.Top[i].AthleteID != g.Top[i].AthleteID {
				out = append(out, fmt.Sprintf("%s: rank %d is %s, got %s", w.Test, i+1, w.Top[i].AthleteID, g.Top[i].AthleteID))
			}
		}
	}
	return out
}

func sameAverage(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return math.Abs(*a-*b) <= averageTolerance
}

func deref(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
