package testday

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/wintality/athlete-testing/internal/adapters/http/api"
	service "github.com/wintality/athlete-testing/internal/app"
	"github.com/wintality/athlete-testing/internal/domain/aggregation"
	"github.com/wintality/athlete-testing/internal/domain/schema"
	"github.com/wintality/athlete-testing/internal/domain/types"
	"github.com/wintality/athlete-testing/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestRun(t *testing.T) {
	Convey("Given a running API server", t, func() {
		mux := http.NewServeMux()
		api.NewServer(service.New()).Register(mux)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		cfg := &Config{
			BaseURL:     srv.URL,
			NumAthletes: 12,
			Workers:     4,
			Timeout:     5 * time.Second,
			RankingSize: aggregation.DefaultRankingSize,
			Seed:        42,
			OutputFile:  filepath.Join(t.TempDir(), "results.json"),
		}

		Convey("A full testing day matches the local expectation", func() {
			stats, err := Run(context.Background(), cfg, logger.Nop())
			So(err, ShouldBeNil)
			So(stats.AthletesSignedUp, ShouldEqual, 12)
			So(stats.PatchesSent, ShouldEqual, 12)
			So(stats.PatchesFailed, ShouldEqual, 0)
			So(stats.FieldsRecorded, ShouldBeGreaterThan, 0)
			So(stats.TestsVerified, ShouldEqual, len(schema.Catalog()))
			So(stats.Mismatches, ShouldEqual, 0)
		})

		Convey("An unreachable server fails the health check", func() {
			cfg.BaseURL = "http://127.0.0.1:1"
			_, err := Run(context.Background(), cfg, logger.Nop())
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "health check")
		})
	})
}

func TestGenerator(t *testing.T) {
	Convey("Given two generators with the same seed", t, func() {
		a, b := newGenerator(7), newGenerator(7)

		Convey("They produce identical, valid patches", func() {
			pa, pb := a.results(), b.results()
			So(pa, ShouldResemble, pb)
			So(pa.Validate(), ShouldBeNil)
			for field, v := range pa {
				slot, ok := schema.Lookup(field)
				So(ok, ShouldBeTrue)
				def, _ := schema.DefinitionOf(slot.Test)
				lo, hi := bounds(def)
				So(*v, ShouldBeBetweenOrEqual, lo, hi)
			}
		})
	})
}

func TestVerifyDashboard(t *testing.T) {
	Convey("Given recorded sprint values", t, func() {
		roster := []string{"x", "y"}
		recorded := map[string]map[string]*float64{
			"x": {"sprint_5m_try1": schema.Float(1.1), "sprint_5m_try2": schema.Float(1.2)},
			"y": {"sprint_5m_try1": schema.Float(1.3)},
		}
		engine := aggregation.NewEngine()
		served := aggregation.Dashboard{Tests: engine.AggregateValues(roster, recorded, nil)}

		Convey("A matching dashboard has no mismatches", func() {
			So(verifyDashboard(roster, recorded, served, aggregation.DefaultRankingSize), ShouldBeEmpty)
		})

		Convey("A swapped ranking is reported", func() {
			for i, s := range served.Tests {
				if s.Test == "sprint_5m" {
					served.Tests[i].Top = []types.Entry{s.Top[1], s.Top[0]}
				}
			}
			So(verifyDashboard(roster, recorded, served, aggregation.DefaultRankingSize), ShouldHaveLength, 2)
		})
	})
}
