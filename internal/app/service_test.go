package service_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	repository "github.com/wintality/athlete-testing/internal/adapters/repository"
	service "github.com/wintality/athlete-testing/internal/app"
	"github.com/wintality/athlete-testing/internal/domain/errs"
	"github.com/wintality/athlete-testing/internal/domain/schema"
	"github.com/wintality/athlete-testing/pkg/logger"
	"github.com/xuri/excelize/v2"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func newService(opts ...service.Option) *service.Service {
	n := 0
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	defaults := []service.Option{
		service.WithLogger(logger.Get()),
		service.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
		service.WithClock(func() time.Time {
			return base.Add(time.Duration(n) * time.Minute)
		}),
	}
	return service.New(append(defaults, opts...)...)
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := newService()
		ctx := context.Background()

		Convey("Then it reports sensible defaults", func() {
			stats := svc.GetStats(ctx)
			So(stats["started"], ShouldEqual, false)
			So(stats["store"], ShouldEqual, repository.DriverMemory)
			So(stats["rankingSize"], ShouldEqual, 5)
			So(stats["fields"], ShouldEqual, schema.FieldCount())
			So(stats["sessions"], ShouldEqual, 0)
		})

		Convey("When starting and stopping the service", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.GetStats(ctx)["started"], ShouldEqual, true)

			svc.Stop()
			So(svc.GetStats(ctx)["started"], ShouldEqual, false)
		})
	})

	Convey("Given a custom ranking size", t, func() {
		svc := newService(service.WithRankingSize(3))
		So(svc.GetStats(context.Background())["rankingSize"], ShouldEqual, 3)
	})
}

func TestService_CreateSession(t *testing.T) {
	Convey("Given a service", t, func() {
		svc := newService()
		ctx := context.Background()

		Convey("Creating Combine A builds an empty record per athlete", func() {
			id, err := svc.CreateSession(ctx, "Combine A", []string{"a1", "a2"})
			So(err, ShouldBeNil)
			So(id, ShouldEqual, "id-1")

			sess, err := svc.Session(ctx, id)
			So(err, ShouldBeNil)
			So(sess.Name, ShouldEqual, "Combine A")
			So(sess.Athletes, ShouldResemble, []string{"a1", "a2"})
			So(sess.Tests, ShouldHaveLength, 2)
			for _, athleteID := range sess.Athletes {
				rec := sess.Tests[athleteID]
				So(rec.Measured(), ShouldEqual, 0)
				for _, field := range schema.Fields() {
					v, err := rec.Get(field)
					So(err, ShouldBeNil)
					So(v, ShouldBeNil)
				}
			}
		})

		Convey("The session name is trimmed", func() {
			id, err := svc.CreateSession(ctx, "  Combine B ", []string{"a1"})
			So(err, ShouldBeNil)
			sess, err := svc.Session(ctx, id)
			So(err, ShouldBeNil)
			So(sess.Name, ShouldEqual, "Combine B")
		})

		Convey("Invalid requests are rejected without persisting anything", func() {
			cases := []struct {
				name string
				ids  []string
				want error
			}{
				{"", []string{"a1"}, service.ErrSessionNameRequired},
				{"   ", []string{"a1"}, service.ErrSessionNameRequired},
				{"Combine", nil, service.ErrAthletesRequired},
				{"Combine", []string{}, service.ErrAthletesRequired},
				{"Combine", []string{"a1", " "}, service.ErrBlankAthleteID},
			}
			for _, tc := range cases {
				_, err := svc.CreateSession(ctx, tc.name, tc.ids)
				So(errors.Is(err, tc.want), ShouldBeTrue)
				So(errors.Is(err, errs.ErrInvalidArgument), ShouldBeTrue)
			}

			list, err := svc.Sessions(ctx)
			So(err, ShouldBeNil)
			So(list, ShouldBeEmpty)
		})

		Convey("Seeding under a fixed id twice is reported as already existing", func() {
			id, err := svc.SeedSession(ctx, "default_test_session", "Preloaded Test Session", []string{"a1"})
			So(err, ShouldBeNil)
			So(id, ShouldEqual, "default_test_session")

			_, err = svc.SeedSession(ctx, "default_test_session", "Preloaded Test Session", []string{"a1"})
			So(errors.Is(err, repository.ErrAlreadyExists), ShouldBeTrue)
			So(errs.Code(err), ShouldEqual, errs.ErrInvalidArgument.Code())
		})

		Convey("Unknown sessions are not found", func() {
			_, err := svc.Session(ctx, "missing")
			So(errors.Is(err, errs.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestService_RosterAndResults(t *testing.T) {
	Convey("Given a session with one athlete", t, func() {
		svc := newService()
		ctx := context.Background()
		id, err := svc.CreateSession(ctx, "Combine A", []string{"a1"})
		So(err, ShouldBeNil)

		Convey("Adding athletes keeps existing records and skips duplicates", func() {
			_, err := svc.RecordResults(ctx, id, "a1", schema.Patch{"body_mass": schema.Float(71)})
			So(err, ShouldBeNil)

			added, err := svc.AddAthletes(ctx, id, []string{"a1", "a2", "a3"})
			So(err, ShouldBeNil)
			So(added, ShouldResemble, []string{"a2", "a3"})

			sess, err := svc.Session(ctx, id)
			So(err, ShouldBeNil)
			So(sess.Athletes, ShouldResemble, []string{"a1", "a2", "a3"})
			v, ok := sess.Tests["a1"].Value("body_mass")
			So(ok, ShouldBeTrue)
			So(v, ShouldEqual, 71)
			So(sess.Tests["a2"].Measured(), ShouldEqual, 0)

			again, err := svc.AddAthletes(ctx, id, []string{"a2"})
			So(err, ShouldBeNil)
			So(again, ShouldBeEmpty)
			So(again, ShouldNotBeNil)
		})

		Convey("Adding athletes to an unknown session is not found", func() {
			_, err := svc.AddAthletes(ctx, "missing", []string{"a2"})
			So(errors.Is(err, errs.ErrNotFound), ShouldBeTrue)
		})

		Convey("Partial updates only touch the given fields", func() {
			_, err := svc.RecordResults(ctx, id, "a1", schema.Patch{
				"sprint_10m_try1": schema.Float(1.9),
				"body_mass":       schema.Float(70),
			})
			So(err, ShouldBeNil)

			rec, err := svc.RecordResults(ctx, id, "a1", schema.Patch{"sprint_10m_try2": schema.Float(1.8)})
			So(err, ShouldBeNil)
			So(rec.Measured(), ShouldEqual, 3)

			rec, err = svc.RecordResults(ctx, id, "a1", schema.Patch{"body_mass": nil})
			So(err, ShouldBeNil)
			So(rec.Measured(), ShouldEqual, 2)
			_, ok := rec.Value("body_mass")
			So(ok, ShouldBeFalse)
		})

		Convey("Bad updates are rejected with their kind", func() {
			_, err := svc.RecordResults(ctx, id, "a1", schema.Patch{"nope": schema.Float(1)})
			So(errors.Is(err, schema.ErrUnknownField), ShouldBeTrue)
			So(errors.Is(err, errs.ErrInvalidArgument), ShouldBeTrue)

			_, err = svc.RecordResults(ctx, id, "a1", schema.Patch{})
			So(errors.Is(err, schema.ErrEmptyPatch), ShouldBeTrue)

			_, err = svc.RecordResults(ctx, id, "", schema.Patch{"body_mass": schema.Float(1)})
			So(errors.Is(err, service.ErrAthleteIDRequired), ShouldBeTrue)

			_, err = svc.RecordResults(ctx, id, "ghost", schema.Patch{"body_mass": schema.Float(1)})
			So(errors.Is(err, errs.ErrNotFound), ShouldBeTrue)

			_, err = svc.RecordResults(ctx, "missing", "a1", schema.Patch{"body_mass": schema.Float(1)})
			So(errors.Is(err, errs.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestService_Athletes(t *testing.T) {
	Convey("Given a service", t, func() {
		svc := newService()
		ctx := context.Background()

		Convey("Signing up stores a trimmed athlete", func() {
			a, err := svc.SignUp(ctx, service.AthleteInput{
				FirstName:    " Ana ",
				LastName:     "Lima",
				Email:        "ana@example.com",
				Birthdate:    "2004-03-09",
				JerseyNumber: "10",
			})
			So(err, ShouldBeNil)
			So(a.ID, ShouldEqual, "id-1")
			So(a.FirstName, ShouldEqual, "Ana")
			So(*a.JerseyNumber, ShouldEqual, 10)

			got, err := svc.Athlete(ctx, a.ID)
			So(err, ShouldBeNil)
			So(got.DisplayName(), ShouldEqual, "Ana Lima")

			list, err := svc.Athletes(ctx)
			So(err, ShouldBeNil)
			So(list, ShouldHaveLength, 1)
		})

		Convey("Jersey numbers that do not parse are dropped", func() {
			for _, in := range []string{"", "ten", "0"} {
				a, err := svc.SignUp(ctx, service.AthleteInput{FirstName: "Ana", LastName: "Lima", JerseyNumber: in})
				So(err, ShouldBeNil)
				So(a.JerseyNumber, ShouldBeNil)
			}
		})

		Convey("Invalid sign-ups are rejected", func() {
			_, err := svc.SignUp(ctx, service.AthleteInput{LastName: "Lima"})
			So(errors.Is(err, errs.ErrInvalidArgument), ShouldBeTrue)

			_, err = svc.SignUp(ctx, service.AthleteInput{FirstName: "Ana", LastName: "Lima", Email: "not-an-email"})
			So(errors.Is(err, errs.ErrInvalidArgument), ShouldBeTrue)

			list, err := svc.Athletes(ctx)
			So(err, ShouldBeNil)
			So(list, ShouldBeEmpty)
		})

		Convey("Unknown athletes are not found", func() {
			_, err := svc.Athlete(ctx, "missing")
			So(errors.Is(err, errs.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestService_Dashboard(t *testing.T) {
	Convey("Given a session with sprint and jump results", t, func() {
		svc := newService()
		ctx := context.Background()

		ana, err := svc.SignUp(ctx, service.AthleteInput{FirstName: "Ana", LastName: "Lima"})
		So(err, ShouldBeNil)
		id, err := svc.CreateSession(ctx, "Combine A", []string{ana.ID, "walk-in"})
		So(err, ShouldBeNil)

		_, err = svc.RecordResults(ctx, id, ana.ID, schema.Patch{
			"sprint_10m_try1":       schema.Float(2.0),
			"sprint_10m_try2":       schema.Float(1.5),
			"counter_movement_try1": schema.Float(40),
		})
		So(err, ShouldBeNil)
		_, err = svc.RecordResults(ctx, id, "walk-in", schema.Patch{
			"sprint_10m_try1":       schema.Float(1.5),
			"counter_movement_try1": schema.Float(55),
		})
		So(err, ShouldBeNil)

		Convey("The dashboard ranks sprints ascending and jumps descending", func() {
			d, err := svc.Dashboard(ctx, id)
			So(err, ShouldBeNil)
			So(d.SessionName, ShouldEqual, "Combine A")

			sprint, ok := d.Lookup("sprint_10m")
			So(ok, ShouldBeTrue)
			So(*sprint.Average, ShouldAlmostEqual, 1.625)
			So(sprint.Top, ShouldHaveLength, 2)
			So(sprint.Top[0].AthleteID, ShouldEqual, "walk-in")
			So(sprint.Top[0].Name, ShouldEqual, "walk-in")
			So(sprint.Top[1].Name, ShouldEqual, "Ana Lima")

			cmj, ok := d.Lookup("counter_movement")
			So(ok, ShouldBeTrue)
			So(cmj.Top[0].Value, ShouldEqual, 55)
			So(cmj.Top[1].Value, ShouldEqual, 40)

			mass, ok := d.Lookup("body_mass")
			So(ok, ShouldBeTrue)
			So(mass.Average, ShouldBeNil)
			So(mass.Top, ShouldBeEmpty)
		})

		Convey("Feedback marks the best sprint attempt", func() {
			fb, err := svc.Feedback(ctx, id, ana.ID, "sprint_10m")
			So(err, ShouldBeNil)
			So(fb.Name, ShouldEqual, "Ana Lima")
			So(fb.Attempts, ShouldHaveLength, 3)
			So(*fb.Best, ShouldEqual, 1.5)
			So(fb.BestAttempt, ShouldEqual, 2)
			So(*fb.Mean, ShouldAlmostEqual, 1.75)
		})

		Convey("Feedback rejects bad requests", func() {
			_, err := svc.Feedback(ctx, id, ana.ID, "")
			So(errors.Is(err, service.ErrTestRequired), ShouldBeTrue)

			_, err = svc.Feedback(ctx, id, ana.ID, "juggling")
			So(errors.Is(err, schema.ErrUnknownTest), ShouldBeTrue)
			So(errors.Is(err, errs.ErrInvalidArgument), ShouldBeTrue)

			_, err = svc.Feedback(ctx, id, "stranger", "sprint_10m")
			So(errors.Is(err, errs.ErrNotFound), ShouldBeTrue)

			_, err = svc.Dashboard(ctx, "missing")
			So(errors.Is(err, errs.ErrNotFound), ShouldBeTrue)
		})

		Convey("Export writes a readable workbook", func() {
			var buf bytes.Buffer
			So(svc.ExportSession(ctx, id, &buf), ShouldBeNil)

			f, err := excelize.OpenReader(&buf)
			So(err, ShouldBeNil)
			defer func() { _ = f.Close() }()
			rows, err := f.GetRows("Results")
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 3)
			So(rows[1][1], ShouldEqual, "Ana Lima")
		})

		Convey("Stats count sessions, athletes and measured fields", func() {
			stats := svc.GetStats(ctx)
			So(stats["sessions"], ShouldEqual, 1)
			So(stats["athletes"], ShouldEqual, 1)
			So(stats["rosterEntries"], ShouldEqual, 2)
			So(stats["measuredFields"], ShouldEqual, 5)
		})
	})
}

func TestService_SQLiteStore(t *testing.T) {
	Convey("Given a service backed by sqlite", t, func() {
		ctx := context.Background()
		store, err := repository.Open(ctx, repository.DriverSQLite, ":memory:")
		So(err, ShouldBeNil)
		svc := newService(service.WithStore(store, repository.DriverSQLite))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("Sessions round-trip through the database", func() {
			id, err := svc.CreateSession(ctx, "Combine A", []string{"a1", "a2"})
			So(err, ShouldBeNil)
			_, err = svc.RecordResults(ctx, id, "a2", schema.Patch{"yoyo_II": schema.Float(880)})
			So(err, ShouldBeNil)

			d, err := svc.Dashboard(ctx, id)
			So(err, ShouldBeNil)
			yoyo, ok := d.Lookup("yoyo_II")
			So(ok, ShouldBeTrue)
			So(yoyo.Top[0].AthleteID, ShouldEqual, "a2")
			So(svc.GetStats(ctx)["store"], ShouldEqual, repository.DriverSQLite)
		})
	})
}
