package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/wintality/athlete-testing/internal/adapters/export"
	"github.com/wintality/athlete-testing/internal/adapters/http/api"
	service "github.com/wintality/athlete-testing/internal/app"
	"github.com/wintality/athlete-testing/internal/domain/aggregation"
	"github.com/wintality/athlete-testing/internal/domain/errs"
	"github.com/wintality/athlete-testing/internal/domain/model"
	"github.com/wintality/athlete-testing/pkg/logger"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func newMux(opts ...api.Option) (*http.ServeMux, *service.Service) {
	n := 0
	svc := service.New(service.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}))
	mux := http.NewServeMux()
	api.NewServer(svc, opts...).Register(mux)
	return mux, svc
}

func do(mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader = http.NoBody
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder, v any) {
	So(json.Unmarshal(w.Body.Bytes(), v), ShouldBeNil)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func TestServer_Basics(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux, _ := newMux()

		Convey("Health serves Prometheus metrics", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Stats report the store and field count", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var stats map[string]any
			decode(w, &stats)
			So(stats["store"], ShouldEqual, "memory")
			So(stats["fields"], ShouldEqual, float64(41))
		})

		Convey("The catalog lists every test with its fields", func() {
			w := do(mux, http.MethodGet, "/tests", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var tests []struct {
				Name      string   `json:"name"`
				Fields    []string `json:"fields"`
				TimeBased bool     `json:"timeBased"`
			}
			decode(w, &tests)
			So(tests, ShouldHaveLength, 26)
			So(tests[0].Name, ShouldEqual, "body_height")
			total := 0
			for _, tc := range tests {
				total += len(tc.Fields)
			}
			So(total, ShouldEqual, 41)
		})

		Convey("Wrong methods are rejected by the mux", func() {
			w := do(mux, http.MethodDelete, "/sessions", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestServer_Sessions(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux, _ := newMux()

		Convey("Creating a session returns its id", func() {
			w := do(mux, http.MethodPost, "/sessions", `{"sessionName":"Combine A","athleteIds":["a1","a2"]}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			var created struct {
				SessionID string `json:"sessionId"`
			}
			decode(w, &created)
			So(created.SessionID, ShouldEqual, "id-1")

			w = do(mux, http.MethodGet, "/sessions/id-1", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var sess struct {
				Name     string                         `json:"name"`
				Athletes []string                       `json:"athletes"`
				Tests    map[string]map[string]*float64 `json:"tests"`
			}
			decode(w, &sess)
			So(sess.Name, ShouldEqual, "Combine A")
			So(sess.Athletes, ShouldResemble, []string{"a1", "a2"})
			So(sess.Tests["a1"], ShouldHaveLength, 41)
			So(sess.Tests["a1"]["sprint_5m_try1"], ShouldBeNil)

			Convey("Then results can be patched and the roster grown", func() {
				w := do(mux, http.MethodPatch, "/sessions/id-1/athletes/a1", `{"sprint_5m_try1":1.1,"sprint_5m_try2":1.2}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				var rec map[string]*float64
				decode(w, &rec)
				So(*rec["sprint_5m_try1"], ShouldEqual, 1.1)
				So(rec["body_mass"], ShouldBeNil)

				w = do(mux, http.MethodPost, "/sessions/id-1/athletes", `{"athleteIds":["a1","a3"]}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				var grown struct {
					Added  []string `json:"added"`
					Roster []string `json:"roster"`
				}
				decode(w, &grown)
				So(grown.Added, ShouldResemble, []string{"a3"})
				So(grown.Roster, ShouldResemble, []string{"a1", "a2", "a3"})

				w = do(mux, http.MethodGet, "/sessions/id-1/dashboard", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var d aggregation.Dashboard
				decode(w, &d)
				sprint, ok := d.Lookup("sprint_5m")
				So(ok, ShouldBeTrue)
				So(*sprint.Average, ShouldAlmostEqual, 1.15)
				So(sprint.Top[0].AthleteID, ShouldEqual, "a1")

				w = do(mux, http.MethodGet, "/sessions/id-1/athletes/a1/feedback?test=sprint_5m", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var fb aggregation.Feedback
				decode(w, &fb)
				So(fb.BestAttempt, ShouldEqual, 1)

				w = do(mux, http.MethodGet, "/sessions/id-1/export", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldEqual, export.ContentType)
				So(w.Body.Len(), ShouldBeGreaterThan, 0)

				w = do(mux, http.MethodGet, "/sessions", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var list []map[string]any
				decode(w, &list)
				So(list, ShouldHaveLength, 1)
			})
		})

		Convey("Invalid requests map to 400", func() {
			for _, body := range []string{
				`{"sessionName":"","athleteIds":["a1"]}`,
				`{"sessionName":"Combine","athleteIds":[]}`,
				`{"sessionName":`,
			} {
				w := do(mux, http.MethodPost, "/sessions", body)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				var e errorBody
				decode(w, &e)
				So(e.Code, ShouldEqual, "invalid-argument")
				So(e.Message, ShouldNotBeBlank)
			}

			w := do(mux, http.MethodGet, "/sessions", "")
			So(w.Body.String(), ShouldStartWith, "[]")
		})

		Convey("Unknown sessions map to 404", func() {
			w := do(mux, http.MethodGet, "/sessions/nope", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			var e errorBody
			decode(w, &e)
			So(e.Code, ShouldEqual, "not-found")

			w = do(mux, http.MethodPatch, "/sessions/nope/athletes/a1", `{"body_mass":70}`)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Unknown fields in a patch map to 400", func() {
			do(mux, http.MethodPost, "/sessions", `{"sessionName":"Combine A","athleteIds":["a1"]}`)
			w := do(mux, http.MethodPatch, "/sessions/id-1/athletes/a1", `{"juggling":3}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestServer_CallableCreate(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux, _ := newMux()

		Convey("A valid envelope returns a result", func() {
			w := do(mux, http.MethodPost, "/functions/createTestSession", `{"data":{"sessionName":"Combine A","athleteIds":["a1"]}}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			var resp struct {
				Result struct {
					SessionID string `json:"sessionId"`
				} `json:"result"`
			}
			decode(w, &resp)
			So(resp.Result.SessionID, ShouldEqual, "id-1")
		})

		Convey("Validation failures return an error envelope", func() {
			for _, body := range []string{
				`{"data":{"sessionName":"","athleteIds":["a1"]}}`,
				`{}`,
			} {
				w := do(mux, http.MethodPost, "/functions/createTestSession", body)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				var resp struct {
					Error struct {
						Status  string `json:"status"`
						Message string `json:"message"`
					} `json:"error"`
				}
				decode(w, &resp)
				So(resp.Error.Status, ShouldEqual, "INVALID_ARGUMENT")
				So(resp.Error.Message, ShouldNotBeBlank)
			}
		})
	})
}

func TestServer_Athletes(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux, _ := newMux()

		Convey("Sign-up accepts the jersey number as a number or text", func() {
			w := do(mux, http.MethodPost, "/athletes", `{"firstName":"Ana","lastName":"Lima","jerseyNumber":9}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			w = do(mux, http.MethodPost, "/athletes", `{"firstName":"Bo","lastName":"Kim","jerseyNumber":"7"}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			var a struct {
				ID           string `json:"id"`
				JerseyNumber *int   `json:"jerseyNumber"`
			}
			decode(w, &a)
			So(*a.JerseyNumber, ShouldEqual, 7)

			w = do(mux, http.MethodGet, "/athletes/"+a.ID, "")
			So(w.Code, ShouldEqual, http.StatusOK)

			w = do(mux, http.MethodGet, "/athletes", "")
			var list []map[string]any
			decode(w, &list)
			So(list, ShouldHaveLength, 2)
		})

		Convey("Missing names are rejected", func() {
			w := do(mux, http.MethodPost, "/athletes", `{"firstName":"Ana"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Unknown athletes are not found", func() {
			w := do(mux, http.MethodGet, "/athletes/ghost", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestServer_BodyLimit(t *testing.T) {
	Convey("Given a server with a tiny body limit", t, func() {
		mux, _ := newMux(api.WithBodyLimit(16))

		Convey("Oversized bodies are rejected", func() {
			w := do(mux, http.MethodPost, "/sessions", `{"sessionName":"A long session name","athleteIds":["a1"]}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			var e errorBody
			decode(w, &e)
			So(e.Message, ShouldContainSubstring, api.ErrBodyTooLarge.Error())
		})
	})
}

// failingDeps fails every store-backed call with an internal error.
type failingDeps struct {
	*service.Service
}

func (failingDeps) Sessions(context.Context) ([]model.Session, error) {
	return nil, errs.WrapKind("test.sessions", errs.ErrInternal, errors.New("disk on fire"))
}

func TestServer_InternalErrors(t *testing.T) {
	Convey("Given dependencies whose store fails", t, func() {
		mux := http.NewServeMux()
		api.NewServer(failingDeps{Service: service.New()}).Register(mux)

		Convey("The failure maps to 500 with the underlying message", func() {
			w := do(mux, http.MethodGet, "/sessions", "")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			var e errorBody
			decode(w, &e)
			So(e.Code, ShouldEqual, "internal")
			So(e.Message, ShouldEqual, "disk on fire")
		})
	})
}
