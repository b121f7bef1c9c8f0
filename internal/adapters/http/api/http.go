// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	service "github.com/wintality/athlete-testing/internal/app"
	"github.com/wintality/athlete-testing/internal/domain/aggregation"
	"github.com/wintality/athlete-testing/internal/domain/errs"
	"github.com/wintality/athlete-testing/internal/domain/model"
	"github.com/wintality/athlete-testing/internal/domain/schema"
)

// DefaultBodyLimit caps request bodies when no limit is configured.
const DefaultBodyLimit int64 = 1 << 20

// SessionService covers session creation, roster growth and result entry.
type SessionService interface {
	CreateSession(ctx context.Context, sessionName string, athleteIDs []string) (string, error)
	AddAthletes(ctx context.Context, sessionID string, athleteIDs []string) ([]string, error)
	RecordResults(ctx context.Context, sessionID, athleteID string, patch schema.Patch) (schema.Record, error)
	Session(ctx context.Context, id string) (model.Session, error)
	Sessions(ctx context.Context) ([]model.Session, error)
}

// AthleteService covers sign-up and athlete reads.
type AthleteService interface {
	SignUp(ctx context.Context, in service.AthleteInput) (model.Athlete, error)
	Athlete(ctx context.Context, id string) (model.Athlete, error)
	Athletes(ctx context.Context) ([]model.Athlete, error)
}

// ReportService covers everything derived from a session.
type ReportService interface {
	Catalog() []schema.Definition
	Dashboard(ctx context.Context, sessionID string) (aggregation.Dashboard, error)
	Feedback(ctx context.Context, sessionID, athleteID, test string) (aggregation.Feedback, error)
	ExportSession(ctx context.Context, sessionID string, w io.Writer) error
}

// Dependencies required by HTTP handlers.
type Dependencies interface {
	SessionService
	AthleteService
	ReportService
	StatsProvider
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithBodyLimit caps request bodies at n bytes. Non-positive values are ignored.
func WithBodyLimit(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.bodyLimit = n
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	bodyLimit int64

	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	catalogHandler  *CatalogHandler
	athletesHandler *AthletesHandler
	sessionsHandler *SessionsHandler
	reportsHandler  *ReportsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{bodyLimit: DefaultBodyLimit}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(deps)
	s.catalogHandler = NewCatalogHandler(deps)
	s.athletesHandler = NewAthletesHandler(deps, s.bodyLimit)
	s.sessionsHandler = NewSessionsHandler(deps, s.bodyLimit)
	s.reportsHandler = NewReportsHandler(deps)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /tests", MetricsMiddleware(s.catalogHandler.HandleListTests, "tests"))

	mux.HandleFunc("POST /athletes", MetricsMiddleware(s.athletesHandler.HandleSignUp, "athletes_create"))
	mux.HandleFunc("GET /athletes", MetricsMiddleware(s.athletesHandler.HandleList, "athletes_list"))
	mux.HandleFunc("GET /athletes/{id}", MetricsMiddleware(s.athletesHandler.HandleGet, "athletes_get"))

	mux.HandleFunc("POST /sessions", MetricsMiddleware(s.sessionsHandler.HandleCreate, "sessions_create"))
	mux.HandleFunc("POST /functions/createTestSession", MetricsMiddleware(s.sessionsHandler.HandleCallableCreate, "callable_create_session"))
	mux.HandleFunc("GET /sessions", MetricsMiddleware(s.sessionsHandler.HandleList, "sessions_list"))
	mux.HandleFunc("GET /sessions/{id}", MetricsMiddleware(s.sessionsHandler.HandleGet, "sessions_get"))
	mux.HandleFunc("POST /sessions/{id}/athletes", MetricsMiddleware(s.sessionsHandler.HandleAddAthletes, "sessions_roster"))
	mux.HandleFunc("PATCH /sessions/{id}/athletes/{athleteId}", MetricsMiddleware(s.sessionsHandler.HandleRecordResults, "sessions_record"))

	mux.HandleFunc("GET /sessions/{id}/dashboard", MetricsMiddleware(s.reportsHandler.HandleDashboard, "sessions_dashboard"))
	mux.HandleFunc("GET /sessions/{id}/athletes/{athleteId}/feedback", MetricsMiddleware(s.reportsHandler.HandleFeedback, "sessions_feedback"))
	mux.HandleFunc("GET /sessions/{id}/export", MetricsMiddleware(s.reportsHandler.HandleExport, "sessions_export"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Code: errs.Code(err), Message: errs.Message(err)})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads one JSON value of at most limit bytes from r into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, op string, v any) error {
	body := http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errs.WrapKind(op, errs.ErrInvalidArgument, fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, tooLarge.Limit))
		}
		return errs.WrapKind(op, errs.ErrInvalidArgument, fmt.Errorf("%w: %v", ErrBadRequest, err))
	}
	return nil
}
