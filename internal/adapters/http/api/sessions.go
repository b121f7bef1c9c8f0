package api

import (
	"net/http"
	"strings"

	"github.com/wintality/athlete-testing/internal/domain/errs"
	"github.com/wintality/athlete-testing/internal/domain/model"
	"github.com/wintality/athlete-testing/internal/domain/schema"
)

// SessionsHandler handles session creation, roster growth and result entry.
type SessionsHandler struct {
	deps      SessionService
	bodyLimit int64
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps SessionService, bodyLimit int64) *SessionsHandler {
	return &SessionsHandler{deps: deps, bodyLimit: bodyLimit}
}

type createSessionRequest struct {
	SessionName string   `json:"sessionName"`
	AthleteIDs  []string `json:"athleteIds"`
}

type createSessionResponse struct {
	SessionID string `json:"sessionId"`
}

type addAthletesRequest struct {
	AthleteIDs []string `json:"athleteIds"`
}

type addAthletesResponse struct {
	Added  []string `json:"added"`
	Roster []string `json:"roster"`
}

// callableRequest and callableResponse follow the callable-function wire
// envelope used by existing clients.
type callableRequest struct {
	Data *createSessionRequest `json:"data"`
}

type callableResponse struct {
	Result *createSessionResponse `json:"result,omitempty"`
	Error  *callableError         `json:"error,omitempty"`
}

type callableError struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HandleCreate handles POST /sessions requests.
func (h *SessionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_session"
	var req createSessionRequest
	if err := decodeJSON(w, r, h.bodyLimit, op, &req); err != nil {
		writeError(w, err)
		return
	}
	id, err := h.deps.CreateSession(r.Context(), req.SessionName, req.AthleteIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createSessionResponse{SessionID: id})
}

// HandleCallableCreate handles POST /functions/createTestSession requests.
func (h *SessionsHandler) HandleCallableCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.callable_create_session"
	var req callableRequest
	if err := decodeJSON(w, r, h.bodyLimit, op, &req); err != nil {
		writeCallableError(w, err)
		return
	}
	if req.Data == nil {
		writeCallableError(w, errs.WrapKind(op, errs.ErrInvalidArgument, ErrMissingData))
		return
	}
	id, err := h.deps.CreateSession(r.Context(), req.Data.SessionName, req.Data.AthleteIDs)
	if err != nil {
		writeCallableError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, callableResponse{Result: &createSessionResponse{SessionID: id}})
}

func writeCallableError(w http.ResponseWriter, err error) {
	status := strings.ToUpper(strings.ReplaceAll(errs.Code(err), "-", "_"))
	writeJSON(w, statusFor(err), callableResponse{Error: &callableError{Status: status, Message: errs.Message(err)}})
}

// HandleList handles GET /sessions requests.
func (h *SessionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.Sessions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []model.Session{}
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleGet handles GET /sessions/{id} requests.
func (h *SessionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	s, err := h.deps.Session(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// HandleAddAthletes handles POST /sessions/{id}/athletes requests.
func (h *SessionsHandler) HandleAddAthletes(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_athletes"
	id := r.PathValue("id")
	var req addAthletesRequest
	if err := decodeJSON(w, r, h.bodyLimit, op, &req); err != nil {
		writeError(w, err)
		return
	}
	added, err := h.deps.AddAthletes(r.Context(), id, req.AthleteIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	s, err := h.deps.Session(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, addAthletesResponse{Added: added, Roster: s.Athletes})
}

// HandleRecordResults handles PATCH /sessions/{id}/athletes/{athleteId}
// requests. The body maps field keys to numbers, or null to clear a field.
func (h *SessionsHandler) HandleRecordResults(w http.ResponseWriter, r *http.Request) {
	const op = "api.record_results"
	var patch schema.Patch
	if err := decodeJSON(w, r, h.bodyLimit, op, &patch); err != nil {
		writeError(w, err)
		return
	}
	rec, err := h.deps.RecordResults(r.Context(), r.PathValue("id"), r.PathValue("athleteId"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
