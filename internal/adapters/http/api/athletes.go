package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	service "github.com/wintality/athlete-testing/internal/app"
	"github.com/wintality/athlete-testing/internal/domain/model"
)

// AthletesHandler handles athlete sign-up and reads.
type AthletesHandler struct {
	deps      AthleteService
	bodyLimit int64
}

// NewAthletesHandler creates a new athletes handler.
func NewAthletesHandler(deps AthleteService, bodyLimit int64) *AthletesHandler {
	return &AthletesHandler{deps: deps, bodyLimit: bodyLimit}
}

// athleteRequest mirrors the sign-up form. jerseyNumber may arrive as a
// number or as text.
type athleteRequest struct {
	FirstName    string          `json:"firstName"`
	LastName     string          `json:"lastName"`
	Birthdate    string          `json:"birthdate"`
	Email        string          `json:"email"`
	Instagram    string          `json:"instagram"`
	Sport        string          `json:"sport"`
	Team         string          `json:"team"`
	Position     string          `json:"position"`
	JerseyNumber json.RawMessage `json:"jerseyNumber"`
	Club         string          `json:"club"`
	League       string          `json:"league"`
}

func (a athleteRequest) input() service.AthleteInput {
	return service.AthleteInput{
		FirstName:    a.FirstName,
		LastName:     a.LastName,
		Birthdate:    a.Birthdate,
		Email:        a.Email,
		Instagram:    a.Instagram,
		Sport:        a.Sport,
		Team:         a.Team,
		Position:     a.Position,
		JerseyNumber: jerseyText(a.JerseyNumber),
		Club:         a.Club,
		League:       a.League,
	}
}

func jerseyText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// HandleSignUp handles POST /athletes requests.
func (h *AthletesHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	const op = "api.sign_up"
	var req athleteRequest
	if err := decodeJSON(w, r, h.bodyLimit, op, &req); err != nil {
		writeError(w, err)
		return
	}
	a, err := h.deps.SignUp(r.Context(), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// HandleList handles GET /athletes requests.
func (h *AthletesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.Athletes(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []model.Athlete{}
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleGet handles GET /athletes/{id} requests.
func (h *AthletesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	a, err := h.deps.Athlete(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
