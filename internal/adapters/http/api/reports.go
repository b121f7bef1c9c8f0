package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/wintality/athlete-testing/internal/adapters/export"
)

// ReportsHandler serves dashboards, feedback and workbook exports.
type ReportsHandler struct {
	deps ReportService
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(deps ReportService) *ReportsHandler {
	return &ReportsHandler{deps: deps}
}

// HandleDashboard handles GET /sessions/{id}/dashboard requests.
func (h *ReportsHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.deps.Dashboard(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HandleFeedback handles GET /sessions/{id}/athletes/{athleteId}/feedback?test=
// requests.
func (h *ReportsHandler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	fb, err := h.deps.Feedback(r.Context(), r.PathValue("id"), r.PathValue("athleteId"), r.URL.Query().Get("test"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fb)
}

// HandleExport handles GET /sessions/{id}/export requests. The workbook is
// buffered so a failed export still yields a JSON error.
func (h *ReportsHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var buf bytes.Buffer
	if err := h.deps.ExportSession(r.Context(), id, &buf); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "session-"+id+".xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
