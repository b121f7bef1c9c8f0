package api

import (
	"net/http"

	"github.com/wintality/athlete-testing/internal/domain/schema"
)

// CatalogProvider exposes the test catalog.
type CatalogProvider interface {
	Catalog() []schema.Definition
}

// CatalogHandler serves the test catalog.
type CatalogHandler struct {
	provider CatalogProvider
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(provider CatalogProvider) *CatalogHandler {
	return &CatalogHandler{provider: provider}
}

type testResponse struct {
	schema.Definition
	Keys      []string `json:"fields"`
	TimeBased bool     `json:"timeBased"`
}

// HandleListTests handles GET /tests requests.
func (h *CatalogHandler) HandleListTests(w http.ResponseWriter, _ *http.Request) {
	defs := h.provider.Catalog()
	out := make([]testResponse, 0, len(defs))
	for _, d := range defs {
		out = append(out, testResponse{Definition: d, Keys: d.Fields(), TimeBased: schema.TimeBased(d.Name)})
	}
	writeJSON(w, http.StatusOK, out)
}
