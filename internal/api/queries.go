package api

import (
	"errors"
	"net/http"

	"github.com/querydesk/querydesk/internal/catalog"
	"github.com/querydesk/querydesk/internal/orchestrator"
)

// catalogEntry is the wire shape of a named query. The list endpoint omits
// the SQL text; the single-entry endpoint includes it so dashboards can
// preview what a named query runs.
type catalogEntry struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
	SQL         string `json:"sql,omitempty"`
}

func (h *handler) handleListQueries(w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, RoleQueryReader) {
		return
	}

	queries := h.deps.Catalog.List()
	entries := make([]catalogEntry, 0, len(queries))
	for _, q := range queries {
		entries = append(entries, catalogEntry{
			ID:          q.ID,
			DisplayName: q.DisplayName,
			Description: q.Description,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    entries,
	})
}

func (h *handler) handleGetQuery(w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, RoleQueryReader) {
		return
	}

	id := r.PathValue("id")
	q, err := h.deps.Catalog.Lookup(id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, string(orchestrator.KindNotFound), "named query "+id+" not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, string(orchestrator.KindTransport), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": catalogEntry{
			ID:          q.ID,
			DisplayName: q.DisplayName,
			Description: q.Description,
			SQL:         q.SQL,
		},
	})
}
