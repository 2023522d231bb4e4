package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/querydesk/querydesk/internal/orchestrator"
)

// queryPayload is the execution request body. Either sql is set, or
// queryType is "named" and namedQueryId points at a catalog entry.
type queryPayload struct {
	SQL          string `json:"sql"`
	QueryType    string `json:"queryType"`
	NamedQueryID string `json:"namedQueryId"`
}

func (h *handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, RoleQueryRunner) {
		return
	}

	var payload queryPayload
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		writeError(w, r, http.StatusBadRequest, string(orchestrator.KindInvalidRequest), "invalid request body: "+err.Error())
		return
	}

	req := orchestrator.QueryRequest{}
	switch strings.ToLower(strings.TrimSpace(payload.QueryType)) {
	case "", "sql":
		req.SQL = payload.SQL
	case "named":
		req.NamedQueryID = payload.NamedQueryID
	default:
		writeError(w, r, http.StatusBadRequest, string(orchestrator.KindInvalidRequest), "unsupported queryType "+payload.QueryType)
		return
	}

	results, err := h.deps.Executor.Execute(r.Context(), req)
	if err != nil {
		failure := orchestrator.AsFailure(err)
		writeError(w, r, statusForKind(failure.Kind), string(failure.Kind), failure.Message)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    results,
	})
}

func statusForKind(kind orchestrator.ErrorKind) int {
	switch kind {
	case orchestrator.KindInvalidRequest:
		return http.StatusBadRequest
	case orchestrator.KindNotFound:
		return http.StatusNotFound
	case orchestrator.KindEngineFailure:
		return http.StatusUnprocessableEntity
	case orchestrator.KindCancelled:
		// Client closed request, nginx convention.
		return 499
	case orchestrator.KindTimedOut:
		return http.StatusGatewayTimeout
	case orchestrator.KindTransport, orchestrator.KindUnknownState:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
