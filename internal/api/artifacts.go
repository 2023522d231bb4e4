package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/querydesk/querydesk/internal/orchestrator"
	"github.com/querydesk/querydesk/internal/storage"
)

// handleGetArtifact streams the parquet result artifact deposited for an
// execution handle. Only available when the configured engine deposits
// artifacts.
func (h *handler) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, RoleQueryReader) {
		return
	}
	key, ok := h.artifactKey(w, r)
	if !ok {
		return
	}

	reader, err := h.deps.Artifacts.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			writeError(w, r, http.StatusNotFound, string(orchestrator.KindNotFound), "no artifact for execution "+r.PathValue("handle"))
			return
		}
		writeError(w, r, http.StatusBadGateway, string(orchestrator.KindTransport), "fetch artifact: "+err.Error())
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "application/vnd.apache.parquet")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, reader)
}

func (h *handler) handleDeleteArtifact(w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, RoleQueryRunner) {
		return
	}
	key, ok := h.artifactKey(w, r)
	if !ok {
		return
	}

	if err := h.deps.Artifacts.Delete(r.Context(), key); err != nil {
		writeError(w, r, http.StatusBadGateway, string(orchestrator.KindTransport), "delete artifact: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// artifactKey validates the handle and checks an artifact store is wired.
func (h *handler) artifactKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.deps.Artifacts == nil {
		writeError(w, r, http.StatusNotFound, string(orchestrator.KindNotFound), "this deployment keeps no result artifacts")
		return "", false
	}
	key, err := storage.ResultArtifactKey(r.PathValue("handle"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, string(orchestrator.KindInvalidRequest), err.Error())
		return "", false
	}
	return key, true
}
