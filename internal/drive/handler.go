package drive

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/andresuchdata/warenbestand/internal/domain"
	"github.com/andresuchdata/warenbestand/internal/pipeline/coverage"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// Reconciler runs the coverage pipeline on a downloaded export
type Reconciler interface {
	ReconcileFile(ctx context.Context, name string, data []byte) (*coverage.Result, error)
}

type Handler struct {
	source     FileSource
	reconciler Reconciler
}

func NewHandler(source FileSource, reconciler Reconciler) *Handler {
	return &Handler{
		source:     source,
		reconciler: reconciler,
	}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/drive/files", h.ListFiles).Methods("GET")
	router.HandleFunc("/api/drive/reconcile", h.ReconcileFile).Methods("POST")
}

func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	folderID := query.Get("folderId")
	folderPath := query.Get("path")

	var err error
	if folderPath != "" {
		folderID, err = h.source.FindFolderByPath(r.Context(), folderPath)
		if err != nil {
			writeError(w, http.StatusNotFound, "folder not found", err)
			return
		}
	}

	files, err := h.source.ListFiles(r.Context(), folderID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list files", err)
		return
	}

	tables := make([]*File, 0, len(files))
	for _, f := range files {
		if IsTableFile(f) {
			tables = append(tables, f)
		}
	}

	writeJSON(w, http.StatusOK, tables)
}

func (h *Handler) ReconcileFile(w http.ResponseWriter, r *http.Request) {
	fileID := r.URL.Query().Get("fileId")
	if fileID == "" {
		writeError(w, http.StatusBadRequest, "fileId parameter is required", nil)
		return
	}

	file, err := h.source.Download(r.Context(), fileID)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to download file", err)
		return
	}

	result, err := h.reconciler.ReconcileFile(r.Context(), file.Name, file.Data)
	if err != nil {
		status := http.StatusInternalServerError
		if isStructural(err) {
			status = http.StatusBadRequest
		}
		log.Error().Err(err).Str("file_id", fileID).Msg("drive reconcile failed")
		writeError(w, status, "reconcile failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"file":   file.Name,
		"result": result,
	})
}

func isStructural(err error) bool {
	return errors.Is(err, domain.ErrMissingColumn) ||
		errors.Is(err, domain.ErrEmptyTable) ||
		errors.Is(err, domain.ErrUnsupportedFormat)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	body := map[string]string{"error": msg}
	if err != nil {
		body["details"] = err.Error()
	}
	writeJSON(w, status, body)
}
