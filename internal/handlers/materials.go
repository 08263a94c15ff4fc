package handlers

import (
	"encoding/base64"
	"net/http"

	"github.com/go-chi/chi/v5"

	"studyrag/internal/contextutil"
	"studyrag/internal/service"
	"studyrag/internal/storage"
)

// MaterialHandler handles HTTP requests for material ingestion and lifecycle.
type MaterialHandler struct {
	svc service.StudyService
}

// NewMaterialHandler creates a new MaterialHandler.
func NewMaterialHandler(svc service.StudyService) *MaterialHandler {
	return &MaterialHandler{svc: svc}
}

// CreateMaterialRequest is one uploaded document.
//
// swagger:model CreateMaterialRequest
type CreateMaterialRequest struct {
	SectionID int64  `json:"section_id"`
	Filename  string `json:"filename"`
	Type      string `json:"type,omitempty"`
	Title     string `json:"title,omitempty"`
	// File bytes, standard base64.
	ContentBase64 string `json:"content_base64"`
}

// Create ingests one document.
//
// swagger:route POST /api/materials createMaterial
//
// Extract, chunk, embed and store a document. The result status is success,
// or warning when some chunks could not be embedded.
func (h *MaterialHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req CreateMaterialRequest
	if err := decodeBody(r, &req); err != nil {
		logger.Warn("invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.ContentBase64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "content_base64 is not valid base64")
		return
	}

	res, err := h.svc.IngestMaterial(ctx, service.IngestRequest{
		SectionID: req.SectionID,
		Filename:  req.Filename,
		Type:      storage.MaterialType(req.Type),
		Title:     req.Title,
		Data:      data,
	})
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to ingest material")
		return
	}
	writeJSON(w, ctx, http.StatusCreated, res)
}

// Delete removes a material with its chunks.
func (h *MaterialHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.svc.DeleteMaterial(ctx, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, ctx, err, "Failed to delete material")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Backfill retries embedding for chunks stored without a vector.
func (h *MaterialHandler) Backfill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res, err := h.svc.BackfillMaterial(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to backfill embeddings")
		return
	}
	writeJSON(w, ctx, http.StatusOK, res)
}
