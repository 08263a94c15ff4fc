package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"studyrag/internal/contextutil"
	"studyrag/internal/rag"
	"studyrag/internal/service"
	"studyrag/internal/storage"
)

// SearchHandler handles similarity search, hint and structure requests.
type SearchHandler struct {
	svc service.StudyService
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(svc service.StudyService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

// SearchRequest is a retrieval query. With neither material_ids nor
// section_ids every material is searched.
//
// swagger:model SearchRequest
type SearchRequest struct {
	Query               string            `json:"query"`
	MaterialIDs         []string          `json:"material_ids,omitempty"`
	SectionIDs          []int64           `json:"section_ids,omitempty"`
	TopK                int               `json:"top_k,omitempty"`
	SimilarityThreshold *float32          `json:"similarity_threshold,omitempty"`
	ChapterFilter       rag.ChapterFilter `json:"chapter_filter,omitempty"`
	ContentType         string            `json:"content_type,omitempty"`
}

func (req SearchRequest) query() rag.Query {
	return rag.Query{
		Text: req.Query,
		Scope: rag.Scope{
			All:         len(req.MaterialIDs) == 0 && len(req.SectionIDs) == 0,
			MaterialIDs: req.MaterialIDs,
			SectionIDs:  req.SectionIDs,
		},
		TopK:          req.TopK,
		Threshold:     req.SimilarityThreshold,
		ChapterFilter: req.ChapterFilter,
		ContentType:   storage.ContentType(req.ContentType),
	}
}

// Search ranks chunks by similarity.
//
// swagger:route POST /api/search search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.svc.Search)
}

// Hints returns a few close matches above the hint similarity floor.
//
// swagger:route POST /api/hints hints
func (h *SearchHandler) Hints(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.svc.Hints)
}

func (h *SearchHandler) serve(w http.ResponseWriter, r *http.Request, run func(context.Context, rag.Query) ([]rag.Result, error)) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req SearchRequest
	if err := decodeBody(r, &req); err != nil {
		logger.Warn("invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	results, err := run(ctx, req.query())
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to search materials")
		return
	}
	writeJSON(w, ctx, http.StatusOK, results)
}

// Structure reports the chapter structure of each material of a section.
//
// swagger:route GET /api/sections/{id}/structure sectionStructure
func (h *SearchHandler) Structure(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid section id")
		return
	}

	res, err := h.svc.SectionStructure(ctx, id)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to analyze section")
		return
	}
	writeJSON(w, ctx, http.StatusOK, res)
}
