package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"studyrag/internal/contextutil"
	"studyrag/internal/generator"
	"studyrag/internal/service"
)

// GenerationHandler handles quiz and flashcard generation and lookup.
type GenerationHandler struct {
	svc service.StudyService
}

// NewGenerationHandler creates a new GenerationHandler.
func NewGenerationHandler(svc service.StudyService) *GenerationHandler {
	return &GenerationHandler{svc: svc}
}

// DeriveFlashcardsRequest names the set derived from a quiz. All fields are optional.
//
// swagger:model DeriveFlashcardsRequest
type DeriveFlashcardsRequest struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	FolderID    string `json:"folder_id,omitempty"`
}

// streamEvent is one Server-Sent Event of a streamed generation.
type streamEvent struct {
	Type   string `json:"type"`
	Stage  string `json:"stage,omitempty"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	Status int    `json:"status,omitempty"`
}

// CreateQuiz generates and stores a quiz.
//
// swagger:route POST /api/quizzes createQuiz
//
// Generate a quiz grounded in the materials of the given sections. With
// ?stream=true progress stages are sent as Server-Sent Events, followed by
// a result or error event.
func (h *GenerationHandler) CreateQuiz(w http.ResponseWriter, r *http.Request) {
	var req generator.QuizRequest
	if err := decodeBody(r, &req); err != nil {
		contextutil.LoggerFromContext(r.Context()).Warn("invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	run(w, r, "Failed to generate quiz", func(ctx context.Context, progress generator.ProgressFunc) (*generator.QuizResult, error) {
		return h.svc.GenerateQuiz(ctx, req, progress)
	})
}

// CreateFlashcardSet generates and stores a flashcard set.
//
// swagger:route POST /api/flashcard-sets createFlashcardSet
func (h *GenerationHandler) CreateFlashcardSet(w http.ResponseWriter, r *http.Request) {
	var req generator.FlashcardRequest
	if err := decodeBody(r, &req); err != nil {
		contextutil.LoggerFromContext(r.Context()).Warn("invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	run(w, r, "Failed to generate flashcards", func(ctx context.Context, progress generator.ProgressFunc) (*generator.FlashcardResult, error) {
		return h.svc.GenerateFlashcards(ctx, req, progress)
	})
}

// DeriveFlashcards turns a stored quiz into a flashcard set.
//
// swagger:route POST /api/quizzes/{id}/flashcards deriveFlashcards
func (h *GenerationHandler) DeriveFlashcards(w http.ResponseWriter, r *http.Request) {
	var body DeriveFlashcardsRequest
	if err := decodeBody(r, &body); err != nil && !errors.Is(err, io.EOF) {
		contextutil.LoggerFromContext(r.Context()).Warn("invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req := generator.DeriveRequest{
		QuizID:      chi.URLParam(r, "id"),
		Name:        body.Name,
		Description: body.Description,
		FolderID:    body.FolderID,
	}
	run(w, r, "Failed to derive flashcards", func(ctx context.Context, progress generator.ProgressFunc) (*generator.FlashcardResult, error) {
		return h.svc.DeriveFlashcards(ctx, req, progress)
	})
}

// GetQuiz returns a stored quiz with its questions.
//
// swagger:route GET /api/quizzes/{id} getQuiz
func (h *GenerationHandler) GetQuiz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	quiz, err := h.svc.GetQuiz(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to load quiz")
		return
	}
	writeJSON(w, ctx, http.StatusOK, quiz)
}

// GetFlashcardSet returns a stored flashcard set with its cards.
//
// swagger:route GET /api/flashcard-sets/{id} getFlashcardSet
func (h *GenerationHandler) GetFlashcardSet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	set, err := h.svc.GetFlashcardSet(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to load flashcard set")
		return
	}
	writeJSON(w, ctx, http.StatusOK, set)
}

// run answers with a plain JSON body, or with an event stream when the
// caller asks for ?stream=true.
func run[T any](w http.ResponseWriter, r *http.Request, defaultMsg string, fn func(context.Context, generator.ProgressFunc) (T, error)) {
	ctx := r.Context()
	if r.URL.Query().Get("stream") != "true" {
		res, err := fn(ctx, nil)
		if err != nil {
			handleServiceError(w, ctx, err, defaultMsg)
			return
		}
		writeJSON(w, ctx, http.StatusCreated, res)
		return
	}

	logger := contextutil.LoggerFromContext(ctx)
	flusher, ok := w.(http.Flusher)
	if !ok {
		logger.Error("streaming not supported by response writer")
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(ev streamEvent) {
		data, err := json.Marshal(ev)
		if err != nil {
			logger.Error("failed to encode stream event", "error", err)
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			logger.Warn("failed to write stream event", "error", err)
			return
		}
		flusher.Flush()
	}

	res, err := fn(ctx, func(stage string) {
		send(streamEvent{Type: "progress", Stage: stage})
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("stream cancelled by client")
			return
		}
		status, msg := errorStatus(err, defaultMsg)
		logger.Warn("streamed generation failed", "error", err, "status", status)
		send(streamEvent{Type: "error", Error: msg, Status: status})
		return
	}
	send(streamEvent{Type: "result", Result: res})
}
