package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_study_service.go -package=mocks -mock_names=StudyService=MockStudyService studyrag/internal/service StudyService
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_deps.go -package=mocks studyrag/internal/service Ingester,Retriever,StructureAnalyzer,Generator

import (
	"context"
	"errors"
	"strings"

	"studyrag/internal/chunkstore"
	"studyrag/internal/contextutil"
	"studyrag/internal/generator"
	"studyrag/internal/indexer"
	"studyrag/internal/rag"
	"studyrag/internal/storage"
	"studyrag/internal/structure"
)

// Ingester stores documents as embedded chunks.
// This interface is defined from the service layer's perspective (consumer-first).
type Ingester interface {
	Ingest(ctx context.Context, req indexer.Request) (*indexer.Result, error)
	Backfill(ctx context.Context, materialID string) (chunkstore.BackfillResult, error)
	Delete(ctx context.Context, materialID string) error
}

// Retriever ranks chunks by similarity to a query.
type Retriever interface {
	Retrieve(ctx context.Context, q rag.Query) ([]rag.Result, error)
}

// StructureAnalyzer reports the chapter structure of a section's materials.
type StructureAnalyzer interface {
	AnalyzeSection(ctx context.Context, sectionID int64) (*structure.SectionResult, error)
}

// Generator produces and loads quizzes and flashcard sets.
type Generator interface {
	GenerateQuiz(ctx context.Context, req generator.QuizRequest, progress generator.ProgressFunc) (*generator.QuizResult, error)
	GenerateFlashcards(ctx context.Context, req generator.FlashcardRequest, progress generator.ProgressFunc) (*generator.FlashcardResult, error)
	DeriveFlashcardsFromQuiz(ctx context.Context, req generator.DeriveRequest, progress generator.ProgressFunc) (*generator.FlashcardResult, error)
	GetQuiz(ctx context.Context, id string) (*storage.Quiz, error)
	GetFlashcardSet(ctx context.Context, id string) (*storage.FlashcardSet, error)
}

// IngestRequest is one uploaded document.
type IngestRequest struct {
	SectionID int64
	Filename  string
	Type      storage.MaterialType
	Title     string
	Data      []byte
}

// StudyService is the single entry point used by the HTTP and CLI surfaces.
type StudyService interface {
	// IngestMaterial extracts, chunks, embeds and stores one document.
	IngestMaterial(ctx context.Context, req IngestRequest) (*indexer.Result, error)
	// DeleteMaterial removes a material with its chunks and vectors.
	DeleteMaterial(ctx context.Context, materialID string) error
	// BackfillMaterial retries embedding for chunks stored without a vector.
	BackfillMaterial(ctx context.Context, materialID string) (chunkstore.BackfillResult, error)
	// Search runs a general similarity search.
	Search(ctx context.Context, q rag.Query) ([]rag.Result, error)
	// Hints runs a small, thresholded search for interactive hints.
	Hints(ctx context.Context, q rag.Query) ([]rag.Result, error)
	// SectionStructure analyzes each material of a section.
	SectionStructure(ctx context.Context, sectionID int64) (*structure.SectionResult, error)
	GenerateQuiz(ctx context.Context, req generator.QuizRequest, progress generator.ProgressFunc) (*generator.QuizResult, error)
	GenerateFlashcards(ctx context.Context, req generator.FlashcardRequest, progress generator.ProgressFunc) (*generator.FlashcardResult, error)
	DeriveFlashcards(ctx context.Context, req generator.DeriveRequest, progress generator.ProgressFunc) (*generator.FlashcardResult, error)
	GetQuiz(ctx context.Context, id string) (*storage.Quiz, error)
	GetFlashcardSet(ctx context.Context, id string) (*storage.FlashcardSet, error)
}

// Deps are the collaborators of the study service.
type Deps struct {
	Ingester  Ingester
	Retriever Retriever
	Analyzer  StructureAnalyzer
	Generator Generator
	Sections  storage.SectionStore
	Materials storage.MaterialStore
}

type studyService struct {
	deps Deps
}

// NewStudyService creates a new StudyService.
func NewStudyService(deps Deps) StudyService {
	return &studyService{deps: deps}
}

func (s *studyService) IngestMaterial(ctx context.Context, req IngestRequest) (*indexer.Result, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if len(req.Data) == 0 {
		return nil, &ValidationError{Field: "content", Message: "cannot be empty"}
	}
	if strings.TrimSpace(req.Filename) == "" {
		return nil, &ValidationError{Field: "filename", Message: "cannot be empty"}
	}
	if _, err := s.deps.Sections.GetByID(ctx, req.SectionID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &ValidationError{Field: "section_id", Message: "unknown section"}
		}
		return nil, WrapError(err, "failed to look up section")
	}

	res, err := s.deps.Ingester.Ingest(ctx, indexer.Request{
		SectionID: req.SectionID,
		Filename:  req.Filename,
		Type:      req.Type,
		Title:     req.Title,
		Data:      req.Data,
	})
	if err != nil {
		logger.Error("failed to ingest material", "filename", req.Filename, "error", err)
		return nil, classify(err, "failed to ingest material")
	}
	return res, nil
}

func (s *studyService) DeleteMaterial(ctx context.Context, materialID string) error {
	if materialID == "" {
		return &ValidationError{Field: "material_id", Message: "cannot be empty"}
	}
	return classify(s.deps.Ingester.Delete(ctx, materialID), "failed to delete material")
}

func (s *studyService) BackfillMaterial(ctx context.Context, materialID string) (chunkstore.BackfillResult, error) {
	if _, err := s.deps.Materials.GetByID(ctx, materialID); err != nil {
		return chunkstore.BackfillResult{}, classify(err, "failed to look up material")
	}
	res, err := s.deps.Ingester.Backfill(ctx, materialID)
	if err != nil {
		return res, classify(err, "failed to backfill embeddings")
	}
	return res, nil
}

func (s *studyService) Search(ctx context.Context, q rag.Query) ([]rag.Result, error) {
	q.Mode = rag.ModeGeneral
	return s.retrieve(ctx, q)
}

func (s *studyService) Hints(ctx context.Context, q rag.Query) ([]rag.Result, error) {
	q.Mode = rag.ModeHint
	return s.retrieve(ctx, q)
}

func (s *studyService) retrieve(ctx context.Context, q rag.Query) ([]rag.Result, error) {
	results, err := s.deps.Retriever.Retrieve(ctx, q)
	if err != nil {
		contextutil.LoggerFromContext(ctx).Error("retrieval failed", "mode", q.Mode, "error", err)
		return nil, classify(err, "failed to search materials")
	}
	return results, nil
}

func (s *studyService) SectionStructure(ctx context.Context, sectionID int64) (*structure.SectionResult, error) {
	if _, err := s.deps.Sections.GetByID(ctx, sectionID); err != nil {
		return nil, classify(err, "failed to look up section")
	}
	res, err := s.deps.Analyzer.AnalyzeSection(ctx, sectionID)
	if err != nil {
		return nil, classify(err, "failed to analyze section")
	}
	return res, nil
}

func (s *studyService) GenerateQuiz(ctx context.Context, req generator.QuizRequest, progress generator.ProgressFunc) (*generator.QuizResult, error) {
	res, err := s.deps.Generator.GenerateQuiz(ctx, req, progress)
	if err != nil {
		contextutil.LoggerFromContext(ctx).Error("quiz generation failed", "error", err)
		return nil, classify(err, "failed to generate quiz")
	}
	return res, nil
}

func (s *studyService) GenerateFlashcards(ctx context.Context, req generator.FlashcardRequest, progress generator.ProgressFunc) (*generator.FlashcardResult, error) {
	res, err := s.deps.Generator.GenerateFlashcards(ctx, req, progress)
	if err != nil {
		contextutil.LoggerFromContext(ctx).Error("flashcard generation failed", "error", err)
		return nil, classify(err, "failed to generate flashcards")
	}
	return res, nil
}

func (s *studyService) DeriveFlashcards(ctx context.Context, req generator.DeriveRequest, progress generator.ProgressFunc) (*generator.FlashcardResult, error) {
	res, err := s.deps.Generator.DeriveFlashcardsFromQuiz(ctx, req, progress)
	if err != nil {
		return nil, classify(err, "failed to derive flashcards")
	}
	return res, nil
}

func (s *studyService) GetQuiz(ctx context.Context, id string) (*storage.Quiz, error) {
	q, err := s.deps.Generator.GetQuiz(ctx, id)
	if err != nil {
		return nil, classify(err, "failed to load quiz")
	}
	return q, nil
}

func (s *studyService) GetFlashcardSet(ctx context.Context, id string) (*storage.FlashcardSet, error) {
	set, err := s.deps.Generator.GetFlashcardSet(ctx, id)
	if err != nil {
		return nil, classify(err, "failed to load flashcard set")
	}
	return set, nil
}
