// Package generator builds quizzes and flashcard sets grounded in indexed
// study material.
package generator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"studyrag/internal/contextutil"
	"studyrag/internal/llm"
	"studyrag/internal/rag"
	"studyrag/internal/retry"
	"studyrag/internal/storage"
)

// ChunkRetriever ranks chunks by similarity. rag.Retriever satisfies it.
type ChunkRetriever interface {
	Retrieve(ctx context.Context, q rag.Query) ([]rag.Result, error)
}

// Config controls sampling, context size and model calls.
type Config struct {
	// SampleChunks is the number of chunks offered to the model.
	SampleChunks int
	// ContextTokens bounds the rendered source context.
	ContextTokens int
	MaxTokens     int
	Temperature   float32
	// Policy governs model calls. Malformed output is retried under it too.
	Policy retry.Policy
}

// Generator produces grounded study items and persists them.
type Generator struct {
	db        *sql.DB
	chat      llm.ChatModel
	materials storage.MaterialStore
	chunks    storage.ChunkStore
	retriever ChunkRetriever
	cfg       Config
}

// New creates a Generator. retriever may be nil, in which case topics are
// ignored and chunks are always sampled.
func New(db *sql.DB, chat llm.ChatModel, materials storage.MaterialStore, chunks storage.ChunkStore, retriever ChunkRetriever, cfg Config) *Generator {
	if cfg.SampleChunks <= 0 {
		cfg.SampleChunks = 40
	}
	if cfg.ContextTokens <= 0 {
		cfg.ContextTokens = 6000
	}
	return &Generator{
		db:        db,
		chat:      chat,
		materials: materials,
		chunks:    chunks,
		retriever: retriever,
		cfg:       cfg,
	}
}

// GenerateQuiz samples the sections' chunks, asks the model for questions and
// persists the quiz with its questions in one transaction.
func (g *Generator) GenerateQuiz(ctx context.Context, req QuizRequest, progress ProgressFunc) (*QuizResult, error) {
	logger := contextutil.LoggerFromContext(ctx)
	start := time.Now()

	if err := normalizeQuiz(&req); err != nil {
		return nil, err
	}

	progress.report(StageResolving)
	materials, err := g.resolve(ctx, req.SectionIDs)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	progress.report(StageRetrieving)
	sources, err := g.sample(ctx, materials, req.ChapterFilter)
	if err != nil {
		return nil, err
	}
	sourceText, ids, warnings := g.assemble(sources)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	progress.report(StageGeneratingQuestions)
	messages := quizMessages(req, sourceText)
	index := newSourceIndex(ids)
	out, err := generate(ctx, g, messages, progress, func(raw string) (parsed[storage.Question], error) {
		return parseQuestions(raw, req.QuestionType, req.Difficulty, req.QuestionCount, index)
	})
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, out.warnings...)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	progress.report(StageSaving)
	quiz := &storage.Quiz{
		Name:         req.Name,
		Description:  req.Description,
		FolderID:     req.FolderID,
		SectionIDs:   req.SectionIDs,
		QuestionType: string(req.QuestionType),
		Difficulty:   string(req.Difficulty),
		Questions:    out.items,
	}
	err = storage.WithTx(ctx, g.db, g.cfg.Policy, func(tx *sql.Tx) error {
		return storage.NewQuizRepo(tx).Insert(ctx, quiz)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save quiz: %w", err)
	}

	logger.Info("quiz generated",
		"quiz_id", quiz.ID,
		"sources", len(ids),
		"questions", len(quiz.Questions),
		"requested", req.QuestionCount,
		"warnings", len(warnings),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &QuizResult{Quiz: quiz, Warnings: warnings}, nil
}

// GenerateFlashcards builds a flashcard set. With a topic the most similar
// chunks are used; otherwise, or when nothing matches, chunks are sampled.
func (g *Generator) GenerateFlashcards(ctx context.Context, req FlashcardRequest, progress ProgressFunc) (*FlashcardResult, error) {
	logger := contextutil.LoggerFromContext(ctx)
	start := time.Now()

	if err := normalizeFlashcards(&req); err != nil {
		return nil, err
	}

	progress.report(StageResolving)
	materials, err := g.resolve(ctx, req.SectionIDs)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	progress.report(StageRetrieving)
	var sources []source
	var warnings []string
	if req.Topic != "" && g.retriever != nil {
		sources, err = g.byTopic(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			logger.Warn("topic retrieval failed, sampling instead", "topic", req.Topic, "error", err)
			warnings = append(warnings, "topic search unavailable; cards drawn from a sample of the material")
		}
	}
	if len(sources) == 0 {
		if sources, err = g.sample(ctx, materials, req.ChapterFilter); err != nil {
			return nil, err
		}
	}
	sourceText, ids, trimmed := g.assemble(sources)
	warnings = append(warnings, trimmed...)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	progress.report(StageGeneratingCards)
	messages := flashcardMessages(req, sourceText)
	index := newSourceIndex(ids)
	out, err := generate(ctx, g, messages, progress, func(raw string) (parsed[storage.Flashcard], error) {
		return parseCards(raw, req.Count, index)
	})
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, out.warnings...)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	progress.report(StageSaving)
	set := &storage.FlashcardSet{
		Name:        req.Name,
		Description: req.Description,
		FolderID:    req.FolderID,
		SectionIDs:  req.SectionIDs,
		Cards:       out.items,
	}
	if err := g.saveSet(ctx, set); err != nil {
		return nil, err
	}

	logger.Info("flashcards generated",
		"set_id", set.ID,
		"sources", len(ids),
		"cards", len(set.Cards),
		"requested", req.Count,
		"warnings", len(warnings),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &FlashcardResult{Set: set, Warnings: warnings}, nil
}

// DeriveFlashcardsFromQuiz turns each question into a card without calling the
// model. Source references that no longer resolve are dropped.
func (g *Generator) DeriveFlashcardsFromQuiz(ctx context.Context, req DeriveRequest, progress ProgressFunc) (*FlashcardResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	progress.report(StageResolving)
	questions := req.Questions
	var sectionIDs []int64
	name := strings.TrimSpace(req.Name)
	if req.QuizID != "" {
		quiz, err := g.GetQuiz(ctx, req.QuizID)
		if err != nil {
			return nil, err
		}
		questions = quiz.Questions
		sectionIDs = quiz.SectionIDs
		if name == "" {
			name = quiz.Name + " flashcards"
		}
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: no questions to derive flashcards from", ErrInvalidRequest)
	}
	if name == "" {
		name = "Flashcards"
	}

	var warnings []string
	cards := make([]storage.Flashcard, 0, len(questions))
	var refs []string
	for i, q := range questions {
		front := strings.TrimSpace(q.Question)
		if front == "" {
			warnings = append(warnings, fmt.Sprintf("question %d skipped: empty question", i+1))
			continue
		}
		card := storage.Flashcard{
			Front:          front,
			Back:           answerBack(q),
			Topic:          q.Topic,
			SourceChunkIDs: q.SourceChunkIDs,
		}
		if q.Chapter != nil {
			n := *q.Chapter
			card.Chapter = &n
		}
		refs = append(refs, q.SourceChunkIDs...)
		cards = append(cards, card)
	}
	if len(cards) == 0 {
		return nil, fmt.Errorf("%w: no usable questions", ErrInvalidRequest)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(refs) > 0 {
		live, err := g.chunks.GetByIDs(ctx, refs)
		if err != nil {
			return nil, fmt.Errorf("failed to check source chunks: %w", err)
		}
		stale := 0
		for i := range cards {
			kept := cards[i].SourceChunkIDs[:0:0]
			for _, id := range cards[i].SourceChunkIDs {
				if _, ok := live[id]; ok {
					kept = append(kept, id)
				} else {
					stale++
				}
			}
			cards[i].SourceChunkIDs = kept
		}
		if stale > 0 {
			warnings = append(warnings, fmt.Sprintf("%d stale source references dropped", stale))
		}
	}

	progress.report(StageSaving)
	set := &storage.FlashcardSet{
		Name:         name,
		Description:  req.Description,
		FolderID:     req.FolderID,
		SectionIDs:   sectionIDs,
		SourceQuizID: req.QuizID,
		Cards:        cards,
	}
	if err := g.saveSet(ctx, set); err != nil {
		return nil, err
	}

	logger.Info("flashcards derived from quiz", "set_id", set.ID, "quiz_id", req.QuizID, "cards", len(cards))
	return &FlashcardResult{Set: set, Warnings: warnings}, nil
}

// GetQuiz loads a persisted quiz.
func (g *Generator) GetQuiz(ctx context.Context, id string) (*storage.Quiz, error) {
	return storage.NewQuizRepo(g.db).GetByID(ctx, id)
}

// GetFlashcardSet loads a persisted flashcard set.
func (g *Generator) GetFlashcardSet(ctx context.Context, id string) (*storage.FlashcardSet, error) {
	return storage.NewFlashcardRepo(g.db).GetByID(ctx, id)
}

func (g *Generator) saveSet(ctx context.Context, set *storage.FlashcardSet) error {
	err := storage.WithTx(ctx, g.db, g.cfg.Policy, func(tx *sql.Tx) error {
		return storage.NewFlashcardRepo(tx).Insert(ctx, set)
	})
	if err != nil {
		return fmt.Errorf("failed to save flashcard set: %w", err)
	}
	return nil
}

func (g *Generator) resolve(ctx context.Context, sectionIDs []int64) ([]storage.Material, error) {
	materials, err := g.materials.ListBySections(ctx, sectionIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sections: %w", err)
	}
	if len(materials) == 0 {
		return nil, ErrInsufficientMaterial
	}
	return materials, nil
}

type pool struct {
	material storage.Material
	chunks   []storage.ChunkRecord
}

// sample draws up to SampleChunks chunks across materials in proportion to
// their size, evenly spaced by ordinal within each material.
func (g *Generator) sample(ctx context.Context, materials []storage.Material, filter rag.ChapterFilter) ([]source, error) {
	pools := make([]pool, 0, len(materials))
	for _, m := range materials {
		var chunks []storage.ChunkRecord
		var err error
		if len(filter) > 0 {
			chapters, ok := filter[m.ID]
			if !ok {
				continue
			}
			if len(chapters) == 0 {
				chunks, err = g.chunks.ListByMaterial(ctx, m.ID)
			} else {
				chunks, err = g.chunks.ListByMaterialChapters(ctx, m.ID, chapters)
			}
		} else {
			chunks, err = g.chunks.ListByMaterial(ctx, m.ID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load chunks of material %s: %w", m.ID, err)
		}
		if len(chunks) > 0 {
			pools = append(pools, pool{material: m, chunks: chunks})
		}
	}

	if len(pools) == 0 {
		if len(filter) > 0 {
			return nil, ErrNoChapterMaterial
		}
		return nil, ErrInsufficientMaterial
	}

	weights := make([]int, len(pools))
	for i, p := range pools {
		weights[i] = len(p.chunks)
	}
	var out []source
	for i, n := range allocate(weights, g.cfg.SampleChunks) {
		p := pools[i]
		for _, idx := range evenly(len(p.chunks), n) {
			out = append(out, sourceFromChunk(p.chunks[idx], p.material.Title))
		}
	}
	return out, nil
}

func (g *Generator) byTopic(ctx context.Context, req FlashcardRequest) ([]source, error) {
	results, err := g.retriever.Retrieve(ctx, rag.Query{
		Text:          req.Topic,
		Scope:         rag.Scope{SectionIDs: req.SectionIDs},
		TopK:          min(g.cfg.SampleChunks, rag.MaxTopK),
		ChapterFilter: req.ChapterFilter,
		Mode:          rag.ModeGrounding,
	})
	if err != nil {
		return nil, err
	}
	out := make([]source, 0, len(results))
	for _, r := range results {
		out = append(out, sourceFromResult(r))
	}
	return out, nil
}

// assemble fits sources to the context budget and renders them with labels.
func (g *Generator) assemble(sources []source) (string, map[string]string, []string) {
	kept, trimmed := fitBudget(sources, g.cfg.ContextTokens)
	var warnings []string
	if trimmed {
		warnings = append(warnings, fmt.Sprintf("source context reduced to %d of %d chunks", len(kept), len(sources)))
	}
	ids := label(kept)
	return renderContext(kept), ids, warnings
}

// generate calls the model and parses its output under the generation retry
// policy. Malformed output is retried like a transient provider failure.
func generate[T any](ctx context.Context, g *Generator, messages []llm.Message, progress ProgressFunc, parse func(string) (parsed[T], error)) (parsed[T], error) {
	logger := contextutil.LoggerFromContext(ctx)

	policy := g.cfg.Policy
	policy.Retryable = func(err error) bool {
		return errors.Is(err, ErrMalformedOutput) || retry.IsRetryable(err)
	}
	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		logger.Warn("generation attempt failed", "attempt", attempt, "error", err, "retry_in", wait)
	}

	params := llm.ChatParams{
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		JSON:        true,
	}
	out, err := retry.DoValue(ctx, policy, func(ctx context.Context) (parsed[T], error) {
		raw, err := g.chat.ChatWithMessages(ctx, messages, params)
		if err != nil {
			return parsed[T]{}, err
		}
		progress.report(StageValidating)
		return parse(raw)
	})
	if err != nil {
		return parsed[T]{}, fmt.Errorf("generation failed: %w", err)
	}
	return out, nil
}

func answerBack(q storage.Question) string {
	answer := q.CorrectAnswer
	if text, ok := q.Options[q.CorrectAnswer]; ok && text != q.CorrectAnswer {
		answer = q.CorrectAnswer + ") " + text
	}
	if e := strings.TrimSpace(q.Explanation); e != "" {
		return answer + "\n\n" + e
	}
	return answer
}

func normalizeQuiz(req *QuizRequest) error {
	if len(req.SectionIDs) == 0 {
		return fmt.Errorf("%w: at least one section id is required", ErrInvalidRequest)
	}
	switch {
	case req.QuestionCount == 0:
		req.QuestionCount = DefaultQuestionCount
	case req.QuestionCount < 0 || req.QuestionCount > MaxQuestionCount:
		return fmt.Errorf("%w: question_count must be between 1 and %d", ErrInvalidRequest, MaxQuestionCount)
	}
	switch req.QuestionType {
	case "":
		req.QuestionType = MultipleChoice
	case MultipleChoice, TrueFalse:
	default:
		return fmt.Errorf("%w: unknown question type %q", ErrInvalidRequest, req.QuestionType)
	}
	if req.Difficulty == "" {
		req.Difficulty = Mixed
	}
	if !req.Difficulty.valid() {
		return fmt.Errorf("%w: unknown difficulty %q", ErrInvalidRequest, req.Difficulty)
	}
	if err := checkChapterFilter(req.ChapterFilter); err != nil {
		return err
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		req.Name = "Quiz"
	}
	return nil
}

func normalizeFlashcards(req *FlashcardRequest) error {
	if len(req.SectionIDs) == 0 {
		return fmt.Errorf("%w: at least one section id is required", ErrInvalidRequest)
	}
	switch {
	case req.Count == 0:
		req.Count = DefaultFlashcardCount
	case req.Count < 0 || req.Count > MaxFlashcardCount:
		return fmt.Errorf("%w: count must be between 1 and %d", ErrInvalidRequest, MaxFlashcardCount)
	}
	if err := checkChapterFilter(req.ChapterFilter); err != nil {
		return err
	}
	req.Topic = strings.TrimSpace(req.Topic)
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		req.Name = "Flashcards"
		if req.Topic != "" {
			req.Name = req.Topic + " flashcards"
		}
	}
	return nil
}

func checkChapterFilter(f rag.ChapterFilter) error {
	for id, chapters := range f {
		if id == "" {
			return fmt.Errorf("%w: chapter_filter has an empty material id", ErrInvalidRequest)
		}
		for _, n := range chapters {
			if n <= 0 {
				return fmt.Errorf("%w: chapter numbers must be positive", ErrInvalidRequest)
			}
		}
	}
	return nil
}
