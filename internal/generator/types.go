package generator

import (
	"errors"
	"fmt"

	"studyrag/internal/rag"
	"studyrag/internal/storage"
)

var (
	// ErrInvalidRequest marks generation requests rejected before any work.
	ErrInvalidRequest = errors.New("invalid generation request")
	// ErrInsufficientMaterial means the scope holds no chunks to ground on.
	ErrInsufficientMaterial = errors.New("no source material available for the selected sections")
	// ErrNoChapterMaterial means a chapter filter matched no chunks.
	ErrNoChapterMaterial = fmt.Errorf("%w: no source material in selected chapters", ErrInsufficientMaterial)
	// ErrMalformedOutput marks model output that failed decoding or validation.
	// It is retried.
	ErrMalformedOutput = errors.New("malformed model output")
)

// QuestionType is the kind of quiz question.
type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
)

// Difficulty of a question.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
	Mixed  Difficulty = "mixed"
)

func (d Difficulty) valid() bool {
	switch d {
	case Easy, Medium, Hard, Mixed:
		return true
	}
	return false
}

// Request limits.
const (
	DefaultQuestionCount  = 10
	MaxQuestionCount      = 50
	DefaultFlashcardCount = 20
	MaxFlashcardCount     = 100
)

// Progress stages.
const (
	StageResolving           = "resolving materials"
	StageRetrieving          = "retrieving content"
	StageGeneratingQuestions = "generating questions"
	StageGeneratingCards     = "generating flashcards"
	StageValidating          = "validating output"
	StageSaving              = "saving"
)

// ProgressFunc receives human-readable milestones. It may be nil.
type ProgressFunc func(stage string)

func (f ProgressFunc) report(stage string) {
	if f != nil {
		f(stage)
	}
}

// QuizRequest asks for a quiz grounded in the materials of some sections.
type QuizRequest struct {
	SectionIDs    []int64           `json:"section_ids"`
	QuestionCount int               `json:"question_count"`
	QuestionType  QuestionType      `json:"question_type"`
	Difficulty    Difficulty        `json:"difficulty"`
	ChapterFilter rag.ChapterFilter `json:"chapter_filter,omitempty"`
	Name          string            `json:"name"`
	Description   string            `json:"description,omitempty"`
	FolderID      string            `json:"folder_id,omitempty"`
}

// FlashcardRequest asks for a flashcard set. Topic, when set, selects chunks
// by similarity instead of sampling.
type FlashcardRequest struct {
	SectionIDs    []int64           `json:"section_ids"`
	Count         int               `json:"count"`
	Topic         string            `json:"topic,omitempty"`
	ChapterFilter rag.ChapterFilter `json:"chapter_filter,omitempty"`
	Name          string            `json:"name"`
	Description   string            `json:"description,omitempty"`
	FolderID      string            `json:"folder_id,omitempty"`
}

// DeriveRequest turns quiz questions into flashcards. Either QuizID or
// Questions must be set.
type DeriveRequest struct {
	QuizID      string             `json:"quiz_id,omitempty"`
	Questions   []storage.Question `json:"questions,omitempty"`
	Name        string             `json:"name,omitempty"`
	Description string             `json:"description,omitempty"`
	FolderID    string             `json:"folder_id,omitempty"`
}

// QuizResult is a persisted quiz plus non-fatal warnings.
type QuizResult struct {
	Quiz     *storage.Quiz `json:"quiz"`
	Warnings []string      `json:"warnings,omitempty"`
}

// FlashcardResult is a persisted flashcard set plus non-fatal warnings.
type FlashcardResult struct {
	Set      *storage.FlashcardSet `json:"set"`
	Warnings []string              `json:"warnings,omitempty"`
}
