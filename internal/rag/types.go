package rag

import "studyrag/internal/storage"

// Mode selects retrieval defaults.
type Mode string

const (
	// ModeGeneral is interactive search: 10 results, no similarity floor.
	ModeGeneral Mode = "general"
	// ModeHint is hint lookup: 5 results, similarity floor 0.4.
	ModeHint Mode = "hint"
	// ModeGrounding feeds generation: 10 results, no floor.
	ModeGrounding Mode = "grounding"
)

const (
	// MaxTopK caps the number of results of one query.
	MaxTopK = 50

	defaultTopK      = 10
	hintTopK         = 5
	defaultHintFloor = 0.4
)

func (m Mode) defaults() (topK int, threshold float32) {
	switch m {
	case ModeHint:
		return hintTopK, defaultHintFloor
	default:
		return defaultTopK, 0
	}
}

// Scope selects which materials a query searches. The zero value is an empty
// scope and matches nothing.
type Scope struct {
	// All searches every material.
	All bool `json:"all,omitempty"`
	// MaterialIDs lists materials to search.
	MaterialIDs []string `json:"material_ids,omitempty"`
	// SectionIDs adds every material of these sections.
	SectionIDs []int64 `json:"section_ids,omitempty"`
}

// Empty reports whether the scope can match no material.
func (s Scope) Empty() bool {
	return !s.All && len(s.MaterialIDs) == 0 && len(s.SectionIDs) == 0
}

// ChapterFilter restricts materials to chapter numbers. When set, only the
// materials it names are searched.
type ChapterFilter map[string][]int

// Query is one retrieval request.
type Query struct {
	Text  string
	Scope Scope
	// TopK is the number of results; 0 uses the mode default. Capped at MaxTopK.
	TopK int
	// Threshold drops results below this similarity. Nil uses the mode
	// default; an explicit 0 disables the floor, including in hint mode.
	Threshold     *float32
	ChapterFilter ChapterFilter
	ContentType   storage.ContentType
	Mode          Mode
}

// Result is one ranked chunk.
type Result struct {
	ChunkID       string              `json:"chunk_id"`
	MaterialID    string              `json:"material_id"`
	MaterialTitle string              `json:"material_title"`
	Content       string              `json:"content"`
	LatexContent  string              `json:"latex_content,omitempty"`
	ContentType   storage.ContentType `json:"content_type"`
	Similarity    float32             `json:"similarity"`
	Chapter       *int                `json:"chapter"`
	ChapterTitle  string              `json:"chapter_title"`
	ChunkIndex    int                 `json:"chunk_index"`
	Page          int                 `json:"page,omitempty"`

	// seq orders ties by material creation.
	seq int64
}
