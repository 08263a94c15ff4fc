package storage

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultChapterTitle is the chapter title reported for chunks without heading structure.
const DefaultChapterTitle = "Main Content"

// MaterialType classifies an ingested document.
type MaterialType string

const (
	MaterialTextbook          MaterialType = "textbook"
	MaterialSyllabus          MaterialType = "syllabus"
	MaterialLectureNotes      MaterialType = "lecture_notes"
	MaterialPracticeQuestions MaterialType = "practice_questions"
	MaterialCustom            MaterialType = "custom"
)

// Valid reports whether t is a known material type.
func (t MaterialType) Valid() bool {
	switch t {
	case MaterialTextbook, MaterialSyllabus, MaterialLectureNotes, MaterialPracticeQuestions, MaterialCustom:
		return true
	}
	return false
}

// ContentType classifies a chunk.
type ContentType string

const (
	ContentText       ContentType = "text"
	ContentEquation   ContentType = "equation"
	ContentTheorem    ContentType = "theorem"
	ContentDefinition ContentType = "definition"
	ContentExample    ContentType = "example"
)

// Valid reports whether t is a known content type.
func (t ContentType) Valid() bool {
	switch t {
	case ContentText, ContentEquation, ContentTheorem, ContentDefinition, ContentExample:
		return true
	}
	return false
}

// Section groups materials. Sections are owned by an external CRUD surface;
// this store only maps names to ids.
type Section struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Material is one ingested source document.
type Material struct {
	ID             string // UUID
	SectionID      int64
	Type           MaterialType
	Title          string
	SourceFilename string
	TotalChunks    int // chunks with an embedding
	StoredChunks   int // all chunks, including those awaiting backfill
	HasMath        bool
	Metadata       MaterialMetadata
	Seq            int64 // creation order
	CreatedAt      time.Time
}

// MaterialMetadata holds the chapter and topic summaries written after ingestion.
type MaterialMetadata struct {
	HasChapters  bool             `json:"has_chapters"`
	Chapters     []ChapterSummary `json:"chapters,omitempty"`
	TopicSummary []string         `json:"topic_summary,omitempty"`
	Warnings     []string         `json:"warnings,omitempty"`
}

// ChapterSummary is one chapter of a material.
type ChapterSummary struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
}

// ChapterInfo is the structured part of a chunk's metadata.
type ChapterInfo struct {
	Number int
	Title  string
	Topics []string
}

// ChunkMetadata is decided once at ingestion. A nil Chapter means the chunk
// came from a document (or a preamble) without heading structure.
type ChunkMetadata struct {
	Chapter *ChapterInfo
	Page    int // 1-based; 0 when unknown
}

// Structured reports whether the chunk carries chapter metadata.
func (m ChunkMetadata) Structured() bool {
	return m.Chapter != nil
}

// ChapterTitle returns the chapter title, or DefaultChapterTitle for unstructured chunks.
func (m ChunkMetadata) ChapterTitle() string {
	if m.Chapter == nil || m.Chapter.Title == "" {
		return DefaultChapterTitle
	}
	return m.Chapter.Title
}

// ChapterNumber returns the chapter number and whether one is set.
func (m ChunkMetadata) ChapterNumber() (int, bool) {
	if m.Chapter == nil {
		return 0, false
	}
	return m.Chapter.Number, true
}

type chunkMetadataJSON struct {
	Kind         string   `json:"kind"`
	Chapter      *int     `json:"chapter,omitempty"`
	ChapterTitle string   `json:"chapter_title,omitempty"`
	Topics       []string `json:"topics,omitempty"`
	Page         int      `json:"page,omitempty"`
}

const (
	kindStructured   = "structured"
	kindUnstructured = "unstructured"
)

func (m ChunkMetadata) MarshalJSON() ([]byte, error) {
	out := chunkMetadataJSON{Kind: kindUnstructured, Page: m.Page}
	if m.Chapter != nil {
		n := m.Chapter.Number
		out.Kind = kindStructured
		out.Chapter = &n
		out.ChapterTitle = m.Chapter.Title
		out.Topics = m.Chapter.Topics
	}
	return json.Marshal(out)
}

func (m *ChunkMetadata) UnmarshalJSON(data []byte) error {
	var in chunkMetadataJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*m = ChunkMetadata{Page: in.Page}
	switch in.Kind {
	case kindStructured:
		if in.Chapter == nil {
			return fmt.Errorf("structured chunk metadata without chapter number")
		}
		m.Chapter = &ChapterInfo{Number: *in.Chapter, Title: in.ChapterTitle, Topics: in.Topics}
	case kindUnstructured, "":
	default:
		return fmt.Errorf("unknown chunk metadata kind %q", in.Kind)
	}
	return nil
}

// ChunkRecord is one persisted chunk.
type ChunkRecord struct {
	ID           string // UUID (same as the vector point ID)
	MaterialID   string
	ChunkIndex   int // contiguous 0..N-1 within a material
	Content      string
	ContentType  ContentType
	HasMath      bool
	LatexContent string    // verbatim source markup when HasMath
	Embedding    []float32 // nil until embedded
	TokenCount   int
	Metadata     ChunkMetadata
}

// Embedded reports whether the chunk has a vector.
func (c *ChunkRecord) Embedded() bool {
	return len(c.Embedding) > 0
}

// Quiz is a generated quiz.
type Quiz struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	FolderID     string     `json:"folder_id,omitempty"`
	SectionIDs   []int64    `json:"section_ids"`
	QuestionType string     `json:"question_type"`
	Difficulty   string     `json:"difficulty"`
	Questions    []Question `json:"questions"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Question is one quiz question.
type Question struct {
	ID             string            `json:"id"`
	QuizID         string            `json:"quiz_id"`
	Position       int               `json:"position"`
	Question       string            `json:"question"`
	Options        map[string]string `json:"options"` // "A".."D"; "True"/"False" for true_false
	CorrectAnswer  string            `json:"correct_answer"`
	Explanation    string            `json:"explanation"`
	Difficulty     string            `json:"difficulty"`
	Topic          string            `json:"topic"`
	Chapter        *int              `json:"chapter"`
	SourceChunkIDs []string          `json:"source_chunk_ids"` // weak references; may go stale
}

// FlashcardSet is a generated set of flashcards.
type FlashcardSet struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Description  string      `json:"description,omitempty"`
	FolderID     string      `json:"folder_id,omitempty"`
	SectionIDs   []int64     `json:"section_ids"`
	SourceQuizID string      `json:"source_quiz_id,omitempty"`
	Cards        []Flashcard `json:"cards"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Flashcard is one card of a set.
type Flashcard struct {
	ID             string   `json:"id"`
	SetID          string   `json:"set_id"`
	Position       int      `json:"position"`
	Front          string   `json:"front"`
	Back           string   `json:"back"`
	Topic          string   `json:"topic"`
	Chapter        *int     `json:"chapter"`
	SourceChunkIDs []string `json:"source_chunk_ids"`
}
