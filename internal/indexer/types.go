package indexer

import "studyrag/internal/storage"

// Input is one extracted document handed to the chunker.
type Input struct {
	Text string
	// HasMath enables inline math detection ($..$ and \(..\)). Display math is always protected.
	HasMath bool
	// Markdown selects goldmark heading detection instead of line heuristics.
	Markdown bool
	// PageAt maps a byte offset in Text to a 1-based page number. Optional.
	PageAt func(offset int) int
}

// Draft is a chunk produced by the chunker, not yet embedded or stored.
type Draft struct {
	Index        int                 // Position within the material (0..N-1)
	Content      string              // Normalized text used for embedding and display
	ContentType  storage.ContentType // text, equation, theorem, definition or example
	HasMath      bool
	LatexContent string // Verbatim source when HasMath
	TokenCount   int
	Metadata     storage.ChunkMetadata
}

// Record converts d into a storage record for materialID.
func (d Draft) Record(materialID string) *storage.ChunkRecord {
	return &storage.ChunkRecord{
		MaterialID:   materialID,
		ChunkIndex:   d.Index,
		Content:      d.Content,
		ContentType:  d.ContentType,
		HasMath:      d.HasMath,
		LatexContent: d.LatexContent,
		TokenCount:   d.TokenCount,
		Metadata:     d.Metadata,
	}
}
