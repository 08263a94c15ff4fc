package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"

	"studyrag/internal/storage"
)

const (
	// ChunkerVersion identifies the chunking rules. Update this when they change.
	ChunkerVersion = "v2.0"
	// RunesPerToken is the rune-to-token approximation used for budgets.
	RunesPerToken = 4
)

// ChunkingStats summarises the chunks produced for one material.
type ChunkingStats struct {
	Chunks       int                         `json:"chunks"`
	Embedded     int                         `json:"embedded"`
	Failed       int                         `json:"failed"`
	Structured   int                         `json:"structured"`
	ContentTypes map[storage.ContentType]int `json:"content_types"`
	Tokens       ChunkTokenStats             `json:"tokens"`
	// IndexVersion hashes the chunker version, embedding model and budgets.
	IndexVersion string `json:"index_version"`
}

// ChunkTokenStats contains statistics about token counts in chunks.
type ChunkTokenStats struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
	P95  int     `json:"p95"`
}

// Stats computes chunking statistics for drafts; embeddings may be shorter than
// drafts or contain nil entries for failures.
func (c *Chunker) Stats(drafts []Draft, embeddings [][]float32, embeddingModel string) ChunkingStats {
	stats := ChunkingStats{
		Chunks:       len(drafts),
		ContentTypes: make(map[storage.ContentType]int),
		IndexVersion: c.IndexVersion(embeddingModel),
	}
	counts := make([]int, 0, len(drafts))
	for i, d := range drafts {
		counts = append(counts, d.TokenCount)
		stats.ContentTypes[d.ContentType]++
		if d.Metadata.Structured() {
			stats.Structured++
		}
		if i < len(embeddings) && embeddings[i] != nil {
			stats.Embedded++
		}
	}
	stats.Failed = stats.Chunks - stats.Embedded
	stats.Tokens = computeTokenStats(counts)
	return stats
}

// IndexVersion returns a short hash identifying chunks built by this chunker for
// the given embedding model.
func (c *Chunker) IndexVersion(embeddingModel string) string {
	input := fmt.Sprintf("%s|%s|target=%d|max=%d|min=%d",
		ChunkerVersion, embeddingModel, c.targetTokens, c.maxTokens, c.minTokens)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16]
}

// computeTokenStats computes min, max, mean, and p95 from token counts.
func computeTokenStats(tokenCounts []int) ChunkTokenStats {
	if len(tokenCounts) == 0 {
		return ChunkTokenStats{}
	}

	sorted := make([]int, len(tokenCounts))
	copy(sorted, tokenCounts)
	sort.Ints(sorted)

	sum := 0
	for _, count := range sorted {
		sum += count
	}
	mean := float64(sum) / float64(len(sorted))

	p95Index := int(math.Ceil(float64(len(sorted))*0.95)) - 1
	if p95Index < 0 {
		p95Index = 0
	}

	return ChunkTokenStats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: math.Round(mean*100) / 100,
		P95:  sorted[p95Index],
	}
}
