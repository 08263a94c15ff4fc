// Package structure decides, per material, whether chunks carry reliable
// chapter structure and summarises it.
package structure

import (
	"context"
	"fmt"
	"math"
	"sort"

	"studyrag/internal/storage"
)

const (
	DefaultThreshold        = 0.30
	DefaultChunksPerCluster = 25
	topicSummarySize        = 8

	MessageNoEmbeddings = "no embeddings"
	MessageUnstructured = "no reliable chapter structure"
)

// Chapter summarises the chunks of one chapter.
type Chapter struct {
	Number     int      `json:"number"`
	Title      string   `json:"title"`
	ChunkCount int      `json:"chunk_count"`
	Percentage float64  `json:"percentage"`
	Topics     []string `json:"topics"`
}

// Result is the structure of one material.
type Result struct {
	MaterialID        string    `json:"material_id,omitempty"`
	Title             string    `json:"title,omitempty"`
	HasChapters       bool      `json:"has_chapters"`
	Chapters          []Chapter `json:"chapters"`
	EstimatedClusters int       `json:"estimated_clusters"`
	Message           string    `json:"message,omitempty"`
	TopicSummary      []string  `json:"topic_summary"`
}

// SectionResult holds one Result per material in creation order.
type SectionResult struct {
	SectionID   int64    `json:"section_id"`
	PerMaterial []Result `json:"per_material"`
}

// MaterialLister lists the materials of sections in creation order.
type MaterialLister interface {
	ListBySections(ctx context.Context, sectionIDs []int64) ([]storage.Material, error)
}

// ChunkLister lists the chunks of a material.
type ChunkLister interface {
	ListByMaterial(ctx context.Context, materialID string) ([]storage.ChunkRecord, error)
}

// Analyzer classifies materials as structured or unstructured.
type Analyzer struct {
	threshold        float64
	chunksPerCluster int
	materials        MaterialLister
	chunks           ChunkLister
}

// New creates an Analyzer. Out-of-range parameters fall back to the defaults.
// materials and chunks are only needed by AnalyzeSection.
func New(threshold float64, chunksPerCluster int, materials MaterialLister, chunks ChunkLister) *Analyzer {
	if threshold < 0 || threshold >= 1 {
		threshold = DefaultThreshold
	}
	if chunksPerCluster <= 0 {
		chunksPerCluster = DefaultChunksPerCluster
	}
	return &Analyzer{
		threshold:        threshold,
		chunksPerCluster: chunksPerCluster,
		materials:        materials,
		chunks:           chunks,
	}
}

// Analyze inspects the chunks of a single material. It is pure: the same chunks
// always produce the same Result.
//
// A chunk counts toward structure when it carries chapter metadata whose title
// is not the default placeholder. The material has chapters when that fraction is
// strictly greater than the threshold and at least one chapter exists.
func (a *Analyzer) Analyze(chunks []storage.ChunkRecord) Result {
	res := Result{Chapters: []Chapter{}, TopicSummary: []string{}}

	texts := make([]string, 0, len(chunks))
	byNumber := make(map[int]*Chapter)
	seenTopics := make(map[int]map[string]bool)
	valid, embedded := 0, 0

	for _, c := range chunks {
		texts = append(texts, c.Content)
		if c.Embedded() {
			embedded++
		}
		ch := c.Metadata.Chapter
		if ch == nil || c.Metadata.ChapterTitle() == storage.DefaultChapterTitle {
			continue
		}
		valid++
		summary, ok := byNumber[ch.Number]
		if !ok {
			summary = &Chapter{Number: ch.Number, Title: ch.Title, Topics: []string{}}
			byNumber[ch.Number] = summary
			seenTopics[ch.Number] = make(map[string]bool)
		}
		summary.ChunkCount++
		for _, topic := range ch.Topics {
			if !seenTopics[ch.Number][topic] {
				seenTopics[ch.Number][topic] = true
				summary.Topics = append(summary.Topics, topic)
			}
		}
	}

	if topics := topKeywords(texts, topicSummarySize); len(topics) > 0 {
		res.TopicSummary = topics
	}

	total := len(chunks)
	if total > 0 && len(byNumber) > 0 && float64(valid)/float64(total) > a.threshold {
		res.HasChapters = true
		for _, ch := range byNumber {
			ch.Percentage = math.Round(float64(ch.ChunkCount)/float64(total)*1000) / 10
			res.Chapters = append(res.Chapters, *ch)
		}
		sort.Slice(res.Chapters, func(i, j int) bool { return res.Chapters[i].Number < res.Chapters[j].Number })
		return res
	}

	res.EstimatedClusters = a.EstimateClusters(embedded)
	if embedded == 0 {
		res.Message = MessageNoEmbeddings
	} else {
		res.Message = MessageUnstructured
	}
	return res
}

// EstimateClusters is the advisory topic count for unstructured material:
// max(2, ceil(embedded/chunksPerCluster)), or 0 without embeddings.
func (a *Analyzer) EstimateClusters(embedded int) int {
	if embedded <= 0 {
		return 0
	}
	n := (embedded + a.chunksPerCluster - 1) / a.chunksPerCluster
	return max(2, n)
}

// Metadata converts a Result into the summary stored on the material.
func (r Result) Metadata() storage.MaterialMetadata {
	meta := storage.MaterialMetadata{
		HasChapters:  r.HasChapters,
		TopicSummary: r.TopicSummary,
	}
	for _, ch := range r.Chapters {
		meta.Chapters = append(meta.Chapters, storage.ChapterSummary{Number: ch.Number, Title: ch.Title})
	}
	return meta
}

// AnalyzeMaterial loads and analyzes one material.
func (a *Analyzer) AnalyzeMaterial(ctx context.Context, m storage.Material) (Result, error) {
	chunks, err := a.chunks.ListByMaterial(ctx, m.ID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list chunks of %s: %w", m.ID, err)
	}
	res := a.Analyze(chunks)
	res.MaterialID = m.ID
	res.Title = m.Title
	return res, nil
}

// AnalyzeSection analyzes every material of a section independently.
func (a *Analyzer) AnalyzeSection(ctx context.Context, sectionID int64) (*SectionResult, error) {
	materials, err := a.materials.ListBySections(ctx, []int64{sectionID})
	if err != nil {
		return nil, fmt.Errorf("failed to list materials: %w", err)
	}

	out := &SectionResult{SectionID: sectionID, PerMaterial: make([]Result, 0, len(materials))}
	for _, m := range materials {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := a.AnalyzeMaterial(ctx, m)
		if err != nil {
			return nil, err
		}
		out.PerMaterial = append(out.PerMaterial, res)
	}
	return out, nil
}
