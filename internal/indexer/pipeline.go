package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"studyrag/internal/chunkstore"
	"studyrag/internal/contextutil"
	"studyrag/internal/extract"
	"studyrag/internal/library"
	"studyrag/internal/storage"
	"studyrag/internal/structure"
)

// ErrInvalidRequest marks ingestion requests rejected before any work is done.
var ErrInvalidRequest = errors.New("invalid ingestion request")

// Status is the per-file outcome of an ingestion.
type Status string

const (
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusFailed  Status = "failed"
)

// Request is one document to ingest.
type Request struct {
	SectionID int64
	Filename  string
	Type      storage.MaterialType // empty means custom
	Title     string               // empty means derived from Filename
	Data      []byte
}

// Result reports the ingestion of one file.
type Result struct {
	Filename   string         `json:"filename"`
	MaterialID string         `json:"material_id,omitempty"`
	Status     Status         `json:"status"`
	Chunks     int            `json:"chunks"`
	Embedded   int            `json:"embedded"`
	Warnings   []string       `json:"warnings,omitempty"`
	Error      string         `json:"error,omitempty"`
	Stats      *ChunkingStats `json:"stats,omitempty"`
}

// Pipeline turns raw documents into stored, embedded chunks:
// extract, chunk, embed, analyze structure, persist.
type Pipeline struct {
	extractor      *extract.Extractor
	chunker        *Chunker
	embedder       *Embedder
	store          *chunkstore.Store
	analyzer       *structure.Analyzer
	embeddingModel string
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	extractor *extract.Extractor,
	chunker *Chunker,
	embedder *Embedder,
	store *chunkstore.Store,
	analyzer *structure.Analyzer,
	embeddingModel string,
) *Pipeline {
	return &Pipeline{
		extractor:      extractor,
		chunker:        chunker,
		embedder:       embedder,
		store:          store,
		analyzer:       analyzer,
		embeddingModel: embeddingModel,
	}
}

func validateRequest(req *Request) error {
	if req.SectionID <= 0 {
		return fmt.Errorf("%w: section_id is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Filename) == "" {
		return fmt.Errorf("%w: filename is required", ErrInvalidRequest)
	}
	if req.Type == "" {
		req.Type = storage.MaterialCustom
	}
	if !req.Type.Valid() {
		return fmt.Errorf("%w: unknown material type %q", ErrInvalidRequest, req.Type)
	}
	if strings.TrimSpace(req.Title) == "" {
		base := filepath.Base(req.Filename)
		req.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return nil
}

// Ingest processes one document. Input errors (empty or unsupported files,
// invalid requests) and storage failures are returned as errors. Chunks whose
// embedding failed are stored without a vector and reported as a warning.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (*Result, error) {
	logger := contextutil.LoggerFromContext(ctx).With("filename", req.Filename)

	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	doc, err := p.extractor.Extract(ctx, req.Filename, req.Data)
	if err != nil {
		return nil, err
	}

	in := Input{Text: doc.Text, HasMath: doc.HasMath, Markdown: doc.Markdown}
	if len(doc.PageOffsets) > 0 {
		in.PageAt = doc.PageAt
	}
	drafts := p.chunker.Chunk(in)

	texts := make([]string, len(drafts))
	for i, d := range drafts {
		texts[i] = d.Content
	}
	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}

	records := make([]storage.ChunkRecord, len(drafts))
	hasMath := doc.HasMath
	for i, d := range drafts {
		records[i] = *d.Record("")
		records[i].Embedding = vectors[i]
		hasMath = hasMath || d.HasMath
	}

	stats := p.chunker.Stats(drafts, vectors, p.embeddingModel)
	warnings := append([]string(nil), doc.Warnings...)
	if len(drafts) == 0 {
		warnings = append(warnings, "no extractable text")
	}
	if stats.Failed > 0 {
		warnings = append(warnings, fmt.Sprintf("%d of %d chunks could not be embedded and await backfill", stats.Failed, stats.Chunks))
	}

	meta := p.analyzer.Analyze(records).Metadata()
	meta.Warnings = warnings

	material := &storage.Material{
		SectionID:      req.SectionID,
		Type:           req.Type,
		Title:          req.Title,
		SourceFilename: filepath.Base(req.Filename),
		HasMath:        hasMath,
		Metadata:       meta,
	}
	if err := p.store.InsertMaterial(ctx, material, records); err != nil {
		return nil, err
	}

	result := &Result{
		Filename:   req.Filename,
		MaterialID: material.ID,
		Status:     StatusSuccess,
		Chunks:     stats.Chunks,
		Embedded:   stats.Embedded,
		Warnings:   warnings,
		Stats:      &stats,
	}
	if len(warnings) > 0 {
		result.Status = StatusWarning
	}

	logger.Info("indexed material",
		"material_id", material.ID,
		"chunks", stats.Chunks,
		"embedded", stats.Embedded,
		"has_chapters", meta.HasChapters,
		"tokens_p95", stats.Tokens.P95,
		"index_version", stats.IndexVersion,
	)
	return result, nil
}

// IngestBatch ingests every request and reports each file separately; one
// failure never aborts the others. It stops early only when ctx is done.
func (p *Pipeline) IngestBatch(ctx context.Context, reqs []Request) ([]Result, error) {
	logger := contextutil.LoggerFromContext(ctx)

	results := make([]Result, 0, len(reqs))
	var failed int
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := p.Ingest(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			failed++
			logger.Error("failed to ingest file", "filename", req.Filename, "error", err)
			results = append(results, Result{Filename: req.Filename, Status: StatusFailed, Error: err.Error()})
			continue
		}
		results = append(results, *res)
	}

	logger.Info("ingestion completed", "total_files", len(reqs), "failed", failed)
	return results, nil
}

// IngestDirectory scans lib and ingests every supported file, mapping each
// top-level folder to a section.
func (p *Pipeline) IngestDirectory(ctx context.Context, lib *library.Library) ([]Result, error) {
	files, err := lib.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to scan library: %w", err)
	}

	reqs := make([]Request, 0, len(files))
	var unreadable []Result
	for _, f := range files {
		sectionID, err := lib.SectionID(ctx, f.Section)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(f.AbsPath)
		if err != nil {
			unreadable = append(unreadable, Result{Filename: f.RelPath, Status: StatusFailed, Error: err.Error()})
			continue
		}
		reqs = append(reqs, Request{
			SectionID: sectionID,
			Filename:  f.RelPath,
			Type:      library.InferType(f.RelPath),
			Data:      data,
		})
	}

	results, err := p.IngestBatch(ctx, reqs)
	return append(results, unreadable...), err
}

// Backfill retries embedding for the chunks of a material stored without a vector.
func (p *Pipeline) Backfill(ctx context.Context, materialID string) (chunkstore.BackfillResult, error) {
	return p.store.BackfillEmbeddings(ctx, materialID, p.embedder)
}

// Delete removes a material, its chunks and their vectors.
func (p *Pipeline) Delete(ctx context.Context, materialID string) error {
	return p.store.DeleteMaterial(ctx, materialID)
}
