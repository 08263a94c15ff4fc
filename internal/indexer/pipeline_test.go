package indexer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"studyrag/internal/chunkstore"
	"studyrag/internal/extract"
	"studyrag/internal/library"
	"studyrag/internal/storage"
	"studyrag/internal/storage/storagetest"
	"studyrag/internal/structure"
	"studyrag/internal/vectorstore"
)

const testCollection = "chunks"

// markerEmbeddings fails every text containing marker while poisoned is set.
type markerEmbeddings struct {
	marker   string
	poisoned atomic.Bool
}

func (m *markerEmbeddings) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if m.poisoned.Load() && strings.Contains(text, m.marker) {
			return nil, fmt.Errorf("provider rejected input %d", i)
		}
		out[i] = []float32{float32(len(text)%7 + 1), 1}
	}
	return out, nil
}

type pipelineFixture struct {
	pipeline *Pipeline
	db       *sql.DB
	vectors  *vectorstore.ChromemStore
	client   *markerEmbeddings
	section  int64
}

func newPipelineFixture(t *testing.T, chunker *Chunker) *pipelineFixture {
	t.Helper()
	db := storagetest.NewDB(t)
	vectors, err := vectorstore.NewChromemStore("")
	if err != nil {
		t.Fatalf("NewChromemStore() error = %v", err)
	}
	if err := vectors.EnsureCollection(context.Background(), testCollection, 2); err != nil {
		t.Fatalf("EnsureCollection() error = %v", err)
	}

	client := &markerEmbeddings{marker: "POISON"}
	client.poisoned.Store(true)

	store := chunkstore.New(db, vectors, testCollection, fastPolicy)
	analyzer := structure.New(structure.DefaultThreshold, structure.DefaultChunksPerCluster, nil, nil)
	p := NewPipeline(extract.New(nil), chunker, NewEmbedder(client, 8, 3, fastPolicy), store, analyzer, "test-model")

	return &pipelineFixture{
		pipeline: p,
		db:       db,
		vectors:  vectors,
		client:   client,
		section:  storagetest.Section(t, db, "Biology"),
	}
}

func (f *pipelineFixture) material(t *testing.T, id string) *storage.Material {
	t.Helper()
	m, err := storage.NewMaterialRepo(f.db).GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	return m
}

func TestPipeline_Ingest_Markdown(t *testing.T) {
	f := newPipelineFixture(t, NewChunker(0, 0, 0))
	ctx := context.Background()

	src := "# Chapter 1: Cells\n\nCells are the unit of life.\n\n# Chapter 2: Energy\n\nMitochondria release energy."
	res, err := f.pipeline.Ingest(ctx, Request{
		SectionID: f.section,
		Filename:  "biology-notes.md",
		Type:      storage.MaterialLectureNotes,
		Data:      []byte(src),
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if res.Status != StatusSuccess || res.Chunks != 2 || res.Embedded != 2 {
		t.Errorf("Ingest() = %+v, want success with 2 embedded chunks", res)
	}

	m := f.material(t, res.MaterialID)
	if m.Title != "biology-notes" || m.Type != storage.MaterialLectureNotes {
		t.Errorf("material = %q/%s, want derived title and lecture_notes", m.Title, m.Type)
	}
	if m.TotalChunks != 2 || m.StoredChunks != 2 {
		t.Errorf("counts = %d/%d, want 2/2", m.TotalChunks, m.StoredChunks)
	}
	if !m.Metadata.HasChapters || len(m.Metadata.Chapters) != 2 {
		t.Errorf("metadata = %+v, want two chapters", m.Metadata)
	}

	if n, _ := f.vectors.Count(ctx, testCollection); n != 2 {
		t.Errorf("vector count = %d, want 2", n)
	}
}

func TestPipeline_Ingest_PartialEmbeddingFailure(t *testing.T) {
	// Each paragraph fits the target alone but two never do, so every paragraph is one chunk.
	f := newPipelineFixture(t, NewChunker(20, 40, 0))
	ctx := context.Background()

	var paragraphs []string
	for i := 0; i < 50; i++ {
		marker := ""
		if i == 7 || i == 33 {
			marker = " POISON"
		}
		paragraphs = append(paragraphs, fmt.Sprintf("Paragraph %02d%s covers photosynthesis in green leaves.", i, marker))
	}
	res, err := f.pipeline.Ingest(ctx, Request{
		SectionID: f.section,
		Filename:  "plants.txt",
		Type:      storage.MaterialTextbook,
		Data:      []byte(strings.Join(paragraphs, "\n\n")),
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if res.Chunks != 50 || res.Embedded != 48 {
		t.Fatalf("Ingest() chunks/embedded = %d/%d, want 50/48", res.Chunks, res.Embedded)
	}
	if res.Status != StatusWarning || len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "2 of 50") {
		t.Errorf("Ingest() status = %s warnings = %v, want a warning about 2 of 50", res.Status, res.Warnings)
	}

	m := f.material(t, res.MaterialID)
	if m.TotalChunks != 48 || m.StoredChunks != 50 {
		t.Errorf("counts = %d/%d, want 48 usable of 50", m.TotalChunks, m.StoredChunks)
	}
	if n, _ := f.vectors.Count(ctx, testCollection); n != 48 {
		t.Errorf("vector count = %d, want 48", n)
	}

	f.client.poisoned.Store(false)
	backfill, err := f.pipeline.Backfill(ctx, res.MaterialID)
	if err != nil {
		t.Fatalf("Backfill() error = %v", err)
	}
	if backfill.Attempted != 2 || backfill.Embedded != 2 || backfill.Remaining != 0 {
		t.Errorf("Backfill() = %+v, want 2/2/0", backfill)
	}
	if m := f.material(t, res.MaterialID); m.TotalChunks != 50 {
		t.Errorf("TotalChunks after backfill = %d, want 50", m.TotalChunks)
	}
}

func TestPipeline_Ingest_NoText(t *testing.T) {
	f := newPipelineFixture(t, NewChunker(0, 0, 0))

	res, err := f.pipeline.Ingest(context.Background(), Request{
		SectionID: f.section,
		Filename:  "blank.txt",
		Data:      []byte("   \n\n  "),
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if res.Status != StatusWarning || res.Chunks != 0 {
		t.Errorf("Ingest() = %+v, want warning with zero chunks", res)
	}
	m := f.material(t, res.MaterialID)
	if m.TotalChunks != 0 || m.Type != storage.MaterialCustom {
		t.Errorf("material = %+v, want custom with total_chunks 0", m)
	}
}

func TestPipeline_Ingest_InputErrors(t *testing.T) {
	f := newPipelineFixture(t, NewChunker(0, 0, 0))

	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{"missing section", Request{Filename: "a.txt", Data: []byte("x")}, ErrInvalidRequest},
		{"missing filename", Request{SectionID: f.section, Data: []byte("x")}, ErrInvalidRequest},
		{"unknown type", Request{SectionID: f.section, Filename: "a.txt", Type: "poster", Data: []byte("x")}, ErrInvalidRequest},
		{"empty file", Request{SectionID: f.section, Filename: "a.txt"}, extract.ErrEmptyFile},
		{"unsupported format", Request{SectionID: f.section, Filename: "a.exe", Data: []byte("x")}, extract.ErrUnsupportedFormat},
		{"audio without transcriber", Request{SectionID: f.section, Filename: "talk.mp3", Data: []byte("x")}, extract.ErrTranscriptionUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.pipeline.Ingest(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Ingest() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPipeline_IngestBatch(t *testing.T) {
	f := newPipelineFixture(t, NewChunker(0, 0, 0))

	results, err := f.pipeline.IngestBatch(context.Background(), []Request{
		{SectionID: f.section, Filename: "good.md", Data: []byte("Some useful study notes.")},
		{SectionID: f.section, Filename: "bad.exe", Data: []byte("binary")},
		{SectionID: f.section, Filename: "also-good.txt", Data: []byte("More notes.")},
	})
	if err != nil {
		t.Fatalf("IngestBatch() error = %v", err)
	}

	want := []Status{StatusSuccess, StatusFailed, StatusSuccess}
	if len(results) != len(want) {
		t.Fatalf("IngestBatch() = %d results, want %d", len(results), len(want))
	}
	for i, w := range want {
		if results[i].Status != w {
			t.Errorf("results[%d].Status = %s, want %s (%+v)", i, results[i].Status, w, results[i])
		}
	}
	if results[1].Error == "" {
		t.Error("failed result has no error message")
	}
}

func TestPipeline_IngestBatch_Cancelled(t *testing.T) {
	f := newPipelineFixture(t, NewChunker(0, 0, 0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := f.pipeline.IngestBatch(ctx, []Request{
		{SectionID: f.section, Filename: "good.md", Data: []byte("Notes.")},
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("IngestBatch() error = %v, want context.Canceled", err)
	}
	if len(results) != 0 {
		t.Errorf("IngestBatch() = %v, want no results", results)
	}
}

func TestPipeline_IngestDirectory(t *testing.T) {
	f := newPipelineFixture(t, NewChunker(0, 0, 0))
	ctx := context.Background()

	root := t.TempDir()
	files := map[string]string{
		"Calculus/syllabus.md":      "# Week 1\n\nLimits.\n\n# Week 2\n\nDerivatives.",
		"Physics/lecture-notes.txt": "Newton's laws describe motion.",
		"readme.txt":                "not in a section",
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("MkdirAll() error = %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}

	lib, err := library.New(root, storage.NewSectionRepo(f.db), nil)
	if err != nil {
		t.Fatalf("library.New() error = %v", err)
	}
	results, err := f.pipeline.IngestDirectory(ctx, lib)
	if err != nil {
		t.Fatalf("IngestDirectory() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("IngestDirectory() = %d results, want 2", len(results))
	}

	sections, err := storage.NewSectionRepo(f.db).ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	names := map[string]int64{}
	for _, s := range sections {
		names[s.Name] = s.ID
	}
	if _, ok := names["Calculus"]; !ok {
		t.Errorf("sections = %v, want Calculus", names)
	}

	materials, err := storage.NewMaterialRepo(f.db).ListBySections(ctx, []int64{names["Calculus"]})
	if err != nil {
		t.Fatalf("ListBySections() error = %v", err)
	}
	if len(materials) != 1 || materials[0].Type != storage.MaterialSyllabus {
		t.Errorf("Calculus materials = %+v, want one syllabus", materials)
	}
}

func TestPipeline_Delete(t *testing.T) {
	f := newPipelineFixture(t, NewChunker(0, 0, 0))
	ctx := context.Background()

	res, err := f.pipeline.Ingest(ctx, Request{SectionID: f.section, Filename: "a.md", Data: []byte("Notes to delete.")})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if err := f.pipeline.Delete(ctx, res.MaterialID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if n, _ := f.vectors.Count(ctx, testCollection); n != 0 {
		t.Errorf("vector count = %d, want 0", n)
	}
	if err := f.pipeline.Delete(ctx, res.MaterialID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}
