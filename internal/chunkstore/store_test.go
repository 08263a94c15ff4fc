package chunkstore

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"studyrag/internal/retry"
	"studyrag/internal/storage"
	"studyrag/internal/storage/storagetest"
	"studyrag/internal/vectorstore"
	vectorstore_mocks "studyrag/internal/vectorstore/mocks"
)

const (
	collection = "chunks"
	dim        = 4
)

var testPolicy = retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond}

func newStore(t *testing.T) (*Store, *sql.DB, *vectorstore.ChromemStore) {
	t.Helper()
	db := storagetest.NewDB(t)
	vectors, err := vectorstore.NewChromemStore("")
	if err != nil {
		t.Fatalf("NewChromemStore() error = %v", err)
	}
	if err := vectors.EnsureCollection(context.Background(), collection, dim); err != nil {
		t.Fatalf("EnsureCollection() error = %v", err)
	}
	return New(db, vectors, collection, testPolicy), db, vectors
}

func chapter(n int, title string) storage.ChunkMetadata {
	return storage.ChunkMetadata{Chapter: &storage.ChapterInfo{Number: n, Title: title}}
}

func sampleChunks() []storage.ChunkRecord {
	return []storage.ChunkRecord{
		{ChunkIndex: 0, Content: "Cells are the unit of life.", ContentType: storage.ContentText, Embedding: storagetest.Vector(dim, 0), TokenCount: 7, Metadata: chapter(1, "Cells")},
		{ChunkIndex: 1, Content: "E = mc^2", ContentType: storage.ContentEquation, HasMath: true, LatexContent: `$$E = mc^2$$`, Embedding: storagetest.Vector(dim, 1), TokenCount: 3, Metadata: chapter(2, "Energy")},
		{ChunkIndex: 2, Content: "Awaiting backfill.", ContentType: storage.ContentText, TokenCount: 5, Metadata: chapter(2, "Energy")},
	}
}

func newMaterial(t *testing.T, db *sql.DB) *storage.Material {
	return &storage.Material{
		SectionID:      storagetest.Section(t, db, "Biology"),
		Type:           storage.MaterialTextbook,
		Title:          "Biology 101",
		SourceFilename: "bio.pdf",
	}
}

func TestStore_InsertMaterial(t *testing.T) {
	store, db, vectors := newStore(t)
	ctx := context.Background()

	m := newMaterial(t, db)
	if err := store.InsertMaterial(ctx, m, sampleChunks()); err != nil {
		t.Fatalf("InsertMaterial() error = %v", err)
	}
	if m.TotalChunks != 2 || m.StoredChunks != 3 {
		t.Errorf("counts = %d/%d, want 2 embedded of 3 stored", m.TotalChunks, m.StoredChunks)
	}

	stored, err := storage.NewMaterialRepo(db).GetByID(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.TotalChunks != 2 || stored.StoredChunks != 3 {
		t.Errorf("persisted counts = %d/%d, want 2/3", stored.TotalChunks, stored.StoredChunks)
	}

	chunks, err := store.ListByMaterial(ctx, m.ID)
	if err != nil {
		t.Fatalf("ListByMaterial() error = %v", err)
	}
	for i, c := range chunks {
		if c.ChunkIndex != i {
			t.Errorf("chunk %d has index %d", i, c.ChunkIndex)
		}
	}
	if chunks[1].LatexContent != `$$E = mc^2$$` {
		t.Errorf("latex content = %q, want verbatim markup", chunks[1].LatexContent)
	}

	if n, _ := vectors.Count(ctx, collection); n != 2 {
		t.Errorf("vector count = %d, want 2", n)
	}
}

func TestStore_InsertMaterial_VectorFailureRollsBack(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	db := storagetest.NewDB(t)
	mockVectors := vectorstore_mocks.NewMockVectorStore(ctrl)
	mockVectors.EXPECT().
		Upsert(gomock.Any(), collection, gomock.Any()).
		Return(errors.New("index unavailable")).
		Times(1)

	store := New(db, mockVectors, collection, retry.Policy{MaxAttempts: 1})
	m := newMaterial(t, db)
	if err := store.InsertMaterial(context.Background(), m, sampleChunks()); err == nil {
		t.Fatal("InsertMaterial() expected error")
	}

	if _, err := storage.NewMaterialRepo(db).GetByID(context.Background(), m.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("material after failed upsert: err = %v, want ErrNotFound", err)
	}
	chunks, _ := storage.NewChunkRepo(db).ListByMaterial(context.Background(), m.ID)
	if len(chunks) != 0 {
		t.Errorf("found %d chunks after rollback", len(chunks))
	}
}

func TestStore_Search(t *testing.T) {
	store, db, vectors := newStore(t)
	ctx := context.Background()

	m := newMaterial(t, db)
	if err := store.InsertMaterial(ctx, m, sampleChunks()); err != nil {
		t.Fatalf("InsertMaterial() error = %v", err)
	}
	// A vector whose row is gone must not surface.
	stray := vectorstore.Point{ID: "stray", Vec: storagetest.Vector(dim, 1), Payload: vectorstore.Payload{MaterialID: m.ID}}
	if err := vectors.Upsert(ctx, collection, []vectorstore.Point{stray}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	hits, err := store.Search(ctx, storagetest.Vector(dim, 1), 10, vectorstore.Filter{MaterialIDs: []string{m.ID}})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("Search() returned %d hits, want 2", len(hits))
	}
	if hits[0].Chunk.ContentType != storage.ContentEquation {
		t.Errorf("best hit = %q, want the equation chunk", hits[0].Chunk.Content)
	}
	if hits[0].Score < hits[1].Score {
		t.Error("hits not ordered by score")
	}

	hits, err = store.Search(ctx, storagetest.Vector(dim, 0), 10, vectorstore.Filter{
		MaterialIDs: []string{m.ID},
		Chapters:    map[string][]int{m.ID: {1}},
	})
	if err != nil {
		t.Fatalf("Search() with chapters error = %v", err)
	}
	if len(hits) != 1 || hits[0].Chunk.ChunkIndex != 0 {
		t.Errorf("chapter-filtered hits = %+v, want only chunk 0", hits)
	}
}

func TestStore_DeleteMaterial(t *testing.T) {
	store, db, vectors := newStore(t)
	ctx := context.Background()

	m := newMaterial(t, db)
	if err := store.InsertMaterial(ctx, m, sampleChunks()); err != nil {
		t.Fatalf("InsertMaterial() error = %v", err)
	}
	if err := store.DeleteMaterial(ctx, m.ID); err != nil {
		t.Fatalf("DeleteMaterial() error = %v", err)
	}

	chunks, err := store.ListByMaterial(ctx, m.ID)
	if err != nil {
		t.Fatalf("ListByMaterial() error = %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("ListByMaterial() after delete = %d chunks", len(chunks))
	}
	if n, _ := vectors.Count(ctx, collection); n != 0 {
		t.Errorf("vector count after delete = %d, want 0", n)
	}

	if err := store.DeleteMaterial(ctx, m.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("DeleteMaterial() twice error = %v, want ErrNotFound", err)
	}
}

func TestStore_DeleteMaterial_VectorFailureIsDegraded(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	db := storagetest.NewDB(t)
	mockVectors := vectorstore_mocks.NewMockVectorStore(ctrl)
	mockVectors.EXPECT().Upsert(gomock.Any(), collection, gomock.Len(2)).Return(nil)
	mockVectors.EXPECT().Delete(gomock.Any(), collection, gomock.Len(2)).Return(errors.New("timeout"))

	store := New(db, mockVectors, collection, retry.Policy{MaxAttempts: 1})
	m := newMaterial(t, db)
	if err := store.InsertMaterial(context.Background(), m, sampleChunks()); err != nil {
		t.Fatalf("InsertMaterial() error = %v", err)
	}
	if err := store.DeleteMaterial(context.Background(), m.ID); err != nil {
		t.Errorf("DeleteMaterial() error = %v, want nil when only the vector delete fails", err)
	}
}

type fakeEmbedder struct {
	fail map[string]bool
}

func (f fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if !f.fail[text] {
			out[i] = storagetest.Vector(dim, 2)
		}
	}
	return out, nil
}

func TestStore_BackfillEmbeddings(t *testing.T) {
	store, db, vectors := newStore(t)
	ctx := context.Background()

	chunks := sampleChunks()
	chunks = append(chunks, storage.ChunkRecord{ChunkIndex: 3, Content: "Still failing.", ContentType: storage.ContentText, TokenCount: 4})
	m := newMaterial(t, db)
	if err := store.InsertMaterial(ctx, m, chunks); err != nil {
		t.Fatalf("InsertMaterial() error = %v", err)
	}

	result, err := store.BackfillEmbeddings(ctx, m.ID, fakeEmbedder{fail: map[string]bool{"Still failing.": true}})
	if err != nil {
		t.Fatalf("BackfillEmbeddings() error = %v", err)
	}
	want := BackfillResult{Attempted: 2, Embedded: 1, Remaining: 1}
	if result != want {
		t.Errorf("BackfillEmbeddings() = %+v, want %+v", result, want)
	}

	stored, err := storage.NewMaterialRepo(db).GetByID(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.TotalChunks != 3 || stored.StoredChunks != 4 {
		t.Errorf("counts after backfill = %d/%d, want 3/4", stored.TotalChunks, stored.StoredChunks)
	}
	if n, _ := vectors.Count(ctx, collection); n != 3 {
		t.Errorf("vector count after backfill = %d, want 3", n)
	}

	result, err = store.BackfillEmbeddings(ctx, m.ID, fakeEmbedder{})
	if err != nil {
		t.Fatalf("second BackfillEmbeddings() error = %v", err)
	}
	if result.Remaining != 0 || result.Embedded != 1 {
		t.Errorf("second BackfillEmbeddings() = %+v, want the last chunk embedded", result)
	}
}

func TestStore_BackfillEmbeddings_Cancelled(t *testing.T) {
	store, db, _ := newStore(t)
	m := newMaterial(t, db)
	if err := store.InsertMaterial(context.Background(), m, sampleChunks()); err != nil {
		t.Fatalf("InsertMaterial() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := store.BackfillEmbeddings(ctx, m.ID, cancelledEmbedder{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("BackfillEmbeddings() error = %v, want context.Canceled", err)
	}
}

type cancelledEmbedder struct{}

func (cancelledEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, ctx.Err()
}
