// Package chunkstore keeps chunk rows in SQLite and their vectors in the vector
// index consistent with each other.
package chunkstore

import (
	"context"
	"database/sql"
	"fmt"

	"studyrag/internal/contextutil"
	"studyrag/internal/retry"
	"studyrag/internal/storage"
	"studyrag/internal/vectorstore"
)

// Embedder produces one vector per text, nil where embedding failed.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Hit is a hydrated search result.
type Hit struct {
	Chunk storage.ChunkRecord
	Score float32
}

// BackfillResult reports one backfill run.
type BackfillResult struct {
	Attempted int `json:"attempted"`
	Embedded  int `json:"embedded"`
	Remaining int `json:"remaining"`
}

// Store writes material and chunk rows transactionally and mirrors embedded
// chunks into the vector index. Vectors are written only after the rows commit,
// so a search never sees a vector without its row except transiently after a
// delete, and those hits are skipped during hydration.
type Store struct {
	db         *sql.DB
	vectors    vectorstore.VectorStore
	collection string
	policy     retry.Policy
}

// New creates a Store. policy governs SQLite contention retries and vector writes.
func New(db *sql.DB, vectors vectorstore.VectorStore, collection string, policy retry.Policy) *Store {
	return &Store{db: db, vectors: vectors, collection: collection, policy: policy}
}

// InsertMaterial persists m and its chunks in one transaction, then upserts the
// vectors of embedded chunks. When the vector write fails the material is deleted
// again and the error returned. TotalChunks and StoredChunks are set from chunks.
func (s *Store) InsertMaterial(ctx context.Context, m *storage.Material, chunks []storage.ChunkRecord) error {
	logger := contextutil.LoggerFromContext(ctx)

	m.StoredChunks = len(chunks)
	m.TotalChunks = 0
	for i := range chunks {
		if chunks[i].Embedded() {
			m.TotalChunks++
		}
	}

	err := storage.WithTx(ctx, s.db, s.policy, func(tx *sql.Tx) error {
		if err := storage.NewMaterialRepo(tx).Insert(ctx, m); err != nil {
			return err
		}
		for i := range chunks {
			chunks[i].MaterialID = m.ID
		}
		return storage.NewChunkRepo(tx).InsertBatch(ctx, chunks)
	})
	if err != nil {
		return fmt.Errorf("failed to store material: %w", err)
	}

	if err := s.upsert(ctx, chunks); err != nil {
		logger.Error("vector upsert failed, removing material", "material_id", m.ID, "error", err)
		if derr := s.deleteRows(ctx, m.ID); derr != nil {
			logger.Error("failed to roll back material", "material_id", m.ID, "error", derr)
		}
		return fmt.Errorf("failed to index vectors: %w", err)
	}
	return nil
}

func (s *Store) upsert(ctx context.Context, chunks []storage.ChunkRecord) error {
	points := make([]vectorstore.Point, 0, len(chunks))
	for _, c := range chunks {
		if !c.Embedded() {
			continue
		}
		points = append(points, pointFor(c))
	}
	if len(points) == 0 {
		return nil
	}
	return s.policy.Do(ctx, func(ctx context.Context) error {
		return s.vectors.Upsert(ctx, s.collection, points)
	})
}

func pointFor(c storage.ChunkRecord) vectorstore.Point {
	chapter, _ := c.Metadata.ChapterNumber()
	return vectorstore.Point{
		ID:  c.ID,
		Vec: c.Embedding,
		Payload: vectorstore.Payload{
			MaterialID:  c.MaterialID,
			ChunkIndex:  c.ChunkIndex,
			ContentType: string(c.ContentType),
			Chapter:     chapter,
		},
	}
}

// ListByMaterial returns the chunks of a material ordered by ordinal.
func (s *Store) ListByMaterial(ctx context.Context, materialID string) ([]storage.ChunkRecord, error) {
	return storage.NewChunkRepo(s.db).ListByMaterial(ctx, materialID)
}

// ListByMaterialChapters returns the chunks of a material in the given chapters.
func (s *Store) ListByMaterialChapters(ctx context.Context, materialID string, chapters []int) ([]storage.ChunkRecord, error) {
	return storage.NewChunkRepo(s.db).ListByMaterialChapters(ctx, materialID, chapters)
}

// GetByIDs returns the chunks that still exist among ids.
func (s *Store) GetByIDs(ctx context.Context, ids []string) (map[string]storage.ChunkRecord, error) {
	return storage.NewChunkRepo(s.db).GetByIDs(ctx, ids)
}

// Search runs a vector search and hydrates the hits from SQLite, keeping the
// vector order. Hits whose row no longer exists are dropped.
func (s *Store) Search(ctx context.Context, query []float32, k int, filter vectorstore.Filter) ([]Hit, error) {
	results, err := s.vectors.Search(ctx, s.collection, query, k, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to search vectors: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.PointID
	}
	rows, err := s.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to hydrate search results: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		chunk, ok := rows[r.PointID]
		if !ok {
			contextutil.LoggerFromContext(ctx).Debug("skipping vector without chunk row", "point_id", r.PointID)
			continue
		}
		hits = append(hits, Hit{Chunk: chunk, Score: r.Score})
	}
	return hits, nil
}

// DeleteMaterial removes a material and its chunks in one transaction, then
// removes their vectors. Returns storage.ErrNotFound for an unknown id. A failed
// vector delete is logged; the orphaned vectors are skipped by Search.
func (s *Store) DeleteMaterial(ctx context.Context, materialID string) error {
	logger := contextutil.LoggerFromContext(ctx)

	chunks, err := s.ListByMaterial(ctx, materialID)
	if err != nil {
		return err
	}
	if err := s.deleteRows(ctx, materialID); err != nil {
		return err
	}

	var ids []string
	for _, c := range chunks {
		if c.Embedded() {
			ids = append(ids, c.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	err = s.policy.Do(ctx, func(ctx context.Context) error {
		return s.vectors.Delete(ctx, s.collection, ids)
	})
	if err != nil {
		logger.Warn("failed to delete vectors of removed material", "material_id", materialID, "count", len(ids), "error", err)
	}
	return nil
}

func (s *Store) deleteRows(ctx context.Context, materialID string) error {
	return storage.WithTx(ctx, s.db, s.policy, func(tx *sql.Tx) error {
		return storage.NewMaterialRepo(tx).Delete(ctx, materialID)
	})
}

// BackfillEmbeddings embeds the chunks of a material that have no vector yet and
// refreshes the material's usable chunk count. Chunks that fail again stay
// unembedded for a later run.
func (s *Store) BackfillEmbeddings(ctx context.Context, materialID string, embedder Embedder) (BackfillResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	pending, err := storage.NewChunkRepo(s.db).ListUnembedded(ctx, materialID)
	if err != nil {
		return BackfillResult{}, err
	}
	result := BackfillResult{Attempted: len(pending)}
	if len(pending) == 0 {
		return result, nil
	}

	texts := make([]string, len(pending))
	for i, c := range pending {
		texts[i] = c.Content
	}
	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return result, fmt.Errorf("failed to embed chunks: %w", err)
	}

	var embedded []storage.ChunkRecord
	for i, c := range pending {
		if i < len(vectors) && len(vectors[i]) > 0 {
			c.Embedding = vectors[i]
			embedded = append(embedded, c)
		}
	}

	if err := s.upsert(ctx, embedded); err != nil {
		return result, fmt.Errorf("failed to index vectors: %w", err)
	}

	err = storage.WithTx(ctx, s.db, s.policy, func(tx *sql.Tx) error {
		chunks := storage.NewChunkRepo(tx)
		for _, c := range embedded {
			if err := chunks.SetEmbedding(ctx, c.ID, c.Embedding); err != nil {
				return err
			}
		}
		total, stored, err := chunks.Counts(ctx, materialID)
		if err != nil {
			return err
		}
		result.Remaining = stored - total
		return storage.NewMaterialRepo(tx).UpdateChunkCounts(ctx, materialID, total, stored)
	})
	if err != nil {
		return result, fmt.Errorf("failed to store embeddings: %w", err)
	}

	result.Embedded = len(embedded)
	logger.Info("backfilled embeddings", "material_id", materialID, "attempted", result.Attempted, "embedded", result.Embedded, "remaining", result.Remaining)
	return result, nil
}
