package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chunk_store.go -package=mocks studyrag/internal/storage ChunkStore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ChunkStore defines the interface for chunk storage operations.
type ChunkStore interface {
	// InsertBatch inserts chunks, assigning IDs where empty. Run it inside a transaction
	// to make the batch atomic.
	InsertBatch(ctx context.Context, chunks []ChunkRecord) error
	// ListByMaterial returns all chunks of a material ordered by chunk_index.
	ListByMaterial(ctx context.Context, materialID string) ([]ChunkRecord, error)
	// ListByMaterialChapters returns the chunks of a material whose chapter is in chapters.
	ListByMaterialChapters(ctx context.Context, materialID string, chapters []int) ([]ChunkRecord, error)
	// GetByIDs returns the chunks that still exist, keyed by id.
	GetByIDs(ctx context.Context, ids []string) (map[string]ChunkRecord, error)
	// ListUnembedded returns the chunks of a material that have no vector.
	ListUnembedded(ctx context.Context, materialID string) ([]ChunkRecord, error)
	// SetEmbedding stores the vector of one chunk.
	SetEmbedding(ctx context.Context, id string, embedding []float32) error
	// Counts returns the embedded and total chunk counts of a material.
	Counts(ctx context.Context, materialID string) (embedded, stored int, err error)
}

// ChunkRepo provides methods for chunk operations.
// It implements the ChunkStore interface.
type ChunkRepo struct {
	db DBTX
}

// NewChunkRepo creates a new ChunkRepo.
func NewChunkRepo(db DBTX) *ChunkRepo {
	return &ChunkRepo{db: db}
}

const chunkColumns = "id, material_id, chunk_index, content, content_type, has_math, latex_content, embedding, token_count, metadata"

// InsertBatch inserts chunks in order.
func (r *ChunkRepo) InsertBatch(ctx context.Context, chunks []ChunkRecord) error {
	for i := range chunks {
		c := &chunks[i]
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode chunk metadata: %w", err)
		}
		embedding, err := encodeEmbedding(c.Embedding)
		if err != nil {
			return err
		}
		var latex sql.NullString
		if c.LatexContent != "" {
			latex = sql.NullString{String: c.LatexContent, Valid: true}
		}
		var chapter sql.NullInt64
		if n, ok := c.Metadata.ChapterNumber(); ok {
			chapter = sql.NullInt64{Int64: int64(n), Valid: true}
		}

		_, err = r.db.ExecContext(ctx,
			`INSERT INTO chunks (id, material_id, chunk_index, content, content_type, has_math, latex_content, embedding, token_count, chapter, metadata)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.MaterialID, c.ChunkIndex, c.Content, string(c.ContentType), c.HasMath,
			latex, embedding, c.TokenCount, chapter, string(meta),
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", c.ChunkIndex, err)
		}
	}
	return nil
}

// ListByMaterial returns all chunks of a material ordered by chunk_index.
// Returns an empty slice if no chunks exist (not an error).
func (r *ChunkRepo) ListByMaterial(ctx context.Context, materialID string) ([]ChunkRecord, error) {
	return r.list(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE material_id = ? ORDER BY chunk_index",
		materialID,
	)
}

// ListByMaterialChapters returns the chunks of a material restricted to the given chapters.
// Unstructured chunks never match.
func (r *ChunkRepo) ListByMaterialChapters(ctx context.Context, materialID string, chapters []int) ([]ChunkRecord, error) {
	if len(chapters) == 0 {
		return nil, nil
	}
	args := []any{materialID}
	for _, ch := range chapters {
		args = append(args, ch)
	}
	return r.list(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE material_id = ? AND chapter IN ("+placeholders(len(chapters))+") ORDER BY chunk_index",
		args...,
	)
}

// ListUnembedded returns the chunks of a material that still need a vector.
func (r *ChunkRepo) ListUnembedded(ctx context.Context, materialID string) ([]ChunkRecord, error) {
	return r.list(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE material_id = ? AND embedding IS NULL ORDER BY chunk_index",
		materialID,
	)
}

// GetByIDs returns the chunks that exist among ids. Missing ids are absent from the map.
func (r *ChunkRepo) GetByIDs(ctx context.Context, ids []string) (map[string]ChunkRecord, error) {
	out := make(map[string]ChunkRecord, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	chunks, err := r.list(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE id IN ("+placeholders(len(ids))+")",
		args...,
	)
	if err != nil {
		return nil, err
	}
	for _, c := range chunks {
		out[c.ID] = c
	}
	return out, nil
}

// SetEmbedding stores the vector of one chunk. Returns ErrNotFound for an unknown id.
func (r *ChunkRepo) SetEmbedding(ctx context.Context, id string, embedding []float32) error {
	encoded, err := encodeEmbedding(embedding)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, "UPDATE chunks SET embedding = ? WHERE id = ?", encoded, id)
	if err != nil {
		return fmt.Errorf("failed to update chunk embedding: %w", err)
	}
	return requireAffected(res)
}

// Counts returns how many chunks of a material are embedded and how many are stored.
func (r *ChunkRepo) Counts(ctx context.Context, materialID string) (int, int, error) {
	var embedded, stored int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(embedding), COUNT(*) FROM chunks WHERE material_id = ?",
		materialID,
	).Scan(&embedded, &stored)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return embedded, stored, nil
}

func (r *ChunkRepo) list(ctx context.Context, query string, args ...any) ([]ChunkRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var chunks []ChunkRecord
	for rows.Next() {
		var c ChunkRecord
		var contentType, meta string
		var latex, embedding sql.NullString
		if err := rows.Scan(&c.ID, &c.MaterialID, &c.ChunkIndex, &c.Content, &contentType, &c.HasMath,
			&latex, &embedding, &c.TokenCount, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		c.ContentType = ContentType(contentType)
		c.LatexContent = latex.String
		if embedding.Valid {
			if err := json.Unmarshal([]byte(embedding.String), &c.Embedding); err != nil {
				return nil, fmt.Errorf("failed to decode embedding of chunk %s: %w", c.ID, err)
			}
		}
		if err := json.Unmarshal([]byte(meta), &c.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata of chunk %s: %w", c.ID, err)
		}
		chunks = append(chunks, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return chunks, nil
}

func encodeEmbedding(v []float32) (sql.NullString, error) {
	if len(v) == 0 {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode embedding: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

var _ ChunkStore = (*ChunkRepo)(nil)
var _ MaterialStore = (*MaterialRepo)(nil)
