package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_material_store.go -package=mocks studyrag/internal/storage MaterialStore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

// MaterialStore defines the interface for material storage operations.
type MaterialStore interface {
	// Insert creates a material, assigning ID (when empty) and Seq.
	Insert(ctx context.Context, m *Material) error
	// GetByID returns ErrNotFound if the material does not exist.
	GetByID(ctx context.Context, id string) (*Material, error)
	// ListBySections returns the materials of the given sections in creation order.
	ListBySections(ctx context.Context, sectionIDs []int64) ([]Material, error)
	// ListByIDs returns the given materials in creation order. Unknown ids are skipped.
	ListByIDs(ctx context.Context, ids []string) ([]Material, error)
	// UpdateChunkCounts sets the usable and stored chunk counts.
	UpdateChunkCounts(ctx context.Context, id string, total, stored int) error
	// UpdateMetadata replaces the chapter/topic summary.
	UpdateMetadata(ctx context.Context, id string, meta MaterialMetadata) error
	// Delete removes the material; chunks follow through ON DELETE CASCADE.
	Delete(ctx context.Context, id string) error
}

// MaterialRepo provides methods for material operations.
// It implements the MaterialStore interface.
type MaterialRepo struct {
	db DBTX
}

// NewMaterialRepo creates a new MaterialRepo.
func NewMaterialRepo(db DBTX) *MaterialRepo {
	return &MaterialRepo{db: db}
}

const materialColumns = "id, section_id, type, title, source_filename, total_chunks, stored_chunks, has_math, metadata, seq, created_at"

// Insert creates a material. Seq is allocated as max+1 inside the same statement,
// so callers that need a gap-free order must run it in a transaction.
func (r *MaterialRepo) Insert(ctx context.Context, m *Material) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	meta, err := json.Marshal(m.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode material metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO materials (id, section_id, type, title, source_filename, total_chunks, stored_chunks, has_math, metadata, seq)
		 SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(MAX(seq), 0) + 1 FROM materials`,
		m.ID, m.SectionID, string(m.Type), m.Title, m.SourceFilename, m.TotalChunks, m.StoredChunks, m.HasMath, string(meta),
	)
	if err != nil {
		return fmt.Errorf("failed to insert material: %w", err)
	}

	if err := r.db.QueryRowContext(ctx,
		"SELECT seq, created_at FROM materials WHERE id = ?", m.ID,
	).Scan(&m.Seq, &m.CreatedAt); err != nil {
		return fmt.Errorf("failed to read inserted material: %w", err)
	}
	return nil
}

// GetByID gets a material by id. Returns nil and ErrNotFound if not found.
func (r *MaterialRepo) GetByID(ctx context.Context, id string) (*Material, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+materialColumns+" FROM materials WHERE id = ?", id)
	m, err := scanMaterial(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query material: %w", err)
	}
	return m, nil
}

// ListBySections returns the materials of the given sections ordered by creation.
// An empty id list returns an empty result.
func (r *MaterialRepo) ListBySections(ctx context.Context, sectionIDs []int64) ([]Material, error) {
	if len(sectionIDs) == 0 {
		return nil, nil
	}
	args := make([]any, len(sectionIDs))
	for i, id := range sectionIDs {
		args[i] = id
	}
	return r.list(ctx,
		"SELECT "+materialColumns+" FROM materials WHERE section_id IN ("+placeholders(len(args))+") ORDER BY seq",
		args...,
	)
}

// ListByIDs returns the given materials ordered by creation.
func (r *MaterialRepo) ListByIDs(ctx context.Context, ids []string) ([]Material, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return r.list(ctx,
		"SELECT "+materialColumns+" FROM materials WHERE id IN ("+placeholders(len(args))+") ORDER BY seq",
		args...,
	)
}

func (r *MaterialRepo) list(ctx context.Context, query string, args ...any) ([]Material, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query materials: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var materials []Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan material: %w", err)
		}
		materials = append(materials, *m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return materials, nil
}

// UpdateChunkCounts sets total_chunks (embedded) and stored_chunks (all).
func (r *MaterialRepo) UpdateChunkCounts(ctx context.Context, id string, total, stored int) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE materials SET total_chunks = ?, stored_chunks = ? WHERE id = ?",
		total, stored, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update chunk counts: %w", err)
	}
	return requireAffected(res)
}

// UpdateMetadata replaces the material metadata.
func (r *MaterialRepo) UpdateMetadata(ctx context.Context, id string, meta MaterialMetadata) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode material metadata: %w", err)
	}
	res, err := r.db.ExecContext(ctx, "UPDATE materials SET metadata = ? WHERE id = ?", string(raw), id)
	if err != nil {
		return fmt.Errorf("failed to update material metadata: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a material and, through the foreign key, its chunks.
func (r *MaterialRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM materials WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete material: %w", err)
	}
	return requireAffected(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMaterial(row rowScanner) (*Material, error) {
	var m Material
	var typ, meta string
	if err := row.Scan(&m.ID, &m.SectionID, &typ, &m.Title, &m.SourceFilename,
		&m.TotalChunks, &m.StoredChunks, &m.HasMath, &meta, &m.Seq, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Type = MaterialType(typ)
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &m.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode material metadata: %w", err)
		}
	}
	return &m, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}
