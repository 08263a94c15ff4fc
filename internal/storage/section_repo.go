package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_section_store.go -package=mocks studyrag/internal/storage SectionStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SectionStore defines the interface for section storage operations.
type SectionStore interface {
	// GetOrCreateByName returns the named section, creating it when needed.
	GetOrCreateByName(ctx context.Context, name string) (Section, error)
	// GetByID returns ErrNotFound if the section does not exist.
	GetByID(ctx context.Context, id int64) (Section, error)
	// ListAll returns every section ordered by name.
	ListAll(ctx context.Context) ([]Section, error)
}

// SectionRepo provides methods for section operations.
// It implements the SectionStore interface.
type SectionRepo struct {
	db DBTX
}

// NewSectionRepo creates a new SectionRepo.
func NewSectionRepo(db DBTX) *SectionRepo {
	return &SectionRepo{db: db}
}

// GetOrCreateByName gets an existing section by name, or creates it if it doesn't exist.
func (r *SectionRepo) GetOrCreateByName(ctx context.Context, name string) (Section, error) {
	var section Section
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM sections WHERE name = ?",
		name,
	).Scan(&section.ID, &section.Name, &section.CreatedAt)
	if err == nil {
		return section, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Section{}, fmt.Errorf("failed to query section: %w", err)
	}

	// ON CONFLICT covers a concurrent creator winning the race.
	_, err = r.db.ExecContext(ctx,
		"INSERT INTO sections (name) VALUES (?) ON CONFLICT (name) DO NOTHING",
		name,
	)
	if err != nil {
		return Section{}, fmt.Errorf("failed to insert section: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM sections WHERE name = ?",
		name,
	).Scan(&section.ID, &section.Name, &section.CreatedAt)
	if err != nil {
		return Section{}, fmt.Errorf("failed to query created section: %w", err)
	}

	return section, nil
}

// GetByID gets a section by id. Returns ErrNotFound if not found.
func (r *SectionRepo) GetByID(ctx context.Context, id int64) (Section, error) {
	var section Section
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM sections WHERE id = ?",
		id,
	).Scan(&section.ID, &section.Name, &section.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Section{}, ErrNotFound
	}
	if err != nil {
		return Section{}, fmt.Errorf("failed to query section: %w", err)
	}
	return section, nil
}

// ListAll returns all sections ordered by name.
func (r *SectionRepo) ListAll(ctx context.Context) ([]Section, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, created_at FROM sections ORDER BY name",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sections: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var sections []Section
	for rows.Next() {
		var section Section
		if err := rows.Scan(&section.ID, &section.Name, &section.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		sections = append(sections, section)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return sections, nil
}
