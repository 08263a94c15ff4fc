// Package storagetest provides migrated SQLite databases for tests of packages
// built on storage.
package storagetest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"studyrag/internal/storage"
)

// NewDB opens a migrated database in a temp dir that is closed when the test ends.
func NewDB(t testing.TB) *sql.DB {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("storage.Migrate() error = %v", err)
	}
	return db
}

// Section returns the id of the named section, creating it when needed.
func Section(t testing.TB, db storage.DBTX, name string) int64 {
	t.Helper()
	s, err := storage.NewSectionRepo(db).GetOrCreateByName(context.Background(), name)
	if err != nil {
		t.Fatalf("GetOrCreateByName(%q) error = %v", name, err)
	}
	return s.ID
}

// Vector returns a dim-length vector with 1 at position hot and a small value
// elsewhere, so vectors with different hot positions are dissimilar.
func Vector(dim, hot int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = 0.01
	}
	v[hot%dim] = 1
	return v
}
