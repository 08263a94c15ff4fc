package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"studyrag/internal/retry"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so repositories can run inside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New opens a SQLite database connection at the given path.
// Foreign keys and a busy timeout are set on every pooled connection through the DSN.
func New(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate runs database migrations to create the required tables.
// It is idempotent and can be run multiple times safely.
func Migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS sections (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS materials (
			id TEXT PRIMARY KEY,
			section_id INTEGER NOT NULL,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			source_filename TEXT NOT NULL,
			total_chunks INTEGER NOT NULL DEFAULT 0,
			stored_chunks INTEGER NOT NULL DEFAULT 0,
			has_math INTEGER NOT NULL DEFAULT 0,
			metadata TEXT NOT NULL DEFAULT '{}',
			seq INTEGER NOT NULL UNIQUE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (section_id) REFERENCES sections(id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_materials_section ON materials(section_id, seq);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			material_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			content_type TEXT NOT NULL,
			has_math INTEGER NOT NULL DEFAULT 0,
			latex_content TEXT,
			embedding TEXT,
			token_count INTEGER NOT NULL,
			chapter INTEGER,
			metadata TEXT NOT NULL,
			FOREIGN KEY (material_id) REFERENCES materials(id) ON DELETE CASCADE,
			UNIQUE (material_id, chunk_index)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_material_chapter ON chunks(material_id, chapter);`,
		`CREATE TABLE IF NOT EXISTS quizzes (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			folder_id TEXT,
			section_ids TEXT NOT NULL,
			question_type TEXT NOT NULL,
			difficulty TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS questions (
			id TEXT PRIMARY KEY,
			quiz_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			question TEXT NOT NULL,
			options TEXT NOT NULL,
			correct_answer TEXT NOT NULL,
			explanation TEXT,
			difficulty TEXT,
			topic TEXT,
			chapter INTEGER,
			source_chunk_ids TEXT NOT NULL,
			FOREIGN KEY (quiz_id) REFERENCES quizzes(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS flashcard_sets (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			folder_id TEXT,
			section_ids TEXT NOT NULL,
			source_quiz_id TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS flashcards (
			id TEXT PRIMARY KEY,
			set_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			front TEXT NOT NULL,
			back TEXT NOT NULL,
			topic TEXT,
			chapter INTEGER,
			source_chunk_ids TEXT NOT NULL,
			FOREIGN KEY (set_id) REFERENCES flashcard_sets(id) ON DELETE CASCADE
		);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}

// IsBusy reports whether err is SQLite write contention (SQLITE_BUSY or SQLITE_LOCKED).
func IsBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// TxPolicy returns p restricted to retrying SQLite contention.
func TxPolicy(p retry.Policy) retry.Policy {
	p.Retryable = IsBusy
	return p
}

// WithTx runs fn in a transaction, committing on success and rolling back on error.
// The whole transaction is retried when SQLite reports contention.
func WithTx(ctx context.Context, db *sql.DB, policy retry.Policy, fn func(tx *sql.Tx) error) error {
	return TxPolicy(policy).Do(ctx, func(ctx context.Context) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}
