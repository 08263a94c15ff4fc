package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// QuizRepo persists quizzes and their questions.
type QuizRepo struct {
	db DBTX
}

// NewQuizRepo creates a new QuizRepo.
func NewQuizRepo(db DBTX) *QuizRepo {
	return &QuizRepo{db: db}
}

// Insert writes the quiz and all its questions. IDs, QuizID and Position are assigned here.
// Use it inside WithTx so a half-written quiz is never visible.
func (r *QuizRepo) Insert(ctx context.Context, q *Quiz) error {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	sections, err := json.Marshal(nonNilInt64s(q.SectionIDs))
	if err != nil {
		return fmt.Errorf("failed to encode section ids: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO quizzes (id, name, description, folder_id, section_ids, question_type, difficulty)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.Name, q.Description, nullString(q.FolderID), string(sections), q.QuestionType, q.Difficulty,
	)
	if err != nil {
		return fmt.Errorf("failed to insert quiz: %w", err)
	}

	for i := range q.Questions {
		qu := &q.Questions[i]
		if qu.ID == "" {
			qu.ID = uuid.New().String()
		}
		qu.QuizID = q.ID
		qu.Position = i
		options, err := json.Marshal(qu.Options)
		if err != nil {
			return fmt.Errorf("failed to encode options: %w", err)
		}
		sources, err := json.Marshal(nonNilStrings(qu.SourceChunkIDs))
		if err != nil {
			return fmt.Errorf("failed to encode source chunk ids: %w", err)
		}
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO questions (id, quiz_id, position, question, options, correct_answer, explanation, difficulty, topic, chapter, source_chunk_ids)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			qu.ID, qu.QuizID, qu.Position, qu.Question, string(options), qu.CorrectAnswer,
			qu.Explanation, qu.Difficulty, qu.Topic, nullInt(qu.Chapter), string(sources),
		)
		if err != nil {
			return fmt.Errorf("failed to insert question %d: %w", i, err)
		}
	}
	return nil
}

// GetByID loads a quiz with its questions in order. Returns ErrNotFound if not found.
func (r *QuizRepo) GetByID(ctx context.Context, id string) (*Quiz, error) {
	var q Quiz
	var description, folder sql.NullString
	var sections string
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, description, folder_id, section_ids, question_type, difficulty, created_at FROM quizzes WHERE id = ?",
		id,
	).Scan(&q.ID, &q.Name, &description, &folder, &sections, &q.QuestionType, &q.Difficulty, &q.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query quiz: %w", err)
	}
	q.Description = description.String
	q.FolderID = folder.String
	if err := json.Unmarshal([]byte(sections), &q.SectionIDs); err != nil {
		return nil, fmt.Errorf("failed to decode section ids: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, position, question, options, correct_answer, explanation, difficulty, topic, chapter, source_chunk_ids
		 FROM questions WHERE quiz_id = ? ORDER BY position`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		qu := Question{QuizID: q.ID}
		var options, sources string
		var explanation, difficulty, topic sql.NullString
		var chapter sql.NullInt64
		if err := rows.Scan(&qu.ID, &qu.Position, &qu.Question, &options, &qu.CorrectAnswer,
			&explanation, &difficulty, &topic, &chapter, &sources); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		qu.Explanation = explanation.String
		qu.Difficulty = difficulty.String
		qu.Topic = topic.String
		qu.Chapter = intPtr(chapter)
		if err := json.Unmarshal([]byte(options), &qu.Options); err != nil {
			return nil, fmt.Errorf("failed to decode options: %w", err)
		}
		if err := json.Unmarshal([]byte(sources), &qu.SourceChunkIDs); err != nil {
			return nil, fmt.Errorf("failed to decode source chunk ids: %w", err)
		}
		q.Questions = append(q.Questions, qu)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return &q, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilInt64s(s []int64) []int64 {
	if s == nil {
		return []int64{}
	}
	return s
}
