package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// FlashcardRepo persists flashcard sets and their cards.
type FlashcardRepo struct {
	db DBTX
}

// NewFlashcardRepo creates a new FlashcardRepo.
func NewFlashcardRepo(db DBTX) *FlashcardRepo {
	return &FlashcardRepo{db: db}
}

// Insert writes the set and all its cards. Use it inside WithTx.
func (r *FlashcardRepo) Insert(ctx context.Context, set *FlashcardSet) error {
	if set.ID == "" {
		set.ID = uuid.New().String()
	}
	sections, err := json.Marshal(nonNilInt64s(set.SectionIDs))
	if err != nil {
		return fmt.Errorf("failed to encode section ids: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO flashcard_sets (id, name, description, folder_id, section_ids, source_quiz_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		set.ID, set.Name, set.Description, nullString(set.FolderID), string(sections), nullString(set.SourceQuizID),
	)
	if err != nil {
		return fmt.Errorf("failed to insert flashcard set: %w", err)
	}

	for i := range set.Cards {
		card := &set.Cards[i]
		if card.ID == "" {
			card.ID = uuid.New().String()
		}
		card.SetID = set.ID
		card.Position = i
		sources, err := json.Marshal(nonNilStrings(card.SourceChunkIDs))
		if err != nil {
			return fmt.Errorf("failed to encode source chunk ids: %w", err)
		}
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO flashcards (id, set_id, position, front, back, topic, chapter, source_chunk_ids)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			card.ID, card.SetID, card.Position, card.Front, card.Back, card.Topic, nullInt(card.Chapter), string(sources),
		)
		if err != nil {
			return fmt.Errorf("failed to insert flashcard %d: %w", i, err)
		}
	}
	return nil
}

// GetByID loads a set with its cards in order. Returns ErrNotFound if not found.
func (r *FlashcardRepo) GetByID(ctx context.Context, id string) (*FlashcardSet, error) {
	var set FlashcardSet
	var description, folder, quizID sql.NullString
	var sections string
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, description, folder_id, section_ids, source_quiz_id, created_at FROM flashcard_sets WHERE id = ?",
		id,
	).Scan(&set.ID, &set.Name, &description, &folder, &sections, &quizID, &set.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query flashcard set: %w", err)
	}
	set.Description = description.String
	set.FolderID = folder.String
	set.SourceQuizID = quizID.String
	if err := json.Unmarshal([]byte(sections), &set.SectionIDs); err != nil {
		return nil, fmt.Errorf("failed to decode section ids: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT id, position, front, back, topic, chapter, source_chunk_ids FROM flashcards WHERE set_id = ? ORDER BY position",
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query flashcards: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		card := Flashcard{SetID: set.ID}
		var topic sql.NullString
		var chapter sql.NullInt64
		var sources string
		if err := rows.Scan(&card.ID, &card.Position, &card.Front, &card.Back, &topic, &chapter, &sources); err != nil {
			return nil, fmt.Errorf("failed to scan flashcard: %w", err)
		}
		card.Topic = topic.String
		card.Chapter = intPtr(chapter)
		if err := json.Unmarshal([]byte(sources), &card.SourceChunkIDs); err != nil {
			return nil, fmt.Errorf("failed to decode source chunk ids: %w", err)
		}
		set.Cards = append(set.Cards, card)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return &set, nil
}
