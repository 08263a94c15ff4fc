package generator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"studyrag/internal/storage"
)

// decodeStrict decodes exactly one JSON value into v. Unknown fields, trailing
// data and non-JSON wrappers such as code fences are errors.
func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

type quizPayload struct {
	Questions []json.RawMessage `json:"questions"`
}

type questionItem struct {
	Question       string            `json:"question"`
	Options        map[string]string `json:"options"`
	CorrectAnswer  string            `json:"correct_answer"`
	Explanation    string            `json:"explanation"`
	Difficulty     string            `json:"difficulty"`
	Topic          string            `json:"topic"`
	Chapter        *int              `json:"chapter"`
	SourceChunkIDs []string          `json:"source_chunk_ids"`
}

type flashcardPayload struct {
	Cards []json.RawMessage `json:"cards"`
}

type cardItem struct {
	Front          string   `json:"front"`
	Back           string   `json:"back"`
	Topic          string   `json:"topic"`
	Chapter        *int     `json:"chapter"`
	SourceChunkIDs []string `json:"source_chunk_ids"`
}

var choiceKeys = []string{"A", "B", "C", "D"}

// sourceIndex resolves model-supplied source references. Both labels (S3)
// and raw chunk ids are accepted; anything else is dropped.
type sourceIndex struct {
	byLabel map[string]string
	ids     map[string]bool
}

func newSourceIndex(byLabel map[string]string) sourceIndex {
	ids := make(map[string]bool, len(byLabel))
	for _, id := range byLabel {
		ids[id] = true
	}
	return sourceIndex{byLabel: byLabel, ids: ids}
}

func (x sourceIndex) resolve(refs []string) (ids []string, dropped int) {
	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		ref = strings.Trim(strings.TrimSpace(ref), "[]")
		id, ok := x.byLabel[strings.ToUpper(ref)]
		if !ok && x.ids[ref] {
			id, ok = ref, true
		}
		if !ok {
			dropped++
			continue
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, dropped
}

// parsed carries the valid items of one model response.
type parsed[T any] struct {
	items    []T
	warnings []string
}

func parseQuestions(raw string, qt QuestionType, difficulty Difficulty, want int, sources sourceIndex) (parsed[storage.Question], error) {
	var out parsed[storage.Question]

	var payload quizPayload
	if err := decodeStrict([]byte(raw), &payload); err != nil {
		return out, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if payload.Questions == nil {
		return out, fmt.Errorf("%w: missing questions array", ErrMalformedOutput)
	}

	var droppedRefs int
	for i, item := range payload.Questions {
		var q questionItem
		if err := decodeStrict(item, &q); err != nil {
			out.warnings = append(out.warnings, fmt.Sprintf("question %d dropped: %v", i+1, err))
			continue
		}
		question, err := validateQuestion(q, qt, difficulty)
		if err != nil {
			out.warnings = append(out.warnings, fmt.Sprintf("question %d dropped: %v", i+1, err))
			continue
		}
		var dropped int
		question.SourceChunkIDs, dropped = sources.resolve(q.SourceChunkIDs)
		droppedRefs += dropped
		out.items = append(out.items, question)
	}

	if len(out.items) == 0 {
		return out, fmt.Errorf("%w: none of %d questions were valid", ErrMalformedOutput, len(payload.Questions))
	}
	if len(out.items) > want {
		out.items = out.items[:want]
	}
	if droppedRefs > 0 {
		out.warnings = append(out.warnings, fmt.Sprintf("%d unknown source references dropped", droppedRefs))
	}
	if len(out.items) < want {
		out.warnings = append(out.warnings, fmt.Sprintf("generated %d of %d requested questions", len(out.items), want))
	}
	return out, nil
}

func validateQuestion(q questionItem, qt QuestionType, difficulty Difficulty) (storage.Question, error) {
	q.Question = strings.TrimSpace(q.Question)
	q.Explanation = strings.TrimSpace(q.Explanation)
	q.CorrectAnswer = strings.TrimSpace(q.CorrectAnswer)
	if q.Question == "" {
		return storage.Question{}, errors.New("empty question")
	}
	if q.Explanation == "" {
		return storage.Question{}, errors.New("missing explanation")
	}

	out := storage.Question{
		Question:    q.Question,
		Explanation: q.Explanation,
		Topic:       strings.TrimSpace(q.Topic),
	}

	switch qt {
	case TrueFalse:
		switch strings.ToLower(q.CorrectAnswer) {
		case "true":
			out.CorrectAnswer = "True"
		case "false":
			out.CorrectAnswer = "False"
		default:
			return storage.Question{}, fmt.Errorf("correct_answer %q is not True or False", q.CorrectAnswer)
		}
		out.Options = map[string]string{"True": "True", "False": "False"}
	default:
		if len(q.Options) != len(choiceKeys) {
			return storage.Question{}, fmt.Errorf("want options A-D, got %d options", len(q.Options))
		}
		out.Options = make(map[string]string, len(choiceKeys))
		for _, k := range choiceKeys {
			text := strings.TrimSpace(q.Options[k])
			if text == "" {
				return storage.Question{}, fmt.Errorf("option %s is missing", k)
			}
			out.Options[k] = text
		}
		answer := strings.ToUpper(q.CorrectAnswer)
		if _, ok := out.Options[answer]; !ok {
			return storage.Question{}, fmt.Errorf("correct_answer %q is not one of A-D", q.CorrectAnswer)
		}
		out.CorrectAnswer = answer
	}

	d := Difficulty(strings.ToLower(strings.TrimSpace(q.Difficulty)))
	switch {
	case d == "" && difficulty != Mixed:
		d = difficulty
	case d == "":
		d = Medium
	case d == Mixed || !d.valid():
		return storage.Question{}, fmt.Errorf("invalid difficulty %q", q.Difficulty)
	}
	out.Difficulty = string(d)

	if q.Chapter != nil && *q.Chapter > 0 {
		n := *q.Chapter
		out.Chapter = &n
	}
	return out, nil
}

func parseCards(raw string, want int, sources sourceIndex) (parsed[storage.Flashcard], error) {
	var out parsed[storage.Flashcard]

	var payload flashcardPayload
	if err := decodeStrict([]byte(raw), &payload); err != nil {
		return out, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if payload.Cards == nil {
		return out, fmt.Errorf("%w: missing cards array", ErrMalformedOutput)
	}

	var droppedRefs int
	for i, item := range payload.Cards {
		var c cardItem
		if err := decodeStrict(item, &c); err != nil {
			out.warnings = append(out.warnings, fmt.Sprintf("card %d dropped: %v", i+1, err))
			continue
		}
		front, back := strings.TrimSpace(c.Front), strings.TrimSpace(c.Back)
		if front == "" || back == "" {
			out.warnings = append(out.warnings, fmt.Sprintf("card %d dropped: front and back are required", i+1))
			continue
		}
		card := storage.Flashcard{Front: front, Back: back, Topic: strings.TrimSpace(c.Topic)}
		if c.Chapter != nil && *c.Chapter > 0 {
			n := *c.Chapter
			card.Chapter = &n
		}
		var dropped int
		card.SourceChunkIDs, dropped = sources.resolve(c.SourceChunkIDs)
		droppedRefs += dropped
		out.items = append(out.items, card)
	}

	if len(out.items) == 0 {
		return out, fmt.Errorf("%w: none of %d cards were valid", ErrMalformedOutput, len(payload.Cards))
	}
	if len(out.items) > want {
		out.items = out.items[:want]
	}
	if droppedRefs > 0 {
		out.warnings = append(out.warnings, fmt.Sprintf("%d unknown source references dropped", droppedRefs))
	}
	if len(out.items) < want {
		out.warnings = append(out.warnings, fmt.Sprintf("generated %d of %d requested flashcards", len(out.items), want))
	}
	return out, nil
}
