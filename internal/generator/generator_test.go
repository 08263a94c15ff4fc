package generator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"studyrag/internal/llm"
	llm_mocks "studyrag/internal/llm/mocks"
	"studyrag/internal/rag"
	"studyrag/internal/retry"
	"studyrag/internal/storage"
	storage_mocks "studyrag/internal/storage/mocks"
	"studyrag/internal/storage/storagetest"
)

var testConfig = Config{
	SampleChunks:  40,
	ContextTokens: 6000,
	MaxTokens:     1024,
	Temperature:   0.2,
	Policy:        retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond},
}

type fixture struct {
	db       *sql.DB
	physics  int64
	history  int64
	material *storage.Material
	chunkIDs []string
}

var physicsChunks = []string{
	"Kinetic energy depends on mass and speed.",
	"Momentum is conserved in closed systems.",
	"Work transfers energy to an object.",
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := storagetest.NewDB(t)
	f := &fixture{
		db:      db,
		physics: storagetest.Section(t, db, "Physics"),
		history: storagetest.Section(t, db, "History"),
	}

	insert := func(section int64, title string, contents []string) (*storage.Material, []string) {
		m := &storage.Material{SectionID: section, Type: storage.MaterialLectureNotes, Title: title, SourceFilename: title + ".md"}
		if err := storage.NewMaterialRepo(db).Insert(ctx, m); err != nil {
			t.Fatalf("Insert(material) error = %v", err)
		}
		chunks := make([]storage.ChunkRecord, len(contents))
		for i, c := range contents {
			chunks[i] = storage.ChunkRecord{
				MaterialID:  m.ID,
				ChunkIndex:  i,
				Content:     c,
				ContentType: storage.ContentText,
				TokenCount:  len(c) / 4,
				Metadata:    storage.ChunkMetadata{Chapter: &storage.ChapterInfo{Number: i + 1, Title: fmt.Sprintf("Chapter %d", i+1)}},
			}
		}
		if err := storage.NewChunkRepo(db).InsertBatch(ctx, chunks); err != nil {
			t.Fatalf("InsertBatch() error = %v", err)
		}
		ids := make([]string, len(chunks))
		for i, c := range chunks {
			ids[i] = c.ID
		}
		return m, ids
	}

	f.material, f.chunkIDs = insert(f.physics, "Mechanics", physicsChunks)
	insert(f.history, "Rome", []string{"Rome was not built in a day."})
	return f
}

func (f *fixture) generator(chat llm.ChatModel, retriever ChunkRetriever) *Generator {
	return New(f.db, chat, storage.NewMaterialRepo(f.db), storage.NewChunkRepo(f.db), retriever, testConfig)
}

func mcQuestion(n int, refs ...string) string {
	quoted := make([]string, len(refs))
	for i, r := range refs {
		quoted[i] = fmt.Sprintf("%q", r)
	}
	return fmt.Sprintf(`{"question":"Question %d?","options":{"A":"a","B":"b","C":"c","D":"d"},"correct_answer":"B","explanation":"Because of source %d.","difficulty":"medium","topic":"energy","chapter":1,"source_chunk_ids":[%s]}`,
		n, n, strings.Join(quoted, ","))
}

func quizJSON(questions ...string) string {
	return `{"questions":[` + strings.Join(questions, ",") + `]}`
}

func TestGenerateQuiz_GroundedInAvailableChunks(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newFixture(t)
	chat := llm_mocks.NewMockChatModel(ctrl)

	var prompt string
	chat.EXPECT().
		ChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, messages []llm.Message, params llm.ChatParams) (string, error) {
			if !params.JSON {
				t.Error("JSON mode not requested")
			}
			if params.MaxTokens != 1024 || params.Temperature != 0.2 {
				t.Errorf("params = %+v", params)
			}
			if len(messages) != 2 || messages[0].Role != llm.RoleSystem {
				t.Fatalf("messages = %+v", messages)
			}
			prompt = messages[1].Content
			return quizJSON(mcQuestion(1, "S1"), mcQuestion(2, "S2", "S3"), mcQuestion(3, "S3", "S7")), nil
		}).
		Times(1)

	var stages []string
	g := f.generator(chat, nil)
	res, err := g.GenerateQuiz(context.Background(), QuizRequest{
		SectionIDs:    []int64{f.physics},
		QuestionCount: 10,
		QuestionType:  MultipleChoice,
		Difficulty:    Medium,
		Name:          "Energy check",
	}, func(stage string) { stages = append(stages, stage) })
	if err != nil {
		t.Fatalf("GenerateQuiz() error = %v", err)
	}

	for _, c := range physicsChunks {
		if !strings.Contains(prompt, c) {
			t.Errorf("prompt missing source %q", c)
		}
	}
	if strings.Contains(prompt, "Rome") {
		t.Error("prompt contains material outside the requested sections")
	}
	if !strings.Contains(prompt, "Write 10 multiple-choice questions") {
		t.Errorf("prompt does not ask for 10 questions:\n%s", prompt)
	}

	if len(res.Quiz.Questions) != 3 {
		t.Fatalf("questions = %d, want 3", len(res.Quiz.Questions))
	}
	if !containsWarning(res.Warnings, "generated 3 of 10 requested questions") {
		t.Errorf("warnings = %v", res.Warnings)
	}
	if !containsWarning(res.Warnings, "1 unknown source references dropped") {
		t.Errorf("warnings = %v", res.Warnings)
	}

	wantStages := []string{StageResolving, StageRetrieving, StageGeneratingQuestions, StageValidating, StageSaving}
	if !reflect.DeepEqual(stages, wantStages) {
		t.Errorf("stages = %v, want %v", stages, wantStages)
	}

	saved, err := g.GetQuiz(context.Background(), res.Quiz.ID)
	if err != nil {
		t.Fatalf("GetQuiz() error = %v", err)
	}
	if saved.Name != "Energy check" || len(saved.Questions) != 3 {
		t.Fatalf("saved quiz = %+v", saved)
	}
	if want := []string{f.chunkIDs[1], f.chunkIDs[2]}; !reflect.DeepEqual(saved.Questions[1].SourceChunkIDs, want) {
		t.Errorf("SourceChunkIDs = %v, want %v", saved.Questions[1].SourceChunkIDs, want)
	}
	if saved.Questions[0].CorrectAnswer != "B" || saved.Questions[0].Options["B"] != "b" {
		t.Errorf("question 0 = %+v", saved.Questions[0])
	}
}

func TestGenerateQuiz_ChapterFilterWithoutChunks(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	materials := storage_mocks.NewMockMaterialStore(ctrl)
	chunks := storage_mocks.NewMockChunkStore(ctrl)
	chat := llm_mocks.NewMockChatModel(ctrl)

	materials.EXPECT().
		ListBySections(gomock.Any(), []int64{7}).
		Return([]storage.Material{{ID: "m1", SectionID: 7, Title: "Physics"}}, nil)
	chunks.EXPECT().
		ListByMaterialChapters(gomock.Any(), "m1", []int{3}).
		Return(nil, nil)

	g := New(nil, chat, materials, chunks, nil, testConfig)
	_, err := g.GenerateQuiz(context.Background(), QuizRequest{
		SectionIDs:    []int64{7},
		ChapterFilter: rag.ChapterFilter{"m1": {3}},
	}, nil)
	if !errors.Is(err, ErrNoChapterMaterial) {
		t.Fatalf("GenerateQuiz() error = %v, want ErrNoChapterMaterial", err)
	}
	if !errors.Is(err, ErrInsufficientMaterial) {
		t.Error("ErrNoChapterMaterial should match ErrInsufficientMaterial")
	}
	if err.Error() != "no source material available for the selected sections: no source material in selected chapters" {
		t.Errorf("error = %q", err)
	}
}

func TestGenerateQuiz_ChapterFilter(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newFixture(t)
	chat := llm_mocks.NewMockChatModel(ctrl)
	var prompt string
	chat.EXPECT().
		ChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, messages []llm.Message, params llm.ChatParams) (string, error) {
			prompt = messages[1].Content
			return quizJSON(mcQuestion(1, "S1")), nil
		})

	_, err := f.generator(chat, nil).GenerateQuiz(context.Background(), QuizRequest{
		SectionIDs:    []int64{f.physics},
		QuestionCount: 1,
		ChapterFilter: rag.ChapterFilter{f.material.ID: {2}},
	}, nil)
	if err != nil {
		t.Fatalf("GenerateQuiz() error = %v", err)
	}
	if !strings.Contains(prompt, physicsChunks[1]) {
		t.Error("prompt missing chapter 2 chunk")
	}
	if strings.Contains(prompt, physicsChunks[0]) || strings.Contains(prompt, physicsChunks[2]) {
		t.Error("prompt contains chunks outside chapter 2")
	}
}

func TestGenerateQuiz_RetriesMalformedOutput(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newFixture(t)
	chat := llm_mocks.NewMockChatModel(ctrl)
	gomock.InOrder(
		chat.EXPECT().ChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any()).
			Return("```json\n"+quizJSON(mcQuestion(1, "S1"))+"\n```", nil),
		chat.EXPECT().ChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(quizJSON(mcQuestion(1, "S1")), nil),
	)

	res, err := f.generator(chat, nil).GenerateQuiz(context.Background(), QuizRequest{
		SectionIDs:    []int64{f.physics},
		QuestionCount: 1,
	}, nil)
	if err != nil {
		t.Fatalf("GenerateQuiz() error = %v", err)
	}
	if len(res.Quiz.Questions) != 1 {
		t.Errorf("questions = %d, want 1", len(res.Quiz.Questions))
	}
}

func TestGenerateQuiz_Failures(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		err       error
		wantCalls int
		wantIs    []error
	}{
		{
			name:      "malformed output exhausts retries",
			reply:     "Sure! Here is your quiz.",
			wantCalls: 3,
			wantIs:    []error{ErrMalformedOutput, retry.ErrExhausted},
		},
		{
			name:      "no valid questions",
			reply:     `{"questions":[{"question":"","options":{},"correct_answer":"A","explanation":""}]}`,
			wantCalls: 3,
			wantIs:    []error{ErrMalformedOutput, retry.ErrExhausted},
		},
		{
			name:      "unavailable provider exhausts retries",
			err:       &llm.StatusError{StatusCode: 503, Body: "overloaded"},
			wantCalls: 3,
			wantIs:    []error{retry.ErrExhausted},
		},
		{
			name:      "bad request is not retried",
			err:       &llm.StatusError{StatusCode: 400, Body: "bad model"},
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			f := newFixture(t)
			chat := llm_mocks.NewMockChatModel(ctrl)
			chat.EXPECT().
				ChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any()).
				Return(tt.reply, tt.err).
				Times(tt.wantCalls)

			_, err := f.generator(chat, nil).GenerateQuiz(context.Background(), QuizRequest{SectionIDs: []int64{f.physics}}, nil)
			if err == nil {
				t.Fatal("GenerateQuiz() expected error")
			}
			for _, target := range tt.wantIs {
				if !errors.Is(err, target) {
					t.Errorf("error %v does not match %v", err, target)
				}
			}
			if tt.err != nil {
				var statusErr *llm.StatusError
				if !errors.As(err, &statusErr) {
					t.Errorf("error %v does not carry the provider error", err)
				}
			}

			var n int
			if err := f.db.QueryRow("SELECT COUNT(*) FROM quizzes").Scan(&n); err != nil {
				t.Fatalf("count quizzes: %v", err)
			}
			if n != 0 {
				t.Errorf("quizzes = %d after failure, want 0", n)
			}
		})
	}
}

func TestGenerateQuiz_InvalidRequest(t *testing.T) {
	tests := []struct {
		name string
		req  QuizRequest
	}{
		{"no sections", QuizRequest{}},
		{"too many questions", QuizRequest{SectionIDs: []int64{1}, QuestionCount: MaxQuestionCount + 1}},
		{"negative count", QuizRequest{SectionIDs: []int64{1}, QuestionCount: -1}},
		{"unknown type", QuizRequest{SectionIDs: []int64{1}, QuestionType: "essay"}},
		{"unknown difficulty", QuizRequest{SectionIDs: []int64{1}, Difficulty: "brutal"}},
		{"zero chapter", QuizRequest{SectionIDs: []int64{1}, ChapterFilter: rag.ChapterFilter{"m1": {0}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			g := New(nil, llm_mocks.NewMockChatModel(ctrl), storage_mocks.NewMockMaterialStore(ctrl), storage_mocks.NewMockChunkStore(ctrl), nil, testConfig)
			if _, err := g.GenerateQuiz(context.Background(), tt.req, nil); !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("GenerateQuiz() error = %v, want ErrInvalidRequest", err)
			}
		})
	}
}

func TestGenerateQuiz_EmptySection(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newFixture(t)
	empty := storagetest.Section(t, f.db, "Empty")
	_, err := f.generator(llm_mocks.NewMockChatModel(ctrl), nil).GenerateQuiz(context.Background(), QuizRequest{SectionIDs: []int64{empty}}, nil)
	if !errors.Is(err, ErrInsufficientMaterial) {
		t.Errorf("GenerateQuiz() error = %v, want ErrInsufficientMaterial", err)
	}
}

func TestGenerateQuiz_Cancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := f.generator(llm_mocks.NewMockChatModel(ctrl), nil).GenerateQuiz(ctx, QuizRequest{SectionIDs: []int64{f.physics}}, func(stage string) {
		if stage == StageRetrieving {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("GenerateQuiz() error = %v, want context.Canceled", err)
	}
}

type retrieverFunc func(ctx context.Context, q rag.Query) ([]rag.Result, error)

func (f retrieverFunc) Retrieve(ctx context.Context, q rag.Query) ([]rag.Result, error) {
	return f(ctx, q)
}

func TestGenerateFlashcards(t *testing.T) {
	momentum := rag.Result{ChunkID: "picked", MaterialTitle: "Mechanics", Content: "Momentum is conserved in closed systems.", Similarity: 0.9}

	tests := []struct {
		name         string
		topic        string
		results      []rag.Result
		retrieveErr  error
		wantInPrompt []string
		wantSources  []string
		wantWarning  string
	}{
		{
			name:         "topic uses retrieved chunks",
			topic:        "momentum",
			results:      []rag.Result{momentum},
			wantInPrompt: []string{"Focus on: momentum", momentum.Content},
			wantSources:  []string{"picked"},
		},
		{
			name:         "no topic match samples",
			topic:        "thermodynamics",
			wantInPrompt: physicsChunks,
		},
		{
			name:         "retrieval failure samples",
			topic:        "momentum",
			retrieveErr:  &llm.StatusError{StatusCode: 503},
			wantInPrompt: physicsChunks,
			wantWarning:  "topic search unavailable",
		},
		{
			name:         "no topic",
			wantInPrompt: physicsChunks,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			f := newFixture(t)
			var retrieverCalls int
			retriever := retrieverFunc(func(ctx context.Context, q rag.Query) ([]rag.Result, error) {
				retrieverCalls++
				if q.Mode != rag.ModeGrounding || q.Text != tt.topic || !reflect.DeepEqual(q.Scope.SectionIDs, []int64{f.physics}) {
					t.Errorf("Retrieve() query = %+v", q)
				}
				return tt.results, tt.retrieveErr
			})

			chat := llm_mocks.NewMockChatModel(ctrl)
			var prompt string
			chat.EXPECT().
				ChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any()).
				DoAndReturn(func(ctx context.Context, messages []llm.Message, params llm.ChatParams) (string, error) {
					prompt = messages[1].Content
					return `{"cards":[{"front":"Momentum","back":"Conserved in closed systems","topic":"momentum","chapter":2,"source_chunk_ids":["S1"]}]}`, nil
				})

			var stages []string
			res, err := f.generator(chat, retriever).GenerateFlashcards(context.Background(), FlashcardRequest{
				SectionIDs: []int64{f.physics},
				Count:      1,
				Topic:      tt.topic,
			}, func(stage string) { stages = append(stages, stage) })
			if err != nil {
				t.Fatalf("GenerateFlashcards() error = %v", err)
			}

			if tt.topic == "" && retrieverCalls != 0 {
				t.Errorf("retriever called %d times without a topic", retrieverCalls)
			}
			for _, want := range tt.wantInPrompt {
				if !strings.Contains(prompt, want) {
					t.Errorf("prompt missing %q", want)
				}
			}
			if tt.wantSources != nil && !reflect.DeepEqual(res.Set.Cards[0].SourceChunkIDs, tt.wantSources) {
				t.Errorf("SourceChunkIDs = %v, want %v", res.Set.Cards[0].SourceChunkIDs, tt.wantSources)
			}
			if tt.wantWarning != "" && !containsWarning(res.Warnings, tt.wantWarning) {
				t.Errorf("warnings = %v, want %q", res.Warnings, tt.wantWarning)
			}
			if stages[2] != StageGeneratingCards {
				t.Errorf("stages = %v", stages)
			}

			saved, err := f.generator(chat, nil).GetFlashcardSet(context.Background(), res.Set.ID)
			if err != nil {
				t.Fatalf("GetFlashcardSet() error = %v", err)
			}
			if len(saved.Cards) != 1 || saved.Cards[0].Front != "Momentum" {
				t.Errorf("saved set = %+v", saved)
			}
		})
	}
}

func TestDeriveFlashcardsFromQuiz(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newFixture(t)
	ctx := context.Background()
	chapter := 2
	quiz := &storage.Quiz{
		Name:         "Mechanics quiz",
		SectionIDs:   []int64{f.physics},
		QuestionType: string(MultipleChoice),
		Difficulty:   string(Easy),
		Questions: []storage.Question{{
			Question:       "What is conserved in closed systems?",
			Options:        map[string]string{"A": "Heat", "B": "Momentum", "C": "Speed", "D": "Mass flow"},
			CorrectAnswer:  "B",
			Explanation:    "Closed systems conserve momentum.",
			Difficulty:     "easy",
			Topic:          "momentum",
			Chapter:        &chapter,
			SourceChunkIDs: []string{f.chunkIDs[1], "deleted-chunk"},
		}},
	}
	err := storage.WithTx(ctx, f.db, testConfig.Policy, func(tx *sql.Tx) error {
		return storage.NewQuizRepo(tx).Insert(ctx, quiz)
	})
	if err != nil {
		t.Fatalf("Insert(quiz) error = %v", err)
	}

	// No model call is expected.
	g := f.generator(llm_mocks.NewMockChatModel(ctrl), nil)

	res, err := g.DeriveFlashcardsFromQuiz(ctx, DeriveRequest{QuizID: quiz.ID}, nil)
	if err != nil {
		t.Fatalf("DeriveFlashcardsFromQuiz() error = %v", err)
	}
	set := res.Set
	if set.Name != "Mechanics quiz flashcards" || set.SourceQuizID != quiz.ID {
		t.Errorf("set = %+v", set)
	}
	if len(set.Cards) != 1 {
		t.Fatalf("cards = %d, want 1", len(set.Cards))
	}
	card := set.Cards[0]
	if card.Front != "What is conserved in closed systems?" {
		t.Errorf("Front = %q", card.Front)
	}
	if card.Back != "B) Momentum\n\nClosed systems conserve momentum." {
		t.Errorf("Back = %q", card.Back)
	}
	if card.Topic != "momentum" || card.Chapter == nil || *card.Chapter != 2 {
		t.Errorf("card = %+v", card)
	}
	if !reflect.DeepEqual(card.SourceChunkIDs, []string{f.chunkIDs[1]}) {
		t.Errorf("SourceChunkIDs = %v", card.SourceChunkIDs)
	}
	if !containsWarning(res.Warnings, "1 stale source references dropped") {
		t.Errorf("warnings = %v", res.Warnings)
	}

	if _, err := g.DeriveFlashcardsFromQuiz(ctx, DeriveRequest{QuizID: "missing"}, nil); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("unknown quiz error = %v, want storage.ErrNotFound", err)
	}
	if _, err := g.DeriveFlashcardsFromQuiz(ctx, DeriveRequest{}, nil); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("empty request error = %v, want ErrInvalidRequest", err)
	}

	inline, err := g.DeriveFlashcardsFromQuiz(ctx, DeriveRequest{
		Name:      "Inline",
		Questions: []storage.Question{{Question: "Is work a transfer of energy?", CorrectAnswer: "True", Options: map[string]string{"True": "True", "False": "False"}}},
	}, nil)
	if err != nil {
		t.Fatalf("DeriveFlashcardsFromQuiz(questions) error = %v", err)
	}
	if inline.Set.Cards[0].Back != "True" {
		t.Errorf("Back = %q, want True", inline.Set.Cards[0].Back)
	}
}

func containsWarning(warnings []string, want string) bool {
	for _, w := range warnings {
		if strings.Contains(w, want) {
			return true
		}
	}
	return false
}
