package generator

import (
	"fmt"
	"strings"

	"studyrag/internal/llm"
)

const groundingRules = `Use only the numbered sources below. Every fact in a question, option, answer or explanation must be supported by at least one source.
If you add anything from general knowledge, say so explicitly in the explanation.
Cite sources by their labels (for example "S2") in source_chunk_ids.
Respond with a single JSON object and nothing else: no prose, no code fences.`

const quizSchema = `{"questions":[{"question":string,"options":{"A":string,"B":string,"C":string,"D":string},"correct_answer":"A"|"B"|"C"|"D","explanation":string,"difficulty":"easy"|"medium"|"hard","topic":string,"chapter":number|null,"source_chunk_ids":[string]}]}`

const trueFalseSchema = `{"questions":[{"question":string,"correct_answer":"True"|"False","explanation":string,"difficulty":"easy"|"medium"|"hard","topic":string,"chapter":number|null,"source_chunk_ids":[string]}]}`

const flashcardSchema = `{"cards":[{"front":string,"back":string,"topic":string,"chapter":number|null,"source_chunk_ids":[string]}]}`

func quizMessages(req QuizRequest, sourceText string) []llm.Message {
	schema := quizSchema
	kind := "multiple-choice questions with exactly four options A-D and one correct answer"
	if req.QuestionType == TrueFalse {
		schema = trueFalseSchema
		kind = "true/false statements phrased as questions"
	}

	difficulty := fmt.Sprintf("All questions must be %s.", req.Difficulty)
	if req.Difficulty == Mixed {
		difficulty = "Mix easy, medium and hard questions."
	}

	system := "You write study quizzes for students.\n" + groundingRules + "\nSchema:\n" + schema
	var user strings.Builder
	fmt.Fprintf(&user, "Write %d %s.\n%s\n", req.QuestionCount, kind, difficulty)
	user.WriteString("Set chapter to the chapter number shown in the source header, or null.\n\n")
	user.WriteString("Sources:\n\n")
	user.WriteString(sourceText)

	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user.String()},
	}
}

func flashcardMessages(req FlashcardRequest, sourceText string) []llm.Message {
	system := "You write study flashcards for students.\n" + groundingRules + "\nSchema:\n" + flashcardSchema
	var user strings.Builder
	fmt.Fprintf(&user, "Write %d flashcards. Put one term, question or formula on the front and a concise answer on the back.\n", req.Count)
	if req.Topic != "" {
		fmt.Fprintf(&user, "Focus on: %s\n", req.Topic)
	}
	user.WriteString("Set chapter to the chapter number shown in the source header, or null.\n\n")
	user.WriteString("Sources:\n\n")
	user.WriteString(sourceText)

	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user.String()},
	}
}
