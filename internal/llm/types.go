package llm

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chat_model.go -package=mocks studyrag/internal/llm ChatModel

import (
	"context"
	"fmt"
)

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatParams holds parameters for chat completion requests.
type ChatParams struct {
	// Model overrides the client's default model when set.
	Model string

	// MaxTokens limits the completion length. 0 means the provider default.
	MaxTokens int

	// Temperature controls the randomness of the output.
	Temperature float32

	// JSON asks the provider to return a single JSON object.
	JSON bool
}

// ChatModel is a chat completion provider.
type ChatModel interface {
	ChatWithMessages(ctx context.Context, messages []Message, params ChatParams) (string, error)
}

// StatusError is a non-2xx provider response. It satisfies retry.HTTPStatusCoder,
// so 408, 429 and 5xx responses are retried.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bad status %d: %s", e.StatusCode, e.Body)
}

// HTTPStatusCode returns the response status.
func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}
