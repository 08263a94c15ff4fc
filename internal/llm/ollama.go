package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// OllamaProvider serves chat and embeddings from an Ollama server through
// langchaingo. It satisfies ChatModel and the embedding client interfaces.
type OllamaProvider struct {
	chat         *ollama.LLM
	embed        *ollama.LLM
	expectedSize int
}

// NewOllamaProvider creates a provider using chatModel for completions and
// embedModel for embeddings.
func NewOllamaProvider(serverURL, chatModel, embedModel string, expectedSize int, timeout time.Duration) (*OllamaProvider, error) {
	httpClient := &http.Client{Timeout: timeout}
	chat, err := ollama.New(
		ollama.WithServerURL(serverURL),
		ollama.WithModel(chatModel),
		ollama.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama chat model: %w", err)
	}
	embed, err := ollama.New(
		ollama.WithServerURL(serverURL),
		ollama.WithModel(embedModel),
		ollama.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama embedding model: %w", err)
	}
	return &OllamaProvider{chat: chat, embed: embed, expectedSize: expectedSize}, nil
}

func toMessageContent(messages []Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role := llms.ChatMessageTypeHuman
		switch m.Role {
		case RoleSystem:
			role = llms.ChatMessageTypeSystem
		case RoleAssistant:
			role = llms.ChatMessageTypeAI
		}
		out = append(out, llms.TextParts(role, m.Content))
	}
	return out
}

// ChatWithMessages implements ChatModel.
func (p *OllamaProvider) ChatWithMessages(ctx context.Context, messages []Message, params ChatParams) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("no messages to send")
	}

	opts := []llms.CallOption{llms.WithTemperature(float64(params.Temperature))}
	if params.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(params.MaxTokens))
	}
	if params.Model != "" {
		opts = append(opts, llms.WithModel(params.Model))
	}
	if params.JSON {
		opts = append(opts, llms.WithJSONMode())
	}

	resp, err := p.chat.GenerateContent(ctx, toMessageContent(messages), opts...)
	if err != nil {
		return "", fmt.Errorf("ollama chat failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Content, nil
}

// EmbedTexts returns one vector per text, validated against the expected size.
func (p *OllamaProvider) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty input array")
	}
	vectors, err := p.embed.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("ollama embedding failed: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vectors))
	}
	for i, v := range vectors {
		if len(v) != p.expectedSize {
			return nil, fmt.Errorf("embedding %d has size %d, expected %d", i, len(v), p.expectedSize)
		}
	}
	return vectors, nil
}
