package indexer

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_embedding_client.go -package=mocks studyrag/internal/indexer EmbeddingClient

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"studyrag/internal/contextutil"
	"studyrag/internal/retry"
)

const (
	DefaultEmbedBatchSize   = 16
	DefaultEmbedConcurrency = 4
)

// EmbeddingClient is the provider seam: one vector per input text, in order.
type EmbeddingClient interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Embedder turns chunk texts into vectors in bounded-parallel batches.
type Embedder struct {
	client      EmbeddingClient
	batchSize   int
	concurrency int
	policy      retry.Policy
}

// NewEmbedder creates an Embedder. Non-positive sizes fall back to the defaults.
func NewEmbedder(client EmbeddingClient, batchSize, concurrency int, policy retry.Policy) *Embedder {
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}
	if concurrency <= 0 {
		concurrency = DefaultEmbedConcurrency
	}
	return &Embedder{client: client, batchSize: batchSize, concurrency: concurrency, policy: policy}
}

// Embed returns one vector per text in input order. A text whose embedding
// failed after retries gets a nil vector; provider failures are never returned
// as an error. The only error is the caller's context being done.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	logger := contextutil.LoggerFromContext(ctx)

	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			n := e.embedRange(gctx, texts[start:end], out[start:end])
			failed.Add(int64(n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if n := failed.Load(); n > 0 {
		logger.Warn("some chunks could not be embedded", "failed", n, "total", len(texts))
	}
	return out, nil
}

// embedRange fills dst for texts and returns the number of texts left without a vector.
func (e *Embedder) embedRange(ctx context.Context, texts []string, dst [][]float32) int {
	vectors, err := e.embedBatch(ctx, texts)
	if err == nil {
		copy(dst, vectors)
		return 0
	}
	if ctx.Err() != nil {
		return len(texts)
	}

	logger := contextutil.LoggerFromContext(ctx)
	if len(texts) == 1 {
		logger.Warn("failed to embed chunk", "error", err)
		return 1
	}

	logger.Warn("batch embedding failed, retrying items individually", "size", len(texts), "error", err)
	failed := 0
	for i, text := range texts {
		v, err := e.embedBatch(ctx, []string{text})
		if err != nil {
			if ctx.Err() != nil {
				return failed + len(texts) - i
			}
			logger.Warn("failed to embed chunk", "error", err)
			failed++
			continue
		}
		dst[i] = v[0]
	}
	return failed
}

func (e *Embedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return retry.DoValue(ctx, e.policy, func(ctx context.Context) ([][]float32, error) {
		vectors, err := e.client.EmbedTexts(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(texts), len(vectors))
		}
		for i, v := range vectors {
			if len(v) == 0 {
				return nil, fmt.Errorf("empty embedding at position %d", i)
			}
		}
		return vectors, nil
	})
}
