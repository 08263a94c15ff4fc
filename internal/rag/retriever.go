// Package rag answers similarity queries over the indexed chunks of a scope.
package rag

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"studyrag/internal/chunkstore"
	"studyrag/internal/contextutil"
	"studyrag/internal/retry"
	"studyrag/internal/storage"
	"studyrag/internal/vectorstore"
)

// ErrInvalidQuery is returned for queries rejected before any search.
var ErrInvalidQuery = errors.New("invalid retrieval query")

// QueryEmbedder embeds query text. llm.EmbeddingsClient satisfies it.
type QueryEmbedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Searcher runs a filtered vector search and hydrates the hits.
type Searcher interface {
	Search(ctx context.Context, query []float32, k int, filter vectorstore.Filter) ([]chunkstore.Hit, error)
}

// Retriever ranks the chunks of a scope by similarity to a query.
type Retriever struct {
	embedder  QueryEmbedder
	searcher  Searcher
	materials storage.MaterialStore
	policy    retry.Policy
}

// NewRetriever creates a Retriever. policy governs query embedding retries.
func NewRetriever(embedder QueryEmbedder, searcher Searcher, materials storage.MaterialStore, policy retry.Policy) *Retriever {
	return &Retriever{embedder: embedder, searcher: searcher, materials: materials, policy: policy}
}

// plan is a resolved scope.
type plan struct {
	all       bool
	materials map[string]storage.Material
	filter    vectorstore.Filter
}

// Retrieve returns up to TopK chunks ordered by similarity, then material
// creation order, then chunk ordinal. An empty scope or no match yields an
// empty list and no error.
func (r *Retriever) Retrieve(ctx context.Context, q Query) ([]Result, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if strings.TrimSpace(q.Text) == "" {
		return nil, fmt.Errorf("%w: query text is required", ErrInvalidQuery)
	}
	if q.ContentType != "" && !q.ContentType.Valid() {
		return nil, fmt.Errorf("%w: unknown content type %q", ErrInvalidQuery, q.ContentType)
	}
	if q.Threshold != nil && (*q.Threshold < 0 || *q.Threshold > 1) {
		return nil, fmt.Errorf("%w: similarity threshold must be between 0 and 1", ErrInvalidQuery)
	}
	if q.TopK < 0 {
		return nil, fmt.Errorf("%w: top_k must not be negative", ErrInvalidQuery)
	}

	topK, threshold := q.Mode.defaults()
	if q.TopK > 0 {
		topK = q.TopK
	}
	topK = min(topK, MaxTopK)
	if q.Threshold != nil {
		threshold = *q.Threshold
	}

	p, err := r.resolve(ctx, q)
	if err != nil {
		return nil, err
	}
	if !p.all && len(p.materials) == 0 {
		logger.Debug("empty retrieval scope")
		return []Result{}, nil
	}
	p.filter.ContentType = string(q.ContentType)
	p.filter.MinScore = threshold

	vec, err := retry.DoValue(ctx, r.policy, func(ctx context.Context) ([]float32, error) {
		vecs, err := r.embedder.EmbedTexts(ctx, []string{q.Text})
		if err != nil {
			return nil, err
		}
		if len(vecs) != 1 || len(vecs[0]) == 0 {
			return nil, errors.New("no embedding returned for query")
		}
		return vecs[0], nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// Over-fetch so ties at the cut-off are broken by our ordering rather
	// than the index's.
	hits, err := r.searcher.Search(ctx, vec, min(topK*2, 2*MaxTopK), p.filter)
	if err != nil {
		return nil, err
	}

	if p.all {
		if p.materials, err = r.materialsOf(ctx, hits); err != nil {
			return nil, err
		}
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		m, ok := p.materials[h.Chunk.MaterialID]
		if !ok {
			continue
		}
		results = append(results, toResult(h, m))
	}
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if a.seq != b.seq {
			return a.seq < b.seq
		}
		return a.ChunkIndex < b.ChunkIndex
	})
	if len(results) > topK {
		results = results[:topK]
	}

	logger.Info("retrieval completed",
		"mode", q.Mode,
		"top_k", topK,
		"threshold", threshold,
		"materials", len(p.materials),
		"results", len(results),
	)
	return results, nil
}

// resolve turns a scope and chapter filter into the materials to search.
func (r *Retriever) resolve(ctx context.Context, q Query) (plan, error) {
	if q.Scope.All && len(q.ChapterFilter) == 0 {
		return plan{all: true}, nil
	}
	if q.Scope.Empty() {
		return plan{}, nil
	}

	var ids []string
	if q.Scope.All {
		for id := range q.ChapterFilter {
			ids = append(ids, id)
		}
	} else {
		ids = append(ids, q.Scope.MaterialIDs...)
		if len(q.Scope.SectionIDs) > 0 {
			inSections, err := r.materials.ListBySections(ctx, q.Scope.SectionIDs)
			if err != nil {
				return plan{}, fmt.Errorf("failed to resolve sections: %w", err)
			}
			for _, m := range inSections {
				ids = append(ids, m.ID)
			}
		}
	}

	found, err := r.materials.ListByIDs(ctx, dedupe(ids))
	if err != nil {
		return plan{}, fmt.Errorf("failed to resolve materials: %w", err)
	}

	p := plan{materials: make(map[string]storage.Material, len(found))}
	for _, m := range found {
		if len(q.ChapterFilter) > 0 {
			if _, ok := q.ChapterFilter[m.ID]; !ok {
				continue
			}
		}
		p.materials[m.ID] = m
		p.filter.MaterialIDs = append(p.filter.MaterialIDs, m.ID)
	}
	if len(q.ChapterFilter) > 0 {
		p.filter.Chapters = make(map[string][]int, len(q.ChapterFilter))
		for id, chapters := range q.ChapterFilter {
			if _, ok := p.materials[id]; ok {
				p.filter.Chapters[id] = chapters
			}
		}
	}
	return p, nil
}

func (r *Retriever) materialsOf(ctx context.Context, hits []chunkstore.Hit) (map[string]storage.Material, error) {
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.Chunk.MaterialID)
	}
	found, err := r.materials.ListByIDs(ctx, dedupe(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to load materials: %w", err)
	}
	out := make(map[string]storage.Material, len(found))
	for _, m := range found {
		out[m.ID] = m
	}
	return out, nil
}

func toResult(h chunkstore.Hit, m storage.Material) Result {
	res := Result{
		ChunkID:       h.Chunk.ID,
		MaterialID:    m.ID,
		MaterialTitle: m.Title,
		Content:       h.Chunk.Content,
		LatexContent:  h.Chunk.LatexContent,
		ContentType:   h.Chunk.ContentType,
		Similarity:    h.Score,
		ChapterTitle:  h.Chunk.Metadata.ChapterTitle(),
		ChunkIndex:    h.Chunk.ChunkIndex,
		Page:          h.Chunk.Metadata.Page,
		seq:           m.Seq,
	}
	if n, ok := h.Chunk.Metadata.ChapterNumber(); ok {
		res.Chapter = &n
	}
	return res
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
