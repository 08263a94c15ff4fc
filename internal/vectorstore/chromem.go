package vectorstore

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"

	"studyrag/internal/contextutil"
)

// ChromemStore implements VectorStore with an embedded chromem-go database.
// Search is exhaustive, so results are exact.
type ChromemStore struct {
	db *chromem.DB

	mu         sync.Mutex
	dimensions map[string]int
}

// NewChromemStore opens a chromem database. An empty path keeps everything in memory.
func NewChromemStore(path string) (*ChromemStore, error) {
	db := chromem.NewDB()
	if path != "" {
		var err error
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open chromem database: %w", err)
		}
	}
	return &ChromemStore{db: db, dimensions: make(map[string]int)}, nil
}

func (s *ChromemStore) collection(name string) (*chromem.Collection, error) {
	c, err := s.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection %s: %w", name, err)
	}
	return c, nil
}

// EnsureCollection creates the collection and records its dimension; vectors of
// any other length are rejected on Upsert.
func (s *ChromemStore) EnsureCollection(ctx context.Context, collection string, dimension int) error {
	if _, err := s.collection(collection); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimensions[collection] = dimension
	return nil
}

func (s *ChromemStore) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	c, err := s.collection(collection)
	if err != nil {
		return err
	}

	s.mu.Lock()
	dim := s.dimensions[collection]
	s.mu.Unlock()

	docs := make([]chromem.Document, 0, len(points))
	for _, p := range points {
		if dim > 0 && len(p.Vec) != dim {
			return fmt.Errorf("point %s has dimension %d, collection expects %d", p.ID, len(p.Vec), dim)
		}
		docs = append(docs, chromem.Document{
			ID:        p.ID,
			Embedding: p.Vec,
			Metadata: map[string]string{
				fieldMaterialID:  p.Payload.MaterialID,
				fieldChunkIndex:  strconv.Itoa(p.Payload.ChunkIndex),
				fieldContentType: p.Payload.ContentType,
				fieldChapter:     strconv.Itoa(p.Payload.Chapter),
			},
		})
	}
	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	contextutil.LoggerFromContext(ctx).Debug("upserted points", "collection", collection, "count", len(points))
	return nil
}

// whereClauses expands f into chromem equality filters. chromem only supports
// AND of exact matches, so each material/chapter combination is queried separately.
func whereClauses(f Filter) []map[string]string {
	base := func() map[string]string {
		w := map[string]string{}
		if f.ContentType != "" {
			w[fieldContentType] = f.ContentType
		}
		return w
	}

	if f.MaterialIDs == nil {
		return []map[string]string{base()}
	}

	var clauses []map[string]string
	for _, materialID := range f.MaterialIDs {
		chapters := f.Chapters[materialID]
		if len(chapters) == 0 {
			w := base()
			w[fieldMaterialID] = materialID
			clauses = append(clauses, w)
			continue
		}
		for _, ch := range chapters {
			w := base()
			w[fieldMaterialID] = materialID
			w[fieldChapter] = strconv.Itoa(ch)
			clauses = append(clauses, w)
		}
	}
	return clauses
}

func (s *ChromemStore) Search(ctx context.Context, collection string, query []float32, k int, filter Filter) ([]SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	total := c.Count()
	if total == 0 {
		return nil, nil
	}
	n := min(k, total)

	seen := make(map[string]bool)
	var results []SearchResult
	for _, where := range whereClauses(filter) {
		if len(where) == 0 {
			where = nil
		}
		docs, err := c.QueryEmbedding(ctx, query, n, where, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to search points: %w", err)
		}
		for _, d := range docs {
			if seen[d.ID] || (filter.MinScore > 0 && d.Similarity < filter.MinScore) {
				continue
			}
			seen[d.ID] = true
			results = append(results, SearchResult{
				PointID: d.ID,
				Score:   d.Similarity,
				Payload: payloadFromMetadata(d.Metadata),
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *ChromemStore) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	c, err := s.collection(collection)
	if err != nil {
		return err
	}
	if err := c.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	return nil
}

func (s *ChromemStore) Count(ctx context.Context, collection string) (int, error) {
	c, err := s.collection(collection)
	if err != nil {
		return 0, err
	}
	return c.Count(), nil
}

func payloadFromMetadata(meta map[string]string) Payload {
	idx, _ := strconv.Atoi(meta[fieldChunkIndex])
	ch, _ := strconv.Atoi(meta[fieldChapter])
	return Payload{
		MaterialID:  meta[fieldMaterialID],
		ChunkIndex:  idx,
		ContentType: meta[fieldContentType],
		Chapter:     ch,
	}
}
