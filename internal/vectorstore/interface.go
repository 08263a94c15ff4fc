package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks studyrag/internal/vectorstore VectorStore

import "context"

// Payload is the metadata stored next to each chunk vector. It carries only the
// fields that filters need; everything else is hydrated from SQLite.
type Payload struct {
	MaterialID  string
	ChunkIndex  int
	ContentType string
	Chapter     int // 0 for unstructured chunks
}

// Point represents a vector point with metadata.
type Point struct {
	ID      string
	Vec     []float32
	Payload Payload
}

// SearchResult represents a search result from vector search.
type SearchResult struct {
	PointID string
	Score   float32
	Payload Payload
}

// Filter restricts a search. The zero value matches every point.
type Filter struct {
	// MaterialIDs limits results to these materials. Nil means all materials.
	MaterialIDs []string
	// Chapters limits a material to the listed chapter numbers. Materials without
	// an entry are unrestricted.
	Chapters map[string][]int
	// ContentType limits results to one content type. Empty means any.
	ContentType string
	// MinScore drops results below this similarity.
	MinScore float32
}

// VectorStore defines the interface for vector storage operations.
type VectorStore interface {
	// EnsureCollection creates the collection if needed and validates its dimension.
	EnsureCollection(ctx context.Context, collection string, dimension int) error

	// Upsert inserts or updates points in the collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search returns up to k points ordered by descending similarity.
	Search(ctx context.Context, collection string, query []float32, k int, filter Filter) ([]SearchResult, error)

	// Delete removes points by their IDs.
	Delete(ctx context.Context, collection string, ids []string) error

	// Count returns the number of points in the collection.
	Count(ctx context.Context, collection string) (int, error)
}
