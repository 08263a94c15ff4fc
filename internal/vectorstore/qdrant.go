package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"studyrag/internal/contextutil"
)

const (
	fieldMaterialID  = "material_id"
	fieldChunkIndex  = "chunk_index"
	fieldContentType = "content_type"
	fieldChapter     = "chapter"
)

// QdrantStore implements VectorStore using Qdrant (HNSW, approximate search).
type QdrantStore struct {
	client *qdrant.Client
}

// NewQdrantStore creates a new Qdrant vector store client.
// urlStr should be in the format "http://host:port" (e.g., "http://localhost:6333").
// The gRPC port (typically 6334) will be derived from the HTTP port.
func NewQdrantStore(urlStr string) (*QdrantStore, error) {
	host, port, err := grpcEndpoint(urlStr)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &QdrantStore{client: client}, nil
}

// grpcEndpoint derives the gRPC host and port from the Qdrant HTTP URL.
func grpcEndpoint(urlStr string) (string, int, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}

	port := 6334
	if parsedURL.Port() != "" {
		if httpPort, err := strconv.Atoi(parsedURL.Port()); err == nil {
			port = httpPort + 1
		}
	}
	return host, port, nil
}

// Close releases the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// Upsert inserts or updates points in the collection and waits for the write
// to be applied.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, points []Point) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(points) == 0 {
		return nil
	}

	qdrantPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, point := range points {
		qdrantPoints = append(qdrantPoints, &qdrant.PointStruct{
			Id:      qdrant.NewID(point.ID),
			Vectors: qdrant.NewVectors(point.Vec...),
			Payload: qdrant.NewValueMap(map[string]any{
				fieldMaterialID:  point.Payload.MaterialID,
				fieldChunkIndex:  point.Payload.ChunkIndex,
				fieldContentType: point.Payload.ContentType,
				fieldChapter:     point.Payload.Chapter,
			}),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrantPoints,
	})
	if err != nil {
		logger.Error("failed to upsert points", "collection", collection, "count", len(points), "error", err)
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	logger.Debug("upserted points", "collection", collection, "count", len(points))
	return nil
}

// buildFilter translates f into a Qdrant filter: one Should clause per material
// (material id plus optional chapter list) and a Must clause for content type.
func buildFilter(f Filter) *qdrant.Filter {
	var filter qdrant.Filter

	for _, materialID := range f.MaterialIDs {
		must := []*qdrant.Condition{qdrant.NewMatch(fieldMaterialID, materialID)}
		if chapters := f.Chapters[materialID]; len(chapters) > 0 {
			values := make([]int64, len(chapters))
			for i, ch := range chapters {
				values[i] = int64(ch)
			}
			must = append(must, qdrant.NewMatchInts(fieldChapter, values...))
		}
		filter.Should = append(filter.Should, qdrant.NewFilterAsCondition(&qdrant.Filter{Must: must}))
	}

	if f.ContentType != "" {
		filter.Must = append(filter.Must, qdrant.NewMatch(fieldContentType, f.ContentType))
	}

	if len(filter.Should) == 0 && len(filter.Must) == 0 {
		return nil
	}
	return &filter
}

// Search performs a similarity search restricted by filter.
func (s *QdrantStore) Search(ctx context.Context, collection string, query []float32, k int, filter Filter) ([]SearchResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}
	if filter.MaterialIDs != nil && len(filter.MaterialIDs) == 0 {
		return nil, nil
	}

	limit := uint64(k)
	queryReq := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
		Filter:         buildFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if filter.MinScore > 0 {
		queryReq.ScoreThreshold = qdrant.PtrOf(filter.MinScore)
	}

	scoredPoints, err := s.client.Query(ctx, queryReq)
	if err != nil {
		logger.Error("failed to search points", "collection", collection, "k", k, "error", err)
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	results := make([]SearchResult, 0, len(scoredPoints))
	for _, point := range scoredPoints {
		pointID := ""
		if point.Id != nil {
			pointID = point.Id.GetUuid()
		}
		results = append(results, SearchResult{
			PointID: pointID,
			Score:   point.Score,
			Payload: payloadFromQdrant(point.Payload),
		})
	}

	logger.Debug("search completed", "collection", collection, "k", k, "results", len(results))
	return results, nil
}

// Delete removes points by their IDs.
func (s *QdrantStore) Delete(ctx context.Context, collection string, ids []string) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(ids) == 0 {
		return nil
	}

	qdrantIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		qdrantIDs = append(qdrantIDs, qdrant.NewID(id))
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(qdrantIDs...),
	})
	if err != nil {
		logger.Error("failed to delete points", "collection", collection, "count", len(ids), "error", err)
		return fmt.Errorf("failed to delete points: %w", err)
	}

	logger.Debug("deleted points", "collection", collection, "count", len(ids))
	return nil
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context, collection string) (int, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return int(n), nil
}

// EnsureCollection ensures a collection exists with the specified vector size.
// If the collection exists, validates that the vector size matches.
// If it doesn't exist, creates it along with payload indexes for the filter fields.
func (s *QdrantStore) EnsureCollection(ctx context.Context, collection string, vectorSize int) error {
	logger := contextutil.LoggerFromContext(ctx)

	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		logger.Info("creating collection", "collection", collection, "vector_size", vectorSize)
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(vectorSize),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		indexes := map[string]qdrant.FieldType{
			fieldMaterialID:  qdrant.FieldType_FieldTypeKeyword,
			fieldContentType: qdrant.FieldType_FieldTypeKeyword,
			fieldChapter:     qdrant.FieldType_FieldTypeInteger,
		}
		for field, fieldType := range indexes {
			_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
				CollectionName: collection,
				FieldName:      field,
				FieldType:      fieldType.Enum(),
			})
			if err != nil {
				return fmt.Errorf("failed to create payload index %s: %w", field, err)
			}
		}
		return nil
	}

	info, err := s.client.GetCollectionInfo(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to get collection info: %w", err)
	}

	var actualSize uint64
	if config := info.GetConfig(); config != nil && config.GetParams() != nil {
		if params := config.GetParams().GetVectorsConfig().GetParams(); params != nil {
			actualSize = params.GetSize()
		}
	}
	if actualSize == 0 {
		return fmt.Errorf("could not determine collection vector size")
	}
	if int(actualSize) != vectorSize {
		return fmt.Errorf("collection vector size mismatch: expected %d, got %d", vectorSize, actualSize)
	}

	logger.Debug("collection validated", "collection", collection, "vector_size", vectorSize)
	return nil
}

func payloadFromQdrant(payload map[string]*qdrant.Value) Payload {
	var p Payload
	if v := payload[fieldMaterialID]; v != nil {
		p.MaterialID = v.GetStringValue()
	}
	if v := payload[fieldContentType]; v != nil {
		p.ContentType = v.GetStringValue()
	}
	if v := payload[fieldChunkIndex]; v != nil {
		p.ChunkIndex = int(v.GetIntegerValue())
	}
	if v := payload[fieldChapter]; v != nil {
		p.Chapter = int(v.GetIntegerValue())
	}
	return p
}
