package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"studyrag/internal/chunkstore"
	"studyrag/internal/config"
	"studyrag/internal/extract"
	"studyrag/internal/generator"
	"studyrag/internal/indexer"
	"studyrag/internal/llm"
	"studyrag/internal/logger"
	"studyrag/internal/rag"
	"studyrag/internal/retry"
	"studyrag/internal/service"
	"studyrag/internal/storage"
	"studyrag/internal/structure"
	"studyrag/internal/vectorstore"
)

// embeddingClient is what both LLM providers offer for embeddings.
type embeddingClient interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// app holds every long-lived resource. One instance per process.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *sql.DB
	vectors  vectorstore.VectorStore
	chat     llm.ChatModel
	model    interface{ CheckModel(context.Context) error }
	pipeline *indexer.Pipeline
	sections storage.SectionStore
	study    service.StudyService

	closers []func() error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)

	a := &app{cfg: cfg, log: log}
	if err := a.wire(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg

	db, err := storage.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, db.Close)
	if err := storage.Migrate(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	a.log.Debug("database initialized", "path", cfg.DBPath)

	switch cfg.VectorBackend {
	case "qdrant":
		store, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
		if err != nil {
			return fmt.Errorf("failed to create qdrant client: %w", err)
		}
		a.vectors = store
		a.closers = append(a.closers, store.Close)
	default:
		store, err := vectorstore.NewChromemStore(cfg.ChromemPath)
		if err != nil {
			return fmt.Errorf("failed to open chromem store: %w", err)
		}
		a.vectors = store
	}
	if err := a.vectors.EnsureCollection(ctx, cfg.Collection, cfg.EmbeddingDimension); err != nil {
		return fmt.Errorf("failed to ensure vector collection: %w", err)
	}
	a.log.Debug("vector collection ready", "backend", cfg.VectorBackend, "collection", cfg.Collection, "dimension", cfg.EmbeddingDimension)

	var embeddings embeddingClient
	switch cfg.LLMProvider {
	case "ollama":
		provider, err := llm.NewOllamaProvider(cfg.LLMBaseURL, cfg.LLMModelName, cfg.EmbeddingModelName, cfg.EmbeddingDimension, cfg.RequestTimeout)
		if err != nil {
			return err
		}
		a.chat = provider
		embeddings = provider
	default:
		client := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName, cfg.RequestTimeout)
		a.chat = client
		a.model = client
		embeddings = llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.EmbeddingDimension, cfg.RequestTimeout)
	}

	policy := retry.Policy{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    8 * cfg.RetryBaseDelay,
	}

	materials := storage.NewMaterialRepo(db)
	chunks := storage.NewChunkRepo(db)
	a.sections = storage.NewSectionRepo(db)

	store := chunkstore.New(db, a.vectors, cfg.Collection, policy)
	analyzer := structure.New(cfg.StructureThreshold, cfg.ChunksPerCluster, materials, chunks)
	a.pipeline = indexer.NewPipeline(
		extract.New(nil),
		indexer.NewChunker(cfg.ChunkTargetTokens, cfg.ChunkMaxTokens, cfg.ChunkMinTokens),
		indexer.NewEmbedder(embeddings, cfg.EmbedBatchSize, cfg.EmbedConcurrency, policy),
		store,
		analyzer,
		cfg.EmbeddingModelName,
	)

	retriever := rag.NewRetriever(embeddings, store, materials, policy)
	genPolicy := policy
	genPolicy.MaxAttempts = cfg.GenAttempts
	gen := generator.New(db, a.chat, materials, chunks, retriever, generator.Config{
		SampleChunks:  cfg.GenSampleChunks,
		ContextTokens: cfg.GenContextTokens,
		MaxTokens:     cfg.GenMaxTokens,
		Temperature:   float32(cfg.GenTemperature),
		Policy:        genPolicy,
	})

	a.study = service.NewStudyService(service.Deps{
		Ingester:  a.pipeline,
		Retriever: retriever,
		Analyzer:  analyzer,
		Generator: gen,
		Sections:  a.sections,
		Materials: materials,
	})
	return nil
}

// Close releases resources in reverse order of acquisition and flushes the logger.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.log.Sync()
	return errors.Join(errs...)
}
