package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	LLMProvider        string
	LLMBaseURL         string
	LLMModelName       string
	LLMAPIKey          string
	EmbeddingBaseURL   string
	EmbeddingModelName string
	EmbeddingDimension int
	RequestTimeout     time.Duration

	DBPath        string
	VectorBackend string
	ChromemPath   string
	QdrantURL     string
	Collection    string

	APIPort     string
	LibraryPath string
	LogMode     string
	LogLevel    string

	RetryMaxAttempts int
	RetryBaseDelay   time.Duration

	EmbedBatchSize   int
	EmbedConcurrency int

	ChunkTargetTokens int
	ChunkMaxTokens    int
	ChunkMinTokens    int

	StructureThreshold float64
	ChunksPerCluster   int

	GenSampleChunks  int
	GenContextTokens int
	GenAttempts      int
	GenMaxTokens     int
	GenTemperature   float64
}

// fileConfig is the optional YAML layer. Keys mirror the environment variable names
// in lower case so a YAML file and a .env file read the same way.
type fileConfig map[string]string

// Load reads configuration from environment variables and returns a Config struct.
// Precedence, lowest first: built-in defaults, the YAML file named by CONFIG_FILE,
// a .env file (current directory or up to five parents), the process environment.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ {
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	file, err := loadFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}
	get := func(key, defaultValue string) string {
		return getEnv(key, file.get(key, defaultValue))
	}

	cfg := &Config{
		LLMProvider:        get("LLM_PROVIDER", "openai"),
		LLMBaseURL:         get("LLM_BASE_URL", "http://localhost:8080"),
		LLMModelName:       get("LLM_MODEL", "Llama-3.1-8B-Instruct"),
		LLMAPIKey:          get("LLM_API_KEY", "dummy-key"),
		EmbeddingBaseURL:   get("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModelName: get("EMBEDDING_MODEL_NAME", "text-embedding-3-small"),
		DBPath:             get("DB_PATH", "./data/studyrag.db"),
		VectorBackend:      get("VECTOR_BACKEND", "chromem"),
		ChromemPath:        get("CHROMEM_PATH", ""),
		QdrantURL:          get("QDRANT_URL", "http://localhost:6333"),
		Collection:         get("VECTOR_COLLECTION", "chunks"),
		APIPort:            get("API_PORT", "9000"),
		LibraryPath:        get("LIBRARY_PATH", ""),
		LogMode:            get("LOG_MODE", "development"),
		LogLevel:           get("LOG_LEVEL", "info"),
	}

	if cfg.LLMProvider != "openai" && cfg.LLMProvider != "ollama" {
		return nil, fmt.Errorf("LLM_PROVIDER must be one of openai, ollama")
	}
	if cfg.VectorBackend != "chromem" && cfg.VectorBackend != "qdrant" {
		return nil, fmt.Errorf("VECTOR_BACKEND must be one of chromem, qdrant")
	}

	// Must match the output size of the embedding model. Changing it requires
	// recreating the vector collection.
	dimStr := get("EMBEDDING_DIMENSION", "")
	if dimStr == "" {
		return nil, fmt.Errorf("EMBEDDING_DIMENSION is required")
	}
	dim, err := strconv.Atoi(dimStr)
	if err != nil {
		return nil, fmt.Errorf("EMBEDDING_DIMENSION must be a valid integer: %w", err)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("EMBEDDING_DIMENSION must be greater than 0")
	}
	cfg.EmbeddingDimension = dim

	ints := []struct {
		key    string
		def    int
		target *int
	}{
		{"RETRY_MAX_ATTEMPTS", 3, &cfg.RetryMaxAttempts},
		{"EMBED_BATCH_SIZE", 16, &cfg.EmbedBatchSize},
		{"EMBED_CONCURRENCY", 4, &cfg.EmbedConcurrency},
		{"CHUNK_TARGET_TOKENS", 350, &cfg.ChunkTargetTokens},
		{"CHUNK_MAX_TOKENS", 512, &cfg.ChunkMaxTokens},
		{"CHUNK_MIN_TOKENS", 20, &cfg.ChunkMinTokens},
		{"CHUNKS_PER_CLUSTER", 25, &cfg.ChunksPerCluster},
		{"GEN_SAMPLE_CHUNKS", 40, &cfg.GenSampleChunks},
		{"GEN_CONTEXT_TOKENS", 6000, &cfg.GenContextTokens},
		{"GEN_ATTEMPTS", 3, &cfg.GenAttempts},
		{"GEN_MAX_TOKENS", 4096, &cfg.GenMaxTokens},
	}
	for _, f := range ints {
		v, err := parsePositiveInt(f.key, get(f.key, strconv.Itoa(f.def)))
		if err != nil {
			return nil, err
		}
		*f.target = v
	}

	if cfg.ChunkTargetTokens > cfg.ChunkMaxTokens {
		return nil, fmt.Errorf("CHUNK_TARGET_TOKENS (%d) must not exceed CHUNK_MAX_TOKENS (%d)", cfg.ChunkTargetTokens, cfg.ChunkMaxTokens)
	}

	durations := []struct {
		key    string
		def    string
		target *time.Duration
	}{
		{"REQUEST_TIMEOUT", "60s", &cfg.RequestTimeout},
		{"RETRY_BASE_DELAY", "500ms", &cfg.RetryBaseDelay},
	}
	for _, f := range durations {
		d, err := time.ParseDuration(get(f.key, f.def))
		if err != nil {
			return nil, fmt.Errorf("%s must be a valid duration: %w", f.key, err)
		}
		*f.target = d
	}

	threshold, err := strconv.ParseFloat(get("STRUCTURE_THRESHOLD", "0.30"), 64)
	if err != nil {
		return nil, fmt.Errorf("STRUCTURE_THRESHOLD must be a number: %w", err)
	}
	if threshold < 0 || threshold >= 1 {
		return nil, fmt.Errorf("STRUCTURE_THRESHOLD must be in [0, 1)")
	}
	cfg.StructureThreshold = threshold

	temperature, err := strconv.ParseFloat(get("GEN_TEMPERATURE", "0.4"), 64)
	if err != nil {
		return nil, fmt.Errorf("GEN_TEMPERATURE must be a number: %w", err)
	}
	cfg.GenTemperature = temperature

	// Create the data directory for the SQLite file (and chromem persistence when set)
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

func loadFile(path string) (fileConfig, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	fc := make(fileConfig, len(values))
	for k, v := range values {
		if v == nil {
			continue
		}
		fc[k] = fmt.Sprint(v)
	}
	return fc, nil
}

func (f fileConfig) get(key, defaultValue string) string {
	if f == nil {
		return defaultValue
	}
	if v, ok := f[strings.ToLower(key)]; ok && v != "" {
		return v
	}
	return defaultValue
}

func parsePositiveInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}
	return n, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
