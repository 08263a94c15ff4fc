package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// setEnv sets an environment variable, ignoring errors (for test setup)
func setEnv(key, value string) {
	_ = os.Setenv(key, value)
}

// unsetEnv unsets an environment variable, ignoring errors (for test cleanup)
func unsetEnv(key string) {
	_ = os.Unsetenv(key)
}

var envVars = []string{
	"CONFIG_FILE", "EMBEDDING_DIMENSION", "LLM_PROVIDER", "LLM_BASE_URL", "LLM_API_KEY", "LLM_MODEL",
	"EMBEDDING_BASE_URL", "EMBEDDING_MODEL_NAME", "DB_PATH", "VECTOR_BACKEND", "CHROMEM_PATH",
	"QDRANT_URL", "VECTOR_COLLECTION", "API_PORT", "LOG_MODE", "LOG_LEVEL",
	"RETRY_MAX_ATTEMPTS", "RETRY_BASE_DELAY", "REQUEST_TIMEOUT", "EMBED_BATCH_SIZE", "EMBED_CONCURRENCY",
	"CHUNK_TARGET_TOKENS", "CHUNK_MAX_TOKENS", "CHUNK_MIN_TOKENS", "STRUCTURE_THRESHOLD", "CHUNKS_PER_CLUSTER",
	"GEN_SAMPLE_CHUNKS", "GEN_CONTEXT_TOKENS", "GEN_ATTEMPTS", "GEN_MAX_TOKENS", "GEN_TEMPERATURE",
}

// isolateEnv clears every variable Load reads and moves into an empty directory so no .env is picked up.
func isolateEnv(t *testing.T) {
	t.Helper()
	original := make(map[string]string)
	for _, key := range envVars {
		original[key] = os.Getenv(key)
		unsetEnv(key)
	}
	originalWd, _ := os.Getwd()
	_ = os.Chdir(t.TempDir())
	t.Cleanup(func() {
		_ = os.Chdir(originalWd)
		for key, value := range original {
			if value != "" {
				setEnv(key, value)
			} else {
				unsetEnv(key)
			}
		}
	})
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setupEnv    func(*testing.T)
		wantErr     bool
		checkConfig func(*Config) bool
	}{
		{
			name: "defaults with required dimension",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_DIMENSION", "768")
			},
			checkConfig: func(cfg *Config) bool {
				return cfg.EmbeddingDimension == 768 &&
					cfg.LLMProvider == "openai" &&
					cfg.VectorBackend == "chromem" &&
					cfg.Collection == "chunks" &&
					cfg.APIPort == "9000" &&
					cfg.StructureThreshold == 0.30 &&
					cfg.ChunksPerCluster == 25 &&
					cfg.ChunkMaxTokens == 512 &&
					cfg.EmbedConcurrency == 4 &&
					cfg.GenAttempts == 3 &&
					cfg.RetryBaseDelay == 500*time.Millisecond &&
					cfg.RequestTimeout == 60*time.Second
			},
		},
		{
			name:     "missing EMBEDDING_DIMENSION",
			setupEnv: func(t *testing.T) {},
			wantErr:  true,
		},
		{
			name: "invalid EMBEDDING_DIMENSION",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_DIMENSION", "invalid")
			},
			wantErr: true,
		},
		{
			name: "zero EMBEDDING_DIMENSION",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_DIMENSION", "0")
			},
			wantErr: true,
		},
		{
			name: "unknown provider",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_DIMENSION", "768")
				setEnv("LLM_PROVIDER", "carrier-pigeon")
			},
			wantErr: true,
		},
		{
			name: "unknown vector backend",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_DIMENSION", "768")
				setEnv("VECTOR_BACKEND", "faiss")
			},
			wantErr: true,
		},
		{
			name: "threshold out of range",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_DIMENSION", "768")
				setEnv("STRUCTURE_THRESHOLD", "1.5")
			},
			wantErr: true,
		},
		{
			name: "target above ceiling",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_DIMENSION", "768")
				setEnv("CHUNK_TARGET_TOKENS", "600")
				setEnv("CHUNK_MAX_TOKENS", "512")
			},
			wantErr: true,
		},
		{
			name: "invalid duration",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_DIMENSION", "768")
				setEnv("RETRY_BASE_DELAY", "soon")
			},
			wantErr: true,
		},
		{
			name: "custom optional values",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_DIMENSION", "1536")
				setEnv("LLM_PROVIDER", "ollama")
				setEnv("LLM_MODEL", "custom-model")
				setEnv("STRUCTURE_THRESHOLD", "0.5")
				setEnv("CHUNKS_PER_CLUSTER", "10")
				setEnv("DB_PATH", filepath.Join(t.TempDir(), "custom", "db.db"))
			},
			checkConfig: func(cfg *Config) bool {
				return cfg.LLMProvider == "ollama" &&
					cfg.LLMModelName == "custom-model" &&
					cfg.StructureThreshold == 0.5 &&
					cfg.ChunksPerCluster == 10 &&
					filepath.Base(cfg.DBPath) == "db.db"
			},
		},
		{
			name: "yaml file supplies values, env overrides",
			setupEnv: func(t *testing.T) {
				path := filepath.Join(t.TempDir(), "studyrag.yaml")
				content := "embedding_dimension: 384\nvector_backend: qdrant\nllm_model: from-yaml\nchunks_per_cluster: 30\n"
				if err := os.WriteFile(path, []byte(content), 0644); err != nil {
					t.Fatalf("failed to write config file: %v", err)
				}
				setEnv("CONFIG_FILE", path)
				setEnv("LLM_MODEL", "from-env")
			},
			checkConfig: func(cfg *Config) bool {
				return cfg.EmbeddingDimension == 384 &&
					cfg.VectorBackend == "qdrant" &&
					cfg.LLMModelName == "from-env" &&
					cfg.ChunksPerCluster == 30
			},
		},
		{
			name: "missing yaml file",
			setupEnv: func(t *testing.T) {
				setEnv("EMBEDDING_DIMENSION", "768")
				setEnv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			tt.setupEnv(t)

			cfg, err := Load()

			if tt.wantErr {
				if err == nil {
					t.Errorf("Load() expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("Load() unexpected error: %v", err)
			}

			if tt.checkConfig != nil && !tt.checkConfig(cfg) {
				t.Errorf("Load() config validation failed: %+v", cfg)
			}
		})
	}
}

func TestLoad_CreatesDataDirectory(t *testing.T) {
	isolateEnv(t)

	dbPath := filepath.Join(t.TempDir(), "test", "db.db")
	setEnv("EMBEDDING_DIMENSION", "768")
	setEnv("DB_PATH", dbPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, err := os.Stat(filepath.Dir(dbPath)); os.IsNotExist(err) {
		t.Errorf("Load() should create data directory: %v", err)
	}
	if cfg.DBPath != dbPath {
		t.Errorf("Load() DBPath = %v, want %v", cfg.DBPath, dbPath)
	}
}

func TestGetEnv(t *testing.T) {
	originalValue := os.Getenv("TEST_ENV_VAR")
	defer func() {
		if originalValue != "" {
			setEnv("TEST_ENV_VAR", originalValue)
		} else {
			unsetEnv("TEST_ENV_VAR")
		}
	}()

	tests := []struct {
		name         string
		setupEnv     func()
		key          string
		defaultValue string
		want         string
	}{
		{
			name:         "env var set",
			setupEnv:     func() { setEnv("TEST_ENV_VAR", "set-value") },
			key:          "TEST_ENV_VAR",
			defaultValue: "default",
			want:         "set-value",
		},
		{
			name:         "env var not set",
			setupEnv:     func() { unsetEnv("TEST_ENV_VAR") },
			key:          "TEST_ENV_VAR",
			defaultValue: "default",
			want:         "default",
		},
		{
			name:         "empty env var uses default",
			setupEnv:     func() { setEnv("TEST_ENV_VAR", "") },
			key:          "TEST_ENV_VAR",
			defaultValue: "default",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setupEnv()
			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv(%q, %q) = %q, want %q", tt.key, tt.defaultValue, got, tt.want)
			}
		})
	}
}
