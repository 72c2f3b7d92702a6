package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the docindex API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Index     IndexConfig     `yaml:"index"`
	Cache     CacheConfig     `yaml:"cache"`
	Convert   ConvertConfig   `yaml:"convert"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APITokens []string `yaml:"api_tokens"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	MaxUploadMB     int `yaml:"max_upload_mb"`
}

// StorageConfig holds on-disk layout settings. All paths are created on
// startup if missing.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"` // root; documents/, vectorstore/, index/ live under it
}

// DocumentsDir is the directory of normalized document JSON files.
func (s StorageConfig) DocumentsDir() string { return filepath.Join(s.DataDir, "documents") }

// VectorstoreDir holds the flat backend's per-document *_embeddings.json files.
func (s StorageConfig) VectorstoreDir() string { return filepath.Join(s.DataDir, "vectorstore") }

// IndexDir holds the local index file and its metadata JSON array.
func (s StorageConfig) IndexDir() string { return filepath.Join(s.DataDir, "index") }

// EmbeddingConfig holds embedding provider settings. Exactly one model and
// dimension are pinned per deployment; mixing vectors from different models
// in one index is invalid.
type EmbeddingConfig struct {
	APIKey        string `yaml:"api_key"`
	BaseURL       string `yaml:"base_url"`
	Model         string `yaml:"model"`
	Dimensions    int    `yaml:"dimensions"`
	BatchSize     int    `yaml:"batch_size"`
	BatchDelayMS  int    `yaml:"batch_delay_ms"`
	MaxInputChars int    `yaml:"max_input_chars"`
}

// ChunkingConfig holds default chunker parameters. Per-upload overrides are
// accepted on the upload endpoint.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	MaxTextChars int `yaml:"max_text_chars"`
}

// IndexConfig selects and orders the vector index backends. Backends is an
// explicit ordered fallback list; the first entry is the primary.
type IndexConfig struct {
	Backends    []string     `yaml:"backends"` // flat, hnsw, qdrant
	Qdrant      QdrantConfig `yaml:"qdrant"`
	HNSWM       int          `yaml:"hnsw_m"`
	HNSWEf      int          `yaml:"hnsw_ef_search"`
	DefaultTopK int          `yaml:"default_top_k"`
}

// QdrantConfig holds managed vector-database connection settings.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Collection string `yaml:"collection"`
}

// CacheConfig holds optional embedding-cache store settings. Empty addrs
// disables the cache.
type CacheConfig struct {
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
}

// ConvertConfig holds AI-assisted conversion settings.
type ConvertConfig struct {
	Model   string `yaml:"model"`   // chat model used to restructure PDF/XLSX text
	Disable bool   `yaml:"disable"` // skip the AI pass, raw extraction only
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxUploadMB <= 0 {
		c.HTTP.MaxUploadMB = 25
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 5
	}
	if c.Embedding.BatchDelayMS <= 0 {
		c.Embedding.BatchDelayMS = 200
	}
	if c.Embedding.MaxInputChars <= 0 {
		c.Embedding.MaxInputChars = 8000
	}
	if c.Chunking.ChunkSize <= 0 {
		c.Chunking.ChunkSize = 1000
	}
	if c.Chunking.ChunkOverlap <= 0 {
		c.Chunking.ChunkOverlap = 200
	}
	if c.Chunking.MaxTextChars <= 0 {
		c.Chunking.MaxTextChars = 100_000
	}
	if len(c.Index.Backends) == 0 {
		c.Index.Backends = []string{"flat"}
	}
	if c.Index.Qdrant.Port <= 0 {
		c.Index.Qdrant.Port = 6334
	}
	if c.Index.Qdrant.Collection == "" {
		c.Index.Qdrant.Collection = "dealer_knowledge"
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEf <= 0 {
		c.Index.HNSWEf = 64
	}
	if c.Index.DefaultTopK <= 0 {
		c.Index.DefaultTopK = 5
	}
	if c.Convert.Model == "" {
		c.Convert.Model = "gpt-4o"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.chunk_overlap (%d) must be smaller than chunk_size (%d)",
			c.Chunking.ChunkOverlap, c.Chunking.ChunkSize)
	}
	known := map[string]struct{}{"flat": {}, "hnsw": {}, "qdrant": {}}
	for _, b := range c.Index.Backends {
		if _, ok := known[b]; !ok {
			return fmt.Errorf("index.backends contains unknown backend %q", b)
		}
	}
	if contains(c.Index.Backends, "qdrant") && c.Index.Qdrant.Host == "" {
		return fmt.Errorf("index.qdrant.host is required when the qdrant backend is enabled")
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
