package config

import (
	"os"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP: HTTPConfig{Port: 8080},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Storage.DataDir != "data" {
		t.Errorf("expected DataDir=data, got %q", cfg.Storage.DataDir)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("unexpected default embedding model %q", cfg.Embedding.Model)
	}
	if cfg.Embedding.Dimensions != 1536 {
		t.Errorf("expected Dimensions=1536, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Embedding.BatchSize != 5 {
		t.Errorf("expected BatchSize=5, got %d", cfg.Embedding.BatchSize)
	}
	if cfg.Chunking.ChunkSize != 1000 {
		t.Errorf("expected ChunkSize=1000, got %d", cfg.Chunking.ChunkSize)
	}
	if cfg.Chunking.ChunkOverlap != 200 {
		t.Errorf("expected ChunkOverlap=200, got %d", cfg.Chunking.ChunkOverlap)
	}
	if len(cfg.Index.Backends) != 1 || cfg.Index.Backends[0] != "flat" {
		t.Errorf("expected default backends [flat], got %v", cfg.Index.Backends)
	}
	if cfg.Index.DefaultTopK != 5 {
		t.Errorf("expected DefaultTopK=5, got %d", cfg.Index.DefaultTopK)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_OverlapExceedsChunkSize(t *testing.T) {
	cfg := validConfig()
	cfg.Chunking.ChunkSize = 100
	cfg.Chunking.ChunkOverlap = 100

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for overlap >= chunk size")
	}
}

func TestValidate_UnknownBackend(t *testing.T) {
	cfg := validConfig()
	cfg.Index.Backends = []string{"flat", "chroma"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestValidate_QdrantRequiresHost(t *testing.T) {
	cfg := validConfig()
	cfg.Index.Backends = []string{"qdrant"}
	cfg.Index.Qdrant.Host = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing qdrant host")
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("DOCINDEX_TEST_KEY", "sk-test")
	os.Unsetenv("DOCINDEX_TEST_MISSING")

	in := []byte("api_key: ${DOCINDEX_TEST_KEY}\nmodel: ${DOCINDEX_TEST_MISSING:-text-embedding-3-small}\n")
	out := string(expandEnvVars(in))

	want := "api_key: sk-test\nmodel: text-embedding-3-small\n"
	if out != want {
		t.Errorf("expandEnvVars:\ngot:  %q\nwant: %q", out, want)
	}
}
