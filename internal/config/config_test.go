package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 1000, cfg.Chunking.ChunkThreshold)
	assert.Equal(t, 500, cfg.Chunking.BaseChunkSize)
	assert.Equal(t, 50_000, cfg.Chunking.LargeFileThreshold)
	assert.Equal(t, 1000, cfg.Chunking.LargeChunkSize)
	assert.Equal(t, 100, cfg.Chunking.MaxChunks)
	assert.Equal(t, 2, cfg.Extraction.MaxRetriesPerChunk)
	assert.Equal(t, 10, cfg.Aggregation.GroupSize)
	assert.Equal(t, 1, cfg.Pipeline.Workers)
	assert.Equal(t, 60*time.Second, cfg.Completion.Timeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromTOML(t *testing.T) {
	path := writeConfig(t, "test.toml", `
[chunking]
chunk_threshold = 200
max_chunks = 20

[aggregation]
keywords = ["tally"]

[completion]
provider = "openai"
timeout = "15s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 200, cfg.Chunking.ChunkThreshold)
	assert.Equal(t, 20, cfg.Chunking.MaxChunks)
	assert.Equal(t, []string{"tally"}, cfg.Aggregation.Keywords)
	assert.Equal(t, "openai", cfg.Completion.Provider)
	assert.Equal(t, 15*time.Second, cfg.Completion.Timeout)
	// Defaults preserved
	assert.Equal(t, 500, cfg.Chunking.BaseChunkSize)
}

func TestLoadFromYAML(t *testing.T) {
	path := writeConfig(t, "test.yaml", `
pipeline:
  workers: 4
  max_in_flight: 2
completion:
  model: llama3
  timeout: 90s
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, 2, cfg.Pipeline.MaxInFlight)
	assert.Equal(t, "llama3", cfg.Completion.Model)
	assert.Equal(t, 90*time.Second, cfg.Completion.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestEnvOverride(t *testing.T) {
	path := writeConfig(t, "test.toml", `
[pipeline]
workers = 2
`)
	t.Setenv(EnvWorkers, "6")
	t.Setenv(EnvTimeout, "5s")
	t.Setenv(EnvDBPath, "/tmp/x.db")
	t.Setenv("CHUNKWISE_COMPLETION_PROVIDER", "ollama")
	t.Setenv("OLLAMA_HOST", "gpu-box:11434")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Pipeline.Workers)
	assert.Equal(t, 5*time.Second, cfg.Completion.Timeout)
	assert.Equal(t, "/tmp/x.db", cfg.Storage.Path)
	assert.Equal(t, "gpu-box:11434", cfg.Completion.BaseURL)
}

func TestEnvOverride_Invalid(t *testing.T) {
	t.Setenv(EnvWorkers, "many")
	_, err := Load(writeConfig(t, "c.toml", ""))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("/nonexistent/chunkwise.toml")
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "bad.toml", "[chunking\nmax_chunks ="))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "zero.toml", "[chunking]\nbase_chunk_size = 0\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoad_NoDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Chunking, cfg.Chunking)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero workers", func(c *Config) { c.Pipeline.Workers = 0 }},
		{"negative in flight", func(c *Config) { c.Pipeline.MaxInFlight = -1 }},
		{"zero retries", func(c *Config) { c.Extraction.MaxRetriesPerChunk = 0 }},
		{"zero group size", func(c *Config) { c.Aggregation.GroupSize = 0 }},
		{"unknown provider", func(c *Config) { c.Completion.Provider = "bard" }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	level, err = ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestPipelineConfig(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.Workers = 3
	cfg.Extraction.MaxRetriesPerChunk = 4
	cfg.Aggregation.Keywords = []string{"tally"}

	pc := cfg.PipelineConfig()
	assert.Equal(t, 3, pc.Workers)
	assert.Equal(t, 4, pc.Extraction.MaxRetries)
	assert.Equal(t, 100, pc.Planner.MaxChunks)
	require.NotNil(t, pc.Aggregation.Classifier)
	assert.True(t, pc.Aggregation.Classifier.IsSimple("Give me a tally"))
	assert.False(t, pc.Aggregation.Classifier.IsSimple("How many rows?"))
}
