package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/dshills/chunkwise/internal/aggregator"
	"github.com/dshills/chunkwise/internal/chunker"
	"github.com/dshills/chunkwise/internal/completion"
	"github.com/dshills/chunkwise/internal/extractor"
	"github.com/dshills/chunkwise/internal/pipeline"
)

// DefaultFile is read from the working directory when no path is given
const DefaultFile = "chunkwise.toml"

// Environment variables that override file settings
const (
	EnvChunkThreshold = "CHUNKWISE_CHUNK_THRESHOLD"
	EnvMaxChunks      = "CHUNKWISE_MAX_CHUNKS"
	EnvMaxRetries     = "CHUNKWISE_MAX_RETRIES"
	EnvWorkers        = "CHUNKWISE_WORKERS"
	EnvMaxInFlight    = "CHUNKWISE_MAX_IN_FLIGHT"
	EnvBaseURL        = "CHUNKWISE_BASE_URL"
	EnvTimeout        = "CHUNKWISE_TIMEOUT"
	EnvDBPath         = "CHUNKWISE_DB_PATH"
	EnvLogLevel       = "CHUNKWISE_LOG_LEVEL"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Chunking    ChunkingConfig    `toml:"chunking" yaml:"chunking"`
	Extraction  ExtractionConfig  `toml:"extraction" yaml:"extraction"`
	Aggregation AggregationConfig `toml:"aggregation" yaml:"aggregation"`
	Pipeline    PipelineConfig    `toml:"pipeline" yaml:"pipeline"`
	Completion  CompletionConfig  `toml:"completion" yaml:"completion"`
	Storage     StorageConfig     `toml:"storage" yaml:"storage"`
	Log         LogConfig         `toml:"log" yaml:"log"`
}

type ChunkingConfig struct {
	ChunkThreshold     int `toml:"chunk_threshold" yaml:"chunk_threshold"`
	BaseChunkSize      int `toml:"base_chunk_size" yaml:"base_chunk_size"`
	LargeFileThreshold int `toml:"large_file_threshold" yaml:"large_file_threshold"`
	LargeChunkSize     int `toml:"large_chunk_size" yaml:"large_chunk_size"`
	MaxChunks          int `toml:"max_chunks" yaml:"max_chunks"`
}

type ExtractionConfig struct {
	MaxRetriesPerChunk int `toml:"max_retries_per_chunk" yaml:"max_retries_per_chunk"`
}

type AggregationConfig struct {
	GroupSize int      `toml:"group_size_for_two_level_aggregation" yaml:"group_size_for_two_level_aggregation"`
	Keywords  []string `toml:"keywords" yaml:"keywords"`
}

type PipelineConfig struct {
	Workers     int `toml:"workers" yaml:"workers"`
	MaxInFlight int `toml:"max_in_flight" yaml:"max_in_flight"`
}

type CompletionConfig struct {
	Provider  string        `toml:"provider" yaml:"provider"`
	Model     string        `toml:"model" yaml:"model"`
	BaseURL   string        `toml:"base_url" yaml:"base_url"`
	APIKey    string        `toml:"api_key" yaml:"api_key"`
	Timeout   time.Duration `toml:"timeout" yaml:"timeout"`
	CacheSize int           `toml:"cache_size" yaml:"cache_size"`
}

type StorageConfig struct {
	Path string `toml:"path" yaml:"path"`
}

type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	home, _ := os.UserHomeDir()
	if home == "" {
		home = os.TempDir()
	}
	return Config{
		Chunking: ChunkingConfig{
			ChunkThreshold:     chunker.DefaultChunkThreshold,
			BaseChunkSize:      chunker.DefaultBaseChunkSize,
			LargeFileThreshold: chunker.DefaultLargeFileThreshold,
			LargeChunkSize:     chunker.DefaultLargeChunkSize,
			MaxChunks:          chunker.DefaultMaxChunks,
		},
		Extraction:  ExtractionConfig{MaxRetriesPerChunk: extractor.DefaultMaxRetries},
		Aggregation: AggregationConfig{GroupSize: aggregator.DefaultGroupSize},
		Pipeline:    PipelineConfig{Workers: 1},
		Completion:  CompletionConfig{Timeout: completion.DefaultTimeout, CacheSize: 1000},
		Storage:     StorageConfig{Path: filepath.Join(home, ".chunkwise", "runs.db")},
		Log:         LogConfig{Level: "info"},
	}
}

// Load reads config: defaults -> file -> env vars (env wins).
// An empty path reads DefaultFile if it exists. The file type is chosen by
// extension: .yaml and .yml are YAML, anything else is TOML.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(path, data, &cfg); err != nil {
			return cfg, err
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	ints := []struct {
		env string
		dst *int
	}{
		{EnvChunkThreshold, &cfg.Chunking.ChunkThreshold},
		{EnvMaxChunks, &cfg.Chunking.MaxChunks},
		{EnvMaxRetries, &cfg.Extraction.MaxRetriesPerChunk},
		{EnvWorkers, &cfg.Pipeline.Workers},
		{EnvMaxInFlight, &cfg.Pipeline.MaxInFlight},
	}
	for _, v := range ints {
		s := os.Getenv(v.env)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, v.env, s)
		}
		*v.dst = n
	}

	if v := os.Getenv(completion.EnvProvider); v != "" {
		cfg.Completion.Provider = v
	}
	if v := os.Getenv(completion.EnvModel); v != "" {
		cfg.Completion.Model = v
	}
	if v := os.Getenv(completion.EnvOpenAIAPIKey); v != "" {
		cfg.Completion.APIKey = v
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		cfg.Completion.BaseURL = v
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalidConfig, EnvTimeout, v, err)
		}
		cfg.Completion.Timeout = d
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}

	// Provider-specific base URL fallbacks
	if cfg.Completion.BaseURL == "" {
		switch cfg.Completion.Provider {
		case completion.ProviderOllama, "":
			cfg.Completion.BaseURL = os.Getenv(completion.EnvOllamaHost)
		case completion.ProviderOpenAI:
			cfg.Completion.BaseURL = os.Getenv(completion.EnvOpenAIBaseURL)
		}
	}

	return nil
}

// Validate rejects settings the pipeline cannot run with
func (c Config) Validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"chunking.chunk_threshold", c.Chunking.ChunkThreshold},
		{"chunking.base_chunk_size", c.Chunking.BaseChunkSize},
		{"chunking.large_file_threshold", c.Chunking.LargeFileThreshold},
		{"chunking.large_chunk_size", c.Chunking.LargeChunkSize},
		{"chunking.max_chunks", c.Chunking.MaxChunks},
		{"extraction.max_retries_per_chunk", c.Extraction.MaxRetriesPerChunk},
		{"aggregation.group_size_for_two_level_aggregation", c.Aggregation.GroupSize},
		{"pipeline.workers", c.Pipeline.Workers},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, p.name, p.value)
		}
	}

	if c.Pipeline.MaxInFlight < 0 {
		return fmt.Errorf("%w: pipeline.max_in_flight cannot be negative", ErrInvalidConfig)
	}
	if c.Completion.Timeout < 0 {
		return fmt.Errorf("%w: completion.timeout cannot be negative", ErrInvalidConfig)
	}
	if c.Completion.CacheSize < 0 {
		return fmt.Errorf("%w: completion.cache_size cannot be negative", ErrInvalidConfig)
	}

	switch strings.ToLower(c.Completion.Provider) {
	case "", completion.ProviderOllama, completion.ProviderOpenAI:
	default:
		return fmt.Errorf("%w: unknown completion provider %q", ErrInvalidConfig, c.Completion.Provider)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}

	return nil
}

// ParseLevel maps a level name to a slog level
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrInvalidConfig, s)
	}
	return level, nil
}

// PlannerConfig returns the chunk planner settings
func (c Config) PlannerConfig() chunker.PlannerConfig {
	return chunker.PlannerConfig{
		ChunkThreshold:     c.Chunking.ChunkThreshold,
		BaseChunkSize:      c.Chunking.BaseChunkSize,
		LargeFileThreshold: c.Chunking.LargeFileThreshold,
		LargeChunkSize:     c.Chunking.LargeChunkSize,
		MaxChunks:          c.Chunking.MaxChunks,
	}
}

// CompletionConfig returns the completer factory settings
func (c Config) CompletionConfig() completion.Config {
	return completion.Config{
		Provider:  c.Completion.Provider,
		Model:     c.Completion.Model,
		BaseURL:   c.Completion.BaseURL,
		APIKey:    c.Completion.APIKey,
		Timeout:   c.Completion.Timeout,
		CacheSize: c.Completion.CacheSize,
	}
}

// PipelineConfig assembles the analyzer settings
func (c Config) PipelineConfig() pipeline.Config {
	extraction := extractor.DefaultConfig()
	extraction.MaxRetries = c.Extraction.MaxRetriesPerChunk

	aggregation := aggregator.Config{GroupSize: c.Aggregation.GroupSize}
	if len(c.Aggregation.Keywords) > 0 {
		aggregation.Classifier = aggregator.NewKeywordClassifier(c.Aggregation.Keywords...)
	}

	return pipeline.Config{
		Planner:     c.PlannerConfig(),
		Extraction:  extraction,
		Aggregation: aggregation,
		Workers:     c.Pipeline.Workers,
		MaxInFlight: c.Pipeline.MaxInFlight,
	}
}
