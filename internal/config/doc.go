// Package config loads chunkwise settings.
//
// Values are layered: built-in defaults, then an optional TOML or YAML file,
// then CHUNKWISE_* environment variables. A minimal chunkwise.toml:
//
//	[chunking]
//	chunk_threshold = 1000
//	max_chunks = 100
//
//	[pipeline]
//	workers = 4
//
//	[completion]
//	provider = "ollama"
//	model = "qwen2.5:0.5b"
//	timeout = "60s"
package config
