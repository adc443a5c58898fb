// Package completion provides text completion through pluggable language
// model providers.
//
// # Supported Providers
//
//   - Ollama: local server, /api/generate endpoint (default qwen2.5:0.5b)
//   - OpenAI: any OpenAI-compatible chat completions endpoint
//
// # Basic Usage
//
//	c, err := completion.NewFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	reply, err := c.Complete(ctx, "Summarize: ...")
//
// # Provider Selection
//
// NewFromEnv chooses a provider in this order:
//  1. CHUNKWISE_COMPLETION_PROVIDER if set
//  2. openai if OPENAI_API_KEY is set
//  3. ollama at OLLAMA_HOST (default http://localhost:11434)
//
// # Wrappers
//
// WithCache answers repeated prompts from an LRU cache keyed by the SHA-256
// of the prompt; a context marked with BypassCache skips the lookup and
// refreshes the entry. Limit bounds concurrent calls with a weighted semaphore.
// Both return a Completer and can be stacked.
//
// Providers do not retry. A failed call is reported to the caller, which
// decides whether to try again.
package completion
