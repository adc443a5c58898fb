package completion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/semaphore"
)

// Common errors
var (
	ErrEmptyPrompt       = errors.New("prompt cannot be empty")
	ErrProviderFailed    = errors.New("completion provider failed")
	ErrUnsupportedModel  = errors.New("unsupported provider")
	ErrNoProviderEnabled = errors.New("no completion provider configured")
)

// Completer sends a prompt to a language model and returns its raw reply.
// Implementations are constructed once and shared; they must be safe for
// concurrent use.
type Completer interface {
	// Complete returns the model's text response for prompt
	Complete(ctx context.Context, prompt string) (string, error)

	// Provider returns the provider name
	Provider() string

	// Model returns the model name
	Model() string

	// Close releases any resources held by the completer
	Close() error
}

// ValidatePrompt validates a completion request
func ValidatePrompt(prompt string) error {
	if prompt == "" {
		return ErrEmptyPrompt
	}
	return nil
}

// ComputeHash computes SHA-256 hash of text for caching
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// Cache provides in-memory LRU caching of responses by prompt hash
type Cache struct {
	cache *lru.Cache[string, string]
}

// NewCache creates a new response cache with LRU eviction
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 1000
	}
	cache, err := lru.New[string, string](maxLen)
	if err != nil {
		cache, _ = lru.New[string, string](1000)
	}
	return &Cache{
		cache: cache,
	}
}

// Get retrieves a cached response
func (c *Cache) Get(hash string) (string, bool) {
	return c.cache.Get(hash)
}

// Set stores a response in cache with automatic LRU eviction
func (c *Cache) Set(hash, response string) {
	c.cache.Add(hash, response)
}

// Size returns the current cache size
func (c *Cache) Size() int {
	return c.cache.Len()
}

// Clear empties the cache
func (c *Cache) Clear() {
	c.cache.Purge()
}

type bypassKey struct{}

// BypassCache marks ctx so cached completers call the model even when the
// prompt is cached. The fresh reply still replaces the cached one.
func BypassCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, bypassKey{}, true)
}

func cacheBypassed(ctx context.Context) bool {
	v, _ := ctx.Value(bypassKey{}).(bool)
	return v
}

// cachedCompleter serves repeated prompts from a Cache
type cachedCompleter struct {
	inner Completer
	cache *Cache
}

// WithCache wraps c so identical prompts are answered from cache.
// Only successful responses are cached.
func WithCache(c Completer, cache *Cache) Completer {
	if cache == nil {
		return c
	}
	return &cachedCompleter{inner: c, cache: cache}
}

func (c *cachedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ValidatePrompt(prompt); err != nil {
		return "", err
	}

	hash := ComputeHash(prompt)
	if !cacheBypassed(ctx) {
		if resp, ok := c.cache.Get(hash); ok {
			return resp, nil
		}
	}

	resp, err := c.inner.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}

	c.cache.Set(hash, resp)
	return resp, nil
}

func (c *cachedCompleter) Provider() string { return c.inner.Provider() }
func (c *cachedCompleter) Model() string    { return c.inner.Model() }
func (c *cachedCompleter) Close() error     { return c.inner.Close() }

// limitedCompleter bounds the number of in-flight calls
type limitedCompleter struct {
	inner Completer
	sem   *semaphore.Weighted
}

// Limit wraps c so at most n calls run at once. n <= 0 returns c unchanged.
func Limit(c Completer, n int) Completer {
	if n <= 0 {
		return c
	}
	return &limitedCompleter{inner: c, sem: semaphore.NewWeighted(int64(n))}
}

func (l *limitedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("acquire completion slot: %w", err)
	}
	defer l.sem.Release(1)

	return l.inner.Complete(ctx, prompt)
}

func (l *limitedCompleter) Provider() string { return l.inner.Provider() }
func (l *limitedCompleter) Model() string    { return l.inner.Model() }
func (l *limitedCompleter) Close() error     { return l.inner.Close() }

// Func adapts a plain function to the Completer interface
type Func func(ctx context.Context, prompt string) (string, error)

func (f Func) Complete(ctx context.Context, prompt string) (string, error) { return f(ctx, prompt) }
func (f Func) Provider() string                                            { return "func" }
func (f Func) Model() string                                               { return "func" }
func (f Func) Close() error                                                { return nil }
