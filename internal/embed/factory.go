package embed

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// ProviderType represents an embedding provider
type ProviderType string

const (
	// ProviderOllama uses Ollama's HTTP API for real embeddings. Default on
	// all platforms.
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses hash-based embeddings: no network, no model
	// download, reduced semantic quality. Used when BM25-only operation is
	// requested or Ollama is explicitly opted out of.
	ProviderStatic ProviderType = "static"
)

// NewEmbedder creates an embedder for the given provider and model, with no
// silent fallback: a provider that's unavailable returns an error rather
// than quietly degrading to a different one. The REMEMEX_EMBEDDER
// environment variable overrides the requested provider.
//
// Query embedding caching is enabled by default (saves 50-200ms per
// repeated query). Set REMEMEX_EMBED_CACHE=false to disable it.
func NewEmbedder(ctx context.Context, provider ProviderType, model string) (Embedder, error) {
	var embedder Embedder
	var err error

	if envProvider := os.Getenv("REMEMEX_EMBEDDER"); envProvider != "" {
		switch strings.ToLower(envProvider) {
		case "ollama":
			embedder, err = newOllama(ctx, model)
		case "static":
			embedder, err = NewStaticEmbedder768(), nil
		}
	}

	if embedder == nil && err == nil {
		switch provider {
		case ProviderOllama:
			embedder, err = newOllama(ctx, model)
		case ProviderStatic:
			embedder, err = NewStaticEmbedder768(), nil
		default:
			embedder, err = newOllama(ctx, model)
		}
	}

	if err != nil {
		return nil, err
	}

	if !isCacheDisabled() {
		embedder = NewCachedEmbedderWithDefaults(embedder)
	}

	return embedder, nil
}

// isCacheDisabled checks if embedding cache is disabled via environment.
func isCacheDisabled() bool {
	v := strings.ToLower(os.Getenv("REMEMEX_EMBED_CACHE"))
	return v == "false" || v == "0" || v == "off" || v == "disabled"
}

// newOllama creates an Ollama embedder, applying environment overrides on
// top of the model argument. Returns a clear error (not a silent fallback)
// if Ollama is unreachable — callers wanting BM25-only mode should pass
// ProviderStatic explicitly instead.
func newOllama(ctx context.Context, model string) (Embedder, error) {
	cfg := DefaultOllamaConfig()
	// Only override the model if it looks like an Ollama tag, not a bare
	// GGUF-style model name that belongs to a different provider.
	if model != "" && isOllamaModelName(model) {
		cfg.Model = model
	}

	if host := os.Getenv("REMEMEX_OLLAMA_HOST"); host != "" {
		cfg.Host = host
	}
	if modelOverride := os.Getenv("REMEMEX_OLLAMA_MODEL"); modelOverride != "" {
		cfg.Model = modelOverride
	}
	if timeoutStr := os.Getenv("REMEMEX_OLLAMA_TIMEOUT"); timeoutStr != "" {
		if timeout, err := time.ParseDuration(timeoutStr); err == nil {
			cfg.Timeout = timeout
		}
	}

	embedder, err := NewOllamaEmbedder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ollama unavailable: %w\n\nTo fix:\n  1. Start Ollama: ollama serve\n  2. Or use the static embedder: set REMEMEX_EMBEDDER=static", err)
	}
	return embedder, nil
}

// ParseProvider converts a string to ProviderType. Unrecognized or empty
// values default to Ollama.
func ParseProvider(s string) ProviderType {
	switch strings.ToLower(s) {
	case "ollama":
		return ProviderOllama
	case "static":
		return ProviderStatic
	default:
		return ProviderOllama
	}
}

// String returns the string representation of ProviderType
func (p ProviderType) String() string {
	return string(p)
}

// isOllamaModelName reports whether model looks like an Ollama model name.
// Ollama models carry a ":" tag (e.g. "qwen3-embedding:0.6b"); GGUF model
// file names carry a version suffix or ".gguf" extension instead.
func isOllamaModelName(model string) bool {
	if strings.Contains(model, ":") {
		return true
	}
	if strings.Contains(model, "-v") && (strings.Contains(model, ".") || strings.HasSuffix(model, "-v1") || strings.HasSuffix(model, "-v2")) {
		return false
	}
	if strings.HasSuffix(strings.ToLower(model), ".gguf") {
		return false
	}
	return false
}

// ValidProviders returns all valid provider names
func ValidProviders() []string {
	return []string{string(ProviderOllama), string(ProviderStatic)}
}

// IsValidProvider checks if a provider name is valid
func IsValidProvider(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range ValidProviders() {
		if lower == p {
			return true
		}
	}
	return false
}

// EmbedderInfo contains information about an embedder
type EmbedderInfo struct {
	Provider   ProviderType
	Model      string
	Dimensions int
	Available  bool
}

// GetInfo returns information about an embedder
func GetInfo(ctx context.Context, embedder Embedder) EmbedderInfo {
	info := EmbedderInfo{
		Model:      embedder.ProviderID(),
		Dimensions: embedder.Dimension(),
		Available:  embedder.Available(ctx),
	}

	inner := embedder
	if cached, ok := embedder.(*CachedEmbedder); ok {
		inner = cached.inner
	}

	switch inner.(type) {
	case *OllamaEmbedder:
		info.Provider = ProviderOllama
	default:
		info.Provider = ProviderStatic
	}

	return info
}

// MustNewEmbedder creates an embedder and panics on failure.
// Use only in tests or initialization code where failure is fatal.
func MustNewEmbedder(ctx context.Context, provider ProviderType, model string) Embedder {
	embedder, err := NewEmbedder(ctx, provider, model)
	if err != nil {
		panic(fmt.Sprintf("failed to create embedder: %v", err))
	}
	return embedder
}
