package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// hydeSystemPrompt instructs the chat model to produce a hypothetical
// answer passage rather than a conversational response.
const hydeSystemPrompt = "You are a code search assistant. Given a search query, generate a hypothetical code snippet " +
	"or document passage that would be a perfect search result for this query. " +
	"Write ONLY the code/text, no explanations. Keep it under 200 words. " +
	"Match the language if the query implies one."

// HydeConfig configures the HyDE (Hypothetical Document Embeddings) query
// expander: a chat-completions endpoint is asked to draft a hypothetical
// passage for the query, which is then embedded and searched in place of
// (or alongside) the raw query.
type HydeConfig struct {
	Enabled  bool
	Endpoint string
	Model    string
	APIKey   string
}

type hydeChatRequest struct {
	Model       string            `json:"model"`
	Messages    []hydeChatMessage `json:"messages"`
	MaxTokens   int               `json:"max_tokens"`
	Temperature float64           `json:"temperature"`
}

type hydeChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type hydeChatResponse struct {
	Choices []struct {
		Message hydeChatMessage `json:"message"`
	} `json:"choices"`
}

// HydeGenerator calls a chat-completions endpoint to expand a query into a
// hypothetical document.
type HydeGenerator struct {
	client *http.Client
}

// NewHydeGenerator creates a generator using a client with a conservative
// idle-connection pool, matching the rest of the package's HTTP clients.
func NewHydeGenerator() *HydeGenerator {
	return &HydeGenerator{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

// Generate calls config.Endpoint with query and returns the hypothetical
// passage the model produced. Request timeout is fixed at 10s.
func (g *HydeGenerator) Generate(ctx context.Context, config HydeConfig, query string) (string, error) {
	reqBody := hydeChatRequest{
		Model: config.Model,
		Messages: []hydeChatMessage{
			{Role: "system", Content: hydeSystemPrompt},
			{Role: "user", Content: query},
		},
		MaxTokens:   300,
		Temperature: 0.3,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal HyDE request: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, config.Endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("create HyDE request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+config.APIKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HyDE LLM request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("HyDE LLM returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed hydeChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("HyDE: failed to parse LLM response: %w", err)
	}

	var content string
	if len(parsed.Choices) > 0 {
		content = parsed.Choices[0].Message.Content
	}
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("HyDE: LLM returned empty response")
	}

	slog.Debug("hyde_generated", slog.Int("chars", len(content)), slog.String("query", truncateQuery(query, 50)))
	return content, nil
}

// MaybeGenerate runs Generate when config is non-nil, enabled, and useHyde
// is true, degrading to ("", false) on any error so callers can fall back
// to the raw query without failing the search.
func (g *HydeGenerator) MaybeGenerate(ctx context.Context, config *HydeConfig, query string, useHyde bool) (string, bool) {
	if config == nil || !config.Enabled || !useHyde {
		return "", false
	}

	doc, err := g.Generate(ctx, *config, query)
	if err != nil {
		slog.Warn("hyde_fallback_to_raw_query", slog.String("error", err.Error()))
		return "", false
	}
	return doc, true
}
