package search

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Compiled regexes used by classify_query, ported verbatim.
var (
	camelCaseRe = regexp.MustCompile(`[a-z][A-Z]`)
	snakeCaseRe = regexp.MustCompile(`[a-zA-Z]_[a-zA-Z]`)
	codeCharsRe = regexp.MustCompile(`[{}\[\]();:=<>|&!]`)
)

// QueryType is the deterministic classification a query falls into.
type QueryType string

const (
	QueryTypeExactMatch  QueryType = "EXACT_MATCH"
	QueryTypeExactSymbol QueryType = "EXACT_SYMBOL"
	QueryTypeKeyword     QueryType = "KEYWORD"
	QueryTypeConceptual  QueryType = "CONCEPTUAL"
)

// QueryWeights carries the fusion weights and HyDE toggle for a query type.
type QueryWeights struct {
	VectorWeight float64
	FTSWeight    float64
	UseHyDE      bool
}

// classifyQuery classifies a trimmed query into one of the four types.
// Order matters: quoted phrases win first, then symbol-shaped text, then
// word count, with any code-operator character forcing Conceptual.
func classifyQuery(query string) QueryType {
	trimmed := strings.TrimSpace(query)

	if len(trimmed) >= 2 {
		if (strings.HasPrefix(trimmed, `"`) && strings.HasSuffix(trimmed, `"`)) ||
			(strings.HasPrefix(trimmed, "'") && strings.HasSuffix(trimmed, "'")) {
			return QueryTypeExactMatch
		}
	}

	if camelCaseRe.MatchString(trimmed) ||
		snakeCaseRe.MatchString(trimmed) ||
		strings.Contains(trimmed, "::") ||
		(strings.Contains(trimmed, ".") && !strings.Contains(trimmed, " ")) {
		return QueryTypeExactSymbol
	}

	words := strings.Fields(trimmed)
	if len(words) <= 2 && !codeCharsRe.MatchString(trimmed) {
		return QueryTypeKeyword
	}

	return QueryTypeConceptual
}

// getWeights returns the fusion weights for a query type. Vector+FTS
// weights sum to 2.0 for every type; only Conceptual enables HyDE.
func getWeights(qt QueryType) QueryWeights {
	switch qt {
	case QueryTypeExactMatch:
		return QueryWeights{VectorWeight: 0.3, FTSWeight: 1.7, UseHyDE: false}
	case QueryTypeExactSymbol:
		return QueryWeights{VectorWeight: 0.5, FTSWeight: 1.5, UseHyDE: false}
	case QueryTypeKeyword:
		return QueryWeights{VectorWeight: 0.8, FTSWeight: 1.2, UseHyDE: false}
	default:
		return QueryWeights{VectorWeight: 1.3, FTSWeight: 0.7, UseHyDE: true}
	}
}

// DefaultRouterCacheSize is the LRU size for classification results.
const DefaultRouterCacheSize = 10000

// routeResult holds cached routing data.
type routeResult struct {
	queryType QueryType
	weights   QueryWeights
}

// QueryRouter classifies queries deterministically and caches the result.
// Unlike the LLM-tiered classifier this replaces, routing never calls out
// to a model: classification is pure regex/word-count logic, so the cache
// exists purely to skip repeated regex work for hot queries.
type QueryRouter struct {
	cache *lru.Cache[string, routeResult]
}

// NewQueryRouter creates a router with the default cache size.
func NewQueryRouter() *QueryRouter {
	return NewQueryRouterWithCacheSize(DefaultRouterCacheSize)
}

// NewQueryRouterWithCacheSize creates a router with a custom cache size.
func NewQueryRouterWithCacheSize(size int) *QueryRouter {
	if size <= 0 {
		size = DefaultRouterCacheSize
	}
	cache, _ := lru.New[string, routeResult](size)
	return &QueryRouter{cache: cache}
}

// Route classifies query and returns its type and fusion weights.
func (r *QueryRouter) Route(query string) (QueryType, QueryWeights) {
	key := normalizeQuery(query)
	if key == "" {
		return QueryTypeKeyword, getWeights(QueryTypeKeyword)
	}

	if cached, ok := r.cache.Get(key); ok {
		return cached.queryType, cached.weights
	}

	qt := classifyQuery(query)
	weights := getWeights(qt)
	r.cache.Add(key, routeResult{qt, weights})

	slog.Debug("query_router",
		slog.String("type", string(qt)),
		slog.Float64("vector_weight", weights.VectorWeight),
		slog.Float64("fts_weight", weights.FTSWeight),
		slog.Bool("use_hyde", weights.UseHyDE))

	return qt, weights
}

// normalizeQuery normalizes a query for use as a cache key.
func normalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Classify implements the Classifier interface, returning the router's
// four-way QueryType unchanged and translating its vector/FTS weight pair
// into the BM25/Semantic Weights shape used by fusion and search options.
func (r *QueryRouter) Classify(_ context.Context, query string) (QueryType, Weights, error) {
	qt, qw := r.Route(query)
	return qt, weightsFromQueryWeights(qw), nil
}

// weightsFromQueryWeights normalizes a (vector, fts) weight pair that sums
// to 2.0 into the BM25/Semantic pair used by fusion, which sums to 1.0.
func weightsFromQueryWeights(qw QueryWeights) Weights {
	total := qw.VectorWeight + qw.FTSWeight
	if total <= 0 {
		return DefaultWeights()
	}
	return Weights{
		BM25:     qw.FTSWeight / total,
		Semantic: qw.VectorWeight / total,
	}
}

// Ensure QueryRouter implements Classifier.
var _ Classifier = (*QueryRouter)(nil)
