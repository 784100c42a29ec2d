package core

import (
	"context"

	"github.com/rememex/rememex/internal/search"
	"github.com/rememex/rememex/internal/store"
)

// SearchParams carries CoreAPI's search(...) arguments.
type SearchParams struct {
	Query       string
	TopK        int
	ContextBytes int
	PathPrefix  string
	Extensions  []string
	MinScore    float64
}

// Search runs the full search pipeline against the active container.
// Returns (nil, nil) rather than an error when the container has no
// table rows yet, per the NotIndexed "friendly message, not an error"
// contract -- callers should check len(results)==0 plus IndexStatus
// rather than branch on an error kind here.
func (c *Core) Search(ctx context.Context, params SearchParams) ([]*search.SearchResult, error) {
	c.mu.Lock()
	cs, err := c.containerFor(c.active)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if cs.table.VectorCount() == 0 {
		return nil, nil
	}

	results, err := cs.pipeline.Search(ctx, params.Query, search.PipelineOptions{
		TopK:             params.TopK,
		PathPrefix:       params.PathPrefix,
		Extensions:       params.Extensions,
		SnippetByteLimit: params.ContextBytes,
		EnableMMR:        true,
		MMRLambda:        0.5,
	})
	if err != nil {
		return nil, newError(KindProviderUnavailable, "search: %v", err)
	}

	if params.MinScore > 0 {
		filtered := results[:0]
		for _, r := range results {
			if r.Score >= params.MinScore {
				filtered = append(filtered, r)
			}
		}
		results = filtered
	}

	return results, nil
}

// Related finds files semantically similar to path within container,
// by averaging the embeddings of path's own chunks and running a cosine
// kNN search with that average vector, deduped by path and excluding
// path itself.
func (c *Core) Related(ctx context.Context, path, containerName string, topK int) ([]*search.SearchResult, error) {
	c.mu.Lock()
	resolved, err := c.requireContainerName(containerName)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	cs, err := c.containerFor(resolved)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	rows, err := rowsForPath(ctx, cs.table, path)
	if err != nil {
		return nil, newError(KindProviderUnavailable, "load chunks for %q: %v", path, err)
	}
	if len(rows) == 0 {
		return nil, newError(KindInvalidInput, "path %q is not indexed", path)
	}

	texts := make([]string, len(rows))
	for i, r := range rows {
		texts[i] = r.Content
	}
	c.embedderMu.Lock()
	vectors, err := c.embedder.EmbedPassages(ctx, texts)
	c.embedderMu.Unlock()
	if err != nil {
		return nil, newError(KindProviderUnavailable, "embed chunks for %q: %v", path, err)
	}

	avg := averageVectors(vectors)

	if topK <= 0 {
		topK = pipelineDefaultRelatedTopK
	}
	hits, err := cs.table.VectorSearch(ctx, avg, topK+1, nil)
	if err != nil {
		return nil, newError(KindProviderUnavailable, "related search: %v", err)
	}

	ids := make([]string, len(hits))
	distByID := make(map[string]float32, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
		distByID[h.ID] = h.Distance
	}
	hitRows, err := cs.table.GetRowsByID(ctx, ids)
	if err != nil {
		return nil, newError(KindProviderUnavailable, "load related rows: %v", err)
	}

	bestByPath := make(map[string]store.Row)
	bestDist := make(map[string]float32)
	for _, row := range hitRows {
		if row.Path == path {
			continue
		}
		dist := distByID[row.ChunkID]
		if prev, ok := bestDist[row.Path]; ok && prev <= dist {
			continue
		}
		bestByPath[row.Path] = row
		bestDist[row.Path] = dist
	}

	results := make([]*search.SearchResult, 0, len(bestByPath))
	for p, row := range bestByPath {
		r := row
		results = append(results, &search.SearchResult{
			Row:      &r,
			Score:    cosineSimilarityScore(bestDist[p]),
			VecScore: cosineSimilarityScore(bestDist[p]),
		})
	}
	sortResultsByScoreDesc(results)
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

const pipelineDefaultRelatedTopK = 10

func cosineSimilarityScore(distance float32) float64 {
	sim := 1.0 - float64(distance)
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

func sortResultsByScoreDesc(results []*search.SearchResult) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j-1].Score < results[j].Score; j-- {
			results[j-1], results[j] = results[j], results[j-1]
		}
	}
}

// rowsForPath fetches every chunk row indexed for path. The store
// exposes lookup by chunk ID and prefix-matched filters, but no exact
// by-path query, so this scans every chunk ID and keeps the ones whose
// row matches path exactly.
func rowsForPath(ctx context.Context, table *store.Table, path string) ([]store.Row, error) {
	ids, err := table.AllChunkIDs(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := table.GetRowsByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, r := range rows {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out, nil
}

func averageVectors(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	avg := make([]float32, dim)
	for _, v := range vectors {
		for i := 0; i < dim && i < len(v); i++ {
			avg[i] += v[i]
		}
	}
	n := float32(len(vectors))
	for i := range avg {
		avg[i] /= n
	}
	return avg
}
