package search

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/rememex/rememex/internal/chunk"
	"github.com/rememex/rememex/internal/embed"
	"github.com/rememex/rememex/internal/store"
)

// ExpandQuery re-exports the chunker's stopword-stripped query variant
// generator for the pipeline's multi-variant FTS fan-out.
var ExpandQuery = chunk.ExpandQuery

const (
	pipelineVectorLimitMultiplier = 2
	pipelineFTSLimit              = 30
	pipelineRerankMultiplier      = 2
	pipelineRerankThreshold       = 1.0
	pipelineDefaultTopK           = 20
	pipelineRerankSnippetBytes    = 300
	pipelineAnnotationLimit       = 10
)

// AnnotationSearcher searches annotation notes by vector similarity,
// returning path/snippet/score hits. store.AnnotationStore implements it;
// the interface exists so pipeline tests can stub it out.
type AnnotationSearcher interface {
	Search(ctx context.Context, queryVector []float32, limit int) ([]store.AnnotationMatch, error)
}

// PipelineOptions carries per-request parameters for Pipeline.Search.
// SearchLimit and TopK are distinct knobs per spec.md §4.7: SearchLimit
// bounds initial retrieval breadth and the hybrid-merge keep count, TopK
// bounds the final truncated result count (and, via the 2x rerank
// multiplier, how many merged candidates get reranked).
type PipelineOptions struct {
	TopK             int
	SearchLimit      int
	PathPrefix       string
	Extensions       []string
	SnippetByteLimit int
	EnableMMR        bool
	MMRLambda        float64
	Hyde             *HydeConfig
}

// candidate tracks one path's search hit across fusion, reranking, and
// score normalization. Unlike Engine's chunk-granular fusedResult, the
// pipeline fuses at path granularity: only the best chunk per path
// survives dedup, matching the source's "lowest-distance chunk per path"
// / "dedup by path" contract.
type candidate struct {
	path    string
	chunkID string
	content string
	ext     string

	hasVec      bool
	vecDistance float32
	vecRank     int

	hasFTS   bool
	ftsScore float64
	ftsRank  int

	rrfScore    float64
	reranked    bool
	rerankScore float64
	finalScore  float64

	isAnnotation bool
	annScore     float64
	annRank      int

	tokens map[string]struct{}
}

// Pipeline implements the hybrid vector+FTS search algorithm: concurrent
// vector kNN and multi-variant FTS fan-out, Reciprocal Rank Fusion, an
// optional slot-owned cross-encoder rerank pass, three-mode score
// normalization, and optional MMR diversification.
//
// Adapted from Engine's concurrent fan-out/fan-in shape (errgroup) and
// RRFFusion's formula, generalized to dedup and merge at path rather
// than chunk granularity and to apply the source's three-way score
// normalization instead of RRFFusion's single max-normalize.
type Pipeline struct {
	table       *store.Table
	embedder    embed.Embedder
	router      *QueryRouter
	hyde        *HydeGenerator
	reranker    *RerankerHandle
	annotations AnnotationSearcher
	rrfK        float64
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithPipelineReranker installs a reranker behind the pipeline's slot.
// A nil reranker leaves the slot permanently empty (reranking disabled).
func WithPipelineReranker(r Reranker) PipelineOption {
	return func(p *Pipeline) { p.reranker = NewRerankerHandle(r) }
}

// WithPipelineAnnotations enables step 4's annotation-hit merge. Without
// this option the pipeline searches content rows only.
func WithPipelineAnnotations(a AnnotationSearcher) PipelineOption {
	return func(p *Pipeline) { p.annotations = a }
}

// WithPipelineRouter overrides the default QueryRouter, mainly for tests
// that want a fixed cache size or a pre-warmed cache.
func WithPipelineRouter(r *QueryRouter) PipelineOption {
	return func(p *Pipeline) {
		if r != nil {
			p.router = r
		}
	}
}

// NewPipeline builds a Pipeline over table and embedder. Returns an error
// if either dependency is nil.
func NewPipeline(table *store.Table, embedder embed.Embedder, opts ...PipelineOption) (*Pipeline, error) {
	if table == nil {
		return nil, fmt.Errorf("%w: table is required", ErrNilDependency)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrNilDependency)
	}
	p := &Pipeline{
		table:    table,
		embedder: embedder,
		router:   NewQueryRouter(),
		hyde:     NewHydeGenerator(),
		reranker: NewRerankerHandle(nil),
		rrfK:     DefaultRRFConstant,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Search runs the full pipeline for queryText and returns up to opts.TopK
// results ordered by final score.
func (p *Pipeline) Search(ctx context.Context, queryText string, opts PipelineOptions) ([]*SearchResult, error) {
	queryText = strings.TrimSpace(queryText)
	if queryText == "" {
		return nil, nil
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = pipelineDefaultTopK
	}
	searchLimit := opts.SearchLimit
	if searchLimit <= 0 {
		searchLimit = topK
	}

	_, weights := p.router.Route(queryText)

	embedInput := queryText
	if hydeDoc, ok := p.hyde.MaybeGenerate(ctx, opts.Hyde, queryText, weights.UseHyDE); ok {
		embedInput = hydeDoc
	}

	queryVector, err := p.embedder.EmbedQuery(ctx, embedInput)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	variants := ExpandQuery(queryText)
	vecLimit := searchLimit * pipelineVectorLimitMultiplier

	var (
		vecByPath map[string]*candidate
		ftsByPath map[string]*candidate
		ftsOrder  []string
		annByPath map[string]*candidate
		annOrder  []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var searchErr error
		vecByPath, searchErr = p.vectorSearch(gctx, queryVector, vecLimit)
		return searchErr
	})
	g.Go(func() error {
		var searchErr error
		ftsByPath, ftsOrder, searchErr = p.ftsSearchVariants(gctx, variants)
		return searchErr
	})
	g.Go(func() error {
		var searchErr error
		annByPath, annOrder, searchErr = p.annotationSearch(gctx, queryVector)
		return searchErr
	})
	if waitErr := g.Wait(); waitErr != nil {
		if len(vecByPath) == 0 && len(ftsByPath) == 0 {
			return nil, waitErr
		}
		slog.Warn("search_pipeline_partial_failure", slog.String("error", waitErr.Error()))
	}

	usedHybrid := len(ftsByPath) > 0
	merged := p.mergeCandidates(vecByPath, ftsByPath, ftsOrder, usedHybrid, searchLimit)
	merged = p.mergeAnnotations(merged, annByPath, annOrder, usedHybrid)
	merged = applyScopeFilters(merged, opts.PathPrefix, opts.Extensions)
	if len(merged) == 0 {
		return nil, nil
	}

	rerankCount := topK * pipelineRerankMultiplier
	if rerankCount > len(merged) {
		rerankCount = len(merged)
	}
	usedReranker := p.rerank(ctx, queryText, merged[:rerankCount])

	p.normalizeScores(merged, usedHybrid, usedReranker)

	sort.Slice(merged, func(i, j int) bool { return merged[i].finalScore > merged[j].finalScore })

	if usedReranker {
		kept := merged[:0]
		for _, c := range merged {
			if c.finalScore >= pipelineRerankThreshold {
				kept = append(kept, c)
			}
		}
		merged = kept
	}

	if len(merged) > topK {
		merged = merged[:topK]
	}

	if opts.EnableMMR && len(merged) > 1 {
		lambda := opts.MMRLambda
		if lambda <= 0 {
			lambda = 1.0
		}
		merged = mmrSelect(merged, len(merged), lambda)
	}

	return toSearchResults(merged, opts.SnippetByteLimit), nil
}

// vectorSearch runs a single kNN query and dedups results to the
// lowest-distance chunk per path.
func (p *Pipeline) vectorSearch(ctx context.Context, queryVector []float32, limit int) (map[string]*candidate, error) {
	results, err := p.table.VectorSearch(ctx, queryVector, limit, nil)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(results) == 0 {
		return map[string]*candidate{}, nil
	}

	ids := make([]string, len(results))
	distByID := make(map[string]float32, len(results))
	rankByID := make(map[string]int, len(results))
	for i, r := range results {
		ids[i] = r.ID
		distByID[r.ID] = r.Distance
		rankByID[r.ID] = i
	}

	rows, err := p.table.GetRowsByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch vector rows: %w", err)
	}

	byPath := make(map[string]*candidate, len(rows))
	for i := range rows {
		row := rows[i]
		dist := distByID[row.ChunkID]
		if existing, ok := byPath[row.Path]; ok && existing.vecDistance <= dist {
			continue
		}
		byPath[row.Path] = &candidate{
			path:        row.Path,
			chunkID:     row.ChunkID,
			content:     row.Content,
			ext:         row.Ext,
			hasVec:      true,
			vecDistance: dist,
			vecRank:     rankByID[row.ChunkID],
		}
	}
	return byPath, nil
}

// ftsSearchVariants runs one FTS query per query variant, dedups each
// variant's hits by path (keeping the highest-scoring chunk), and unions
// the per-variant path lists preserving first-seen order across variants.
func (p *Pipeline) ftsSearchVariants(ctx context.Context, variants []string) (map[string]*candidate, []string, error) {
	byPath := make(map[string]*candidate)
	var order []string
	var firstErr error

	for _, variant := range variants {
		results, err := p.table.FTSSearch(ctx, variant, pipelineFTSLimit*2, nil)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if len(results) == 0 {
			continue
		}

		ids := make([]string, len(results))
		scoreByID := make(map[string]float64, len(results))
		for i, r := range results {
			ids[i] = r.DocID
			scoreByID[r.DocID] = r.Score
		}

		rows, err := p.table.GetRowsByID(ctx, ids)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		variantRow := make(map[string]store.Row, len(rows))
		variantScore := make(map[string]float64, len(rows))
		for i := range rows {
			row := rows[i]
			score := scoreByID[row.ChunkID]
			if existing, ok := variantScore[row.Path]; ok && existing >= score {
				continue
			}
			variantRow[row.Path] = row
			variantScore[row.Path] = score
		}

		paths := make([]string, 0, len(variantRow))
		for path := range variantRow {
			paths = append(paths, path)
		}
		sort.Slice(paths, func(i, j int) bool { return variantScore[paths[i]] > variantScore[paths[j]] })

		for rank, path := range paths {
			if _, seen := byPath[path]; seen {
				continue
			}
			row := variantRow[path]
			byPath[path] = &candidate{
				path:     path,
				chunkID:  row.ChunkID,
				content:  row.Content,
				ext:      row.Ext,
				hasFTS:   true,
				ftsScore: variantScore[path],
				ftsRank:  rank,
			}
			order = append(order, path)
		}
	}

	if len(byPath) == 0 && firstErr != nil {
		return nil, nil, firstErr
	}
	return byPath, order, nil
}

// annotationSearch runs a vector search over annotation notes, returning
// up to pipelineAnnotationLimit path-deduped hits ordered by score
// descending. Returns (nil, nil, nil) when no annotation searcher is
// configured, matching the "annotations disabled" posture.
func (p *Pipeline) annotationSearch(ctx context.Context, queryVector []float32) (map[string]*candidate, []string, error) {
	if p.annotations == nil {
		return nil, nil, nil
	}
	hits, err := p.annotations.Search(ctx, queryVector, pipelineAnnotationLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("annotation search: %w", err)
	}
	if len(hits) == 0 {
		return map[string]*candidate{}, nil, nil
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	byPath := make(map[string]*candidate, len(hits))
	var order []string
	for _, h := range hits {
		if _, seen := byPath[h.Path]; seen {
			continue
		}
		rank := len(order)
		byPath[h.Path] = &candidate{
			path:         h.Path,
			content:      h.Snippet,
			isAnnotation: true,
			annScore:     float64(h.Score),
			annRank:      rank,
		}
		order = append(order, h.Path)
		if len(order) >= pipelineAnnotationLimit {
			break
		}
	}
	return byPath, order, nil
}

// mergeAnnotations folds annotation hits into the already-merged content
// candidates per spec step 4: when the search used hybrid (vector+FTS)
// fusion, annotation hits contribute an extra RRF term using the same k
// as the content lists; otherwise (vector-only) they are appended after
// the content candidates, ordered by their own score. A path that
// already has a content hit keeps that hit and simply absorbs the
// annotation's RRF contribution; it is never replaced by the annotation
// snippet.
func (p *Pipeline) mergeAnnotations(merged []*candidate, annByPath map[string]*candidate, annOrder []string, usedHybrid bool) []*candidate {
	if len(annByPath) == 0 {
		return merged
	}

	existing := make(map[string]*candidate, len(merged))
	for _, c := range merged {
		existing[c.path] = c
	}

	var appended []*candidate
	for _, path := range annOrder {
		ac := annByPath[path]
		if usedHybrid {
			contribution := 1.0 / (p.rrfK + float64(ac.annRank) + 1.0)
			if c, ok := existing[path]; ok {
				c.rrfScore += contribution
				continue
			}
			ac.rrfScore = contribution
			existing[path] = ac
			appended = append(appended, ac)
			continue
		}
		if _, ok := existing[path]; ok {
			continue
		}
		existing[path] = ac
		appended = append(appended, ac)
	}

	if len(appended) == 0 {
		return merged
	}
	if usedHybrid {
		result := append(merged, appended...)
		sort.Slice(result, func(i, j int) bool { return result[i].rrfScore > result[j].rrfScore })
		return result
	}
	return append(merged, appended...)
}

// mergeCandidates fuses vector and FTS hits by Reciprocal Rank Fusion when
// FTS returned at least one path, keeping the top limit candidates;
// otherwise the vector results pass through unchanged, ordered by rank.
func (p *Pipeline) mergeCandidates(vecByPath, ftsByPath map[string]*candidate, ftsOrder []string, usedHybrid bool, limit int) []*candidate {
	if !usedHybrid {
		result := make([]*candidate, 0, len(vecByPath))
		for _, c := range vecByPath {
			result = append(result, c)
		}
		sort.Slice(result, func(i, j int) bool { return result[i].vecRank < result[j].vecRank })
		return result
	}

	merged := make(map[string]*candidate, len(vecByPath)+len(ftsByPath))
	for path, c := range vecByPath {
		cp := *c
		cp.rrfScore += 1.0 / (p.rrfK + float64(c.vecRank) + 1.0)
		merged[path] = &cp
	}
	for _, path := range ftsOrder {
		fc := ftsByPath[path]
		contribution := 1.0 / (p.rrfK + float64(fc.ftsRank) + 1.0)
		if existing, ok := merged[path]; ok {
			existing.hasFTS = true
			existing.ftsScore = fc.ftsScore
			existing.ftsRank = fc.ftsRank
			existing.rrfScore += contribution
			continue
		}
		cp := *fc
		cp.rrfScore += contribution
		merged[path] = &cp
	}

	result := make([]*candidate, 0, len(merged))
	for _, c := range merged {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.rrfScore != b.rrfScore {
			return a.rrfScore > b.rrfScore
		}
		aBoth, bBoth := a.hasVec && a.hasFTS, b.hasVec && b.hasFTS
		if aBoth != bBoth {
			return aBoth
		}
		return a.chunkID < b.chunkID
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result
}

// applyScopeFilters narrows candidates to those under pathPrefix and/or
// matching one of extensions (case-insensitive, leading dot optional).
func applyScopeFilters(candidates []*candidate, pathPrefix string, extensions []string) []*candidate {
	if pathPrefix == "" && len(extensions) == 0 {
		return candidates
	}

	extSet := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		extSet[strings.ToLower(strings.TrimPrefix(e, "."))] = struct{}{}
	}

	filtered := candidates[:0]
	for _, c := range candidates {
		if pathPrefix != "" && !strings.HasPrefix(c.path, pathPrefix) {
			continue
		}
		if len(extSet) > 0 {
			if _, ok := extSet[strings.ToLower(c.ext)]; !ok {
				continue
			}
		}
		filtered = append(filtered, c)
	}
	return filtered
}

// rerank takes the reranker slot, if available, and scores pool against
// query on a dedicated goroutine so a panicking reranker cannot bring down
// the caller. Returns whether reranking actually replaced scores.
func (p *Pipeline) rerank(ctx context.Context, query string, pool []*candidate) bool {
	if len(pool) == 0 {
		return false
	}

	reranker, ok := p.reranker.take()
	if !ok {
		return false
	}

	docs := make([]string, len(pool))
	for i, c := range pool {
		docs[i] = truncateAtCharBoundary(c.content, pipelineRerankSnippetBytes)
	}

	outcome := runBlockingRerank(ctx, reranker, query, docs)

	if outcome.panicked {
		slog.Warn("reranker panicked, dropping instance")
		return false
	}
	if outcome.err != nil {
		slog.Warn("reranking failed, falling back to unranked results", slog.String("error", outcome.err.Error()))
		p.reranker.giveBack(reranker)
		return false
	}

	for _, rr := range outcome.results {
		if rr.Index < 0 || rr.Index >= len(pool) {
			continue
		}
		pool[rr.Index].reranked = true
		pool[rr.Index].rerankScore = rr.Score
	}
	p.reranker.giveBack(reranker)
	return true
}

type rerankOutcome struct {
	results  []RerankResult
	err      error
	panicked bool
}

// runBlockingRerank runs reranker.Rerank on its own goroutine so a panic
// there is recovered without propagating to the search request.
func runBlockingRerank(ctx context.Context, reranker Reranker, query string, docs []string) rerankOutcome {
	done := make(chan rerankOutcome, 1)
	go func() {
		var out rerankOutcome
		defer func() {
			if r := recover(); r != nil {
				out = rerankOutcome{panicked: true}
			}
			done <- out
		}()
		results, err := reranker.Rerank(ctx, query, docs, 0)
		out = rerankOutcome{results: results, err: err}
	}()
	return <-done
}

// normalizeScores applies the three score-normalization modes: sigmoid for
// reranked candidates, RRF-ratio-to-max for hybrid (non-reranked)
// candidates, and clamped cosine similarity for vector-only candidates.
func (p *Pipeline) normalizeScores(candidates []*candidate, usedHybrid, usedReranker bool) {
	if len(candidates) == 0 {
		return
	}

	if usedReranker {
		for _, c := range candidates {
			if c.reranked {
				c.finalScore = sigmoid(c.rerankScore) * 100
			} else {
				c.finalScore = p.fallbackScore(c, usedHybrid)
			}
		}
		return
	}

	if usedHybrid {
		maxRRF := candidates[0].rrfScore
		for _, c := range candidates {
			if c.rrfScore > maxRRF {
				maxRRF = c.rrfScore
			}
		}
		if maxRRF <= 0 {
			return
		}
		for _, c := range candidates {
			c.finalScore = (c.rrfScore / maxRRF) * 100
		}
		return
	}

	for _, c := range candidates {
		c.finalScore = p.vectorOnlyScore(c)
	}
}

// vectorOnlyScore scores a candidate when neither FTS nor reranking
// applies: a content hit uses cosine similarity from its vector
// distance, an annotation-only hit uses its own normalized score.
func (p *Pipeline) vectorOnlyScore(c *candidate) float64 {
	if !c.hasVec && c.isAnnotation {
		return c.annScore * 100
	}
	return cosineSimilarity(c.vecDistance) * 100
}

// fallbackScore scores a candidate that fell outside the reranked pool:
// in a hybrid search its raw RRF sum times 100 (not divided by the
// maximum), otherwise the vector-only score.
func (p *Pipeline) fallbackScore(c *candidate, usedHybrid bool) float64 {
	if usedHybrid && c.rrfScore > 0 {
		return c.rrfScore * 100
	}
	return p.vectorOnlyScore(c)
}

func cosineSimilarity(distance float32) float64 {
	sim := 1.0 - float64(distance)
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// mmrSelect reorders candidates by Maximal Marginal Relevance: the
// top-scored candidate seeds the selection, then each subsequent pick
// maximizes lambda*relevance - (1-lambda)*similarity-to-already-selected,
// with similarity measured as Jaccard overlap of whitespace-split content
// tokens. k bounds the number returned (here always len(candidates)).
func mmrSelect(candidates []*candidate, k int, lambda float64) []*candidate {
	if len(candidates) == 0 {
		return candidates
	}

	maxScore := candidates[0].finalScore
	for _, c := range candidates {
		if c.finalScore > maxScore {
			maxScore = c.finalScore
		}
		if c.tokens == nil {
			c.tokens = tokenSet(c.content)
		}
	}
	if maxScore == 0 {
		maxScore = 1
	}

	selected := []*candidate{candidates[0]}
	remaining := append([]*candidate{}, candidates[1:]...)

	for len(selected) < k && len(remaining) > 0 {
		bestIdx, bestMMR := -1, math.Inf(-1)
		for i, c := range remaining {
			rel := c.finalScore / maxScore
			maxSim := 0.0
			for _, s := range selected {
				if sim := jaccard(c.tokens, s.tokens); sim > maxSim {
					maxSim = sim
				}
			}
			mmr := lambda*rel - (1-lambda)*maxSim
			if mmr > bestMMR {
				bestMMR, bestIdx = mmr, i
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return selected
}

func tokenSet(content string) map[string]struct{} {
	fields := strings.Fields(content)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// truncateAtCharBoundary truncates s to at most maxBytes bytes, backing
// off to the nearest preceding valid UTF-8 boundary.
func truncateAtCharBoundary(s string, maxBytes int) string {
	if maxBytes <= 0 || len(s) <= maxBytes {
		return s
	}
	b := s[:maxBytes]
	for len(b) > 0 && !utf8.ValidString(b) {
		b = b[:len(b)-1]
	}
	return b
}

// toSearchResults converts the final candidate list into SearchResult,
// applying the caller's snippet byte-limit post-trim.
func toSearchResults(candidates []*candidate, snippetByteLimit int) []*SearchResult {
	results := make([]*SearchResult, 0, len(candidates))
	for _, c := range candidates {
		content := c.content
		if snippetByteLimit > 0 {
			content = truncateAtCharBoundary(content, snippetByteLimit)
		}
		vecScore := 0.0
		if c.hasVec {
			vecScore = cosineSimilarity(c.vecDistance)
		} else if c.isAnnotation {
			vecScore = c.annScore
		}
		results = append(results, &SearchResult{
			Row: &store.Row{
				ChunkID: c.chunkID,
				Path:    c.path,
				Content: content,
				Ext:     c.ext,
			},
			Score:       c.finalScore,
			BM25Score:   c.ftsScore,
			VecScore:    vecScore,
			InBothLists: c.hasVec && c.hasFTS,
		})
	}
	return results
}
