package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rememex/rememex/internal/store"
)

const pipelineTestDim = 4

// pipelineFakeEmbedder returns pre-registered vectors for exact-match
// passage/query text, falling back to a zero vector for anything unknown.
type pipelineFakeEmbedder struct {
	vectors map[string][]float32
}

func newPipelineFakeEmbedder() *pipelineFakeEmbedder {
	return &pipelineFakeEmbedder{vectors: make(map[string][]float32)}
}

func (e *pipelineFakeEmbedder) set(text string, vec []float32) {
	e.vectors[text] = vec
}

func (e *pipelineFakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return make([]float32, pipelineTestDim), nil
}

func (e *pipelineFakeEmbedder) EmbedPassages(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := e.vectors[t]
		if !ok {
			v = make([]float32, pipelineTestDim)
		}
		out[i] = v
	}
	return out, nil
}

func (e *pipelineFakeEmbedder) Dimension() int                  { return pipelineTestDim }
func (e *pipelineFakeEmbedder) ProviderID() string              { return "pipeline-fake" }
func (e *pipelineFakeEmbedder) Available(context.Context) bool  { return true }
func (e *pipelineFakeEmbedder) Close() error                    { return nil }

func unitVector(hot int) []float32 {
	v := make([]float32, pipelineTestDim)
	v[hot%pipelineTestDim] = 1
	return v
}

func newPipelineTable(t *testing.T) *store.Table {
	t.Helper()
	tbl, err := store.OpenTable(t.TempDir(), "pipeline", pipelineTestDim)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tbl.Close() })
	return tbl
}

func TestNewPipeline_RequiresDependencies(t *testing.T) {
	tbl := newPipelineTable(t)
	embedder := newPipelineFakeEmbedder()

	_, err := NewPipeline(nil, embedder)
	assert.Error(t, err)

	_, err = NewPipeline(tbl, nil)
	assert.Error(t, err)

	p, err := NewPipeline(tbl, embedder)
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestPipeline_Search_EmptyQuery(t *testing.T) {
	tbl := newPipelineTable(t)
	p, err := NewPipeline(tbl, newPipelineFakeEmbedder())
	require.NoError(t, err)

	results, err := p.Search(context.Background(), "   ", PipelineOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestPipeline_Search_VectorOnlyWhenFTSEmpty(t *testing.T) {
	tbl := newPipelineTable(t)
	embedder := newPipelineFakeEmbedder()

	const content = "zzzzzzzzzzzzzzzzzzzzzzzz"
	embedder.set(content, unitVector(0))
	embedder.set("xyzzy plugh", unitVector(0))

	row := store.Row{ChunkID: store.RowID("a.go", content), Path: "a.go", Content: content, MTime: time.Now(), Ext: "go"}
	require.NoError(t, tbl.Insert(context.Background(), []store.Row{row}, [][]float32{unitVector(0)}))

	p, err := NewPipeline(tbl, embedder)
	require.NoError(t, err)

	results, err := p.Search(context.Background(), "xyzzy plugh", PipelineOptions{TopK: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.go", results[0].Row.Path)
	assert.False(t, results[0].InBothLists)
	assert.InDelta(t, 100.0, results[0].Score, 0.001, "identical vectors should score at the top of the clamped range")
}

func TestPipeline_Search_HybridMergesBothLists(t *testing.T) {
	tbl := newPipelineTable(t)
	embedder := newPipelineFakeEmbedder()

	const content = "func FindWidget searches for a widget by name"
	embedder.set(content, unitVector(0))
	embedder.set("FindWidget", unitVector(0))

	row := store.Row{ChunkID: store.RowID("widget.go", content), Path: "widget.go", Content: content, MTime: time.Now(), Ext: "go"}
	require.NoError(t, tbl.Insert(context.Background(), []store.Row{row}, [][]float32{unitVector(0)}))

	p, err := NewPipeline(tbl, embedder)
	require.NoError(t, err)

	results, err := p.Search(context.Background(), "FindWidget", PipelineOptions{TopK: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].InBothLists, "row present in both vector and FTS results should be marked")
	assert.Equal(t, 100.0, results[0].Score, "sole hybrid candidate normalizes to the max RRF ratio")
}

type fixedAnnotationSearcher struct {
	hits []store.AnnotationMatch
}

func (a *fixedAnnotationSearcher) Search(_ context.Context, _ []float32, limit int) ([]store.AnnotationMatch, error) {
	if limit > 0 && limit < len(a.hits) {
		return a.hits[:limit], nil
	}
	return a.hits, nil
}

func TestPipeline_Search_AppendsAnnotationHitVectorOnly(t *testing.T) {
	tbl := newPipelineTable(t)
	embedder := newPipelineFakeEmbedder()

	const content = "zzzzzzzzzzzzzzzzzzzzzzzz"
	embedder.set(content, unitVector(0))
	embedder.set("xyzzy plugh", unitVector(0))

	row := store.Row{ChunkID: store.RowID("a.go", content), Path: "a.go", Content: content, MTime: time.Now(), Ext: "go"}
	require.NoError(t, tbl.Insert(context.Background(), []store.Row{row}, [][]float32{unitVector(0)}))

	annotations := &fixedAnnotationSearcher{hits: []store.AnnotationMatch{
		{Path: "notes.md", Snippet: "[annotation] remember this", Score: 0.8},
	}}
	p, err := NewPipeline(tbl, embedder, WithPipelineAnnotations(annotations))
	require.NoError(t, err)

	results, err := p.Search(context.Background(), "xyzzy plugh", PipelineOptions{TopK: 5})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a.go", results[0].Row.Path, "content hit outranks the annotation appended after it")
	assert.Equal(t, "notes.md", results[1].Row.Path)
	assert.Contains(t, results[1].Row.Content, "[annotation]")
}

func TestPipeline_Search_AnnotationContributesRRFWhenHybrid(t *testing.T) {
	tbl := newPipelineTable(t)
	embedder := newPipelineFakeEmbedder()

	const content = "func FindWidget searches for a widget by name"
	embedder.set(content, unitVector(0))
	embedder.set("FindWidget", unitVector(0))

	row := store.Row{ChunkID: store.RowID("widget.go", content), Path: "widget.go", Content: content, MTime: time.Now(), Ext: "go"}
	require.NoError(t, tbl.Insert(context.Background(), []store.Row{row}, [][]float32{unitVector(0)}))

	annotations := &fixedAnnotationSearcher{hits: []store.AnnotationMatch{
		{Path: "notes.md", Snippet: "[annotation] about widgets", Score: 0.9},
	}}
	p, err := NewPipeline(tbl, embedder, WithPipelineAnnotations(annotations))
	require.NoError(t, err)

	results, err := p.Search(context.Background(), "FindWidget", PipelineOptions{TopK: 5})
	require.NoError(t, err)
	require.Len(t, results, 2)

	var sawAnnotation bool
	for _, r := range results {
		if r.Row.Path == "notes.md" {
			sawAnnotation = true
			assert.Greater(t, r.Score, 0.0, "annotation hit should carry a nonzero RRF-derived score when hybrid")
		}
	}
	assert.True(t, sawAnnotation)
}

func TestPipeline_Search_RespectsPathPrefixFilter(t *testing.T) {
	tbl := newPipelineTable(t)
	embedder := newPipelineFakeEmbedder()

	rows := []store.Row{
		{ChunkID: store.RowID("internal/a.go", "widget lookup helper"), Path: "internal/a.go", Content: "widget lookup helper", MTime: time.Now(), Ext: "go"},
		{ChunkID: store.RowID("cmd/b.go", "widget lookup wrapper"), Path: "cmd/b.go", Content: "widget lookup wrapper", MTime: time.Now(), Ext: "go"},
	}
	vectors := [][]float32{unitVector(0), unitVector(1)}
	for i, r := range rows {
		embedder.set(r.Content, vectors[i])
	}
	embedder.set("widget", unitVector(0))
	require.NoError(t, tbl.Insert(context.Background(), rows, vectors))

	p, err := NewPipeline(tbl, embedder)
	require.NoError(t, err)

	results, err := p.Search(context.Background(), "widget", PipelineOptions{TopK: 5, PathPrefix: "internal/"})
	require.NoError(t, err)
	for _, r := range results {
		assert.Contains(t, r.Row.Path, "internal/")
	}
}

func TestPipeline_Search_RespectsExtensionFilter(t *testing.T) {
	tbl := newPipelineTable(t)
	embedder := newPipelineFakeEmbedder()

	rows := []store.Row{
		{ChunkID: store.RowID("a.go", "widget lookup code"), Path: "a.go", Content: "widget lookup code", MTime: time.Now(), Ext: "go"},
		{ChunkID: store.RowID("a.md", "widget lookup docs"), Path: "a.md", Content: "widget lookup docs", MTime: time.Now(), Ext: "md"},
	}
	vectors := [][]float32{unitVector(0), unitVector(1)}
	for i, r := range rows {
		embedder.set(r.Content, vectors[i])
	}
	embedder.set("widget", unitVector(0))
	require.NoError(t, tbl.Insert(context.Background(), rows, vectors))

	p, err := NewPipeline(tbl, embedder)
	require.NoError(t, err)

	results, err := p.Search(context.Background(), "widget", PipelineOptions{TopK: 5, Extensions: []string{"md"}})
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, "md", r.Row.Ext)
	}
}

// fixedReranker always returns the input order with deterministic
// descending scores, used to exercise the reranker slot without a real
// cross-encoder backend.
type fixedReranker struct {
	available bool
	err       error
	panicOn   bool
}

func (r *fixedReranker) Rerank(_ context.Context, _ string, documents []string, _ int) ([]RerankResult, error) {
	if r.panicOn {
		panic("reranker blew up")
	}
	if r.err != nil {
		return nil, r.err
	}
	results := make([]RerankResult, len(documents))
	for i, doc := range documents {
		results[i] = RerankResult{Index: i, Score: 5.0 - float64(i), Document: doc}
	}
	return results, nil
}

func (r *fixedReranker) Available(context.Context) bool { return r.available }
func (r *fixedReranker) Close() error                   { return nil }

func TestPipeline_Search_UsesRerankerWhenAvailable(t *testing.T) {
	tbl := newPipelineTable(t)
	embedder := newPipelineFakeEmbedder()

	const content = "func FindWidget searches for a widget by name"
	embedder.set(content, unitVector(0))
	embedder.set("FindWidget", unitVector(0))

	row := store.Row{ChunkID: store.RowID("widget.go", content), Path: "widget.go", Content: content, MTime: time.Now(), Ext: "go"}
	require.NoError(t, tbl.Insert(context.Background(), []store.Row{row}, [][]float32{unitVector(0)}))

	reranker := &fixedReranker{available: true}
	p, err := NewPipeline(tbl, embedder, WithPipelineReranker(reranker))
	require.NoError(t, err)

	results, err := p.Search(context.Background(), "FindWidget", PipelineOptions{TopK: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, sigmoid(5.0)*100, results[0].Score, 0.01)
}

func TestPipeline_Search_FallsBackWhenRerankerErrors(t *testing.T) {
	tbl := newPipelineTable(t)
	embedder := newPipelineFakeEmbedder()

	const content = "func FindWidget searches for a widget by name"
	embedder.set(content, unitVector(0))
	embedder.set("FindWidget", unitVector(0))

	row := store.Row{ChunkID: store.RowID("widget.go", content), Path: "widget.go", Content: content, MTime: time.Now(), Ext: "go"}
	require.NoError(t, tbl.Insert(context.Background(), []store.Row{row}, [][]float32{unitVector(0)}))

	reranker := &fixedReranker{err: errors.New("boom")}
	p, err := NewPipeline(tbl, embedder, WithPipelineReranker(reranker))
	require.NoError(t, err)

	results, err := p.Search(context.Background(), "FindWidget", PipelineOptions{TopK: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 100.0, results[0].Score, "rerank failure should fall back to the hybrid-normalized score")
}

func TestRerankerHandle_TakeAndGiveBack(t *testing.T) {
	reranker := &fixedReranker{available: true}
	h := NewRerankerHandle(reranker)

	got, ok := h.take()
	require.True(t, ok)
	assert.Same(t, reranker, got)

	_, ok = h.take()
	assert.False(t, ok, "slot should be empty while held")

	h.giveBack(got)
	_, ok = h.take()
	assert.True(t, ok, "slot should be available again after giveBack")
}

func TestRerankerHandle_NilRerankerAlwaysUnavailable(t *testing.T) {
	h := NewRerankerHandle(nil)
	_, ok := h.take()
	assert.False(t, ok)
}

func TestRunBlockingRerank_RecoversFromPanic(t *testing.T) {
	reranker := &fixedReranker{panicOn: true}
	outcome := runBlockingRerank(context.Background(), reranker, "q", []string{"doc"})
	assert.True(t, outcome.panicked)
}

func TestSigmoid(t *testing.T) {
	assert.InDelta(t, 0.5, sigmoid(0), 0.0001)
	assert.Greater(t, sigmoid(10), 0.999)
	assert.Less(t, sigmoid(-10), 0.001)
}

func TestCosineSimilarity_Clamps(t *testing.T) {
	assert.Equal(t, 1.0, cosineSimilarity(-0.5))
	assert.Equal(t, 0.0, cosineSimilarity(1.5))
	assert.InDelta(t, 0.7, cosineSimilarity(0.3), 0.0001)
}

func TestTruncateAtCharBoundary(t *testing.T) {
	assert.Equal(t, "hello", truncateAtCharBoundary("hello", 10))

	s := "héllo world" // é is 2 bytes in UTF-8
	truncated := truncateAtCharBoundary(s, 2)
	assert.True(t, len(truncated) <= 2)
	assert.Contains(t, s, truncated)
}

func TestJaccard(t *testing.T) {
	a := tokenSet("the quick brown fox")
	b := tokenSet("the quick brown fox")
	assert.Equal(t, 1.0, jaccard(a, b))

	c := tokenSet("completely different words entirely")
	assert.Equal(t, 0.0, jaccard(a, c))

	assert.Equal(t, 0.0, jaccard(map[string]struct{}{}, b))
}

func TestMMRSelect_SeedsWithTopScoredItem(t *testing.T) {
	candidates := []*candidate{
		{path: "a", finalScore: 100, content: "alpha beta gamma"},
		{path: "b", finalScore: 90, content: "alpha beta gamma"}, // near-duplicate of a
		{path: "c", finalScore: 80, content: "totally different terms here"},
	}

	selected := mmrSelect(candidates, 3, 0.5)
	require.Len(t, selected, 3)
	assert.Equal(t, "a", selected[0].path, "seed is always the top-scored candidate")
}

func TestMMRSelect_LambdaOnePreservesRelevanceOrder(t *testing.T) {
	candidates := []*candidate{
		{path: "a", finalScore: 100, content: "alpha beta gamma"},
		{path: "b", finalScore: 90, content: "alpha beta gamma"},
		{path: "c", finalScore: 80, content: "totally different terms here"},
	}

	selected := mmrSelect(candidates, 3, 1.0)
	require.Len(t, selected, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{selected[0].path, selected[1].path, selected[2].path})
}

func TestMMRSelect_LambdaZeroPromotesDiversity(t *testing.T) {
	candidates := []*candidate{
		{path: "a", finalScore: 100, content: "alpha beta gamma"},
		{path: "b", finalScore: 90, content: "alpha beta gamma"}, // duplicate of a, should be deprioritized
		{path: "c", finalScore: 80, content: "totally different terms here"},
	}

	selected := mmrSelect(candidates, 3, 0.0)
	require.Len(t, selected, 3)
	assert.Equal(t, "a", selected[0].path)
	assert.Equal(t, "c", selected[1].path, "diverse candidate should be picked before the near-duplicate")
}

func TestApplyScopeFilters_NoFiltersReturnsInput(t *testing.T) {
	candidates := []*candidate{{path: "a.go"}}
	assert.Equal(t, candidates, applyScopeFilters(candidates, "", nil))
}

func TestApplyScopeFilters_CombinesPrefixAndExtension(t *testing.T) {
	candidates := []*candidate{
		{path: "internal/a.go", ext: "go"},
		{path: "internal/a.md", ext: "md"},
		{path: "cmd/a.go", ext: "go"},
	}

	filtered := applyScopeFilters(candidates, "internal/", []string{".go"})
	require.Len(t, filtered, 1)
	assert.Equal(t, "internal/a.go", filtered[0].path)
}
