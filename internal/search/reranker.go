package search

import (
	"context"
)

// RerankResult represents a single reranked result
type RerankResult struct {
	// Index is the original position in the input documents slice
	Index int
	// Score is the backend's raw relevance score (higher is more relevant;
	// not bounded to 0..1). The pipeline maps it through a sigmoid.
	Score float64
	// Document is the original document content
	Document string
}

// Reranker reranks search results using a cross-encoder model.
// Cross-encoders jointly encode query-document pairs for more accurate
// relevance scoring than bi-encoders, but at higher computational cost.
type Reranker interface {
	// Rerank scores and reorders documents by relevance to the query.
	// Returns results sorted by score descending.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - query: The search query
	//   - documents: Documents to rerank (max ~50-100 for reasonable latency)
	//   - topK: Optional limit on results (0 = return all)
	//
	// Returns:
	//   - Results sorted by score descending
	//   - Error if reranking fails
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error)

	// Available checks if the reranker service is available
	Available(ctx context.Context) bool

	// Close releases resources
	Close() error
}

// NoOpReranker is a reranker that returns results in original order.
// Used when reranking is disabled or unavailable.
type NoOpReranker struct{}

// Rerank returns documents in original order with decreasing scores.
func (n *NoOpReranker) Rerank(_ context.Context, _ string, documents []string, topK int) ([]RerankResult, error) {
	results := make([]RerankResult, len(documents))
	for i, doc := range documents {
		// Assign decreasing scores to maintain original order
		results[i] = RerankResult{
			Index:    i,
			Score:    1.0 - float64(i)*0.01, // 1.0, 0.99, 0.98, ...
			Document: doc,
		}
	}

	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}

	return results, nil
}

// Available always returns true for NoOpReranker.
func (n *NoOpReranker) Available(_ context.Context) bool {
	return true
}

// Close is a no-op for NoOpReranker.
func (n *NoOpReranker) Close() error {
	return nil
}

// Verify interface implementation at compile time
var _ Reranker = (*NoOpReranker)(nil)

// RerankerHandle owns a Reranker behind a capacity-1 channel slot, giving
// the pipeline exclusive access to the (possibly remote, possibly slow)
// reranker instance: take = receive, return = send. While the slot is
// empty (an in-flight rerank holds it) concurrent searches see take fail
// and fall back to the un-reranked result order instead of blocking.
//
// State machine: Idle (slot full) -> Taken (slot empty, blocking job
// running) -> ReturnedLoaded (slot full again) or ReturnedDiscarded (the
// job panicked or the instance was otherwise dropped, slot stays empty).
type RerankerHandle struct {
	slot chan Reranker
}

// NewRerankerHandle creates a handle around r. A nil r produces a handle
// whose slot is permanently empty, so take always reports unavailable.
func NewRerankerHandle(r Reranker) *RerankerHandle {
	h := &RerankerHandle{slot: make(chan Reranker, 1)}
	if r != nil {
		h.slot <- r
	}
	return h
}

// take removes the reranker from the slot without blocking. ok is false
// when the slot is empty, either because no reranker was configured or
// another caller currently holds it.
func (h *RerankerHandle) take() (Reranker, bool) {
	select {
	case r := <-h.slot:
		return r, true
	default:
		return nil, false
	}
}

// giveBack returns the reranker to the slot, making it available to the
// next caller. Passing nil drops the instance (slot stays empty).
func (h *RerankerHandle) giveBack(r Reranker) {
	if r == nil {
		return
	}
	select {
	case h.slot <- r:
	default:
	}
}
