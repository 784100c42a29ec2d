// Package index provides indexing operations including consistency checking.
package index

import (
	"context"
	"log/slog"
	"time"

	"github.com/rememex/rememex/internal/store"
)

// InconsistencyType categorizes detected issues.
type InconsistencyType int

const (
	// InconsistencyOrphanBM25 indicates a BM25 entry without a backing row.
	InconsistencyOrphanBM25 InconsistencyType = iota
	// InconsistencyOrphanVector indicates a vector entry without a backing row.
	InconsistencyOrphanVector
	// InconsistencyMissingBM25 indicates a row missing from the BM25 index.
	InconsistencyMissingBM25
	// InconsistencyMissingVector indicates a row missing from the vector index.
	InconsistencyMissingVector
)

// String returns a human-readable description of the inconsistency type.
func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyOrphanBM25:
		return "orphan_bm25"
	case InconsistencyOrphanVector:
		return "orphan_vector"
	case InconsistencyMissingBM25:
		return "missing_bm25"
	case InconsistencyMissingVector:
		return "missing_vector"
	default:
		return "unknown"
	}
}

// Inconsistency represents a detected cross-store issue.
type Inconsistency struct {
	Type    InconsistencyType
	ChunkID string
	Details string
}

// CheckResult contains the outcome of a consistency check.
type CheckResult struct {
	// Checked is the number of chunks verified.
	Checked int
	// Inconsistencies contains all detected issues.
	Inconsistencies []Inconsistency
	// Duration is how long the check took.
	Duration time.Duration
}

// ConsistencyChecker validates that a table's FTS and vector indexes
// agree with its row store. Table.Insert writes the row store
// transactionally but updates the FTS and vector indexes afterward, so a
// crash mid-write can leave either index with orphaned or missing
// entries relative to the rows table, which remains the source of
// truth.
type ConsistencyChecker struct {
	table *store.Table
}

// NewConsistencyChecker creates a new checker over table.
func NewConsistencyChecker(table *store.Table) *ConsistencyChecker {
	return &ConsistencyChecker{table: table}
}

// Check scans all three stores for inconsistencies.
// This is O(n) where n is the total number of entries across all stores.
func (c *ConsistencyChecker) Check(ctx context.Context) (*CheckResult, error) {
	start := time.Now()
	var issues []Inconsistency

	rowIDs, err := c.table.AllChunkIDs(ctx)
	if err != nil {
		return nil, err
	}
	rowSet := make(map[string]bool, len(rowIDs))
	for _, id := range rowIDs {
		rowSet[id] = true
	}

	bm25IDs, err := c.table.FTSIDs()
	if err != nil {
		slog.Warn("failed to get BM25 IDs for consistency check", slog.String("error", err.Error()))
	}

	vectorIDs := c.table.VectorIDs()

	for _, id := range bm25IDs {
		if !rowSet[id] {
			issues = append(issues, Inconsistency{
				Type:    InconsistencyOrphanBM25,
				ChunkID: id,
				Details: "BM25 entry without a backing row",
			})
		}
	}

	for _, id := range vectorIDs {
		if !rowSet[id] {
			issues = append(issues, Inconsistency{
				Type:    InconsistencyOrphanVector,
				ChunkID: id,
				Details: "vector entry without a backing row",
			})
		}
	}

	bm25Set := make(map[string]bool, len(bm25IDs))
	for _, id := range bm25IDs {
		bm25Set[id] = true
	}
	vectorSet := make(map[string]bool, len(vectorIDs))
	for _, id := range vectorIDs {
		vectorSet[id] = true
	}

	for id := range rowSet {
		if !bm25Set[id] {
			issues = append(issues, Inconsistency{
				Type:    InconsistencyMissingBM25,
				ChunkID: id,
				Details: "row missing from BM25 index",
			})
		}
		if !vectorSet[id] {
			issues = append(issues, Inconsistency{
				Type:    InconsistencyMissingVector,
				ChunkID: id,
				Details: "row missing from vector index",
			})
		}
	}

	return &CheckResult{
		Checked:         len(rowSet),
		Inconsistencies: issues,
		Duration:        time.Since(start),
	}, nil
}

// Repair fixes detected inconsistencies.
//   - Orphans: deleted from BM25/vector (best-effort).
//   - Missing: logged as a warning (requires re-index to fix, since the
//     embedding that produced the missing vector is gone).
func (c *ConsistencyChecker) Repair(ctx context.Context, issues []Inconsistency) error {
	var orphanBM25, orphanVector []string
	var missingCount int

	for _, issue := range issues {
		switch issue.Type {
		case InconsistencyOrphanBM25:
			orphanBM25 = append(orphanBM25, issue.ChunkID)
		case InconsistencyOrphanVector:
			orphanVector = append(orphanVector, issue.ChunkID)
		case InconsistencyMissingBM25, InconsistencyMissingVector:
			missingCount++
		}
	}

	if len(orphanBM25) > 0 {
		if err := c.table.DeleteFTSOrphans(ctx, orphanBM25); err != nil {
			slog.Warn("failed to delete orphan BM25 entries",
				slog.Int("count", len(orphanBM25)),
				slog.String("error", err.Error()))
		} else {
			slog.Info("deleted orphan BM25 entries", slog.Int("count", len(orphanBM25)))
		}
	}

	if len(orphanVector) > 0 {
		if err := c.table.DeleteVectorOrphans(ctx, orphanVector); err != nil {
			slog.Warn("failed to delete orphan vector entries",
				slog.Int("count", len(orphanVector)),
				slog.String("error", err.Error()))
		} else {
			slog.Info("deleted orphan vector entries", slog.Int("count", len(orphanVector)))
		}
	}

	if missingCount > 0 {
		slog.Warn("index has missing entries, run 'rememex index --force' to rebuild",
			slog.Int("missing_count", missingCount))
	}

	return nil
}

// QuickCheck performs a lightweight consistency check.
// It only verifies counts match across stores, not individual IDs.
// Returns true if counts are consistent.
func (c *ConsistencyChecker) QuickCheck(ctx context.Context) (bool, error) {
	rowIDs, err := c.table.AllChunkIDs(ctx)
	if err != nil {
		return false, err
	}
	rowCount := len(rowIDs)

	bm25Stats := c.table.FTSStats()
	bm25Count := 0
	if bm25Stats != nil {
		bm25Count = bm25Stats.DocumentCount
	}

	vectorCount := c.table.VectorCount()

	consistent := rowCount == bm25Count && rowCount == vectorCount

	if !consistent {
		slog.Debug("index counts mismatch",
			slog.Int("rows", rowCount),
			slog.Int("bm25", bm25Count),
			slog.Int("vector", vectorCount))
	}

	return consistent, nil
}
