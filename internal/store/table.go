package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// annIndexThreshold is the row count above which the HNSW graph is
// (re)built eagerly rather than left to grow lazily.
const annIndexThreshold = 256

// Table is a container's logical data table: one SQLite row store for
// path/content/mtime, one HNSW graph for vector search, one bleve index
// for full-text search. Ground truth for this split: db.rs's LanceDB
// table (path, content, vector, mtime columns) reimplemented atop three
// cooperating Go-native stores instead of one columnar table format.
type Table struct {
	mu sync.RWMutex

	name    string
	dataDir string

	db     *sql.DB
	vector VectorStore
	fts    BM25Index

	dim int
}

// RowID returns the content-addressable chunk ID for a path/content pair.
func RowID(path, content string) string {
	h := sha256.Sum256([]byte(path + "\x00" + content))
	return hex.EncodeToString(h[:])
}

// OpenTable opens or creates the three physical stores backing a
// container's logical table, dropping and recreating all of them if the
// stored vector dimension doesn't match dim (spec.md §3 invariants 1/4/5).
func OpenTable(dataDir, name string, dim int) (*Table, error) {
	dbPath := filepath.Join(dataDir, name+".db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open row store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := ensureRowSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	storedDim, err := readState(db, StateKeyEmbeddingDimension)
	if err != nil {
		db.Close()
		return nil, err
	}

	t := &Table{name: name, dataDir: dataDir, db: db, dim: dim}

	if storedDim != "" && storedDim != fmt.Sprintf("%d", dim) {
		slog.Warn("table dimension mismatch, recreating",
			slog.String("table", name), slog.String("stored", storedDim), slog.Int("current", dim))
		if err := t.reset(); err != nil {
			db.Close()
			return nil, err
		}
	}

	if err := writeState(db, StateKeyEmbeddingDimension, fmt.Sprintf("%d", dim)); err != nil {
		db.Close()
		return nil, err
	}

	vecStore, err := NewHNSWStore(DefaultVectorStoreConfig(dim))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	vecPath := filepath.Join(dataDir, name+".hnsw")
	if err := vecStore.Load(vecPath); err != nil {
		slog.Debug("no existing vector index, starting fresh", slog.String("table", name))
	}
	t.vector = vecStore

	ftsIdx, err := NewBM25Index(filepath.Join(dataDir, name), DefaultBM25Config())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open fts index: %w", err)
	}
	t.fts = ftsIdx

	return t, nil
}

func ensureRowSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS rows (
			chunk_id TEXT PRIMARY KEY,
			path     TEXT NOT NULL,
			content  TEXT NOT NULL,
			mtime    INTEGER NOT NULL,
			ext      TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS rows_path_idx ON rows(path);
		CREATE TABLE IF NOT EXISTS state (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	return err
}

func readState(db *sql.DB, key string) (string, error) {
	var v string
	err := db.QueryRow(`SELECT value FROM state WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}

func writeState(db *sql.DB, key, value string) error {
	_, err := db.Exec(`INSERT INTO state(key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// reset drops all rows and the FTS/vector indexes for this table, used
// when a stored dimension no longer matches the active embedder.
func (t *Table) reset() error {
	if _, err := t.db.Exec(`DELETE FROM rows`); err != nil {
		return fmt.Errorf("reset rows: %w", err)
	}
	if _, err := t.db.Exec(`DELETE FROM state WHERE key != ?`, "dummy"); err != nil {
		return fmt.Errorf("reset state: %w", err)
	}
	return nil
}

// Name returns the table's sanitized container table name.
func (t *Table) Name() string { return t.name }

// State returns a persisted value from this table's key/value state store,
// or "" if key has never been set.
func (t *Table) State(key string) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return readState(t.db, key)
}

// SetState persists a value in this table's key/value state store.
func (t *Table) SetState(key, value string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return writeState(t.db, key, value)
}

// Dimension returns the embedding dimension this table was opened with.
func (t *Table) Dimension() int { return t.dim }

// Insert upserts rows plus their embeddings into all three stores.
func (t *Table) Insert(ctx context.Context, rows []Row, vectors [][]float32) error {
	if len(rows) == 0 {
		return nil
	}
	if len(rows) != len(vectors) {
		return fmt.Errorf("rows/vectors length mismatch: %d vs %d", len(rows), len(vectors))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rows(chunk_id, path, content, mtime, ext) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			path = excluded.path, content = excluded.content,
			mtime = excluded.mtime, ext = excluded.ext
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	ids := make([]string, len(rows))
	docs := make([]*Document, len(rows))
	for i, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.ChunkID, r.Path, r.Content, r.MTime.Unix(), r.Ext); err != nil {
			return fmt.Errorf("insert row %s: %w", r.ChunkID, err)
		}
		ids[i] = r.ChunkID
		docs[i] = &Document{ID: r.ChunkID, Content: r.Content}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert tx: %w", err)
	}

	if err := t.vector.Add(ctx, ids, vectors); err != nil {
		return fmt.Errorf("insert vectors: %w", err)
	}
	if err := t.fts.Index(ctx, docs); err != nil {
		return fmt.Errorf("insert fts docs: %w", err)
	}

	return nil
}

// DeleteWhere removes every row matching an exact path, across all
// three stores, and returns the chunk IDs removed.
func (t *Table) DeleteWhere(ctx context.Context, path string) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows, err := t.db.QueryContext(ctx, `SELECT chunk_id FROM rows WHERE path = ?`, path)
	if err != nil {
		return nil, fmt.Errorf("query rows for delete: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()

	if len(ids) == 0 {
		return nil, nil
	}

	if _, err := t.db.ExecContext(ctx, `DELETE FROM rows WHERE path = ?`, path); err != nil {
		return nil, fmt.Errorf("delete rows: %w", err)
	}
	if err := t.vector.Delete(ctx, ids); err != nil {
		return nil, fmt.Errorf("delete vectors: %w", err)
	}
	if err := t.fts.Delete(ctx, ids); err != nil {
		return nil, fmt.Errorf("delete fts docs: %w", err)
	}

	return ids, nil
}

// AllPathsAndMTimes returns every distinct indexed path and its most
// recent mtime, for reconciling against a filesystem scan.
func (t *Table) AllPathsAndMTimes(ctx context.Context) (map[string]time.Time, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rows, err := t.db.QueryContext(ctx, `SELECT path, MAX(mtime) FROM rows GROUP BY path`)
	if err != nil {
		return nil, fmt.Errorf("query paths/mtimes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var path string
		var mtime int64
		if err := rows.Scan(&path, &mtime); err != nil {
			return nil, err
		}
		out[path] = time.Unix(mtime, 0)
	}
	return out, rows.Err()
}

// MTimeOf returns the most recent mtime recorded for path, or the zero
// time and false if the path has no rows.
func (t *Table) MTimeOf(ctx context.Context, path string) (time.Time, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var mtime int64
	err := t.db.QueryRowContext(ctx, `SELECT MAX(mtime) FROM rows WHERE path = ?`, path).Scan(&mtime)
	if err == sql.ErrNoRows || mtime == 0 {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query mtime: %w", err)
	}
	return time.Unix(mtime, 0), true, nil
}

// VectorSearch runs an ANN search, optionally constrained by filter.
func (t *Table) VectorSearch(ctx context.Context, query []float32, k int, filter *Filter) ([]*VectorResult, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	fetchK := k
	if filter != nil {
		fetchK = k * 4
		if fetchK < 50 {
			fetchK = 50
		}
	}

	results, err := t.vector.Search(ctx, query, fetchK)
	if err != nil {
		return nil, err
	}
	if filter == nil {
		if len(results) > k {
			results = results[:k]
		}
		return results, nil
	}

	allowed, err := t.matchingIDs(ctx, filter)
	if err != nil {
		return nil, err
	}
	filtered := make([]*VectorResult, 0, k)
	for _, r := range results {
		if allowed[r.ID] {
			filtered = append(filtered, r)
			if len(filtered) == k {
				break
			}
		}
	}
	return filtered, nil
}

// FTSSearch runs a keyword search, optionally constrained by filter.
func (t *Table) FTSSearch(ctx context.Context, query string, k int, filter *Filter) ([]*BM25Result, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	fetchK := k
	if filter != nil {
		fetchK = k * 4
		if fetchK < 50 {
			fetchK = 50
		}
	}

	results, err := t.fts.Search(ctx, query, fetchK)
	if err != nil {
		return nil, err
	}
	if filter == nil {
		if len(results) > k {
			results = results[:k]
		}
		return results, nil
	}

	allowed, err := t.matchingIDs(ctx, filter)
	if err != nil {
		return nil, err
	}
	filtered := make([]*BM25Result, 0, k)
	for _, r := range results {
		if allowed[r.DocID] {
			filtered = append(filtered, r)
			if len(filtered) == k {
				break
			}
		}
	}
	return filtered, nil
}

// matchingIDs returns the chunk IDs in rows satisfying filter, built
// with the same escape ordering as the original's build_filter_expr:
// backslash, then single quote, then percent, then underscore.
func (t *Table) matchingIDs(ctx context.Context, filter *Filter) (map[string]bool, error) {
	clause, args := BuildFilter(filter)
	q := `SELECT chunk_id FROM rows`
	if clause != "" {
		q += " WHERE " + clause
	}
	rows, err := t.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query filtered ids: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// BuildFilter renders a Filter into a parameterized SQL WHERE clause,
// escaping LIKE metacharacters in the same order as build_filter_expr:
// backslash, single quote, percent, underscore.
func BuildFilter(filter *Filter) (string, []any) {
	if filter == nil {
		return "", nil
	}
	var clauses []string
	var args []any

	if filter.Path != "" {
		clauses = append(clauses, "path LIKE ? ESCAPE '\\'")
		args = append(args, escapeLike(filter.Path)+"%")
	}
	if filter.Ext != "" {
		ext := strings.TrimPrefix(filter.Ext, ".")
		clauses = append(clauses, "path LIKE ? ESCAPE '\\'")
		args = append(args, "%."+escapeLike(ext))
	}

	return strings.Join(clauses, " AND "), args
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `''`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// GetRowsByID fetches full row data for a set of chunk IDs. Order is
// not guaranteed to match ids; callers needing input order should index
// the result by ChunkID.
func (t *Table) GetRowsByID(ctx context.Context, ids []string) ([]Row, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	q := `SELECT chunk_id, path, content, mtime, ext FROM rows WHERE chunk_id IN (` +
		strings.Join(placeholders, ",") + `)`

	rows, err := t.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query rows by id: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var mtime int64
		if err := rows.Scan(&r.ChunkID, &r.Path, &r.Content, &mtime, &r.Ext); err != nil {
			return nil, err
		}
		r.MTime = time.Unix(mtime, 0)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats returns full-text index statistics.
func (t *Table) Stats() *IndexStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fts.Stats()
}

// VectorCount returns the number of vectors currently indexed.
func (t *Table) VectorCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.vector.Count()
}

// AllChunkIDs returns every chunk ID in the row store, the source of
// truth against which the FTS and vector indexes are checked for drift.
func (t *Table) AllChunkIDs(ctx context.Context) ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rows, err := t.db.QueryContext(ctx, `SELECT chunk_id FROM rows`)
	if err != nil {
		return nil, fmt.Errorf("query chunk ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FTSIDs returns every document ID in the full-text index.
func (t *Table) FTSIDs() ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fts.AllIDs()
}

// VectorIDs returns every vector ID in the vector index.
func (t *Table) VectorIDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.vector.AllIDs()
}

// FTSStats returns full-text index statistics.
func (t *Table) FTSStats() *IndexStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fts.Stats()
}

// DeleteFTSOrphans removes documents from the full-text index only,
// without touching the row store or vector index. Used by consistency
// repair to drop entries that have no backing row.
func (t *Table) DeleteFTSOrphans(ctx context.Context, ids []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fts.Delete(ctx, ids)
}

// DeleteVectorOrphans removes vectors from the vector index only,
// without touching the row store or full-text index. Used by
// consistency repair to drop entries that have no backing row.
func (t *Table) DeleteVectorOrphans(ctx context.Context, ids []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.vector.Delete(ctx, ids)
}

// EnsureANNIndex is a no-op marker call: coder/hnsw builds incrementally
// on Insert, so there is no separate build step once row count crosses
// the threshold; callers use NeedsANNIndex to decide whether to log a
// one-time "index is warming up" notice.
func (t *Table) NeedsANNIndex() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.vector.Count() < annIndexThreshold
}

// Close persists and releases all three physical stores.
func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	if err := t.vector.Save(filepath.Join(t.dataDir, t.name+".hnsw")); err != nil {
		errs = append(errs, err)
	}
	if err := t.vector.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := t.fts.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := t.db.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("close table %s: %v", t.name, errs)
	}
	return nil
}
