package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"time"
)

// Annotation is a user-authored note pinned to a path, searchable
// alongside indexed content. Ground truth: annotations.rs.
type Annotation struct {
	ID        string
	Path      string
	Note      string
	Source    string
	CreatedAt time.Time
}

// AnnotationStore persists annotations for one container, as a sibling
// SQLite database plus its own vector index for semantic search over
// note text.
type AnnotationStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	vector VectorStore
	dim    int
	path   string
}

// OpenAnnotationStore opens or creates the annotations table for a
// container, recreating it if the schema predates the "source" column
// (annotations.rs's get_or_create_annotations_table repair check,
// re-expressed here as CREATE TABLE IF NOT EXISTS followed by a column
// check that drops and recreates the table when "source" is missing).
func OpenAnnotationStore(dataDir, containerTable string, dim int) (*AnnotationStore, error) {
	dbPath := filepath.Join(dataDir, containerTable+"_annotations.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open annotation store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := ensureAnnotationSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	vecStore, err := NewHNSWStore(DefaultVectorStoreConfig(dim))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open annotation vector store: %w", err)
	}
	vecPath := filepath.Join(dataDir, containerTable+"_annotations.hnsw")
	_ = vecStore.Load(vecPath)

	return &AnnotationStore{db: db, vector: vecStore, dim: dim, path: vecPath}, nil
}

func ensureAnnotationSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS annotations (
			id         TEXT PRIMARY KEY,
			path       TEXT NOT NULL,
			note       TEXT NOT NULL,
			source     TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return err
	}

	var hasSource int
	err = db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('annotations') WHERE name = 'source'`).Scan(&hasSource)
	if err != nil {
		return fmt.Errorf("check annotations schema: %w", err)
	}
	if hasSource == 0 {
		if _, err := db.Exec(`DROP TABLE annotations`); err != nil {
			return err
		}
		_, err = db.Exec(`
			CREATE TABLE annotations (
				id         TEXT PRIMARY KEY,
				path       TEXT NOT NULL,
				note       TEXT NOT NULL,
				source     TEXT NOT NULL,
				created_at INTEGER NOT NULL
			);
		`)
		return err
	}
	return nil
}

// generateAnnotationID mints a nanosecond-timestamp ID: "ann_<unixnano>".
func generateAnnotationID(nowNano int64) string {
	return fmt.Sprintf("ann_%d", nowNano)
}

// Add inserts a new annotation with its embedding vector, returning the
// generated ID.
func (s *AnnotationStore) Add(ctx context.Context, path, note, source string, vector []float32, now time.Time) (*Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ann := &Annotation{
		ID:        generateAnnotationID(now.UnixNano()),
		Path:      path,
		Note:      note,
		Source:    source,
		CreatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO annotations(id, path, note, source, created_at) VALUES (?, ?, ?, ?, ?)`,
		ann.ID, ann.Path, ann.Note, ann.Source, ann.CreatedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("insert annotation: %w", err)
	}

	if err := s.vector.Add(ctx, []string{ann.ID}, [][]float32{vector}); err != nil {
		return nil, fmt.Errorf("index annotation vector: %w", err)
	}

	return ann, nil
}

// List returns annotations, optionally filtered to one path, newest first.
func (s *AnnotationStore) List(ctx context.Context, path string) ([]*Annotation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := `SELECT id, path, note, source, created_at FROM annotations`
	var args []any
	if path != "" {
		q += ` WHERE path = ?`
		args = append(args, path)
	}
	q += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list annotations: %w", err)
	}
	defer rows.Close()

	var out []*Annotation
	for rows.Next() {
		var a Annotation
		var createdAt int64
		if err := rows.Scan(&a.ID, &a.Path, &a.Note, &a.Source, &createdAt); err != nil {
			return nil, err
		}
		a.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, &a)
	}
	return out, rows.Err()
}

// Delete removes an annotation by ID from both the row store and the
// vector index.
func (s *AnnotationStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM annotations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete annotation: %w", err)
	}
	return s.vector.Delete(ctx, []string{id})
}

// AnnotationMatch is a semantic search hit over annotation notes,
// pre-formatted with the "[annotation] " prefix search results carry.
type AnnotationMatch struct {
	Path    string
	Snippet string
	Score   float32
}

// Search runs a vector search over annotation notes, returning results
// with the "[annotation] " prefix the original uses to distinguish
// annotation hits from indexed-content hits in merged result lists.
func (s *AnnotationStore) Search(ctx context.Context, queryVector []float32, limit int) ([]AnnotationMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.vector.Count() == 0 {
		return nil, nil
	}

	hits, err := s.vector.Search(ctx, queryVector, limit)
	if err != nil {
		return nil, fmt.Errorf("search annotation vectors: %w", err)
	}

	out := make([]AnnotationMatch, 0, len(hits))
	for _, h := range hits {
		var path, note string
		err := s.db.QueryRowContext(ctx, `SELECT path, note FROM annotations WHERE id = ?`, h.ID).Scan(&path, &note)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load annotation row: %w", err)
		}
		out = append(out, AnnotationMatch{
			Path:    path,
			Snippet: "[annotation] " + note,
			Score:   h.Score,
		})
	}
	return out, nil
}

// Close persists and releases the annotation store's resources.
func (s *AnnotationStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if err := s.vector.Save(s.path); err != nil {
		errs = append(errs, err)
	}
	if err := s.vector.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("close annotation store: %v", errs)
	}
	return nil
}
