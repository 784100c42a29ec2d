// Package store provides the per-container persistence layer: a SQLite
// row store for path/content/mtime, an HNSW vector index, and a bleve
// full-text index, composed behind a single logical Table.
package store

import (
	"context"
	"fmt"
	"time"
)

// Row is one retrievable chunk of a container's table: a slice of some
// source file's content plus the vector and text indexes built over it.
type Row struct {
	ChunkID  string // content-addressable: sha256(path + content)
	Path     string // relative to the container's indexed root
	Content  string
	MTime    time.Time
	Ext      string // lowercase extension without leading dot, e.g. "go"
	Metadata map[string]string
}

// Filter narrows a row set by exact path/extension match, ported from
// the original's build_filter_expr escaping rules.
type Filter struct {
	Path string // exact path match, empty = no constraint
	Ext  string // exact extension match (leading dot stripped before compare)
}

// State keys for per-table runtime metadata.
const (
	StateKeyEmbeddingDimension = "embedding_dimension"
	StateKeyEmbeddingModel     = "embedding_model"
)

// CurrentSchemaVersion is the current row-store schema version.
const CurrentSchemaVersion = 1

// Document represents a document to be indexed in the FTS engine.
type Document struct {
	ID      string // Chunk ID
	Content string // Text content
}

// BM25Result represents a single FTS search result.
type BM25Result struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// IndexStats provides statistics about the FTS index.
type IndexStats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}

// BM25Index provides keyword search scored by BM25 (bleve's default
// similarity). The name mirrors the scoring algorithm, not the backend.
type BM25Index interface {
	// Index adds documents to the index
	Index(ctx context.Context, docs []*Document) error

	// Search returns documents matching query, scored by BM25
	Search(ctx context.Context, query string, limit int) ([]*BM25Result, error)

	// Delete removes documents from index
	Delete(ctx context.Context, docIDs []string) error

	// AllIDs returns all document IDs in the index (for consistency checks)
	AllIDs() ([]string, error)

	// Stats returns index statistics
	Stats() *IndexStats

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// BM25Config configures the FTS index's code-aware tokenizer.
type BM25Config struct {
	// StopWords is a list of words to filter out during tokenization
	StopWords []string

	// MinTokenLength is minimum token length to index (default: 2)
	MinTokenLength int
}

// DefaultBM25Config returns default FTS configuration.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		StopWords:      DefaultCodeStopWords,
		MinTokenLength: 2,
	}
}

// DefaultCodeStopWords contains programming keywords to filter out.
var DefaultCodeStopWords = []string{
	"var", "let", "const", "func", "function", "def", "class",
	"return", "if", "else", "for", "while",
	"data", "result", "value", "item", "key", "err", "ctx", "tmp",
}

// VectorResult represents a single vector search result.
type VectorResult struct {
	ID       string  // Chunk ID
	Distance float32 // Lower is more similar (0-2 for cosine)
	Score    float32 // Normalized similarity (0-1)
}

// VectorStoreConfig configures the vector store.
type VectorStoreConfig struct {
	// Dimensions is the vector dimension, set by the active embedder.
	Dimensions int

	// Metric is the distance metric: "cos" (cosine), "l2" (euclidean) (default: "cos")
	Metric string

	// M is HNSW max connections per layer (default: 32)
	M int

	// EfConstruction is HNSW build-time search width (default: 128)
	EfConstruction int

	// EfSearch is HNSW query-time search width (default: 64)
	EfSearch int
}

// DefaultVectorStoreConfig returns sensible defaults for vector store.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions:     dimensions,
		Metric:         "cos",
		M:              32,
		EfConstruction: 128,
		EfSearch:       64,
	}
}

// VectorStore provides semantic search using HNSW algorithm.
type VectorStore interface {
	// Add inserts vectors with their IDs. If an ID exists, it is replaced.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Search finds k nearest neighbors to query vector.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	// Delete removes vectors by ID.
	Delete(ctx context.Context, ids []string) error

	// AllIDs returns all vector IDs in the store (for consistency checks)
	AllIDs() []string

	// Contains checks if ID exists.
	Contains(id string) bool

	// Count returns number of vectors.
	Count() int

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// ErrDimensionMismatch indicates vector dimension mismatch between a
// container's stored index and the active embedder.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (run 'rememex reindex --force')", e.Expected, e.Got)
}
