package store

import (
	"path/filepath"
)

// NewBM25Index creates a bleve-backed BM25Index rooted at basePath+".bleve".
// If basePath is empty, creates an in-memory index for testing.
func NewBM25Index(basePath string, config BM25Config) (BM25Index, error) {
	var path string
	if basePath != "" {
		path = basePath + ".bleve"
	}
	return NewBleveBM25Index(path, config)
}

// FTSIndexPath returns the full path to a container's FTS index directory.
func FTSIndexPath(dataDir string) string {
	return filepath.Join(dataDir, "fts") + ".bleve"
}
