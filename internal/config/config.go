// Package config defines the input configuration the core is constructed
// with. It owns no persistence of its own: loading, saving, and migrating
// a config file on disk is the host binary's job (see cmd/rememex), not
// the core's — the core only ever sees an already-parsed Config value.
package config

import "time"

// IndexingConfig overrides the chunker's default extension handling for a
// single indexing pass.
type IndexingConfig struct {
	ExtraExtensions    []string `yaml:"extra_extensions,omitempty"`
	ExcludedExtensions []string `yaml:"excluded_extensions,omitempty"`
	ChunkSize          *int     `yaml:"chunk_size,omitempty"`
	ChunkOverlap       *int     `yaml:"chunk_overlap,omitempty"`
}

// ContainerInfo describes one logical index: a free-text description and
// the set of filesystem roots it has been told to index.
type ContainerInfo struct {
	Description  string   `yaml:"description"`
	IndexedPaths []string `yaml:"indexed_paths"`
}

// SearchConfig gates the optional stages of the search pipeline. HyDE and
// the reranker need an external collaborator the core doesn't bundle (a
// HyDE endpoint, a reranker model); hybrid search, annotations and MMR
// need nothing beyond the bundled store.
type SearchConfig struct {
	UseHybrid        bool    `yaml:"use_hybrid"`
	UseAnnotations   bool    `yaml:"use_annotations"`
	UseHyde          bool    `yaml:"use_hyde"`
	UseReranker      bool    `yaml:"use_reranker"`
	UseMMR           bool    `yaml:"use_mmr"`
	MMRLambda        float64 `yaml:"mmr_lambda"`
	RerankerMinScore float64 `yaml:"reranker_min_score"`
}

// DefaultSearchConfig matches the posture of the source the spec was
// distilled from: hybrid search and annotations are on by default because
// they need nothing beyond the bundled store; HyDE and the reranker are
// off by default because both require an external endpoint/model.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		UseHybrid:        true,
		UseAnnotations:   true,
		UseHyde:          false,
		UseReranker:      false,
		UseMMR:           true,
		MMRLambda:        0.5,
		RerankerMinScore: 1.0,
	}
}

// CompactionConfig configures automatic background compaction of a
// container's vector index: when a container goes idle and its orphan
// ratio (lazily-deleted vectors left in the HNSW graph) exceeds
// OrphanThreshold, its orphans are purged.
type CompactionConfig struct {
	Enabled         bool          `yaml:"enabled"`
	OrphanThreshold float64       `yaml:"orphan_threshold"`
	MinOrphanCount  int           `yaml:"min_orphan_count"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	Cooldown        time.Duration `yaml:"cooldown"`
}

// DefaultCompactionConfig matches the source's defaults: compaction is
// on, eligible once a fifth of a container's vectors are orphans (and
// there are at least a hundred of them), and runs at most once an hour
// per container after 30s of search inactivity.
func DefaultCompactionConfig() CompactionConfig {
	return CompactionConfig{
		Enabled:         true,
		OrphanThreshold: 0.2,
		MinOrphanCount:  100,
		IdleTimeout:     30 * time.Second,
		Cooldown:        time.Hour,
	}
}

// Config is the complete input the core is constructed with.
type Config struct {
	EmbeddingModel  string                   `yaml:"embedding_model"`
	Indexing        IndexingConfig           `yaml:"indexing"`
	Search          SearchConfig             `yaml:"search"`
	Compaction      CompactionConfig         `yaml:"compaction"`
	Containers      map[string]ContainerInfo `yaml:"containers"`
	ActiveContainer string                   `yaml:"active_container"`
}

// DefaultContainerName is the one container that always exists and can
// never be deleted.
const DefaultContainerName = "Default"

// Default returns a config with a single empty "Default" container active,
// matching the shape of a freshly initialized config file.
func Default() Config {
	return Config{
		EmbeddingModel:  "static-768",
		Indexing:        IndexingConfig{},
		Search:          DefaultSearchConfig(),
		Compaction:      DefaultCompactionConfig(),
		ActiveContainer: DefaultContainerName,
		Containers: map[string]ContainerInfo{
			DefaultContainerName: {Description: "Default container", IndexedPaths: nil},
		},
	}
}
