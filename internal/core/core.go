// Package core implements CoreAPI: the single façade adapters (CLI, MCP
// server, daemon) drive instead of touching internal/index, internal/search
// and internal/store directly. It owns the per-container table/engine/
// pipeline/watcher set, the active-container selection, and the
// concurrency model described by the source: single-writer-per-container
// indexing with concurrent readers, a shared reranker slot, and a shared
// embedder behind its own mutex.
package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/rememex/rememex/internal/config"
	"github.com/rememex/rememex/internal/embed"
	"github.com/rememex/rememex/internal/index"
	"github.com/rememex/rememex/internal/scanner"
	"github.com/rememex/rememex/internal/search"
	"github.com/rememex/rememex/internal/store"
	"github.com/rememex/rememex/internal/ui"
	"github.com/rememex/rememex/internal/watcher"
)

// ConfigPersister is the host's hook for writing a changed Config back to
// disk. The core treats configuration as an input it mutates in memory and
// hands back for persistence; it never owns the config file itself.
type ConfigPersister func(config.Config) error

// Core owns every container's store, search, and indexing collaborators,
// plus the active embedder and, optionally, a shared reranker.
type Core struct {
	dataDir   string
	modelsDir string

	mu         sync.Mutex
	cfg        config.Config
	persist    ConfigPersister
	manager    *store.Manager
	embedder   embed.Embedder
	embedderMu sync.Mutex
	reranker   search.Reranker
	renderer   ui.Renderer
	scanner    *scanner.Scanner
	containers map[string]*containerState
	active     string
}

// containerState bundles one container's open collaborators. Indexing
// operations against a container serialize under indexMu (the
// "single-writer-per-container" rule); search may run concurrently with
// an in-progress index because the underlying Table's row inserts and
// deletes are individually atomic.
type containerState struct {
	indexMu sync.Mutex

	name        string
	table       *store.Table
	annotations *store.AnnotationStore
	engine      *search.Engine
	pipeline    *search.Pipeline
	runner      *index.Runner

	watch       *watcher.HybridWatcher
	watchCancel context.CancelFunc
	watchDone   chan struct{}
}

// Options configures a new Core.
type Options struct {
	// DataDir is "<app_data>/lancedb/", the store root.
	DataDir string
	// ModelsDir is "<app_data>/models/", passed to embedder constructors.
	ModelsDir string
	// Config is the already-loaded, already-parsed configuration.
	Config config.Config
	// Persist is called after any operation that mutates Config, so the
	// host can write it back to disk. May be nil (mutations stay
	// in-memory only, e.g. in tests).
	Persist ConfigPersister
	// Renderer receives indexing progress events. Defaults to a no-op
	// renderer when nil.
	Renderer ui.Renderer
	// Reranker is shared across every container's pipeline via a single
	// capacity-1 slot. May be nil (reranking disabled).
	Reranker search.Reranker
	// Embedder overrides the embedder New would otherwise construct from
	// Config.EmbeddingModel via embed.NewEmbedder. Tests supply a
	// deterministic fake here instead of standing up a real provider.
	Embedder embed.Embedder
}

// New constructs a Core from already-resolved configuration and opens the
// active container's collaborators. Store-open failure at this point is
// Fatal: it propagates to the host rather than degrading.
func New(ctx context.Context, opts Options) (*Core, error) {
	if opts.DataDir == "" {
		return nil, newError(KindFatal, "data dir is required")
	}
	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return nil, newError(KindFatal, "create data dir: %v", err)
	}

	manager, err := store.NewManager(opts.DataDir)
	if err != nil {
		return nil, newError(KindFatal, "open store manager: %v", err)
	}

	sc, err := scanner.New()
	if err != nil {
		manager.Close()
		return nil, newError(KindFatal, "create scanner: %v", err)
	}

	renderer := opts.Renderer
	if renderer == nil {
		renderer = ui.NewRenderer(ui.NewConfig(io.Discard))
	}

	cfg := opts.Config
	if cfg.ActiveContainer == "" {
		cfg = config.Default()
	}

	c := &Core{
		dataDir:    opts.DataDir,
		modelsDir:  opts.ModelsDir,
		cfg:        cfg,
		persist:    opts.Persist,
		manager:    manager,
		reranker:   opts.Reranker,
		renderer:   renderer,
		scanner:    sc,
		containers: make(map[string]*containerState),
		active:     cfg.ActiveContainer,
	}

	embedder := opts.Embedder
	if embedder == nil {
		var embedErr error
		embedder, embedErr = embed.NewEmbedder(ctx, embed.ParseProvider(cfg.EmbeddingModel), cfg.EmbeddingModel)
		if embedErr != nil {
			manager.Close()
			return nil, newError(KindFatal, "initialize embedder: %v", embedErr)
		}
	}
	c.embedder = embedder

	if _, err := c.containerFor(c.active); err != nil {
		manager.Close()
		return nil, err
	}

	return c, nil
}

// Close releases every open container, the embedder, and the store
// manager.
func (c *Core) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, cs := range c.containers {
		c.stopWatch(cs)
		if cs.runner != nil {
			if err := cs.runner.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if c.embedder != nil {
		if err := c.embedder.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.manager.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("close core: %v", errs)
	}
	return nil
}

// savePersist writes the in-memory config back to disk via the host hook,
// if one was provided.
func (c *Core) savePersist() error {
	if c.persist == nil {
		return nil
	}
	return c.persist(c.cfg)
}

// containerFor returns the open containerState for name, opening its
// table, annotation store, engine, and pipeline on first use. Must be
// called with c.mu held.
func (c *Core) containerFor(name string) (*containerState, error) {
	if cs, ok := c.containers[name]; ok {
		return cs, nil
	}
	info, ok := c.cfg.Containers[name]
	if !ok {
		return nil, newError(KindInvalidInput, "unknown container %q", name)
	}

	dim := c.embedder.Dimension()
	tableName := config.TableName(name)

	table, err := c.manager.Table(tableName, dim)
	if err != nil {
		return nil, newError(KindFatal, "open container table: %v", err)
	}
	annotations, err := c.manager.Annotations(tableName, dim)
	if err != nil {
		return nil, newError(KindFatal, "open container annotations: %v", err)
	}

	engine, err := search.NewEngine(table, c.embedder, search.DefaultConfig())
	if err != nil {
		return nil, newError(KindFatal, "build search engine: %v", err)
	}

	pipelineOpts := []search.PipelineOption{search.WithPipelineAnnotations(annotations)}
	if c.reranker != nil {
		pipelineOpts = append(pipelineOpts, search.WithPipelineReranker(c.reranker))
	}
	pipeline, err := search.NewPipeline(table, c.embedder, pipelineOpts...)
	if err != nil {
		return nil, newError(KindFatal, "build search pipeline: %v", err)
	}

	runner, err := index.NewRunner(index.RunnerDependencies{
		Renderer: c.renderer,
		Engine:   engine,
		Table:    table,
	})
	if err != nil {
		return nil, newError(KindFatal, "build indexer: %v", err)
	}

	cs := &containerState{
		name:        name,
		table:       table,
		annotations: annotations,
		engine:      engine,
		pipeline:    pipeline,
		runner:      runner,
	}
	c.containers[name] = cs

	// Catch up on any changes made to the container's primary root while
	// this process wasn't running, since containerFor only runs once per
	// container for the life of the process.
	if root := primaryRoot(info); root != "" {
		coordinator := c.coordinatorFor(cs, root)
		if err := coordinator.ReconcileFilesOnStartup(context.Background()); err != nil {
			slog.Warn("startup file reconciliation failed", slog.String("container", name), slog.String("error", err.Error()))
		}
	}

	return cs, nil
}

// excludePatterns returns the container's extra exclude patterns layered
// on top of .gitignore/.rcignore during scanning and reconciliation.
func excludePatterns(cfg config.Config) []string {
	return cfg.Indexing.ExcludedExtensions
}

// coordinatorFor builds a Coordinator scoped to root for cs, used both by
// the watcher's event handler and by startup reconciliation. The
// Coordinator is cheap to construct (it holds no state of its own beyond
// its config), so a fresh one per root avoids needing to track which root
// a container's single Coordinator field was last built for.
func (c *Core) coordinatorFor(cs *containerState, root string) *index.Coordinator {
	return index.NewCoordinator(index.CoordinatorConfig{
		RootPath:        root,
		Runner:          cs.runner,
		Table:           cs.table,
		Scanner:         c.scanner,
		ExcludePatterns: excludePatterns(c.cfg),
	})
}

// requireContainerName resolves an optional container argument ("" means
// the active one) and validates it exists in config.
func (c *Core) requireContainerName(name string) (string, error) {
	if name == "" {
		name = c.active
	}
	if _, ok := c.cfg.Containers[name]; !ok {
		return "", newError(KindInvalidInput, "unknown container %q", name)
	}
	return name, nil
}

func absRoots(info config.ContainerInfo) []string {
	roots := make([]string, 0, len(info.IndexedPaths))
	for _, p := range info.IndexedPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		roots = append(roots, abs)
	}
	return roots
}
