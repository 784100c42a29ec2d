package core

import (
	"context"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/rememex/rememex/internal/config"
	"github.com/rememex/rememex/internal/index"
)

// reindexLockWait bounds how long an index operation waits for the
// container's flock-backed re-index lock before giving up. Manual index
// operations and the watcher's single-flight path (handleWatchBatch) both
// wait up to this long; a watch batch that still cannot get the lock is
// skipped.
const reindexLockWait = 30 * time.Second

// acquireReindexLock takes the container's exclusive, process-wide
// re-index lock via a flock file, so two processes (e.g. a CLI command
// and a running daemon) never index the same container concurrently. The
// returned function releases it.
func (c *Core) acquireReindexLock(cs *containerState) (func(), error) {
	if err := c.ensureLockDir(cs.name); err != nil {
		return nil, newError(KindFatal, "prepare reindex lock: %v", err)
	}
	fl := flock.New(c.reindexLockPath(cs.name))

	ctx, cancel := context.WithTimeout(context.Background(), reindexLockWait)
	defer cancel()
	locked, err := fl.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return nil, newError(KindTransient, "acquire reindex lock: %v", err)
	}
	if !locked {
		return nil, newError(KindInvalidInput, "container %q is already being indexed", cs.name)
	}
	return func() { _ = fl.Unlock() }, nil
}

// IndexFolder indexes root into the active container, recording it among
// the container's indexed roots, and restarts the watcher so the new root
// is covered.
func (c *Core) IndexFolder(ctx context.Context, root string) (int, error) {
	c.mu.Lock()
	name := c.active
	cs, err := c.containerFor(name)
	if err != nil {
		c.mu.Unlock()
		return 0, err
	}
	c.mu.Unlock()

	abs, err := filepath.Abs(root)
	if err != nil {
		return 0, newError(KindInvalidInput, "resolve root %q: %v", root, err)
	}

	unlock, err := c.acquireReindexLock(cs)
	if err != nil {
		return 0, err
	}
	defer unlock()

	cs.indexMu.Lock()
	result, runErr := cs.runner.Run(ctx, index.RunnerConfig{
		Root:            abs,
		ExcludePatterns: c.cfg.Indexing.ExcludedExtensions,
		Indexing:        c.cfg.Indexing,
		WithHistory:     true,
	})
	cs.indexMu.Unlock()
	if runErr != nil {
		return 0, newError(KindProviderUnavailable, "index folder: %v", runErr)
	}

	c.mu.Lock()
	info := c.cfg.Containers[name]
	if !containsPath(info.IndexedPaths, abs) {
		info.IndexedPaths = append(info.IndexedPaths, abs)
		c.cfg.Containers[name] = info
		_ = c.savePersist()
	}
	c.mu.Unlock()

	_ = c.restartWatch(ctx, name)

	return result.Files, nil
}

func containsPath(paths []string, target string) bool {
	for _, p := range paths {
		if p == target {
			return true
		}
	}
	return false
}

// ReindexAll re-runs indexing over every root already recorded for the
// active container.
func (c *Core) ReindexAll(ctx context.Context) error {
	c.mu.Lock()
	name := c.active
	cs, err := c.containerFor(name)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	roots := append([]string(nil), c.cfg.Containers[name].IndexedPaths...)
	c.mu.Unlock()

	if len(roots) == 0 {
		return newError(KindNotIndexed, "container %q has no indexed roots", name)
	}

	unlock, err := c.acquireReindexLock(cs)
	if err != nil {
		return err
	}
	defer unlock()

	cs.indexMu.Lock()
	defer cs.indexMu.Unlock()

	for _, root := range roots {
		if _, runErr := cs.runner.Run(ctx, index.RunnerConfig{
			Root:        root,
			Indexing:    c.cfg.Indexing,
			WithHistory: true,
		}); runErr != nil {
			return newError(KindProviderUnavailable, "reindex %q: %v", root, runErr)
		}
	}
	return nil
}

// ResetIndex drops and recreates the active container's table and
// annotation store, leaving its configured roots untouched (a subsequent
// ReindexAll repopulates them).
func (c *Core) ResetIndex(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := c.active
	cs, ok := c.containers[name]
	if ok {
		c.stopWatch(cs)
		_ = cs.runner.Close()
		delete(c.containers, name)
	}

	if err := c.manager.Drop(config.TableName(name)); err != nil {
		return newError(KindFatal, "reset container storage: %v", err)
	}

	_, err := c.containerFor(name)
	return err
}

// IndexStatusResult reports a container's indexing state.
type IndexStatusResult struct {
	Container     string
	DocumentCount int
	VectorCount   int
	IndexedRoots  []string
}

// IndexStatus reports the named container's indexing state (the active
// container when name is empty).
func (c *Core) IndexStatus(name string) (*IndexStatusResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resolved, err := c.requireContainerName(name)
	if err != nil {
		return nil, err
	}
	cs, err := c.containerFor(resolved)
	if err != nil {
		return nil, err
	}

	stats := cs.table.Stats()
	return &IndexStatusResult{
		Container:     resolved,
		DocumentCount: stats.DocumentCount,
		VectorCount:   cs.table.VectorCount(),
		IndexedRoots:  append([]string(nil), c.cfg.Containers[resolved].IndexedPaths...),
	}, nil
}

// CompactContainer purges vector and full-text index entries for name
// that have no backing row (drift left behind by interrupted writes),
// if the orphan ratio clears threshold and there are at least minCount
// of them. Returns the number of orphan entries removed.
func (c *Core) CompactContainer(ctx context.Context, name string, threshold float64, minCount int) (int, error) {
	c.mu.Lock()
	cs, err := c.containerFor(name)
	c.mu.Unlock()
	if err != nil {
		return 0, err
	}

	cs.indexMu.Lock()
	defer cs.indexMu.Unlock()

	rowIDs, err := cs.table.AllChunkIDs(ctx)
	if err != nil {
		return 0, newError(KindTransient, "list rows: %v", err)
	}
	live := make(map[string]bool, len(rowIDs))
	for _, id := range rowIDs {
		live[id] = true
	}

	vectorIDs := cs.table.VectorIDs()
	var vectorOrphans []string
	for _, id := range vectorIDs {
		if !live[id] {
			vectorOrphans = append(vectorOrphans, id)
		}
	}

	total := len(vectorIDs)
	if total == 0 || len(vectorOrphans) < minCount {
		return 0, nil
	}
	if float64(len(vectorOrphans))/float64(total) < threshold {
		return 0, nil
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := cs.table.DeleteVectorOrphans(ctx, vectorOrphans); err != nil {
		return 0, newError(KindTransient, "purge vector orphans: %v", err)
	}

	ftsIDs, err := cs.table.FTSIDs()
	if err == nil {
		var ftsOrphans []string
		for _, id := range ftsIDs {
			if !live[id] {
				ftsOrphans = append(ftsOrphans, id)
			}
		}
		if len(ftsOrphans) > 0 {
			_ = cs.table.DeleteFTSOrphans(ctx, ftsOrphans)
		}
	}

	return len(vectorOrphans), nil
}
