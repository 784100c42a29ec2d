package core

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/rememex/rememex/internal/config"
	"github.com/rememex/rememex/internal/watcher"
)

// ContainerSummary describes one logical index, per CoreAPI's
// list_containers shape.
type ContainerSummary struct {
	Name          string
	Description   string
	Paths         []string
	ProviderLabel string
	Active        bool
}

// ListContainers returns every configured container.
func (c *Core) ListContainers() []ContainerSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]ContainerSummary, 0, len(c.cfg.Containers))
	for name, info := range c.cfg.Containers {
		out = append(out, ContainerSummary{
			Name:          name,
			Description:   info.Description,
			Paths:         append([]string(nil), info.IndexedPaths...),
			ProviderLabel: c.cfg.EmbeddingModel,
			Active:        name == c.active,
		})
	}
	return out
}

// CreateContainer registers a new, empty container. Fails if name already
// exists.
func (c *Core) CreateContainer(name, description, embedderChoice string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.cfg.Containers[name]; exists {
		return newError(KindInvalidInput, "container %q already exists", name)
	}

	if c.cfg.Containers == nil {
		c.cfg.Containers = make(map[string]config.ContainerInfo)
	}
	c.cfg.Containers[name] = config.ContainerInfo{Description: description}
	_ = embedderChoice // every container shares the core's single embedder instance

	return c.savePersist()
}

// DeleteContainer removes a container's config entry and drops its table
// and annotation store from disk. Refuses to delete Default. If the
// deleted container was active, the active container reverts to Default.
func (c *Core) DeleteContainer(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if name == config.DefaultContainerName {
		return newError(KindInvalidInput, "the %s container cannot be deleted", config.DefaultContainerName)
	}
	if _, exists := c.cfg.Containers[name]; !exists {
		return newError(KindInvalidInput, "unknown container %q", name)
	}

	if cs, ok := c.containers[name]; ok {
		c.stopWatch(cs)
		_ = cs.runner.Close()
		delete(c.containers, name)
	}
	if err := c.manager.Drop(config.TableName(name)); err != nil {
		return newError(KindFatal, "drop container storage: %v", err)
	}
	delete(c.cfg.Containers, name)

	if c.active == name {
		c.active = config.DefaultContainerName
		c.cfg.ActiveContainer = config.DefaultContainerName
	}

	return c.savePersist()
}

// SetActiveContainer switches the active container, opening its
// collaborators if needed and restarting its watcher.
func (c *Core) SetActiveContainer(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.cfg.Containers[name]; !exists {
		return newError(KindInvalidInput, "unknown container %q", name)
	}

	if prev, ok := c.containers[c.active]; ok {
		c.stopWatch(prev)
	}

	if _, err := c.containerFor(name); err != nil {
		return err
	}

	c.active = name
	c.cfg.ActiveContainer = name
	if err := c.savePersist(); err != nil {
		return err
	}

	return c.restartWatch(ctx, name)
}

// restartWatch launches the container's file watcher over every indexed
// root, tearing down any previous watcher first. Safe to call with the
// container already watching (it restarts cleanly), matching the "restart
// on active-container switch / embedder reload / bulk index completion"
// rule.
func (c *Core) restartWatch(ctx context.Context, name string) error {
	cs, ok := c.containers[name]
	if !ok {
		return newError(KindInvalidInput, "unknown container %q", name)
	}
	c.stopWatch(cs)

	info := c.cfg.Containers[name]
	roots := absRoots(info)
	if len(roots) == 0 {
		return nil
	}

	h, err := watcher.NewHybridWatcher(watcher.Options{DebounceWindow: 500 * time.Millisecond})
	if err != nil {
		return newError(KindFatal, "create watcher: %v", err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	cs.watch = h
	cs.watchCancel = cancel
	cs.watchDone = done

	for _, root := range roots {
		if err := h.Start(watchCtx, root); err != nil {
			slog.Warn("watcher failed to start", slog.String("root", root), slog.String("error", err.Error()))
		}
	}

	go c.watchLoop(watchCtx, name, h, done)
	return nil
}

// watchLoop single-flights incremental re-indexing: each debounced batch
// is handled to completion (under the container's flock-backed re-index
// lock) before the next batch is read from the channel, so a burst
// arriving mid-reindex simply waits in the channel buffer.
func (c *Core) watchLoop(ctx context.Context, name string, h *watcher.HybridWatcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case events, ok := <-h.Events():
			if !ok {
				return
			}
			c.mu.Lock()
			cs, exists := c.containers[name]
			info := c.cfg.Containers[name]
			c.mu.Unlock()
			if !exists {
				continue
			}
			c.handleWatchBatch(ctx, cs, info, events)
		case err, ok := <-h.Errors():
			if !ok {
				continue
			}
			slog.Warn("watcher error", slog.String("container", name), slog.String("error", err.Error()))
		}
	}
}

func (c *Core) handleWatchBatch(ctx context.Context, cs *containerState, info config.ContainerInfo, events []watcher.FileEvent) {
	unlock, err := c.acquireReindexLock(cs)
	if err != nil {
		slog.Warn("skipping watch batch, reindex lock busy", slog.String("error", err.Error()))
		return
	}
	defer unlock()

	cs.indexMu.Lock()
	defer cs.indexMu.Unlock()

	root := primaryRoot(info)
	coordinator := c.coordinatorFor(cs, root)
	if err := coordinator.HandleEvents(ctx, events); err != nil {
		slog.Warn("incremental reindex failed", slog.String("error", err.Error()))
	}
}

func primaryRoot(info config.ContainerInfo) string {
	if len(info.IndexedPaths) == 0 {
		return ""
	}
	abs, err := filepath.Abs(info.IndexedPaths[0])
	if err != nil {
		return info.IndexedPaths[0]
	}
	return abs
}

// stopWatch tears down a container's watcher, if one is running.
func (c *Core) stopWatch(cs *containerState) {
	if cs.watch == nil {
		return
	}
	if cs.watchCancel != nil {
		cs.watchCancel()
	}
	_ = cs.watch.Stop()
	if cs.watchDone != nil {
		<-cs.watchDone
	}
	cs.watch = nil
	cs.watchCancel = nil
	cs.watchDone = nil
}

// reindexLockPath is where a container's flock-backed single-flight guard
// lives, one level above its table directory so it survives a table
// rebuild.
func (c *Core) reindexLockPath(name string) string {
	return filepath.Join(c.dataDir, config.TableName(name)+".lock")
}

// ensureLockDir makes sure the lock file's parent directory exists.
func (c *Core) ensureLockDir(name string) error {
	return os.MkdirAll(filepath.Dir(c.reindexLockPath(name)), 0o755)
}
