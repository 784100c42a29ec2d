package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rememex/rememex/internal/config"
	"github.com/rememex/rememex/internal/core"
)

// CompactionManager runs automatic background compaction of each
// container's vector index.
//
// Compaction runs when a container:
//  1. Goes idle (no searches for IdleTimeout)
//  2. Has an orphan ratio (lazily-deleted HNSW nodes / total nodes)
//     above OrphanThreshold, with at least MinOrphanCount orphans
//  3. Hasn't been compacted within the last Cooldown period
//
// Any search against a container cancels its in-flight compaction.
type CompactionManager struct {
	cfg  config.CompactionConfig
	core *core.Core

	mu         sync.Mutex
	containers map[string]*compactionState

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

type compactionState struct {
	lastSearch  time.Time
	lastCompact time.Time
	idleTimer   *time.Timer
	compacting  bool
	cancelFunc  context.CancelFunc
}

// NewCompactionManager creates a compaction manager bound to c.
func NewCompactionManager(c *core.Core, cfg config.CompactionConfig) *CompactionManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &CompactionManager{
		cfg:        cfg,
		core:       c,
		containers: make(map[string]*compactionState),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// NoteSearch records activity against name, resetting its idle timer and
// cancelling any in-flight compaction for it.
func (m *CompactionManager) NoteSearch(name string) {
	if !m.cfg.Enabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.containers[name]
	if !ok {
		st = &compactionState{}
		m.containers[name] = st
	}
	st.lastSearch = time.Now()

	if st.compacting && st.cancelFunc != nil {
		st.cancelFunc()
	}

	if st.idleTimer != nil {
		st.idleTimer.Stop()
	}
	st.idleTimer = time.AfterFunc(m.cfg.IdleTimeout, func() {
		m.maybeCompact(name)
	})
}

// maybeCompact checks name's eligibility and runs compaction if its
// orphan ratio clears the configured threshold.
func (m *CompactionManager) maybeCompact(name string) {
	m.mu.Lock()
	st, ok := m.containers[name]
	if !ok {
		m.mu.Unlock()
		return
	}
	if st.compacting || time.Since(st.lastCompact) < m.cfg.Cooldown {
		m.mu.Unlock()
		return
	}

	stats, err := m.core.IndexStatus(name)
	if err != nil {
		m.mu.Unlock()
		return
	}
	total := stats.VectorCount
	if total == 0 {
		m.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(m.ctx)
	st.compacting = true
	st.cancelFunc = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()

		orphans, err := m.core.CompactContainer(ctx, name, m.cfg.OrphanThreshold, m.cfg.MinOrphanCount)
		m.mu.Lock()
		st.compacting = false
		st.cancelFunc = nil
		if err == nil && orphans > 0 {
			st.lastCompact = time.Now()
			slog.Info("compacted container", slog.String("container", name), slog.Int("orphans_removed", orphans))
		} else if err != nil {
			slog.Warn("compaction failed", slog.String("container", name), slog.String("error", err.Error()))
		}
		m.mu.Unlock()
	}()
}

// Stop cancels any in-flight compaction and waits for it to return.
func (m *CompactionManager) Stop() {
	m.stopOnce.Do(func() {
		m.cancel()
		m.mu.Lock()
		for _, st := range m.containers {
			if st.idleTimer != nil {
				st.idleTimer.Stop()
			}
		}
		m.mu.Unlock()
		m.wg.Wait()
	})
}
