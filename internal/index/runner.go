// Package index implements the indexing pipeline: scanning a directory,
// chunking its files, embedding the chunks, and writing them to a
// container's table.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rememex/rememex/internal/chunk"
	"github.com/rememex/rememex/internal/config"
	"github.com/rememex/rememex/internal/fileio"
	"github.com/rememex/rememex/internal/gitignore"
	"github.com/rememex/rememex/internal/history"
	"github.com/rememex/rememex/internal/scanner"
	"github.com/rememex/rememex/internal/search"
	"github.com/rememex/rememex/internal/store"
	"github.com/rememex/rememex/internal/ui"
)

// embedBatchSize is the number of chunks accumulated across files before
// a batch is embedded and written, ported verbatim from the original's
// EMBED_BATCH_SIZE.
const embedBatchSize = 256

// annIndexThreshold mirrors the original's ANN_INDEX_THRESHOLD. The HNSW
// store underlying store.Table indexes every vector as it's added
// regardless of count, so this value is only used for the informational
// log line that used to gate an explicit "build ANN index" step.
const annIndexThreshold = 256

// imageExtensions are dispatched through the optional OCR extractor and
// excluded from git-history enrichment.
var imageExtensions = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "bmp": true,
	"tiff": true, "tif": true, "gif": true, "webp": true,
}

// RunnerConfig configures a full indexing run over one root directory.
type RunnerConfig struct {
	// Root is the project directory to index.
	Root string

	// ExcludePatterns are additional gitignore-style exclusions layered
	// on top of .gitignore/.rcignore (from container config).
	ExcludePatterns []string

	// MaxFileSize caps individual file size eligible for indexing
	// (0 = fileio.MaxFileSize default).
	MaxFileSize int64

	// Indexing carries the container's extension/chunk-size overrides.
	Indexing config.IndexingConfig

	// WithHistory appends recent git commit subjects to non-image files.
	WithHistory bool
}

// RunnerResult summarizes the outcome of a Run.
type RunnerResult struct {
	Files    int
	Chunks   int
	Duration time.Duration
	Errors   int
	Warnings int
}

// RunnerDependencies are the collaborators a Runner needs. Engine,
// Renderer and Table are required; History is optional (nil disables
// git-history enrichment regardless of RunnerConfig.WithHistory).
type RunnerDependencies struct {
	Renderer ui.Renderer
	Engine   *search.Engine
	Table    *store.Table
	History  *history.Provider
}

// Runner executes indexing operations with progress reporting.
type Runner struct {
	renderer ui.Renderer
	engine   *search.Engine
	table    *store.Table
	history  *history.Provider
}

// NewRunner creates a Runner with injected dependencies.
func NewRunner(deps RunnerDependencies) (*Runner, error) {
	if deps.Renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if deps.Table == nil {
		return nil, fmt.Errorf("table is required")
	}
	return &Runner{
		renderer: deps.Renderer,
		engine:   deps.Engine,
		table:    deps.Table,
		history:  deps.History,
	}, nil
}

// extractedFile is a chunked, not-yet-embedded file, the Go analogue of
// the original's ExtractedFile.
type extractedFile struct {
	path    string
	ext     string
	chunks  []string
	mtime   time.Time
	isImage bool
}

// Run scans cfg.Root, chunks every changed file, embeds the chunks in
// batches of embedBatchSize, and writes them to the table. Files whose
// mtime matches what's already indexed are skipped.
func (r *Runner) Run(ctx context.Context, cfg RunnerConfig) (*RunnerResult, error) {
	start := time.Now()
	var warnings int

	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageScanning,
		Message: fmt.Sprintf("Scanning %s...", cfg.Root),
	})
	slog.Info("index_scan_started", slog.String("path", cfg.Root))

	existingMTimes, err := r.table.AllPathsAndMTimes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load existing mtimes: %w", err)
	}

	files, err := r.scanFiles(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		r.renderer.Complete(ui.CompletionStats{Duration: time.Since(start)})
		return &RunnerResult{Duration: time.Since(start)}, nil
	}

	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageChunking,
		Total:   len(files),
		Message: "Extracting and chunking files...",
	})

	reader := fileio.NewReader(cfg.Indexing, nil, nil)
	extracted, warnCount := r.extractFiles(ctx, files, cfg, reader, existingMTimes)
	warnings += warnCount

	if len(extracted) == 0 {
		r.renderer.Complete(ui.CompletionStats{
			Files:    len(files),
			Duration: time.Since(start),
			Warnings: warnings,
		})
		return &RunnerResult{Files: len(files), Duration: time.Since(start), Warnings: warnings}, nil
	}

	totalChunks, err := r.embedAndWrite(ctx, extracted)
	if err != nil {
		return nil, err
	}

	totalIndexed := len(files) - countImages(files) + len(extracted)
	if totalIndexed >= annIndexThreshold {
		slog.Info("index_ann_threshold_reached", slog.Int("indexed", totalIndexed))
	}

	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageIndexing,
		Message: "Finalizing search index...",
	})

	duration := time.Since(start)
	r.renderer.Complete(ui.CompletionStats{
		Files:    len(extracted),
		Chunks:   totalChunks,
		Duration: duration,
		Warnings: warnings,
	})

	slog.Info("index_complete",
		slog.Int("files", len(extracted)),
		slog.Int("chunks", totalChunks),
		slog.String("duration", duration.String()),
		slog.String("path", cfg.Root))

	return &RunnerResult{
		Files:    len(extracted),
		Chunks:   totalChunks,
		Duration: duration,
		Warnings: warnings,
	}, nil
}

// scanFiles walks cfg.Root respecting .gitignore and a root-level
// .rcignore, the Go equivalent of the original's WalkBuilder with
// add_custom_ignore_filename(".rcignore").
func (r *Runner) scanFiles(ctx context.Context, cfg RunnerConfig) ([]*scanner.FileInfo, error) {
	exclude := append([]string{}, cfg.ExcludePatterns...)
	exclude = append(exclude, rcignorePatterns(cfg.Root)...)

	s, err := scanner.New()
	if err != nil {
		return nil, fmt.Errorf("create scanner: %w", err)
	}

	maxSize := cfg.MaxFileSize
	if maxSize == 0 {
		maxSize = fileio.MaxFileSize
	}

	results, err := s.Scan(ctx, &scanner.ScanOptions{
		RootDir:          cfg.Root,
		ExcludePatterns:  exclude,
		RespectGitignore: true,
		Workers:          runtime.NumCPU(),
		MaxFileSize:      maxSize,
	})
	if err != nil {
		return nil, fmt.Errorf("start scan: %w", err)
	}

	var files []*scanner.FileInfo
	for res := range results {
		if res.Error != nil {
			r.renderer.AddError(ui.ErrorEvent{Err: res.Error, IsWarn: true})
			continue
		}
		files = append(files, res.File)
	}

	slog.Info("index_scan_complete", slog.Int("files", len(files)))
	return files, nil
}

// rcignorePatterns reads root/.rcignore, if present, returning its
// patterns for use as additional scanner exclusions.
func rcignorePatterns(root string) []string {
	data, err := os.ReadFile(filepath.Join(root, ".rcignore"))
	if err != nil {
		return nil
	}
	return gitignore.ParsePatterns(string(data))
}

func countImages(files []*scanner.FileInfo) int {
	n := 0
	for _, f := range files {
		if imageExtensions[strings.TrimPrefix(strings.ToLower(filepath.Ext(f.Path)), ".")] {
			n++
		}
	}
	return n
}

// extractFiles reads, optionally enriches with git history, and chunks
// every file whose mtime differs from what's already indexed. Extraction
// runs with bounded parallelism via errgroup, mirroring the original's
// rayon par_iter over non-image files plus its sequential OCR pass over
// image files (OCR itself isn't bundled here; image files without a
// configured extractor simply produce no text and are skipped).
func (r *Runner) extractFiles(
	ctx context.Context,
	files []*scanner.FileInfo,
	cfg RunnerConfig,
	reader *fileio.Reader,
	existingMTimes map[string]time.Time,
) ([]*extractedFile, int) {
	type result struct {
		file *extractedFile
		warn bool
	}

	results := make([]result, len(files))
	var warnings int

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			ef, warn := r.extractOne(gctx, f, cfg, reader, existingMTimes)
			results[i] = result{file: ef, warn: warn}
			return nil
		})
	}
	_ = g.Wait()

	var extracted []*extractedFile
	for i, res := range results {
		if res.warn {
			warnings++
		}
		if res.file != nil {
			extracted = append(extracted, res.file)
		}
		r.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:       ui.StageChunking,
			Current:     i + 1,
			Total:       len(files),
			CurrentFile: files[i].Path,
		})
	}

	slog.Info("index_chunking_complete", slog.Int("extracted", len(extracted)), slog.Int("scanned", len(files)))
	return extracted, warnings
}

func (r *Runner) extractOne(
	ctx context.Context,
	f *scanner.FileInfo,
	cfg RunnerConfig,
	reader *fileio.Reader,
	existingMTimes map[string]time.Time,
) (*extractedFile, bool) {
	mtime := fileio.MTime(f.AbsPath)
	if existing, ok := existingMTimes[f.Path]; ok && existing.Equal(mtime) {
		return nil, false
	}

	text, ok := reader.ReadContent(ctx, f.AbsPath)
	if !ok || strings.TrimSpace(text) == "" {
		return nil, false
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(f.Path)), ".")
	isImage := imageExtensions[ext]

	if cfg.WithHistory && r.history != nil && !isImage {
		if ctxBlock, ok := r.history.CommitContext(cfg.Root, f.AbsPath); ok {
			text += ctxBlock
		}
	}

	chunks := chunk.SemanticChunkWithOverrides(text, ext, cfg.Indexing.ChunkSize, cfg.Indexing.ChunkOverlap)
	if len(chunks) == 0 {
		return nil, false
	}

	base := filepath.Base(f.Path)
	for i, c := range chunks {
		chunks[i] = "File: " + base + "\n" + c
	}

	return &extractedFile{path: f.Path, ext: ext, chunks: chunks, mtime: mtime, isImage: isImage}, false
}

// embedAndWrite deletes each file's previous rows, accumulates its
// chunks into a pending batch, and flushes that batch through the engine
// every embedBatchSize chunks, mirroring the original's pending_chunks
// accumulator and its two flush sites (mid-loop and trailing remainder).
func (r *Runner) embedAndWrite(ctx context.Context, files []*extractedFile) (int, error) {
	var pending []store.Row
	var totalChunks int
	var batchesWritten int

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		batchesWritten++
		r.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageEmbedding,
			Current: totalChunks,
			Message: fmt.Sprintf("Embedding batch %d", batchesWritten),
		})
		if err := r.engine.Index(ctx, pending); err != nil {
			return fmt.Errorf("embed batch %d: %w", batchesWritten, err)
		}
		pending = nil
		return nil
	}

	for idx, ef := range files {
		select {
		case <-ctx.Done():
			return totalChunks, ctx.Err()
		default:
		}

		if _, err := r.engine.Delete(ctx, ef.path); err != nil {
			slog.Warn("failed to clear previous chunks", slog.String("path", ef.path), slog.String("error", err.Error()))
		}

		for _, content := range ef.chunks {
			pending = append(pending, store.Row{
				ChunkID: store.RowID(ef.path, content),
				Path:    ef.path,
				Content: content,
				MTime:   ef.mtime,
				Ext:     ef.ext,
			})
			totalChunks++
		}

		if len(pending) >= embedBatchSize {
			if err := flush(); err != nil {
				return totalChunks, err
			}
		}

		r.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageEmbedding,
			Current: idx + 1,
			Total:   len(files),
		})
	}

	if err := flush(); err != nil {
		return totalChunks, err
	}

	return totalChunks, nil
}

// IndexFile indexes (or re-indexes) a single file, the Go analogue of
// the original's index_single_file. It returns false if the file
// doesn't exist, is unreadable, or is unchanged since it was last
// indexed.
func (r *Runner) IndexFile(ctx context.Context, root, path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false, nil
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}

	mtime := fileio.MTime(path)
	if existing, ok, err := r.table.MTimeOf(ctx, rel); err == nil && ok && existing.Equal(mtime) {
		return false, nil
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	reader := fileio.NewReader(config.IndexingConfig{}, nil, nil)
	text, ok := reader.ReadContent(ctx, path)
	if !ok || strings.TrimSpace(text) == "" {
		return false, nil
	}

	if r.history != nil && !imageExtensions[ext] {
		if ctxBlock, ok := r.history.CommitContext(root, path); ok {
			text += ctxBlock
		}
	}

	chunks := chunk.SemanticChunk(text, ext)
	if len(chunks) == 0 {
		return false, nil
	}

	base := filepath.Base(rel)
	rows := make([]store.Row, len(chunks))
	for i, c := range chunks {
		content := "File: " + base + "\n" + c
		rows[i] = store.Row{
			ChunkID: store.RowID(rel, content),
			Path:    rel,
			Content: content,
			MTime:   mtime,
			Ext:     ext,
		}
	}

	if _, err := r.engine.Delete(ctx, rel); err != nil {
		slog.Warn("failed to clear previous chunks", slog.String("path", rel), slog.String("error", err.Error()))
	}

	if err := r.engine.Index(ctx, rows); err != nil {
		return false, fmt.Errorf("index file: %w", err)
	}

	return true, nil
}

// DeleteFile removes every indexed chunk for path, the Go analogue of
// the original's delete_file_from_index. Deleting a path that was never
// indexed is not an error.
func (r *Runner) DeleteFile(ctx context.Context, path string) error {
	_, err := r.engine.Delete(ctx, path)
	return err
}

// Close releases resources held by the Runner.
func (r *Runner) Close() error {
	return nil
}
