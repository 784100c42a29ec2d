// Package fileio reads candidate files off disk, deciding what's
// indexable text and extracting it, capped at a maximum size.
package fileio

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rememex/rememex/internal/config"
)

// MaxFileSize is the hard cap on file size eligible for indexing.
const MaxFileSize = 10 * 1024 * 1024

// textExtensions is the base set of indexable extensions, ported
// verbatim from the original's is_text_extension match arm.
var textExtensions = buildSet([]string{
	"txt", "md", "markdown", "rs", "toml", "json", "jsonc", "json5", "yaml", "yml",
	"js", "mjs", "cjs", "ts", "mts", "cts", "jsx", "tsx",
	"py", "pyi", "pyw", "rb", "erb", "go", "java", "kt", "kts", "scala", "sc",
	"groovy", "gradle", "clj", "cljs", "cljc",
	"c", "cpp", "cc", "cxx", "h", "hpp", "hxx", "hh",
	"cs", "fs", "fsi", "fsx", "vb", "vbs", "swift", "m", "mm", "dart",
	"php", "pl", "pm", "lua", "r", "jl", "ex", "exs", "erl", "hrl", "hs", "lhs",
	"ml", "mli", "elm", "zig", "nim", "v", "d", "sol", "move", "wat", "asm", "s",
	"pas", "lisp", "el", "rkt",
	"html", "htm", "xml", "svg", "css", "scss", "sass", "less", "styl",
	"vue", "svelte", "astro", "pug", "ejs", "hbs", "graphql", "gql", "sql",
	"sh", "bash", "zsh", "fish", "ps1", "bat", "cmd",
	"csv", "tsv", "log", "ini", "cfg", "conf", "env", "properties",
	"dockerfile", "makefile", "cmake", "tf", "tfvars", "hcl", "nix", "proto", "lock",
	"tex", "bib", "rst", "adoc",
})

// dotfileNames are indexable regardless of having no extension.
var dotfileNames = buildSet([]string{
	"dockerfile", "makefile", ".gitignore", ".env", ".editorconfig",
})

func buildSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}

// IsTextExtension reports whether ext (no leading dot, any case) is
// indexable by the base set alone.
func IsTextExtension(ext string) bool {
	return textExtensions[strings.ToLower(ext)]
}

// IsTextExtensionWithConfig applies a container's extra/excluded
// extension overrides on top of the base set.
func IsTextExtensionWithConfig(ext string, cfg config.IndexingConfig) bool {
	ext = strings.ToLower(ext)
	for _, e := range cfg.ExcludedExtensions {
		if strings.EqualFold(e, ext) {
			return false
		}
	}
	if textExtensions[ext] {
		return true
	}
	for _, e := range cfg.ExtraExtensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

func extAndName(path string) (ext, name string) {
	ext = strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	name = strings.ToLower(filepath.Base(path))
	return
}

// PDFExtractor pulls text out of a PDF file. There is no bundled
// implementation: PDF extraction is genuinely OS/library-specific, so
// callers that need it wire a real extractor in; the default treats
// every PDF as not indexable.
type PDFExtractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// ImageTextExtractor performs OCR on an image file.
type ImageTextExtractor interface {
	IsImageExtension(ext string) bool
	ExtractText(ctx context.Context, path string) (string, error)
}

type noopPDFExtractor struct{}

func (noopPDFExtractor) ExtractText(ctx context.Context, path string) (string, error) {
	return "", errNotIndexable
}

var errNotIndexable = errNotIndexableErr("not indexable: no PDF extractor configured")

type errNotIndexableErr string

func (e errNotIndexableErr) Error() string { return string(e) }

// Reader reads candidate files, honoring a container's extension
// overrides and an optional PDF/image extraction capability.
type Reader struct {
	cfg          config.IndexingConfig
	pdf          PDFExtractor
	img          ImageTextExtractor
}

// NewReader creates a Reader. pdf/img may be nil; nil pdf behaves as
// the no-op extractor, nil img disables OCR for images entirely.
func NewReader(cfg config.IndexingConfig, pdf PDFExtractor, img ImageTextExtractor) *Reader {
	if pdf == nil {
		pdf = noopPDFExtractor{}
	}
	return &Reader{cfg: cfg, pdf: pdf, img: img}
}

// ReadContent reads and returns a file's text content, or ("", false)
// if the file is too large or not an indexable type. The type is judged
// by extension and file name only; contents are not inspected, so a
// file with no extension is always read.
func (r *Reader) ReadContent(ctx context.Context, path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil || info.Size() > MaxFileSize {
		return "", false
	}

	ext, name := extAndName(path)

	if r.img != nil && r.img.IsImageExtension(ext) {
		text, err := r.img.ExtractText(ctx, path)
		if err != nil {
			return "", false
		}
		return text, true
	}

	if ext != "" && !IsTextExtensionWithConfig(ext, r.cfg) && !dotfileNames[name] {
		if ext == "pdf" {
			text, err := r.pdf.ExtractText(ctx, path)
			if err != nil {
				return "", false
			}
			return text, true
		}
		return "", false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// MTime returns a file's modification time, or the zero time if it
// cannot be statted.
func MTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
