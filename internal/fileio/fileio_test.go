package fileio

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rememex/rememex/internal/config"
	"github.com/stretchr/testify/require"
)

func TestIsTextExtension(t *testing.T) {
	require.True(t, IsTextExtension("py"))
	require.True(t, IsTextExtension("TSX"))
	require.True(t, IsTextExtension("rs"))
	require.True(t, IsTextExtension("sql"))
	require.False(t, IsTextExtension("exe"))
	require.False(t, IsTextExtension("png"))
}

func TestIsTextExtensionWithConfigExcludes(t *testing.T) {
	cfg := config.IndexingConfig{ExcludedExtensions: []string{"go"}, ExtraExtensions: []string{"foo"}}
	require.False(t, IsTextExtensionWithConfig("go", cfg))
	require.True(t, IsTextExtensionWithConfig("foo", cfg))
	require.True(t, IsTextExtensionWithConfig("py", cfg))
}

func TestReaderReadsIndexableFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(p, []byte("package main"), 0o644))

	r := NewReader(config.IndexingConfig{}, nil, nil)
	content, ok := r.ReadContent(context.Background(), p)
	require.True(t, ok)
	require.Equal(t, "package main", content)
}

func TestReaderRejectsBinaryExtension(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "prog.exe")
	require.NoError(t, os.WriteFile(p, []byte{0x00, 0x01}, 0o644))

	r := NewReader(config.IndexingConfig{}, nil, nil)
	_, ok := r.ReadContent(context.Background(), p)
	require.False(t, ok)
}

func TestReaderReadsDotfileByName(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "Dockerfile")
	require.NoError(t, os.WriteFile(p, []byte("FROM scratch"), 0o644))

	r := NewReader(config.IndexingConfig{}, nil, nil)
	content, ok := r.ReadContent(context.Background(), p)
	require.True(t, ok)
	require.Equal(t, "FROM scratch", content)
}

func TestReaderRejectsOversizedFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "big.txt")
	require.NoError(t, os.WriteFile(p, make([]byte, MaxFileSize+1), 0o644))

	r := NewReader(config.IndexingConfig{}, nil, nil)
	_, ok := r.ReadContent(context.Background(), p)
	require.False(t, ok)
}

func TestReaderPDFWithoutExtractorNotIndexable(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(p, []byte("%PDF-1.4"), 0o644))

	r := NewReader(config.IndexingConfig{}, nil, nil)
	_, ok := r.ReadContent(context.Background(), p)
	require.False(t, ok)
}
