package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func collectPaths(t *testing.T, results <-chan ScanResult) []string {
	t.Helper()
	var paths []string
	for r := range results {
		require.NoError(t, r.Error)
		paths = append(paths, r.File.Path)
	}
	sort.Strings(paths)
	return paths
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestScanDiscoversFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n")
	writeFile(t, root, "sub/helper.go", "package sub\n")
	writeFile(t, root, "node_modules/pkg/index.js", "module.exports = {}\n")

	s, err := New()
	require.NoError(t, err)

	results, err := s.Scan(context.Background(), &ScanOptions{RootDir: root})
	require.NoError(t, err)

	paths := collectPaths(t, results)
	require.Contains(t, paths, "main.go")
	require.Contains(t, paths, filepath.Join("sub", "helper.go"))
	require.NotContains(t, paths, filepath.Join("node_modules", "pkg", "index.js"))
}

func TestScanRespectsGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "secret.txt\n")
	writeFile(t, root, "secret.txt", "shh\n")
	writeFile(t, root, "public.txt", "hello\n")

	s, err := New()
	require.NoError(t, err)

	results, err := s.Scan(context.Background(), &ScanOptions{RootDir: root, RespectGitignore: true})
	require.NoError(t, err)

	paths := collectPaths(t, results)
	require.Contains(t, paths, "public.txt")
	require.NotContains(t, paths, "secret.txt")
}

func TestScanExcludesSensitiveFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".env", "SECRET=1\n")
	writeFile(t, root, "id_rsa", "key\n")
	writeFile(t, root, "README.md", "# hi\n")

	s, err := New()
	require.NoError(t, err)

	results, err := s.Scan(context.Background(), &ScanOptions{RootDir: root})
	require.NoError(t, err)

	paths := collectPaths(t, results)
	require.Contains(t, paths, "README.md")
	require.NotContains(t, paths, ".env")
	require.NotContains(t, paths, "id_rsa")
}

func TestScanSkipsOversizedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "big.txt", string(make([]byte, 2048)))
	writeFile(t, root, "small.txt", "ok\n")

	s, err := New()
	require.NoError(t, err)

	results, err := s.Scan(context.Background(), &ScanOptions{RootDir: root, MaxFileSize: 1024})
	require.NoError(t, err)

	paths := collectPaths(t, results)
	require.Contains(t, paths, "small.txt")
	require.NotContains(t, paths, "big.txt")
}

func TestScanSubtreeReturnsRootRelativePaths(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a/one.go", "package a\n")
	writeFile(t, root, "a/two.go", "package a\n")
	writeFile(t, root, "b/three.go", "package b\n")

	s, err := New()
	require.NoError(t, err)

	results, err := s.ScanSubtree(context.Background(), &ScanOptions{RootDir: root}, "a")
	require.NoError(t, err)

	paths := collectPaths(t, results)
	require.Equal(t, []string{filepath.Join("a", "one.go"), filepath.Join("a", "two.go")}, paths)
}

func TestDetectLanguageAndContentType(t *testing.T) {
	require.Equal(t, "go", DetectLanguage("main.go"))
	require.Equal(t, ContentTypeCode, DetectContentType(DetectLanguage("main.go")))
	require.Equal(t, "markdown", DetectLanguage("README.md"))
	require.Equal(t, ContentTypeMarkdown, DetectContentType(DetectLanguage("README.md")))
	require.Equal(t, "dockerfile", DetectLanguage("Dockerfile"))
	require.Equal(t, "", DetectLanguage("noext"))
}
