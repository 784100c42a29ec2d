package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ReadFile returns the text of path, optionally sliced to [startLine,
// endLine] (1-indexed, inclusive, 0 means unbounded). Refuses any path
// that does not canonicalize into one of some container's indexed roots.
func (c *Core) ReadFile(path string, startLine, endLine int) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", newError(KindInvalidInput, "resolve path %q: %v", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		resolved = abs
	}

	c.mu.Lock()
	allowed := c.pathUnderAnyRoot(resolved)
	c.mu.Unlock()
	if !allowed {
		return "", newError(KindAccessDenied, "path %q is outside every indexed root", path)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", newError(KindInvalidInput, "read %q: %v", path, err)
	}

	if startLine <= 0 && endLine <= 0 {
		return string(data), nil
	}

	lines := strings.Split(string(data), "\n")
	start := startLine - 1
	if start < 0 {
		start = 0
	}
	end := endLine
	if end <= 0 || end > len(lines) {
		end = len(lines)
	}
	if start >= end {
		return "", nil
	}
	return strings.Join(lines[start:end], "\n"), nil
}

// pathUnderAnyRoot reports whether resolved falls under some configured
// container's indexed roots. Must be called with c.mu held.
func (c *Core) pathUnderAnyRoot(resolved string) bool {
	for _, info := range c.cfg.Containers {
		for _, root := range absRoots(info) {
			if resolved == root {
				return true
			}
			if strings.HasPrefix(resolved, root+string(filepath.Separator)) {
				return true
			}
		}
	}
	return false
}

// ListFiles lists indexed paths in container (the active one if empty),
// optionally filtered by prefix and/or extension.
func (c *Core) ListFiles(containerName, pathPrefix string, extensions []string) ([]string, error) {
	c.mu.Lock()
	resolved, err := c.requireContainerName(containerName)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	cs, err := c.containerFor(resolved)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	pathsByMTime, err := cs.table.AllPathsAndMTimes(context.Background())
	if err != nil {
		return nil, newError(KindProviderUnavailable, "list files: %v", err)
	}

	extSet := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		extSet[strings.ToLower(strings.TrimPrefix(e, "."))] = true
	}

	out := make([]string, 0, len(pathsByMTime))
	for path := range pathsByMTime {
		if pathPrefix != "" && !strings.HasPrefix(path, pathPrefix) {
			continue
		}
		if len(extSet) > 0 && !extSet[strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))] {
			continue
		}
		out = append(out, path)
	}
	sortStrings(out)
	return out, nil
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// FileChange describes one file's change within a Diff window.
type FileChange struct {
	Path      string
	Additions int
	Deletions int
	Preview   string
}

// Diff reports files changed across commits within sinceDuration of now,
// in container's primary indexed root (the active container if empty).
func (c *Core) Diff(sinceDurationStr, containerName string, showPreview bool) ([]FileChange, error) {
	cutoff, err := ParseDuration(sinceDurationStr)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	resolved, err := c.requireContainerName(containerName)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	root := primaryRoot(c.cfg.Containers[resolved])
	c.mu.Unlock()

	if root == "" {
		return nil, newError(KindNotIndexed, "container %q has no indexed roots", resolved)
	}

	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, newError(KindInvalidInput, "container root %q is not a git repository: %v", root, err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, newError(KindTransient, "read repository head: %v", err)
	}

	commitIter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, newError(KindTransient, "walk commit history: %v", err)
	}
	defer commitIter.Close()

	since := time.Now().Add(-cutoff)
	changesByPath := make(map[string]*FileChange)
	var order []string

	err = commitIter.ForEach(func(commit *object.Commit) error {
		if commit.Author.When.Before(since) {
			return errStopWalk
		}
		stats, statErr := commit.Stats()
		if statErr != nil {
			return nil
		}
		for _, stat := range stats {
			fc, ok := changesByPath[stat.Name]
			if !ok {
				fc = &FileChange{Path: stat.Name}
				changesByPath[stat.Name] = fc
				order = append(order, stat.Name)
			}
			fc.Additions += stat.Addition
			fc.Deletions += stat.Deletion
		}
		return nil
	})
	if err != nil && err != errStopWalk {
		return nil, newError(KindTransient, "read commit diffs: %v", err)
	}

	out := make([]FileChange, 0, len(order))
	for _, path := range order {
		fc := *changesByPath[path]
		if showPreview {
			fc.Preview = previewFile(root, path)
		}
		out = append(out, fc)
	}
	return out, nil
}

var errStopWalk = fmt.Errorf("core: stop commit walk")

func previewFile(root, relPath string) string {
	data, err := os.ReadFile(filepath.Join(root, relPath))
	if err != nil {
		return ""
	}
	const maxPreviewBytes = 500
	if len(data) > maxPreviewBytes {
		data = data[:maxPreviewBytes]
	}
	return string(data)
}
