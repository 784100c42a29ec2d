// Package history appends recent commit subjects for a file to its
// indexed content, giving semantic search a sliver of "why this file
// changed" alongside "what it contains".
//
// Ground truth: indexer/git.rs's get_commit_context, which shells out to
// `git log --format=%s -n 50 -- <file>` from the file's parent directory.
// Here the same 50-subject-lookback is served by go-git instead of a
// shelled-out git binary.
package history

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// MaxCommits bounds how many recent commits touching a file are scanned
// for a non-empty message, matching the original's "-n 50".
const MaxCommits = 50

// Provider reads recent commit subjects for files under a repository
// root. It is safe for concurrent use; repository handles are opened
// once per root and reused.
type Provider struct {
	mu    sync.Mutex
	repos map[string]*git.Repository
}

// NewProvider creates an empty history provider.
func NewProvider() *Provider {
	return &Provider{repos: make(map[string]*git.Repository)}
}

// CommitContext returns a "\n[git history]\n<subject>\n<subject>..."
// block for path, or ("", false) if path isn't inside a git repository,
// has no history, or git metadata can't be read. root is the directory
// to start the repository search from (typically the indexed root).
func (p *Provider) CommitContext(root, path string) (string, bool) {
	repo, ok := p.repoFor(root)
	if !ok {
		return "", false
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)

	head, err := repo.Head()
	if err != nil {
		return "", false
	}

	commitIter, err := repo.Log(&git.LogOptions{From: head.Hash(), FileName: &rel})
	if err != nil {
		return "", false
	}
	defer commitIter.Close()

	var messages []string
	scanned := 0
	err = commitIter.ForEach(func(c *object.Commit) error {
		if scanned >= MaxCommits {
			return errStop
		}
		scanned++
		subject := strings.TrimSpace(firstLine(c.Message))
		if subject != "" {
			messages = append(messages, subject)
		}
		return nil
	})
	if err != nil && err != errStop {
		return "", false
	}

	if len(messages) == 0 {
		return "", false
	}

	return "\n[git history]\n" + strings.Join(messages, "\n"), true
}

var errStop = stopIteration{}

type stopIteration struct{}

func (stopIteration) Error() string { return "history: stop iteration" }

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// repoFor opens (or reuses) the git repository containing root.
func (p *Provider) repoFor(root string) (*git.Repository, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if repo, ok := p.repos[root]; ok {
		return repo, repo != nil
	}

	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		p.repos[root] = nil
		return nil, false
	}

	p.repos[root] = repo
	return repo, true
}
