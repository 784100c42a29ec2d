package gitignore

import (
	"os"
	"path/filepath"
)

// BuildForRoots loads .gitignore and .rcignore from each indexed root
// into a single Matcher. Missing files are skipped silently; a root with
// neither file contributes no rules.
func BuildForRoots(roots []string) *Matcher {
	m := New()
	for _, root := range roots {
		for _, name := range []string{".gitignore", ".rcignore"} {
			p := filepath.Join(root, name)
			if _, err := os.Stat(p); err == nil {
				_ = m.AddFromFile(p, root)
			}
		}
	}
	return m
}
