// Package workspace resolves workspace roots and finds package
// descriptors in a source tree.
package workspace

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	ignore "github.com/sabhiram/go-gitignore"
)

// DefaultMarker is the directory entry that identifies a workspace root.
const DefaultMarker = ".git"

// DefaultDescriptor is the file name of a package build descriptor.
const DefaultDescriptor = "build.pkg"

var skipDirs = map[string]struct{}{
	"node_modules": {},
	".git":         {},
	".hg":          {},
	".svn":         {},
	"build":        {},
	"dist":         {},
	".cache":       {},
	".ccache":      {},
}

// Resolver maps a directory to its workspace root by walking up to the
// first directory containing the marker entry. Lookups are cached, since
// generating databases for a whole tree resolves many sibling
// descriptors against the same few roots.
type Resolver struct {
	marker string
	cache  *lru.Cache[string, string]
}

// NewResolver returns a Resolver for the given marker. An empty marker
// means DefaultMarker.
func NewResolver(marker string) (*Resolver, error) {
	if marker == "" {
		marker = DefaultMarker
	}
	cache, err := lru.New[string, string](256)
	if err != nil {
		return nil, err
	}
	return &Resolver{marker: marker, cache: cache}, nil
}

// Root returns the workspace root for start: the nearest ancestor
// directory (including start itself) containing the marker, or start
// when no ancestor has one. The result is always absolute.
func (r *Resolver) Root(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	if root, ok := r.cache.Get(abs); ok {
		return root, nil
	}

	root := abs
	for dir := abs; ; {
		if _, err := os.Stat(filepath.Join(dir, r.marker)); err == nil {
			root = dir
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	r.cache.Add(abs, root)
	return root, nil
}

// Descriptors walks root and returns every package descriptor file named
// name, sorted, as paths relative to root. Hidden directories, common
// build output directories, and paths matched by the workspace's
// .gitignore are skipped.
func Descriptors(root, name string) ([]string, error) {
	if name == "" {
		name = DefaultDescriptor
	}
	gi := loadGitignore(root)

	var results []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}

		base := d.Name()
		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[base]; skip || strings.HasPrefix(base, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if base != name {
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}

		results = append(results, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(results)
	return results, nil
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
