// Package walker traverses a source tree, applying the ignore policy and
// tagging each candidate file with its language.
package walker

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/jward/lantern/internal/lang"
)

// DefaultIgnoredDirs are directory names skipped regardless of position in
// the tree: dependency stores, build output, caches.
var DefaultIgnoredDirs = map[string]bool{
	"node_modules":       true,
	"bower_components":   true,
	"vendor":             true,
	"venv":               true,
	"env":                true,
	"__pycache__":        true,
	"target":             true,
	"build":              true,
	"dist":               true,
	"out":                true,
	".git":               true,
	".pytest_cache":      true,
	".tox":               true,
	".idea":              true,
	".vscode":            true,
	"site-packages":      true,
	".mypy_cache":        true,
}

// Policy controls which paths a walk yields.
type Policy struct {
	// SkipHidden skips any path with a segment starting with a dot.
	SkipHidden bool

	// IgnoredDirNames are directory names to skip. Nil means
	// DefaultIgnoredDirs.
	IgnoredDirNames map[string]bool

	// MaxFileSize is the per-file size bound in bytes. Zero means no bound.
	MaxFileSize int64

	// AllowedExtensions restricts the walk to these extensions (with
	// leading dot). Nil means every registered extension.
	AllowedExtensions map[string]bool

	// IgnoreGlobs are doublestar patterns matched against the path
	// relative to the walk root; a match skips the file.
	IgnoreGlobs []string
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		SkipHidden:  true,
		MaxFileSize: 1 << 20,
	}
}

func (p Policy) ignoredDir(name string) bool {
	dirs := p.IgnoredDirNames
	if dirs == nil {
		dirs = DefaultIgnoredDirs
	}
	return dirs[name]
}

// Walker yields candidate files under a root. A Walker is restartable: each
// Walk call performs a fresh traversal.
type Walker struct {
	root     string
	policy   Policy
	registry *lang.Registry
}

// New creates a Walker over root. The registry supplies language tags.
func New(root string, policy Policy, registry *lang.Registry) *Walker {
	return &Walker{root: root, policy: policy, registry: registry}
}

// WalkFunc receives one candidate file per call. Returning an error stops
// the walk.
type WalkFunc func(path, language string) error

// Walk traverses the root depth-first in lexical order, calling fn for each
// file that passes the ignore policy and has a registered language. Symlink
// cycles terminate: each physical directory is visited at most once,
// tracked by canonical path.
func (w *Walker) Walk(fn WalkFunc) error {
	info, err := os.Stat(w.root)
	if err != nil {
		return fmt.Errorf("walk root %s: %w", w.root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("walk root %s: not a directory", w.root)
	}
	visited := make(map[string]bool)
	return w.walkDir(w.root, visited, fn)
}

func (w *Walker) walkDir(dir string, visited map[string]bool, fn WalkFunc) error {
	canonical, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return nil // broken link, skip
	}
	if visited[canonical] {
		return nil
	}
	visited[canonical] = true

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil // unreadable subtree, skip
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		name := e.Name()
		full := filepath.Join(dir, name)

		if w.policy.SkipHidden && strings.HasPrefix(name, ".") {
			continue
		}

		isDir := e.IsDir()
		if !isDir && e.Type()&os.ModeSymlink != 0 {
			if target, err := os.Stat(full); err == nil && target.IsDir() {
				isDir = true
			}
		}

		if isDir {
			if w.policy.ignoredDir(name) {
				continue
			}
			if err := w.walkDir(full, visited, fn); err != nil {
				return err
			}
			continue
		}

		if err := w.visitFile(full, e, fn); err != nil {
			return err
		}
	}
	return nil
}

func (w *Walker) visitFile(full string, e os.DirEntry, fn WalkFunc) error {
	ext := strings.ToLower(filepath.Ext(full))
	if w.policy.AllowedExtensions != nil && !w.policy.AllowedExtensions[ext] {
		return nil
	}
	cap, ok := w.registry.ForFile(full)
	if !ok {
		return nil
	}
	if w.policy.MaxFileSize > 0 {
		if info, err := e.Info(); err != nil || info.Size() > w.policy.MaxFileSize {
			return nil
		}
	}
	if len(w.policy.IgnoreGlobs) > 0 {
		rel, err := filepath.Rel(w.root, full)
		if err == nil {
			rel = filepath.ToSlash(rel)
			for _, pattern := range w.policy.IgnoreGlobs {
				if matched, _ := doublestar.Match(pattern, rel); matched {
					return nil
				}
			}
		}
	}
	return fn(full, cap.Language)
}

// List collects the full walk into candidates. RelPath is slash-separated
// and relative to the walk root; it is the identity used for modules.
func (w *Walker) List() ([]Candidate, error) {
	var out []Candidate
	err := w.Walk(func(path, language string) error {
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			rel = path
		}
		out = append(out, Candidate{
			Path:     path,
			RelPath:  filepath.ToSlash(rel),
			Language: language,
		})
		return nil
	})
	return out, err
}

// Candidate is one file the walk produced.
type Candidate struct {
	Path     string
	RelPath  string
	Language string
}

// projectMarkers maps build/config marker files to a project type label.
var projectMarkers = []struct {
	file string
	kind string
}{
	{"go.mod", "go"},
	{"package.json", "javascript"},
	{"tsconfig.json", "typescript"},
	{"pyproject.toml", "python"},
	{"setup.py", "python"},
	{"requirements.txt", "python"},
	{"Cargo.toml", "rust"},
	{"pom.xml", "java"},
	{"build.gradle", "java"},
	{"Gemfile", "ruby"},
	{"composer.json", "php"},
}

// DetectProjectType inspects marker files at the root and returns a label
// like "go", "python", or "mixed (go, python)".
func DetectProjectType(root string) string {
	var detected []string
	seen := make(map[string]bool)
	for _, m := range projectMarkers {
		if seen[m.kind] {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, m.file)); err == nil {
			detected = append(detected, m.kind)
			seen[m.kind] = true
		}
	}
	switch len(detected) {
	case 0:
		return "unknown"
	case 1:
		return detected[0]
	default:
		return fmt.Sprintf("mixed (%s)", strings.Join(detected, ", "))
	}
}
