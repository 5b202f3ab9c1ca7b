// Package resolve turns import entities into dependency edges against the
// set of known module paths. Resolution is syntactic: relative paths are
// normalized against the importing file's directory, module-style imports
// match known paths by suffix, and everything else is retained unresolved.
package resolve

import (
	"path"
	"sort"
	"strings"

	"github.com/jward/lantern/internal/entity"
	"github.com/jward/lantern/internal/graph"
)

// Resolver resolves raw import names against the module paths of one index
// build. Module paths are slash-separated and relative to the index root.
type Resolver struct {
	// candidates maps every normalized form of a module path (with and
	// without extension, index/__init__ collapsed to the directory) back
	// to the canonical module path.
	candidates map[string]string

	// stripped pairs each module path with its extension-stripped form,
	// sorted by path for deterministic suffix matching.
	stripped []strippedPath
}

type strippedPath struct {
	module string
	bare   string
}

// New builds a Resolver over the known module paths.
func New(modulePaths []string) *Resolver {
	r := &Resolver{candidates: make(map[string]string)}
	sorted := append([]string(nil), modulePaths...)
	sort.Strings(sorted)

	for _, p := range sorted {
		bare := trimExt(p)
		r.addCandidate(p, p)
		r.addCandidate(bare, p)

		base := path.Base(bare)
		if base == "index" || base == "__init__" {
			dir := path.Dir(bare)
			if dir != "." {
				r.addCandidate(dir, p)
			}
		}
		r.stripped = append(r.stripped, strippedPath{module: p, bare: bare})
	}
	return r
}

func (r *Resolver) addCandidate(key, module string) {
	if _, exists := r.candidates[key]; !exists {
		r.candidates[key] = module
	}
}

// File resolves all import entities of one file into edges. filePath is the
// importing module's path. Edges are deduplicated by (source, target) with
// origin entity IDs preserved; self-imports are permitted.
func (r *Resolver) File(filePath string, imports []*entity.Entity) []graph.Edge {
	type key struct{ source, target string }
	merged := make(map[key]*graph.Edge)
	var order []key

	for _, imp := range imports {
		if imp.Kind != entity.KindImport {
			continue
		}
		target, kind := r.resolve(filePath, imp.Name)
		k := key{source: filePath, target: target}
		if e, ok := merged[k]; ok {
			e.Origins = append(e.Origins, imp.ID)
			continue
		}
		merged[k] = &graph.Edge{
			Source:  filePath,
			Target:  target,
			Kind:    kind,
			Origins: []string{imp.ID},
		}
		order = append(order, k)
	}

	edges := make([]graph.Edge, 0, len(order))
	for _, k := range order {
		edges = append(edges, *merged[k])
	}
	return edges
}

// resolve maps one raw import name to a target module. First match wins:
// relative syntax, then module-style suffix matching, then unresolved.
func (r *Resolver) resolve(fromFile, raw string) (string, graph.ResolutionKind) {
	raw = strings.Trim(raw, "'\"")
	if raw == "" {
		return raw, graph.ResolutionUnresolved
	}

	if target, ok := r.resolveRelative(fromFile, raw); ok {
		return target, graph.ResolutionRelative
	}
	if target, ok := r.resolveAbsolute(raw); ok {
		return target, graph.ResolutionAbsolute
	}
	return raw, graph.ResolutionUnresolved
}

// resolveRelative handles both path-style ("./utils", "../pkg/mod") and
// Python dotted-relative (".utils", "..pkg.mod") imports.
func (r *Resolver) resolveRelative(fromFile, raw string) (string, bool) {
	dir := path.Dir(fromFile)

	switch {
	case strings.HasPrefix(raw, "./") || strings.HasPrefix(raw, "../") || raw == "." || raw == "..":
		candidate := path.Clean(path.Join(dir, raw))
		return r.lookup(candidate)

	case strings.HasPrefix(raw, "."):
		// Python relative import: one leading dot anchors at the current
		// package, each further dot walks one level up.
		rest := strings.TrimLeft(raw, ".")
		ups := len(raw) - len(rest) - 1
		base := dir
		for i := 0; i < ups; i++ {
			base = path.Dir(base)
		}
		candidate := base
		if rest != "" {
			candidate = path.Join(base, strings.ReplaceAll(rest, ".", "/"))
		}
		return r.lookup(path.Clean(candidate))
	}
	return "", false
}

// resolveAbsolute matches a module-style import ("pkg.mod", "pkg/mod",
// "a::b", "example.com/pkg/utils") against known paths: exact from the
// root first, then by path-suffix equivalence at a segment boundary in
// either direction: a Go-style import is usually longer than the
// repo-relative module path, a Java-style one shorter. Ties go to the
// lexically smallest module path.
func (r *Resolver) resolveAbsolute(raw string) (string, bool) {
	normalized := strings.ReplaceAll(raw, "::", "/")
	if !strings.Contains(normalized, "/") {
		// Dotted package form (Python, Java); slash forms keep their
		// dots, which are part of host or file names.
		normalized = strings.ReplaceAll(normalized, ".", "/")
	}
	normalized = strings.Trim(normalized, "/")
	if normalized == "" {
		return "", false
	}

	if target, ok := r.lookup(normalized); ok {
		return target, true
	}

	suffix := "/" + normalized
	for _, sp := range r.stripped {
		if sp.bare == normalized || strings.HasSuffix(sp.bare, suffix) ||
			strings.HasSuffix(normalized, "/"+sp.bare) {
			return sp.module, true
		}
	}
	return "", false
}

// lookup checks a normalized candidate against known module forms.
func (r *Resolver) lookup(candidate string) (string, bool) {
	target, ok := r.candidates[candidate]
	return target, ok
}

func trimExt(p string) string {
	ext := path.Ext(p)
	return strings.TrimSuffix(p, ext)
}
