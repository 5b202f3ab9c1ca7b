package lantern

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jward/lantern/internal/entity"
)

// QueryBuilder answers structural queries against one immutable snapshot.
// Builders are cheap; take a fresh one per request to observe rebuilds.
type QueryBuilder struct {
	snap *snapshot
}

// LookupEntity fetches one entity by its stable ID.
func (q *QueryBuilder) LookupEntity(id string) (*Entity, error) {
	if q.snap == nil {
		return nil, ErrNoIndex
	}
	ent, ok := q.snap.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	return ent, nil
}

// EntitiesIn returns a file's entities in document order. Unknown files
// yield an empty slice, not an error.
func (q *QueryBuilder) EntitiesIn(filePath string) []*Entity {
	if q.snap == nil {
		return nil
	}
	return q.snap.entities[filePath]
}

// Files returns every indexed file path, sorted.
func (q *QueryBuilder) Files() []string {
	if q.snap == nil {
		return nil
	}
	files := make([]string, 0, len(q.snap.entities))
	for path := range q.snap.entities {
		files = append(files, path)
	}
	sort.Strings(files)
	return files
}

// DependenciesOf returns the modules the given module imports, resolved
// edges only, sorted.
func (q *QueryBuilder) DependenciesOf(module string) []string {
	if q.snap == nil {
		return nil
	}
	return q.snap.graph.Dependencies(module)
}

// DependentsOf returns the modules that import the given module, sorted.
func (q *QueryBuilder) DependentsOf(module string) []string {
	if q.snap == nil {
		return nil
	}
	return q.snap.graph.Dependents(module)
}

// FindCycles returns every dependency cycle: strongly connected components
// with more than one module, plus self-loops.
func (q *QueryBuilder) FindCycles() [][]string {
	if q.snap == nil {
		return nil
	}
	return q.snap.graph.Cycles()
}

// UnresolvedImports returns the edges whose target could not be matched to
// a known module. Useful for surfacing external or broken imports.
func (q *QueryBuilder) UnresolvedImports() []Edge {
	if q.snap == nil {
		return nil
	}
	return q.snap.graph.Unresolved()
}

// Stats returns the statistics recorded for this snapshot's build.
func (q *QueryBuilder) Stats() BuildStats {
	if q.snap == nil {
		return BuildStats{}
	}
	return q.snap.stats
}

// FindEntities returns the entities matching token, case-insensitive,
// sorted by ID. Exact identifier tokens (whole name, separator piece, or
// camelCase hump) are tried first, gated by this snapshot's presence
// filter; when no token matches, the query falls back to substring search
// over entity names and file paths. Passing kinds restricts the result to
// those entity kinds.
func (q *QueryBuilder) FindEntities(token string, kinds ...Kind) []*Entity {
	if q.snap == nil || token == "" {
		return nil
	}
	needle := strings.ToLower(token)

	wanted := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		wanted[k] = true
	}
	scan := func(match func(*Entity) bool) []*Entity {
		var out []*Entity
		for _, ent := range q.snap.byID {
			if ent.Kind == entity.KindImport {
				continue
			}
			if len(wanted) > 0 && !wanted[ent.Kind] {
				continue
			}
			if match(ent) {
				out = append(out, ent)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return out
	}

	// Exact-token pass. A negative filter answer is authoritative for
	// tokens, so it skips the scan but not the substring fallback.
	if q.snap.mightContain(needle) {
		out := scan(func(ent *Entity) bool {
			for _, tok := range nameTokens(ent.Name) {
				if tok == needle {
					return true
				}
			}
			return false
		})
		if len(out) > 0 {
			return out
		}
	}

	return scan(func(ent *Entity) bool {
		return strings.Contains(strings.ToLower(ent.Name), needle) ||
			strings.Contains(strings.ToLower(ent.FilePath), needle)
	})
}
