package lantern

import (
	"path"
	"sort"
	"strings"

	"github.com/jward/lantern/internal/entity"
)

// Architecture is a codebase-level summary assembled from the entity store
// and the dependency graph.
type Architecture struct {
	ProjectType    string          `json:"project_type"`
	TotalFiles     int             `json:"total_files"`
	TotalEntities  int             `json:"total_entities"`
	Languages      map[string]int  `json:"languages"`
	TopLevelDirs   []string        `json:"top_level_dirs"`
	EntryPoints    []string        `json:"entry_points"`
	CentralModules []CentralModule `json:"central_modules"`
	Components     int             `json:"components"`
	CycleCount     int             `json:"cycle_count"`
}

// CentralModule is one highly connected module, ranked by degree
// centrality over the dependency graph.
type CentralModule struct {
	Module     string  `json:"module"`
	Centrality float64 `json:"centrality"`
}

// entryPointNames are file base names (without extension) that typically
// mark an executable entry.
var entryPointNames = map[string]bool{
	"main":     true,
	"app":      true,
	"index":    true,
	"server":   true,
	"cli":      true,
	"__main__": true,
}

const centralModuleLimit = 5

// Architecture summarizes the current snapshot: project type, language
// distribution, top-level layout, likely entry points, the most connected
// modules, and the graph's shape.
func (q *QueryBuilder) Architecture() Architecture {
	arch := Architecture{Languages: make(map[string]int)}
	if q.snap == nil {
		return arch
	}

	arch.ProjectType = q.snap.projectType
	arch.TotalFiles = len(q.snap.entities)
	arch.TotalEntities = len(q.snap.byID)

	dirs := make(map[string]bool)
	for filePath, ents := range q.snap.entities {
		if len(ents) > 0 {
			arch.Languages[ents[0].Language]++
		}
		if dir := topLevelDir(filePath); dir != "" {
			dirs[dir] = true
		}
		if isEntryPoint(filePath, ents) {
			arch.EntryPoints = append(arch.EntryPoints, filePath)
		}
	}
	for dir := range dirs {
		arch.TopLevelDirs = append(arch.TopLevelDirs, dir)
	}
	sort.Strings(arch.TopLevelDirs)
	sort.Strings(arch.EntryPoints)

	centrality := q.snap.graph.DegreeCentrality()
	modules := make([]CentralModule, 0, len(centrality))
	for module, score := range centrality {
		if score > 0 {
			modules = append(modules, CentralModule{Module: module, Centrality: score})
		}
	}
	sort.Slice(modules, func(i, j int) bool {
		if modules[i].Centrality != modules[j].Centrality {
			return modules[i].Centrality > modules[j].Centrality
		}
		return modules[i].Module < modules[j].Module
	})
	if len(modules) > centralModuleLimit {
		modules = modules[:centralModuleLimit]
	}
	arch.CentralModules = modules

	arch.Components = q.snap.graph.WeakComponents()
	arch.CycleCount = len(q.snap.graph.Cycles())
	return arch
}

func topLevelDir(filePath string) string {
	if i := strings.IndexByte(filePath, '/'); i > 0 {
		return filePath[:i]
	}
	return ""
}

// isEntryPoint recognizes conventional entry files by base name, plus any
// file declaring a top-level main function.
func isEntryPoint(filePath string, ents []*entity.Entity) bool {
	base := path.Base(filePath)
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	if entryPointNames[strings.ToLower(base)] {
		return true
	}
	for _, e := range ents {
		if e.Kind == entity.KindFunction && e.Name == "main" {
			return true
		}
	}
	return false
}
