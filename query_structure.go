package lantern

import (
	"fmt"
	"strings"

	"github.com/jward/lantern/internal/entity"
)

// StructureEntry is one line of a file outline.
type StructureEntry struct {
	Kind      Kind   `json:"kind"`
	Name      string `json:"name"`
	Signature string `json:"signature,omitempty"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Depth     int    `json:"depth"`
}

// Structure returns a stable outline of one file: its non-import entities
// in document order, with nesting depth derived from parent references.
// Unknown files yield an empty outline.
func (q *QueryBuilder) Structure(filePath string) []StructureEntry {
	ents := q.EntitiesIn(filePath)
	if len(ents) == 0 {
		return nil
	}

	depth := make(map[string]int, len(ents))
	var out []StructureEntry
	for _, e := range ents {
		if e.Kind == entity.KindImport || e.Kind == entity.KindModule {
			continue
		}
		d := 0
		if e.ParentID != "" {
			if pd, ok := depth[e.ParentID]; ok {
				d = pd + 1
			}
		}
		depth[e.ID] = d
		out = append(out, StructureEntry{
			Kind:      e.Kind,
			Name:      e.Name,
			Signature: e.Signature,
			StartLine: e.StartLine,
			EndLine:   e.EndLine,
			Depth:     d,
		})
	}
	return out
}

// FileSummary condenses one file: size, entity counts by kind, and the raw
// import names it declares.
type FileSummary struct {
	FilePath     string       `json:"file_path"`
	Language     string       `json:"language"`
	Lines        int          `json:"lines"`
	EntityCounts map[Kind]int `json:"entity_counts"`
	Imports      []string     `json:"imports"`
}

// Summary returns a FileSummary for one indexed file, or ok=false when the
// file is unknown.
func (q *QueryBuilder) Summary(filePath string) (FileSummary, bool) {
	ents := q.EntitiesIn(filePath)
	if len(ents) == 0 {
		return FileSummary{}, false
	}

	s := FileSummary{
		FilePath:     filePath,
		Language:     ents[0].Language,
		EntityCounts: make(map[Kind]int),
	}
	for _, e := range ents {
		switch e.Kind {
		case entity.KindModule:
			s.Lines = e.EndLine
		case entity.KindImport:
			s.Imports = append(s.Imports, e.Name)
		default:
			s.EntityCounts[e.Kind]++
		}
	}
	return s, true
}

// RenderStructure formats a file outline as indented text, one entity per
// line. Meant for direct display in tool output.
func (q *QueryBuilder) RenderStructure(filePath string) string {
	entries := q.Structure(filePath)
	if len(entries) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", filePath)
	for _, e := range entries {
		indent := strings.Repeat("  ", e.Depth+1)
		if e.Signature != "" {
			fmt.Fprintf(&b, "%s%s %s%s  [%d-%d]\n", indent, e.Kind, e.Name, e.Signature, e.StartLine, e.EndLine)
		} else {
			fmt.Fprintf(&b, "%s%s %s  [%d-%d]\n", indent, e.Kind, e.Name, e.StartLine, e.EndLine)
		}
	}
	return b.String()
}
