package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jward/lantern"
)

// output writes v as indented JSON or, for --format=text, via textFn.
// A nil textFn means the command has no text rendering and always emits
// JSON.
func output[T any](w io.Writer, v T, textFn func(io.Writer, T)) error {
	if flagFormat == "text" && textFn != nil {
		textFn(w, v)
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatStatsText(w io.Writer, stats lantern.BuildStats) {
	fmt.Fprintf(w, "Files: %d (%d degraded)\n", stats.FilesSeen, stats.FilesDegraded)
	fmt.Fprintf(w, "Entities: %d\n", stats.EntityCount)
	fmt.Fprintf(w, "Edges: %d (%d unresolved)\n", stats.EdgeCount, stats.Unresolved)
	fmt.Fprintf(w, "Project type: %s\n", stats.ProjectType)
	fmt.Fprintf(w, "Duration: %s\n", stats.Duration.Round(time.Millisecond))
}

func formatSearchText(w io.Writer, results []lantern.SearchResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCORE\tKIND\tNAME\tFILE\tLINE")
	for _, r := range results {
		fmt.Fprintf(tw, "%.4f\t%s\t%s\t%s\t%d\n",
			r.Score, r.Entity.Kind, r.Entity.Name, r.Entity.FilePath, r.Entity.StartLine)
	}
	tw.Flush()
}

func formatEntitiesText(w io.Writer, ents []*lantern.Entity) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tNAME\tFILE\tLINE\tCONFIDENCE")
	for _, e := range ents {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			e.Kind, e.Name, e.FilePath, e.StartLine, e.Confidence)
	}
	tw.Flush()
}

func formatModulesText(w io.Writer, modules []string) {
	for _, m := range modules {
		fmt.Fprintln(w, m)
	}
}

func formatCyclesText(w io.Writer, cycles [][]string) {
	if len(cycles) == 0 {
		fmt.Fprintln(w, "No cycles.")
		return
	}
	for _, cycle := range cycles {
		fmt.Fprintln(w, strings.Join(cycle, " -> "))
	}
}

func formatArchText(w io.Writer, arch lantern.Architecture) {
	fmt.Fprintln(w, "Architecture")
	fmt.Fprintln(w, "============")
	fmt.Fprintf(w, "Project type: %s\n", arch.ProjectType)
	fmt.Fprintf(w, "Files: %d, entities: %d\n", arch.TotalFiles, arch.TotalEntities)

	if len(arch.Languages) > 0 {
		langs := make([]string, 0, len(arch.Languages))
		for lang := range arch.Languages {
			langs = append(langs, lang)
		}
		sort.Strings(langs)
		fmt.Fprintln(w, "\nLanguages:")
		for _, lang := range langs {
			fmt.Fprintf(w, "  %s: %d files\n", lang, arch.Languages[lang])
		}
	}

	if len(arch.TopLevelDirs) > 0 {
		fmt.Fprintf(w, "\nTop-level dirs: %s\n", strings.Join(arch.TopLevelDirs, ", "))
	}
	if len(arch.EntryPoints) > 0 {
		fmt.Fprintln(w, "\nEntry points:")
		for _, ep := range arch.EntryPoints {
			fmt.Fprintf(w, "  %s\n", ep)
		}
	}
	if len(arch.CentralModules) > 0 {
		fmt.Fprintln(w, "\nCentral modules:")
		for _, cm := range arch.CentralModules {
			fmt.Fprintf(w, "  %s (%.3f)\n", cm.Module, cm.Centrality)
		}
	}
	fmt.Fprintf(w, "\nComponents: %d, cycles: %d\n", arch.Components, arch.CycleCount)
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
