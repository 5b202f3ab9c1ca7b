package lantern

import (
	"time"

	"github.com/jward/lantern/internal/entity"
	"github.com/jward/lantern/internal/graph"
)

// Public type aliases for internal types surfaced through the query API.
// These are Go type aliases (=) — identical to the internal types at compile
// time; no conversion is needed.

type Entity = entity.Entity
type Kind = entity.Kind
type Confidence = entity.Confidence
type Edge = graph.Edge
type ResolutionKind = graph.ResolutionKind

const (
	KindModule   = entity.KindModule
	KindClass    = entity.KindClass
	KindFunction = entity.KindFunction
	KindMethod   = entity.KindMethod
	KindImport   = entity.KindImport
	KindVariable = entity.KindVariable

	ConfidencePrecise  = entity.ConfidencePrecise
	ConfidenceFallback = entity.ConfidenceFallback

	ResolutionRelative   = graph.ResolutionRelative
	ResolutionAbsolute   = graph.ResolutionAbsolute
	ResolutionUnresolved = graph.ResolutionUnresolved
)

// BuildStats summarizes one build pass.
type BuildStats struct {
	FilesSeen     int           `json:"files_seen"`
	FilesDegraded int           `json:"files_degraded"`
	EntityCount   int           `json:"entity_count"`
	EdgeCount     int           `json:"edge_count"`
	Unresolved    int           `json:"unresolved"`
	ProjectType   string        `json:"project_type"`
	Duration      time.Duration `json:"duration"`
}

// SearchResult pairs an entity with its similarity score.
type SearchResult struct {
	Entity *Entity `json:"entity"`
	Score  float64 `json:"score"`
}

// ContextRecord is one remembered query/result pair in an exploration
// session.
type ContextRecord struct {
	Query         string    `json:"query"`
	ResultSummary string    `json:"result_summary"`
	Timestamp     time.Time `json:"timestamp"`
}
