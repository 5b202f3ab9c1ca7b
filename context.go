package lantern

import (
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultContextBound is the default number of query/result records kept
// per exploration session.
const DefaultContextBound = 5

// DelegationPolicy holds the thresholds behind ShouldDelegate. Zero values
// are replaced with defaults.
type DelegationPolicy struct {
	// Keywords that mark a query as broad enough for a sub-agent.
	Keywords []string

	// ModuleSpan is the number of distinct indexed modules a query may
	// reference before delegation is suggested.
	ModuleSpan int

	// MaxQueryLen is the query length in runes above which delegation is
	// suggested.
	MaxQueryLen int
}

var defaultDelegationKeywords = []string{
	"deep dive",
	"detailed",
	"comprehensive",
	"exhaustive",
	"all files",
	"every file",
	"entire codebase",
	"whole codebase",
	"complete analysis",
}

func (p DelegationPolicy) withDefaults() DelegationPolicy {
	if len(p.Keywords) == 0 {
		p.Keywords = defaultDelegationKeywords
	}
	if p.ModuleSpan <= 0 {
		p.ModuleSpan = 3
	}
	if p.MaxQueryLen <= 0 {
		p.MaxQueryLen = 200
	}
	return p
}

// ExplorationContext is a bounded, ordered log of past query/result pairs
// for one conversational session. Oldest records are evicted first once the
// bound is exceeded. The context holds summaries only, never entities.
type ExplorationContext struct {
	engine *Engine
	policy DelegationPolicy

	mu        sync.Mutex
	sessionID string
	bound     int
	records   []ContextRecord
}

func newExplorationContext(engine *Engine, bound int) *ExplorationContext {
	if bound <= 0 {
		bound = DefaultContextBound
	}
	return &ExplorationContext{
		engine:    engine,
		policy:    DelegationPolicy{}.withDefaults(),
		sessionID: uuid.NewString(),
		bound:     bound,
	}
}

// SessionID returns the session's unique identifier.
func (c *ExplorationContext) SessionID() string { return c.sessionID }

// SetPolicy replaces the delegation policy. Zero fields fall back to
// defaults.
func (c *ExplorationContext) SetPolicy(policy DelegationPolicy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.policy = policy.withDefaults()
}

// Record appends one query/result pair, evicting the oldest record past
// the bound.
func (c *ExplorationContext) Record(query, resultSummary string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, ContextRecord{
		Query:         query,
		ResultSummary: resultSummary,
		Timestamp:     time.Now(),
	})
	if len(c.records) > c.bound {
		c.records = c.records[len(c.records)-c.bound:]
	}
}

// Recent returns the kept records in chronological order, most recent
// last. Length never exceeds the bound.
func (c *ExplorationContext) Recent() []ContextRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ContextRecord, len(c.records))
	copy(out, c.records)
	return out
}

// Reset clears the session's records.
func (c *ExplorationContext) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = nil
}

// ShouldDelegate reports whether the query looks broad enough to hand off
// to a specialized sub-agent: it carries a breadth keyword, references more
// indexed modules than the policy's span, or exceeds the length threshold.
// Pure policy; the reasoning loop decides what to do with the signal.
func (c *ExplorationContext) ShouldDelegate(query string) bool {
	c.mu.Lock()
	policy := c.policy
	c.mu.Unlock()

	lower := strings.ToLower(query)
	for _, kw := range policy.Keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	if len([]rune(query)) > policy.MaxQueryLen {
		return true
	}
	return c.moduleSpan(lower) >= policy.ModuleSpan
}

// moduleSpan counts distinct indexed modules the query mentions, matched
// by file base name against the dependency graph's nodes.
func (c *ExplorationContext) moduleSpan(lowerQuery string) int {
	if c.engine == nil {
		return 0
	}
	snap := c.engine.current.Load()
	if snap == nil {
		return 0
	}
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(lowerQuery, func(r rune) bool {
		return r != '.' && r != '_' && r != '-' && !isAlnum(r)
	}) {
		words[w] = true
	}

	span := 0
	for _, module := range snap.graph.Nodes() {
		base := strings.ToLower(path.Base(module))
		stem := strings.TrimSuffix(base, path.Ext(base))
		if words[base] || (stem != "" && words[stem]) {
			span++
		}
	}
	return span
}

func isAlnum(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9'
}
