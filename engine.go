package lantern

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/jward/lantern/internal/encode"
	"github.com/jward/lantern/internal/entity"
	"github.com/jward/lantern/internal/extract"
	"github.com/jward/lantern/internal/graph"
	"github.com/jward/lantern/internal/lang"
	"github.com/jward/lantern/internal/resolve"
	"github.com/jward/lantern/internal/store"
	"github.com/jward/lantern/internal/walker"
)

// snapshot is one fully built generation of the index. Snapshots are
// immutable once published; Build swaps a fresh one in atomically. The
// presence filter travels with its generation so a pinned QueryBuilder
// never consults a filter built over different entities.
type snapshot struct {
	entities    map[string][]*entity.Entity // file path -> document order
	byID        map[string]*entity.Entity
	graph       *graph.Graph
	filter      *bloom.BloomFilter
	stats       BuildStats
	projectType string
}

// mightContain reports whether token may appear as an entity name token in
// this generation. False means guaranteed absent; true may be a false
// positive at the configured rate. Expects a lowercased token.
func (s *snapshot) mightContain(token string) bool {
	if s.filter == nil {
		return false
	}
	return s.filter.TestString(token)
}

// Engine orchestrates the lantern pipeline: file discovery, parallel
// extraction, import resolution, and query access over atomic snapshots.
type Engine struct {
	root     string
	logger   *slog.Logger
	registry *lang.Registry
	policy   walker.Policy
	workers  int
	fpRate   float64
	encoder  encode.Encoder
	store    *store.Store

	current atomic.Pointer[snapshot]
	search  *searchLayer

	// buildMu serializes Build calls; queries never take it.
	buildMu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithRegistry replaces the language capability registry.
func WithRegistry(registry *lang.Registry) Option {
	return func(e *Engine) { e.registry = registry }
}

// WithPolicy replaces the walk ignore policy.
func WithPolicy(policy walker.Policy) Option {
	return func(e *Engine) { e.policy = policy }
}

// WithWorkers sets the extraction worker count. Defaults to NumCPU.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithEncoder sets the embedding encoder used by Search and VectorFor.
// Without one, semantic search returns ErrEncoderUnavailable.
func WithEncoder(enc encode.Encoder) Option {
	return func(e *Engine) { e.encoder = enc }
}

// WithFalsePositiveRate sets the presence filter's target false positive
// rate. Defaults to 0.01.
func WithFalsePositiveRate(rate float64) Option {
	return func(e *Engine) { e.fpRate = rate }
}

// WithStore attaches a SQLite store for snapshot and vector persistence.
// Purely an acceleration; the index is always rebuildable from the tree.
func WithStore(s *store.Store) Option {
	return func(e *Engine) { e.store = s }
}

// New creates an Engine rooted at root. Fails with ErrRootNotFound when
// root does not exist or is not a directory.
func New(root string, opts ...Option) (*Engine, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrRootNotFound, root)
	}

	e := &Engine{
		root:     root,
		logger:   slog.Default(),
		registry: lang.DefaultRegistry(),
		policy:   walker.DefaultPolicy(),
		workers:  runtime.NumCPU(),
		fpRate:   0.01,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = 1
	}
	e.search = newSearchLayer(e.encoder, e.store)
	return e, nil
}

// Root returns the indexed root directory.
func (e *Engine) Root() string { return e.root }

// Query returns a QueryBuilder over the current snapshot. The builder keeps
// reading that generation even if a rebuild completes afterwards.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{snap: e.current.Load()}
}

// extracted is one file's extraction output, carried from the parallel
// phase to the serial merge.
type extracted struct {
	index   int
	path    string
	result  extract.Result
	readErr error
}

// Build runs a full synchronous rebuild: walk, extract in parallel, resolve,
// then publish the new snapshot atomically. Per-file parse failures are
// counted as degraded files, never surfaced as errors; only a missing root
// aborts the build.
func (e *Engine) Build(ctx context.Context) (BuildStats, error) {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	start := time.Now()

	if info, err := os.Stat(e.root); err != nil || !info.IsDir() {
		return BuildStats{}, fmt.Errorf("%w: %s", ErrRootNotFound, e.root)
	}

	// ---- Phase A: serial discovery ----
	w := walker.New(e.root, e.policy, e.registry)
	candidates, err := w.List()
	if err != nil {
		return BuildStats{}, fmt.Errorf("walk %s: %w", e.root, err)
	}

	// ---- Phase B: parallel extraction ----
	results, err := e.extractAll(ctx, candidates)
	if err != nil {
		return BuildStats{}, err
	}

	// ---- Phase C: serial merge and resolution ----
	snap := e.merge(results)
	snap.projectType = walker.DetectProjectType(e.root)
	snap.stats.ProjectType = snap.projectType
	snap.stats.Duration = time.Since(start)

	e.current.Store(snap)
	e.search.invalidate(snap)

	if e.store != nil {
		if err := e.store.SaveSnapshot(snap.entities, snap.graph.Edges()); err != nil {
			e.logger.Warn("snapshot persistence failed", "error", err)
		}
	}

	e.logger.Info("index built",
		"files", snap.stats.FilesSeen,
		"degraded", snap.stats.FilesDegraded,
		"entities", snap.stats.EntityCount,
		"edges", snap.stats.EdgeCount,
		"duration", snap.stats.Duration,
	)
	return snap.stats, nil
}

// extractAll fans candidates out over the worker pool. Each worker reads
// and parses its own files; results come back tagged with the candidate
// index so the merge stays deterministic.
func (e *Engine) extractAll(ctx context.Context, candidates []walker.Candidate) ([]extracted, error) {
	workers := e.workers
	if workers > len(candidates) {
		workers = len(candidates)
	}
	if workers < 1 {
		workers = 1
	}

	workCh := make(chan int, len(candidates))
	for i := range candidates {
		workCh <- i
	}
	close(workCh)

	out := make([]extracted, len(candidates))
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range workCh {
				if ctx.Err() != nil {
					out[i] = extracted{index: i, path: candidates[i].Path, readErr: ctx.Err()}
					continue
				}
				out[i] = e.extractOne(ctx, candidates[i], i)
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) extractOne(ctx context.Context, c walker.Candidate, index int) extracted {
	src, err := os.ReadFile(c.Path)
	if err != nil {
		// Unreadable counts as degraded, same as unparseable.
		e.logger.Debug("read failed", "path", c.RelPath, "error", err)
		return extracted{index: index, path: c.RelPath, readErr: err}
	}
	cap, ok := e.registry.ForFile(c.Path)
	if !ok {
		// No registered language for this file; count it degraded rather
		// than assume the walker only handed us known extensions.
		e.logger.Debug("no language capability", "path", c.RelPath)
		return extracted{index: index, path: c.RelPath, readErr: fmt.Errorf("no language capability for %s", c.RelPath)}
	}
	return extracted{
		index:  index,
		path:   c.RelPath,
		result: extract.File(ctx, c.RelPath, src, cap),
	}
}

// merge folds per-file extraction output into a fresh snapshot: entity
// store, ID arena, and resolved dependency graph.
func (e *Engine) merge(results []extracted) *snapshot {
	snap := &snapshot{
		entities: make(map[string][]*entity.Entity),
		byID:     make(map[string]*entity.Entity),
		graph:    graph.New(),
	}

	var modulePaths []string
	for _, res := range results {
		snap.stats.FilesSeen++
		if res.readErr != nil || res.result.Degraded {
			snap.stats.FilesDegraded++
		}
		if len(res.result.Entities) == 0 {
			continue
		}
		snap.entities[res.path] = res.result.Entities
		modulePaths = append(modulePaths, res.path)
		for _, ent := range res.result.Entities {
			snap.byID[ent.ID] = ent
			snap.stats.EntityCount++
		}
	}
	sort.Strings(modulePaths)

	resolver := resolve.New(modulePaths)
	for _, path := range modulePaths {
		snap.graph.AddNode(path)
	}
	for _, path := range modulePaths {
		var imports []*entity.Entity
		for _, ent := range snap.entities[path] {
			if ent.Kind == entity.KindImport {
				imports = append(imports, ent)
			}
		}
		for _, edge := range resolver.File(path, imports) {
			snap.graph.AddEdge(edge)
			if edge.Kind == graph.ResolutionUnresolved {
				snap.stats.Unresolved++
			}
		}
	}
	snap.stats.EdgeCount = snap.graph.EdgeCount()
	snap.filter = newPresenceFilter(snap.entities, e.fpRate)
	return snap
}

// Restore publishes the last persisted snapshot without walking the tree.
// Meant as a fast startup path for read-only commands; stats reflect the
// stored content, not a fresh walk. Returns ErrNoIndex when no store is
// attached or nothing was persisted.
func (e *Engine) Restore() error {
	if e.store == nil {
		return ErrNoIndex
	}
	entities, edges, err := e.store.LoadSnapshot()
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if len(entities) == 0 {
		return ErrNoIndex
	}

	snap := &snapshot{
		entities: entities,
		byID:     make(map[string]*entity.Entity),
		graph:    graph.New(),
	}
	for path, ents := range entities {
		snap.graph.AddNode(path)
		for _, ent := range ents {
			snap.byID[ent.ID] = ent
			snap.stats.EntityCount++
		}
	}
	snap.stats.FilesSeen = len(entities)
	for _, edge := range edges {
		snap.graph.AddEdge(edge)
		if edge.Kind == graph.ResolutionUnresolved {
			snap.stats.Unresolved++
		}
	}
	snap.stats.EdgeCount = snap.graph.EdgeCount()
	snap.projectType = walker.DetectProjectType(e.root)
	snap.stats.ProjectType = snap.projectType
	snap.filter = newPresenceFilter(snap.entities, e.fpRate)

	e.current.Store(snap)
	e.search.invalidate(snap)
	e.logger.Info("index restored from store",
		"files", snap.stats.FilesSeen,
		"entities", snap.stats.EntityCount,
		"edges", snap.stats.EdgeCount,
	)
	return nil
}

// ReadSource returns lines [startLine, endLine] of one indexed file,
// 1-based inclusive, clamped to the file. Chunked reads let a caller walk a
// large file without pulling it whole.
func (e *Engine) ReadSource(filePath string, startLine, endLine int) (string, error) {
	snap := e.current.Load()
	if snap == nil {
		return "", ErrNoIndex
	}
	if _, ok := snap.entities[filePath]; !ok {
		return "", fmt.Errorf("%w: %s", ErrEntityNotFound, filePath)
	}

	src, err := os.ReadFile(filepath.Join(e.root, filepath.FromSlash(filePath)))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", filePath, err)
	}
	lines := strings.Split(string(src), "\n")
	if startLine < 1 {
		startLine = 1
	}
	if endLine > len(lines) || endLine < 1 {
		endLine = len(lines)
	}
	if startLine > endLine {
		return "", nil
	}
	return strings.Join(lines[startLine-1:endLine], "\n"), nil
}

// Search answers a semantic query against the current snapshot. See
// QueryBuilder.FindEntities for the token-based alternative when no encoder
// is configured.
func (e *Engine) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	snap := e.current.Load()
	if snap == nil {
		return nil, ErrNoIndex
	}
	return e.search.query(ctx, snap, query, k)
}

// VectorFor returns the embedding vector for one entity, computing and
// caching it on first access.
func (e *Engine) VectorFor(ctx context.Context, entityID string) ([]float32, error) {
	snap := e.current.Load()
	if snap == nil {
		return nil, ErrNoIndex
	}
	ent, ok := snap.byID[entityID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, entityID)
	}
	return e.search.vectorFor(ctx, ent)
}

// NewSession starts a bounded exploration context over this engine.
func (e *Engine) NewSession(bound int) *ExplorationContext {
	return newExplorationContext(e, bound)
}

// Close releases the engine's optional persistence resources.
func (e *Engine) Close() error {
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}
