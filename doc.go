// Package lantern builds and queries a structural and semantic index of a
// source tree. It turns a directory of code into a normalized entity graph,
// a module dependency graph, and a lazily populated semantic search layer,
// so that questions like "what is the architecture?" or "find the auth
// middleware" can be answered with grounded, localized evidence instead of
// raw file scans.
//
// # Pipeline
//
// A build pass runs in three phases:
//
//  1. Walk: traverse the root directory, applying the ignore policy, and
//     collect candidate files with a resolved language tag.
//
//  2. Extract: parse each file with tree-sitter (or a regex fallback when
//     no grammar is registered) and emit entities: the module itself plus
//     its classes, functions, methods, and imports. Extraction runs on a
//     worker pool; a file that cannot be parsed is recorded as degraded,
//     never aborting the build.
//
//  3. Resolve: turn import entities into directed module edges, relative
//     paths first, then suffix matching against known modules. Unresolved
//     imports are kept on the graph for reporting.
//
// The finished snapshot replaces the previous one atomically; readers
// always see one fully built generation.
//
// # Usage
//
// Create an Engine, build, and query:
//
//	eng, err := lantern.New("path/to/project")
//	if err != nil { ... }
//
//	ctx := context.Background()
//	stats, err := eng.Build(ctx)
//
//	q := eng.Query()
//	deps := q.DependenciesOf("internal/auth/middleware.go")
//	cycles := q.FindCycles()
//
// Semantic search requires an encoder (see [WithEncoder]):
//
//	results, err := eng.Search(ctx, "authentication middleware", 5)
//
// # Query API
//
// The [QueryBuilder] returned by [Engine.Query] reads one immutable
// snapshot:
//
//   - [QueryBuilder.LookupEntity] — fetch one entity by its stable ID.
//   - [QueryBuilder.EntitiesIn] — all entities of a file in document order.
//   - [QueryBuilder.DependenciesOf] / [QueryBuilder.DependentsOf] — forward
//     and reverse dependency views of a module.
//   - [QueryBuilder.FindCycles] — strongly connected components with more
//     than one module or a self-loop.
//   - [QueryBuilder.FindEntities] — token lookup gated by the snapshot's
//     presence filter, with a name and path substring fallback.
//   - [QueryBuilder.Structure] — a stable outline of a file's entities.
//   - [QueryBuilder.Summary] — condensed per-file counts and imports.
//   - [QueryBuilder.Architecture] — a codebase-level summary: project type,
//     language distribution, entry points, and central modules.
package lantern
