// Package lang maps file extensions to parsing capabilities: a tree-sitter
// grammar when one is available, the per-language entity extraction tables,
// and whether the regex fallback applies. Languages are selected by table
// lookup, never by type switching.
package lang

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/lantern/internal/entity"
)

// ImportFunc extracts raw import strings from an import-bearing syntax node.
type ImportFunc func(n *sitter.Node, src []byte) []string

// Capability describes how one language is parsed and queried.
type Capability struct {
	// Language is the canonical language name.
	Language string

	// Grammar is the tree-sitter grammar. Nil means no precise parse is
	// possible and the regex fallback is used instead.
	Grammar *sitter.Language

	// NodeKinds maps syntax node types to the entity kind they produce.
	NodeKinds map[string]entity.Kind

	// ImportNodes lists syntax node types that carry import statements.
	ImportNodes map[string]bool

	// Imports pulls raw import strings out of a node whose type is in
	// ImportNodes. Nil means imports are not extracted for this language.
	Imports ImportFunc

	// AllowFallback enables the coarse regex extractor when the grammar is
	// missing or the parse fails.
	AllowFallback bool
}

// Precise reports whether the capability can produce a grammar-based parse.
func (c *Capability) Precise() bool { return c.Grammar != nil }

// Parse runs a tree-sitter parse of src. Each call uses a fresh parser so
// capabilities are safe to share across extraction workers.
func (c *Capability) Parse(ctx context.Context, src []byte) (*sitter.Tree, error) {
	p := sitter.NewParser()
	p.SetLanguage(c.Grammar)
	return p.ParseCtx(ctx, nil, src)
}

// Registry maps file extensions to capabilities. Instances are immutable
// after construction aside from Register, which is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byExt  map[string]*Capability
	byLang map[string]*Capability
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byExt:  make(map[string]*Capability),
		byLang: make(map[string]*Capability),
	}
}

// Register maps extensions (with leading dot) to a capability. The first
// registration wins on extension conflicts.
func (r *Registry) Register(cap *Capability, extensions ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byLang[cap.Language] = cap
	for _, ext := range extensions {
		if _, exists := r.byExt[ext]; !exists {
			r.byExt[ext] = cap
		}
	}
}

// ForFile returns the capability for a file path based on its extension.
func (r *Registry) ForFile(path string) (*Capability, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byExt[ext]
	return c, ok
}

// ForLanguage returns the capability for a canonical language name.
func (r *Registry) ForLanguage(lang string) (*Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byLang[lang]
	return c, ok
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	return exts
}
