// Package entity defines the language-agnostic representation of indexed
// code units: modules, classes, functions, methods, imports, and variables.
package entity

import (
	"crypto/sha256"
	"fmt"
)

// Kind classifies an entity.
type Kind string

const (
	KindModule   Kind = "module"
	KindClass    Kind = "class"
	KindFunction Kind = "function"
	KindMethod   Kind = "method"
	KindImport   Kind = "import"
	KindVariable Kind = "variable"
)

// Confidence indicates how the entity was extracted. Precise entities come
// from a grammar parse; fallback entities come from regex matching and carry
// coarser locations with no signature or docstring.
type Confidence string

const (
	ConfidencePrecise  Confidence = "precise"
	ConfidenceFallback Confidence = "fallback"
)

// Entity is one named, located unit of code. Entities are immutable once a
// snapshot is published.
type Entity struct {
	ID        string
	Kind      Kind
	Name      string
	FilePath  string
	StartLine int
	EndLine   int

	// Signature is a short textual summary (parameter list, return type)
	// when extractable. Empty for fallback entities.
	Signature string

	// Docstring is attached documentation text, if any.
	Docstring string

	Language   string
	Confidence Confidence

	// ParentID references the enclosing entity within the same file.
	// Modules have no parent. The references form a forest, never a cycle.
	ParentID string

	// text is the source text the entity covers, retained for search
	// embedding input. Not exported; access via Text().
	text string
}

// NewID builds the deterministic entity ID. A module's ID is its file path;
// everything else is qualified by kind, name, and start line so that
// same-named declarations in one file stay distinct.
func NewID(path string, kind Kind, name string, startLine int) string {
	if kind == KindModule {
		return path
	}
	return fmt.Sprintf("%s::%s::%s@%d", path, kind, name, startLine)
}

// SetText records the source text backing this entity.
func (e *Entity) SetText(text string) { e.text = text }

// Text returns the source text backing this entity. For search purposes the
// name is always part of the embedded text.
func (e *Entity) Text() string {
	if e.text == "" {
		return e.Name
	}
	return e.Name + " " + e.text
}

// Digest hashes the entity's searchable text. A changed digest means any
// cached derived value (embedding vector) is stale.
func (e *Entity) Digest() string {
	sum := sha256.Sum256([]byte(e.Text()))
	return fmt.Sprintf("%x", sum[:])
}

// IsModule reports whether the entity is a file-level module node.
func (e *Entity) IsModule() bool { return e.Kind == KindModule }
