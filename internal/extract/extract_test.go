package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/lantern/internal/entity"
	"github.com/jward/lantern/internal/lang"
)

func capFor(t *testing.T, language string) *lang.Capability {
	t.Helper()
	cap, ok := lang.DefaultRegistry().ForLanguage(language)
	require.True(t, ok)
	return cap
}

func byKind(res Result, kind entity.Kind) []*entity.Entity {
	var out []*entity.Entity
	for _, e := range res.Entities {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func names(ents []*entity.Entity) []string {
	out := make([]string, len(ents))
	for i, e := range ents {
		out[i] = e.Name
	}
	return out
}

// =============================================================================
// Precise extraction: Go
// =============================================================================

const goSrc = `package mypkg

import (
	"fmt"
	"example.com/mypkg/util"
)

// Greeter greets.
type Greeter struct {
	prefix string
}

// Greet says hello.
func (g *Greeter) Greet(name string) string {
	return g.prefix + name
}

func main() {
	fmt.Println(NewGreeter())
}
`

func TestFile_GoPreciseExtraction(t *testing.T) {
	t.Parallel()
	res := File(context.Background(), "pkg/greeter.go", []byte(goSrc), capFor(t, "go"))

	require.False(t, res.Degraded)
	require.NotEmpty(t, res.Entities)

	module := res.Entities[0]
	assert.Equal(t, entity.KindModule, module.Kind)
	assert.Equal(t, "pkg/greeter.go", module.ID)
	assert.Equal(t, "greeter.go", module.Name)

	imports := byKind(res, entity.KindImport)
	assert.ElementsMatch(t, []string{"fmt", "example.com/mypkg/util"}, names(imports))

	classes := byKind(res, entity.KindClass)
	require.Len(t, classes, 1)
	assert.Equal(t, "Greeter", classes[0].Name)
	assert.Equal(t, entity.ConfidencePrecise, classes[0].Confidence)

	methods := byKind(res, entity.KindMethod)
	require.Len(t, methods, 1)
	assert.Equal(t, "Greet", methods[0].Name)
	assert.Contains(t, methods[0].Signature, "name string")

	funcs := byKind(res, entity.KindFunction)
	require.Len(t, funcs, 1)
	assert.Equal(t, "main", funcs[0].Name)
}

func TestFile_EntitiesInDocumentOrder(t *testing.T) {
	t.Parallel()
	res := File(context.Background(), "pkg/greeter.go", []byte(goSrc), capFor(t, "go"))

	lines := make([]int, 0, len(res.Entities))
	for _, e := range res.Entities {
		lines = append(lines, e.StartLine)
	}
	for i := 1; i < len(lines); i++ {
		assert.LessOrEqual(t, lines[i-1], lines[i])
	}
}

func TestFile_ParentReferencesResolveWithinFile(t *testing.T) {
	t.Parallel()
	res := File(context.Background(), "pkg/greeter.go", []byte(goSrc), capFor(t, "go"))

	ids := make(map[string]bool, len(res.Entities))
	for _, e := range res.Entities {
		ids[e.ID] = true
	}
	for _, e := range res.Entities {
		if e.Kind == entity.KindModule {
			assert.Empty(t, e.ParentID)
			continue
		}
		assert.True(t, ids[e.ParentID], "entity %s has dangling parent %s", e.ID, e.ParentID)
	}
}

// =============================================================================
// Precise extraction: Python
// =============================================================================

const pySrc = `import os
from .utils import helper

class Greeter:
    """Says hello."""

    def greet(self, name):
        """Greet someone by name."""
        return "hi " + name

def main():
    pass
`

func TestFile_PythonPreciseExtraction(t *testing.T) {
	t.Parallel()
	res := File(context.Background(), "src/greeter.py", []byte(pySrc), capFor(t, "python"))

	require.False(t, res.Degraded)

	imports := byKind(res, entity.KindImport)
	assert.ElementsMatch(t, []string{"os", ".utils"}, names(imports))

	classes := byKind(res, entity.KindClass)
	require.Len(t, classes, 1)
	assert.Equal(t, "Greeter", classes[0].Name)
	assert.Equal(t, "Says hello.", classes[0].Docstring)

	// A def inside a class body is a method, parented to the class.
	methods := byKind(res, entity.KindMethod)
	require.Len(t, methods, 1)
	assert.Equal(t, "greet", methods[0].Name)
	assert.Equal(t, classes[0].ID, methods[0].ParentID)
	assert.Equal(t, "Greet someone by name.", methods[0].Docstring)

	funcs := byKind(res, entity.KindFunction)
	require.Len(t, funcs, 1)
	assert.Equal(t, "main", funcs[0].Name)
}

// =============================================================================
// Regex fallback
// =============================================================================

func TestFile_FallbackWhenNoGrammar(t *testing.T) {
	t.Parallel()
	cap := &lang.Capability{Language: "pseudo", AllowFallback: true}
	src := []byte("import sys\n\nclass Thing:\n    pass\n\ndef run():\n    pass\n")

	res := File(context.Background(), "x.pseudo", src, cap)
	require.False(t, res.Degraded)

	classes := byKind(res, entity.KindClass)
	require.Len(t, classes, 1)
	assert.Equal(t, "Thing", classes[0].Name)
	assert.Equal(t, entity.ConfidenceFallback, classes[0].Confidence)
	assert.Empty(t, classes[0].Signature)

	funcs := byKind(res, entity.KindFunction)
	require.Len(t, funcs, 1)
	assert.Equal(t, "run", funcs[0].Name)

	imports := byKind(res, entity.KindImport)
	require.Len(t, imports, 1)
	assert.Equal(t, "sys", imports[0].Name)
}

func TestFile_FallbackParentsToModule(t *testing.T) {
	t.Parallel()
	cap := &lang.Capability{Language: "pseudo", AllowFallback: true}
	res := File(context.Background(), "x.pseudo", []byte("def one():\n    pass\n"), cap)

	module := res.Entities[0]
	for _, e := range res.Entities[1:] {
		assert.Equal(t, module.ID, e.ParentID)
	}
}

// =============================================================================
// Degraded files
// =============================================================================

func TestFile_DegradedWithoutGrammarOrFallback(t *testing.T) {
	t.Parallel()
	cap := &lang.Capability{Language: "opaque"}
	res := File(context.Background(), "x.bin", []byte{0x00, 0x01}, cap)

	assert.True(t, res.Degraded)
	assert.Empty(t, res.Entities)
}

// =============================================================================
// Anonymous constructs
// =============================================================================

func TestFile_AnonymousEntityGetsPlaceholderName(t *testing.T) {
	t.Parallel()
	// A C struct without a tag has no name field.
	src := []byte("struct { int x; } pair;\n")
	res := File(context.Background(), "pair.c", src, capFor(t, "c"))

	classes := byKind(res, entity.KindClass)
	require.NotEmpty(t, classes)
	for _, c := range classes {
		assert.NotEmpty(t, c.Name)
	}
}
