// Package extract turns one file's parsed syntax into an ordered sequence
// of entities. Extraction never fails a build: files that cannot be parsed
// degrade to the coarse regex pass or to a bare module entity.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/lantern/internal/entity"
	"github.com/jward/lantern/internal/lang"
)

// Result is the outcome of extracting one file. Entities are in document
// order with the module entity first. Degraded is set when neither a
// precise parse nor the regex fallback was possible, or the parse failed
// with no fallback allowed.
type Result struct {
	Entities []*entity.Entity
	Degraded bool
}

// snippetLimit bounds the source text retained per entity for embedding.
const snippetLimit = 300

// File extracts entities from src. relPath is the path recorded on the
// entities (relative to the index root). A degraded file yields zero
// entities, not even a module node, so downstream consumers never see a
// half-extracted file.
func File(ctx context.Context, relPath string, src []byte, cap *lang.Capability) Result {
	module := moduleEntity(relPath, src, cap.Language)
	res := Result{Entities: []*entity.Entity{module}}

	if cap.Precise() {
		tree, err := cap.Parse(ctx, src)
		if err == nil && tree != nil {
			defer tree.Close()
			walkTree(tree.RootNode(), src, relPath, cap, module, &res)
			return res
		}
		// Parse failed; fall through to the regex pass if allowed.
	}

	if cap.AllowFallback {
		fallback(src, relPath, cap.Language, module, &res)
		return res
	}

	return Result{Degraded: true}
}

func moduleEntity(relPath string, src []byte, language string) *entity.Entity {
	e := &entity.Entity{
		ID:         entity.NewID(relPath, entity.KindModule, "", 0),
		Kind:       entity.KindModule,
		Name:       filepath.Base(relPath),
		FilePath:   relPath,
		StartLine:  1,
		EndLine:    bytes.Count(src, []byte{'\n'}) + 1,
		Language:   language,
		Confidence: entity.ConfidencePrecise,
	}
	e.SetText(snippet(string(src), snippetLimit))
	return e
}

// walkTree visits the syntax tree in document order, tracking the nearest
// enclosing extracted entity for parent links and method classification.
func walkTree(root *sitter.Node, src []byte, relPath string, cap *lang.Capability, module *entity.Entity, res *Result) {
	var walk func(n *sitter.Node, parent *entity.Entity)
	walk = func(n *sitter.Node, parent *entity.Entity) {
		enclosing := parent

		if cap.ImportNodes[n.Type()] && cap.Imports != nil {
			for _, raw := range cap.Imports(n, src) {
				res.Entities = append(res.Entities, importEntity(n, raw, relPath, cap.Language, module))
			}
		} else if kind, ok := cap.NodeKinds[n.Type()]; ok {
			e := namedEntity(n, src, relPath, cap.Language, kind, parent)
			res.Entities = append(res.Entities, e)
			enclosing = e
		}

		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i), enclosing)
		}
	}
	walk(root, module)
}

func importEntity(n *sitter.Node, raw, relPath, language string, module *entity.Entity) *entity.Entity {
	line := int(n.StartPoint().Row) + 1
	e := &entity.Entity{
		ID:         entity.NewID(relPath, entity.KindImport, raw, line),
		Kind:       entity.KindImport,
		Name:       raw,
		FilePath:   relPath,
		StartLine:  line,
		EndLine:    int(n.EndPoint().Row) + 1,
		Language:   language,
		Confidence: entity.ConfidencePrecise,
		ParentID:   module.ID,
	}
	e.SetText(raw)
	return e
}

func namedEntity(n *sitter.Node, src []byte, relPath, language string, kind entity.Kind, parent *entity.Entity) *entity.Entity {
	startLine := int(n.StartPoint().Row) + 1
	name := nodeName(n, src)
	if name == "" {
		name = fmt.Sprintf("anonymous@%d", startLine)
	}

	// A function declared inside a class body is a method.
	if kind == entity.KindFunction && parent != nil && parent.Kind == entity.KindClass {
		kind = entity.KindMethod
	}

	e := &entity.Entity{
		ID:         entity.NewID(relPath, kind, name, startLine),
		Kind:       kind,
		Name:       name,
		FilePath:   relPath,
		StartLine:  startLine,
		EndLine:    int(n.EndPoint().Row) + 1,
		Signature:  signature(n, src),
		Docstring:  docstring(n, src, language),
		Language:   language,
		Confidence: entity.ConfidencePrecise,
	}
	if parent != nil {
		e.ParentID = parent.ID
	}
	e.SetText(snippet(string(src[n.StartByte():n.EndByte()]), snippetLimit))
	return e
}

// nodeName locates the declared identifier of a syntax node. The name field
// covers most grammars; C-family declarators nest the identifier inside the
// declarator field.
func nodeName(n *sitter.Node, src []byte) string {
	if name := n.ChildByFieldName("name"); name != nil {
		return text(name, src)
	}
	if decl := n.ChildByFieldName("declarator"); decl != nil {
		if name := identifierIn(decl, src); name != "" {
			return name
		}
	}
	return identifierChild(n, src)
}

func identifierChild(n *sitter.Node, src []byte) string {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "identifier", "type_identifier", "property_identifier",
			"field_identifier", "constant", "name":
			return text(child, src)
		}
	}
	return ""
}

func identifierIn(n *sitter.Node, src []byte) string {
	switch n.Type() {
	case "identifier", "field_identifier":
		return text(n, src)
	}
	if decl := n.ChildByFieldName("declarator"); decl != nil {
		return identifierIn(decl, src)
	}
	return identifierChild(n, src)
}

// signature renders parameter and result lists where the grammar exposes
// them as fields.
func signature(n *sitter.Node, src []byte) string {
	var parts []string
	if params := n.ChildByFieldName("parameters"); params != nil {
		parts = append(parts, text(params, src))
	}
	if ret := n.ChildByFieldName("result"); ret != nil {
		parts = append(parts, text(ret, src))
	} else if ret := n.ChildByFieldName("return_type"); ret != nil {
		parts = append(parts, "-> "+text(ret, src))
	}
	return strings.Join(parts, " ")
}

// docstring extracts attached documentation: a Python-style leading string
// in the body, or the comment immediately preceding the declaration.
func docstring(n *sitter.Node, src []byte, language string) string {
	if language == "python" {
		if body := n.ChildByFieldName("body"); body != nil && body.NamedChildCount() > 0 {
			first := body.NamedChild(0)
			if first.Type() == "expression_statement" && first.NamedChildCount() > 0 {
				if expr := first.NamedChild(0); expr.Type() == "string" {
					return trimDocQuotes(text(expr, src))
				}
			}
		}
		return ""
	}
	if prev := n.PrevNamedSibling(); prev != nil && prev.Type() == "comment" {
		return strings.TrimSpace(text(prev, src))
	}
	return ""
}

func trimDocQuotes(s string) string {
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		s = strings.TrimPrefix(s, q)
		s = strings.TrimSuffix(s, q)
	}
	return strings.TrimSpace(s)
}

func text(n *sitter.Node, src []byte) string {
	return string(src[n.StartByte():n.EndByte()])
}

func snippet(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
