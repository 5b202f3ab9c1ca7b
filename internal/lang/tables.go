package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	ts "github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/jward/lantern/internal/entity"
)

// DefaultRegistry builds the registry with every bundled grammar. Grammars
// are constructed once and shared; parsers are created per parse.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(&Capability{
		Language: "go",
		Grammar:  golang.GetLanguage(),
		NodeKinds: map[string]entity.Kind{
			"function_declaration": entity.KindFunction,
			"method_declaration":   entity.KindMethod,
			"type_spec":            entity.KindClass,
		},
		ImportNodes:   map[string]bool{"import_declaration": true},
		Imports:       goImports,
		AllowFallback: true,
	}, ".go")

	r.Register(&Capability{
		Language: "python",
		Grammar:  python.GetLanguage(),
		NodeKinds: map[string]entity.Kind{
			"class_definition":    entity.KindClass,
			"function_definition": entity.KindFunction,
		},
		ImportNodes: map[string]bool{
			"import_statement":      true,
			"import_from_statement": true,
		},
		Imports:       pythonImports,
		AllowFallback: true,
	}, ".py")

	r.Register(&Capability{
		Language: "javascript",
		Grammar:  javascript.GetLanguage(),
		NodeKinds: map[string]entity.Kind{
			"class_declaration":    entity.KindClass,
			"function_declaration": entity.KindFunction,
			"method_definition":    entity.KindMethod,
		},
		ImportNodes:   map[string]bool{"import_statement": true},
		Imports:       sourceFieldImports,
		AllowFallback: true,
	}, ".js", ".jsx", ".mjs", ".cjs")

	r.Register(&Capability{
		Language: "typescript",
		Grammar:  ts.GetLanguage(),
		NodeKinds: map[string]entity.Kind{
			"class_declaration":      entity.KindClass,
			"interface_declaration":  entity.KindClass,
			"type_alias_declaration": entity.KindClass,
			"function_declaration":   entity.KindFunction,
			"method_definition":      entity.KindMethod,
			"method_signature":       entity.KindMethod,
		},
		ImportNodes:   map[string]bool{"import_statement": true},
		Imports:       sourceFieldImports,
		AllowFallback: true,
	}, ".ts", ".tsx", ".mts")

	r.Register(&Capability{
		Language: "java",
		Grammar:  java.GetLanguage(),
		NodeKinds: map[string]entity.Kind{
			"class_declaration":       entity.KindClass,
			"interface_declaration":   entity.KindClass,
			"enum_declaration":        entity.KindClass,
			"method_declaration":      entity.KindMethod,
			"constructor_declaration": entity.KindMethod,
		},
		ImportNodes:   map[string]bool{"import_declaration": true},
		Imports:       firstNamedChildImports,
		AllowFallback: true,
	}, ".java")

	r.Register(&Capability{
		Language: "rust",
		Grammar:  rust.GetLanguage(),
		NodeKinds: map[string]entity.Kind{
			"struct_item":   entity.KindClass,
			"enum_item":     entity.KindClass,
			"trait_item":    entity.KindClass,
			"function_item": entity.KindFunction,
			"const_item":    entity.KindVariable,
			"static_item":   entity.KindVariable,
		},
		ImportNodes:   map[string]bool{"use_declaration": true},
		Imports:       firstNamedChildImports,
		AllowFallback: true,
	}, ".rs")

	r.Register(&Capability{
		Language: "c",
		Grammar:  c.GetLanguage(),
		NodeKinds: map[string]entity.Kind{
			"function_definition": entity.KindFunction,
			"struct_specifier":    entity.KindClass,
			"enum_specifier":      entity.KindClass,
		},
		ImportNodes:   map[string]bool{"preproc_include": true},
		Imports:       includeImports,
		AllowFallback: true,
	}, ".c", ".h")

	r.Register(&Capability{
		Language: "cpp",
		Grammar:  cpp.GetLanguage(),
		NodeKinds: map[string]entity.Kind{
			"function_definition": entity.KindFunction,
			"class_specifier":     entity.KindClass,
			"struct_specifier":    entity.KindClass,
		},
		ImportNodes:   map[string]bool{"preproc_include": true},
		Imports:       includeImports,
		AllowFallback: true,
	}, ".cpp", ".cc", ".cxx", ".hpp")

	r.Register(&Capability{
		Language: "ruby",
		Grammar:  ruby.GetLanguage(),
		NodeKinds: map[string]entity.Kind{
			"class":  entity.KindClass,
			"module": entity.KindClass,
			"method": entity.KindMethod,
		},
		AllowFallback: true,
	}, ".rb")

	return r
}

// goImports walks an import_declaration for interpreted string literals.
func goImports(n *sitter.Node, src []byte) []string {
	var out []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "interpreted_string_literal" {
			out = append(out, trimQuotes(nodeText(n, src)))
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(n)
	return out
}

// pythonImports handles both plain imports and from-imports, keeping the
// module name only and dropping aliases.
func pythonImports(n *sitter.Node, src []byte) []string {
	if n.Type() == "import_from_statement" {
		if mod := n.ChildByFieldName("module_name"); mod != nil {
			return []string{nodeText(mod, src)}
		}
		return nil
	}
	var out []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "dotted_name", "relative_import":
			out = append(out, nodeText(child, src))
		case "aliased_import":
			if name := child.ChildByFieldName("name"); name != nil {
				out = append(out, nodeText(name, src))
			}
		}
	}
	return out
}

// sourceFieldImports reads the quoted source field of a JS/TS import.
func sourceFieldImports(n *sitter.Node, src []byte) []string {
	if source := n.ChildByFieldName("source"); source != nil {
		return []string{trimQuotes(nodeText(source, src))}
	}
	return nil
}

// firstNamedChildImports takes the first named child's text, which covers
// Java import_declaration and Rust use_declaration.
func firstNamedChildImports(n *sitter.Node, src []byte) []string {
	if n.NamedChildCount() == 0 {
		return nil
	}
	return []string{nodeText(n.NamedChild(0), src)}
}

// includeImports reads the path of a C/C++ preprocessor include.
func includeImports(n *sitter.Node, src []byte) []string {
	if path := n.ChildByFieldName("path"); path != nil {
		text := nodeText(path, src)
		text = strings.Trim(text, `"<>`)
		return []string{text}
	}
	return nil
}

func nodeText(n *sitter.Node, src []byte) string {
	return string(src[n.StartByte():n.EndByte()])
}

func trimQuotes(s string) string {
	return strings.Trim(s, "\"'`")
}
