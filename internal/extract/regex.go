package extract

import (
	"regexp"
	"strings"

	"github.com/jward/lantern/internal/entity"
)

// Coarse declaration patterns applied when no grammar parse is possible.
// These match top-level declarations across the supported languages; the
// resulting entities carry fallback confidence and no signature.
var fallbackPatterns = []struct {
	re   *regexp.Regexp
	kind entity.Kind
}{
	{regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:abstract\s+)?class\s+(\w+)`), entity.KindClass},
	{regexp.MustCompile(`(?m)^\s*(?:pub\s+)?struct\s+(\w+)`), entity.KindClass},
	{regexp.MustCompile(`(?m)^\s*(?:export\s+)?interface\s+(\w+)`), entity.KindClass},
	{regexp.MustCompile(`(?m)^\s*(?:pub\s+)?enum\s+(\w+)`), entity.KindClass},
	{regexp.MustCompile(`(?m)^\s*(?:async\s+)?(?:def|func|function|fn)\s+(\w+)`), entity.KindFunction},
	{regexp.MustCompile(`(?m)^\s*type\s+(\w+)`), entity.KindClass},
}

var fallbackImportPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\s*import\s+([^\s;("]+)`),
	regexp.MustCompile(`(?m)^\s*from\s+(\S+)\s+import`),
	regexp.MustCompile(`require\s*\(\s*['"]([^'"]+)['"]\s*\)`),
	regexp.MustCompile(`(?m)^\s*#include\s*[<"]([^>"]+)[>"]`),
	regexp.MustCompile(`(?m)^\s*use\s+([^\s;]+)`),
}

// fallback runs the regex pass over src, appending coarse entities to res.
func fallback(src []byte, relPath, language string, module *entity.Entity, res *Result) {
	content := string(src)

	type match struct {
		offset int
		name   string
		kind   entity.Kind
	}
	var matches []match
	seen := make(map[string]bool)

	for _, p := range fallbackPatterns {
		for _, m := range p.re.FindAllStringSubmatchIndex(content, -1) {
			name := content[m[2]:m[3]]
			key := string(p.kind) + ":" + name
			if seen[key] {
				continue
			}
			seen[key] = true
			matches = append(matches, match{offset: m[0], name: name, kind: p.kind})
		}
	}

	// Document order.
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].offset < matches[j-1].offset; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}

	for _, m := range matches {
		line := lineAt(content, m.offset)
		e := &entity.Entity{
			ID:         entity.NewID(relPath, m.kind, m.name, line),
			Kind:       m.kind,
			Name:       m.name,
			FilePath:   relPath,
			StartLine:  line,
			EndLine:    line,
			Language:   language,
			Confidence: entity.ConfidenceFallback,
			ParentID:   module.ID,
		}
		end := m.offset + snippetLimit
		if end > len(content) {
			end = len(content)
		}
		e.SetText(content[m.offset:end])
		res.Entities = append(res.Entities, e)
	}

	seenImports := make(map[string]bool)
	for _, re := range fallbackImportPatterns {
		for _, m := range re.FindAllStringSubmatchIndex(content, -1) {
			raw := content[m[2]:m[3]]
			if seenImports[raw] {
				continue
			}
			seenImports[raw] = true
			line := lineAt(content, m[0])
			e := &entity.Entity{
				ID:         entity.NewID(relPath, entity.KindImport, raw, line),
				Kind:       entity.KindImport,
				Name:       raw,
				FilePath:   relPath,
				StartLine:  line,
				EndLine:    line,
				Language:   language,
				Confidence: entity.ConfidenceFallback,
				ParentID:   module.ID,
			}
			e.SetText(raw)
			res.Entities = append(res.Entities, e)
		}
	}
}

func lineAt(content string, offset int) int {
	return strings.Count(content[:offset], "\n") + 1
}
