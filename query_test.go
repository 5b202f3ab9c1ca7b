package lantern

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// archProject is a two-directory tree with a hub module, an entry point,
// and one external import.
func archProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "go.mod", "module example.com/app\n")
	writeFile(t, root, "app/main.py", ""+
		"from core.hub import run\n\n"+
		"def main():\n    run()\n")
	writeFile(t, root, "app/worker.py", "from core.hub import run\n")
	writeFile(t, root, "core/hub.py", ""+
		"import requests\n\n"+
		"class Hub:\n"+
		"    \"\"\"Central dispatcher.\"\"\"\n\n"+
		"    def dispatch(self):\n        pass\n\n"+
		"def run():\n    pass\n")
	return root
}

// =============================================================================
// Structure
// =============================================================================

func TestStructure_OutlineWithNesting(t *testing.T) {
	t.Parallel()
	eng, _ := buildEngine(t, archProject(t))

	entries := eng.Query().Structure("core/hub.py")
	require.Len(t, entries, 3)

	assert.Equal(t, KindClass, entries[0].Kind)
	assert.Equal(t, "Hub", entries[0].Name)
	assert.Equal(t, 0, entries[0].Depth)

	assert.Equal(t, KindMethod, entries[1].Kind)
	assert.Equal(t, "dispatch", entries[1].Name)
	assert.Equal(t, 1, entries[1].Depth)

	assert.Equal(t, KindFunction, entries[2].Kind)
	assert.Equal(t, "run", entries[2].Name)
	assert.Equal(t, 0, entries[2].Depth)
}

func TestStructure_OmitsModuleAndImports(t *testing.T) {
	t.Parallel()
	eng, _ := buildEngine(t, archProject(t))

	for _, e := range eng.Query().Structure("core/hub.py") {
		assert.NotEqual(t, KindModule, e.Kind)
		assert.NotEqual(t, KindImport, e.Kind)
	}
}

func TestStructure_UnknownFile(t *testing.T) {
	t.Parallel()
	eng, _ := buildEngine(t, archProject(t))
	assert.Nil(t, eng.Query().Structure("no/such.py"))
	assert.Empty(t, eng.Query().RenderStructure("no/such.py"))
}

func TestRenderStructure_IndentsByDepth(t *testing.T) {
	t.Parallel()
	eng, _ := buildEngine(t, archProject(t))

	text := eng.Query().RenderStructure("core/hub.py")
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	require.Len(t, lines, 4)

	assert.Equal(t, "core/hub.py", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "  class Hub"))
	assert.True(t, strings.HasPrefix(lines[2], "    method dispatch"))
	assert.True(t, strings.HasPrefix(lines[3], "  function run"))
}

// =============================================================================
// Summary
// =============================================================================

func TestSummary_CountsAndImports(t *testing.T) {
	t.Parallel()
	eng, _ := buildEngine(t, archProject(t))

	s, ok := eng.Query().Summary("core/hub.py")
	require.True(t, ok)

	assert.Equal(t, "core/hub.py", s.FilePath)
	assert.Equal(t, "python", s.Language)
	assert.Positive(t, s.Lines)
	assert.Equal(t, 1, s.EntityCounts[KindClass])
	assert.Equal(t, 1, s.EntityCounts[KindMethod])
	assert.Equal(t, 1, s.EntityCounts[KindFunction])
	assert.Equal(t, []string{"requests"}, s.Imports)
}

func TestSummary_UnknownFile(t *testing.T) {
	t.Parallel()
	eng, _ := buildEngine(t, archProject(t))
	_, ok := eng.Query().Summary("no/such.py")
	assert.False(t, ok)
}

// =============================================================================
// Architecture
// =============================================================================

func TestArchitecture_Summary(t *testing.T) {
	t.Parallel()
	eng, _ := buildEngine(t, archProject(t))

	arch := eng.Query().Architecture()

	assert.Equal(t, "go", arch.ProjectType)
	assert.Equal(t, 3, arch.TotalFiles)
	assert.Equal(t, 3, arch.Languages["python"])
	assert.Equal(t, []string{"app", "core"}, arch.TopLevelDirs)
	assert.Equal(t, []string{"app/main.py"}, arch.EntryPoints)
	assert.Zero(t, arch.CycleCount)
	assert.Equal(t, 1, arch.Components)
}

func TestArchitecture_CentralModules(t *testing.T) {
	t.Parallel()
	eng, _ := buildEngine(t, archProject(t))

	arch := eng.Query().Architecture()
	require.NotEmpty(t, arch.CentralModules)

	// The hub is imported by both app files, making it the best connected.
	assert.Equal(t, "core/hub.py", arch.CentralModules[0].Module)
	for i := 1; i < len(arch.CentralModules); i++ {
		assert.LessOrEqual(t, arch.CentralModules[i].Centrality, arch.CentralModules[0].Centrality)
	}
}

func TestArchitecture_EmptyIndex(t *testing.T) {
	t.Parallel()
	eng, err := New(t.TempDir())
	require.NoError(t, err)
	defer eng.Close()

	arch := eng.Query().Architecture()
	assert.Zero(t, arch.TotalFiles)
	assert.Empty(t, arch.Languages)
}

func TestArchitecture_MainFunctionMarksEntryPoint(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "tool.py", "def main():\n    pass\n")
	eng, _ := buildEngine(t, root)

	arch := eng.Query().Architecture()
	assert.Equal(t, []string{"tool.py"}, arch.EntryPoints)
}
