package lantern

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, eng *Engine) chan BuildStats {
	t.Helper()
	rebuilt := make(chan BuildStats, 8)
	w, err := NewWatcher(eng, WatcherConfig{
		DebounceDelay: 50 * time.Millisecond,
		OnRebuild: func(stats BuildStats, err error) {
			if err == nil {
				rebuilt <- stats
			}
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	t.Cleanup(func() {
		cancel()
		w.Stop()
	})
	return rebuilt
}

func TestWatcher_RebuildsOnSourceChange(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "a.py", "def fa():\n    pass\n")
	eng, _ := buildEngine(t, root)

	rebuilt := startWatcher(t, eng)
	writeFile(t, root, "b.py", "def fb():\n    pass\n")

	select {
	case stats := <-rebuilt:
		assert.Equal(t, 2, stats.FilesSeen)
	case <-time.After(5 * time.Second):
		t.Fatal("no rebuild after source change")
	}
	assert.Contains(t, eng.Query().Files(), "b.py")
}

func TestWatcher_IgnoresUnindexedFiles(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "a.py", "def fa():\n    pass\n")
	eng, _ := buildEngine(t, root)

	rebuilt := startWatcher(t, eng)
	writeFile(t, root, "notes.txt", "not source")

	select {
	case <-rebuilt:
		t.Fatal("rebuild triggered by a file with no registered language")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_CoalescesBurstsIntoOneRebuild(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "a.py", "def fa():\n    pass\n")
	eng, _ := buildEngine(t, root)

	rebuilt := startWatcher(t, eng)
	for i := range 5 {
		writeFile(t, root, "a.py", "def fa():\n    pass\n#"+string(rune('0'+i))+"\n")
	}

	select {
	case <-rebuilt:
	case <-time.After(5 * time.Second):
		t.Fatal("no rebuild after burst")
	}
	// The burst lands inside one debounce window; allow at most one
	// trailing rebuild for events that slipped past it.
	time.Sleep(200 * time.Millisecond)
	assert.LessOrEqual(t, len(rebuilt), 1)
}
