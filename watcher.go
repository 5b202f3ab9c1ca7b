package lantern

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jward/lantern/internal/walker"
)

// WatcherConfig configures the rebuild-on-change watcher.
type WatcherConfig struct {
	// DebounceDelay is how long to wait for more changes before rebuilding.
	// Defaults to 500ms.
	DebounceDelay time.Duration

	// OnRebuild is called after each triggered rebuild with the build
	// outcome. Optional.
	OnRebuild func(BuildStats, error)

	// Logger for watch events. Defaults to the engine's logger.
	Logger *slog.Logger
}

// Watcher triggers full index rebuilds when files under the engine's root
// change. The index is rebuilt wholesale, so the watcher only has to decide
// when, not what.
type Watcher struct {
	engine  *Engine
	config  WatcherConfig
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	pendingMu sync.Mutex
	pending   int
}

// NewWatcher creates a watcher over the engine's root.
func NewWatcher(engine *Engine, config WatcherConfig) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	logger := config.Logger
	if logger == nil {
		logger = engine.logger
	}
	if config.DebounceDelay == 0 {
		config.DebounceDelay = 500 * time.Millisecond
	}
	return &Watcher{
		engine:  engine,
		config:  config,
		watcher: fsw,
		logger:  logger,
	}, nil
}

// Start adds recursive watches and begins processing events until ctx is
// cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addWatchesRecursive(w.engine.Root()); err != nil {
		return err
	}
	go w.processEvents(ctx)
	w.logger.Info("file watcher started",
		"root", w.engine.Root(),
		"debounce", w.config.DebounceDelay)
	return nil
}

// Stop closes the underlying fsnotify watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) addWatchesRecursive(root string) error {
	ignored := w.engine.policy.IgnoredDirNames
	if ignored == nil {
		ignored = walker.DefaultIgnoredDirs
	}
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if path != root {
			if w.engine.policy.SkipHidden && strings.HasPrefix(base, ".") {
				return filepath.SkipDir
			}
			if ignored[base] {
				return filepath.SkipDir
			}
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	ticker := time.NewTicker(w.config.DebounceDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)

		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	path := event.Name

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.addWatchesRecursive(path); err != nil {
				w.logger.Warn("failed to watch new directory", "path", path, "error", err)
			}
		}
	}

	// Only indexed languages matter; everything else is noise.
	if _, ok := w.engine.registry.ForFile(path); !ok {
		return
	}

	w.pendingMu.Lock()
	w.pending++
	w.pendingMu.Unlock()
}

// flushPending rebuilds once per debounce window with changes.
func (w *Watcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	n := w.pending
	w.pending = 0
	w.pendingMu.Unlock()
	if n == 0 {
		return
	}

	w.logger.Debug("rebuilding after file changes", "changes", n)
	stats, err := w.engine.Build(ctx)
	if err != nil {
		w.logger.Error("rebuild failed", "error", err)
	}
	if w.config.OnRebuild != nil {
		w.config.OnRebuild(stats, err)
	}
}
