package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/lantern"
	"github.com/jward/lantern/internal/encode"
	"github.com/jward/lantern/internal/store"
)

var (
	flagConfig  string
	flagFormat  string
	flagVerbose bool
	flagStored  bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "lantern",
	Short:         "Structural and semantic codebase index",
	Long:          "Lantern indexes a source tree into an entity graph and a module dependency graph, with token and semantic search over the result.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
	// No Run — prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: lantern.yaml in the target directory)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagStored, "stored", false, "serve from the persisted snapshot instead of rebuilding (requires store_path)")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(depsCmd)
	rootCmd.AddCommand(cyclesCmd)
	rootCmd.AddCommand(structureCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(archCmd)
}

// newEngine loads config, builds the engine, and runs one build pass.
// withEncoder controls whether the embedding model is loaded; only search
// needs it.
func newEngine(ctx context.Context, args []string, withEncoder bool) (*lantern.Engine, error) {
	root, err := resolveTargetDir(args)
	if err != nil {
		return nil, err
	}

	configPath := flagConfig
	if configPath == "" {
		configPath = filepath.Join(root, lantern.ConfigFile)
	}
	cfg, err := lantern.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	opts := []lantern.Option{
		lantern.WithLogger(logger),
		lantern.WithPolicy(cfg.Policy()),
		lantern.WithFalsePositiveRate(cfg.Search.FalsePositiveRate),
	}
	if cfg.Workers > 0 {
		opts = append(opts, lantern.WithWorkers(cfg.Workers))
	}
	if cfg.StorePath != "" {
		s, err := store.NewStore(cfg.StorePath)
		if err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}
		if err := s.Migrate(); err != nil {
			s.Close()
			return nil, fmt.Errorf("migrating store: %w", err)
		}
		opts = append(opts, lantern.WithStore(s))
	}
	if withEncoder && !cfg.Search.Disabled {
		enc, err := encode.NewHugotEncoder(cfg.Search.ModelDir)
		if err != nil {
			return nil, fmt.Errorf("loading encoder: %w", err)
		}
		opts = append(opts, lantern.WithEncoder(enc))
	}

	engine, err := lantern.New(root, opts...)
	if err != nil {
		return nil, err
	}
	if flagStored {
		if err := engine.Restore(); err != nil {
			engine.Close()
			return nil, fmt.Errorf("restoring snapshot: %w", err)
		}
		return engine, nil
	}
	if _, err := engine.Build(ctx); err != nil {
		engine.Close()
		return nil, fmt.Errorf("building index: %w", err)
	}
	return engine, nil
}

var flagWatch bool

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Build the index and report build statistics",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagWatch, "watch", false, "stay running and rebuild on file changes")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	engine, err := newEngine(ctx, args, false)
	if err != nil {
		return err
	}
	defer engine.Close()

	stats := engine.Query().Stats()
	if err := output(os.Stdout, stats, formatStatsText); err != nil {
		return err
	}

	if !flagWatch {
		return nil
	}

	watchCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := lantern.NewWatcher(engine, lantern.WatcherConfig{
		DebounceDelay: 500 * time.Millisecond,
		OnRebuild: func(stats lantern.BuildStats, err error) {
			if err == nil {
				_ = output(os.Stdout, stats, formatStatsText)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Start(watchCtx); err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer watcher.Stop()

	<-watchCtx.Done()
	return nil
}

var flagTopK int

var searchCmd = &cobra.Command{
	Use:   "search <query> [path]",
	Short: "Semantic search over indexed entities",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&flagTopK, "k", 5, "number of results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	engine, err := newEngine(ctx, args[1:], true)
	if err != nil {
		return err
	}
	defer engine.Close()

	results, err := engine.Search(ctx, args[0], flagTopK)
	if err != nil {
		return err
	}
	return output(os.Stdout, results, formatSearchText)
}

var findCmd = &cobra.Command{
	Use:   "find <token> [path]",
	Short: "Look up entities by name token or substring",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runFind,
}

func runFind(cmd *cobra.Command, args []string) error {
	engine, err := newEngine(cmd.Context(), args[1:], false)
	if err != nil {
		return err
	}
	defer engine.Close()

	ents := engine.Query().FindEntities(args[0])
	return output(os.Stdout, ents, formatEntitiesText)
}

var flagReverse bool

var depsCmd = &cobra.Command{
	Use:   "deps <module> [path]",
	Short: "List a module's dependencies (or dependents with --reverse)",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runDeps,
}

func init() {
	depsCmd.Flags().BoolVar(&flagReverse, "reverse", false, "list dependents instead of dependencies")
}

func runDeps(cmd *cobra.Command, args []string) error {
	engine, err := newEngine(cmd.Context(), args[1:], false)
	if err != nil {
		return err
	}
	defer engine.Close()

	q := engine.Query()
	var modules []string
	if flagReverse {
		modules = q.DependentsOf(args[0])
	} else {
		modules = q.DependenciesOf(args[0])
	}
	return output(os.Stdout, modules, formatModulesText)
}

var cyclesCmd = &cobra.Command{
	Use:   "cycles [path]",
	Short: "Detect dependency cycles",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCycles,
}

func runCycles(cmd *cobra.Command, args []string) error {
	engine, err := newEngine(cmd.Context(), args, false)
	if err != nil {
		return err
	}
	defer engine.Close()

	cycles := engine.Query().FindCycles()
	return output(os.Stdout, cycles, formatCyclesText)
}

var structureCmd = &cobra.Command{
	Use:   "structure <file> [path]",
	Short: "Outline one file's entities",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runStructure,
}

func runStructure(cmd *cobra.Command, args []string) error {
	engine, err := newEngine(cmd.Context(), args[1:], false)
	if err != nil {
		return err
	}
	defer engine.Close()

	q := engine.Query()
	if flagFormat == "text" {
		fmt.Fprint(os.Stdout, q.RenderStructure(args[0]))
		return nil
	}
	summary, _ := q.Summary(args[0])
	return output(os.Stdout, struct {
		Summary lantern.FileSummary      `json:"summary"`
		Outline []lantern.StructureEntry `json:"outline"`
	}{summary, q.Structure(args[0])}, nil)
}

var (
	flagReadStart int
	flagReadEnd   int
)

var readCmd = &cobra.Command{
	Use:   "read <file> [path]",
	Short: "Print a line range of one indexed file",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runRead,
}

func init() {
	readCmd.Flags().IntVar(&flagReadStart, "start", 1, "first line, 1-based")
	readCmd.Flags().IntVar(&flagReadEnd, "end", 0, "last line inclusive (0 means end of file)")
}

func runRead(cmd *cobra.Command, args []string) error {
	engine, err := newEngine(cmd.Context(), args[1:], false)
	if err != nil {
		return err
	}
	defer engine.Close()

	text, err := engine.ReadSource(args[0], flagReadStart, flagReadEnd)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, text)
	return nil
}

var archCmd = &cobra.Command{
	Use:   "arch [path]",
	Short: "Summarize the codebase architecture",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runArch,
}

func runArch(cmd *cobra.Command, args []string) error {
	engine, err := newEngine(cmd.Context(), args, false)
	if err != nil {
		return err
	}
	defer engine.Close()

	return output(os.Stdout, engine.Query().Architecture(), formatArchText)
}

// resolveTargetDir returns the absolute path of the directory to index.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}
