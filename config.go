package lantern

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jward/lantern/internal/walker"
)

// ConfigFile is the project-level configuration file name, looked up in
// the index root.
const ConfigFile = "lantern.yaml"

// Config is the YAML configuration surface. Zero values mean defaults.
type Config struct {
	// Root is the directory to index. Defaults to the current directory.
	Root string `yaml:"root"`

	Ignore  IgnoreConfig  `yaml:"ignore"`
	Search  SearchConfig  `yaml:"search"`
	Context ContextConfig `yaml:"context"`

	// Workers is the extraction worker count. Zero means NumCPU.
	Workers int `yaml:"workers"`

	// StorePath enables SQLite persistence of snapshots and vectors.
	StorePath string `yaml:"store_path"`
}

// IgnoreConfig mirrors the walk policy.
type IgnoreConfig struct {
	SkipHidden        *bool    `yaml:"skip_hidden"`
	IgnoredDirs       []string `yaml:"ignored_dirs"`
	MaxFileSizeBytes  int64    `yaml:"max_file_size_bytes"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
	Globs             []string `yaml:"globs"`
}

// SearchConfig tunes the search layer.
type SearchConfig struct {
	// FalsePositiveRate targets the presence filter's false positive rate.
	FalsePositiveRate float64 `yaml:"false_positive_rate"`

	// ModelDir is where the embedding model is downloaded and loaded from.
	ModelDir string `yaml:"model_dir"`

	// Disabled turns off the embedding encoder; token search still works.
	Disabled bool `yaml:"disabled"`
}

// ContextConfig tunes exploration sessions.
type ContextConfig struct {
	// Bound is the number of query/result records kept per session.
	Bound int `yaml:"bound"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		Root: ".",
		Search: SearchConfig{
			FalsePositiveRate: 0.01,
			ModelDir:          "./models",
		},
		Context: ContextConfig{Bound: DefaultContextBound},
	}
}

// LoadConfig reads a YAML config file and applies defaults for unset
// fields. A missing file yields the defaults without error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg.withDefaults(), nil
}

func (c Config) withDefaults() Config {
	if c.Root == "" {
		c.Root = "."
	}
	if c.Search.FalsePositiveRate <= 0 || c.Search.FalsePositiveRate >= 1 {
		c.Search.FalsePositiveRate = 0.01
	}
	if c.Search.ModelDir == "" {
		c.Search.ModelDir = "./models"
	}
	if c.Context.Bound <= 0 {
		c.Context.Bound = DefaultContextBound
	}
	return c
}

// Policy converts the ignore section into a walk policy.
func (c Config) Policy() walker.Policy {
	policy := walker.DefaultPolicy()
	if c.Ignore.SkipHidden != nil {
		policy.SkipHidden = *c.Ignore.SkipHidden
	}
	if len(c.Ignore.IgnoredDirs) > 0 {
		dirs := make(map[string]bool, len(c.Ignore.IgnoredDirs))
		for _, d := range c.Ignore.IgnoredDirs {
			dirs[d] = true
		}
		policy.IgnoredDirNames = dirs
	}
	if c.Ignore.MaxFileSizeBytes > 0 {
		policy.MaxFileSize = c.Ignore.MaxFileSizeBytes
	}
	if len(c.Ignore.AllowedExtensions) > 0 {
		exts := make(map[string]bool, len(c.Ignore.AllowedExtensions))
		for _, e := range c.Ignore.AllowedExtensions {
			exts[e] = true
		}
		policy.AllowedExtensions = exts
	}
	policy.IgnoreGlobs = c.Ignore.Globs
	return policy
}
