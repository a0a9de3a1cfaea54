// Package config loads perlnav settings from an optional workspace file
// (.perlnav.yaml or .perlnav.toml) layered over Default.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrUnknownFormat is returned by Load for files that are neither YAML nor
// TOML by extension.
var ErrUnknownFormat = errors.New("config: unknown file format")

// FileNames are the workspace config files Find looks for, in order.
var FileNames = []string{".perlnav.yaml", ".perlnav.yml", ".perlnav.toml"}

type Config struct {
	IncludePaths []string `yaml:"include_paths" toml:"include_paths"`
	IgnoreGlobs  []string `yaml:"ignore" toml:"ignore"`
	Extensions   []string `yaml:"extensions" toml:"extensions"`
	PerlPath     string   `yaml:"perl" toml:"perl"`

	Syntax  SyntaxConfig  `yaml:"syntax" toml:"syntax"`
	Lint    LintConfig    `yaml:"lint" toml:"lint"`
	Cache   CacheConfig   `yaml:"cache" toml:"cache"`
	Index   IndexConfig   `yaml:"index" toml:"index"`
	Watch   WatchConfig   `yaml:"watch" toml:"watch"`
	Metrics MetricsConfig `yaml:"metrics" toml:"metrics"`
}

// SyntaxConfig controls the `perl -c` check.
type SyntaxConfig struct {
	Enabled bool     `yaml:"enabled" toml:"enabled"`
	Args    []string `yaml:"args" toml:"args"`
	// MaxConcurrent bounds simultaneous perl -c processes.
	MaxConcurrent int `yaml:"max_concurrent" toml:"max_concurrent"`
}

// LintConfig controls perlcritic and the scripted policies.
type LintConfig struct {
	Enabled        bool   `yaml:"enabled" toml:"enabled"`
	PerlcriticPath string `yaml:"perlcritic" toml:"perlcritic"`
	Profile        string `yaml:"profile" toml:"profile"`
	// Severity is perlcritic's minimum severity, 1 (brutal) to 5 (gentle).
	Severity int `yaml:"severity" toml:"severity"`
	// Scripts enables the embedded policies; ScriptsDir replaces them.
	Scripts    bool   `yaml:"scripts" toml:"scripts"`
	ScriptsDir string `yaml:"scripts_dir" toml:"scripts_dir"`
}

type CacheConfig struct {
	TTL time.Duration `yaml:"ttl" toml:"ttl"`
}

type IndexConfig struct {
	Parallel bool `yaml:"parallel" toml:"parallel"`
	Workers  int  `yaml:"workers" toml:"workers"`
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" toml:"debounce"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr" toml:"addr"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Extensions: []string{".pl", ".pm", ".t", ".psgi", ".cgi"},
		PerlPath:   "perl",
		Syntax: SyntaxConfig{
			Enabled:       true,
			MaxConcurrent: 4,
		},
		Lint: LintConfig{
			Enabled:        true,
			PerlcriticPath: "perlcritic",
			Severity:       5,
			Scripts:        true,
		},
		Cache: CacheConfig{TTL: time.Minute},
		Index: IndexConfig{Parallel: true, Workers: runtime.NumCPU()},
		Watch: WatchConfig{Debounce: 200 * time.Millisecond},
	}
}

// Load reads path over Default. The format follows the extension.
func Load(path string) (*Config, error) {
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: %s: parse YAML: %w", path, err)
		}
	case ".toml":
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("config: %s: parse TOML: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Find returns the first workspace config file in root, or "".
func Find(root string) string {
	for _, name := range FileNames {
		p := filepath.Join(root, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// LoadWorkspace loads the config file found in root, or Default when there
// is none.
func LoadWorkspace(root string) (*Config, error) {
	if p := Find(root); p != "" {
		return Load(p)
	}
	return Default(), nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Lint.Severity < 1 || c.Lint.Severity > 5 {
		return fmt.Errorf("lint severity %d out of range 1..5", c.Lint.Severity)
	}
	if c.Syntax.MaxConcurrent < 0 {
		return fmt.Errorf("syntax max_concurrent must not be negative")
	}
	if c.Index.Workers < 0 {
		return fmt.Errorf("index workers must not be negative")
	}
	if c.Cache.TTL < 0 || c.Watch.Debounce < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	for _, g := range c.IgnoreGlobs {
		if _, err := filepath.Match(g, ""); err != nil {
			return fmt.Errorf("ignore pattern %q: %w", g, err)
		}
	}
	return nil
}
