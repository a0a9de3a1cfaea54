package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/jward/perlnav"
	"github.com/jward/perlnav/internal/config"
	"github.com/jward/perlnav/internal/logging"
)

var (
	flagConfig  string
	flagFormat  string
	flagVerbose bool
	flagInclude []string
	flagNoLint  bool
)

// engineOptions are passed to every Engine the commands open.
var engineOptions []perlnav.Option

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

var rootCmd = &cobra.Command{
	Use:           "perlnav",
	Short:         "Perl workspace index, definitions and diagnostics",
	Long:          "perlnav indexes Perl sources, resolves symbols to their declarations and runs perl -c and perlcritic checks. `perlnav serve` speaks the language server protocol on stdio.",
	Version:       perlnav.Version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(flagFormat); err != nil {
			return err
		}
		level := logging.DefaultLevel
		if flagVerbose {
			level = "DEBUG"
		}
		return logging.Setup(level, os.Stderr)
	},
	// No Run: prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: .perlnav.yaml or .perlnav.toml in the workspace root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging on stderr")
	rootCmd.PersistentFlags().StringSliceVarP(&flagInclude, "include", "I", nil, "extra include path, searched before configured ones")
	rootCmd.PersistentFlags().BoolVar(&flagNoLint, "no-lint", false, "skip perlcritic and scripted lint policies")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(definitionCmd)
	rootCmd.AddCommand(diagnoseCmd)
	rootCmd.AddCommand(symbolsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
}

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a workspace and print what it declares",
	Long:  "Discovers Perl sources under the workspace root, indexes their packages, subroutines, constants and package variables, and prints a summary.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}
	engine, err := openIndexedEngine(contextOf(cmd), findRepoRoot(targetDir))
	if err != nil {
		return outputError(cmd, "index", err)
	}

	summary, err := engine.Query().Summary()
	if err != nil {
		return outputError(cmd, "index", err)
	}

	fmt.Fprintf(os.Stderr, "Indexed %s in %s\n", engine.Root(), time.Since(start).Round(time.Millisecond))
	return outputResult(cmd, CLIResult{
		Command: "index",
		Results: CLISummary{Root: engine.Root(), Files: summary.Files, Entries: summary.Entries},
	})
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

// findRepoRoot walks up from startDir looking for a .git directory or a
// perlnav config file. Returns startDir if neither is found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		if config.Find(dir) != "" {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root.
			return startDir
		}
		dir = parent
	}
}

// loadConfig reads --config or the workspace config of root, then applies
// flag overrides.
func loadConfig(root string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flagConfig != "" {
		cfg, err = config.Load(flagConfig)
	} else {
		cfg, err = config.LoadWorkspace(root)
	}
	if err != nil {
		return nil, err
	}
	if len(flagInclude) > 0 {
		cfg.IncludePaths = append(append([]string{}, flagInclude...), cfg.IncludePaths...)
	}
	if flagNoLint {
		cfg.Lint.Enabled = false
	}
	return cfg, nil
}

// openEngine creates the Engine for root. It is closed when the process
// exits through atexit.
func openEngine(root string) (*perlnav.Engine, error) {
	cfg, err := loadConfig(root)
	if err != nil {
		return nil, err
	}
	engine, err := perlnav.New(root, cfg, engineOptions...)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	atexit.Register(func() { engine.Close() })
	return engine, nil
}

// openIndexedEngine opens the Engine for root and indexes the workspace.
func openIndexedEngine(ctx context.Context, root string) (*perlnav.Engine, error) {
	engine, err := openEngine(root)
	if err != nil {
		return nil, err
	}
	if err := engine.IndexWorkspace(ctx); err != nil {
		return nil, fmt.Errorf("indexing: %w", err)
	}
	return engine, nil
}
