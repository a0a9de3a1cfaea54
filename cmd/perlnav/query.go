package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/perlnav/internal/workspace"
)

var (
	flagKinds []string
	flagLimit int
)

var definitionCmd = &cobra.Command{
	Use:   "definition <file> <line> <col>",
	Short: "Find where the symbol at a position is declared",
	Long:  "Indexes the workspace containing <file>, then resolves the symbol at <line> <col>. Lines and columns are 1-based on input and output.",
	Args:  cobra.ExactArgs(3),
	RunE:  runDefinition,
}

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <file>",
	Short: "Run perl -c and lint checks on a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiagnose,
}

var symbolsCmd = &cobra.Command{
	Use:   "symbols <pattern>",
	Short: "Search workspace symbols",
	Long:  "Matches <pattern> against plain and package-qualified names. `*` matches any run of characters; a pattern without one matches names containing it.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSymbols,
}

func init() {
	symbolsCmd.Flags().StringSliceVar(&flagKinds, "kind", nil, "restrict to kinds: package,subroutine,constant,variable")
	symbolsCmd.Flags().IntVar(&flagLimit, "limit", 50, "maximum results (0 for no limit)")
}

func runDefinition(cmd *cobra.Command, args []string) error {
	path, err := resolveFilePath(args[0])
	if err != nil {
		return outputError(cmd, "definition", err)
	}
	line, err := parsePositionArg(args[1], "line")
	if err != nil {
		return outputError(cmd, "definition", err)
	}
	col, err := parsePositionArg(args[2], "col")
	if err != nil {
		return outputError(cmd, "definition", err)
	}

	ctx := contextOf(cmd)
	engine, err := openIndexedEngine(ctx, findRepoRoot(filepath.Dir(path)))
	if err != nil {
		return outputError(cmd, "definition", err)
	}
	pos := protocol.Position{Line: protocol.UInteger(line - 1), Character: protocol.UInteger(col - 1)}
	locs, err := engine.ResolveDefinition(ctx, workspace.PathToURI(path), pos)
	if err != nil {
		return outputError(cmd, "definition", err)
	}
	return outputResult(cmd, CLIResult{Command: "definition", Results: locationsToCLI(locs)})
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	path, err := resolveFilePath(args[0])
	if err != nil {
		return outputError(cmd, "diagnose", err)
	}
	if _, err := os.Stat(path); err != nil {
		return outputError(cmd, "diagnose", fmt.Errorf("file not found: %s", path))
	}
	engine, err := openEngine(findRepoRoot(filepath.Dir(path)))
	if err != nil {
		return outputError(cmd, "diagnose", err)
	}
	diags, err := engine.Diagnose(contextOf(cmd), workspace.PathToURI(path), false, false)
	if err != nil {
		return outputError(cmd, "diagnose", err)
	}
	return outputResult(cmd, CLIResult{Command: "diagnose", Results: diagnosticsToCLI(path, diags)})
}

func runSymbols(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return outputError(cmd, "symbols", fmt.Errorf("getting cwd: %w", err))
	}
	engine, err := openIndexedEngine(contextOf(cmd), findRepoRoot(cwd))
	if err != nil {
		return outputError(cmd, "symbols", err)
	}
	entries, err := engine.Query().SearchSymbols(args[0], flagKinds, flagLimit)
	if err != nil {
		return outputError(cmd, "symbols", err)
	}
	return outputResult(cmd, CLIResult{Command: "symbols", Results: entriesToCLI(entries)})
}

// --- Helpers ---

// resolveFilePath converts a file argument to an absolute path.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return filepath.Clean(file), nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}

// parsePositionArg parses a 1-based line or column argument.
func parsePositionArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", name, value)
	}
	if n < 1 {
		return 0, fmt.Errorf("invalid %s %q: lines and columns start at 1", name, value)
	}
	return n, nil
}

// outputResult writes a CLIResult to the command's output in the selected
// format.
func outputResult(cmd *cobra.Command, result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(cmd.OutOrStdout(), result)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(cmd *cobra.Command, command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}
