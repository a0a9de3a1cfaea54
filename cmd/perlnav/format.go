package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgBlue)
	dimColor     = color.New(color.Faint)
)

// formatLocationsText formats CLILocation results as "file:line:col" lines.
func formatLocationsText(w io.Writer, locs []CLILocation) {
	for _, loc := range locs {
		fmt.Fprintf(w, "%s:%d:%d\n", loc.File, loc.StartLine, loc.StartCol)
	}
}

// formatSymbolsText formats CLISymbol results as aligned columns.
func formatSymbolsText(w io.Writer, syms []CLISymbol) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tPACKAGE\tFILE\tLINE")
	for _, s := range syms {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", s.Name, s.Kind, s.Package, s.File, s.StartLine)
	}
	tw.Flush()
}

// formatDiagnosticsText prints one "file:line:col: severity: message" line
// per diagnostic, colored by severity when the terminal allows it.
func formatDiagnosticsText(w io.Writer, diags []CLIDiagnostic) {
	for _, d := range diags {
		sev := severityColor(d.Severity).Sprint(d.Severity)
		msg := strings.ReplaceAll(d.Message, "\n", "; ")
		fmt.Fprintf(w, "%s:%d:%d: %s: %s", d.File, d.Line, d.Col, sev, msg)
		if d.Code != "" {
			fmt.Fprintf(w, " %s", dimColor.Sprintf("[%s]", d.Code))
		}
		fmt.Fprintln(w)
	}
}

func severityColor(severity string) *color.Color {
	switch severity {
	case "error":
		return errorColor
	case "warning":
		return warningColor
	default:
		return infoColor
	}
}

// formatSummaryText formats CLISummary as readable text.
func formatSummaryText(w io.Writer, summary CLISummary) {
	fmt.Fprintf(w, "Workspace: %s\n", summary.Root)
	fmt.Fprintf(w, "Files: %d\n", summary.Files)

	kinds := make([]string, 0, len(summary.Entries))
	for kind := range summary.Entries {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fmt.Fprintf(w, "  %s: %d\n", kind, summary.Entries[kind])
	}
}

// formatChangesText formats one applied watch batch.
func formatChangesText(w io.Writer, c CLIChanges) {
	fmt.Fprintf(w, "%d event(s): pruned %d, indexed %d\n", c.Events, c.Pruned, len(c.Indexed))
	for _, path := range c.Indexed {
		fmt.Fprintf(w, "  %s\n", path)
	}
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLILocation:
		formatLocationsText(w, v)
	case []CLISymbol:
		formatSymbolsText(w, v)
	case []CLIDiagnostic:
		formatDiagnosticsText(w, v)
	case CLISummary:
		formatSummaryText(w, v)
	case CLIChanges:
		formatChangesText(w, v)
	case nil:
		// Nothing to print.
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
