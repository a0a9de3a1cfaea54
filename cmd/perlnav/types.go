package main

import (
	"fmt"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/perlnav"
	"github.com/jward/perlnav/internal/workspace"
)

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`
}

// CLILocation is a JSON-friendly location. Lines and columns are 1-based.
type CLILocation struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

// CLISymbol is a JSON-friendly index entry.
type CLISymbol struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Package   string `json:"package,omitempty"`
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
}

// CLIDiagnostic is a JSON-friendly diagnostic.
type CLIDiagnostic struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Col      int    `json:"col"`
	Severity string `json:"severity"`
	Source   string `json:"source,omitempty"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message"`
}

// CLISummary is what `index` reports.
type CLISummary struct {
	Root    string         `json:"root"`
	Files   int            `json:"files"`
	Entries map[string]int `json:"entries"`
}

// CLIChanges reports one batch applied by `watch`.
type CLIChanges struct {
	Events  int      `json:"events"`
	Pruned  int      `json:"pruned"`
	Indexed []string `json:"indexed"`
}

// --- Conversion helpers ---

func locationToCLI(loc protocol.Location) CLILocation {
	file := string(loc.URI)
	if path, err := workspace.URIToPath(file); err == nil {
		file = path
	}
	return CLILocation{
		File:      file,
		StartLine: int(loc.Range.Start.Line) + 1,
		StartCol:  int(loc.Range.Start.Character) + 1,
		EndLine:   int(loc.Range.End.Line) + 1,
		EndCol:    int(loc.Range.End.Character) + 1,
	}
}

func locationsToCLI(locs []protocol.Location) []CLILocation {
	out := make([]CLILocation, len(locs))
	for i, loc := range locs {
		out[i] = locationToCLI(loc)
	}
	return out
}

func entryToCLI(e *perlnav.Entry) CLISymbol {
	return CLISymbol{
		Name:      e.Name,
		Kind:      e.Kind,
		Package:   e.Package,
		File:      e.Path,
		StartLine: e.StartLine + 1,
		StartCol:  e.StartCol + 1,
	}
}

func entriesToCLI(entries []*perlnav.Entry) []CLISymbol {
	out := make([]CLISymbol, len(entries))
	for i, e := range entries {
		out[i] = entryToCLI(e)
	}
	return out
}

// severityNames maps protocol severities to the names `diagnose` prints.
var severityNames = map[protocol.DiagnosticSeverity]string{
	protocol.DiagnosticSeverityError:       "error",
	protocol.DiagnosticSeverityWarning:     "warning",
	protocol.DiagnosticSeverityInformation: "info",
	protocol.DiagnosticSeverityHint:        "hint",
}

func diagnosticToCLI(file string, d protocol.Diagnostic) CLIDiagnostic {
	out := CLIDiagnostic{
		File:     file,
		Line:     int(d.Range.Start.Line) + 1,
		Col:      int(d.Range.Start.Character) + 1,
		Severity: "error",
		Message:  d.Message,
	}
	if d.Severity != nil {
		out.Severity = severityNames[*d.Severity]
	}
	if d.Source != nil {
		out.Source = *d.Source
	}
	if d.Code != nil {
		out.Code = fmt.Sprint(d.Code.Value)
	}
	return out
}

func diagnosticsToCLI(file string, diags []protocol.Diagnostic) []CLIDiagnostic {
	out := make([]CLIDiagnostic, len(diags))
	for i, d := range diags {
		out[i] = diagnosticToCLI(file, d)
	}
	return out
}
