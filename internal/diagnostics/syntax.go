package diagnostics

import (
	"bufio"
	"bytes"
	"context"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/perlnav/internal/element"
	"github.com/jward/perlnav/internal/metrics"
)

// SourcePerl tags diagnostics from the compile check.
const SourcePerl = "perl"

// perlMessage matches "<message> at <file> line <n>", with an optional
// trailer such as ", near "}"" or ", at EOF".
var perlMessage = regexp.MustCompile(`^(.*) at (.+?) line (\d+)(?:,.*|\.)?$`)

// perlNoise are checker messages that carry no finding of their own.
var perlNoise = []*regexp.Regexp{
	regexp.MustCompile(`had compilation errors\.?$`),
	regexp.MustCompile(`\bsyntax OK$`),
	regexp.MustCompile(`^BEGIN not safe after errors--compilation aborted`),
	regexp.MustCompile(`^BEGIN failed--compilation aborted`),
	regexp.MustCompile(`^Subroutine \S+ redefined`),
	regexp.MustCompile(`^Constant subroutine \S+ redefined`),
}

func (p *Pipeline) syntaxCheck(ctx context.Context, checkPath, displayPath string) ([]protocol.Diagnostic, error) {
	if p.sem != nil {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer p.sem.Release(1)
	}
	start := time.Now()
	defer func() {
		metrics.DiagnosticsDuration.WithLabelValues("syntax").Observe(time.Since(start).Seconds())
	}()

	args := []string{"-c"}
	args = append(args, p.cfg.Syntax.Args...)
	for _, inc := range p.includePaths {
		args = append(args, "-I"+inc)
	}
	args = append(args, checkPath)

	out, err := run(ctx, p.runner, "perl", Command{Name: p.cfg.PerlPath, Args: args, Dir: filepath.Dir(displayPath)})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		metrics.DiagnosticsFailures.WithLabelValues("syntax").Inc()
		log.Warningf("syntax check %s: %v", displayPath, err)
		return nil, nil
	}
	return ParseSyntaxErrors(out.Stderr, checkPath, displayPath), nil
}

// ParseSyntaxErrors turns perl -c output into full-line error diagnostics.
// Only messages about one of files are kept; with no files every message
// is. Messages on the same line merge into one diagnostic.
func ParseSyntaxErrors(stderr []byte, files ...string) []protocol.Diagnostic {
	var (
		out    []protocol.Diagnostic
		byLine = map[int]int{}
	)
	sc := bufio.NewScanner(bytes.NewReader(stderr))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		text := strings.TrimRight(sc.Text(), "\r")
		if noise(text) {
			continue
		}
		m := perlMessage.FindStringSubmatch(text)
		if m == nil || !matchesFile(m[2], files) {
			continue
		}
		line, err := strconv.Atoi(m[3])
		if err != nil || line < 1 {
			continue
		}
		msg := strings.TrimSpace(m[1])
		if i, ok := byLine[line]; ok {
			out[i].Message += "\n" + msg
			continue
		}
		byLine[line] = len(out)
		out = append(out, newDiagnostic(element.LineRange(line-1), protocol.DiagnosticSeverityError, SourcePerl, msg))
	}
	return out
}

func noise(text string) bool {
	for _, re := range perlNoise {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func matchesFile(file string, files []string) bool {
	if len(files) == 0 {
		return true
	}
	for _, f := range files {
		if f != "" && (file == f || filepath.Clean(file) == filepath.Clean(f)) {
			return true
		}
	}
	return false
}

func newDiagnostic(rng protocol.Range, sev protocol.DiagnosticSeverity, source, msg string) protocol.Diagnostic {
	return protocol.Diagnostic{
		Range:    rng,
		Severity: &sev,
		Source:   &source,
		Message:  msg,
	}
}
