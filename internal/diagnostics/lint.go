package diagnostics

import (
	"bufio"
	"bytes"
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/perlnav/internal/cache"
	"github.com/jward/perlnav/internal/element"
	"github.com/jward/perlnav/internal/metrics"
	"github.com/jward/perlnav/internal/runtime"
)

// SourceCritic tags lint diagnostics.
const SourceCritic = "perlcritic"

// criticFormat is handed to perlcritic --verbose. Fields are separated by
// a marker that does not occur in policy names or file paths.
const (
	criticSep    = "~|~"
	criticFormat = "%l" + criticSep + "%c" + criticSep + "%s" + criticSep + "%m" + criticSep + "%p" + criticSep + "%f%n"
)

// filenamePolicy always fires on temporary copies of unsaved buffers.
const filenamePolicy = "Modules::RequireFilenameMatchesPackage"

// PolicyDocURL links a policy to its documentation.
func PolicyDocURL(policy string) string {
	return "https://metacpan.org/pod/Perl::Critic::Policy::" + policy
}

// Severity maps a perlcritic severity (5 gentle .. 1 brutal) to a protocol
// severity. Out of range values are treated as the nearest level.
func Severity(level int) protocol.DiagnosticSeverity {
	switch {
	case level >= 4:
		return protocol.DiagnosticSeverityError
	case level == 3:
		return protocol.DiagnosticSeverityWarning
	default:
		return protocol.DiagnosticSeverityInformation
	}
}

type lintJob struct {
	ctx         context.Context
	checkPath   string
	displayPath string
	unsaved     bool
	text        []byte
	queued      time.Time
	resp        chan []protocol.Diagnostic
}

// lintWorker is the only goroutine that lints, so lint runs never overlap.
func (p *Pipeline) lintWorker() {
	defer close(p.workerDone)
	for {
		select {
		case <-p.done:
			return
		case job := <-p.jobs:
			metrics.LintQueueWait.Observe(time.Since(job.queued).Seconds())
			job.resp <- p.lint(job)
		}
	}
}

// submitLint queues a job and waits for its result.
func (p *Pipeline) submitLint(ctx context.Context, job lintJob) ([]protocol.Diagnostic, error) {
	job.ctx = ctx
	job.queued = time.Now()
	job.resp = make(chan []protocol.Diagnostic, 1)
	select {
	case p.jobs <- job:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		log.Debugf("lint %s: pipeline closed", job.displayPath)
		return nil, nil
	}
	select {
	case diags := <-job.resp:
		return diags, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pipeline) lint(job lintJob) []protocol.Diagnostic {
	if job.ctx.Err() != nil {
		return nil
	}
	start := time.Now()
	defer func() {
		metrics.DiagnosticsDuration.WithLabelValues("lint").Observe(time.Since(start).Seconds())
	}()

	var out []protocol.Diagnostic
	seen := map[string]bool{}
	add := func(d protocol.Diagnostic) {
		key := strconv.Itoa(int(d.Range.Start.Line)) + "\x00" + codeOf(d)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, d)
	}
	for _, d := range p.perlcritic(job) {
		add(d)
	}
	for _, d := range p.scriptedPolicies(job) {
		add(d)
	}
	return out
}

func (p *Pipeline) perlcritic(job lintJob) []protocol.Diagnostic {
	if p.cfg.Lint.PerlcriticPath == "" {
		return nil
	}
	args := []string{"--nocolor", "--verbose", criticFormat, "--severity", strconv.Itoa(p.cfg.Lint.Severity)}
	if p.cfg.Lint.Profile != "" {
		args = append(args, "--profile", p.cfg.Lint.Profile)
	}
	args = append(args, job.checkPath)

	out, err := run(job.ctx, p.runner, "perlcritic", Command{Name: p.cfg.Lint.PerlcriticPath, Args: args, Dir: filepath.Dir(job.displayPath)})
	if err != nil {
		metrics.DiagnosticsFailures.WithLabelValues("lint").Inc()
		log.Warningf("lint %s: %v", job.displayPath, err)
		return nil
	}
	if s := strings.TrimSpace(string(out.Stderr)); s != "" {
		log.Warningf("perlcritic %s: %s", job.displayPath, s)
	}

	var diags []protocol.Diagnostic
	for _, v := range ParseCriticOutput(out.Stdout) {
		if job.unsaved && v.Policy == filenamePolicy &&
			(sameFile(v.File, job.checkPath) || sameFile(v.File, job.displayPath)) {
			continue
		}
		diags = append(diags, lintDiagnostic(v.Violation))
	}
	return diags
}

// scriptedPolicies runs the Risor policies over the buffer's tree.
func (p *Pipeline) scriptedPolicies(job lintJob) []protocol.Diagnostic {
	if p.policies == nil || p.trees == nil || !p.cfg.Lint.Scripts {
		return nil
	}
	src := cache.File(job.displayPath)
	if job.unsaved {
		src = cache.Text(job.displayPath, job.text)
	}
	doc, err := p.trees.Get(src, cache.Options{})
	if err != nil {
		log.Debugf("scripted policies %s: %v", job.displayPath, err)
		return nil
	}
	vs, err := p.policies.Lint(job.ctx, doc.Tree)
	if err != nil {
		metrics.DiagnosticsFailures.WithLabelValues("scripts").Inc()
		log.Warningf("scripted policies %s: %v", job.displayPath, err)
		return nil
	}
	var diags []protocol.Diagnostic
	for _, v := range vs {
		if v.Severity < p.cfg.Lint.Severity {
			continue
		}
		diags = append(diags, lintDiagnostic(v))
	}
	return diags
}

// CriticViolation is one parsed perlcritic line.
type CriticViolation struct {
	runtime.Violation
	File string
}

// ParseCriticOutput parses output produced with criticFormat. Malformed
// lines are skipped.
func ParseCriticOutput(stdout []byte) []CriticViolation {
	var out []CriticViolation
	sc := bufio.NewScanner(bytes.NewReader(stdout))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		fields := strings.SplitN(strings.TrimRight(sc.Text(), "\r"), criticSep, 6)
		if len(fields) != 6 {
			continue
		}
		line, err1 := strconv.Atoi(fields[0])
		col, err2 := strconv.Atoi(fields[1])
		sev, err3 := strconv.Atoi(fields[2])
		if err1 != nil || err2 != nil || err3 != nil || line < 1 {
			continue
		}
		out = append(out, CriticViolation{
			Violation: runtime.Violation{
				Policy:   fields[4],
				Severity: sev,
				Message:  fields[3],
				Line:     line,
				Col:      max(col, 1),
			},
			File: fields[5],
		})
	}
	return out
}

func lintDiagnostic(v runtime.Violation) protocol.Diagnostic {
	d := newDiagnostic(
		element.Range(v.Line-1, v.Col-1, v.Line, 0),
		Severity(v.Severity), SourceCritic, v.Message,
	)
	d.Code = &protocol.IntegerOrString{Value: v.Policy}
	d.CodeDescription = &protocol.CodeDescription{HRef: protocol.URI(PolicyDocURL(v.Policy))}
	return d
}

func codeOf(d protocol.Diagnostic) string {
	if d.Code == nil {
		return ""
	}
	s, _ := d.Code.Value.(string)
	return s
}

// sameFile compares paths as reported by a tool, which may be relative to
// the working directory.
func sameFile(reported, path string) bool {
	if reported == "" || path == "" {
		return false
	}
	if filepath.Clean(reported) == filepath.Clean(path) {
		return true
	}
	return filepath.Base(reported) == filepath.Base(path)
}
