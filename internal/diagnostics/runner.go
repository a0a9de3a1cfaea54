package diagnostics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Command is one external tool invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
}

func (c Command) String() string {
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Output is what a finished tool produced. A non-zero ExitCode is not an
// error: perl -c and perlcritic both use exit status to report findings.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner starts external tools. Run returns an error only when the tool
// could not be run to completion.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Output, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, cmd Command) (Output, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr) && ctx.Err() == nil:
		out.ExitCode = exitErr.ExitCode()
	default:
		return out, err
	}
	return out, nil
}

// ToolError reports an external tool that failed to run. It costs the
// check its diagnostics and nothing else.
type ToolError struct {
	Tool   string
	Err    error
	Stderr string
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Tool, e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Err }

func run(ctx context.Context, r Runner, tool string, cmd Command) (Output, error) {
	log.Debugf("run %s", cmd)
	out, err := r.Run(ctx, cmd)
	if err != nil {
		return out, &ToolError{Tool: tool, Err: err, Stderr: string(out.Stderr)}
	}
	return out, nil
}
