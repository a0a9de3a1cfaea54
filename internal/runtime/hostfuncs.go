package runtime

import (
	"context"
	"strings"

	"github.com/risor-io/risor/object"

	"github.com/jward/perlnav/internal/syntax"
)

// makeNodesFn creates the "nodes" host function.
//
// nodes(kind) → []int
func makeNodesFn(tree *syntax.Tree) *object.Builtin {
	return object.NewBuiltin("nodes", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("nodes", 1, len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("nodes: kind %v", err)
		}
		kind, ok := syntax.KindByName(name)
		if !ok {
			return object.Errorf("nodes: unknown kind %q", name)
		}
		ids := tree.Find(tree.Root(), kind)
		items := make([]object.Object, len(ids))
		for i, id := range ids {
			items[i] = object.NewInt(int64(id))
		}
		return object.NewList(items)
	})
}

// makeNodeFn creates a host function taking a single node id. The id is
// range-checked before fn sees it.
func makeNodeFn(name string, tree *syntax.Tree, fn func(syntax.NodeID) object.Object) *object.Builtin {
	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError(name, 1, len(args))
		}
		n, err := toInt64(args[0])
		if err != nil {
			return object.Errorf("%s: node %v", name, err)
		}
		if n < 0 || n >= int64(tree.Len()) {
			return object.Errorf("%s: no node %d", name, n)
		}
		return fn(syntax.NodeID(n))
	})
}

// makeLinesFn creates "lines", the source split into lines without their
// terminators.
//
// lines() → []string
func makeLinesFn(tree *syntax.Tree) *object.Builtin {
	return object.NewBuiltin("lines", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("lines", 0, len(args))
		}
		src := string(tree.Source())
		if src == "" {
			return object.NewList([]object.Object{})
		}
		parts := strings.Split(strings.TrimSuffix(src, "\n"), "\n")
		items := make([]object.Object, len(parts))
		for i, p := range parts {
			items[i] = object.NewString(strings.TrimSuffix(p, "\r"))
		}
		return object.NewList(items)
	})
}

// makeIncludeModulesFn creates "include_modules".
//
// include_modules() → []string
func makeIncludeModulesFn(tree *syntax.Tree) *object.Builtin {
	return object.NewBuiltin("include_modules", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("include_modules", 0, len(args))
		}
		items := []object.Object{}
		for _, st := range tree.Find(tree.Root(), syntax.StatementInclude) {
			if mod := tree.IncludeModule(st); mod != "" {
				items = append(items, object.NewString(mod))
			}
		}
		return object.NewList(items)
	})
}

// makeViolationFn creates "violation". Missing fields default to the
// script's name, severity 1 and line 1.
//
// violation({policy, severity, message, line, col})
func makeViolationFn(report *collector) *object.Builtin {
	return object.NewBuiltin("violation", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("violation", 1, len(args))
		}
		m, err := extractMap(args[0])
		if err != nil {
			return object.Errorf("violation: %v", err)
		}
		v := Violation{
			Policy:   getStringDefault(m, "policy", report.policy),
			Severity: getInt(m, "severity"),
			Message:  getString(m, "message"),
			Line:     getInt(m, "line"),
			Col:      getInt(m, "col"),
		}
		if v.Message == "" {
			return object.Errorf("violation: message is required")
		}
		if v.Severity < 1 || v.Severity > 5 {
			v.Severity = 1
		}
		if v.Line < 1 {
			v.Line = 1
		}
		if v.Col < 1 {
			v.Col = 1
		}
		report.add(v)
		return object.Nil
	})
}

// collector accumulates the violations of one script run.
type collector struct {
	policy     string
	violations []Violation
}

func (c *collector) add(v Violation) { c.violations = append(c.violations, v) }

// logObject provides log.Info/Warn/Error for Risor scripts.
type logObject struct{}

func (l *logObject) Info(msg string)  { log.Info(msg) }
func (l *logObject) Warn(msg string)  { log.Warning(msg) }
func (l *logObject) Error(msg string) { log.Error(msg) }
