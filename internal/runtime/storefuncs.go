package runtime

import (
	"context"
	"fmt"

	"github.com/risor-io/risor/object"

	"github.com/jward/perlnav/internal/extract"
	"github.com/jward/perlnav/internal/store"
	"github.com/jward/perlnav/internal/syntax"
)

// makeDeclarationsFn creates "declarations", the index entries the file
// would contribute, as maps with 1-indexed positions.
//
// declarations() → []{kind, name, package, line, col, end_line, end_col}
func makeDeclarationsFn(tree *syntax.Tree) *object.Builtin {
	return object.NewBuiltin("declarations", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("declarations", 0, len(args))
		}
		return entriesToList(extract.Entries(tree))
	})
}

func entriesToList(entries []*store.Entry) object.Object {
	items := make([]object.Object, len(entries))
	for i, e := range entries {
		items[i] = object.NewMap(map[string]object.Object{
			"kind":     object.NewString(e.Kind),
			"name":     object.NewString(e.Name),
			"package":  object.NewString(e.Package),
			"line":     object.NewInt(int64(e.StartLine + 1)),
			"col":      object.NewInt(int64(e.StartCol + 1)),
			"end_line": object.NewInt(int64(e.EndLine + 1)),
			"end_col":  object.NewInt(int64(e.EndCol + 1)),
		})
	}
	return object.NewList(items)
}

// --- Argument helpers ---

func extractMap(obj object.Object) (map[string]object.Object, error) {
	m, ok := obj.(*object.Map)
	if !ok {
		return nil, fmt.Errorf("expected map, got %s", obj.Type())
	}
	return m.Value(), nil
}

func getString(m map[string]object.Object, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	if s, ok := v.(*object.String); ok {
		return s.Value()
	}
	return ""
}

func getStringDefault(m map[string]object.Object, key, def string) string {
	v := getString(m, key)
	if v == "" {
		return def
	}
	return v
}

func getInt(m map[string]object.Object, key string) int {
	v, ok := m[key]
	if !ok {
		return 0
	}
	n, err := toInt64(v)
	if err != nil {
		return 0
	}
	return int(n)
}

func toInt64(obj object.Object) (int64, error) {
	if i, ok := obj.(*object.Int); ok {
		return i.Value(), nil
	}
	if f, ok := obj.(*object.Float); ok {
		return int64(f.Value()), nil
	}
	return 0, fmt.Errorf("expected int, got %s", obj.Type())
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}
