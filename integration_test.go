package perlnav

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

const greeterSource = `package App::Greeter;
use strict;
use warnings;

sub new {
    my ($class, %args) = @_;
    return bless {%args}, $class;
}

sub greet {
    my ($self, $name) = @_;
    return "Hello, $name";
}

1;
`

const appSource = `use strict;
use warnings;
use App::Greeter;

my $greeter = App::Greeter->new(name => 'x');
print $greeter->greet('world'), "\n";
`

// definitionLines returns "file:line" for each location, lines 0-indexed.
func definitionLines(t *testing.T, locs []protocol.Location) []string {
	t.Helper()
	var out []string
	for _, loc := range locs {
		out = append(out, filepath.Base(string(loc.URI))+":"+strconv.Itoa(int(loc.Range.Start.Line)))
	}
	return out
}

// TestIntegration_WorkspaceDefinitions runs the full pipeline:
// IndexWorkspace, then ResolveDefinition for each rule a script exercises.
func TestIntegration_WorkspaceDefinitions(t *testing.T) {
	e, root := newTestEngine(t, nil)
	writeFile(t, root, "lib/App/Greeter.pm", greeterSource)
	app := writeFile(t, root, "bin/app.pl", appSource)
	ctx := context.Background()

	require.NoError(t, e.IndexWorkspace(ctx))

	tests := []struct {
		name string
		pos  protocol.Position
		want []string
	}{
		{"use statement", protocol.Position{Line: 2, Character: 6}, []string{"Greeter.pm:0"}},
		{"class method", protocol.Position{Line: 4, Character: 29}, []string{"Greeter.pm:4"}},
		{"object method", protocol.Position{Line: 5, Character: 18}, []string{"Greeter.pm:9"}},
		{"lexical variable", protocol.Position{Line: 5, Character: 8}, []string{"app.pl:4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locs, err := e.ResolveDefinition(ctx, uriOf(app), tt.pos)
			require.NoError(t, err)
			assert.Equal(t, tt.want, definitionLines(t, locs))
		})
	}
}

// TestIntegration_EditCycle follows an editing session: a buffer gains a
// call to a subroutine that only exists once a new file is created and
// reported through NotifyChanges.
func TestIntegration_EditCycle(t *testing.T) {
	e, root := newTestEngine(t, nil)
	writeFile(t, root, "lib/App/Greeter.pm", greeterSource)
	app := writeFile(t, root, "bin/app.pl", appSource)
	ctx := context.Background()
	require.NoError(t, e.IndexWorkspace(ctx))

	uri := uriOf(app)
	e.OpenDocument(uri, appSource, 1)
	require.NoError(t, e.UpdateDocument(uri, 2, []any{
		protocol.TextDocumentContentChangeEventWhole{Text: appSource + "App::Util::shout('done');\n"},
	}))
	doc, ok := e.Document(uri)
	require.True(t, ok)
	assert.Equal(t, int32(2), doc.Version)

	call := protocol.Position{Line: 6, Character: 12}
	locs, err := e.ResolveDefinition(ctx, uri, call)
	require.NoError(t, err)
	assert.Empty(t, locs, "App::Util does not exist yet")

	util := writeFile(t, root, "lib/App/Util.pm", "package App::Util;\nsub shout { uc shift }\n1;\n")
	res, err := e.NotifyChanges(ctx, []ChangeEvent{{URI: uriOf(util), Kind: Created}})
	require.NoError(t, err)
	assert.Equal(t, []string{util}, res.Indexed)

	locs, err = e.ResolveDefinition(ctx, uri, call)
	require.NoError(t, err)
	assert.Equal(t, []string{"Util.pm:1"}, definitionLines(t, locs))

	require.NoError(t, os.Remove(util))
	res, err = e.NotifyChanges(ctx, []ChangeEvent{{URI: uriOf(util), Kind: Deleted}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pruned)

	locs, err = e.ResolveDefinition(ctx, uri, call)
	require.NoError(t, err)
	assert.Empty(t, locs)

	e.CloseDocument(uri)
	_, ok = e.Document(uri)
	assert.False(t, ok)
}
