package element

import (
	"testing"

	"github.com/jward/perlnav/internal/syntax"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `package Main;
use Foo::Bar qw(alpha beta);
my $obj = Foo::Bar->new();
$obj->SUPER::run(1);
Foo::greet();
helper($x[0]);
sub greet { $h{key} }
`

func parse(t *testing.T, src string) *syntax.Tree {
	t.Helper()
	tree, err := syntax.Parse([]byte(src))
	require.NoError(t, err)
	return tree
}

func first(t *testing.T, tree *syntax.Tree, line, col int) Element {
	t.Helper()
	els := FindElementsAt(tree, line, col)
	require.NotEmpty(t, els, "no element at %d:%d", line, col)
	return els[0]
}

// =============================================================================
// Positions
// =============================================================================

func TestPositionConversion(t *testing.T) {
	assert.Equal(t, protocol.Position{Line: 0, Character: 0}, ToProtocol(1, 1))
	assert.Equal(t, protocol.Position{Line: 4, Character: 2}, ToProtocol(5, 3))
	assert.Equal(t, protocol.Position{}, ToProtocol(0, 0), "before the document clamps to zero")

	line, col := FromProtocol(protocol.Position{Line: 2, Character: 3})
	assert.Equal(t, 3, line)
	assert.Equal(t, 4, col)

	assert.Equal(t, protocol.Range{
		Start: protocol.Position{Line: 7},
		End:   protocol.Position{Line: 8},
	}, LineRange(7))
}

func TestElementRange(t *testing.T) {
	tree := parse(t, sample)
	el := first(t, tree, 6, 3)
	assert.Equal(t, "helper", el.Text())
	assert.Equal(t, protocol.Range{
		Start: protocol.Position{Line: 5, Character: 0},
		End:   protocol.Position{Line: 5, Character: 6},
	}, el.Range())
}

func TestFindElementsAt_ClosestFirst(t *testing.T) {
	tree := parse(t, sample)
	els := FindElementsAt(tree, 6, 7)
	require.Len(t, els, 2)
	assert.Equal(t, "(", els[0].Text())
	assert.Equal(t, "helper", els[1].Text())
}

func TestFindElementsAt_OutOfRange(t *testing.T) {
	tree := parse(t, sample)
	assert.Empty(t, FindElementsAt(tree, 99, 1))
	assert.Empty(t, FindElementsAt(tree, 6, 80))
}

func TestFindElementsAt_MultiByteColumns(t *testing.T) {
	tree := parse(t, "my $s = 'héllo'; greet();\n")
	el := first(t, tree, 1, 19)
	assert.Equal(t, "greet", el.Text())
}

// =============================================================================
// Classification
// =============================================================================

func TestSubroutineCallName(t *testing.T) {
	tree := parse(t, sample)
	tests := []struct {
		name string
		line int
		col  int
		want string
		ok   bool
	}{
		{"qualified call", 5, 3, "Foo::greet", true},
		{"bare call", 6, 3, "helper", true},
		{"class name", 3, 12, "", false},
		{"method", 3, 22, "", false},
		{"sub declaration", 7, 6, "", false},
		{"hash key", 7, 16, "", false},
		{"keyword", 3, 1, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := first(t, tree, tt.line, tt.col).SubroutineCallName()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSubroutineCallName_Ampersand(t *testing.T) {
	tree := parse(t, "&cleanup();\n")
	got, ok := first(t, tree, 1, 2).SubroutineCallName()
	require.True(t, ok)
	assert.Equal(t, "cleanup", got)
}

func TestMethodCallName(t *testing.T) {
	tree := parse(t, sample)
	got, ok := first(t, tree, 4, 10).MethodCallName()
	require.True(t, ok)
	assert.Equal(t, "SUPER::run", got)

	_, ok = first(t, tree, 3, 22).MethodCallName()
	assert.False(t, ok, "class-method calls are not instance calls")
}

func TestClassMethodCall(t *testing.T) {
	tree := parse(t, sample)
	class, method, ok := first(t, tree, 3, 22).ClassMethodCall()
	require.True(t, ok)
	assert.Equal(t, "Foo::Bar", class)
	assert.Equal(t, "new", method)

	_, _, ok = first(t, tree, 4, 10).ClassMethodCall()
	assert.False(t, ok)
}

func TestPackageReference(t *testing.T) {
	tree := parse(t, sample)

	pkg, sym, ok := first(t, tree, 2, 7).PackageReference(7)
	require.True(t, ok)
	assert.Equal(t, "Foo::Bar", pkg)
	assert.Empty(t, sym)

	pkg, sym, ok = first(t, tree, 2, 18).PackageReference(18)
	require.True(t, ok)
	assert.Equal(t, "Foo::Bar", pkg)
	assert.Equal(t, "alpha", sym)

	pkg, sym, ok = first(t, tree, 2, 24).PackageReference(24)
	require.True(t, ok)
	assert.Equal(t, "beta", sym)
	assert.Equal(t, "Foo::Bar", pkg)

	pkg, _, ok = first(t, tree, 3, 12).PackageReference(12)
	require.True(t, ok)
	assert.Equal(t, "Foo::Bar", pkg)
}

func TestPackageReference_QualifiedSuffix(t *testing.T) {
	tree := parse(t, "Foo::Bar::baz;\n")
	el := first(t, tree, 1, 2)

	pkg, sym, ok := el.PackageReference(2)
	require.True(t, ok)
	assert.Equal(t, "Foo::Bar", pkg)
	assert.Empty(t, sym)

	pkg, sym, ok = el.PackageReference(12)
	require.True(t, ok)
	assert.Equal(t, "Foo::Bar", pkg)
	assert.Equal(t, "baz", sym)
}

func TestPackageReference_Parent(t *testing.T) {
	tree := parse(t, "use parent 'My::Base';\n")
	pkg, sym, ok := first(t, tree, 1, 14).PackageReference(14)
	require.True(t, ok)
	assert.Equal(t, "My::Base", pkg)
	assert.Empty(t, sym)
}

func TestVariableName(t *testing.T) {
	tree := parse(t, sample)
	got, ok := first(t, tree, 3, 5).VariableName()
	require.True(t, ok)
	assert.Equal(t, "$obj", got)

	got, ok = first(t, tree, 6, 9).VariableName()
	require.True(t, ok)
	assert.Equal(t, "@x", got, "element access names the array")

	_, ok = first(t, tree, 6, 3).VariableName()
	assert.False(t, ok)
}

// =============================================================================
// POD links
// =============================================================================

const podSample = `=head1 SEE ALSO

See L<Foo::Bar/greet> and L<the docs|Other::Mod>, or L<https://perl.org>.

=cut

1;
`

func TestDocumentationLink(t *testing.T) {
	tree := parse(t, podSample)

	el := first(t, tree, 3, 8)
	require.Equal(t, syntax.TokenPod, el.Kind())
	got, ok := el.DocumentationLink(3, 8)
	require.True(t, ok)
	assert.Equal(t, "Foo::Bar::greet", got)

	got, ok = DocumentationLink(tree, 3, 30)
	require.True(t, ok)
	assert.Equal(t, "Other::Mod", got)

	_, ok = DocumentationLink(tree, 3, 2)
	assert.False(t, ok, "outside any link")

	_, ok = DocumentationLink(tree, 3, 58)
	assert.False(t, ok, "URLs are not packages")
}

func TestDocumentationLink_OnlyInPod(t *testing.T) {
	tree := parse(t, "# see L<Foo::bar>\nmy $s = 'L<Baz>';\n")

	_, ok := DocumentationLink(tree, 1, 10)
	assert.False(t, ok, "comment")
	_, ok = DocumentationLink(tree, 2, 12)
	assert.False(t, ok, "string literal")
}

func TestLinkTarget(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Foo", "Foo", true},
		{"Foo::Bar/\"run\"", "Foo::Bar::run", true},
		{"Foo/Some Section", "Foo", true},
		{"text|Foo::Bar", "Foo::Bar", true},
		{"/local", "", false},
		{"perlfunc and more", "", false},
	}
	for _, tt := range tests {
		got, ok := linkTarget(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
