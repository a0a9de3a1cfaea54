package extract

import (
	"fmt"
	"testing"

	"github.com/jward/perlnav/internal/store"
	"github.com/jward/perlnav/internal/syntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entriesOf(t *testing.T, src string) []*store.Entry {
	t.Helper()
	tree, err := syntax.Parse([]byte(src))
	require.NoError(t, err)
	return Entries(tree)
}

func summary(entries []*store.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = fmt.Sprintf("%s %s", e.Kind, e.QualifiedName())
	}
	return out
}

func TestEntries_PackagesAndSubs(t *testing.T) {
	src := `package Foo;
use strict;

sub greet { return "hi" }
sub declared;
my $anon = sub { 1 };

package Foo::Bar;
sub run {
    my $x = 1;
}
`
	got := entriesOf(t, src)
	assert.Equal(t, []string{
		"package Foo",
		"subroutine Foo::greet",
		"package Foo::Bar",
		"subroutine Foo::Bar::run",
	}, summary(got))
}

func TestEntries_Ranges(t *testing.T) {
	got := entriesOf(t, "package Foo; sub greet { return \"hi\" }\n")
	require.Len(t, got, 2)

	pkg := got[0]
	assert.Equal(t, [4]int{0, 0, 0, 12}, [4]int{pkg.StartLine, pkg.StartCol, pkg.EndLine, pkg.EndCol})

	sub := got[1]
	assert.Equal(t, [4]int{0, 13, 0, 38}, [4]int{sub.StartLine, sub.StartCol, sub.EndLine, sub.EndCol})
}

func TestEntries_MultiLineSubRange(t *testing.T) {
	got := entriesOf(t, "sub a {\n  1;\n}\n")
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].StartLine)
	assert.Equal(t, 2, got[0].EndLine)
	assert.Equal(t, 1, got[0].EndCol)
	assert.Equal(t, "", got[0].Package)
}

func TestEntries_PackageBlockScope(t *testing.T) {
	src := `package Outer;
package Inner {
    sub inside { 1 }
}
sub after { 1 }
`
	assert.Equal(t, []string{
		"package Outer",
		"package Inner",
		"subroutine Inner::inside",
		"subroutine Outer::after",
	}, summary(entriesOf(t, src)))
}

func TestEntries_PackageInsideBlockEndsWithBlock(t *testing.T) {
	src := `package Main;
{
    package Hidden;
    sub h { 1 }
}
sub after_block { 1 }
`
	assert.Equal(t, []string{
		"package Main",
		"package Hidden",
		"subroutine Hidden::h",
		"subroutine Main::after_block",
	}, summary(entriesOf(t, src)))
}

func TestEntries_Constants(t *testing.T) {
	src := `package Conf;
use constant PI => 3.14159;
use constant 'E', 2.718;
use constant {
    ALPHA => 1,
    BETA  => 2,
};
no constant;
`
	got := entriesOf(t, src)
	assert.Equal(t, []string{
		"package Conf",
		"constant Conf::PI",
		"constant Conf::E",
		"constant Conf::ALPHA",
		"constant Conf::BETA",
	}, summary(got))

	pi := got[1]
	assert.Equal(t, [4]int{1, 13, 1, 15}, [4]int{pi.StartLine, pi.StartCol, pi.EndLine, pi.EndCol})
}

func TestEntries_Variables(t *testing.T) {
	src := `package Vars;
our $VERSION = '1.0';
our (@list, %map);
my $private = 1;
local $_ = 2;
sub counter {
    state $n = 0;
}
`
	assert.Equal(t, []string{
		"package Vars",
		"variable $Vars::VERSION",
		"variable @Vars::list",
		"variable %Vars::map",
		"variable $Vars::_",
		"subroutine Vars::counter",
		"variable $Vars::n",
	}, summary(entriesOf(t, src)))
}

func TestEntries_Deterministic(t *testing.T) {
	src := "package A; our $x; sub f { 1 } use constant C => 1;\n"
	a := entriesOf(t, src)
	b := entriesOf(t, src)
	assert.Equal(t, a, b)
}
