package document

import (
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const uri = "file:///work/a.pl"

func pos(line, char uint32) protocol.Position {
	return protocol.Position{Line: line, Character: char}
}

func TestOpenGetClose(t *testing.T) {
	s := NewStore()
	s.Open(uri, "print 1;\n", 1)

	doc, ok := s.Get(uri)
	require.True(t, ok)
	assert.Equal(t, "print 1;\n", doc.Text)
	assert.Equal(t, int32(1), doc.Version)
	assert.Equal(t, []string{uri}, s.URIs())

	s.Close(uri)
	_, ok = s.Text(uri)
	assert.False(t, ok)
}

func TestUpdate_RangedEdits(t *testing.T) {
	s := NewStore()
	s.Open(uri, "my $x = 1;\nprint $x;\n", 1)

	err := s.Update(uri, 2, []any{
		protocol.TextDocumentContentChangeEvent{
			Range: &protocol.Range{Start: pos(0, 8), End: pos(0, 9)},
			Text:  "42",
		},
		protocol.TextDocumentContentChangeEvent{
			Range: &protocol.Range{Start: pos(1, 0), End: pos(1, 0)},
			Text:  "# note\n",
		},
	})
	require.NoError(t, err)

	text, ok := s.Text(uri)
	require.True(t, ok)
	assert.Equal(t, "my $x = 42;\n# note\nprint $x;\n", string(text))
	doc, _ := s.Get(uri)
	assert.Equal(t, int32(2), doc.Version)
}

func TestUpdate_UTF16Columns(t *testing.T) {
	s := NewStore()
	// U+1F600 takes two UTF-16 code units.
	s.Open(uri, "my $s = '😀x';\n", 1)
	err := s.Update(uri, 2, []any{protocol.TextDocumentContentChangeEvent{
		Range: &protocol.Range{Start: pos(0, 11), End: pos(0, 12)},
		Text:  "y",
	}})
	require.NoError(t, err)
	text, _ := s.Text(uri)
	assert.Equal(t, "my $s = '😀y';\n", string(text))
}

func TestUpdate_WholeText(t *testing.T) {
	s := NewStore()
	s.Open(uri, "old", 1)
	require.NoError(t, s.Update(uri, 2, []any{protocol.TextDocumentContentChangeEventWhole{Text: "new"}}))
	text, _ := s.Text(uri)
	assert.Equal(t, "new", string(text))

	require.NoError(t, s.Update(uri, 3, []any{protocol.TextDocumentContentChangeEvent{Text: "newer"}}))
	text, _ = s.Text(uri)
	assert.Equal(t, "newer", string(text))
}

func TestUpdate_Errors(t *testing.T) {
	s := NewStore()
	require.Error(t, s.Update(uri, 1, nil), "not open")

	s.Open(uri, "abc", 1)
	require.Error(t, s.Update(uri, 2, []any{"bogus"}))
	text, _ := s.Text(uri)
	assert.Equal(t, "abc", string(text), "failed update leaves the buffer alone")
}

func TestSnapshotsAreStable(t *testing.T) {
	s := NewStore()
	s.Open(uri, "one", 1)
	before, _ := s.Get(uri)
	require.NoError(t, s.Update(uri, 2, []any{protocol.TextDocumentContentChangeEventWhole{Text: "two"}}))
	assert.Equal(t, "one", before.Text)
}
