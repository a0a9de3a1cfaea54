package element

import (
	"fortio.org/safecast"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Tree positions are 1-indexed; protocol positions are 0-indexed. Both
// count columns in runes.

// ToProtocol converts a 1-indexed tree position to a protocol position.
// Positions before the start of the document clamp to zero.
func ToProtocol(line, col int) protocol.Position {
	return protocol.Position{Line: uinteger(line - 1), Character: uinteger(col - 1)}
}

// FromProtocol converts a protocol position to a 1-indexed tree position.
func FromProtocol(p protocol.Position) (line, col int) {
	return int(p.Line) + 1, int(p.Character) + 1
}

// Range builds a protocol range from 0-indexed, half-open coordinates as
// stored in the index.
func Range(startLine, startCol, endLine, endCol int) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: uinteger(startLine), Character: uinteger(startCol)},
		End:   protocol.Position{Line: uinteger(endLine), Character: uinteger(endCol)},
	}
}

// LineRange covers a whole 0-indexed line: [line,0) .. [line+1,0).
func LineRange(line int) protocol.Range {
	return Range(line, 0, line+1, 0)
}

func uinteger(n int) protocol.UInteger {
	v, err := safecast.Conv[protocol.UInteger](n)
	if err != nil {
		return 0
	}
	return v
}
