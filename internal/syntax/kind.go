package syntax

// Kind is the closed set of node kinds a Tree can contain. Tokens are
// leaves; statements and structures are interior nodes.
type Kind uint8

const (
	KindInvalid Kind = iota

	Document

	// Statements.
	Statement
	StatementPackage
	StatementSub
	StatementScheduled
	StatementVariable
	StatementInclude
	StatementCompound
	StatementBreak
	StatementExpression
	StatementNull
	StatementData
	StatementEnd

	// Structures. Their delimiters are kept as TokenStructure children.
	StructureBlock
	StructureList
	StructureCondition
	StructureConstructor
	StructureSubscript

	// Tokens.
	TokenWhitespace
	TokenComment
	TokenPod
	TokenWord
	TokenSymbol
	TokenMagic
	TokenArrayIndex
	TokenCast
	TokenOperator
	TokenNumber
	TokenQuote
	TokenQuoteLike
	TokenRegexp
	TokenHereDoc
	TokenHereDocBody
	TokenStructure
	TokenSeparator
	TokenEndContent
	TokenUnknown

	kindCount
)

var kindNames = [kindCount]string{
	KindInvalid:          "invalid",
	Document:             "document",
	Statement:            "statement",
	StatementPackage:     "statement::package",
	StatementSub:         "statement::sub",
	StatementScheduled:   "statement::scheduled",
	StatementVariable:    "statement::variable",
	StatementInclude:     "statement::include",
	StatementCompound:    "statement::compound",
	StatementBreak:       "statement::break",
	StatementExpression:  "statement::expression",
	StatementNull:        "statement::null",
	StatementData:        "statement::data",
	StatementEnd:         "statement::end",
	StructureBlock:       "structure::block",
	StructureList:        "structure::list",
	StructureCondition:   "structure::condition",
	StructureConstructor: "structure::constructor",
	StructureSubscript:   "structure::subscript",
	TokenWhitespace:      "token::whitespace",
	TokenComment:         "token::comment",
	TokenPod:             "token::pod",
	TokenWord:            "token::word",
	TokenSymbol:          "token::symbol",
	TokenMagic:           "token::magic",
	TokenArrayIndex:      "token::arrayindex",
	TokenCast:            "token::cast",
	TokenOperator:        "token::operator",
	TokenNumber:          "token::number",
	TokenQuote:           "token::quote",
	TokenQuoteLike:       "token::quotelike",
	TokenRegexp:          "token::regexp",
	TokenHereDoc:         "token::heredoc",
	TokenHereDocBody:     "token::heredoc_body",
	TokenStructure:       "token::structure",
	TokenSeparator:       "token::separator",
	TokenEndContent:      "token::end",
	TokenUnknown:         "token::unknown",
}

func (k Kind) String() string {
	if k >= kindCount {
		return "invalid"
	}
	return kindNames[k]
}

// KindByName maps the String form back to a Kind. Used by scripted lint
// policies that select nodes by name.
func KindByName(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name && Kind(k) != KindInvalid {
			return Kind(k), true
		}
	}
	return KindInvalid, false
}

// IsToken reports whether k is a leaf kind.
func (k Kind) IsToken() bool { return k >= TokenWhitespace && k < kindCount }

// IsStatement reports whether k is one of the statement kinds.
func (k Kind) IsStatement() bool { return k >= Statement && k <= StatementEnd }

// IsStructure reports whether k is one of the bracketed structure kinds.
func (k Kind) IsStructure() bool { return k >= StructureBlock && k <= StructureSubscript }

// IsSignificant reports whether a token carries meaning for the program.
// Whitespace, comments and POD do not.
func (k Kind) IsSignificant() bool {
	switch k {
	case TokenWhitespace, TokenComment, TokenPod, TokenHereDocBody:
		return false
	}
	return true
}
