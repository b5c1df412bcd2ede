package ast

import "github.com/aro-lang/aro/location"

// TokenKind enumerates the lexical categories the ARO scanner emits.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokIdent
	TokString
	TokInt
	TokFloat
	TokLParen
	TokRParen
	TokLBrace
	TokRBrace
	TokLBracket
	TokRBracket
	TokLAngle
	TokRAngle
	TokColon
	TokDot // used both as the qualifier-chain separator and the statement terminator; grammar position disambiguates
	TokComma
	TokCompareOp // ==, !=, <=, >= (a lone '<' or '>' is always lexed as TokLAngle/TokRAngle)
	TokIllegal
)

// Token is one lexical unit together with its source location.
type Token struct {
	Kind     TokenKind
	Text     string
	Location *location.Location
}

// articles are tokenized as ordinary identifiers but are semantically
// transparent (spec §4.1): the parser skips over them wherever an
// article may legally appear.
var articles = map[string]bool{
	"a": true, "an": true, "the": true,
}

// IsArticle reports whether text is a recognized article.
func IsArticle(text string) bool {
	return articles[text]
}
