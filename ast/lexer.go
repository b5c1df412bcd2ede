package ast

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aro-lang/aro/location"
)

// lexer performs a single left-to-right scan of ARO source text,
// producing Tokens on demand. It never returns an error: malformed
// input becomes a TokIllegal token, and the parser is responsible for
// turning that into a Diagnostic with useful context.
type lexer struct {
	file string
	src  []byte
	pos  int
	row  int
	col  int
}

func newLexer(file string, src []byte) *lexer {
	return &lexer{file: file, src: src, pos: 0, row: 1, col: 1}
}

func (l *lexer) loc() *location.Location {
	return location.NewLocation(l.lineText(), l.file, l.row, l.col)
}

func (l *lexer) lineText() []byte {
	start := l.pos
	for start > 0 && l.src[start-1] != '\n' {
		start--
	}
	end := l.pos
	for end < len(l.src) && l.src[end] != '\n' {
		end++
	}
	return l.src[start:end]
}

func (l *lexer) peekByte() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) peekByteAt(offset int) byte {
	if l.pos+offset >= len(l.src) {
		return 0
	}
	return l.src[l.pos+offset]
}

func (l *lexer) advance() byte {
	b := l.src[l.pos]
	l.pos++
	if b == '\n' {
		l.row++
		l.col = 1
	} else {
		l.col++
	}
	return b
}

// skipSpaceAndComments consumes whitespace and (* ... *) block
// comments, which may nest (spec §4.1).
func (l *lexer) skipSpaceAndComments() {
	for l.pos < len(l.src) {
		b := l.peekByte()
		if b == ' ' || b == '\t' || b == '\r' || b == '\n' {
			l.advance()
			continue
		}
		if b == '(' && l.peekByteAt(1) == '*' {
			l.advance()
			l.advance()
			depth := 1
			for l.pos < len(l.src) && depth > 0 {
				if l.peekByte() == '(' && l.peekByteAt(1) == '*' {
					l.advance()
					l.advance()
					depth++
					continue
				}
				if l.peekByte() == '*' && l.peekByteAt(1) == ')' {
					l.advance()
					l.advance()
					depth--
					continue
				}
				l.advance()
			}
			continue
		}
		break
	}
}

// Next returns the next Token in the stream.
func (l *lexer) Next() Token {
	l.skipSpaceAndComments()
	loc := l.loc()
	if l.pos >= len(l.src) {
		return Token{Kind: TokEOF, Location: loc}
	}

	b := l.peekByte()

	switch {
	case b == '(':
		l.advance()
		return Token{Kind: TokLParen, Text: "(", Location: loc}
	case b == ')':
		l.advance()
		return Token{Kind: TokRParen, Text: ")", Location: loc}
	case b == '{':
		l.advance()
		return Token{Kind: TokLBrace, Text: "{", Location: loc}
	case b == '}':
		l.advance()
		return Token{Kind: TokRBrace, Text: "}", Location: loc}
	case b == '[':
		l.advance()
		return Token{Kind: TokLBracket, Text: "[", Location: loc}
	case b == ']':
		l.advance()
		return Token{Kind: TokRBracket, Text: "]", Location: loc}
	case b == ':':
		l.advance()
		return Token{Kind: TokColon, Text: ":", Location: loc}
	case b == '.':
		// A '.' followed by a digit inside a numeric literal is handled
		// by scanNumber; a standalone '.' is either a statement
		// terminator or the qualifier-chain separator. Disambiguated by
		// the parser's grammar position, not the lexer.
		l.advance()
		return Token{Kind: TokDot, Text: ".", Location: loc}
	case b == ',':
		l.advance()
		return Token{Kind: TokComma, Text: ",", Location: loc}
	case b == '<':
		l.advance()
		if l.peekByte() == '=' {
			l.advance()
			return Token{Kind: TokCompareOp, Text: "<=", Location: loc}
		}
		return Token{Kind: TokLAngle, Text: "<", Location: loc}
	case b == '>':
		l.advance()
		if l.peekByte() == '=' {
			l.advance()
			return Token{Kind: TokCompareOp, Text: ">=", Location: loc}
		}
		return Token{Kind: TokRAngle, Text: ">", Location: loc}
	case b == '=':
		l.advance()
		if l.peekByte() == '=' {
			l.advance()
			return Token{Kind: TokCompareOp, Text: "==", Location: loc}
		}
		return Token{Kind: TokIllegal, Text: "=", Location: loc}
	case b == '!':
		l.advance()
		if l.peekByte() == '=' {
			l.advance()
			return Token{Kind: TokCompareOp, Text: "!=", Location: loc}
		}
		return Token{Kind: TokIllegal, Text: "!", Location: loc}
	case b == '"':
		return l.scanString(loc)
	case isDigit(b):
		return l.scanNumber(loc)
	case isIdentStart(b):
		return l.scanIdent(loc)
	default:
		l.advance()
		return Token{Kind: TokIllegal, Text: string(b), Location: loc}
	}
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isIdentStart(b byte) bool {
	r, _ := utf8.DecodeRune([]byte{b})
	return unicode.IsLetter(r) || b == '_' || b == '-'
}

func isIdentCont(b byte) bool {
	r, _ := utf8.DecodeRune([]byte{b})
	return unicode.IsLetter(r) || unicode.IsDigit(r) || b == '_' || b == '-'
}

func (l *lexer) scanIdent(loc *location.Location) Token {
	start := l.pos
	for l.pos < len(l.src) && isIdentCont(l.peekByte()) {
		l.advance()
	}
	return Token{Kind: TokIdent, Text: string(l.src[start:l.pos]), Location: loc}
}

func (l *lexer) scanNumber(loc *location.Location) Token {
	start := l.pos
	kind := TokInt
	for l.pos < len(l.src) && isDigit(l.peekByte()) {
		l.advance()
	}
	if l.peekByte() == '.' && isDigit(l.peekByteAt(1)) {
		kind = TokFloat
		l.advance()
		for l.pos < len(l.src) && isDigit(l.peekByte()) {
			l.advance()
		}
	}
	return Token{Kind: kind, Text: string(l.src[start:l.pos]), Location: loc}
}

func (l *lexer) scanString(loc *location.Location) Token {
	l.advance() // opening quote
	var sb strings.Builder
	for l.pos < len(l.src) {
		b := l.peekByte()
		if b == '"' {
			l.advance()
			return Token{Kind: TokString, Text: sb.String(), Location: loc}
		}
		if b == '\\' {
			l.advance()
			esc := l.peekByte()
			l.advance()
			switch esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '"':
				sb.WriteByte('"')
			case '\\':
				sb.WriteByte('\\')
			default:
				sb.WriteByte(esc)
			}
			continue
		}
		sb.WriteByte(b)
		l.advance()
	}
	// Unterminated string: return what we have as an illegal token; the
	// parser reports "unterminated block"-class diagnostics.
	return Token{Kind: TokIllegal, Text: sb.String(), Location: loc}
}
