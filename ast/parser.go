// Package ast implements the ARO lexer, parser, and abstract syntax
// tree. The parser is recursive-descent; it never throws and instead
// accumulates Diagnostics onto the Module it returns, producing a
// best-effort AST even for malformed input (spec §4.1).
package ast

import (
	"strconv"

	"github.com/aro-lang/aro/location"
)

// prepositions are the grammatical connectors recognized between a
// statement's result descriptor and its object descriptor. "with" is
// excluded: it introduces the separate WithClause, not an object.
var prepositions = map[string]bool{
	"from": true, "to": true, "for": true, "in": true,
	"on": true, "against": true, "via": true, "into": true,
}

// applicationEndName is the reserved feature-set name whose full
// identity carries a second, literal colon segment ("Application-
// End:Success", "Application-End:Error") baked into Name itself,
// unlike an ordinary header's single Name-then-BusinessActivity
// separator (spec.md's FeatureSet reserved-name list).
const applicationEndName = "Application-End"

// Parser turns ARO source text into a Module.
type Parser struct {
	lex  *lexer
	tok  Token
	next Token
	mod  *Module
}

// ParseModule parses a single ARO source file into a Module. The
// returned Module is always non-nil; check Module.Diagnostics for
// errors.
func ParseModule(file string, src []byte) *Module {
	p := &Parser{lex: newLexer(file, src), mod: &Module{File: file}}
	p.tok = p.lex.Next()
	p.next = p.lex.Next()
	p.parseModule()
	return p.mod
}

func (p *Parser) advance() {
	p.tok = p.next
	p.next = p.lex.Next()
}

func (p *Parser) errorf(loc *location.Location, hints []string, f string, a ...interface{}) {
	p.mod.Diagnostics = append(p.mod.Diagnostics, NewError(loc, hints, f, a...))
}

func (p *Parser) warnf(loc *location.Location, f string, a ...interface{}) {
	p.mod.Diagnostics = append(p.mod.Diagnostics, NewWarning(loc, nil, f, a...))
}

func (p *Parser) parseModule() {
	for p.tok.Kind != TokEOF {
		if p.tok.Kind != TokLParen {
			p.errorf(p.tok.Location, nil, "expected feature set header '(', found %q", p.tok.Text)
			p.recoverToNextHeader()
			continue
		}
		fs := p.parseFeatureSet()
		if fs != nil {
			p.mod.FeatureSets = append(p.mod.FeatureSets, fs)
		}
	}
}

// recoverToNextHeader skips tokens until it finds a '(' at the top
// level, so one malformed feature set does not stop the whole file
// from being parsed.
func (p *Parser) recoverToNextHeader() {
	for p.tok.Kind != TokEOF && p.tok.Kind != TokLParen {
		p.advance()
	}
}

func (p *Parser) parseFeatureSet() *FeatureSet {
	loc := p.tok.Location
	p.advance() // consume '('

	if p.tok.Kind != TokIdent {
		p.errorf(loc, nil, "malformed feature set header: expected a name after '('")
		p.recoverToNextHeader()
		return nil
	}
	name := p.tok.Text
	p.advance()

	if name == applicationEndName && p.tok.Kind == TokColon {
		p.advance() // consume the reserved name's own colon
		if p.tok.Kind != TokIdent {
			p.errorf(loc, nil, "malformed feature set header: expected Success or Error after %q", name+":")
			p.recoverToNextHeader()
			return nil
		}
		name = name + ":" + p.tok.Text
		p.advance()
	}

	if p.tok.Kind != TokColon {
		p.errorf(loc, nil, "malformed feature set header: expected ':' after name %q", name)
		p.recoverToNextHeader()
		return nil
	}
	p.advance()

	activity := p.parseWordsUntil(TokRParen)

	if p.tok.Kind != TokRParen {
		p.errorf(loc, nil, "malformed feature set header: unterminated header for %q", name)
		p.recoverToNextHeader()
		return nil
	}
	p.advance() // consume ')'

	fs := &FeatureSet{Name: name, BusinessActivity: activity, Location: loc}

	if p.tok.Kind == TokIdent && p.tok.Text == "when" {
		p.advance()
		fs.Guard = p.parseExpression()
	}

	if p.tok.Kind != TokLBrace {
		p.errorf(loc, nil, "malformed feature set %q: expected '{'", fs.Identity())
		p.recoverToNextHeader()
		return fs
	}
	p.advance() // consume '{'

	for p.tok.Kind != TokRBrace && p.tok.Kind != TokEOF {
		stmt := p.parseStatement()
		if stmt != nil {
			fs.Statements = append(fs.Statements, stmt)
		}
	}

	if p.tok.Kind != TokRBrace {
		p.errorf(loc, nil, "unterminated block in feature set %q", fs.Identity())
		return fs
	}
	p.advance() // consume '}'
	return fs
}

// parseWordsUntil joins raw token text with single spaces until kind
// is seen (not consumed), reconstructing free-text like a business
// activity description.
func (p *Parser) parseWordsUntil(kind TokenKind) string {
	var words []string
	for p.tok.Kind != kind && p.tok.Kind != TokEOF {
		words = append(words, p.tok.Text)
		p.advance()
	}
	s := ""
	for i, w := range words {
		if i > 0 {
			s += " "
		}
		s += w
	}
	return s
}

func (p *Parser) skipArticle() {
	if p.tok.Kind == TokIdent && IsArticle(p.tok.Text) {
		p.advance()
	}
}

func (p *Parser) parseStatement() *Statement {
	loc := p.tok.Location

	if p.tok.Kind != TokIdent {
		p.errorf(loc, nil, "expected an action verb, found %q", p.tok.Text)
		p.recoverToPeriodOrBrace()
		return nil
	}
	verb := p.tok.Text
	p.advance()

	p.skipArticle()
	result := p.parseDescriptor()
	if result == nil {
		p.errorf(loc, nil, "statement for verb %q is missing its result descriptor", verb)
		p.recoverToPeriodOrBrace()
		return nil
	}

	stmt := &Statement{Verb: verb, Result: result, Location: loc}

	if p.tok.Kind == TokCompareOp {
		op := CompareOp(p.tok.Text)
		p.advance()
		right := p.parseOperand()
		stmt.Expression = &Expression{Left: Operand{Descriptor: result}, Op: op, Right: &right, Location: loc}
	}
	if p.tok.Kind == TokIdent && prepositions[p.tok.Text] {
		stmt.Preposition = p.tok.Text
		p.advance()
		p.skipArticle()
		obj := p.parseDescriptor()
		if obj == nil {
			p.errorf(loc, nil, "statement for verb %q is missing its object after preposition %q", verb, stmt.Preposition)
		}
		stmt.Object = obj
	} else if p.tok.Kind == TokIdent && !isKnownKeyword(p.tok.Text) {
		p.warnf(loc, "unknown preposition %q for verb %q", p.tok.Text, verb)
	}

	if p.tok.Kind == TokIdent && p.tok.Text == "with" {
		p.advance()
		stmt.With = p.parseWithClause()
	}

	if p.tok.Kind != TokDot {
		p.errorf(p.tok.Location, nil, "missing period terminating statement for verb %q", verb)
		// An identifier here most likely starts the next statement, so it
		// is left for the caller instead of being skipped.
		if p.tok.Kind != TokIdent {
			p.recoverToPeriodOrBrace()
		}
		return stmt
	}
	p.advance() // consume '.'
	return stmt
}

func isKnownKeyword(s string) bool {
	return s == "with" || s == "when" || prepositions[s]
}

func (p *Parser) recoverToPeriodOrBrace() {
	for p.tok.Kind != TokEOF && p.tok.Kind != TokDot && p.tok.Kind != TokRBrace {
		p.advance()
	}
	if p.tok.Kind == TokDot {
		p.advance()
	}
}

func (p *Parser) parseWithClause() *WithClause {
	loc := p.tok.Location
	if p.tok.Kind == TokLBrace {
		fields := p.parseObjectFields()
		return &WithClause{Mapping: fields, Location: loc}
	}
	expr := p.parseExpression()
	return &WithClause{Expression: expr, Location: loc}
}

// parseDescriptor parses either a bare literal (no angle brackets) or
// a <base[:qualifier]> form.
func (p *Parser) parseDescriptor() *Descriptor {
	loc := p.tok.Location

	if p.tok.Kind != TokLAngle {
		if lit := p.tryParseBareLiteral(); lit != nil {
			return &Descriptor{Literal: lit, Location: loc}
		}
		return nil
	}
	p.advance() // consume '<'

	d := &Descriptor{Location: loc}
	switch p.tok.Kind {
	case TokIdent:
		d.BaseName = p.tok.Text
		p.advance()
	case TokString, TokInt, TokFloat:
		d.Literal = p.literalFromToken(p.tok)
		p.advance()
	default:
		p.errorf(loc, nil, "malformed descriptor: expected a name or literal after '<'")
	}

	if p.tok.Kind == TokColon {
		p.advance()
		d.Qualifier = p.parseQualifier()
	}

	if p.tok.Kind != TokRAngle {
		p.errorf(p.tok.Location, nil, "malformed descriptor: expected '>'")
		return d
	}
	p.advance() // consume '>'
	return d
}

func (p *Parser) parseQualifier() *Qualifier {
	first := p.qualifierPartText()
	if first == "" {
		p.errorf(p.tok.Location, nil, "malformed qualifier: expected a name after ':'")
		return nil
	}
	p.advance()
	if p.tok.Kind == TokDot {
		p.advance()
		second := p.qualifierPartText()
		if second == "" {
			p.errorf(p.tok.Location, nil, "malformed namespaced qualifier: expected a name after '.'")
			return &Qualifier{Name: first}
		}
		p.advance()
		return &Qualifier{Namespace: first, Name: second}
	}
	return &Qualifier{Name: first}
}

func (p *Parser) qualifierPartText() string {
	switch p.tok.Kind {
	case TokIdent, TokInt:
		return p.tok.Text
	default:
		return ""
	}
}

func (p *Parser) tryParseBareLiteral() *Literal {
	switch p.tok.Kind {
	case TokString, TokInt, TokFloat:
		lit := p.literalFromToken(p.tok)
		p.advance()
		return lit
	default:
		return nil
	}
}

func (p *Parser) literalFromToken(t Token) *Literal {
	switch t.Kind {
	case TokString:
		return &Literal{Kind: LiteralString, Str: t.Text}
	case TokInt:
		i, err := strconv.ParseInt(t.Text, 10, 64)
		if err != nil {
			p.errorf(t.Location, nil, "malformed integer literal %q", t.Text)
		}
		return &Literal{Kind: LiteralInt, Int: i}
	case TokFloat:
		f, err := strconv.ParseFloat(t.Text, 64)
		if err != nil {
			p.errorf(t.Location, nil, "malformed float literal %q", t.Text)
		}
		return &Literal{Kind: LiteralFloat, Float: f}
	default:
		return nil
	}
}

func (p *Parser) parseOperand() Operand {
	if p.tok.Kind == TokLAngle {
		return Operand{Descriptor: p.parseDescriptor()}
	}
	if p.tok.Kind == TokIdent {
		switch p.tok.Text {
		case "true":
			p.advance()
			return Operand{Literal: &Literal{Kind: LiteralBool, Bool: true}}
		case "false":
			p.advance()
			return Operand{Literal: &Literal{Kind: LiteralBool, Bool: false}}
		case "null":
			p.advance()
			return Operand{Literal: &Literal{Kind: LiteralNull}}
		}
	}
	if lit := p.tryParseBareLiteral(); lit != nil {
		return Operand{Literal: lit}
	}
	p.errorf(p.tok.Location, nil, "expected a descriptor or literal operand, found %q", p.tok.Text)
	p.advance()
	return Operand{Literal: &Literal{Kind: LiteralNull}}
}

// parseExpression parses a guard-style expression: an operand,
// optionally followed by a comparison operator and a second operand.
func (p *Parser) parseExpression() *Expression {
	loc := p.tok.Location
	left := p.parseOperand()
	if p.tok.Kind == TokCompareOp {
		op := CompareOp(p.tok.Text)
		p.advance()
		right := p.parseOperand()
		return &Expression{Left: left, Op: op, Right: &right, Location: loc}
	}
	return &Expression{Left: left, Location: loc}
}

func (p *Parser) parseObjectFields() []ObjectField {
	p.advance() // consume '{'
	var fields []ObjectField
	for p.tok.Kind != TokRBrace && p.tok.Kind != TokEOF {
		if p.tok.Kind != TokIdent && p.tok.Kind != TokString {
			p.errorf(p.tok.Location, nil, "malformed mapping: expected a key")
			break
		}
		key := p.tok.Text
		p.advance()
		if p.tok.Kind != TokColon {
			p.errorf(p.tok.Location, nil, "malformed mapping: expected ':' after key %q", key)
			break
		}
		p.advance()
		val := p.parseLiteralValue()
		fields = append(fields, ObjectField{Key: key, Value: val})
		if p.tok.Kind == TokComma {
			p.advance()
			continue
		}
		break
	}
	if p.tok.Kind == TokRBrace {
		p.advance()
	} else {
		p.errorf(p.tok.Location, nil, "unterminated mapping literal")
	}
	return fields
}

func (p *Parser) parseLiteralValue() *Literal {
	switch p.tok.Kind {
	case TokString, TokInt, TokFloat:
		lit := p.literalFromToken(p.tok)
		p.advance()
		return lit
	case TokLBrace:
		fields := p.parseObjectFields()
		return &Literal{Kind: LiteralNone, Object: fields}
	case TokLBracket:
		p.advance()
		var items []*Literal
		for p.tok.Kind != TokRBracket && p.tok.Kind != TokEOF {
			items = append(items, p.parseLiteralValue())
			if p.tok.Kind == TokComma {
				p.advance()
				continue
			}
			break
		}
		if p.tok.Kind == TokRBracket {
			p.advance()
		} else {
			p.errorf(p.tok.Location, nil, "unterminated array literal")
		}
		return &Literal{Kind: LiteralNone, Array: items}
	case TokIdent:
		switch p.tok.Text {
		case "true":
			p.advance()
			return &Literal{Kind: LiteralBool, Bool: true}
		case "false":
			p.advance()
			return &Literal{Kind: LiteralBool, Bool: false}
		case "null":
			p.advance()
			return &Literal{Kind: LiteralNull}
		}
	}
	p.errorf(p.tok.Location, nil, "expected a literal value, found %q", p.tok.Text)
	p.advance()
	return &Literal{Kind: LiteralNull}
}
