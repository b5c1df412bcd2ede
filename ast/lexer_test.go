package ast

import "testing"

func tokenKinds(src string) []TokenKind {
	l := newLexer("test.aro", []byte(src))
	var kinds []TokenKind
	for {
		tok := l.Next()
		kinds = append(kinds, tok.Kind)
		if tok.Kind == TokEOF {
			return kinds
		}
	}
}

func TestLexerPunctuation(t *testing.T) {
	kinds := tokenKinds(`(<>{}[]:.,`)
	want := []TokenKind{
		TokLParen, TokLAngle, TokRAngle, TokLBrace, TokRBrace,
		TokLBracket, TokRBracket, TokColon, TokDot, TokComma, TokEOF,
	}
	if len(kinds) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(kinds), len(want), kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("token %d: got %v, want %v", i, kinds[i], want[i])
		}
	}
}

func TestLexerComparisonOperators(t *testing.T) {
	cases := map[string]TokenKind{
		"<":  TokLAngle,
		">":  TokRAngle,
		"<=": TokCompareOp,
		">=": TokCompareOp,
		"==": TokCompareOp,
		"!=": TokCompareOp,
	}
	for src, want := range cases {
		l := newLexer("test.aro", []byte(src))
		tok := l.Next()
		if tok.Kind != want {
			t.Errorf("lexing %q: got %v, want %v", src, tok.Kind, want)
		}
		if tok.Text != src {
			t.Errorf("lexing %q: got text %q", src, tok.Text)
		}
	}
}

func TestLexerNestedComments(t *testing.T) {
	src := `Log (* outer (* inner *) still outer *) "hi" to the <console>.`
	l := newLexer("test.aro", []byte(src))
	var texts []string
	for {
		tok := l.Next()
		if tok.Kind == TokEOF {
			break
		}
		texts = append(texts, tok.Text)
	}
	want := []string{"Log", `hi`, "to", "the", "<", "console", ">", "."}
	if len(texts) != len(want) {
		t.Fatalf("got %v, want %v", texts, want)
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Errorf("token %d: got %q, want %q", i, texts[i], want[i])
		}
	}
}

func TestLexerStringEscapes(t *testing.T) {
	l := newLexer("test.aro", []byte(`"line1\nline2\ttabbed\"quoted\""`))
	tok := l.Next()
	if tok.Kind != TokString {
		t.Fatalf("got kind %v", tok.Kind)
	}
	want := "line1\nline2\ttabbed\"quoted\""
	if tok.Text != want {
		t.Errorf("got %q, want %q", tok.Text, want)
	}
}

func TestLexerNumberLiterals(t *testing.T) {
	l := newLexer("test.aro", []byte(`42 3.14 0`))
	tok := l.Next()
	if tok.Kind != TokInt || tok.Text != "42" {
		t.Errorf("got %v %q", tok.Kind, tok.Text)
	}
	tok = l.Next()
	if tok.Kind != TokFloat || tok.Text != "3.14" {
		t.Errorf("got %v %q", tok.Kind, tok.Text)
	}
	tok = l.Next()
	if tok.Kind != TokInt || tok.Text != "0" {
		t.Errorf("got %v %q", tok.Kind, tok.Text)
	}
}

func TestLexerIdentifierWithHyphen(t *testing.T) {
	l := newLexer("test.aro", []byte(`Application-Start`))
	tok := l.Next()
	if tok.Kind != TokIdent || tok.Text != "Application-Start" {
		t.Errorf("got %v %q", tok.Kind, tok.Text)
	}
}

func TestLexerUnterminatedString(t *testing.T) {
	l := newLexer("test.aro", []byte(`"no closing quote`))
	tok := l.Next()
	if tok.Kind != TokIllegal {
		t.Errorf("got %v, want TokIllegal", tok.Kind)
	}
}
