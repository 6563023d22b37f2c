package lexer

import "testing"

func scanOK(t *testing.T, src string) []Token {
	t.Helper()
	toks, err := NewScanner(src, "<test>").ScanTokens()
	if err != nil {
		t.Fatalf("unexpected lex error for %q: %v", src, err)
	}
	return toks
}

func typesOf(toks []Token) []TokenType {
	out := make([]TokenType, len(toks))
	for i, tok := range toks {
		out[i] = tok.Type
	}
	return out
}

func TestScannerNumbers(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{"5", "5"},
		{"-5", "-5"},
		{"+5", "+5"},
		{"3.14", "3.14"},
	}
	for _, c := range cases {
		toks := scanOK(t, c.src)
		if toks[0].Type != TokenNumber || toks[0].Lexeme != c.want {
			t.Fatalf("src %q: got %+v", c.src, toks[0])
		}
	}
}

func TestScannerMalformedNumberErrors(t *testing.T) {
	if _, err := NewScanner("3.14.15", "<test>").ScanTokens(); err == nil {
		t.Fatal("expected Lex error on a second `.`")
	}
	if _, err := NewScanner("3.", "<test>").ScanTokens(); err == nil {
		t.Fatal("expected Lex error when `.` isn't followed by a digit")
	}
}

func TestScannerMinusDisambiguation(t *testing.T) {
	toks := scanOK(t, "- -5 -> --comment\n1")
	got := typesOf(toks)
	want := []TokenType{TokenMinus, TokenNumber, TokenArrow, TokenNumber, TokenEOF}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: got %s want %s (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestScannerWordAndRegister(t *testing.T) {
	toks := scanOK(t, ":foo $bar")
	if toks[0].Type != TokenWord || toks[0].Lexeme != "foo" {
		t.Fatalf("got %+v", toks[0])
	}
	if toks[1].Type != TokenRegister || toks[1].Lexeme != "bar" {
		t.Fatalf("got %+v", toks[1])
	}
}

func TestScannerBareColonAndRegisterRequireName(t *testing.T) {
	toks := scanOK(t, ":")
	if toks[0].Type != TokenColon {
		t.Fatalf("bare `:` should be TokenColon, got %+v", toks[0])
	}
	if _, err := NewScanner("$", "<test>").ScanTokens(); err == nil {
		t.Fatal("expected Lex error for `$` with no following name")
	}
}

func TestScannerString(t *testing.T) {
	toks := scanOK(t, `"hello \"world\""`)
	if toks[0].Type != TokenString || toks[0].Lexeme != `hello "world"` {
		t.Fatalf("got %+v", toks[0])
	}
}

func TestScannerUnterminatedStringErrors(t *testing.T) {
	if _, err := NewScanner(`"oops`, "<test>").ScanTokens(); err == nil {
		t.Fatal("expected Lex error for unterminated string")
	}
}

func TestScannerCharLiteral(t *testing.T) {
	toks := scanOK(t, "'c")
	if toks[0].Type != TokenChar || toks[0].Lexeme != "c" {
		t.Fatalf("got %+v", toks[0])
	}
}

func TestScannerGlyphOperators(t *testing.T) {
	toks := scanOK(t, "+ - * / % = != > < >= <= ~ ! ; : . ? @ |")
	want := []TokenType{
		TokenPlus, TokenMinus, TokenStar, TokenSlash, TokenPercent,
		TokenEq, TokenNotEq, TokenGt, TokenLt, TokenGe, TokenLe,
		TokenTilde, TokenBang, TokenSemi, TokenColon, TokenDot,
		TokenQuestion, TokenAt, TokenPipe, TokenEOF,
	}
	got := typesOf(toks)
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: got %s want %s", i, got[i], want[i])
		}
	}
}

func TestScannerLineComment(t *testing.T) {
	toks := scanOK(t, "1 -- this is dropped\n2")
	got := typesOf(toks)
	want := []TokenType{TokenNumber, TokenNumber, TokenEOF}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestScannerBracketsAreLexedButReserved(t *testing.T) {
	toks := scanOK(t, "[ ]")
	if toks[0].Type != TokenLBracket || toks[1].Type != TokenRBracket {
		t.Fatalf("got %+v", toks[:2])
	}
}

func TestScannerUnexpectedCharacterErrors(t *testing.T) {
	if _, err := NewScanner("#", "<test>").ScanTokens(); err == nil {
		t.Fatal("expected Lex error on an unrecognized character")
	}
}
