package compiler

import (
	"errors"
	"io"
	"testing"
)

func lex(input string) *Lexer {
	return NewLexer(NewSource("test.cl", input))
}

// types returns the token types of input, failing on any lexical error.
func types(t *testing.T, input string) []TokenType {
	t.Helper()
	tokens, err := Tokenize(NewSource("test.cl", input))
	if err != nil {
		t.Fatalf("Tokenize(%q) error: %v", input, err)
	}
	out := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Type
	}
	return out
}

func equalTypes(a, b []TokenType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestLexerBasicTokens(t *testing.T) {
	input := `: , ; { } ( ) [ ] ~ . @ => <-`
	expected := []struct {
		typ TokenType
		lit string
	}{
		{TokenColon, ":"},
		{TokenComma, ","},
		{TokenSemicolon, ";"},
		{TokenLBrace, "{"},
		{TokenRBrace, "}"},
		{TokenLParen, "("},
		{TokenRParen, ")"},
		{TokenLBracket, "["},
		{TokenRBracket, "]"},
		{TokenNot, "~"},
		{TokenDot, "."},
		{TokenAt, "@"},
		{TokenFatArrow, "=>"},
		{TokenAssign, "<-"},
		{TokenEOF, ""},
	}

	l := lex(input)
	for i, exp := range expected {
		tok, err := l.NextToken()
		if err != nil {
			t.Fatalf("token[%d]: unexpected error %v", i, err)
		}
		if tok.Type != exp.typ {
			t.Errorf("token[%d] type = %v, want %v", i, tok.Type, exp.typ)
		}
		if tok.Literal != exp.lit {
			t.Errorf("token[%d] literal = %q, want %q", i, tok.Literal, exp.lit)
		}
	}
}

func TestLexerOperators(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
		rel   RelOp
		arith ArithOp
	}{
		{"=", TokenRelOp, RelEqual, 0},
		{"<", TokenRelOp, RelLessThan, 0},
		{"<=", TokenRelOp, RelLessEqual, 0},
		{"+", TokenArithOp, 0, ArithPlus},
		{"-", TokenArithOp, 0, ArithMinus},
		{"*", TokenArithOp, 0, ArithMultiply},
		{"/", TokenArithOp, 0, ArithDivide},
	}

	for _, tc := range tests {
		tok, err := lex(tc.input).NextToken()
		if err != nil {
			t.Fatalf("Lexer(%q): %v", tc.input, err)
		}
		if tok.Type != tc.typ || tok.Rel != tc.rel || tok.Arith != tc.arith {
			t.Errorf("Lexer(%q) = %v/%v/%v, want %v/%v/%v",
				tc.input, tok.Type, tok.Rel, tok.Arith, tc.typ, tc.rel, tc.arith)
		}
	}
}

func TestLexerLessThanDoesNotConsumeLookahead(t *testing.T) {
	got := types(t, "a<b")
	want := []TokenType{TokenObjectID, TokenRelOp, TokenObjectID, TokenEOF}
	if !equalTypes(got, want) {
		t.Errorf("types = %v, want %v", got, want)
	}

	got = types(t, "x<-1")
	want = []TokenType{TokenObjectID, TokenAssign, TokenInteger, TokenEOF}
	if !equalTypes(got, want) {
		t.Errorf("types = %v, want %v", got, want)
	}
}

func TestLexerIdentifiers(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
	}{
		{"foo", TokenObjectID},
		{"lowercase_name", TokenObjectID},
		{"x1_y2", TokenObjectID},
		{"_hidden", TokenObjectID},
		{"Uppercase_Name", TokenTypeID},
		{"Main2", TokenTypeID},
		{"SELF_TYPE", TokenTypeID},
	}

	for _, tc := range tests {
		tok, err := lex(tc.input).NextToken()
		if err != nil {
			t.Fatalf("Lexer(%q): %v", tc.input, err)
		}
		if tok.Type != tc.typ {
			t.Errorf("Lexer(%q): type = %v, want %v", tc.input, tok.Type, tc.typ)
		}
		if tok.Literal != tc.input {
			t.Errorf("Lexer(%q): literal = %q", tc.input, tok.Literal)
		}
	}
}

func TestLexerKeywords(t *testing.T) {
	for _, word := range Keywords() {
		want, _ := LookupKeyword(word)
		tok, err := lex(word).NextToken()
		if err != nil {
			t.Fatalf("Lexer(%q): %v", word, err)
		}
		if tok.Type != want {
			t.Errorf("Lexer(%q): type = %v, want %v", word, tok.Type, want)
		}
	}

	// Keywords are matched exactly, so prefixes and capitalized forms are identifiers.
	tests := []struct {
		input string
		typ   TokenType
	}{
		{"classy", TokenObjectID},
		{"Class", TokenTypeID},
		{"if_", TokenObjectID},
	}
	for _, tc := range tests {
		tok, _ := lex(tc.input).NextToken()
		if tok.Type != tc.typ {
			t.Errorf("Lexer(%q): type = %v, want %v", tc.input, tok.Type, tc.typ)
		}
	}
}

func TestLexerIntegers(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"0", "0"},
		{"42", "42"},
		{"007", "7"},
		{"123456789012345678901234567890", "123456789012345678901234567890"},
	}

	for _, tc := range tests {
		tok, err := lex(tc.input).NextToken()
		if err != nil {
			t.Fatalf("Lexer(%q): %v", tc.input, err)
		}
		if tok.Type != TokenInteger {
			t.Errorf("Lexer(%q): type = %v, want Integer", tc.input, tok.Type)
			continue
		}
		if tok.Int.String() != tc.want {
			t.Errorf("Lexer(%q): value = %s, want %s", tc.input, tok.Int, tc.want)
		}
		if tok.Literal != tc.input {
			t.Errorf("Lexer(%q): literal = %q", tc.input, tok.Literal)
		}
	}
}

func TestLexerDigitLedIdentifier(t *testing.T) {
	l := lex("1x")
	_, err := l.NextToken()
	if !errors.Is(err, ErrLexical) {
		t.Fatalf("NextToken error = %v, want lexical error", err)
	}
	var lexErr *LexError
	if !errors.As(err, &lexErr) {
		t.Fatalf("error %T is not *LexError", err)
	}
	if lexErr.Lexeme != "1x" || lexErr.File != "test.cl" || lexErr.Line != 1 {
		t.Errorf("LexError = %+v", lexErr)
	}

	// The whole malformed lexeme is consumed, not split into 1 and x.
	tok, err := l.NextToken()
	if err != nil || tok.Type != TokenEOF {
		t.Errorf("after error: %v, %v; want EOF", tok, err)
	}
}

func TestLexerStrings(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"hello"`, `"hello"`},
		{`""`, `""`},
		{`"a\nb"`, `"a\nb"`},
		{`"(* not a comment *)"`, `"(* not a comment *)"`},
	}

	for _, tc := range tests {
		tok, err := lex(tc.input).NextToken()
		if err != nil {
			t.Fatalf("Lexer(%q): %v", tc.input, err)
		}
		if tok.Type != TokenString {
			t.Errorf("Lexer(%q): type = %v, want String", tc.input, tok.Type)
		}
		if tok.Literal != tc.want {
			t.Errorf("Lexer(%q): literal = %q, want %q", tc.input, tok.Literal, tc.want)
		}
	}
}

func TestLexerUnterminatedString(t *testing.T) {
	_, err := lex(`x <- "never closed`).NextToken()
	if err != nil {
		t.Fatalf("first token: %v", err)
	}
	_, err = Tokenize(NewSource("test.cl", `x <- "never closed`))
	if !errors.Is(err, ErrLexical) {
		t.Errorf("Tokenize error = %v, want lexical error", err)
	}
}

func TestLexerLineComment(t *testing.T) {
	got := types(t, "--comment\nclass X {};")
	want := types(t, "class X {};")
	if !equalTypes(got, want) {
		t.Errorf("types = %v, want %v", got, want)
	}

	// A trailing comment without newline ends the input.
	got = types(t, "x -- done")
	want = []TokenType{TokenObjectID, TokenEOF}
	if !equalTypes(got, want) {
		t.Errorf("types = %v, want %v", got, want)
	}
}

func TestLexerBlockCommentDoesNotNest(t *testing.T) {
	got := types(t, "(* c1 (* c2 *) still-comment *)")
	want := []TokenType{
		TokenObjectID, // still
		TokenArithOp,  // -
		TokenObjectID, // comment
		TokenArithOp,  // *
		TokenRParen,
		TokenEOF,
	}
	if !equalTypes(got, want) {
		t.Errorf("types = %v, want %v", got, want)
	}
}

func TestLexerSelfClosingComment(t *testing.T) {
	tests := []struct {
		input string
		want  []TokenType
	}{
		{"(*) x", []TokenType{TokenObjectID, TokenEOF}},
		{"a (*)(*) b", []TokenType{TokenObjectID, TokenObjectID, TokenEOF}},
		{"(**) y", []TokenType{TokenObjectID, TokenEOF}},
		{"(*)", []TokenType{TokenEOF}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := types(t, tt.input); !equalTypes(got, tt.want) {
				t.Errorf("types = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLexerUnterminatedComment(t *testing.T) {
	l := lex("class (* open")
	if tok, err := l.NextToken(); err != nil || tok.Type != TokenClass {
		t.Fatalf("first token = %v, %v", tok, err)
	}
	if _, err := l.NextToken(); !errors.Is(err, ErrLexical) {
		t.Errorf("error = %v, want lexical error", err)
	}
	if tok, err := l.NextToken(); err != nil || tok.Type != TokenEOF {
		t.Errorf("after error = %v, %v; want EOF", tok, err)
	}
}

func TestLexerLineNumbers(t *testing.T) {
	input := "class\n  A\n(* two\nlines *) B\n-- c\n\"s\nt\" C"
	tokens, err := Tokenize(NewSource("test.cl", input))
	if err != nil {
		t.Fatal(err)
	}
	want := []int{1, 2, 4, 6, 7, 7}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(tokens), len(want), tokens)
	}
	for i, tok := range tokens {
		if tok.Pos.Line != want[i] {
			t.Errorf("token[%d] %v line = %d, want %d", i, tok, tok.Pos.Line, want[i])
		}
	}
}

func TestLexerUnrecognizedCharacters(t *testing.T) {
	for _, input := range []string{"#", "$", "é"} {
		_, err := lex(input).NextToken()
		var lexErr *LexError
		if !errors.As(err, &lexErr) {
			t.Errorf("Lexer(%q): error = %v, want *LexError", input, err)
			continue
		}
		if lexErr.Lexeme != input {
			t.Errorf("Lexer(%q): lexeme = %q", input, lexErr.Lexeme)
		}
	}
}

func TestLexerRecoversAfterError(t *testing.T) {
	tokens, err := Tokenize(NewSource("test.cl", "a # b 9z c"))
	if err == nil {
		t.Fatal("expected errors")
	}
	var names []string
	for _, tok := range tokens {
		if tok.Type == TokenObjectID {
			names = append(names, tok.Literal)
		}
	}
	if len(names) != 3 || names[0] != "a" || names[1] != "b" || names[2] != "c" {
		t.Errorf("identifiers = %v, want [a b c]", names)
	}
}

func TestLexerEOFOnce(t *testing.T) {
	l := lex("  ")
	tok, err := l.NextToken()
	if err != nil || tok.Type != TokenEOF {
		t.Fatalf("first call = %v, %v; want EOF token", tok, err)
	}
	for i := 0; i < 3; i++ {
		if _, err := l.NextToken(); err != io.EOF {
			t.Errorf("call %d: error = %v, want io.EOF", i, err)
		}
	}
}

func TestLexerClassDeclaration(t *testing.T) {
	input := `class Main inherits IO {
    main() : Object { out_string("hi") };
};`
	got := types(t, input)
	want := []TokenType{
		TokenClass, TokenTypeID, TokenInherits, TokenTypeID, TokenLBrace,
		TokenObjectID, TokenLParen, TokenRParen, TokenColon, TokenTypeID, TokenLBrace,
		TokenObjectID, TokenLParen, TokenString, TokenRParen, TokenRBrace, TokenSemicolon,
		TokenRBrace, TokenSemicolon, TokenEOF,
	}
	if !equalTypes(got, want) {
		t.Errorf("types = %v\nwant  %v", got, want)
	}
}

func TestTokenString(t *testing.T) {
	tokens, err := Tokenize(NewSource("test.cl", `class x Y 12 "s" <= + :`))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"<Class>", "<ObjectId, x>", "<TypeId, Y>", "<Integer, 12>", `<String, "s">`, "< <= >", "< + >", "< : >", "<EOF>"}
	for i, tok := range tokens {
		if tok.String() != want[i] {
			t.Errorf("token[%d].String() = %q, want %q", i, tok.String(), want[i])
		}
	}
}
