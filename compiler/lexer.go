package compiler

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for COOL source
// ---------------------------------------------------------------------------

var lexLog = commonlog.GetLogger("coolc.lexer")

// Lexer produces tokens from a Source one at a time. It only moves forward.
type Lexer struct {
	src   *Source
	begin int // start of the current candidate lexeme
	ahead int // one character past begin
	line  int // line of the character at begin (1-based)
	done  bool
}

// NewLexer creates a new lexer over src.
func NewLexer(src *Source) *Lexer {
	return &Lexer{
		src:   src,
		begin: 0,
		ahead: 1,
		line:  1,
	}
}

// Line returns the line the lexer is currently on.
func (l *Lexer) Line() int {
	return l.line
}

// moveTo repositions the lexeme start to pos, counting the newlines it
// steps over. The lookahead cursor follows one character behind.
func (l *Lexer) moveTo(pos int) {
	if pos > l.src.Len() {
		pos = l.src.Len()
	}
	l.line += strings.Count(l.src.Text[l.begin:pos], "\n")
	l.begin = pos
	l.ahead = pos + 1
}

// advance moves both cursors one character forward.
func (l *Lexer) advance() {
	l.moveTo(l.begin + 1)
}

func (l *Lexer) cur() byte {
	return l.src.At(l.begin)
}

func (l *Lexer) peek() byte {
	return l.src.At(l.ahead)
}

func (l *Lexer) atEnd() bool {
	return l.begin >= l.src.Len()
}

func (l *Lexer) position() Position {
	return Position{Offset: l.begin, Line: l.line}
}

func (l *Lexer) errorf(line int, lexeme, format string, args ...interface{}) *LexError {
	err := &LexError{
		File:   l.src.Name,
		Line:   line,
		Lexeme: lexeme,
		Msg:    fmt.Sprintf(format, args...),
	}
	lexLog.Debugf("%s", err)
	return err
}

// NextToken returns the next token. The EOF token is returned exactly once;
// every later call returns io.EOF. A *LexError leaves the lexer positioned
// after the offending lexeme, so the caller may keep pulling tokens.
func (l *Lexer) NextToken() (Token, error) {
	if l.done {
		return Token{}, io.EOF
	}

	if err := l.skipWhitespaceAndComments(); err != nil {
		return Token{}, err
	}

	pos := l.position()

	if l.atEnd() {
		l.done = true
		return Token{Type: TokenEOF, Pos: pos}, nil
	}

	ch := l.cur()

	if typ, ok := punctuation[ch]; ok {
		l.advance()
		return Token{Type: typ, Literal: string(ch), Pos: pos}, nil
	}

	if op, ok := arithmetic[ch]; ok {
		l.advance()
		return Token{Type: TokenArithOp, Arith: op, Literal: string(ch), Pos: pos}, nil
	}

	switch {
	case ch == '<':
		switch l.peek() {
		case '-':
			l.moveTo(l.begin + 2)
			return Token{Type: TokenAssign, Literal: "<-", Pos: pos}, nil
		case '=':
			l.moveTo(l.begin + 2)
			return Token{Type: TokenRelOp, Rel: RelLessEqual, Literal: "<=", Pos: pos}, nil
		}
		l.advance()
		return Token{Type: TokenRelOp, Rel: RelLessThan, Literal: "<", Pos: pos}, nil

	case ch == '=':
		if l.peek() == '>' {
			l.moveTo(l.begin + 2)
			return Token{Type: TokenFatArrow, Literal: "=>", Pos: pos}, nil
		}
		l.advance()
		return Token{Type: TokenRelOp, Rel: RelEqual, Literal: "=", Pos: pos}, nil

	case isLetter(ch) || ch == '_':
		return l.readIdentifierOrKeyword(pos), nil

	case isDigit(ch):
		return l.readNumber(pos)

	case ch == '"':
		return l.readString(pos)
	}

	if ch >= utf8.RuneSelf {
		r, size := utf8.DecodeRuneInString(l.src.Text[l.begin:])
		l.moveTo(l.begin + size)
		return Token{}, l.errorf(pos.Line, string(r), "non-ASCII character %q", r)
	}
	l.advance()
	return Token{}, l.errorf(pos.Line, string(ch), "unrecognized lexeme beginning %q", ch)
}

// skipWhitespaceAndComments skips whitespace, (* block *) comments and
// -- line comments until something else shows up.
func (l *Lexer) skipWhitespaceAndComments() error {
	for !l.atEnd() {
		ch := l.cur()
		switch {
		case isSpace(ch):
			l.advance()

		case ch == '(' && l.peek() == '*':
			// Block comments do not nest: the first *) closes the comment.
			// The opener's '*' may start the closer, so "(*)" is complete.
			line := l.line
			end := strings.Index(l.src.Text[l.begin+1:], "*)")
			if end < 0 {
				l.moveTo(l.src.Len())
				return l.errorf(line, "(*", "unterminated comment")
			}
			l.moveTo(l.begin + 1 + end + 2)

		case ch == '-' && l.peek() == '-':
			end := strings.IndexByte(l.src.Text[l.begin:], '\n')
			if end < 0 {
				l.moveTo(l.src.Len())
			} else {
				l.moveTo(l.begin + end + 1)
			}

		default:
			return nil
		}
	}
	return nil
}

// readIdentifierOrKeyword reads a keyword, type identifier or object
// identifier.
func (l *Lexer) readIdentifierOrKeyword(pos Position) Token {
	end := l.ahead
	for end < l.src.Len() && (isAlnum(l.src.At(end)) || l.src.At(end) == '_') {
		end++
	}
	literal := l.src.Text[l.begin:end]
	l.moveTo(end)

	if typ, ok := keywords[literal]; ok {
		return Token{Type: typ, Literal: literal, Pos: pos}
	}
	if isUpper(literal[0]) {
		return Token{Type: TokenTypeID, Literal: literal, Pos: pos}
	}
	return Token{Type: TokenObjectID, Literal: literal, Pos: pos}
}

// readNumber reads an integer literal. An alphanumeric run that starts
// with a digit but contains a letter is a malformed identifier.
func (l *Lexer) readNumber(pos Position) (Token, error) {
	end := l.ahead
	digitsOnly := true
	for end < l.src.Len() && isAlnum(l.src.At(end)) {
		if !isDigit(l.src.At(end)) {
			digitsOnly = false
		}
		end++
	}
	literal := l.src.Text[l.begin:end]
	l.moveTo(end)

	if !digitsOnly {
		return Token{}, l.errorf(pos.Line, literal, "invalid identifier %s", literal)
	}

	value, ok := new(big.Int).SetString(literal, 10)
	if !ok {
		return Token{}, l.errorf(pos.Line, literal, "invalid integer literal %s", literal)
	}
	return Token{Type: TokenInteger, Literal: literal, Int: value, Pos: pos}, nil
}

// readString reads a string literal up to the next double quote. The
// literal keeps both quotes; escapes are not interpreted.
func (l *Lexer) readString(pos Position) (Token, error) {
	closing := strings.IndexByte(l.src.Text[l.ahead:], '"')
	if closing < 0 {
		literal := l.src.Text[l.begin:]
		l.moveTo(l.src.Len())
		return Token{}, l.errorf(pos.Line, literal, "unterminated string")
	}
	end := l.ahead + closing + 1
	literal := l.src.Text[l.begin:end]
	l.moveTo(end)
	return Token{Type: TokenString, Literal: literal, Pos: pos}, nil
}

// Helper functions

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f' || ch == '\v'
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isUpper(ch byte) bool {
	return ch >= 'A' && ch <= 'Z'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isAlnum(ch byte) bool {
	return isLetter(ch) || isDigit(ch)
}

// Tokenize returns every token of src up to and including EOF. Lexical
// errors do not stop the scan; they are joined into the returned error.
func Tokenize(src *Source) ([]Token, error) {
	l := NewLexer(src)
	var tokens []Token
	var errs []error
	for {
		tok, err := l.NextToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens, errors.Join(errs...)
}
