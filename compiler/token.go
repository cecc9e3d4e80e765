package compiler

import (
	"fmt"
	"math/big"
	"sort"
)

// ---------------------------------------------------------------------------
// Token types for the COOL lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota

	// Keywords
	TokenClass
	TokenElse
	TokenFalse
	TokenFi
	TokenIf
	TokenIn
	TokenInherits
	TokenIsvoid
	TokenLet
	TokenLoop
	TokenPool
	TokenThen
	TokenWhile
	TokenCase
	TokenEsac
	TokenNew
	TokenOf
	TokenNot // not, ~
	TokenTrue

	// Delimiters and fixed operators
	TokenColon     // :
	TokenComma     // ,
	TokenSemicolon // ;
	TokenLBrace    // {
	TokenRBrace    // }
	TokenLParen    // (
	TokenRParen    // )
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenFatArrow  // =>
	TokenDot       // .
	TokenAt        // @
	TokenAssign    // <-

	// Operator families, refined by Token.Rel / Token.Arith
	TokenRelOp   // = < <=
	TokenArithOp // + - * /

	// Identifiers and literals
	TokenObjectID // foo, _bar
	TokenTypeID   // Foo
	TokenInteger  // 42
	TokenString   // "hello"
)

var tokenNames = map[TokenType]string{
	TokenEOF:       "EOF",
	TokenClass:     "Class",
	TokenElse:      "Else",
	TokenFalse:     "False",
	TokenFi:        "Fi",
	TokenIf:        "If",
	TokenIn:        "In",
	TokenInherits:  "Inherits",
	TokenIsvoid:    "Isvoid",
	TokenLet:       "Let",
	TokenLoop:      "Loop",
	TokenPool:      "Pool",
	TokenThen:      "Then",
	TokenWhile:     "While",
	TokenCase:      "Case",
	TokenEsac:      "Esac",
	TokenNew:       "New",
	TokenOf:        "Of",
	TokenNot:       "Not",
	TokenTrue:      "True",
	TokenColon:     ":",
	TokenComma:     ",",
	TokenSemicolon: ";",
	TokenLBrace:    "{",
	TokenRBrace:    "}",
	TokenLParen:    "(",
	TokenRParen:    ")",
	TokenLBracket:  "[",
	TokenRBracket:  "]",
	TokenFatArrow:  "=>",
	TokenDot:       ".",
	TokenAt:        "@",
	TokenAssign:    "<-",
	TokenRelOp:     "RELOP",
	TokenArithOp:   "ARITH",
	TokenObjectID:  "ObjectId",
	TokenTypeID:    "TypeId",
	TokenInteger:   "Integer",
	TokenString:    "String",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// IsKeyword reports whether t is one of the reserved words.
func (t TokenType) IsKeyword() bool {
	return t >= TokenClass && t <= TokenTrue
}

// RelOp refines TokenRelOp.
type RelOp uint8

const (
	RelEqual RelOp = iota + 1
	RelLessThan
	RelLessEqual
)

func (op RelOp) String() string {
	switch op {
	case RelEqual:
		return "="
	case RelLessThan:
		return "<"
	case RelLessEqual:
		return "<="
	}
	return "?"
}

// ArithOp refines TokenArithOp.
type ArithOp uint8

const (
	ArithPlus ArithOp = iota + 1
	ArithMinus
	ArithMultiply
	ArithDivide
)

func (op ArithOp) String() string {
	switch op {
	case ArithPlus:
		return "+"
	case ArithMinus:
		return "-"
	case ArithMultiply:
		return "*"
	case ArithDivide:
		return "/"
	}
	return "?"
}

// Token represents a lexical token. Tokens are values and are never
// mutated once emitted.
type Token struct {
	Type    TokenType
	Literal string   // the raw text; strings keep their quotes
	Pos     Position // start position

	Rel   RelOp    // set for TokenRelOp
	Arith ArithOp  // set for TokenArithOp
	Int   *big.Int // set for TokenInteger
}

func (t Token) String() string {
	switch {
	case t.Type == TokenEOF:
		return "<EOF>"
	case t.Type.IsKeyword():
		return fmt.Sprintf("<%s>", t.Type)
	case t.Type == TokenRelOp:
		return fmt.Sprintf("< %s >", t.Rel)
	case t.Type == TokenArithOp:
		return fmt.Sprintf("< %s >", t.Arith)
	case t.Type == TokenObjectID, t.Type == TokenTypeID, t.Type == TokenString:
		return fmt.Sprintf("<%s, %s>", t.Type, t.Literal)
	case t.Type == TokenInteger:
		return fmt.Sprintf("<%s, %s>", t.Type, t.Int)
	}
	return fmt.Sprintf("< %s >", t.Type)
}

// Reserved words mapped to their token types. Matching is exact.
var keywords = map[string]TokenType{
	"class":    TokenClass,
	"else":     TokenElse,
	"false":    TokenFalse,
	"fi":       TokenFi,
	"if":       TokenIf,
	"in":       TokenIn,
	"inherits": TokenInherits,
	"isvoid":   TokenIsvoid,
	"let":      TokenLet,
	"loop":     TokenLoop,
	"pool":     TokenPool,
	"then":     TokenThen,
	"while":    TokenWhile,
	"case":     TokenCase,
	"esac":     TokenEsac,
	"new":      TokenNew,
	"of":       TokenOf,
	"not":      TokenNot,
	"true":     TokenTrue,
}

// LookupKeyword returns the keyword token type for word, if any.
func LookupKeyword(word string) (TokenType, bool) {
	t, ok := keywords[word]
	return t, ok
}

// Keywords returns the reserved words, sorted.
func Keywords() []string {
	out := make([]string, 0, len(keywords))
	for w := range keywords {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// punctuation maps single-character delimiters to their token types.
var punctuation = map[byte]TokenType{
	':': TokenColon,
	',': TokenComma,
	';': TokenSemicolon,
	'{': TokenLBrace,
	'}': TokenRBrace,
	'(': TokenLParen,
	')': TokenRParen,
	'[': TokenLBracket,
	']': TokenRBracket,
	'~': TokenNot,
	'.': TokenDot,
	'@': TokenAt,
}

var arithmetic = map[byte]ArithOp{
	'+': ArithPlus,
	'-': ArithMinus,
	'*': ArithMultiply,
	'/': ArithDivide,
}
