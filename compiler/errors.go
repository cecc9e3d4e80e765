package compiler

import (
	"errors"
	"fmt"
)

// ErrLexical matches every *LexError via errors.Is.
var ErrLexical = errors.New("lexical error")

// LexError reports a lexeme the tokenizer could not classify.
type LexError struct {
	File   string
	Line   int
	Lexeme string
	Msg    string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("%s:%d: lexical error: %s", e.File, e.Line, e.Msg)
}

func (e *LexError) Is(target error) bool {
	return target == ErrLexical
}
