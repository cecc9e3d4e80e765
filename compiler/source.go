package compiler

import (
	"fmt"
	"os"
	"strings"
)

// ---------------------------------------------------------------------------
// Source: immutable, fully loaded program text
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
}

func (p Position) String() string {
	return fmt.Sprintf("line %d", p.Line)
}

// Source is a program text held entirely in memory. It is never mutated
// after construction.
type Source struct {
	Name string // file name used in diagnostics
	Text string
}

// NewSource wraps in-memory text under the given diagnostic name.
func NewSource(name, text string) *Source {
	return &Source{Name: name, Text: text}
}

// ReadSource loads the whole file at path.
func ReadSource(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	return NewSource(path, string(data)), nil
}

// Len returns the size of the text in bytes.
func (s *Source) Len() int {
	return len(s.Text)
}

// At returns the byte at offset i, or 0 past the end of the text.
func (s *Source) At(i int) byte {
	if i < 0 || i >= len(s.Text) {
		return 0
	}
	return s.Text[i]
}

// Line returns the text of the given 1-based line without its newline.
func (s *Source) Line(n int) string {
	if n < 1 {
		return ""
	}
	lines := strings.Split(s.Text, "\n")
	if n > len(lines) {
		return ""
	}
	return strings.TrimSuffix(lines[n-1], "\r")
}
