package server

import (
	"errors"
	"sort"
	"strings"
	"unicode/utf16"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/cool/compiler"
	"github.com/chazu/cool/compiler/outline"
	"github.com/chazu/cool/compiler/semant"
)

// Analysis is the outline of one open document.
type Analysis struct {
	URI    string
	Src    *compiler.Source
	Env    *semant.Env
	Stats  outline.Stats
	Errors []error
	Decls  map[string]Decl
}

// Decl is where a class or feature is declared.
type Decl struct {
	Line      int // 1-based
	Column    int // 0-based, in UTF-16 code units
	Length    int
	Container string // owning class for features
}

// Workspace holds the analyses of every open document. It is only touched
// from the Worker goroutine.
type Workspace struct {
	opts     outline.Options
	analyses map[string]*Analysis
}

// NewWorkspace creates an empty workspace that outlines with opts.
func NewWorkspace(opts outline.Options) *Workspace {
	return &Workspace{
		opts:     opts,
		analyses: make(map[string]*Analysis),
	}
}

// Update re-analyzes uri from text.
func (ws *Workspace) Update(uri, text string) *Analysis {
	src := compiler.NewSource(uri, text)
	env := semant.NewEnv()
	o := outline.New(src, env, ws.opts)
	if err := o.Outline(); err != nil {
		log.Debugf("%s: %d problems", uri, len(o.Errors()))
	}

	a := &Analysis{
		URI:    uri,
		Src:    src,
		Env:    env,
		Stats:  o.Stats(),
		Errors: o.Errors(),
		Decls:  declarations(src),
	}
	ws.analyses[uri] = a
	return a
}

// Get returns the latest analysis of uri.
func (ws *Workspace) Get(uri string) (*Analysis, bool) {
	a, ok := ws.analyses[uri]
	return a, ok
}

// Forget drops uri.
func (ws *Workspace) Forget(uri string) {
	delete(ws.analyses, uri)
}

// declarations finds class and feature declaration sites. Features are
// identifiers directly inside a class body, outside any formals list,
// followed by ':' or '('.
func declarations(src *compiler.Source) map[string]Decl {
	tokens, _ := compiler.Tokenize(src)
	decls := make(map[string]Decl)
	depth, parens := 0, 0
	class := ""
	for i, tok := range tokens {
		switch tok.Type {
		case compiler.TokenLBrace:
			depth++
		case compiler.TokenRBrace:
			depth--
		case compiler.TokenLParen:
			parens++
		case compiler.TokenRParen:
			parens--
		case compiler.TokenTypeID:
			if i > 0 && tokens[i-1].Type == compiler.TokenClass {
				class = tok.Literal
				if _, seen := decls[class]; !seen {
					decls[class] = declAt(src, tok, "")
				}
			}
		case compiler.TokenObjectID:
			if depth != 1 || parens != 0 || i+1 >= len(tokens) {
				continue
			}
			if next := tokens[i+1].Type; next == compiler.TokenColon || next == compiler.TokenLParen {
				key := class + "." + tok.Literal
				if _, seen := decls[key]; !seen {
					decls[key] = declAt(src, tok, class)
				}
			}
		}
	}
	return decls
}

func declAt(src *compiler.Source, tok compiler.Token, container string) Decl {
	lineStart := strings.LastIndexByte(src.Text[:tok.Pos.Offset], '\n') + 1
	return Decl{
		Line:      tok.Pos.Line,
		Column:    int(utf16Len(src.Text[lineStart:tok.Pos.Offset])),
		Length:    len(tok.Literal),
		Container: container,
	}
}

// Diagnostics converts the recorded errors to LSP diagnostics. Each one
// spans the whole line it was reported on.
func (a *Analysis) Diagnostics() []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}
	for _, err := range a.Errors {
		line, msg := describe(err)
		start := protocol.Position{Line: 0, Character: 0}
		end := start
		if line >= 1 {
			start.Line = protocol.UInteger(line - 1)
			end = protocol.Position{Line: start.Line, Character: utf16Len(a.Src.Line(line))}
		}
		severity := protocol.DiagnosticSeverityError
		source := lspName
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    protocol.Range{Start: start, End: end},
			Severity: &severity,
			Source:   &source,
			Message:  msg,
		})
	}
	return diagnostics
}

// utf16Len returns the length of s in UTF-16 code units, the unit LSP
// positions count in.
func utf16Len(s string) protocol.UInteger {
	return protocol.UInteger(len(utf16.Encode([]rune(s))))
}

// describe splits a recorded error into its 1-based line and message.
func describe(err error) (int, string) {
	var lexErr *compiler.LexError
	if errors.As(err, &lexErr) {
		return lexErr.Line, "lexical error: " + lexErr.Msg
	}
	var outErr *outline.Error
	if errors.As(err, &outErr) {
		kind := "semantic error: "
		if errors.Is(outErr.Err, outline.ErrSyntax) {
			kind = ""
		}
		return outErr.Line, kind + outErr.Err.Error()
	}
	return 0, err.Error()
}

// classNames returns the built-in and declared class names, sorted.
func (a *Analysis) classNames() []string {
	names := []string{"Bool", "IO", "Int", "Object", "String"}
	for _, c := range a.Env.Classes() {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}
