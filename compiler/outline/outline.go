// Package outline walks the declaration structure of a COOL program and
// registers classes, member variables and method signatures with a
// semant.Env. Method bodies and initializers are skipped by delimiter
// balancing; expressions are not parsed.
package outline

import (
	"errors"
	"fmt"
	"io"

	"github.com/tliron/commonlog"

	"github.com/chazu/cool/compiler"
	"github.com/chazu/cool/compiler/semant"
)

var log = commonlog.GetLogger("coolc.outline")

// ErrSyntax marks declarations the outliner could not follow.
var ErrSyntax = errors.New("syntax error")

// errStop aborts the walk once the error budget is spent.
var errStop = errors.New("stop")

// Error attaches a source position to a semantic or syntax error.
type Error struct {
	File string
	Line int
	Err  error
}

func (e *Error) Error() string {
	kind := "semantic error"
	if errors.Is(e.Err, ErrSyntax) {
		kind = "syntax error"
	}
	return fmt.Sprintf("%s:%d: %s: %v", e.File, e.Line, kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Options controls error handling.
type Options struct {
	// MaxErrors stops the walk after this many errors; 0 means no limit.
	MaxErrors int
}

// FailFast stops at the first error.
var FailFast = Options{MaxErrors: 1}

// Stats counts what was registered.
type Stats struct {
	Classes int
	Members int
	Methods int
}

// Outliner drives an Env from a token stream.
type Outliner struct {
	lexer *compiler.Lexer
	env   *semant.Env
	file  string
	opts  Options

	curToken  compiler.Token
	peekToken compiler.Token

	errors []error
	stats  Stats
}

// New creates an outliner reading src and registering into env.
func New(src *compiler.Source, env *semant.Env, opts Options) *Outliner {
	o := &Outliner{
		lexer: compiler.NewLexer(src),
		env:   env,
		file:  src.Name,
		opts:  opts,
	}
	return o
}

// Run outlines src into env and returns every error joined together.
func Run(src *compiler.Source, env *semant.Env, opts Options) (Stats, error) {
	o := New(src, env, opts)
	err := o.Outline()
	return o.Stats(), err
}

// Stats returns what has been registered so far.
func (o *Outliner) Stats() Stats {
	return o.stats
}

// Errors returns the errors recorded so far.
func (o *Outliner) Errors() []error {
	return o.errors
}

// Outline walks the whole program.
func (o *Outliner) Outline() error {
	err := o.walk()
	if err != nil && !errors.Is(err, errStop) {
		return err
	}
	log.Infof("%s: %d classes, %d members, %d methods, %d errors",
		o.file, o.stats.Classes, o.stats.Members, o.stats.Methods, len(o.errors))
	return errors.Join(o.errors...)
}

func (o *Outliner) walk() error {
	// Fill curToken and peekToken.
	if err := o.nextToken(); err != nil {
		return err
	}
	if err := o.nextToken(); err != nil {
		return err
	}

	for !o.curTokenIs(compiler.TokenEOF) {
		if err := o.parseClass(); err != nil {
			return err
		}
		if err := o.expect(compiler.TokenSemicolon); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Token handling
// ---------------------------------------------------------------------------

// nextToken advances to the next token, recording lexical errors on the way.
func (o *Outliner) nextToken() error {
	o.curToken = o.peekToken
	for {
		tok, err := o.lexer.NextToken()
		if errors.Is(err, io.EOF) {
			// Past the end: keep presenting EOF.
			o.peekToken = compiler.Token{Type: compiler.TokenEOF, Pos: o.curToken.Pos}
			return nil
		}
		if err != nil {
			if stop := o.record(err); stop != nil {
				return stop
			}
			continue
		}
		o.peekToken = tok
		return nil
	}
}

func (o *Outliner) curTokenIs(t compiler.TokenType) bool {
	return o.curToken.Type == t
}

// expect consumes the current token if it matches, otherwise it records a
// syntax error and stops the walk.
func (o *Outliner) expect(t compiler.TokenType) error {
	if o.curTokenIs(t) {
		return o.nextToken()
	}
	o.record(o.errorAt(o.curToken, fmt.Errorf("%w: expected %s, got %s", ErrSyntax, t, o.curToken)))
	return errStop
}

// expectLiteral is expect for identifier tokens, returning their text.
func (o *Outliner) expectLiteral(t compiler.TokenType) (compiler.Token, error) {
	tok := o.curToken
	if err := o.expect(t); err != nil {
		return tok, err
	}
	return tok, nil
}

func (o *Outliner) errorAt(tok compiler.Token, err error) *Error {
	return &Error{File: o.file, Line: tok.Pos.Line, Err: err}
}

// record stores err and returns errStop once the error budget is spent.
func (o *Outliner) record(err error) error {
	o.errors = append(o.errors, err)
	log.Debugf("%s", err)
	if o.opts.MaxErrors > 0 && len(o.errors) >= o.opts.MaxErrors {
		return errStop
	}
	return nil
}

// semantic records a failed Env call positioned at tok.
func (o *Outliner) semantic(tok compiler.Token, err error) error {
	if err == nil {
		return nil
	}
	return o.record(o.errorAt(tok, err))
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

// parseClass handles: class TYPE [inherits TYPE] { feature; ... }
func (o *Outliner) parseClass() error {
	if err := o.expect(compiler.TokenClass); err != nil {
		return err
	}
	name, err := o.expectLiteral(compiler.TokenTypeID)
	if err != nil {
		return err
	}

	parent := ""
	if o.curTokenIs(compiler.TokenInherits) {
		if err := o.nextToken(); err != nil {
			return err
		}
		parentTok, err := o.expectLiteral(compiler.TokenTypeID)
		if err != nil {
			return err
		}
		parent = parentTok.Literal
	}

	// Features of a class that failed to register are still walked but
	// not recorded, so they cannot land on an earlier class of that name.
	class := name.Literal
	if err := o.env.DeclareClass(name.Literal, parent); err != nil {
		class = ""
		if stop := o.semantic(name, err); stop != nil {
			return stop
		}
	} else {
		o.stats.Classes++
	}

	if err := o.expect(compiler.TokenLBrace); err != nil {
		return err
	}
	for !o.curTokenIs(compiler.TokenRBrace) {
		if err := o.parseFeature(class); err != nil {
			return err
		}
		if err := o.expect(compiler.TokenSemicolon); err != nil {
			return err
		}
	}
	return o.expect(compiler.TokenRBrace)
}

// parseFeature handles a member variable or a method.
func (o *Outliner) parseFeature(class string) error {
	name, err := o.expectLiteral(compiler.TokenObjectID)
	if err != nil {
		return err
	}
	if o.curTokenIs(compiler.TokenLParen) {
		return o.parseMethod(class, name)
	}
	return o.parseMember(class, name)
}

// parseMember handles: ID : TYPE [<- expr]
func (o *Outliner) parseMember(class string, name compiler.Token) error {
	if err := o.expect(compiler.TokenColon); err != nil {
		return err
	}
	typ, err := o.expectLiteral(compiler.TokenTypeID)
	if err != nil {
		return err
	}

	if class != "" {
		err := o.env.DefineMemberVariable(class, name.Literal, typ.Literal)
		if err != nil {
			if stop := o.semantic(name, err); stop != nil {
				return stop
			}
		} else {
			o.stats.Members++
		}
	}

	if o.curTokenIs(compiler.TokenAssign) {
		if err := o.nextToken(); err != nil {
			return err
		}
		return o.skipExpr()
	}
	return nil
}

// parseMethod handles: ID ( [formal {, formal}] ) : TYPE { expr }
func (o *Outliner) parseMethod(class string, name compiler.Token) error {
	if err := o.expect(compiler.TokenLParen); err != nil {
		return err
	}

	var params []semant.ParamDecl
	for !o.curTokenIs(compiler.TokenRParen) {
		if len(params) > 0 {
			if err := o.expect(compiler.TokenComma); err != nil {
				return err
			}
		}
		pname, err := o.expectLiteral(compiler.TokenObjectID)
		if err != nil {
			return err
		}
		if err := o.expect(compiler.TokenColon); err != nil {
			return err
		}
		ptype, err := o.expectLiteral(compiler.TokenTypeID)
		if err != nil {
			return err
		}
		params = append(params, semant.ParamDecl{Name: pname.Literal, Type: ptype.Literal})
	}
	if err := o.expect(compiler.TokenRParen); err != nil {
		return err
	}
	if err := o.expect(compiler.TokenColon); err != nil {
		return err
	}
	ret, err := o.expectLiteral(compiler.TokenTypeID)
	if err != nil {
		return err
	}

	accepted := false
	if class != "" {
		err := o.defineMethod(class, name.Literal, params, ret.Literal)
		if err != nil {
			if stop := o.semantic(name, err); stop != nil {
				return stop
			}
		} else {
			accepted = true
			o.stats.Methods++
		}
	}

	// The body sees self and the formals in a scope of its own.
	o.env.StartScope()
	bodyErr := o.parseMethodBody(class, name, params, accepted)
	if err := o.env.EndScope(); err != nil {
		return fmt.Errorf("method %s: %w", name.Literal, err)
	}
	return bodyErr
}

// parseMethodBody binds self and the formals of an accepted method, then
// skips the braced body. The caller owns the enclosing scope.
func (o *Outliner) parseMethodBody(class string, name compiler.Token, params []semant.ParamDecl, accepted bool) error {
	if accepted {
		if err := o.semantic(name, o.env.AddVariable("self", class)); err != nil {
			return err
		}
		for _, p := range params {
			if err := o.semantic(name, o.env.AddVariable(p.Name, p.Type)); err != nil {
				return err
			}
		}
	}

	if !o.curTokenIs(compiler.TokenLBrace) {
		return o.expect(compiler.TokenLBrace)
	}
	return o.skipBalanced()
}

// defineMethod registers a method, overriding when the name is inherited.
func (o *Outliner) defineMethod(class, name string, params []semant.ParamDecl, ret string) error {
	c, ok := o.env.Class(class)
	if !ok {
		return fmt.Errorf("%w: class %s", semant.ErrUndeclaredType, class)
	}
	if _, own := c.Feature(name); !own && o.env.ContainsMethod(c.Type(), name) {
		return o.env.RedefineMethod(class, name, params, ret)
	}
	return o.env.DefineMethod(class, name, params, ret)
}

// ---------------------------------------------------------------------------
// Skipping expressions
// ---------------------------------------------------------------------------

func opens(t compiler.TokenType) bool {
	return t == compiler.TokenLBrace || t == compiler.TokenLParen || t == compiler.TokenLBracket
}

func closes(t compiler.TokenType) bool {
	return t == compiler.TokenRBrace || t == compiler.TokenRParen || t == compiler.TokenRBracket
}

// skipBalanced consumes a bracketed group starting at the current opener.
func (o *Outliner) skipBalanced() error {
	start := o.curToken
	depth := 0
	for {
		switch {
		case o.curTokenIs(compiler.TokenEOF):
			o.record(o.errorAt(start, fmt.Errorf("%w: unclosed %s", ErrSyntax, start.Type)))
			return errStop
		case opens(o.curToken.Type):
			depth++
		case closes(o.curToken.Type):
			depth--
		}
		if err := o.nextToken(); err != nil {
			return err
		}
		if depth == 0 {
			return nil
		}
	}
}

// skipExpr consumes an initializer up to the ';' that ends the feature.
func (o *Outliner) skipExpr() error {
	for !o.curTokenIs(compiler.TokenSemicolon) {
		switch {
		case o.curTokenIs(compiler.TokenEOF), closes(o.curToken.Type):
			// Let the caller report the missing ';'.
			return nil
		case opens(o.curToken.Type):
			if err := o.skipBalanced(); err != nil {
				return err
			}
		default:
			if err := o.nextToken(); err != nil {
				return err
			}
		}
	}
	return nil
}
