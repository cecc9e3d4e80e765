package server

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/cool/compiler"
	"github.com/chazu/cool/compiler/outline"
	"github.com/chazu/cool/compiler/semant"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "coolc-lsp"

var log = commonlog.GetLogger("coolc.lsp")

// LspServer bridges LSP editor features to class table analyses via Worker.
type LspServer struct {
	worker *Worker

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server that outlines documents with opts.
func NewLSP(opts outline.Options) *LspServer {
	worker := NewWorker(NewWorkspace(opts))
	s := &LspServer{
		worker:  worker,
		docs:    make(map[string]string),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("COOL LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{".", "@", ":"},
	}

	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			text := whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	if err := s.worker.Forget(string(uri)); err != nil {
		log.Errorf("closing %s: %s", uri, err)
	}

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	uri := string(params.TextDocument.URI)

	text, ok := s.document(uri)
	if !ok {
		return nil, nil
	}

	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}

	a, err := s.worker.Analysis(uri)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, nil
	}

	return s.complete(a, prefix), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	uri := string(params.TextDocument.URI)

	text, ok := s.document(uri)
	if !ok {
		return nil, nil
	}

	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}

	a, err := s.worker.Analysis(uri)
	if err != nil || a == nil {
		return nil, nil
	}

	return s.hover(a, word), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := string(params.TextDocument.URI)

	text, ok := s.document(uri)
	if !ok {
		return nil, nil
	}

	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}

	a, err := s.worker.Analysis(uri)
	if err != nil || a == nil {
		return nil, nil
	}

	locations := s.definition(a, word)
	if len(locations) == 0 {
		return nil, nil
	}
	return locations, nil
}

func (s *LspServer) document(uri string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[uri]
	return text, ok
}

// --- Analysis-backed logic ---

func (s *LspServer) complete(a *Analysis, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem

	// Class names
	if unicode.IsUpper(rune(prefix[0])) {
		for _, name := range a.classNames() {
			if !strings.HasPrefix(name, prefix) {
				continue
			}
			kind := protocol.CompletionItemKindClass
			detail := "class"
			if t, err := a.Env.ResolveType(name); err == nil {
				if parents := a.Env.Ancestors(t); len(parents) > 0 {
					detail = fmt.Sprintf("class (inherits %s)", a.Env.TypeName(parents[0]))
				}
			}
			nameCopy := name
			items = append(items, protocol.CompletionItem{
				Label:      name,
				Kind:       &kind,
				Detail:     &detail,
				InsertText: &nameCopy,
			})
		}
	}

	// Keywords
	for _, word := range compiler.Keywords() {
		if strings.HasPrefix(word, prefix) {
			kind := protocol.CompletionItemKindKeyword
			wordCopy := word
			items = append(items, protocol.CompletionItem{
				Label:      word,
				Kind:       &kind,
				InsertText: &wordCopy,
			})
		}
	}

	// Features of declared classes
	seen := make(map[string]bool)
	for _, c := range a.Env.Classes() {
		for _, f := range c.Features() {
			name := f.FeatureName()
			if seen[name] || !strings.HasPrefix(name, prefix) {
				continue
			}
			seen[name] = true
			kind := protocol.CompletionItemKindField
			if _, ok := f.(*semant.Method); ok {
				kind = protocol.CompletionItemKindMethod
			}
			detail := signature(a.Env, c, f)
			nameCopy := name
			items = append(items, protocol.CompletionItem{
				Label:      name,
				Kind:       &kind,
				Detail:     &detail,
				InsertText: &nameCopy,
			})
		}
	}

	// Limit results
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}

	return items
}

func (s *LspServer) hover(a *Analysis, word string) *protocol.Hover {
	// Uppercase word → class lookup
	if unicode.IsUpper(rune(word[0])) {
		t, err := a.Env.ResolveType(word)
		if err != nil {
			return nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "**%s**", word)
		parents := a.Env.Ancestors(t)
		if len(parents) > 0 {
			fmt.Fprintf(&b, " inherits %s", a.Env.TypeName(parents[0]))
		}
		b.WriteString("\n\n")

		if c, ok := a.Env.ClassOf(t); ok {
			features := c.Features()
			if len(features) > 0 {
				b.WriteString("```cool\n")
				for _, f := range features {
					b.WriteString(signature(a.Env, c, f))
					b.WriteString("\n")
				}
				b.WriteString("```\n\n")
			}
		} else {
			b.WriteString("built-in class\n\n")
		}

		// Show hierarchy
		if len(parents) > 0 {
			b.WriteString("**Hierarchy:** ")
			for i := len(parents) - 1; i >= 0; i-- {
				b.WriteString(a.Env.TypeName(parents[i]))
				b.WriteString(" → ")
			}
			fmt.Fprintf(&b, "**%s**", word)
		}

		return markdown(b.String())
	}

	// Lowercase → features declared under that name, then formals
	var lines []string
	for _, c := range a.Env.Classes() {
		if f, ok := c.Feature(word); ok {
			lines = append(lines, signature(a.Env, c, f))
		}
	}
	for _, c := range a.Env.Classes() {
		for _, f := range c.Features() {
			m, ok := f.(*semant.Method)
			if !ok {
				continue
			}
			if p, ok := m.Param(word); ok {
				lines = append(lines, fmt.Sprintf("%s : %s -- formal of %s.%s", p.Name, a.Env.TypeName(p.Type), c.Name, m.Name))
			}
		}
	}
	if len(lines) == 0 {
		return nil
	}
	sort.Strings(lines)

	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n\n```cool\n", word)
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("```")
	return markdown(b.String())
}

func (s *LspServer) definition(a *Analysis, word string) []protocol.Location {
	var keys []string
	if unicode.IsUpper(rune(word[0])) {
		keys = append(keys, word)
	} else {
		for _, c := range a.Env.Classes() {
			if _, ok := c.Feature(word); ok {
				keys = append(keys, c.Name+"."+word)
			}
		}
	}

	var locations []protocol.Location
	for _, key := range keys {
		d, ok := a.Decls[key]
		if !ok {
			continue
		}
		line := protocol.UInteger(d.Line - 1)
		locations = append(locations, protocol.Location{
			URI: protocol.DocumentUri(a.URI),
			Range: protocol.Range{
				Start: protocol.Position{Line: line, Character: protocol.UInteger(d.Column)},
				End:   protocol.Position{Line: line, Character: protocol.UInteger(d.Column + d.Length)},
			},
		})
	}
	return locations
}

// signature renders a feature the way it is declared.
func signature(env *semant.Env, c *semant.Class, f semant.Feature) string {
	switch f := f.(type) {
	case *semant.Member:
		return fmt.Sprintf("%s.%s : %s", c.Name, f.Name, env.TypeName(f.Type))
	case *semant.Method:
		params := make([]string, len(f.Params))
		for i, p := range f.Params {
			params[i] = p.Name + " : " + env.TypeName(p.Type)
		}
		return fmt.Sprintf("%s.%s(%s) : %s", c.Name, f.Name, strings.Join(params, ", "), env.TypeName(f.Return))
	}
	return c.Name + "." + f.FeatureName()
}

func markdown(value string) *protocol.Hover {
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: value,
		},
	}
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	a, err := s.worker.Update(string(uri), text)
	if err != nil {
		log.Errorf("%s", err)
		return
	}

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: a.Diagnostics(),
	})
}

// --- Text extraction helpers ---

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 && isIdentByte(line[start-1]) {
		start--
	}

	if start == col {
		return ""
	}

	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Find start
	start := col
	for start > 0 && isIdentByte(line[start-1]) {
		start--
	}

	// Find end
	end := col
	for end < len(line) && isIdentByte(line[end]) {
		end++
	}

	if start == end {
		return ""
	}

	return line[start:end]
}

func isIdentByte(ch byte) bool {
	return ch == '_' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9'
}

func boolPtr(b bool) *bool {
	return &b
}
