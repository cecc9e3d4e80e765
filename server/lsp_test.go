package server

import (
	"errors"
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/cool/compiler/outline"
)

const shapesDoc = `class Shape {
  name : String;
  area() : Int { 0 };
};

class Square inherits Shape {
  side : Int;
  area() : Int { side * side };
  scale(by : Int) : Square { self };
};
`

func analyze(t *testing.T, text string) *Analysis {
	t.Helper()
	return NewWorkspace(outline.Options{}).Update("file:///shapes.cl", text)
}

// ---------------------------------------------------------------------------
// LSP text extraction helpers
// ---------------------------------------------------------------------------

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"simple word", "x <- new Squ", protocol.Position{Line: 0, Character: 12}, "Squ"},
		{"at start", "Obj", protocol.Position{Line: 0, Character: 3}, "Obj"},
		{"empty line", "", protocol.Position{Line: 0, Character: 0}, ""},
		{"multi line", "first line\nsecond line\nsid", protocol.Position{Line: 2, Character: 3}, "sid"},
		{"after dispatch", "s.are", protocol.Position{Line: 0, Character: 5}, "are"},
		{"colon stops", "x:Int", protocol.Position{Line: 0, Character: 5}, "Int"},
		{"underscore", "out_str", protocol.Position{Line: 0, Character: 7}, "out_str"},
		{"cursor at beginning", "hello", protocol.Position{Line: 0, Character: 0}, ""},
		{"line beyond document", "single line", protocol.Position{Line: 5, Character: 0}, ""},
		{"column beyond line", "abc", protocol.Position{Line: 0, Character: 40}, "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractPrefix(tt.text, tt.pos); got != tt.want {
				t.Errorf("extractPrefix = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractWord(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"simple word", "hello world", protocol.Position{Line: 0, Character: 3}, "hello"},
		{"at end", "hello world", protocol.Position{Line: 0, Character: 5}, "hello"},
		{"second word", "hello world", protocol.Position{Line: 0, Character: 8}, "world"},
		{"empty line", "", protocol.Position{Line: 0, Character: 0}, ""},
		{"multi line", "first\nObject", protocol.Position{Line: 1, Character: 3}, "Object"},
		{"underscore", "type_name", protocol.Position{Line: 0, Character: 3}, "type_name"},
		{"punctuation", "a : Int", protocol.Position{Line: 0, Character: 5}, "Int"},
		{"line beyond document", "single line", protocol.Position{Line: 5, Character: 0}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractWord(tt.text, tt.pos); got != tt.want {
				t.Errorf("extractWord = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBoolPtr(t *testing.T) {
	p := boolPtr(true)
	if p == nil {
		t.Fatal("boolPtr should not return nil")
	}
	if *p != true {
		t.Errorf("boolPtr(true) = %v, want true", *p)
	}

	p = boolPtr(false)
	if *p != false {
		t.Errorf("boolPtr(false) = %v, want false", *p)
	}
}

// ---------------------------------------------------------------------------
// Analysis-backed logic (complete, hover, definition)
// ---------------------------------------------------------------------------

func TestLSP_CompleteClassNames(t *testing.T) {
	lsp := &LspServer{}
	items := lsp.complete(analyze(t, shapesDoc), "S")

	labels := make(map[string]string)
	for _, item := range items {
		if item.Kind == nil || *item.Kind != protocol.CompletionItemKindClass {
			t.Errorf("%s: kind = %v, want class", item.Label, item.Kind)
		}
		labels[item.Label] = *item.Detail
	}
	for _, want := range []string{"Shape", "Square", "String"} {
		if _, ok := labels[want]; !ok {
			t.Errorf("complete(S) missing %s, got %v", want, labels)
		}
	}
	if labels["Square"] != "class (inherits Shape)" {
		t.Errorf("Square detail = %q", labels["Square"])
	}
}

func TestLSP_CompleteKeywordsAndFeatures(t *testing.T) {
	lsp := &LspServer{}
	a := analyze(t, shapesDoc)

	items := lsp.complete(a, "s")
	found := make(map[string]protocol.CompletionItemKind)
	for _, item := range items {
		found[item.Label] = *item.Kind
	}
	if found["side"] != protocol.CompletionItemKindField {
		t.Errorf("side kind = %v, want field", found["side"])
	}
	if found["scale"] != protocol.CompletionItemKindMethod {
		t.Errorf("scale kind = %v, want method", found["scale"])
	}

	items = lsp.complete(a, "inh")
	if len(items) != 1 || items[0].Label != "inherits" || *items[0].Kind != protocol.CompletionItemKindKeyword {
		t.Errorf("complete(inh) = %+v", items)
	}
}

func TestLSP_HoverClass(t *testing.T) {
	lsp := &LspServer{}
	h := lsp.hover(analyze(t, shapesDoc), "Square")
	if h == nil {
		t.Fatal("hover for Square should return a result")
	}
	mc, ok := h.Contents.(protocol.MarkupContent)
	if !ok {
		t.Fatal("hover contents should be MarkupContent")
	}
	if mc.Kind != protocol.MarkupKindMarkdown {
		t.Errorf("hover markup kind = %q, want %q", mc.Kind, protocol.MarkupKindMarkdown)
	}
	for _, want := range []string{
		"**Square** inherits Shape",
		"Square.scale(by : Int) : Square",
		"Square.side : Int",
		"Object → Shape → **Square**",
	} {
		if !strings.Contains(mc.Value, want) {
			t.Errorf("hover missing %q:\n%s", want, mc.Value)
		}
	}
}

func TestLSP_HoverBuiltin(t *testing.T) {
	lsp := &LspServer{}
	h := lsp.hover(analyze(t, shapesDoc), "IO")
	if h == nil {
		t.Fatal("hover for IO should return a result")
	}
	mc := h.Contents.(protocol.MarkupContent)
	if !strings.Contains(mc.Value, "built-in class") {
		t.Errorf("hover = %q", mc.Value)
	}
}

func TestLSP_HoverFeature(t *testing.T) {
	lsp := &LspServer{}
	h := lsp.hover(analyze(t, shapesDoc), "area")
	if h == nil {
		t.Fatal("hover for area should return a result")
	}
	mc := h.Contents.(protocol.MarkupContent)
	if !strings.Contains(mc.Value, "Shape.area() : Int") || !strings.Contains(mc.Value, "Square.area() : Int") {
		t.Errorf("hover = %q", mc.Value)
	}
}

func TestLSP_HoverFormal(t *testing.T) {
	lsp := &LspServer{}
	h := lsp.hover(analyze(t, shapesDoc), "by")
	if h == nil {
		t.Fatal("hover for a formal should return a result")
	}
	mc := h.Contents.(protocol.MarkupContent)
	if !strings.Contains(mc.Value, "by : Int -- formal of Square.scale") {
		t.Errorf("hover = %q", mc.Value)
	}
}

func TestLSP_HoverUnknown(t *testing.T) {
	lsp := &LspServer{}
	a := analyze(t, shapesDoc)
	if h := lsp.hover(a, "Circle"); h != nil {
		t.Error("hover for undeclared class should be nil")
	}
	if h := lsp.hover(a, "perimeter"); h != nil {
		t.Error("hover for unknown feature should be nil")
	}
}

func TestLSP_Definition(t *testing.T) {
	lsp := &LspServer{}
	a := analyze(t, shapesDoc)

	locs := lsp.definition(a, "Square")
	if len(locs) != 1 {
		t.Fatalf("definition(Square) = %v", locs)
	}
	if locs[0].Range.Start.Line != 5 || locs[0].Range.Start.Character != 6 || locs[0].Range.End.Character != 12 {
		t.Errorf("Square range = %+v", locs[0].Range)
	}

	locs = lsp.definition(a, "area")
	if len(locs) != 2 {
		t.Fatalf("definition(area) = %v", locs)
	}
	lines := map[protocol.UInteger]bool{}
	for _, l := range locs {
		lines[l.Range.Start.Line] = true
	}
	if !lines[2] || !lines[7] {
		t.Errorf("area lines = %v, want 2 and 7", lines)
	}

	if locs := lsp.definition(a, "Object"); len(locs) != 0 {
		t.Errorf("built-in class should have no definition, got %v", locs)
	}
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

func TestDiagnostics(t *testing.T) {
	text := "class A { x : Int; x : Int; };\nclass B inherits Missing { };\n"
	a := analyze(t, text)
	diags := a.Diagnostics()
	if len(diags) != 2 {
		t.Fatalf("diagnostics = %d, want 2: %+v", len(diags), diags)
	}
	if diags[0].Range.Start.Line != 0 || diags[1].Range.Start.Line != 1 {
		t.Errorf("lines = %d, %d", diags[0].Range.Start.Line, diags[1].Range.Start.Line)
	}
	if diags[1].Range.End.Character != protocol.UInteger(len("class B inherits Missing { };")) {
		t.Errorf("end = %d", diags[1].Range.End.Character)
	}
	if !strings.HasPrefix(diags[0].Message, "semantic error:") {
		t.Errorf("message = %q", diags[0].Message)
	}
	if *diags[0].Severity != protocol.DiagnosticSeverityError || *diags[0].Source != lspName {
		t.Errorf("severity/source = %v %v", *diags[0].Severity, *diags[0].Source)
	}
}

func TestDiagnosticsWideCharacters(t *testing.T) {
	// é is one UTF-16 unit and two bytes; the emoji is two units and four bytes.
	line := `class A { s : String <- "é😀"; s : Int; };`
	a := analyze(t, line+"\r\n")
	diags := a.Diagnostics()
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %+v", diags)
	}
	want := protocol.UInteger(len(line) - 1 - 2)
	if got := diags[0].Range.End.Character; got != want {
		t.Errorf("end = %d, want %d", got, want)
	}
}

func TestDefinitionColumnAfterWideCharacters(t *testing.T) {
	lsp := &LspServer{}
	a := analyze(t, `class A { s : String <- "é"; n : Int; };`)
	locs := lsp.definition(a, "n")
	if len(locs) != 1 {
		t.Fatalf("definition(n) = %v", locs)
	}
	want := protocol.UInteger(strings.Index(`class A { s : String <- "é"; n`, "; n") + 2 - 1)
	if r := locs[0].Range; r.Start.Character != want || r.End.Character != want+1 {
		t.Errorf("n range = %+v, want start %d", r, want)
	}
}

func TestDiagnosticsLexicalAndClean(t *testing.T) {
	a := analyze(t, "class A {\n  x : Int # 3;\n};")
	diags := a.Diagnostics()
	if len(diags) == 0 {
		t.Fatal("expected a lexical diagnostic")
	}
	if diags[0].Range.Start.Line != 1 || !strings.HasPrefix(diags[0].Message, "lexical error:") {
		t.Errorf("diagnostic = %+v", diags[0])
	}

	if diags := analyze(t, shapesDoc).Diagnostics(); len(diags) != 0 {
		t.Errorf("clean program produced %+v", diags)
	}
}

// ---------------------------------------------------------------------------
// Worker
// ---------------------------------------------------------------------------

func TestWorkerSerializesWorkspace(t *testing.T) {
	w := NewWorker(NewWorkspace(outline.Options{}))
	defer w.Stop()

	updated, err := w.Update("file:///a.cl", shapesDoc)
	if err != nil {
		t.Fatal(err)
	}

	a, err := w.Analysis("file:///a.cl")
	if err != nil || a != updated || a.Stats.Classes != 2 {
		t.Errorf("Analysis = %+v, %v", a, err)
	}

	if err := w.Forget("file:///a.cl"); err != nil {
		t.Fatal(err)
	}
	if a, err := w.Analysis("file:///a.cl"); err != nil || a != nil {
		t.Errorf("after Forget: %+v, %v", a, err)
	}
}

func TestWorkerRecoversPanic(t *testing.T) {
	w := NewWorker(NewWorkspace(outline.Options{}))
	defer w.Stop()

	err := w.submit(func(ws *Workspace) {
		panic("boom")
	})
	if err == nil || err.Error() != "boom" {
		t.Errorf("err = %v, want boom", err)
	}

	// Still usable afterwards.
	a, err := w.Update("file:///a.cl", shapesDoc)
	if err != nil || a == nil {
		t.Errorf("after panic: %v, %v", a, err)
	}
}

func TestWorkerStop(t *testing.T) {
	w := NewWorker(NewWorkspace(outline.Options{}))
	w.Stop()
	w.Stop()

	if _, err := w.Update("file:///a.cl", shapesDoc); !errors.Is(err, ErrStopped) {
		t.Errorf("Update after Stop = %v, want ErrStopped", err)
	}
	if _, err := w.Analysis("file:///a.cl"); !errors.Is(err, ErrStopped) {
		t.Errorf("Analysis after Stop = %v, want ErrStopped", err)
	}
	if err := w.Forget("file:///a.cl"); !errors.Is(err, ErrStopped) {
		t.Errorf("Forget after Stop = %v, want ErrStopped", err)
	}
}
