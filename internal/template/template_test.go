package template

import "testing"

func TestParseStaticRaw(t *testing.T) {
	tmpl, err := Parse("hello world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tmpl.IsDynamic() {
		t.Fatal("expected static template")
	}
	if len(tmpl.Chunks) != 1 || tmpl.Chunks[0].Raw != "hello world" {
		t.Fatalf("unexpected chunks: %+v", tmpl.Chunks)
	}
}

func TestParseExpressionChunk(t *testing.T) {
	tmpl, err := Parse("hi {{ name }}!")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tmpl.IsDynamic() {
		t.Fatal("expected dynamic template")
	}
	if len(tmpl.Chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %+v", len(tmpl.Chunks), tmpl.Chunks)
	}
	if tmpl.Chunks[1].Expr.Kind != ExprField || tmpl.Chunks[1].Expr.Field != "name" {
		t.Fatalf("expected field expr 'name', got %+v", tmpl.Chunks[1].Expr)
	}
}

func TestEscapeSoundness(t *testing.T) {
	tests := []string{
		"plain text",
		"has {{ in it literally",
		"multiple {{ {{ runs",
		"already {_{ escaped looking text",
	}
	for _, s := range tests {
		t.Run(s, func(t *testing.T) {
			raw := Raw(s)
			displayed := raw.Display()
			reparsed, err := Parse(displayed)
			if err != nil {
				t.Fatalf("reparse failed: %v", err)
			}
			if reparsed.IsDynamic() {
				t.Fatalf("reparsed template unexpectedly dynamic: %q", displayed)
			}
			got := ""
			for _, c := range reparsed.Chunks {
				got += c.Raw
			}
			if got != s {
				t.Errorf("round-trip mismatch: original %q, displayed %q, reparsed %q", s, displayed, got)
			}
		})
	}
}

func TestTemplateRoundTrip(t *testing.T) {
	sources := []string{
		"{{ 1 }}",
		"{{ 1.5 }}",
		"{{ \"hi\" }}",
		"{{ [1, 2, 3] }}",
		"{{ {a: 1, b: 2} }}",
		"{{ file(path=\"x\") }}",
		"{{ foo | bar(1) }}",
	}
	for _, src := range sources {
		t.Run(src, func(t *testing.T) {
			tmpl, err := Parse(src)
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			displayed := tmpl.Display()
			reparsed, err := Parse(displayed)
			if err != nil {
				t.Fatalf("reparse of %q failed: %v", displayed, err)
			}
			if len(reparsed.Chunks) != len(tmpl.Chunks) {
				t.Fatalf("chunk count mismatch: %d vs %d", len(reparsed.Chunks), len(tmpl.Chunks))
			}
			if reparsed.Chunks[0].Expr.Display() != tmpl.Chunks[0].Expr.Display() {
				t.Errorf("expr display mismatch: %q vs %q", reparsed.Chunks[0].Expr.Display(), tmpl.Chunks[0].Expr.Display())
			}
		})
	}
}

func TestParseBytesLiteral(t *testing.T) {
	tmpl, err := Parse(`{{ b'\x41\x42' }}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e := tmpl.Chunks[0].Expr
	if e.Kind != ExprLiteral || e.Lit.Kind != LitBytes || e.Lit.S != "AB" {
		t.Fatalf("unexpected literal: %+v", e)
	}
}

func TestParseCallWithKeywordArgs(t *testing.T) {
	tmpl, err := Parse(`{{ command(command="echo", args=["hi"], trim="both") }}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e := tmpl.Chunks[0].Expr
	if e.Kind != ExprCall || e.Call.Name != "command" {
		t.Fatalf("unexpected call: %+v", e)
	}
	if len(e.Call.Keyword) != 3 {
		t.Fatalf("expected 3 keyword args, got %d", len(e.Call.Keyword))
	}
}

func TestParsePipe(t *testing.T) {
	tmpl, err := Parse(`{{ response(recipe="login") | json_path(query="$.token") }}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e := tmpl.Chunks[0].Expr
	if e.Kind != ExprPipe {
		t.Fatalf("expected pipe expr, got %+v", e)
	}
	if e.PipeTo.Name != "json_path" {
		t.Fatalf("expected pipe target json_path, got %s", e.PipeTo.Name)
	}
}

func TestObjectDuplicateKeyLastWriteWins(t *testing.T) {
	tmpl, err := Parse(`{{ {a: 1, a: 2} }}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e := tmpl.Chunks[0].Expr
	if len(e.Pairs) != 1 {
		t.Fatalf("expected duplicate key collapsed, got %d pairs", len(e.Pairs))
	}
	if e.Pairs[0].Value.Lit.I != 2 {
		t.Fatalf("expected last-write-wins value 2, got %+v", e.Pairs[0].Value.Lit)
	}
}

func TestUnterminatedExpressionError(t *testing.T) {
	_, err := Parse("hello {{ name")
	if err == nil {
		t.Fatal("expected parse error for unterminated expression")
	}
}

func TestParseErrorHasSpan(t *testing.T) {
	_, err := Parse("{{ ] }}")
	if err == nil {
		t.Fatal("expected parse error")
	}
	pe, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if pe.Span.Start == pe.Span.End && pe.Span.Start == 0 {
		t.Fatalf("expected a meaningful span, got %+v", pe.Span)
	}
}
