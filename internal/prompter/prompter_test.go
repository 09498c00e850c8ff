package prompter

import (
	"context"
	"strings"
	"testing"
)

func TestPromptStdinFallback(t *testing.T) {
	in := strings.NewReader("hello world\n")
	var out strings.Builder
	p := NewWithIO(in, &out)

	got, err := p.Prompt(context.Background(), "name", nil, false)
	if err != nil {
		t.Fatalf("Prompt: %v", err)
	}
	if got != "hello world" {
		t.Errorf("got %q", got)
	}
	if !strings.Contains(out.String(), "name") {
		t.Errorf("expected prompt message echoed to out, got %q", out.String())
	}
}

func TestPromptStdinEmptyUsesDefault(t *testing.T) {
	in := strings.NewReader("\n")
	var out strings.Builder
	p := NewWithIO(in, &out)

	def := "fallback"
	got, err := p.Prompt(context.Background(), "name", &def, false)
	if err != nil {
		t.Fatalf("Prompt: %v", err)
	}
	if got != "fallback" {
		t.Errorf("got %q, want default", got)
	}
}

func TestPromptStdinEmptyNoDefaultErrors(t *testing.T) {
	in := strings.NewReader("\n")
	var out strings.Builder
	p := NewWithIO(in, &out)

	if _, err := p.Prompt(context.Background(), "name", nil, false); err == nil {
		t.Fatal("expected an error for an empty reply with no default")
	}
}

func TestChooseStdinByName(t *testing.T) {
	in := strings.NewReader("staging\n")
	var out strings.Builder
	p := NewWithIO(in, &out)

	got, err := p.Choose(context.Background(), "environment", []string{"dev", "staging", "prod"})
	if err != nil {
		t.Fatalf("Choose: %v", err)
	}
	if got != "staging" {
		t.Errorf("got %q", got)
	}
}

func TestChooseStdinByIndex(t *testing.T) {
	in := strings.NewReader("3\n")
	var out strings.Builder
	p := NewWithIO(in, &out)

	got, err := p.Choose(context.Background(), "environment", []string{"dev", "staging", "prod"})
	if err != nil {
		t.Fatalf("Choose: %v", err)
	}
	if got != "prod" {
		t.Errorf("got %q", got)
	}
}

func TestChooseStdinInvalidErrors(t *testing.T) {
	in := strings.NewReader("nope\n")
	var out strings.Builder
	p := NewWithIO(in, &out)

	if _, err := p.Choose(context.Background(), "environment", []string{"dev", "staging"}); err == nil {
		t.Fatal("expected an error for an unrecognised choice")
	}
}

func TestChooseNoOptionsErrors(t *testing.T) {
	p := NewWithIO(strings.NewReader(""), &strings.Builder{})
	if _, err := p.Choose(context.Background(), "x", nil); err == nil {
		t.Fatal("expected an error with no options")
	}
}
