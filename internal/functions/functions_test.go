package functions

import (
	"context"
	"testing"
	"time"

	"slumber/internal/model"
	"slumber/internal/render"
	"slumber/internal/template"
	"slumber/internal/value"
)

type fakePrompter struct {
	promptCalls int
	chooseCalls int
}

func (p *fakePrompter) Prompt(_ context.Context, message string, def *string, sensitive bool) (string, error) {
	p.promptCalls++
	return "answer:" + message, nil
}

func (p *fakePrompter) Choose(_ context.Context, message string, options []string) (string, error) {
	p.chooseCalls++
	return options[0], nil
}

type fakeExchanges struct {
	latest   *model.Exchange
	sendHits int
}

func (e *fakeExchanges) LatestExchange(_ *model.ProfileId, _ model.RecipeId) (*model.Exchange, bool, error) {
	if e.latest == nil {
		return nil, false, nil
	}
	return e.latest, true, nil
}

func (e *fakeExchanges) SendSubrequest(_ context.Context, _ *render.Renderer, _ *model.ProfileId, recipe model.RecipeId) (*model.Exchange, error) {
	e.sendHits++
	return &model.Exchange{RecipeID: recipe, EndTime: time.Now(), Response: model.Response{Body: []byte("fresh")}}, nil
}

type renderCtx struct {
	fields map[string]*template.Template
	fns    render.FunctionTable
}

func (c *renderCtx) ProfileField(name string) (*template.Template, bool) {
	t, ok := c.fields[name]
	return t, ok
}
func (c *renderCtx) Functions() render.FunctionTable { return c.fns }
func (c *renderCtx) ProfileID() *model.ProfileId      { return nil }

func TestEnvFunction(t *testing.T) {
	t.Setenv("SLUMBER_TEST_VAR", "hello")
	reg := New(nil, nil)
	rc := render.New(&renderCtx{fns: reg})
	tmpl, _ := template.Parse(`{{ env(variable="SLUMBER_TEST_VAR") }}`)
	got, err := rc.RenderString(context.Background(), tmpl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello" {
		t.Errorf("got %q", got)
	}
}

func TestPromptFunction(t *testing.T) {
	p := &fakePrompter{}
	reg := New(p, nil)
	rc := render.New(&renderCtx{fns: reg})
	tmpl, _ := template.Parse(`{{ prompt(message="Token") }}`)
	got, err := rc.RenderString(context.Background(), tmpl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "answer:Token" {
		t.Errorf("got %q", got)
	}
	if p.promptCalls != 1 {
		t.Errorf("expected 1 prompt call, got %d", p.promptCalls)
	}
}

func TestResponseTriggerNoHistoryUsesStored(t *testing.T) {
	ex := &model.Exchange{Response: model.Response{Body: []byte("stored")}, EndTime: time.Now()}
	fe := &fakeExchanges{latest: ex}
	reg := New(nil, fe)
	rc := render.New(&renderCtx{fns: reg})
	tmpl, _ := template.Parse(`{{ response(recipe="login") }}`)
	got, err := rc.RenderString(context.Background(), tmpl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "stored" {
		t.Errorf("got %q", got)
	}
	if fe.sendHits != 0 {
		t.Errorf("expected no sub-request, got %d", fe.sendHits)
	}
}

func TestResponseTriggerAlwaysSendsSubrequest(t *testing.T) {
	ex := &model.Exchange{Response: model.Response{Body: []byte("stored")}, EndTime: time.Now()}
	fe := &fakeExchanges{latest: ex}
	reg := New(nil, fe)
	rc := render.New(&renderCtx{fns: reg})
	tmpl, _ := template.Parse(`{{ response(recipe="login", trigger="always") }}`)
	got, err := rc.RenderString(context.Background(), tmpl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "fresh" {
		t.Errorf("got %q", got)
	}
	if fe.sendHits != 1 {
		t.Errorf("expected 1 sub-request, got %d", fe.sendHits)
	}
}

func TestResponseTriggerDurationReusesFreshExchange(t *testing.T) {
	ex := &model.Exchange{Response: model.Response{Body: []byte("stored")}, EndTime: time.Now()}
	fe := &fakeExchanges{latest: ex}
	reg := New(nil, fe)
	rc := render.New(&renderCtx{fns: reg})
	tmpl, _ := template.Parse(`{{ response(recipe="login", trigger="1h") }}`)
	got, err := rc.RenderString(context.Background(), tmpl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "stored" {
		t.Errorf("got %q", got)
	}
	if fe.sendHits != 0 {
		t.Errorf("expected no sub-request for a fresh exchange, got %d", fe.sendHits)
	}
}

func TestResponseTriggerDurationExpiredSendsSubrequest(t *testing.T) {
	ex := &model.Exchange{Response: model.Response{Body: []byte("stored")}, EndTime: time.Now().Add(-2 * time.Hour)}
	fe := &fakeExchanges{latest: ex}
	reg := New(nil, fe)
	rc := render.New(&renderCtx{fns: reg})
	tmpl, _ := template.Parse(`{{ response(recipe="login", trigger="1h") }}`)
	got, err := rc.RenderString(context.Background(), tmpl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "fresh" {
		t.Errorf("got %q", got)
	}
	if fe.sendHits != 1 {
		t.Errorf("expected 1 sub-request for an expired exchange, got %d", fe.sendHits)
	}
}

func TestJSONPathSingleMatch(t *testing.T) {
	reg := New(nil, nil)
	rc := render.New(&renderCtx{fns: reg})
	tmpl, _ := template.Parse(`{{ json_path(query="$.token", data="{\"token\": \"abc\"}") }}`)
	got, err := rc.RenderString(context.Background(), tmpl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "abc" {
		t.Errorf("got %q", got)
	}
}

func TestJSONPathRequiresExactlyOneMatch(t *testing.T) {
	reg := New(nil, nil)
	rc := render.New(&renderCtx{fns: reg})
	tmpl, _ := template.Parse(`{{ json_path(query="$.items[*]", data="{\"items\": [1,2,3]}") }}`)
	_, err := rc.RenderValue(context.Background(), tmpl)
	if err == nil {
		t.Fatal("expected error for multiple matches")
	}
}

func TestCommandTrim(t *testing.T) {
	reg := New(nil, nil)
	rc := render.New(&renderCtx{fns: reg})
	tmpl, _ := template.Parse(`{{ command(command="printf", args=["  hi  "], trim="both") }}`)
	v, err := rc.RenderValue(context.Background(), tmpl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := value.ToBytes(v)
	if string(b) != "hi" {
		t.Errorf("got %q", b)
	}
}
