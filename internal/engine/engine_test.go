package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"slumber/internal/collection"
	"slumber/internal/httpexec"
	"slumber/internal/model"
	"slumber/internal/override"
	"slumber/internal/store"
	"slumber/internal/template"
)

func mustTemplate(t *testing.T, src string) *template.Template {
	t.Helper()
	tmpl, err := template.Parse(src)
	if err != nil {
		t.Fatalf("template.Parse(%q): %v", src, err)
	}
	return tmpl
}

func testCollection(t *testing.T, url string) (*collection.Collection, model.RecipeId) {
	t.Helper()
	recipeID := model.RecipeId("recipe-echo")
	recipe := &collection.Recipe{
		ID:      recipeID,
		Name:    "echo",
		Method:  "GET",
		URL:     mustTemplate(t, url),
		Headers: collection.NewOrderedTemplateMap(),
	}
	root := &collection.Folder{
		FolderName: "root",
		Children:   []collection.Node{&collection.RecipeNode{Recipe: recipe}},
	}
	tree, err := collection.NewRecipeTree(root)
	if err != nil {
		t.Fatalf("NewRecipeTree: %v", err)
	}
	coll := &collection.Collection{
		ID:   model.NewCollectionId(),
		Path: "/collections/test.yaml",
		Tree: tree,
	}
	return coll, recipeID
}

type noopPrompter struct{}

func (noopPrompter) Prompt(ctx context.Context, message string, def *string, sensitive bool) (string, error) {
	return "", nil
}
func (noopPrompter) Choose(ctx context.Context, message string, options []string) (string, error) {
	return "", nil
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(context.Background(), filepath.Join(dir, "e.db"), []byte("/collections/test.yaml"), nil)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSendPersistsExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	}))
	defer srv.Close()

	coll, recipeID := testCollection(t, srv.URL+"/ping")
	st := openTestStore(t)
	exec := httpexec.New(httpexec.Options{Product: "slumber", Version: "test", LargeBodySize: 1 << 20})
	eng := New(coll, override.New(), exec, st, noopPrompter{})

	ex, err := eng.Send(context.Background(), nil, recipeID)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if string(ex.Response.Body) != "pong" {
		t.Errorf("body = %q", ex.Response.Body)
	}

	got, found, err := eng.LatestExchange(nil, recipeID)
	if err != nil {
		t.Fatalf("LatestExchange: %v", err)
	}
	if !found {
		t.Fatal("expected a persisted exchange")
	}
	if got.RequestID != ex.RequestID {
		t.Errorf("latest exchange id = %v, want %v", got.RequestID, ex.RequestID)
	}
}

func TestSendUnknownRecipeFails(t *testing.T) {
	coll, _ := testCollection(t, "http://example.com")
	st := openTestStore(t)
	exec := httpexec.New(httpexec.Options{Product: "slumber", Version: "test", LargeBodySize: 1 << 20})
	eng := New(coll, override.New(), exec, st, noopPrompter{})

	if _, err := eng.Send(context.Background(), nil, "missing"); err == nil {
		t.Fatal("expected an error for an unknown recipe")
	}
}

func TestBuildDoesNotSend(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	coll, recipeID := testCollection(t, srv.URL+"/ping")
	exec := httpexec.New(httpexec.Options{Product: "slumber", Version: "test", LargeBodySize: 1 << 20})
	eng := New(coll, override.New(), exec, nil, noopPrompter{})

	req, err := eng.Build(context.Background(), nil, recipeID)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if req.Method != "GET" {
		t.Errorf("method = %q", req.Method)
	}
	if called {
		t.Error("Build sent an HTTP request")
	}
}

func TestDryRunDisablesSubrequests(t *testing.T) {
	coll, recipeID := testCollection(t, "http://example.test/ping")
	exec := httpexec.New(httpexec.Options{Product: "slumber", Version: "test", LargeBodySize: 1 << 20})
	eng := New(coll, override.New(), exec, nil, noopPrompter{})
	eng.DryRun = true

	parent := eng.NewRenderer(nil)
	if _, err := eng.SendSubrequest(context.Background(), parent, nil, recipeID); err == nil {
		t.Fatal("expected SendSubrequest to fail in dry-run")
	}
}

func TestSendSubrequestReusesParentContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("sub"))
	}))
	defer srv.Close()

	coll, recipeID := testCollection(t, srv.URL+"/ping")
	st := openTestStore(t)
	exec := httpexec.New(httpexec.Options{Product: "slumber", Version: "test", LargeBodySize: 1 << 20})
	eng := New(coll, override.New(), exec, st, noopPrompter{})

	parent := eng.NewRenderer(nil)
	ex, err := eng.SendSubrequest(context.Background(), parent, nil, recipeID)
	if err != nil {
		t.Fatalf("SendSubrequest: %v", err)
	}
	if string(ex.Response.Body) != "sub" {
		t.Errorf("body = %q", ex.Response.Body)
	}
}
