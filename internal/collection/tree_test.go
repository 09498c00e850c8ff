package collection

import (
	"testing"

	"slumber/internal/model"
	"slumber/internal/template"
)

func mustTemplate(t *testing.T, s string) *template.Template {
	t.Helper()
	tmpl, err := template.Parse(s)
	if err != nil {
		t.Fatalf("parse template %q: %v", s, err)
	}
	return tmpl
}

func TestRecipeTreeUniqueness(t *testing.T) {
	urlT := mustTemplate(t, "https://example.test")

	root := &Folder{
		FolderName: "",
		Children: []Node{
			&RecipeNode{Recipe: &Recipe{ID: "a", Name: "a", Method: "GET", URL: urlT}},
			&Folder{
				FolderName: "sub",
				Children: []Node{
					&RecipeNode{Recipe: &Recipe{ID: "b", Name: "b", Method: "GET", URL: urlT}},
				},
			},
		},
	}
	tree, err := NewRecipeTree(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	key, ok := tree.Lookup("b")
	if !ok {
		t.Fatal("expected to find recipe b")
	}
	if len(key) != 2 || key[0] != "sub" || key[1] != "b" {
		t.Errorf("unexpected lookup key: %v", key)
	}
}

func TestRecipeTreeDuplicateIDFails(t *testing.T) {
	urlT := mustTemplate(t, "https://example.test")
	root := &Folder{
		Children: []Node{
			&RecipeNode{Recipe: &Recipe{ID: "dup", Name: "x", Method: "GET", URL: urlT}},
			&Folder{
				FolderName: "sub",
				Children: []Node{
					&RecipeNode{Recipe: &Recipe{ID: "dup", Name: "y", Method: "GET", URL: urlT}},
				},
			},
		},
	}
	_, err := NewRecipeTree(root)
	if err == nil {
		t.Fatal("expected DuplicateRecipeId error")
	}
}

func TestRecipeTreeDepthFirstIteration(t *testing.T) {
	urlT := mustTemplate(t, "https://example.test")
	root := &Folder{
		Children: []Node{
			&RecipeNode{Recipe: &Recipe{ID: "first", Name: "first", Method: "GET", URL: urlT}},
			&Folder{
				FolderName: "sub",
				Children: []Node{
					&RecipeNode{Recipe: &Recipe{ID: "second", Name: "second", Method: "GET", URL: urlT}},
				},
			},
		},
	}
	tree, err := NewRecipeTree(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var order []string
	tree.Walk(func(key LookupKey, n Node) bool {
		if r, ok := n.(*RecipeNode); ok {
			order = append(order, string(r.ID))
		}
		return true
	})
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("unexpected dfs order: %v", order)
	}
}

func TestOrderedTemplateMapPreservesOrder(t *testing.T) {
	m := NewOrderedTemplateMap()
	m.Set("z", mustTemplate(t, "1"))
	m.Set("a", mustTemplate(t, "2"))
	if got := m.Keys(); len(got) != 2 || got[0] != "z" || got[1] != "a" {
		t.Errorf("unexpected key order: %v", got)
	}
}

func TestCollectionGetProfile(t *testing.T) {
	profiles := NewOrderedProfileMap()
	profiles.Set("dev", &Profile{ID: "dev", Name: "Development", Fields: map[string]*template.Template{}})
	c := &Collection{Profiles: profiles}
	p, ok := c.GetProfile("dev")
	if !ok || p.Name != "Development" {
		t.Errorf("unexpected profile lookup: %+v, %v", p, ok)
	}
}

func TestCollectionGetProfileNilProfilesIsSafe(t *testing.T) {
	c := &Collection{}
	if _, ok := c.GetProfile("dev"); ok {
		t.Error("expected no profile on a Collection with unset Profiles")
	}
}

func TestOrderedProfileMapPreservesOrder(t *testing.T) {
	m := NewOrderedProfileMap()
	m.Set("z", &Profile{ID: "z"})
	m.Set("a", &Profile{ID: "a"})
	if got := m.Keys(); len(got) != 2 || got[0] != "z" || got[1] != "a" {
		t.Errorf("unexpected key order: %v", got)
	}
}
