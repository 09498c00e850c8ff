package override

import (
	"testing"

	"slumber/internal/model"
)

func TestParseArg(t *testing.T) {
	cases := []struct {
		arg     string
		wantKey model.OverrideKey
		wantVal string
	}{
		{"url=http://example.com", model.OverrideKey{Kind: model.OverrideURL}, "http://example.com"},
		{"body={}", model.OverrideKey{Kind: model.OverrideBody}, "{}"},
		{"query[1]=5", model.OverrideKey{Kind: model.OverrideQuery, Index: 1}, "5"},
		{"headers[0]=fixed", model.OverrideKey{Kind: model.OverrideHeader, Index: 0}, "fixed"},
		{"form[2]=x", model.OverrideKey{Kind: model.OverrideForm, Index: 2}, "x"},
		{"profile.name=bob", model.OverrideKey{Kind: model.OverrideProfile, Field: "name"}, "bob"},
		{"auth.token=abc", model.OverrideKey{Kind: model.OverrideAuthToken}, "abc"},
	}
	for _, c := range cases {
		t.Run(c.arg, func(t *testing.T) {
			key, val, err := ParseArg(c.arg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if key != c.wantKey {
				t.Errorf("key = %+v, want %+v", key, c.wantKey)
			}
			if val != c.wantVal {
				t.Errorf("val = %q, want %q", val, c.wantVal)
			}
		})
	}
}

func TestParseArgRejectsMissingEquals(t *testing.T) {
	_, _, err := ParseArg("url")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestStoreGetSetClear(t *testing.T) {
	s := New()
	recipe := model.RecipeId("r1")
	key := model.OverrideKey{Kind: model.OverrideHeader, Index: 0}

	if _, ok := s.Get(recipe, key); ok {
		t.Fatal("expected no override before Set")
	}

	s.Set(recipe, key, Value{Template: nil})
	if _, ok := s.Get(recipe, key); !ok {
		t.Fatal("expected override after Set")
	}

	s.Clear(recipe)
	if _, ok := s.Get(recipe, key); ok {
		t.Fatal("expected override cleared")
	}
}

func TestStoreScopedPerRecipe(t *testing.T) {
	s := New()
	key := model.OverrideKey{Kind: model.OverrideURL}
	s.Set("r1", key, Value{Template: nil})
	if _, ok := s.Get("r2", key); ok {
		t.Fatal("expected override not to leak across recipes")
	}
}
