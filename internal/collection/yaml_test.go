package collection

import (
	"testing"

	"slumber/internal/model"
)

const sampleCollection = `
default_profile: dev
name: Example API
profiles:
  dev:
    name: Development
    values:
      host: "https://dev.example.test"
requests:
  - name: auth
    folder: true
    children:
      - name: login
        request:
          id: login
          method: POST
          url: "{{host}}/login"
          body:
            json: '{"user": "{{user}}"}'
  - name: me
    request:
      method: GET
      url: "{{host}}/v1/me"
      headers:
        Authorization: "Bearer {{ json_path(query='$.token', data=response(recipe='login')) }}"
      query:
        - ["page", "1"]
        - ["page", "2"]
`

func TestLoadCollection(t *testing.T) {
	c, err := Load("test.yml", []byte(sampleCollection))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Name != "Example API" {
		t.Errorf("expected collection name 'Example API', got %q", c.Name)
	}
	if *c.DefaultProfile != model.ProfileId("dev") {
		t.Errorf("expected default profile dev, got %v", c.DefaultProfile)
	}
	dev, ok := c.GetProfile("dev")
	if !ok {
		t.Fatal("expected dev profile")
	}
	if _, ok := dev.Fields["host"]; !ok {
		t.Error("expected dev profile to have host field")
	}

	me, ok := c.Tree.FindRecipe("me")
	if !ok {
		t.Fatal("expected to find recipe 'me'")
	}
	if len(me.Query) != 2 || me.Query[0].Name != "page" || me.Query[1].Name != "page" {
		t.Errorf("unexpected query entries: %+v", me.Query)
	}

	login, ok := c.Tree.FindRecipe("login")
	if !ok {
		t.Fatal("expected to find recipe 'login' nested under folder auth")
	}
	key, _ := c.Tree.Lookup(login.ID)
	if len(key) != 2 || key[0] != "auth" || key[1] != "login" {
		t.Errorf("unexpected lookup key for login: %v", key)
	}
}

const multiProfileCollection = `
profiles:
  zeta:
    values:
      host: "https://zeta.example.test"
  alpha:
    values:
      host: "https://alpha.example.test"
  mid:
    values:
      host: "https://mid.example.test"
requests:
  - name: ping
    request:
      method: GET
      url: "{{host}}/ping"
`

func TestLoadCollectionPreservesProfileOrder(t *testing.T) {
	c, err := Load("test.yml", []byte(multiProfileCollection))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := c.Profiles.Keys()
	want := []model.ProfileId{"zeta", "alpha", "mid"}
	if len(got) != len(want) {
		t.Fatalf("expected %d profiles, got %v", len(want), got)
	}
	for i, id := range want {
		if got[i] != id {
			t.Errorf("expected profile order %v, got %v", want, got)
			break
		}
	}
}

const refCollection = `
requests:
  - name: shared
    request: &sharedReq
      method: GET
      url: "https://example.test/shared"
  - name: aliased
    request: *sharedReq
`

func TestLoadCollectionWithYAMLAlias(t *testing.T) {
	c, err := Load("test.yml", []byte(refCollection))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	aliased, ok := c.Tree.FindRecipe("aliased")
	if !ok {
		t.Fatal("expected to find recipe 'aliased'")
	}
	if aliased.Method != "GET" {
		t.Errorf("expected aliased method GET, got %q", aliased.Method)
	}
}

const cyclicRefCollection = `
requests:
  - name: a
    request: !ref "#/requests/1/request"
  - name: b
    request: !ref "#/requests/0/request"
`

func TestLoadCollectionDetectsRefCycle(t *testing.T) {
	_, err := Load("test.yml", []byte(cyclicRefCollection))
	if err == nil {
		t.Fatal("expected cycle reference error")
	}
}
