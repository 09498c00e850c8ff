package collection

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"slumber/internal/model"
	"slumber/internal/slumbererr"
	"slumber/internal/template"
)

// Collection file shape (spec.md §6): top-level keys `profiles`, `requests`
// (the recipe tree), optional `default_profile`. A tree node is a folder
// (`folder: true` + `children:`) or a recipe (`request:` + fields). This
// mirrors the teacher's polymorphic yaml.Node decoding technique
// (dslyaml.go's yamlRawNode, which holds `command`/`uses`/`with` as raw
// yaml.Node so it can tell a string form from a sequence form apart before
// committing to a concrete Go type) — here the ambiguity is "what kind of
// tree node is this" and "which RecipeBody/Authentication variant is this".

type yamlDocument struct {
	DefaultProfile string                 `yaml:"default_profile,omitempty"`
	Name           string                 `yaml:"name,omitempty"`
	Profiles       map[string]yamlProfile `yaml:"profiles,omitempty"`
	Requests       []yamlTreeNode         `yaml:"requests,omitempty"`
}

type yamlProfile struct {
	Name   string            `yaml:"name,omitempty"`
	Values map[string]string `yaml:"values,omitempty"`
}

type yamlTreeNode struct {
	Name     string         `yaml:"name"`
	Folder   bool           `yaml:"folder,omitempty"`
	Children []yamlTreeNode `yaml:"children,omitempty"`
	Request  *yamlRequest   `yaml:"request,omitempty"`
}

type yamlRequest struct {
	ID      string    `yaml:"id,omitempty"`
	Method  string    `yaml:"method"`
	URL     string    `yaml:"url"`
	Headers yaml.Node `yaml:"headers,omitempty"`
	Query   yaml.Node `yaml:"query,omitempty"`
	Body    yaml.Node `yaml:"body,omitempty"`
	Auth    yaml.Node `yaml:"auth,omitempty"`
}

// Load parses a collection YAML document at path and builds a Collection.
// !ref tags are resolved (with cycle detection) before structural decode, so
// that by the time yamlDocument.Decode runs, every !ref node has become a
// plain copy of its target.
func Load(path string, data []byte) (*Collection, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", slumbererr.ErrTemplateParse, path, err)
	}
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("%w: %s: empty document", slumbererr.ErrTemplateParse, path)
	}
	docNode := root.Content[0]

	if err := resolveRefs(docNode, docNode, nil); err != nil {
		return nil, err
	}

	var doc yamlDocument
	if err := docNode.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", slumbererr.ErrTemplateParse, path, err)
	}

	profileOrder, err := mappingKeyOrder(docNode, "profiles")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", slumbererr.ErrTemplateParse, path, err)
	}

	profiles := NewOrderedProfileMap()
	for _, key := range profileOrder {
		yp := doc.Profiles[key]
		fields := make(map[string]*template.Template, len(yp.Values))
		for fname, raw := range yp.Values {
			t, err := template.Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("profile %s field %s: %w", key, fname, err)
			}
			fields[fname] = t
		}
		name := yp.Name
		if name == "" {
			name = key
		}
		profiles.Set(model.ProfileId(key), &Profile{ID: model.ProfileId(key), Name: name, Fields: fields})
	}

	var defaultProfile *model.ProfileId
	if doc.DefaultProfile != "" {
		p := model.ProfileId(doc.DefaultProfile)
		defaultProfile = &p
	}

	rootFolder := &Folder{FolderName: ""}
	for _, n := range doc.Requests {
		node, err := convertTreeNode(n)
		if err != nil {
			return nil, err
		}
		rootFolder.Children = append(rootFolder.Children, node)
	}

	tree, err := NewRecipeTree(rootFolder)
	if err != nil {
		return nil, err
	}

	return &Collection{
		ID:             model.NewCollectionId(),
		Path:           path,
		Name:           doc.Name,
		Profiles:       profiles,
		DefaultProfile: defaultProfile,
		Tree:           tree,
	}, nil
}

func convertTreeNode(n yamlTreeNode) (Node, error) {
	if n.Folder || n.Request == nil {
		f := &Folder{FolderName: n.Name}
		for _, c := range n.Children {
			child, err := convertTreeNode(c)
			if err != nil {
				return nil, err
			}
			f.Children = append(f.Children, child)
		}
		return f, nil
	}

	r, err := convertRequest(n.Name, n.Request)
	if err != nil {
		return nil, fmt.Errorf("recipe %s: %w", n.Name, err)
	}
	return &RecipeNode{Recipe: r}, nil
}

func convertRequest(name string, yr *yamlRequest) (*Recipe, error) {
	id := yr.ID
	if id == "" {
		id = name
	}
	url, err := template.Parse(yr.URL)
	if err != nil {
		return nil, fmt.Errorf("url: %w", err)
	}
	headers, err := convertOrderedTemplates(yr.Headers)
	if err != nil {
		return nil, fmt.Errorf("headers: %w", err)
	}
	query, err := convertQuery(yr.Query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	body, err := convertBody(yr.Body)
	if err != nil {
		return nil, fmt.Errorf("body: %w", err)
	}
	auth, err := convertAuth(yr.Auth)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}

	return &Recipe{
		ID:      model.RecipeId(id),
		Name:    name,
		Method:  yr.Method,
		URL:     url,
		Headers: headers,
		Query:   query,
		Body:    body,
		Auth:    auth,
	}, nil
}

func convertOrderedTemplates(n yaml.Node) (*OrderedTemplateMap, error) {
	if n.Kind == 0 {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected a mapping, got kind %d", n.Kind)
	}
	m := NewOrderedTemplateMap()
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		val := n.Content[i+1].Value
		t, err := template.Parse(val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		m.Set(key, t)
	}
	return m, nil
}

func convertQuery(n yaml.Node) ([]QueryEntry, error) {
	if n.Kind == 0 {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("expected a sequence of [name, value] pairs, got kind %d", n.Kind)
	}
	entries := make([]QueryEntry, 0, len(n.Content))
	for _, pair := range n.Content {
		if pair.Kind != yaml.SequenceNode || len(pair.Content) != 2 {
			return nil, fmt.Errorf("expected a [name, value] pair")
		}
		t, err := template.Parse(pair.Content[1].Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", pair.Content[0].Value, err)
		}
		entries = append(entries, QueryEntry{Name: pair.Content[0].Value, Value: t})
	}
	return entries, nil
}

func convertBody(n yaml.Node) (*RecipeBody, error) {
	if n.Kind == 0 {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode || len(n.Content) < 2 {
		return nil, fmt.Errorf("expected a mapping with one of raw/json/form_urlencoded/form_multipart")
	}
	key := n.Content[0].Value
	val := n.Content[1]
	switch key {
	case "raw":
		t, err := template.Parse(val.Value)
		if err != nil {
			return nil, err
		}
		return &RecipeBody{Kind: BodyRaw, Raw: t}, nil
	case "json":
		t, err := template.Parse(val.Value)
		if err != nil {
			return nil, err
		}
		return &RecipeBody{Kind: BodyJSON, JSON: t}, nil
	case "form_urlencoded":
		m, err := convertOrderedTemplates(*val)
		if err != nil {
			return nil, err
		}
		return &RecipeBody{Kind: BodyFormUrlencoded, FormUrlencoded: m}, nil
	case "form_multipart":
		m, err := convertOrderedTemplates(*val)
		if err != nil {
			return nil, err
		}
		return &RecipeBody{Kind: BodyFormMultipart, FormMultipart: m}, nil
	default:
		return nil, fmt.Errorf("unknown body variant %q", key)
	}
}

func convertAuth(n yaml.Node) (*Authentication, error) {
	if n.Kind == 0 {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode || len(n.Content) < 2 {
		return nil, fmt.Errorf("expected a mapping with one of basic/bearer")
	}
	key := n.Content[0].Value
	val := n.Content[1]
	switch key {
	case "basic":
		var b struct {
			Username string `yaml:"username"`
			Password string `yaml:"password,omitempty"`
		}
		if err := val.Decode(&b); err != nil {
			return nil, err
		}
		user, err := template.Parse(b.Username)
		if err != nil {
			return nil, fmt.Errorf("username: %w", err)
		}
		var pass *template.Template
		if b.Password != "" {
			pass, err = template.Parse(b.Password)
			if err != nil {
				return nil, fmt.Errorf("password: %w", err)
			}
		}
		return &Authentication{Kind: AuthBasic, Username: user, Password: pass}, nil
	case "bearer":
		t, err := template.Parse(val.Value)
		if err != nil {
			return nil, err
		}
		return &Authentication{Kind: AuthBearer, Token: t}, nil
	default:
		return nil, fmt.Errorf("unknown auth variant %q", key)
	}
}

// resolveRefs walks the whole document, replacing any node tagged "!ref"
// with a deep copy of the node its JSON-pointer-style path ("#/a/b/c")
// resolves to. Cycle detection uses the `visiting` stack of pointers
// currently being resolved, failing with slumbererr.ErrCycleReference
// (spec.md §9: "the !ref resolver must detect cycles during load").
func resolveRefs(n *yaml.Node, docRoot *yaml.Node, visiting []string) error {
	if n.Tag == "!ref" {
		pointer := n.Value
		for _, v := range visiting {
			if v == pointer {
				return fmt.Errorf("%w: %s", slumbererr.ErrCycleReference, strings.Join(append(visiting, pointer), " -> "))
			}
		}
		target, err := resolvePointer(docRoot, pointer)
		if err != nil {
			return fmt.Errorf("!ref %s: %w", pointer, err)
		}
		resolved := deepCopyNode(target)
		if err := resolveRefs(resolved, docRoot, append(visiting, pointer)); err != nil {
			return err
		}
		*n = *resolved
		return nil
	}
	for _, c := range n.Content {
		if err := resolveRefs(c, docRoot, visiting); err != nil {
			return err
		}
	}
	return nil
}

// resolvePointer resolves an absolute JSON-pointer-style path of the form
// "#/segment/segment" against root, walking mapping keys and sequence
// indices.
func resolvePointer(root *yaml.Node, pointer string) (*yaml.Node, error) {
	p := strings.TrimPrefix(pointer, "#")
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return root, nil
	}
	cur := root
	for _, seg := range strings.Split(p, "/") {
		switch cur.Kind {
		case yaml.MappingNode:
			found := false
			for i := 0; i+1 < len(cur.Content); i += 2 {
				if cur.Content[i].Value == seg {
					cur = cur.Content[i+1]
					found = true
					break
				}
			}
			if !found {
				return nil, fmt.Errorf("no such key %q", seg)
			}
		case yaml.SequenceNode:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(cur.Content) {
				return nil, fmt.Errorf("invalid sequence index %q", seg)
			}
			cur = cur.Content[idx]
		default:
			return nil, fmt.Errorf("cannot index into scalar node at %q", seg)
		}
	}
	return cur, nil
}

// mappingKeyOrder returns the keys of the top-level mapping field named
// field, in document order. yamlDocument.Decode loses this order (yaml.v3
// decodes a `map[string]V` field into a plain Go map), so profiles must be
// read back out of the raw node to preserve declaration order
// (spec.md §3: "an ordered map of ProfileId → Profile"), the same way !ref
// resolution above walks yaml.Node.Content directly instead of going through
// a decoded struct.
func mappingKeyOrder(docNode *yaml.Node, field string) ([]string, error) {
	if docNode.Kind != yaml.MappingNode {
		return nil, nil
	}
	for i := 0; i+1 < len(docNode.Content); i += 2 {
		if docNode.Content[i].Value != field {
			continue
		}
		section := docNode.Content[i+1]
		if section.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%s: expected a mapping", field)
		}
		keys := make([]string, 0, len(section.Content)/2)
		for j := 0; j+1 < len(section.Content); j += 2 {
			keys = append(keys, section.Content[j].Value)
		}
		return keys, nil
	}
	return nil, nil
}

func deepCopyNode(n *yaml.Node) *yaml.Node {
	cp := *n
	if n.Content != nil {
		cp.Content = make([]*yaml.Node, len(n.Content))
		for i, c := range n.Content {
			cp.Content[i] = deepCopyNode(c)
		}
	}
	return &cp
}
