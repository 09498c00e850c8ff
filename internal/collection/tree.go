// Package collection implements the in-memory Collection/Profile/RecipeTree
// model described in spec.md §3: an immutable, once-per-session loaded set
// of profiles and a folder/recipe tree with globally-unique recipe IDs.
//
// The tree's sealed Node interface is a direct generalization of the
// teacher's own Container/Runnable split (cmd/devshell/dsl/model.go): a
// Folder is a Container-like node that groups children, a Recipe is a
// Runnable-like leaf that does something concrete.
package collection

import (
	"fmt"

	"slumber/internal/model"
	"slumber/internal/slumbererr"
	"slumber/internal/template"
)

// Node is the sealed interface for RecipeTree nodes. Only Folder and Recipe
// implement it; the unexported isNode method blocks external implementations,
// mirroring the teacher's dsl.Node pattern.
type Node interface {
	isNode()
	Name() string
}

// Folder groups child nodes under a display name. It carries no ID of its
// own; uniqueness is enforced only on Recipe IDs (spec.md §3).
type Folder struct {
	FolderName string
	Children   []Node
}

func (f *Folder) isNode()      {}
func (f *Folder) Name() string { return f.FolderName }

// Find returns the direct child with the given name, or false if absent.
func (f *Folder) Find(name string) (Node, bool) {
	for _, c := range f.Children {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// AuthKind identifies which Authentication variant is populated.
type AuthKind int

const (
	AuthBasic AuthKind = iota
	AuthBearer
)

// Authentication is a tagged union (spec.md §3): Basic carries a required
// username and optional password; Bearer carries a single token template.
type Authentication struct {
	Kind     AuthKind
	Username *template.Template // Basic
	Password *template.Template // Basic, optional
	Token    *template.Template // Bearer
}

// BodyKind identifies which RecipeBody variant is populated.
type BodyKind int

const (
	BodyRaw BodyKind = iota
	BodyJSON
	BodyFormUrlencoded
	BodyFormMultipart
)

// RecipeBody is a tagged union (spec.md §3).
type RecipeBody struct {
	Kind           BodyKind
	Raw            *template.Template  // BodyRaw
	JSON           *template.Template  // BodyJSON
	FormUrlencoded *OrderedTemplateMap // BodyFormUrlencoded
	FormMultipart  *OrderedTemplateMap // BodyFormMultipart
}

// QueryEntry is one (name, template) pair of a recipe's query list. Query
// parameters are a list, not a map (spec.md §3): a name may repeat.
type QueryEntry struct {
	Name  string
	Value *template.Template
}

// Recipe is one named request template inside a collection (spec.md §3,
// GLOSSARY).
type Recipe struct {
	ID      model.RecipeId
	Name    string
	Method  string
	URL     *template.Template
	Headers *OrderedTemplateMap
	Query   []QueryEntry
	Body    *RecipeBody     // optional
	Auth    *Authentication // optional
}

// RecipeNode is the RecipeTree leaf node wrapping a Recipe. Recipe itself
// cannot implement Node directly: it already has an exported Name field,
// which Go does not allow alongside a same-named Name() method.
type RecipeNode struct {
	*Recipe
}

func (r *RecipeNode) isNode()      {}
func (r *RecipeNode) Name() string { return r.Recipe.Name }

// OrderedTemplateMap is an insertion-ordered string-keyed map of templates,
// used for headers and form-encoded body fields where order must survive a
// render (spec.md §3).
type OrderedTemplateMap struct {
	keys   []string
	values map[string]*template.Template
}

// NewOrderedTemplateMap returns an empty ordered template map.
func NewOrderedTemplateMap() *OrderedTemplateMap {
	return &OrderedTemplateMap{values: make(map[string]*template.Template)}
}

// Set inserts or replaces key, preserving first-insertion order.
func (m *OrderedTemplateMap) Set(key string, v *template.Template) {
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Get returns the template for key and whether it was present.
func (m *OrderedTemplateMap) Get(key string) (*template.Template, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the ordered key list. Callers must not mutate the result.
func (m *OrderedTemplateMap) Keys() []string { return m.keys }

// Len returns the number of entries.
func (m *OrderedTemplateMap) Len() int { return len(m.keys) }

// Profile is a named bundle of field templates used to parameterise renders
// (spec.md §3, GLOSSARY).
type Profile struct {
	ID     model.ProfileId
	Name   string
	Fields map[string]*template.Template
}

// LookupKey is the ordered sequence of path segments (folder names, then the
// leaf recipe's ID) from the tree root to a node (spec.md §3). The root
// folder itself contributes no segment.
type LookupKey []string

// RecipeTree is the nested folder/recipe tree described in spec.md §3: a
// read-only structure for the collection's lifetime, with a flat RecipeId
// lookup index built at construction time.
type RecipeTree struct {
	Root  *Folder
	index map[model.RecipeId]LookupKey
}

// NewRecipeTree builds a RecipeTree from root, failing with
// slumbererr.ErrDuplicateRecipeID if any RecipeId appears more than once
// anywhere in the tree.
func NewRecipeTree(root *Folder) (*RecipeTree, error) {
	t := &RecipeTree{Root: root, index: make(map[model.RecipeId]LookupKey)}
	for _, c := range root.Children {
		if err := t.index_(c, nil); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *RecipeTree) index_(n Node, path LookupKey) error {
	switch x := n.(type) {
	case *Folder:
		childPath := append(append(LookupKey{}, path...), x.FolderName)
		for _, c := range x.Children {
			if err := t.index_(c, childPath); err != nil {
				return err
			}
		}
	case *RecipeNode:
		if _, exists := t.index[x.ID]; exists {
			return fmt.Errorf("%w: %s", slumbererr.ErrDuplicateRecipeID, x.ID)
		}
		leafPath := append(append(LookupKey{}, path...), string(x.ID))
		t.index[x.ID] = leafPath
	}
	return nil
}

// Lookup returns the path from root to the recipe with the given ID.
func (t *RecipeTree) Lookup(id model.RecipeId) (LookupKey, bool) {
	k, ok := t.index[id]
	return k, ok
}

// FindRecipe returns the *Recipe with the given ID, or false if absent.
func (t *RecipeTree) FindRecipe(id model.RecipeId) (*Recipe, bool) {
	var found *Recipe
	t.Walk(func(_ LookupKey, n Node) bool {
		if r, ok := n.(*RecipeNode); ok && r.ID == id {
			found = r.Recipe
			return false
		}
		return true
	})
	return found, found != nil
}

// Walk performs a depth-first traversal, calling visit(key, node) for every
// node below the root, including folders. Traversal stops early if visit
// returns false.
func (t *RecipeTree) Walk(visit func(key LookupKey, node Node) bool) {
	for _, c := range t.Root.Children {
		if !t.walk(c, nil, visit) {
			return
		}
	}
}

func (t *RecipeTree) walk(n Node, path LookupKey, visit func(LookupKey, Node) bool) bool {
	switch x := n.(type) {
	case *Folder:
		childPath := append(append(LookupKey{}, path...), x.FolderName)
		if !visit(childPath, n) {
			return false
		}
		for _, c := range x.Children {
			if !t.walk(c, childPath, visit) {
				return false
			}
		}
	case *RecipeNode:
		leafPath := append(append(LookupKey{}, path...), string(x.ID))
		if !visit(leafPath, n) {
			return false
		}
	}
	return true
}

// Collection is an immutable in-memory record loaded once per session
// (spec.md §3).
type Collection struct {
	ID             model.CollectionId
	Path           string // canonicalised absolute source path
	Name           string // optional human display name (SPEC_FULL.md supplement)
	Profiles       *OrderedProfileMap
	DefaultProfile *model.ProfileId
	Tree           *RecipeTree
}

// GetProfile returns the profile with the given ID, or false if absent.
func (c *Collection) GetProfile(id model.ProfileId) (*Profile, bool) {
	if c.Profiles == nil {
		return nil, false
	}
	return c.Profiles.Get(id)
}

// OrderedProfileMap is an insertion-ordered ProfileId-keyed map of Profiles
// (spec.md §3: "an ordered map of ProfileId → Profile"), the same
// keys-plus-backing-map shape as OrderedTemplateMap.
type OrderedProfileMap struct {
	keys   []model.ProfileId
	values map[model.ProfileId]*Profile
}

// NewOrderedProfileMap returns an empty ordered profile map.
func NewOrderedProfileMap() *OrderedProfileMap {
	return &OrderedProfileMap{values: make(map[model.ProfileId]*Profile)}
}

// Set inserts or replaces key, preserving first-insertion order.
func (m *OrderedProfileMap) Set(id model.ProfileId, p *Profile) {
	if _, exists := m.values[id]; !exists {
		m.keys = append(m.keys, id)
	}
	m.values[id] = p
}

// Get returns the profile for id and whether it was present.
func (m *OrderedProfileMap) Get(id model.ProfileId) (*Profile, bool) {
	p, ok := m.values[id]
	return p, ok
}

// Keys returns the ordered id list. Callers must not mutate the result.
func (m *OrderedProfileMap) Keys() []model.ProfileId { return m.keys }

// Len returns the number of entries.
func (m *OrderedProfileMap) Len() int { return len(m.keys) }
