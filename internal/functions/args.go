package functions

import (
	"fmt"

	"slumber/internal/slumbererr"
	"slumber/internal/value"
)

// argSet resolves a function call's arguments by declared shape: a named
// parameter may arrive either positionally (by its declared index) or as a
// keyword, mirroring spec.md §4.1's `name(pos, pos, kw=expr)` call grammar.
// This plays the same role the teacher's ParamDefs/applyParamDefs pair plays
// for type-parameter resolution (dsl/typedef.go), just resolving function
// arguments instead of `with:` block parameters.
type argSet struct {
	positional []value.Value
	keyword    map[string]value.Value
}

func newArgs(positional []value.Value, keyword map[string]value.Value) *argSet {
	return &argSet{positional: positional, keyword: keyword}
}

// optional returns the value bound to name, checking the keyword map first
// and then the declared positional index. ok is false if neither supplied it.
func (a *argSet) optional(name string, index int) (value.Value, bool) {
	if v, ok := a.keyword[name]; ok {
		return v, true
	}
	if index < len(a.positional) {
		return a.positional[index], true
	}
	return value.Value{}, false
}

func (a *argSet) requireString(name string, index int) (string, error) {
	v, ok := a.optional(name, index)
	if !ok {
		return "", fmt.Errorf("%w: missing required argument %q", slumbererr.ErrFunctionArgument, name)
	}
	return value.ToString(v)
}

func (a *argSet) optionalString(name string, index int) (string, bool) {
	v, ok := a.optional(name, index)
	if !ok {
		return "", false
	}
	s, err := value.ToString(v)
	if err != nil {
		return "", false
	}
	return s, true
}
