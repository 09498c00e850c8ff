package override

import (
	"fmt"
	"strconv"
	"strings"

	"slumber/internal/model"
)

// ParseArg parses one `--override key=value` CLI argument (spec.md §4.8,
// §6) into an OverrideKey and its raw template source. Recognized key
// forms: "url", "body", "profile.<field>", "query[<n>]", "headers[<n>]",
// "form[<n>]", "auth.user", "auth.pass", "auth.token".
func ParseArg(arg string) (model.OverrideKey, string, error) {
	name, value, ok := strings.Cut(arg, "=")
	if !ok {
		return model.OverrideKey{}, "", fmt.Errorf("override %q: expected key=value", arg)
	}
	key, err := ParseKey(name)
	if err != nil {
		return model.OverrideKey{}, "", err
	}
	return key, value, nil
}

// ParseKey parses the key half of an override argument (without the
// `=value` suffix).
func ParseKey(name string) (model.OverrideKey, error) {
	switch name {
	case "url":
		return model.OverrideKey{Kind: model.OverrideURL}, nil
	case "body":
		return model.OverrideKey{Kind: model.OverrideBody}, nil
	case "auth.user":
		return model.OverrideKey{Kind: model.OverrideAuthUser}, nil
	case "auth.pass":
		return model.OverrideKey{Kind: model.OverrideAuthPass}, nil
	case "auth.token":
		return model.OverrideKey{Kind: model.OverrideAuthToken}, nil
	}
	if field, ok := strings.CutPrefix(name, "profile."); ok {
		return model.OverrideKey{Kind: model.OverrideProfile, Field: field}, nil
	}
	if idx, ok := indexed(name, "query"); ok {
		return model.OverrideKey{Kind: model.OverrideQuery, Index: idx}, nil
	}
	if idx, ok := indexed(name, "headers"); ok {
		return model.OverrideKey{Kind: model.OverrideHeader, Index: idx}, nil
	}
	if idx, ok := indexed(name, "form"); ok {
		return model.OverrideKey{Kind: model.OverrideForm, Index: idx}, nil
	}
	return model.OverrideKey{}, fmt.Errorf("unrecognized override key %q", name)
}

// indexed parses "<prefix>[<n>]" and returns n.
func indexed(name, prefix string) (int, bool) {
	rest, ok := strings.CutPrefix(name, prefix+"[")
	if !ok {
		return 0, false
	}
	rest, ok = strings.CutSuffix(rest, "]")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}
