package functions

import (
	"fmt"

	"github.com/spyzhov/ajson"

	"slumber/internal/slumbererr"
	"slumber/internal/value"
)

// callJSONPath implements spec.md §4.4's json_path function: parse data as
// JSON, evaluate an RFC-9535 JSONPath query via ajson, require exactly one
// match, stringify scalars (null -> ""), and JSON-serialize non-scalar
// matches.
func (r *Registry) callJSONPath(args *argSet) (value.Value, error) {
	query, err := args.requireString("query", 0)
	if err != nil {
		return value.Value{}, err
	}
	data, err := args.requireString("data", 1)
	if err != nil {
		return value.Value{}, err
	}

	root, err := ajson.Unmarshal([]byte(data))
	if err != nil {
		return value.Value{}, fmt.Errorf("%w: %v", slumbererr.ErrJSONPathParse, err)
	}
	nodes, err := root.JSONPath(query)
	if err != nil {
		return value.Value{}, fmt.Errorf("%w: %v", slumbererr.ErrJSONPathParse, err)
	}
	if len(nodes) != 1 {
		return value.Value{}, fmt.Errorf("%w: query %q matched %d nodes, want exactly 1", slumbererr.ErrJSONPathParse, query, len(nodes))
	}

	return ajsonNodeToValue(nodes[0])
}

func ajsonNodeToValue(n *ajson.Node) (value.Value, error) {
	switch {
	case n.IsNull():
		return value.String(""), nil
	case n.IsString():
		s, err := n.GetString()
		if err != nil {
			return value.Value{}, err
		}
		return value.String(s), nil
	case n.IsNumeric():
		f, err := n.GetNumeric()
		if err != nil {
			return value.Value{}, err
		}
		return value.String(formatNumeric(f)), nil
	case n.IsBool():
		b, err := n.GetBool()
		if err != nil {
			return value.Value{}, err
		}
		if b {
			return value.String("true"), nil
		}
		return value.String("false"), nil
	default:
		// Arrays/objects: non-scalar match, JSON-serialize.
		raw, err := ajson.Marshal(n)
		if err != nil {
			return value.Value{}, err
		}
		return value.String(string(raw)), nil
	}
}

func formatNumeric(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
