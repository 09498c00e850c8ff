// Package value implements the runtime Value type shared by the template
// evaluator, the function library, and the request builder (spec.md §3,
// "Value"). A Value is a small tagged union in the same spirit as the
// teacher's RawNode/Node sealed-interface trees (cmd/devshell/dsl/model.go),
// except here the "node" is a piece of data rather than a piece of a process
// tree.
package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"unicode/utf8"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindArray
	KindObject
	KindStream
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindStream:
		return "stream"
	default:
		return "unknown"
	}
}

// Stream is a lazy byte source resolvable at most once. Collecting it yields
// a Bytes value. Source identifies where the stream originated (e.g. "file",
// "response") for diagnostics.
type Stream struct {
	Source string
	Open   func() (io.ReadCloser, error)
}

// Object is an insertion-ordered string-keyed map, since spec.md requires
// object field order to be preserved for canonical stringification and for
// deterministic iteration (mirrors the teacher's repeated use of ordered
// map.v3 decoding in dslyaml.go, which always preserves YAML mapping order).
type Object struct {
	keys   []string
	values map[string]Value
}

// NewObject returns an empty ordered object.
func NewObject() *Object {
	return &Object{values: make(map[string]Value)}
}

// Set inserts or replaces key. Last-write-wins, same position if key already existed.
func (o *Object) Set(key string, v Value) {
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

// Get returns the value for key and whether it was present.
func (o *Object) Get(key string) (Value, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Keys returns the ordered key list. Callers must not mutate the result.
func (o *Object) Keys() []string { return o.keys }

func (o *Object) Len() int { return len(o.keys) }

// Value is the runtime tagged value described in spec.md §3.
type Value struct {
	kind   Kind
	b      bool
	i      int64
	f      float64
	s      string
	bytes  []byte
	arr    []Value
	obj    *Object
	stream *Stream
}

func Null() Value                 { return Value{kind: KindNull} }
func Bool(b bool) Value           { return Value{kind: KindBool, b: b} }
func Int(i int64) Value           { return Value{kind: KindInt, i: i} }
func Float(f float64) Value       { return Value{kind: KindFloat, f: f} }
func String(s string) Value       { return Value{kind: KindString, s: s} }
func Bytes(b []byte) Value        { return Value{kind: KindBytes, bytes: b} }
func Array(vs []Value) Value      { return Value{kind: KindArray, arr: vs} }
func Obj(o *Object) Value         { return Value{kind: KindObject, obj: o} }
func StreamValue(s *Stream) Value { return Value{kind: KindStream, stream: s} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsBool() (bool, bool)       { return v.b, v.kind == KindBool }
func (v Value) AsInt() (int64, bool)       { return v.i, v.kind == KindInt }
func (v Value) AsFloat() (float64, bool)   { return v.f, v.kind == KindFloat }
func (v Value) AsString() (string, bool)   { return v.s, v.kind == KindString }
func (v Value) AsBytes() ([]byte, bool)    { return v.bytes, v.kind == KindBytes }
func (v Value) AsArray() ([]Value, bool)   { return v.arr, v.kind == KindArray }
func (v Value) AsObject() (*Object, bool)  { return v.obj, v.kind == KindObject }
func (v Value) AsStream() (*Stream, bool)  { return v.stream, v.kind == KindStream }
func (v Value) IsNull() bool               { return v.kind == KindNull }

// ToString implements spec.md §4.2's Value→string conversion.
func ToString(v Value) (string, error) {
	switch v.kind {
	case KindNull:
		return "", nil
	case KindString:
		return v.s, nil
	case KindBytes:
		if !utf8.Valid(v.bytes) {
			return "", fmt.Errorf("bytes are not valid UTF-8")
		}
		return string(v.bytes), nil
	case KindBool:
		return strconv.FormatBool(v.b), nil
	case KindInt:
		return strconv.FormatInt(v.i, 10), nil
	case KindFloat:
		return formatFloat(v.f), nil
	case KindArray, KindObject:
		return canonicalJSON(v)
	case KindStream:
		collected, err := CollectStream(v)
		if err != nil {
			return "", err
		}
		return ToString(collected)
	default:
		return "", fmt.Errorf("cannot stringify value of kind %s", v.kind)
	}
}

// formatFloat distinguishes whole numbers by emitting "X.0", per spec.md §4.2.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !bytes.ContainsAny([]byte(s), ".eE") {
		s += ".0"
	}
	return s
}

// ToBytes implements spec.md §4.2's Value→bytes conversion.
func ToBytes(v Value) ([]byte, error) {
	switch v.kind {
	case KindString:
		return []byte(v.s), nil
	case KindBytes:
		return v.bytes, nil
	case KindStream:
		collected, err := CollectStream(v)
		if err != nil {
			return nil, err
		}
		return ToBytes(collected)
	default:
		s, err := ToString(v)
		if err != nil {
			return nil, err
		}
		return []byte(s), nil
	}
}

// ToBool implements the typed-argument coercion of spec.md §4.2.
func ToBool(v Value) (bool, error) {
	if b, ok := v.AsBool(); ok {
		return b, nil
	}
	return false, fmt.Errorf("expected bool, got %s", v.kind)
}

// ToInt implements the typed-argument coercion of spec.md §4.2.
func ToInt(v Value) (int64, error) {
	switch v.kind {
	case KindInt:
		return v.i, nil
	case KindFloat:
		return int64(v.f), nil
	default:
		return 0, fmt.Errorf("expected int, got %s", v.kind)
	}
}

// ToFloat implements the typed-argument coercion of spec.md §4.2.
func ToFloat(v Value) (float64, error) {
	switch v.kind {
	case KindFloat:
		return v.f, nil
	case KindInt:
		return float64(v.i), nil
	default:
		return 0, fmt.Errorf("expected float, got %s", v.kind)
	}
}

// CollectStream reads a Stream value to completion and returns a Bytes value.
// Per spec.md §3, a Stream is resolvable at most once; calling this twice on
// the same Value re-opens the source, since Value itself is immutable — it is
// the caller's responsibility (the Renderer) not to collect twice.
func CollectStream(v Value) (Value, error) {
	stream, ok := v.AsStream()
	if !ok {
		return v, nil
	}
	rc, err := stream.Open()
	if err != nil {
		return Value{}, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return Value{}, err
	}
	return Bytes(data), nil
}

// canonicalJSON stringifies arrays/objects to a canonical JSON-like form, per
// spec.md §4.2. Object key order is preserved (not alphabetized) since Object
// is already insertion-ordered; this is closer to the original Rust
// implementation's behavior than re-sorting would be.
func canonicalJSON(v Value) (string, error) {
	raw, err := toJSONRaw(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func toJSONRaw(v Value) ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindInt:
		return json.Marshal(v.i)
	case KindFloat:
		return json.Marshal(v.f)
	case KindString:
		return json.Marshal(v.s)
	case KindBytes:
		return json.Marshal(string(v.bytes))
	case KindArray:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			raw, err := toJSONRaw(elem)
			if err != nil {
				return nil, err
			}
			buf.Write(raw)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case KindObject:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range v.obj.Keys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyRaw, _ := json.Marshal(k)
			buf.Write(keyRaw)
			buf.WriteByte(':')
			val, _ := v.obj.Get(k)
			raw, err := toJSONRaw(val)
			if err != nil {
				return nil, err
			}
			buf.Write(raw)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("cannot serialize value of kind %s to JSON", v.kind)
	}
}

// MarshalJSON lets a Value round-trip through the stdlib JSON encoder, used
// by internal/reqbuild's JSON body rendering.
func (v Value) MarshalJSON() ([]byte, error) { return toJSONRaw(v) }

// FromJSON converts a decoded encoding/json value (as produced by
// json.Unmarshal into an `any`) into a Value. A map[string]any carries no key
// order, so object keys come out sorted alphabetically; the source document's
// key order is not preserved.
func FromJSON(raw any) Value {
	switch x := raw.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(x)
	case float64:
		return Float(x)
	case string:
		return String(x)
	case []any:
		vs := make([]Value, len(x))
		for i, e := range x {
			vs[i] = FromJSON(e)
		}
		return Array(vs)
	case map[string]any:
		obj := NewObject()
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			obj.Set(k, FromJSON(x[k]))
		}
		return Obj(obj)
	default:
		return Null()
	}
}
