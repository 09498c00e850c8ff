package template

import "strings"

// ChunkKind identifies whether a Chunk is literal text or a parsed expression.
type ChunkKind int

const (
	ChunkRaw ChunkKind = iota
	ChunkExpr
)

// Chunk is one piece of a parsed Template, per spec.md §3.
type Chunk struct {
	Kind ChunkKind
	Raw  string
	Expr *Expr
}

// Template is parsed text: an ordered list of raw and expression chunks
// (spec.md §3).
type Template struct {
	Chunks []Chunk
}

// IsDynamic reports whether t contains at least one expression chunk. A
// template with no expression chunks is static (spec.md §4.1).
func (t *Template) IsDynamic() bool {
	for _, c := range t.Chunks {
		if c.Kind == ChunkExpr {
			return true
		}
	}
	return false
}

// Parse scans src for `{{ expr }}` sentinels, decoding `{_{`-escaped literal
// braces along the way, and parses each expression body with the expression
// grammar in spec.md §4.1.
func Parse(src string) (*Template, error) {
	var chunks []Chunk
	var raw strings.Builder
	i := 0
	flushRaw := func() {
		if raw.Len() > 0 {
			chunks = append(chunks, Chunk{Kind: ChunkRaw, Raw: raw.String()})
			raw.Reset()
		}
	}

	for i < len(src) {
		if src[i] != '{' {
			raw.WriteByte(src[i])
			i++
			continue
		}

		// Count a run of underscores between the two braces, e.g. "{_{", "{__{".
		j := i + 1
		underscores := 0
		for j < len(src) && src[j] == '_' {
			underscores++
			j++
		}
		if j >= len(src) || src[j] != '{' {
			// Not an opener or an escape; '{' is just a literal character.
			raw.WriteByte('{')
			i++
			continue
		}

		if underscores == 0 {
			// Real expression opener.
			flushRaw()
			exprStart := j + 1
			end := strings.Index(src[exprStart:], "}}")
			if end < 0 {
				return nil, &ParseError{Span: Span{i, len(src)}, Msg: "unterminated expression: missing closing '}}'"}
			}
			body := src[exprStart : exprStart+end]
			expr, err := parseExpr(body)
			if err != nil {
				if pe, ok := err.(*ParseError); ok {
					pe.Span = Span{exprStart + pe.Span.Start, exprStart + pe.Span.End}
					return nil, pe
				}
				return nil, err
			}
			chunks = append(chunks, Chunk{Kind: ChunkExpr, Expr: expr})
			i = exprStart + end + 2
			continue
		}

		// Escaped form: "{" + n underscores + "{" decodes to "{" + (n-1)
		// underscores + "{", i.e. one fewer underscore than was written.
		raw.WriteByte('{')
		for k := 0; k < underscores-1; k++ {
			raw.WriteByte('_')
		}
		raw.WriteByte('{')
		i = j + 1
	}
	flushRaw()

	return &Template{Chunks: chunks}, nil
}

// Display renders t back to its textual source form. Per spec.md §3 this
// round-trips modulo whitespace inside expressions: raw chunks are
// re-escaped so that any literal "{" + underscores* + "{" run is encoded
// with one additional underscore, the inverse of Parse's decoding.
func (t *Template) Display() string {
	var sb strings.Builder
	for _, c := range t.Chunks {
		switch c.Kind {
		case ChunkRaw:
			sb.WriteString(escapeRaw(c.Raw))
		case ChunkExpr:
			sb.WriteString("{{ ")
			sb.WriteString(c.Expr.Display())
			sb.WriteString(" }}")
		}
	}
	return sb.String()
}

// escapeRaw inserts an extra underscore into every "{" + underscores* + "{"
// run found in s, so that re-parsing the result decodes back to s exactly.
func escapeRaw(s string) string {
	var sb strings.Builder
	i := 0
	for i < len(s) {
		if s[i] != '{' {
			sb.WriteByte(s[i])
			i++
			continue
		}
		j := i + 1
		underscores := 0
		for j < len(s) && s[j] == '_' {
			underscores++
			j++
		}
		if j < len(s) && s[j] == '{' {
			sb.WriteByte('{')
			for k := 0; k < underscores+1; k++ {
				sb.WriteByte('_')
			}
			sb.WriteByte('{')
			i = j + 1
			continue
		}
		sb.WriteByte('{')
		i++
	}
	return sb.String()
}

// Raw constructs a single-chunk static Template wrapping a literal string
// with no expression parsing, used by tests and by callers that need a
// Template from a plain constant (e.g. injecting a fixed override value).
func Raw(s string) *Template {
	return &Template{Chunks: []Chunk{{Kind: ChunkRaw, Raw: s}}}
}
