// Package render implements the template evaluator described in spec.md
// §4.3: a Renderer binds a Context to a Template/Expr and evaluates it to a
// Value, a string, bytes, or a byte stream, honoring the profile-field
// memoization and sequential-evaluation ordering guarantees of spec.md §5.
//
// Field/array/object/call evaluation is a straightforward recursive walk in
// the same spirit as the teacher's `expand.go` tree walk, generalized from
// expanding a process-definition tree to evaluating an expression tree.
package render

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"slumber/internal/model"
	"slumber/internal/slumbererr"
	"slumber/internal/template"
	"slumber/internal/value"
)

// FunctionTable resolves and invokes a built-in function by name. It is
// implemented by internal/functions; Renderer depends only on this interface
// to keep render from importing functions (which itself imports render to
// build sub-renderers for chained requests).
type FunctionTable interface {
	Call(ctx context.Context, rc *Renderer, name string, positional []value.Value, keyword map[string]value.Value) (value.Value, error)
}

// Context is everything a Renderer needs to resolve a field or run a
// function: profile field lookup plus the function table. ProfileField
// returns the unevaluated Template for a profile field, so the Renderer can
// apply its own memoization around the recursive evaluation (spec.md §5).
type Context interface {
	ProfileField(name string) (*template.Template, bool)
	Functions() FunctionTable
	// ProfileID returns the currently-selected profile's ID, if any. The
	// response/response_header functions use it to scope exchange lookups
	// to "the latest exchange for (profile, recipe)" (spec.md §4.4).
	ProfileID() *model.ProfileId
}

// RenderState holds the per-build caches that must NOT survive across a
// build run's own nested sub-requests, per spec.md §4.4 ("their own
// RenderState so their own response(...) calls operate on a fresh cache").
// A Renderer owns exactly one RenderState.
type RenderState struct {
	profileGroup singleflight.Group
	profileCache map[string]profileResult
}

type profileResult struct {
	val value.Value
	err error
}

// NewRenderState returns a fresh, empty RenderState.
func NewRenderState() *RenderState {
	return &RenderState{profileCache: make(map[string]profileResult)}
}

// Renderer is a bound (Context, RenderState) pair that evaluates templates
// (spec.md §3 GLOSSARY); short-lived, typically per-request or per-sub-request.
type Renderer struct {
	ctx   Context
	state *RenderState
}

// New constructs a Renderer over ctx with a fresh RenderState.
func New(ctx Context) *Renderer {
	return &Renderer{ctx: ctx, state: NewRenderState()}
}

// NewWithState constructs a Renderer sharing an existing Context but a
// distinct RenderState — used for the recursive sub-requests response(...)
// triggers (spec.md §4.4).
func NewWithState(ctx Context, state *RenderState) *Renderer {
	return &Renderer{ctx: ctx, state: state}
}

// Context returns the Renderer's bound Context, so function implementations
// that need to spin up further sub-renderers (response(...)) can reuse it.
func (r *Renderer) Context() Context { return r.ctx }

// RenderValue implements spec.md §4.3's render_value: if t is a single
// expression chunk, return its raw value; otherwise concatenate all chunks
// as strings.
func (r *Renderer) RenderValue(ctx context.Context, t *template.Template) (value.Value, error) {
	if len(t.Chunks) == 1 && t.Chunks[0].Kind == template.ChunkExpr {
		return r.Eval(ctx, t.Chunks[0].Expr)
	}
	s, err := r.RenderString(ctx, t)
	if err != nil {
		return value.Value{}, err
	}
	return value.String(s), nil
}

// RenderString implements render_string: render_value then coerce to string.
func (r *Renderer) RenderString(ctx context.Context, t *template.Template) (string, error) {
	var sb []byte
	for _, c := range t.Chunks {
		switch c.Kind {
		case template.ChunkRaw:
			sb = append(sb, c.Raw...)
		case template.ChunkExpr:
			v, err := r.Eval(ctx, c.Expr)
			if err != nil {
				return "", err
			}
			s, err := value.ToString(v)
			if err != nil {
				return "", err
			}
			sb = append(sb, s...)
		}
	}
	return string(sb), nil
}

// RenderBytes implements render_bytes: render_value then coerce to bytes.
func (r *Renderer) RenderBytes(ctx context.Context, t *template.Template) ([]byte, error) {
	if len(t.Chunks) == 1 && t.Chunks[0].Kind == template.ChunkExpr {
		v, err := r.Eval(ctx, t.Chunks[0].Expr)
		if err != nil {
			return nil, err
		}
		return value.ToBytes(v)
	}
	s, err := r.RenderString(ctx, t)
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// Eval evaluates a single expression to a Value, per spec.md §4.3's
// evaluation rules. Sibling expressions (array/object elements, call
// arguments) evaluate sequentially left to right because functions may have
// side effects (spec.md §5).
func (r *Renderer) Eval(ctx context.Context, e *template.Expr) (value.Value, error) {
	switch e.Kind {
	case template.ExprLiteral:
		return litToValue(e.Lit), nil

	case template.ExprField:
		return r.evalField(ctx, e.Field)

	case template.ExprArray:
		elems := make([]value.Value, len(e.Elems))
		for i, el := range e.Elems {
			v, err := r.Eval(ctx, el)
			if err != nil {
				return value.Value{}, err
			}
			elems[i] = v
		}
		return value.Array(elems), nil

	case template.ExprObject:
		obj := value.NewObject()
		for _, p := range e.Pairs {
			kv, err := r.Eval(ctx, p.Key)
			if err != nil {
				return value.Value{}, err
			}
			k, err := value.ToString(kv)
			if err != nil {
				return value.Value{}, err
			}
			v, err := r.Eval(ctx, p.Value)
			if err != nil {
				return value.Value{}, err
			}
			obj.Set(k, v)
		}
		return value.Obj(obj), nil

	case template.ExprCall:
		return r.evalCall(ctx, e.Call)

	case template.ExprPipe:
		left, err := r.Eval(ctx, e.PipeSrc)
		if err != nil {
			return value.Value{}, err
		}
		return r.evalCallWithExtraPositional(ctx, e.PipeTo, left)

	default:
		return value.Value{}, fmt.Errorf("unknown expression kind %d", e.Kind)
	}
}

func (r *Renderer) evalField(ctx context.Context, name string) (value.Value, error) {
	tmpl, ok := r.ctx.ProfileField(name)
	if !ok {
		return value.Value{}, fmt.Errorf("%w: %s", slumbererr.ErrFieldUnknown, name)
	}
	return r.memoizedProfileField(ctx, name, tmpl)
}

// memoizedProfileField implements spec.md §5: "Multiple renders of the same
// profile field within one Renderer are memoized: the first caller computes,
// later callers await the same cached result. The cache holds Result so
// errors are shared too." singleflight.Group collapses concurrent callers;
// the local map caches completed results (including errors) for callers that
// arrive after the in-flight call has already finished.
func (r *Renderer) memoizedProfileField(ctx context.Context, name string, tmpl *template.Template) (value.Value, error) {
	if cached, ok := r.state.profileCache[name]; ok {
		return cached.val, cached.err
	}
	res, err, _ := r.state.profileGroup.Do(name, func() (interface{}, error) {
		v, evalErr := r.RenderValue(ctx, tmpl)
		r.state.profileCache[name] = profileResult{val: v, err: evalErr}
		return v, evalErr
	})
	if err != nil {
		return value.Value{}, err
	}
	return res.(value.Value), nil
}

func (r *Renderer) evalCall(ctx context.Context, call *template.FunctionCall) (value.Value, error) {
	positional := make([]value.Value, len(call.Positional))
	for i, a := range call.Positional {
		v, err := r.Eval(ctx, a)
		if err != nil {
			return value.Value{}, fmt.Errorf("%s(): argument %d: %w", call.Name, i, err)
		}
		positional[i] = v
	}
	keyword := make(map[string]value.Value, len(call.Keyword))
	for _, kw := range call.Keyword {
		v, err := r.Eval(ctx, kw.Value)
		if err != nil {
			return value.Value{}, fmt.Errorf("%s(): argument %s: %w", call.Name, kw.Name, err)
		}
		keyword[kw.Name] = v
	}
	fns := r.ctx.Functions()
	if fns == nil {
		return value.Value{}, fmt.Errorf("%w: %s", slumbererr.ErrFunctionUnknown, call.Name)
	}
	result, err := fns.Call(ctx, r, call.Name, positional, keyword)
	if err != nil {
		return value.Value{}, fmt.Errorf("%s(): %w", call.Name, err)
	}
	return result, nil
}

// evalCallWithExtraPositional evaluates call with left appended as its final
// positional argument, implementing the pipe-lowering rule of spec.md §3/§4.3.
func (r *Renderer) evalCallWithExtraPositional(ctx context.Context, call *template.FunctionCall, left value.Value) (value.Value, error) {
	positional := make([]value.Value, 0, len(call.Positional)+1)
	for i, a := range call.Positional {
		v, err := r.Eval(ctx, a)
		if err != nil {
			return value.Value{}, fmt.Errorf("%s(): argument %d: %w", call.Name, i, err)
		}
		positional = append(positional, v)
	}
	positional = append(positional, left)
	keyword := make(map[string]value.Value, len(call.Keyword))
	for _, kw := range call.Keyword {
		v, err := r.Eval(ctx, kw.Value)
		if err != nil {
			return value.Value{}, fmt.Errorf("%s(): argument %s: %w", call.Name, kw.Name, err)
		}
		keyword[kw.Name] = v
	}
	fns := r.ctx.Functions()
	if fns == nil {
		return value.Value{}, fmt.Errorf("%w: %s", slumbererr.ErrFunctionUnknown, call.Name)
	}
	result, err := fns.Call(ctx, r, call.Name, positional, keyword)
	if err != nil {
		return value.Value{}, fmt.Errorf("%s(): %w", call.Name, err)
	}
	return result, nil
}

func litToValue(l template.Lit) value.Value {
	switch l.Kind {
	case template.LitNull:
		return value.Null()
	case template.LitBool:
		return value.Bool(l.B)
	case template.LitInt:
		return value.Int(l.I)
	case template.LitFloat:
		return value.Float(l.F)
	case template.LitString:
		return value.String(l.S)
	case template.LitBytes:
		return value.Bytes([]byte(l.S))
	default:
		return value.Null()
	}
}
