// Package reqbuild implements the request builder of spec.md §4.5: it turns
// a Recipe, a bound Renderer, and a set of session overrides into a fully
// rendered, immutable model.Request, plus a cURL rendering mode grounded on
// the original implementation's CurlBuilder (crates/core/src/http/curl.rs).
package reqbuild

import (
	"context"
	"fmt"
	"strings"

	"slumber/internal/collection"
	"slumber/internal/model"
	"slumber/internal/override"
	"slumber/internal/render"
	"slumber/internal/slumbererr"
	"slumber/internal/template"
)

// Build composes a model.Request from recipe, applying any overrides
// recorded for recipe.ID before rendering each field. Fields render strictly
// in the order URL, query, headers, auth, body (spec.md §5: "a user may
// reasonably expect a header rendered from a chained response to see the
// same history state as the body").
func Build(ctx context.Context, recipe *collection.Recipe, overrides *override.Store, r *render.Renderer) (*model.Request, error) {
	snapshot := overrides.All(recipe.ID)

	url, err := renderURL(ctx, recipe, snapshot, r)
	if err != nil {
		return nil, fmt.Errorf("%w: url: %v", slumbererr.ErrRequestBuild, err)
	}

	query, err := renderQuery(ctx, recipe, snapshot, r)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", slumbererr.ErrRequestBuild, err)
	}

	headers, err := renderHeaders(ctx, recipe, snapshot, r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", slumbererr.ErrRequestBuild, err)
	}

	auth, authHeader, err := renderAuth(ctx, recipe, snapshot, r)
	if err != nil {
		return nil, fmt.Errorf("%w: auth: %v", slumbererr.ErrRequestBuild, err)
	}
	if authHeader != nil {
		headers.Add("Authorization", *authHeader)
	}

	body, err := renderBody(ctx, recipe, snapshot, r)
	if err != nil {
		return nil, fmt.Errorf("%w: body: %v", slumbererr.ErrRequestBuild, err)
	}

	return &model.Request{
		ID:      model.NewRequestId(),
		Method:  recipe.Method,
		URL:     url,
		Query:   query,
		Headers: headers,
		Body:    body,
		Auth:    auth,
	}, nil
}

func overrideFor(snapshot map[model.OverrideKey]override.Value, key model.OverrideKey) (override.Value, bool) {
	v, ok := snapshot[key]
	return v, ok
}

// resolveTemplate applies an override (if present) to t, returning the
// template to actually render and whether the field should be omitted.
func resolveTemplate(snapshot map[model.OverrideKey]override.Value, key model.OverrideKey, t *template.Template) (*template.Template, bool) {
	if ov, ok := overrideFor(snapshot, key); ok {
		if ov.Omit {
			return nil, true
		}
		return ov.Template, false
	}
	return t, false
}

func renderURL(ctx context.Context, recipe *collection.Recipe, snapshot map[model.OverrideKey]override.Value, r *render.Renderer) (string, error) {
	t, omit := resolveTemplate(snapshot, model.OverrideKey{Kind: model.OverrideURL}, recipe.URL)
	if omit {
		return "", fmt.Errorf("url cannot be omitted")
	}
	return r.RenderString(ctx, t)
}

func renderQuery(ctx context.Context, recipe *collection.Recipe, snapshot map[model.OverrideKey]override.Value, r *render.Renderer) ([]model.QueryParam, error) {
	out := make([]model.QueryParam, 0, len(recipe.Query))
	for i, entry := range recipe.Query {
		t, omit := resolveTemplate(snapshot, model.OverrideKey{Kind: model.OverrideQuery, Index: i}, entry.Value)
		if omit {
			continue
		}
		val, err := r.RenderString(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("query[%d] %q: %w", i, entry.Name, err)
		}
		out = append(out, model.QueryParam{Name: entry.Name, Value: val})
	}
	return out, nil
}

func renderHeaders(ctx context.Context, recipe *collection.Recipe, snapshot map[model.OverrideKey]override.Value, r *render.Renderer) (model.HeaderMap, error) {
	var out model.HeaderMap
	if recipe.Headers == nil {
		return out, nil
	}
	for i, name := range recipe.Headers.Keys() {
		tmpl, _ := recipe.Headers.Get(name)
		t, omit := resolveTemplate(snapshot, model.OverrideKey{Kind: model.OverrideHeader, Index: i}, tmpl)
		if omit {
			continue
		}
		val, err := r.RenderString(ctx, t)
		if err != nil {
			return model.HeaderMap{}, fmt.Errorf("header %q: %w", name, err)
		}
		if strings.ContainsAny(val, "\r\n") {
			return model.HeaderMap{}, fmt.Errorf("%w: %s", slumbererr.ErrHeader, name)
		}
		out.Add(name, val)
	}
	return out, nil
}

func renderBody(ctx context.Context, recipe *collection.Recipe, snapshot map[model.OverrideKey]override.Value, r *render.Renderer) (model.RenderedBody, error) {
	// A Body override replaces the entire rendered body with Raw bytes,
	// regardless of the recipe's declared body variant (see DESIGN.md's
	// decision on Body-override-vs-FormMultipart).
	if ov, ok := overrideFor(snapshot, model.OverrideKey{Kind: model.OverrideBody}); ok {
		if ov.Omit {
			return model.RenderedBody{Kind: model.BodyNone}, nil
		}
		raw, err := r.RenderBytes(ctx, ov.Template)
		if err != nil {
			return model.RenderedBody{}, err
		}
		return model.RenderedBody{Kind: model.BodyRaw, Raw: raw}, nil
	}

	if recipe.Body == nil {
		return model.RenderedBody{Kind: model.BodyNone}, nil
	}

	switch recipe.Body.Kind {
	case collection.BodyRaw:
		raw, err := r.RenderBytes(ctx, recipe.Body.Raw)
		if err != nil {
			return model.RenderedBody{}, err
		}
		return model.RenderedBody{Kind: model.BodyRaw, Raw: raw}, nil

	case collection.BodyJSON:
		v, err := r.RenderValue(ctx, recipe.Body.JSON)
		if err != nil {
			return model.RenderedBody{}, err
		}
		raw, err := v.MarshalJSON()
		if err != nil {
			return model.RenderedBody{}, err
		}
		return model.RenderedBody{Kind: model.BodyRaw, Raw: raw}, nil

	case collection.BodyFormUrlencoded:
		fields, err := renderOrderedFields(ctx, recipe.Body.FormUrlencoded, snapshot, r)
		if err != nil {
			return model.RenderedBody{}, err
		}
		pairs := make([]model.QueryParam, len(fields))
		for i, f := range fields {
			pairs[i] = model.QueryParam{Name: f.Name, Value: string(f.Value)}
		}
		return model.RenderedBody{Kind: model.BodyFormUrlencoded, FormUrlencoded: pairs}, nil

	case collection.BodyFormMultipart:
		fields, err := renderOrderedFields(ctx, recipe.Body.FormMultipart, snapshot, r)
		if err != nil {
			return model.RenderedBody{}, err
		}
		return model.RenderedBody{Kind: model.BodyFormMultipart, FormMultipart: fields}, nil

	default:
		return model.RenderedBody{Kind: model.BodyNone}, nil
	}
}

func renderOrderedFields(ctx context.Context, m *collection.OrderedTemplateMap, snapshot map[model.OverrideKey]override.Value, r *render.Renderer) ([]model.FormField, error) {
	var out []model.FormField
	if m == nil {
		return out, nil
	}
	for i, name := range m.Keys() {
		tmpl, _ := m.Get(name)
		t, omit := resolveTemplate(snapshot, model.OverrideKey{Kind: model.OverrideForm, Index: i}, tmpl)
		if omit {
			continue
		}
		val, err := r.RenderBytes(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("form[%d] %q: %w", i, name, err)
		}
		out = append(out, model.FormField{Name: name, Value: val})
	}
	return out, nil
}

func renderAuth(ctx context.Context, recipe *collection.Recipe, snapshot map[model.OverrideKey]override.Value, r *render.Renderer) (model.RenderedAuth, *string, error) {
	username, usernameSet := overrideFor(snapshot, model.OverrideKey{Kind: model.OverrideAuthUser})
	password, passwordSet := overrideFor(snapshot, model.OverrideKey{Kind: model.OverrideAuthPass})
	token, tokenSet := overrideFor(snapshot, model.OverrideKey{Kind: model.OverrideAuthToken})

	if recipe.Auth == nil && !usernameSet && !passwordSet && !tokenSet {
		return model.RenderedAuth{Kind: model.AuthNone}, nil, nil
	}

	kind := collection.AuthBasic
	if recipe.Auth != nil {
		kind = recipe.Auth.Kind
	}
	if tokenSet {
		kind = collection.AuthBearer
	} else if usernameSet || passwordSet {
		kind = collection.AuthBasic
	}

	switch kind {
	case collection.AuthBasic:
		userTmpl := emptyTemplateIfNil(nil)
		if recipe.Auth != nil {
			userTmpl = recipe.Auth.Username
		}
		if usernameSet && !username.Omit {
			userTmpl = username.Template
		}
		user, err := r.RenderString(ctx, userTmpl)
		if err != nil {
			return model.RenderedAuth{}, nil, fmt.Errorf("username: %w", err)
		}

		var passTmpl *template.Template
		if recipe.Auth != nil {
			passTmpl = recipe.Auth.Password
		}
		if passwordSet && !password.Omit {
			passTmpl = password.Template
		}
		pass := ""
		if passTmpl != nil {
			pass, err = r.RenderString(ctx, passTmpl)
			if err != nil {
				return model.RenderedAuth{}, nil, fmt.Errorf("password: %w", err)
			}
		}
		return model.RenderedAuth{Kind: model.AuthBasic, Username: user, Password: pass}, nil, nil

	case collection.AuthBearer:
		var tokTmpl *template.Template
		if recipe.Auth != nil {
			tokTmpl = recipe.Auth.Token
		}
		if tokenSet && !token.Omit {
			tokTmpl = token.Template
		}
		tok, err := r.RenderString(ctx, tokTmpl)
		if err != nil {
			return model.RenderedAuth{}, nil, fmt.Errorf("token: %w", err)
		}
		header := "Bearer " + tok
		return model.RenderedAuth{Kind: model.AuthBearer, Token: tok}, &header, nil

	default:
		return model.RenderedAuth{Kind: model.AuthNone}, nil, nil
	}
}

func emptyTemplateIfNil(t *template.Template) *template.Template {
	if t != nil {
		return t
	}
	return template.Raw("")
}
