// Package engine wires the request builder, HTTP executor, exchange
// repository, override store, and collection tree together into the
// functions.ExchangeSource the response/response_header built-ins need, and
// into the single entry point cmd/slumber drives for the request subcommand
// (spec.md §6). It holds no logic of its own beyond sequencing calls into
// those packages, the same way the teacher's executor.go sequences parsing,
// dsl expansion, and subprocess execution without owning any of the three.
package engine

import (
	"context"
	"fmt"

	"slumber/internal/collection"
	"slumber/internal/functions"
	"slumber/internal/httpexec"
	"slumber/internal/model"
	"slumber/internal/override"
	"slumber/internal/reqbuild"
	"slumber/internal/render"
	"slumber/internal/slumbererr"
	"slumber/internal/store"
	"slumber/internal/template"
)

// Engine is the orchestration handle for one loaded collection.
type Engine struct {
	collection *collection.Collection
	overrides  *override.Store
	executor   *httpexec.Executor
	store      *store.Store
	prompter   functions.Prompter

	// DryRun disables chained sub-requests: SendSubrequest fails instead of
	// issuing an HTTP call, so Build can report the would-be request without
	// side effects (spec.md §6's --dry-run).
	DryRun bool
}

// New builds an Engine over an already-loaded collection, its session
// override store, a configured HTTP executor, and its opened exchange
// store.
func New(coll *collection.Collection, overrides *override.Store, executor *httpexec.Executor, st *store.Store, prompter functions.Prompter) *Engine {
	return &Engine{collection: coll, overrides: overrides, executor: executor, store: st, prompter: prompter}
}

// profileContext implements render.Context over a (possibly nil) Profile.
type profileContext struct {
	profile   *collection.Profile
	functions render.FunctionTable
}

func (c *profileContext) ProfileField(name string) (*template.Template, bool) {
	if c.profile == nil {
		return nil, false
	}
	t, ok := c.profile.Fields[name]
	return t, ok
}

func (c *profileContext) Functions() render.FunctionTable { return c.functions }

func (c *profileContext) ProfileID() *model.ProfileId {
	if c.profile == nil {
		return nil
	}
	id := c.profile.ID
	return &id
}

// NewRenderer builds a fresh Renderer bound to profile (nil for "no
// profile") and this Engine's function registry.
func (e *Engine) NewRenderer(profile *collection.Profile) *render.Renderer {
	reg := functions.New(e.prompter, e)
	ctx := &profileContext{profile: profile, functions: reg}
	return render.New(ctx)
}

// resolveProfile looks up a profile by id, returning nil (no profile) when
// id is nil.
func (e *Engine) resolveProfile(id *model.ProfileId) (*collection.Profile, error) {
	if id == nil {
		return nil, nil
	}
	p, ok := e.collection.GetProfile(*id)
	if !ok {
		return nil, fmt.Errorf("%w: profile %s", slumbererr.ErrFieldUnknown, *id)
	}
	return p, nil
}

// profileFilter converts a possibly-nil profile id into the store's
// tri-state filter, matching spec.md §4.7's "(collection, profile_id or
// null, recipe_id)" lookup.
func profileFilter(id *model.ProfileId) store.ProfileFilter {
	if id == nil {
		return store.ProfileFilterNone()
	}
	return store.ProfileFilterSome(*id)
}

// Build renders recipe under the given profile (nil for none) into a
// concrete Request without sending it, for --dry-run previews. It does not
// consult or mutate DryRun itself; callers that want chained sub-requests
// disabled during the render should set DryRun before calling Build.
func (e *Engine) Build(ctx context.Context, profileID *model.ProfileId, recipeID model.RecipeId) (*model.Request, error) {
	recipe, ok := e.collection.Tree.FindRecipe(recipeID)
	if !ok {
		return nil, fmt.Errorf("%w: recipe %s", slumbererr.ErrFieldUnknown, recipeID)
	}
	profile, err := e.resolveProfile(profileID)
	if err != nil {
		return nil, err
	}

	r := e.NewRenderer(profile)
	return reqbuild.Build(ctx, recipe, e.overrides, r)
}

// Send builds and executes a single request for recipe under the given
// profile (nil for none), persisting the resulting exchange.
func (e *Engine) Send(ctx context.Context, profileID *model.ProfileId, recipeID model.RecipeId) (*model.Exchange, error) {
	recipe, ok := e.collection.Tree.FindRecipe(recipeID)
	if !ok {
		return nil, fmt.Errorf("%w: recipe %s", slumbererr.ErrFieldUnknown, recipeID)
	}
	profile, err := e.resolveProfile(profileID)
	if err != nil {
		return nil, err
	}

	r := e.NewRenderer(profile)
	req, err := reqbuild.Build(ctx, recipe, e.overrides, r)
	if err != nil {
		return nil, err
	}

	ex, err := e.executor.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	ex.RecipeID = recipeID
	if profileID != nil {
		ex.ProfileID = *profileID
	}

	if e.store != nil {
		if err := e.store.InsertExchange(ctx, ex); err != nil {
			return nil, err
		}
	}
	return ex, nil
}

// LatestExchange implements functions.ExchangeSource: the most recent stored
// exchange for (collection, profile, recipe), per spec.md §4.7.
func (e *Engine) LatestExchange(profile *model.ProfileId, recipe model.RecipeId) (*model.Exchange, bool, error) {
	if e.store == nil {
		return nil, false, nil
	}
	ex, err := e.store.LatestExchange(context.Background(), profileFilter(profile), recipe)
	if err != nil {
		return nil, false, err
	}
	return ex, ex != nil, nil
}

// SendSubrequest implements functions.ExchangeSource: build and send a fresh
// sub-request for recipe, reusing the calling renderer's Context (the same
// profile field lookup and function table; spec.md §4.4). The profile field
// cache lives in the RenderState, not the Context, so it is not shared: the
// sub-request gets a fresh RenderState of its own, since
// response(...) calls within the chained recipe must not share the parent
// request's memoized cache (spec.md §4.4's "own RenderState" guarantee).
func (e *Engine) SendSubrequest(ctx context.Context, parent *render.Renderer, profile *model.ProfileId, recipeID model.RecipeId) (*model.Exchange, error) {
	if e.DryRun {
		return nil, fmt.Errorf("%w: chained sub-requests are disabled in dry-run", slumbererr.ErrRequestBuild)
	}
	recipe, ok := e.collection.Tree.FindRecipe(recipeID)
	if !ok {
		return nil, fmt.Errorf("%w: recipe %s", slumbererr.ErrFieldUnknown, recipeID)
	}

	sub := render.New(parent.Context())
	req, err := reqbuild.Build(ctx, recipe, e.overrides, sub)
	if err != nil {
		return nil, err
	}

	ex, err := e.executor.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	ex.RecipeID = recipeID
	if profile != nil {
		ex.ProfileID = *profile
	}

	if e.store != nil {
		if err := e.store.InsertExchange(ctx, ex); err != nil {
			return nil, err
		}
	}
	return ex, nil
}
