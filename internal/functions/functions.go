// Package functions implements the built-in function library of spec.md
// §4.4: file, command, env, prompt, choose, json_path, response,
// response_header, plus the chained-request trigger semantics. It satisfies
// render.FunctionTable, the single interface the evaluator needs, the same
// way the teacher resolves type names against a Registry (dsl/registry.go)
// rather than a big switch statement wired directly into the evaluator.
package functions

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"slumber/internal/model"
	"slumber/internal/render"
	"slumber/internal/slumbererr"
	"slumber/internal/value"
)

// Prompter is the abstraction the prompt/choose functions consult (spec.md
// §6's Prompter interface, narrowed to the two operations the function
// library drives synchronously).
type Prompter interface {
	Prompt(ctx context.Context, message string, def *string, sensitive bool) (string, error)
	Choose(ctx context.Context, message string, options []string) (string, error)
}

// ExchangeSource backs the response/response_header chained-request
// functions (spec.md §4.4, §6's "exchange-lookup interface"): it can look up
// the latest stored exchange for a (profile, recipe) pair, and it can build
// and send a fresh sub-request reusing the calling renderer's context.
type ExchangeSource interface {
	LatestExchange(profile *model.ProfileId, recipe model.RecipeId) (*model.Exchange, bool, error)
	SendSubrequest(ctx context.Context, rc *render.Renderer, profile *model.ProfileId, recipe model.RecipeId) (*model.Exchange, error)
}

// maxSubrequestDepth bounds response(...)'s recursive sub-request chain
// (spec.md §9: "enforce a depth limit (e.g. 16) to bound accidental recursion").
const maxSubrequestDepth = 16

type depthKey struct{}

// Registry is the concrete, name-keyed function table.
type Registry struct {
	prompter  Prompter
	exchanges ExchangeSource
}

// New constructs a Registry wired to the given Prompter and ExchangeSource.
func New(prompter Prompter, exchanges ExchangeSource) *Registry {
	return &Registry{prompter: prompter, exchanges: exchanges}
}

// Call implements render.FunctionTable.
func (r *Registry) Call(ctx context.Context, rc *render.Renderer, name string, positional []value.Value, keyword map[string]value.Value) (value.Value, error) {
	args := newArgs(positional, keyword)
	switch name {
	case "file":
		return r.callFile(args)
	case "command":
		return r.callCommand(ctx, args)
	case "env":
		return r.callEnv(args)
	case "prompt":
		return r.callPrompt(ctx, args)
	case "choose":
		return r.callChoose(ctx, args)
	case "json_path":
		return r.callJSONPath(args)
	case "response":
		return r.callResponse(ctx, rc, args)
	case "response_header":
		return r.callResponseHeader(ctx, rc, args)
	default:
		return value.Value{}, fmt.Errorf("%w: %s", slumbererr.ErrFunctionUnknown, name)
	}
}

func (r *Registry) callFile(args *argSet) (value.Value, error) {
	path, err := args.requireString("path", 0)
	if err != nil {
		return value.Value{}, err
	}
	stream := &value.Stream{
		Source: "file",
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
	return value.StreamValue(stream), nil
}

func (r *Registry) callEnv(args *argSet) (value.Value, error) {
	name, err := args.requireString("variable", 0)
	if err != nil {
		return value.Value{}, err
	}
	return value.String(os.Getenv(name)), nil
}

func (r *Registry) callCommand(ctx context.Context, args *argSet) (value.Value, error) {
	command, err := args.requireString("command", 0)
	if err != nil {
		return value.Value{}, err
	}
	var cmdArgs []string
	if v, ok := args.optional("args", 1); ok {
		arr, ok := v.AsArray()
		if !ok {
			return value.Value{}, fmt.Errorf("%w: args must be an array", slumbererr.ErrFunctionArgument)
		}
		for _, e := range arr {
			s, err := value.ToString(e)
			if err != nil {
				return value.Value{}, err
			}
			cmdArgs = append(cmdArgs, s)
		}
	}
	var stdin string
	hasStdin := false
	if v, ok := args.optional("stdin", 2); ok && !v.IsNull() {
		stdin, err = value.ToString(v)
		if err != nil {
			return value.Value{}, err
		}
		hasStdin = true
	}
	trim := "none"
	if v, ok := args.optional("trim", 3); ok {
		trim, err = value.ToString(v)
		if err != nil {
			return value.Value{}, err
		}
	}

	cmd := exec.CommandContext(ctx, command, cmdArgs...)
	if hasStdin {
		cmd.Stdin = strings.NewReader(stdin)
	}
	out, err := cmd.Output()
	if err != nil {
		return value.Value{}, fmt.Errorf("%w: %s %v: %v", slumbererr.ErrCommand, command, cmdArgs, err)
	}
	return value.Bytes(trimOutput(out, trim)), nil
}

func trimOutput(out []byte, mode string) []byte {
	switch mode {
	case "start":
		return []byte(strings.TrimLeft(string(out), " \t\r\n"))
	case "end":
		return []byte(strings.TrimRight(string(out), " \t\r\n"))
	case "both":
		return []byte(strings.TrimSpace(string(out)))
	default:
		return out
	}
}

func (r *Registry) callPrompt(ctx context.Context, args *argSet) (value.Value, error) {
	if r.prompter == nil {
		return value.Value{}, fmt.Errorf("%w: no prompter configured", slumbererr.ErrPromptNoReply)
	}
	message, _ := args.optionalString("message", 0)
	var def *string
	if v, ok := args.optional("default", 1); ok && !v.IsNull() {
		s, err := value.ToString(v)
		if err != nil {
			return value.Value{}, err
		}
		def = &s
	}
	sensitive := false
	if v, ok := args.optional("sensitive", 2); ok {
		b, err := value.ToBool(v)
		if err != nil {
			return value.Value{}, err
		}
		sensitive = b
	}
	reply, err := r.prompter.Prompt(ctx, message, def, sensitive)
	if err != nil {
		return value.Value{}, fmt.Errorf("%w: %v", slumbererr.ErrPromptNoReply, err)
	}
	return value.String(reply), nil
}

func (r *Registry) callChoose(ctx context.Context, args *argSet) (value.Value, error) {
	if r.prompter == nil {
		return value.Value{}, fmt.Errorf("%w: no prompter configured", slumbererr.ErrPromptNoReply)
	}
	message, err := args.requireString("message", 0)
	if err != nil {
		return value.Value{}, err
	}
	v, ok := args.optional("options", 1)
	if !ok {
		return value.Value{}, fmt.Errorf("%w: choose(): missing options", slumbererr.ErrFunctionArgument)
	}
	arr, ok := v.AsArray()
	if !ok {
		return value.Value{}, fmt.Errorf("%w: options must be an array", slumbererr.ErrFunctionArgument)
	}
	options := make([]string, len(arr))
	for i, e := range arr {
		s, err := value.ToString(e)
		if err != nil {
			return value.Value{}, err
		}
		options[i] = s
	}
	reply, err := r.prompter.Choose(ctx, message, options)
	if err != nil {
		return value.Value{}, fmt.Errorf("%w: %v", slumbererr.ErrPromptNoReply, err)
	}
	return value.String(reply), nil
}

// trigger mirrors spec.md §4.4's `never|no_history|always|Duration` union.
type triggerKind int

const (
	triggerNever triggerKind = iota
	triggerNoHistory
	triggerAlways
	triggerDuration
)

type trigger struct {
	kind     triggerKind
	duration time.Duration
}

func parseTrigger(v value.Value) (trigger, error) {
	if s, ok := v.AsString(); ok {
		switch s {
		case "never":
			return trigger{kind: triggerNever}, nil
		case "no_history":
			return trigger{kind: triggerNoHistory}, nil
		case "always":
			return trigger{kind: triggerAlways}, nil
		default:
			d, err := time.ParseDuration(s)
			if err != nil {
				return trigger{}, fmt.Errorf("%w: invalid trigger %q", slumbererr.ErrFunctionArgument, s)
			}
			return trigger{kind: triggerDuration, duration: d}, nil
		}
	}
	return trigger{}, fmt.Errorf("%w: trigger must be a string", slumbererr.ErrFunctionArgument)
}

func (r *Registry) resolveExchange(ctx context.Context, rc *render.Renderer, recipe model.RecipeId, trig trigger) (*model.Exchange, error) {
	if r.exchanges == nil {
		return nil, fmt.Errorf("%w: no exchange source configured", slumbererr.ErrResponseParse)
	}
	profile := rc.Context().ProfileID()

	switch trig.kind {
	case triggerNever:
		ex, ok, err := r.exchanges.LatestExchange(profile, recipe)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: no prior exchange for recipe %s", slumbererr.ErrResponseParse, recipe)
		}
		return ex, nil
	case triggerNoHistory:
		ex, ok, err := r.exchanges.LatestExchange(profile, recipe)
		if err != nil {
			return nil, err
		}
		if ok {
			return ex, nil
		}
		return r.sendGuarded(ctx, rc, profile, recipe)
	case triggerAlways:
		return r.sendGuarded(ctx, rc, profile, recipe)
	case triggerDuration:
		ex, ok, err := r.exchanges.LatestExchange(profile, recipe)
		if err != nil {
			return nil, err
		}
		if ok && time.Since(ex.EndTime) <= trig.duration {
			return ex, nil
		}
		return r.sendGuarded(ctx, rc, profile, recipe)
	default:
		return nil, fmt.Errorf("%w: unknown trigger", slumbererr.ErrFunctionArgument)
	}
}

func (r *Registry) sendGuarded(ctx context.Context, rc *render.Renderer, profile *model.ProfileId, recipe model.RecipeId) (*model.Exchange, error) {
	depth, _ := ctx.Value(depthKey{}).(int)
	if depth >= maxSubrequestDepth {
		return nil, slumbererr.ErrSubrequestDepthExceeded
	}
	ctx = context.WithValue(ctx, depthKey{}, depth+1)
	return r.exchanges.SendSubrequest(ctx, rc, profile, recipe)
}

func (r *Registry) callResponse(ctx context.Context, rc *render.Renderer, args *argSet) (value.Value, error) {
	// response(recipe, trigger): trigger is positional index 1.
	recipe, trig, err := r.parseResponseArgs(args, 1)
	if err != nil {
		return value.Value{}, err
	}
	ex, err := r.resolveExchange(ctx, rc, recipe, trig)
	if err != nil {
		return value.Value{}, err
	}
	return value.Bytes(ex.Response.Body), nil
}

func (r *Registry) callResponseHeader(ctx context.Context, rc *render.Renderer, args *argSet) (value.Value, error) {
	// response_header(recipe, header, trigger): trigger is positional index 2.
	recipe, trig, err := r.parseResponseArgs(args, 2)
	if err != nil {
		return value.Value{}, err
	}
	header, err := args.requireString("header", 1)
	if err != nil {
		return value.Value{}, err
	}
	ex, err := r.resolveExchange(ctx, rc, recipe, trig)
	if err != nil {
		return value.Value{}, err
	}
	v, ok := ex.Response.Headers.Get(header)
	if !ok {
		return value.Value{}, fmt.Errorf("%w: %s", slumbererr.ErrResponseMissingHeader, header)
	}
	return value.String(v), nil
}

func (r *Registry) parseResponseArgs(args *argSet, triggerIndex int) (model.RecipeId, trigger, error) {
	recipeStr, err := args.requireString("recipe", 0)
	if err != nil {
		return "", trigger{}, err
	}
	trig := trigger{kind: triggerNoHistory}
	if v, ok := args.optional("trigger", triggerIndex); ok {
		trig, err = parseTrigger(v)
		if err != nil {
			return "", trigger{}, err
		}
	}
	return model.RecipeId(recipeStr), trig, nil
}
