// Package slumbererr collects the sentinel errors shared across the
// template, collection, request, and store layers, following the same
// package-level errors.New + fmt.Errorf("%w") convention the rest of the
// module uses (see cmd/devshell's dsl/errors.go for the pattern this mirrors).
package slumbererr

import "errors"

var (
	// Template / parse errors.
	ErrTemplateParse = errors.New("template parse error")

	// Evaluation errors.
	ErrFieldUnknown     = errors.New("unknown field")
	ErrFunctionUnknown  = errors.New("unknown function")
	ErrFunctionArgument = errors.New("invalid function argument")
	ErrArgConvert       = errors.New("argument conversion failed")

	// Function-level errors.
	ErrFile                 = errors.New("file error")
	ErrCommand              = errors.New("command error")
	ErrEnv                  = errors.New("environment variable error")
	ErrJSONPathParse        = errors.New("json path parse error")
	ErrResponseParse        = errors.New("response parse error")
	ErrResponseMissingHeader = errors.New("response missing header")
	ErrPromptNoReply        = errors.New("prompt received no reply")

	// Request build errors.
	ErrRequestBuild = errors.New("request build failed")
	ErrHeader       = errors.New("invalid header value")

	// Executor errors.
	ErrNetwork = errors.New("network error")
	ErrTLS     = errors.New("tls error")

	// Store errors.
	ErrDatabase  = errors.New("database error")
	ErrMigration = errors.New("migration error")

	// Collection-load errors.
	ErrDuplicateRecipeID = errors.New("duplicate recipe id")
	ErrCycleReference    = errors.New("cycle reference")

	// Sub-request recursion guard (design note in spec.md §9: depth limit).
	ErrSubrequestDepthExceeded = errors.New("sub-request recursion depth exceeded")
)
