// Package model holds the shared request/response/override data types used
// across the request builder, HTTP executor, exchange repository, and
// override store (spec.md §3). Keeping them in one leaf package lets those
// four packages depend on the data model without depending on each other,
// the same way the teacher keeps its `dsl` package's node types free of
// anything execution-specific.
package model

import (
	"time"

	"github.com/google/uuid"

	"slumber/internal/value"
)

// RecipeId, ProfileId, RequestId, CollectionId are string newtypes; their
// only invariant is uniqueness within their scope (spec.md §3).
type RecipeId string
type ProfileId string
type RequestId string
type CollectionId string

// NewRequestId mints a fresh RequestId.
func NewRequestId() RequestId {
	return RequestId(uuid.NewString())
}

// NewCollectionId mints a fresh CollectionId.
func NewCollectionId() CollectionId {
	return CollectionId(uuid.NewString())
}

// Header is a single name/value pair. Headers are a multi-map: the same name
// may repeat.
type Header struct {
	Name  string
	Value string
}

// HeaderMap is an ordered multi-map of header name to value, preserving
// repetition and order (spec.md §3, §4.5).
type HeaderMap struct {
	Entries []Header
}

// Add appends a header entry.
func (h *HeaderMap) Add(name, value string) {
	h.Entries = append(h.Entries, Header{Name: name, Value: value})
}

// Get returns the first value for name, if any.
func (h *HeaderMap) Get(name string) (string, bool) {
	for _, e := range h.Entries {
		if e.Name == name {
			return e.Value, true
		}
	}
	return "", false
}

// QueryParam is one (name, value) entry of a request's query string. Query
// parameters are a list, not a map: a name may repeat and order is
// significant (spec.md §3).
type QueryParam struct {
	Name  string
	Value string
}

// BodyKind identifies which RenderedBody variant is populated.
type BodyKind int

const (
	BodyNone BodyKind = iota
	BodyRaw
	BodyFormUrlencoded
	BodyFormMultipart
)

// FormField is one rendered multipart form field (name plus raw bytes).
type FormField struct {
	Name  string
	Value []byte
}

// RenderedBody is the fully-rendered request body (spec.md §3).
type RenderedBody struct {
	Kind           BodyKind
	Raw            []byte
	FormUrlencoded []QueryParam
	FormMultipart  []FormField
}

// RenderedAuthKind identifies which Authentication variant was rendered.
type RenderedAuthKind int

const (
	AuthNone RenderedAuthKind = iota
	AuthBasic
	AuthBearer
)

// RenderedAuth is the fully-rendered authentication material for a request.
type RenderedAuth struct {
	Kind     RenderedAuthKind
	Username string
	Password string
	Token    string
}

// Request is a fully-rendered, immutable HTTP request (spec.md §3).
type Request struct {
	ID      RequestId
	Method  string
	URL     string
	Query   []QueryParam
	Headers HeaderMap
	Body    RenderedBody
	Auth    RenderedAuth
}

// Response is a completed HTTP response (spec.md §3). Exactly one of Body
// or Stream is populated: bodies at or under the executor's configured
// large_body_size threshold are read fully into Body; larger bodies are
// exposed lazily via Stream instead of being buffered in memory.
type Response struct {
	Status      int
	Headers     HeaderMap
	Body        []byte
	Stream      *value.Stream
	HTTPVersion string
}

// Exchange is a completed request/response pair (spec.md §3). Only exchanges
// that received a complete response are persistable.
type Exchange struct {
	RequestID RequestId
	ProfileID ProfileId
	RecipeID  RecipeId
	StartTime time.Time
	EndTime   time.Time
	Request   Request
	Response  Response
}

// OverrideKeyKind identifies which recipe location an OverrideKey points at.
type OverrideKeyKind int

const (
	OverrideProfile OverrideKeyKind = iota
	OverrideURL
	OverrideQuery
	OverrideHeader
	OverrideBody
	OverrideForm
	OverrideAuthUser
	OverrideAuthPass
	OverrideAuthToken
)

// OverrideKey is a tagged union pointing at one overridable recipe location
// (spec.md §3). Query/Header/Form overrides carry a positional Index because
// duplicate names are legal and order-significant (spec.md §9).
type OverrideKey struct {
	Kind  OverrideKeyKind
	Field string // OverrideProfile: profile field name
	Index int    // OverrideQuery, OverrideHeader, OverrideForm
}

// OverrideValueKind identifies whether an override replaces or drops a field.
type OverrideValueKind int

const (
	OverrideValueSet OverrideValueKind = iota
	OverrideValueOmit
)
