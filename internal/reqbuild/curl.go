package reqbuild

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"slumber/internal/model"
	"slumber/internal/slumbererr"
)

// RenderCurl produces a single-line shell command reproducing req, following
// the flag grammar of the original implementation's CurlBuilder
// (crates/core/src/http/curl.rs): `curl -X<method> --url '<url>' --header
// '<name>: <value>' ...`. Bytes that are not valid UTF-8 fail, since a shell
// command is text-only.
func RenderCurl(req *model.Request) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "curl -X%s", req.Method)

	fullURL, err := appendQuery(req.URL, req.Query)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&b, " --url '%s'", fullURL)

	for _, h := range req.Headers.Entries {
		fmt.Fprintf(&b, " --header '%s: %s'", h.Name, h.Value)
	}

	switch req.Auth.Kind {
	case model.AuthBasic:
		fmt.Fprintf(&b, " --user '%s:%s'", req.Auth.Username, req.Auth.Password)
	case model.AuthBearer:
		// Already folded into the Authorization header by the builder.
	}

	switch req.Body.Kind {
	case model.BodyRaw:
		if !utf8.Valid(req.Body.Raw) {
			return "", fmt.Errorf("%w: curl command generation only supports text values", slumbererr.ErrRequestBuild)
		}
		fmt.Fprintf(&b, " --data '%s'", string(req.Body.Raw))
	case model.BodyFormUrlencoded:
		for _, f := range req.Body.FormUrlencoded {
			fmt.Fprintf(&b, " --data-urlencode '%s=%s'", f.Name, f.Value)
		}
	case model.BodyFormMultipart:
		for _, f := range req.Body.FormMultipart {
			if !utf8.Valid(f.Value) {
				return "", fmt.Errorf("%w: curl command generation only supports text values", slumbererr.ErrRequestBuild)
			}
			fmt.Fprintf(&b, " -F '%s=%s'", f.Name, string(f.Value))
		}
	}

	return b.String(), nil
}

func appendQuery(rawURL string, query []model.QueryParam) (string, error) {
	if len(query) == 0 {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", slumbererr.ErrRequestBuild, err)
	}
	u.RawQuery = appendOrderedQuery(u.RawQuery, query)
	return u.String(), nil
}

// appendOrderedQuery builds a raw query string from query in declaration
// order, appending to any existing raw query already on the URL. Unlike
// url.Values.Encode, this preserves parameter order rather than sorting by
// name (spec.md §3: query parameter order is significant on the wire).
func appendOrderedQuery(existing string, query []model.QueryParam) string {
	var b strings.Builder
	b.WriteString(existing)
	for _, p := range query {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}
