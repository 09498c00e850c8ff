// Package httpexec implements the HTTP executor of spec.md §4.6: a
// connection-pooling client with a static User-Agent, per-host TLS
// relaxation, and a large-body threshold above which response bodies are
// exposed as a lazy stream instead of being buffered in memory. Grounded on
// the teacher's thin client-wrapper style (cmd/sonar-security-exporter/
// client.go): one *http.Client field, a small typed error-wrapping layer
// around Do, no abstraction beyond what's needed.
package httpexec

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"slumber/internal/model"
	"slumber/internal/slumbererr"
	"slumber/internal/value"
)

// Executor sends rendered requests and produces completed Exchanges.
type Executor struct {
	client        *http.Client
	userAgent     string
	largeBodySize int64
}

// Options configures a new Executor.
type Options struct {
	// Product and Version compose the static User-Agent string "<product>/<version>".
	Product string
	Version string
	// TLSSkipHosts lists hostnames whose certificate errors are ignored.
	TLSSkipHosts []string
	// LargeBodySize is the byte threshold above which a response body is
	// exposed as a lazy stream instead of being read fully into memory.
	LargeBodySize int64
}

// New builds an Executor from opts.
func New(opts Options) *Executor {
	skip := make(map[string]bool, len(opts.TLSSkipHosts))
	for _, h := range opts.TLSSkipHosts {
		skip[h] = true
	}

	dialer := &net.Dialer{}
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, _, err := net.SplitHostPort(addr)
			if err != nil {
				host = addr
			}
			cfg := &tls.Config{ServerName: host, InsecureSkipVerify: skip[host]}
			return (&tls.Dialer{NetDialer: dialer, Config: cfg}).DialContext(ctx, network, addr)
		},
	}

	return &Executor{
		client:        &http.Client{Transport: transport},
		userAgent:     fmt.Sprintf("%s/%s", opts.Product, opts.Version),
		largeBodySize: opts.LargeBodySize,
	}
}

// Send implements spec.md §4.6's send(request) -> Exchange: issue the
// request, read (or stream) the response body, and wrap network/TLS
// failures in slumbererr.ErrNetwork/ErrTLS. The repository is never touched
// here; persistence is the caller's responsibility.
func (e *Executor) Send(ctx context.Context, req *model.Request) (*model.Exchange, error) {
	httpReq, err := buildHTTPRequest(ctx, req, e.userAgent)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", slumbererr.ErrRequestBuild, err)
	}

	start := time.Now()
	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, wrapTransportError(err)
	}

	// readResponse takes ownership of resp.Body: it closes it itself once
	// fully read for the buffered branches, and hands it off (still open) to
	// the returned Stream's closer for the streamed branches, so a caller
	// reading the stream later doesn't read from an already-closed body.
	response, err := e.readResponse(resp)
	if err != nil {
		return nil, err
	}
	end := time.Now()

	return &model.Exchange{
		RequestID: req.ID,
		StartTime: start,
		EndTime:   end,
		Request:   *req,
		Response:  response,
	}, nil
}

func (e *Executor) readResponse(resp *http.Response) (model.Response, error) {
	var headers model.HeaderMap
	for name, values := range resp.Header {
		for _, v := range values {
			headers.Add(name, v)
		}
	}

	out := model.Response{
		Status:      resp.StatusCode,
		Headers:     headers,
		HTTPVersion: resp.Proto,
	}

	if resp.ContentLength >= 0 && resp.ContentLength <= e.largeBodySize {
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return model.Response{}, fmt.Errorf("%w: reading response body: %v", slumbererr.ErrNetwork, err)
		}
		out.Body = body
		return out, nil
	}

	if resp.ContentLength < 0 {
		// Unknown length: buffer up to the threshold to decide, falling back
		// to a stream only if it actually exceeds the limit.
		limited := io.LimitReader(resp.Body, e.largeBodySize+1)
		buf, err := io.ReadAll(limited)
		if err != nil {
			resp.Body.Close()
			return model.Response{}, fmt.Errorf("%w: reading response body: %v", slumbererr.ErrNetwork, err)
		}
		if int64(len(buf)) <= e.largeBodySize {
			resp.Body.Close()
			out.Body = buf
			return out, nil
		}
		rest := resp.Body
		out.Stream = &value.Stream{
			Source: "response",
			Open: func() (io.ReadCloser, error) {
				return &readCloser{Reader: io.MultiReader(bytes.NewReader(buf), rest), closer: rest}, nil
			},
		}
		return out, nil
	}

	body := resp.Body
	out.Stream = &value.Stream{
		Source: "response",
		Open: func() (io.ReadCloser, error) {
			return body, nil
		},
	}
	return out, nil
}

// readCloser pairs a Reader with an independent Closer, for the case where
// the readable stream (a MultiReader) isn't itself the thing that must be
// closed (the underlying response body is).
type readCloser struct {
	io.Reader
	closer io.Closer
}

func (r *readCloser) Close() error { return r.closer.Close() }

func buildHTTPRequest(ctx context.Context, req *model.Request, userAgent string) (*http.Request, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, err
	}
	if len(req.Query) > 0 {
		u.RawQuery = encodeOrderedQuery(u.RawQuery, req.Query)
	}

	var body io.Reader
	var contentType string
	switch req.Body.Kind {
	case model.BodyRaw:
		body = bytes.NewReader(req.Body.Raw)
	case model.BodyFormUrlencoded:
		form := url.Values{}
		for _, p := range req.Body.FormUrlencoded {
			form.Add(p.Name, p.Value)
		}
		body = strings.NewReader(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case model.BodyFormMultipart:
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		for _, f := range req.Body.FormMultipart {
			fw, err := w.CreateFormField(f.Name)
			if err != nil {
				return nil, err
			}
			if _, err := fw.Write(f.Value); err != nil {
				return nil, err
			}
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		body = &buf
		contentType = w.FormDataContentType()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("User-Agent", userAgent)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for _, h := range req.Headers.Entries {
		httpReq.Header.Add(h.Name, h.Value)
	}

	switch req.Auth.Kind {
	case model.AuthBasic:
		httpReq.SetBasicAuth(req.Auth.Username, req.Auth.Password)
	case model.AuthBearer:
		httpReq.Header.Set("Authorization", "Bearer "+req.Auth.Token)
	}

	return httpReq, nil
}

// encodeOrderedQuery builds a raw query string from query in declaration
// order, appending to any existing raw query already on the URL. Unlike
// url.Values.Encode, this preserves parameter order rather than sorting by
// name (spec.md §3: query parameter order is significant on the wire).
func encodeOrderedQuery(existing string, query []model.QueryParam) string {
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

func wrapTransportError(err error) error {
	if strings.Contains(err.Error(), "x509") || strings.Contains(err.Error(), "tls") {
		return fmt.Errorf("%w: %v", slumbererr.ErrTLS, err)
	}
	return fmt.Errorf("%w: %v", slumbererr.ErrNetwork, err)
}
