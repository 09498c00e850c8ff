package httpexec

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"slumber/internal/model"
)

func TestSendGetRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "slumber/test" {
			t.Errorf("User-Agent = %q", got)
		}
		if got := r.URL.Query().Get("page"); got != "1" {
			t.Errorf("query page = %q", got)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	exec := New(Options{Product: "slumber", Version: "test", LargeBodySize: 1 << 20})
	req := &model.Request{
		ID:     model.NewRequestId(),
		Method: http.MethodGet,
		URL:    srv.URL + "/test",
		Query:  []model.QueryParam{{Name: "page", Value: "1"}},
	}

	ex, err := exec.Send(context.Background(), req)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if ex.Response.Status != http.StatusOK {
		t.Errorf("status = %d", ex.Response.Status)
	}
	if string(ex.Response.Body) != "hello" {
		t.Errorf("body = %q", ex.Response.Body)
	}
}

func TestSendLargeBodyIsStreamed(t *testing.T) {
	big := make([]byte, 100)
	for i := range big {
		big[i] = 'x'
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(big)
	}))
	defer srv.Close()

	exec := New(Options{Product: "slumber", Version: "test", LargeBodySize: 10})
	req := &model.Request{ID: model.NewRequestId(), Method: http.MethodGet, URL: srv.URL}

	ex, err := exec.Send(context.Background(), req)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if ex.Response.Stream == nil {
		t.Fatal("expected a stream for a body over the large-body threshold")
	}
	rc, err := ex.Response.Stream.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(data) != 100 {
		t.Errorf("streamed body length = %d, want 100", len(data))
	}
}

func TestSendPostBodyAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Custom"); got != "value1" {
			t.Errorf("X-Custom = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"a":1}` {
			t.Errorf("body = %q", body)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	exec := New(Options{Product: "slumber", Version: "test", LargeBodySize: 1 << 20})
	req := &model.Request{
		ID:     model.NewRequestId(),
		Method: http.MethodPost,
		URL:    srv.URL,
		Body:   model.RenderedBody{Kind: model.BodyRaw, Raw: []byte(`{"a":1}`)},
	}
	req.Headers.Add("X-Custom", "value1")

	ex, err := exec.Send(context.Background(), req)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if ex.Response.Status != http.StatusCreated {
		t.Errorf("status = %d", ex.Response.Status)
	}
}

func TestSendBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "bob" || pass != "secret" {
			t.Errorf("basic auth = %q %q %v", user, pass, ok)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	exec := New(Options{Product: "slumber", Version: "test", LargeBodySize: 1 << 20})
	req := &model.Request{
		ID:     model.NewRequestId(),
		Method: http.MethodGet,
		URL:    srv.URL,
		Auth:   model.RenderedAuth{Kind: model.AuthBasic, Username: "bob", Password: "secret"},
	}

	if _, err := exec.Send(context.Background(), req); err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestSendNetworkErrorWrapped(t *testing.T) {
	exec := New(Options{Product: "slumber", Version: "test", LargeBodySize: 1 << 20})
	req := &model.Request{ID: model.NewRequestId(), Method: http.MethodGet, URL: "http://127.0.0.1:1"}

	_, err := exec.Send(context.Background(), req)
	if err == nil {
		t.Fatal("expected a network error")
	}
}
