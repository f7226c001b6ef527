package httpx

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/valyala/fasthttp"
)

func TestNetHTTPAdapter(t *testing.T) {
	var got *Request
	var body string
	h := NetHTTPAdapter(func(w ResponseWriter, r *Request) {
		got = r
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Header().Set("X-Out", "1")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("done"))
	})

	r := httptest.NewRequest(http.MethodPost, "/v1/posts/9?debug=1", strings.NewReader("payload"))
	r.Header.Set("X-In", "yes")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusCreated || w.Body.String() != "done" {
		t.Fatalf("response = %d %q", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Out") != "1" {
		t.Fatal("staged header lost")
	}
	if got.Method != http.MethodPost || got.Path != "/v1/posts/9" {
		t.Fatalf("request = %s %s", got.Method, got.Path)
	}
	if got.Query.Get("debug") != "1" || got.Header.Get("X-In") != "yes" {
		t.Fatalf("query/header = %v %v", got.Query, got.Header)
	}
	if body != "payload" {
		t.Fatalf("body = %q", body)
	}
	if got.Ctx == nil {
		t.Fatal("no context")
	}
	if _, ok := got.Raw.(*http.Request); !ok {
		t.Fatalf("raw = %T", got.Raw)
	}
}

func TestNetHTTPAdapterImplicitOK(t *testing.T) {
	h := NetHTTPAdapter(func(w ResponseWriter, r *Request) {
		_, _ = w.Write([]byte("ok"))
	})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("response = %d %q", w.Code, w.Body.String())
	}
}

func TestFastHTTPAdapter(t *testing.T) {
	var got *Request
	var body string
	h := FastHTTPAdapter(func(w ResponseWriter, r *Request) {
		got = r
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Header().Set("X-Out", "1")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("queued"))
	})

	var req fasthttp.Request
	req.Header.SetMethod(http.MethodPost)
	req.SetRequestURI("/v1/posts/9/favorite?verbose=1")
	req.Header.Set("X-API-Key", "tok")
	req.SetBodyString("payload")

	var ctx fasthttp.RequestCtx
	ctx.Init(&req, nil, nil)
	h(&ctx)

	if ctx.Response.StatusCode() != http.StatusAccepted {
		t.Fatalf("status = %d", ctx.Response.StatusCode())
	}
	if string(ctx.Response.Body()) != "queued" {
		t.Fatalf("body = %q", ctx.Response.Body())
	}
	if string(ctx.Response.Header.Peek("X-Out")) != "1" {
		t.Fatal("staged header lost")
	}
	if got.Method != http.MethodPost || got.Path != "/v1/posts/9/favorite" {
		t.Fatalf("request = %s %s", got.Method, got.Path)
	}
	if got.Query.Get("verbose") != "1" || got.Header.Get("X-API-Key") != "tok" {
		t.Fatalf("query/header = %v %v", got.Query, got.Header)
	}
	if body != "payload" {
		t.Fatalf("body = %q", body)
	}
	if _, ok := got.Raw.(*fasthttp.RequestCtx); !ok {
		t.Fatalf("raw = %T", got.Raw)
	}
}

func TestFastHTTPAdapterImplicitOK(t *testing.T) {
	h := FastHTTPAdapter(func(w ResponseWriter, r *Request) {
		_, _ = w.Write([]byte("ok"))
	})

	var req fasthttp.Request
	req.Header.SetMethod(http.MethodGet)
	req.SetRequestURI("/healthz")

	var ctx fasthttp.RequestCtx
	ctx.Init(&req, nil, nil)
	h(&ctx)

	if ctx.Response.StatusCode() != http.StatusOK || string(ctx.Response.Body()) != "ok" {
		t.Fatalf("response = %d %q", ctx.Response.StatusCode(), ctx.Response.Body())
	}
}
