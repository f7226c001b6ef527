package twitter

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(baseURL string) *HTTPClient {
	return NewHTTPClient(Options{
		BaseURL:     baseURL,
		Timeout:     2 * time.Second,
		RPS:         100,
		Burst:       100,
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
	})
}

func newReq(t *testing.T, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	return req
}

func TestDoRetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	resp, err := c.do(context.Background(), newReq(t, srv.URL+"/x"))
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if n := atomic.LoadInt32(&hits); n != 3 {
		t.Fatalf("hits = %d, want 3", n)
	}
}

func TestDoHonorsRetryAfter(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	resp, err := c.do(context.Background(), newReq(t, srv.URL+"/x"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Fatalf("hits = %d, want 2", n)
	}
}

func TestDoDoesNotRetryRateLimits(t *testing.T) {
	var hits int32
	reset := time.Now().Add(10 * time.Minute).Unix()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("x-rate-limit-reset", strconv.FormatInt(reset, 10))
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"errors":[{"code":88,"message":"Rate limit exceeded"}]}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.do(context.Background(), newReq(t, srv.URL+"/x"))
	if err == nil {
		t.Fatal("rate limit swallowed")
	}
	ae, ok := AsAPIError(err)
	if !ok {
		t.Fatalf("err = %T %v", err, err)
	}
	if !ae.RateLimited() {
		t.Fatalf("not flagged rate limited: %+v", ae)
	}
	if _, ok := ae.ResetIn(); !ok {
		t.Fatal("reset timestamp lost")
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("hits = %d, a 429 must not be retried", n)
	}
}

func TestDoGivesUpAfterMaxAttempts(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(Options{BaseURL: srv.URL, RPS: 100, Burst: 100, MaxAttempts: 2, BaseBackoff: time.Millisecond})
	_, err := c.do(context.Background(), newReq(t, srv.URL+"/x"))
	if err == nil {
		t.Fatal("exhausted retries reported success")
	}
	if _, ok := AsAPIError(err); ok {
		t.Fatal("transport-level give-up must not look like a remote rejection")
	}
	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Fatalf("hits = %d, want 2", n)
	}
}

func errResp(status int, header http.Header, body string) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestDecodeAPIError(t *testing.T) {
	t.Run("coded body", func(t *testing.T) {
		err := decodeAPIError(errResp(403, nil, `{"errors":[{"code":139,"message":"You have already favorited this status."},{"code":88,"message":"Rate limit exceeded"}]}`))
		ae, ok := AsAPIError(err)
		if !ok {
			t.Fatalf("err = %T", err)
		}
		if ae.StatusCode != 403 || !ae.HasCode(139) || !ae.HasCode(88) || ae.HasCode(144) {
			t.Fatalf("parsed %+v", ae)
		}
		if ae.Message != "You have already favorited this status." {
			t.Fatalf("message = %q", ae.Message)
		}
	})

	t.Run("malformed body keeps status", func(t *testing.T) {
		err := decodeAPIError(errResp(500, nil, strings.Repeat("x", 300)))
		ae, _ := AsAPIError(err)
		if ae.StatusCode != 500 || len(ae.Codes) != 0 {
			t.Fatalf("parsed %+v", ae)
		}
		if len(ae.Message) != 200 {
			t.Fatalf("message not truncated, len %d", len(ae.Message))
		}
	})

	t.Run("reset header", func(t *testing.T) {
		h := http.Header{}
		h.Set("x-rate-limit-reset", strconv.FormatInt(time.Now().Add(5*time.Minute).Unix(), 10))
		err := decodeAPIError(errResp(429, h, ""))
		ae, _ := AsAPIError(err)
		d, ok := ae.ResetIn()
		if !ok || d <= 0 || d > 5*time.Minute+time.Second {
			t.Fatalf("reset = %v %v", d, ok)
		}
	})
}

func TestAPIErrorPredicates(t *testing.T) {
	if !(&APIError{StatusCode: 429}).RateLimited() {
		t.Fatal("429 not rate limited")
	}
	if !(&APIError{StatusCode: 403, Codes: []int{88}}).RateLimited() {
		t.Fatal("code 88 not rate limited")
	}
	if (&APIError{StatusCode: 403, Codes: []int{139}}).RateLimited() {
		t.Fatal("ordinary rejection flagged rate limited")
	}
	if _, ok := (&APIError{StatusCode: 429}).ResetIn(); ok {
		t.Fatal("reset reported without a timestamp")
	}
	if _, ok := (&APIError{RateLimitReset: time.Now().Add(-time.Minute)}).ResetIn(); ok {
		t.Fatal("reset reported for an already-elapsed window")
	}

	msg := (&APIError{StatusCode: 403, Codes: []int{139}, Message: "already favorited"}).Error()
	for _, want := range []string{"403", "139", "already favorited"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error string %q missing %q", msg, want)
		}
	}
}

func TestRetryAfterParsing(t *testing.T) {
	fallback := 7 * time.Second

	h := http.Header{}
	h.Set("Retry-After", "3")
	if d := retryAfter(&http.Response{Header: h}, fallback); d != 3*time.Second {
		t.Fatalf("seconds form = %v", d)
	}

	h = http.Header{}
	h.Set("Retry-After", time.Now().Add(5*time.Second).UTC().Format(http.TimeFormat))
	if d := retryAfter(&http.Response{Header: h}, fallback); d <= 0 || d > 6*time.Second {
		t.Fatalf("date form = %v", d)
	}

	h = http.Header{}
	h.Set("Retry-After", "soon")
	if d := retryAfter(&http.Response{Header: h}, fallback); d != fallback {
		t.Fatalf("garbage form = %v", d)
	}

	if d := retryAfter(&http.Response{Header: http.Header{}}, fallback); d != fallback {
		t.Fatalf("absent header = %v", d)
	}
}

func TestLimiterDefaults(t *testing.T) {
	l := newLimiter(0, 0)
	if float64(l.Limit()) != 2.0 || l.Burst() != 10 {
		t.Fatalf("defaults = %v/%d", l.Limit(), l.Burst())
	}
	l = newLimiter(5, 20)
	if float64(l.Limit()) != 5.0 || l.Burst() != 20 {
		t.Fatalf("explicit = %v/%d", l.Limit(), l.Burst())
	}
}
