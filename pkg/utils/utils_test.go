package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestJSONError(t *testing.T) {
	w := httptest.NewRecorder()
	JSONError(w, http.StatusNotFound, "post not cached")

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["error"] != "post not cached" {
		t.Fatalf("body = %v", body)
	}
}

func TestJSONWrite(t *testing.T) {
	w := httptest.NewRecorder()
	if err := JSONWrite(w, http.StatusAccepted, map[string]int{"n": 3}); err != nil {
		t.Fatal(err)
	}
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"n":3}` {
		t.Fatalf("body = %q", got)
	}
}

func TestWriteEvent(t *testing.T) {
	w := httptest.NewRecorder()
	if err := WriteEvent(w, "post", map[string]int64{"id": 9}); err != nil {
		t.Fatal(err)
	}
	got := w.Body.String()
	if got != "event: post\ndata: {\"id\":9}\n\n" {
		t.Fatalf("frame = %q", got)
	}

	if err := WriteEvent(httptest.NewRecorder(), "post", make(chan int)); err == nil {
		t.Fatal("unencodable payload accepted")
	}
}
