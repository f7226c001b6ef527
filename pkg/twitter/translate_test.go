package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTranslateRoundTrip(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"translatedText":"Hallo Welt"}`))
	}))
	defer srv.Close()

	tr := NewTranslator(srv.URL, "de", time.Second)
	out, err := tr.Translate(context.Background(), "Hello world")
	if err != nil {
		t.Fatal(err)
	}
	if out.Text != "Hallo Welt" || out.Unchanged {
		t.Fatalf("translation = %+v", out)
	}
	if gotBody["q"] != "Hello world" || gotBody["target"] != "de" || gotBody["source"] != "auto" || gotBody["format"] != "text" {
		t.Fatalf("request body = %v", gotBody)
	}
}

func TestTranslateUnchangedDetection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"translatedText":"  hello "}`))
	}))
	defer srv.Close()

	tr := NewTranslator(srv.URL, "en", time.Second)
	out, err := tr.Translate(context.Background(), "Hello")
	if err != nil {
		t.Fatal(err)
	}
	if !out.Unchanged {
		t.Fatal("echoed input not flagged unchanged")
	}
}

func TestTranslateNotConfigured(t *testing.T) {
	var nilT *Translator
	if _, err := nilT.Translate(context.Background(), "x"); !errors.Is(err, ErrNoTranslator) {
		t.Fatalf("nil translator: %v", err)
	}
	tr := NewTranslator("", "en", 0)
	if _, err := tr.Translate(context.Background(), "x"); !errors.Is(err, ErrNoTranslator) {
		t.Fatalf("empty endpoint: %v", err)
	}
}

func TestTranslateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	tr := NewTranslator(srv.URL, "en", time.Second)
	if _, err := tr.Translate(context.Background(), "x"); err == nil {
		t.Fatal("gateway failure swallowed")
	}
}
