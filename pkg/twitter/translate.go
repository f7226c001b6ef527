package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"roostdb/pkg/models"
)

// ErrNoTranslator is returned when no translation endpoint is configured.
var ErrNoTranslator = errors.New("translation endpoint not configured")

// Translator calls a LibreTranslate-compatible endpoint. It is separate
// from the signed client: translation is a different service with its
// own availability.
type Translator struct {
	endpoint   string
	target     string
	httpClient *http.Client
}

// NewTranslator builds a translator targeting the given language.
func NewTranslator(endpoint, targetLang string, timeout time.Duration) *Translator {
	if targetLang == "" {
		targetLang = "en"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Translator{
		endpoint:   endpoint,
		target:     targetLang,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Translate returns the text in the target language. The Unchanged flag
// is set when the service handed the input back, which callers surface
// as "already in your language" instead of showing a no-op translation.
func (t *Translator) Translate(ctx context.Context, text string) (*models.Translation, error) {
	if t == nil || t.endpoint == "" {
		return nil, ErrNoTranslator
	}
	payload, err := json.Marshal(map[string]string{
		"q":      text,
		"source": "auto",
		"target": t.target,
		"format": "text",
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("translate status %d", resp.StatusCode)
	}
	var raw struct {
		TranslatedText string `json:"translatedText"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode translation: %w", err)
	}
	out := &models.Translation{Text: raw.TranslatedText}
	if strings.EqualFold(strings.TrimSpace(raw.TranslatedText), strings.TrimSpace(text)) {
		out.Unchanged = true
	}
	return out, nil
}
