package twitter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Error codes the remote service embeds in rejection bodies. Which of
// them count as "the desired state already holds" depends on the action
// that was attempted; that mapping lives with the reconciler.
const (
	CodeAlreadyFavorited = 139
	CodeAlreadyRetweeted = 327
	CodeNotFound         = 144
)

// APIError is a structured rejection from the remote service. Transport
// failures never produce one; an unparseable rejection body produces one
// with no codes, which downstream logic treats as a plain failure.
type APIError struct {
	StatusCode     int
	Codes          []int
	Message        string
	RateLimitReset time.Time
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "remote rejected: status %d", e.StatusCode)
	if len(e.Codes) > 0 {
		fmt.Fprintf(&b, " codes %v", e.Codes)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	return b.String()
}

// HasCode reports whether code appears anywhere in the rejection list.
func (e *APIError) HasCode(code int) bool {
	for _, c := range e.Codes {
		if c == code {
			return true
		}
	}
	return false
}

// RateLimited reports whether the rejection was a quota exhaustion.
func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.HasCode(88)
}

// ResetIn returns how long until the quota window resets, when the
// response carried a usable reset timestamp.
func (e *APIError) ResetIn() (time.Duration, bool) {
	if e.RateLimitReset.IsZero() {
		return 0, false
	}
	d := time.Until(e.RateLimitReset)
	if d <= 0 {
		return 0, false
	}
	return d, true
}

// AsAPIError unwraps err to an *APIError if one is in the chain.
func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// maxErrorBody bounds how much of a rejection body is read; real error
// payloads are tiny.
const maxErrorBody = 64 << 10

// decodeAPIError drains an error response into an *APIError. The body
// is parsed best-effort: a malformed payload still yields a usable
// error carrying the status code.
func decodeAPIError(resp *http.Response) error {
	defer resp.Body.Close()
	out := &APIError{StatusCode: resp.StatusCode}
	if v := resp.Header.Get("x-rate-limit-reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil && epoch > 0 {
			out.RateLimitReset = time.Unix(epoch, 0)
		}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return out
	}
	var parsed struct {
		Errors []struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Errors) == 0 {
		out.Message = strings.TrimSpace(string(body))
		if len(out.Message) > 200 {
			out.Message = out.Message[:200]
		}
		return out
	}
	for _, e := range parsed.Errors {
		out.Codes = append(out.Codes, e.Code)
		if out.Message == "" {
			out.Message = e.Message
		}
	}
	return out
}
