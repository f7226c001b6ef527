package logger

import (
	"net/http"
	"sort"
	"strings"
)

// Headers that carry the local API token or session material. Their
// values never reach a log line; the daemon's own token would otherwise
// end up in every request record.
func sensitiveHeader(name string) bool {
	switch strings.ToLower(name) {
	case "authorization", "x-api-key", "cookie":
		return true
	}
	return false
}

func headerSummary(h http.Header) string {
	parts := make([]string, 0, len(h))
	for name, vals := range h {
		if len(vals) == 0 {
			continue
		}
		v := vals[0]
		if sensitiveHeader(name) {
			v = "<redacted>"
		}
		parts = append(parts, name+"="+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// LogRequest records one line per API request with token-bearing header
// values redacted.
func LogRequest(r *http.Request) {
	if Log == nil {
		return
	}
	Log.Debug("api_request",
		"method", r.Method,
		"path", r.URL.Path,
		"remote", r.RemoteAddr,
		"headers", headerSummary(r.Header),
	)
}
