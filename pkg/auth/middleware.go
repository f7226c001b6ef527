// Package auth guards the local API with an optional static bearer token,
// CORS for the configured UI origins, and per-client rate limiting.
package auth

import (
	"crypto/hmac"
	"net"
	"net/http"
	"strings"

	"roostdb/pkg/logger"
	"roostdb/pkg/utils"
)

// SecConfig drives authentication, CORS and rate limiting for the local
// API. An empty APIToken disables the token check; the server is expected
// to listen on loopback in that mode.
type SecConfig struct {
	APIToken       string
	AllowedOrigins []string
	RPS            float64
	Burst          int
}

// Middleware wraps the API with request logging, CORS handling, token
// authentication and per-client rate limiting. Health probes pass through
// unauthenticated so supervisors can poll them.
func Middleware(cfg SecConfig) func(http.Handler) http.Handler {
	// rate limiters keyed by api token or remote ip
	limiters := newClientLimits(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// log request (redacts sensitive headers)
			logger.LogRequest(r)

			// cors preflight
			origin := r.Header.Get("Origin")
			if origin != "" && originAllowed(origin, cfg.AllowedOrigins) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
				w.Header().Set("Access-Control-Max-Age", "600")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type,X-API-Key,Last-Event-ID")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			// allow unauthenticated health checks for probes
			if (r.URL.Path == "/healthz" || r.URL.Path == "/readyz") && r.Method == http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			token := requestToken(r)
			if cfg.APIToken != "" && !hmac.Equal([]byte(token), []byte(cfg.APIToken)) {
				utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
				logger.Warn("request_unauthorized", "path", r.URL.Path, "remote", r.RemoteAddr)
				return
			}

			// rate limiting keyed by token, falling back to client ip
			key := token
			if key == "" {
				key = clientIP(r)
			}
			if !limiters.allow(key) {
				utils.JSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				logger.Warn("rate_limited", "path", r.URL.Path, "remote", r.RemoteAddr)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// requestToken extracts the caller token, preferring Authorization: Bearer
// and falling back to X-API-Key.
func requestToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		if tok := strings.TrimSpace(auth[7:]); tok != "" {
			return tok
		}
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func originAllowed(origin string, allowed []string) bool {
	if len(allowed) == 0 {
		return false
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
