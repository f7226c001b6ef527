package api

import (
	"crypto/hmac"
	"net/http"
	"strconv"
	"strings"

	"roostdb/pkg/api/handlers"
	"roostdb/pkg/httpx"
	"roostdb/pkg/utils"
)

// The action fast path lives in this file. It is a thin handler meant for
// the dedicated fasthttp listener: it applies the optimistic mutation and
// returns 202 immediately. Reconciliation outcomes reach the UI through
// the event stream; callers who want to block on the outcome use the main
// transport with ?wait=1.

// ActionHandler serves POST /v1/posts/{id}/{action} on the fast listener.
// An empty token disables the auth check, mirroring the main transport.
func ActionHandler(d handlers.Deps, token string) httpx.HandlerFunc {
	return func(w httpx.ResponseWriter, r *httpx.Request) {
		if r.Method != http.MethodPost {
			utils.JSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if token != "" && !hmac.Equal([]byte(fastToken(r)), []byte(token)) {
			utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		id, action, ok := parseActionPath(r.Path)
		if !ok {
			utils.JSONError(w, http.StatusNotFound, "not found")
			return
		}
		p, _ := d.Lookup(id)
		if p == nil {
			utils.JSONError(w, http.StatusNotFound, "post not found")
			return
		}

		switch action {
		case "favorite":
			d.Engine.Favorite(r.Ctx, p)
		case "unfavorite":
			d.Engine.Unfavorite(r.Ctx, p)
		case "retweet":
			d.Engine.Retweet(r.Ctx, p)
		case "unretweet":
			d.Engine.Unretweet(r.Ctx, p)
		case "translate":
			d.Engine.Translate(r.Ctx, p)
		default:
			utils.JSONError(w, http.StatusNotFound, "unknown action")
			return
		}

		_ = utils.JSONWrite(w, http.StatusAccepted, struct {
			ID     int64  `json:"id"`
			Action string `json:"action"`
			Status string `json:"status"`
		}{ID: id, Action: action, Status: "applied"})
	}
}

// parseActionPath splits /v1/posts/{id}/{action} into its parts.
func parseActionPath(path string) (int64, string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 4 || parts[0] != "v1" || parts[1] != "posts" {
		return 0, "", false
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	return id, parts[3], true
}

func fastToken(r *httpx.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		if tok := strings.TrimSpace(auth[7:]); tok != "" {
			return tok
		}
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}
