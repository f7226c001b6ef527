// Package handlers implements the local API routes. Handlers are wired
// through a Deps value so tests can mount them against fakes.
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"roostdb/pkg/cache"
	"roostdb/pkg/codec"
	"roostdb/pkg/engage"
	"roostdb/pkg/models"
	"roostdb/pkg/notify"
	"roostdb/pkg/replies"
	"roostdb/pkg/store"
	"roostdb/pkg/utils"

	"github.com/gorilla/mux"
)

// Deps carries the shared application state handlers operate on. Refresh
// and retention are injected as closures so this package stays below the
// app wiring layer.
type Deps struct {
	Engine *engage.Engine
	Hub    *notify.Hub
	Home   *cache.TimelineCache
	User   *cache.TimelineCache
	Store  *store.Store
	DB     *store.DB
	Search replies.SearchClient
	Codec  *codec.Pool

	RefreshHome  func(ctx context.Context) error
	RefreshUser  func(ctx context.Context) error
	RunRetention func(ctx context.Context) (int, error)

	RepliesPageSize int
	RepliesMaxPages int

	Version string
}

// Timeline resolves a timeline cache by its route name.
func (d Deps) Timeline(name string) *cache.TimelineCache {
	switch name {
	case "home":
		return d.Home
	case "user":
		return d.User
	}
	return nil
}

// Lookup finds a post in the caches first, then falls back to the store.
// The second return reports where it was found.
func (d Deps) Lookup(id int64) (*models.Post, string) {
	if p := d.Engine.Lookup(id); p != nil {
		return p, "cache"
	}
	if d.Store != nil {
		if ps := d.Store.FindByIDs([]int64{id}); len(ps) == 1 {
			return ps[0], "store"
		}
	}
	return nil, ""
}

// pathID parses the {id} route variable as a post id.
func pathID(r *http.Request) (int64, bool) {
	raw, ok := mux.Vars(r)["id"]
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// queryInt returns a positive integer query parameter or the fallback.
func queryInt(r *http.Request, key string, fallback int) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func badID(w http.ResponseWriter) {
	utils.JSONError(w, http.StatusBadRequest, "invalid post id")
}
