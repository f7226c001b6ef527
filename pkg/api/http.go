// Package api builds the local HTTP surface: timeline reads, optimistic
// actions, the reply walk, the event stream and the admin routes.
package api

import (
	"net/http"

	"roostdb/pkg/api/handlers"
	"roostdb/pkg/telemetry"

	"github.com/gorilla/mux"
)

// Handler assembles the versioned API router. Auth and CORS wrap it one
// level up so the same router can be mounted bare in tests.
func Handler(d handlers.Deps) http.Handler {
	r := mux.NewRouter()
	r.Use(telemetry.Middleware)

	v1 := r.PathPrefix("/v1").Subrouter()
	handlers.RegisterTimelines(v1, d)
	handlers.RegisterPosts(v1, d)
	handlers.RegisterActions(v1, d)
	handlers.RegisterEvents(v1, d)

	admin := r.PathPrefix("/admin").Subrouter()
	handlers.RegisterAdmin(admin, d)

	return r
}
