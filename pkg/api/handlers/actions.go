package handlers

import (
	"net/http"

	"roostdb/pkg/engage"
	"roostdb/pkg/utils"

	"github.com/gorilla/mux"
)

// RegisterActions registers the optimistic mutation endpoints. Each action
// applies locally before the remote call; the response reports the applied
// state unless the caller asks to wait for reconciliation.
func RegisterActions(r *mux.Router, d Deps) {
	r.HandleFunc("/posts/{id}/favorite", d.action("favorite")).Methods(http.MethodPost)
	r.HandleFunc("/posts/{id}/unfavorite", d.action("unfavorite")).Methods(http.MethodPost)
	r.HandleFunc("/posts/{id}/retweet", d.action("retweet")).Methods(http.MethodPost)
	r.HandleFunc("/posts/{id}/unretweet", d.action("unretweet")).Methods(http.MethodPost)
	r.HandleFunc("/posts/{id}/translate", d.action("translate")).Methods(http.MethodPost)
}

type actionResponse struct {
	ID     int64  `json:"id"`
	Action string `json:"action"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (d Deps) action(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			badID(w)
			return
		}
		p, _ := d.Lookup(id)
		if p == nil {
			utils.JSONError(w, http.StatusNotFound, "post not found")
			return
		}

		var ch <-chan engage.Result
		switch name {
		case "favorite":
			ch = d.Engine.Favorite(r.Context(), p)
		case "unfavorite":
			ch = d.Engine.Unfavorite(r.Context(), p)
		case "retweet":
			ch = d.Engine.Retweet(r.Context(), p)
		case "unretweet":
			ch = d.Engine.Unretweet(r.Context(), p)
		case "translate":
			ch = d.Engine.Translate(r.Context(), p)
		default:
			utils.JSONError(w, http.StatusNotFound, "unknown action")
			return
		}

		if !waitRequested(r) {
			_ = utils.JSONWrite(w, http.StatusAccepted, actionResponse{ID: id, Action: name, Status: "applied"})
			return
		}

		select {
		case res := <-ch:
			out := actionResponse{ID: id, Action: name, Status: res.Status.String()}
			if res.Err != nil {
				out.Error = res.Err.Error()
			}
			_ = utils.JSONWrite(w, http.StatusOK, out)
		case <-r.Context().Done():
			// reconciliation continues in the background; the caller only
			// gave up on observing it
			utils.JSONError(w, http.StatusGatewayTimeout, "still reconciling")
		}
	}
}

func waitRequested(r *http.Request) bool {
	switch r.URL.Query().Get("wait") {
	case "1", "true", "yes":
		return true
	}
	return false
}
