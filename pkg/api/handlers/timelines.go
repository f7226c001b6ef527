package handlers

import (
	"net/http"

	"roostdb/pkg/logger"
	"roostdb/pkg/models"
	"roostdb/pkg/utils"

	"github.com/gorilla/mux"
)

// RegisterTimelines registers the timeline read and refresh endpoints.
func RegisterTimelines(r *mux.Router, d Deps) {
	r.HandleFunc("/timelines/{name}", d.getTimeline).Methods(http.MethodGet)
	r.HandleFunc("/timelines/{name}/refresh", d.refreshTimeline).Methods(http.MethodPost)
}

func (d Deps) getTimeline(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	tl := d.Timeline(name)
	if tl == nil {
		utils.JSONError(w, http.StatusNotFound, "unknown timeline")
		return
	}
	posts := tl.Posts()
	if limit := queryInt(r, "limit", 0); limit > 0 && limit < len(posts) {
		posts = posts[:limit]
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Timeline string         `json:"timeline"`
		Count    int            `json:"count"`
		Posts    []*models.Post `json:"posts"`
	}{Timeline: name, Count: len(posts), Posts: posts})
}

func (d Deps) refreshTimeline(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	tl := d.Timeline(name)
	if tl == nil {
		utils.JSONError(w, http.StatusNotFound, "unknown timeline")
		return
	}
	refresh := d.RefreshHome
	if name == "user" {
		refresh = d.RefreshUser
	}
	if refresh == nil {
		utils.JSONError(w, http.StatusServiceUnavailable, "refresh not configured")
		return
	}
	if err := refresh(r.Context()); err != nil {
		logger.Warn("refresh_request_failed", "timeline", name, "err", err.Error())
		utils.JSONError(w, http.StatusBadGateway, "refresh failed: "+err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Timeline string `json:"timeline"`
		Count    int    `json:"count"`
	}{Timeline: name, Count: tl.Len()})
}
