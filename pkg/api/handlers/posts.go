package handlers

import (
	"net/http"

	"roostdb/pkg/logger"
	"roostdb/pkg/models"
	"roostdb/pkg/replies"
	"roostdb/pkg/utils"

	"github.com/gorilla/mux"
)

// RegisterPosts registers single-post lookup and the reply thread walk.
func RegisterPosts(r *mux.Router, d Deps) {
	r.HandleFunc("/posts/{id}", d.getPost).Methods(http.MethodGet)
	r.HandleFunc("/posts/{id}/replies", d.getReplies).Methods(http.MethodGet)
}

func (d Deps) getPost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badID(w)
		return
	}
	p, source := d.Lookup(id)
	if p == nil {
		utils.JSONError(w, http.StatusNotFound, "post not found")
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Source string       `json:"source"`
		Post   *models.Post `json:"post"`
	}{Source: source, Post: p})
}

// getReplies walks the reply thread for a post. The walk is bounded by
// the configured page cap; a mid-walk search failure still returns what
// was collected with partial=true.
func (d Deps) getReplies(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badID(w)
		return
	}
	if d.Search == nil {
		utils.JSONError(w, http.StatusServiceUnavailable, "search not configured")
		return
	}
	target, _ := d.Lookup(id)
	if target == nil {
		utils.JSONError(w, http.StatusNotFound, "post not found")
		return
	}

	opts := []replies.Option{}
	if d.RepliesPageSize > 0 {
		opts = append(opts, replies.WithPageSize(d.RepliesPageSize))
	}
	if d.RepliesMaxPages > 0 {
		opts = append(opts, replies.WithMaxPages(d.RepliesMaxPages))
	}
	walker, err := replies.NewWalker(d.Search, target, opts...)
	if err != nil {
		utils.JSONError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	found := walker.Collect(r.Context())
	resp := struct {
		Target  int64          `json:"target"`
		Count   int            `json:"count"`
		Partial bool           `json:"partial,omitempty"`
		Error   string         `json:"error,omitempty"`
		Replies []*models.Post `json:"replies"`
	}{Target: id, Count: len(found), Replies: found}
	if werr := walker.Err(); werr != nil {
		resp.Partial = true
		resp.Error = werr.Error()
		logger.Warn("reply_walk_partial", "post", id, "collected", len(found), "err", werr.Error())
	}
	_ = utils.JSONWrite(w, http.StatusOK, resp)
}
