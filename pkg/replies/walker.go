// Package replies reconstructs the direct reply thread of a post by
// walking the remote search index page by page.
package replies

import (
	"context"
	"fmt"
	"sort"

	"roostdb/pkg/logger"
	"roostdb/pkg/models"
	"roostdb/pkg/telemetry"
)

// SearchClient is the page source for a walk: a bounded id-window query
// against the remote search endpoint.
type SearchClient interface {
	Search(ctx context.Context, query string, sinceID, maxID int64, count int) ([]*models.Post, error)
}

// DefaultPageSize is the search page size used when none is configured.
const DefaultPageSize = 100

// Walker is a lazy, finite, non-restartable sequence of the direct
// replies to one target post. Each Next call yields one reply, fetching
// search pages on demand; fetching a page is the only blocking step.
//
// The walk queries posts addressed to the target's author, lower-bounded
// by the target's own id so older unrelated history is never fetched,
// and keeps only posts whose in-reply-to id equals the target. Replies
// to replies are not expanded: unbounded recursion over popular threads
// would amplify into an arbitrary number of search calls.
type Walker struct {
	svc      SearchClient
	query    string
	targetID int64
	pageSize int
	maxPages int

	maxID   int64
	pages   int
	yielded int
	pending []*models.Post
	done    bool
	err     error
}

// Option adjusts walk bounds.
type Option func(*Walker)

// WithPageSize sets the search page size.
func WithPageSize(n int) Option {
	return func(w *Walker) {
		if n > 0 {
			w.pageSize = n
		}
	}
}

// WithMaxPages caps the number of pages fetched; 0 means no cap.
func WithMaxPages(n int) Option {
	return func(w *Walker) {
		if n > 0 {
			w.maxPages = n
		}
	}
}

// NewWalker prepares a walk over the direct replies to target. Replies
// address the underlying post, so a retweet wrapper resolves to the
// retweeted post before the query is built.
func NewWalker(svc SearchClient, target *models.Post, opts ...Option) (*Walker, error) {
	if target == nil {
		return nil, fmt.Errorf("reply walk: nil target")
	}
	t := target.Canonical()
	if t.User == nil || t.User.Handle == "" {
		return nil, fmt.Errorf("reply walk: post %s has no author handle", t.IDStr)
	}
	w := &Walker{
		svc:      svc,
		query:    "to:" + t.User.Handle,
		targetID: t.ID,
		pageSize: DefaultPageSize,
	}
	for _, o := range opts {
		o(w)
	}
	return w, nil
}

// Next yields the next discovered reply. It returns false when the walk
// is exhausted or aborted; Err distinguishes the two.
func (w *Walker) Next(ctx context.Context) (*models.Post, bool) {
	for {
		if len(w.pending) > 0 {
			p := w.pending[0]
			w.pending = w.pending[1:]
			w.yielded++
			return p, true
		}
		if w.done {
			return nil, false
		}
		w.fetchPage(ctx)
	}
}

// Err returns the error that aborted the walk, or nil after a clean
// termination. Replies yielded before the failure remain valid.
func (w *Walker) Err() error { return w.err }

// Collect drains the walk and returns every reply in thread order,
// oldest first. On abort it returns what was gathered so far.
func (w *Walker) Collect(ctx context.Context) []*models.Post {
	var out []*models.Post
	for {
		p, ok := w.Next(ctx)
		if !ok {
			break
		}
		out = append(out, p)
	}
	SortThread(out)
	return out
}

// SortThread orders replies chronologically, breaking ties on id so
// posts created in the same second keep a stable order.
func SortThread(ps []*models.Post) {
	sort.SliceStable(ps, func(i, j int) bool {
		if !ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].CreatedAt.Before(ps[j].CreatedAt)
		}
		return ps[i].ID < ps[j].ID
	})
}

// fetchPage pulls one search page and queues its matching replies. A
// short page means the index is exhausted; a full page of non-matches
// keeps the walk going, since unrelated posts to the same author can
// fill any number of pages.
func (w *Walker) fetchPage(ctx context.Context) {
	if w.maxPages > 0 && w.pages >= w.maxPages {
		w.finish("page_cap")
		return
	}
	page, err := w.svc.Search(ctx, w.query, w.targetID, w.maxID, w.pageSize)
	if err != nil {
		w.err = err
		w.done = true
		logger.Warn("reply_walk_aborted", "target", w.targetID, "pages", w.pages, "yielded", w.yielded, "error", err)
		return
	}
	w.pages++
	telemetry.WalkPages.Inc()

	var oldest int64
	for _, p := range page {
		if oldest == 0 || p.ID < oldest {
			oldest = p.ID
		}
		if p.InReplyToID == w.targetID {
			w.pending = append(w.pending, p)
		}
	}
	if oldest > 0 {
		w.maxID = oldest - 1
	}
	if len(page) < w.pageSize {
		w.finish("exhausted")
	}
}

func (w *Walker) finish(reason string) {
	w.done = true
	logger.Debug("reply_walk_done", "target", w.targetID, "reason", reason, "pages", w.pages, "matched", w.yielded+len(w.pending))
}
