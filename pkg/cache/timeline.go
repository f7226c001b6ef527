// Package cache holds the in-memory timeline views layered over the
// record store. Each timeline keeps posts in insertion order with O(1)
// id lookup, and writes every accepted mutation back to storage.
package cache

import (
	"sync"

	"roostdb/pkg/logger"
	"roostdb/pkg/models"
	"roostdb/pkg/store"
)

// TimelineCache is one ordered collection of posts (home feed, own
// profile). Which timelines an action must touch is wired explicitly at
// construction; a post absent from a timeline is silently skipped.
type TimelineCache struct {
	name string
	st   *store.Store

	mu    sync.RWMutex
	order []*models.Post
	index map[int64]int
}

// NewTimeline returns an empty timeline persisting through st.
func NewTimeline(name string, st *store.Store) *TimelineCache {
	return &TimelineCache{
		name:  name,
		st:    st,
		index: make(map[int64]int),
	}
}

// Name returns the timeline's label, used in log events.
func (c *TimelineCache) Name() string { return c.name }

// Len returns the number of cached posts.
func (c *TimelineCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Contains reports whether the timeline holds a post with the given id.
func (c *TimelineCache) Contains(id int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.index[id]
	return ok
}

// Get returns the cached post with the given id, or nil.
func (c *TimelineCache) Get(id int64) *models.Post {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i, ok := c.index[id]; ok {
		return c.order[i]
	}
	return nil
}

// Posts returns a copy of the timeline in display order.
func (c *TimelineCache) Posts() []*models.Post {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*models.Post, len(c.order))
	copy(out, c.order)
	return out
}

// UpdatePost replaces the cached entry matching p's id and persists it.
// Absent posts are a no-op, not an error, so callers can offer a
// mutation to every timeline without knowing which ones hold the post.
// Storage failures are logged and leave the in-memory state as the
// source of truth. Reports whether the post was present.
func (c *TimelineCache) UpdatePost(p *models.Post) bool {
	if p == nil {
		return false
	}
	c.mu.Lock()
	i, ok := c.index[p.ID]
	if ok {
		c.order[i] = p
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	if err := c.st.Put(p); err != nil {
		logger.Error("timeline_persist_failed", "timeline", c.name, "id", p.IDStr, "error", err)
	} else {
		logger.Debug("timeline_post_updated", "timeline", c.name, "id", p.IDStr)
	}
	return true
}

// Replace swaps the timeline content for a freshly fetched page and
// persists the whole page in one atomic batch. Translations already
// stored for any of the incoming posts are carried forward so a refresh
// never discards them. The in-memory swap happens even when the batch
// write fails; the error is returned for the caller to surface.
func (c *TimelineCache) Replace(posts []*models.Post) error {
	posts = dedupe(posts)
	c.carryExtras(posts)

	index := make(map[int64]int, len(posts))
	for i, p := range posts {
		index[p.ID] = i
	}
	c.mu.Lock()
	c.order = posts
	c.index = index
	c.mu.Unlock()
	logger.Info("timeline_replaced", "timeline", c.name, "count", len(posts))

	if err := c.st.PutBatch(posts); err != nil {
		logger.Error("timeline_batch_persist_failed", "timeline", c.name, "count", len(posts), "error", err)
		return err
	}
	return nil
}

// Prepend inserts newer posts at the front, replacing in place any that
// are already cached, and persists the given posts in one batch.
func (c *TimelineCache) Prepend(posts []*models.Post) error {
	posts = dedupe(posts)
	c.carryExtras(posts)

	c.mu.Lock()
	fresh := make([]*models.Post, 0, len(posts))
	for _, p := range posts {
		if i, ok := c.index[p.ID]; ok {
			c.order[i] = p
			continue
		}
		fresh = append(fresh, p)
	}
	if len(fresh) > 0 {
		c.order = append(fresh, c.order...)
		for i, p := range c.order {
			c.index[p.ID] = i
		}
	}
	c.mu.Unlock()

	if err := c.st.PutBatch(posts); err != nil {
		logger.Error("timeline_batch_persist_failed", "timeline", c.name, "count", len(posts), "error", err)
		return err
	}
	return nil
}

// Hydrate fills an empty timeline from storage, newest first. Used at
// startup so cached history is visible before the first remote fetch,
// and as the fallback view when the remote is unreachable.
func (c *TimelineCache) Hydrate(limit int) int {
	posts := c.st.Recent(limit)
	if len(posts) == 0 {
		return 0
	}
	index := make(map[int64]int, len(posts))
	for i, p := range posts {
		index[p.ID] = i
	}
	c.mu.Lock()
	c.order = posts
	c.index = index
	c.mu.Unlock()
	logger.Info("timeline_hydrated", "timeline", c.name, "count", len(posts))
	return len(posts)
}

// Clear drops the in-memory view. Durable records are untouched; pair
// with the store's Wipe when tearing down an identity.
func (c *TimelineCache) Clear() {
	c.mu.Lock()
	c.order = nil
	c.index = make(map[int64]int)
	c.mu.Unlock()
}

// carryExtras copies stored extension data onto incoming posts that lack
// it. The wire never carries translations, so without this a refresh
// would silently drop every translation the user requested.
func (c *TimelineCache) carryExtras(posts []*models.Post) {
	if len(posts) == 0 {
		return
	}
	ids := make([]int64, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	prev := c.st.FindByIDs(ids)
	if len(prev) == 0 {
		return
	}
	byID := make(map[int64]*models.Post, len(prev))
	for _, p := range prev {
		byID[p.ID] = p
	}
	for _, p := range posts {
		old, ok := byID[p.ID]
		if !ok {
			continue
		}
		if p.Canonical().Extra.Translation == nil && old.Canonical().Extra.Translation != nil {
			p.Canonical().Extra.Translation = old.Canonical().Extra.Translation
		}
	}
}

func dedupe(posts []*models.Post) []*models.Post {
	out := posts[:0]
	seen := make(map[int64]struct{}, len(posts))
	for _, p := range posts {
		if p == nil {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}
