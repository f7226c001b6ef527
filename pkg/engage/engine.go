// Package engage is the optimistic action engine. An action mutates the
// local post immediately, signals observers, and reconciles against the
// remote outcome in the background: confirmed outcomes persist, rejected
// ones roll the post back to its pre-action state, and rejections whose
// code says "already done" count as confirmations.
//
// Actions on the same post serialize by invocation order. Every
// invocation stamps the post with a sequence number, and a reconciliation
// that finds a newer stamp stands down without touching state, so a late
// confirmation can never overwrite what a newer action decided.
package engage

import (
	"context"
	"errors"
	"sync"
	"time"

	"roostdb/pkg/cache"
	"roostdb/pkg/logger"
	"roostdb/pkg/models"
	"roostdb/pkg/notify"
	"roostdb/pkg/telemetry"
)

// Service is the remote side of the four flag actions.
type Service interface {
	Favorite(ctx context.Context, id string) error
	Unfavorite(ctx context.Context, id string) error
	Retweet(ctx context.Context, id string) error
	Unretweet(ctx context.Context, id string) error
}

// Translator produces a translation of a post body.
type Translator interface {
	Translate(ctx context.Context, text string) (*models.Translation, error)
}

// Status is the terminal state of one action invocation.
type Status int

const (
	// StatusConfirmed means the remote accepted the action, or rejected
	// it with a code meaning the desired state already held.
	StatusConfirmed Status = iota
	// StatusRolledBack means the post was reverted to its pre-action state.
	StatusRolledBack
	// StatusSuperseded means a newer invocation owns the post's state,
	// so this outcome was discarded without touching it.
	StatusSuperseded
)

func (s Status) String() string {
	switch s {
	case StatusConfirmed:
		return "confirmed"
	case StatusRolledBack:
		return "rolled_back"
	case StatusSuperseded:
		return "superseded"
	}
	return "unknown"
}

// Result resolves an action future. Err carries the remote error for a
// rollback; a confirmed idempotent rejection resolves with a nil Err
// because the user's intent was satisfied.
type Result struct {
	Status Status `json:"status"`
	Err    error  `json:"-"`
}

// Engine coordinates optimistic actions across the timelines that may
// hold a given post. Which timelines those are is fixed at construction;
// a post absent from one is silently skipped when persisting.
type Engine struct {
	svc        Service
	translator Translator
	hub        *notify.Hub
	caches     []*cache.TimelineCache

	mu  sync.Mutex
	seq map[int64]uint64

	wg sync.WaitGroup
}

// New builds an engine reconciling into the given timelines.
func New(svc Service, tr Translator, hub *notify.Hub, caches ...*cache.TimelineCache) *Engine {
	return &Engine{
		svc:        svc,
		translator: tr,
		hub:        hub,
		caches:     caches,
		seq:        make(map[int64]uint64),
	}
}

// Favorite likes the post. The returned future resolves when the remote
// outcome has been reconciled.
func (e *Engine) Favorite(ctx context.Context, p *models.Post) <-chan Result {
	return e.run(ctx, actionFavorite, p)
}

// Unfavorite removes the like from the post.
func (e *Engine) Unfavorite(ctx context.Context, p *models.Post) <-chan Result {
	return e.run(ctx, actionUnfavorite, p)
}

// Retweet shares the post.
func (e *Engine) Retweet(ctx context.Context, p *models.Post) <-chan Result {
	return e.run(ctx, actionRetweet, p)
}

// Unretweet withdraws the share of the post.
func (e *Engine) Unretweet(ctx context.Context, p *models.Post) <-chan Result {
	return e.run(ctx, actionUnretweet, p)
}

// Lookup returns the displayed post with the given id from the first
// timeline holding it, or nil.
func (e *Engine) Lookup(id int64) *models.Post {
	for _, c := range e.caches {
		if p := c.Get(id); p != nil {
			return p
		}
	}
	return nil
}

// Close waits until every in-flight reconciliation has settled.
func (e *Engine) Close() { e.wg.Wait() }

// run applies the optimistic mutation synchronously and hands the
// remote call to a background goroutine. The flag always lands on the
// resolved target: a retweet wrapper is never mutated itself.
func (e *Engine) run(ctx context.Context, spec actionSpec, p *models.Post) <-chan Result {
	out := make(chan Result, 1)
	if p == nil {
		out <- Result{Status: StatusRolledBack, Err: errors.New("nil post")}
		return out
	}
	target := p.Target()

	e.mu.Lock()
	e.seq[target.ID]++
	mySeq := e.seq[target.ID]
	prevFlag, prevCount := spec.snapshot(target)
	spec.apply(target)
	e.mu.Unlock()

	e.signal(p, target)
	e.persist(p)
	logger.Action("action_applied", "action", spec.name, "id", target.IDStr, "seq", mySeq)

	started := time.Now()
	rctx := context.WithoutCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		err := spec.call(rctx, e.svc, target.IDStr)
		e.reconcile(spec, p, target, mySeq, prevFlag, prevCount, err, started, out)
	}()
	return out
}

// reconcile settles one invocation against the remote outcome. The
// sequence check and any revert happen under the same lock as new
// invocations, so a stale outcome observes the newer stamp rather than
// racing the newer action's mutation.
func (e *Engine) reconcile(spec actionSpec, p, target *models.Post, mySeq uint64, prevFlag bool, prevCount int, err error, started time.Time, out chan<- Result) {
	confirmed := err == nil || isIdempotentSuccess(spec, err)

	e.mu.Lock()
	if e.seq[target.ID] != mySeq {
		e.mu.Unlock()
		telemetry.RecordAction(spec.name, "superseded", time.Since(started))
		logger.Action("action_superseded", "action", spec.name, "id", target.IDStr, "seq", mySeq)
		out <- Result{Status: StatusSuperseded, Err: err}
		return
	}
	if !confirmed {
		spec.restore(target, prevFlag, prevCount)
	}
	e.mu.Unlock()

	e.persist(p)
	e.signal(p, target)
	if confirmed {
		telemetry.RecordAction(spec.name, "confirmed", time.Since(started))
		logger.Action("action_confirmed", "action", spec.name, "id", target.IDStr, "idempotent", err != nil)
		out <- Result{Status: StatusConfirmed}
		return
	}
	e.hub.Alert("error", failureMessage(spec.name, err))
	telemetry.RecordAction(spec.name, "rolled_back", time.Since(started))
	logger.Action("action_rolled_back", "action", spec.name, "id", target.IDStr, "error", err)
	out <- Result{Status: StatusRolledBack, Err: err}
}

// persist offers the mutation to every timeline; absent ones no-op.
func (e *Engine) persist(p *models.Post) {
	for _, c := range e.caches {
		c.UpdatePost(p)
	}
}

// signal pings observers of the displayed post, and of the underlying
// post when the mutation landed inside a retweet wrapper.
func (e *Engine) signal(p, target *models.Post) {
	e.hub.Changed(p.ID)
	if target.ID != p.ID {
		e.hub.Changed(target.ID)
	}
}
