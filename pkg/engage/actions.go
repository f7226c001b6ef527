package engage

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"

	"roostdb/pkg/models"
	"roostdb/pkg/twitter"
)

// actionSpec describes one optimistic action family: the flag and
// counter pair it mutates, the remote call behind it, and the rejection
// codes that mean the desired end state already holds remotely.
type actionSpec struct {
	name       string
	idempotent []int
	apply      func(p *models.Post)
	snapshot   func(p *models.Post) (flag bool, count int)
	restore    func(p *models.Post, flag bool, count int)
	call       func(ctx context.Context, svc Service, id string) error
}

func favSnapshot(p *models.Post) (bool, int) { return p.Favorited, p.FavoriteCount }
func favRestore(p *models.Post, flag bool, count int) {
	p.Favorited = flag
	p.FavoriteCount = count
}

func rtSnapshot(p *models.Post) (bool, int) { return p.Retweeted, p.RetweetCount }
func rtRestore(p *models.Post, flag bool, count int) {
	p.Retweeted = flag
	p.RetweetCount = count
}

var actionFavorite = actionSpec{
	name:       "favorite",
	idempotent: []int{twitter.CodeAlreadyFavorited},
	apply: func(p *models.Post) {
		p.Favorited = true
		p.FavoriteCount++
	},
	snapshot: favSnapshot,
	restore:  favRestore,
	call: func(ctx context.Context, svc Service, id string) error {
		return svc.Favorite(ctx, id)
	},
}

// Unfavoriting something already gone counts as done: the user wanted
// the like removed and it is.
var actionUnfavorite = actionSpec{
	name:       "unfavorite",
	idempotent: []int{twitter.CodeNotFound},
	apply: func(p *models.Post) {
		p.Favorited = false
		if p.FavoriteCount > 0 {
			p.FavoriteCount--
		}
	},
	snapshot: favSnapshot,
	restore:  favRestore,
	call: func(ctx context.Context, svc Service, id string) error {
		return svc.Unfavorite(ctx, id)
	},
}

var actionRetweet = actionSpec{
	name:       "retweet",
	idempotent: []int{twitter.CodeAlreadyRetweeted},
	apply: func(p *models.Post) {
		p.Retweeted = true
		p.RetweetCount++
	},
	snapshot: rtSnapshot,
	restore:  rtRestore,
	call: func(ctx context.Context, svc Service, id string) error {
		return svc.Retweet(ctx, id)
	},
}

var actionUnretweet = actionSpec{
	name:       "unretweet",
	idempotent: []int{twitter.CodeNotFound},
	apply: func(p *models.Post) {
		p.Retweeted = false
		if p.RetweetCount > 0 {
			p.RetweetCount--
		}
	},
	snapshot: rtSnapshot,
	restore:  rtRestore,
	call: func(ctx context.Context, svc Service, id string) error {
		return svc.Unretweet(ctx, id)
	},
}

// isIdempotentSuccess reports whether the rejection carries a code from
// the action's idempotent set. Transport failures and unparseable
// bodies never qualify: when in doubt, roll back rather than keep an
// unconfirmed optimistic state.
func isIdempotentSuccess(spec actionSpec, err error) bool {
	ae, ok := twitter.AsAPIError(err)
	if !ok {
		return false
	}
	for _, code := range spec.idempotent {
		if ae.HasCode(code) {
			return true
		}
	}
	return false
}

// failureMessage renders the user-facing text for a rolled-back action.
// Rate limiting gets its own message with a reset estimate when the
// response carried one.
func failureMessage(action string, err error) string {
	if ae, ok := twitter.AsAPIError(err); ok && ae.RateLimited() {
		if d, ok := ae.ResetIn(); ok {
			return "rate limit exceeded, resets " + humanize.Time(time.Now().Add(d))
		}
		return "rate limit exceeded, try again shortly"
	}
	return "could not " + action + " post"
}
