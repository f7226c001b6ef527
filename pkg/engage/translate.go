package engage

import (
	"context"
	"errors"

	"roostdb/pkg/logger"
	"roostdb/pkg/models"
	"roostdb/pkg/telemetry"
)

// Translate fetches a translation of the post body. The result always
// lands on the canonical post, so translating a retweet translates the
// underlying content once for every view of it. A post already carrying
// a translation resolves immediately; one mid-translation stands down.
func (e *Engine) Translate(ctx context.Context, p *models.Post) <-chan Result {
	out := make(chan Result, 1)
	if p == nil {
		out <- Result{Status: StatusRolledBack, Err: errors.New("nil post")}
		return out
	}
	if e.translator == nil {
		out <- Result{Status: StatusRolledBack, Err: errors.New("no translator configured")}
		return out
	}
	target := p.Canonical()

	e.mu.Lock()
	if target.Extra.Translation != nil {
		e.mu.Unlock()
		out <- Result{Status: StatusConfirmed}
		return out
	}
	if target.Translating {
		e.mu.Unlock()
		out <- Result{Status: StatusSuperseded}
		return out
	}
	target.Translating = true
	e.mu.Unlock()

	e.signal(p, target)
	logger.Action("translate_requested", "id", target.IDStr)

	rctx := context.WithoutCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		tr, err := e.translator.Translate(rctx, target.Text)

		e.mu.Lock()
		target.Translating = false
		if err == nil {
			target.Extra.Translation = tr
		}
		e.mu.Unlock()

		e.persist(p)
		e.signal(p, target)

		if err != nil {
			e.hub.Alert("error", "translation failed")
			telemetry.TranslationsTotal.WithLabelValues("failed").Inc()
			logger.Action("translate_failed", "id", target.IDStr, "error", err)
			out <- Result{Status: StatusRolledBack, Err: err}
			return
		}
		if tr.Unchanged {
			e.hub.Alert("info", "post is already in your language")
			telemetry.TranslationsTotal.WithLabelValues("unchanged").Inc()
		} else {
			telemetry.TranslationsTotal.WithLabelValues("ok").Inc()
		}
		logger.Action("translate_done", "id", target.IDStr, "unchanged", tr.Unchanged)
		out <- Result{Status: StatusConfirmed}
	}()
	return out
}
