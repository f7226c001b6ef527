package app

import (
	"context"
	"time"

	"roostdb/pkg/logger"
	"roostdb/pkg/telemetry"
)

// startRefresh launches the periodic timeline refresh loop. The first
// cycle runs immediately; when the remote is unreachable on that first
// pass the home cache is hydrated from the store instead so the reader
// has something to show offline.
func (a *App) startRefresh(ctx context.Context) {
	interval := a.eff.Config.Timeline.RefreshInterval.Duration()
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	go a.refreshLoop(ctx, interval)
}

func (a *App) refreshLoop(ctx context.Context, interval time.Duration) {
	if err := a.refreshHome(ctx); err != nil && a.eff.Config.Timeline.HydrateEnabled() {
		n := a.home.Hydrate(a.pageSize())
		logger.Info("timeline_hydrated", "timeline", "home", "posts", n)
	}
	if err := a.refreshUser(ctx); err != nil {
		logger.Debug("user_timeline_initial_fetch_failed", "error", err)
	}

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_ = a.refreshHome(ctx)
			_ = a.refreshUser(ctx)
		}
	}
}

// refreshHome fetches the home timeline. Once the cache has entries only
// posts newer than the newest cached id are requested and prepended;
// otherwise the whole window is replaced.
func (a *App) refreshHome(ctx context.Context) error {
	var sinceID int64
	if posts := a.home.Posts(); len(posts) > 0 {
		sinceID = posts[0].ID
	}
	fresh, err := a.remote.HomeTimeline(ctx, a.pageSize(), sinceID)
	if err != nil {
		telemetry.RefreshTotal.WithLabelValues("home", "fetch_failed").Inc()
		logger.Warn("timeline_refresh_failed", "timeline", "home", "error", err)
		return err
	}
	if sinceID > 0 {
		err = a.home.Prepend(fresh)
	} else {
		err = a.home.Replace(fresh)
	}
	if err != nil {
		// the in-memory view is already updated; the stored copy catches
		// up on the next successful cycle
		telemetry.RefreshTotal.WithLabelValues("home", "persist_failed").Inc()
		logger.Warn("timeline_persist_failed", "timeline", "home", "error", err)
		return nil
	}
	telemetry.RefreshTotal.WithLabelValues("home", "ok").Inc()
	logger.Debug("timeline_refreshed", "timeline", "home", "fetched", len(fresh))
	return nil
}

// refreshUser replaces the user timeline with the account's own recent
// posts.
func (a *App) refreshUser(ctx context.Context) error {
	fresh, err := a.remote.UserTimeline(ctx, a.eff.Config.Account.Handle, a.pageSize())
	if err != nil {
		telemetry.RefreshTotal.WithLabelValues("user", "fetch_failed").Inc()
		logger.Warn("timeline_refresh_failed", "timeline", "user", "error", err)
		return err
	}
	if err := a.user.Replace(fresh); err != nil {
		telemetry.RefreshTotal.WithLabelValues("user", "persist_failed").Inc()
		logger.Warn("timeline_persist_failed", "timeline", "user", "error", err)
		return nil
	}
	telemetry.RefreshTotal.WithLabelValues("user", "ok").Inc()
	logger.Debug("timeline_refreshed", "timeline", "user", "fetched", len(fresh))
	return nil
}

func (a *App) pageSize() int {
	if n := a.eff.Config.Timeline.PageSize; n > 0 {
		return n
	}
	return 50
}
