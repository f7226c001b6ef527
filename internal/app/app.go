package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/valyala/fasthttp"

	"roostdb/internal/retention"
	"roostdb/pkg/cache"
	"roostdb/pkg/codec"
	"roostdb/pkg/config"
	"roostdb/pkg/engage"
	"roostdb/pkg/logger"
	"roostdb/pkg/notify"
	"roostdb/pkg/sensor"
	"roostdb/pkg/state"
	"roostdb/pkg/store"
	"roostdb/pkg/twitter"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	db   *store.DB
	st   *store.Store
	pool *codec.Pool

	hub    *notify.Hub
	home   *cache.TimelineCache
	user   *cache.TimelineCache
	engine *engage.Engine

	remote     *twitter.V1Client
	translator *twitter.Translator
	ret        *retention.Runner

	srv     *http.Server
	fastSrv *fasthttp.Server
}

// New initializes resources that do not require a running context (state
// dirs, codec pool, store, caches, engine). It does not start the refresh
// loop, the retention runner or the HTTP server; call Run to start those
// and block until shutdown.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	// validate effective config early and fail fast
	if err := validateConfig(eff); err != nil {
		return nil, err
	}
	cfg := eff.Config

	config.SetRuntime(&config.RuntimeConfig{
		APIToken:       cfg.Security.APIToken,
		AllowedOrigins: append([]string{}, cfg.Security.CORS.AllowedOrigins...),
	})

	if err := state.EnsureStateDirs(eff.DBPath); err != nil {
		return nil, fmt.Errorf("state dirs under %s: %w", eff.DBPath, err)
	}
	if cfg.Logging.Activity {
		if err := logger.AttachActivitySink(state.ActivityPath(eff.DBPath)); err != nil {
			return nil, fmt.Errorf("activity sink: %w", err)
		}
	}

	pool := codec.NewPool(cfg.Codec.Workers, cfg.Codec.QueueDepth, cfg.Codec.MaxPooledBufferBytes.Int64())

	db, err := store.Open(state.StorePath(eff.DBPath), store.Options{
		CacheSize:  cfg.Storage.CacheSize.Int64(),
		SyncWrites: cfg.Storage.SyncWrites,
		Codec:      pool,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", eff.DBPath, err)
	}
	if err := db.EnsureFormat(cfg.Account.UserID); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store format check: %w", err)
	}
	st := db.ForUser(cfg.Account.UserID)

	hub := notify.NewHub()
	home := cache.NewTimeline("home", st)
	user := cache.NewTimeline("user", st)

	base := twitter.NewHTTPClient(twitter.Options{
		BaseURL:     cfg.Remote.BaseURL,
		Timeout:     cfg.Remote.Timeout.Duration(),
		RPS:         cfg.Remote.RPS,
		Burst:       cfg.Remote.Burst,
		MaxAttempts: cfg.Remote.MaxAttempts,
		BaseBackoff: cfg.Remote.BaseBackoff.Duration(),
	})
	remote := twitter.NewV1Client(base,
		cfg.Remote.ConsumerKey, cfg.Remote.ConsumerSecret,
		cfg.Remote.AccessToken, cfg.Remote.AccessSecret)

	// translator stays nil when no endpoint is configured; the engine
	// rejects translate requests in that case
	var translator *twitter.Translator
	var tr engage.Translator
	if cfg.Translate.Endpoint != "" {
		translator = twitter.NewTranslator(cfg.Translate.Endpoint, cfg.Translate.TargetLang, cfg.Translate.Timeout.Duration())
		tr = translator
	}

	engine := engage.New(remote, tr, hub, home, user)
	ret := retention.New(cfg.Retention, st, state.RetentionPath(eff.DBPath))

	a := &App{
		eff:       eff,
		version:   version,
		commit:    commit,
		buildDate: buildDate,

		db:   db,
		st:   st,
		pool: pool,

		hub:    hub,
		home:   home,
		user:   user,
		engine: engine,

		remote:     remote,
		translator: translator,
		ret:        ret,
	}
	return a, nil
}

// Run starts the retention runner, the timeline refresh loop and the HTTP
// server, and blocks until ctx is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	a.printBanner()

	stopRetention, err := a.ret.Start(ctx)
	if err != nil {
		return err
	}
	defer stopRetention()

	stopSensor := sensor.Watch(ctx, a.db, a.hub, sensor.DefaultThresholds())
	defer stopSensor()

	a.startRefresh(ctx)

	errCh := a.startHTTP(ctx)
	fastErrCh := a.startFastActions(ctx)

	select {
	case <-ctx.Done():
		a.shutdown()
		return nil
	case err := <-errCh:
		a.shutdown()
		return err
	case err := <-fastErrCh:
		a.shutdown()
		return err
	}
}

// shutdown drains the server and releases resources in dependency order:
// listeners first, then the engine (which may still be writing), then the
// codec pool and the store.
func (a *App) shutdown() {
	if a.srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.srv.Shutdown(sctx)
		cancel()
	}
	a.stopFastActions()
	a.engine.Close()
	a.pool.Close()
	if err := a.db.Close(); err != nil {
		logger.Error("store_close_failed", "error", err)
	}
	logger.Info("shutdown_complete")
}
