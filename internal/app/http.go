package app

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/valyala/fasthttp"

	"roostdb/pkg/api"
	"roostdb/pkg/api/handlers"
	"roostdb/pkg/auth"
	"roostdb/pkg/banner"
	"roostdb/pkg/httpx"
	"roostdb/pkg/logger"
)

// printBanner prints the startup banner and build info.
func (a *App) printBanner() {
	verStr := a.version
	if a.commit != "none" {
		verStr += " (" + a.commit + ")"
	}
	if a.buildDate != "unknown" {
		verStr += " @ " + a.buildDate
	}
	banner.PrintWithEff(a.eff, verStr)
}

// deps bundles the components the API handlers operate on.
func (a *App) deps() handlers.Deps {
	cfg := a.eff.Config
	return handlers.Deps{
		Engine: a.engine,
		Hub:    a.hub,
		Home:   a.home,
		User:   a.user,
		Store:  a.st,
		DB:     a.db,
		Search: a.remote,
		Codec:  a.pool,

		RefreshHome:  a.refreshHome,
		RefreshUser:  a.refreshUser,
		RunRetention: a.ret.RunOnce,

		RepliesPageSize: cfg.Replies.PageSize,
		RepliesMaxPages: cfg.Replies.MaxPages,
		Version:         a.version,
	}
}

// setupHTTPHandlers sets up all HTTP handlers on the provided mux.
func (a *App) setupHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/readyz", a.readyzHandler)
	mux.HandleFunc("/healthz", healthzHandler)
	mux.Handle("/", api.Handler(a.deps()))
	mux.Handle("/docs/", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	mux.Handle("/openapi.yaml", http.FileServer(http.Dir("./docs")))
	mux.Handle("/metrics", promhttp.Handler())
}

// readyzHandler handles the /readyz endpoint.
func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	if !a.db.Ready() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("{\"status\":\"not ready\"}"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	// include the running version to help verify what binary is active
	ver := a.version
	if ver == "" {
		ver = "dev"
	}
	_, _ = w.Write([]byte("{\"status\":\"ok\",\"version\":\"" + ver + "\"}"))
}

// healthzHandler handles the /healthz endpoint.
func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("{\"status\":\"ok\"}"))
}

// startHTTP builds the handler, starts the HTTP server in a goroutine and
// returns a channel that will contain any server error.
func (a *App) startHTTP(_ context.Context) <-chan error {
	mux := http.NewServeMux()
	a.setupHTTPHandlers(mux)

	cfg := a.eff.Config
	secCfg := auth.SecConfig{
		APIToken:       cfg.Security.APIToken,
		AllowedOrigins: append([]string{}, cfg.Security.CORS.AllowedOrigins...),
		RPS:            cfg.Security.RateLimit.RPS,
		Burst:          cfg.Security.RateLimit.Burst,
	}
	wrapped := auth.Middleware(secCfg)(mux)

	a.srv = &http.Server{Addr: a.eff.Addr, Handler: wrapped}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http_listening", "addr", a.eff.Addr)
		errCh <- a.srv.ListenAndServe()
	}()
	return errCh
}

// startFastActions starts the dedicated fasthttp listener for the action
// endpoints when server.actions.transport is "fast". It returns a nil
// channel otherwise, which blocks forever in the caller's select.
func (a *App) startFastActions(_ context.Context) <-chan error {
	cfg := a.eff.Config
	if cfg.Server.Actions.Transport != "fast" {
		return nil
	}

	handler := httpx.FastHTTPAdapter(api.ActionHandler(a.deps(), cfg.Security.APIToken))
	a.fastSrv = &fasthttp.Server{
		Handler: handler,
		Name:    "roostdb-actions",
	}
	addr := a.actionsAddr()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("actions_listening", "addr", addr, "transport", "fast")
		errCh <- a.fastSrv.ListenAndServe(addr)
	}()
	return errCh
}

func (a *App) stopFastActions() {
	if a.fastSrv == nil {
		return
	}
	if err := a.fastSrv.Shutdown(); err != nil {
		logger.Warn("actions_shutdown_failed", "error", err)
	}
}

// actionsAddr derives the fast listener address: the API host with the
// configured actions port, one above the API port when unset.
func (a *App) actionsAddr() string {
	cfg := a.eff.Config
	host := cfg.Server.Address
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Server.Actions.Port
	if port == 0 {
		base := cfg.Server.Port
		if base == 0 {
			base = 7700
		}
		port = base + 1
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
