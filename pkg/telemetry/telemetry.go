// Package telemetry registers the process metrics and the HTTP timing
// middleware. Everything is exported through the default prometheus
// registry and served from the /metrics route.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActionsTotal counts optimistic actions by final outcome.
	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roostdb_actions_total",
		Help: "Optimistic actions by kind and final outcome.",
	}, []string{"action", "outcome"})

	// ActionSeconds times the full apply-to-reconcile span of an action.
	ActionSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "roostdb_action_seconds",
		Help:    "Seconds from optimistic apply to reconciliation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})

	// TranslationsTotal counts translation requests by outcome.
	TranslationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roostdb_translations_total",
		Help: "Translation requests by outcome.",
	}, []string{"outcome"})

	// RefreshTotal counts timeline refreshes by outcome.
	RefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roostdb_timeline_refresh_total",
		Help: "Timeline refresh attempts by timeline and outcome.",
	}, []string{"timeline", "outcome"})

	// WalkPages counts search pages fetched by reply walks.
	WalkPages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roostdb_reply_walk_pages_total",
		Help: "Search pages fetched while walking reply threads.",
	})

	// EventsDropped counts change notifications dropped on full streams.
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roostdb_events_dropped_total",
		Help: "Change notifications dropped because a subscriber lagged.",
	})

	httpSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "roostdb_http_request_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "code"})

	httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "roostdb_http_in_flight",
		Help: "HTTP requests currently being served.",
	})

	storeDisk = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "roostdb_store_disk_bytes",
		Help: "Total bytes under the store directory.",
	})
	storeWAL = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "roostdb_store_wal_bytes",
		Help: "Pebble WAL size in bytes.",
	})
	storeL0Files = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "roostdb_store_l0_files",
		Help: "Pebble level-0 sstable count.",
	})
	storeDebt = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "roostdb_store_compaction_debt_bytes",
		Help: "Estimated pebble compaction debt in bytes.",
	})
)

// RecordAction observes one reconciled action.
func RecordAction(action, outcome string, d time.Duration) {
	ActionsTotal.WithLabelValues(action, outcome).Inc()
	ActionSeconds.WithLabelValues(action).Observe(d.Seconds())
}

// RecordStoreView publishes one store snapshot to the gauges.
func RecordStoreView(disk, wal, debt uint64, l0Files int64) {
	storeDisk.Set(float64(disk))
	storeWAL.Set(float64(wal))
	storeDebt.Set(float64(debt))
	storeL0Files.Set(float64(l0Files))
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware times each request under its route template. Install it
// with the router's Use so the matched route is on the context; raw
// paths would blow up label cardinality with every distinct post id.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		httpSeconds.WithLabelValues(r.Method, route, strconv.Itoa(sw.code)).Observe(time.Since(start).Seconds())
	})
}
