package handlers

import (
	"net/http"
	"time"

	"roostdb/pkg/logger"
	"roostdb/pkg/utils"

	"github.com/gorilla/mux"
)

// RegisterEvents registers the server-sent event stream carrying change
// pings and user-facing alerts.
func RegisterEvents(r *mux.Router, d Deps) {
	r.HandleFunc("/events", d.streamEvents).Methods(http.MethodGet)
}

// streamEvents pushes post-change ids and alerts to the UI. Change events
// carry only the id; the client re-reads the post. A heartbeat comment
// keeps intermediary proxies from closing the idle stream.
func (d Deps) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.JSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	changes, cancelChanges := d.Hub.SubscribeAll()
	defer cancelChanges()
	alerts, cancelAlerts := d.Hub.SubscribeAlerts()
	defer cancelAlerts()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger.Debug("event_stream_open", "remote", r.RemoteAddr)
	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.Debug("event_stream_closed", "remote", r.RemoteAddr)
			return
		case id, open := <-changes:
			if !open {
				return
			}
			if err := utils.WriteEvent(w, "change", map[string]int64{"id": id}); err != nil {
				return
			}
		case a, open := <-alerts:
			if !open {
				return
			}
			if err := utils.WriteEvent(w, "alert", a); err != nil {
				return
			}
		case <-heartbeat.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
