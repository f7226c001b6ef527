package handlers

import (
	"net/http"

	"roostdb/pkg/codec"
	"roostdb/pkg/logger"
	"roostdb/pkg/store"
	"roostdb/pkg/utils"

	"github.com/gorilla/mux"
)

// RegisterAdmin registers the maintenance routes onto the admin subrouter.
func RegisterAdmin(r *mux.Router, d Deps) {
	r.HandleFunc("/health", d.adminHealth).Methods(http.MethodGet)
	r.HandleFunc("/stats", d.adminStats).Methods(http.MethodGet)
	r.HandleFunc("/wipe", d.adminWipe).Methods(http.MethodPost)
	r.HandleFunc("/retention/run", d.adminRetentionRun).Methods(http.MethodPost)
	logger.Info("admin_routes_registered")
}

func (d Deps) adminHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Status  string `json:"status"`
		Service string `json:"service"`
		Version string `json:"version,omitempty"`
	}{Status: "ok", Service: "roostdb", Version: d.Version})
}

func (d Deps) adminStats(w http.ResponseWriter, r *http.Request) {
	stored := 0
	if d.Store != nil {
		n, err := d.Store.Count()
		if err != nil {
			utils.JSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		stored = n
	}

	timelines := map[string]int{}
	if d.Home != nil {
		timelines[d.Home.Name()] = d.Home.Len()
	}
	if d.User != nil {
		timelines[d.User.Name()] = d.User.Len()
	}

	out := struct {
		User          int64          `json:"user"`
		Stored        int            `json:"stored"`
		Timelines     map[string]int `json:"timelines"`
		Codec         codec.Stats    `json:"codec"`
		DroppedEvents uint64         `json:"dropped_events"`
		DB            store.View     `json:"db"`
	}{Timelines: timelines}
	if d.Store != nil {
		out.User = d.Store.User()
	}
	out.Stored = stored
	if d.Codec != nil {
		out.Codec = d.Codec.Stats()
	}
	if d.Hub != nil {
		out.DroppedEvents = d.Hub.Dropped()
	}
	if d.DB != nil {
		out.DB = d.DB.MetricsView()
	}
	_ = utils.JSONWrite(w, http.StatusOK, out)
}

// adminWipe clears the signed-in user's namespace and empties the caches.
// Used on logout so a later sign-in cannot see the previous account.
func (d Deps) adminWipe(w http.ResponseWriter, r *http.Request) {
	if d.Store == nil {
		utils.JSONError(w, http.StatusServiceUnavailable, "store not configured")
		return
	}
	if err := d.Store.Wipe(); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if d.Home != nil {
		d.Home.Clear()
	}
	if d.User != nil {
		d.User.Clear()
	}
	logger.Info("account_wiped", "user", d.Store.User())
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (d Deps) adminRetentionRun(w http.ResponseWriter, r *http.Request) {
	if d.RunRetention == nil {
		utils.JSONError(w, http.StatusServiceUnavailable, "retention not configured")
		return
	}
	deleted, err := d.RunRetention(r.Context())
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Deleted int `json:"deleted"`
	}{Deleted: deleted})
}
