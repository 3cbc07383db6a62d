// Package statusapi exposes sync state and manual controls over a small
// local HTTP API.
package statusapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dmitrijs2005/gutscan/internal/client/models"
	"github.com/dmitrijs2005/gutscan/internal/client/syncer"
	"github.com/dmitrijs2005/gutscan/internal/logging"
	"github.com/gorilla/mux"
)

type Network interface {
	Status() models.NetworkStatus
	ConnectivityChanged()
}

type Sync interface {
	Stats(ctx context.Context) (syncer.Stats, error)
	Trigger()
	Resync(ctx context.Context) (int64, error)
	Stuck(ctx context.Context) ([]models.QueuedScan, error)
}

type Pending interface {
	PendingScans(ctx context.Context) ([]models.QueuedScan, error)
}

type StatusResponse struct {
	Network models.NetworkStatus `json:"network"`
	Sync    syncer.Stats         `json:"sync"`
}

// PendingScan is the wire view of a queue entry. The analysis stays sealed
// and is not exposed.
type PendingScan struct {
	ID            int64            `json:"id"`
	ClientID      string           `json:"client_id"`
	FoodKey       string           `json:"food_key"`
	State         models.SyncState `json:"state"`
	Attempts      int              `json:"attempts"`
	RecordedAt    string           `json:"recorded_at"`
	LastAttemptAt string           `json:"last_attempt_at,omitempty"`
	LastError     string           `json:"last_error,omitempty"`
}

type handlers struct {
	net     Network
	sync    Sync
	pending Pending
	log     logging.Logger
}

func NewRouter(net Network, sync Sync, pending Pending, logger logging.Logger) *mux.Router {
	if logger == nil {
		logger = logging.Nop()
	}
	h := &handlers{net: net, sync: sync, pending: pending, log: logger.With("module", "statusapi")}

	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.HandleFunc("/status", h.status).Methods(http.MethodGet)
	r.HandleFunc("/scans/pending", h.pendingScans).Methods(http.MethodGet)
	r.HandleFunc("/scans/stuck", h.stuckScans).Methods(http.MethodGet)
	r.HandleFunc("/sync", h.triggerSync).Methods(http.MethodPost)
	r.HandleFunc("/resync", h.resync).Methods(http.MethodPost)
	r.HandleFunc("/connectivity", h.connectivity).Methods(http.MethodPost)
	return r
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	stats, err := h.sync.Stats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Network: h.net.Status(), Sync: stats})
}

func (h *handlers) pendingScans(w http.ResponseWriter, r *http.Request) {
	scans, err := h.pending.PendingScans(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWire(scans))
}

// stuckScans lists the entries that exhausted their attempts, with the last
// error, for diagnostics.
func (h *handlers) stuckScans(w http.ResponseWriter, r *http.Request) {
	scans, err := h.sync.Stuck(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWire(scans))
}

func toWire(scans []models.QueuedScan) []PendingScan {
	out := make([]PendingScan, 0, len(scans))
	for _, s := range scans {
		p := PendingScan{
			ID:         s.ID,
			ClientID:   s.ClientID,
			FoodKey:    s.FoodKey,
			State:      s.State,
			Attempts:   s.Attempts,
			RecordedAt: s.RecordedAt.UTC().Format(timeLayout),
			LastError:  s.LastError,
		}
		if !s.LastAttemptAt.IsZero() {
			p.LastAttemptAt = s.LastAttemptAt.UTC().Format(timeLayout)
		}
		out = append(out, p)
	}
	return out
}

func (h *handlers) triggerSync(w http.ResponseWriter, r *http.Request) {
	h.sync.Trigger()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}

func (h *handlers) resync(w http.ResponseWriter, r *http.Request) {
	n, err := h.sync.Resync(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int64{"reset": n})
}

// connectivity is the hook for platform connectivity-change signals.
func (h *handlers) connectivity(w http.ResponseWriter, r *http.Request) {
	h.net.ConnectivityChanged()
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
