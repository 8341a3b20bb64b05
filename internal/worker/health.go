package worker

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// Pinger reports whether a collaborator is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health tracks relay liveness. The loop is considered alive while its last
// completed poll is within three poll intervals.
type Health struct {
	mu       sync.RWMutex
	lastPoll time.Time
	interval time.Duration
}

// NewHealth creates a liveness tracker for a loop running at interval.
func NewHealth(interval time.Duration) *Health {
	return &Health{interval: interval}
}

// RecordPoll marks the loop as having completed a poll now.
func (h *Health) RecordPoll() {
	h.mu.Lock()
	h.lastPoll = time.Now()
	h.mu.Unlock()
}

// Alive reports whether the loop executed within 3x the poll interval.
func (h *Health) Alive() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.lastPoll.IsZero() {
		return false
	}
	return time.Since(h.lastPoll) <= 3*h.interval
}

// HealthRouter exposes the worker's liveness and readiness surfaces:
// /healthz answers from the loop's poll recency, /readyz pings the store and
// the index.
func HealthRouter(h *Health, db Pinger, index Pinger) *chi.Mux {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if !h.Alive() {
			http.Error(w, "relay loop stalled", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			log.Printf("WARN [WorkerHealth] Store not ready: %v", err)
			http.Error(w, "store unreachable", http.StatusServiceUnavailable)
			return
		}
		if err := index.Ping(ctx); err != nil {
			log.Printf("WARN [WorkerHealth] Index not ready: %v", err)
			http.Error(w, "index unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
