// Copyright (c) 2026 F11eSync Authors. All rights reserved.
// Use of this source code is governed by the MIT license
// that can be found in the LICENSE file.

package observability

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"
)

// startTime records process start for uptime reporting.
var startTime = time.Now()

// Version is set via ldflags at build time (-X ...Version=x.y.z).
var Version = "dev"

// MetricsProvider is the read-only slice of *server.Engine the
// observability router needs, decoupling this package from the server
// package (which already imports observability for the event store).
type MetricsProvider interface {
	Connected() bool
	SyncDir() string
	BandwidthLimited() bool
}

// NewRouter builds the observability HTTP API: health, metrics, and recent
// events, all gated behind the ACL middleware. events may be nil (Web UI
// still serves health/metrics, but /api/v1/events returns 404).
func NewRouter(metrics MetricsProvider, acl *ACL, events *EventStore) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", handleHealth)
	mux.HandleFunc("GET /api/v1/metrics", makeMetricsHandler(metrics, events))
	if events != nil {
		mux.HandleFunc("GET /api/v1/events", makeEventsHandler(events))
	}

	return acl.Middleware(mux)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Uptime:  time.Since(startTime).String(),
		Version: Version,
		Go:      runtime.Version(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func makeMetricsHandler(metrics MetricsProvider, events *EventStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := MetricsResponse{
			Connected:        metrics.Connected(),
			SyncDir:          metrics.SyncDir(),
			BandwidthLimited: metrics.BandwidthLimited(),
		}
		if events != nil {
			resp.EventsBuffered = events.Len()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// makeEventsHandler returns a handler serving the last N events, N taken
// from the "limit" query parameter (default: all buffered events).
func makeEventsHandler(events *EventStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				limit = n
			}
		}
		writeJSON(w, http.StatusOK, events.Recent(limit))
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
