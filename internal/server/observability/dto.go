// Copyright (c) 2026 F11eSync Authors. All rights reserved.
// Use of this source code is governed by the MIT license
// that can be found in the LICENSE file.

package observability

// HealthResponse is returned by GET /api/v1/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
	Go      string `json:"go"`
}

// MetricsResponse is returned by GET /api/v1/metrics.
type MetricsResponse struct {
	Connected        bool   `json:"connected"`
	SyncDir          string `json:"sync_dir"`
	BandwidthLimited bool   `json:"bandwidth_limited"`
	EventsBuffered   int    `json:"events_buffered"`
}
