// Copyright (c) 2026 F11eSync Authors. All rights reserved.
// Use of this source code is governed by the MIT license
// that can be found in the LICENSE file.

// Package observability provides the lean HTTP API (health, metrics, recent
// events) and JSONL event persistence for f11esync-server.
package observability

import (
	"net"
	"net/http"
)

// ACL controls HTTP access by IP/CIDR. Deny-by-default: only IPs contained
// in at least one CIDR are allowed.
type ACL struct {
	nets   []*net.IPNet
	events *EventStore // optional, set via SetEventStore
}

// NewACL builds an ACL from already-parsed CIDRs (config.WebUIConfig.ParsedCIDRs).
func NewACL(cidrs []*net.IPNet) *ACL {
	return &ACL{nets: cidrs}
}

// SetEventStore wires the same EventStore the Web UI serves at
// /api/v1/events into the ACL, so a denied Web UI request shows up in the
// sync engine's own event history rather than only the process log.
func (a *ACL) SetEventStore(events *EventStore) {
	a.events = events
}

// Middleware returns an http.Handler that checks the remote IP against the
// ACL, responding 403 Forbidden when it isn't covered by any CIDR.
func (a *ACL) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Allowed(r.RemoteAddr) {
			if a.events != nil {
				a.events.PushEvent("warn", "web_ui_denied", r.URL.Path, r.RemoteAddr)
			}
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Allowed reports whether the remote address (host:port) is permitted.
func (a *ACL) Allowed(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		// Might be a bare IP with no port.
		host = remoteAddr
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}

	for _, cidr := range a.nets {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}
