// Copyright (c) 2026 F11eSync Authors. All rights reserved.
// Use of this source code is governed by the MIT license
// that can be found in the LICENSE file.

package server

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// RescanScheduler drives a periodic full-tree rescan (equivalent to a
// client-triggered sync_all) on a cron schedule, catching drift a saturated
// or momentarily-down watcher channel might have missed. Disabled by default
// (config.RescanConfig.Enabled).
type RescanScheduler struct {
	cron *cron.Cron
}

// NewRescanScheduler parses schedule (a standard 5-field cron expression, or
// one of robfig/cron's "@every"/"@daily"-style descriptors) and wires it to
// run e.SyncAll(root) on every tick.
func NewRescanScheduler(schedule string, e *Engine, root string, logger *slog.Logger) (*RescanScheduler, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		logger.Info("rescan: starting scheduled full sync", "root", root)
		e.SyncAll(root)
	})
	if err != nil {
		return nil, err
	}
	return &RescanScheduler{cron: c}, nil
}

// Start begins running the scheduler in its own goroutine.
func (r *RescanScheduler) Start() { r.cron.Start() }

// Stop halts the scheduler, waiting for any in-flight run to finish.
func (r *RescanScheduler) Stop() { <-r.cron.Stop().Done() }
