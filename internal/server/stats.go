// Copyright (c) 2026 F11eSync Authors. All rights reserved.
// Use of this source code is governed by the MIT license
// that can be found in the LICENSE file.

package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// RunStatsReporter periodically samples disk and memory usage for the sync
// directory's filesystem and logs/records it, giving an operator a coarse
// signal of resource pressure without a full metrics pipeline. Disabled by
// default (config.StatsConfig.Enabled).
func RunStatsReporter(ctx context.Context, e *Engine, dir string, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = 15 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reportOnce(e, dir, logger)
		}
	}
}

func reportOnce(e *Engine, dir string, logger *slog.Logger) {
	usage, err := disk.Usage(dir)
	if err != nil {
		logger.Warn("stats: reading disk usage", "dir", dir, "error", err)
		return
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		logger.Warn("stats: reading memory usage", "error", err)
		return
	}

	logger.Info("stats",
		"disk_used_percent", usage.UsedPercent,
		"disk_free_bytes", usage.Free,
		"mem_used_percent", vm.UsedPercent,
		"mem_available_bytes", vm.Available,
	)
	e.recordEvent("info", "stats", "", "periodic resource sample")
}
