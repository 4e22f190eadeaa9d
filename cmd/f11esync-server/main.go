// Copyright (c) 2026 F11eSync Authors. All rights reserved.
// Use of this source code is governed by the MIT license
// that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/f11esync/f11esync/internal/config"
	"github.com/f11esync/f11esync/internal/logging"
	"github.com/f11esync/f11esync/internal/server"
)

func main() {
	defaultConfigPath := "/etc/f11esync/server.yaml"
	if dir, err := os.UserConfigDir(); err == nil {
		defaultConfigPath = dir + "/f11esync/server.yaml"
	}

	configPath := flag.String("config", defaultConfigPath, "path to server config file")
	host := flag.String("host", "", "override server.host from the config file")
	port := flag.String("port", "", "override server.port from the config file")
	dir := flag.String("dir", "", "override server.dir from the config file")
	pathRegex := flag.String("path-regex", "", "override limits.path_regex (single pattern) from the config file")
	enableFileSizeLimit := flag.Bool("enable-file-size-limit", false, "override limits.enable_file_size_limit from the config file")
	maxFileSize := flag.String("max-file-size", "", "override limits.max_file_size from the config file")
	flag.Parse()

	cfg, err := config.LoadServerConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyFlags(flag.CommandLine, host, port, dir, pathRegex, enableFileSizeLimit, maxFileSize)

	logger, closer := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	defer closer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	if err := server.Run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
