// Copyright (c) 2026 F11eSync Authors. All rights reserved.
// Use of this source code is governed by the MIT license
// that can be found in the LICENSE file.

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	socketio "github.com/googollee/go-socket.io"
	"github.com/rs/cors"

	"github.com/f11esync/f11esync/internal/config"
	"github.com/f11esync/f11esync/internal/server/observability"
	"github.com/f11esync/f11esync/internal/watcher"
)

// Run starts the f11esync-server sync engine and blocks until ctx is
// cancelled: it ensures the sync directory exists, starts the filesystem
// watcher, binds the Socket.IO listener with permissive CORS, wires the
// FS-broadcast pump, and optionally starts the domain-stack extras (stats
// reporter, scheduled rescan, observability Web UI).
func Run(ctx context.Context, cfg *config.ServerConfig, logger *slog.Logger) error {
	if err := os.MkdirAll(cfg.Server.Dir, 0755); err != nil {
		return fmt.Errorf("ensuring sync directory exists: %w", err)
	}

	var events *observability.EventStore
	if cfg.WebUI.Enabled {
		store, err := observability.NewEventStore(cfg.WebUI.EventsFile, 1000, cfg.WebUI.EventsMaxLines)
		if err != nil {
			return fmt.Errorf("creating event store: %w", err)
		}
		defer store.Close()
		events = store

		if cfg.S3Archive.Enabled {
			archiveDir := filepath.Join(filepath.Dir(cfg.WebUI.EventsFile), "archive")
			store.SetArchiveDir(archiveDir)

			archiver, err := observability.NewS3Archiver(ctx, cfg.S3Archive.Bucket, cfg.S3Archive.Prefix,
				cfg.S3Archive.Region, cfg.S3Archive.AccessKeyID, cfg.S3Archive.SecretAccessKey, archiveDir, logger)
			if err != nil {
				return fmt.Errorf("configuring s3 archiver: %w", err)
			}
			go archiver.Run(ctx, cfg.S3Archive.Interval)
		}
	}

	engine := NewEngine(cfg, logger, events)

	fsWatcher, err := watcher.New(cfg.Server.Dir, logger)
	if err != nil {
		return fmt.Errorf("starting filesystem watcher: %w", err)
	}

	watcherCtx, cancelWatcher := context.WithCancel(ctx)
	defer cancelWatcher()
	go fsWatcher.Run(watcherCtx)
	go engine.RunFSPump(watcherCtx, cfg.Server.Dir, fsWatcher.Events())

	sio := socketio.NewServer(nil)
	sio.OnConnect("/", engine.OnConnect())
	sio.OnDisconnect("/", engine.OnDisconnect())
	sio.OnError("/", func(s socketio.Conn, e error) {
		logger.Warn("socket.io connection error", "error", e)
	})
	engine.registerEventHandlers(sio, cfg.Server.Dir)

	go func() {
		if err := sio.Serve(); err != nil {
			logger.Error("socket.io server stopped", "error", err)
		}
	}()
	defer sio.Close()

	mux := http.NewServeMux()
	mux.Handle("/socket.io/", sio)
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "f11esync-server is running")
	})

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpSrv := &http.Server{
		Addr:    addr,
		Handler: corsMiddleware.Handler(mux),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info("shutting down server")
		if conn := engine.Session().Socket(); conn != nil {
			conn.Close()
		}
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	if cfg.Stats.Enabled {
		go RunStatsReporter(ctx, engine, cfg.Server.Dir, cfg.Stats.Interval, logger)
	}
	if cfg.Rescan.Enabled {
		scheduler, err := NewRescanScheduler(cfg.Rescan.Schedule, engine, cfg.Server.Dir, logger)
		if err != nil {
			return fmt.Errorf("scheduling rescan: %w", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	if cfg.WebUI.Enabled {
		go startWebUI(ctx, cfg, engine, events, logger)
	}

	logger.Info("server listening", "address", addr, "dir", cfg.Server.Dir)

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}

	logger.Info("server shutdown complete")
	return nil
}

// startWebUI runs the read-only observability HTTP listener (health,
// metrics, recent events) on its own address, gated by an IP/CIDR ACL.
func startWebUI(ctx context.Context, cfg *config.ServerConfig, engine *Engine, events *observability.EventStore, logger *slog.Logger) {
	acl := observability.NewACL(cfg.WebUI.ParsedCIDRs)
	if events != nil {
		acl.SetEventStore(events)
	}
	router := observability.NewRouter(engine, acl, events)

	webSrv := &http.Server{
		Addr:              cfg.WebUI.Listen,
		Handler:           router,
		ReadTimeout:       cfg.WebUI.ReadTimeout,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      cfg.WebUI.WriteTimeout,
		IdleTimeout:       cfg.WebUI.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = webSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("web UI listening", "address", cfg.WebUI.Listen)
	if err := webSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("web UI server error", "error", err)
	}
}
