package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qieqieplus/meeting-client/pkg/config"
	"github.com/qieqieplus/meeting-client/pkg/log"
	"github.com/qieqieplus/meeting-client/pkg/server"
)

func startServer(cfg *config.Config) {
	log.InitWithOutput(cfg.LogLevel, os.Stdout, logFileOptions(cfg))
	log.Info("Starting server...")

	a, err := newApp(cfg)
	if err != nil {
		log.Fatalf("Failed to start client: %v", err)
	}

	wsServer := server.NewWebSocketServer(a.view, a.observer, a.metrics, cfg.WebSocket)
	httpServer := server.NewHTTPServer(server.Deps{
		Commands: a.observer,
		Views:    a.view,
		Status:   a.controller,
		Settings: a.settings,
		Chat:     a.chat,
		Metrics:  a.metrics,
	}, wsServer)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpServer,
	}

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := a.run(ctx); err != nil && ctx.Err() == nil {
			log.Errorf("Observer stopped: %v", err)
		}
	}()

	go reportUptime(ctx, a)

	go func() {
		log.Infof("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	waitForShutdown(srv, wsServer, a, cancel, runDone)
}

func reportUptime(ctx context.Context, a *app) {
	start := time.Now()
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		a.metrics.SetUptime(start)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func waitForShutdown(srv *http.Server, ws *server.WebSocketServer, a *app, cancel context.CancelFunc, runDone <-chan struct{}) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop

	log.Info("Shutting down server...")

	ctx, cancelTimeout := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelTimeout()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Error during HTTP server shutdown: %v", err)
	} else {
		log.Info("HTTP server shut down successfully")
	}
	ws.CloseAll()

	cancel()
	<-runDone
	a.shutdown(ctx)

	log.Info("Server shutdown complete.")
}

func logFileOptions(cfg *config.Config) log.FileOptions {
	return log.FileOptions{
		Filename:   cfg.LogFile.Path,
		MaxSizeMB:  cfg.LogFile.MaxSizeMB,
		MaxBackups: cfg.LogFile.MaxBackups,
		MaxAgeDays: cfg.LogFile.MaxAgeDays,
	}
}
