package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qieqieplus/meeting-client/pkg/config"
	"github.com/qieqieplus/meeting-client/pkg/log"
	"github.com/qieqieplus/meeting-client/pkg/tui"
)

func startTUI(cfg *config.Config) {
	// Log lines would corrupt the screen; they only go to the file.
	log.InitWithOutput(cfg.LogLevel, io.Discard, logFileOptions(cfg))

	a, err := newApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start client: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runCtx, stopRun := context.WithCancel(ctx)
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := a.run(runCtx); err != nil && runCtx.Err() == nil {
			log.Errorf("Observer stopped: %v", err)
		}
	}()

	uiErr := tui.Run(ctx, a.observer, a.view)

	shutdownCtx, cancelTimeout := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelTimeout()
	stopRun()
	<-runDone
	a.shutdown(shutdownCtx)

	if uiErr != nil {
		fmt.Fprintf(os.Stderr, "Terminal UI error: %v\n", uiErr)
		os.Exit(1)
	}
}
