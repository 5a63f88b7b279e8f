package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adaptivelab/experiment-core/internal/expd"
	"github.com/adaptivelab/experiment-core/internal/history"
	"github.com/adaptivelab/experiment-core/pkg/logger"
)

func main() {
	var httpAddr string
	var logLevel string
	var historyPath string

	flag.StringVar(&httpAddr, "http-addr", ":8080", "HTTP listen address")
	flag.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.StringVar(&historyPath, "history-db", "expd.db", "path to the history database, empty disables persistence")
	flag.Parse()

	logger.SetDefault(logger.NewText(logLevel, os.Stdout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	var hist *history.Store
	if historyPath != "" {
		var err error
		hist, err = history.Open(historyPath)
		if err != nil {
			logger.Error("failed to open history database", "path", historyPath, "error", err)
			stop()
			os.Exit(1)
		}
		defer hist.Close()
		logger.Info("history persistence enabled", "path", historyPath)
	}

	store := expd.NewExperimentStore()

	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           expd.NewHTTPServer(store, hist).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info("HTTP server listening", "addr", httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown requested")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
}
