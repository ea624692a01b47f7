package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/August26/nidsclient-go/internal/logging"
	"github.com/August26/nidsclient-go/internal/mockbackend"
)

func main() {
	var (
		addr     string
		interval time.Duration
		verbose  bool
	)
	flag.StringVar(&addr, "addr", ":5000", "listen address")
	flag.DurationVar(&interval, "update-interval", 3*time.Second, "live update period while detection runs")
	flag.BoolVar(&verbose, "verbose", false, "enable debug logs")
	flag.Parse()

	log := logging.NewLogger(verbose, "text")

	backend := mockbackend.New(mockbackend.Options{
		UpdateInterval: interval,
		Logger:         log,
	})
	srv := &http.Server{
		Addr:              addr,
		Handler:           backend.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("mock backend started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		log.Error("server failure", "err", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
