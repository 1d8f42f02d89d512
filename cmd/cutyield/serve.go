package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/piwi3910/CutYield/internal/api"
	"github.com/piwi3910/CutYield/internal/config"
	"github.com/piwi3910/CutYield/internal/project"
)

var signalNotify = signal.Notify

func (e env) runServe() error {
	opts := []api.HandlerOption{api.WithMinOffcut(e.cfg.MinOffcutDimension)}
	if e.cfg.HistoryEnabled() {
		store, err := project.OpenHistory(context.Background(), e.cfg.HistoryDB)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, api.WithHistory(store))
	}

	handler := api.NewHandler(e.cfg.Sheet(), e.cfg.Kerf, e.logger, opts...)
	router := api.NewRouter(handler, e.logger,
		api.WithLogging(e.cfg.EnableRequestLogging),
		api.WithRateLimit(e.cfg.RateLimitRPS, e.cfg.RateLimitBurst),
	)
	server := newServer(e.cfg, router)

	errCh := make(chan error, 1)
	go func() {
		e.logger.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	done := make(chan struct{})
	go func() {
		shutdown(server, e.cfg.ShutdownGracePeriod, e.logger)
		close(done)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-done:
		return nil
	}
}

// newServer creates the HTTP server from the configured port and timeouts.
func newServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
