package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"face-match/api/internal/app"
	"face-match/api/internal/config"
	"face-match/api/internal/handle"
	"face-match/api/internal/logger"
)

const (
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Named("server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	a, err := app.New(ctx, cfg, logger.Get())
	if err != nil {
		log.Error(ctx, "startup failed", logger.Error(err))
		os.Exit(1)
	}
	defer func() { _ = a.Close() }()

	opts := []handle.Option{
		handle.WithLogger(log.Named("http")),
		handle.WithMessages(a.Messages),
		handle.WithMaxImageBytes(cfg.MaxImageBytes),
		handle.WithTimeout(cfg.RequestTimeout()),
		handle.WithHealthCheck(a.Ping),
	}
	if a.Journal != nil {
		opts = append(opts, handle.WithAttempts(a.Journal))
	}
	h := handle.New(a.Analyzer, opts...)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h.Routes(cfg.CORSOrigins),
		ReadHeaderTimeout: readHeaderTimeout,
		// a model call may take the whole request timeout
		WriteTimeout: cfg.RequestTimeout() + 10*time.Second,
		IdleTimeout:  idleTimeout,
	}

	go func() {
		log.Info(ctx, "face-match listening", logger.String("addr", srv.Addr), logger.String("model", cfg.GeminiModel))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "http server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
}
