package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/Cheese-Othello/internal/builder"
	appcfg "github.com/park285/Cheese-Othello/internal/config"
	"github.com/park285/Cheese-Othello/internal/obslog"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()
	logger := obslog.L()

	cfg, err := appcfg.Load()
	if err != nil {
		logger.Fatal("config_error", zap.Error(err))
	}

	deps, err := builder.New(context.Background(), cfg)
	if err != nil {
		logger.Fatal("init_error", zap.Error(err))
	}

	wsSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           deps.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 2)
	go func() {
		logger.Info("ws_listen", zap.String("addr", cfg.ListenAddr))
		if err := wsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	if cfg.APIAddr != "" {
		go func() {
			if err := deps.API.ListenAndServe(cfg.APIAddr); err != nil {
				errCh <- err
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutdown_signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("listener_error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	// Hijacked WebSocket connections are not tracked by http.Server; the gateway drops them.
	_ = wsSrv.Shutdown(ctx)
	if cfg.APIAddr != "" {
		_ = deps.API.Shutdown(ctx)
	}
	deps.Close()
	logger.Info("shutdown_complete", zap.Int("rooms", deps.Registry.Len()))
}
