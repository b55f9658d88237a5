package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/picknpack/dashboard/internal/app"
	"github.com/picknpack/dashboard/internal/config"
	"github.com/picknpack/dashboard/internal/router"
)

func main() {
	// A missing .env is fine; the environment is used as is.
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := app.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	// The dashboard starts even when the shop API is down; the error is
	// shown until a retry succeeds.
	if err := a.Orders.Refresh(ctx); err != nil {
		logger.Warn("initial order refresh failed", zap.Error(err))
	}

	srv := &http.Server{
		Addr: fmt.Sprintf(":%s", cfg.Port),
		Handler: router.New(cfg, router.Services{
			Orders:        a.Orders,
			Stock:         a.Search,
			Mutations:     a.Stock,
			Notifications: a.Notifier,
		}, a.Hub, logger.Named("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Hub.Run(gctx) })
	g.Go(func() error { return a.Poller.Run(gctx) })
	g.Go(func() error {
		logger.Info("starting server",
			zap.String("addr", srv.Addr),
			zap.String("api_base_url", cfg.APIBaseURL),
			zap.Int64("shop_id", cfg.ShopID))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
