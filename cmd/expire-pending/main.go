// Command expire-pending runs one expiry sweep over stale pending assignments and exits.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/app"
	"github.com/noah-isme/sma-substitute-api/pkg/config"
	"github.com/noah-isme/sma-substitute-api/pkg/logger"
)

func main() {
	timeout := flag.Duration("timeout", 2*time.Minute, "upper bound for the sweep")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	// The bot poller belongs to the API process.
	cfg.Telegram.Enabled = false

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	application, err := app.New(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to build application", zap.Error(err))
	}
	application.Start(ctx)

	count, err := application.Substitutions.ExpireStale(ctx)
	application.Close()
	if err != nil {
		logr.Fatal("expiry sweep failed", zap.Error(err))
	}
	logr.Info("expiry sweep finished", zap.Int64("expired", count), zap.Duration("older_than", cfg.Substitution.ExpireAfter))
}
