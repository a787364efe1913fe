// cmd/worker/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/unclebandit/ngo-backoffice/internal/app"
	"github.com/unclebandit/ngo-backoffice/internal/config"
	"github.com/unclebandit/ngo-backoffice/internal/logger"
)

// The worker consumes queued broadcasts from RabbitMQ and runs them.
func main() {
	configPath := flag.String("config", "config.yaml", "path to yaml config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.MQ.URL == "" {
		log.Fatal("AMQP_URL is required for the worker")
	}

	zl, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("init app", zap.Error(err))
	}
	defer a.Close()

	if err := a.Jobs.Start(ctx); err != nil {
		zl.Fatal("subscribe broadcast jobs", zap.Error(err))
	}

	zl.Info("worker running, waiting for broadcasts", zap.String("queue", cfg.MQ.Queue))
	<-ctx.Done()
	zl.Info("worker stopping, waiting for the running broadcast to flush")
}
