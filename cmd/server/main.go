// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/ngo-backoffice/internal/app"
	"github.com/unclebandit/ngo-backoffice/internal/config"
	"github.com/unclebandit/ngo-backoffice/internal/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to yaml config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
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

	if a.InProcessQueue() {
		if err := a.Jobs.Start(ctx); err != nil {
			zl.Fatal("subscribe broadcast jobs", zap.Error(err))
		}
		zl.Info("AMQP_URL not set, broadcast jobs run in process")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           newRouter(a),
		ReadHeaderTimeout: 10 * time.Second,
		// Requests share the signal context so a running broadcast is
		// cancelled, and flushed as cancelled, on shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		zl.Info("server running", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("shutdown", zap.Error(err))
	}
	// The deferred Close waits for in-process broadcast jobs to flush.
}
