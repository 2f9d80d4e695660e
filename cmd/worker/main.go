// cmd/worker/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/unclebandit/contractor-followups/internal/app"
	"github.com/unclebandit/contractor-followups/internal/config"
	"github.com/unclebandit/contractor-followups/internal/handler"
	"github.com/unclebandit/contractor-followups/internal/logger"
	"github.com/unclebandit/contractor-followups/internal/metrics"
	"github.com/unclebandit/contractor-followups/internal/service"
	"github.com/unclebandit/contractor-followups/internal/tracing"
)

// The worker runs dispatch cycles on DISPATCH_INTERVAL for deployments without
// an external cron, and exposes /metrics and /health on SERVER_PORT.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg.AppEnv)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logr.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()
	shutdownTracer, err := tracing.InitTracer(ctx, app.ServiceName+"-worker", cfg.OTLPEndpoint, logr)
	if err != nil {
		logr.Fatal("failed to initialize tracing", zap.Error(err))
	}
	defer shutdownTracer()

	a, err := app.New(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to start", zap.Error(err))
	}
	defer a.Close()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", handler.HealthHandler)
	srv := &http.Server{Addr: ":" + cfg.ServerPort, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("metrics server failed", zap.Error(err))
		}
	}()

	service.NewScheduler(a.Dispatcher, cfg.DispatchInterval, logr).Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logr.Info("worker stopped")
}
