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

	httpadapter "github.com/OK-cpu-beep/Energohunt/internal/adapters/http"
	"github.com/OK-cpu-beep/Energohunt/internal/bootstrap"
	"github.com/OK-cpu-beep/Energohunt/internal/config"
	"github.com/OK-cpu-beep/Energohunt/internal/core/domain"
	"github.com/OK-cpu-beep/Energohunt/internal/observability/metrics"
)

const service = "energohunt-ingest"

// topAccounts is how many stored accounts a one-shot ingest logs.
const topAccounts = 10

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewIngest(ctx, cfg, service)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	switch cfg.IngestMode {
	case "worker":
		err = runWorker(ctx, app)
	case "once", "":
		err = runOnce(ctx, app)
	default:
		log.Fatalf("unknown INGEST_MODE %q", cfg.IngestMode)
	}
	if err != nil {
		app.Logger.Error("ingest_failed", "mode", cfg.IngestMode, "error", err)
		app.Close()
		os.Exit(1)
	}
}

func runOnce(ctx context.Context, app *bootstrap.App) error {
	stored, err := app.IngestUC.IngestFile(ctx, app.Config.IngestInputPath)
	if err != nil {
		return err
	}
	top, err := app.IngestUC.TopConsumers(ctx, topAccounts)
	if err != nil {
		return err
	}
	for i, c := range top {
		probability := 0.0
		if c.Probability != nil {
			probability = *c.Probability
		}
		app.Logger.Info("top_consumer", "rank", i+1, "account_id", c.AccountID,
			"probability", probability, "address", c.Address)
	}
	app.Logger.Info("ingest_finished", "path", app.Config.IngestInputPath, "stored", stored)
	return nil
}

func runWorker(ctx context.Context, app *bootstrap.App) error {
	if app.Queue == nil {
		return errors.New("worker mode requires NATS_URL")
	}

	httpMetrics := metrics.NewHTTPMetrics(service, app.Metrics.Registry())
	router := httpadapter.NewRouter(app.IngestUC, app.Metrics.Handler(), httpMetrics)
	server := &http.Server{
		Addr:              ":" + app.Config.WorkerMetricsPort,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		app.Logger.Info("worker_http_listening", "port", app.Config.WorkerMetricsPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Error("worker_http_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	app.Logger.Info("worker_subscribed", "subject", app.Config.NATSSubject)
	return app.Queue.SubscribeCorpusLabeled(ctx, func(handlerCtx context.Context, event domain.CorpusLabeled) error {
		ingestCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()
		return app.IngestUC.HandleCorpusLabeled(ingestCtx, event)
	})
}
