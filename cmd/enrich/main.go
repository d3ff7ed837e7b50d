package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/OK-cpu-beep/Energohunt/internal/bootstrap"
	"github.com/OK-cpu-beep/Energohunt/internal/config"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewEnrich(cfg, "energohunt-enrich")
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	result, err := app.EnrichUC.Enrich(ctx, cfg.EnrichInputPath, cfg.EnrichOutputPath)
	if err != nil {
		app.Logger.Error("enrich_failed", "error", err)
		app.Close()
		os.Exit(1)
	}
	app.Logger.Info("enrich_finished",
		"output", cfg.EnrichOutputPath,
		"records", result.Records,
		"addresses", result.Addresses,
		"with_business", result.WithBusiness,
		"failed_lookups", result.Failed,
	)
}
