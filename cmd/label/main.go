package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/OK-cpu-beep/Energohunt/internal/bootstrap"
	"github.com/OK-cpu-beep/Energohunt/internal/config"
	"github.com/OK-cpu-beep/Energohunt/internal/core/domain"
	"github.com/OK-cpu-beep/Energohunt/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewPipelines(cfg, "energohunt-label")
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	req := domain.LabelRequest{
		RunID:         uuid.NewString(),
		UnlabeledPath: cfg.UnlabeledCorpusPath,
		OutputPath:    cfg.OutputCorpusPath,
		ArtifactPath:  cfg.ArtifactPath,
		Threshold:     cfg.LabelThreshold,
	}
	if cfg.LabelRetrain {
		req.Retrain = true
		req.TrainPath = cfg.TrainCorpusPath
		req.TestPath = cfg.TestCorpusPath
	}

	logger := logging.WithRun(app.Logger, req.RunID)
	summary, err := app.LabelUC.Label(ctx, req)
	app.FlushMetrics()
	if err != nil {
		logger.Error("label_failed", "error", err)
		app.Close()
		os.Exit(1)
	}
	logger.Info("label_finished",
		"output", summary.OutputPath,
		"records", summary.Records,
		"scored", summary.Scored,
		"commercial", summary.Commercial,
		"merge_mismatches", summary.MergeMismatches,
		"threshold", summary.Threshold,
	)
}
