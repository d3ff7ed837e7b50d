package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
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

	app, err := bootstrap.NewPipelines(cfg, "energohunt-train")
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	runID := uuid.NewString()
	logger := logging.WithRun(app.Logger, runID)
	report, err := app.TrainUC.Train(ctx, domain.TrainRequest{
		RunID:         runID,
		TrainPath:     cfg.TrainCorpusPath,
		TestPath:      cfg.TestCorpusPath,
		UnlabeledPath: cfg.UnlabeledCorpusPath,
		ArtifactPath:  cfg.ArtifactPath,
		ReportPath:    filepath.Join(cfg.ReportDir, "train-"+runID+".xlsx"),
	})
	app.FlushMetrics()
	if err != nil {
		logger.Error("train_failed", "error", err)
		app.Close()
		os.Exit(1)
	}

	final := report.Final
	logger.Info("train_finished",
		"artifact", cfg.ArtifactPath,
		"threshold", report.Thresholds.BestThreshold,
		"balanced_accuracy", final.BalancedAccuracy,
		"f1_commercial", final.Commercial.F1,
		"f1_residential", final.Residential.F1,
	)
}
