package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/OK-cpu-beep/Energohunt/internal/config"
	"github.com/OK-cpu-beep/Energohunt/internal/core/calibration"
	"github.com/OK-cpu-beep/Energohunt/internal/core/features"
	"github.com/OK-cpu-beep/Energohunt/internal/core/usecase"
	"github.com/OK-cpu-beep/Energohunt/internal/infrastructure/artifact"
	"github.com/OK-cpu-beep/Energohunt/internal/infrastructure/corpus"
	"github.com/OK-cpu-beep/Energohunt/internal/infrastructure/enrichment/overpass"
	"github.com/OK-cpu-beep/Energohunt/internal/infrastructure/gbdt"
	"github.com/OK-cpu-beep/Energohunt/internal/infrastructure/queue/nats"
	"github.com/OK-cpu-beep/Energohunt/internal/infrastructure/report/xlsx"
	"github.com/OK-cpu-beep/Energohunt/internal/infrastructure/repository/postgres"
	"github.com/OK-cpu-beep/Energohunt/internal/infrastructure/resilience"
	"github.com/OK-cpu-beep/Energohunt/internal/infrastructure/storage/localfs"
	"github.com/OK-cpu-beep/Energohunt/internal/observability/logging"
	"github.com/OK-cpu-beep/Energohunt/internal/observability/metrics"
)

// enrichConcurrency bounds in-flight Overpass lookups; the rate limiter
// still spaces the requests themselves.
const enrichConcurrency = 2

type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.PipelineMetrics

	Corpora *corpus.Store
	storage *localfs.Storage
	// Queue is nil when NATS_URL is empty.
	Queue *nats.Queue

	TrainUC  *usecase.TrainUseCase
	LabelUC  *usecase.LabelUseCase
	IngestUC *usecase.IngestUseCase
	EnrichUC *usecase.EnrichUseCase

	closeFns []func()
}

func newApp(cfg config.Config, service string) (*App, error) {
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	storage, err := localfs.New(".")
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	return &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.NewPipelineMetrics(service),
		Corpora: corpus.NewStore(storage),
		storage: storage,
	}, nil
}

func (a *App) connectQueue() error {
	if a.Config.NATSURL == "" {
		return nil
	}
	queue, err := nats.NewWithOptions(a.Config.NATSURL, a.Config.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()),
	})
	if err != nil {
		return fmt.Errorf("init message queue: %w", err)
	}
	a.Queue = queue
	a.closeFns = append(a.closeFns, queue.Close)
	return nil
}

func NewPipelines(cfg config.Config, service string) (*App, error) {
	app, err := newApp(cfg, service)
	if err != nil {
		return nil, err
	}

	grid := calibration.Grid{Min: cfg.ThresholdMin, Max: cfg.ThresholdMax, Steps: cfg.ThresholdSteps}
	if err := grid.Validate(); err != nil {
		return nil, fmt.Errorf("threshold grid: %w", err)
	}

	modelCfg, err := gbdt.LoadConfig(cfg.ModelConfigPath)
	if err != nil {
		return nil, err
	}
	trainers, err := gbdt.NewTrainers(modelCfg)
	if err != nil {
		return nil, fmt.Errorf("init trainers: %w", err)
	}
	for _, t := range trainers {
		if booster, ok := t.(*gbdt.Trainer); ok {
			p := booster.Params()
			app.Logger.Debug("model_configured", "family", booster.Family(), "rounds", p.Rounds,
				"max_depth", p.MaxDepth, "max_leaves", p.MaxLeaves, "learning_rate", p.LearningRate)
		}
	}

	if err := app.connectQueue(); err != nil {
		return nil, err
	}

	deps := usecase.Dependencies{
		Corpora:      app.Corpora,
		Artifacts:    artifact.NewStore(app.storage),
		Codec:        gbdt.NewCodec(),
		Trainers:     trainers,
		Reports:      xlsx.NewWriter(app.storage),
		Extractor:    features.NewExtractor(features.Options{HasBusiness: cfg.FeatureHasBusiness}),
		Grid:         grid,
		Observer:     app.Metrics,
		Logger:       app.Logger,
		StageTimeout: time.Duration(cfg.StageTimeoutSeconds) * time.Second,
	}
	if app.Queue != nil {
		deps.Publisher = app.Queue
	}
	app.TrainUC = usecase.NewTrainUseCase(deps)
	app.LabelUC = usecase.NewLabelUseCase(deps)
	return app, nil
}

func NewIngest(ctx context.Context, cfg config.Config, service string) (*App, error) {
	app, err := newApp(cfg, service)
	if err != nil {
		return nil, err
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	app.closeFns = append(app.closeFns, func() { _ = db.Close() })
	repo := postgres.NewConsumerRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	if err := app.connectQueue(); err != nil {
		app.Close()
		return nil, err
	}

	workerMetrics := metrics.NewWorkerMetrics(service, app.Metrics.Registry())
	app.IngestUC = usecase.NewIngestUseCase(app.Corpora, repo, workerMetrics, app.Logger)
	return app, nil
}

func NewEnrich(cfg config.Config, service string) (*App, error) {
	app, err := newApp(cfg, service)
	if err != nil {
		return nil, err
	}

	policy := resilience.DefaultConfig()
	policy.RatePerSecond = cfg.OverpassRPS
	lookup := overpass.NewBusinessLookup(cfg.OverpassURL, overpass.Options{
		Timeout:            time.Duration(cfg.OverpassTimeoutSeconds) * time.Second,
		MaxParallel:        enrichConcurrency,
		ResilienceExecutor: resilience.NewExecutor(policy),
	})
	app.EnrichUC = usecase.NewEnrichUseCase(app.Corpora, lookup, app.Logger, enrichConcurrency)
	return app, nil
}

func (a *App) FlushMetrics() {
	path := a.Config.MetricsTextfilePath
	if path == "" {
		return
	}
	if err := a.Metrics.WriteTextfile(path); err != nil {
		a.Logger.Warn("metrics_textfile_failed", "path", path, "error", err)
	}
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
