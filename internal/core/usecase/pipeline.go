package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/OK-cpu-beep/Energohunt/internal/core/domain"
	"github.com/OK-cpu-beep/Energohunt/internal/core/encoding"
	"github.com/OK-cpu-beep/Energohunt/internal/core/ensemble"
	"github.com/OK-cpu-beep/Energohunt/internal/core/imputation"
	"github.com/OK-cpu-beep/Energohunt/internal/core/ports"
)

const (
	StageLoad      = "load"
	StageRestore   = "restore"
	StageExtract   = "extract"
	StageEncode    = "encode"
	StageImpute    = "impute"
	StageTrain     = "train"
	StageCalibrate = "calibrate"
	StagePersist   = "persist"
	StageReport    = "report"
	StageScore     = "score"
	StagePropagate = "propagate"
	StageEmit      = "emit"
)

type RunState struct {
	RunID string

	Corpora  map[domain.Partition]*domain.Corpus
	Tables   map[domain.Partition]*domain.FeatureTable
	Matrices map[domain.Partition][][]float64

	Encoding *encoding.CategoryEncoding
	Imputer  *imputation.Imputer
	Ensemble *ensemble.Ensemble

	// BundleThreshold is the calibrated threshold of a restored artifact set.
	BundleThreshold *float64
	Threshold       float64

	Thresholds domain.ThresholdReport
	Evaluation *domain.EvaluationReport
	Artifact   *domain.ArtifactSet

	Scores      []domain.ScoredRow
	Propagation domain.PropagationResult

	// Warnings collects record-local problems that did not abort the run.
	Warnings *multierror.Error
}

func NewRunState(runID string) *RunState {
	return &RunState{
		RunID:    runID,
		Corpora:  make(map[domain.Partition]*domain.Corpus),
		Tables:   make(map[domain.Partition]*domain.FeatureTable),
		Matrices: make(map[domain.Partition][][]float64),
	}
}

func (s *RunState) warn(err error) {
	s.Warnings = multierror.Append(s.Warnings, err)
}

type Stage struct {
	Name string
	Run  func(ctx context.Context, state *RunState) error
}

// Pipeline runs stages in order under a per-stage timeout and stops at the
// first failure.
type Pipeline struct {
	stages       []Stage
	observer     ports.PipelineObserver
	logger       *slog.Logger
	stageTimeout time.Duration
}

func NewPipeline(observer ports.PipelineObserver, logger *slog.Logger, stageTimeout time.Duration, stages ...Stage) *Pipeline {
	if observer == nil {
		observer = noopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		stages:       stages,
		observer:     observer,
		logger:       logger,
		stageTimeout: stageTimeout,
	}
}

func (p *Pipeline) Stages() []string {
	out := make([]string, len(p.stages))
	for i, s := range p.stages {
		out[i] = s.Name
	}
	return out
}

func (p *Pipeline) Run(ctx context.Context, state *RunState) error {
	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("stage %s: %w", stage.Name, err)
		}
		if err := p.runStage(ctx, stage, state); err != nil {
			return fmt.Errorf("stage %s: %w", stage.Name, err)
		}
	}
	return nil
}

func (p *Pipeline) runStage(ctx context.Context, stage Stage, state *RunState) error {
	stageCtx := ctx
	if p.stageTimeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, p.stageTimeout)
		defer cancel()
	}

	started := time.Now()
	err := stage.Run(stageCtx, state)
	elapsed := time.Since(started)
	p.observer.ObserveStage(stage.Name, elapsed.Seconds(), err)

	if err != nil {
		p.logger.Error("stage_failed", "run_id", state.RunID, "stage", stage.Name, "duration_ms", elapsed.Milliseconds(), "error", err)
		return err
	}
	p.logger.Info("stage_finished", "run_id", state.RunID, "stage", stage.Name, "duration_ms", elapsed.Milliseconds())
	return nil
}

type noopObserver struct{}

func (noopObserver) ObserveStage(string, float64, error) {}
func (noopObserver) AddRecords(domain.Partition, int)    {}
func (noopObserver) AddMergeMismatches(int)              {}
func (noopObserver) AddUnknownCategories(int)            {}
func (noopObserver) AddSchemaErrors(int)                 {}
func (noopObserver) SetCalibration(float64, float64)     {}
