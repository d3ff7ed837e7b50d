package usecase

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/OK-cpu-beep/Energohunt/internal/core/calibration"
	"github.com/OK-cpu-beep/Energohunt/internal/core/domain"
)

type LabelUseCase struct {
	stages stages
}

func NewLabelUseCase(deps Dependencies) *LabelUseCase {
	return &LabelUseCase{stages: stages{deps: deps.normalize()}}
}

func (uc *LabelUseCase) Pipeline(req domain.LabelRequest) *Pipeline {
	s := uc.stages
	if req.Retrain {
		return s.pipeline(
			s.load(map[domain.Partition]string{
				domain.PartitionTrain:     req.TrainPath,
				domain.PartitionTest:      req.TestPath,
				domain.PartitionUnlabeled: req.UnlabeledPath,
			}, domain.PartitionTest),
			s.extract(),
			s.encode(),
			s.impute(),
			s.train(),
			s.score(),
			s.propagate(req.Threshold),
			s.emit(req.OutputPath),
		)
	}
	return s.pipeline(
		s.load(map[domain.Partition]string{domain.PartitionUnlabeled: req.UnlabeledPath}),
		s.restore(req.ArtifactPath),
		s.extract(),
		s.encode(),
		s.impute(),
		s.score(),
		s.propagate(req.Threshold),
		s.emit(req.OutputPath),
	)
}

func (uc *LabelUseCase) Label(ctx context.Context, req domain.LabelRequest) (*domain.LabelSummary, error) {
	if req.UnlabeledPath == "" || req.OutputPath == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "label corpus", errors.New("unlabeled and output paths are required"))
	}
	if req.Retrain && req.TrainPath == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "label corpus", errors.New("retraining needs a training corpus"))
	}
	if !req.Retrain && req.ArtifactPath == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "label corpus", errors.New("scoring needs an artifact path"))
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}

	state := NewRunState(req.RunID)
	if err := uc.Pipeline(req).Run(ctx, state); err != nil {
		return nil, err
	}
	return &domain.LabelSummary{
		RunID:             req.RunID,
		OutputPath:        req.OutputPath,
		Records:           state.Corpora[domain.PartitionUnlabeled].Len(),
		PropagationResult: state.Propagation,
	}, nil
}

// ResolveThreshold applies an explicit override first, then the calibrated
// threshold of the artifact set, then the default.
func ResolveThreshold(override, calibrated *float64) float64 {
	switch {
	case override != nil:
		return *override
	case calibrated != nil:
		return *calibrated
	default:
		return calibration.DefaultThreshold
	}
}
