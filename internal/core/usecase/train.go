package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/OK-cpu-beep/Energohunt/internal/core/domain"
)

type TrainUseCase struct {
	stages stages
}

func NewTrainUseCase(deps Dependencies) *TrainUseCase {
	return &TrainUseCase{stages: stages{deps: deps.normalize()}}
}

// Pipeline returns the stages a request runs through. The report is written
// before the bundle so a failed report never leaves a fresh bundle behind.
func (uc *TrainUseCase) Pipeline(req domain.TrainRequest) *Pipeline {
	s := uc.stages
	return s.pipeline(
		s.load(map[domain.Partition]string{
			domain.PartitionTrain:     req.TrainPath,
			domain.PartitionTest:      req.TestPath,
			domain.PartitionUnlabeled: req.UnlabeledPath,
		}, domain.PartitionUnlabeled),
		s.extract(),
		s.encode(),
		s.impute(),
		s.train(),
		s.calibrate(),
		s.report(req.ReportPath),
		s.persist(req.ArtifactPath),
	)
}

func (uc *TrainUseCase) Train(ctx context.Context, req domain.TrainRequest) (*domain.EvaluationReport, error) {
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	state := NewRunState(req.RunID)
	if err := uc.Pipeline(req).Run(ctx, state); err != nil {
		return nil, err
	}
	return state.Evaluation, nil
}
