// Package ensemble averages the class-1 probabilities of three independently
// trained classifiers.
package ensemble

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/OK-cpu-beep/Energohunt/internal/core/domain"
	"github.com/OK-cpu-beep/Energohunt/internal/core/ports"
)

const Size = 3

type Ensemble struct {
	models []ports.ClassifierModel
}

func New(models []ports.ClassifierModel) (*Ensemble, error) {
	if len(models) != Size {
		return nil, domain.WrapError(domain.ErrArtifact, "assemble ensemble", fmt.Errorf("expected %d models, got %d", Size, len(models)))
	}
	for i, m := range models {
		if m == nil {
			return nil, domain.WrapError(domain.ErrArtifact, "assemble ensemble", fmt.Errorf("model %d is nil", i))
		}
	}
	return &Ensemble{models: slices.Clone(models)}, nil
}

// Train fits every trainer concurrently on the same matrix. Any failure
// cancels the others and fails the whole ensemble.
func Train(ctx context.Context, trainers []ports.ClassifierTrainer, rows [][]float64, labels []int) (*Ensemble, error) {
	if len(trainers) != Size {
		return nil, domain.WrapError(domain.ErrTraining, "train ensemble", fmt.Errorf("expected %d trainers, got %d", Size, len(trainers)))
	}
	models := make([]ports.ClassifierModel, len(trainers))
	g, gctx := errgroup.WithContext(ctx)
	for i, trainer := range trainers {
		g.Go(func() error {
			m, err := trainer.Fit(gctx, rows, labels)
			if err != nil {
				return err
			}
			models[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Ensemble{models: models}, nil
}

func (e *Ensemble) Models() []ports.ClassifierModel {
	return slices.Clone(e.models)
}

func (e *Ensemble) Families() []string {
	out := make([]string, len(e.models))
	for i, m := range e.models {
		out[i] = m.Family()
	}
	return out
}

func (e *Ensemble) PredictProba(ctx context.Context, rows [][]float64) ([]float64, error) {
	member := make([][]float64, len(e.models))
	g, _ := errgroup.WithContext(ctx)
	for i, m := range e.models {
		g.Go(func() error {
			p, err := m.PredictProba(rows)
			if err != nil {
				return err
			}
			if len(p) != len(rows) {
				return domain.WrapError(domain.ErrInvalidInput, "predict "+m.Family(),
					fmt.Errorf("%d probabilities for %d rows", len(p), len(rows)))
			}
			member[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]float64, len(rows))
	for r := range out {
		sum := 0.0
		for _, p := range member {
			sum += p[r]
		}
		out[r] = sum / float64(len(member))
	}
	return out, nil
}
