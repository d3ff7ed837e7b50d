package gbdt

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/OK-cpu-beep/Energohunt/internal/core/domain"
	"github.com/OK-cpu-beep/Energohunt/internal/core/ports"
)

// Model is a fitted booster: a base log-odds plus the sum of tree outputs.
type Model struct {
	family    string
	params    Params
	baseScore float64
	features  int
	trees     []Tree
}

func (m *Model) Family() string {
	return m.family
}

func (m *Model) Trees() int {
	return len(m.trees)
}

func (m *Model) PredictProba(rows [][]float64) ([]float64, error) {
	out := make([]float64, len(rows))
	for i, row := range rows {
		if len(row) != m.features {
			return nil, domain.WrapError(domain.ErrInvalidInput, "predict "+m.family,
				fmt.Errorf("row %d has %d columns, model expects %d", i, len(row), m.features))
		}
		margin := m.baseScore
		for _, t := range m.trees {
			margin += t.predict(row)
		}
		out[i] = sigmoid(margin)
	}
	return out, nil
}

type modelState struct {
	Params    Params  `json:"params"`
	BaseScore float64 `json:"base_score"`
	Features  int     `json:"features"`
	Trees     []Tree  `json:"trees"`
}

type Codec struct{}

func NewCodec() Codec {
	return Codec{}
}

func (Codec) Encode(model ports.ClassifierModel) (domain.ModelState, error) {
	m, ok := model.(*Model)
	if !ok {
		return domain.ModelState{}, domain.WrapError(domain.ErrArtifact, "encode model", fmt.Errorf("unsupported model type %T", model))
	}
	payload, err := json.Marshal(modelState{
		Params:    m.params,
		BaseScore: m.baseScore,
		Features:  m.features,
		Trees:     m.trees,
	})
	if err != nil {
		return domain.ModelState{}, domain.WrapError(domain.ErrArtifact, "encode "+m.family, err)
	}
	return domain.ModelState{Family: m.family, Payload: payload}, nil
}

func (Codec) Decode(state domain.ModelState) (ports.ClassifierModel, error) {
	op := "decode " + state.Family
	if !slices.Contains(Families, state.Family) {
		return nil, domain.WrapError(domain.ErrArtifact, op, fmt.Errorf("unknown model family %q", state.Family))
	}
	var s modelState
	if err := json.Unmarshal(state.Payload, &s); err != nil {
		return nil, domain.WrapError(domain.ErrArtifact, op, err)
	}
	if s.Features < 1 {
		return nil, domain.WrapError(domain.ErrArtifact, op, fmt.Errorf("model has no features"))
	}
	if !finite(s.BaseScore) {
		return nil, domain.WrapError(domain.ErrArtifact, op, fmt.Errorf("non-finite base score"))
	}
	for i, t := range s.Trees {
		if err := t.validate(s.Features); err != nil {
			return nil, domain.WrapError(domain.ErrArtifact, op, fmt.Errorf("tree %d: %w", i, err))
		}
	}
	return &Model{
		family:    state.Family,
		params:    s.Params,
		baseScore: s.BaseScore,
		features:  s.Features,
		trees:     s.Trees,
	}, nil
}
