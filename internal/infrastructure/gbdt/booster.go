package gbdt

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/OK-cpu-beep/Energohunt/internal/core/domain"
	"github.com/OK-cpu-beep/Energohunt/internal/core/ports"
)

// Hessians are floored so leaves of confident rows stay finite.
const minHessian = 1e-16

type Trainer struct {
	family string
	params Params
	grower grower
}

func NewTrainer(family string, params Params) (*Trainer, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%s params: %w", family, err)
	}
	var g grower
	switch family {
	case FamilyDepthwise:
		g = depthwise{}
	case FamilyOblivious:
		g = oblivious{}
	case FamilyLeafwise:
		g = leafwise{}
	default:
		return nil, fmt.Errorf("unknown model family %q", family)
	}
	return &Trainer{family: family, params: params, grower: g}, nil
}

func NewTrainers(cfg Config) ([]ports.ClassifierTrainer, error) {
	out := make([]ports.ClassifierTrainer, 0, len(Families))
	for _, family := range Families {
		params, ok := cfg.Models[family]
		if !ok {
			params, _ = DefaultParams(family)
		}
		t, err := NewTrainer(family, params)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (t *Trainer) Family() string {
	return t.family
}

func (t *Trainer) Params() Params {
	return t.params
}

// Fit boosts Rounds trees on the matrix. The context is checked between
// rounds.
func (t *Trainer) Fit(ctx context.Context, rows [][]float64, labels []int) (ports.ClassifierModel, error) {
	op := "fit " + t.family
	positives, err := checkTrainingSet(rows, labels)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTraining, op, err)
	}

	n, features := len(rows), len(rows[0])
	b := fitBinner(rows, features, t.params.MaxBins)
	binned := b.binAll(rows)
	rng := rand.New(rand.NewPCG(t.params.Seed, stream(t.family)))

	prior := float64(positives) / float64(n)
	base := math.Log(prior / (1 - prior))
	margin := make([]float64, n)
	for i := range margin {
		margin[i] = base
	}
	grad := make([]float64, n)
	hess := make([]float64, n)
	trees := make([]Tree, 0, t.params.Rounds)

	for round := 0; round < t.params.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, domain.WrapError(domain.ErrTraining, op, fmt.Errorf("round %d: %w", round, err))
		}
		for i, y := range labels {
			p := sigmoid(margin[i])
			grad[i] = p - float64(y)
			hess[i] = math.Max(p*(1-p), minHessian)
		}
		state := &growState{
			params:   t.params,
			binner:   b,
			binned:   binned,
			grad:     grad,
			hess:     hess,
			features: sampleColumns(rng, features, t.params.ColSample),
		}
		tree := t.grower.grow(state, sampleRows(rng, n, t.params.Subsample))
		for i, row := range rows {
			margin[i] += tree.predict(row)
		}
		trees = append(trees, tree)
	}

	return &Model{
		family:    t.family,
		params:    t.params,
		baseScore: base,
		features:  features,
		trees:     trees,
	}, nil
}

func checkTrainingSet(rows [][]float64, labels []int) (int, error) {
	if len(rows) == 0 {
		return 0, fmt.Errorf("empty training matrix")
	}
	if len(rows) != len(labels) {
		return 0, fmt.Errorf("%d rows for %d labels", len(rows), len(labels))
	}
	width := len(rows[0])
	if width == 0 {
		return 0, fmt.Errorf("training matrix has no columns")
	}
	positives := 0
	for i, row := range rows {
		if len(row) != width {
			return 0, fmt.Errorf("row %d has %d columns, want %d", i, len(row), width)
		}
		for j, v := range row {
			if !finite(v) {
				return 0, fmt.Errorf("row %d column %d is not finite", i, j)
			}
		}
		switch labels[i] {
		case domain.LabelCommercial:
			positives++
		case domain.LabelResidential:
		default:
			return 0, fmt.Errorf("label %d at row %d is not binary", labels[i], i)
		}
	}
	if positives == 0 || positives == len(rows) {
		return 0, fmt.Errorf("labels contain a single class")
	}
	return positives, nil
}

func sampleRows(rng *rand.Rand, n int, rate float64) []int {
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if rate >= 1 || rng.Float64() < rate {
			out = append(out, i)
		}
	}
	if len(out) == 0 {
		out = append(out, rng.IntN(n))
	}
	return out
}

func sampleColumns(rng *rand.Rand, features int, rate float64) []int {
	if rate >= 1 {
		out := make([]int, features)
		for i := range out {
			out[i] = i
		}
		return out
	}
	k := max(1, int(math.Round(rate*float64(features))))
	perm := rng.Perm(features)[:k]
	// Fixed scan order keeps tie-breaking between features stable.
	slices.Sort(perm)
	return perm
}

func stream(family string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(family))
	return h.Sum64()
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
