// Package gbdt implements three gradient-boosted decision-tree families for
// binary classification with logistic loss.
package gbdt

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// FamilyDepthwise grows level-wise trees with second-order gain.
	FamilyDepthwise = "depthwise"
	// FamilyOblivious grows symmetric trees sharing one split per level.
	FamilyOblivious = "oblivious"
	// FamilyLeafwise grows best-first trees bounded by a leaf budget.
	FamilyLeafwise = "leafwise"
)

var Families = []string{FamilyDepthwise, FamilyOblivious, FamilyLeafwise}

type Params struct {
	Rounds         int     `yaml:"rounds" json:"rounds"`
	MaxDepth       int     `yaml:"max_depth" json:"max_depth"`
	MaxLeaves      int     `yaml:"max_leaves" json:"max_leaves"`
	LearningRate   float64 `yaml:"learning_rate" json:"learning_rate"`
	Subsample      float64 `yaml:"subsample" json:"subsample"`
	ColSample      float64 `yaml:"colsample" json:"colsample"`
	Lambda         float64 `yaml:"lambda" json:"lambda"`
	Gamma          float64 `yaml:"gamma" json:"gamma"`
	MinChildWeight float64 `yaml:"min_child_weight" json:"min_child_weight"`
	MinDataInLeaf  int     `yaml:"min_data_in_leaf" json:"min_data_in_leaf"`
	MaxBins        int     `yaml:"max_bins" json:"max_bins"`
	Seed           uint64  `yaml:"seed" json:"seed"`
}

func DefaultParams(family string) (Params, error) {
	base := Params{
		Rounds:         300,
		MaxDepth:       4,
		LearningRate:   0.1,
		Subsample:      1,
		ColSample:      1,
		Lambda:         1,
		MinChildWeight: 1,
		MinDataInLeaf:  1,
		MaxBins:        64,
		Seed:           42,
	}
	switch family {
	case FamilyDepthwise:
		base.Subsample = 0.6
		base.ColSample = 0.8
	case FamilyOblivious:
		base.Subsample = 0.8
		base.Lambda = 3
		base.MinChildWeight = 0
	case FamilyLeafwise:
		base.MaxLeaves = 15
		base.Lambda = 0
		base.MinChildWeight = 1e-3
		base.MinDataInLeaf = 20
	default:
		return Params{}, fmt.Errorf("unknown model family %q", family)
	}
	return base, nil
}

func (p Params) Validate() error {
	switch {
	case p.Rounds < 1:
		return fmt.Errorf("rounds must be positive, got %d", p.Rounds)
	case p.MaxDepth < 1:
		return fmt.Errorf("max_depth must be positive, got %d", p.MaxDepth)
	case p.LearningRate <= 0:
		return fmt.Errorf("learning_rate must be positive, got %g", p.LearningRate)
	case p.Subsample <= 0 || p.Subsample > 1:
		return fmt.Errorf("subsample must be in (0, 1], got %g", p.Subsample)
	case p.ColSample <= 0 || p.ColSample > 1:
		return fmt.Errorf("colsample must be in (0, 1], got %g", p.ColSample)
	case p.Lambda < 0 || p.Gamma < 0 || p.MinChildWeight < 0:
		return fmt.Errorf("lambda, gamma and min_child_weight must not be negative")
	case p.MinDataInLeaf < 1:
		return fmt.Errorf("min_data_in_leaf must be positive, got %d", p.MinDataInLeaf)
	case p.MaxBins < 2 || p.MaxBins > 256:
		return fmt.Errorf("max_bins must be in [2, 256], got %d", p.MaxBins)
	}
	return nil
}

type Config struct {
	Models map[string]Params `yaml:"models"`
}

// LoadConfig reads a YAML model config. An empty path yields the defaults.
//
//	models:
//	  depthwise:
//	    rounds: 200
//	    subsample: 0.7
func LoadConfig(path string) (Config, error) {
	cfg := Config{Models: make(map[string]Params, len(Families))}
	for _, family := range Families {
		params, _ := DefaultParams(family)
		cfg.Models[family] = params
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read model config: %w", err)
	}
	var raw struct {
		Models map[string]yaml.Node `yaml:"models"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse model config: %w", err)
	}
	for family, node := range raw.Models {
		params, err := DefaultParams(family)
		if err != nil {
			return Config{}, fmt.Errorf("model config: %w", err)
		}
		// Decoding onto the defaults keeps fields the file leaves out.
		if err := node.Decode(&params); err != nil {
			return Config{}, fmt.Errorf("model config %s: %w", family, err)
		}
		if err := params.Validate(); err != nil {
			return Config{}, fmt.Errorf("model config %s: %w", family, err)
		}
		cfg.Models[family] = params
	}
	return cfg, nil
}
