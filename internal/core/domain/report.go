package domain

import "time"

type ThresholdRow struct {
	Threshold        float64 `json:"threshold"`
	RecallFalse      float64 `json:"recall_false"`
	RecallTrue       float64 `json:"recall_true"`
	BalancedAccuracy float64 `json:"balanced_accuracy"`
	F1True           float64 `json:"f1_true"`
	F1False          float64 `json:"f1_false"`
}

type ThresholdReport struct {
	Rows          []ThresholdRow `json:"rows"`
	BestThreshold float64        `json:"best_threshold"`
	BestIndex     int            `json:"best_index"`
}

func (r ThresholdReport) Best() ThresholdRow {
	if r.BestIndex < 0 || r.BestIndex >= len(r.Rows) {
		return ThresholdRow{}
	}
	return r.Rows[r.BestIndex]
}

type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

type ClassificationReport struct {
	Threshold        float64      `json:"threshold"`
	Residential      ClassMetrics `json:"residential"`
	Commercial       ClassMetrics `json:"commercial"`
	Accuracy         float64      `json:"accuracy"`
	BalancedAccuracy float64      `json:"balanced_accuracy"`
	MacroAvg         ClassMetrics `json:"macro_avg"`
	WeightedAvg      ClassMetrics `json:"weighted_avg"`
}

type EvaluationReport struct {
	RunID      string               `json:"run_id"`
	Thresholds ThresholdReport      `json:"thresholds"`
	Final      ClassificationReport `json:"final"`
	CreatedAt  time.Time            `json:"created_at"`
}

type PropagationResult struct {
	Threshold       float64
	Scored          int
	Commercial      int
	MergeMismatches int
	MismatchIDs     []string
}

type CorpusLabeled struct {
	RunID           string    `json:"run_id"`
	OutputPath      string    `json:"output_path"`
	Records         int       `json:"records"`
	Threshold       float64   `json:"threshold"`
	MergeMismatches int       `json:"merge_mismatches"`
	ProducedAt      time.Time `json:"produced_at"`
}
