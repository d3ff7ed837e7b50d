// Package calibration picks the decision threshold that maximizes balanced
// accuracy on a labeled evaluation partition.
package calibration

import (
	"fmt"
	"math"
	"slices"

	"github.com/OK-cpu-beep/Energohunt/internal/core/domain"
)

const DefaultThreshold = 0.5

type Grid struct {
	Min   float64
	Max   float64
	Steps int
}

func DefaultGrid() Grid {
	return Grid{Min: 0.30, Max: 0.70, Steps: 41}
}

func (g Grid) Validate() error {
	switch {
	case g.Steps < 1:
		return fmt.Errorf("threshold grid needs at least one step, got %d", g.Steps)
	case g.Min > g.Max:
		return fmt.Errorf("threshold grid min %.4f exceeds max %.4f", g.Min, g.Max)
	case g.Min < 0 || g.Max > 1:
		return fmt.Errorf("threshold grid [%.4f, %.4f] outside [0, 1]", g.Min, g.Max)
	}
	return nil
}

// Thresholds returns the grid points in ascending order, rounded to two
// decimals so repeated scans compare equal.
func (g Grid) Thresholds() []float64 {
	if g.Steps == 1 {
		return []float64{round2(g.Min)}
	}
	out := make([]float64, g.Steps)
	step := (g.Max - g.Min) / float64(g.Steps-1)
	for i := range out {
		out[i] = round2(g.Min + float64(i)*step)
	}
	return out
}

// Predict labels a probability positive iff it is strictly above threshold.
func Predict(probabilities []float64, threshold float64) []int {
	out := make([]int, len(probabilities))
	for i, p := range probabilities {
		if p > threshold {
			out[i] = domain.LabelCommercial
		}
	}
	return out
}

// Scan evaluates every grid threshold and selects the first one with the
// highest balanced accuracy.
func Scan(probabilities []float64, labels []int, grid Grid) (domain.ThresholdReport, error) {
	if err := checkInputs(probabilities, labels); err != nil {
		return domain.ThresholdReport{}, domain.WrapError(domain.ErrInvalidInput, "scan thresholds", err)
	}
	if err := grid.Validate(); err != nil {
		return domain.ThresholdReport{}, domain.WrapError(domain.ErrInvalidInput, "scan thresholds", err)
	}

	thresholds := grid.Thresholds()
	report := domain.ThresholdReport{Rows: make([]domain.ThresholdRow, 0, len(thresholds))}
	best := math.Inf(-1)
	for i, t := range thresholds {
		c := count(Predict(probabilities, t), labels)
		row := domain.ThresholdRow{
			Threshold:   t,
			RecallFalse: c.recall(domain.LabelResidential),
			RecallTrue:  c.recall(domain.LabelCommercial),
			F1False:     c.f1(domain.LabelResidential),
			F1True:      c.f1(domain.LabelCommercial),
		}
		row.BalancedAccuracy = (row.RecallFalse + row.RecallTrue) / 2
		report.Rows = append(report.Rows, row)
		if row.BalancedAccuracy > best {
			best = row.BalancedAccuracy
			report.BestIndex = i
			report.BestThreshold = t
		}
	}
	return report, nil
}

// Top returns up to n rows ordered by balanced accuracy descending, keeping
// ascending threshold order among equal scores.
func Top(report domain.ThresholdReport, n int) []domain.ThresholdRow {
	rows := slices.Clone(report.Rows)
	slices.SortStableFunc(rows, func(a, b domain.ThresholdRow) int {
		switch {
		case a.BalancedAccuracy > b.BalancedAccuracy:
			return -1
		case a.BalancedAccuracy < b.BalancedAccuracy:
			return 1
		}
		return 0
	})
	if n < len(rows) {
		rows = rows[:n]
	}
	return rows
}

func Classify(probabilities []float64, labels []int, threshold float64) (domain.ClassificationReport, error) {
	if err := checkInputs(probabilities, labels); err != nil {
		return domain.ClassificationReport{}, domain.WrapError(domain.ErrInvalidInput, "classification report", err)
	}
	c := count(Predict(probabilities, threshold), labels)
	res := c.metrics(domain.LabelResidential)
	com := c.metrics(domain.LabelCommercial)
	total := float64(len(labels))

	report := domain.ClassificationReport{
		Threshold:        threshold,
		Residential:      res,
		Commercial:       com,
		Accuracy:         float64(c.tp+c.tn) / total,
		BalancedAccuracy: (res.Recall + com.Recall) / 2,
		MacroAvg: domain.ClassMetrics{
			Precision: (res.Precision + com.Precision) / 2,
			Recall:    (res.Recall + com.Recall) / 2,
			F1:        (res.F1 + com.F1) / 2,
			Support:   len(labels),
		},
	}
	wr, wc := float64(res.Support)/total, float64(com.Support)/total
	report.WeightedAvg = domain.ClassMetrics{
		Precision: res.Precision*wr + com.Precision*wc,
		Recall:    res.Recall*wr + com.Recall*wc,
		F1:        res.F1*wr + com.F1*wc,
		Support:   len(labels),
	}
	return report, nil
}

func checkInputs(probabilities []float64, labels []int) error {
	if len(probabilities) == 0 {
		return fmt.Errorf("no probabilities to evaluate")
	}
	if len(probabilities) != len(labels) {
		return fmt.Errorf("%d probabilities for %d labels", len(probabilities), len(labels))
	}
	for i, l := range labels {
		if l != domain.LabelResidential && l != domain.LabelCommercial {
			return fmt.Errorf("label %d at row %d is not binary", l, i)
		}
	}
	return nil
}

type confusion struct {
	tp, tn, fp, fn int
}

func count(predicted, labels []int) confusion {
	var c confusion
	for i, y := range labels {
		switch {
		case y == domain.LabelCommercial && predicted[i] == domain.LabelCommercial:
			c.tp++
		case y == domain.LabelCommercial:
			c.fn++
		case predicted[i] == domain.LabelCommercial:
			c.fp++
		default:
			c.tn++
		}
	}
	return c
}

func (c confusion) class(label int) (hit, predicted, actual int) {
	if label == domain.LabelCommercial {
		return c.tp, c.tp + c.fp, c.tp + c.fn
	}
	return c.tn, c.tn + c.fn, c.tn + c.fp
}

func (c confusion) recall(label int) float64 {
	hit, _, actual := c.class(label)
	return ratio(hit, actual)
}

func (c confusion) precision(label int) float64 {
	hit, predicted, _ := c.class(label)
	return ratio(hit, predicted)
}

func (c confusion) f1(label int) float64 {
	p, r := c.precision(label), c.recall(label)
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func (c confusion) metrics(label int) domain.ClassMetrics {
	_, _, actual := c.class(label)
	return domain.ClassMetrics{
		Precision: c.precision(label),
		Recall:    c.recall(label),
		F1:        c.f1(label),
		Support:   actual,
	}
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
