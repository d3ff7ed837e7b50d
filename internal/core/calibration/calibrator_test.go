package calibration

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OK-cpu-beep/Energohunt/internal/core/domain"
)

func rowAt(t *testing.T, report domain.ThresholdReport, threshold float64) domain.ThresholdRow {
	t.Helper()
	for _, row := range report.Rows {
		if row.Threshold == threshold {
			return row
		}
	}
	t.Fatalf("threshold %.2f not scanned", threshold)
	return domain.ThresholdRow{}
}

func TestDefaultGrid(t *testing.T) {
	thresholds := DefaultGrid().Thresholds()
	require.Len(t, thresholds, 41)
	assert.Equal(t, 0.30, thresholds[0])
	assert.Equal(t, 0.50, thresholds[20])
	assert.Equal(t, 0.70, thresholds[40])
	for i := 1; i < len(thresholds); i++ {
		assert.Greater(t, thresholds[i], thresholds[i-1])
	}
}

func TestPredictIsStrict(t *testing.T) {
	assert.Equal(t, []int{0, 0, 1}, Predict([]float64{0.4, 0.5, 0.51}, 0.5))
}

func TestScanStrictTieGoesNegative(t *testing.T) {
	probs := []float64{0.2, 0.6, 0.8}
	labels := []int{0, 1, 1}

	report, err := Scan(probs, labels, DefaultGrid())
	require.NoError(t, err)

	at05 := rowAt(t, report, 0.5)
	assert.Equal(t, 1.0, at05.BalancedAccuracy)
	assert.Equal(t, 1.0, at05.RecallTrue)
	assert.Equal(t, 1.0, at05.RecallFalse)

	at06 := rowAt(t, report, 0.6)
	assert.Equal(t, 0.5, at06.RecallTrue)
	assert.Equal(t, 0.75, at06.BalancedAccuracy)
	assert.InDelta(t, 2.0/3.0, at06.F1True, 1e-12)

	// 0.30..0.59 all separate perfectly; the first maximum wins.
	assert.Equal(t, 0.30, report.BestThreshold)
	assert.Equal(t, 0, report.BestIndex)
	assert.Equal(t, report.Rows[0], report.Best())
}

func TestScanZeroDivisionScoresZero(t *testing.T) {
	report, err := Scan([]float64{0.9, 0.95}, []int{1, 1}, Grid{Min: 0.5, Max: 0.5, Steps: 1})
	require.NoError(t, err)
	row := report.Rows[0]
	assert.Equal(t, 0.0, row.RecallFalse)
	assert.Equal(t, 0.0, row.F1False)
	assert.Equal(t, 1.0, row.RecallTrue)
	assert.Equal(t, 0.5, row.BalancedAccuracy)
}

func TestScanIsDeterministic(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	probs := make([]float64, 500)
	labels := make([]int, 500)
	for i := range probs {
		probs[i] = rng.Float64()
		if rng.Float64() < probs[i] {
			labels[i] = 1
		}
	}

	first, err := Scan(probs, labels, DefaultGrid())
	require.NoError(t, err)
	for range 5 {
		again, err := Scan(probs, labels, DefaultGrid())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	for _, row := range first.Rows {
		assert.LessOrEqual(t, row.BalancedAccuracy, first.Best().BalancedAccuracy)
	}
}

func TestScanRejectsBadInput(t *testing.T) {
	_, err := Scan(nil, nil, DefaultGrid())
	assert.True(t, domain.IsKind(err, domain.ErrInvalidInput))

	_, err = Scan([]float64{0.1}, []int{0, 1}, DefaultGrid())
	assert.True(t, domain.IsKind(err, domain.ErrInvalidInput))

	_, err = Scan([]float64{0.1}, []int{2}, DefaultGrid())
	assert.True(t, domain.IsKind(err, domain.ErrInvalidInput))

	_, err = Scan([]float64{0.1}, []int{0}, Grid{Min: 0.7, Max: 0.3, Steps: 5})
	assert.True(t, domain.IsKind(err, domain.ErrInvalidInput))
}

func TestTopKeepsAscendingOrderAmongTies(t *testing.T) {
	report := domain.ThresholdReport{Rows: []domain.ThresholdRow{
		{Threshold: 0.3, BalancedAccuracy: 0.8},
		{Threshold: 0.4, BalancedAccuracy: 0.9},
		{Threshold: 0.5, BalancedAccuracy: 0.9},
		{Threshold: 0.6, BalancedAccuracy: 0.7},
	}}
	top := Top(report, 3)
	require.Len(t, top, 3)
	assert.Equal(t, []float64{0.4, 0.5, 0.3}, []float64{top[0].Threshold, top[1].Threshold, top[2].Threshold})
	assert.Len(t, Top(report, 10), 4)
}

func TestClassify(t *testing.T) {
	// predictions at 0.5: [0, 1, 1, 0]
	report, err := Classify([]float64{0.1, 0.7, 0.9, 0.4}, []int{0, 0, 1, 1}, 0.5)
	require.NoError(t, err)

	assert.Equal(t, 0.5, report.Accuracy)
	assert.Equal(t, 2, report.Residential.Support)
	assert.Equal(t, 2, report.Commercial.Support)
	assert.Equal(t, 0.5, report.Residential.Precision)
	assert.Equal(t, 0.5, report.Commercial.Recall)
	assert.Equal(t, 0.5, report.BalancedAccuracy)
	assert.Equal(t, 0.5, report.MacroAvg.F1)
	assert.Equal(t, 0.5, report.WeightedAvg.Precision)
	assert.Equal(t, 4, report.WeightedAvg.Support)
}
