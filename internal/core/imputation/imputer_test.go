package imputation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OK-cpu-beep/Energohunt/internal/core/domain"
)

var nan = math.NaN()

func table(partition domain.Partition, rows ...[]float64) *domain.FeatureTable {
	t := &domain.FeatureTable{Partition: partition, Schema: domain.Schema{"a", "b"}}
	for i, r := range rows {
		t.Rows = append(t.Rows, domain.FeatureVector{AccountID: string(rune('a' + i)), Values: r})
	}
	return t
}

func TestFitMedianIgnoresMissing(t *testing.T) {
	imp, err := Fit(table(domain.PartitionTrain,
		[]float64{1, nan},
		[]float64{3, 10},
		[]float64{2, 20},
		[]float64{nan, 30},
		[]float64{4, 40},
	))
	require.NoError(t, err)
	assert.Equal(t, []float64{2.5, 25}, imp.Medians())
}

func TestFitFailsOnColumnWithoutValues(t *testing.T) {
	_, err := Fit(table(domain.PartitionTrain,
		[]float64{1, nan},
		[]float64{2, nan},
	))
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrImputation))
	assert.Contains(t, err.Error(), `"b"`)
}

func TestFitFailsOnEmptyPartition(t *testing.T) {
	_, err := Fit(table(domain.PartitionTrain))
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrImputation))
}

func TestTransformFillsEveryPartitionWithTrainingMedians(t *testing.T) {
	imp, err := Fit(table(domain.PartitionTrain, []float64{1, 5}, []float64{3, 7}))
	require.NoError(t, err)

	test := table(domain.PartitionTest, []float64{nan, 100}, []float64{9, nan})
	out, err := imp.Transform(test)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{2, 100}, {9, 6}}, out)
	assert.True(t, math.IsNaN(test.Rows[0].Values[0]), "input must not be mutated")
}

func TestTestAndUnlabeledDataNeverChangeMedians(t *testing.T) {
	train := table(domain.PartitionTrain, []float64{1, 5}, []float64{3, 7}, []float64{8, nan})
	imp, err := Fit(train)
	require.NoError(t, err)
	before := imp.Medians()

	for _, scale := range []float64{-1e9, 0, 1e9} {
		test := table(domain.PartitionTest, []float64{scale, scale}, []float64{nan, scale})
		unlabeled := table(domain.PartitionUnlabeled, []float64{scale, nan})
		_, err := imp.Transform(test)
		require.NoError(t, err)
		_, err = imp.Transform(unlabeled)
		require.NoError(t, err)

		refit, err := Fit(train)
		require.NoError(t, err)
		assert.Equal(t, before, imp.Medians())
		assert.Equal(t, before, refit.Medians())
	}
}

func TestTransformRejectsForeignSchema(t *testing.T) {
	imp, err := Fit(table(domain.PartitionTrain, []float64{1, 2}))
	require.NoError(t, err)

	other := &domain.FeatureTable{Partition: domain.PartitionTest, Schema: domain.Schema{"b", "a"}}
	_, err = imp.Transform(other)
	require.Error(t, err)
}

func TestRestoreRoundTrip(t *testing.T) {
	imp, err := Restore(domain.Schema{"a", "b"}, []float64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, imp.Medians())

	_, err = Restore(domain.Schema{"a"}, []float64{1, 2})
	assert.True(t, domain.IsKind(err, domain.ErrArtifact))
}
