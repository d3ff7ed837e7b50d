// Package imputation fills missing feature values with training medians.
package imputation

import (
	"fmt"
	"slices"

	"github.com/OK-cpu-beep/Energohunt/internal/core/domain"
)

type Imputer struct {
	schema  domain.Schema
	medians []float64
}

// Fit computes column medians over the training table only, ignoring
// missing values. A column with no value at all is an imputation error.
func Fit(train *domain.FeatureTable) (*Imputer, error) {
	if train.Len() == 0 {
		return nil, domain.WrapError(domain.ErrImputation, "fit imputer", fmt.Errorf("empty %s partition", train.Partition))
	}
	medians := make([]float64, len(train.Schema))
	column := make([]float64, 0, train.Len())
	for j, name := range train.Schema {
		column = column[:0]
		for _, row := range train.Rows {
			if v := row.Values[j]; !domain.IsMissing(v) {
				column = append(column, v)
			}
		}
		if len(column) == 0 {
			return nil, domain.WrapError(domain.ErrImputation, "fit imputer", fmt.Errorf("column %q has no training values", name))
		}
		medians[j] = median(column)
	}
	return &Imputer{schema: train.Schema, medians: medians}, nil
}

func Restore(schema domain.Schema, medians []float64) (*Imputer, error) {
	if len(schema) != len(medians) {
		return nil, domain.WrapError(domain.ErrArtifact, "restore imputer",
			fmt.Errorf("schema has %d columns, medians %d", len(schema), len(medians)))
	}
	for j, m := range medians {
		if domain.IsMissing(m) {
			return nil, domain.WrapError(domain.ErrImputation, "restore imputer", fmt.Errorf("column %q has no median", schema[j]))
		}
	}
	return &Imputer{schema: schema, medians: slices.Clone(medians)}, nil
}

func (i *Imputer) Medians() []float64 {
	return slices.Clone(i.medians)
}

func (i *Imputer) Transform(table *domain.FeatureTable) ([][]float64, error) {
	if !table.Schema.Equal(i.schema) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "impute "+string(table.Partition), fmt.Errorf("feature schema differs from the fitted schema"))
	}
	out := make([][]float64, len(table.Rows))
	for r, row := range table.Rows {
		values := slices.Clone(row.Values)
		for j, v := range values {
			if domain.IsMissing(v) {
				values[j] = i.medians[j]
			}
		}
		out[r] = values
	}
	return out, nil
}

// median follows numpy: the mean of the two middle values for even counts.
func median(values []float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
