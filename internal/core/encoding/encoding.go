// Package encoding maps building-type strings to integer codes shared by
// every partition of a run.
package encoding

import (
	"github.com/OK-cpu-beep/Energohunt/internal/core/domain"
	"github.com/OK-cpu-beep/Energohunt/internal/core/features"
)

// UnknownCode is assigned to categories absent when the encoding was fit.
const UnknownCode = -1

// CategoryEncoding is an immutable string→code mapping. Codes follow first
// occurrence across the partitions passed to Fit, in the order given.
type CategoryEncoding struct {
	categories []string
	codes      map[string]int
}

// Fit builds an encoding from partitions in their documented order
// (train, test, unlabeled).
func Fit(partitions ...[]string) *CategoryEncoding {
	enc := &CategoryEncoding{codes: make(map[string]int)}
	for _, values := range partitions {
		for _, v := range values {
			if _, ok := enc.codes[v]; ok {
				continue
			}
			enc.codes[v] = len(enc.categories)
			enc.categories = append(enc.categories, v)
		}
	}
	return enc
}

func FromCategories(categories []string) *CategoryEncoding {
	return Fit(categories)
}

func (e *CategoryEncoding) Categories() []string {
	out := make([]string, len(e.categories))
	copy(out, e.categories)
	return out
}

func (e *CategoryEncoding) Len() int {
	return len(e.categories)
}

func (e *CategoryEncoding) Encode(category string) (int, bool) {
	code, ok := e.codes[category]
	if !ok {
		return UnknownCode, false
	}
	return code, true
}

func (e *CategoryEncoding) Apply(table *domain.FeatureTable) []string {
	idx := table.Schema.Index(features.ColBuildingType)
	if idx < 0 {
		return nil
	}
	var unknown []string
	reported := make(map[string]struct{})
	for i := range table.Rows {
		row := &table.Rows[i]
		code, ok := e.Encode(row.BuildingType)
		if !ok {
			if _, seen := reported[row.BuildingType]; !seen {
				reported[row.BuildingType] = struct{}{}
				unknown = append(unknown, row.BuildingType)
			}
		}
		row.Values[idx] = float64(code)
	}
	return unknown
}
