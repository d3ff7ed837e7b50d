package domain

import "math"

// Missing marks an absent feature value.
var Missing = math.NaN()

func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

type Schema []string

func (s Schema) Index(column string) int {
	for i, c := range s {
		if c == column {
			return i
		}
	}
	return -1
}

func (s Schema) Equal(other Schema) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// FeatureVector is the numeric view of one record. The building type is
// kept as a string until an encoding assigns its code.
type FeatureVector struct {
	AccountID    string
	BuildingType string
	Values       []float64
}

// FeatureTable holds the feature vectors of one partition. Labels is nil for
// unlabeled partitions and never part of Values.
type FeatureTable struct {
	Partition Partition
	Schema    Schema
	Rows      []FeatureVector
	Labels    []int
}

func (t *FeatureTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Matrix returns the feature values row by row. The returned rows alias the
// table; callers that mutate must copy.
func (t *FeatureTable) Matrix() [][]float64 {
	out := make([][]float64, len(t.Rows))
	for i := range t.Rows {
		out[i] = t.Rows[i].Values
	}
	return out
}

func (t *FeatureTable) AccountIDs() []string {
	out := make([]string, len(t.Rows))
	for i := range t.Rows {
		out[i] = t.Rows[i].AccountID
	}
	return out
}

func (t *FeatureTable) BuildingTypes() []string {
	out := make([]string, len(t.Rows))
	for i := range t.Rows {
		out[i] = t.Rows[i].BuildingType
	}
	return out
}

type ScoredRow struct {
	AccountID   string
	Probability float64
}
