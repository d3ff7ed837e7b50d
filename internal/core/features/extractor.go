// Package features turns consumer records into fixed-schema numeric vectors.
package features

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/OK-cpu-beep/Energohunt/internal/core/domain"
)

const (
	ColRoomsCount        = "roomsCount"
	ColResidentsCount    = "residentsCount"
	ColTotalArea         = "totalArea"
	ColBuildingType      = "buildingType"
	ColSummerMean        = "summer_mean"
	ColWinterMean        = "winter_mean_consumption"
	ColSummerStd         = "std_summer"
	ColWinterStd         = "std_winter"
	ColZeroMonthRatio    = "zero_month_ratio"
	ColAreaPerPerson     = "area_per_person"
	ColPopulationDensity = "population_density"
	ColHasBusiness       = "has_business"
)

// Offset added to residents and area so zero-valued rows stay computable.
const occupancyOffset = 0.1

// MonthColumns are the months whose raw usage is exposed as its own column.
var MonthColumns = []int{1, 2, 3, 4, 10, 11, 12}

type Season struct {
	Summer []int
	Winter []int
}

var DefaultSeason = Season{
	Summer: []int{5, 6, 7, 8, 9},
	Winter: []int{10, 11, 12, 1, 2, 3, 4},
}

type Options struct {
	HasBusiness bool
}

type Extractor struct {
	season Season
	opts   Options
	schema domain.Schema
}

func NewExtractor(opts Options) *Extractor {
	return &Extractor{
		season: DefaultSeason,
		opts:   opts,
		schema: buildSchema(opts),
	}
}

func buildSchema(opts Options) domain.Schema {
	schema := domain.Schema{
		ColRoomsCount,
		ColResidentsCount,
		ColTotalArea,
		ColBuildingType,
		ColSummerMean,
		ColWinterMean,
		ColSummerStd,
		ColWinterStd,
		ColZeroMonthRatio,
		ColAreaPerPerson,
		ColPopulationDensity,
	}
	for _, m := range MonthColumns {
		schema = append(schema, MonthColumn(m))
	}
	if opts.HasBusiness {
		schema = append(schema, ColHasBusiness)
	}
	return schema
}

func MonthColumn(month int) string {
	return fmt.Sprintf("c_%d", month)
}

func (e *Extractor) Schema() domain.Schema {
	out := make(domain.Schema, len(e.schema))
	copy(out, e.schema)
	return out
}

func (e *Extractor) Season() Season {
	return e.season
}

// Extract derives the feature vector of one record. The building type slot
// is left missing; encoding fills it.
func (e *Extractor) Extract(r *domain.ConsumerRecord) domain.FeatureVector {
	var months [12]float64
	for m := 1; m <= 12; m++ {
		months[m-1] = r.Usage(m)
	}
	summer := pick(months, e.season.Summer)
	winter := pick(months, e.season.Winter)

	residents := float64(r.ResidentsCount)
	totalArea := domain.Missing
	areaPerPerson := domain.Missing
	densityArea := 0.0
	if r.TotalArea != nil {
		totalArea = *r.TotalArea
		areaPerPerson = totalArea / (residents + occupancyOffset)
		densityArea = totalArea
	}

	values := make([]float64, 0, len(e.schema))
	values = append(values,
		float64(r.RoomsCount),
		residents,
		totalArea,
		domain.Missing,
		mean(summer),
		mean(winter),
		stddev(summer),
		stddev(winter),
		zeroRatio(months[:]),
		areaPerPerson,
		(residents+occupancyOffset)/(densityArea+occupancyOffset),
	)
	for _, m := range MonthColumns {
		values = append(values, months[m-1])
	}
	if e.opts.HasBusiness {
		switch {
		case r.HasBusiness == nil:
			values = append(values, domain.Missing)
		case *r.HasBusiness:
			values = append(values, 1)
		default:
			values = append(values, 0)
		}
	}

	buildingType := r.BuildingType
	if buildingType == "" {
		buildingType = domain.DefaultBuildingType
	}
	return domain.FeatureVector{
		AccountID:    r.AccountID,
		BuildingType: buildingType,
		Values:       values,
	}
}

// BuildLabeled extracts a training or evaluation partition. Every record
// must carry an identifier and a label; the first violation aborts.
func (e *Extractor) BuildLabeled(corpus *domain.Corpus) (*domain.FeatureTable, error) {
	table := &domain.FeatureTable{
		Partition: corpus.Partition,
		Schema:    e.Schema(),
		Rows:      make([]domain.FeatureVector, 0, corpus.Len()),
		Labels:    make([]int, 0, corpus.Len()),
	}
	seen := make(map[string]struct{}, corpus.Len())
	for i, r := range corpus.Records {
		op := fmt.Sprintf("extract %s record %d", corpus.Partition, i)
		if !r.HasID() {
			return nil, domain.WrapError(domain.ErrSchema, op, fmt.Errorf("missing %s", domain.FieldAccountID))
		}
		if _, dup := seen[r.AccountID]; dup {
			return nil, domain.WrapError(domain.ErrSchema, op, fmt.Errorf("duplicate %s %q", domain.FieldAccountID, r.AccountID))
		}
		label, ok := r.Label()
		if !ok {
			return nil, domain.WrapError(domain.ErrSchema, op, fmt.Errorf("account %s has no %s", r.AccountID, domain.FieldIsCommercial))
		}
		seen[r.AccountID] = struct{}{}
		table.Rows = append(table.Rows, e.Extract(r))
		table.Labels = append(table.Labels, label)
	}
	return table, nil
}

// BuildUnlabeled extracts a scoring partition. Records that cannot be keyed
// are skipped and reported through the returned warnings.
func (e *Extractor) BuildUnlabeled(corpus *domain.Corpus) (*domain.FeatureTable, *multierror.Error) {
	table := &domain.FeatureTable{
		Partition: corpus.Partition,
		Schema:    e.Schema(),
		Rows:      make([]domain.FeatureVector, 0, corpus.Len()),
	}
	var warnings *multierror.Error
	seen := make(map[string]struct{}, corpus.Len())
	for i, r := range corpus.Records {
		op := fmt.Sprintf("extract %s record %d", corpus.Partition, i)
		if !r.HasID() {
			warnings = multierror.Append(warnings, domain.WrapError(domain.ErrSchema, op, fmt.Errorf("missing %s", domain.FieldAccountID)))
			continue
		}
		if _, dup := seen[r.AccountID]; dup {
			warnings = multierror.Append(warnings, domain.WrapError(domain.ErrSchema, op, fmt.Errorf("duplicate %s %q", domain.FieldAccountID, r.AccountID)))
			continue
		}
		seen[r.AccountID] = struct{}{}
		table.Rows = append(table.Rows, e.Extract(r))
	}
	return table, warnings
}

func pick(months [12]float64, subset []int) []float64 {
	out := make([]float64, len(subset))
	for i, m := range subset {
		out[i] = months[m-1]
	}
	return out
}
