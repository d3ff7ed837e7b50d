package domain

import "encoding/json"

const (
	FieldAccountID      = "accountId"
	FieldAddress        = "address"
	FieldBuildingType   = "buildingType"
	FieldRoomsCount     = "roomsCount"
	FieldResidentsCount = "residentsCount"
	FieldTotalArea      = "totalArea"
	FieldConsumption    = "consumption"
	FieldIsCommercial   = "isCommercial"
	FieldProbability    = "probability_isCommercial"
	FieldHasBusiness    = "has_business"
)

// DefaultBuildingType stands in for an absent building type.
const DefaultBuildingType = "NA"

const (
	LabelResidential = 0
	LabelCommercial  = 1
)

type Partition string

const (
	PartitionTrain     Partition = "train"
	PartitionTest      Partition = "test"
	PartitionUnlabeled Partition = "unlabeled"
)

type RawField struct {
	Key   string
	Value json.RawMessage
}

// ConsumerRecord is one account read from a corpus. Typed fields are parsed
// views of Raw; Raw is what gets written back so unknown fields survive.
type ConsumerRecord struct {
	AccountID      string
	Address        string
	BuildingType   string
	RoomsCount     int
	ResidentsCount int
	TotalArea      *float64
	Consumption    map[int]float64
	IsCommercial   *bool
	Probability    *float64
	HasBusiness    *bool

	Raw []RawField
}

func (r *ConsumerRecord) HasID() bool {
	return r.AccountID != ""
}

func (r *ConsumerRecord) Usage(month int) float64 {
	if r.Consumption == nil {
		return 0
	}
	return r.Consumption[month]
}

// Label returns the ground-truth label as 0/1, false when it is absent.
func (r *ConsumerRecord) Label() (int, bool) {
	if r.IsCommercial == nil {
		return 0, false
	}
	if *r.IsCommercial {
		return LabelCommercial, true
	}
	return LabelResidential, true
}

func (r *ConsumerRecord) SetRaw(key string, value json.RawMessage) {
	for i := range r.Raw {
		if r.Raw[i].Key == key {
			r.Raw[i].Value = value
			return
		}
	}
	r.Raw = append(r.Raw, RawField{Key: key, Value: value})
}

func (r *ConsumerRecord) RawValue(key string) (json.RawMessage, bool) {
	for _, f := range r.Raw {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

type Corpus struct {
	Partition Partition
	Records   []*ConsumerRecord
}

func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Records)
}

type StoredConsumer struct {
	AccountID      string   `db:"account_id" json:"accountId"`
	IsCommercial   bool     `db:"is_commercial" json:"isCommercial"`
	Probability    *float64 `db:"is_commercial_prob" json:"probability_isCommercial"`
	Address        string   `db:"address" json:"address"`
	BuildingType   string   `db:"building_type" json:"buildingType"`
	RoomsCount     int      `db:"rooms_count" json:"roomsCount"`
	ResidentsCount int      `db:"residents_count" json:"residentsCount"`
	TotalArea      *float64 `db:"total_area" json:"totalArea"`
	// Consumption is keyed by month number, "1" to "12".
	Consumption map[string]float64 `db:"-" json:"consumption"`
}

const MaxConsumerPage = 400
