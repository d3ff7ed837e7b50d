package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/OK-cpu-beep/Energohunt/internal/core/domain"
	"github.com/OK-cpu-beep/Energohunt/internal/core/features"
	"github.com/OK-cpu-beep/Energohunt/internal/core/ports"
)

var fixedNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func boolPtr(v bool) *bool { return &v }

func floatPtr(v float64) *float64 { return &v }

// consumer builds a record with the same usage in every month.
func consumer(id, buildingType string, usage float64, label *bool) *domain.ConsumerRecord {
	months := make(map[int]float64, 12)
	for m := 1; m <= 12; m++ {
		months[m] = usage
	}
	return &domain.ConsumerRecord{
		AccountID:      id,
		Address:        "ул. Мира, " + id,
		BuildingType:   buildingType,
		RoomsCount:     2,
		ResidentsCount: 1,
		TotalArea:      floatPtr(50),
		Consumption:    months,
		IsCommercial:   label,
	}
}

type memCorpusStore struct {
	mu      sync.Mutex
	corpora map[string]*domain.Corpus
	saved   map[string]*domain.Corpus
	loadErr error
}

func newMemCorpusStore() *memCorpusStore {
	return &memCorpusStore{corpora: map[string]*domain.Corpus{}, saved: map[string]*domain.Corpus{}}
}

func (s *memCorpusStore) put(path string, records ...*domain.ConsumerRecord) {
	s.corpora[path] = &domain.Corpus{Records: records}
}

func (s *memCorpusStore) Load(_ context.Context, path string, partition domain.Partition) (*domain.Corpus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	c, ok := s.corpora[path]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "load corpus", fmt.Errorf("no corpus at %s", path))
	}
	records := make([]*domain.ConsumerRecord, len(c.Records))
	copy(records, c.Records)
	return &domain.Corpus{Partition: partition, Records: records}, nil
}

func (s *memCorpusStore) Save(_ context.Context, path string, corpus *domain.Corpus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[path] = corpus
	return nil
}

type memArtifactStore struct {
	sets map[string]domain.ArtifactSet
}

func newMemArtifactStore() *memArtifactStore {
	return &memArtifactStore{sets: map[string]domain.ArtifactSet{}}
}

func (s *memArtifactStore) Save(_ context.Context, path string, set *domain.ArtifactSet) error {
	s.sets[path] = *set
	return nil
}

func (s *memArtifactStore) Load(_ context.Context, path string) (*domain.ArtifactSet, error) {
	set, ok := s.sets[path]
	if !ok {
		return nil, domain.WrapError(domain.ErrArtifact, "load artifact", errors.New("missing bundle"))
	}
	return &set, nil
}

// usageModel scores a row by its summer mean, scaled to [0,1].
type usageModel struct {
	family string
	column int
}

func (m usageModel) Family() string { return m.family }

func (m usageModel) PredictProba(rows [][]float64) ([]float64, error) {
	out := make([]float64, len(rows))
	for i, row := range rows {
		out[i] = math.Min(1, math.Max(0, row[m.column]/1000))
	}
	return out, nil
}

type usageTrainer struct {
	family string
	fits   *int
}

func (t usageTrainer) Family() string { return t.family }

func (t usageTrainer) Fit(_ context.Context, rows [][]float64, labels []int) (ports.ClassifierModel, error) {
	if len(rows) == 0 || len(rows) != len(labels) {
		return nil, domain.WrapError(domain.ErrTraining, "fit", errors.New("bad matrix"))
	}
	if t.fits != nil {
		*t.fits++
	}
	column := features.NewExtractor(features.Options{}).Schema().Index(features.ColSummerMean)
	return usageModel{family: t.family, column: column}, nil
}

func usageTrainers() []ports.ClassifierTrainer {
	return []ports.ClassifierTrainer{
		usageTrainer{family: "depthwise"},
		usageTrainer{family: "oblivious"},
		usageTrainer{family: "leafwise"},
	}
}

type usageCodec struct{}

func (usageCodec) Encode(model ports.ClassifierModel) (domain.ModelState, error) {
	m, ok := model.(usageModel)
	if !ok {
		return domain.ModelState{}, fmt.Errorf("unexpected model %T", model)
	}
	payload, err := json.Marshal(m.column)
	if err != nil {
		return domain.ModelState{}, err
	}
	return domain.ModelState{Family: m.family, Payload: payload}, nil
}

func (usageCodec) Decode(state domain.ModelState) (ports.ClassifierModel, error) {
	var column int
	if err := json.Unmarshal(state.Payload, &column); err != nil {
		return nil, domain.WrapError(domain.ErrArtifact, "decode", err)
	}
	return usageModel{family: state.Family, column: column}, nil
}

type recordingObserver struct {
	stages            []string
	failed            []string
	records           map[domain.Partition]int
	mergeMismatches   int
	unknownCategories int
	schemaErrors      int
	threshold         float64
	balancedAccuracy  float64
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{records: map[domain.Partition]int{}}
}

func (o *recordingObserver) ObserveStage(stage string, _ float64, err error) {
	o.stages = append(o.stages, stage)
	if err != nil {
		o.failed = append(o.failed, stage)
	}
}

func (o *recordingObserver) AddRecords(p domain.Partition, n int) { o.records[p] += n }
func (o *recordingObserver) AddMergeMismatches(n int)             { o.mergeMismatches += n }
func (o *recordingObserver) AddUnknownCategories(n int)           { o.unknownCategories += n }
func (o *recordingObserver) AddSchemaErrors(n int)                { o.schemaErrors += n }

func (o *recordingObserver) SetCalibration(threshold, ba float64) {
	o.threshold = threshold
	o.balancedAccuracy = ba
}

type reportWriterFake struct {
	path   string
	report domain.EvaluationReport
	err    error
}

func (f *reportWriterFake) WriteEvaluation(_ context.Context, path string, report domain.EvaluationReport) error {
	if f.err != nil {
		return f.err
	}
	f.path = path
	f.report = report
	return nil
}

type publisherFake struct {
	events []domain.CorpusLabeled
	err    error
}

func (f *publisherFake) PublishCorpusLabeled(_ context.Context, event domain.CorpusLabeled) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}
