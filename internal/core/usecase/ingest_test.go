package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/OK-cpu-beep/Energohunt/internal/core/domain"
)

type consumerRepoFake struct {
	upserted []*domain.ConsumerRecord
	err      error
	listed   [2]int
}

func (f *consumerRepoFake) UpsertConsumers(_ context.Context, records []*domain.ConsumerRecord) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	stored := 0
	for _, r := range records {
		if r.HasID() && r.IsCommercial != nil {
			f.upserted = append(f.upserted, r)
			stored++
		}
	}
	return stored, nil
}

func (f *consumerRepoFake) ListByProbability(_ context.Context, limit, offset int) ([]domain.StoredConsumer, error) {
	f.listed = [2]int{limit, offset}
	return []domain.StoredConsumer{{AccountID: "top", Probability: floatPtr(0.99)}}, nil
}

func (f *consumerRepoFake) GetConsumer(_ context.Context, accountID string) (domain.StoredConsumer, error) {
	if accountID != "top" {
		return domain.StoredConsumer{}, domain.WrapError(domain.ErrNotFound, "get consumer", errors.New(accountID))
	}
	return domain.StoredConsumer{AccountID: "top", Consumption: map[string]float64{"1": 900}}, nil
}

type ingestObserverFake struct {
	started  int
	finished int
	stored   int
	lastErr  error
	lag      time.Duration
}

func (f *ingestObserverFake) StartIngest() { f.started++ }

func (f *ingestObserverFake) FinishIngest(_ time.Duration, stored int, err error) {
	f.finished++
	f.stored += stored
	f.lastErr = err
}

func (f *ingestObserverFake) ObserveEventLag(lag time.Duration) { f.lag = lag }

func TestIngestFileStoresLabeledRecords(t *testing.T) {
	corpora := newMemCorpusStore()
	corpora.put("out.json",
		consumer("a", "Частный", 900, boolPtr(true)),
		consumer("b", "Частный", 100, nil),
	)
	repo := &consumerRepoFake{}
	observer := &ingestObserverFake{}
	uc := NewIngestUseCase(corpora, repo, observer, nil)

	stored, err := uc.IngestFile(context.Background(), "out.json")
	if err != nil {
		t.Fatalf("IngestFile() error = %v", err)
	}
	if stored != 1 || len(repo.upserted) != 1 || repo.upserted[0].AccountID != "a" {
		t.Fatalf("expected only the labeled record stored, got %d", stored)
	}
	if observer.started != 1 || observer.finished != 1 || observer.stored != 1 {
		t.Fatalf("unexpected observer state %+v", observer)
	}
}

func TestIngestFileReportsRepositoryFailure(t *testing.T) {
	corpora := newMemCorpusStore()
	corpora.put("out.json", consumer("a", "Частный", 900, boolPtr(true)))
	observer := &ingestObserverFake{}
	uc := NewIngestUseCase(corpora, &consumerRepoFake{err: errors.New("db down")}, observer, nil)

	if _, err := uc.IngestFile(context.Background(), "out.json"); err == nil {
		t.Fatalf("expected repository error")
	}
	if observer.lastErr == nil {
		t.Fatalf("failure must reach the observer")
	}
	if _, err := uc.IngestFile(context.Background(), ""); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty path, got %v", err)
	}
}

func TestHandleCorpusLabeledObservesLag(t *testing.T) {
	corpora := newMemCorpusStore()
	corpora.put("out.json", consumer("a", "Частный", 900, boolPtr(true)))
	observer := &ingestObserverFake{}
	uc := NewIngestUseCase(corpora, &consumerRepoFake{}, observer, nil)
	uc.now = func() time.Time { return fixedNow }

	err := uc.HandleCorpusLabeled(context.Background(), domain.CorpusLabeled{
		RunID:      "label-1",
		OutputPath: "out.json",
		Records:    1,
		ProducedAt: fixedNow.Add(-3 * time.Second),
	})
	if err != nil {
		t.Fatalf("HandleCorpusLabeled() error = %v", err)
	}
	if observer.lag != 3*time.Second {
		t.Fatalf("expected 3s lag, got %v", observer.lag)
	}
}

func TestTopConsumersReadsFirstPage(t *testing.T) {
	repo := &consumerRepoFake{}
	uc := NewIngestUseCase(newMemCorpusStore(), repo, nil, nil)

	top, err := uc.TopConsumers(context.Background(), 10)
	if err != nil {
		t.Fatalf("TopConsumers() error = %v", err)
	}
	if len(top) != 1 || repo.listed != [2]int{10, 0} {
		t.Fatalf("unexpected listing %v %v", top, repo.listed)
	}
}

func TestGetConsumerPassesNotFound(t *testing.T) {
	uc := NewIngestUseCase(newMemCorpusStore(), &consumerRepoFake{}, nil, nil)

	c, err := uc.GetConsumer(context.Background(), "top")
	if err != nil || c.Consumption["1"] != 900 {
		t.Fatalf("GetConsumer() = %+v, %v", c, err)
	}
	if _, err := uc.GetConsumer(context.Background(), "missing"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := uc.GetConsumer(context.Background(), " "); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for blank id, got %v", err)
	}
}
