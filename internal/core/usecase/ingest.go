package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/OK-cpu-beep/Energohunt/internal/core/domain"
	"github.com/OK-cpu-beep/Energohunt/internal/core/ports"
)

type IngestUseCase struct {
	corpora  ports.CorpusStore
	repo     ports.ConsumerRepository
	observer ports.IngestObserver
	logger   *slog.Logger
	now      func() time.Time
}

func NewIngestUseCase(
	corpora ports.CorpusStore,
	repo ports.ConsumerRepository,
	observer ports.IngestObserver,
	logger *slog.Logger,
) *IngestUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestUseCase{
		corpora:  corpora,
		repo:     repo,
		observer: observer,
		logger:   logger,
		now:      time.Now,
	}
}

func (uc *IngestUseCase) IngestFile(ctx context.Context, path string) (int, error) {
	if path == "" {
		return 0, domain.WrapError(domain.ErrInvalidInput, "ingest corpus", errors.New("empty corpus path"))
	}
	if uc.observer != nil {
		uc.observer.StartIngest()
	}
	started := uc.now()
	stored, err := uc.ingest(ctx, path)
	if uc.observer != nil {
		uc.observer.FinishIngest(uc.now().Sub(started), stored, err)
	}
	return stored, err
}

func (uc *IngestUseCase) ingest(ctx context.Context, path string) (int, error) {
	corpus, err := uc.corpora.Load(ctx, path, domain.PartitionUnlabeled)
	if err != nil {
		return 0, fmt.Errorf("load corpus: %w", err)
	}
	stored, err := uc.repo.UpsertConsumers(ctx, corpus.Records)
	if err != nil {
		return 0, fmt.Errorf("upsert consumers: %w", err)
	}
	if skipped := corpus.Len() - stored; skipped > 0 {
		uc.logger.Warn("records_not_stored", "path", path, "skipped", skipped, "reason", "missing accountId or isCommercial")
	}
	uc.logger.Info("corpus_ingested", "path", path, "records", corpus.Len(), "stored", stored)
	return stored, nil
}

func (uc *IngestUseCase) HandleCorpusLabeled(ctx context.Context, event domain.CorpusLabeled) error {
	if uc.observer != nil && !event.ProducedAt.IsZero() {
		uc.observer.ObserveEventLag(uc.now().Sub(event.ProducedAt))
	}
	stored, err := uc.IngestFile(ctx, event.OutputPath)
	if err != nil {
		return fmt.Errorf("ingest run %s: %w", event.RunID, err)
	}
	if stored != event.Records {
		uc.logger.Warn("ingest_count_differs", "run_id", event.RunID, "announced", event.Records, "stored", stored)
	}
	return nil
}

func (uc *IngestUseCase) TopConsumers(ctx context.Context, limit int) ([]domain.StoredConsumer, error) {
	return uc.ListConsumers(ctx, limit, 0)
}

func (uc *IngestUseCase) ListConsumers(ctx context.Context, limit, offset int) ([]domain.StoredConsumer, error) {
	out, err := uc.repo.ListByProbability(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list consumers: %w", err)
	}
	return out, nil
}

func (uc *IngestUseCase) GetConsumer(ctx context.Context, accountID string) (domain.StoredConsumer, error) {
	if strings.TrimSpace(accountID) == "" {
		return domain.StoredConsumer{}, domain.WrapError(domain.ErrInvalidInput, "get consumer", errors.New("account id is required"))
	}
	c, err := uc.repo.GetConsumer(ctx, accountID)
	if err != nil {
		return domain.StoredConsumer{}, fmt.Errorf("get consumer: %w", err)
	}
	return c, nil
}
