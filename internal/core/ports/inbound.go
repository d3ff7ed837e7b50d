package ports

import (
	"context"

	"github.com/OK-cpu-beep/Energohunt/internal/core/domain"
)

type TrainingService interface {
	Train(ctx context.Context, req domain.TrainRequest) (*domain.EvaluationReport, error)
}

type LabelingService interface {
	Label(ctx context.Context, req domain.LabelRequest) (*domain.LabelSummary, error)
}

type CorpusIngestor interface {
	IngestFile(ctx context.Context, path string) (int, error)
	HandleCorpusLabeled(ctx context.Context, event domain.CorpusLabeled) error
	TopConsumers(ctx context.Context, limit int) ([]domain.StoredConsumer, error)
}

type ConsumerReader interface {
	ListConsumers(ctx context.Context, limit, offset int) ([]domain.StoredConsumer, error)
	GetConsumer(ctx context.Context, accountID string) (domain.StoredConsumer, error)
}

type CorpusEnricher interface {
	Enrich(ctx context.Context, inputPath, outputPath string) (domain.EnrichmentResult, error)
}
