package ports

import (
	"context"
	"io"

	"github.com/OK-cpu-beep/Energohunt/internal/core/domain"
)

type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
}

type CorpusStore interface {
	Load(ctx context.Context, path string, partition domain.Partition) (*domain.Corpus, error)
	Save(ctx context.Context, path string, corpus *domain.Corpus) error
}

type ArtifactStore interface {
	Save(ctx context.Context, path string, set *domain.ArtifactSet) error
	Load(ctx context.Context, path string) (*domain.ArtifactSet, error)
}

type ClassifierModel interface {
	Family() string
	PredictProba(rows [][]float64) ([]float64, error)
}

type ClassifierTrainer interface {
	Family() string
	Fit(ctx context.Context, rows [][]float64, labels []int) (ClassifierModel, error)
}

type ModelCodec interface {
	Encode(model ClassifierModel) (domain.ModelState, error)
	Decode(state domain.ModelState) (ClassifierModel, error)
}

type ReportWriter interface {
	WriteEvaluation(ctx context.Context, path string, report domain.EvaluationReport) error
}

type ConsumerRepository interface {
	UpsertConsumers(ctx context.Context, records []*domain.ConsumerRecord) (int, error)
	ListByProbability(ctx context.Context, limit, offset int) ([]domain.StoredConsumer, error)
	GetConsumer(ctx context.Context, accountID string) (domain.StoredConsumer, error)
}

type EventPublisher interface {
	PublishCorpusLabeled(ctx context.Context, event domain.CorpusLabeled) error
}

type BusinessLookup interface {
	HasBusiness(ctx context.Context, address string) (bool, error)
}
