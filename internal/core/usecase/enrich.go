package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/OK-cpu-beep/Energohunt/internal/core/domain"
	"github.com/OK-cpu-beep/Energohunt/internal/core/ports"
)

type EnrichUseCase struct {
	corpora     ports.CorpusStore
	lookup      ports.BusinessLookup
	logger      *slog.Logger
	concurrency int
}

func NewEnrichUseCase(corpora ports.CorpusStore, lookup ports.BusinessLookup, logger *slog.Logger, concurrency int) *EnrichUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &EnrichUseCase{
		corpora:     corpora,
		lookup:      lookup,
		logger:      logger,
		concurrency: concurrency,
	}
}

// Enrich reads inputPath, annotates it and writes outputPath. Failed lookups
// leave their records without the flag; only cancellation aborts.
func (uc *EnrichUseCase) Enrich(ctx context.Context, inputPath, outputPath string) (domain.EnrichmentResult, error) {
	corpus, err := uc.corpora.Load(ctx, inputPath, domain.PartitionTrain)
	if err != nil {
		return domain.EnrichmentResult{}, fmt.Errorf("load corpus: %w", err)
	}

	addresses := distinctAddresses(corpus.Records)
	uc.logger.Info("enrichment_started", "path", inputPath, "records", corpus.Len(), "addresses", len(addresses))

	var mu sync.Mutex
	found := make(map[string]bool, len(addresses))
	failed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.concurrency)
	for _, address := range addresses {
		g.Go(func() error {
			has, err := uc.lookup.HasBusiness(gctx, address)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				uc.logger.Warn("business_lookup_failed", "address", address, "error", err)
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			mu.Lock()
			found[address] = has
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.EnrichmentResult{}, fmt.Errorf("enrich addresses: %w", err)
	}

	result := domain.EnrichmentResult{Records: corpus.Len(), Addresses: len(addresses), Failed: failed}
	for _, rec := range corpus.Records {
		has, ok := found[normalizeAddress(rec.Address)]
		if !ok {
			continue
		}
		if err := annotate(rec, has); err != nil {
			return domain.EnrichmentResult{}, err
		}
		result.Annotated++
		if has {
			result.WithBusiness++
		}
	}

	if err := uc.corpora.Save(ctx, outputPath, corpus); err != nil {
		return domain.EnrichmentResult{}, fmt.Errorf("save enriched corpus: %w", err)
	}
	uc.logger.Info("enrichment_finished", "path", outputPath, "annotated", result.Annotated,
		"with_business", result.WithBusiness, "failed_lookups", result.Failed)
	return result, nil
}

func annotate(rec *domain.ConsumerRecord, has bool) error {
	v := has
	rec.HasBusiness = &v
	if rec.Raw == nil {
		return nil
	}
	raw, err := json.Marshal(has)
	if err != nil {
		return fmt.Errorf("marshal has_business: %w", err)
	}
	rec.SetRaw(domain.FieldHasBusiness, raw)
	return nil
}

func distinctAddresses(records []*domain.ConsumerRecord) []string {
	seen := make(map[string]struct{}, len(records))
	out := make([]string, 0, len(records))
	for _, rec := range records {
		address := normalizeAddress(rec.Address)
		if address == "" {
			continue
		}
		if _, ok := seen[address]; ok {
			continue
		}
		seen[address] = struct{}{}
		out = append(out, address)
	}
	return out
}

func normalizeAddress(address string) string {
	return strings.Join(strings.Fields(address), " ")
}
