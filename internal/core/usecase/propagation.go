package usecase

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"

	"github.com/OK-cpu-beep/Energohunt/internal/core/domain"
)

// Propagate writes predicted labels and probabilities into the unlabeled
// corpus by accountId and reorders the scored records by probability,
// highest first. Records without a scored row keep their content, are
// reported as merge mismatches and follow in input order, whatever
// probability they already carry.
func Propagate(corpus *domain.Corpus, scores []domain.ScoredRow, threshold float64) (domain.PropagationResult, error) {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return domain.PropagationResult{}, domain.WrapError(domain.ErrInvalidInput, "propagate labels", fmt.Errorf("threshold %v outside [0,1]", threshold))
	}
	byID := make(map[string]float64, len(scores))
	for _, s := range scores {
		if _, dup := byID[s.AccountID]; dup {
			return domain.PropagationResult{}, domain.WrapError(domain.ErrInvalidInput, "propagate labels", fmt.Errorf("duplicate scored account %q", s.AccountID))
		}
		byID[s.AccountID] = s.Probability
	}

	result := domain.PropagationResult{Threshold: threshold}
	applied := make(map[string]struct{}, len(scores))
	scored := make([]*domain.ConsumerRecord, 0, len(scores))
	var unmatched []*domain.ConsumerRecord
	for i, rec := range corpus.Records {
		p, ok := byID[rec.AccountID]
		_, done := applied[rec.AccountID]
		if !rec.HasID() || !ok || done {
			result.MergeMismatches++
			id := rec.AccountID
			if id == "" {
				id = fmt.Sprintf("#%d", i)
			}
			result.MismatchIDs = append(result.MismatchIDs, id)
			unmatched = append(unmatched, rec)
			continue
		}
		if err := applyPrediction(rec, p, threshold); err != nil {
			return domain.PropagationResult{}, err
		}
		applied[rec.AccountID] = struct{}{}
		scored = append(scored, rec)
		result.Scored++
		if *rec.IsCommercial {
			result.Commercial++
		}
	}

	corpus.Records = append(SortByProbability(scored), unmatched...)
	return result, nil
}

func applyPrediction(rec *domain.ConsumerRecord, p, threshold float64) error {
	commercial := p > threshold
	prob := p
	rec.IsCommercial = &commercial
	rec.Probability = &prob

	label, err := json.Marshal(commercial)
	if err != nil {
		return fmt.Errorf("marshal label: %w", err)
	}
	value, err := json.Marshal(prob)
	if err != nil {
		return fmt.Errorf("marshal probability of %s: %w", rec.AccountID, err)
	}
	if rec.Raw != nil {
		rec.SetRaw(domain.FieldIsCommercial, label)
		rec.SetRaw(domain.FieldProbability, value)
	}
	return nil
}

// SortByProbability returns the records ordered by probability descending.
// The sort is stable and records without a probability go last.
func SortByProbability(records []*domain.ConsumerRecord) []*domain.ConsumerRecord {
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b *domain.ConsumerRecord) int {
		switch {
		case a.Probability == nil && b.Probability == nil:
			return 0
		case a.Probability == nil:
			return 1
		case b.Probability == nil:
			return -1
		case *a.Probability > *b.Probability:
			return -1
		case *a.Probability < *b.Probability:
			return 1
		default:
			return 0
		}
	})
	return out
}
