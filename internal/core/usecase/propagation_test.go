package usecase

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/OK-cpu-beep/Energohunt/internal/core/domain"
)

func ids(records []*domain.ConsumerRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.AccountID
	}
	return out
}

func TestPropagateLeavesUnmatchedRecordUntouched(t *testing.T) {
	unmatched := &domain.ConsumerRecord{
		AccountID: "c",
		Raw: []domain.RawField{
			{Key: domain.FieldAccountID, Value: json.RawMessage(`"c"`)},
			{Key: domain.FieldAddress, Value: json.RawMessage(`"addr"`)},
		},
	}
	corpus := &domain.Corpus{Records: []*domain.ConsumerRecord{
		{AccountID: "a", Raw: []domain.RawField{{Key: domain.FieldAccountID, Value: json.RawMessage(`1`)}}},
		unmatched,
		{AccountID: "b", Raw: []domain.RawField{}},
	}}
	scores := []domain.ScoredRow{{AccountID: "a", Probability: 0.4}, {AccountID: "b", Probability: 0.9}}

	result, err := Propagate(corpus, scores, 0.5)
	if err != nil {
		t.Fatalf("Propagate() error = %v", err)
	}
	if result.MergeMismatches != 1 || !reflect.DeepEqual(result.MismatchIDs, []string{"c"}) {
		t.Fatalf("expected one mismatch for c, got %+v", result)
	}
	if result.Scored != 2 || result.Commercial != 1 {
		t.Fatalf("unexpected counts %+v", result)
	}
	if got := ids(corpus.Records); !reflect.DeepEqual(got, []string{"b", "a", "c"}) {
		t.Fatalf("unexpected order %v", got)
	}
	if unmatched.IsCommercial != nil || unmatched.Probability != nil || len(unmatched.Raw) != 2 {
		t.Fatalf("unmatched record was modified: %+v", unmatched)
	}
	if _, ok := unmatched.RawValue(domain.FieldIsCommercial); ok {
		t.Fatalf("unmatched record gained %s", domain.FieldIsCommercial)
	}

	b := corpus.Records[0]
	if !*b.IsCommercial || *b.Probability != 0.9 {
		t.Fatalf("unexpected prediction on b: %+v", b)
	}
	if raw, _ := b.RawValue(domain.FieldIsCommercial); string(raw) != "true" {
		t.Fatalf("expected raw isCommercial true, got %s", raw)
	}
	a := corpus.Records[1]
	if raw, _ := a.RawValue(domain.FieldProbability); string(raw) != "0.4" {
		t.Fatalf("expected raw probability 0.4, got %s", raw)
	}
	if raw, _ := a.RawValue(domain.FieldAccountID); string(raw) != "1" {
		t.Fatalf("source accountId literal must be preserved, got %s", raw)
	}
}

func TestPropagateIsStrictAtThreshold(t *testing.T) {
	corpus := &domain.Corpus{Records: []*domain.ConsumerRecord{{AccountID: "x"}}}
	if _, err := Propagate(corpus, []domain.ScoredRow{{AccountID: "x", Probability: 0.5}}, 0.5); err != nil {
		t.Fatalf("Propagate() error = %v", err)
	}
	if *corpus.Records[0].IsCommercial {
		t.Fatalf("probability equal to threshold must be residential")
	}
}

func TestPropagateCountsDuplicateAndMissingIDs(t *testing.T) {
	corpus := &domain.Corpus{Records: []*domain.ConsumerRecord{
		{AccountID: "d"},
		{},
		{AccountID: "d"},
	}}
	result, err := Propagate(corpus, []domain.ScoredRow{{AccountID: "d", Probability: 0.7}}, 0.5)
	if err != nil {
		t.Fatalf("Propagate() error = %v", err)
	}
	if result.MergeMismatches != 2 || !reflect.DeepEqual(result.MismatchIDs, []string{"#1", "d"}) {
		t.Fatalf("unexpected mismatches %+v", result)
	}
	if corpus.Records[0].Probability == nil || corpus.Records[2].Probability != nil {
		t.Fatalf("only the first record with id d should be scored")
	}
}

func TestPropagateRejectsBadInput(t *testing.T) {
	corpus := &domain.Corpus{}
	if _, err := Propagate(corpus, nil, 1.5); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid threshold error, got %v", err)
	}
	dup := []domain.ScoredRow{{AccountID: "a"}, {AccountID: "a"}}
	if _, err := Propagate(corpus, dup, 0.5); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected duplicate score error, got %v", err)
	}
}

func TestSortByProbabilityIsStable(t *testing.T) {
	records := []*domain.ConsumerRecord{
		{AccountID: "none-1"},
		{AccountID: "low", Probability: floatPtr(0.1)},
		{AccountID: "tie-1", Probability: floatPtr(0.6)},
		{AccountID: "none-2"},
		{AccountID: "tie-2", Probability: floatPtr(0.6)},
	}
	got := ids(SortByProbability(records))
	want := []string{"tie-1", "tie-2", "low", "none-1", "none-2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SortByProbability() = %v, want %v", got, want)
	}
	if records[0].AccountID != "none-1" {
		t.Fatalf("input slice must not be reordered")
	}
}

func TestResolveThresholdPrecedence(t *testing.T) {
	if got := ResolveThreshold(floatPtr(0.42), floatPtr(0.35)); got != 0.42 {
		t.Fatalf("override must win, got %v", got)
	}
	if got := ResolveThreshold(nil, floatPtr(0.35)); got != 0.35 {
		t.Fatalf("calibrated threshold expected, got %v", got)
	}
	if got := ResolveThreshold(nil, nil); got != 0.5 {
		t.Fatalf("default threshold expected, got %v", got)
	}
}

func TestPropagateKeepsStaleProbabilityBehindScoredRecords(t *testing.T) {
	stale := &domain.ConsumerRecord{
		Probability: floatPtr(0.99),
		Raw:         []domain.RawField{{Key: domain.FieldProbability, Value: json.RawMessage(`0.99`)}},
	}
	corpus := &domain.Corpus{Records: []*domain.ConsumerRecord{
		{AccountID: "1"},
		{AccountID: "2"},
		stale,
	}}
	scores := []domain.ScoredRow{{AccountID: "1", Probability: 0.7}, {AccountID: "2", Probability: 0.2}}

	result, err := Propagate(corpus, scores, 0.5)
	if err != nil {
		t.Fatalf("Propagate() error = %v", err)
	}
	if result.MergeMismatches != 1 {
		t.Fatalf("expected one mismatch, got %+v", result)
	}
	if got := ids(corpus.Records); !reflect.DeepEqual(got, []string{"1", "2", ""}) {
		t.Fatalf("unexpected order %v", got)
	}
	if corpus.Records[2] != stale || *stale.Probability != 0.99 || stale.IsCommercial != nil {
		t.Fatalf("unmatched record was modified: %+v", stale)
	}
	if raw, _ := stale.RawValue(domain.FieldProbability); string(raw) != "0.99" {
		t.Fatalf("unmatched raw probability changed to %s", raw)
	}
}
