package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestWorkerMetricsShareThePipelineRegistry(t *testing.T) {
	pipeline := NewPipelineMetrics("ingest")
	w := NewWorkerMetrics("ingest", pipeline.Registry())

	w.StartIngest()
	if got := testutil.ToFloat64(w.ingestInFlight); got != 1 {
		t.Fatalf("expected one in-flight ingest, got %v", got)
	}
	w.FinishIngest(2*time.Second, 40, nil)
	w.StartIngest()
	w.FinishIngest(time.Second, 0, errors.New("db down"))
	w.ObserveEventLag(-time.Second)
	w.ObserveEventLag(3 * time.Second)

	if got := testutil.ToFloat64(w.ingestInFlight); got != 0 {
		t.Fatalf("expected no in-flight ingest, got %v", got)
	}
	if got := testutil.ToFloat64(w.ingestTotal.WithLabelValues("error")); got != 1 {
		t.Fatalf("expected one failed ingest, got %v", got)
	}
	if got := testutil.ToFloat64(w.storedRecords); got != 40 {
		t.Fatalf("expected 40 stored records, got %v", got)
	}
	count, err := testutil.GatherAndCount(pipeline.Registry(), "energohunt_worker_event_lag_seconds")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected the lag histogram on the shared registry, got %d series", count)
	}
}
