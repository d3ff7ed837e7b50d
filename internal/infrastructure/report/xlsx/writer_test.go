package xlsx

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/OK-cpu-beep/Energohunt/internal/core/domain"
	"github.com/OK-cpu-beep/Energohunt/internal/infrastructure/storage/localfs"
)

func sampleReport() domain.EvaluationReport {
	return domain.EvaluationReport{
		RunID: "run-7",
		Thresholds: domain.ThresholdReport{
			Rows: []domain.ThresholdRow{
				{Threshold: 0.3, RecallFalse: 0.5, RecallTrue: 1, BalancedAccuracy: 0.75},
				{Threshold: 0.31, RecallFalse: 0.6, RecallTrue: 1, BalancedAccuracy: 0.8},
				{Threshold: 0.32, RecallFalse: 0.7, RecallTrue: 0.5, BalancedAccuracy: 0.6},
			},
			BestThreshold: 0.31,
			BestIndex:     1,
		},
		Final: domain.ClassificationReport{
			Threshold:   0.31,
			Residential: domain.ClassMetrics{Precision: 1, Recall: 0.6, F1: 0.75, Support: 5},
			Commercial:  domain.ClassMetrics{Precision: 0.5, Recall: 1, F1: 0.67, Support: 2},
			Accuracy:    0.71,
		},
		CreatedAt: time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestRenderWritesSheets(t *testing.T) {
	data, err := Render(sampleReport())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(thresholdSheet)
	if err != nil {
		t.Fatalf("read thresholds: %v", err)
	}
	if len(rows) != 4 || rows[0][3] != "balanced_accuracy" {
		t.Fatalf("unexpected threshold sheet %v", rows)
	}
	support, err := f.GetCellValue(classificationSheet, "E6")
	if err != nil {
		t.Fatalf("read classification: %v", err)
	}
	if support != "2" {
		t.Fatalf("expected commercial support 2, got %q", support)
	}
}

func TestWriteEvaluationStoresJSONCopy(t *testing.T) {
	dir := t.TempDir()
	storage, err := localfs.New(dir)
	if err != nil {
		t.Fatalf("localfs.New() error = %v", err)
	}
	w := NewWriter(storage)
	if err := w.WriteEvaluation(context.Background(), "reports/run-7.xlsx", sampleReport()); err != nil {
		t.Fatalf("WriteEvaluation() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "reports", "run-7.xlsx")); err != nil {
		t.Fatalf("workbook missing: %v", err)
	}
	body, err := os.ReadFile(filepath.Join(dir, "reports", "run-7.json"))
	if err != nil {
		t.Fatalf("json copy missing: %v", err)
	}
	var decoded domain.EvaluationReport
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("decode json copy: %v", err)
	}
	if decoded.Thresholds.BestThreshold != 0.31 || decoded.RunID != "run-7" {
		t.Fatalf("unexpected json copy %+v", decoded)
	}
}
