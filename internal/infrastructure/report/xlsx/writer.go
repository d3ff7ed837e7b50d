// Package xlsx exports evaluation reports as spreadsheets with a threshold
// chart, plus a JSON copy for machines.
package xlsx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/OK-cpu-beep/Energohunt/internal/core/domain"
	"github.com/OK-cpu-beep/Energohunt/internal/core/ports"
)

const (
	thresholdSheet      = "thresholds"
	classificationSheet = "classification"
)

var thresholdHeader = []any{"threshold", "recall_false", "recall_true", "balanced_accuracy", "f1_false", "f1_true"}

type Writer struct {
	storage ports.ObjectStorage
}

func NewWriter(storage ports.ObjectStorage) *Writer {
	return &Writer{storage: storage}
}

// WriteEvaluation writes path as a workbook and the same report as JSON next
// to it (extension replaced by .json).
func (w *Writer) WriteEvaluation(ctx context.Context, path string, report domain.EvaluationReport) error {
	workbook, err := Render(report)
	if err != nil {
		return err
	}
	if err := w.storage.Save(ctx, path, bytes.NewReader(workbook)); err != nil {
		return fmt.Errorf("save report workbook: %w", err)
	}

	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report json: %w", err)
	}
	jsonPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".json"
	if err := w.storage.Save(ctx, jsonPath, bytes.NewReader(append(payload, '\n'))); err != nil {
		return fmt.Errorf("save report json: %w", err)
	}
	return nil
}

func Render(report domain.EvaluationReport) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", thresholdSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeThresholds(f, report.Thresholds); err != nil {
		return nil, err
	}
	if len(report.Thresholds.Rows) > 0 {
		if err := addThresholdChart(f, len(report.Thresholds.Rows)); err != nil {
			return nil, err
		}
	}
	if _, err := f.NewSheet(classificationSheet); err != nil {
		return nil, fmt.Errorf("create classification sheet: %w", err)
	}
	if err := writeClassification(f, report); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("render workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeThresholds(f *excelize.File, report domain.ThresholdReport) error {
	if err := f.SetSheetRow(thresholdSheet, "A1", &thresholdHeader); err != nil {
		return fmt.Errorf("write threshold header: %w", err)
	}
	for i, row := range report.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{row.Threshold, row.RecallFalse, row.RecallTrue, row.BalancedAccuracy, row.F1False, row.F1True}
		if err := f.SetSheetRow(thresholdSheet, cell, &values); err != nil {
			return fmt.Errorf("write threshold row %d: %w", i, err)
		}
	}
	if len(report.Rows) == 0 {
		return nil
	}

	numFmt := "0.0000"
	plain, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	if err != nil {
		return err
	}
	best, err := f.NewStyle(&excelize.Style{
		CustomNumFmt: &numFmt,
		Font:         &excelize.Font{Bold: true},
		Fill:         excelize.Fill{Type: "pattern", Color: []string{"#FFF2CC"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	last := fmt.Sprintf("F%d", len(report.Rows)+1)
	if err := f.SetCellStyle(thresholdSheet, "A2", last, plain); err != nil {
		return err
	}
	bestRow := report.BestIndex + 2
	if err := f.SetCellStyle(thresholdSheet, fmt.Sprintf("A%d", bestRow), fmt.Sprintf("F%d", bestRow), best); err != nil {
		return err
	}
	return f.SetPanes(thresholdSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func addThresholdChart(f *excelize.File, rows int) error {
	categories := fmt.Sprintf("%s!$A$2:$A$%d", thresholdSheet, rows+1)
	series := make([]excelize.ChartSeries, 0, 3)
	for _, col := range []string{"B", "C", "D"} {
		series = append(series, excelize.ChartSeries{
			Name:       fmt.Sprintf("%s!$%s$1", thresholdSheet, col),
			Categories: categories,
			Values:     fmt.Sprintf("%s!$%s$2:$%s$%d", thresholdSheet, col, col, rows+1),
		})
	}
	err := f.AddChart(thresholdSheet, "H2", &excelize.Chart{
		Type:   excelize.Line,
		Series: series,
		Title:  []excelize.RichTextRun{{Text: "Recall and balanced accuracy by threshold"}},
		Legend: excelize.ChartLegend{Position: "bottom"},
		XAxis:  excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: "threshold"}}},
		YAxis:  excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: "score"}}},
		Dimension: excelize.ChartDimension{
			Width:  720,
			Height: 400,
		},
	})
	if err != nil {
		return fmt.Errorf("add threshold chart: %w", err)
	}
	return nil
}

func writeClassification(f *excelize.File, report domain.EvaluationReport) error {
	final := report.Final
	rows := [][]any{
		{"run_id", report.RunID},
		{"threshold", final.Threshold},
		{},
		{"class", "precision", "recall", "f1", "support"},
		classRow("residential", final.Residential),
		classRow("commercial", final.Commercial),
		{},
		{"accuracy", "", "", final.Accuracy, final.Residential.Support + final.Commercial.Support},
		{"balanced_accuracy", "", "", final.BalancedAccuracy},
		classRow("macro avg", final.MacroAvg),
		classRow("weighted avg", final.WeightedAvg),
	}
	for i, values := range rows {
		if len(values) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(classificationSheet, cell, &values); err != nil {
			return fmt.Errorf("write classification row %d: %w", i, err)
		}
	}
	return f.SetColWidth(classificationSheet, "A", "A", 20)
}

func classRow(name string, m domain.ClassMetrics) []any {
	return []any{name, m.Precision, m.Recall, m.F1, m.Support}
}
