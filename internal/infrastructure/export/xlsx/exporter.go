package xlsx

import (
	"fmt"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
)

const (
	sheetHistory = "History"
	sheetSummary = "Summary"
	sheetClasses = "Classes"
	sheetItems   = "Items"
)

// Exporter renders history and reports as .xlsx workbooks.
type Exporter struct{}

func New() *Exporter {
	return &Exporter{}
}

func (e *Exporter) HistoryWorkbook(records []domain.HistoryRecord) ([]byte, error) {
	w, err := newWorkbook(sheetHistory)
	if err != nil {
		return nil, err
	}
	defer w.close()

	header := []any{"Timestamp", "Filename"}
	for _, name := range domain.ClassNames() {
		header = append(header,
			fmt.Sprintf("%s total", name),
			fmt.Sprintf("%s viable", name),
			fmt.Sprintf("%s non-viable", name),
			fmt.Sprintf("%s viability %%", name),
		)
	}
	if err := w.header(sheetHistory, header); err != nil {
		return nil, err
	}

	for i, rec := range records {
		row := []any{rec.Timestamp, rec.Filename}
		counts := rec.Data.Normalized()
		for _, name := range domain.ClassNames() {
			t := counts[name]
			row = append(row, t.Total, t.Viable, t.NonViable, round2(t.ViabilityRate()))
		}
		if err := w.row(sheetHistory, i+2, row); err != nil {
			return nil, err
		}
	}
	return w.bytes()
}

func (e *Exporter) ReportWorkbook(doc domain.ReportDocument) ([]byte, error) {
	w, err := newWorkbook(sheetSummary)
	if err != nil {
		return nil, err
	}
	defer w.close()

	summary := [][]any{
		{"Generated at", doc.GeneratedAt.Format(domain.TimestampLayout)},
		{"Analysis ID", doc.Sample.AnalysisID},
		{"Filename", doc.Sample.Filename},
		{"Format", doc.Sample.Format},
		{"Width", doc.Sample.Width},
		{"Height", doc.Sample.Height},
		{"Confidence threshold", doc.Metrics.ConfidenceThreshold},
		{"Overall viable fraction", round2(doc.Metrics.OverallViableFraction)},
		{"Quality grade", string(doc.Metrics.QualityGrade)},
	}
	if err := w.header(sheetSummary, []any{"Field", "Value"}); err != nil {
		return nil, err
	}
	for i, row := range summary {
		if err := w.row(sheetSummary, i+2, row); err != nil {
			return nil, err
		}
	}

	if err := w.addSheet(sheetClasses); err != nil {
		return nil, err
	}
	if err := w.header(sheetClasses, []any{"Class", "Total", "Viable", "Non-viable", "Viability %", "Share %"}); err != nil {
		return nil, err
	}
	counts := doc.Counts.Normalized()
	for i, name := range domain.ClassNames() {
		t := counts[name]
		m := doc.Metrics.PerClass[name]
		row := []any{string(name), t.Total, t.Viable, t.NonViable, rateCell(m.ViabilityRate), rateCell(m.Share)}
		if err := w.row(sheetClasses, i+2, row); err != nil {
			return nil, err
		}
	}
	return w.bytes()
}

func (e *Exporter) BatchWorkbook(report domain.BatchReport) ([]byte, error) {
	w, err := newWorkbook(sheetSummary)
	if err != nil {
		return nil, err
	}
	defer w.close()

	if err := w.header(sheetSummary, []any{"Class", "Total", "Viable", "Non-viable", "Viability %"}); err != nil {
		return nil, err
	}
	summary := report.Summary.Normalized()
	for i, name := range domain.ClassNames() {
		t := summary[name]
		row := []any{string(name), t.Total, t.Viable, t.NonViable, rateCell(report.PerClass[name])}
		if err := w.row(sheetSummary, i+2, row); err != nil {
			return nil, err
		}
	}
	footer := len(domain.ClassNames()) + 3
	if err := w.row(sheetSummary, footer, []any{"Batch", report.Batch.BatchID}); err != nil {
		return nil, err
	}
	if err := w.row(sheetSummary, footer+1, []any{"Samples", report.Batch.SampleCount}); err != nil {
		return nil, err
	}
	if err := w.row(sheetSummary, footer+2, []any{"Completed", report.Batch.CompletedCount}); err != nil {
		return nil, err
	}

	if err := w.addSheet(sheetItems); err != nil {
		return nil, err
	}
	header := []any{"Filename", "Processed at", "Error"}
	for _, name := range domain.ClassNames() {
		header = append(header, fmt.Sprintf("%s total", name), fmt.Sprintf("%s viable", name))
	}
	if err := w.header(sheetItems, header); err != nil {
		return nil, err
	}
	for i, item := range report.Items {
		row := []any{item.Filename, item.ProcessedAt, item.Error}
		counts := item.Counts.Normalized()
		for _, name := range domain.ClassNames() {
			row = append(row, counts[name].Total, counts[name].Viable)
		}
		if err := w.row(sheetItems, i+2, row); err != nil {
			return nil, err
		}
	}
	return w.bytes()
}

func rateCell(r domain.Rate) any {
	if !r.Available {
		return "n/a"
	}
	return round2(r.Value)
}
