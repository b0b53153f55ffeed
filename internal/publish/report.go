package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/fieldlogger/evidencedrive/internal/category"
)

const (
	reportsFolderName = "Reports"
	reportSheet       = "Entries"
	xlsxMimeType      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var reportHeader = []string{"#", "Owner", "Date", "Published", "Activities", "Notes", "Folder"}

// regenerateReport rebuilds the monthly report for the month of date and
// replaces the previous copy in the Reports folder. The whole month is
// rewritten each time so the report never accumulates duplicate rows.
func (p *Pipeline) regenerateReport(ctx context.Context, date time.Time, monthLabel string) error {
	records, err := p.records.PublishedInMonth(ctx, date.Year(), date.Month())
	if err != nil {
		return fmt.Errorf("publish: listing entries for %s: %w", monthLabel, err)
	}

	tmpPath, err := buildReportFile(records)
	if err != nil {
		return err
	}

	defer func() {
		if rmErr := os.Remove(tmpPath); rmErr != nil {
			p.logger.Warn("failed to remove report temp file",
				slog.String("path", tmpPath),
				slog.String("error", rmErr.Error()),
			)
		}
	}()

	reports, err := p.store.EnsureFolderPath(ctx, []string{p.rootFolder, reportsFolderName}, false)
	if err != nil {
		return err
	}

	name := fmt.Sprintf("%s %s.xlsx", category.Logbook.Display(), monthLabel)

	file, err := p.store.UploadOrReplaceFile(ctx, reports.ID, name, xlsxMimeType, tmpPath)
	if err != nil {
		return err
	}

	p.logger.Info("monthly report regenerated",
		slog.String("name", name),
		slog.String("file_id", file.ID),
		slog.Int("rows", len(records)),
	)

	return nil
}

// buildReportFile writes the report workbook to a fresh temporary file and
// returns its path. The caller owns the file and must remove it.
func buildReportFile(records []Record) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return "", fmt.Errorf("publish: naming report sheet: %w", err)
	}

	for col, h := range reportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return "", fmt.Errorf("publish: building report header: %w", err)
		}

		if err := f.SetCellValue(reportSheet, cell, h); err != nil {
			return "", fmt.Errorf("publish: building report header: %w", err)
		}
	}

	linkStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "1265BE", Underline: "single"},
	})
	if err != nil {
		return "", fmt.Errorf("publish: building report style: %w", err)
	}

	for i := range records {
		if err := writeReportRow(f, i+2, i+1, &records[i], linkStyle); err != nil {
			return "", err
		}
	}

	tmp, err := os.CreateTemp("", "evidence-report-*.xlsx")
	if err != nil {
		return "", fmt.Errorf("publish: creating report temp file: %w", err)
	}

	tmpPath := tmp.Name()

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)

		return "", fmt.Errorf("publish: closing report temp file: %w", err)
	}

	if err := f.SaveAs(tmpPath); err != nil {
		os.Remove(tmpPath)

		return "", fmt.Errorf("publish: writing report workbook: %w", err)
	}

	return tmpPath, nil
}

func writeReportRow(f *excelize.File, row, seq int, rec *Record, linkStyle int) error {
	published := ""
	if rec.PublishedAt != nil {
		published = rec.PublishedAt.Format("2006-01-02 15:04")
	}

	values := []any{
		seq,
		rec.OwnerName,
		rec.Date.Format("2006-01-02"),
		published,
		strings.Join(rec.Activities, ", "),
		rec.Notes,
	}

	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("publish: building report row %d: %w", row, err)
		}

		if err := f.SetCellValue(reportSheet, cell, v); err != nil {
			return fmt.Errorf("publish: building report row %d: %w", row, err)
		}
	}

	if rec.FolderURL == "" {
		return nil
	}

	linkCell, err := excelize.CoordinatesToCellName(len(values)+1, row)
	if err != nil {
		return fmt.Errorf("publish: building report row %d: %w", row, err)
	}

	if err := f.SetCellValue(reportSheet, linkCell, "Open folder"); err != nil {
		return fmt.Errorf("publish: building report row %d: %w", row, err)
	}

	if err := f.SetCellHyperLink(reportSheet, linkCell, rec.FolderURL, "External"); err != nil {
		return fmt.Errorf("publish: building report row %d: %w", row, err)
	}

	if err := f.SetCellStyle(reportSheet, linkCell, linkCell, linkStyle); err != nil {
		return fmt.Errorf("publish: building report row %d: %w", row, err)
	}

	return nil
}
