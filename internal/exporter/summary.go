package exporter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"pbimirror/internal/config"
	apperrors "pbimirror/internal/errors"
	"pbimirror/internal/mirror"
)

const (
	summarySheet  = "Summary"
	outcomesSheet = "Outcomes"
)

// OutcomeHeaders are the columns of the per-file table in csv and xlsx exports
var OutcomeHeaders = []string{"item_id", "filename", "path", "date", "outcome", "bytes_written", "error"}

// WriteSummary writes s to path in the given format (json, csv or xlsx).
func WriteSummary(path, format string, s mirror.Summary) error {
	var err error
	switch format {
	case config.SummaryFormatJSON:
		err = writeJSON(path, s)
	case config.SummaryFormatCSV:
		err = Table{Headers: OutcomeHeaders, Rows: outcomeRows(s.Outcomes), BOM: true}.Save(path)
	case config.SummaryFormatXLSX:
		err = writeXLSX(path, s)
	default:
		return apperrors.NewValidationError(fmt.Sprintf("unsupported summary format: %s", format), nil)
	}
	if err != nil {
		return apperrors.NewStorageError("failed to write summary", err).WithContext("path", path)
	}
	return nil
}

func writeJSON(path string, s mirror.Summary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

func writeXLSX(path string, s mirror.Summary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}
	for i, row := range countRows(s) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(outcomesSheet); err != nil {
		return err
	}
	header := make([]interface{}, len(OutcomeHeaders))
	for i, h := range OutcomeHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(outcomesSheet, "A1", &header); err != nil {
		return err
	}
	for i, o := range s.Outcomes {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{o.ItemID, o.Filename, o.Path, formatDate(o.Date), o.Label(), o.BytesWritten, o.ErrorMessage()}
		if err := f.SetSheetRow(outcomesSheet, cell, &row); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}

func countRows(s mirror.Summary) [][]interface{} {
	c := s.Counts
	return [][]interface{}{
		{"run_id", s.RunID},
		{"started_at", s.StartedAt.Format(time.RFC3339)},
		{"finished_at", formatTime(s.FinishedAt)},
		{"canceled", strconv.FormatBool(s.Canceled)},
		{"range", s.Range.String()},
		{"items", c.Items},
		{"folders", c.Folders},
		{"files", c.Files},
		{"downloaded", c.Downloaded},
		{"out_of_range", c.OutOfRange},
		{"unparsable_date", c.UnparsableDate},
		{"http_errors", c.HTTPErrors},
		{"write_errors", c.WriteErrors},
		{"list_failures", c.ListFailures},
		{"malformed", c.Malformed},
		{"unknown_kind", c.UnknownKind},
		{"rejected", c.Rejected},
		{"duplicates", c.Duplicates},
		{"bytes_written", c.BytesWritten},
	}
}

func outcomeRows(outcomes []mirror.Outcome) [][]string {
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		rows = append(rows, []string{
			o.ItemID,
			o.Filename,
			o.Path,
			formatDate(o.Date),
			o.Label(),
			strconv.Itoa(o.BytesWritten),
			o.ErrorMessage(),
		})
	}
	return rows
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(config.InputDateLayout)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
