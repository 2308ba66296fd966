package exporter

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"pbimirror/internal/config"
	"pbimirror/internal/datefilter"
	apperrors "pbimirror/internal/errors"
	"pbimirror/internal/mirror"
)

func sampleSummary() mirror.Summary {
	return mirror.Summary{
		RunID:      "run-1",
		StartedAt:  time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2024, 2, 1, 9, 5, 0, 0, time.UTC),
		Finished:   true,
		Range: datefilter.Range{
			Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		},
		Counts: mirror.Counts{Items: 3, Folders: 1, Files: 2, Downloaded: 1, OutOfRange: 1, BytesWritten: 7},
		Outcomes: []mirror.Outcome{
			{
				ItemID: "W1", Filename: "SBL_P5_A_B_240101.xlsx", Path: "out/Reports/SBL_P5_A_B_240101.xlsx",
				Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Succeeded: true, BytesWritten: 7,
			},
			{
				ItemID: "W2", Filename: "SBL_P5_A_B_230101.xlsx", Path: "out/Reports/SBL_P5_A_B_230101.xlsx",
				Date: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), Reason: mirror.ReasonOutOfRange,
			},
		},
	}
}

func TestWriteSummary_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "summary.json")
	require.NoError(t, WriteSummary(path, config.SummaryFormatJSON, sampleSummary()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	type outcomeJSON struct {
		ItemID string `json:"item_id"`
		Reason string `json:"reason"`
	}
	var decoded struct {
		RunID    string        `json:"run_id"`
		Counts   mirror.Counts `json:"counts"`
		Outcomes []outcomeJSON `json:"outcomes"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Equal(t, 1, decoded.Counts.Downloaded)
	require.Len(t, decoded.Outcomes, 2)
	assert.Equal(t, "out_of_range", decoded.Outcomes[1].Reason)
}

func TestWriteSummary_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.csv")
	require.NoError(t, WriteSummary(path, config.SummaryFormatCSV, sampleSummary()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "\xEF\xBB\xBF"))

	records, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(data), "\xEF\xBB\xBF"))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, OutcomeHeaders, records[0])
	assert.Equal(t, []string{"W1", "SBL_P5_A_B_240101.xlsx", "out/Reports/SBL_P5_A_B_240101.xlsx", "2024-01-01", "succeeded", "7", ""}, records[1])
	assert.Equal(t, "out_of_range", records[2][4])
}

func TestWriteSummary_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.xlsx")
	require.NoError(t, WriteSummary(path, config.SummaryFormatXLSX, sampleSummary()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Summary", "Outcomes"}, f.GetSheetList())

	summaryRows, err := f.GetRows("Summary")
	require.NoError(t, err)
	assert.Equal(t, []string{"run_id", "run-1"}, summaryRows[0])
	assert.Contains(t, summaryRows, []string{"downloaded", "1"})
	assert.Contains(t, summaryRows, []string{"range", "[2024-01-01, 2024-01-31]"})

	outcomeRows, err := f.GetRows("Outcomes")
	require.NoError(t, err)
	require.Len(t, outcomeRows, 3)
	assert.Equal(t, OutcomeHeaders, outcomeRows[0])
	assert.Equal(t, "W2", outcomeRows[2][0])
	assert.Equal(t, "out_of_range", outcomeRows[2][4])
}

func TestWriteSummary_UnsupportedFormat(t *testing.T) {
	err := WriteSummary(filepath.Join(t.TempDir(), "s.yaml"), "yaml", sampleSummary())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestTable_SaveWithoutBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "plain.csv")
	require.NoError(t, Table{Headers: []string{"a"}, Rows: [][]string{{"1"}}}.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a\n1\n", string(data))
}

func TestTable_EncodeQuotesFields(t *testing.T) {
	var buf strings.Builder
	tbl := Table{Rows: [][]string{{"a,b", `say "hi"`}}, BOM: true}
	require.NoError(t, tbl.Encode(&buf))
	assert.Equal(t, "\ufeff\"a,b\",\"say \"\"hi\"\"\"\n", buf.String())
}
