package etl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klytics/xlreport/internal/colrange"
	"github.com/klytics/xlreport/internal/formats/xlsx"
	"github.com/klytics/xlreport/internal/report"
	"github.com/klytics/xlreport/internal/table"
)

func workbook(t *testing.T, grid [][]string) []byte {
	t.Helper()
	data, err := xlsx.EncodeTable(table.FromGrid(grid), xlsx.DefaultSheet)
	require.NoError(t, err)
	return data
}

func scenario(t *testing.T) []byte {
	return workbook(t, [][]string{
		{"Entity", "Schizophrenia (%)", "Bipolar disorder (%)"},
		{"CountryA", "2", "1"},
		{"CountryB", "1", "3"},
	})
}

func newTestRunner(dir string) *Runner {
	return NewRunner(Options{OutputPath: filepath.Join(dir, "Reportesito.xlsx")}, false)
}

func TestRunScenario(t *testing.T) {
	dir := t.TempDir()
	r := newTestRunner(dir)

	res, err := r.Run(context.Background(), Request{Source: scenario(t), StartRow: 0, ColumnRange: "A:C"})
	require.NoError(t, err)

	assert.True(t, res.OK)
	assert.Equal(t, "Report saved as "+filepath.Join(dir, "Reportesito.xlsx"), res.Message)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, filepath.Join(dir, "Reportesito_charts.xlsx"), res.ChartsPath)

	require.NotNil(t, res.Report)
	assert.InDelta(t, 1.5, res.Report.Grouped[0].Average, 1e-9)
	assert.InDelta(t, 2.0, res.Report.Grouped[1].Average, 1e-9)
	assert.InDelta(t, 1.5, res.Report.Global[0].Value, 1e-9)
	assert.InDelta(t, 2.0, res.Report.Global[1].Value, 1e-9)

	written, err := xlsx.ReadTableFile(res.OutputPath, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Entity", "Schizophrenia (%)", "Bipolar disorder (%)"}, written.Columns)
	assert.Equal(t, [][]string{{"CountryA", "2", "1"}, {"CountryB", "1", "3"}}, written.Rows)

	_, err = os.Stat(res.ChartsPath)
	assert.NoError(t, err)
}

func TestRunLoaderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := workbook(t, [][]string{
		{"Entity", "Code", "Year", "Schizophrenia (%)", "Bipolar disorder (%)"},
		{"Chile", "CHL", "2018", "0.2", "0.7"},
		{"Chile", "CHL", "2019", "0.21", "0.71"},
		{"Peru", "PER", "2019", "0.19", "0.65"},
	})

	out, err := Process(context.Background(), Request{Source: src, StartRow: 1, ColumnRange: "A:E"}, Options{NoCharts: true})
	require.NoError(t, err)
	assert.Nil(t, out.Charts)

	path := filepath.Join(dir, "rt.xlsx")
	require.NoError(t, os.WriteFile(path, out.Output, 0644))

	back, err := xlsx.ReadTableFile(path, "")
	require.NoError(t, err)
	assert.Equal(t, out.Filtered.Columns, back.Columns)
	assert.Equal(t, out.Filtered.Rows, back.Rows)
	assert.Equal(t, 2, back.NumRows())
}

func TestRunCorruptInput(t *testing.T) {
	dir := t.TempDir()
	r := newTestRunner(dir)

	res, err := r.Run(context.Background(), Request{Source: []byte("garbage"), ColumnRange: "A:C"})
	require.Error(t, err)

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageExtract, se.Stage)
	assert.False(t, res.OK)
	assert.Contains(t, res.Message, "Error: ")
	assert.Nil(t, res.Report)
	assert.True(t, IsUserError(err))

	_, statErr := os.Stat(filepath.Join(dir, "Reportesito.xlsx"))
	assert.True(t, os.IsNotExist(statErr), "output must not be written")
}

func TestRunReportFailureWritesNothing(t *testing.T) {
	dir := t.TempDir()
	r := newTestRunner(dir)

	// A:B drops the bipolar column, so the report stage fails after a
	// successful transform.
	_, err := r.Run(context.Background(), Request{Source: scenario(t), ColumnRange: "A:B"})
	require.ErrorIs(t, err, report.ErrMissingColumn)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunInvalidRange(t *testing.T) {
	r := newTestRunner(t.TempDir())
	res, err := r.Run(context.Background(), Request{Source: scenario(t), ColumnRange: "C:A"})
	require.ErrorIs(t, err, colrange.ErrInvalidRange)
	assert.True(t, IsUserError(err))
	assert.Contains(t, res.Message, "invalid column range")
}

func TestRunColumnOutOfRange(t *testing.T) {
	r := newTestRunner(t.TempDir())
	_, err := r.Run(context.Background(), Request{Source: scenario(t), ColumnRange: "A:F"})
	require.ErrorIs(t, err, table.ErrColumnOutOfRange)

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageTransform, se.Stage)
}

func TestRunStartRowPastEnd(t *testing.T) {
	r := newTestRunner(t.TempDir())
	_, err := r.Run(context.Background(), Request{Source: scenario(t), StartRow: 10, ColumnRange: "A:C"})
	require.ErrorIs(t, err, report.ErrNoEntities)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newTestRunner(t.TempDir())
	_, err := r.Run(ctx, Request{Source: scenario(t), ColumnRange: "A:C"})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsUserError(err))
}

func TestIsUserError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"bad range", colrange.ErrInvalidRange, true},
		{"corrupt input", &StageError{Stage: StageExtract, Err: errors.New("zip: not a valid zip file")}, true},
		{"cancelled during extract", &StageError{Stage: StageExtract, Err: context.Canceled}, false},
		{"deadline during extract", &StageError{Stage: StageExtract, Err: context.DeadlineExceeded}, false},
		{"write failure", &StageError{Stage: StageLoad, Err: errors.New("disk full")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUserError(tt.err))
		})
	}
}

func TestRunLastWriteWins(t *testing.T) {
	dir := t.TempDir()
	r := newTestRunner(dir)

	_, err := r.Run(context.Background(), Request{Source: scenario(t), ColumnRange: "A:C"})
	require.NoError(t, err)
	res, err := r.Run(context.Background(), Request{Source: scenario(t), StartRow: 1, ColumnRange: "A:C"})
	require.NoError(t, err)

	written, err := xlsx.ReadTableFile(res.OutputPath, "")
	require.NoError(t, err)
	assert.Equal(t, 1, written.NumRows())
	assert.Equal(t, "CountryB", written.Rows[0][0])
}

func TestTransform(t *testing.T) {
	tbl := table.FromGrid([][]string{
		{"a", "b", "c", "d"},
		{"1", "2", "3", "4"},
		{"5", "6", "7", "8"},
	})

	out, err := Transform(tbl, 1, "B:C")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, out.Columns)
	assert.Equal(t, [][]string{{"6", "7"}}, out.Rows)

	_, err = Transform(tbl, 0, "B")
	assert.ErrorIs(t, err, colrange.ErrInvalidRange)
}

func TestNewFileRequest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.xlsx")
	require.NoError(t, os.WriteFile(path, scenario(t), 0644))

	req, err := NewFileRequest(path, 0, "A:C")
	require.NoError(t, err)
	assert.Equal(t, path, req.SourceName)
	assert.NotEmpty(t, req.Source)

	_, err = NewFileRequest(filepath.Join(dir, "in.csv"), 0, "A:C")
	assert.Error(t, err)

	_, err = NewFileRequest(filepath.Join(dir, "missing.xlsx"), 0, "A:C")
	assert.Error(t, err)
}

func TestChartsPathFor(t *testing.T) {
	assert.Equal(t, "Reportesito_charts.xlsx", ChartsPathFor("Reportesito.xlsx"))
	assert.Equal(t, filepath.Join("out", "r_charts.xlsx"), ChartsPathFor(filepath.Join("out", "r.xlsx")))
}

func TestProcessReportsStages(t *testing.T) {
	var stages []string
	opts := Options{OnStage: func(s string) { stages = append(stages, s) }}

	_, err := Process(context.Background(), Request{Source: scenario(t), ColumnRange: "A:C"}, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{StageExtract, StageTransform, StageReport, StageReport, StageLoad}, stages)

	stages = nil
	opts.NoCharts = true
	_, err = Process(context.Background(), Request{Source: scenario(t), ColumnRange: "C:A"}, opts)
	require.Error(t, err)
	assert.Equal(t, []string{StageExtract, StageTransform}, stages)
}
