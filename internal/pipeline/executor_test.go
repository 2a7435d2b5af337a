package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klytics/xlreport/internal/etl"
	"github.com/klytics/xlreport/internal/formats/xlsx"
	"github.com/klytics/xlreport/internal/table"
)

func writeInput(t *testing.T, dir, name string) string {
	t.Helper()
	tbl := table.FromGrid([][]string{
		{"Entity", "Schizophrenia (%)", "Bipolar disorder (%)"},
		{"CountryA", "2", "1"},
		{"CountryB", "1", "3"},
	})
	path := filepath.Join(dir, name)
	if err := xlsx.WriteTable(tbl, path, ""); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestExecutor(dir string) *Executor {
	return NewExecutor(etl.Options{OutputPath: filepath.Join(dir, "Reportesito.xlsx")}, 0, "A:C", false)
}

func intPtr(n int) *int { return &n }

func TestInterpolateDateToday(t *testing.T) {
	e := newTestExecutor(t.TempDir())
	result := e.interpolate("report-${{ date.today }}.xlsx")
	today := time.Now().Format("2006-01-02")

	if !strings.Contains(result, today) {
		t.Errorf("expected today's date %q in result %q", today, result)
	}
}

func TestInterpolateEnvVar(t *testing.T) {
	t.Setenv("XLREPORT_TEST_DIR", "/data")

	e := newTestExecutor(t.TempDir())
	result := e.interpolate("${{ env.XLREPORT_TEST_DIR }}/in.xlsx")

	if result != "/data/in.xlsx" {
		t.Errorf("unexpected result %q", result)
	}
}

func TestInterpolateUnknownLeftAlone(t *testing.T) {
	e := newTestExecutor(t.TempDir())
	in := "${{ jobs.missing.output }}"
	if got := e.interpolate(in); got != in {
		t.Errorf("expected %q unchanged, got %q", in, got)
	}
}

func TestRunJobs(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "in.xlsx")

	e := newTestExecutor(dir)
	p := &Pipeline{
		Name: "test",
		Jobs: []Job{
			{ID: "all", Input: input, Output: filepath.Join(dir, "all.xlsx")},
			{ID: "tail", Input: input, StartRow: intPtr(1), Output: filepath.Join(dir, "tail.xlsx"), NoCharts: true},
		},
	}

	results, err := e.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Result.Rows != 2 || results[1].Result.Rows != 1 {
		t.Errorf("unexpected row counts: %d %d", results[0].Result.Rows, results[1].Result.Rows)
	}
	if results[0].Result.ChartsPath != filepath.Join(dir, "all_charts.xlsx") {
		t.Errorf("unexpected charts path %q", results[0].Result.ChartsPath)
	}
	if _, err := os.Stat(filepath.Join(dir, "tail_charts.xlsx")); !os.IsNotExist(err) {
		t.Error("charts should not be written when no_charts is set")
	}
}

func TestJobOutputFlowsToNextJob(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "in.xlsx")

	e := newTestExecutor(dir)
	p := &Pipeline{
		Name: "chain",
		Jobs: []Job{
			{ID: "first", Input: input, Output: filepath.Join(dir, "first.xlsx")},
			// The filtered output keeps the header, so it can be filtered again.
			{ID: "second", Input: "${{ jobs.first.output }}", StartRow: intPtr(1), Output: filepath.Join(dir, "second.xlsx")},
		},
	}

	results, err := e.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if results[1].Result.Source != filepath.Join(dir, "first.xlsx") {
		t.Errorf("second job read %q", results[1].Result.Source)
	}
	if results[1].Result.Rows != 1 {
		t.Errorf("expected 1 row, got %d", results[1].Result.Rows)
	}
}

func TestFailingJobStops(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "in.xlsx")

	e := newTestExecutor(dir)
	p := &Pipeline{
		Name: "test",
		Jobs: []Job{
			{ID: "bad", Input: filepath.Join(dir, "missing.xlsx")},
			{ID: "good", Input: input},
		},
	}

	results, err := e.Run(context.Background(), p)
	if err == nil {
		t.Fatal("expected error for missing input")
	}
	if !strings.Contains(err.Error(), `job "bad" failed`) {
		t.Errorf("unexpected error: %s", err)
	}
	if len(results) != 1 {
		t.Errorf("pipeline should stop after the failing job, got %d results", len(results))
	}
}

func TestSkipOnFailure(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "in.xlsx")

	e := newTestExecutor(dir)
	p := &Pipeline{
		Name: "test",
		Jobs: []Job{
			{ID: "bad", Input: input, Columns: "A:F", OnFailure: "skip"},
			{ID: "good", Input: input},
		},
	}

	results, err := e.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("Run should not fail with on_failure=skip: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Error == nil || !results[0].Skipped {
		t.Error("first job should have failed and been skipped")
	}
	if !results[1].Result.OK {
		t.Errorf("second job should have run, got %q", results[1].Result.Message)
	}
}

func TestDryRunWritesNothing(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "in.xlsx")

	e := newTestExecutor(dir)
	e.SetDryRun(true)
	p := &Pipeline{Name: "test", Jobs: []Job{{ID: "only", Input: input}}}

	results, err := e.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(results[0].Result.Message, "DRY-RUN") {
		t.Errorf("expected DRY-RUN in message, got %q", results[0].Result.Message)
	}
	if results[0].Result.Report == nil {
		t.Error("dry run should still build the report")
	}
	if _, err := os.Stat(filepath.Join(dir, "Reportesito.xlsx")); !os.IsNotExist(err) {
		t.Error("dry run must not write the output file")
	}
}

func TestOnJobCallback(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "in.xlsx")

	e := newTestExecutor(dir)
	e.SetDryRun(true)
	var seen []string
	e.OnJob = func(r JobResult) { seen = append(seen, r.JobID) }

	p := &Pipeline{Name: "test", Jobs: []Job{{ID: "a", Input: input}, {ID: "b", Input: input}}}
	if _, err := e.Run(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	if strings.Join(seen, ",") != "a,b" {
		t.Errorf("unexpected callbacks: %v", seen)
	}
}
