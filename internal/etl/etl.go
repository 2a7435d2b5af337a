// Package etl runs the extract → transform → report → load sequence for a
// single request and turns its outcome into one user-facing message.
package etl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klytics/xlreport/internal/colrange"
	"github.com/klytics/xlreport/internal/formats/xlsx"
	"github.com/klytics/xlreport/internal/report"
	"github.com/klytics/xlreport/internal/table"
)

// DefaultOutput is the file the filtered table is written to when no other
// path is configured.
const DefaultOutput = "Reportesito.xlsx"

// Stage names used in errors and logs.
const (
	StageExtract   = "extract"
	StageTransform = "transform"
	StageReport    = "report"
	StageLoad      = "load"
)

// Request is the input of one run: the workbook bytes, the first data row
// to keep (zero-based) and the column-letter range to keep.
type Request struct {
	Source      []byte
	SourceName  string
	StartRow    int
	ColumnRange string
}

// Options controls where and how a run reads and writes.
type Options struct {
	Sheet       string
	OutputSheet string
	OutputPath  string
	ChartsPath  string
	NoCharts    bool
	Report      report.Options

	// OnStage, when set, is called as each stage begins.
	OnStage func(stage string)
}

// Outcome is everything Process computes, before anything touches disk.
type Outcome struct {
	Filtered *table.Table
	Report   *report.Report
	Output   []byte
	Charts   []byte
}

// Result describes a completed run.
type Result struct {
	OK         bool           `json:"ok"`
	Message    string         `json:"message"`
	Source     string         `json:"source,omitempty"`
	OutputPath string         `json:"outputPath,omitempty"`
	ChartsPath string         `json:"chartsPath,omitempty"`
	Rows       int            `json:"rows"`
	Columns    []string       `json:"columns,omitempty"`
	Report     *report.Report `json:"report,omitempty"`
	Duration   time.Duration  `json:"durationNs"`
}

// StageError records which stage of a run failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }

// IsUserError reports whether err was caused by the request itself (bad
// range, offset, sheet or columns) rather than by I/O.
func IsUserError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	for _, target := range []error{
		colrange.ErrInvalidRange,
		table.ErrNegativeOffset,
		table.ErrColumnOutOfRange,
		xlsx.ErrSheetNotFound,
		report.ErrMissingColumn,
		report.ErrNotNumeric,
		report.ErrNoEntities,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	var se *StageError
	return errors.As(err, &se) && se.Stage == StageExtract
}

// Transform resolves columnRange and filters t to rows [startRow:] and the
// resolved columns.
func Transform(t *table.Table, startRow int, columnRange string) (*table.Table, error) {
	indices, err := colrange.Resolve(columnRange)
	if err != nil {
		return nil, err
	}
	return table.Filter(t, startRow, indices)
}

// Process runs every stage in memory. It never writes files, so a failure
// in any stage leaves the output location untouched.
func Process(ctx context.Context, req Request, opts Options) (*Outcome, error) {
	t, err := stage(ctx, opts, StageExtract, func() (*table.Table, error) {
		return xlsx.ReadTableBytes(req.Source, opts.Sheet)
	})
	if err != nil {
		return nil, err
	}

	filtered, err := stage(ctx, opts, StageTransform, func() (*table.Table, error) {
		return Transform(t, req.StartRow, req.ColumnRange)
	})
	if err != nil {
		return nil, err
	}

	out := &Outcome{Filtered: filtered}

	out.Report, err = stage(ctx, opts, StageReport, func() (*report.Report, error) {
		return report.Build(filtered, opts.Report)
	})
	if err != nil {
		return nil, err
	}
	if !opts.NoCharts {
		out.Charts, err = stage(ctx, opts, StageReport, func() ([]byte, error) {
			return report.EncodeCharts(out.Report)
		})
		if err != nil {
			return nil, err
		}
	}

	out.Output, err = stage(ctx, opts, StageLoad, func() ([]byte, error) {
		return xlsx.EncodeTable(filtered, opts.OutputSheet)
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func stage[T any](ctx context.Context, opts Options, name string, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, &StageError{Stage: name, Err: err}
	}
	if opts.OnStage != nil {
		opts.OnStage(name)
	}
	v, err := fn()
	if err != nil {
		return zero, &StageError{Stage: name, Err: err}
	}
	return v, nil
}

// Runner executes requests and writes their outputs.
type Runner struct {
	Options Options
	Logger  *log.Logger
}

// NewRunner creates a Runner. Diagnostics go to stderr when verbose is set.
func NewRunner(opts Options, verbose bool) *Runner {
	var w io.Writer = io.Discard
	if verbose {
		w = os.Stderr
	}
	return &Runner{
		Options: opts,
		Logger:  log.New(w, "[etl] ", log.LstdFlags),
	}
}

// Run processes req and, only when every stage succeeded, writes the output
// workbook followed by the chart workbook. The returned Result always
// carries a message; err is non-nil when the run failed.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	opts := r.Options
	if opts.OutputPath == "" {
		opts.OutputPath = DefaultOutput
	}
	if opts.ChartsPath == "" && !opts.NoCharts {
		opts.ChartsPath = ChartsPathFor(opts.OutputPath)
	}

	r.logger().Printf("Processing %s (start row %d, columns %s)", displayName(req), req.StartRow, req.ColumnRange)

	res := &Result{Source: req.SourceName}
	fail := func(err error) (*Result, error) {
		r.logger().Printf("Run failed: %v", err)
		res.Message = "Error: " + rootCause(err).Error()
		res.Duration = time.Since(start)
		return res, err
	}

	out, err := Process(ctx, req, opts)
	if err != nil {
		return fail(err)
	}
	r.logger().Printf("Filtered %d row(s) x %d column(s), %d entities grouped",
		out.Filtered.NumRows(), out.Filtered.NumCols(), len(out.Report.Grouped))

	if err := xlsx.WriteFileAtomic(opts.OutputPath, out.Output); err != nil {
		return fail(&StageError{Stage: StageLoad, Err: err})
	}
	res.OutputPath = opts.OutputPath
	r.logger().Printf("Wrote %s", opts.OutputPath)

	if out.Charts != nil {
		if err := xlsx.WriteFileAtomic(opts.ChartsPath, out.Charts); err != nil {
			return fail(&StageError{Stage: StageReport, Err: err})
		}
		res.ChartsPath = opts.ChartsPath
		r.logger().Printf("Wrote %s", opts.ChartsPath)
	}

	res.OK = true
	res.Rows = out.Filtered.NumRows()
	res.Columns = out.Filtered.Columns
	res.Report = out.Report
	res.Message = fmt.Sprintf("Report saved as %s", opts.OutputPath)
	res.Duration = time.Since(start)
	return res, nil
}

// RunFile reads path (or stdin for "-") and runs it.
func (r *Runner) RunFile(ctx context.Context, path string, startRow int, columnRange string) (*Result, error) {
	req, err := NewFileRequest(path, startRow, columnRange)
	if err != nil {
		return &Result{Source: path, Message: "Error: " + err.Error()}, &StageError{Stage: StageExtract, Err: err}
	}
	return r.Run(ctx, req)
}

// NewFileRequest loads the workbook at path into a Request. A path of "-"
// reads from stdin.
func NewFileRequest(path string, startRow int, columnRange string) (Request, error) {
	req := Request{SourceName: path, StartRow: startRow, ColumnRange: columnRange}

	var err error
	if path == "-" {
		req.SourceName = "stdin"
		req.Source, err = io.ReadAll(os.Stdin)
		if err != nil {
			return req, fmt.Errorf("could not read from stdin: %w", err)
		}
		if len(req.Source) == 0 {
			return req, fmt.Errorf("no input provided — pass an .xlsx file path or pipe data to stdin")
		}
		return req, nil
	}

	if !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return req, fmt.Errorf("expected an .xlsx file, got %q", path)
	}
	req.Source, err = os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return req, fmt.Errorf("file not found: %s — check that the path is correct", path)
		}
		return req, fmt.Errorf("could not read %s: %w", path, err)
	}
	return req, nil
}

// ChartsPathFor derives the chart workbook path from the output path, so
// Reportesito.xlsx gets Reportesito_charts.xlsx.
func ChartsPathFor(output string) string {
	ext := filepath.Ext(output)
	return strings.TrimSuffix(output, ext) + "_charts.xlsx"
}

func (r *Runner) logger() *log.Logger {
	if r.Logger == nil {
		r.Logger = log.New(io.Discard, "", 0)
	}
	return r.Logger
}

func displayName(req Request) string {
	if req.SourceName != "" {
		return req.SourceName
	}
	return fmt.Sprintf("%d-byte workbook", len(req.Source))
}

func rootCause(err error) error {
	var se *StageError
	if errors.As(err, &se) {
		return se.Err
	}
	return err
}
