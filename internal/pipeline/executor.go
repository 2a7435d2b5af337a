package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/klytics/xlreport/internal/etl"
)

// JobResult holds the outcome of one job.
type JobResult struct {
	JobID   string      `json:"jobId"`
	Result  *etl.Result `json:"result,omitempty"`
	Skipped bool        `json:"skipped,omitempty"`
	Error   error       `json:"-"`
}

// Executor runs jobs sequentially, resolving variable interpolation between
// jobs.
type Executor struct {
	// Defaults applied to jobs that leave a field empty.
	Options  etl.Options
	StartRow int
	Columns  string

	Logger *log.Logger
	// OnJob, when set, is called after each job finishes.
	OnJob func(JobResult)

	results map[string]*JobResult
	dryRun  bool
}

// NewExecutor creates a new executor with the given defaults.
func NewExecutor(opts etl.Options, startRow int, columns string, verbose bool) *Executor {
	var w io.Writer = io.Discard
	if verbose {
		w = os.Stderr
	}
	return &Executor{
		Options:  opts,
		StartRow: startRow,
		Columns:  columns,
		Logger:   log.New(w, "[pipeline] ", log.LstdFlags),
		results:  make(map[string]*JobResult),
	}
}

// SetDryRun enables dry-run mode: every job is processed in memory but no
// file is written.
func (e *Executor) SetDryRun(dryRun bool) {
	e.dryRun = dryRun
}

// Run executes all jobs in the pipeline sequentially. A failing job stops
// the pipeline unless it is marked on_failure: skip.
func (e *Executor) Run(ctx context.Context, p *Pipeline) ([]JobResult, error) {
	var results []JobResult

	e.Logger.Printf("Running pipeline: %s (v%s)", p.Name, p.Version)
	if e.dryRun {
		e.Logger.Println("Dry-run mode, no files will be written")
	}

	for i, job := range p.Jobs {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		e.Logger.Printf("[%d/%d] Running job: %s (%s)", i+1, len(p.Jobs), job.ID, job.Input)
		resolved := e.resolveJobVariables(job)

		start := time.Now()
		res, err := e.runJob(ctx, resolved)
		e.Logger.Printf("Completed in %s", time.Since(start).Round(time.Millisecond))

		result := JobResult{JobID: resolved.ID, Result: res, Error: err}
		if err != nil && resolved.OnFailure == "skip" {
			result.Skipped = true
		}
		results = append(results, result)
		e.results[resolved.ID] = &result
		if e.OnJob != nil {
			e.OnJob(result)
		}

		if err != nil {
			if result.Skipped {
				e.Logger.Printf("Job %s failed (skipping): %s", resolved.ID, err)
				continue
			}
			return results, fmt.Errorf("job %q failed: %w", resolved.ID, err)
		}
	}

	return results, nil
}

func (e *Executor) runJob(ctx context.Context, job Job) (*etl.Result, error) {
	opts := e.Options
	if job.Sheet != "" {
		opts.Sheet = job.Sheet
	}
	if job.Output != "" {
		opts.OutputPath = job.Output
		// A shared charts path would be overwritten by every job.
		opts.ChartsPath = ""
	}
	if job.Charts != "" {
		opts.ChartsPath = job.Charts
	}
	if job.NoCharts {
		opts.NoCharts = true
	}

	startRow := e.StartRow
	if job.StartRow != nil {
		startRow = *job.StartRow
	}
	columns := e.Columns
	if job.Columns != "" {
		columns = job.Columns
	}

	runner := &etl.Runner{Options: opts, Logger: e.Logger}
	if !e.dryRun {
		return runner.RunFile(ctx, job.Input, startRow, columns)
	}

	req, err := etl.NewFileRequest(job.Input, startRow, columns)
	if err != nil {
		return &etl.Result{Source: job.Input, Message: "Error: " + err.Error()}, err
	}
	out, err := etl.Process(ctx, req, opts)
	if err != nil {
		return &etl.Result{Source: job.Input, Message: "Error: " + err.Error()}, err
	}
	output := opts.OutputPath
	if output == "" {
		output = etl.DefaultOutput
	}
	return &etl.Result{
		OK:      true,
		Message: fmt.Sprintf("[DRY-RUN] Would save report as %s", output),
		Source:  req.SourceName,
		Rows:    out.Filtered.NumRows(),
		Columns: out.Filtered.Columns,
		Report:  out.Report,
	}, nil
}

var interpolationPattern = regexp.MustCompile(`\$\{\{\s*([^}]+)\s*\}\}`)

func (e *Executor) resolveJobVariables(job Job) Job {
	resolved := job
	resolved.Input = e.interpolate(job.Input)
	resolved.Sheet = e.interpolate(job.Sheet)
	resolved.Columns = e.interpolate(job.Columns)
	resolved.Output = e.interpolate(job.Output)
	resolved.Charts = e.interpolate(job.Charts)
	return resolved
}

func (e *Executor) interpolate(s string) string {
	return interpolationPattern.ReplaceAllStringFunc(s, func(match string) string {
		inner := interpolationPattern.FindStringSubmatch(match)
		if len(inner) < 2 {
			return match
		}
		expr := strings.TrimSpace(inner[1])

		// Handle jobs.<id>.output and jobs.<id>.charts
		if strings.HasPrefix(expr, "jobs.") {
			parts := strings.Split(expr, ".")
			if len(parts) == 3 {
				if result, ok := e.results[parts[1]]; ok && result.Result != nil {
					switch parts[2] {
					case "output":
						return result.Result.OutputPath
					case "charts":
						return result.Result.ChartsPath
					}
				}
			}
		}

		if expr == "date.today" {
			return time.Now().Format("2006-01-02")
		}

		if expr == "date.now" || expr == "date.timestamp" {
			return time.Now().Format(time.RFC3339)
		}

		if strings.HasPrefix(expr, "env.") {
			return os.Getenv(strings.TrimPrefix(expr, "env."))
		}

		return match
	})
}
