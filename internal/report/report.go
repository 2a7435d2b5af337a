// Package report derives the per-entity comparison and global share views
// from a filtered table and renders them as charts.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/montanaflynn/stats"

	"github.com/klytics/xlreport/internal/table"
)

var (
	// ErrMissingColumn is returned when the entity or a metric column is
	// absent from the table.
	ErrMissingColumn = errors.New("missing column")
	// ErrNotNumeric is returned when a metric cell holds non-numeric text.
	ErrNotNumeric = errors.New("value is not numeric")
	// ErrNoEntities is returned when no row has an entity value.
	ErrNoEntities = errors.New("no entities to report")
)

// Metric names a numeric column and the label shown for it in charts.
type Metric struct {
	Column string `json:"column" mapstructure:"column" yaml:"column"`
	Label  string `json:"label" mapstructure:"label" yaml:"label"`
}

// Options configures which columns the report reads.
type Options struct {
	EntityColumn string    `json:"entityColumn"`
	Metrics      [2]Metric `json:"metrics"`
	TopN         int       `json:"topN"`
}

// DefaultOptions returns the column names of the mental-health prevalence
// dataset the tool was built around.
func DefaultOptions() Options {
	return Options{
		EntityColumn: "Entity",
		Metrics: [2]Metric{
			{Column: "Schizophrenia (%)", Label: "Esquizofrenia"},
			{Column: "Bipolar disorder (%)", Label: "Trastorno Bipolar"},
		},
		TopN: 10,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.EntityColumn == "" {
		o.EntityColumn = def.EntityColumn
	}
	for i := range o.Metrics {
		if o.Metrics[i].Column == "" {
			o.Metrics[i].Column = def.Metrics[i].Column
		}
		if o.Metrics[i].Label == "" {
			o.Metrics[i].Label = o.Metrics[i].Column
		}
	}
	if o.TopN <= 0 {
		o.TopN = def.TopN
	}
	return o
}

// Row is one entity with the metric values of its last occurring row.
// Missing values are NaN.
type Row struct {
	Entity  string
	Values  [2]float64
	Average float64
}

// MarshalJSON encodes missing values as null.
func (r Row) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Entity  string      `json:"entity"`
		Values  [2]*float64 `json:"values"`
		Average *float64    `json:"average"`
	}{
		Entity:  r.Entity,
		Values:  [2]*float64{nullable(r.Values[0]), nullable(r.Values[1])},
		Average: nullable(r.Average),
	})
}

// Slice is one wedge of the global pie.
type Slice struct {
	Label  string  `json:"label"`
	Column string  `json:"column"`
	Value  float64 `json:"value"`
	Share  float64 `json:"share"`
}

// Report holds every view derived from one filtered table.
type Report struct {
	Options Options `json:"options"`
	Grouped []Row   `json:"grouped"`
	Top     []Row   `json:"top"`
	Global  []Slice `json:"global"`
}

// Build groups t by entity and derives the top-N and global views.
func Build(t *table.Table, opts Options) (*Report, error) {
	opts = opts.withDefaults()

	grouped, err := Group(t, opts)
	if err != nil {
		return nil, err
	}
	if len(grouped) == 0 {
		return nil, fmt.Errorf("%w: column %q has no values in the selected rows", ErrNoEntities, opts.EntityColumn)
	}

	return &Report{
		Options: opts,
		Grouped: grouped,
		Top:     TopN(grouped, opts.TopN),
		Global:  Global(grouped, opts.Metrics),
	}, nil
}

// Group keeps the last occurring row for each non-empty entity and computes
// the mean of its two metrics. Rows are ordered by entity name.
func Group(t *table.Table, opts Options) ([]Row, error) {
	opts = opts.withDefaults()

	entityIdx := t.ColumnIndex(opts.EntityColumn)
	if entityIdx < 0 {
		return nil, fmt.Errorf("%w %q — available columns: %v", ErrMissingColumn, opts.EntityColumn, t.Columns)
	}
	var metricIdx [2]int
	for i, m := range opts.Metrics {
		metricIdx[i] = t.ColumnIndex(m.Column)
		if metricIdx[i] < 0 {
			return nil, fmt.Errorf("%w %q — available columns: %v", ErrMissingColumn, m.Column, t.Columns)
		}
	}

	last := make(map[string]int)
	for i, row := range t.Rows {
		if row[entityIdx] == "" {
			continue
		}
		last[row[entityIdx]] = i
	}

	entities := make([]string, 0, len(last))
	for e := range last {
		entities = append(entities, e)
	}
	sort.Strings(entities)

	out := make([]Row, 0, len(entities))
	for _, e := range entities {
		src := t.Rows[last[e]]
		r := Row{Entity: e}
		for i, idx := range metricIdx {
			v, err := parseMetric(src[idx])
			if err != nil {
				return nil, fmt.Errorf("%w: column %q, entity %q, row %d: %q",
					ErrNotNumeric, opts.Metrics[i].Column, e, last[e]+1, src[idx])
			}
			r.Values[i] = v
		}
		r.Average = average(r.Values[:])
		out = append(out, r)
	}

	return out, nil
}

// TopN returns the n rows with the highest average, highest first. Rows with
// a missing average rank last; ties keep their input order.
func TopN(rows []Row, n int) []Row {
	sorted := append([]Row(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Average, sorted[j].Average
		if math.IsNaN(b) {
			return !math.IsNaN(a)
		}
		if math.IsNaN(a) {
			return false
		}
		return a > b
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Global computes the unweighted mean of each metric across all rows and the
// share of the pie each mean represents.
func Global(rows []Row, metrics [2]Metric) []Slice {
	slices := make([]Slice, len(metrics))
	total := 0.0
	for i, m := range metrics {
		var data stats.Float64Data
		for _, r := range rows {
			if !math.IsNaN(r.Values[i]) {
				data = append(data, r.Values[i])
			}
		}
		mean, err := stats.Mean(data)
		if err != nil {
			mean = 0
		}
		slices[i] = Slice{Label: m.Label, Column: m.Column, Value: mean}
		total += mean
	}
	if total != 0 {
		for i := range slices {
			slices[i].Share = slices[i].Value / total * 100
		}
	}
	return slices
}

// GroupedTable turns rows back into a table with the entity column and the
// two metric columns.
func GroupedTable(rows []Row, opts Options) *table.Table {
	opts = opts.withDefaults()
	cols := []string{opts.EntityColumn, opts.Metrics[0].Column, opts.Metrics[1].Column}
	grid := make([][]string, len(rows))
	for i, r := range rows {
		grid[i] = []string{r.Entity, formatValue(r.Values[0]), formatValue(r.Values[1])}
	}
	return table.New(cols, grid)
}

func parseMetric(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	// ParseFloat accepts "inf" and "NaN" spellings.
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, strconv.ErrSyntax
	}
	return v, nil
}

func average(values []float64) float64 {
	for _, v := range values {
		if math.IsNaN(v) {
			return math.NaN()
		}
	}
	mean, err := stats.Mean(values)
	if err != nil {
		return math.NaN()
	}
	return mean
}

func nullable(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func formatValue(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatNumber formats a float for display with at most two decimals.
func formatNumber(f float64) string {
	if math.IsNaN(f) {
		return "n/a"
	}
	if f == math.Trunc(f) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}
