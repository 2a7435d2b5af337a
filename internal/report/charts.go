package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/klytics/xlreport/internal/formats/xlsx"
)

// Sheet names used in the chart workbook.
const (
	TopSheet    = "Top"
	GlobalSheet = "Global"
)

// EncodeCharts builds a workbook with the top-N data and a clustered column
// chart on one sheet, and the global means with a pie chart on another.
func EncodeCharts(r *Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), TopSheet); err != nil {
		return nil, fmt.Errorf("could not rename sheet: %w", err)
	}
	if _, err := f.NewSheet(GlobalSheet); err != nil {
		return nil, fmt.Errorf("could not create sheet %q: %w", GlobalSheet, err)
	}

	if err := addBarChart(f, r); err != nil {
		return nil, err
	}
	if err := addPieChart(f, r); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("could not encode chart workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteCharts encodes the chart workbook and writes it to path.
func WriteCharts(r *Report, path string) error {
	data, err := EncodeCharts(r)
	if err != nil {
		return err
	}
	return xlsx.WriteFileAtomic(path, data)
}

// BarTitle is the heading of the top-N comparison chart.
func (r *Report) BarTitle() string {
	return fmt.Sprintf("%s vs %s — top %d by %s",
		r.Options.Metrics[0].Label, r.Options.Metrics[1].Label, len(r.Top), r.Options.EntityColumn)
}

// PieTitle is the heading of the global share chart.
func (r *Report) PieTitle() string {
	return fmt.Sprintf("Global average of %s and %s", r.Options.Metrics[0].Label, r.Options.Metrics[1].Label)
}

func addBarChart(f *excelize.File, r *Report) error {
	header := []interface{}{r.Options.EntityColumn, r.Options.Metrics[0].Label, r.Options.Metrics[1].Label, "Average"}
	if err := f.SetSheetRow(TopSheet, "A1", &header); err != nil {
		return fmt.Errorf("could not write chart data: %w", err)
	}
	for i, row := range r.Top {
		values := []interface{}{row.Entity, cell(row.Values[0]), cell(row.Values[1]), cell(row.Average)}
		if err := f.SetSheetRow(TopSheet, fmt.Sprintf("A%d", i+2), &values); err != nil {
			return fmt.Errorf("could not write chart data: %w", err)
		}
	}

	last := len(r.Top) + 1
	series := make([]excelize.ChartSeries, 0, 2)
	for _, col := range []string{"B", "C"} {
		series = append(series, excelize.ChartSeries{
			Name:       fmt.Sprintf("%s!$%s$1", TopSheet, col),
			Categories: fmt.Sprintf("%s!$A$2:$A$%d", TopSheet, last),
			Values:     fmt.Sprintf("%s!$%s$2:$%s$%d", TopSheet, col, col, last),
		})
	}

	return f.AddChart(TopSheet, "F2", &excelize.Chart{
		Type:      excelize.Col,
		Series:    series,
		Dimension: excelize.ChartDimension{Width: 960, Height: 480},
		Title:     []excelize.RichTextRun{{Text: r.BarTitle()}},
		Legend:    excelize.ChartLegend{Position: "top"},
		XAxis: excelize.ChartAxis{
			Alignment: excelize.Alignment{TextRotation: -45},
			Title:     []excelize.RichTextRun{{Text: r.Options.EntityColumn}},
		},
		YAxis: excelize.ChartAxis{
			MajorGridLines: true,
			Title:          []excelize.RichTextRun{{Text: "Percentage"}},
		},
	})
}

func addPieChart(f *excelize.File, r *Report) error {
	header := []interface{}{"Metric", "Mean", "Share (%)"}
	if err := f.SetSheetRow(GlobalSheet, "A1", &header); err != nil {
		return fmt.Errorf("could not write chart data: %w", err)
	}
	for i, s := range r.Global {
		values := []interface{}{s.Label, s.Value, s.Share}
		if err := f.SetSheetRow(GlobalSheet, fmt.Sprintf("A%d", i+2), &values); err != nil {
			return fmt.Errorf("could not write chart data: %w", err)
		}
	}

	last := len(r.Global) + 1
	return f.AddChart(GlobalSheet, "E2", &excelize.Chart{
		Type: excelize.Pie,
		Series: []excelize.ChartSeries{{
			Name:       fmt.Sprintf("%s!$B$1", GlobalSheet),
			Categories: fmt.Sprintf("%s!$A$2:$A$%d", GlobalSheet, last),
			Values:     fmt.Sprintf("%s!$B$2:$B$%d", GlobalSheet, last),
		}},
		Dimension: excelize.ChartDimension{Width: 640, Height: 640},
		Title:     []excelize.RichTextRun{{Text: r.PieTitle()}},
		Legend:    excelize.ChartLegend{Position: "bottom"},
		PlotArea: excelize.ChartPlotArea{
			ShowPercent: true,
			ShowCatName: true,
			NumFmt:      excelize.ChartNumFmt{CustomNumFmt: "0.0%"},
		},
	})
}

// cell leaves missing values blank.
func cell(f float64) interface{} {
	if p := nullable(f); p != nil {
		return *p
	}
	return nil
}
