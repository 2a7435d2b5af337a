package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/klytics/xlreport/internal/table"
)

func countries() *table.Table {
	return table.FromGrid([][]string{
		{"Entity", "Schizophrenia (%)", "Bipolar disorder (%)"},
		{"CountryA", "2.0", "1.0"},
		{"CountryB", "1.0", "3.0"},
	})
}

func TestBuildScenario(t *testing.T) {
	r, err := Build(countries(), DefaultOptions())
	require.NoError(t, err)

	require.Len(t, r.Grouped, 2)
	assert.Equal(t, "CountryA", r.Grouped[0].Entity)
	assert.InDelta(t, 1.5, r.Grouped[0].Average, 1e-9)
	assert.Equal(t, "CountryB", r.Grouped[1].Entity)
	assert.InDelta(t, 2.0, r.Grouped[1].Average, 1e-9)

	require.Len(t, r.Top, 2)
	assert.Equal(t, "CountryB", r.Top[0].Entity)
	assert.Equal(t, "CountryA", r.Top[1].Entity)

	require.Len(t, r.Global, 2)
	assert.InDelta(t, 1.5, r.Global[0].Value, 1e-9)
	assert.InDelta(t, 2.0, r.Global[1].Value, 1e-9)
	assert.InDelta(t, 100*1.5/3.5, r.Global[0].Share, 1e-9)
	assert.InDelta(t, 100.0, r.Global[0].Share+r.Global[1].Share, 1e-9)
}

func TestGroupKeepsLastRow(t *testing.T) {
	tbl := table.FromGrid([][]string{
		{"Entity", "Year", "Schizophrenia (%)", "Bipolar disorder (%)"},
		{"Chile", "2017", "9", "9"},
		{"Peru", "2017", "1", "1"},
		{"", "2017", "5", "5"},
		{"Chile", "2018", "0.2", "0.4"},
	})

	rows, err := Group(tbl, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Chile", rows[0].Entity)
	assert.Equal(t, [2]float64{0.2, 0.4}, rows[0].Values)
	assert.InDelta(t, 0.3, rows[0].Average, 1e-9)
}

func TestGroupIdempotent(t *testing.T) {
	tbl := table.FromGrid([][]string{
		{"Entity", "Schizophrenia (%)", "Bipolar disorder (%)"},
		{"B", "1", "2"},
		{"A", "3", "4"},
		{"B", "5", "6"},
		{"C", "0.25", ""},
	})
	opts := DefaultOptions()

	once, err := Group(tbl, opts)
	require.NoError(t, err)
	twice, err := Group(GroupedTable(once, opts), opts)
	require.NoError(t, err)

	require.Len(t, twice, len(once))
	for i := range once {
		assert.Equal(t, once[i].Entity, twice[i].Entity)
		for j := range once[i].Values {
			a, b := once[i].Values[j], twice[i].Values[j]
			if math.IsNaN(a) {
				assert.True(t, math.IsNaN(b))
				continue
			}
			assert.Equal(t, a, b)
		}
	}
}

func TestGroupMissingColumn(t *testing.T) {
	tbl := table.FromGrid([][]string{{"Entity", "Schizophrenia (%)"}, {"A", "1"}})
	_, err := Group(tbl, DefaultOptions())
	assert.ErrorIs(t, err, ErrMissingColumn)

	tbl = table.FromGrid([][]string{{"Country", "Schizophrenia (%)", "Bipolar disorder (%)"}})
	_, err = Build(tbl, DefaultOptions())
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestGroupNotNumeric(t *testing.T) {
	for _, value := range []string{"high", "inf", "-Infinity", "NaN"} {
		t.Run(value, func(t *testing.T) {
			tbl := table.FromGrid([][]string{
				{"Entity", "Schizophrenia (%)", "Bipolar disorder (%)"},
				{"A", value, "1"},
				{"B", "1", "3"},
			})
			_, err := Group(tbl, DefaultOptions())
			assert.ErrorIs(t, err, ErrNotNumeric)

			_, err = Build(tbl, DefaultOptions())
			assert.ErrorIs(t, err, ErrNotNumeric)
		})
	}
}

func TestBuildNoEntities(t *testing.T) {
	tbl := table.FromGrid([][]string{{"Entity", "Schizophrenia (%)", "Bipolar disorder (%)"}})
	_, err := Build(tbl, DefaultOptions())
	assert.ErrorIs(t, err, ErrNoEntities)
}

func TestTopNSelection(t *testing.T) {
	var rows []Row
	for i := 0; i < 15; i++ {
		v := float64((i * 7) % 15)
		rows = append(rows, Row{Entity: fmt.Sprintf("E%02d", i), Values: [2]float64{v, v}, Average: v})
	}
	rows = append(rows, Row{Entity: "Missing", Values: [2]float64{math.NaN(), 1}, Average: math.NaN()})

	top := TopN(rows, 10)
	require.Len(t, top, 10)
	for i, r := range top {
		assert.Equal(t, float64(14-i), r.Average)
	}

	all := TopN(rows, 100)
	require.Len(t, all, 16)
	assert.Equal(t, "Missing", all[15].Entity)

	few := TopN(rows[:3], 10)
	assert.Len(t, few, 3)
}

func TestTopNTiesKeepOrder(t *testing.T) {
	rows := []Row{
		{Entity: "A", Average: 1},
		{Entity: "B", Average: 2},
		{Entity: "C", Average: 1},
	}
	top := TopN(rows, 10)
	assert.Equal(t, []string{"B", "A", "C"}, []string{top[0].Entity, top[1].Entity, top[2].Entity})
}

func TestGlobalUsesAllEntities(t *testing.T) {
	var grid [][]string
	grid = append(grid, []string{"Entity", "Schizophrenia (%)", "Bipolar disorder (%)"})
	for i := 0; i < 12; i++ {
		grid = append(grid, []string{fmt.Sprintf("E%02d", i), fmt.Sprint(i), "1"})
	}
	r, err := Build(table.FromGrid(grid), DefaultOptions())
	require.NoError(t, err)

	assert.Len(t, r.Top, 10)
	assert.InDelta(t, 5.5, r.Global[0].Value, 1e-9)
	assert.InDelta(t, 1.0, r.Global[1].Value, 1e-9)
}

func TestGlobalSkipsMissing(t *testing.T) {
	rows := []Row{
		{Entity: "A", Values: [2]float64{2, math.NaN()}},
		{Entity: "B", Values: [2]float64{4, 1}},
	}
	g := Global(rows, DefaultOptions().Metrics)
	assert.InDelta(t, 3.0, g[0].Value, 1e-9)
	assert.InDelta(t, 1.0, g[1].Value, 1e-9)
}

func TestCustomOptions(t *testing.T) {
	tbl := table.FromGrid([][]string{
		{"Country", "x", "y"},
		{"A", "1", "3"},
	})
	opts := Options{
		EntityColumn: "Country",
		Metrics:      [2]Metric{{Column: "x"}, {Column: "y", Label: "Why"}},
	}
	r, err := Build(tbl, opts)
	require.NoError(t, err)
	assert.Equal(t, "x", r.Options.Metrics[0].Label)
	assert.Equal(t, "Why", r.Options.Metrics[1].Label)
	assert.Equal(t, 10, r.Options.TopN)
	assert.InDelta(t, 2.0, r.Top[0].Average, 1e-9)
}

func TestRowJSONNulls(t *testing.T) {
	data, err := json.Marshal(Row{Entity: "A", Values: [2]float64{1, math.NaN()}, Average: math.NaN()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"entity":"A","values":[1,null],"average":null}`, string(data))
}

func TestEncodeCharts(t *testing.T) {
	r, err := Build(countries(), DefaultOptions())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "charts.xlsx")
	require.NoError(t, WriteCharts(r, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{TopSheet, GlobalSheet}, f.GetSheetList())

	first, err := f.GetCellValue(TopSheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "CountryB", first)

	label, err := f.GetCellValue(GlobalSheet, "A3")
	require.NoError(t, err)
	assert.Equal(t, "Trastorno Bipolar", label)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestRenderText(t *testing.T) {
	color.NoColor = true
	r, err := Build(countries(), DefaultOptions())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RenderText(&buf, r))
	out := buf.String()

	assert.Contains(t, out, "CountryB")
	assert.Contains(t, out, "Esquizofrenia")
	assert.Contains(t, out, "42.9%")
	assert.Contains(t, out, "57.1%")
	assert.Less(t, strings.Index(out, "CountryB"), strings.Index(out, "CountryA"))
}

func TestChartJS(t *testing.T) {
	r, err := Build(countries(), DefaultOptions())
	require.NoError(t, err)

	payload := ChartJS(r)
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded struct {
		Bar struct {
			Type     string   `json:"type"`
			Labels   []string `json:"labels"`
			Datasets []struct {
				Label string    `json:"label"`
				Data  []float64 `json:"data"`
			} `json:"datasets"`
		} `json:"bar"`
		Pie struct {
			Type   string   `json:"type"`
			Labels []string `json:"labels"`
		} `json:"pie"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "bar", decoded.Bar.Type)
	assert.Equal(t, []string{"CountryB", "CountryA"}, decoded.Bar.Labels)
	require.Len(t, decoded.Bar.Datasets, 2)
	assert.Equal(t, []float64{1, 2}, decoded.Bar.Datasets[0].Data)
	assert.Equal(t, "pie", decoded.Pie.Type)
	assert.Equal(t, []string{"Esquizofrenia", "Trastorno Bipolar"}, decoded.Pie.Labels)
}
