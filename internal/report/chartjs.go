package report

// ChartJS returns Chart.js payloads for the bar and pie views, keyed "bar"
// and "pie". Missing values are encoded as null.
func ChartJS(r *Report) map[string]any {
	labels := make([]string, len(r.Top))
	data := [2][]*float64{make([]*float64, len(r.Top)), make([]*float64, len(r.Top))}
	for i, row := range r.Top {
		labels[i] = row.Entity
		data[0][i] = nullable(row.Values[0])
		data[1][i] = nullable(row.Values[1])
	}

	datasets := make([]map[string]any, 0, 2)
	for i, m := range r.Options.Metrics {
		datasets = append(datasets, map[string]any{
			"label": m.Label,
			"data":  data[i],
		})
	}

	pieLabels := make([]string, len(r.Global))
	pieData := make([]float64, len(r.Global))
	for i, s := range r.Global {
		pieLabels[i] = s.Label
		pieData[i] = s.Value
	}

	return map[string]any{
		"bar": map[string]any{
			"type":     "bar",
			"labels":   labels,
			"datasets": datasets,
			"options": map[string]any{
				"plugins": map[string]any{"title": map[string]any{"display": true, "text": r.BarTitle()}},
				"scales":  map[string]any{"x": map[string]any{"ticks": map[string]any{"minRotation": 45, "maxRotation": 45}}},
			},
		},
		"pie": map[string]any{
			"type":   "pie",
			"labels": pieLabels,
			"datasets": []map[string]any{{
				"label": "Global average",
				"data":  pieData,
			}},
			"options": map[string]any{
				"plugins": map[string]any{"title": map[string]any{"display": true, "text": r.PieTitle()}},
			},
		},
	}
}
