package report

import (
	"fmt"
	"io"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

const barWidth = 40

// RenderText draws the top-N comparison as paired horizontal bars and the
// global means as percentage shares.
func RenderText(w io.Writer, r *Report) error {
	title := color.New(color.Bold, color.FgCyan)
	dim := color.New(color.FgHiBlack)
	series := [2]*color.Color{color.New(color.FgBlue), color.New(color.FgYellow)}

	maxVal := 0.0
	nameWidth := 0
	for _, row := range r.Top {
		for _, v := range row.Values {
			if !math.IsNaN(v) && v > maxVal {
				maxVal = v
			}
		}
		if n := utf8.RuneCountInString(row.Entity); n > nameWidth {
			nameWidth = n
		}
	}
	if nameWidth > 30 {
		nameWidth = 30
	}

	title.Fprintln(w, r.BarTitle())
	for i, m := range r.Options.Metrics {
		series[i].Fprintf(w, "  ■ %s", m.Label)
	}
	fmt.Fprintln(w)

	for _, row := range r.Top {
		name := truncate(row.Entity, nameWidth)
		for i, v := range row.Values {
			label := ""
			if i == 0 {
				label = name
			}
			fmt.Fprintf(w, "  %s%s ", label, strings.Repeat(" ", nameWidth-utf8.RuneCountInString(label)))
			series[i].Fprint(w, strings.Repeat("█", scale(v, maxVal)))
			dim.Fprintf(w, " %s\n", formatNumber(v))
		}
	}
	fmt.Fprintln(w)

	title.Fprintln(w, r.PieTitle())
	for i, s := range r.Global {
		series[i].Fprintf(w, "  %-20s %5.1f%%", s.Label, s.Share)
		dim.Fprintf(w, "  (mean %s)\n", formatNumber(s.Value))
	}
	return nil
}

func scale(v, maxVal float64) int {
	if math.IsNaN(v) || maxVal <= 0 || v <= 0 {
		return 0
	}
	n := int(math.Round(v / maxVal * barWidth))
	if n == 0 {
		n = 1
	}
	return n
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-1]) + "~"
}
