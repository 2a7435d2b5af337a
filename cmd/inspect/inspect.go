// Package inspect provides the "xlreport inspect" command, a preview of an
// input workbook labelled with the column letters and start-row offsets
// that 'run' expects.
package inspect

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/xlreport/internal/colrange"
	"github.com/klytics/xlreport/internal/etl"
	"github.com/klytics/xlreport/internal/formats/xlsx"
	"github.com/klytics/xlreport/internal/output"
	"github.com/klytics/xlreport/internal/table"
)

const maxWidth = 40

// NewCommand returns the inspect command.
func NewCommand() *cobra.Command {
	var (
		sheet    string
		rows     int
		startRow int
		columns  string
	)

	cmd := &cobra.Command{
		Use:   "inspect <input.xlsx>",
		Short: "Preview a workbook with column letters and row offsets",
		Long: `Prints the header and the first rows of the input sheet, labelled with the
column letters accepted by --columns and the offsets accepted by --start-row.
Pass --start-row and --columns to preview exactly what 'run' would keep.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonFlag, _ := cmd.Flags().GetBool("json")

			req, err := etl.NewFileRequest(args[0], startRow, columns)
			if err != nil {
				return &etl.StageError{Stage: etl.StageExtract, Err: err}
			}
			t, err := xlsx.ReadTableBytes(req.Source, sheet)
			if err != nil {
				return &etl.StageError{Stage: etl.StageExtract, Err: err}
			}

			letters := make([]string, t.NumCols())
			for i := range letters {
				letters[i] = colrange.Letter(i)
			}
			if cmd.Flags().Changed("start-row") || cmd.Flags().Changed("columns") {
				if columns == "" {
					columns = "A:" + colrange.Letter(min(t.NumCols(), 26)-1)
				}
				r, err := colrange.Parse(columns)
				if err != nil {
					return err
				}
				if t, err = table.Filter(t, startRow, r.Indices()); err != nil {
					return err
				}
				letters = letters[:0]
				for _, idx := range r.Indices() {
					letters = append(letters, colrange.Letter(idx))
				}
			}

			if jsonFlag {
				return output.PrintJSON(os.Stdout, "inspect", map[string]any{
					"letters": letters,
					"columns": t.Columns,
					"rows":    head(t.Rows, rows),
					"total":   t.NumRows(),
				})
			}

			Print(os.Stdout, t, letters, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&sheet, "sheet", xlsx.DefaultSheet, "Input sheet name")
	cmd.Flags().IntVarP(&rows, "rows", "n", 10, "Number of data rows to show")
	cmd.Flags().IntVar(&startRow, "start-row", 0, "Preview rows from this offset")
	cmd.Flags().StringVar(&columns, "columns", "", "Preview only this column range, e.g. A:C")

	return cmd
}

// Print writes the letter row, the header and up to n data rows of t.
func Print(w io.Writer, t *table.Table, letters []string, n int) {
	headerStyle := color.New(color.Bold, color.FgCyan)
	dim := color.New(color.FgHiBlack)

	shown := head(t.Rows, n)
	widths := make([]int, t.NumCols())
	for j, name := range t.Columns {
		widths[j] = max(len(name), 3)
	}
	for _, row := range shown {
		for j, cell := range row {
			widths[j] = max(widths[j], len(cell))
		}
	}
	for j := range widths {
		widths[j] = min(widths[j], maxWidth)
	}

	idxWidth := len(strconv.Itoa(max(len(shown)-1, 0)))
	idxWidth = max(idxWidth, 3)

	pad := strings.Repeat(" ", idxWidth+1)
	headerStyle.Fprint(w, pad)
	printRow(w, letters, widths, headerStyle)
	fmt.Fprint(w, pad)
	printRow(w, t.Columns, widths, color.New(color.Bold))

	dim.Fprint(w, pad)
	for j, width := range widths {
		if j > 0 {
			dim.Fprint(w, "+-")
		}
		dim.Fprint(w, strings.Repeat("-", width+1))
	}
	fmt.Fprintln(w)

	for i, row := range shown {
		dim.Fprintf(w, "%*d ", idxWidth, i)
		printRow(w, row, widths, nil)
	}

	dim.Fprintf(w, "(%d of %d rows)\n", len(shown), t.NumRows())
}

func printRow(w io.Writer, row []string, widths []int, style *color.Color) {
	for j, width := range widths {
		if j > 0 {
			fmt.Fprint(w, "| ")
		}
		cell := ""
		if j < len(row) {
			cell = row[j]
		}
		if len(cell) > width {
			cell = cell[:width-1] + "~"
		}
		padded := cell + strings.Repeat(" ", width-len(cell)+1)
		if style != nil {
			style.Fprint(w, padded)
		} else {
			fmt.Fprint(w, padded)
		}
	}
	fmt.Fprintln(w)
}

func head(rows [][]string, n int) [][]string {
	if n < 0 || n >= len(rows) {
		return rows
	}
	return rows[:n]
}
