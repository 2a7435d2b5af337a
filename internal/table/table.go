// Package table holds the in-memory tabular dataset that flows through the
// extract, transform, load and report stages.
package table

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNegativeOffset is returned when a filter starts before the first row.
	ErrNegativeOffset = errors.New("start row must not be negative")
	// ErrColumnOutOfRange is returned when a selected column does not exist.
	ErrColumnOutOfRange = errors.New("column index out of range")
)

// Table is a header row plus positionally aligned data rows. Every row has
// exactly len(Columns) cells. Tables are not modified after construction.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// New builds a Table, padding short rows with empty cells and dropping cells
// beyond the header so the column-length invariant holds.
func New(columns []string, rows [][]string) *Table {
	t := &Table{
		Columns: append([]string(nil), columns...),
		Rows:    make([][]string, len(rows)),
	}
	for i, row := range rows {
		r := make([]string, len(columns))
		copy(r, row)
		t.Rows[i] = r
	}
	return t
}

// FromGrid treats the first row of grid as the header. An empty grid gives an
// empty table with no columns.
func FromGrid(grid [][]string) *Table {
	if len(grid) == 0 {
		return &Table{}
	}
	return New(grid[0], grid[1:])
}

// NumRows returns the number of data rows (the header is not counted).
func (t *Table) NumRows() int { return len(t.Rows) }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.Columns) }

// ColumnIndex returns the position of the first column named name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	for i, c := range t.Columns {
		if strings.TrimSpace(c) == strings.TrimSpace(name) {
			return i
		}
	}
	return -1
}

// Column returns a copy of the values of the named column.
func (t *Table) Column(name string) ([]string, bool) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, true
}

// Grid returns the header followed by the rows, the layout spreadsheet
// writers expect.
func (t *Table) Grid() [][]string {
	grid := make([][]string, 0, len(t.Rows)+1)
	grid = append(grid, t.Columns)
	grid = append(grid, t.Rows...)
	return grid
}

// Filter returns a new table holding rows [start:] restricted to the given
// column indices, preserving row and column order. A start beyond the last
// row yields an empty table with the selected header.
func Filter(t *Table, start int, indices []int) (*Table, error) {
	if start < 0 {
		return nil, fmt.Errorf("%w (got %d)", ErrNegativeOffset, start)
	}
	for _, idx := range indices {
		if idx < 0 || idx >= t.NumCols() {
			return nil, fmt.Errorf("%w: column %d requested but the sheet has %d column(s)",
				ErrColumnOutOfRange, idx+1, t.NumCols())
		}
	}

	cols := make([]string, len(indices))
	for i, idx := range indices {
		cols[i] = t.Columns[idx]
	}

	if start > len(t.Rows) {
		start = len(t.Rows)
	}
	rows := make([][]string, 0, len(t.Rows)-start)
	for _, row := range t.Rows[start:] {
		r := make([]string, len(indices))
		for i, idx := range indices {
			r[i] = row[idx]
		}
		rows = append(rows, r)
	}

	return &Table{Columns: cols, Rows: rows}, nil
}
