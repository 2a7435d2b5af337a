// Package xlsx reads tables from and writes tables to .xlsx (Excel) files.
package xlsx

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/klytics/xlreport/internal/table"
)

// DefaultSheet is the worksheet read when no sheet name is given.
const DefaultSheet = "Sheet1"

// ErrSheetNotFound is returned when the requested worksheet does not exist.
var ErrSheetNotFound = errors.New("sheet not found")

// ReadTableFile reads the named sheet of an .xlsx file into a Table whose
// columns are named by the sheet's first row.
func ReadTableFile(path, sheet string) (*table.Table, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("file not found: %s — check that the path is correct", path)
	}

	f, err := excelize.OpenFile(path, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("could not open %s — is this a valid .xlsx file? %w", path, err)
	}
	defer f.Close()

	return readSheet(f, sheet)
}

// ReadTable reads the named sheet of an .xlsx stream into a Table.
func ReadTable(r io.Reader, sheet string) (*table.Table, error) {
	f, err := excelize.OpenReader(r, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("could not read Excel data: %w", err)
	}
	defer f.Close()

	return readSheet(f, sheet)
}

// ReadTableBytes is ReadTable over an in-memory workbook.
func ReadTableBytes(data []byte, sheet string) (*table.Table, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("could not read Excel data: input is empty")
	}
	return ReadTable(bytes.NewReader(data), sheet)
}

func readSheet(f *excelize.File, sheet string) (*table.Table, error) {
	if sheet == "" {
		sheet = DefaultSheet
	}

	idx, err := f.GetSheetIndex(sheet)
	if err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %q — available sheets: %v", ErrSheetNotFound, sheet, f.GetSheetList())
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("could not read sheet %q: %w", sheet, err)
	}

	return table.FromGrid(rows), nil
}
