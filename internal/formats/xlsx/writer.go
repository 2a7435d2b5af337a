package xlsx

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/klytics/xlreport/internal/table"
)

// EncodeTable serializes t as a single-sheet workbook: the header row
// followed by the data rows, with no index column.
func EncodeTable(t *table.Table, sheet string) ([]byte, error) {
	if sheet == "" {
		sheet = DefaultSheet
	}

	f := excelize.NewFile()
	defer f.Close()

	if defaultSheet := f.GetSheetName(0); defaultSheet != sheet {
		if err := f.SetSheetName(defaultSheet, sheet); err != nil {
			return nil, fmt.Errorf("could not rename sheet: %w", err)
		}
	}

	for rowIdx, row := range t.Grid() {
		cellName, err := excelize.CoordinatesToCellName(1, rowIdx+1)
		if err != nil {
			return nil, fmt.Errorf("invalid cell coordinates: %w", err)
		}

		values := make([]interface{}, len(row))
		for i, cell := range row {
			if rowIdx == 0 {
				values[i] = cell
				continue
			}
			values[i] = cellValue(cell)
		}
		if err := f.SetSheetRow(sheet, cellName, &values); err != nil {
			return nil, fmt.Errorf("could not write row %d: %w", rowIdx+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("could not encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteTable encodes t and writes it to path.
func WriteTable(t *table.Table, path, sheet string) error {
	data, err := EncodeTable(t, sheet)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data)
}

// WriteFileAtomic replaces path with data via a temporary file in the same
// directory, so concurrent readers see either the old or the new workbook.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("could not save %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("could not save %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("could not save %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("could not save %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("could not save %s: %w", path, err)
	}
	return nil
}

// cellValue stores canonical numbers as numeric cells and everything else as
// text, so reading the file back yields the original strings.
func cellValue(s string) interface{} {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return s
	}
	if strconv.FormatFloat(v, 'f', -1, 64) != s {
		return s
	}
	return v
}
