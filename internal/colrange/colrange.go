// Package colrange resolves spreadsheet column-letter ranges such as "A:F"
// into zero-based column indices.
package colrange

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrInvalidRange is returned for any range that is not two single letters
// A-Z separated by a colon, with the start letter not after the end letter.
var ErrInvalidRange = errors.New("invalid column range")

// Range is an inclusive pair of single-letter columns.
type Range struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Parse validates s and returns the range it describes. Letters are
// case-insensitive and surrounding whitespace is ignored.
func Parse(s string) (Range, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return Range{}, fmt.Errorf("%w %q — expected the form A:F", ErrInvalidRange, s)
	}

	start, err := letter(parts[0])
	if err != nil {
		return Range{}, fmt.Errorf("%w %q: %v", ErrInvalidRange, s, err)
	}
	end, err := letter(parts[1])
	if err != nil {
		return Range{}, fmt.Errorf("%w %q: %v", ErrInvalidRange, s, err)
	}
	if start > end {
		return Range{}, fmt.Errorf("%w %q: start column %s is after end column %s", ErrInvalidRange, s, start, end)
	}

	return Range{Start: start, End: end}, nil
}

// Resolve parses s and returns its column indices.
func Resolve(s string) ([]int, error) {
	r, err := Parse(s)
	if err != nil {
		return nil, err
	}
	return r.Indices(), nil
}

// Indices returns the ascending zero-based indices covered by the range,
// so A:C yields [0 1 2].
func (r Range) Indices() []int {
	first := Index(r.Start)
	last := Index(r.End)
	if first < 0 || last < first {
		return nil
	}

	out := make([]int, 0, last-first+1)
	for i := first; i <= last; i++ {
		out = append(out, i)
	}
	return out
}

// Len returns the number of columns in the range.
func (r Range) Len() int {
	return len(r.Indices())
}

func (r Range) String() string {
	return r.Start + ":" + r.End
}

// Index converts a single column letter to its zero-based position
// (A→0, B→1, …). It returns -1 for anything that is not one letter A-Z.
func Index(col string) int {
	if len(col) != 1 {
		return -1
	}
	n, err := excelize.ColumnNameToNumber(col)
	if err != nil {
		return -1
	}
	return n - 1
}

// Letter is the inverse of Index.
func Letter(idx int) string {
	if idx < 0 || idx > 25 {
		return ""
	}
	name, err := excelize.ColumnNumberToName(idx + 1)
	if err != nil {
		return ""
	}
	return name
}

func letter(s string) (string, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch {
	case s == "":
		return "", fmt.Errorf("missing column letter")
	case len(s) > 1:
		return "", fmt.Errorf("column %q must be a single letter A-Z", s)
	case s[0] < 'A' || s[0] > 'Z':
		return "", fmt.Errorf("column %q is not a letter A-Z", s)
	}
	return s, nil
}
