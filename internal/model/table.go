package model

import (
	"math"
	"strconv"
	"strings"
)

// Table is a rectangular dataset of string cells with a header row.
// Rows shorter than the header are treated as having empty trailing cells.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Cell returns the value at (row, col), or "" when the row is short.
func (t *Table) Cell(row, col int) string {
	r := t.Rows[row]
	if col < 0 || col >= len(r) {
		return ""
	}
	return r[col]
}

// MissingColumns returns every name in want that the table lacks,
// preserving the order of want.
func (t *Table) MissingColumns(want []string) []string {
	have := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		have[c] = struct{}{}
	}
	var missing []string
	for _, w := range want {
		if _, ok := have[w]; !ok {
			missing = append(missing, w)
		}
	}
	return missing
}

func formatInt(v int) string {
	return strconv.Itoa(v)
}

// formatFloat renders v in shortest round-trip form with at least one
// fractional digit ("1" becomes "1.0").
func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// FormatProbability renders a probability for export.
func FormatProbability(p float64) string {
	return formatFloat(p)
}

func formatBool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
