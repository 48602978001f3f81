package geochem

import (
	"math"
	"strconv"
	"strings"
)

// Table is a sample spreadsheet. Cells keep the uploaded text so that
// sample names and comments survive a round trip.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

func NewTable(columns []string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols}
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Index returns the position of col, or -1. Duplicate headers resolve to
// the first occurrence.
func (t *Table) Index(col string) int {
	for i, c := range t.Columns {
		if c == col {
			return i
		}
	}
	return -1
}

func (t *Table) Has(col string) bool {
	return t.Index(col) >= 0
}

// Float reads a numeric cell. Missing, blank, NaN and non-numeric cells
// read as 0.
func (t *Table) Float(row int, col string) float64 {
	idx := t.Index(col)
	if idx < 0 || row < 0 || row >= len(t.Rows) || idx >= len(t.Rows[row]) {
		return 0
	}
	return parseCell(t.Rows[row][idx])
}

// Value is like Float but reports whether the cell held a number.
func (t *Table) Value(row int, col string) (float64, bool) {
	idx := t.Index(col)
	if idx < 0 || row < 0 || row >= len(t.Rows) || idx >= len(t.Rows[row]) {
		return 0, false
	}
	s := strings.TrimSpace(t.Rows[row][idx])
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func parseCell(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Column returns the numeric values of col for every row.
func (t *Table) Column(col string) []float64 {
	out := make([]float64, len(t.Rows))
	for i := range t.Rows {
		out[i] = t.Float(i, col)
	}
	return out
}

// AddColumn appends col if it does not exist and returns its index.
func (t *Table) AddColumn(col string) int {
	if idx := t.Index(col); idx >= 0 {
		return idx
	}
	t.Columns = append(t.Columns, col)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], "")
	}
	return len(t.Columns) - 1
}

func (t *Table) Set(row int, col, value string) {
	idx := t.AddColumn(col)
	for len(t.Rows[row]) <= idx {
		t.Rows[row] = append(t.Rows[row], "")
	}
	t.Rows[row][idx] = value
}

func (t *Table) SetFloat(row int, col string, v float64) {
	t.Set(row, col, FormatFloat(v))
}

// SetColumn overwrites (or appends) col with values, one per row.
func (t *Table) SetColumn(col string, values []float64) {
	for i := range t.Rows {
		if i < len(values) {
			t.SetFloat(i, col, values[i])
		}
	}
	if len(t.Rows) == 0 {
		t.AddColumn(col)
	}
}

func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := NewTable(t.Columns)
	out.Rows = make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		out.Rows[i] = make([]string, len(r))
		copy(out.Rows[i], r)
	}
	return out
}

// normalize pads ragged rows and drops blank trailing rows.
func (t *Table) normalize() {
	for len(t.Rows) > 0 && blank(t.Rows[len(t.Rows)-1]) {
		t.Rows = t.Rows[:len(t.Rows)-1]
	}
	for i, r := range t.Rows {
		for len(r) < len(t.Columns) {
			r = append(r, "")
		}
		t.Rows[i] = r
	}
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
