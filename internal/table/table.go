// Package table defines the in-memory model for ingested tabular data.
// A Table is immutable once built: every analysis stage reads it and
// produces derived output without ever writing back.
package table

import (
	"strconv"
	"strings"
)

// nullMarkers are the cell spellings treated as absent values. Matching is
// exact after surrounding whitespace is stripped.
var nullMarkers = map[string]struct{}{
	"":     {},
	"NA":   {},
	"N/A":  {},
	"n/a":  {},
	"NULL": {},
	"null": {},
	"NaN":  {},
	"nan":  {},
	"None": {},
	"#N/A": {},
}

// Value is a single cell. Null values keep no text; non-null values keep
// the original text as parsed, including interior whitespace.
type Value struct {
	Text string `json:"text" yaml:"text"`
	Null bool   `json:"null,omitempty" yaml:"null,omitempty"`
}

// Cell builds a Value from raw cell text, mapping recognized null
// spellings to a null value.
func Cell(s string) Value {
	if _, ok := nullMarkers[strings.TrimSpace(s)]; ok {
		return Value{Null: true}
	}
	return Value{Text: s}
}

// Null returns an explicit null cell.
func Null() Value {
	return Value{Null: true}
}

// Equal reports exact value equality. Two nulls are equal; a null never
// equals a non-null; non-nulls compare by text.
func (v Value) Equal(o Value) bool {
	if v.Null || o.Null {
		return v.Null && o.Null
	}
	return v.Text == o.Text
}

// Compare orders values for deterministic presentation: null sorts before
// any non-null, non-nulls sort lexicographically by text.
func (v Value) Compare(o Value) int {
	switch {
	case v.Null && o.Null:
		return 0
	case v.Null:
		return -1
	case o.Null:
		return 1
	default:
		return strings.Compare(v.Text, o.Text)
	}
}

// String renders the value for logs and reports.
func (v Value) String() string {
	if v.Null {
		return "<null>"
	}
	return v.Text
}

// Row holds one record, index-aligned with the owning table's Columns.
type Row []Value

// Table is a named grid of cells with a fixed, ordered, unique column set.
// Every row has exactly len(Columns) values.
type Table struct {
	Name    string   `json:"name" yaml:"name"`
	Columns []string `json:"columns" yaml:"columns"`
	Rows    []Row    `json:"rows" yaml:"rows"`
}

// New builds a table, normalizing the header and squaring up rows so the
// row/column alignment invariant holds: header cells are trimmed, blank
// header cells become "Unnamed: N" (by position), repeated names get a
// ".1", ".2" suffix, short rows are padded with nulls and long rows are
// truncated to the column count.
func New(name string, header []string, records [][]string) *Table {
	cols := NormalizeHeader(header)
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		row := make(Row, len(cols))
		for i := range cols {
			if i < len(rec) {
				row[i] = Cell(rec[i])
			} else {
				row[i] = Null()
			}
		}
		rows = append(rows, row)
	}
	return &Table{Name: name, Columns: cols, Rows: rows}
}

// NormalizeHeader trims header cells, names blank ones "Unnamed: N" by
// zero-based position, and disambiguates repeats with ".1", ".2" suffixes
// in order of appearance.
func NormalizeHeader(header []string) []string {
	cols := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if n, ok := seen[name]; ok {
			seen[name] = n + 1
			cols[i] = name + "." + strconv.Itoa(n)
		} else {
			seen[name] = 1
			cols[i] = name
		}
	}
	return cols
}

// ColumnIndex returns the position of an exact column name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether name appears verbatim in the column set.
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// NonNullCount counts non-null cells in the named column. Unknown columns
// count zero.
func (t *Table) NonNullCount(column string) int {
	idx := t.ColumnIndex(column)
	if idx < 0 {
		return 0
	}
	n := 0
	for _, row := range t.Rows {
		if !row[idx].Null {
			n++
		}
	}
	return n
}

// FillRate returns the percentage of non-null cells in the named column.
// An empty table has fill rate 0 for every column.
func (t *Table) FillRate(column string) float64 {
	if len(t.Rows) == 0 {
		return 0
	}
	return float64(t.NonNullCount(column)) / float64(len(t.Rows)) * 100
}
