// Package drift compares two versions of a table: column set changes and
// per-column fill-rate movement between a previous and a current
// snapshot.
package drift

import (
	"sort"

	"github.com/sells-group/dataqa/internal/table"
)

// ColumnFill records how many non-null cells one column holds.
type ColumnFill struct {
	Name    string `json:"name" yaml:"name"`
	NonNull int    `json:"non_null" yaml:"non_null"`
}

// TableProfile is the persistable shape summary of a table: enough to
// compute drift later without keeping the rows around.
type TableProfile struct {
	Table    string       `json:"table" yaml:"table"`
	RowCount int          `json:"row_count" yaml:"row_count"`
	Columns  []ColumnFill `json:"columns" yaml:"columns"`
}

// Profile summarizes t into a TableProfile, columns in table order.
func Profile(t *table.Table) TableProfile {
	p := TableProfile{Table: t.Name, RowCount: len(t.Rows), Columns: make([]ColumnFill, 0, len(t.Columns))}
	for _, c := range t.Columns {
		p.Columns = append(p.Columns, ColumnFill{Name: c, NonNull: t.NonNullCount(c)})
	}
	return p
}

// FillRate returns the named column's fill percentage. A profile with no
// rows has fill rate 0 for every column, never a division error.
func (p TableProfile) FillRate(column string) float64 {
	if p.RowCount == 0 {
		return 0
	}
	for _, c := range p.Columns {
		if c.Name == column {
			return float64(c.NonNull) / float64(p.RowCount) * 100
		}
	}
	return 0
}

// ColumnDelta is one common column's fill-rate movement. Delta is
// current minus previous, so regressions are negative.
type ColumnDelta struct {
	Column   string  `json:"column" yaml:"column"`
	Previous float64 `json:"previous" yaml:"previous"`
	Current  float64 `json:"current" yaml:"current"`
	Delta    float64 `json:"delta" yaml:"delta"`
}

// Report is the drift between two versions of one table. Added holds
// columns only the current version has (in current column order),
// Removed those only the previous version has (in previous order).
// Columns covers the common set, sorted ascending by delta so the worst
// regressions come first, ties broken by column name.
type Report struct {
	Table   string        `json:"table" yaml:"table"`
	Added   []string      `json:"added,omitempty" yaml:"added,omitempty"`
	Removed []string      `json:"removed,omitempty" yaml:"removed,omitempty"`
	Columns []ColumnDelta `json:"columns,omitempty" yaml:"columns,omitempty"`
}

// Compare profiles both tables and diffs them. The two tables are
// expected to be versions of the same logical table; the report takes
// its name from current.
func Compare(current, previous *table.Table) *Report {
	return CompareProfiles(Profile(current), Profile(previous))
}

// CompareProfiles diffs a current profile against a previous one.
func CompareProfiles(current, previous TableProfile) *Report {
	prevCols := make(map[string]struct{}, len(previous.Columns))
	for _, c := range previous.Columns {
		prevCols[c.Name] = struct{}{}
	}
	curCols := make(map[string]struct{}, len(current.Columns))
	for _, c := range current.Columns {
		curCols[c.Name] = struct{}{}
	}

	report := &Report{Table: current.Table}
	for _, c := range current.Columns {
		if _, ok := prevCols[c.Name]; !ok {
			report.Added = append(report.Added, c.Name)
		}
	}
	for _, c := range previous.Columns {
		if _, ok := curCols[c.Name]; !ok {
			report.Removed = append(report.Removed, c.Name)
		}
	}
	for _, c := range current.Columns {
		if _, ok := prevCols[c.Name]; !ok {
			continue
		}
		prev := previous.FillRate(c.Name)
		cur := current.FillRate(c.Name)
		report.Columns = append(report.Columns, ColumnDelta{
			Column:   c.Name,
			Previous: prev,
			Current:  cur,
			Delta:    cur - prev,
		})
	}
	sort.SliceStable(report.Columns, func(a, b int) bool {
		if report.Columns[a].Delta != report.Columns[b].Delta {
			return report.Columns[a].Delta < report.Columns[b].Delta
		}
		return report.Columns[a].Column < report.Columns[b].Column
	})
	return report
}
