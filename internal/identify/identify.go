// Package identify resolves which column of a table carries the primary
// identifier, and extracts the normalized value set of that column.
package identify

import (
	"sort"
	"strings"

	"github.com/sells-group/dataqa/internal/table"
)

type mode int

const (
	modeCandidates mode = iota
	modeNamed
)

// Strategy decides how an identifier column is chosen. Build one with
// FixedCandidates or NamedColumn. Resolution looks only at declared
// column names, never at row contents.
type Strategy struct {
	mode       mode
	candidates []string
	column     string
}

// FixedCandidates resolves to the first listed name present among a
// table's columns. Order is priority, not preference hints.
func FixedCandidates(names ...string) Strategy {
	return Strategy{mode: modeCandidates, candidates: names}
}

// NamedColumn resolves to the given name only when it appears verbatim
// among a table's columns. No case folding, no trimming.
func NamedColumn(name string) Strategy {
	return Strategy{mode: modeNamed, column: name}
}

// Resolve returns the identifier column for t, or false when the
// strategy matches none of t's columns.
func (s Strategy) Resolve(t *table.Table) (string, bool) {
	switch s.mode {
	case modeNamed:
		if t.HasColumn(s.column) {
			return s.column, true
		}
		return "", false
	default:
		for _, c := range s.candidates {
			if t.HasColumn(c) {
				return c, true
			}
		}
		return "", false
	}
}

// String describes the strategy for logs.
func (s Strategy) String() string {
	if s.mode == modeNamed {
		return "column:" + s.column
	}
	return "candidates:[" + strings.Join(s.candidates, ", ") + "]"
}

// Set holds the distinct normalized identifier values of one table.
type Set map[string]struct{}

// Values extracts the identifier set for the named column: non-null
// cells, text trimmed of surrounding whitespace. An empty column name
// (unresolved identifier) yields an empty set.
func Values(t *table.Table, column string) Set {
	set := make(Set)
	if column == "" {
		return set
	}
	idx := t.ColumnIndex(column)
	if idx < 0 {
		return set
	}
	for _, row := range t.Rows {
		if row[idx].Null {
			continue
		}
		set[strings.TrimSpace(row[idx].Text)] = struct{}{}
	}
	return set
}

// Contains reports membership of a normalized value.
func (s Set) Contains(v string) bool {
	_, ok := s[v]
	return ok
}

// Sorted returns the set's values in ascending order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
