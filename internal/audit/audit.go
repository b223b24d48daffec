// Package audit finds duplicate rows in a table under a caller-chosen
// key projection. It only reports; the table is never modified.
package audit

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dataqa/internal/table"
)

// Group is one duplicated key: the projected key values and the indices
// of every row carrying them, in original table order.
type Group struct {
	Key  []table.Value `json:"key" yaml:"key"`
	Rows []int         `json:"rows" yaml:"rows"`
}

// Count returns how many rows share the group's key.
func (g Group) Count() int {
	return len(g.Rows)
}

// Audit groups t's rows by their projection onto keys and returns the
// groups occurring at least twice. An empty keys slice means whole-row
// equality: every column becomes part of the key. Null equals null for
// grouping. Groups are ordered by ascending key values (null before any
// text), ties broken by first-occurrence row index.
func Audit(t *table.Table, keys []string) ([]Group, error) {
	if len(keys) == 0 {
		keys = t.Columns
	}
	idx := make([]int, len(keys))
	for i, k := range keys {
		j := t.ColumnIndex(k)
		if j < 0 {
			return nil, eris.Errorf("audit: key column %q not in table %q", k, t.Name)
		}
		idx[i] = j
	}

	byKey := make(map[string]*Group)
	order := make([]string, 0)
	for rowIdx, row := range t.Rows {
		key := make([]table.Value, len(idx))
		for i, j := range idx {
			key[i] = row[j]
		}
		sig := signature(key)
		g, ok := byKey[sig]
		if !ok {
			g = &Group{Key: key}
			byKey[sig] = g
			order = append(order, sig)
		}
		g.Rows = append(g.Rows, rowIdx)
	}

	groups := make([]Group, 0)
	for _, sig := range order {
		if g := byKey[sig]; len(g.Rows) >= 2 {
			groups = append(groups, *g)
		}
	}
	sort.SliceStable(groups, func(a, b int) bool {
		if c := compareKeys(groups[a].Key, groups[b].Key); c != 0 {
			return c < 0
		}
		return groups[a].Rows[0] < groups[b].Rows[0]
	})
	return groups, nil
}

// DuplicateRows returns the total number of rows involved in any group.
func DuplicateRows(groups []Group) int {
	n := 0
	for _, g := range groups {
		n += len(g.Rows)
	}
	return n
}

// signature encodes a projected key unambiguously: nulls as a fixed tag,
// texts length-prefixed so no concatenation of values collides.
func signature(key []table.Value) string {
	var b strings.Builder
	for _, v := range key {
		if v.Null {
			b.WriteString("\x00n")
			continue
		}
		b.WriteString("\x00v")
		b.WriteString(strconv.Itoa(len(v.Text)))
		b.WriteByte('\x00')
		b.WriteString(v.Text)
	}
	return b.String()
}

func compareKeys(a, b []table.Value) int {
	for i := range a {
		if i >= len(b) {
			return 1
		}
		if c := a[i].Compare(b[i]); c != 0 {
			return c
		}
	}
	if len(a) < len(b) {
		return -1
	}
	return 0
}
