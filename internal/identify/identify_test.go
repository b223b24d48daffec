package identify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dataqa/internal/table"
)

func TestFixedCandidates_PriorityOrder(t *testing.T) {
	tbl := table.New("permits", []string{"Record ID", "Permit Number"}, nil)

	// First present candidate wins, in declared order.
	col, ok := FixedCandidates("Permit Number", "Record ID").Resolve(tbl)
	require.True(t, ok)
	assert.Equal(t, "Permit Number", col)

	col, ok = FixedCandidates("Record ID", "Permit Number").Resolve(tbl)
	require.True(t, ok)
	assert.Equal(t, "Record ID", col)
}

func TestFixedCandidates_NoneMatch(t *testing.T) {
	tbl := table.New("permits", []string{"a", "b"}, nil)
	_, ok := FixedCandidates("Permit Number", "Record ID").Resolve(tbl)
	assert.False(t, ok)
}

func TestNamedColumn_ExactMatch(t *testing.T) {
	tbl := table.New("permits", []string{"Permit Number"}, nil)

	col, ok := NamedColumn("Permit Number").Resolve(tbl)
	require.True(t, ok)
	assert.Equal(t, "Permit Number", col)

	// Case-sensitive, verbatim only.
	_, ok = NamedColumn("permit number").Resolve(tbl)
	assert.False(t, ok)
	_, ok = NamedColumn("Permit Number ").Resolve(tbl)
	assert.False(t, ok)
}

func TestStrategy_String(t *testing.T) {
	assert.Equal(t, "candidates:[Permit Number, Record ID]", FixedCandidates("Permit Number", "Record ID").String())
	assert.Equal(t, "column:Permit Number", NamedColumn("Permit Number").String())
}

func TestValues_TrimsAndSkipsNulls(t *testing.T) {
	tbl := table.New("permits", []string{"Permit Number", "Status"}, [][]string{
		{" P-1 ", "open"},
		{"P-2", "open"},
		{"NA", "closed"},
		{"P-2", "closed"},
		{"", "open"},
	})
	set := Values(tbl, "Permit Number")
	assert.Equal(t, []string{"P-1", "P-2"}, set.Sorted())
	assert.True(t, set.Contains("P-1"))
	assert.False(t, set.Contains(" P-1 "))
}

func TestValues_UnresolvedColumn(t *testing.T) {
	tbl := table.New("permits", []string{"a"}, [][]string{{"1"}})
	assert.Empty(t, Values(tbl, ""))
	assert.Empty(t, Values(tbl, "missing"))
}
