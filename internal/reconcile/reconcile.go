// Package reconcile compares identifier sets across tables: which values
// exist anywhere, which tables are missing them, and where a missing
// value can be found instead.
package reconcile

import (
	"sort"

	"github.com/sells-group/dataqa/internal/identify"
)

// Status classifies one table's coverage of the union.
type Status string

const (
	StatusComplete     Status = "complete"
	StatusInconsistent Status = "inconsistent"
)

// Gap is one identifier a table lacks, with the other tables that do
// carry it.
type Gap struct {
	ID      string   `json:"id" yaml:"id"`
	FoundIn []string `json:"found_in" yaml:"found_in"`
}

// TableResult is one table's reconciliation outcome.
type TableResult struct {
	Name         string  `json:"name" yaml:"name"`
	Status       Status  `json:"status" yaml:"status"`
	UniqueCount  int     `json:"unique_count" yaml:"unique_count"`
	MissingCount int     `json:"missing_count" yaml:"missing_count"`
	Coverage     float64 `json:"coverage" yaml:"coverage"`
	Missing      []Gap   `json:"missing,omitempty" yaml:"missing,omitempty"`
}

// Report is the full cross-table reconciliation. Applicable is false
// when fewer than two identifier sets were supplied; everything else is
// zero-valued in that case.
type Report struct {
	Applicable bool          `json:"applicable" yaml:"applicable"`
	Union      []string      `json:"union,omitempty" yaml:"union,omitempty"`
	Tables     []TableResult `json:"tables,omitempty" yaml:"tables,omitempty"`
}

// Reconcile unions the given identifier sets and scores every table
// against that union. Tables with empty sets participate and simply miss
// everything. Union, table results, and gap provenance are all sorted
// for stable output.
func Reconcile(sets map[string]identify.Set) *Report {
	if len(sets) < 2 {
		return &Report{Applicable: false}
	}

	union := make(identify.Set)
	for _, set := range sets {
		for v := range set {
			union[v] = struct{}{}
		}
	}
	unionSorted := union.Sorted()

	names := make([]string, 0, len(sets))
	for name := range sets {
		names = append(names, name)
	}
	sort.Strings(names)

	report := &Report{Applicable: true, Union: unionSorted, Tables: make([]TableResult, 0, len(names))}
	for _, name := range names {
		set := sets[name]
		result := TableResult{Name: name, Status: StatusComplete, UniqueCount: len(set)}
		for _, id := range unionSorted {
			if set.Contains(id) {
				continue
			}
			gap := Gap{ID: id}
			for _, other := range names {
				if other != name && sets[other].Contains(id) {
					gap.FoundIn = append(gap.FoundIn, other)
				}
			}
			result.Missing = append(result.Missing, gap)
		}
		result.MissingCount = len(result.Missing)
		if result.MissingCount > 0 {
			result.Status = StatusInconsistent
		}
		result.Coverage = coverage(len(unionSorted), result.MissingCount)
		report.Tables = append(report.Tables, result)
	}
	return report
}

// coverage is the percentage of the union a table carries. An empty
// union counts as full coverage.
func coverage(unionSize, missing int) float64 {
	if unionSize == 0 {
		return 100
	}
	return float64(unionSize-missing) / float64(unionSize) * 100
}
