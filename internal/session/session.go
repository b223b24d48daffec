// Package session orchestrates one analysis run over a working set of
// ingested tables. A run is a full recomputation: the session collects
// payload results, then Run derives every report from scratch. Nothing
// is patched incrementally.
package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dataqa/internal/audit"
	"github.com/sells-group/dataqa/internal/drift"
	"github.com/sells-group/dataqa/internal/identify"
	"github.com/sells-group/dataqa/internal/ingest"
	"github.com/sells-group/dataqa/internal/reconcile"
	"github.com/sells-group/dataqa/internal/table"
)

// Session accumulates ingestion results for one run. Current tables feed
// every analysis; previous tables, when present, additionally feed the
// drift comparison.
type Session struct {
	strategy    identify.Strategy
	keys        []string
	tables      []*table.Table
	previous    []*table.Table
	baseline    []drift.TableProfile
	hasBaseline bool
	diagnostics []ingest.Diagnostic
}

// New creates a session. keys are the duplicate-audit key columns; leave
// empty to default per table to the resolved identifier column, or to
// whole-row equality when no identifier resolves.
func New(strategy identify.Strategy, keys []string) *Session {
	return &Session{strategy: strategy, keys: keys}
}

// AddResult merges an ingestion result into the current working set.
// Tables arriving under an already-present name replace the earlier
// table in place; diagnostics accumulate.
func (s *Session) AddResult(r *ingest.Result) {
	s.tables = mergeTables(s.tables, r.Tables)
	s.diagnostics = append(s.diagnostics, r.Diagnostics...)
}

// AddPrevious merges an ingestion result into the previous snapshot set
// used for drift.
func (s *Session) AddPrevious(r *ingest.Result) {
	s.previous = mergeTables(s.previous, r.Tables)
	s.diagnostics = append(s.diagnostics, r.Diagnostics...)
}

// SetBaseline supplies stored table profiles as the drift comparison
// target. Drift then compares the current set against these profiles
// instead of tables added through AddPrevious. An empty baseline is
// still a baseline: every current table reports as added.
func (s *Session) SetBaseline(profiles []drift.TableProfile) {
	s.baseline = profiles
	s.hasBaseline = true
}

// Tables returns the current working set in ingestion order.
func (s *Session) Tables() []*table.Table {
	return s.tables
}

func mergeTables(dst []*table.Table, src []*table.Table) []*table.Table {
	for _, t := range src {
		replaced := false
		for i, existing := range dst {
			if existing.Name == t.Name {
				dst[i] = t
				replaced = true
				break
			}
		}
		if !replaced {
			dst = append(dst, t)
		}
	}
	return dst
}

// TableSummary is one table's quality report.
type TableSummary struct {
	Name            string        `json:"name" yaml:"name"`
	Rows            int           `json:"rows" yaml:"rows"`
	Columns         int           `json:"columns" yaml:"columns"`
	Identifier      string        `json:"identifier,omitempty" yaml:"identifier,omitempty"`
	IdentifierNulls int           `json:"identifier_nulls" yaml:"identifier_nulls"`
	NullRows        []int         `json:"null_rows,omitempty" yaml:"null_rows,omitempty"`
	Keys            []string      `json:"keys" yaml:"keys"`
	DuplicateGroups []audit.Group `json:"duplicate_groups,omitempty" yaml:"duplicate_groups,omitempty"`
	DuplicateCount  int           `json:"duplicate_count" yaml:"duplicate_count"`
	DuplicateRows   int           `json:"duplicate_rows" yaml:"duplicate_rows"`
}

// DriftSummary covers the whole collection: tables that appeared or
// disappeared, and a per-table report for names present in both sets.
type DriftSummary struct {
	AddedTables   []string        `json:"added_tables,omitempty" yaml:"added_tables,omitempty"`
	RemovedTables []string        `json:"removed_tables,omitempty" yaml:"removed_tables,omitempty"`
	Tables        []*drift.Report `json:"tables,omitempty" yaml:"tables,omitempty"`
}

// RunReport is the complete output of one run.
type RunReport struct {
	RunID          string              `json:"run_id" yaml:"run_id"`
	GeneratedAt    time.Time           `json:"generated_at" yaml:"generated_at"`
	Tables         []TableSummary      `json:"tables" yaml:"tables"`
	Reconciliation *reconcile.Report   `json:"reconciliation" yaml:"reconciliation"`
	Drift          *DriftSummary       `json:"drift,omitempty" yaml:"drift,omitempty"`
	Diagnostics    []ingest.Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// Run executes the full analysis over the current working set. It fails
// only when explicitly configured key columns are absent from a table;
// per-entry ingestion problems were already contained as diagnostics.
func (s *Session) Run() (*RunReport, error) {
	log := zap.L().With(zap.String("component", "session"))
	log.Info("starting run",
		zap.Int("tables", len(s.tables)),
		zap.Int("previous_tables", len(s.previous)),
		zap.String("strategy", s.strategy.String()))

	report := &RunReport{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Tables:      make([]TableSummary, 0, len(s.tables)),
		Diagnostics: s.diagnostics,
	}

	sets := make(map[string]identify.Set, len(s.tables))
	for _, t := range s.tables {
		summary, set, err := s.summarize(t)
		if err != nil {
			return nil, err
		}
		sets[t.Name] = set
		report.Tables = append(report.Tables, summary)
	}

	report.Reconciliation = reconcile.Reconcile(sets)
	if len(s.previous) > 0 || s.hasBaseline {
		report.Drift = s.drift()
	}

	log.Info("run complete",
		zap.String("run_id", report.RunID),
		zap.Int("tables", len(report.Tables)),
		zap.Bool("reconciliation", report.Reconciliation.Applicable),
		zap.Int("diagnostics", len(report.Diagnostics)))
	return report, nil
}

// summarize computes one table's summary and its identifier set.
func (s *Session) summarize(t *table.Table) (TableSummary, identify.Set, error) {
	summary := TableSummary{Name: t.Name, Rows: len(t.Rows), Columns: len(t.Columns)}

	idCol, resolved := s.strategy.Resolve(t)
	if resolved {
		summary.Identifier = idCol
		idx := t.ColumnIndex(idCol)
		for i, row := range t.Rows {
			if row[idx].Null {
				summary.NullRows = append(summary.NullRows, i)
			}
		}
		summary.IdentifierNulls = len(summary.NullRows)
	}

	keys := s.keys
	if len(keys) == 0 {
		if resolved {
			keys = []string{idCol}
		} else {
			keys = t.Columns
		}
	}
	summary.Keys = keys

	groups, err := audit.Audit(t, keys)
	if err != nil {
		return TableSummary{}, nil, eris.Wrapf(err, "session: audit table %q", t.Name)
	}
	summary.DuplicateGroups = groups
	summary.DuplicateCount = len(groups)
	summary.DuplicateRows = audit.DuplicateRows(groups)

	return summary, identify.Values(t, idCol), nil
}

// previousProfiles returns the drift comparison target: the stored
// baseline when one was set, otherwise profiles of the tables added
// through AddPrevious.
func (s *Session) previousProfiles() []drift.TableProfile {
	if s.hasBaseline {
		return s.baseline
	}
	profiles := make([]drift.TableProfile, 0, len(s.previous))
	for _, t := range s.previous {
		profiles = append(profiles, drift.Profile(t))
	}
	return profiles
}

// drift diffs the current collection against the previous one. Names
// only in the current set are added, names only in the previous set are
// removed, shared names get a per-table comparison in current order.
func (s *Session) drift() *DriftSummary {
	previous := s.previousProfiles()
	prevByName := make(map[string]drift.TableProfile, len(previous))
	for _, p := range previous {
		prevByName[p.Table] = p
	}
	curNames := make(map[string]struct{}, len(s.tables))
	for _, t := range s.tables {
		curNames[t.Name] = struct{}{}
	}

	summary := &DriftSummary{}
	for _, t := range s.tables {
		prev, ok := prevByName[t.Name]
		if !ok {
			summary.AddedTables = append(summary.AddedTables, t.Name)
			continue
		}
		summary.Tables = append(summary.Tables, drift.CompareProfiles(drift.Profile(t), prev))
	}
	for _, p := range previous {
		if _, ok := curNames[p.Table]; !ok {
			summary.RemovedTables = append(summary.RemovedTables, p.Table)
		}
	}
	return summary
}
