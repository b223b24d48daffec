// Package report renders a RunReport for humans and machines.
package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/dataqa/internal/session"
	"github.com/sells-group/dataqa/internal/table"
)

// Format selects a rendering.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	}
	return "", eris.Errorf("report: unknown format %q (want markdown, json, or yaml)", s)
}

// Render produces the report in the requested format.
func Render(r *session.RunReport, format Format) (string, error) {
	switch format {
	case FormatJSON:
		out, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return "", eris.Wrap(err, "report: marshal json")
		}
		return string(out) + "\n", nil
	case FormatYAML:
		out, err := yaml.Marshal(r)
		if err != nil {
			return "", eris.Wrap(err, "report: marshal yaml")
		}
		return string(out), nil
	default:
		return Markdown(r), nil
	}
}

// Markdown generates the human-readable run report.
func Markdown(r *session.RunReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Data Quality Report\n")
	fmt.Fprintf(&b, "Run: %s\n", r.RunID)
	fmt.Fprintf(&b, "Generated: %s\n\n", r.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	b.WriteString("## Tables\n")
	if len(r.Tables) == 0 {
		b.WriteString("No tables ingested.\n\n")
	}
	for _, t := range r.Tables {
		fmt.Fprintf(&b, "### %s\n", t.Name)
		fmt.Fprintf(&b, "- Rows: %d\n", t.Rows)
		fmt.Fprintf(&b, "- Columns: %d\n", t.Columns)
		if t.Identifier != "" {
			fmt.Fprintf(&b, "- Identifier: %s (%d null)\n", t.Identifier, t.IdentifierNulls)
			if len(t.NullRows) > 0 {
				fmt.Fprintf(&b, "  - Null identifier rows: %s\n", joinInts(t.NullRows))
			}
		} else {
			b.WriteString("- Identifier: none resolved\n")
		}
		fmt.Fprintf(&b, "- Duplicate keys: %s\n", strings.Join(t.Keys, ", "))
		if t.DuplicateCount == 0 {
			b.WriteString("- Duplicates: none\n")
		} else {
			fmt.Fprintf(&b, "- Duplicates: %d group(s), %d row(s)\n", t.DuplicateCount, t.DuplicateRows)
			for _, g := range t.DuplicateGroups {
				fmt.Fprintf(&b, "  - key [%s] rows %s\n", joinValues(g.Key), joinInts(g.Rows))
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("## Cross-Table Reconciliation\n")
	rec := r.Reconciliation
	switch {
	case rec == nil || !rec.Applicable:
		b.WriteString("Not applicable: fewer than two tables with identifier sets.\n\n")
	default:
		fmt.Fprintf(&b, "Union: %d identifier(s)\n", len(rec.Union))
		for _, tr := range rec.Tables {
			fmt.Fprintf(&b, "- %s: %s (%d unique, %d missing, %.1f%% coverage)\n",
				tr.Name, tr.Status, tr.UniqueCount, tr.MissingCount, tr.Coverage)
			for _, gap := range tr.Missing {
				fmt.Fprintf(&b, "  - missing %s (found in %s)\n", gap.ID, strings.Join(gap.FoundIn, ", "))
			}
		}
		b.WriteString("\n")
	}

	if r.Drift != nil {
		b.WriteString("## Drift\n")
		if len(r.Drift.AddedTables) > 0 {
			fmt.Fprintf(&b, "- Added tables: %s\n", strings.Join(r.Drift.AddedTables, ", "))
		}
		if len(r.Drift.RemovedTables) > 0 {
			fmt.Fprintf(&b, "- Removed tables: %s\n", strings.Join(r.Drift.RemovedTables, ", "))
		}
		for _, d := range r.Drift.Tables {
			fmt.Fprintf(&b, "### %s\n", d.Table)
			if len(d.Added) > 0 {
				fmt.Fprintf(&b, "- Added columns: %s\n", strings.Join(d.Added, ", "))
			}
			if len(d.Removed) > 0 {
				fmt.Fprintf(&b, "- Removed columns: %s\n", strings.Join(d.Removed, ", "))
			}
			for _, c := range d.Columns {
				fmt.Fprintf(&b, "- %s: %.1f%% -> %.1f%% (%+.1f)\n", c.Column, c.Previous, c.Current, c.Delta)
			}
		}
		b.WriteString("\n")
	}

	if len(r.Diagnostics) > 0 {
		b.WriteString("## Diagnostics\n")
		for _, d := range r.Diagnostics {
			fmt.Fprintf(&b, "- %s [%s]: %s\n", d.Entry, d.Kind, d.Message)
		}
	}

	return b.String()
}

func joinInts(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(parts, ", ")
}

func joinValues(vals []table.Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}
