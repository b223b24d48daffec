package report

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/dataqa/internal/identify"
	"github.com/sells-group/dataqa/internal/ingest"
	"github.com/sells-group/dataqa/internal/session"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func sampleReport(t *testing.T) *session.RunReport {
	t.Helper()
	s := session.New(identify.FixedCandidates("Permit Number"), nil)
	s.AddResult(ingest.Payload("march.csv", []byte("Permit Number,Status\nP-1,open\nP-1,closed\nP-2,open\n")))
	s.AddResult(ingest.Payload("april.csv", []byte("Permit Number\nP-2\nP-3\n")))
	s.AddResult(ingest.Payload("empty.csv", nil))
	s.AddPrevious(ingest.Payload("march.csv", []byte("Permit Number,Status,old\nP-1,open,x\n")))
	report, err := s.Run()
	require.NoError(t, err)
	return report
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"markdown": FormatMarkdown,
		"md":       FormatMarkdown,
		"JSON":     FormatJSON,
		"yaml":     FormatYAML,
		"yml":      FormatYAML,
		" json ":   FormatJSON,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xml")
}

func TestMarkdown(t *testing.T) {
	out := Markdown(sampleReport(t))

	assert.Contains(t, out, "# Data Quality Report")
	assert.Contains(t, out, "### march.csv")
	assert.Contains(t, out, "- Identifier: Permit Number (0 null)")
	assert.Contains(t, out, "Duplicates: 1 group(s), 2 row(s)")
	assert.Contains(t, out, "key [P-1] rows 0, 1")
	assert.Contains(t, out, "## Cross-Table Reconciliation")
	assert.Contains(t, out, "missing P-3 (found in april.csv)")
	assert.Contains(t, out, "## Drift")
	assert.Contains(t, out, "- Added tables: april.csv")
	assert.Contains(t, out, "- Removed columns: old")
	assert.Contains(t, out, "## Diagnostics")
	assert.Contains(t, out, "empty.csv [parse]: empty payload")
}

func TestMarkdown_NotApplicableReconciliation(t *testing.T) {
	s := session.New(identify.FixedCandidates("Permit Number"), nil)
	s.AddResult(ingest.Payload("only.csv", []byte("Permit Number\nP-1\n")))
	report, err := s.Run()
	require.NoError(t, err)

	out := Markdown(report)
	assert.Contains(t, out, "Not applicable: fewer than two tables")
	assert.NotContains(t, out, "## Drift")
}

func TestRender_JSON(t *testing.T) {
	out, err := Render(sampleReport(t), FormatJSON)
	require.NoError(t, err)

	var decoded session.RunReport
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Len(t, decoded.Tables, 2)
	assert.True(t, decoded.Reconciliation.Applicable)
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestRender_YAML(t *testing.T) {
	out, err := Render(sampleReport(t), FormatYAML)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &decoded))
	assert.Contains(t, decoded, "run_id")
	assert.Contains(t, decoded, "reconciliation")
}

func TestRender_DefaultsToMarkdown(t *testing.T) {
	r := sampleReport(t)
	out, err := Render(r, FormatMarkdown)
	require.NoError(t, err)
	assert.Equal(t, Markdown(r), out)
}
