package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dataqa/internal/session"
)

// writePayload writes a payload file into dir and returns its path.
func writePayload(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCheckCmd_WritesMarkdownReport(t *testing.T) {
	setTestConfig(t)
	dir := t.TempDir()
	permits := writePayload(t, dir, "permits.csv", "Permit Number,Status\nP-1,Open\nP-1,Closed\n")
	inspections := writePayload(t, dir, "inspections.csv", "Permit Number,Result\nP-1,Pass\nP-2,Fail\n")

	checkOutput = filepath.Join(dir, "report.md")
	defer func() { checkOutput = "" }()

	checkCmd.SetContext(context.Background())
	defer checkCmd.SetContext(context.TODO())

	require.NoError(t, checkCmd.RunE(checkCmd, []string{permits, inspections}))

	out, err := os.ReadFile(checkOutput)
	require.NoError(t, err)
	text := string(out)
	assert.Contains(t, text, "# Data Quality Report")
	assert.Contains(t, text, "### permits.csv")
	assert.Contains(t, text, "### inspections.csv")
	assert.Contains(t, text, "## Cross-Table Reconciliation")
}

func TestCheckCmd_JSONFormat(t *testing.T) {
	setTestConfig(t)
	dir := t.TempDir()
	permits := writePayload(t, dir, "permits.csv", "Permit Number\nP-1\nP-2\n")

	checkFormat = "json"
	checkOutput = filepath.Join(dir, "report.json")
	defer func() {
		checkFormat = ""
		checkOutput = ""
	}()

	checkCmd.SetContext(context.Background())
	defer checkCmd.SetContext(context.TODO())

	require.NoError(t, checkCmd.RunE(checkCmd, []string{permits}))

	out, err := os.ReadFile(checkOutput)
	require.NoError(t, err)

	var rep session.RunReport
	require.NoError(t, json.Unmarshal(out, &rep))
	assert.NotEmpty(t, rep.RunID)
	require.Len(t, rep.Tables, 1)
	assert.Equal(t, "permits.csv", rep.Tables[0].Name)
	assert.Equal(t, 2, rep.Tables[0].Rows)
}

func TestCheckCmd_MissingFile(t *testing.T) {
	setTestConfig(t)

	checkCmd.SetContext(context.Background())
	defer checkCmd.SetContext(context.TODO())

	err := checkCmd.RunE(checkCmd, []string{filepath.Join(t.TempDir(), "nope.csv")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read payload")
}

func TestCheckCmd_UnknownFormat(t *testing.T) {
	setTestConfig(t)
	dir := t.TempDir()
	permits := writePayload(t, dir, "permits.csv", "Permit Number\nP-1\n")

	checkFormat = "xml"
	defer func() { checkFormat = "" }()

	checkCmd.SetContext(context.Background())
	defer checkCmd.SetContext(context.TODO())

	err := checkCmd.RunE(checkCmd, []string{permits})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestIdentifierStrategy_Precedence(t *testing.T) {
	setTestConfig(t)

	assert.Equal(t, "column:Ref", identifierStrategy("Ref", []string{"A"}).String())
	assert.Equal(t, "candidates:[A, B]", identifierStrategy("", []string{"A", "B"}).String())
	assert.Equal(t, "candidates:[Permit Number]", identifierStrategy("", nil).String())

	cfg.Identifier.Column = "ID"
	assert.Equal(t, "column:ID", identifierStrategy("", nil).String())
}

func TestIngestPaths_PreservesArgumentOrder(t *testing.T) {
	setTestConfig(t)
	dir := t.TempDir()
	a := writePayload(t, dir, "a.csv", "X\n1\n")
	b := writePayload(t, dir, "b.csv", "X\n2\n")
	c := writePayload(t, dir, "c.csv", "X\n3\n")

	results, err := ingestPaths(context.Background(), []string{c, a, b}, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "c.csv", results[0].Tables[0].Name)
	assert.Equal(t, "a.csv", results[1].Tables[0].Name)
	assert.Equal(t, "b.csv", results[2].Tables[0].Name)
}
