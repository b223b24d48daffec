package ingest

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

type zipEntry struct {
	name string
	data []byte
}

func makeZip(t *testing.T, entries []zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = w.Write(e.data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func makeWorkbook(t *testing.T, sheets []struct {
	name string
	rows [][]string
}) []byte {
	t.Helper()
	f := xlsx.NewFile()
	for _, s := range sheets {
		sheet, err := f.AddSheet(s.name)
		require.NoError(t, err)
		for _, cells := range s.rows {
			row := sheet.AddRow()
			for _, c := range cells {
				row.AddCell().SetString(c)
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestPayload_PlainCSV(t *testing.T) {
	r := Payload("permits.csv", []byte("Permit Number,Status\nP-1,open\nP-2,closed\n"))
	require.Empty(t, r.Diagnostics)
	require.Len(t, r.Tables, 1)

	tbl := r.Tables[0]
	assert.Equal(t, "permits.csv", tbl.Name)
	assert.Equal(t, []string{"Permit Number", "Status"}, tbl.Columns)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "P-1", tbl.Rows[0][0].Text)
	assert.Equal(t, "closed", tbl.Rows[1][1].Text)
}

func TestPayload_TSV(t *testing.T) {
	r := Payload("permits.tsv", []byte("id\tstatus\nP-1\topen\n"))
	require.Len(t, r.Tables, 1)
	assert.Equal(t, []string{"id", "status"}, r.Tables[0].Columns)
	assert.Equal(t, "open", r.Tables[0].Rows[0][1].Text)
}

func TestPayload_ClassificationBySignatureNotName(t *testing.T) {
	// A .zip name on plain CSV bytes still parses as CSV.
	r := Payload("data.zip", []byte("a,b\n1,2\n"))
	require.Len(t, r.Tables, 1)
	assert.Equal(t, "data.zip", r.Tables[0].Name)

	// ZIP bytes under a .csv name still open as an archive.
	archive := makeZip(t, []zipEntry{{name: "inner.csv", data: []byte("x\n1\n")}})
	r = Payload("data.csv", archive)
	require.Len(t, r.Tables, 1)
	assert.Equal(t, "inner.csv", r.Tables[0].Name)
}

func TestPayload_Archive(t *testing.T) {
	archive := makeZip(t, []zipEntry{
		{name: "march.csv", data: []byte("id\nP-1\n")},
		{name: "april.csv", data: []byte("id\nP-2\n")},
		{name: "notes.md", data: []byte("not tabular")},
		{name: "readme.txt", data: []byte("id\nP-3\n")},
		{name: "__MACOSX/march.csv", data: []byte("junk")},
		{name: ".hidden/data.csv", data: []byte("junk")},
		{name: "sub/.secret.csv", data: []byte("junk")},
	})
	r := Payload("bundle.zip", archive)
	require.Empty(t, r.Diagnostics)
	require.Len(t, r.Tables, 2)
	assert.Equal(t, "march.csv", r.Tables[0].Name)
	assert.Equal(t, "april.csv", r.Tables[1].Name)
}

func TestPayload_DirectTXTIngestsByContent(t *testing.T) {
	// Extension filtering applies to archive entries only; a direct
	// payload is classified by its bytes.
	r := Payload("permits.txt", []byte("id,status\nP-1,open\n"))
	require.Empty(t, r.Diagnostics)
	require.Len(t, r.Tables, 1)
	assert.Equal(t, "permits.txt", r.Tables[0].Name)
	assert.Equal(t, []string{"id", "status"}, r.Tables[0].Columns)
}

func TestPayload_ArchiveEntryFailureContained(t *testing.T) {
	archive := makeZip(t, []zipEntry{
		{name: "good.csv", data: []byte("id\nP-1\n")},
		{name: "empty.csv", data: nil},
	})
	r := Payload("bundle.zip", archive)
	require.Len(t, r.Tables, 1)
	assert.Equal(t, "good.csv", r.Tables[0].Name)
	require.Len(t, r.Diagnostics, 1)
	assert.Equal(t, "empty.csv", r.Diagnostics[0].Entry)
	assert.Equal(t, KindParse, r.Diagnostics[0].Kind)
}

func TestPayload_CorruptedArchive(t *testing.T) {
	r := Payload("broken.zip", []byte("PK\x03\x04 this is not a real archive"))
	assert.Empty(t, r.Tables)
	require.Len(t, r.Diagnostics, 1)
	assert.Equal(t, KindContainer, r.Diagnostics[0].Kind)
	assert.Equal(t, "broken.zip", r.Diagnostics[0].Entry)
}

func TestPayload_DuplicateEntryLastWins(t *testing.T) {
	archive := makeZip(t, []zipEntry{
		{name: "data.csv", data: []byte("v\nfirst\n")},
		{name: "other.csv", data: []byte("v\nother\n")},
		{name: "data.csv", data: []byte("v\nsecond\n")},
	})
	r := Payload("bundle.zip", archive)
	require.Len(t, r.Tables, 2)

	// Replacement keeps first-seen position.
	assert.Equal(t, "data.csv", r.Tables[0].Name)
	assert.Equal(t, "second", r.Tables[0].Rows[0][0].Text)
	assert.Equal(t, "other.csv", r.Tables[1].Name)
}

func TestPayload_Latin1Fallback(t *testing.T) {
	// 0xE9 is not valid UTF-8 on its own; Latin-1 maps it to é.
	r := Payload("cafes.csv", []byte("name\ncaf\xe9\n"))
	require.Empty(t, r.Diagnostics)
	require.Len(t, r.Tables, 1)
	assert.Equal(t, "café", r.Tables[0].Rows[0][0].Text)
}

func TestPayload_EmptyPayload(t *testing.T) {
	r := Payload("empty.csv", nil)
	assert.Empty(t, r.Tables)
	require.Len(t, r.Diagnostics, 1)
	assert.Equal(t, KindParse, r.Diagnostics[0].Kind)
}

func TestPayload_HeaderNormalization(t *testing.T) {
	r := Payload("t.csv", []byte("a,,a\n1,2,3\n"))
	require.Len(t, r.Tables, 1)
	assert.Equal(t, []string{"a", "Unnamed: 1", "a.1"}, r.Tables[0].Columns)
}

func TestPayload_RaggedRowsSquaredUp(t *testing.T) {
	r := Payload("t.csv", []byte("a,b,c\n1,2\n1,2,3,4\n"))
	require.Len(t, r.Tables, 1)
	tbl := r.Tables[0]
	require.Len(t, tbl.Rows, 2)
	assert.True(t, tbl.Rows[0][2].Null)
	assert.Len(t, tbl.Rows[1], 3)
}

func TestPayload_NullMarkersBecomeNulls(t *testing.T) {
	r := Payload("t.csv", []byte("id,note\nP-1,NA\nP-2,ok\n"))
	require.Len(t, r.Tables, 1)
	assert.True(t, r.Tables[0].Rows[0][1].Null)
	assert.False(t, r.Tables[0].Rows[1][1].Null)
}

func TestPayload_ArchiveWithOnlyNoise(t *testing.T) {
	archive := makeZip(t, []zipEntry{
		{name: "readme.md", data: []byte("hello")},
		{name: "__MACOSX/x.csv", data: []byte("a\n1\n")},
	})
	r := Payload("bundle.zip", archive)
	assert.Empty(t, r.Tables)
	assert.Empty(t, r.Diagnostics)
}

func TestPayload_WorkbookSingleSheet(t *testing.T) {
	wb := makeWorkbook(t, []struct {
		name string
		rows [][]string
	}{
		{name: "Sheet1", rows: [][]string{{"id", "status"}, {"P-1", "open"}}},
	})
	r := Payload("report.xlsx", wb)
	require.Empty(t, r.Diagnostics)
	require.Len(t, r.Tables, 1)
	assert.Equal(t, "report.xlsx", r.Tables[0].Name)
	assert.Equal(t, []string{"id", "status"}, r.Tables[0].Columns)
	assert.Equal(t, "P-1", r.Tables[0].Rows[0][0].Text)
}

func TestPayload_WorkbookMultiSheet(t *testing.T) {
	wb := makeWorkbook(t, []struct {
		name string
		rows [][]string
	}{
		{name: "March", rows: [][]string{{"id"}, {"P-1"}}},
		{name: "April", rows: [][]string{{"id"}, {"P-2"}}},
	})
	r := Payload("report.xlsx", wb)
	require.Len(t, r.Tables, 2)
	assert.Equal(t, "report.xlsx:March", r.Tables[0].Name)
	assert.Equal(t, "report.xlsx:April", r.Tables[1].Name)
}

func TestPayload_WorkbookInsideArchive(t *testing.T) {
	wb := makeWorkbook(t, []struct {
		name string
		rows [][]string
	}{
		{name: "Sheet1", rows: [][]string{{"id"}, {"P-9"}}},
	})
	archive := makeZip(t, []zipEntry{
		{name: "extra.csv", data: []byte("id\nP-1\n")},
		{name: "nested.xlsx", data: wb},
	})
	r := Payload("bundle.zip", archive)
	require.Empty(t, r.Diagnostics)
	require.Len(t, r.Tables, 2)
	assert.Equal(t, "extra.csv", r.Tables[0].Name)
	assert.Equal(t, "nested.xlsx", r.Tables[1].Name)
	assert.Equal(t, "P-9", r.Tables[1].Rows[0][0].Text)
}

func TestPayload_Idempotent(t *testing.T) {
	data := []byte("Permit Number,Status\nP-1,open\nNA,closed\n")
	first := Payload("permits.csv", data)
	second := Payload("permits.csv", data)
	assert.Equal(t, first.Tables, second.Tables)
	assert.Equal(t, first.Diagnostics, second.Diagnostics)
}

func TestResult_Table(t *testing.T) {
	r := Payload("t.csv", []byte("a\n1\n"))
	assert.NotNil(t, r.Table("t.csv"))
	assert.Nil(t, r.Table("missing"))
}
