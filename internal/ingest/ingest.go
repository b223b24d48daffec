// Package ingest turns raw uploaded bytes into tables. Classification is
// by content signature: payloads carrying the ZIP magic are opened as
// containers (archives or spreadsheet workbooks), anything else is
// decoded as a single delimited text file. Per-entry failures are
// contained as diagnostics; ingestion never fails the whole run because
// one entry is malformed.
package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"io"
	"path"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/sells-group/dataqa/internal/table"
)

// Kind classifies a diagnostic.
type Kind string

const (
	// KindContainer marks a payload whose archive structure could not be
	// opened at all.
	KindContainer Kind = "container"
	// KindDecode marks an entry whose bytes could not be decoded to text
	// or whose workbook structure was unreadable.
	KindDecode Kind = "decode"
	// KindParse marks an entry whose decoded text was not valid tabular
	// syntax.
	KindParse Kind = "parse"
)

// Diagnostic records one contained ingestion failure.
type Diagnostic struct {
	Entry   string `json:"entry" yaml:"entry"`
	Kind    Kind   `json:"kind" yaml:"kind"`
	Message string `json:"message" yaml:"message"`
}

// Result is the outcome of ingesting one payload: the tables that
// decoded cleanly, in first-seen order with unique names, plus a
// diagnostic per dropped entry. A corrupted container yields zero tables
// and one diagnostic, never an error.
type Result struct {
	Tables      []*table.Table `json:"tables"`
	Diagnostics []Diagnostic   `json:"diagnostics,omitempty"`
}

// add keeps table name uniqueness: a later table under an existing name
// replaces the earlier one in place, preserving first-seen order.
func (r *Result) add(t *table.Table) {
	for i, existing := range r.Tables {
		if existing.Name == t.Name {
			r.Tables[i] = t
			return
		}
	}
	r.Tables = append(r.Tables, t)
}

func (r *Result) diag(entry string, kind Kind, msg string) {
	r.Diagnostics = append(r.Diagnostics, Diagnostic{Entry: entry, Kind: kind, Message: msg})
}

// Table returns the ingested table with the given name, or nil.
func (r *Result) Table(name string) *table.Table {
	for _, t := range r.Tables {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// Payload ingests one uploaded payload. name is the suggested display
// name for the payload (it becomes the table name for a plain tabular
// payload; archive entries are named by their path within the archive).
func Payload(name string, data []byte) *Result {
	r := &Result{}
	if isZIPContainer(data) {
		ingestContainer(name, data, r)
		return r
	}
	decodeTabular(name, data, r)
	return r
}

// zip magic: local file header, empty archive, or spanned marker.
func isZIPContainer(data []byte) bool {
	if len(data) < 4 || data[0] != 'P' || data[1] != 'K' {
		return false
	}
	switch {
	case data[2] == 3 && data[3] == 4:
		return true
	case data[2] == 5 && data[3] == 6:
		return true
	case data[2] == 7 && data[3] == 8:
		return true
	}
	return false
}

func ingestContainer(name string, data []byte, r *Result) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		r.diag(name, KindContainer, "open archive: "+err.Error())
		return
	}

	// XLSX files are ZIP containers too; a workbook is one payload, not
	// an archive of independent files.
	if isWorkbook(zr) {
		decodeWorkbook(name, data, r)
		return
	}

	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() || skipEntry(zf.Name) {
			continue
		}
		ext := strings.ToLower(path.Ext(zf.Name))
		switch ext {
		case ".csv", ".tsv", ".xlsx":
		default:
			continue
		}

		rc, err := zf.Open()
		if err != nil {
			r.diag(zf.Name, KindDecode, "open entry: "+err.Error())
			continue
		}
		entry, err := io.ReadAll(rc)
		rc.Close() //nolint:errcheck
		if err != nil {
			r.diag(zf.Name, KindDecode, "read entry: "+err.Error())
			continue
		}

		if ext == ".xlsx" {
			decodeWorkbook(zf.Name, entry, r)
			continue
		}
		decodeTabular(zf.Name, entry, r)
	}
}

// skipEntry filters expected archive noise: macOS resource forks and any
// path with a hidden (dot-prefixed) segment.
func skipEntry(name string) bool {
	if strings.HasPrefix(name, "__MACOSX/") {
		return true
	}
	for _, seg := range strings.Split(name, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

// decodeTabular parses one delimited text payload into a table named
// entry. Tab-separated files are recognized by the .tsv extension;
// everything else parses as comma-separated.
func decodeTabular(entry string, data []byte, r *Result) {
	if len(data) == 0 {
		r.diag(entry, KindParse, "empty payload")
		return
	}

	text, ok := decodeText(entry, data, r)
	if !ok {
		return
	}

	reader := csv.NewReader(bytes.NewReader(text))
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	if strings.EqualFold(path.Ext(entry), ".tsv") {
		reader.Comma = '\t'
	}

	records, err := reader.ReadAll()
	if err != nil {
		r.diag(entry, KindParse, "parse delimited text: "+err.Error())
		return
	}
	if len(records) == 0 {
		r.diag(entry, KindParse, "no header row")
		return
	}

	r.add(table.New(entry, records[0], records[1:]))
}

// decodeText applies the encoding policy: accept valid UTF-8 as is,
// otherwise fall back to Latin-1, which maps every byte to a rune.
func decodeText(entry string, data []byte, r *Result) ([]byte, bool) {
	if utf8.Valid(data) {
		return data, true
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		r.diag(entry, KindDecode, "decode latin-1: "+err.Error())
		return nil, false
	}
	return decoded, true
}
