package ingest

import (
	"archive/zip"
	"strings"

	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/dataqa/internal/table"
)

// isWorkbook distinguishes a spreadsheet workbook from a plain archive
// by the OOXML package layout: a content-types manifest plus the xl/
// part tree.
func isWorkbook(zr *zip.Reader) bool {
	hasTypes, hasXL := false, false
	for _, zf := range zr.File {
		switch {
		case zf.Name == "[Content_Types].xml":
			hasTypes = true
		case strings.HasPrefix(zf.Name, "xl/"):
			hasXL = true
		}
		if hasTypes && hasXL {
			return true
		}
	}
	return false
}

// decodeWorkbook expands a workbook into one table per non-empty sheet.
// A single-sheet workbook keeps the payload name; with several sheets
// each table is named "payload:Sheet".
func decodeWorkbook(name string, data []byte, r *Result) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		r.diag(name, KindDecode, "open workbook: "+err.Error())
		return
	}

	var sheets []*xlsx.Sheet
	for _, sheet := range f.Sheets {
		if len(sheet.Rows) > 0 {
			sheets = append(sheets, sheet)
		}
	}
	if len(sheets) == 0 {
		r.diag(name, KindParse, "workbook has no non-empty sheets")
		return
	}

	for _, sheet := range sheets {
		tableName := name
		if len(sheets) > 1 {
			tableName = name + ":" + sheet.Name
		}

		rows := make([][]string, 0, len(sheet.Rows))
		for _, row := range sheet.Rows {
			cells := make([]string, len(row.Cells))
			for j, cell := range row.Cells {
				cells[j] = cell.String()
			}
			rows = append(rows, cells)
		}
		r.add(table.New(tableName, rows[0], rows[1:]))
	}
}
