package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/lucasfdcampos/lead-scraper/internal/dedup"
	"github.com/lucasfdcampos/lead-scraper/internal/domain"
	"github.com/lucasfdcampos/lead-scraper/internal/filter"
)

// BulkSheetRows is the number of leads per sheet of a bulk workbook.
const BulkSheetRows = 500

// latinoMarkers are matched against accent-folded, lower-cased text, so
// "Se Habla Español" and "bilingüe" hit too.
var latinoMarkers = []string{
	"espanol",
	"bilingue",
	"latino",
	"latina",
	"hispano",
	"hispana",
}

// LatinoProbable reports whether the lead's name, category or URLs carry a
// Spanish-speaking marker.
func LatinoProbable(l domain.Lead) bool {
	hay := dedup.NormalizeName(strings.Join([]string{l.Name, l.Category, l.Website, l.SourceURL}, " "))
	for _, m := range latinoMarkers {
		if strings.Contains(hay, m) {
			return true
		}
	}
	return false
}

var bulkHeader = append(append([]string(nil), header...), "Latino probable")

// WriteBulkXLSX writes the phone-bearing leads of several tasks as one
// workbook, BulkSheetRows leads per sheet. An empty export still holds one
// sheet with the header row.
func WriteBulkXLSX(w io.Writer, leads []domain.Lead) error {
	var rows []domain.Lead
	for _, l := range leads {
		if filter.HasPhone(l) {
			rows = append(rows, l)
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return eris.Wrap(err, "output: xlsx style")
	}

	sheets := max(1, (len(rows)+BulkSheetRows-1)/BulkSheetRows)
	for s := 0; s < sheets; s++ {
		name := "Leads"
		if s > 0 {
			name = fmt.Sprintf("Leads %d", s+1)
		}
		if s == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return eris.Wrap(err, "output: xlsx sheet")
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return eris.Wrap(err, "output: xlsx sheet")
		}

		hdr := make([]any, len(bulkHeader))
		for i, h := range bulkHeader {
			hdr[i] = h
		}
		if err := f.SetSheetRow(name, "A1", &hdr); err != nil {
			return eris.Wrap(err, "output: xlsx header")
		}
		last, _ := excelize.CoordinatesToCellName(len(bulkHeader), 1)
		if err := f.SetCellStyle(name, "A1", last, bold); err != nil {
			return eris.Wrap(err, "output: xlsx header style")
		}

		chunk := rows[min(s*BulkSheetRows, len(rows)):min((s+1)*BulkSheetRows, len(rows))]
		for i, l := range chunk {
			cells := row(s*BulkSheetRows+i, l)
			vals := make([]any, 0, len(cells)+1)
			for _, c := range cells {
				vals = append(vals, c)
			}
			vals[0] = s*BulkSheetRows + i + 1
			flag := "No"
			if LatinoProbable(l) {
				flag = "Yes"
			}
			vals = append(vals, flag)

			cell, err := excelize.CoordinatesToCellName(1, i+2)
			if err != nil {
				return eris.Wrap(err, "output: xlsx cell")
			}
			if err := f.SetSheetRow(name, cell, &vals); err != nil {
				return eris.Wrap(err, "output: xlsx row")
			}
		}
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "output: xlsx write")
	}
	return nil
}
