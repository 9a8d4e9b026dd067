// Package output renders a scrape result for the CLI.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/lucasfdcampos/lead-scraper/internal/domain"
)

type Format string

const (
	JSON  Format = "json"
	CSV   Format = "csv"
	Table Format = "table"
	XLSX  Format = "xlsx"
)

// Formats lists the supported formats in help-text order.
var Formats = []Format{JSON, CSV, Table, XLSX}

// ParseFormat accepts a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", eris.Errorf("output: unknown format %q", s)
}

// Binary reports whether f must not be written to a terminal.
func (f Format) Binary() bool { return f == XLSX }

// Write renders res to w in format f.
func Write(w io.Writer, f Format, res domain.Result) error {
	switch f {
	case JSON:
		return WriteJSON(w, res)
	case CSV:
		return WriteCSV(w, res.Leads)
	case Table:
		return WriteTable(w, res)
	case XLSX:
		return WriteXLSX(w, res.Leads)
	}
	return eris.Errorf("output: unknown format %q", f)
}

func WriteJSON(w io.Writer, res domain.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return eris.Wrap(err, "output: json")
	}
	return nil
}

var header = []string{"#", "Name", "Phone", "Website", "Address", "City", "Region", "PostalCode",
	"Rating", "Reviews", "Category", "Source", "SourceURL", "Keyword", "Location"}

func row(i int, l domain.Lead) []string {
	return []string{
		strconv.Itoa(i + 1),
		l.Name,
		l.Phone,
		l.Website,
		l.Address,
		l.City,
		l.Region,
		l.PostalCode,
		formatRating(l.Rating),
		formatCount(l.ReviewCount),
		l.Category,
		l.Source,
		l.SourceURL,
		l.Keyword,
		l.Location,
	}
}

// WriteCSV writes leads with a UTF-8 BOM so spreadsheet apps pick the right
// encoding.
func WriteCSV(w io.Writer, leads []domain.Lead) error {
	if _, err := io.WriteString(w, "\xEF\xBB\xBF"); err != nil {
		return eris.Wrap(err, "output: csv bom")
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "output: csv header")
	}
	for i, l := range leads {
		if err := cw.Write(row(i, l)); err != nil {
			return eris.Wrap(err, "output: csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "output: csv flush")
}

// WriteTable prints a compact summary table.
func WriteTable(w io.Writer, res domain.Result) error {
	if len(res.Leads) == 0 {
		msg := "No leads found."
		if res.Error != "" {
			msg = "Error: " + res.Error
		}
		_, err := fmt.Fprintln(w, msg)
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Name", "Phone", "Address", "Rating", "Reviews", "Source"})
	for i, l := range res.Leads {
		t.AppendRow(table.Row{
			i + 1,
			truncate(l.Name, 44),
			dash(l.Phone),
			truncate(dash(l.Address), 40),
			dash(formatRating(l.Rating)),
			dash(formatCount(l.ReviewCount)),
			l.Source,
		})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("Total: %d leads", res.Count), "", strings.Join(res.Locations, " + "), "", "", res.Mode})
	t.SetStyle(table.StyleRounded)
	t.Render()
	return nil
}

// WriteXLSX writes leads as a single-sheet workbook.
func WriteXLSX(w io.Writer, leads []domain.Lead) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Leads"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return eris.Wrap(err, "output: xlsx sheet")
	}

	hdr := make([]any, len(header))
	for i, h := range header {
		hdr[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &hdr); err != nil {
		return eris.Wrap(err, "output: xlsx header")
	}
	for i, l := range leads {
		cells := row(i, l)
		vals := make([]any, len(cells))
		for j, c := range cells {
			vals[j] = c
		}
		vals[0] = i + 1
		if l.Rating != nil {
			vals[8] = *l.Rating
		}
		if l.ReviewCount != nil {
			vals[9] = *l.ReviewCount
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return eris.Wrap(err, "output: xlsx cell")
		}
		if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
			return eris.Wrap(err, "output: xlsx row")
		}
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return eris.Wrap(err, "output: xlsx panes")
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "output: xlsx write")
	}
	return nil
}

func formatRating(r *float64) string {
	if r == nil {
		return ""
	}
	return strconv.FormatFloat(*r, 'f', 1, 64)
}

func formatCount(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
