// Package export flattens a job's businesses into a lead list. Scraped
// contact fields take priority over SERP candidates, and rows are
// deduplicated by their (email, phone) pair.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/prospector/internal/model"
)

// Format selects the output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", eris.Errorf("export: unknown format %q", s)
	}
}

// Row is one exported lead.
type Row struct {
	Name        string
	Address     string
	State       string
	Zip         string
	Domain      string
	Email       string
	EmailSource string
	Phone       string
	PhoneSource string
}

var header = []string{"name", "address", "state", "zip", "domain", "email", "email_source", "phone", "phone_source"}

func (r Row) record() []string {
	return []string{r.Name, r.Address, r.State, r.Zip, r.Domain, r.Email, r.EmailSource, r.Phone, r.PhoneSource}
}

// Flatten coalesces each business's contact fields and deduplicates the
// result. Businesses with neither an email nor a phone are omitted; they
// carry nothing a lead list can use.
func Flatten(businesses []model.Business) []Row {
	seen := make(map[string]struct{}, len(businesses))
	rows := make([]Row, 0, len(businesses))

	for _, b := range businesses {
		row := flattenOne(b)
		if row.Email == "" && row.Phone == "" {
			continue
		}
		key := row.Email + "\x00" + row.Phone
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		rows = append(rows, row)
	}
	return rows
}

func flattenOne(b model.Business) Row {
	row := Row{
		Name:    b.Name,
		Address: b.Address,
		State:   b.State,
		Zip:     b.Zip,
		Domain:  b.Enrichment.Domain,
	}

	switch {
	case b.Scrape.Email != "":
		row.Email = b.Scrape.Email
		row.EmailSource = "scrape"
	case b.Enrichment.Email != "":
		row.Email = b.Enrichment.Email
		row.EmailSource = "serp"
	}

	switch {
	case b.Scrape.Phone != "":
		row.Phone = b.Scrape.Phone
		row.PhoneSource = "scrape"
	case b.Enrichment.Phone != "":
		row.Phone = b.Enrichment.Phone
		row.PhoneSource = "serp"
	case b.Phone != "":
		row.Phone = b.Phone
		row.PhoneSource = "places"
	}
	return row
}

// WriteCSV writes rows with a header line.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for _, row := range rows {
		if err := cw.Write(row.record()); err != nil {
			return eris.Wrap(err, "export: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteXLSX writes rows to a single-sheet workbook.
func WriteXLSX(w io.Writer, rows []Row) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Leads")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	hr := sheet.AddRow()
	for _, col := range header {
		hr.AddCell().SetString(col)
	}
	for _, row := range rows {
		xr := sheet.AddRow()
		for _, val := range row.record() {
			xr.AddCell().SetString(val)
		}
	}

	return eris.Wrap(file.Write(w), "export: write xlsx")
}

// Write encodes rows in the requested format.
func Write(w io.Writer, rows []Row, format Format) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, rows)
	case FormatXLSX:
		return WriteXLSX(w, rows)
	default:
		return eris.New(fmt.Sprintf("export: unknown format %q", format))
	}
}
