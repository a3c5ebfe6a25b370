// Package importer handles the Excel surfaces of the catalog: the blank
// upload template, bulk import parsing, and the results export.
package importer

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/homeweavers/listing-watch/internal/database"
)

const sheetName = "Listings"

var catalogHeaders = []string{"ASIN", "URL", "Collection Name", "Size", "Color", "Customer"}

var resultHeaders = []string{"Final URL", "Price", "Is Redirect", "Is Unavailable", "Orderable", "Last Checked"}

// Row is a parsed upload row. ASIN is derived from the URL on insert, so
// uploads only need the catalog attributes.
type Row struct {
	RowNum         int
	URL            string
	CollectionName string
	Size           string
	Color          string
	Customer       string
}

// ImportError reports a row that could not be imported.
type ImportError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// Template builds the blank upload workbook with the catalog headers.
func Template() (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := writeHeaders(f, catalogHeaders); err != nil {
		return nil, err
	}

	return f, nil
}

// Parse reads an uploaded workbook. The header row must contain a URL
// column; other catalog columns are optional. Rows without a URL are
// reported as errors, not dropped silently, so bulk upload can surface a
// per-row account of what was skipped.
func Parse(r io.Reader) ([]Row, []ImportError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sheet: %w", err)
	}

	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("workbook has no header row")
	}

	cols := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols["url"]; !ok {
		return nil, nil, fmt.Errorf("workbook must have a URL column")
	}

	cell := func(row []string, name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var parsed []Row
	var errs []ImportError
	for i, row := range rows[1:] {
		rowNum := i + 2 // 1-based, after the header

		if isEmptyRow(row) {
			continue
		}

		url := cell(row, "url")
		if url == "" {
			errs = append(errs, ImportError{Row: rowNum, Error: "url is required"})
			continue
		}

		parsed = append(parsed, Row{
			RowNum:         rowNum,
			URL:            url,
			CollectionName: cell(row, "collection name"),
			Size:           cell(row, "size"),
			Color:          cell(row, "color"),
			Customer:       cell(row, "customer"),
		})
	}

	return parsed, errs, nil
}

// Export builds a workbook of the catalog with check results. Booleans are
// serialized as Yes/No at this boundary only; unchecked listings keep
// empty result cells.
func Export(listings []*database.Listing) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	headers := append(append([]string{}, catalogHeaders...), resultHeaders...)
	if err := writeHeaders(f, headers); err != nil {
		return nil, err
	}

	for i, l := range listings {
		values := []string{
			l.ASIN, l.URL, l.CollectionName, l.Size, l.Color, l.Customer,
			strValue(l.FinalURL), strValue(l.Price),
			yesNo(l.IsRedirect), yesNo(l.IsUnavailable), yesNo(l.Orderable),
			timeValue(l.LastChecked),
		}

		for j, v := range values {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return nil, fmt.Errorf("failed to compute cell: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return nil, fmt.Errorf("failed to set cell: %w", err)
			}
		}
	}

	return f, nil
}

func writeHeaders(f *excelize.File, headers []string) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("failed to compute header cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return fmt.Errorf("failed to set header: %w", err)
		}
	}
	return nil
}

func isEmptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func yesNo(b *bool) string {
	if b == nil {
		return ""
	}
	if *b {
		return "Yes"
	}
	return "No"
}

func timeValue(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}
