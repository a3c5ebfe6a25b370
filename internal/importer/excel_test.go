package importer

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/homeweavers/listing-watch/internal/database"
)

func buildWorkbook(t *testing.T, rows [][]string) *bytes.Reader {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		for j, v := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return bytes.NewReader(buf.Bytes())
}

func TestParse(t *testing.T) {
	r := buildWorkbook(t, [][]string{
		{"ASIN", "URL", "Collection Name", "Size", "Color", "Customer"},
		{"B0AAAAAAA1", "https://www.amazon.com/dp/B0AAAAAAA1", "Harbor", "Queen", "Navy", "Acme"},
		{"", "https://www.amazon.com/dp/B0BBBBBBB2", "", "", "", ""},
	})

	rows, errs, err := Parse(r)
	require.NoError(t, err)
	assert.Empty(t, errs)
	require.Len(t, rows, 2)

	assert.Equal(t, 2, rows[0].RowNum)
	assert.Equal(t, "https://www.amazon.com/dp/B0AAAAAAA1", rows[0].URL)
	assert.Equal(t, "Harbor", rows[0].CollectionName)
	assert.Equal(t, "Queen", rows[0].Size)
	assert.Equal(t, "Navy", rows[0].Color)
	assert.Equal(t, "Acme", rows[0].Customer)

	assert.Equal(t, 3, rows[1].RowNum)
	assert.Empty(t, rows[1].CollectionName)
}

func TestParse_HeaderCaseInsensitive(t *testing.T) {
	r := buildWorkbook(t, [][]string{
		{"url", "CUSTOMER"},
		{"https://www.amazon.com/dp/B0AAAAAAA1", "Acme"},
	})

	rows, errs, err := Parse(r)
	require.NoError(t, err)
	assert.Empty(t, errs)
	require.Len(t, rows, 1)
	assert.Equal(t, "Acme", rows[0].Customer)
}

func TestParse_MissingURLColumn(t *testing.T) {
	r := buildWorkbook(t, [][]string{
		{"ASIN", "Collection Name"},
		{"B0AAAAAAA1", "Harbor"},
	})

	_, _, err := Parse(r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "URL column")
}

func TestParse_RowWithoutURL(t *testing.T) {
	r := buildWorkbook(t, [][]string{
		{"URL", "Customer"},
		{"https://www.amazon.com/dp/B0AAAAAAA1", "Acme"},
		{"", "Orphaned"},
		{"", ""}, // fully empty rows are skipped, not errors
		{"https://www.amazon.com/dp/B0BBBBBBB2", ""},
	})

	rows, errs, err := Parse(r)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Len(t, errs, 1)
	assert.Equal(t, 3, errs[0].Row)
	assert.Equal(t, "url is required", errs[0].Error)
}

func TestParse_NotAWorkbook(t *testing.T) {
	_, _, err := Parse(bytes.NewReader([]byte("not an xlsx file")))
	require.Error(t, err)
}

func TestTemplate(t *testing.T) {
	f, err := Template()
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, catalogHeaders, rows[0])
}

func TestExport(t *testing.T) {
	price := "19.99"
	finalURL := "https://www.amazon.com/dp/B0AAAAAAA1"
	yes := true
	no := false
	checked := time.Date(2026, 8, 30, 14, 30, 0, 0, time.UTC)

	listings := []*database.Listing{
		{
			ASIN:           "B0AAAAAAA1",
			URL:            "https://www.amazon.com/dp/B0AAAAAAA1",
			CollectionName: "Harbor",
			Size:           "Queen",
			Color:          "Navy",
			Customer:       "Acme",
			FinalURL:       &finalURL,
			Price:          &price,
			IsRedirect:     &no,
			IsUnavailable:  &no,
			Orderable:      &yes,
			LastChecked:    &checked,
		},
		{
			ASIN: "B0BBBBBBB2",
			URL:  "https://www.amazon.com/dp/B0BBBBBBB2",
		},
	}

	f, err := Export(listings)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, append(append([]string{}, catalogHeaders...), resultHeaders...), rows[0])

	assert.Equal(t, []string{
		"B0AAAAAAA1", "https://www.amazon.com/dp/B0AAAAAAA1", "Harbor", "Queen", "Navy", "Acme",
		finalURL, "19.99", "No", "No", "Yes", "2026-08-30 14:30:00",
	}, rows[1])

	// Unchecked listing keeps empty result cells
	assert.Equal(t, "B0BBBBBBB2", rows[2][0])
	assert.Len(t, rows[2], 2) // trailing empty cells are trimmed by GetRows
}
