package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector/internal/model"
)

func sampleBusinesses() []model.Business {
	return []model.Business{
		{
			Name:    "Alpha Chiro",
			Address: "1 Main St",
			State:   "TX",
			Zip:     "75001",
			Phone:   "(972) 555-0101",
			Enrichment: model.Enrichment{
				Domain: "alpha.example",
				Email:  "serp@alpha.example",
				Phone:  "(972) 555-0102",
			},
			Scrape: model.ScrapeRecord{
				Email: "info@alpha.example",
				Phone: "(972) 555-0103",
			},
		},
		{
			Name:       "Beta Chiro",
			State:      "TX",
			Enrichment: model.Enrichment{Domain: "beta.example", Email: "hello@beta.example"},
		},
		{
			// Same contact pair as Alpha: deduplicated away.
			Name: "Alpha Chiro Annex",
			Scrape: model.ScrapeRecord{
				Email: "info@alpha.example",
				Phone: "(972) 555-0103",
			},
		},
		{
			// No contact info at all: omitted.
			Name:   "Ghost LLC",
			Scrape: model.ScrapeRecord{ErrorCode: model.ScrapeErrNoContactInfo},
		},
		{
			// Phone only, straight from the places listing.
			Name:  "Gamma Chiro",
			Phone: "(512) 555-0104",
		},
	}
}

func TestFlattenCoalescesScrapeOverSerp(t *testing.T) {
	rows := Flatten(sampleBusinesses())
	require.Len(t, rows, 3)

	alpha := rows[0]
	assert.Equal(t, "info@alpha.example", alpha.Email)
	assert.Equal(t, "scrape", alpha.EmailSource)
	assert.Equal(t, "(972) 555-0103", alpha.Phone)
	assert.Equal(t, "scrape", alpha.PhoneSource)

	beta := rows[1]
	assert.Equal(t, "hello@beta.example", beta.Email)
	assert.Equal(t, "serp", beta.EmailSource)
	assert.Empty(t, beta.Phone)

	gamma := rows[2]
	assert.Empty(t, gamma.Email)
	assert.Equal(t, "(512) 555-0104", gamma.Phone)
	assert.Equal(t, "places", gamma.PhoneSource)
}

func TestFlattenDedupesByContactPair(t *testing.T) {
	rows := Flatten(sampleBusinesses())
	for _, r := range rows {
		assert.NotEqual(t, "Alpha Chiro Annex", r.Name)
		assert.NotEqual(t, "Ghost LLC", r.Name)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, Flatten(sampleBusinesses())))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4) // header + 3 rows
	assert.Equal(t, header, records[0])
	assert.Equal(t, "Alpha Chiro", records[1][0])
	assert.Equal(t, "info@alpha.example", records[1][5])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, Flatten(sampleBusinesses())))
	// ZIP container magic.
	assert.Equal(t, []byte{'P', 'K'}, buf.Bytes()[:2])
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("CSV")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat(" xlsx ")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = ParseFormat("pdf")
	assert.Error(t, err)
}
