package scrape

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docFromHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestExtractContactsMailto(t *testing.T) {
	doc := docFromHTML(t, `<html><body>
		<a href="mailto:info@100percentdoc.com">Email us</a>
	</body></html>`)
	c := ExtractContacts(doc)
	require.Len(t, c.Emails, 1)
	assert.Equal(t, "info@100percentdoc.com", c.Emails[0])
}

func TestExtractContactsMailtoWithQuery(t *testing.T) {
	doc := docFromHTML(t, `<a href="mailto:Sales@AcmeWidgets.com?subject=Quote">contact</a>`)
	c := ExtractContacts(doc)
	require.Len(t, c.Emails, 1)
	assert.Equal(t, "sales@acmewidgets.com", c.Emails[0])
}

func TestExtractContactsFromTextAndAttributes(t *testing.T) {
	doc := docFromHTML(t, `<html><body>
		<div data-contact="office@acme.io">Office</div>
		<p>Reach us at hello@acme.io or call.</p>
		<script>var tracking = "pixel@tracker.io";</script>
	</body></html>`)
	c := ExtractContacts(doc)
	assert.Contains(t, c.Emails, "office@acme.io")
	assert.Contains(t, c.Emails, "hello@acme.io")
	assert.NotContains(t, c.Emails, "pixel@tracker.io", "script content is not visible text")
}

func TestExtractContactsBoundaryAware(t *testing.T) {
	doc := docFromHTML(t, `<p>id9info@acme.com5 but real@acme.com works</p>`)
	c := ExtractContacts(doc)
	assert.NotContains(t, c.Emails, "info@acme.com")
	assert.Contains(t, c.Emails, "real@acme.com")
}

func TestExtractContactsPhones(t *testing.T) {
	doc := docFromHTML(t, `<html><body>
		<a href="tel:+12125550100">Call</a>
		<p>Fax: 646.555.0188</p>
	</body></html>`)
	c := ExtractContacts(doc)
	require.Len(t, c.TelPhones, 1)
	assert.Equal(t, "(212) 555-0100", c.TelPhones[0])
	require.Len(t, c.TextPhones, 1)
	assert.Equal(t, "(646) 555-0188", c.TextPhones[0])
	assert.Equal(t, "(212) 555-0100", SelectPhone(c), "tel: source wins")
}

func TestCleanEmailIdempotent(t *testing.T) {
	cases := []string{
		"info@acme.com",
		"Info%40acme.com",
		" info @ acme.com ",
		"mailto:info@acme.com?subject=hi",
		"not-an-email",
	}
	for _, raw := range cases {
		once := CleanEmail(raw)
		assert.Equal(t, once, CleanEmail(once), "clean(clean(%q))", raw)
	}
}

func TestCleanEmail(t *testing.T) {
	assert.Equal(t, "info@acme.com", CleanEmail("Info%40Acme.com"))
	assert.Equal(t, "info@acme.com", CleanEmail("info@acme.com?subject=hello"))
	assert.Equal(t, "info@acme.com", CleanEmail("in fo@acme.com"))
	assert.Equal(t, "", CleanEmail("no at sign here"))
}

func TestCleanEmailPreservesPlusAddressing(t *testing.T) {
	assert.Equal(t, "sales+quote@acme.com", CleanEmail("sales+quote@acme.com"))
	assert.Equal(t, "sales+quote@acme.com", CleanEmail("Sales%2Bquote@Acme.com"))
	assert.Equal(t, "sales+quote@acme.com", CleanEmail("mailto:sales+quote@acme.com?subject=hi"))
}

func TestValidEmailFilters(t *testing.T) {
	valid := []string{"info@acme.com", "dr.smith@clinic.co", "team@sub.acme.io"}
	for _, e := range valid {
		assert.True(t, ValidEmail(e), e)
	}
	invalid := []string{
		"logo@2x.png",                          // asset filename
		"d41d8cd98f00b204e9800998@acme.com",    // hex hash local part
		"info@acme.123",                        // numeric TLD
		"noreply@acme.com",                     // generic
		"admin@domain.com",                     // placeholder
		"a1b2c3d4e5f6a7b8c9d0e1f2a3b4@acme.io", // hex hash local part
	}
	for _, e := range invalid {
		assert.False(t, ValidEmail(e), e)
	}
}

func TestSelectEmailPriority(t *testing.T) {
	candidates := []string{"bob@acme.com", "sales@acme.com", "info@acme.com"}
	assert.Equal(t, "info@acme.com", SelectEmail(candidates))

	assert.Equal(t, "sales@acme.com", SelectEmail([]string{"bob@acme.com", "sales@acme.com"}))
	assert.Equal(t, "bob@acme.com", SelectEmail([]string{"bob@acme.com", "jane@acme.com"}))
	assert.Equal(t, "", SelectEmail(nil))
}

func TestNormalizePhone(t *testing.T) {
	got, ok := NormalizePhone("2125550100")
	require.True(t, ok)
	assert.Equal(t, "(212) 555-0100", got)

	got, ok = NormalizePhone("1-212-555-0100")
	require.True(t, ok)
	assert.Equal(t, "(212) 555-0100", got)

	_, ok = NormalizePhone("0125550100")
	assert.False(t, ok, "area code cannot start with 0")

	_, ok = NormalizePhone("2120550100")
	assert.False(t, ok, "exchange cannot start with 0")

	_, ok = NormalizePhone("555-0100")
	assert.False(t, ok, "too few digits")

	_, ok = NormalizePhone("22125550100")
	assert.False(t, ok, "11 digits without leading 1")
}
