package scrape

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Contacts is the raw harvest from one page: every email candidate that
// survived validation, and phone candidates split by source trust.
type Contacts struct {
	Emails     []string
	TelPhones  []string // from tel: links, authoritative
	TextPhones []string // from visible text, lower trust
}

// priorityPrefixes is the ordered preference list for email selection. A
// match on an earlier prefix beats any later candidate.
var priorityPrefixes = []string{
	"info@", "contact@", "hello@", "admin@", "support@", "sales@", "office@", "frontdesk@",
}

// emailCandidateRe finds email-shaped substrings with explicit boundaries so
// a match glued to surrounding letters or digits ("x1a@b.com2") is excluded.
var emailCandidateRe = regexp.MustCompile(`(?:^|[^A-Za-z0-9._%+\-])([A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,})(?:[^A-Za-z0-9\-]|$)`)

// emailShapeRe validates a full cleaned candidate.
var emailShapeRe = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)

// emailSubstringRe pulls the longest email-shaped substring out of a noisy
// candidate ("mailto:info@x.com?subject=hi" -> "info@x.com").
var emailSubstringRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

var assetExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico", ".css", ".js", ".woff", ".woff2", ".ttf", ".mp4", ".pdf",
}

var hexLocalRe = regexp.MustCompile(`^[0-9a-fA-F]{16,}$`)

// genericEmailPatterns are placeholder or non-contact addresses that never
// identify the business.
var genericEmailPatterns = []string{
	"noreply@", "no-reply@", "no_reply@", "donotreply@", "do-not-reply@",
	"example@", "email@", "name@", "your@", "user@", "test@", "demo@",
	"@example.", "@domain.", "@email.", "@test.",
	"admin@domain.com", "info@domain.com",
	"@sentry.", "@wixpress.com", "@sentry-next.wixpress.com",
	"abuse@", "hostmaster@", "postmaster@", "webmaster@godaddy",
}

// ExtractContacts parses rendered or static HTML and harvests contact
// candidates from mailto: links, tel: links, element attributes, and visible
// text. Script and style content is excluded from the text pass.
func ExtractContacts(doc *goquery.Document) Contacts {
	var c Contacts
	seen := map[string]struct{}{}

	addEmail := func(raw string) {
		email := CleanEmail(raw)
		if email == "" || !ValidEmail(email) {
			return
		}
		if _, ok := seen[email]; ok {
			return
		}
		seen[email] = struct{}{}
		c.Emails = append(c.Emails, email)
	}

	// mailto: links first, they are the highest-signal source.
	doc.Find(`a[href^="mailto:"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		addEmail(strings.TrimPrefix(href, "mailto:"))
	})

	doc.Find(`a[href^="tel:"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if phone, ok := NormalizePhone(strings.TrimPrefix(href, "tel:")); ok {
			c.TelPhones = append(c.TelPhones, phone)
		}
	})

	// Any attribute can hide an address (data-email, content, alt, ...).
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range s.Nodes[0].Attr {
			if strings.Contains(attr.Val, "@") {
				for _, m := range emailCandidateRe.FindAllStringSubmatch(attr.Val, -1) {
					addEmail(m[1])
				}
			}
		}
	})

	// Visible text with script/style stripped.
	clone := doc.Clone()
	clone.Find("script, style, noscript").Remove()
	text := clone.Text()

	for _, m := range emailCandidateRe.FindAllStringSubmatch(text, -1) {
		addEmail(m[1])
	}
	for _, m := range phoneTextRe.FindAllString(text, -1) {
		if phone, ok := NormalizePhone(m); ok {
			c.TextPhones = append(c.TextPhones, phone)
		}
	}
	return c
}

// CleanEmail normalizes a raw candidate: URL-decoding, whitespace removal,
// and trimming to the longest valid address substring. The operation is
// idempotent, cleaning an already-clean address returns it unchanged.
func CleanEmail(raw string) string {
	s := strings.TrimSpace(raw)
	// PathUnescape, not QueryUnescape: a literal + is part of the local part
	// (plus addressing), not an encoded space.
	if decoded, err := url.PathUnescape(s); err == nil {
		s = decoded
	}
	s = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, s)
	// Drop mailto query parameters and fragments before the substring pass.
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	longest := ""
	for _, m := range emailSubstringRe.FindAllString(s, -1) {
		if len(m) > len(longest) {
			longest = m
		}
	}
	return strings.ToLower(longest)
}

// ValidEmail applies the candidate filters: real email shape, not an asset
// filename, not a hash-looking local part, an alphabetic TLD of length >= 2,
// and not a known placeholder pattern.
func ValidEmail(email string) bool {
	email = strings.ToLower(email)
	if !emailShapeRe.MatchString(email) {
		return false
	}
	for _, ext := range assetExtensions {
		if strings.HasSuffix(email, ext) {
			return false
		}
	}
	local, domain, _ := strings.Cut(email, "@")
	if hexLocalRe.MatchString(local) {
		return false
	}
	tld := domain[strings.LastIndex(domain, ".")+1:]
	if len(tld) < 2 {
		return false
	}
	for _, r := range tld {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	for _, pat := range genericEmailPatterns {
		if strings.Contains(email, pat) {
			return false
		}
	}
	return true
}

// SelectEmail picks the best candidate: the first match against the ordered
// priority prefix list, otherwise the first valid candidate. Lowercased.
func SelectEmail(candidates []string) string {
	for _, prefix := range priorityPrefixes {
		for _, c := range candidates {
			if strings.HasPrefix(strings.ToLower(c), prefix) {
				return strings.ToLower(c)
			}
		}
	}
	if len(candidates) > 0 {
		return strings.ToLower(candidates[0])
	}
	return ""
}

// SelectPhone prefers tel:-sourced candidates over text-sourced ones.
func SelectPhone(c Contacts) string {
	if len(c.TelPhones) > 0 {
		return c.TelPhones[0]
	}
	if len(c.TextPhones) > 0 {
		return c.TextPhones[0]
	}
	return ""
}

// phoneTextRe matches loosely phone-shaped runs in visible text. Validation
// happens in NormalizePhone.
var phoneTextRe = regexp.MustCompile(`\+?1?[\s.\-(]*\d{3}[\s.\-)]*\d{3}[\s.\-]*\d{4}`)

var digitsOnlyRe = regexp.MustCompile(`\D`)

// NormalizePhone validates a North-American number and formats it as
// (XXX) XXX-XXXX. Accepts exactly 10 digits, or 11 with a leading 1. The
// area code and exchange must not start with 0 or 1.
func NormalizePhone(raw string) (string, bool) {
	digits := digitsOnlyRe.ReplaceAllString(raw, "")
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return "", false
	}
	if digits[0] < '2' || digits[3] < '2' {
		return "", false
	}
	return "(" + digits[0:3] + ") " + digits[3:6] + "-" + digits[6:10], true
}
