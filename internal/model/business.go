package model

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ScrapeErrorCode classifies why a domain scrape produced no contact info.
// Persisted verbatim per business so a failed scrape is inspectable later.
type ScrapeErrorCode string

const (
	ScrapeErrDirectorySkipped ScrapeErrorCode = "DIRECTORY_SITE_SKIPPED"
	ScrapeErrDomainFailed     ScrapeErrorCode = "DOMAIN_PREVIOUSLY_FAILED"
	ScrapeErrDomainNotFound   ScrapeErrorCode = "DOMAIN_NOT_FOUND"
	ScrapeErrTimeout          ScrapeErrorCode = "TIMEOUT"
	ScrapeErrAccessDenied     ScrapeErrorCode = "ACCESS_DENIED"
	ScrapeErrPageNotFound     ScrapeErrorCode = "PAGE_NOT_FOUND"
	ScrapeErrServerError      ScrapeErrorCode = "SERVER_ERROR"
	ScrapeErrNoContactInfo    ScrapeErrorCode = "NO_CONTACT_INFO_FOUND"
	ScrapeErrUnknown          ScrapeErrorCode = "UNKNOWN_ERROR"
)

// Enrichment holds SERP-derived contact candidates with adapter confidences
// (0-100). Nil pointers mean "not yet attempted or nothing found".
type Enrichment struct {
	Domain           string     `json:"domain,omitempty"`
	DomainConfidence int        `json:"domain_confidence,omitempty"`
	Email            string     `json:"email,omitempty"`
	EmailConfidence  int        `json:"email_confidence,omitempty"`
	Phone            string     `json:"phone,omitempty"`
	PhoneConfidence  int        `json:"phone_confidence,omitempty"`
	EnrichedAt       *time.Time `json:"enriched_at,omitempty"`
}

// Empty reports whether enrichment has not yet been recorded. The enrichment
// stage derives its work set from this, which is what makes re-running the
// stage idempotent.
func (e Enrichment) Empty() bool {
	return e.EnrichedAt == nil
}

// ScrapeRecord holds the result of scraping the business's own website.
// Once a non-empty email is recorded it is never overwritten (first-success
// wins).
type ScrapeRecord struct {
	Email     string          `json:"email,omitempty"`
	Phone     string          `json:"phone,omitempty"`
	ErrorCode ScrapeErrorCode `json:"error_code,omitempty"`
	ScrapedAt *time.Time      `json:"scraped_at,omitempty"`
}

// Empty reports whether a scrape has not yet been attempted.
func (s ScrapeRecord) Empty() bool {
	return s.ScrapedAt == nil
}

// Business is a discovered place. PlaceID is the global dedup key: at most one
// row exists per external place identifier across all jobs.
type Business struct {
	ID         string       `json:"id"`
	PlaceID    string       `json:"place_id"`
	Name       string       `json:"name"`
	Address    string       `json:"address,omitempty"`
	City       string       `json:"city,omitempty"`
	State      string       `json:"state,omitempty"`
	Zip        string       `json:"zip,omitempty"`
	Latitude   float64      `json:"latitude,omitempty"`
	Longitude  float64      `json:"longitude,omitempty"`
	Website    string       `json:"website,omitempty"`
	Phone      string       `json:"phone,omitempty"`
	Enrichment Enrichment   `json:"enrichment"`
	Scrape     ScrapeRecord `json:"scrape"`
	CreatedAt  time.Time    `json:"created_at"`
}

// JobBusiness records which job surfaced which business, and whether the
// business row was created by that job or reused from a prior one.
type JobBusiness struct {
	JobID      string `json:"job_id"`
	BusinessID string `json:"business_id"`
	WasReused  bool   `json:"was_reused"`
}

// UserBusiness grants a user visibility into a business discovered by any of
// their jobs. Kept separate from JobBusiness so access survives business-row
// reuse across jobs.
type UserBusiness struct {
	UserID     string `json:"user_id"`
	BusinessID string `json:"business_id"`
}

var nameCaser = cases.Fold()

// NormalizeName produces a canonical form of a business name for comparison:
// NFKC-normalized, case-folded, whitespace-collapsed.
func NormalizeName(name string) string {
	n := norm.NFKC.String(name)
	n = nameCaser.String(n)
	return strings.Join(strings.Fields(n), " ")
}
