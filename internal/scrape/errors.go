package scrape

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/sells-group/prospector/internal/model"
)

// fetchFailure describes why a page fetch produced no document.
type fetchFailure struct {
	code model.ScrapeErrorCode
	// persistent failures on the home page reproduce on every path, so the
	// domain is abandoned for the rest of the batch.
	persistent bool
}

// classifyFetchError maps a transport-level error to a failure class.
func classifyFetchError(err error) fetchFailure {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fetchFailure{code: model.ScrapeErrDomainNotFound, persistent: true}
	}

	// Timeouts skip the browser fallback but do not condemn the domain for
	// the batch: the next path, or a later attempt, may answer in time.
	if errors.Is(err, context.DeadlineExceeded) {
		return fetchFailure{code: model.ScrapeErrTimeout}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fetchFailure{code: model.ScrapeErrTimeout}
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return fetchFailure{code: model.ScrapeErrDomainNotFound, persistent: true}
	}

	var tlsErr *tls.CertificateVerificationError
	if errors.As(err, &tlsErr) || strings.Contains(err.Error(), "tls:") ||
		strings.Contains(err.Error(), "x509:") {
		return fetchFailure{code: model.ScrapeErrAccessDenied, persistent: true}
	}

	return fetchFailure{code: model.ScrapeErrUnknown, persistent: false}
}

// classifyStatus maps an HTTP status to a failure class. Statuses below 400
// never reach here.
func classifyStatus(status int) fetchFailure {
	switch {
	case status == 401 || status == 403:
		return fetchFailure{code: model.ScrapeErrAccessDenied, persistent: true}
	case status == 404 || status == 410:
		return fetchFailure{code: model.ScrapeErrPageNotFound, persistent: true}
	case status >= 500:
		return fetchFailure{code: model.ScrapeErrServerError, persistent: true}
	default:
		return fetchFailure{code: model.ScrapeErrUnknown, persistent: false}
	}
}

// browserWorthTrying reports whether the headless fallback could plausibly do
// better than the static engine for this failure. Timeouts and access denials
// reproduce in a browser, so they are excluded.
func browserWorthTrying(code model.ScrapeErrorCode) bool {
	switch code {
	case model.ScrapeErrTimeout, model.ScrapeErrAccessDenied,
		model.ScrapeErrDomainNotFound, model.ScrapeErrPageNotFound,
		model.ScrapeErrServerError:
		return false
	default:
		return true
	}
}
