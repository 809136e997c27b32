package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// TransientError wraps an error that is safe to retry (429, 5xx, network timeout).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// QuotaError signals that an external adapter's budget or rate quota is
// exhausted. Quota errors are not retried; the discovery stage halts early
// instead so a capped budget is respected.
type QuotaError struct {
	Err error
}

func (e *QuotaError) Error() string { return e.Err.Error() }
func (e *QuotaError) Unwrap() error { return e.Err }

// NewQuotaError wraps an error as a quota exhaustion signal.
func NewQuotaError(err error) *QuotaError {
	return &QuotaError{Err: err}
}

// IsQuota returns true if the error chain contains a QuotaError.
func IsQuota(err error) bool {
	var qe *QuotaError
	return errors.As(err, &qe)
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, or matches common transient patterns (network timeouts,
// connection resets, DNS failures). Quota errors are never transient.
func IsTransient(err error) bool {
	if err == nil || IsQuota(err) {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String-based heuristics for wrapped errors from HTTP clients.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// ClassifyHTTPStatus maps an HTTP status into retry semantics: 429 becomes a
// quota signal, 408/5xx transient, other 4xx permanent (never retried).
func ClassifyHTTPStatus(statusCode int, err error) error {
	switch {
	case statusCode == 429:
		return NewQuotaError(err)
	case statusCode == 408, statusCode >= 500:
		return NewTransientError(err, statusCode)
	default:
		return err
	}
}
