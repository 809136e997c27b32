// Package verify implements email verification: syntax validation, a
// disposable-provider check, and a cached DNS MX lookup per domain.
package verify

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/model"
)

// Resolver abstracts MX resolution so tests can inject deterministic results.
type Resolver interface {
	LookupMX(ctx context.Context, domain string) ([]*net.MX, error)
}

type netResolver struct {
	r *net.Resolver
}

func (n netResolver) LookupMX(ctx context.Context, domain string) ([]*net.MX, error) {
	return n.r.LookupMX(ctx, domain)
}

// emailPattern is intentionally loose on the local part; structural checks
// (non-empty local part, TLD length) are applied separately so failures get
// classified the same way regardless of which check trips.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Verifier checks email deliverability signals up to MX presence. It holds a
// process-lifetime MX cache keyed by domain, safe to share across jobs.
type Verifier struct {
	resolver   Resolver
	cache      Cache
	disposable map[string]struct{}
	ttl        time.Duration
	timeout    time.Duration
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithResolver overrides the DNS resolver.
func WithResolver(r Resolver) Option {
	return func(v *Verifier) { v.resolver = r }
}

// WithCache overrides the MX cache backend.
func WithCache(c Cache) Option {
	return func(v *Verifier) { v.cache = c }
}

// WithCacheTTL sets how long MX results are cached.
func WithCacheTTL(ttl time.Duration) Option {
	return func(v *Verifier) { v.ttl = ttl }
}

// WithLookupTimeout bounds each individual MX lookup.
func WithLookupTimeout(d time.Duration) Option {
	return func(v *Verifier) { v.timeout = d }
}

// New constructs a Verifier with an in-memory MX cache and the system
// resolver unless overridden.
func New(opts ...Option) *Verifier {
	v := &Verifier{
		resolver:   netResolver{r: net.DefaultResolver},
		cache:      NewMemoryCache(),
		disposable: loadDisposableDomains(),
		ttl:        24 * time.Hour,
		timeout:    10 * time.Second,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// CheckSyntax reports whether the email has a plausible shape: a non-empty
// local part and a domain whose TLD is at least two characters.
func CheckSyntax(email string) bool {
	email = strings.TrimSpace(email)
	if !emailPattern.MatchString(email) {
		return false
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return false
	}
	dot := strings.LastIndex(domain, ".")
	if dot < 0 || len(domain)-dot-1 < 2 {
		return false
	}
	return true
}

// Domain extracts the lowercased domain portion of an email address, or ""
// if the address has no "@".
func Domain(email string) string {
	_, domain, ok := strings.Cut(strings.TrimSpace(email), "@")
	if !ok {
		return ""
	}
	return strings.ToLower(domain)
}

// VerifyEmail runs the full pipeline for a single address: syntax, then
// disposable-provider membership, then a cached MX lookup.
func (v *Verifier) VerifyEmail(ctx context.Context, email string) model.VerificationResult {
	email = strings.TrimSpace(email)
	res := model.VerificationResult{Email: email}

	if !CheckSyntax(email) {
		res.Status = model.VerificationInvalid
		res.Details = "malformed address"
		return res
	}

	domain := Domain(email)
	if _, ok := v.disposable[domain]; ok {
		res.Status = model.VerificationRisky
		res.Details = "disposable email provider"
		return res
	}

	rec, err := v.lookupMX(ctx, domain)
	switch {
	case err != nil:
		res.Status = model.VerificationUnknown
		res.Details = "dns lookup failed: " + err.Error()
	case !rec.HasMX:
		res.Status = model.VerificationInvalid
		res.Details = "domain has no mail records"
	default:
		res.Verified = true
		res.Status = model.VerificationValid
		res.Details = "mx records found"
	}
	return res
}

// lookupMX resolves MX records for a domain through the cache. Positive
// results and "no MX records" are cached; domain-not-found and transient DNS
// errors are not, so real outages get retried on a later call.
func (v *Verifier) lookupMX(ctx context.Context, domain string) (*MXRecord, error) {
	if rec, ok, err := v.cache.Get(ctx, domain); err != nil {
		zap.L().Warn("mx cache read failed", zap.String("domain", domain), zap.Error(err))
	} else if ok {
		return rec, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	mxs, err := v.resolver.LookupMX(lookupCtx, domain)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			// NXDOMAIN means the domain itself does not resolve. Treated as
			// no-MX but deliberately left uncached: domains occasionally
			// reappear after registrar hiccups.
			return &MXRecord{HasMX: false, CachedAt: time.Now()}, nil
		}
		return nil, eris.Wrapf(err, "verify: mx lookup for %s", domain)
	}

	rec := &MXRecord{CachedAt: time.Now()}
	for _, mx := range mxs {
		host := strings.TrimSuffix(mx.Host, ".")
		if host == "" {
			continue
		}
		rec.Hosts = append(rec.Hosts, host)
	}
	rec.HasMX = len(rec.Hosts) > 0

	if err := v.cache.Set(ctx, domain, *rec, v.ttl); err != nil {
		zap.L().Warn("mx cache write failed", zap.String("domain", domain), zap.Error(err))
	}
	return rec, nil
}
