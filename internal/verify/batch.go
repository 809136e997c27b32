package verify

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/sells-group/prospector/internal/model"
)

// Item is one email to verify, keyed by a caller-assigned identifier.
type Item struct {
	ID    string
	Email string
}

// BatchOptions tunes a VerifyEmails call.
type BatchOptions struct {
	// Concurrency bounds simultaneous MX lookups. Zero means 5.
	Concurrency int
	// OnProgress, if set, is called after each unique domain resolves with
	// the number of domains and items completed so far.
	OnProgress func(domainsDone, itemsDone int)
}

// VerifyEmails verifies a list of addresses, returning a result per item ID.
//
// The input is pre-grouped by email domain and the network-bound portion of
// the pipeline runs exactly once per unique domain; every item sharing a
// domain receives the same resolution. Items that fail the syntax check are
// answered immediately with zero network cost.
func (v *Verifier) VerifyEmails(ctx context.Context, items []Item, opts BatchOptions) map[string]model.VerificationResult {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 5
	}

	results := make(map[string]model.VerificationResult, len(items))
	byDomain := make(map[string][]Item)
	itemsDone := 0

	for _, it := range items {
		if !CheckSyntax(it.Email) {
			results[it.ID] = model.VerificationResult{
				Email:   it.Email,
				Status:  model.VerificationInvalid,
				Details: "malformed address",
			}
			itemsDone++
			continue
		}
		domain := Domain(it.Email)
		byDomain[domain] = append(byDomain[domain], it)
	}

	domains := make([]string, 0, len(byDomain))
	for d := range byDomain {
		domains = append(domains, d)
	}

	type domainOutcome struct {
		domain string
		result model.VerificationResult
	}
	outcomes := make(chan domainOutcome, len(domains))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for _, domain := range domains {
		g.Go(func() error {
			// One representative address per domain; the domain-level checks
			// (disposable set, MX presence) are all that differ by item.
			sample := byDomain[domain][0]
			outcomes <- domainOutcome{domain: domain, result: v.VerifyEmail(gctx, sample.Email)}
			return nil
		})
	}
	_ = g.Wait()
	close(outcomes)

	domainsDone := 0
	for out := range outcomes {
		domainsDone++
		for _, it := range byDomain[out.domain] {
			res := out.result
			res.Email = it.Email
			results[it.ID] = res
			itemsDone++
		}
		if opts.OnProgress != nil {
			opts.OnProgress(domainsDone, itemsDone)
		}
	}
	return results
}
