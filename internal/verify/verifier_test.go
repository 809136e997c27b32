package verify

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector/internal/model"
)

// fakeResolver answers MX lookups from a fixture map and counts calls.
type fakeResolver struct {
	mu      sync.Mutex
	records map[string][]*net.MX
	errs    map[string]error
	calls   map[string]int
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		records: map[string][]*net.MX{},
		errs:    map[string]error{},
		calls:   map[string]int{},
	}
}

func (f *fakeResolver) LookupMX(_ context.Context, domain string) ([]*net.MX, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[domain]++
	if err, ok := f.errs[domain]; ok {
		return nil, err
	}
	return f.records[domain], nil
}

func (f *fakeResolver) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func TestCheckSyntax(t *testing.T) {
	valid := []string{"a@gmail.com", "info@sub.example.co", "first.last@example.io"}
	for _, e := range valid {
		assert.True(t, CheckSyntax(e), e)
	}
	invalid := []string{"", "bad", "@example.com", "a@b", "a@b.c", "a b@example.com", "a@ex ample.com"}
	for _, e := range invalid {
		assert.False(t, CheckSyntax(e), e)
	}
}

func TestVerifyEmailPipeline(t *testing.T) {
	resolver := newFakeResolver()
	resolver.records["gmail.com"] = []*net.MX{{Host: "smtp.gmail.com.", Pref: 10}}
	resolver.records["nomail.example"] = nil

	v := New(WithResolver(resolver))
	ctx := context.Background()

	t.Run("MalformedIsInvalid", func(t *testing.T) {
		res := v.VerifyEmail(ctx, "bad")
		assert.Equal(t, model.VerificationInvalid, res.Status)
		assert.False(t, res.Verified)
		assert.Zero(t, resolver.totalCalls())
	})

	t.Run("DisposableIsRisky", func(t *testing.T) {
		res := v.VerifyEmail(ctx, "burner@mailinator.com")
		assert.Equal(t, model.VerificationRisky, res.Status)
		assert.Zero(t, resolver.totalCalls())
	})

	t.Run("MXPresenceIsValid", func(t *testing.T) {
		res := v.VerifyEmail(ctx, "a@gmail.com")
		assert.Equal(t, model.VerificationValid, res.Status)
		assert.True(t, res.Verified)
	})

	t.Run("NoMXIsInvalid", func(t *testing.T) {
		res := v.VerifyEmail(ctx, "a@nomail.example")
		assert.Equal(t, model.VerificationInvalid, res.Status)
		assert.False(t, res.Verified)
	})
}

func TestVerifyEmailCachesPositiveAndNoMX(t *testing.T) {
	resolver := newFakeResolver()
	resolver.records["gmail.com"] = []*net.MX{{Host: "smtp.gmail.com."}}
	resolver.records["nomail.example"] = nil

	v := New(WithResolver(resolver))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		v.VerifyEmail(ctx, "a@gmail.com")
		v.VerifyEmail(ctx, "b@nomail.example")
	}
	assert.Equal(t, 1, resolver.calls["gmail.com"])
	assert.Equal(t, 1, resolver.calls["nomail.example"])
}

func TestVerifyEmailDoesNotCacheFailures(t *testing.T) {
	resolver := newFakeResolver()
	ctx := context.Background()

	t.Run("NXDOMAIN", func(t *testing.T) {
		resolver.errs["gone.example"] = &net.DNSError{Err: "no such host", Name: "gone.example", IsNotFound: true}
		v := New(WithResolver(resolver))

		res := v.VerifyEmail(ctx, "a@gone.example")
		assert.Equal(t, model.VerificationInvalid, res.Status)
		v.VerifyEmail(ctx, "a@gone.example")
		assert.Equal(t, 2, resolver.calls["gone.example"], "nxdomain must be retried, not cached")
	})

	t.Run("TransientError", func(t *testing.T) {
		resolver.errs["flaky.example"] = &net.DNSError{Err: "server misbehaving", Name: "flaky.example", IsTemporary: true}
		v := New(WithResolver(resolver))

		res := v.VerifyEmail(ctx, "a@flaky.example")
		assert.Equal(t, model.VerificationUnknown, res.Status)
		v.VerifyEmail(ctx, "a@flaky.example")
		assert.Equal(t, 2, resolver.calls["flaky.example"], "transient errors must be retried, not cached")
	})
}

func TestVerifyEmailsGroupsByDomain(t *testing.T) {
	resolver := newFakeResolver()
	resolver.records["gmail.com"] = []*net.MX{{Host: "smtp.gmail.com."}}
	resolver.records["example.com"] = []*net.MX{{Host: "mx.example.com."}}
	resolver.records["example.org"] = []*net.MX{{Host: "mx.example.org."}}

	v := New(WithResolver(resolver))

	items := []Item{
		{ID: "1", Email: "a@gmail.com"},
		{ID: "2", Email: "b@gmail.com"},
		{ID: "3", Email: "c@example.com"},
		{ID: "4", Email: "d@example.com"},
		{ID: "5", Email: "e@example.org"},
	}
	results := v.VerifyEmails(context.Background(), items, BatchOptions{Concurrency: 2})

	require.Len(t, results, 5)
	for id, res := range results {
		assert.Equal(t, model.VerificationValid, res.Status, "item %s", id)
	}
	// Five emails across three unique domains cost three lookups.
	assert.Equal(t, 3, resolver.totalCalls())
	assert.Equal(t, "a@gmail.com", results["1"].Email)
	assert.Equal(t, "b@gmail.com", results["2"].Email)
}

func TestVerifyEmailsShortCircuitsBadSyntax(t *testing.T) {
	resolver := newFakeResolver()
	resolver.records["gmail.com"] = []*net.MX{{Host: "smtp.gmail.com."}}

	v := New(WithResolver(resolver))

	items := []Item{
		{ID: "1", Email: "a@gmail.com"},
		{ID: "2", Email: "b@gmail.com"},
		{ID: "3", Email: "bad"},
	}
	results := v.VerifyEmails(context.Background(), items, BatchOptions{})

	require.Len(t, results, 3)
	assert.Equal(t, model.VerificationInvalid, results["3"].Status)
	assert.Equal(t, model.VerificationValid, results["1"].Status)
	assert.Equal(t, model.VerificationValid, results["2"].Status)
	assert.Equal(t, 1, resolver.calls["gmail.com"], "items sharing a domain share one lookup")
}

func TestVerifyEmailsProgress(t *testing.T) {
	resolver := newFakeResolver()
	resolver.records["gmail.com"] = []*net.MX{{Host: "smtp.gmail.com."}}
	resolver.records["example.com"] = []*net.MX{{Host: "mx.example.com."}}

	v := New(WithResolver(resolver))

	var lastDomains, lastItems int
	items := []Item{
		{ID: "1", Email: "a@gmail.com"},
		{ID: "2", Email: "b@gmail.com"},
		{ID: "3", Email: "c@example.com"},
	}
	v.VerifyEmails(context.Background(), items, BatchOptions{
		OnProgress: func(domainsDone, itemsDone int) {
			lastDomains, lastItems = domainsDone, itemsDone
		},
	})
	assert.Equal(t, 2, lastDomains)
	assert.Equal(t, 3, lastItems)
}

func TestMemoryCacheTTL(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	rec := MXRecord{Hosts: []string{"mx.example.com"}, HasMX: true, CachedAt: time.Now()}
	require.NoError(t, c.Set(ctx, "example.com", rec, 50*time.Millisecond))

	got, ok, err := c.Get(ctx, "example.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec.Hosts, got.Hosts)

	time.Sleep(80 * time.Millisecond)
	_, ok, err = c.Get(ctx, "example.com")
	require.NoError(t, err)
	assert.False(t, ok, "entry must expire after its ttl")
}

func TestDisposableListParses(t *testing.T) {
	set := loadDisposableDomains()
	assert.NotEmpty(t, set)
	_, ok := set["mailinator.com"]
	assert.True(t, ok)
}
