package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/batch"
	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/resilience"
	"github.com/sells-group/prospector/pkg/anthropic"
	"github.com/sells-group/prospector/pkg/serp"
)

// extractionSystemPrompt instructs the model to pick the business's own
// website out of search results. The same prompt is sent for every business
// in a job, so it carries a cache breakpoint and is warmed once before the
// stage fans out.
const extractionSystemPrompt = `You identify the official website and contact details of a specific business from web search results.

You are given a business name and location, followed by organic search results (title, link, snippet). Determine which result, if any, is the business's own website. Directory listings (Yelp, Yellow Pages, BBB), social profiles, and aggregators are never the business's own site.

Respond with only a JSON object, no prose:
{"domain": "", "domainConfidence": 0, "email": "", "emailConfidence": 0, "phone": "", "phoneConfidence": 0}

domain is the bare hostname without scheme or path ("example.com"). Confidences are 0-100. Use empty strings and 0 when a field cannot be determined from the results. email and phone may come from snippets when clearly attributable to the business.`

// enrichmentCandidate is the JSON shape the extraction prompt asks for.
type enrichmentCandidate struct {
	Domain           string `json:"domain"`
	DomainConfidence int    `json:"domainConfidence"`
	Email            string `json:"email"`
	EmailConfidence  int    `json:"emailConfidence"`
	Phone            string `json:"phone"`
	PhoneConfidence  int    `json:"phoneConfidence"`
}

// runEnrichment fills the enrichment sub-record of every business of this
// job that does not have one yet. Re-querying unenriched rows is the resume
// mechanism: a re-run only sees the remainder. Results are written back
// business-by-business so partial progress survives a crash.
func (o *Orchestrator) runEnrichment(ctx context.Context, job *model.Job) error {
	log := zap.L().With(zap.String("job_id", job.ID))

	pending, err := o.store.ListUnenriched(ctx, job.ID)
	if err != nil {
		return eris.Wrap(err, "pipeline: list unenriched")
	}
	if len(pending) == 0 {
		return nil
	}

	// Businesses the places adapter already handed a website need no search;
	// only the rest go through SERP and the model.
	needsSearch := 0
	for _, b := range pending {
		if b.Website == "" {
			needsSearch++
		}
	}
	if needsSearch > 0 {
		if err := o.warmExtractionCache(ctx, job.ID); err != nil {
			log.Warn("prompt cache primer failed", zap.Error(err))
		}
	}

	results := batch.Run(ctx, pending, o.cfg.Pipeline.EnrichmentConcurrency,
		func(ctx context.Context, b model.Business) (struct{}, error) {
			return struct{}{}, o.enrichOne(ctx, job, b)
		})

	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
			log.Warn("enrichment failed",
				zap.String("business_id", r.Item.ID),
				zap.String("name", r.Item.Name),
				zap.Error(r.Err),
			)
		}
	}
	if failed == len(pending) {
		return eris.New("pipeline: every enrichment failed")
	}
	return nil
}

// enrichOne resolves the contact candidates for a single business and
// persists them. Known-website businesses short-circuit with full domain
// confidence and zero adapter calls.
func (o *Orchestrator) enrichOne(ctx context.Context, job *model.Job, b model.Business) error {
	now := time.Now().UTC()

	if b.Website != "" {
		e := model.Enrichment{
			Domain:           domainFromURL(b.Website),
			DomainConfidence: 100,
			Phone:            b.Phone,
			EnrichedAt:       &now,
		}
		if e.Phone != "" {
			e.PhoneConfidence = 100
		}
		if err := o.store.SaveEnrichment(ctx, b.ID, e); err != nil {
			return eris.Wrap(err, "pipeline: save enrichment")
		}
		return o.store.AddJobCounters(ctx, job.ID, model.JobCounters{BusinessesEnriched: 1})
	}

	// Normalized name: listings carry decorative unicode and erratic casing
	// that only hurt search recall.
	query := fmt.Sprintf("%s %s %s", model.NormalizeName(b.Name), b.Zip, b.State)
	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger("serp", "search")
	serpResp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*serp.SearchResponse, error) {
		return o.serp.Search(ctx, query, 10)
	})
	if err != nil {
		return eris.Wrapf(err, "pipeline: serp search %q", query)
	}

	cand, err := o.extractCandidates(ctx, serpResultsPrompt(b, serpResp.OrganicResults))
	if err != nil {
		// The SERP call is already spent; count it even when extraction fails.
		_ = o.store.AddJobCounters(ctx, job.ID, model.JobCounters{SerpCalls: 1, LLMCalls: 1})
		return eris.Wrap(err, "pipeline: extract candidates")
	}

	e := model.Enrichment{
		Domain:           strings.ToLower(strings.TrimSpace(cand.Domain)),
		DomainConfidence: clampConfidence(cand.DomainConfidence),
		Email:            strings.ToLower(strings.TrimSpace(cand.Email)),
		EmailConfidence:  clampConfidence(cand.EmailConfidence),
		Phone:            strings.TrimSpace(cand.Phone),
		PhoneConfidence:  clampConfidence(cand.PhoneConfidence),
		EnrichedAt:       &now,
	}
	if err := o.store.SaveEnrichment(ctx, b.ID, e); err != nil {
		return eris.Wrap(err, "pipeline: save enrichment")
	}

	delta := model.JobCounters{BusinessesEnriched: 1, SerpCalls: 1, LLMCalls: 1}
	return o.store.AddJobCounters(ctx, job.ID, delta)
}

// warmExtractionCache sends one primer message so the cached system prompt
// is hot before the fan-out. Failure is non-fatal; the first worker simply
// pays the cache write instead.
func (o *Orchestrator) warmExtractionCache(ctx context.Context, jobID string) error {
	req := anthropic.MessageRequest{
		Model:     o.cfg.Anthropic.Model,
		MaxTokens: 16,
		System:    anthropic.BuildCachedSystemBlocks(extractionSystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: "ok"},
		},
	}
	resp, err := anthropic.PrimerRequest(ctx, o.anthropic, req)
	if err != nil {
		return err
	}
	resp.Usage.LogCost(o.cfg.Anthropic.Model, "enrichment_primer")
	return o.store.AddJobCounters(ctx, jobID, model.JobCounters{LLMCalls: 1})
}

// extractCandidates runs the extraction prompt and parses the JSON reply.
func (o *Orchestrator) extractCandidates(ctx context.Context, prompt string) (*enrichmentCandidate, error) {
	req := anthropic.MessageRequest{
		Model:     o.cfg.Anthropic.Model,
		MaxTokens: 512,
		System:    anthropic.BuildCachedSystemBlocks(extractionSystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	}

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger("anthropic", "create_message")
	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return o.anthropic.CreateMessage(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	var cand enrichmentCandidate
	if err := json.Unmarshal([]byte(stripCodeFence(resp.Text())), &cand); err != nil {
		return nil, eris.Wrap(err, "pipeline: parse extraction reply")
	}
	return &cand, nil
}

// serpResultsPrompt renders the business identity and its search results for
// the extraction prompt.
func serpResultsPrompt(b model.Business, results []serp.OrganicResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Business: %s\nLocation: %s, %s %s\n\nSearch results:\n", b.Name, b.Address, b.State, b.Zip)
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s\n   %s\n   %s\n", i+1, r.Title, r.Link, r.Snippet)
	}
	if len(results) == 0 {
		sb.WriteString("(none)\n")
	}
	return sb.String()
}

// stripCodeFence removes a markdown code fence the model sometimes wraps
// JSON replies in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// domainFromURL reduces a website URL to its bare hostname.
func domainFromURL(raw string) string {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
}

func clampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
