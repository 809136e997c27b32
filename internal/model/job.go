package model

import "time"

// JobStatus is the lifecycle state of a discovery job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusPaused    JobStatus = "paused"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is a terminal state.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// Step is the pipeline stage checkpoint. A job's step only ever advances;
// on resume, stages at or before the recorded step are skipped.
type Step int

const (
	StepPending Step = iota
	StepZips
	StepPlaces
	StepEnrichment
	StepScraping
	StepCompleted
)

var stepNames = map[Step]string{
	StepPending:    "pending",
	StepZips:       "zips",
	StepPlaces:     "places",
	StepEnrichment: "enrichment",
	StepScraping:   "scraping",
	StepCompleted:  "completed",
}

// String returns the persisted step name.
func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseStep converts a persisted step name back into a Step.
// Unknown values map to StepPending so a resumed job reruns from the start
// rather than silently skipping work.
func ParseStep(name string) Step {
	for s, n := range stepNames {
		if n == name {
			return s
		}
	}
	return StepPending
}

// Done reports whether the checkpoint at s covers the given stage, i.e. the
// stage already completed in a prior run and must be skipped on resume.
func (s Step) Done(stage Step) bool {
	return s >= stage
}

// Next returns the step that follows s in the pipeline order.
func (s Step) Next() Step {
	if s >= StepCompleted {
		return StepCompleted
	}
	return s + 1
}

// Geography sentinel for jobs that search every state.
const GeographyNationwide = "nationwide"

// JobCounters are the monotonic progress counters persisted with a job.
// They only ever increase within a run; cost estimation is derived from the
// accumulated API call counts.
type JobCounters struct {
	ZipsTotal          int `json:"zips_total"`
	ZipsProcessed      int `json:"zips_processed"`
	BusinessesFound    int `json:"businesses_found"`
	BusinessesEnriched int `json:"businesses_enriched"`
	BusinessesScraped  int `json:"businesses_scraped"`
	PlacesCalls        int `json:"places_calls"`
	SerpCalls          int `json:"serp_calls"`
	LLMCalls           int `json:"llm_calls"`
}

// Add accumulates other into c.
func (c *JobCounters) Add(other JobCounters) {
	c.ZipsTotal += other.ZipsTotal
	c.ZipsProcessed += other.ZipsProcessed
	c.BusinessesFound += other.BusinessesFound
	c.BusinessesEnriched += other.BusinessesEnriched
	c.BusinessesScraped += other.BusinessesScraped
	c.PlacesCalls += other.PlacesCalls
	c.SerpCalls += other.SerpCalls
	c.LLMCalls += other.LLMCalls
}

// Job is one unit of discovery work: a business type searched across a set of
// geographies, enriched and scraped for contact data.
type Job struct {
	ID                  string      `json:"id"`
	UserID              string      `json:"user_id"`
	BusinessType        string      `json:"business_type"`
	Geography           []string    `json:"geography"`
	ZipPercentage       int         `json:"zip_percentage"`
	MinDomainConfidence int         `json:"min_domain_confidence"`
	Status              JobStatus   `json:"status"`
	CurrentStep         Step        `json:"current_step"`
	Counters            JobCounters `json:"counters"`
	EstimatedCost       float64     `json:"estimated_cost"`
	ErrorLog            string      `json:"error_log,omitempty"`
	LastProgressAt      time.Time   `json:"last_progress_at"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// Nationwide reports whether the job searches every state.
func (j *Job) Nationwide() bool {
	return len(j.Geography) == 1 && j.Geography[0] == GeographyNationwide
}
