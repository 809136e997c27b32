package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/prospector/internal/model"
)

func TestEstimate(t *testing.T) {
	calc := NewCalculator(Rates{
		PlacesPerCall: 0.032,
		SerpPerQuery:  0.015,
		LLMPerCall:    0.004,
		ScrapePerSite: 0.001,
	})

	counters := model.JobCounters{
		PlacesCalls:       100,
		SerpCalls:         250,
		LLMCalls:          250,
		BusinessesScraped: 200,
	}
	want := 100*0.032 + 250*0.015 + 250*0.004 + 200*0.001
	assert.InDelta(t, want, calc.Estimate(counters), 1e-9)
}

func TestEstimateZeroCounters(t *testing.T) {
	calc := NewCalculator(DefaultRates())
	assert.Zero(t, calc.Estimate(model.JobCounters{}))
}

func TestProject(t *testing.T) {
	calc := NewCalculator(Rates{PlacesPerCall: 0.03, SerpPerQuery: 0.01, LLMPerCall: 0.005})
	// 10 tiles, 20 businesses per tile.
	want := 10*0.03 + 200*(0.01+0.005)
	assert.InDelta(t, want, calc.Project(10, 20), 1e-9)
}
