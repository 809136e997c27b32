// Package cost attributes API spend to jobs from their accumulated call
// counters.
package cost

import (
	"github.com/sells-group/prospector/internal/config"
	"github.com/sells-group/prospector/internal/model"
)

// Rates holds per-provider pricing.
type Rates struct {
	PlacesPerCall float64 `yaml:"places_per_call" mapstructure:"places_per_call"`
	SerpPerQuery  float64 `yaml:"serp_per_query" mapstructure:"serp_per_query"`
	LLMPerCall    float64 `yaml:"llm_per_call" mapstructure:"llm_per_call"`
	ScrapePerSite float64 `yaml:"scrape_per_site" mapstructure:"scrape_per_site"`
}

// DefaultRates reflects current list pricing: Places Text Search (Pro SKU),
// SerpAPI per-search, and a blended per-call figure for the short
// extraction prompts enrichment sends.
func DefaultRates() Rates {
	return Rates{
		PlacesPerCall: 0.032,
		SerpPerQuery:  0.015,
		LLMPerCall:    0.004,
		ScrapePerSite: 0.0,
	}
}

// RatesFromConfig maps the pricing config block onto Rates.
func RatesFromConfig(cfg config.PricingConfig) Rates {
	return Rates{
		PlacesPerCall: cfg.PlacesPerCall,
		SerpPerQuery:  cfg.SerpPerQuery,
		LLMPerCall:    cfg.LLMPerCall,
		ScrapePerSite: cfg.ScrapePerSite,
	}
}

// Calculator computes job costs from call counters.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Estimate totals the spend a job's counters represent.
func (c *Calculator) Estimate(counters model.JobCounters) float64 {
	return float64(counters.PlacesCalls)*c.rates.PlacesPerCall +
		float64(counters.SerpCalls)*c.rates.SerpPerQuery +
		float64(counters.LLMCalls)*c.rates.LLMPerCall +
		float64(counters.BusinessesScraped)*c.rates.ScrapePerSite
}

// Project forecasts the cost of a job before it runs, assuming one places
// call per tile and one SERP query plus one LLM call per expected business.
func (c *Calculator) Project(tiles, expectedBusinessesPerTile int) float64 {
	businesses := tiles * expectedBusinessesPerTile
	return float64(tiles)*c.rates.PlacesPerCall +
		float64(businesses)*(c.rates.SerpPerQuery+c.rates.LLMPerCall+c.rates.ScrapePerSite)
}
