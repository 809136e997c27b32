package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Places    PlacesConfig    `yaml:"places" mapstructure:"places"`
	Serp      SerpConfig      `yaml:"serp" mapstructure:"serp"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Scrape    ScrapeConfig    `yaml:"scrape" mapstructure:"scrape"`
	Verify    VerifyConfig    `yaml:"verify" mapstructure:"verify"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Worker    WorkerConfig    `yaml:"worker" mapstructure:"worker"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Pricing   PricingConfig   `yaml:"pricing" mapstructure:"pricing"`
	Gazetteer GazetteerConfig `yaml:"gazetteer" mapstructure:"gazetteer"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// PlacesConfig holds the geocoded-places search adapter settings.
type PlacesConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	MaxPageSize int     `yaml:"max_page_size" mapstructure:"max_page_size"`
}

// SerpConfig holds the search-engine-results adapter settings.
type SerpConfig struct {
	Key        string  `yaml:"key" mapstructure:"key"`
	BaseURL    string  `yaml:"base_url" mapstructure:"base_url"`
	RatePerSec float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// AnthropicConfig holds Anthropic API settings for SERP extraction.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// ScrapeConfig configures the contact-extraction engine.
type ScrapeConfig struct {
	TimeoutSecs        int  `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UseBrowserFallback bool `yaml:"use_browser_fallback" mapstructure:"use_browser_fallback"`
	BrowserTimeoutSecs int  `yaml:"browser_timeout_secs" mapstructure:"browser_timeout_secs"`
	Concurrency        int  `yaml:"concurrency" mapstructure:"concurrency"`
	SubBatchSize       int  `yaml:"sub_batch_size" mapstructure:"sub_batch_size"`
}

// VerifyConfig configures the email verification engine.
type VerifyConfig struct {
	CacheBackend  string `yaml:"cache_backend" mapstructure:"cache_backend"` // memory | redis
	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr"`
	CacheTTLHours int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	Concurrency   int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// PipelineConfig configures the job orchestrator.
type PipelineConfig struct {
	DiscoveryConcurrency  int `yaml:"discovery_concurrency" mapstructure:"discovery_concurrency"`
	EnrichmentConcurrency int `yaml:"enrichment_concurrency" mapstructure:"enrichment_concurrency"`
	MaxZipTiles           int `yaml:"max_zip_tiles" mapstructure:"max_zip_tiles"`
}

// WorkerConfig configures the job poll loop and stall watchdog.
type WorkerConfig struct {
	PollIntervalSecs  int `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
	MaxConcurrentJobs int `yaml:"max_concurrent_jobs" mapstructure:"max_concurrent_jobs"`
	StallTimeoutSecs  int `yaml:"stall_timeout_secs" mapstructure:"stall_timeout_secs"`
}

// ServerConfig configures the job submission API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// PricingConfig holds per-provider call rates for cost estimation.
type PricingConfig struct {
	PlacesPerCall  float64 `yaml:"places_per_call" mapstructure:"places_per_call"`
	SerpPerQuery   float64 `yaml:"serp_per_query" mapstructure:"serp_per_query"`
	LLMPerCall     float64 `yaml:"llm_per_call" mapstructure:"llm_per_call"`
	ScrapePerSite  float64 `yaml:"scrape_per_site" mapstructure:"scrape_per_site"`
	MaxZipTileCost float64 `yaml:"max_zip_tile_cost" mapstructure:"max_zip_tile_cost"`
}

// GazetteerConfig configures ZCTA reference-data import.
type GazetteerConfig struct {
	GazetteerURL  string `yaml:"gazetteer_url" mapstructure:"gazetteer_url"`
	ShapefileURL  string `yaml:"shapefile_url" mapstructure:"shapefile_url"`
	PopulationURL string `yaml:"population_url" mapstructure:"population_url"`
	TempDir       string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROSPECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sqlite_path", "prospector.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("places.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("places.rate_per_sec", 10)
	v.SetDefault("places.max_page_size", 20)
	v.SetDefault("serp.base_url", "https://serpapi.com")
	v.SetDefault("serp.rate_per_sec", 5)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("scrape.timeout_secs", 15)
	v.SetDefault("scrape.use_browser_fallback", true)
	v.SetDefault("scrape.browser_timeout_secs", 30)
	v.SetDefault("scrape.concurrency", 10)
	v.SetDefault("scrape.sub_batch_size", 10)
	v.SetDefault("verify.cache_backend", "memory")
	v.SetDefault("verify.redis_addr", "localhost:6379")
	v.SetDefault("verify.cache_ttl_hours", 24)
	v.SetDefault("verify.concurrency", 10)
	v.SetDefault("pipeline.discovery_concurrency", 5)
	v.SetDefault("pipeline.enrichment_concurrency", 5)
	v.SetDefault("pipeline.max_zip_tiles", 500)
	v.SetDefault("worker.poll_interval_secs", 5)
	v.SetDefault("worker.max_concurrent_jobs", 3)
	v.SetDefault("worker.stall_timeout_secs", 120)
	v.SetDefault("pricing.places_per_call", 0.032)
	v.SetDefault("pricing.serp_per_query", 0.01)
	v.SetDefault("pricing.llm_per_call", 0.004)
	v.SetDefault("pricing.scrape_per_site", 0.0)
	v.SetDefault("gazetteer.gazetteer_url", "https://www2.census.gov/geo/docs/maps-data/data/gazetteer/2024_Gazetteer/2024_Gaz_zcta_national.zip")
	v.SetDefault("gazetteer.shapefile_url", "ftp://ftp2.census.gov/geo/tiger/TIGER2024/ZCTA520/tl_2024_us_zcta520.zip")
	v.SetDefault("gazetteer.population_url", "https://api.census.gov/data/2023/acs/acs5?get=B01003_001E&for=zip%20code%20tabulation%20area:*")
	v.SetDefault("gazetteer.temp_dir", "/tmp/prospector")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
