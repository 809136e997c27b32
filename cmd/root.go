package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/config"
	"github.com/sells-group/prospector/internal/pipeline"
	"github.com/sells-group/prospector/internal/store"
	"github.com/sells-group/prospector/pkg/anthropic"
	"github.com/sells-group/prospector/pkg/places"
	"github.com/sells-group/prospector/pkg/serp"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "prospector",
	Short: "Geographic lead discovery and contact enrichment",
	Long:  "Discovers businesses by ZIP tile, enriches them with contact data from search results, and scrapes/verifies that data from the businesses' own websites.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	case "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	default:
		return nil, eris.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

// pipelineEnv bundles the store and orchestrator shared by the commands
// that execute jobs.
type pipelineEnv struct {
	store store.Store
	orch  *pipeline.Orchestrator
}

func (e *pipelineEnv) Close() {
	_ = e.store.Close()
}

func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	placesClient := places.NewClient(cfg.Places.Key,
		places.WithBaseURL(cfg.Places.BaseURL),
		places.WithRateLimit(cfg.Places.RatePerSec),
	)
	serpClient := serp.NewClient(cfg.Serp.Key,
		serp.WithBaseURL(cfg.Serp.BaseURL),
		serp.WithRateLimit(cfg.Serp.RatePerSec),
	)
	anthropicClient := anthropic.NewClient(cfg.Anthropic.Key)

	orch := pipeline.New(cfg, st, placesClient, serpClient, anthropicClient)
	return &pipelineEnv{store: st, orch: orch}, nil
}
