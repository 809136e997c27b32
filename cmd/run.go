package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/geo"
	"github.com/sells-group/prospector/internal/model"
)

var runFlags struct {
	businessType        string
	geography           []string
	zipPercentage       int
	minDomainConfidence int
	userID              string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Submit a job and execute it inline",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		geography, err := geo.NormalizeGeography(runFlags.geography)
		if err != nil {
			return err
		}

		job := &model.Job{
			UserID:              runFlags.userID,
			BusinessType:        runFlags.businessType,
			Geography:           geography,
			ZipPercentage:       runFlags.zipPercentage,
			MinDomainConfidence: runFlags.minDomainConfidence,
		}
		if err := env.store.CreateJob(ctx, job); err != nil {
			return err
		}
		zap.L().Info("job created", zap.String("job_id", job.ID))

		if err := env.orch.ExecuteJob(ctx, job.ID); err != nil {
			return err
		}

		final, err := env.store.GetJob(ctx, job.ID)
		if err != nil {
			return err
		}
		printJob(cmd, final)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runFlags.businessType, "type", "", "business type to search for (required)")
	runCmd.Flags().StringSliceVar(&runFlags.geography, "geo", nil, `state codes or "nationwide" (required)`)
	runCmd.Flags().IntVar(&runFlags.zipPercentage, "zip-percentage", 20, "top-N% of tiles by population to search")
	runCmd.Flags().IntVar(&runFlags.minDomainConfidence, "min-domain-confidence", 70, "enrichment confidence required to scrape a domain")
	runCmd.Flags().StringVar(&runFlags.userID, "user", "cli", "owning user id")
	_ = runCmd.MarkFlagRequired("type")
	_ = runCmd.MarkFlagRequired("geo")
	rootCmd.AddCommand(runCmd)
}
