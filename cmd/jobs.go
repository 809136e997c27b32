package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/store"
)

var jobsStatus string

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect discovery jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		filter := store.JobFilter{Limit: 50}
		if jobsStatus != "" {
			filter.Status = model.JobStatus(jobsStatus)
		}
		jobs, err := st.ListJobs(ctx, filter)
		if err != nil {
			return err
		}

		if len(jobs) == 0 {
			cmd.Println("no jobs")
			return nil
		}
		for _, j := range jobs {
			cmd.Printf("%s  %-9s  %-10s  %q %v  found=%d scraped=%d  $%.2f\n",
				j.ID, j.Status, j.CurrentStep, j.BusinessType, j.Geography,
				j.Counters.BusinessesFound, j.Counters.BusinessesScraped, j.EstimatedCost)
		}
		return nil
	},
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show one job's status, counters, cost, and error log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		job, err := st.GetJob(ctx, args[0])
		if err != nil {
			return err
		}
		printJob(cmd, job)
		return nil
	},
}

func printJob(cmd *cobra.Command, j *model.Job) {
	cmd.Printf("job        %s\n", j.ID)
	cmd.Printf("status     %s (step: %s)\n", j.Status, j.CurrentStep)
	cmd.Printf("search     %q in %v, top %d%% of tiles\n", j.BusinessType, j.Geography, j.ZipPercentage)
	cmd.Printf("tiles      %d/%d processed\n", j.Counters.ZipsProcessed, j.Counters.ZipsTotal)
	cmd.Printf("businesses %d found, %d enriched, %d scraped\n",
		j.Counters.BusinessesFound, j.Counters.BusinessesEnriched, j.Counters.BusinessesScraped)
	cmd.Printf("api calls  places=%d serp=%d llm=%d\n",
		j.Counters.PlacesCalls, j.Counters.SerpCalls, j.Counters.LLMCalls)
	cmd.Printf("cost       $%.4f\n", j.EstimatedCost)
	cmd.Printf("heartbeat  %s\n", j.LastProgressAt.Format("2006-01-02 15:04:05 MST"))
	if j.ErrorLog != "" {
		cmd.Printf("error      %s\n", j.ErrorLog)
	}
}

func init() {
	jobsListCmd.Flags().StringVar(&jobsStatus, "status", "", "filter by status")
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsShowCmd)
	rootCmd.AddCommand(jobsCmd)
}
