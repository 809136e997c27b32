package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the job poll loop until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		w := worker.New(env.store, env.orch, cfg.Worker)
		if err := w.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()
		zap.L().Info("shutting down worker")
		w.Stop()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
