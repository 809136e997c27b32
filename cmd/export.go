package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/export"
)

var exportFlags struct {
	jobID  string
	format string
	out    string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a job's leads to CSV or XLSX",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		format, err := export.ParseFormat(exportFlags.format)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		businesses, err := st.ListJobBusinesses(ctx, exportFlags.jobID)
		if err != nil {
			return err
		}
		rows := export.Flatten(businesses)
		if len(rows) == 0 {
			return eris.New("no exportable leads for this job")
		}

		out := cmd.OutOrStdout()
		if exportFlags.out != "" {
			f, err := os.Create(exportFlags.out)
			if err != nil {
				return eris.Wrap(err, "create output file")
			}
			defer f.Close()
			out = f
		}

		if err := export.Write(out, rows, format); err != nil {
			return err
		}
		zap.L().Info("export complete",
			zap.String("job_id", exportFlags.jobID),
			zap.Int("leads", len(rows)),
			zap.String("format", string(format)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFlags.jobID, "job", "", "job id to export (required)")
	exportCmd.Flags().StringVar(&exportFlags.format, "format", "csv", "output format: csv or xlsx")
	exportCmd.Flags().StringVar(&exportFlags.out, "out", "", "output file (default stdout)")
	_ = exportCmd.MarkFlagRequired("job")
	rootCmd.AddCommand(exportCmd)
}
