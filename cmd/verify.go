package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/prospector/internal/verify"
)

var verifyEmails []string

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify email deliverability signals (syntax, disposable, MX)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		opts := []verify.Option{
			verify.WithCacheTTL(time.Duration(cfg.Verify.CacheTTLHours) * time.Hour),
		}
		if cfg.Verify.CacheBackend == "redis" {
			cache := verify.NewRedisCache(cfg.Verify.RedisAddr)
			defer cache.Close()
			opts = append(opts, verify.WithCache(cache))
		}
		verifier := verify.New(opts...)

		items := make([]verify.Item, 0, len(verifyEmails))
		for i, email := range verifyEmails {
			items = append(items, verify.Item{ID: fmt.Sprintf("%d", i+1), Email: email})
		}

		results := verifier.VerifyEmails(ctx, items, verify.BatchOptions{
			Concurrency: cfg.Verify.Concurrency,
		})

		for _, item := range items {
			res := results[item.ID]
			cmd.Printf("%-40s %-8s verified=%t %s\n", res.Email, res.Status, res.Verified, res.Details)
		}
		return nil
	},
}

func init() {
	verifyCmd.Flags().StringSliceVar(&verifyEmails, "emails", nil, "comma-separated emails to verify (required)")
	_ = verifyCmd.MarkFlagRequired("emails")
	rootCmd.AddCommand(verifyCmd)
}
