package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/prospector/internal/scrape"
)

var scrapeFlags struct {
	domain  string
	browser bool
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Extract contact info from one domain",
	Long:  "Runs the contact-extraction engine against a single domain. A debug surface for the scraping stage.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var engineOpts []scrape.EngineOption
		if scrapeFlags.browser {
			browser := scrape.NewBrowser("Mozilla/5.0 (compatible; ProspectorBot/1.0)")
			defer browser.Close()
			engineOpts = append(engineOpts, scrape.WithRenderer(browser))
		}
		engine := scrape.NewEngine(engineOpts...)

		res := engine.ScrapeDomain(ctx, scrape.NewBatchState(), scrapeFlags.domain, scrape.Options{
			Timeout:            time.Duration(cfg.Scrape.TimeoutSecs) * time.Second,
			UseBrowserFallback: scrapeFlags.browser,
		})

		cmd.Printf("domain  %s\n", scrapeFlags.domain)
		cmd.Printf("email   %s\n", orDash(res.Email))
		cmd.Printf("phone   %s\n", orDash(res.Phone))
		if res.ErrorCode != "" {
			cmd.Printf("error   %s\n", res.ErrorCode)
		}
		return nil
	},
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeFlags.domain, "domain", "", "domain to scrape (required)")
	scrapeCmd.Flags().BoolVar(&scrapeFlags.browser, "browser", false, "enable the headless browser fallback")
	_ = scrapeCmd.MarkFlagRequired("domain")
	rootCmd.AddCommand(scrapeCmd)
}
