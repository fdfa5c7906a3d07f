package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leggilab/normascout/internal/config"
	"github.com/leggilab/normascout/internal/scrape"
)

// newScrapeCmd creates the 'scrape' subcommand, which runs one scrape pass
// over the configured targets and exits.
func newScrapeCmd() *cobra.Command {
	var (
		targetName string
		daysBack   int
		section    string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run one scrape pass over the configured sources",
		Long: `Walks each configured source index back the requested number of days,
extracts every new document found, and ingests it through the tiered
pipeline. Per-document failures are counted, not fatal.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			targets, err := selectTargets(targetName)
			if err != nil {
				return err
			}

			store, closeStore, err := buildStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			archive, closeArchive, err := buildArchive(ctx)
			if err != nil {
				return err
			}
			defer closeArchive()

			orch, err := buildOrchestrator(store)
			if err != nil {
				return err
			}

			stats := scrape.NewStatistics()
			opts := scrape.Options{DaysBack: daysBack, Section: section, Limit: limit}

			failures := 0
			for name, targetCfg := range targets {
				if targetCfg.SourceID == "" {
					targetCfg.SourceID = name
				}
				scraper := buildScraper(targetCfg, orch, store, stats, archive)
				summary, err := scraper.ScrapeRecent(ctx, opts)
				if err != nil {
					logger.Error("scrape target failed",
						zap.String("target", name), zap.Error(err))
					failures++
					continue
				}
				logger.Info("scrape target finished",
					zap.String("target", name),
					zap.Int("found", summary.DocumentsFound),
					zap.Int("processed", summary.DocumentsProcessed),
					zap.Int("saved", summary.DocumentsSaved),
					zap.Int("errors", summary.Errors),
					zap.Duration("duration", summary.Duration),
				)
			}
			if failures > 0 {
				return fmt.Errorf("%d of %d targets failed", failures, len(targets))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&targetName, "target", "", "scrape only the named target (default: all)")
	cmd.Flags().IntVar(&daysBack, "days-back", 7, "how many days back to walk the index")
	cmd.Flags().StringVar(&section, "section", "", "keep only documents in this section")
	cmd.Flags().IntVar(&limit, "limit", 0, "cap on documents per target (0 = unlimited)")
	return cmd
}

func selectTargets(name string) (map[string]config.TargetConfig, error) {
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets configured")
	}
	if name == "" {
		return cfg.Targets, nil
	}
	target, ok := cfg.Targets[name]
	if !ok {
		return nil, fmt.Errorf("target %q is not configured", name)
	}
	return map[string]config.TargetConfig{name: target}, nil
}
