package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leggilab/normascout/internal/api"
	"github.com/leggilab/normascout/internal/clock/system"
	"github.com/leggilab/normascout/internal/schedule"
	"github.com/leggilab/normascout/internal/scrape"
)

// newServeCmd creates the 'serve' subcommand: a long-running scheduler with
// the operational HTTP endpoint alongside it.
func newServeCmd() *cobra.Command {
	var (
		frequency time.Duration
		tick      time.Duration
		daysBack  int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduled scraper and the operational HTTP server",
		Long: `Registers one recurring scrape job per configured target and executes
them on schedule. Failed runs are retried with exponential backoff; job
outcomes go out through the configured notification backend. Health,
statistics, job state, and Prometheus metrics are served over HTTP.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if len(cfg.Targets) == 0 {
				return fmt.Errorf("no targets configured")
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

			notifier, closeNotifier, err := buildNotifier(ctx)
			if err != nil {
				return err
			}
			defer closeNotifier()

			orch, err := buildOrchestrator(store)
			if err != nil {
				return err
			}

			stats := scrape.NewStatistics()
			clock := system.New()
			registry := schedule.NewRegistry(clock)

			scrapers := make(map[string]*scrape.Scraper, len(cfg.Targets))
			for name, targetCfg := range cfg.Targets {
				if targetCfg.SourceID == "" {
					targetCfg.SourceID = name
				}
				scrapers[targetCfg.SourceID] = buildScraper(targetCfg, orch, store, stats, archive)
				job := schedule.Job{
					ID:        "scrape-" + targetCfg.SourceID,
					SourceID:  targetCfg.SourceID,
					Frequency: frequency,
					DaysBack:  daysBack,
				}
				if err := registry.Register(job); err != nil {
					return fmt.Errorf("register job for %s: %w", name, err)
				}
			}

			runScrape := func(ctx context.Context, job schedule.Job) (scrape.Summary, error) {
				scraper, ok := scrapers[job.SourceID]
				if !ok {
					return scrape.Summary{}, fmt.Errorf("no scraper for source %s", job.SourceID)
				}
				if len(job.Sections) == 0 {
					return scraper.ScrapeRecent(ctx, scrape.Options{DaysBack: job.DaysBack})
				}
				var total scrape.Summary
				for _, section := range job.Sections {
					summary, err := scraper.ScrapeRecent(ctx, scrape.Options{
						DaysBack: job.DaysBack,
						Section:  section,
					})
					total.DocumentsFound += summary.DocumentsFound
					total.DocumentsProcessed += summary.DocumentsProcessed
					total.DocumentsSaved += summary.DocumentsSaved
					total.Errors += summary.Errors
					total.Duration += summary.Duration
					if err != nil {
						return total, err
					}
				}
				return total, nil
			}

			runner := schedule.NewRunner(registry, runScrape, notifier, clock, schedule.RunnerConfig{
				MaxRetries:            cfg.Schedule.MaxRetries,
				SuccessNoticeInterval: time.Duration(cfg.Schedule.SuccessNoticeIntervalMinutes) * time.Minute,
				Recipients:            cfg.Notify.Recipients,
			}, logger.Named("schedule"))
			go runner.Loop(ctx, tick)

			apiServer := api.NewServer(stats, registry, logger.Named("api"))
			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
				Handler:           apiServer.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				logger.Info("http server started", zap.Int("port", cfg.Server.Port))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server error", zap.Error(err))
					stop()
				}
			}()

			<-ctx.Done()
			logger.Info("shutdown initiated")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("server shutdown error", zap.Error(err))
			}
			logger.Info("shutdown complete")
			return nil
		},
	}

	cmd.Flags().DurationVar(&frequency, "frequency", 6*time.Hour, "interval between scheduled runs per target")
	cmd.Flags().DurationVar(&tick, "tick", time.Minute, "how often the runner checks for due jobs")
	cmd.Flags().IntVar(&daysBack, "days-back", 7, "how many days back each scheduled run walks the index")
	return cmd
}
