// Package cmd defines and implements the CLI commands for the normascout
// executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	stdpath "path"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leggilab/normascout/internal/classify"
	"github.com/leggilab/normascout/internal/clock/system"
	"github.com/leggilab/normascout/internal/config"
	"github.com/leggilab/normascout/internal/id/uuid"
	"github.com/leggilab/normascout/internal/ingest"
	"github.com/leggilab/normascout/internal/lawparse"
	"github.com/leggilab/normascout/internal/logging"
	"github.com/leggilab/normascout/internal/metrics"
	"github.com/leggilab/normascout/internal/notify"
	"github.com/leggilab/normascout/internal/scrape"
	"github.com/leggilab/normascout/internal/storage/gcs"
	"github.com/leggilab/normascout/internal/storage/local"
	"github.com/leggilab/normascout/internal/storage/memory"
	"github.com/leggilab/normascout/internal/storage/postgres"
)

var (
	cfgFile string
	cfg     config.Config
	logger  *zap.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normascout",
		Short: "Scrapes Italian regulatory sources into a tiered knowledge base.",
		Long: `normascout watches official Italian regulatory sources, extracts new
statutes and administrative acts, and ingests them into a knowledge base with
a depth of indexing proportional to each document's importance.`,
		SilenceUsage: true,

		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err = logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)
			metrics.Init()
			return nil
		},

		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")

	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIngestCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildStore picks the knowledge store backend. Without a DSN the in-memory
// store keeps the pipeline usable for local runs.
func buildStore(ctx context.Context) (ingest.KnowledgeStore, func(), error) {
	if cfg.DB.DSN == "" {
		logger.Warn("db.dsn not configured; records are held in memory only")
		return memory.NewKnowledgeStore(), func() {}, nil
	}
	store, err := postgres.NewKnowledgeStore(ctx, postgres.KnowledgeStoreConfig{
		DSN:      cfg.DB.DSN,
		Table:    cfg.DB.Table,
		MaxConns: cfg.DB.MaxConns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init knowledge store: %w", err)
	}
	return store, store.Close, nil
}

// prefixedArchive namespaces every object under a fixed prefix.
type prefixedArchive struct {
	inner  scrape.Archive
	prefix string
}

func (p prefixedArchive) PutObject(ctx context.Context, path, contentType string, data []byte) (string, error) {
	return p.inner.PutObject(ctx, stdpath.Join(p.prefix, path), contentType, data)
}

func buildArchive(ctx context.Context) (scrape.Archive, func(), error) {
	if !cfg.Archive.Enabled {
		return nil, func() {}, nil
	}

	var (
		archive scrape.Archive
		cleanup = func() {}
	)
	switch cfg.Archive.Backend {
	case "local":
		store, err := local.New(local.Config{BaseDir: cfg.Archive.BaseDir})
		if err != nil {
			return nil, nil, fmt.Errorf("init local archive: %w", err)
		}
		archive = store
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("init gcs client: %w", err)
		}
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.Archive.GCSBucket})
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("init gcs archive: %w", err)
		}
		archive = store
		cleanup = func() { _ = client.Close() }
	case "memory":
		archive = memory.NewBlobStore()
	default:
		return nil, nil, fmt.Errorf("archive.backend %q is not supported", cfg.Archive.Backend)
	}

	if cfg.Archive.Prefix != "" {
		archive = prefixedArchive{inner: archive, prefix: cfg.Archive.Prefix}
	}
	return archive, cleanup, nil
}

func buildNotifier(ctx context.Context) (notify.Notifier, func(), error) {
	switch cfg.Notify.Backend {
	case "", "log":
		return notify.NewLogNotifier(logger.Named("notify")), func() {}, nil
	case "pubsub":
		client, err := pubsub.NewClient(ctx, cfg.Notify.ProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("init pubsub client: %w", err)
		}
		notifier, err := notify.NewPubSubNotifier(client, cfg.Notify.Topic)
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("init pubsub notifier: %w", err)
		}
		return notifier, func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("notify.backend %q is not supported", cfg.Notify.Backend)
	}
}

// classifierConfig maps the flat config tables onto the classifier's
// per-tier shape. Absent tables stay nil so the built-in defaults apply.
func classifierConfig(c config.ClassifyConfig) classify.Config {
	out := classify.Config{
		ExplicitCritical: c.ExplicitCritical,
		TopicKeywords:    c.TopicKeywords,
	}
	if len(c.CriticalPatterns) > 0 || len(c.ImportantPatterns) > 0 {
		out.TierPatterns = map[classify.Tier][]string{
			classify.TierCritical:  c.CriticalPatterns,
			classify.TierImportant: c.ImportantPatterns,
		}
	}
	if len(c.CriticalKeywords) > 0 || len(c.ImportantKeywords) > 0 {
		out.TierKeywords = map[classify.Tier][]string{
			classify.TierCritical:  c.CriticalKeywords,
			classify.TierImportant: c.ImportantKeywords,
		}
	}
	if len(c.CriticalSources) > 0 || len(c.ImportantSources) > 0 {
		out.TierSources = map[classify.Tier][]string{
			classify.TierCritical:  c.CriticalSources,
			classify.TierImportant: c.ImportantSources,
		}
	}
	return out
}

func buildOrchestrator(store ingest.KnowledgeStore) (*ingest.Orchestrator, error) {
	classifier, err := classify.New(classifierConfig(cfg.Classify))
	if err != nil {
		return nil, fmt.Errorf("init classifier: %w", err)
	}
	parser := lawparse.NewParser(cfg.Classify.TopicKeywords, logger.Named("lawparse"))
	orch := ingest.NewOrchestrator(ingest.Config{
		ChunkSize:          cfg.Ingest.ChunkSize,
		ChunkOverlap:       cfg.Ingest.ChunkOverlap,
		ReferenceMaxChars:  cfg.Ingest.ReferenceMaxChars,
		ParentPreviewChars: cfg.Ingest.ParentPreviewChars,
	}, classifier, parser, store, uuid.NewGenerator(), logger.Named("ingest"))
	return orch, nil
}

// buildScraper wires the full acquisition chain for one target. The store
// doubles as the duplicate checker.
func buildScraper(
	targetCfg config.TargetConfig,
	orch *ingest.Orchestrator,
	store ingest.KnowledgeStore,
	stats *scrape.Statistics,
	archive scrape.Archive,
) *scrape.Scraper {
	robots := scrape.NewRobotsEnforcer(cfg.Scraper.RespectRobots, cfg.Scraper.UserAgent, logger.Named("robots"))
	fetcher := scrape.NewFetcher(scrape.FetcherConfig{
		UserAgent:  cfg.Scraper.UserAgent,
		Delay:      cfg.Scraper.RateLimitDelay(),
		MaxRetries: cfg.Scraper.MaxRetries,
		Timeout:    cfg.Scraper.Timeout(),
	}, robots, stats, logger.Named("fetcher"))
	walker := scrape.NewWalker(fetcher, scrape.WalkerConfig{MaxPages: cfg.Scraper.MaxPages}, logger.Named("walker"))
	details := scrape.NewDetailFetcher(fetcher, scrape.DetailFetcherConfig{
		MinBodyLength: cfg.Scraper.MinBodyLength,
		MaxConcurrent: cfg.Scraper.MaxConcurrentRequests,
	}, logger.Named("detail"))

	target := scrape.Target{
		SourceID:          targetCfg.SourceID,
		ListURL:           targetCfg.ListURL,
		DetailURLTemplate: targetCfg.DetailURLTemplate,
		SectionFilter:     targetCfg.SectionFilter,
	}
	return scrape.NewScraper(target, walker, details, orch, store, stats, archive, system.New(), logger.Named("scraper"))
}
