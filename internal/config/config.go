// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig            `mapstructure:"server"`
	Scraper  ScraperConfig           `mapstructure:"scraper"`
	Ingest   IngestConfig            `mapstructure:"ingest"`
	Classify ClassifyConfig          `mapstructure:"classify"`
	DB       DBConfig                `mapstructure:"db"`
	Archive  ArchiveConfig           `mapstructure:"archive"`
	Notify   NotifyConfig            `mapstructure:"notify"`
	Schedule ScheduleConfig          `mapstructure:"schedule"`
	Logging  LoggingConfig           `mapstructure:"logging"`
	Targets  map[string]TargetConfig `mapstructure:"targets"`
}

// ServerConfig controls the health/metrics HTTP endpoint.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// ScraperConfig governs fetch politeness and pagination behavior.
type ScraperConfig struct {
	UserAgent             string  `mapstructure:"user_agent"`
	RateLimitDelaySeconds float64 `mapstructure:"rate_limit_delay_seconds"`
	MaxRetries            int     `mapstructure:"max_retries"`
	TimeoutSeconds        int     `mapstructure:"timeout_seconds"`
	MaxConcurrentRequests int     `mapstructure:"max_concurrent_requests"`
	RespectRobots         bool    `mapstructure:"respect_robots"`
	MaxPages              int     `mapstructure:"max_pages"`
	MinBodyLength         int     `mapstructure:"min_body_length"`
}

// IngestConfig controls chunking and record sizing in the ingestion pipeline.
type IngestConfig struct {
	ChunkSize          int `mapstructure:"chunk_size"`
	ChunkOverlap       int `mapstructure:"chunk_overlap"`
	ReferenceMaxChars  int `mapstructure:"reference_max_chars"`
	ParentPreviewChars int `mapstructure:"parent_preview_chars"`
}

// ClassifyConfig supplies external classification tables. Empty fields fall
// back to the classifier's built-in defaults.
type ClassifyConfig struct {
	ExplicitCritical  []string            `mapstructure:"explicit_critical"`
	CriticalPatterns  []string            `mapstructure:"critical_patterns"`
	ImportantPatterns []string            `mapstructure:"important_patterns"`
	CriticalKeywords  []string            `mapstructure:"critical_keywords"`
	ImportantKeywords []string            `mapstructure:"important_keywords"`
	CriticalSources   []string            `mapstructure:"critical_sources"`
	ImportantSources  []string            `mapstructure:"important_sources"`
	TopicKeywords     map[string][]string `mapstructure:"topic_keywords"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// ArchiveConfig controls optional raw snapshot archiving.
type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Backend   string `mapstructure:"backend"` // local, gcs, memory
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// NotifyConfig selects the notification backend.
type NotifyConfig struct {
	Backend    string   `mapstructure:"backend"` // log, pubsub
	ProjectID  string   `mapstructure:"project_id"`
	Topic      string   `mapstructure:"topic"`
	Recipients []string `mapstructure:"recipients"`
}

// ScheduleConfig controls the scheduled job runner.
type ScheduleConfig struct {
	MaxRetries                   int `mapstructure:"max_retries"`
	SuccessNoticeIntervalMinutes int `mapstructure:"success_notice_interval_minutes"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// TargetConfig describes one scrape source.
type TargetConfig struct {
	SourceID          string `mapstructure:"source_id"`
	ListURL           string `mapstructure:"list_url"`
	DetailURLTemplate string `mapstructure:"detail_url_template"`
	SectionFilter     string `mapstructure:"section_filter"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NORMASCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("scraper.user_agent", "normascout-bot/0.1")
	v.SetDefault("scraper.rate_limit_delay_seconds", 2.0)
	v.SetDefault("scraper.max_retries", 3)
	v.SetDefault("scraper.timeout_seconds", 30)
	v.SetDefault("scraper.max_concurrent_requests", 3)
	v.SetDefault("scraper.respect_robots", true)
	v.SetDefault("scraper.max_pages", 20)
	v.SetDefault("scraper.min_body_length", 200)
	v.SetDefault("ingest.chunk_size", 1500)
	v.SetDefault("ingest.chunk_overlap", 150)
	v.SetDefault("ingest.reference_max_chars", 4000)
	v.SetDefault("ingest.parent_preview_chars", 1000)
	v.SetDefault("db.table", "knowledge_records")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.backend", "local")
	v.SetDefault("archive.prefix", "raw")
	v.SetDefault("notify.backend", "log")
	v.SetDefault("schedule.max_retries", 5)
	v.SetDefault("schedule.success_notice_interval_minutes", 60)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scraper.RateLimitDelaySeconds < 0 {
		return fmt.Errorf("scraper.rate_limit_delay_seconds must be >= 0")
	}
	if c.Scraper.MaxRetries < 0 {
		return fmt.Errorf("scraper.max_retries must be >= 0")
	}
	if c.Scraper.TimeoutSeconds <= 0 {
		return fmt.Errorf("scraper.timeout_seconds must be > 0")
	}
	if c.Scraper.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("scraper.max_concurrent_requests must be > 0")
	}
	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("ingest.chunk_size must be > 0")
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap must be in [0, chunk_size)")
	}
	if c.Archive.Enabled {
		switch c.Archive.Backend {
		case "local":
			if c.Archive.BaseDir == "" {
				return fmt.Errorf("archive.base_dir is required for the local backend")
			}
		case "gcs":
			if c.Archive.GCSBucket == "" {
				return fmt.Errorf("archive.gcs_bucket is required for the gcs backend")
			}
		case "memory":
		default:
			return fmt.Errorf("archive.backend %q is not supported", c.Archive.Backend)
		}
	}
	if c.Notify.Backend == "pubsub" && (c.Notify.ProjectID == "" || c.Notify.Topic == "") {
		return fmt.Errorf("notify.project_id and notify.topic are required for the pubsub backend")
	}
	return nil
}

// RateLimitDelay converts the configured delay into a duration.
func (c ScraperConfig) RateLimitDelay() time.Duration {
	return time.Duration(c.RateLimitDelaySeconds * float64(time.Second))
}

// Timeout converts the configured timeout into a duration.
func (c ScraperConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
