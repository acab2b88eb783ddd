package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Match      MatchConfig      `yaml:"match" mapstructure:"match"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Optimizer  OptimizerConfig  `yaml:"optimizer" mapstructure:"optimizer"`
	Export     ExportConfig     `yaml:"export" mapstructure:"export"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Verifier   VerifierConfig   `yaml:"verifier" mapstructure:"verifier"`
	Temporal   TemporalConfig   `yaml:"temporal" mapstructure:"temporal"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// StoreConfig configures the database backend. Entities always live in
// Postgres; Driver selects where the phase log is kept.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// BatchConfig configures the validation, readiness and scoring sweeps.
type BatchConfig struct {
	Concurrency       int `yaml:"concurrency" mapstructure:"concurrency"`
	RecordTimeoutSecs int `yaml:"record_timeout_secs" mapstructure:"record_timeout_secs"`
	Limit             int `yaml:"limit" mapstructure:"limit"`
}

// MatchConfig holds the fuzzy auto-match thresholds.
type MatchConfig struct {
	CompanyThreshold float64 `yaml:"company_threshold" mapstructure:"company_threshold"`
	PersonThreshold  float64 `yaml:"person_threshold" mapstructure:"person_threshold"`
	CandidateLimit   int     `yaml:"candidate_limit" mapstructure:"candidate_limit"`
}

// ScoringConfig points at an optional YAML file overriding the default
// completeness and richness weights.
type ScoringConfig struct {
	WeightsFile string `yaml:"weights_file" mapstructure:"weights_file"`
}

// OptimizerConfig configures the signal weight optimizer.
type OptimizerConfig struct {
	LookbackDays              int     `yaml:"lookback_days" mapstructure:"lookback_days"`
	MinSampleSize             int     `yaml:"min_sample_size" mapstructure:"min_sample_size"`
	FundingDealThreshold      float64 `yaml:"funding_deal_threshold" mapstructure:"funding_deal_threshold"`
	EngagementVolumeThreshold int     `yaml:"engagement_volume_threshold" mapstructure:"engagement_volume_threshold"`
	Schedule                  string  `yaml:"schedule" mapstructure:"schedule"`
	CategoriesFile            string  `yaml:"categories_file" mapstructure:"categories_file"`
}

// ExportConfig configures where invalid and fallout records are sent for review.
type ExportConfig struct {
	Sink      string `yaml:"sink" mapstructure:"sink"`
	BatchSize int    `yaml:"batch_size" mapstructure:"batch_size"`
	XLSXDir   string `yaml:"xlsx_dir" mapstructure:"xlsx_dir"`
}

// NotionConfig holds Notion API credentials and the review database ID.
type NotionConfig struct {
	Token       string  `yaml:"token" mapstructure:"token"`
	ReviewDB    string  `yaml:"review_db" mapstructure:"review_db"`
	RateRPS     float64 `yaml:"rate_rps" mapstructure:"rate_rps"`
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID    string  `yaml:"client_id" mapstructure:"client_id"`
	Username    string  `yaml:"username" mapstructure:"username"`
	KeyPath     string  `yaml:"key_path" mapstructure:"key_path"`
	LoginURL    string  `yaml:"login_url" mapstructure:"login_url"`
	RateRPS     float64 `yaml:"rate_rps" mapstructure:"rate_rps"`
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// VerifierConfig configures the email verification and enrichment provider.
type VerifierConfig struct {
	BaseURL          string  `yaml:"base_url" mapstructure:"base_url"`
	Key              string  `yaml:"key" mapstructure:"key"`
	RateRPS          float64 `yaml:"rate_rps" mapstructure:"rate_rps"`
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int     `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// TemporalConfig configures the Temporal client used for scheduled optimization.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port" mapstructure:"host_port"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue string `yaml:"task_queue" mapstructure:"task_queue"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures sweep alerting.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	MinRecords           int     `yaml:"min_records" mapstructure:"min_records"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sqlite_path", "outreach.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("batch.concurrency", 8)
	v.SetDefault("batch.record_timeout_secs", 30)
	v.SetDefault("batch.limit", 1000)
	v.SetDefault("match.company_threshold", 0.90)
	v.SetDefault("match.person_threshold", 0.88)
	v.SetDefault("match.candidate_limit", 10)
	v.SetDefault("scoring.weights_file", "")
	v.SetDefault("optimizer.lookback_days", 90)
	v.SetDefault("optimizer.min_sample_size", 30)
	v.SetDefault("optimizer.funding_deal_threshold", 50000)
	v.SetDefault("optimizer.engagement_volume_threshold", 500)
	v.SetDefault("optimizer.schedule", "0 3 * * 1")
	v.SetDefault("optimizer.categories_file", "signals.yaml")
	v.SetDefault("export.sink", "none")
	v.SetDefault("export.batch_size", 200)
	v.SetDefault("export.xlsx_dir", "exports")
	v.SetDefault("notion.rate_rps", 3)
	v.SetDefault("notion.max_attempts", 4)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.rate_rps", 10)
	v.SetDefault("salesforce.max_attempts", 3)
	v.SetDefault("verifier.rate_rps", 5)
	v.SetDefault("verifier.max_attempts", 3)
	v.SetDefault("verifier.initial_backoff_ms", 500)
	v.SetDefault("verifier.failure_threshold", 5)
	v.SetDefault("verifier.reset_timeout_secs", 30)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "outreach-signals")
	v.SetDefault("server.port", 8080)
	v.SetDefault("monitoring.failure_rate_threshold", 0.10)
	v.SetDefault("monitoring.min_records", 5)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the keys a command mode depends on are set and that
// shared numeric settings are within bounds.
func (c *Config) Validate(mode string) error {
	var errs []string
	require := func(val, key string) {
		if val == "" {
			errs = append(errs, key+" is required")
		}
	}

	switch mode {
	case "pipeline":
		require(c.Store.DatabaseURL, "store.database_url")
		if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
			errs = append(errs, "store.driver must be postgres or sqlite")
		}
	case "notion":
		require(c.Notion.Token, "notion.token")
		require(c.Notion.ReviewDB, "notion.review_db")
	case "salesforce":
		require(c.Salesforce.ClientID, "salesforce.client_id")
		require(c.Salesforce.KeyPath, "salesforce.key_path")
	case "verifier":
		require(c.Verifier.BaseURL, "verifier.base_url")
	case "temporal":
		require(c.Temporal.HostPort, "temporal.host_port")
		require(c.Temporal.TaskQueue, "temporal.task_queue")
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Batch.Concurrency < 1 || c.Batch.Concurrency > 64 {
		errs = append(errs, "batch.concurrency must be between 1 and 64")
	}
	if c.Match.CompanyThreshold <= 0 || c.Match.CompanyThreshold > 1 {
		errs = append(errs, "match.company_threshold must be in (0, 1]")
	}
	if c.Match.PersonThreshold <= 0 || c.Match.PersonThreshold > 1 {
		errs = append(errs, "match.person_threshold must be in (0, 1]")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
