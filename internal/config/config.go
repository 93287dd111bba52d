// Package config loads the harvester configuration from an optional YAML
// file, a .env file and environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonesrussell/ddharvester/internal/budget"
	"github.com/jonesrussell/ddharvester/internal/database"
	"github.com/jonesrussell/ddharvester/internal/frontier"
	"github.com/jonesrussell/ddharvester/internal/ingest"
	"github.com/jonesrussell/ddharvester/internal/logger"
	"github.com/jonesrussell/ddharvester/internal/report"
	"github.com/jonesrussell/ddharvester/internal/retry"
	"github.com/jonesrussell/ddharvester/internal/source/reddit"
	"github.com/jonesrussell/ddharvester/internal/telemetry"
)

// EnvPrefix prefixes every environment override, e.g. DDH_CRAWLER_SLEEP.
const EnvPrefix = "DDH"

// Defaults not owned by another package.
const (
	DefaultAppName      = "ddharvester"
	DefaultEnvironment  = "production"
	DefaultDSN          = "superstonk_dd.sqlite"
	DefaultLogFile      = "logs/ddharvester.log"
	DefaultScheduleCron = "0 */6 * * *"
)

var validLevels = []string{"debug", "info", "warn", "error"}

// Config is the complete application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"       yaml:"app"`
	Logging   logger.Config   `mapstructure:"logging"   yaml:"logging"`
	Database  database.Config `mapstructure:"database"  yaml:"database"`
	Reddit    reddit.Config   `mapstructure:"reddit"    yaml:"reddit"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"   yaml:"crawler"`
	Report    report.Config   `mapstructure:"report"    yaml:"report"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"  yaml:"schedule"`
}

// AppConfig identifies the deployment.
type AppConfig struct {
	Name        string `mapstructure:"name"        yaml:"name"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// CrawlerConfig holds the pipeline settings and the per-run process controls.
type CrawlerConfig struct {
	ingest.Config `mapstructure:",squash" yaml:",inline"`

	// Sleep is the pause after every examined item.
	Sleep time.Duration `mapstructure:"sleep" yaml:"sleep"`
	// MaxMinutes bounds the run's wall-clock time. Zero means unbounded.
	MaxMinutes float64 `mapstructure:"max_minutes" yaml:"max_minutes"`
	// RecrawlHubs requeues every hub item before the run.
	RecrawlHubs bool `mapstructure:"recrawl_hubs" yaml:"recrawl_hubs"`
}

// MaxDuration converts MaxMinutes to a duration.
func (c CrawlerConfig) MaxDuration() time.Duration {
	return time.Duration(c.MaxMinutes * float64(time.Minute))
}

// TelemetryConfig controls the metrics export.
type TelemetryConfig struct {
	// TextfilePath receives the final run metrics in Prometheus text format.
	TextfilePath string `mapstructure:"textfile_path" yaml:"textfile_path"`
}

// ScheduleConfig controls the schedule command.
type ScheduleConfig struct {
	Cron string `mapstructure:"cron" yaml:"cron"`
}

// New returns a viper instance with defaults and environment bindings set.
// path may be empty, in which case config.yaml is looked up in the working
// directory and ./config.
func New(path string) (*viper.Viper, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}
	return v, nil
}

// ReadFile reads the config file if there is one. A missing file is not an
// error when no explicit path was given.
func ReadFile(v *viper.Viper, path string) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if path == "" && errors.As(err, &notFound) {
		return nil
	}
	return &LoadError{File: path, Err: err}
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Reddit.Subreddit == "" {
		cfg.Reddit.Subreddit = cfg.Crawler.Subreddit
	}
	if cfg.Report.Subreddit == "" {
		cfg.Report.Subreddit = cfg.Crawler.Subreddit
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings every command relies on.
func (c *Config) Validate() error {
	if !slices.Contains(validLevels, c.Logging.Level) {
		return &ValidationError{Field: "logging.level", Value: c.Logging.Level, Reason: "must be one of debug, info, warn, error"}
	}
	if c.Database.Driver != database.DriverSQLite && c.Database.Driver != database.DriverPostgres {
		return &ValidationError{Field: "database.driver", Value: c.Database.Driver, Reason: "must be sqlite or postgres"}
	}
	if c.Database.DSN == "" {
		return &ValidationError{Field: "database.dsn", Value: c.Database.DSN, Reason: "must not be empty"}
	}
	if c.Crawler.MaxDepth < 0 {
		return &ValidationError{Field: "crawler.max_depth", Value: c.Crawler.MaxDepth, Reason: "must not be negative"}
	}
	if c.Crawler.Sleep < 0 {
		return &ValidationError{Field: "crawler.sleep", Value: c.Crawler.Sleep, Reason: "must not be negative"}
	}
	if c.Crawler.MaxMinutes < 0 {
		return &ValidationError{Field: "crawler.max_minutes", Value: c.Crawler.MaxMinutes, Reason: "must not be negative"}
	}
	return nil
}

// RequireCredentials reports ErrMissingCredentials when the remote API
// cannot be authenticated.
func (c *Config) RequireCredentials() error {
	if c.Reddit.ClientID == "" || c.Reddit.ClientSecret == "" {
		return ErrMissingCredentials
	}
	return nil
}

// bindEnvVars maps the conventional unprefixed variable names.
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string][]string{
		"reddit.client_id":     {"DDH_REDDIT_CLIENT_ID", "REDDIT_CLIENT_ID"},
		"reddit.client_secret": {"DDH_REDDIT_CLIENT_SECRET", "REDDIT_CLIENT_SECRET"},
		"reddit.user_agent":    {"DDH_REDDIT_USER_AGENT", "REDDIT_USER_AGENT"},
		"database.dsn":         {"DDH_DATABASE_DSN", "DATABASE_URL"},
		"logging.level":        {"DDH_LOGGING_LEVEL", "LOG_LEVEL"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app", map[string]any{
		"name":        DefaultAppName,
		"environment": DefaultEnvironment,
	})

	v.SetDefault("logging", map[string]any{
		"level":  logger.DefaultLevel,
		"format": logger.FormatConsole,
		"file":   DefaultLogFile,
	})

	v.SetDefault("database", map[string]any{
		"driver": database.DriverSQLite,
		"dsn":    DefaultDSN,
	})

	v.SetDefault("reddit", map[string]any{
		"client_id":           "",
		"client_secret":       "",
		"user_agent":          reddit.DefaultUserAgent,
		"subreddit":           "",
		"base_url":            reddit.DefaultBaseURL,
		"token_url":           reddit.DefaultTokenURL,
		"requests_per_minute": reddit.DefaultRequestsPerMinute,
		"timeout":             reddit.DefaultTimeout.String(),
		"max_retries":         retry.DefaultMaxAttempts,
	})

	v.SetDefault("crawler", map[string]any{
		"subreddit":              ingest.DefaultSubreddit,
		"flairs":                 ingest.DefaultFlairs,
		"hub_queries":            ingest.DefaultHubQueries,
		"max_depth":              frontier.DefaultMaxDepth,
		"batch_size":             frontier.DefaultBatchSize,
		"dup_streak_limit":       ingest.DefaultDupStreakLimit,
		"hub_search_limit":       ingest.DefaultHubSearchLimit,
		"hub_comment_sort":       ingest.DefaultHubCommentSort,
		"hub_top_level_comments": ingest.DefaultHubTopLevelComments,
		"hub_reply_depth":        ingest.DefaultHubReplyDepth,
		"hub_replies_per_top":    ingest.DefaultHubRepliesPerTop,
		"heartbeat_interval":     telemetry.DefaultHeartbeatInterval.String(),
		"sleep":                  budget.DefaultDelay.String(),
		"max_minutes":            0,
		"recrawl_hubs":           false,
	})

	v.SetDefault("report", map[string]any{
		"out_dir":     report.DefaultOutDir,
		"subreddit":   "",
		"window_days": report.DefaultWindowDays,
		"top_posts":   report.DefaultTopPosts,
		"top_domains": report.DefaultTopDomains,
		"week_len":    report.DefaultWeekLen,
		"diff":        false,
	})

	v.SetDefault("telemetry", map[string]any{
		"textfile_path": "",
	})

	v.SetDefault("schedule", map[string]any{
		"cron": DefaultScheduleCron,
	})
}

const redacted = "REDACTED"

// Redacted returns a copy with secrets masked, for display.
func (c Config) Redacted() Config {
	if c.Reddit.ClientSecret != "" {
		c.Reddit.ClientSecret = redacted
	}
	if c.Database.Driver == database.DriverPostgres && c.Database.DSN != "" {
		c.Database.DSN = redactDSN(c.Database.DSN)
	}
	return c
}

// redactDSN masks the password of a URL-style DSN.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), redacted)
	}
	return u.String()
}
