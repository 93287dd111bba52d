package ingest

import (
	"time"

	"github.com/jonesrussell/ddharvester/internal/frontier"
	"github.com/jonesrussell/ddharvester/internal/telemetry"
)

// Default pipeline settings.
const (
	DefaultSubreddit           = "Superstonk"
	DefaultDupStreakLimit      = 2500
	DefaultHubSearchLimit      = 200
	DefaultHubCommentSort      = "best"
	DefaultHubTopLevelComments = 75
	DefaultHubReplyDepth       = 1
	DefaultHubRepliesPerTop    = 20
)

// DefaultFlairs are the labels scanned in the flair phase.
var DefaultFlairs = []string{"📚 Due Diligence", "📚 Possible DD"}

// DefaultHubQueries surface index and compilation posts.
var DefaultHubQueries = []string{
	`("DD" AND ("library" OR "compilation" OR "directory" OR "index"))`,
	`"A Comprehensive Compilation of All Due Diligence"`,
	`"Daily Directory" ("DD Library" OR "Library of Due Diligence")`,
	`"Due Diligence" "LIBRARY"`,
	`"library of DD"`,
	`"gme.fyi"`,
	`"fliphtml5" "bookcase"`,
}

// Config holds pipeline settings.
type Config struct {
	Subreddit           string        `mapstructure:"subreddit"             yaml:"subreddit"`
	Flairs              []string      `mapstructure:"flairs"                yaml:"flairs"`
	HubQueries          []string      `mapstructure:"hub_queries"           yaml:"hub_queries"`
	MaxDepth            int           `mapstructure:"max_depth"             yaml:"max_depth"`
	BatchSize           int           `mapstructure:"batch_size"            yaml:"batch_size"`
	DupStreakLimit      int           `mapstructure:"dup_streak_limit"      yaml:"dup_streak_limit"`
	HubSearchLimit      int           `mapstructure:"hub_search_limit"      yaml:"hub_search_limit"`
	HubCommentSort      string        `mapstructure:"hub_comment_sort"      yaml:"hub_comment_sort"`
	HubTopLevelComments int           `mapstructure:"hub_top_level_comments" yaml:"hub_top_level_comments"`
	HubReplyDepth       int           `mapstructure:"hub_reply_depth"       yaml:"hub_reply_depth"`
	HubRepliesPerTop    int           `mapstructure:"hub_replies_per_top"   yaml:"hub_replies_per_top"`
	HeartbeatInterval   time.Duration `mapstructure:"heartbeat_interval"    yaml:"heartbeat_interval"`
}

// WithDefaults returns a copy of the config with zero values replaced by defaults.
func (c Config) WithDefaults() Config {
	if c.Subreddit == "" {
		c.Subreddit = DefaultSubreddit
	}
	if len(c.Flairs) == 0 {
		c.Flairs = DefaultFlairs
	}
	if len(c.HubQueries) == 0 {
		c.HubQueries = DefaultHubQueries
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = frontier.DefaultMaxDepth
	}
	if c.BatchSize <= 0 {
		c.BatchSize = frontier.DefaultBatchSize
	}
	if c.DupStreakLimit <= 0 {
		c.DupStreakLimit = DefaultDupStreakLimit
	}
	if c.HubSearchLimit <= 0 {
		c.HubSearchLimit = DefaultHubSearchLimit
	}
	if c.HubCommentSort == "" {
		c.HubCommentSort = DefaultHubCommentSort
	}
	if c.HubTopLevelComments <= 0 {
		c.HubTopLevelComments = DefaultHubTopLevelComments
	}
	if c.HubReplyDepth <= 0 {
		c.HubReplyDepth = DefaultHubReplyDepth
	}
	if c.HubRepliesPerTop <= 0 {
		c.HubRepliesPerTop = DefaultHubRepliesPerTop
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = telemetry.DefaultHeartbeatInterval
	}
	return c
}

func (c Config) frontier() frontier.Config {
	return frontier.Config{MaxDepth: c.MaxDepth, BatchSize: c.BatchSize}
}
