// Package common provides shared wiring for command implementations.
package common

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/ddharvester/internal/config"
	"github.com/jonesrussell/ddharvester/internal/database"
	"github.com/jonesrussell/ddharvester/internal/logger"
	"github.com/jonesrussell/ddharvester/internal/source/reddit"
)

// Global flags, set by the root command.
var (
	// ConfigFile is the explicit config path, empty for the default lookup.
	ConfigFile string
	// Verbose forces debug logging.
	Verbose bool
)

// FlagBinding maps a command flag onto a config key.
type FlagBinding struct {
	Flag string
	Key  string
}

// CommandDeps holds the dependencies shared by all commands.
type CommandDeps struct {
	Logger logger.Logger
	Config *config.Config
}

// NewCommandDeps loads the configuration, applies the flags of cmd listed in
// bindings and builds the logger.
func NewCommandDeps(cmd *cobra.Command, bindings ...FlagBinding) (*CommandDeps, error) {
	v, err := config.New(ConfigFile)
	if err != nil {
		return nil, err
	}
	if err = config.ReadFile(v, ConfigFile); err != nil {
		return nil, err
	}

	for _, b := range bindings {
		flag := cmd.Flags().Lookup(b.Flag)
		if flag == nil {
			return nil, fmt.Errorf("unknown flag %q", b.Flag)
		}
		if err = v.BindPFlag(b.Key, flag); err != nil {
			return nil, fmt.Errorf("failed to bind %s flag: %w", b.Flag, err)
		}
	}
	if Verbose {
		v.Set("logging.level", "debug")
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	log = log.With(logger.String("app", cfg.App.Name))

	return &CommandDeps{Logger: log, Config: cfg}, nil
}

// OpenStore connects to the configured database and applies the schema.
func (d *CommandDeps) OpenStore(ctx context.Context) (*database.Store, error) {
	db, err := database.Open(ctx, d.Config.Database)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	d.Logger.Debug("Database ready",
		logger.String("driver", d.Config.Database.Driver),
	)
	return database.NewStore(db), nil
}

// NewSource builds the authenticated forum client.
func (d *CommandDeps) NewSource() (*reddit.Client, error) {
	if err := d.Config.RequireCredentials(); err != nil {
		return nil, err
	}
	return reddit.New(d.Config.Reddit, d.Logger)
}

// Close flushes the logger.
func (d *CommandDeps) Close() {
	_ = d.Logger.Sync()
}
