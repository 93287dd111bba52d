package logger

// Output formats.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Default configuration values.
const (
	DefaultLevel  = "info"
	DefaultFormat = FormatConsole
)

// Config represents the logger configuration.
type Config struct {
	// Level is the minimum logging level (debug, info, warn, error).
	Level string `mapstructure:"level" yaml:"level"`
	// Format is either "console" or "json".
	Format string `mapstructure:"format" yaml:"format"`
	// File is an optional path that receives a copy of every entry.
	File string `mapstructure:"file" yaml:"file"`
}

// SetDefaults applies default values to the config if not set.
func (c *Config) SetDefaults() {
	if c.Level == "" {
		c.Level = DefaultLevel
	}
	if c.Format != FormatJSON {
		c.Format = DefaultFormat
	}
}
