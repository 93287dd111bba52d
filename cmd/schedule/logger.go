package schedule

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/ddharvester/internal/logger"
)

// CronLogger adapts logger.Logger to cron.Logger.
type CronLogger struct {
	log logger.Logger
}

var _ cron.Logger = (*CronLogger)(nil)

// NewCronLogger wraps log.
func NewCronLogger(log logger.Logger) *CronLogger {
	return &CronLogger{log: log.With(logger.String("component", "scheduler"))}
}

// Info logs routine scheduler messages at debug level.
func (l *CronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, fields(keysAndValues)...)
}

// Error logs scheduler failures, including recovered panics.
func (l *CronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(fields(keysAndValues), logger.Error(err))...)
}

func fields(keysAndValues []any) []logger.Field {
	out := make([]logger.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		out = append(out, logger.Any(key, keysAndValues[i+1]))
	}
	return out
}
