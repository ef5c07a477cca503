package config

import (
	"fmt"
	"strings"

	"github.com/pion/logging"
)

var logLevels = map[string]logging.LogLevel{
	"disabled": logging.LogLevelDisabled,
	"error":    logging.LogLevelError,
	"warn":     logging.LogLevelWarn,
	"info":     logging.LogLevelInfo,
	"debug":    logging.LogLevelDebug,
	"trace":    logging.LogLevelTrace,
}

// ParseLogLevel parses a level name, case-insensitively.
func ParseLogLevel(name string) (logging.LogLevel, error) {
	level, ok := logLevels[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}

// LoggerFactory returns a logger factory writing at the configured level.
func (c *Config) LoggerFactory() logging.LoggerFactory {
	f := logging.NewDefaultLoggerFactory()
	if level, err := ParseLogLevel(c.LogLevel); err == nil {
		f.DefaultLogLevel = level
	}
	return f
}
