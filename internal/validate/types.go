// SPDX-License-Identifier: MIT
package validate

import (
	"slices"
	"strings"
)

// LogLevel is a level name accepted by the logger configuration.
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevels = []LogLevel{LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError}

// ErrInvalidLogLevel is returned by ParseLogLevel.
var ErrInvalidLogLevel = &Error{
	Field:   "logLevel",
	Message: "unknown log level, want one of trace, debug, info, warn or error",
}

// ParseLogLevel folds case and surrounding space before matching.
func ParseLogLevel(s string) (LogLevel, error) {
	l := LogLevel(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(logLevels, l) {
		return "", ErrInvalidLogLevel
	}
	return l, nil
}
