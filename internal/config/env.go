// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/mediaconv/internal/log"
)

// EnvPrefix prefixes every environment key.
const EnvPrefix = "MEDIACONV_"

// Environment keys.
const (
	EnvLogLevel          = EnvPrefix + "LOG_LEVEL"
	EnvLogFormat         = EnvPrefix + "LOG_FORMAT"
	EnvLogService        = EnvPrefix + "LOG_SERVICE"
	EnvFFmpegBin         = EnvPrefix + "FFMPEG_BIN"
	EnvFFprobeBin        = EnvPrefix + "FFPROBE_BIN"
	EnvFFmpegDevDir      = EnvPrefix + "FFMPEG_DEV_DIR"
	EnvFFmpegPackagedDir = EnvPrefix + "FFMPEG_PACKAGED_DIR"
	EnvKillGrace         = EnvPrefix + "KILL_GRACE"
	EnvConcurrency       = EnvPrefix + "CONCURRENCY"
	EnvRetention         = EnvPrefix + "RETENTION"
	EnvLogLines          = EnvPrefix + "LOG_LINES"
	EnvEncoderStrategy   = EnvPrefix + "ENCODER_STRATEGY"
	EnvCapabilitiesCache = EnvPrefix + "CAPABILITIES_CACHE"
	EnvPresetsFile       = EnvPrefix + "PRESETS_FILE"
	EnvTelemetryEnabled  = EnvPrefix + "TELEMETRY_ENABLED"
	EnvTelemetryExporter = EnvPrefix + "TELEMETRY_EXPORTER"
	EnvTelemetryEndpoint = EnvPrefix + "TELEMETRY_ENDPOINT"
	EnvTelemetrySampling = EnvPrefix + "TELEMETRY_SAMPLING_RATE"
	EnvMetricsTextfile   = EnvPrefix + "METRICS_TEXTFILE"
)

// ParseString reads a string from environment variable or returns default value.
func ParseString(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		logSource(key, "environment")
		return value
	}
	return defaultValue
}

// ParseInt reads an integer from environment variable or returns default value.
// It falls back to default on parse errors.
func ParseInt(key string, defaultValue int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		warnInvalid(key, v, "integer")
		return defaultValue
	}
	logSource(key, "environment")
	return i
}

// ParseDuration reads a duration in Go format (e.g. "5s").
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		warnInvalid(key, v, "duration")
		return defaultValue
	}
	logSource(key, "environment")
	return d
}

// ParseBool accepts the strconv.ParseBool spellings plus yes/no and on/off.
func ParseBool(key string, defaultValue bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "on":
		logSource(key, "environment")
		return true
	case "no", "off":
		logSource(key, "environment")
		return false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		warnInvalid(key, v, "boolean")
		return defaultValue
	}
	logSource(key, "environment")
	return b
}

// ParseFloat reads a float from environment variable or returns default value.
func ParseFloat(key string, defaultValue float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		warnInvalid(key, v, "float")
		return defaultValue
	}
	logSource(key, "environment")
	return f
}

func logger() zerolog.Logger {
	return log.WithComponent("config")
}

func logSource(key, source string) {
	l := logger()
	l.Debug().Str("key", key).Str("source", source).Msg("using environment variable")
}

func warnInvalid(key, value, kind string) {
	l := logger()
	l.Warn().
		Str("key", key).
		Str("value", value).
		Msgf("invalid %s in environment variable, using default", kind)
}
