// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/ManuGH/mediaconv/internal/validate"
)

// Limits enforced by Validate.
const (
	MaxConcurrency = 64
	MaxLogLines    = 100000
	MaxKillGrace   = 5 * time.Minute
)

// Validate reports every invalid field at once.
func Validate(cfg AppConfig) error {
	v := validate.New()

	if _, err := validate.ParseLogLevel(cfg.LogLevel); err != nil {
		v.AddError("logLevel", validate.ErrInvalidLogLevel.Message, cfg.LogLevel)
	}
	v.OneOf("logFormat", cfg.LogFormat, []string{"json", "console"})
	v.NotEmpty("logService", cfg.LogService)

	v.Executable("ffmpeg.bin", cfg.FFmpeg.Bin)
	v.Executable("ffmpeg.probeBin", cfg.FFmpeg.ProbeBin)
	v.DurationRange("ffmpeg.killGrace", cfg.FFmpeg.KillGrace, 0, MaxKillGrace)

	v.Range("scheduler.concurrency", cfg.Scheduler.Concurrency, 1, MaxConcurrency)
	v.Positive("scheduler.retention", cfg.Scheduler.Retention)
	v.Range("scheduler.logLines", cfg.Scheduler.LogLines, 1, MaxLogLines)

	v.OneOf("encoder.strategy", cfg.Encoder.Strategy, []string{"hardware", "software"})
	v.ParentDirectory("capabilities.cachePath", cfg.Capabilities.CachePath)
	v.File("presets.file", cfg.Presets.File)

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
	}
	v.FloatRange("telemetry.samplingRate", cfg.Telemetry.SamplingRate, 0, 1)

	v.ParentDirectory("metrics.textfile", cfg.Metrics.Textfile)

	return v.Err()
}
