// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// AppConfig is the resolved configuration.
type AppConfig struct {
	Version    string
	LogLevel   string
	LogFormat  string
	LogService string

	FFmpeg       FFmpegConfig
	Scheduler    SchedulerConfig
	Encoder      EncoderConfig
	Capabilities CapabilitiesConfig
	Presets      PresetsConfig
	Telemetry    TelemetryConfig
	Metrics      MetricsConfig
}

// FFmpegConfig locates the engine binaries.
type FFmpegConfig struct {
	// Bin and ProbeBin override binary resolution when set.
	Bin         string
	ProbeBin    string
	DevDir      string
	PackagedDir string
	KillGrace   time.Duration
}

type SchedulerConfig struct {
	Concurrency int
	Retention   int
	LogLines    int
}

type EncoderConfig struct {
	// Strategy is "hardware" or "software".
	Strategy string
}

type CapabilitiesConfig struct {
	// CachePath is the JSON snapshot cache. Empty disables caching.
	CachePath string
}

type PresetsConfig struct {
	// File is an optional YAML overlay of per-tier overrides.
	File string
}

type TelemetryConfig struct {
	Enabled      bool
	Exporter     string
	Endpoint     string
	SamplingRate float64
}

type MetricsConfig struct {
	// Textfile receives a Prometheus text dump on exit. Empty disables it.
	Textfile string
}

// FileConfig mirrors the YAML file. Pointer fields distinguish "unset" from
// an explicit zero.
type FileConfig struct {
	LogLevel   string `yaml:"logLevel,omitempty"`
	LogFormat  string `yaml:"logFormat,omitempty"`
	LogService string `yaml:"logService,omitempty"`

	FFmpeg       *FFmpegFile       `yaml:"ffmpeg,omitempty"`
	Scheduler    *SchedulerFile    `yaml:"scheduler,omitempty"`
	Encoder      *EncoderFile      `yaml:"encoder,omitempty"`
	Capabilities *CapabilitiesFile `yaml:"capabilities,omitempty"`
	Presets      *PresetsFile      `yaml:"presets,omitempty"`
	Telemetry    *TelemetryFile    `yaml:"telemetry,omitempty"`
	Metrics      *MetricsFile      `yaml:"metrics,omitempty"`
}

type FFmpegFile struct {
	Bin         string `yaml:"bin,omitempty"`
	ProbeBin    string `yaml:"probeBin,omitempty"`
	DevDir      string `yaml:"devDir,omitempty"`
	PackagedDir string `yaml:"packagedDir,omitempty"`
	KillGrace   string `yaml:"killGrace,omitempty"`
}

type SchedulerFile struct {
	Concurrency *int `yaml:"concurrency,omitempty"`
	Retention   *int `yaml:"retention,omitempty"`
	LogLines    *int `yaml:"logLines,omitempty"`
}

type EncoderFile struct {
	Strategy string `yaml:"strategy,omitempty"`
}

type CapabilitiesFile struct {
	CachePath string `yaml:"cachePath,omitempty"`
}

type PresetsFile struct {
	File string `yaml:"file,omitempty"`
}

type TelemetryFile struct {
	Enabled      *bool    `yaml:"enabled,omitempty"`
	Exporter     string   `yaml:"exporter,omitempty"`
	Endpoint     string   `yaml:"endpoint,omitempty"`
	SamplingRate *float64 `yaml:"samplingRate,omitempty"`
}

type MetricsFile struct {
	Textfile string `yaml:"textfile,omitempty"`
}
