// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "json"
	DefaultLogService   = "mediaconv"
	DefaultDevDir       = "bin"
	DefaultKillGrace    = 5 * time.Second
	DefaultConcurrency  = 2
	DefaultRetention    = 100
	DefaultLogLines     = 500
	DefaultStrategy     = "hardware"
	DefaultExporter     = "grpc"
	DefaultEndpoint     = "localhost:4317"
	DefaultSamplingRate = 1.0
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader. An empty configPath loads
// from the environment and defaults only.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the config file path, or "" when none is used.
func (l *Loader) Path() string { return l.configPath }

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults, then
// validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := mergeFileConfig(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge file config: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel:   DefaultLogLevel,
		LogFormat:  DefaultLogFormat,
		LogService: DefaultLogService,
		FFmpeg: FFmpegConfig{
			DevDir:    DefaultDevDir,
			KillGrace: DefaultKillGrace,
		},
		Scheduler: SchedulerConfig{
			Concurrency: DefaultConcurrency,
			Retention:   DefaultRetention,
			LogLines:    DefaultLogLines,
		},
		Encoder: EncoderConfig{Strategy: DefaultStrategy},
		Telemetry: TelemetryConfig{
			Exporter:     DefaultExporter,
			Endpoint:     DefaultEndpoint,
			SamplingRate: DefaultSamplingRate,
		},
	}
}

// loadFile loads configuration from a YAML file with STRICT parsing.
// Unknown fields cause an error to prevent misconfiguration.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return parseFile(data)
}

func parseFile(data []byte) (*FileConfig, error) {
	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return &fileCfg, nil
}

func mergeFileConfig(dst *AppConfig, src *FileConfig) error {
	setString(&dst.LogLevel, src.LogLevel)
	setString(&dst.LogFormat, src.LogFormat)
	setString(&dst.LogService, src.LogService)

	if f := src.FFmpeg; f != nil {
		setString(&dst.FFmpeg.Bin, f.Bin)
		setString(&dst.FFmpeg.ProbeBin, f.ProbeBin)
		setString(&dst.FFmpeg.DevDir, f.DevDir)
		setString(&dst.FFmpeg.PackagedDir, f.PackagedDir)
		if f.KillGrace != "" {
			d, err := time.ParseDuration(f.KillGrace)
			if err != nil {
				return fmt.Errorf("ffmpeg.killGrace: %w", err)
			}
			dst.FFmpeg.KillGrace = d
		}
	}
	if s := src.Scheduler; s != nil {
		setInt(&dst.Scheduler.Concurrency, s.Concurrency)
		setInt(&dst.Scheduler.Retention, s.Retention)
		setInt(&dst.Scheduler.LogLines, s.LogLines)
	}
	if e := src.Encoder; e != nil {
		setString(&dst.Encoder.Strategy, e.Strategy)
	}
	if c := src.Capabilities; c != nil {
		setString(&dst.Capabilities.CachePath, c.CachePath)
	}
	if p := src.Presets; p != nil {
		setString(&dst.Presets.File, p.File)
	}
	if t := src.Telemetry; t != nil {
		if t.Enabled != nil {
			dst.Telemetry.Enabled = *t.Enabled
		}
		setString(&dst.Telemetry.Exporter, t.Exporter)
		setString(&dst.Telemetry.Endpoint, t.Endpoint)
		if t.SamplingRate != nil {
			dst.Telemetry.SamplingRate = *t.SamplingRate
		}
	}
	if m := src.Metrics; m != nil {
		setString(&dst.Metrics.Textfile, m.Textfile)
	}
	return nil
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.LogLevel = l.envString(EnvLogLevel, cfg.LogLevel)
	cfg.LogFormat = l.envString(EnvLogFormat, cfg.LogFormat)
	cfg.LogService = l.envString(EnvLogService, cfg.LogService)

	cfg.FFmpeg.Bin = l.envString(EnvFFmpegBin, cfg.FFmpeg.Bin)
	cfg.FFmpeg.ProbeBin = l.envString(EnvFFprobeBin, cfg.FFmpeg.ProbeBin)
	cfg.FFmpeg.DevDir = l.envString(EnvFFmpegDevDir, cfg.FFmpeg.DevDir)
	cfg.FFmpeg.PackagedDir = l.envString(EnvFFmpegPackagedDir, cfg.FFmpeg.PackagedDir)
	cfg.FFmpeg.KillGrace = l.envDuration(EnvKillGrace, cfg.FFmpeg.KillGrace)

	cfg.Scheduler.Concurrency = l.envInt(EnvConcurrency, cfg.Scheduler.Concurrency)
	cfg.Scheduler.Retention = l.envInt(EnvRetention, cfg.Scheduler.Retention)
	cfg.Scheduler.LogLines = l.envInt(EnvLogLines, cfg.Scheduler.LogLines)

	cfg.Encoder.Strategy = l.envString(EnvEncoderStrategy, cfg.Encoder.Strategy)
	cfg.Capabilities.CachePath = l.envString(EnvCapabilitiesCache, cfg.Capabilities.CachePath)
	cfg.Presets.File = l.envString(EnvPresetsFile, cfg.Presets.File)

	cfg.Telemetry.Enabled = l.envBool(EnvTelemetryEnabled, cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString(EnvTelemetryExporter, cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString(EnvTelemetryEndpoint, cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat(EnvTelemetrySampling, cfg.Telemetry.SamplingRate)

	cfg.Metrics.Textfile = l.envString(EnvMetricsTextfile, cfg.Metrics.Textfile)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
