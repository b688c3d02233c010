package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/ManuGH/mediaconv/internal/binresolve"
	"github.com/ManuGH/mediaconv/internal/capabilities"
	"github.com/ManuGH/mediaconv/internal/config"
	"github.com/ManuGH/mediaconv/internal/encoder"
	"github.com/ManuGH/mediaconv/internal/events"
	xglog "github.com/ManuGH/mediaconv/internal/log"
	"github.com/ManuGH/mediaconv/internal/planner"
	"github.com/ManuGH/mediaconv/internal/preset"
	"github.com/ManuGH/mediaconv/internal/probe"
	"github.com/ManuGH/mediaconv/internal/runner"
	"github.com/ManuGH/mediaconv/internal/scheduler"
	"github.com/ManuGH/mediaconv/internal/telemetry"
	"github.com/ManuGH/mediaconv/internal/validation"
	"github.com/ManuGH/mediaconv/internal/version"
)

// detectTimeout bounds capability detection at startup.
const detectTimeout = 15 * time.Second

// app is the wired object graph for one CLI invocation.
type app struct {
	cfg       config.AppConfig
	loader    *config.Loader
	catalog   *preset.Catalog
	detector  *capabilities.Detector
	bus       *events.Bus
	runner    *runner.Runner
	scheduler *scheduler.Scheduler
	tracing   *telemetry.Provider
}

// loadConfig loads the configuration and configures logging to stderr.
func loadConfig(path string, stderr io.Writer) (config.AppConfig, *config.Loader, error) {
	xglog.Configure(xglog.Config{Level: "info", Output: stderr, Service: config.DefaultLogService, Version: version.Version})

	loader := config.NewLoader(path, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		return cfg, nil, err
	}
	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Output:  stderr,
		Service: cfg.LogService,
		Version: cfg.Version,
	})
	return cfg, loader, nil
}

func resolverOptions(cfg config.AppConfig, override string) binresolve.Options {
	opts := binresolve.Options{Override: override, DevDir: cfg.FFmpeg.DevDir}
	if cfg.FFmpeg.PackagedDir != "" {
		opts.PackagedDirs = []string{cfg.FFmpeg.PackagedDir}
	}
	return opts
}

func newDetector(cfg config.AppConfig) (*capabilities.Detector, error) {
	res, err := binresolve.New(binresolve.FFmpeg, resolverOptions(cfg, cfg.FFmpeg.Bin)).Resolve()
	if err != nil {
		return nil, err
	}
	return capabilities.NewDetector(res.Path, cfg.Capabilities.CachePath), nil
}

// newApp wires the conversion pipeline. Capability detection failures are
// logged; planning then proceeds without a snapshot.
func newApp(ctx context.Context, cfg config.AppConfig, loader *config.Loader) (*app, error) {
	logger := xglog.WithComponent("cli")

	tracing, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: cfg.Version,
		Exporter:       cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	catalog, err := preset.LoadCatalog(cfg.Presets.File)
	if err != nil {
		return nil, fmt.Errorf("presets: %w", err)
	}

	strategy, err := encoder.New(encoder.Kind(cfg.Encoder.Strategy))
	if err != nil {
		return nil, err
	}

	opts := []planner.Option{}
	detector, err := newDetector(cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("ffmpeg not resolved; capability detection skipped")
	} else {
		dctx, cancel := context.WithTimeout(ctx, detectTimeout)
		if _, err := detector.Load(dctx); err != nil {
			logger.Warn().Err(err).Msg("capability detection failed; planning without a snapshot")
		}
		cancel()
		opts = append(opts, planner.WithCapabilities(detector))
	}

	bus := events.NewBus(events.DefaultBuffer)
	r := runner.New(
		binresolve.New(binresolve.FFmpeg, resolverOptions(cfg, cfg.FFmpeg.Bin)),
		bus,
		runner.WithLogLines(cfg.Scheduler.LogLines),
		runner.WithKillGrace(cfg.FFmpeg.KillGrace),
	)

	// The concurrency check asks the scheduler that owns it.
	var sched *scheduler.Scheduler
	gate := validation.GateFunc(func(exclude string) validation.Occupancy {
		return sched.Occupancy(exclude)
	})
	sched = scheduler.New(scheduler.Config{
		Concurrency: cfg.Scheduler.Concurrency,
		Retention:   cfg.Scheduler.Retention,
		LogLines:    cfg.Scheduler.LogLines,
	}, scheduler.Deps{
		Catalog:   catalog,
		Prober:    probe.New(binresolve.New(binresolve.FFprobe, resolverOptions(cfg, cfg.FFmpeg.ProbeBin))),
		Planner:   planner.New(catalog, strategy, opts...),
		Executor:  scheduler.RunnerExecutor{Runner: r},
		Validator: validation.Default(gate),
		Bus:       bus,
	})

	return &app{
		cfg:       cfg,
		loader:    loader,
		catalog:   catalog,
		detector:  detector,
		bus:       bus,
		runner:    r,
		scheduler: sched,
		tracing:   tracing,
	}, nil
}

// watchConfig applies reloaded concurrency limits until ctx is done.
func (a *app) watchConfig(ctx context.Context) (stop func(), err error) {
	holder := config.NewHolder(a.cfg, a.loader)
	updates := make(chan config.AppConfig, 1)
	holder.RegisterListener(updates)
	if err := holder.StartWatcher(ctx); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case cfg := <-updates:
				a.scheduler.SetConcurrency(cfg.Scheduler.Concurrency)
			}
		}
	}()
	return func() {
		holder.Stop()
		<-done
	}, nil
}

func (a *app) close(ctx context.Context) {
	logger := xglog.WithComponent("cli")
	if err := a.scheduler.Close(ctx); err != nil {
		logger.Warn().Err(err).Msg("scheduler did not stop in time")
	}
	a.bus.Close()
	if err := a.tracing.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("telemetry shutdown failed")
	}
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}
