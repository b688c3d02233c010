package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ManuGH/mediaconv/internal/events"
	"github.com/ManuGH/mediaconv/internal/job"
	"github.com/ManuGH/mediaconv/internal/joberr"
	xglog "github.com/ManuGH/mediaconv/internal/log"
	"github.com/ManuGH/mediaconv/internal/metrics"
	"github.com/ManuGH/mediaconv/internal/preset"
	"github.com/ManuGH/mediaconv/internal/scheduler"
)

// shutdownTimeout bounds cancellation and process teardown on exit.
const shutdownTimeout = 30 * time.Second

func runConvert(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("mediaconv", stderr)
	configPath := fs.String("config", "", "path to config file (YAML)")
	presetID := fs.String("preset", "", "preset id, see 'mediaconv presets'")
	tier := fs.String("tier", string(preset.TierBalanced), "quality tier: fast, balanced or high")
	outDir := fs.String("out", "", "output directory (default: next to each input)")
	concurrency := fs.Int("concurrency", 0, "override scheduler.concurrency")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	inputs := fs.Args()
	if *presetID == "" || len(inputs) == 0 {
		_, _ = fmt.Fprintln(stderr, "Error: -preset and at least one input are required")
		fs.Usage()
		return exitUsage
	}
	t, err := preset.ParseTier(*tier)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	cfg, loader, err := loadConfig(*configPath, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return exitError
	}
	if *concurrency > 0 {
		cfg.Scheduler.Concurrency = *concurrency
	}
	logger := xglog.WithComponent("cli")

	a, err := newApp(ctx, cfg, loader)
	if err != nil {
		logger.Error().Err(err).Msg("setup failed")
		return exitError
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.close(sctx)
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Warn().Err(err).Msg("metrics textfile not written")
		}
	}()

	wctx, stopWatch := context.WithCancel(ctx)
	stopWatcher, err := a.watchConfig(wctx)
	if err != nil {
		logger.Warn().Err(err).Msg("config watcher not started")
	}
	defer func() {
		stopWatch()
		if stopWatcher != nil {
			stopWatcher()
		}
	}()

	sub := a.scheduler.SubscribeAll()
	var printer sync.WaitGroup
	printer.Add(1)
	go func() {
		defer printer.Done()
		printCompletions(stdout, sub)
	}()

	ids, err := a.scheduler.Enqueue(scheduler.EnqueueRequest{
		Sources:   inputs,
		PresetID:  *presetID,
		Tier:      t,
		OutputDir: *outDir,
	})
	if err != nil {
		sub.Close()
		printer.Wait()
		_, _ = fmt.Fprintf(stderr, "Error: %s\n", joberr.MessageOf(err))
		if joberr.CodeOf(err) == joberr.CodeUnknownPreset {
			return exitUsage
		}
		return exitError
	}
	for a.scheduler.StartNext() {
	}

	waitErr := a.scheduler.Wait(ctx)
	if waitErr != nil {
		logger.Warn().Msg("interrupted; cancelling jobs")
		a.scheduler.CancelAll()
	}
	sub.Close()
	printer.Wait()

	return summarize(stdout, a.scheduler, ids, waitErr)
}

func printCompletions(w io.Writer, sub *events.Subscription) {
	for ev := range sub.C {
		if ev.Kind != events.KindCompletion || ev.Completion == nil {
			continue
		}
		c := ev.Completion
		switch {
		case c.Success:
			_, _ = fmt.Fprintf(w, "%s finished\n", ev.JobID)
		case c.Cancelled:
			_, _ = fmt.Fprintf(w, "%s cancelled\n", ev.JobID)
		default:
			_, _ = fmt.Fprintf(w, "%s failed (%s): %s\n", ev.JobID, c.Code, c.Message)
		}
	}
}

// summarize prints one line per job and returns the exit code.
func summarize(w io.Writer, s *scheduler.Scheduler, ids []string, waitErr error) int {
	code := exitOK
	for _, id := range ids {
		rec, ok := s.Get(id)
		if !ok {
			code = exitError
			continue
		}
		switch st := rec.State.(type) {
		case job.Completed:
			_, _ = fmt.Fprintf(w, "ok      %s -> %s\n", rec.SourcePath, st.OutputPath)
		case job.Failed:
			code = exitError
			_, _ = fmt.Fprintf(w, "failed  %s: %s\n", rec.SourcePath, st.Message)
		default:
			code = exitError
			_, _ = fmt.Fprintf(w, "%-7s %s\n", rec.Tag(), rec.SourcePath)
		}
	}
	if errors.Is(waitErr, context.Canceled) {
		code = exitError
	}
	return code
}
