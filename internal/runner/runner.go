// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package runner executes planned ffmpeg commands, streams their diagnostic
// output as events and commits the output file atomically.
package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ManuGH/mediaconv/internal/binresolve"
	"github.com/ManuGH/mediaconv/internal/events"
	"github.com/ManuGH/mediaconv/internal/joberr"
	"github.com/ManuGH/mediaconv/internal/linering"
	xglog "github.com/ManuGH/mediaconv/internal/log"
	"github.com/ManuGH/mediaconv/internal/metrics"
	"github.com/ManuGH/mediaconv/internal/procgroup"
	"github.com/ManuGH/mediaconv/internal/telemetry"
)

// EngineResolver locates the ffmpeg binary.
type EngineResolver interface {
	Resolve() (binresolve.Resolution, error)
}

// Publisher receives job events.
type Publisher interface {
	Publish(events.Event)
}

// Request is one process execution. The last Args token is the final
// output path unless OutputPath is set.
type Request struct {
	JobID      string
	PresetID   string
	Tier       string
	Args       []string
	OutputPath string
}

// Runner starts engine processes and tracks the live ones by job id.
type Runner struct {
	resolver EngineResolver
	pub      Publisher
	logLines int
	grace    time.Duration
	tracer   trace.Tracer
	logger   zerolog.Logger

	mu    sync.Mutex
	procs map[string]*process
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogLines sets how many diagnostic lines are retained per process.
func WithLogLines(n int) Option {
	return func(r *Runner) { r.logLines = n }
}

// WithKillGrace sets the SIGTERM to SIGKILL delay used by Cancel.
func WithKillGrace(d time.Duration) Option {
	return func(r *Runner) { r.grace = d }
}

// WithTracer overrides the tracer used for process spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) { r.tracer = t }
}

// New returns a Runner. pub may be nil.
func New(resolver EngineResolver, pub Publisher, opts ...Option) *Runner {
	r := &Runner{
		resolver: resolver,
		pub:      pub,
		logLines: linering.DefaultCapacity,
		grace:    procgroup.DefaultGrace,
		tracer:   telemetry.Tracer("mediaconv/runner"),
		logger:   xglog.WithComponent("runner"),
		procs:    make(map[string]*process),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type process struct {
	jobID     string
	cmd       *exec.Cmd
	pending   *renameio.PendingFile
	final     string
	ring      *linering.Ring
	cancelled atomic.Bool
	exited    chan struct{}
	done      chan struct{}
	result    events.Completion
	started   time.Time
	span      trace.Span
	logger    zerolog.Logger
}

// Execution is a started process.
type Execution struct {
	p *process
}

// PID returns the engine process id.
func (e *Execution) PID() int { return e.p.cmd.Process.Pid }

// TempPath returns the path the engine is writing to.
func (e *Execution) TempPath() string { return e.p.pending.Name() }

// Done is closed once the completion event has been published.
func (e *Execution) Done() <-chan struct{} { return e.p.done }

// Wait blocks until the process finished and returns its completion.
func (e *Execution) Wait() events.Completion {
	<-e.p.done
	return e.p.result
}

// Start spawns the engine for req. Errors carry joberr codes:
// CodeAlreadyRunning, CodeInvalidArgs, CodeEngineNotFound,
// CodeOutputPrepare or CodeSpawnFailed. Cancelling ctx cancels the process.
func (r *Runner) Start(ctx context.Context, req Request) (*Execution, error) {
	logger := xglog.WithContext(xglog.ContextWithJobID(ctx, req.JobID), r.logger)

	if len(req.Args) == 0 {
		metrics.IncRunnerStart("invalid_args")
		return nil, joberr.New(joberr.CodeInvalidArgs, "no ffmpeg arguments")
	}
	final := req.OutputPath
	if final == "" {
		final = req.Args[len(req.Args)-1]
	}

	if !r.reserve(req.JobID) {
		metrics.IncRunnerStart("already_running")
		return nil, joberr.Newf(joberr.CodeAlreadyRunning, "job %s already has a running process", req.JobID)
	}
	started := false
	defer func() {
		if !started {
			r.release(req.JobID)
		}
	}()

	bin, err := r.resolver.Resolve()
	if err != nil {
		metrics.IncRunnerStart("not_found")
		if joberr.CodeOf(err) == joberr.CodeEngineNotFound {
			return nil, err
		}
		return nil, joberr.Wrap(joberr.CodeEngineNotFound, "resolve ffmpeg", err)
	}

	pending, err := renameio.NewPendingFile(final,
		renameio.WithTempDir(filepath.Dir(final)),
		renameio.WithPermissions(0o644),
		renameio.WithExistingPermissions(),
	)
	if err != nil {
		metrics.IncRunnerStart("output_prepare")
		return nil, joberr.Wrap(joberr.CodeOutputPrepare, fmt.Sprintf("create temp output for %s", final), err)
	}

	args := rewriteOutput(req.Args, pending.Name())

	_, span := r.tracer.Start(ctx, "runner.run", trace.WithAttributes(
		telemetry.JobAttributes(req.JobID, req.PresetID, req.Tier)...,
	))

	// stdin and stdout stay on the null device.
	cmd := exec.Command(bin.Path, args...) // #nosec G204 -- binary is resolved from trusted locations; args come from the planner
	procgroup.Set(cmd)
	stderr, err := cmd.StderrPipe()
	if err == nil {
		err = cmd.Start()
	}
	if err != nil {
		_ = pending.Cleanup()
		metrics.IncRunnerStart("spawn_failed")
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(telemetry.ErrorAttributes(err, string(joberr.CodeSpawnFailed))...)
		span.End()
		return nil, joberr.Wrap(joberr.CodeSpawnFailed, "start ffmpeg", err)
	}
	metrics.IncRunnerStart("ok")

	p := &process{
		jobID:   req.JobID,
		cmd:     cmd,
		pending: pending,
		final:   final,
		ring:    linering.New(r.logLines),
		exited:  make(chan struct{}),
		done:    make(chan struct{}),
		started: time.Now(),
		span:    span,
		logger:  logger,
	}
	span.SetAttributes(telemetry.ProcessAttributes(cmd.Process.Pid)...)

	r.mu.Lock()
	r.procs[req.JobID] = p
	r.mu.Unlock()
	started = true

	logger.Info().
		Str(xglog.FieldBinary, bin.Path).
		Str("binary_source", string(bin.Source)).
		Int(xglog.FieldPID, cmd.Process.Pid).
		Str(xglog.FieldTempPath, pending.Name()).
		Str(xglog.FieldFinalPath, final).
		Msg("ffmpeg started")

	go r.watchContext(ctx, p)
	go r.monitor(p, stderr)
	return &Execution{p: p}, nil
}

// reserve claims jobID until the process is registered or released.
func (r *Runner) reserve(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.procs[jobID]; busy {
		return false
	}
	r.procs[jobID] = nil
	return true
}

func (r *Runner) release(jobID string) {
	r.mu.Lock()
	delete(r.procs, jobID)
	r.mu.Unlock()
}

// rewriteOutput replaces the final token with tmp and makes sure the engine
// may overwrite it.
func rewriteOutput(args []string, tmp string) []string {
	out := make([]string, 0, len(args)+1)
	hasOverwrite := false
	for _, a := range args[:len(args)-1] {
		if a == "-y" {
			hasOverwrite = true
		}
		out = append(out, a)
	}
	if !hasOverwrite {
		out = append([]string{"-y"}, out...)
	}
	return append(out, tmp)
}

func (r *Runner) watchContext(ctx context.Context, p *process) {
	select {
	case <-ctx.Done():
		r.cancel(p)
	case <-p.exited:
	}
}

// Cancel marks the job's process cancelled and stops its process group.
// It reports whether a live process was found.
func (r *Runner) Cancel(jobID string) bool {
	r.mu.Lock()
	p := r.procs[jobID]
	r.mu.Unlock()
	if p == nil {
		return false
	}
	r.cancel(p)
	return true
}

func (r *Runner) cancel(p *process) {
	if !p.cancelled.CompareAndSwap(false, true) {
		return
	}
	p.logger.Info().Int(xglog.FieldPID, p.cmd.Process.Pid).Msg("cancelling ffmpeg")
	go procgroup.Terminate(p.cmd, p.exited, r.grace)
}

// CancelAll cancels every live process.
func (r *Runner) CancelAll() int {
	r.mu.Lock()
	live := make([]*process, 0, len(r.procs))
	for _, p := range r.procs {
		if p != nil {
			live = append(live, p)
		}
	}
	r.mu.Unlock()
	for _, p := range live {
		r.cancel(p)
	}
	return len(live)
}

// Running reports whether jobID has a live process.
func (r *Runner) Running(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.procs[jobID] != nil
}

// Active returns the number of live processes.
func (r *Runner) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}

func (r *Runner) monitor(p *process, stderr io.Reader) {
	defer close(p.done)

	sample := rate.Sometimes{Interval: 2 * time.Second}
	var parser progressParser

	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanLinesCR)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		p.ring.Push(line)
		r.publish(events.NewLog(p.jobID, line))

		if prog, ok := parser.Feed(line); ok {
			r.publish(events.NewProgress(p.jobID, line, prog))
			sample.Do(func() {
				ev := p.logger.Debug()
				if prog.ProcessedSec != nil {
					ev = ev.Float64("processed_sec", *prog.ProcessedSec)
				}
				if prog.FPS != nil {
					ev = ev.Float64(xglog.FieldFPS, *prog.FPS)
				}
				if prog.Speed != nil {
					ev = ev.Float64(xglog.FieldSpeed, *prog.Speed)
				}
				ev.Msg("ffmpeg progress")
			})
		}
	}
	if err := scanner.Err(); err != nil {
		p.logger.Warn().Err(err).Msg("stderr read failed")
		// Keep the pipe drained so the engine cannot block on a full buffer.
		_, _ = io.Copy(io.Discard, stderr)
	}

	waitErr := p.cmd.Wait()
	close(p.exited)

	r.mu.Lock()
	delete(r.procs, p.jobID)
	r.mu.Unlock()

	p.result = r.complete(p, waitErr)
	r.publish(events.NewCompletion(p.jobID, p.result))
}

// complete decides the outcome, commits or discards the output and records
// metrics. Cancellation wins over any exit status.
func (r *Runner) complete(p *process, waitErr error) events.Completion {
	cancelled := p.cancelled.Load()
	state := p.cmd.ProcessState

	c := events.Completion{Cancelled: cancelled}
	exitCode := -1
	if state != nil {
		exitCode = state.ExitCode()
		c.Signal = exitSignal(state)
	}
	if exitCode >= 0 {
		code := exitCode
		c.ExitCode = &code
	}

	var exitErr *exec.ExitError
	switch {
	case cancelled:
		c.Code = joberr.CodeCancelled
		c.Message = "cancelled"
	case waitErr != nil && !errors.As(waitErr, &exitErr):
		c.Code = joberr.CodeWaitFailed
		c.Message = "ffmpeg wait error: " + waitErr.Error()
		p.ring.Push(c.Message)
	case exitCode == 0:
		if err := p.pending.CloseAtomicallyReplace(); err != nil {
			c.Code = joberr.CodeFinalizeFailed
			c.Message = "finalize output: " + err.Error()
			p.ring.Push(c.Message)
		} else {
			c.Success = true
			c.Code = joberr.CodeComplete
		}
	default:
		c.Code = joberr.CodeFailed
		if c.Signal != "" {
			c.Message = "ffmpeg terminated by " + c.Signal
		} else {
			c.Message = exitMessage(exitCode)
		}
		p.ring.Push(c.Message)
	}
	if !c.Success {
		if err := p.pending.Cleanup(); err != nil && !errors.Is(err, os.ErrNotExist) {
			p.logger.Warn().Err(err).Str(xglog.FieldTempPath, p.pending.Name()).Msg("temp output cleanup failed")
		}
	}
	c.Logs = p.ring.Lines()

	outcome := outcomeLabel(c)
	elapsed := time.Since(p.started)
	metrics.ObserveRunnerExit(outcome, exitCode, elapsed.Seconds())

	p.span.SetAttributes(telemetry.ExitAttributes(exitCode, cancelled, outcome)...)
	if !c.Success && !cancelled {
		p.span.SetStatus(codes.Error, c.Message)
		p.span.SetAttributes(telemetry.ErrorAttributes(nil, string(c.Code))...)
	}
	p.span.End()

	ev := p.logger.Info()
	if !c.Success && !cancelled {
		ev = p.logger.Warn().Strs("stderr", p.ring.LastN(10))
	}
	ev.Int(xglog.FieldExitCode, exitCode).
		Str(xglog.FieldSignal, c.Signal).
		Str(xglog.FieldCode, string(c.Code)).
		Dur("elapsed", elapsed).
		Msg("ffmpeg exited")
	return c
}

func outcomeLabel(c events.Completion) string {
	switch {
	case c.Cancelled:
		return "cancelled"
	case c.Success:
		return "success"
	case c.Code == joberr.CodeFinalizeFailed:
		return "finalize_failed"
	case c.Code == joberr.CodeWaitFailed:
		return "wait_failed"
	default:
		return "failed"
	}
}

func (r *Runner) publish(ev events.Event) {
	if r.pub != nil {
		r.pub.Publish(ev)
	}
}

// scanLinesCR splits on '\n' or '\r' so carriage-return progress updates
// become separate lines.
func scanLinesCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
