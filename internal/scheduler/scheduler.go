// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package scheduler owns the job arena and the FIFO queue and decides when a
// queued job may start.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/mediaconv/internal/events"
	"github.com/ManuGH/mediaconv/internal/job"
	"github.com/ManuGH/mediaconv/internal/joberr"
	"github.com/ManuGH/mediaconv/internal/linering"
	xglog "github.com/ManuGH/mediaconv/internal/log"
	"github.com/ManuGH/mediaconv/internal/media"
	"github.com/ManuGH/mediaconv/internal/metrics"
	"github.com/ManuGH/mediaconv/internal/planner"
	"github.com/ManuGH/mediaconv/internal/preset"
	"github.com/ManuGH/mediaconv/internal/validation"
)

// DefaultRetention is the number of terminal records kept when Config leaves
// it unset.
const DefaultRetention = 100

var (
	ErrNotFound  = errors.New("job not found")
	ErrNotQueued = errors.New("job is not queued")
)

// Planner builds the engine command for a probed job.
type Planner interface {
	Plan(ctx context.Context, req planner.Request) (planner.Decision, error)
}

// Config holds the tunables. Zero values select the defaults.
type Config struct {
	Concurrency int
	Retention   int
	LogLines    int
}

// Deps are the collaborators driven by the scheduler.
type Deps struct {
	Catalog   *preset.Catalog
	Prober    media.Prober
	Planner   Planner
	Executor  Executor
	Validator *validation.Chain
	Bus       *events.Bus
	Now       func() time.Time
}

// run is one worker's claim on a job. A requeued job gets a fresh run when it
// starts again, so a finishing worker only releases its own.
type run struct {
	cancel context.CancelFunc
}

// Scheduler is safe for concurrent use.
type Scheduler struct {
	catalog   *preset.Catalog
	prober    media.Prober
	planner   Planner
	exec      Executor
	validator *validation.Chain
	bus       *events.Bus
	now       func() time.Time
	logger    zerolog.Logger

	// decide serializes scheduling decisions; rerun records a decision
	// request that arrived while one was in flight.
	decide sync.Mutex
	rerun  atomic.Bool

	mu        sync.Mutex
	jobs      map[string]*job.Record
	queue     []string
	cancels   map[string]*run
	limit     int
	retention int
	logLines  int
	changed   chan struct{}

	base    context.Context
	stop    context.CancelFunc
	workers sync.WaitGroup
}

// New returns a Scheduler. Deps.Catalog, Prober, Planner and Executor are
// required.
func New(cfg Config, deps Deps) *Scheduler {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.LogLines <= 0 {
		cfg.LogLines = linering.DefaultCapacity
	}
	if deps.Bus == nil {
		deps.Bus = events.NewBus(events.DefaultBuffer)
	}
	if deps.Validator == nil {
		deps.Validator = validation.NewChain()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	base, stop := context.WithCancel(context.Background())
	s := &Scheduler{
		catalog:   deps.Catalog,
		prober:    deps.Prober,
		planner:   deps.Planner,
		exec:      deps.Executor,
		validator: deps.Validator,
		bus:       deps.Bus,
		now:       deps.Now,
		logger:    xglog.WithComponent("scheduler"),
		jobs:      make(map[string]*job.Record),
		cancels:   make(map[string]*run),
		limit:     cfg.Concurrency,
		retention: cfg.Retention,
		logLines:  cfg.LogLines,
		changed:   make(chan struct{}),
		base:      base,
		stop:      stop,
	}
	metrics.SetConcurrencyLimit(s.limit)
	metrics.SetSchedulerDepth(0, 0)
	return s
}

// SetConcurrency changes the limit at runtime. Values below one are floored
// to one. A raised limit immediately considers queued jobs.
func (s *Scheduler) SetConcurrency(n int) {
	if n < 1 {
		n = 1
	}
	s.mu.Lock()
	old := s.limit
	s.limit = n
	s.mu.Unlock()

	metrics.SetConcurrencyLimit(n)
	if old != n {
		s.logger.Info().Int("old", old).Int(xglog.FieldConcurrency, n).Msg("concurrency limit changed")
	}
	if n > old {
		s.pump()
	}
}

// Concurrency returns the current limit.
func (s *Scheduler) Concurrency() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limit
}

// EnqueueRequest asks for one job per source.
type EnqueueRequest struct {
	Sources  []string
	PresetID string
	Tier     preset.Tier
	// OutputDir receives the outputs. Empty means next to each source.
	OutputDir string
}

// Enqueue creates queued jobs and returns their ids in source order. It does
// not start them; call StartNext.
func (s *Scheduler) Enqueue(req EnqueueRequest) ([]string, error) {
	p, ok := s.catalog.Get(req.PresetID)
	if !ok {
		return nil, joberr.Newf(joberr.CodeUnknownPreset, "unknown preset %q", req.PresetID)
	}
	if len(req.Sources) == 0 {
		return nil, joberr.New(joberr.CodeInvalidArgs, "no source paths")
	}
	tier := req.Tier
	if tier == "" {
		tier = preset.TierBalanced
	}
	if _, err := preset.ParseTier(string(tier)); err != nil {
		return nil, joberr.Wrap(joberr.CodeInvalidArgs, "tier", err)
	}

	now := s.now()
	ids := make([]string, 0, len(req.Sources))

	s.mu.Lock()
	for _, src := range req.Sources {
		id := uuid.NewString()
		rec := job.New(job.Spec{
			ID:         id,
			SourcePath: src,
			PresetID:   p.ID,
			Tier:       tier,
			Exclusive:  p.Intensive,
			OutputPath: OutputPath(src, req.OutputDir, p.Container),
			LogLines:   s.logLines,
		}, now)
		s.jobs[id] = rec
		s.queue = append(s.queue, id)
		ids = append(ids, id)
	}
	s.updateGaugesLocked()
	s.notifyLocked()
	s.mu.Unlock()

	s.logger.Info().
		Str(xglog.FieldPresetID, p.ID).
		Str(xglog.FieldTier, string(tier)).
		Int("count", len(ids)).
		Msg("jobs enqueued")
	return ids, nil
}

// Remove deletes a queued job.
func (s *Scheduler) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if rec.Tag() != job.TagQueued {
		return fmt.Errorf("%w: %s is %s", ErrNotQueued, id, rec.Tag())
	}
	delete(s.jobs, id)
	s.removeFromQueueLocked(id)
	s.updateGaugesLocked()
	s.notifyLocked()
	return nil
}

// Cancel moves a queued or active job to cancelled and stops its work. The
// freed slot is offered to the next queued job.
func (s *Scheduler) Cancel(id string) error {
	s.mu.Lock()
	rec, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	wasActive := rec.Tag().Active()
	if err := s.applyLocked(rec, job.ToCancelled(s.now())); err != nil {
		s.mu.Unlock()
		return err
	}
	s.removeFromQueueLocked(id)
	stop := s.cancels[id]
	delete(s.cancels, id)
	s.mu.Unlock()

	if stop != nil {
		stop.cancel()
	}
	if wasActive {
		s.pump()
	}
	return nil
}

// CancelAll cancels every non-terminal job and returns how many were
// cancelled.
func (s *Scheduler) CancelAll() int {
	s.mu.Lock()
	ids := make([]string, 0, len(s.jobs))
	for id, rec := range s.jobs {
		if !rec.Tag().Terminal() {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()

	n := 0
	for _, id := range ids {
		if s.Cancel(id) == nil {
			n++
		}
	}
	return n
}

// Get returns a snapshot of one job.
func (s *Scheduler) Get(id string) (job.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok {
		return job.Record{}, false
	}
	return rec.Snapshot(), true
}

// List returns snapshots of every job, oldest enqueue first.
func (s *Scheduler) List() []job.Record {
	s.mu.Lock()
	out := make([]job.Record, 0, len(s.jobs))
	for _, rec := range s.jobs {
		out = append(out, rec.Snapshot())
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		ei, ej := out[i].State.EnqueuedAt(), out[j].State.EnqueuedAt()
		if !ei.Equal(ej) {
			return ei.Before(ej)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Queued returns the queued ids in start order.
func (s *Scheduler) Queued() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queue...)
}

// Subscribe streams one job's events.
func (s *Scheduler) Subscribe(id string) *events.Subscription {
	return s.bus.Subscribe(id)
}

// SubscribeAll streams every job's events.
func (s *Scheduler) SubscribeAll() *events.Subscription {
	return s.bus.SubscribeAll()
}

// Wait blocks until no job is queued or active, or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		idle := len(s.queue) == 0 && s.activeLocked() == 0
		ch := s.changed
		s.mu.Unlock()
		if idle {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close cancels all jobs and waits for workers to exit.
func (s *Scheduler) Close(ctx context.Context) error {
	s.CancelAll()
	s.stop()

	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// applyLocked runs a transition and its bookkeeping: terminal metrics,
// pruning and waking waiters.
func (s *Scheduler) applyLocked(rec *job.Record, t job.Transition) error {
	from := rec.Tag()
	if err := job.Apply(rec, t); err != nil {
		s.logger.Debug().
			Err(err).
			Str(xglog.FieldJobID, rec.ID).
			Str(xglog.FieldOldState, string(from)).
			Str(xglog.FieldNewState, string(t.To)).
			Msg("transition rejected")
		return err
	}

	s.logger.Debug().
		Str(xglog.FieldJobID, rec.ID).
		Str(xglog.FieldOldState, string(from)).
		Str(xglog.FieldNewState, string(t.To)).
		Msg("job transition")

	if t.To.Terminal() {
		metrics.IncJobTerminal(string(t.To), string(t.Code))
		s.pruneLocked()
	}
	s.updateGaugesLocked()
	s.notifyLocked()
	return nil
}

// pruneLocked drops the oldest terminal records beyond the retention cap.
func (s *Scheduler) pruneLocked() {
	var terminal []*job.Record
	for _, rec := range s.jobs {
		if rec.Tag().Terminal() {
			terminal = append(terminal, rec)
		}
	}
	excess := len(terminal) - s.retention
	if excess <= 0 {
		return
	}
	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].UpdatedAt.Before(terminal[j].UpdatedAt)
	})
	for _, rec := range terminal[:excess] {
		delete(s.jobs, rec.ID)
	}
}

func (s *Scheduler) removeFromQueueLocked(id string) {
	for i, q := range s.queue {
		if q == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

func (s *Scheduler) activeLocked() int {
	n := 0
	for _, rec := range s.jobs {
		if rec.Tag().Active() {
			n++
		}
	}
	return n
}

func (s *Scheduler) updateGaugesLocked() {
	metrics.SetSchedulerDepth(len(s.queue), s.activeLocked())
}

func (s *Scheduler) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}
