package scheduler

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/ManuGH/mediaconv/internal/events"
	"github.com/ManuGH/mediaconv/internal/job"
	"github.com/ManuGH/mediaconv/internal/joberr"
	xglog "github.com/ManuGH/mediaconv/internal/log"
	"github.com/ManuGH/mediaconv/internal/metrics"
	"github.com/ManuGH/mediaconv/internal/planner"
	"github.com/ManuGH/mediaconv/internal/runner"
	"github.com/ManuGH/mediaconv/internal/validation"
)

// work drives one job from probing to a terminal state or a requeue. Every
// transition goes through the arena; a failed transition means the job was
// cancelled meanwhile and the worker stops.
func (s *Scheduler) work(ctx context.Context, r *run, id string) {
	defer s.workers.Done()
	defer s.pump()
	defer s.release(id, r)

	rec, ok := s.Get(id)
	if !ok {
		return
	}
	ctx = xglog.ContextWithJobID(ctx, id)
	logger := xglog.WithContext(ctx, s.logger)

	probe, err := s.prober.Probe(ctx, rec.SourcePath)
	if err != nil {
		s.fail(id, joberr.CodeProbeFailed, "probe: "+err.Error(), logger)
		return
	}
	if !s.transition(id, job.ToPlanning(probe, s.now())) {
		return
	}

	decision, err := s.planner.Plan(ctx, planner.Request{
		JobID:      id,
		Probe:      probe,
		PresetID:   rec.PresetID,
		Tier:       rec.Tier,
		SourcePath: rec.SourcePath,
		OutputPath: rec.OutputPath,
	})
	if err != nil {
		s.fail(id, joberr.CodeOf(err), joberr.MessageOf(err), logger)
		return
	}
	s.recordDecision(id, decision)

	err = s.validator.Run(ctx, validation.Input{
		JobID:      id,
		Args:       decision.Args(),
		OutputPath: rec.OutputPath,
		Exclusive:  decision.Exclusive,
	})
	if err != nil {
		var f *validation.Failure
		errors.As(err, &f)
		if validation.IsRetryable(err) {
			s.requeue(id, f, logger)
			return
		}
		code := joberr.CodeOf(err)
		if f != nil {
			code = f.Code
		}
		s.fail(id, code, err.Error(), logger)
		return
	}

	if !s.transition(id, job.ToRunning(s.now())) {
		return
	}

	sub := s.bus.Subscribe(id)
	defer sub.Close()

	proc, err := s.exec.Start(ctx, runner.Request{
		JobID:    id,
		PresetID: rec.PresetID,
		Tier:     string(decision.Tier),
		Args:     decision.Args(),
	})
	if err != nil {
		s.fail(id, joberr.CodeOf(err), joberr.MessageOf(err), logger)
		return
	}

	completion := s.follow(id, sub, proc)
	s.finish(id, rec.OutputPath, completion, logger)
}

// follow mirrors progress and log events into the record until completion.
func (s *Scheduler) follow(id string, sub *events.Subscription, proc Process) events.Completion {
	for ev := range sub.C {
		switch ev.Kind {
		case events.KindLog:
			s.withRecord(id, func(rec *job.Record) { rec.AppendLog(ev.Line) })
		case events.KindProgress:
			if ev.Progress != nil {
				s.withRecord(id, func(rec *job.Record) { _ = job.UpdateProgress(rec, *ev.Progress) })
			}
		case events.KindCompletion:
			if ev.Completion != nil {
				return *ev.Completion
			}
		}
	}
	// The bus was closed underneath us.
	return proc.Wait()
}

func (s *Scheduler) finish(id, output string, c events.Completion, logger zerolog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok {
		return
	}
	if len(c.Logs) > 0 {
		rec.ReplaceLogs(c.Logs)
	}

	now := s.now()
	var err error
	switch {
	case c.Success:
		err = s.applyLocked(rec, job.ToCompleted(output, now))
	case c.Cancelled:
		err = s.applyLocked(rec, job.ToCancelled(now))
	default:
		err = s.applyLocked(rec, job.ToFailed(c.Message, c.Code, now))
	}
	if err == nil {
		logger.Info().
			Str(xglog.FieldNewState, string(rec.Tag())).
			Str(xglog.FieldCode, string(c.Code)).
			Msg("job finished")
	}
}

// recordDecision stores the planned exclusivity. A job predicted exclusive
// that plans remux-only stops holding back the queue, so the queue is pumped.
func (s *Scheduler) recordDecision(id string, d planner.Decision) {
	relaxed := false
	s.withRecord(id, func(rec *job.Record) {
		relaxed = rec.Exclusive && !d.Exclusive
		rec.Exclusive = d.Exclusive
		for _, n := range d.Notes {
			rec.AppendLog("note: " + n)
		}
		for _, w := range d.Warnings {
			rec.AppendLog("warning: " + w)
		}
	})
	if relaxed {
		s.pump()
	}
}

func (s *Scheduler) requeue(id string, f *validation.Failure, logger zerolog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok {
		return
	}
	if err := s.applyLocked(rec, job.Requeue(s.now())); err != nil {
		return
	}
	s.queue = append([]string{id}, s.queue...)
	s.updateGaugesLocked()
	metrics.IncRequeue()
	logger.Info().Str(xglog.FieldCode, string(f.Code)).Err(f.Err).Msg("job requeued")
}

func (s *Scheduler) fail(id string, code joberr.Code, message string, logger zerolog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok {
		return
	}
	rec.AppendLog(message)
	if s.applyLocked(rec, job.ToFailed(message, code, s.now())) == nil {
		logger.Warn().Str(xglog.FieldCode, string(code)).Msg(message)
	}
}

func (s *Scheduler) transition(id string, t job.Transition) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok {
		return false
	}
	return s.applyLocked(rec, t) == nil
}

func (s *Scheduler) withRecord(id string, fn func(*job.Record)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.jobs[id]; ok {
		fn(rec)
	}
}

// release drops the job's cancel func once its worker is done.
func (s *Scheduler) release(id string, r *run) {
	s.mu.Lock()
	if s.cancels[id] == r {
		delete(s.cancels, id)
	}
	s.mu.Unlock()
	r.cancel()
}
