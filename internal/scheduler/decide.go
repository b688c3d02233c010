package scheduler

import (
	"context"

	"github.com/ManuGH/mediaconv/internal/job"
	xglog "github.com/ManuGH/mediaconv/internal/log"
	"github.com/ManuGH/mediaconv/internal/metrics"
	"github.com/ManuGH/mediaconv/internal/validation"
)

// StartNext starts the job at the head of the queue if the concurrency limit
// and the exclusivity rule allow it. Only one decision runs at a time; a
// concurrent or reentrant call returns false and the decision in flight
// re-runs once it finishes.
func (s *Scheduler) StartNext() bool {
	if !s.decide.TryLock() {
		s.rerun.Store(true)
		if !s.decide.TryLock() {
			return false
		}
	}
	started := s.startHead()
	s.decide.Unlock()

	if s.rerun.Swap(false) {
		s.pump()
	}
	return started
}

// pump starts queued jobs until nothing else is eligible.
func (s *Scheduler) pump() {
	for s.StartNext() {
	}
}

func (s *Scheduler) startHead() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return false
	}
	id := s.queue[0]
	rec := s.jobs[id]

	occ := s.occupancyLocked("")
	if occ.ExclusiveActive || occ.Active >= s.limit {
		return false
	}
	// Head-of-line: an exclusive head waits for the pipeline to drain
	// instead of being overtaken.
	if rec.Exclusive && occ.Active > 0 {
		return false
	}

	now := s.now()
	wait := now.Sub(rec.State.EnqueuedAt())
	if err := s.applyLocked(rec, job.ToProbing(now)); err != nil {
		return false
	}
	s.queue = s.queue[1:]
	s.updateGaugesLocked()
	metrics.ObserveQueueWait(wait)

	ctx, cancel := context.WithCancel(s.base)
	r := &run{cancel: cancel}
	s.cancels[id] = r
	s.workers.Add(1)
	go s.work(ctx, r, id)

	s.logger.Info().
		Str(xglog.FieldJobID, id).
		Bool(xglog.FieldExclusive, rec.Exclusive).
		Int(xglog.FieldActive, occ.Active+1).
		Int(xglog.FieldQueued, len(s.queue)).
		Msg("job started")
	return true
}

// occupancyLocked counts active jobs other than exclude.
func (s *Scheduler) occupancyLocked(exclude string) validation.Occupancy {
	occ := validation.Occupancy{Limit: s.limit}
	for id, rec := range s.jobs {
		if id == exclude || !rec.Tag().Active() {
			continue
		}
		occ.Active++
		if rec.Exclusive {
			occ.ExclusiveActive = true
		}
	}
	return occ
}

// Occupancy implements validation.Gate.
func (s *Scheduler) Occupancy(excludeJobID string) validation.Occupancy {
	s.mu.Lock()
	defer s.mu.Unlock()
	occ := s.occupancyLocked(excludeJobID)
	if s.exec != nil {
		occ.AlreadyRunning = s.exec.Running(excludeJobID)
	}
	return occ
}
