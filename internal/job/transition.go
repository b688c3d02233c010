// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package job

import (
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/mediaconv/internal/events"
	"github.com/ManuGH/mediaconv/internal/joberr"
	"github.com/ManuGH/mediaconv/internal/media"
)

// ErrIllegalTransition is returned for any (from, to) pair not in the table.
var ErrIllegalTransition = errors.New("illegal job state transition")

type edge struct {
	from Tag
	to   Tag
}

var transitions = map[edge]struct{}{
	{TagQueued, TagProbing}:   {},
	{TagQueued, TagCancelled}: {},

	{TagProbing, TagPlanning}:  {},
	{TagProbing, TagFailed}:    {},
	{TagProbing, TagCancelled}: {},
	{TagProbing, TagQueued}:    {},

	{TagPlanning, TagRunning}:   {},
	{TagPlanning, TagFailed}:    {},
	{TagPlanning, TagCancelled}: {},
	{TagPlanning, TagQueued}:    {},

	{TagRunning, TagCompleted}: {},
	{TagRunning, TagFailed}:    {},
	{TagRunning, TagCancelled}: {},
	{TagRunning, TagQueued}:    {},
}

// Allowed reports whether the table contains from→to.
func Allowed(from, to Tag) bool {
	_, ok := transitions[edge{from, to}]
	return ok
}

// Transition is a requested move to To together with the payload the
// destination owns.
type Transition struct {
	To         Tag
	At         time.Time
	Probe      media.ProbeSummary
	OutputPath string
	Message    string
	Code       joberr.Code
}

func ToProbing(at time.Time) Transition { return Transition{To: TagProbing, At: at} }

func ToPlanning(probe media.ProbeSummary, at time.Time) Transition {
	return Transition{To: TagPlanning, At: at, Probe: probe}
}

func ToRunning(at time.Time) Transition { return Transition{To: TagRunning, At: at} }

func ToCompleted(outputPath string, at time.Time) Transition {
	return Transition{To: TagCompleted, At: at, OutputPath: outputPath}
}

func ToFailed(message string, code joberr.Code, at time.Time) Transition {
	return Transition{To: TagFailed, At: at, Message: message, Code: code}
}

func ToCancelled(at time.Time) Transition { return Transition{To: TagCancelled, At: at} }

// Requeue moves an active job back to the queue.
func Requeue(at time.Time) Transition { return Transition{To: TagQueued, At: at} }

// Apply is the only way to change a record's state. On an illegal pair the
// record is left untouched and the error wraps ErrIllegalTransition.
func Apply(r *Record, t Transition) error {
	from := r.Tag()
	if !Allowed(from, t.To) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, t.To)
	}

	enq := r.State.EnqueuedAt()
	started := r.State.StartedAt()

	var next State
	switch t.To {
	case TagQueued:
		next = Queued{Enqueued: enq, Started: started}
	case TagProbing:
		if started.IsZero() {
			started = t.At
		}
		next = Probing{Enqueued: enq, Started: started}
	case TagPlanning:
		next = Planning{Enqueued: enq, Started: started, Probe: t.Probe}
	case TagRunning:
		probe, _ := ProbeOf(r.State)
		next = Running{Enqueued: enq, Started: started, Probe: probe}
	case TagCompleted:
		next = Completed{Enqueued: enq, Started: started, Finished: t.At, OutputPath: t.OutputPath}
	case TagFailed:
		next = Failed{Enqueued: enq, Started: started, Finished: t.At, Message: t.Message, Code: t.Code}
	case TagCancelled:
		next = Cancelled{Enqueued: enq, Started: started, Finished: t.At}
	}

	r.State = next
	r.UpdatedAt = t.At
	return nil
}

// UpdateProgress merges p into a running job's progress. It is not a state
// transition and fails for any other state.
func UpdateProgress(r *Record, p events.Progress) error {
	running, ok := r.State.(Running)
	if !ok {
		return fmt.Errorf("%w: progress while %s", ErrIllegalTransition, r.Tag())
	}
	running.Progress = running.Progress.Merge(p)
	r.State = running
	return nil
}
