// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package job

import (
	"time"

	"github.com/ManuGH/mediaconv/internal/events"
	"github.com/ManuGH/mediaconv/internal/joberr"
	"github.com/ManuGH/mediaconv/internal/media"
)

// Tag names a job state.
type Tag string

const (
	TagQueued    Tag = "queued"
	TagProbing   Tag = "probing"
	TagPlanning  Tag = "planning"
	TagRunning   Tag = "running"
	TagCompleted Tag = "completed"
	TagFailed    Tag = "failed"
	TagCancelled Tag = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (t Tag) Terminal() bool {
	return t == TagCompleted || t == TagFailed || t == TagCancelled
}

// Active reports whether the job occupies a scheduler slot.
func (t Tag) Active() bool {
	return t == TagProbing || t == TagPlanning || t == TagRunning
}

// State is the tagged job state. Each implementation carries the payload of
// its tag plus every earlier timestamp.
type State interface {
	Tag() Tag
	EnqueuedAt() time.Time
	StartedAt() time.Time
}

// Queued waits for a scheduler slot. Started is non-zero after a requeue.
type Queued struct {
	Enqueued time.Time
	Started  time.Time
}

// Probing reads source metadata.
type Probing struct {
	Enqueued time.Time
	Started  time.Time
}

// Planning builds the engine command from the probe.
type Planning struct {
	Enqueued time.Time
	Started  time.Time
	Probe    media.ProbeSummary
}

// Running has a live engine process.
type Running struct {
	Enqueued time.Time
	Started  time.Time
	Probe    media.ProbeSummary
	Progress events.Progress
}

// Completed finished successfully.
type Completed struct {
	Enqueued   time.Time
	Started    time.Time
	Finished   time.Time
	OutputPath string
}

// Failed ended with an error.
type Failed struct {
	Enqueued time.Time
	Started  time.Time
	Finished time.Time
	Message  string
	Code     joberr.Code
}

// Cancelled was stopped on request.
type Cancelled struct {
	Enqueued time.Time
	Started  time.Time
	Finished time.Time
}

func (Queued) Tag() Tag    { return TagQueued }
func (Probing) Tag() Tag   { return TagProbing }
func (Planning) Tag() Tag  { return TagPlanning }
func (Running) Tag() Tag   { return TagRunning }
func (Completed) Tag() Tag { return TagCompleted }
func (Failed) Tag() Tag    { return TagFailed }
func (Cancelled) Tag() Tag { return TagCancelled }

func (s Queued) EnqueuedAt() time.Time    { return s.Enqueued }
func (s Probing) EnqueuedAt() time.Time   { return s.Enqueued }
func (s Planning) EnqueuedAt() time.Time  { return s.Enqueued }
func (s Running) EnqueuedAt() time.Time   { return s.Enqueued }
func (s Completed) EnqueuedAt() time.Time { return s.Enqueued }
func (s Failed) EnqueuedAt() time.Time    { return s.Enqueued }
func (s Cancelled) EnqueuedAt() time.Time { return s.Enqueued }

func (s Queued) StartedAt() time.Time    { return s.Started }
func (s Probing) StartedAt() time.Time   { return s.Started }
func (s Planning) StartedAt() time.Time  { return s.Started }
func (s Running) StartedAt() time.Time   { return s.Started }
func (s Completed) StartedAt() time.Time { return s.Started }
func (s Failed) StartedAt() time.Time    { return s.Started }
func (s Cancelled) StartedAt() time.Time { return s.Started }

// FinishedAt returns the terminal timestamp, or zero for live states.
func FinishedAt(s State) time.Time {
	switch v := s.(type) {
	case Completed:
		return v.Finished
	case Failed:
		return v.Finished
	case Cancelled:
		return v.Finished
	}
	return time.Time{}
}

// ProbeOf returns the probe summary carried by planning and running states.
func ProbeOf(s State) (media.ProbeSummary, bool) {
	switch v := s.(type) {
	case Planning:
		return v.Probe, true
	case Running:
		return v.Probe, true
	}
	return media.ProbeSummary{}, false
}
