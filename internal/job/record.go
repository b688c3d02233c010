// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package job holds the conversion job record and its state machine.
package job

import (
	"time"

	"github.com/ManuGH/mediaconv/internal/linering"
	"github.com/ManuGH/mediaconv/internal/preset"
)

// Record is one conversion job. The scheduler owns the live record; every
// other caller receives a Snapshot.
type Record struct {
	ID         string
	SourcePath string
	PresetID   string
	Tier       preset.Tier
	Exclusive  bool
	OutputPath string
	State      State
	UpdatedAt  time.Time

	// Logs is filled by Snapshot. The live record keeps lines in its ring.
	Logs []string

	ring *linering.Ring
}

// Spec describes a job to create.
type Spec struct {
	ID         string
	SourcePath string
	PresetID   string
	Tier       preset.Tier
	Exclusive  bool
	OutputPath string
	LogLines   int
}

// New returns a queued record stamped with now.
func New(spec Spec, now time.Time) *Record {
	return &Record{
		ID:         spec.ID,
		SourcePath: spec.SourcePath,
		PresetID:   spec.PresetID,
		Tier:       spec.Tier,
		Exclusive:  spec.Exclusive,
		OutputPath: spec.OutputPath,
		State:      Queued{Enqueued: now},
		UpdatedAt:  now,
		ring:       linering.New(spec.LogLines),
	}
}

// Tag returns the tag of the current state.
func (r *Record) Tag() Tag {
	if r == nil || r.State == nil {
		return ""
	}
	return r.State.Tag()
}

// AppendLog retains one diagnostic line.
func (r *Record) AppendLog(line string) {
	if r.ring == nil {
		r.ring = linering.New(0)
	}
	r.ring.Push(line)
}

// ReplaceLogs swaps the retained lines for lines, keeping the ring capacity.
func (r *Record) ReplaceLogs(lines []string) {
	capacity := 0
	if r.ring != nil {
		capacity = r.ring.Cap()
	}
	r.ring = linering.New(capacity)
	for _, l := range lines {
		r.ring.Push(l)
	}
}

// Snapshot returns a detached copy with Logs populated.
func (r *Record) Snapshot() Record {
	out := *r
	out.ring = nil
	if r.ring != nil {
		out.Logs = r.ring.Lines()
	}
	return out
}
