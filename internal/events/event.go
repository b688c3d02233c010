// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package events carries per-job runner output to subscribers.
package events

import (
	"time"

	"github.com/ManuGH/mediaconv/internal/joberr"
)

// Kind discriminates events.
type Kind string

const (
	KindProgress   Kind = "progress"
	KindLog        Kind = "log"
	KindCompletion Kind = "completion"
)

// Progress is one parsed progress update. Nil fields were not reported.
type Progress struct {
	ProcessedSec *float64 `json:"processedSec,omitempty"`
	FPS          *float64 `json:"fps,omitempty"`
	Speed        *float64 `json:"speed,omitempty"`
}

// Empty reports whether no field is set.
func (p Progress) Empty() bool {
	return p.ProcessedSec == nil && p.FPS == nil && p.Speed == nil
}

// Merge returns p with the set fields of o applied.
func (p Progress) Merge(o Progress) Progress {
	if o.ProcessedSec != nil {
		p.ProcessedSec = o.ProcessedSec
	}
	if o.FPS != nil {
		p.FPS = o.FPS
	}
	if o.Speed != nil {
		p.Speed = o.Speed
	}
	return p
}

// Completion is the single terminal report of a process run.
type Completion struct {
	Success   bool        `json:"success"`
	Cancelled bool        `json:"cancelled"`
	ExitCode  *int        `json:"exitCode,omitempty"`
	Signal    string      `json:"signal,omitempty"`
	Code      joberr.Code `json:"code,omitempty"`
	Message   string      `json:"message,omitempty"`
	Logs      []string    `json:"logs,omitempty"`
}

// Event is one item on a job's stream. Exactly one payload matches Kind.
type Event struct {
	JobID string    `json:"jobId"`
	Kind  Kind      `json:"kind"`
	At    time.Time `json:"at"`

	// Line is the raw diagnostic line for log and progress events.
	Line       string      `json:"line,omitempty"`
	Progress   *Progress   `json:"progress,omitempty"`
	Completion *Completion `json:"completion,omitempty"`
}

// NewLog builds a log event.
func NewLog(jobID, line string) Event {
	return Event{JobID: jobID, Kind: KindLog, At: time.Now(), Line: line}
}

// NewProgress builds a progress event.
func NewProgress(jobID, line string, p Progress) Event {
	return Event{JobID: jobID, Kind: KindProgress, At: time.Now(), Line: line, Progress: &p}
}

// NewCompletion builds a completion event.
func NewCompletion(jobID string, c Completion) Event {
	return Event{JobID: jobID, Kind: KindCompletion, At: time.Now(), Completion: &c}
}
