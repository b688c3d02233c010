// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package planner

import (
	"github.com/ManuGH/mediaconv/internal/capabilities"
	"github.com/ManuGH/mediaconv/internal/ffargs"
	"github.com/ManuGH/mediaconv/internal/media"
	"github.com/ManuGH/mediaconv/internal/preset"
)

// Action is what happens to one stream.
type Action string

const (
	ActionCopy      Action = "copy"
	ActionTranscode Action = "transcode"
	ActionDrop      Action = "drop"
)

// StreamKind names the stream family a decision applies to.
type StreamKind string

const (
	StreamVideo StreamKind = "video"
	StreamAudio StreamKind = "audio"
)

// StreamDecision is the plan for one stream kind.
type StreamDecision struct {
	Kind        StreamKind
	Action      Action
	SourceCodec string
	Logical     string
	Encoder     string // "copy" for passthrough, empty when dropped
	Quality     preset.Quality
	Tier        preset.Resolution
	Palette     bool // animated-image palette filter in use
}

// SubtitleDecision records how subtitle streams are handled.
type SubtitleDecision struct {
	Policy   preset.SubtitlePolicy
	Mapped   bool
	Codec    string // output subtitle codec when mapped
	Excluded []int  // subtitle stream indexes removed from the map
}

// Request is the input of one planning call.
type Request struct {
	JobID      string
	Probe      media.ProbeSummary
	PresetID   string
	Tier       preset.Tier
	SourcePath string
	OutputPath string
	// Caps overrides the planner's capability source when non-nil.
	Caps *capabilities.Snapshot
}

// Decision is the planner output for one job.
type Decision struct {
	PresetID        string
	SourceContainer string
	Container       string
	Tier            preset.Tier

	Video     StreamDecision
	Audio     StreamDecision
	Subtitles SubtitleDecision

	Command  ffargs.Command
	Notes    []string
	Warnings []string

	// RemuxOnly is true when every included stream is copied.
	RemuxOnly bool
	// Exclusive is true when the job must run with no other job active.
	Exclusive bool
}

// Args returns the engine arguments, output path last.
func (d Decision) Args() []string { return d.Command.Args() }

func (d Decision) result() string {
	switch {
	case d.Exclusive:
		return "exclusive"
	case d.RemuxOnly:
		return "remux"
	default:
		return "transcode"
	}
}
