// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package planner decides, per stream, whether to copy, transcode or drop,
// and renders the resulting ffmpeg command.
package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/mediaconv/internal/capabilities"
	"github.com/ManuGH/mediaconv/internal/compat"
	"github.com/ManuGH/mediaconv/internal/encoder"
	"github.com/ManuGH/mediaconv/internal/ffargs"
	"github.com/ManuGH/mediaconv/internal/joberr"
	"github.com/ManuGH/mediaconv/internal/log"
	"github.com/ManuGH/mediaconv/internal/media"
	"github.com/ManuGH/mediaconv/internal/metrics"
	"github.com/ManuGH/mediaconv/internal/preset"
	"github.com/ManuGH/mediaconv/internal/telemetry"
)

// CapabilitySource supplies the current capability snapshot, which may be nil
// while detection has not completed.
type CapabilitySource interface {
	Snapshot() *capabilities.Snapshot
}

// Planner turns a probe summary, preset and tier into a Decision.
// It holds no mutable state and is safe for concurrent use.
type Planner struct {
	catalog  *preset.Catalog
	strategy encoder.Strategy
	caps     CapabilitySource
	tracer   trace.Tracer
	logger   zerolog.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithTracer overrides the tracer used for planning spans.
func WithTracer(t trace.Tracer) Option {
	return func(p *Planner) { p.tracer = t }
}

// WithCapabilities sets the default capability source.
func WithCapabilities(src CapabilitySource) Option {
	return func(p *Planner) { p.caps = src }
}

// New returns a Planner over catalog using strategy for encoder selection.
func New(catalog *preset.Catalog, strategy encoder.Strategy, opts ...Option) *Planner {
	if strategy == nil {
		strategy = encoder.HardwareFirst{}
	}
	p := &Planner{
		catalog:  catalog,
		strategy: strategy,
		tracer:   telemetry.Tracer("github.com/ManuGH/mediaconv/internal/planner"),
		logger:   log.WithComponent("planner"),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Plan produces the decision for one job. It fails only for an unknown
// preset or a source the preset does not accept; capability gaps become
// warnings.
func (p *Planner) Plan(ctx context.Context, req Request) (Decision, error) {
	ctx, span := p.tracer.Start(ctx, "planner.plan")
	defer span.End()
	span.SetAttributes(telemetry.JobAttributes(req.JobID, req.PresetID, string(req.Tier))...)

	d, err := p.plan(req)
	if err != nil {
		code := joberr.CodeOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(telemetry.ErrorAttributes(err, string(code))...)
		metrics.RecordPlannerDecision(strings.TrimPrefix(string(code), "job_"), 0)
		return Decision{}, err
	}

	span.SetAttributes(telemetry.SourceAttributes(d.SourceContainer, d.Video.SourceCodec, d.Audio.SourceCodec)...)
	span.SetAttributes(telemetry.DecisionAttributes(d.RemuxOnly, d.Exclusive, len(d.Warnings), string(d.Tier))...)
	metrics.RecordPlannerDecision(d.result(), len(d.Warnings))

	logger := log.WithContext(ctx, p.logger)
	logger.Debug().
		Str(log.FieldJobID, req.JobID).
		Str(log.FieldPresetID, d.PresetID).
		Str(log.FieldTier, string(d.Tier)).
		Str("video", string(d.Video.Action)).
		Str("audio", string(d.Audio.Action)).
		Bool("remux_only", d.RemuxOnly).
		Bool(log.FieldExclusive, d.Exclusive).
		Strs("warnings", d.Warnings).
		Msg("plan ready")
	return d, nil
}

func (p *Planner) plan(req Request) (Decision, error) {
	pr, ok := p.catalog.Get(req.PresetID)
	if !ok {
		return Decision{}, joberr.Newf(joberr.CodeUnknownPreset, "unknown preset %q", req.PresetID)
	}

	source := media.InferContainer(req.SourcePath, req.Probe.Format, req.Probe.Brand)
	if source == "" {
		return Decision{}, joberr.Newf(joberr.CodeIncompatiblePreset,
			"cannot determine the container of %s", req.SourcePath)
	}
	if !pr.AcceptsSource(source) {
		return Decision{}, joberr.Newf(joberr.CodeIncompatiblePreset,
			"preset %s does not accept %s sources", pr.ID, source)
	}

	caps := req.Caps
	if caps == nil && p.caps != nil {
		caps = p.caps.Snapshot()
	}

	tier := req.Tier
	if tier == "" {
		tier = preset.TierBalanced
	}

	d := Decision{
		PresetID:        pr.ID,
		SourceContainer: source,
		Container:       pr.Container,
		Tier:            tier,
	}
	pl := &plan{decision: &d}

	b := ffargs.New(req.OutputPath).
		Overwrite().
		NoStdin().
		ProgressReporting().
		Input(req.SourcePath)

	if isPalette(pr.Video.Codec) {
		d.Video = p.palette(pl, pr, req.Probe, tier, caps, b)
	} else {
		d.Video = p.decideStream(pl, StreamVideo, pr.Video, req.Probe.VideoCodec, pr.Container, tier, caps)
		applyVideo(b, d.Video, pr.Video, req.Probe)
	}

	d.Audio = p.decideStream(pl, StreamAudio, pr.Audio, req.Probe.AudioCodec, pr.Container, tier, caps)
	applyAudio(b, d.Audio)

	d.Subtitles = planSubtitles(pl, pr, req.Probe, b)

	if pr.Kind == media.KindImage && d.Video.Action != ActionDrop {
		b.Frames(1)
	}
	b.Muxer(pr.Container)
	if needsFastStart(pr.Container) {
		b.FastStart()
	}

	d.RemuxOnly = remuxOnly(d.Video, d.Audio)
	d.Exclusive = !d.RemuxOnly && pr.Intensive
	for _, s := range []StreamDecision{d.Video, d.Audio} {
		if s.Action == ActionTranscode && s.Tier.FellBack {
			using := "base settings"
			if s.Tier.Resolved != "" {
				using = string(s.Tier.Resolved)
			}
			pl.note(fmt.Sprintf("%s tier %s unavailable, using %s", s.Kind, s.Tier.Requested, using))
		}
	}
	if d.Video.Action == ActionTranscode {
		d.Tier = d.Video.Tier.Resolved
	} else if d.Audio.Action == ActionTranscode {
		d.Tier = d.Audio.Tier.Resolved
	}

	d.Command = b.Notes(d.Notes...).Build()
	return d, nil
}

// plan collects notes and warnings while a decision is assembled.
type plan struct {
	decision *Decision
}

func (p *plan) note(s string) { p.decision.Notes = append(p.decision.Notes, s) }
func (p *plan) warn(s string) { p.decision.Warnings = append(p.decision.Warnings, s) }

func (p *Planner) decideStream(pl *plan, kind StreamKind, spec preset.StreamSpec, sourceCodec, container string, tier preset.Tier, caps *capabilities.Snapshot) StreamDecision {
	logical := strings.ToLower(spec.Codec)
	sd := StreamDecision{Kind: kind, SourceCodec: sourceCodec, Logical: logical}

	switch {
	case logical == encoder.None || logical == "":
		sd.Action = ActionDrop
		return sd
	case sourceCodec == "":
		sd.Action = ActionDrop
		pl.warn(fmt.Sprintf("preset expected %s output but the source has no %s stream", kind, kind))
		return sd
	case logical == encoder.Copy:
		sd.Action = ActionCopy
		sd.Encoder = encoder.Copy
		if !compat.IsCompatible(container, sourceCodec) {
			pl.warn(fmt.Sprintf("%s codec %s is not known to be compatible with %s; copy may fail", kind, sourceCodec, container))
		}
		return sd
	case compat.NormalizeCodec(sourceCodec) == logical && compat.IsCompatible(container, logical):
		sd.Action = ActionCopy
		sd.Encoder = encoder.Copy
		return sd
	}

	sd.Action = ActionTranscode
	enc, ok := p.strategy.Select(logical, caps)
	if !ok || enc == "" {
		enc = logical
	}
	sd.Encoder = enc
	if caps != nil && !caps.HasEncoder(enc) {
		pl.warn(fmt.Sprintf("encoder %s is not reported by ffmpeg; execution may fail", enc))
	}
	sd.Tier = spec.Resolve(tier)
	sd.Quality = sd.Tier.Quality
	return sd
}

func applyVideo(b *ffargs.Builder, sd StreamDecision, spec preset.StreamSpec, probe media.ProbeSummary) {
	switch sd.Action {
	case ActionDrop:
		b.NoVideo()
	case ActionCopy:
		b.Map("0:v:0").VideoCodec(encoder.Copy)
	case ActionTranscode:
		b.Map("0:v:0").VideoCodec(sd.Encoder)
		q := sd.Quality
		if q.CRF != nil {
			b.CRF(*q.CRF)
		}
		if q.Bitrate != "" {
			b.VideoBitrate(q.Bitrate)
		}
		if q.Profile != "" {
			b.Profile(q.Profile)
		}
		if q.Preset != "" {
			b.Preset(q.Preset)
		}
		if spec.CopyColorMetadata {
			b.ColorMetadata(probe.Color)
		}
	}
}

func applyAudio(b *ffargs.Builder, sd StreamDecision) {
	switch sd.Action {
	case ActionDrop:
		b.NoAudio()
	case ActionCopy:
		b.Map("0:a:0").AudioCodec(encoder.Copy)
	case ActionTranscode:
		b.Map("0:a:0").AudioCodec(sd.Encoder)
		if sd.Quality.Bitrate != "" {
			b.AudioBitrate(sd.Quality.Bitrate)
		}
	}
}

func remuxOnly(streams ...StreamDecision) bool {
	for _, s := range streams {
		if s.Action == ActionTranscode {
			return false
		}
	}
	return true
}

func needsFastStart(container string) bool {
	switch container {
	case "mp4", "mov", "m4a":
		return true
	}
	return false
}
