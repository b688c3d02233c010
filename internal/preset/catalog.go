// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package preset

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/ManuGH/mediaconv/internal/media"
)

// Source containers accepted per media kind.
var (
	VideoSources = []string{"mp4", "mov", "mkv", "webm", "avi", "gif"}
	AudioSources = []string{"m4a", "mp3", "flac", "wav", "ogg", "aac"}
	ImageSources = []string{"png", "jpg", "webp", "bmp", "tiff"}
)

// Target describes one output container before it is paired with sources.
type Target struct {
	Container string
	Label     string
	Kind      media.Kind
	Video     StreamSpec
	Audio     StreamSpec
	Subtitles SubtitlePolicy
	Intensive bool
}

func crf(v int) *int { return &v }

func aacTiers() map[Tier]Quality {
	return map[Tier]Quality{
		TierFast:     {Bitrate: "128k"},
		TierBalanced: {Bitrate: "160k"},
		TierHigh:     {Bitrate: "256k"},
	}
}

func opusTiers() map[Tier]Quality {
	return map[Tier]Quality{
		TierFast:     {Bitrate: "96k"},
		TierBalanced: {Bitrate: "128k"},
		TierHigh:     {Bitrate: "192k"},
	}
}

func noStream() StreamSpec { return StreamSpec{Codec: "none"} }

// DefaultTargets returns the built-in output containers.
func DefaultTargets() []Target {
	return []Target{
		{
			Container: "mp4",
			Label:     "MP4 (H.264/AAC)",
			Kind:      media.KindVideo,
			Video: StreamSpec{
				Codec:             "h264",
				CopyColorMetadata: true,
				Base:              Quality{CRF: crf(23), Preset: "medium"},
				Tiers: map[Tier]Quality{
					TierFast:     {CRF: crf(26), Preset: "veryfast"},
					TierBalanced: {CRF: crf(23), Preset: "medium"},
					TierHigh:     {CRF: crf(18), Preset: "slow", Profile: "high"},
				},
			},
			Audio:     StreamSpec{Codec: "aac", Base: Quality{Bitrate: "160k"}, Tiers: aacTiers()},
			Subtitles: SubtitlesConvert,
		},
		{
			Container: "mov",
			Label:     "MOV (ProRes)",
			Kind:      media.KindVideo,
			Video: StreamSpec{
				Codec:             "prores",
				CopyColorMetadata: true,
				Base:              Quality{Profile: "2"},
				Tiers: map[Tier]Quality{
					TierFast:     {Profile: "1"},
					TierBalanced: {Profile: "2"},
					TierHigh:     {Profile: "3"},
				},
			},
			Audio:     StreamSpec{Codec: "aac", Base: Quality{Bitrate: "160k"}, Tiers: aacTiers()},
			Subtitles: SubtitlesConvert,
			Intensive: true,
		},
		{
			Container: "mkv",
			Label:     "MKV (remux)",
			Kind:      media.KindVideo,
			Video:     StreamSpec{Codec: "copy"},
			Audio:     StreamSpec{Codec: "copy"},
			Subtitles: SubtitlesKeep,
		},
		{
			Container: "webm",
			Label:     "WebM (VP9/Opus)",
			Kind:      media.KindVideo,
			Video: StreamSpec{
				Codec:             "vp9",
				CopyColorMetadata: true,
				Base:              Quality{CRF: crf(32), Bitrate: "0"},
				Tiers: map[Tier]Quality{
					TierFast:     {CRF: crf(36)},
					TierBalanced: {CRF: crf(32)},
					TierHigh:     {CRF: crf(28)},
				},
			},
			Audio:     StreamSpec{Codec: "opus", Base: Quality{Bitrate: "128k"}, Tiers: opusTiers()},
			Subtitles: SubtitlesConvert,
			Intensive: true,
		},
		{
			Container: "gif",
			Label:     "Animated GIF",
			Kind:      media.KindVideo,
			Video: StreamSpec{
				Codec: "gif",
				Base:  Quality{FPS: 15, MaxWidth: 480},
				Tiers: map[Tier]Quality{
					TierFast:     {FPS: 10, MaxWidth: 320},
					TierBalanced: {FPS: 15, MaxWidth: 480},
					TierHigh:     {FPS: 20, MaxWidth: 720},
				},
			},
			Audio:     noStream(),
			Subtitles: SubtitlesDrop,
		},
		{
			Container: "m4a",
			Label:     "M4A (AAC)",
			Kind:      media.KindAudio,
			Video:     noStream(),
			Audio:     StreamSpec{Codec: "aac", Base: Quality{Bitrate: "160k"}, Tiers: aacTiers()},
			Subtitles: SubtitlesDrop,
		},
		{
			Container: "mp3",
			Label:     "MP3",
			Kind:      media.KindAudio,
			Video:     noStream(),
			Audio: StreamSpec{Codec: "mp3", Base: Quality{Bitrate: "192k"}, Tiers: map[Tier]Quality{
				TierFast:     {Bitrate: "128k"},
				TierBalanced: {Bitrate: "192k"},
				TierHigh:     {Bitrate: "320k"},
			}},
			Subtitles: SubtitlesDrop,
		},
		{
			Container: "flac",
			Label:     "FLAC (lossless)",
			Kind:      media.KindAudio,
			Video:     noStream(),
			Audio:     StreamSpec{Codec: "flac"},
			Subtitles: SubtitlesDrop,
		},
		{
			Container: "wav",
			Label:     "WAV (PCM)",
			Kind:      media.KindAudio,
			Video:     noStream(),
			Audio:     StreamSpec{Codec: "pcm_s16le"},
			Subtitles: SubtitlesDrop,
		},
		{
			Container: "ogg",
			Label:     "Ogg (Opus)",
			Kind:      media.KindAudio,
			Video:     noStream(),
			Audio:     StreamSpec{Codec: "opus", Base: Quality{Bitrate: "128k"}, Tiers: opusTiers()},
			Subtitles: SubtitlesDrop,
		},
		{
			Container: "png",
			Label:     "PNG",
			Kind:      media.KindImage,
			Video:     StreamSpec{Codec: "png"},
			Audio:     noStream(),
			Subtitles: SubtitlesDrop,
		},
		{
			Container: "jpg",
			Label:     "JPEG",
			Kind:      media.KindImage,
			Video:     StreamSpec{Codec: "mjpeg"},
			Audio:     noStream(),
			Subtitles: SubtitlesDrop,
		},
		{
			Container: "webp",
			Label:     "WebP",
			Kind:      media.KindImage,
			Video:     StreamSpec{Codec: "webp"},
			Audio:     noStream(),
			Subtitles: SubtitlesDrop,
		},
	}
}

// pairAllowed encodes which source kinds may feed which target kinds.
func pairAllowed(source string, src, dst media.Kind) bool {
	switch src {
	case media.KindVideo:
		if dst == media.KindAudio {
			return source != "gif"
		}
		return dst == media.KindVideo
	case media.KindAudio:
		return dst == media.KindAudio
	case media.KindImage:
		return dst == media.KindImage
	}
	return false
}

// ID returns the preset id for a source/target pair.
func ID(source, target string) string {
	return source + "-to-" + target
}

// Catalog is an immutable, id-indexed set of presets.
type Catalog struct {
	byID map[string]Preset
	ids  []string
}

// Generate builds a catalog with one preset per valid source→target pair.
func Generate(targets []Target) *Catalog {
	c := &Catalog{byID: make(map[string]Preset)}
	var sources []string
	sources = append(sources, VideoSources...)
	sources = append(sources, AudioSources...)
	sources = append(sources, ImageSources...)

	for _, src := range sources {
		srcKind, _ := media.ContainerKind(src)
		for _, t := range targets {
			if src == t.Container || !pairAllowed(src, srcKind, t.Kind) {
				continue
			}
			p := Preset{
				ID:        ID(src, t.Container),
				Label:     fmt.Sprintf("%s → %s", strings.ToUpper(src), t.Label),
				Sources:   []string{src},
				Container: t.Container,
				Kind:      t.Kind,
				Video:     cloneStream(t.Video),
				Audio:     cloneStream(t.Audio),
				Subtitles: t.Subtitles,
				Intensive: t.Intensive,
			}
			c.byID[p.ID] = p
			c.ids = append(c.ids, p.ID)
		}
	}
	sort.Strings(c.ids)
	return c
}

// Default returns the catalog generated from DefaultTargets.
func Default() *Catalog {
	return Generate(DefaultTargets())
}

func cloneStream(s StreamSpec) StreamSpec {
	out := s
	out.Base = s.Base.Merge(Quality{})
	if s.Tiers != nil {
		out.Tiers = make(map[Tier]Quality, len(s.Tiers))
		for k, v := range s.Tiers {
			out.Tiers[k] = Quality{}.Merge(v)
		}
	}
	return out
}

// Get returns a copy of the preset with id.
func (c *Catalog) Get(id string) (Preset, bool) {
	p, ok := c.byID[id]
	if !ok {
		return Preset{}, false
	}
	p.Sources = slices.Clone(p.Sources)
	p.Video = cloneStream(p.Video)
	p.Audio = cloneStream(p.Audio)
	return p, true
}

// Has reports whether id exists.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// IDs returns all preset ids in lexical order.
func (c *Catalog) IDs() []string {
	return slices.Clone(c.ids)
}

// Len returns the number of presets.
func (c *Catalog) Len() int { return len(c.ids) }

// ForSource lists the presets accepting the source container.
func (c *Catalog) ForSource(container string) []Preset {
	var out []Preset
	for _, id := range c.ids {
		if p := c.byID[id]; p.AcceptsSource(container) {
			out = append(out, p)
		}
	}
	return out
}

// Targets returns the distinct output containers in the catalog.
func (c *Catalog) Targets() []string {
	set := make(map[string]struct{})
	for _, p := range c.byID {
		set[p.Container] = struct{}{}
	}
	return slices.Sorted(maps.Keys(set))
}
