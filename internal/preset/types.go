// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package preset defines conversion targets and their quality tiers.
package preset

import (
	"fmt"
	"strings"

	"github.com/ManuGH/mediaconv/internal/media"
)

// Tier selects a quality override block.
type Tier string

const (
	TierFast     Tier = "fast"
	TierBalanced Tier = "balanced"
	TierHigh     Tier = "high"
)

// Tiers lists every tier in ascending quality.
var Tiers = []Tier{TierFast, TierBalanced, TierHigh}

// ParseTier validates a tier name. An empty name selects balanced.
func ParseTier(s string) (Tier, error) {
	switch t := Tier(strings.ToLower(strings.TrimSpace(s))); t {
	case TierFast, TierBalanced, TierHigh:
		return t, nil
	case "":
		return TierBalanced, nil
	default:
		return "", fmt.Errorf("unknown tier %q (want fast, balanced or high)", s)
	}
}

// SubtitlePolicy controls subtitle stream handling.
type SubtitlePolicy string

const (
	SubtitlesKeep    SubtitlePolicy = "keep"
	SubtitlesConvert SubtitlePolicy = "convert"
	SubtitlesBurn    SubtitlePolicy = "burn"
	SubtitlesDrop    SubtitlePolicy = "drop"
)

// Quality is one set of encoder quality knobs. Zero values mean "unset".
type Quality struct {
	Bitrate  string `yaml:"bitrate,omitempty" json:"bitrate,omitempty"`
	CRF      *int   `yaml:"crf,omitempty" json:"crf,omitempty"`
	Profile  string `yaml:"profile,omitempty" json:"profile,omitempty"`
	Preset   string `yaml:"preset,omitempty" json:"preset,omitempty"`
	FPS      int    `yaml:"fps,omitempty" json:"fps,omitempty"`
	MaxWidth int    `yaml:"maxWidth,omitempty" json:"maxWidth,omitempty"`
}

// Merge returns q with every field set in over taking precedence.
func (q Quality) Merge(over Quality) Quality {
	out := q
	if over.Bitrate != "" {
		out.Bitrate = over.Bitrate
	}
	if over.CRF != nil {
		v := *over.CRF
		out.CRF = &v
	}
	if over.Profile != "" {
		out.Profile = over.Profile
	}
	if over.Preset != "" {
		out.Preset = over.Preset
	}
	if over.FPS != 0 {
		out.FPS = over.FPS
	}
	if over.MaxWidth != 0 {
		out.MaxWidth = over.MaxWidth
	}
	return out
}

// IsZero reports whether no field is set.
func (q Quality) IsZero() bool {
	return q.Bitrate == "" && q.CRF == nil && q.Profile == "" && q.Preset == "" && q.FPS == 0 && q.MaxWidth == 0
}

// Resolution is the outcome of tier resolution.
type Resolution struct {
	Quality   Quality
	Requested Tier
	// Resolved is the tier whose block was applied, or "" when only the base
	// values apply because no block in the fallback chain exists.
	Resolved Tier
	FellBack bool
}

// ResolveTier merges the override for requested onto base, falling back
// requested → balanced → fast when requested has no override. Without any
// overrides the base values apply as-is.
func ResolveTier(base Quality, tiers map[Tier]Quality, requested Tier) Resolution {
	res := Resolution{Quality: base, Requested: requested, Resolved: requested}
	if len(tiers) == 0 {
		return res
	}
	for _, t := range []Tier{requested, TierBalanced, TierFast} {
		if over, ok := tiers[t]; ok {
			res.Quality = base.Merge(over)
			res.Resolved = t
			res.FellBack = t != requested
			return res
		}
	}
	res.Resolved = ""
	res.FellBack = true
	return res
}

// StreamSpec describes the target of one stream kind.
type StreamSpec struct {
	Codec             string           `yaml:"codec" json:"codec"`
	CopyColorMetadata bool             `yaml:"copyColorMetadata,omitempty" json:"copyColorMetadata,omitempty"`
	Base              Quality          `yaml:"base,omitempty" json:"base"`
	Tiers             map[Tier]Quality `yaml:"tiers,omitempty" json:"tiers,omitempty"`
}

// Resolve applies ResolveTier to this stream.
func (s StreamSpec) Resolve(t Tier) Resolution {
	return ResolveTier(s.Base, s.Tiers, t)
}

// Preset is an immutable conversion target.
type Preset struct {
	ID        string         `json:"id"`
	Label     string         `json:"label"`
	Sources   []string       `json:"sources"`
	Container string         `json:"container"`
	Kind      media.Kind     `json:"kind"`
	Video     StreamSpec     `json:"video"`
	Audio     StreamSpec     `json:"audio"`
	Subtitles SubtitlePolicy `json:"subtitles"`
	// Intensive marks presets whose transcodes must run alone.
	Intensive bool `json:"intensive"`
}

// AcceptsSource reports whether container is one of the preset's sources.
func (p Preset) AcceptsSource(container string) bool {
	c := strings.ToLower(container)
	for _, s := range p.Sources {
		if s == c {
			return true
		}
	}
	return false
}
