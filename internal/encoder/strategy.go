// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package encoder maps logical codec names to concrete ffmpeg encoders.
package encoder

import (
	"fmt"
	"strings"

	"github.com/ManuGH/mediaconv/internal/capabilities"
)

// Logical codec markers with special meaning.
const (
	None = "none"
	Copy = "copy"
)

// Strategy resolves a logical codec to an encoder identifier. ok is false
// when the stream must be dropped or the codec is unknown.
type Strategy interface {
	Select(logical string, caps *capabilities.Snapshot) (encoder string, ok bool)
	Name() string
}

// Kind names a Strategy implementation.
type Kind string

const (
	KindHardware Kind = "hardware"
	KindSoftware Kind = "software"
)

// New returns the strategy for kind.
func New(kind Kind) (Strategy, error) {
	switch Kind(strings.ToLower(string(kind))) {
	case KindHardware, "":
		return HardwareFirst{}, nil
	case KindSoftware:
		return SoftwareOnly{}, nil
	default:
		return nil, fmt.Errorf("unknown encoder strategy %q", kind)
	}
}

// softwareEncoders lists software candidates per logical codec; the first
// entry is the primary encoder.
var softwareEncoders = map[string][]string{
	"h264":      {"libx264"},
	"hevc":      {"libx265"},
	"av1":       {"libsvtav1", "libaom-av1"},
	"vp9":       {"libvpx-vp9"},
	"prores":    {"prores_ks", "prores"},
	"gif":       {"gif"},
	"png":       {"png"},
	"mjpeg":     {"mjpeg"},
	"webp":      {"libwebp"},
	"aac":       {"aac"},
	"mp3":       {"libmp3lame"},
	"opus":      {"libopus"},
	"flac":      {"flac"},
	"pcm_s16le": {"pcm_s16le"},
	"alac":      {"alac"},
}

// hardwareEncoders lists hardware variants in preference order.
var hardwareEncoders = map[string][]string{
	"h264":   {"h264_videotoolbox", "h264_nvenc"},
	"hevc":   {"hevc_videotoolbox", "hevc_nvenc"},
	"prores": {"prores_videotoolbox"},
	"av1":    {"av1_nvenc"},
}

func special(logical string) (string, bool, bool) {
	switch logical {
	case None, "":
		return "", false, true
	case Copy:
		return Copy, true, true
	}
	return "", false, false
}

// HardwareFirst prefers a hardware encoder present in the snapshot, then a
// present software candidate, then the primary software encoder. Without a
// snapshot it always answers the primary software encoder.
type HardwareFirst struct{}

func (HardwareFirst) Name() string { return string(KindHardware) }

func (HardwareFirst) Select(logical string, caps *capabilities.Snapshot) (string, bool) {
	logical = strings.ToLower(logical)
	if enc, ok, handled := special(logical); handled {
		return enc, ok
	}
	sw, known := softwareEncoders[logical]
	if !known {
		return "", false
	}
	if caps == nil {
		return sw[0], true
	}
	for _, hw := range hardwareEncoders[logical] {
		if caps.HasEncoder(hw) {
			return hw, true
		}
	}
	for _, cand := range sw {
		if caps.HasEncoder(cand) {
			return cand, true
		}
	}
	return sw[0], true
}

// SoftwareOnly always answers the primary software encoder.
type SoftwareOnly struct{}

func (SoftwareOnly) Name() string { return string(KindSoftware) }

func (SoftwareOnly) Select(logical string, _ *capabilities.Snapshot) (string, bool) {
	logical = strings.ToLower(logical)
	if enc, ok, handled := special(logical); handled {
		return enc, ok
	}
	sw, known := softwareEncoders[logical]
	if !known {
		return "", false
	}
	return sw[0], true
}

// IsHardware reports whether enc is one of the known hardware encoders.
func IsHardware(enc string) bool {
	for _, list := range hardwareEncoders {
		for _, hw := range list {
			if hw == enc {
				return true
			}
		}
	}
	return false
}
