// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package media holds the source-side data model: the probe summary consumed
// by planning, container kinds and container inference from paths.
package media

import (
	"context"
	"path/filepath"
	"strings"
)

// Kind is the media family a container belongs to.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
	KindImage Kind = "image"
)

// ColorMetadata carries the color tags of the first video stream. Empty
// fields were not reported by the prober.
type ColorMetadata struct {
	Primaries string `json:"primaries,omitempty"`
	Transfer  string `json:"transfer,omitempty"`
	Space     string `json:"space,omitempty"`
}

// Empty reports whether no color tag is present.
func (c ColorMetadata) Empty() bool {
	return c.Primaries == "" && c.Transfer == "" && c.Space == ""
}

// ProbeSummary is an immutable description of one source file.
type ProbeSummary struct {
	DurationSec       float64       `json:"durationSec,omitempty"` // 0 when unknown
	Format            string        `json:"format,omitempty"`
	Brand             string        `json:"brand,omitempty"` // ISO major brand, "" outside the mp4 family
	VideoCodec        string        `json:"videoCodec,omitempty"`
	AudioCodec        string        `json:"audioCodec,omitempty"`
	Width             int           `json:"width,omitempty"`
	Height            int           `json:"height,omitempty"`
	FPS               float64       `json:"fps,omitempty"`
	Channels          int           `json:"channels,omitempty"`
	Color             ColorMetadata `json:"color"`
	HasTextSubtitles  bool          `json:"hasTextSubtitles"`
	HasImageSubtitles bool          `json:"hasImageSubtitles"`
	SubtitleCodecs    []string      `json:"subtitleCodecs,omitempty"`
}

// HasVideo reports whether the source carries a video stream.
func (p ProbeSummary) HasVideo() bool { return p.VideoCodec != "" }

// HasAudio reports whether the source carries an audio stream.
func (p ProbeSummary) HasAudio() bool { return p.AudioCodec != "" }

// HasSubtitles reports whether any subtitle stream is present.
func (p ProbeSummary) HasSubtitles() bool { return p.HasTextSubtitles || p.HasImageSubtitles }

// Prober produces a ProbeSummary for a source path.
type Prober interface {
	Probe(ctx context.Context, path string) (ProbeSummary, error)
}

// ProberFunc adapts a plain function to Prober.
type ProberFunc func(ctx context.Context, path string) (ProbeSummary, error)

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context, path string) (ProbeSummary, error) {
	return f(ctx, path)
}

var containerKinds = map[string]Kind{
	"mp4":  KindVideo,
	"mov":  KindVideo,
	"mkv":  KindVideo,
	"webm": KindVideo,
	"avi":  KindVideo,
	"gif":  KindVideo,
	"m4a":  KindAudio,
	"mp3":  KindAudio,
	"flac": KindAudio,
	"wav":  KindAudio,
	"ogg":  KindAudio,
	"aac":  KindAudio,
	"png":  KindImage,
	"jpg":  KindImage,
	"webp": KindImage,
	"bmp":  KindImage,
	"tiff": KindImage,
}

// ContainerKind returns the media kind of a known container.
func ContainerKind(container string) (Kind, bool) {
	k, ok := containerKinds[strings.ToLower(container)]
	return k, ok
}

var extAliases = map[string]string{
	"m4v":  "mp4",
	"qt":   "mov",
	"jpeg": "jpg",
	"tif":  "tiff",
	"oga":  "ogg",
	"opus": "ogg",
}

// formatNames maps the first comma-separated token of an ffprobe format name
// to a container. ffprobe reports one "mov,mp4,m4a,..." demuxer for the whole
// ISO family, so that entry is refined by the major brand.
var formatNames = map[string]string{
	"mov":       "mp4",
	"matroska":  "mkv",
	"webm":      "webm",
	"avi":       "avi",
	"gif":       "gif",
	"mp3":       "mp3",
	"flac":      "flac",
	"wav":       "wav",
	"ogg":       "ogg",
	"aac":       "aac",
	"ipod":      "m4a",
	"png_pipe":  "png",
	"jpeg_pipe": "jpg",
	"webp_pipe": "webp",
	"bmp_pipe":  "bmp",
	"tiff_pipe": "tiff",
	"image2":    "png",
	"gif_pipe":  "gif",
	"mjpeg":     "jpg",
}

// isoBrands maps an ISO base media major brand to a container.
var isoBrands = map[string]string{
	"qt":   "mov",
	"m4a":  "m4a",
	"m4b":  "m4a",
	"m4v":  "mp4",
	"isom": "mp4",
	"mp41": "mp4",
	"mp42": "mp4",
}

// InferContainer returns the source container for path, using the file
// extension first and the prober's format name and major brand as a
// fallback. It returns "" when neither is recognized.
func InferContainer(path, format, brand string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if alias, ok := extAliases[ext]; ok {
		ext = alias
	}
	if _, ok := containerKinds[ext]; ok {
		return ext
	}
	if format == "" {
		return ""
	}
	first, _, _ := strings.Cut(strings.ToLower(format), ",")
	first = strings.TrimSpace(first)
	c, ok := formatNames[first]
	if !ok {
		return ""
	}
	if first == "mov" {
		if b, ok := isoBrands[strings.ToLower(strings.TrimSpace(brand))]; ok {
			return b
		}
	}
	return c
}
