// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package compat answers which codecs a target container can carry without
// re-encoding. The planner uses it as the guard before choosing stream copy.
package compat

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

var folder = cases.Fold()

var codecAliases = map[string]string{
	"avc":     "h264",
	"avc1":    "h264",
	"x264":    "h264",
	"h265":    "hevc",
	"hvc1":    "hevc",
	"hev1":    "hevc",
	"x265":    "hevc",
	"av01":    "av1",
	"vp09":    "vp9",
	"mp4a":    "aac",
	"libopus": "opus",
	"pcm":     "pcm_s16le",
	"apcn":    "prores",
	"apch":    "prores",
	"jpeg":    "mjpeg",
	"jpg":     "mjpeg",
	"subrip":  "srt",
	"tx3g":    "mov_text",
	"pgssub":  "hdmv_pgs_subtitle",
}

// NormalizeCodec folds case and resolves common codec aliases.
func NormalizeCodec(codec string) string {
	c := folder.String(strings.TrimSpace(codec))
	if alias, ok := codecAliases[c]; ok {
		return alias
	}
	return c
}

var allowed = map[string][]string{
	"mp4":  {"h264", "hevc", "av1", "mpeg4", "aac", "mp3", "alac", "flac", "opus", "mov_text"},
	"mov":  {"h264", "hevc", "prores", "mjpeg", "aac", "alac", "pcm_s16le", "pcm_s24le", "mp3", "mov_text"},
	"mkv":  {"h264", "hevc", "av1", "vp8", "vp9", "prores", "mpeg4", "aac", "mp3", "opus", "vorbis", "flac", "alac", "ac3", "eac3", "dts", "pcm_s16le", "srt", "ass", "ssa", "webvtt", "hdmv_pgs_subtitle", "dvd_subtitle"},
	"webm": {"vp8", "vp9", "av1", "opus", "vorbis", "webvtt"},
	"gif":  {"gif"},
	"m4a":  {"aac", "alac"},
	"mp3":  {"mp3"},
	"flac": {"flac"},
	"wav":  {"pcm_s16le", "pcm_s24le", "pcm_f32le"},
	"ogg":  {"opus", "vorbis", "flac"},
	"png":  {"png"},
	"jpg":  {"mjpeg"},
	"webp": {"webp"},
}

// IsCompatible reports whether codec may be stored in container as-is.
// Unknown containers accept nothing.
func IsCompatible(container, codec string) bool {
	list, ok := allowed[strings.ToLower(container)]
	if !ok {
		return false
	}
	return slices.Contains(list, NormalizeCodec(codec))
}

// AllowedCodecs returns a copy of the codec set for container, or nil when the
// container is unknown.
func AllowedCodecs(container string) []string {
	list, ok := allowed[strings.ToLower(container)]
	if !ok {
		return nil
	}
	return slices.Clone(list)
}

var imageSubtitleCodecs = []string{
	"hdmv_pgs_subtitle",
	"pgs",
	"dvd_subtitle",
	"dvdsub",
	"xsub",
	"dvb_subtitle",
}

// ImageSubtitleCodecs lists the bitmap subtitle codecs that cannot be
// re-tagged as text.
func ImageSubtitleCodecs() []string {
	return slices.Clone(imageSubtitleCodecs)
}

// IsImageSubtitle reports whether codec is a bitmap subtitle format.
func IsImageSubtitle(codec string) bool {
	return slices.Contains(imageSubtitleCodecs, NormalizeCodec(codec))
}

var textSubtitleCodec = map[string]string{
	"mp4":  "mov_text",
	"mov":  "mov_text",
	"webm": "webvtt",
	"mkv":  "srt",
}

// TextSubtitleCodec returns the text subtitle codec container expects, or ""
// when the container carries no subtitles.
func TextSubtitleCodec(container string) string {
	return textSubtitleCodec[strings.ToLower(container)]
}
