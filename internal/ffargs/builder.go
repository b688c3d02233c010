// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ffargs accumulates ffmpeg command-line arguments in call order.
//
// The output path is fixed at construction and always rendered as the final
// token. Build consumes the Builder; any later call panics.
package ffargs

import (
	"slices"
	"strconv"
	"strings"

	"github.com/ManuGH/mediaconv/internal/media"
)

// Builder is a fluent, order-preserving argument accumulator.
type Builder struct {
	output string
	args   []string
	notes  []string
	once   map[string]struct{}
	built  bool
}

// New starts a command writing to outputPath.
func New(outputPath string) *Builder {
	return &Builder{output: outputPath, once: make(map[string]struct{})}
}

func (b *Builder) mustBeOpen() {
	if b.built {
		panic("ffargs: builder used after Build")
	}
}

func (b *Builder) add(tokens ...string) *Builder {
	b.mustBeOpen()
	b.args = append(b.args, tokens...)
	return b
}

// flag appends tokens the first time key is seen.
func (b *Builder) flag(key string, tokens ...string) *Builder {
	b.mustBeOpen()
	if _, seen := b.once[key]; seen {
		return b
	}
	b.once[key] = struct{}{}
	b.args = append(b.args, tokens...)
	return b
}

// Overwrite adds -y.
func (b *Builder) Overwrite() *Builder { return b.flag("-y", "-y") }

// NoStdin adds -nostdin.
func (b *Builder) NoStdin() *Builder { return b.flag("-nostdin", "-nostdin") }

// HideBanner adds -hide_banner.
func (b *Builder) HideBanner() *Builder { return b.flag("-hide_banner", "-hide_banner") }

// ProgressReporting routes machine-readable progress to stderr and disables
// the interactive stats line.
func (b *Builder) ProgressReporting() *Builder {
	return b.flag("-progress", "-progress", "pipe:2", "-nostats")
}

// Input adds an input file.
func (b *Builder) Input(path string) *Builder { return b.add("-i", path) }

// Map adds a stream mapping such as "0:v:0?" or "-0:s:m:codec:pgs".
func (b *Builder) Map(spec string) *Builder { return b.add("-map", spec) }

// VideoCodec sets the video encoder.
func (b *Builder) VideoCodec(enc string) *Builder { return b.add("-c:v", enc) }

// AudioCodec sets the audio encoder.
func (b *Builder) AudioCodec(enc string) *Builder { return b.add("-c:a", enc) }

// SubtitleCodec sets the subtitle encoder.
func (b *Builder) SubtitleCodec(enc string) *Builder { return b.add("-c:s", enc) }

// CRF sets the constant-rate-factor quality.
func (b *Builder) CRF(v int) *Builder { return b.add("-crf", strconv.Itoa(v)) }

// VideoBitrate sets the target video bitrate.
func (b *Builder) VideoBitrate(rate string) *Builder { return b.add("-b:v", rate) }

// AudioBitrate sets the target audio bitrate.
func (b *Builder) AudioBitrate(rate string) *Builder { return b.add("-b:a", rate) }

// Profile sets the video codec profile.
func (b *Builder) Profile(p string) *Builder { return b.add("-profile:v", p) }

// Preset sets the encoder speed preset.
func (b *Builder) Preset(p string) *Builder { return b.add("-preset", p) }

// FilterComplex sets a filter graph.
func (b *Builder) FilterComplex(graph string) *Builder { return b.add("-filter_complex", graph) }

// ColorMetadata tags the output with the present color fields of c.
func (b *Builder) ColorMetadata(c media.ColorMetadata) *Builder {
	b.mustBeOpen()
	if c.Primaries != "" {
		b.args = append(b.args, "-color_primaries", c.Primaries)
	}
	if c.Transfer != "" {
		b.args = append(b.args, "-color_trc", c.Transfer)
	}
	if c.Space != "" {
		b.args = append(b.args, "-colorspace", c.Space)
	}
	return b
}

// NoVideo adds -vn.
func (b *Builder) NoVideo() *Builder { return b.flag("-vn", "-vn") }

// NoAudio adds -an.
func (b *Builder) NoAudio() *Builder { return b.flag("-an", "-an") }

// NoSubtitles adds -sn.
func (b *Builder) NoSubtitles() *Builder { return b.flag("-sn", "-sn") }

// Frames limits the number of video frames written.
func (b *Builder) Frames(n int) *Builder { return b.add("-frames:v", strconv.Itoa(n)) }

// FastStart moves the MP4 index to the front of the file.
func (b *Builder) FastStart() *Builder { return b.flag("-movflags", "-movflags", "+faststart") }

// Option appends an arbitrary flag/value pair.
func (b *Builder) Option(flag, value string) *Builder { return b.add(flag, value) }

var muxers = map[string]string{
	"mp4":  "mp4",
	"mov":  "mov",
	"mkv":  "matroska",
	"webm": "webm",
	"gif":  "gif",
	"m4a":  "ipod",
	"mp3":  "mp3",
	"flac": "flac",
	"wav":  "wav",
	"ogg":  "ogg",
	"png":  "image2",
	"jpg":  "image2",
	"webp": "image2",
}

// MuxerFor returns the ffmpeg muxer name for a container.
func MuxerFor(container string) (string, bool) {
	m, ok := muxers[strings.ToLower(container)]
	return m, ok
}

// Muxer forces the output format. Unknown containers add nothing.
func (b *Builder) Muxer(container string) *Builder {
	m, ok := MuxerFor(container)
	if !ok {
		b.mustBeOpen()
		return b
	}
	return b.flag("-f", "-f", m)
}

// Note records a human-readable remark carried alongside the arguments.
func (b *Builder) Note(note string) *Builder {
	b.mustBeOpen()
	if note != "" {
		b.notes = append(b.notes, note)
	}
	return b
}

// Notes appends several remarks.
func (b *Builder) Notes(notes ...string) *Builder {
	for _, n := range notes {
		b.Note(n)
	}
	return b
}

// Build finalizes the command. The Builder must not be used afterwards.
func (b *Builder) Build() Command {
	b.mustBeOpen()
	b.built = true
	args := make([]string, 0, len(b.args)+1)
	args = append(args, b.args...)
	args = append(args, b.output)
	return Command{args: args, notes: slices.Clone(b.notes)}
}

// Command is a finalized, immutable argument vector.
type Command struct {
	args  []string
	notes []string
}

// Args returns a copy of the argument tokens, output path last.
func (c Command) Args() []string { return slices.Clone(c.args) }

// Notes returns a copy of the accumulated remarks.
func (c Command) Notes() []string { return slices.Clone(c.notes) }

// OutputPath returns the final token.
func (c Command) OutputPath() string {
	if len(c.args) == 0 {
		return ""
	}
	return c.args[len(c.args)-1]
}

// Len returns the number of tokens.
func (c Command) Len() int { return len(c.args) }

// String renders the arguments space-joined, for logs.
func (c Command) String() string { return strings.Join(c.args, " ") }
