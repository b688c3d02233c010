// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package probe implements media.Prober on top of ffprobe's JSON output.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/ManuGH/mediaconv/internal/binresolve"
	"github.com/ManuGH/mediaconv/internal/compat"
	"github.com/ManuGH/mediaconv/internal/joberr"
	"github.com/ManuGH/mediaconv/internal/log"
	"github.com/ManuGH/mediaconv/internal/media"
)

// maxStderr bounds the stderr excerpt attached to errors and logs.
const maxStderr = 4096

// Resolver locates the ffprobe binary.
type Resolver interface {
	Resolve() (binresolve.Resolution, error)
}

// CommandFunc runs bin with args and returns stdout and stderr.
type CommandFunc func(ctx context.Context, bin string, args ...string) (stdout, stderr []byte, err error)

// Prober runs ffprobe for each source.
type Prober struct {
	resolver Resolver
	run      CommandFunc
}

// New returns a Prober resolving ffprobe through r.
func New(r Resolver) *Prober {
	return &Prober{resolver: r, run: execCommand}
}

// WithCommand replaces process execution, used by tests.
func (p *Prober) WithCommand(fn CommandFunc) *Prober {
	p.run = fn
	return p
}

// Args returns the ffprobe argument vector for path.
func Args(path string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}
}

// Probe implements media.Prober.
func (p *Prober) Probe(ctx context.Context, path string) (media.ProbeSummary, error) {
	res, err := p.resolver.Resolve()
	if err != nil {
		return media.ProbeSummary{}, err
	}

	stdout, stderr, runErr := p.run(ctx, res.Path, Args(path)...)
	if ctx.Err() != nil {
		return media.ProbeSummary{}, ctx.Err()
	}

	summary, parseErr := Parse(stdout)
	switch {
	case parseErr == nil && runErr != nil:
		// ffprobe exits non-zero on damaged tails while still reporting
		// usable streams.
		l := log.WithComponent("probe")
		l.Warn().
			Err(runErr).
			Str(log.FieldPath, path).
			Str("stderr", truncate(stderr)).
			Msg("ffprobe non-zero exit but JSON accepted")
	case parseErr != nil && runErr != nil:
		return media.ProbeSummary{}, joberr.Wrap(joberr.CodeProbeFailed,
			fmt.Sprintf("ffprobe failed (stderr: %s)", truncate(stderr)), runErr)
	case parseErr != nil:
		return media.ProbeSummary{}, joberr.Wrap(joberr.CodeProbeFailed, "decode ffprobe output", parseErr)
	}
	return summary, nil
}

type probeData struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		Tags       struct {
			MajorBrand string `json:"major_brand"`
		} `json:"tags"`
	} `json:"format"`
}

type probeStream struct {
	CodecType      string `json:"codec_type"`
	CodecName      string `json:"codec_name"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	AvgFrameRate   string `json:"avg_frame_rate"`
	RFrameRate     string `json:"r_frame_rate"`
	Channels       int    `json:"channels"`
	Duration       string `json:"duration"`
	ColorPrimaries string `json:"color_primaries"`
	ColorTransfer  string `json:"color_transfer"`
	ColorSpace     string `json:"color_space"`
	Disposition    struct {
		AttachedPic int `json:"attached_pic"`
	} `json:"disposition"`
}

// ErrNoStreams is returned for output without any decodable stream.
var ErrNoStreams = errors.New("ffprobe reported no usable streams")

// Parse converts ffprobe JSON into a summary. The first video and the first
// audio stream describe the source; cover art is not a video stream.
func Parse(data []byte) (media.ProbeSummary, error) {
	var pd probeData
	if err := json.Unmarshal(data, &pd); err != nil {
		return media.ProbeSummary{}, fmt.Errorf("json decode: %w", err)
	}

	var s media.ProbeSummary
	s.Format = pd.Format.FormatName
	s.Brand = strings.TrimSpace(pd.Format.Tags.MajorBrand)
	usable := false

	for _, st := range pd.Streams {
		switch st.CodecType {
		case "video":
			if st.Disposition.AttachedPic == 1 || s.VideoCodec != "" || st.CodecName == "" {
				continue
			}
			usable = true
			s.VideoCodec = st.CodecName
			s.Width = st.Width
			s.Height = st.Height
			s.FPS = frameRate(st.AvgFrameRate)
			if s.FPS == 0 {
				s.FPS = frameRate(st.RFrameRate)
			}
			s.Color = media.ColorMetadata{
				Primaries: known(st.ColorPrimaries),
				Transfer:  known(st.ColorTransfer),
				Space:     known(st.ColorSpace),
			}
			if s.DurationSec == 0 {
				s.DurationSec = seconds(st.Duration)
			}
		case "audio":
			if s.AudioCodec != "" || st.CodecName == "" {
				continue
			}
			usable = true
			s.AudioCodec = st.CodecName
			s.Channels = st.Channels
		case "subtitle":
			if st.CodecName == "" {
				continue
			}
			s.SubtitleCodecs = append(s.SubtitleCodecs, st.CodecName)
			if compat.IsImageSubtitle(st.CodecName) {
				s.HasImageSubtitles = true
			} else {
				s.HasTextSubtitles = true
			}
		}
	}
	if !usable && pd.Format.FormatName == "" {
		return media.ProbeSummary{}, ErrNoStreams
	}

	if d := seconds(pd.Format.Duration); d > 0 {
		s.DurationSec = d
	}
	return s, nil
}

// frameRate parses "num/den" rates; "0/0" and garbage yield 0.
func frameRate(r string) float64 {
	num, den, ok := strings.Cut(r, "/")
	if !ok {
		return 0
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

func seconds(s string) float64 {
	if s == "" || s == "N/A" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func known(tag string) string {
	if tag == "unknown" {
		return ""
	}
	return tag
}

func truncate(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxStderr {
		return s[:maxStderr] + "..."
	}
	return s
}

func execCommand(ctx context.Context, bin string, args ...string) ([]byte, []byte, error) {
	// #nosec G204 -- bin comes from the resolver; the source path is a single argv element
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
