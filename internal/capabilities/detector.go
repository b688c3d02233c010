// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package capabilities

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ManuGH/mediaconv/internal/log"
)

// CommandFunc runs bin with args and returns its standard output.
type CommandFunc func(ctx context.Context, bin string, args ...string) ([]byte, error)

// Detector loads, caches and refreshes the capability snapshot of one ffmpeg
// binary. It is safe for concurrent use.
type Detector struct {
	bin       string
	cachePath string
	run       CommandFunc
	logger    zerolog.Logger

	group   singleflight.Group
	current atomic.Pointer[Snapshot]
}

// NewDetector returns a Detector for bin. An empty cachePath disables the
// on-disk cache.
func NewDetector(bin, cachePath string) *Detector {
	return &Detector{
		bin:       bin,
		cachePath: cachePath,
		run:       execCommand,
		logger:    log.WithComponent("capabilities"),
	}
}

// WithCommand replaces the command executor, for tests.
func (d *Detector) WithCommand(fn CommandFunc) *Detector {
	d.run = fn
	return d
}

// Snapshot returns the current snapshot, or nil before the first Load or
// Refresh completes.
func (d *Detector) Snapshot() *Snapshot {
	return d.current.Load()
}

// Load returns the current snapshot, reading the cache file or detecting on
// first use.
func (d *Detector) Load(ctx context.Context) (*Snapshot, error) {
	if s := d.current.Load(); s != nil {
		return s, nil
	}
	if s, err := d.readCache(); err == nil {
		d.current.CompareAndSwap(nil, s)
		d.logger.Debug().Str(log.FieldPath, d.cachePath).Msg("capabilities loaded from cache")
		return d.current.Load(), nil
	} else if !errors.Is(err, os.ErrNotExist) {
		d.logger.Warn().Err(err).Str(log.FieldPath, d.cachePath).Msg("ignoring unreadable capability cache")
	}
	return d.Refresh(ctx)
}

// Refresh re-detects capabilities and rewrites the cache. Concurrent callers
// share one detection run; the run that detects also publishes the snapshot.
func (d *Detector) Refresh(ctx context.Context) (*Snapshot, error) {
	v, err, _ := d.group.Do("refresh", func() (interface{}, error) {
		snap, err := d.detect(ctx)
		if err != nil {
			return nil, err
		}
		d.current.Store(snap)
		if err := d.writeCache(snap); err != nil {
			d.logger.Warn().Err(err).Str(log.FieldPath, d.cachePath).Msg("failed to write capability cache")
		}
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

func (d *Detector) detect(ctx context.Context) (*Snapshot, error) {
	var encOut, fmtOut, filOut []byte
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		encOut, err = d.run(gctx, d.bin, "-hide_banner", "-encoders")
		return wrapDetect("encoders", err)
	})
	g.Go(func() (err error) {
		fmtOut, err = d.run(gctx, d.bin, "-hide_banner", "-formats")
		return wrapDetect("formats", err)
	})
	g.Go(func() (err error) {
		filOut, err = d.run(gctx, d.bin, "-hide_banner", "-filters")
		return wrapDetect("filters", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	video, audio := ParseEncoders(string(encOut))
	snap := &Snapshot{
		VideoEncoders: video,
		AudioEncoders: audio,
		Formats:       ParseFormats(string(fmtOut)),
		Filters:       ParseFilters(string(filOut)),
	}
	d.logger.Info().
		Str(log.FieldBinary, d.bin).
		Int("video_encoders", len(video)).
		Int("audio_encoders", len(audio)).
		Int("formats", len(snap.Formats)).
		Int("filters", len(snap.Filters)).
		Msg("capabilities detected")
	return snap, nil
}

func wrapDetect(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("detect %s: %w", what, err)
}

func (d *Detector) readCache() (*Snapshot, error) {
	if d.cachePath == "" {
		return nil, os.ErrNotExist
	}
	data, err := os.ReadFile(d.cachePath)
	if err != nil {
		return nil, err
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode capability cache: %w", err)
	}
	if s.Empty() {
		return nil, fmt.Errorf("capability cache %s has no encoders", d.cachePath)
	}
	return &s, nil
}

func (d *Detector) writeCache(s *Snapshot) error {
	if d.cachePath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(d.cachePath), 0o750); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode capabilities: %w", err)
	}
	return renameio.WriteFile(d.cachePath, data, 0o644)
}

func execCommand(ctx context.Context, bin string, args ...string) ([]byte, error) {
	// #nosec G204 -- bin comes from the binary resolver, args are constant.
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%s %s: %w (stderr: %s)", bin, strings.Join(args, " "), err, msg)
		}
		return nil, fmt.Errorf("%s %s: %w", bin, strings.Join(args, " "), err)
	}
	return out, nil
}
