package validation

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v4/disk"

	"github.com/ManuGH/mediaconv/internal/joberr"
	"github.com/ManuGH/mediaconv/internal/log"
)

// DefaultMinFreeBytes is the free-space level below which OutputCheck warns.
const DefaultMinFreeBytes = 1 << 30

// OutputCheck prepares the output directory and proves it is writable.
type OutputCheck struct {
	// MinFreeBytes triggers a low-space warning. Zero disables the probe.
	MinFreeBytes uint64
}

func (OutputCheck) Name() string { return "output" }

func (c OutputCheck) Check(ctx context.Context, in Input) error {
	if in.OutputPath == "" {
		return joberr.New(joberr.CodeOutputPrepare, "output path is empty")
	}
	dir := filepath.Dir(in.OutputPath)

	// #nosec G301 -- output directories follow the user's umask
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return joberr.Wrap(joberr.CodeOutputDirectory, "create output directory "+dir, err)
	}

	f, err := os.CreateTemp(dir, ".mediaconv-write-*")
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return joberr.Wrap(joberr.CodeOutputPermission, "unable to write output file at "+in.OutputPath, err)
		}
		return joberr.Wrap(joberr.CodeOutputPrepare, "prepare output file "+in.OutputPath, err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)

	if c.MinFreeBytes > 0 {
		c.warnLowSpace(ctx, in.JobID, dir)
	}
	return nil
}

func (c OutputCheck) warnLowSpace(ctx context.Context, jobID, dir string) {
	usage, err := disk.UsageWithContext(ctx, dir)
	if err != nil {
		return
	}
	if usage.Free < c.MinFreeBytes {
		l := log.WithComponent("validation")
		l.Warn().
			Str(log.FieldJobID, jobID).
			Str(log.FieldPath, dir).
			Uint64("free_bytes", usage.Free).
			Uint64("min_free_bytes", c.MinFreeBytes).
			Msg("low free space on output volume")
	}
}
