// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// mediaconv converts media files with ffmpeg.
//
// Usage:
//
//	mediaconv [-config file] -preset <id> [-tier fast|balanced|high] [-out dir] <inputs...>
//	mediaconv presets [-source ext]
//	mediaconv caps [-refresh]
//	mediaconv version
//
// Exit codes:
//   - 0: every job completed
//   - 1: a job failed or was cancelled, or setup failed
//   - 2: usage error
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ManuGH/mediaconv/internal/version"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 {
		switch args[0] {
		case "presets":
			return runPresets(args[1:], stdout, stderr)
		case "caps":
			return runCaps(ctx, args[1:], stdout, stderr)
		case "version":
			_, _ = fmt.Fprintln(stdout, version.String())
			return exitOK
		}
	}
	return runConvert(ctx, args, stdout, stderr)
}
