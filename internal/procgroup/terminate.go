// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup spawns engine processes in their own process group and
// stops the whole group.
package procgroup

import (
	"errors"
	"os/exec"
	"syscall"
	"time"

	xglog "github.com/ManuGH/mediaconv/internal/log"
	"github.com/ManuGH/mediaconv/internal/metrics"
)

// DefaultGrace is the delay between SIGTERM and SIGKILL.
const DefaultGrace = 5 * time.Second

// ErrProcessGone reports that the target process group no longer exists.
var ErrProcessGone = errors.New("process already exited")

// Terminate sends SIGTERM to the group of cmd and, if exited is not closed
// within grace, SIGKILL. The caller keeps ownership of cmd.Wait; exited must
// be closed once Wait returns.
func Terminate(cmd *exec.Cmd, exited <-chan struct{}, grace time.Duration) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	if grace <= 0 {
		grace = DefaultGrace
	}
	logger := xglog.WithComponent("procgroup")
	pid := cmd.Process.Pid

	logger.Debug().Int(xglog.FieldPID, pid).Msg("sending SIGTERM to process group")
	if signal(cmd, syscall.SIGTERM, "SIGTERM") == "esrch" {
		return
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-exited:
		return
	case <-timer.C:
	}

	logger.Warn().
		Int(xglog.FieldPID, pid).
		Dur("grace", grace).
		Msg("SIGTERM grace period exceeded, sending SIGKILL to process group")
	signal(cmd, syscall.SIGKILL, "SIGKILL")
}

func signal(cmd *exec.Cmd, sig syscall.Signal, name string) string {
	result := "sent"
	if err := Kill(cmd, sig); err != nil {
		if errors.Is(err, ErrProcessGone) {
			result = "esrch"
		} else {
			result = "error"
		}
	}
	metrics.IncProcTerminate(name, result)
	return result
}
