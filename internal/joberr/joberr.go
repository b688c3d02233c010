// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package joberr defines the machine-readable failure codes attached to
// conversion jobs and the typed error that carries them.
package joberr

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable failure identifier surfaced on failed jobs.
type Code string

const (
	CodeComplete  Code = "job_complete"
	CodeCancelled Code = "job_cancelled"
	CodeFailed    Code = "job_failed"

	// Planning
	CodeUnknownPreset      Code = "job_unknown_preset"
	CodeIncompatiblePreset Code = "job_incompatible_preset"
	CodeProbeFailed        Code = "job_probe_failed"

	// Validation
	CodeInvalidArgs      Code = "job_invalid_args"
	CodeAlreadyRunning   Code = "job_already_running"
	CodeExclusiveBlocked Code = "job_exclusive_blocked"
	CodeConcurrencyLimit Code = "job_concurrency_limit"
	CodeOutputDirectory  Code = "job_output_directory"
	CodeOutputPermission Code = "job_output_permission"
	CodeOutputPrepare    Code = "job_output_prepare"

	// Execution
	CodeEngineNotFound Code = "job_ffmpeg_not_found"
	CodeSpawnFailed    Code = "job_spawn_failed"
	CodeWaitFailed     Code = "job_wait_failed"
	CodeFinalizeFailed Code = "job_finalize_failed"
)

// Error is a failure with a code, a human-readable message and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// New returns an *Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf is New with fmt.Sprintf formatting.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to err.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is an *Error with the same code, so callers can
// match with errors.Is(err, joberr.New(code, "")).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// CodeOf extracts the code from err, or CodeFailed for untyped errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeFailed
}

// MessageOf returns the human-readable part of err without the code prefix.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			if e.Err != nil {
				return e.Message + ": " + e.Err.Error()
			}
			return e.Message
		}
		if e.Err != nil {
			return e.Err.Error()
		}
		return string(e.Code)
	}
	return err.Error()
}
