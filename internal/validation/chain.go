// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package validation runs the pre-spawn checks on a planned job.
package validation

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ManuGH/mediaconv/internal/joberr"
	"github.com/ManuGH/mediaconv/internal/log"
)

// Input is what every check inspects.
type Input struct {
	JobID      string
	Args       []string
	OutputPath string
	Exclusive  bool
}

// Check is one validation step.
type Check interface {
	Name() string
	Check(ctx context.Context, in Input) error
}

// Failure names the check that rejected a job.
type Failure struct {
	Check string
	Code  joberr.Code
	Err   error
	// Retryable marks conflicts that clear on their own, such as a full
	// concurrency limit.
	Retryable bool
}

func (f *Failure) Error() string {
	return fmt.Sprintf("validation %s: %v", f.Check, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// IsRetryable reports whether err is a retryable *Failure.
func IsRetryable(err error) bool {
	var f *Failure
	return errors.As(err, &f) && f.Retryable
}

// Chain runs checks in order and stops at the first failure.
type Chain struct {
	checks []Check
	logger zerolog.Logger
}

// NewChain returns a chain over checks.
func NewChain(checks ...Check) *Chain {
	return &Chain{checks: checks, logger: log.WithComponent("validation")}
}

// Append adds a check at the end.
func (c *Chain) Append(check Check) {
	c.checks = append(c.checks, check)
}

// Names lists the checks in run order.
func (c *Chain) Names() []string {
	out := make([]string, len(c.checks))
	for i, ch := range c.checks {
		out[i] = ch.Name()
	}
	return out
}

// Run returns nil or a *Failure.
func (c *Chain) Run(ctx context.Context, in Input) error {
	for _, check := range c.checks {
		err := check.Check(ctx, in)
		if err == nil {
			continue
		}
		var f *Failure
		if !errors.As(err, &f) {
			f = &Failure{Code: joberr.CodeOf(err), Err: err}
		}
		if f.Check == "" {
			f.Check = check.Name()
		}
		c.logger.Debug().
			Str(log.FieldJobID, in.JobID).
			Str("check", f.Check).
			Str(log.FieldCode, string(f.Code)).
			Bool("retryable", f.Retryable).
			Err(f.Err).
			Msg("validation failed")
		return f
	}
	return nil
}

// Default returns the standard chain: arguments, concurrency, output.
func Default(gate Gate) *Chain {
	return NewChain(ArgsCheck{}, ConcurrencyCheck{Gate: gate}, OutputCheck{MinFreeBytes: DefaultMinFreeBytes})
}
