// SPDX-License-Identifier: MIT

// Package validate accumulates configuration validation errors so a config
// file can be reported in one pass.
package validate

import (
	"cmp"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Error is one rejected field.
type Error struct {
	Field   string
	Value   any
	Message string
}

func (e Error) Error() string {
	return "validation failed for " + e.Field + ": " + e.Message
}

// ValidationError is the combined result of a Validator run.
type ValidationError struct {
	errors []Error
}

// Errors returns the rejected fields in check order.
func (e ValidationError) Errors() []Error {
	return e.errors
}

func (e ValidationError) Error() string {
	var b strings.Builder
	for i, err := range e.errors {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(err.Error())
	}
	return b.String()
}

// Validator collects field errors. The zero value is ready to use.
type Validator struct {
	errs []Error
}

func New() *Validator {
	return &Validator{}
}

// AddError records a failure for field.
func (v *Validator) AddError(field, message string, value any) {
	v.errs = append(v.errs, Error{Field: field, Value: value, Message: message})
}

func (v *Validator) IsValid() bool { return len(v.errs) == 0 }

func (v *Validator) Errors() []Error { return v.errs }

// Err returns nil when every check passed, otherwise a ValidationError
// holding a snapshot of the collected errors.
func (v *Validator) Err() error {
	if v.IsValid() {
		return nil
	}
	return ValidationError{errors: slices.Clone(v.errs)}
}

func between[T cmp.Ordered](v *Validator, field string, value, lo, hi T, unit string) {
	if value >= lo && value <= hi {
		return
	}
	v.AddError(field, fmt.Sprintf("%s must be between %v and %v, got %v", unit, lo, hi, value), value)
}

// Range checks lo <= value <= hi.
func (v *Validator) Range(field string, value, lo, hi int) {
	between(v, field, value, lo, hi, "value")
}

func (v *Validator) FloatRange(field string, value, lo, hi float64) {
	between(v, field, value, lo, hi, "value")
}

func (v *Validator) DurationRange(field string, value, lo, hi time.Duration) {
	if value < lo || value > hi {
		v.AddError(field, fmt.Sprintf("duration must be between %s and %s, got %s", lo, hi, value), value)
	}
}

func (v *Validator) Positive(field string, value int) {
	if value <= 0 {
		v.AddError(field, fmt.Sprintf("value must be positive, got %d", value), value)
	}
}

func (v *Validator) NonNegative(field string, value int) {
	if value < 0 {
		v.AddError(field, fmt.Sprintf("value cannot be negative, got %d", value), value)
	}
}

// NotEmpty rejects empty and whitespace-only strings.
func (v *Validator) NotEmpty(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "value cannot be empty", value)
	}
}

func (v *Validator) OneOf(field, value string, allowed []string) {
	if !slices.Contains(allowed, value) {
		v.AddError(field, fmt.Sprintf("value must be one of %v, got %q", allowed, value), value)
	}
}

// stat reports the mode of an optional path. An empty path is skipped; a
// failed stat is recorded under what.
func (v *Validator) stat(field, path, what string) (fs.FileMode, bool) {
	if path == "" {
		return 0, false
	}
	info, err := os.Stat(path)
	if err != nil {
		v.AddError(field, fmt.Sprintf("cannot access %s: %v", what, err), path)
		return 0, false
	}
	return info.Mode(), true
}

// File checks that an optional path is an existing non-directory.
func (v *Validator) File(field, path string) {
	if mode, ok := v.stat(field, path, "file"); ok && mode.IsDir() {
		v.AddError(field, "path is a directory, expected file", path)
	}
}

// Executable checks that an optional path is a regular file with an execute
// bit. Paths ending in .exe only need to exist.
func (v *Validator) Executable(field, path string) {
	mode, ok := v.stat(field, path, "binary")
	switch {
	case !ok:
	case !mode.IsRegular():
		v.AddError(field, "binary is not a regular file", path)
	case filepath.Ext(path) != ".exe" && mode.Perm()&0o111 == 0:
		v.AddError(field, "binary is not executable", path)
	}
}

// ParentDirectory checks that the directory an optional output file would be
// written to exists.
func (v *Validator) ParentDirectory(field, path string) {
	if path == "" {
		return
	}
	mode, ok := v.stat(field, filepath.Dir(path), "parent directory")
	if ok && !mode.IsDir() {
		v.AddError(field, "parent path is not a directory", path)
	}
}
