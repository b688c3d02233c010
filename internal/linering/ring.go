// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package linering keeps the most recent lines of a process's diagnostic
// output.
package linering

import (
	"strings"
	"sync"
)

// DefaultCapacity is used when a non-positive capacity is requested.
const DefaultCapacity = 500

// Ring is a thread-safe fixed-capacity buffer of log lines. When full, the
// oldest line is overwritten.
type Ring struct {
	mu      sync.RWMutex
	lines   []string
	head    int // next write position
	count   int
	partial strings.Builder
}

// New returns a Ring holding at most capacity lines.
func New(capacity int) *Ring {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Ring{lines: make([]string, capacity)}
}

// Push appends one line. Empty lines are ignored.
func (r *Ring) Push(line string) {
	if line == "" {
		return
	}
	r.mu.Lock()
	r.push(line)
	r.mu.Unlock()
}

func (r *Ring) push(line string) {
	r.lines[r.head] = line
	r.head = (r.head + 1) % len(r.lines)
	if r.count < len(r.lines) {
		r.count++
	}
}

// Write implements io.Writer. Input is split on '\n' and '\r'; a trailing
// fragment is held until its terminator arrives or Flush is called.
func (r *Ring) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range p {
		if b == '\n' || b == '\r' {
			if r.partial.Len() > 0 {
				r.push(r.partial.String())
				r.partial.Reset()
			}
			continue
		}
		r.partial.WriteByte(b)
	}
	return len(p), nil
}

// Flush stores any pending fragment from Write as a line.
func (r *Ring) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.partial.Len() > 0 {
		r.push(r.partial.String())
		r.partial.Reset()
	}
}

// Lines returns all retained lines, oldest first.
func (r *Ring) Lines() []string {
	return r.LastN(len(r.lines))
}

// LastN returns up to n of the newest lines in chronological order.
func (r *Ring) LastN(n int) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n > r.count {
		n = r.count
	}
	if n <= 0 {
		return []string{}
	}
	out := make([]string, n)
	start := (r.head - n + len(r.lines)) % len(r.lines)
	for i := 0; i < n; i++ {
		out[i] = r.lines[(start+i)%len(r.lines)]
	}
	return out
}

// Len returns the number of retained lines.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Cap returns the maximum number of retained lines.
func (r *Ring) Cap() int { return len(r.lines) }
