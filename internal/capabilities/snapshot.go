// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package capabilities records which encoders, formats and filters the local
// ffmpeg build provides.
package capabilities

import (
	"encoding/json"
	"slices"
	"sort"
)

// Set is a set of identifiers. It marshals as a sorted JSON array.
type Set map[string]struct{}

// NewSet builds a Set from names.
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		if n != "" {
			s[n] = struct{}{}
		}
	}
	return s
}

// Has reports membership. A nil Set contains nothing.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *Set) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*s = NewSet(names...)
	return nil
}

// Snapshot is a point-in-time record of engine capabilities. It is treated as
// read-only once published.
type Snapshot struct {
	VideoEncoders Set `json:"videoEncoders"`
	AudioEncoders Set `json:"audioEncoders"`
	Formats       Set `json:"formats"`
	Filters       Set `json:"filters"`
}

// HasEncoder reports whether name is a known video or audio encoder.
// A nil snapshot knows nothing.
func (s *Snapshot) HasEncoder(name string) bool {
	if s == nil {
		return false
	}
	return s.VideoEncoders.Has(name) || s.AudioEncoders.Has(name)
}

// HasFormat reports whether the engine knows the muxer/demuxer name.
func (s *Snapshot) HasFormat(name string) bool {
	return s != nil && s.Formats.Has(name)
}

// HasFilter reports whether the engine provides the filter.
func (s *Snapshot) HasFilter(name string) bool {
	return s != nil && s.Filters.Has(name)
}

// Empty reports whether no encoder was detected.
func (s *Snapshot) Empty() bool {
	return s == nil || (len(s.VideoEncoders) == 0 && len(s.AudioEncoders) == 0)
}

// Summary returns the encoder lists, used by the CLI caps listing.
func (s *Snapshot) Summary() (video, audio []string) {
	if s == nil {
		return nil, nil
	}
	return s.VideoEncoders.Sorted(), s.AudioEncoders.Sorted()
}

// Equal compares two snapshots by content.
func (s *Snapshot) Equal(o *Snapshot) bool {
	if s == nil || o == nil {
		return s == o
	}
	return slices.Equal(s.VideoEncoders.Sorted(), o.VideoEncoders.Sorted()) &&
		slices.Equal(s.AudioEncoders.Sorted(), o.AudioEncoders.Sorted()) &&
		slices.Equal(s.Formats.Sorted(), o.Formats.Sorted()) &&
		slices.Equal(s.Filters.Sorted(), o.Filters.Sorted())
}
