package preset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Overlay adjusts built-in targets from a YAML file, for example:
//
//	targets:
//	  mp4:
//	    video:
//	      tiers:
//	        high: {crf: 16, preset: slower}
//	    audio:
//	      base: {bitrate: 192k}
type Overlay struct {
	Targets map[string]TargetOverlay `yaml:"targets"`
}

// TargetOverlay holds the adjustable parts of one target.
type TargetOverlay struct {
	Video     *StreamOverlay `yaml:"video,omitempty"`
	Audio     *StreamOverlay `yaml:"audio,omitempty"`
	Intensive *bool          `yaml:"intensive,omitempty"`
}

// StreamOverlay merges onto a StreamSpec; set fields win.
type StreamOverlay struct {
	Base  Quality          `yaml:"base,omitempty"`
	Tiers map[Tier]Quality `yaml:"tiers,omitempty"`
}

// DecodeOverlay strictly decodes an overlay document. Unknown keys, tiers and
// empty documents are errors. Tier keys are folded to lower case.
func DecodeOverlay(r io.Reader) (Overlay, error) {
	var o Overlay
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&o); err != nil {
		if errors.Is(err, io.EOF) {
			return Overlay{}, errors.New("preset overlay is empty")
		}
		return Overlay{}, fmt.Errorf("decode preset overlay: %w", err)
	}
	for name, t := range o.Targets {
		for _, s := range []*StreamOverlay{t.Video, t.Audio} {
			if s == nil {
				continue
			}
			tiers := make(map[Tier]Quality, len(s.Tiers))
			for key, q := range s.Tiers {
				tier, err := ParseTier(string(key))
				if err != nil || key == "" {
					return Overlay{}, fmt.Errorf("preset overlay target %q: unknown tier %q", name, key)
				}
				if _, dup := tiers[tier]; dup {
					return Overlay{}, fmt.Errorf("preset overlay target %q: duplicate tier %q", name, tier)
				}
				tiers[tier] = q
			}
			s.Tiers = tiers
		}
	}
	return o, nil
}

// Apply returns a copy of targets with the overlay merged in.
func (o Overlay) Apply(targets []Target) ([]Target, error) {
	index := make(map[string]int, len(targets))
	out := make([]Target, len(targets))
	for i, t := range targets {
		t.Video = cloneStream(t.Video)
		t.Audio = cloneStream(t.Audio)
		out[i] = t
		index[t.Container] = i
	}
	for name, adj := range o.Targets {
		i, ok := index[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("preset overlay: unknown target container %q", name)
		}
		t := &out[i]
		if adj.Video != nil {
			t.Video = mergeStream(t.Video, *adj.Video)
		}
		if adj.Audio != nil {
			t.Audio = mergeStream(t.Audio, *adj.Audio)
		}
		if adj.Intensive != nil {
			t.Intensive = *adj.Intensive
		}
	}
	return out, nil
}

func mergeStream(s StreamSpec, o StreamOverlay) StreamSpec {
	s.Base = s.Base.Merge(o.Base)
	if len(o.Tiers) > 0 && s.Tiers == nil {
		s.Tiers = make(map[Tier]Quality, len(o.Tiers))
	}
	for tier, q := range o.Tiers {
		s.Tiers[tier] = s.Tiers[tier].Merge(q)
	}
	return s
}

// LoadCatalog builds the catalog, applying the overlay file at path when it is
// non-empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	// #nosec G304 -- overlay path is provided by the operator via config.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read preset overlay: %w", err)
	}
	o, err := DecodeOverlay(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	targets, err := o.Apply(DefaultTargets())
	if err != nil {
		return nil, err
	}
	return Generate(targets), nil
}
