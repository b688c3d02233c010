package scheduler

import (
	"path/filepath"
	"strings"
)

// OutputPath derives the output file for source. The output lands in dir,
// or next to the source when dir is empty, named after the source with the
// target extension. A name that would overwrite the source gets a
// "-converted" suffix.
func OutputPath(source, dir, container string) string {
	if dir == "" {
		dir = filepath.Dir(source)
	}
	base := filepath.Base(source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	out := filepath.Join(dir, stem+"."+container)
	if filepath.Clean(out) == filepath.Clean(source) {
		out = filepath.Join(dir, stem+"-converted."+container)
	}
	return out
}
