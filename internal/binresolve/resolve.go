// Package binresolve locates the ffmpeg and ffprobe executables.
package binresolve

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/ManuGH/mediaconv/internal/joberr"
)

// Source names where a binary was found.
type Source string

const (
	SourceOverride Source = "override"
	SourceEnv      Source = "env"
	SourceDev      Source = "dev"
	SourcePackaged Source = "packaged"
	SourcePath     Source = "path"
)

// Binary selects which engine binary to resolve.
type Binary string

const (
	FFmpeg  Binary = "ffmpeg"
	FFprobe Binary = "ffprobe"
)

// EnvVar returns the override environment variable for b.
func (b Binary) EnvVar() string {
	return "MEDIACONV_" + strings.ToUpper(string(b)) + "_PATH"
}

func (b Binary) fileName() string {
	if runtime.GOOS == "windows" {
		return string(b) + ".exe"
	}
	return string(b)
}

// Resolution is a located binary.
type Resolution struct {
	Path   string
	Source Source
}

// Options tunes the candidate list. Zero values select the defaults.
type Options struct {
	// Override is an explicit path from configuration. It wins over the env var.
	Override string
	// DevDir is the development bundle directory. Default "bin".
	DevDir string
	// PackagedDirs replaces the directories derived from the executable.
	PackagedDirs []string
}

// Resolver walks the candidate list in priority order.
type Resolver struct {
	bin  Binary
	opts Options

	getenv     func(string) string
	executable func() (string, error)
	lookPath   func(string) (string, error)
}

// New returns a resolver for bin.
func New(bin Binary, opts Options) *Resolver {
	if opts.DevDir == "" {
		opts.DevDir = "bin"
	}
	return &Resolver{
		bin:        bin,
		opts:       opts,
		getenv:     os.Getenv,
		executable: os.Executable,
		lookPath:   exec.LookPath,
	}
}

// Candidate is one location considered by Resolve.
type Candidate struct {
	Path   string
	Source Source
}

// Candidates lists every file-system location considered before PATH, in
// order. Entries are not checked for existence.
func (r *Resolver) Candidates() []Candidate {
	var out []Candidate
	if p := strings.TrimSpace(r.opts.Override); p != "" {
		out = append(out, Candidate{p, SourceOverride})
	}
	if p := strings.TrimSpace(r.getenv(r.bin.EnvVar())); p != "" {
		out = append(out, Candidate{p, SourceEnv})
	}
	out = append(out, Candidate{filepath.Join(r.opts.DevDir, r.bin.fileName()), SourceDev})

	for _, dir := range r.packagedDirs() {
		out = append(out, Candidate{filepath.Join(dir, r.bin.fileName()), SourcePackaged})
	}
	return out
}

func (r *Resolver) packagedDirs() []string {
	if r.opts.PackagedDirs != nil {
		return r.opts.PackagedDirs
	}
	exe, err := r.executable()
	if err != nil {
		return nil
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	dir := filepath.Dir(exe)
	return []string{
		filepath.Join(dir, "bin"),
		filepath.Join(dir, "..", "Resources", "bin"),
	}
}

// Resolve returns the first valid candidate, falling back to PATH. A miss is
// a *joberr.Error with CodeEngineNotFound.
func (r *Resolver) Resolve() (Resolution, error) {
	var tried []string
	for _, c := range r.Candidates() {
		if err := checkExecutable(c.Path); err != nil {
			tried = append(tried, c.Path)
			continue
		}
		abs, err := filepath.Abs(c.Path)
		if err != nil {
			abs = c.Path
		}
		return Resolution{Path: abs, Source: c.Source}, nil
	}

	if p, err := r.lookPath(r.bin.fileName()); err == nil {
		return Resolution{Path: p, Source: SourcePath}, nil
	}
	tried = append(tried, "$PATH")
	return Resolution{}, joberr.Newf(joberr.CodeEngineNotFound,
		"unable to locate %s executable (tried %s)", r.bin, strings.Join(tried, ", "))
}

var errNotExecutable = errors.New("not an executable file")

func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s: %w", path, errNotExecutable)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%s: %w", path, errNotExecutable)
	}
	return nil
}
