package binresolve

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/mediaconv/internal/joberr"
)

func writeExec(t *testing.T, dir string, mode os.FileMode) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	p := filepath.Join(dir, FFmpeg.fileName())
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"), mode))
	return p
}

func testResolver(opts Options, env map[string]string) *Resolver {
	r := New(FFmpeg, opts)
	r.getenv = func(k string) string { return env[k] }
	r.executable = func() (string, error) { return "", errors.New("no exe") }
	r.lookPath = func(string) (string, error) { return "", errors.New("not in PATH") }
	return r
}

func TestResolve_Order(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits")
	}
	root := t.TempDir()
	override := writeExec(t, filepath.Join(root, "override"), 0o755)
	env := writeExec(t, filepath.Join(root, "env"), 0o755)
	dev := writeExec(t, filepath.Join(root, "dev"), 0o755)
	packaged := writeExec(t, filepath.Join(root, "pkg"), 0o755)

	tests := []struct {
		name string
		opts Options
		env  map[string]string
		want Resolution
	}{
		{
			name: "override wins",
			opts: Options{Override: override, DevDir: filepath.Dir(dev), PackagedDirs: []string{filepath.Dir(packaged)}},
			env:  map[string]string{"MEDIACONV_FFMPEG_PATH": env},
			want: Resolution{Path: override, Source: SourceOverride},
		},
		{
			name: "env before dev",
			opts: Options{DevDir: filepath.Dir(dev), PackagedDirs: []string{filepath.Dir(packaged)}},
			env:  map[string]string{"MEDIACONV_FFMPEG_PATH": env},
			want: Resolution{Path: env, Source: SourceEnv},
		},
		{
			name: "dev before packaged",
			opts: Options{DevDir: filepath.Dir(dev), PackagedDirs: []string{filepath.Dir(packaged)}},
			want: Resolution{Path: dev, Source: SourceDev},
		},
		{
			name: "packaged",
			opts: Options{DevDir: filepath.Join(root, "missing"), PackagedDirs: []string{filepath.Join(root, "nope"), filepath.Dir(packaged)}},
			want: Resolution{Path: packaged, Source: SourcePackaged},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := testResolver(tt.opts, tt.env).Resolve()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_SkipsNonExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits")
	}
	root := t.TempDir()
	plain := writeExec(t, filepath.Join(root, "plain"), 0o644)
	dev := writeExec(t, filepath.Join(root, "dev"), 0o755)

	r := testResolver(Options{DevDir: filepath.Dir(dev), PackagedDirs: []string{}},
		map[string]string{"MEDIACONV_FFMPEG_PATH": plain})
	got, err := r.Resolve()
	require.NoError(t, err)
	assert.Equal(t, SourceDev, got.Source)
}

func TestResolve_SkipsDirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dev", FFmpeg.fileName()), 0o755))

	r := testResolver(Options{DevDir: filepath.Join(root, "dev"), PackagedDirs: []string{}}, nil)
	r.lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }

	got, err := r.Resolve()
	require.NoError(t, err)
	assert.Equal(t, SourcePath, got.Source)
}

func TestResolve_NotFound(t *testing.T) {
	r := testResolver(Options{DevDir: t.TempDir(), PackagedDirs: []string{}}, nil)
	_, err := r.Resolve()
	require.Error(t, err)
	assert.Equal(t, joberr.CodeEngineNotFound, joberr.CodeOf(err))
}

func TestCandidates_PackagedFromExecutable(t *testing.T) {
	r := testResolver(Options{}, nil)
	exeDir := t.TempDir()
	r.executable = func() (string, error) { return filepath.Join(exeDir, "mediaconv"), nil }

	var got []string
	for _, c := range r.Candidates() {
		if c.Source == SourcePackaged {
			got = append(got, c.Path)
		}
	}
	require.Len(t, got, 2)
	assert.Equal(t, filepath.Join(exeDir, "bin", FFmpeg.fileName()), got[0])
	assert.Equal(t, filepath.Join(exeDir, "..", "Resources", "bin", FFmpeg.fileName()), got[1])
}

func TestBinary_EnvVar(t *testing.T) {
	assert.Equal(t, "MEDIACONV_FFMPEG_PATH", FFmpeg.EnvVar())
	assert.Equal(t, "MEDIACONV_FFPROBE_PATH", FFprobe.EnvVar())
}
