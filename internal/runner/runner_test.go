//go:build unix

package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/mediaconv/internal/binresolve"
	"github.com/ManuGH/mediaconv/internal/events"
	"github.com/ManuGH/mediaconv/internal/joberr"
)

type staticResolver struct {
	path string
	err  error
}

func (s staticResolver) Resolve() (binresolve.Resolution, error) {
	if s.err != nil {
		return binresolve.Resolution{}, s.err
	}
	return binresolve.Resolution{Path: s.path, Source: binresolve.SourceOverride}, nil
}

// fakeEngine writes an executable sh script standing in for ffmpeg. The
// script sees the output path as $out.
func fakeEngine(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\nfor a; do out=$a; done\n" + body + "\n"
	require.NoError(t, os.WriteFile(p, []byte(script), 0o755))
	return p
}

func collect(sub *events.Subscription) <-chan []events.Event {
	ch := make(chan []events.Event, 1)
	go func() {
		var all []events.Event
		for ev := range sub.C {
			all = append(all, ev)
			if ev.Kind == events.KindCompletion {
				break
			}
		}
		ch <- all
	}()
	return ch
}

func waitCompletion(t *testing.T, exec *Execution) events.Completion {
	t.Helper()
	select {
	case <-exec.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("process did not finish")
	}
	return exec.Wait()
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRunner_SuccessCommitsOutput(t *testing.T) {
	outDir := t.TempDir()
	argsFile := filepath.Join(t.TempDir(), "args")
	final := filepath.Join(outDir, "movie.mp4")

	bin := fakeEngine(t, `printf '%s\n' "$@" > `+argsFile+`
printf 'fps=25\nout_time_us=1500000\nspeed=1.5x\nprogress=continue\n' >&2
printf 'frame=  50 fps= 25 time=00:00:02.00 speed=2x\r' >&2
printf 'payload' > "$out"
exit 0`)

	bus := events.NewBus(64)
	sub := bus.Subscribe("job-1")
	defer sub.Close()
	got := collect(sub)

	r := New(staticResolver{path: bin}, bus)
	exec, err := r.Start(context.Background(), Request{
		JobID: "job-1",
		Args:  []string{"-nostdin", "-i", "in.mkv", "-c", "copy", "-f", "mp4", final},
	})
	require.NoError(t, err)
	assert.NotEqual(t, final, exec.TempPath())
	assert.Equal(t, outDir, filepath.Dir(exec.TempPath()))

	c := waitCompletion(t, exec)
	assert.True(t, c.Success)
	assert.False(t, c.Cancelled)
	assert.Equal(t, joberr.CodeComplete, c.Code)
	require.NotNil(t, c.ExitCode)
	assert.Equal(t, 0, *c.ExitCode)

	data, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.Equal(t, []string{"movie.mp4"}, dirEntries(t, outDir))

	rawArgs, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	args := strings.Split(strings.TrimSpace(string(rawArgs)), "\n")
	assert.Equal(t, "-y", args[0])
	assert.Equal(t, exec.TempPath(), args[len(args)-1])

	var progress []events.Progress
	var logs int
	all := <-got
	for _, ev := range all {
		switch ev.Kind {
		case events.KindProgress:
			progress = append(progress, *ev.Progress)
		case events.KindLog:
			logs++
		}
	}
	require.Len(t, progress, 2)
	assert.InDelta(t, 1.5, *progress[0].ProcessedSec, 1e-9)
	assert.InDelta(t, 2.0, *progress[1].ProcessedSec, 1e-9)
	assert.Equal(t, 5, logs)
	assert.Equal(t, events.KindCompletion, all[len(all)-1].Kind)
	assert.False(t, r.Running("job-1"))
}

func TestRunner_FailureRemovesTemp(t *testing.T) {
	outDir := t.TempDir()
	final := filepath.Join(outDir, "out.mkv")
	bin := fakeEngine(t, `echo "in.mkv: Invalid data found when processing input" >&2
printf 'partial' > "$out"
exit 1`)

	r := New(staticResolver{path: bin}, nil)
	exec, err := r.Start(context.Background(), Request{JobID: "job-2", Args: []string{"-i", "in.mkv", final}})
	require.NoError(t, err)

	c := waitCompletion(t, exec)
	assert.False(t, c.Success)
	assert.Equal(t, joberr.CodeFailed, c.Code)
	require.NotNil(t, c.ExitCode)
	assert.Equal(t, 1, *c.ExitCode)
	assert.Contains(t, c.Message, "Encoding failed")
	assert.Contains(t, c.Logs, "in.mkv: Invalid data found when processing input")
	assert.Empty(t, dirEntries(t, outDir))
}

func TestRunner_CancelWinsOverExit(t *testing.T) {
	outDir := t.TempDir()
	final := filepath.Join(outDir, "out.mp4")
	bin := fakeEngine(t, `echo started >&2
sleep 30`)

	r := New(staticResolver{path: bin}, nil, WithKillGrace(2*time.Second))
	exec, err := r.Start(context.Background(), Request{JobID: "job-3", Args: []string{"-i", "x", final}})
	require.NoError(t, err)
	require.True(t, r.Running("job-3"))

	time.Sleep(100 * time.Millisecond)
	assert.True(t, r.Cancel("job-3"))

	c := waitCompletion(t, exec)
	assert.True(t, c.Cancelled)
	assert.False(t, c.Success)
	assert.Equal(t, joberr.CodeCancelled, c.Code)
	assert.Equal(t, "SIGTERM", c.Signal)
	assert.Nil(t, c.ExitCode)
	assert.Empty(t, dirEntries(t, outDir))
	assert.False(t, r.Cancel("job-3"))
}

func TestRunner_ContextCancellation(t *testing.T) {
	outDir := t.TempDir()
	bin := fakeEngine(t, "sleep 30")

	ctx, cancel := context.WithCancel(context.Background())
	r := New(staticResolver{path: bin}, nil, WithKillGrace(time.Second))
	exec, err := r.Start(ctx, Request{JobID: "job-4", Args: []string{filepath.Join(outDir, "o.webm")}})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	cancel()

	c := waitCompletion(t, exec)
	assert.True(t, c.Cancelled)
	assert.Empty(t, dirEntries(t, outDir))
}

func TestRunner_StartErrors(t *testing.T) {
	outDir := t.TempDir()
	final := filepath.Join(outDir, "o.mp4")

	tests := []struct {
		name     string
		resolver EngineResolver
		args     []string
		code     joberr.Code
	}{
		{
			name:     "no args",
			resolver: staticResolver{path: "/bin/true"},
			code:     joberr.CodeInvalidArgs,
		},
		{
			name:     "engine not found",
			resolver: staticResolver{err: joberr.New(joberr.CodeEngineNotFound, "missing")},
			args:     []string{final},
			code:     joberr.CodeEngineNotFound,
		},
		{
			name:     "resolver plain error",
			resolver: staticResolver{err: errors.New("boom")},
			args:     []string{final},
			code:     joberr.CodeEngineNotFound,
		},
		{
			name:     "spawn failure",
			resolver: staticResolver{path: filepath.Join(outDir, "does-not-exist")},
			args:     []string{final},
			code:     joberr.CodeSpawnFailed,
		},
		{
			name:     "output dir missing",
			resolver: staticResolver{path: "/bin/true"},
			args:     []string{filepath.Join(outDir, "missing", "o.mp4")},
			code:     joberr.CodeOutputPrepare,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.resolver, nil)
			_, err := r.Start(context.Background(), Request{JobID: "j", Args: tt.args})
			require.Error(t, err)
			assert.Equal(t, tt.code, joberr.CodeOf(err))
			assert.False(t, r.Running("j"))
			assert.Equal(t, 0, r.Active())
		})
	}
	assert.Empty(t, dirEntries(t, outDir), "no temp file may survive a failed start")
}

func TestRunner_RejectsDuplicateJob(t *testing.T) {
	outDir := t.TempDir()
	bin := fakeEngine(t, "sleep 30")

	r := New(staticResolver{path: bin}, nil, WithKillGrace(time.Second))
	exec, err := r.Start(context.Background(), Request{JobID: "dup", Args: []string{filepath.Join(outDir, "a.mp4")}})
	require.NoError(t, err)

	_, err = r.Start(context.Background(), Request{JobID: "dup", Args: []string{filepath.Join(outDir, "b.mp4")}})
	assert.Equal(t, joberr.CodeAlreadyRunning, joberr.CodeOf(err))

	assert.Equal(t, 1, r.CancelAll())
	waitCompletion(t, exec)
}

func TestRewriteOutput(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "adds overwrite",
			in:   []string{"-i", "in", "-f", "mp4", "out.mp4"},
			want: []string{"-y", "-i", "in", "-f", "mp4", "/tmp/.out.mp4123"},
		},
		{
			name: "keeps existing overwrite",
			in:   []string{"-y", "-nostdin", "-i", "in", "out.mp4"},
			want: []string{"-y", "-nostdin", "-i", "in", "/tmp/.out.mp4123"},
		},
		{
			name: "output only",
			in:   []string{"out.mp4"},
			want: []string{"-y", "/tmp/.out.mp4123"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rewriteOutput(tt.in, "/tmp/.out.mp4123")
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("rewriteOutput mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
