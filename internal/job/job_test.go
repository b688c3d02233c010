package job

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/mediaconv/internal/events"
	"github.com/ManuGH/mediaconv/internal/joberr"
	"github.com/ManuGH/mediaconv/internal/media"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newRecord() *Record {
	return New(Spec{ID: "j1", SourcePath: "/in/a.mkv", PresetID: "mkv-to-mp4", LogLines: 4}, t0)
}

func TestNew_StartsQueued(t *testing.T) {
	r := newRecord()
	assert.Equal(t, TagQueued, r.Tag())
	assert.Equal(t, t0, r.State.EnqueuedAt())
	assert.True(t, r.State.StartedAt().IsZero())
	assert.Equal(t, t0, r.UpdatedAt)
}

func TestApply_HappyPath(t *testing.T) {
	r := newRecord()
	probe := media.ProbeSummary{VideoCodec: "h264"}

	require.NoError(t, Apply(r, ToProbing(t0.Add(time.Second))))
	require.NoError(t, Apply(r, ToPlanning(probe, t0.Add(2*time.Second))))
	require.NoError(t, Apply(r, ToRunning(t0.Add(3*time.Second))))

	running, ok := r.State.(Running)
	require.True(t, ok)
	assert.Equal(t, "h264", running.Probe.VideoCodec)

	require.NoError(t, Apply(r, ToCompleted("/out/a.mp4", t0.Add(4*time.Second))))
	done, ok := r.State.(Completed)
	require.True(t, ok)
	assert.Equal(t, t0, done.Enqueued)
	assert.Equal(t, t0.Add(time.Second), done.Started)
	assert.Equal(t, t0.Add(4*time.Second), done.Finished)
	assert.Equal(t, "/out/a.mp4", done.OutputPath)
	assert.Equal(t, t0.Add(4*time.Second), r.UpdatedAt)
}

func TestApply_IllegalLeavesRecordUnchanged(t *testing.T) {
	tests := []struct {
		name  string
		setup []Transition
		next  Transition
	}{
		{name: "queued to running", next: ToRunning(t0)},
		{name: "queued to completed", next: ToCompleted("x", t0)},
		{name: "queued to failed", next: ToFailed("x", joberr.CodeFailed, t0)},
		{name: "probing to running", setup: []Transition{ToProbing(t0)}, next: ToRunning(t0)},
		{
			name:  "completed is terminal",
			setup: []Transition{ToProbing(t0), ToPlanning(media.ProbeSummary{}, t0), ToRunning(t0), ToCompleted("o", t0)},
			next:  ToCancelled(t0),
		},
		{name: "cancelled is terminal", setup: []Transition{ToCancelled(t0)}, next: Requeue(t0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRecord()
			for _, s := range tt.setup {
				require.NoError(t, Apply(r, s))
			}
			before := r.Snapshot()

			err := Apply(r, tt.next)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrIllegalTransition))
			assert.Equal(t, before, r.Snapshot())
		})
	}
}

func TestApply_RequeuePreservesStartedAt(t *testing.T) {
	r := newRecord()
	started := t0.Add(time.Second)
	require.NoError(t, Apply(r, ToProbing(started)))
	require.NoError(t, Apply(r, ToPlanning(media.ProbeSummary{}, t0.Add(2*time.Second))))
	require.NoError(t, Apply(r, Requeue(t0.Add(3*time.Second))))

	q, ok := r.State.(Queued)
	require.True(t, ok)
	assert.Equal(t, t0, q.Enqueued)
	assert.Equal(t, started, q.Started)

	require.NoError(t, Apply(r, ToProbing(t0.Add(10*time.Second))))
	assert.Equal(t, started, r.State.StartedAt(), "startedAt is set only once")
}

func TestApply_FailedCarriesCode(t *testing.T) {
	r := newRecord()
	require.NoError(t, Apply(r, ToProbing(t0)))
	require.NoError(t, Apply(r, ToFailed("probe: boom", joberr.CodeProbeFailed, t0.Add(time.Second))))

	f, ok := r.State.(Failed)
	require.True(t, ok)
	assert.Equal(t, joberr.CodeProbeFailed, f.Code)
	assert.Equal(t, "probe: boom", f.Message)
	assert.Equal(t, t0.Add(time.Second), FinishedAt(r.State))
}

func TestAllowed_Table(t *testing.T) {
	all := []Tag{TagQueued, TagProbing, TagPlanning, TagRunning, TagCompleted, TagFailed, TagCancelled}
	legal := map[Tag][]Tag{
		TagQueued:   {TagProbing, TagCancelled},
		TagProbing:  {TagPlanning, TagFailed, TagCancelled, TagQueued},
		TagPlanning: {TagRunning, TagFailed, TagCancelled, TagQueued},
		TagRunning:  {TagCompleted, TagFailed, TagCancelled, TagQueued},
	}
	for _, from := range all {
		for _, to := range all {
			want := false
			for _, l := range legal[from] {
				if l == to {
					want = true
				}
			}
			assert.Equal(t, want, Allowed(from, to), "%s -> %s", from, to)
		}
	}
}

func TestUpdateProgress(t *testing.T) {
	r := newRecord()
	fps := 24.0
	assert.ErrorIs(t, UpdateProgress(r, events.Progress{FPS: &fps}), ErrIllegalTransition)

	require.NoError(t, Apply(r, ToProbing(t0)))
	require.NoError(t, Apply(r, ToPlanning(media.ProbeSummary{}, t0)))
	require.NoError(t, Apply(r, ToRunning(t0)))

	sec := 12.5
	require.NoError(t, UpdateProgress(r, events.Progress{ProcessedSec: &sec}))
	require.NoError(t, UpdateProgress(r, events.Progress{FPS: &fps}))

	p := r.State.(Running).Progress
	require.NotNil(t, p.ProcessedSec)
	require.NotNil(t, p.FPS)
	assert.Equal(t, 12.5, *p.ProcessedSec)
	assert.Equal(t, 24.0, *p.FPS)
}

func TestRecord_LogsAreBounded(t *testing.T) {
	r := newRecord()
	for _, l := range []string{"a", "b", "c", "d", "e"} {
		r.AppendLog(l)
	}
	snap := r.Snapshot()
	assert.Equal(t, []string{"b", "c", "d", "e"}, snap.Logs)

	r.AppendLog("f")
	assert.Equal(t, []string{"b", "c", "d", "e"}, snap.Logs, "snapshot is detached")
}

func TestTag_Predicates(t *testing.T) {
	assert.True(t, TagCompleted.Terminal())
	assert.False(t, TagRunning.Terminal())
	assert.True(t, TagPlanning.Active())
	assert.False(t, TagQueued.Active())
}
