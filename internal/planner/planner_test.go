package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ManuGH/mediaconv/internal/capabilities"
	"github.com/ManuGH/mediaconv/internal/encoder"
	"github.com/ManuGH/mediaconv/internal/joberr"
	"github.com/ManuGH/mediaconv/internal/media"
	"github.com/ManuGH/mediaconv/internal/preset"
)

func newPlanner(opts ...Option) *Planner {
	return New(preset.Default(), encoder.HardwareFirst{}, opts...)
}

func fullCaps() *capabilities.Snapshot {
	return &capabilities.Snapshot{
		VideoEncoders: capabilities.NewSet("libx264", "libx265", "libvpx-vp9", "prores_ks", "gif", "png", "mjpeg", "libwebp"),
		AudioEncoders: capabilities.NewSet("aac", "libopus", "libmp3lame", "flac", "pcm_s16le"),
		Filters:       capabilities.NewSet("palettegen", "paletteuse", "scale", "fps", "split"),
	}
}

func contains(args []string, seq ...string) bool {
	for i := 0; i+len(seq) <= len(args); i++ {
		if cmp.Equal(args[i:i+len(seq)], seq) {
			return true
		}
	}
	return false
}

func TestPlan_RemuxWhenCodecsMatch(t *testing.T) {
	d, err := newPlanner().Plan(context.Background(), Request{
		Probe:      media.ProbeSummary{VideoCodec: "h264", AudioCodec: "aac"},
		PresetID:   "mkv-to-mp4",
		Tier:       preset.TierBalanced,
		SourcePath: "/in/a.mkv",
		OutputPath: "/out/a.mp4",
		Caps:       fullCaps(),
	})
	require.NoError(t, err)

	assert.Equal(t, ActionCopy, d.Video.Action)
	assert.Equal(t, ActionCopy, d.Audio.Action)
	assert.True(t, d.RemuxOnly)
	assert.False(t, d.Exclusive)
	assert.Empty(t, d.Warnings)

	want := []string{
		"-y", "-nostdin", "-progress", "pipe:2", "-nostats",
		"-i", "/in/a.mkv",
		"-map", "0:v:0", "-c:v", "copy",
		"-map", "0:a:0", "-c:a", "copy",
		"-sn",
		"-f", "mp4", "-movflags", "+faststart",
		"/out/a.mp4",
	}
	if diff := cmp.Diff(want, d.Args()); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestPlan_TranscodeWithTierQuality(t *testing.T) {
	caps := fullCaps()
	caps.VideoEncoders["h264_videotoolbox"] = struct{}{}

	d, err := newPlanner().Plan(context.Background(), Request{
		Probe:      media.ProbeSummary{VideoCodec: "vp9", AudioCodec: "opus"},
		PresetID:   "webm-to-mp4",
		Tier:       preset.TierBalanced,
		SourcePath: "/in/a.webm",
		OutputPath: "/out/a.mp4",
		Caps:       caps,
	})
	require.NoError(t, err)

	assert.Equal(t, ActionTranscode, d.Video.Action)
	assert.Equal(t, "h264_videotoolbox", d.Video.Encoder)
	assert.Equal(t, ActionTranscode, d.Audio.Action)
	assert.False(t, d.RemuxOnly)
	assert.False(t, d.Exclusive, "mp4 is not resource intensive")
	assert.True(t, contains(d.Args(), "-crf", "23"), "args: %v", d.Args())
	assert.True(t, contains(d.Args(), "-b:a", "160k"))
	assert.Equal(t, preset.TierBalanced, d.Tier)
}

func TestPlan_MissingAudioWarns(t *testing.T) {
	d, err := newPlanner().Plan(context.Background(), Request{
		Probe:      media.ProbeSummary{VideoCodec: "h264"},
		PresetID:   "mov-to-mp4",
		Tier:       preset.TierFast,
		SourcePath: "/in/a.mov",
		OutputPath: "/out/a.mp4",
	})
	require.NoError(t, err)

	assert.Equal(t, ActionDrop, d.Audio.Action)
	require.Len(t, d.Warnings, 1)
	assert.Contains(t, d.Warnings[0], "expected audio")
	assert.Contains(t, d.Args(), "-an")
	assert.True(t, d.RemuxOnly)
}

func TestPlan_ExtensionlessQuickTimeSource(t *testing.T) {
	probe := media.ProbeSummary{VideoCodec: "h264", AudioCodec: "aac", Format: "mov,mp4,m4a,3gp,3g2,mj2", Brand: "qt"}
	_, err := newPlanner().Plan(context.Background(), Request{
		Probe:      probe,
		PresetID:   "mov-to-mp4",
		SourcePath: "/in/take1",
		OutputPath: "/out/take1.mp4",
	})
	require.NoError(t, err)

	_, err = newPlanner().Plan(context.Background(), Request{
		Probe:      probe,
		PresetID:   "mp4-to-mkv",
		SourcePath: "/in/take1",
		OutputPath: "/out/take1.mkv",
	})
	assert.Equal(t, joberr.CodeIncompatiblePreset, joberr.CodeOf(err))
}

func TestPlan_DropPrecedence(t *testing.T) {
	d, err := newPlanner().Plan(context.Background(), Request{
		Probe:      media.ProbeSummary{VideoCodec: "h264", AudioCodec: "aac"},
		PresetID:   "mp4-to-m4a",
		SourcePath: "/in/a.mp4",
		OutputPath: "/out/a.m4a",
	})
	require.NoError(t, err)
	assert.Equal(t, ActionDrop, d.Video.Action)
	assert.Empty(t, d.Warnings, "a none codec drops silently")
	assert.Equal(t, ActionCopy, d.Audio.Action)
	assert.True(t, d.RemuxOnly)
	assert.True(t, contains(d.Args(), "-f", "ipod"))
}

func TestPlan_CodecEqualityIgnoresCase(t *testing.T) {
	for _, codec := range []string{"h264", "H264", "AVC1"} {
		t.Run(codec, func(t *testing.T) {
			d, err := newPlanner().Plan(context.Background(), Request{
				Probe:      media.ProbeSummary{VideoCodec: codec, AudioCodec: "AAC"},
				PresetID:   "mkv-to-mp4",
				SourcePath: "/in/a.mkv",
				OutputPath: "/out/a.mp4",
			})
			require.NoError(t, err)
			assert.Equal(t, ActionCopy, d.Video.Action)
			assert.Equal(t, ActionCopy, d.Audio.Action)
		})
	}
}

func TestPlan_ExclusiveForIntensiveTranscode(t *testing.T) {
	p := newPlanner()

	d, err := p.Plan(context.Background(), Request{
		Probe:      media.ProbeSummary{VideoCodec: "h264", AudioCodec: "aac"},
		PresetID:   "mp4-to-mov",
		Tier:       preset.TierHigh,
		SourcePath: "/in/a.mp4",
		OutputPath: "/out/a.mov",
		Caps:       fullCaps(),
	})
	require.NoError(t, err)
	assert.False(t, d.RemuxOnly)
	assert.True(t, d.Exclusive)
	assert.Equal(t, "prores_ks", d.Video.Encoder)
	assert.True(t, contains(d.Args(), "-profile:v", "3"))

	// Copy-only into an intensive container stays shareable.
	d, err = p.Plan(context.Background(), Request{
		Probe:      media.ProbeSummary{VideoCodec: "vp9", AudioCodec: "opus"},
		PresetID:   "mkv-to-webm",
		SourcePath: "/in/a.mkv",
		OutputPath: "/out/a.webm",
	})
	require.NoError(t, err)
	assert.True(t, d.RemuxOnly)
	assert.False(t, d.Exclusive)
}

func TestPlan_Errors(t *testing.T) {
	p := newPlanner()

	_, err := p.Plan(context.Background(), Request{PresetID: "nope", SourcePath: "/in/a.mkv"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, joberr.New(joberr.CodeUnknownPreset, "")))

	_, err = p.Plan(context.Background(), Request{PresetID: "mkv-to-mp4", SourcePath: "/in/a.mp3"})
	require.Error(t, err)
	assert.Equal(t, joberr.CodeIncompatiblePreset, joberr.CodeOf(err))

	_, err = p.Plan(context.Background(), Request{PresetID: "mkv-to-mp4", SourcePath: "/in/noext"})
	require.Error(t, err)
	assert.Equal(t, joberr.CodeIncompatiblePreset, joberr.CodeOf(err))

	// The prober's format name resolves extension-less sources.
	_, err = p.Plan(context.Background(), Request{
		PresetID:   "mkv-to-mp4",
		SourcePath: "/in/noext",
		Probe:      media.ProbeSummary{Format: "matroska,webm", VideoCodec: "h264"},
		OutputPath: "/out/a.mp4",
	})
	require.NoError(t, err)
}

func TestPlan_MissingEncoderWarns(t *testing.T) {
	caps := &capabilities.Snapshot{
		VideoEncoders: capabilities.NewSet("h264"),
		AudioEncoders: capabilities.NewSet("aac"),
	}
	d, err := newPlanner().Plan(context.Background(), Request{
		Probe:      media.ProbeSummary{VideoCodec: "h264", AudioCodec: "aac"},
		PresetID:   "mp4-to-webm",
		SourcePath: "/in/a.mp4",
		OutputPath: "/out/a.webm",
		Caps:       caps,
	})
	require.NoError(t, err)
	assert.Equal(t, "libvpx-vp9", d.Video.Encoder)
	assert.Equal(t, "libopus", d.Audio.Encoder)
	assert.Len(t, d.Warnings, 2)
	assert.True(t, d.Exclusive)
}

func TestPlan_CopyPresetWarnsOnIncompatibleCodec(t *testing.T) {
	d, err := newPlanner().Plan(context.Background(), Request{
		Probe:      media.ProbeSummary{VideoCodec: "wmv3", AudioCodec: "aac"},
		PresetID:   "avi-to-mkv",
		SourcePath: "/in/a.avi",
		OutputPath: "/out/a.mkv",
	})
	require.NoError(t, err)
	assert.Equal(t, ActionCopy, d.Video.Action)
	assert.True(t, d.RemuxOnly)
	require.Len(t, d.Warnings, 1)
	assert.Contains(t, d.Warnings[0], "wmv3")
}

func TestPlan_Palette(t *testing.T) {
	d, err := newPlanner().Plan(context.Background(), Request{
		Probe:      media.ProbeSummary{VideoCodec: "gif", AudioCodec: "aac"},
		PresetID:   "mp4-to-gif",
		Tier:       preset.TierFast,
		SourcePath: "/in/a.mp4",
		OutputPath: "/out/a.gif",
		Caps:       fullCaps(),
	})
	require.NoError(t, err)

	assert.True(t, d.Video.Palette)
	assert.Equal(t, ActionTranscode, d.Video.Action, "palette targets never copy")
	assert.Equal(t, ActionDrop, d.Audio.Action)
	assert.Empty(t, d.Warnings)
	assert.True(t, contains(d.Args(),
		"-filter_complex",
		"[0:v]fps=10,scale=320:-1:flags=lanczos,split[s0][s1];[s0]palettegen[p];[s1][p]paletteuse[v]",
		"-map", "[v]", "-c:v", "gif"), "args: %v", d.Args())
	assert.NotContains(t, d.Args(), "-crf")
}

func TestPlan_ColorMetadata(t *testing.T) {
	d, err := newPlanner().Plan(context.Background(), Request{
		Probe: media.ProbeSummary{
			VideoCodec: "hevc",
			AudioCodec: "aac",
			Color:      media.ColorMetadata{Primaries: "bt2020", Transfer: "smpte2084"},
		},
		PresetID:   "mkv-to-mp4",
		SourcePath: "/in/a.mkv",
		OutputPath: "/out/a.mp4",
	})
	require.NoError(t, err)
	args := d.Args()
	assert.True(t, contains(args, "-color_primaries", "bt2020"))
	assert.True(t, contains(args, "-color_trc", "smpte2084"))
	assert.NotContains(t, args, "-colorspace", "missing fields are omitted")

	// Copy keeps tags in the bitstream, no flags emitted.
	d, err = newPlanner().Plan(context.Background(), Request{
		Probe:      media.ProbeSummary{VideoCodec: "h264", Color: media.ColorMetadata{Primaries: "bt709"}},
		PresetID:   "mkv-to-mp4",
		SourcePath: "/in/a.mkv",
		OutputPath: "/out/a.mp4",
	})
	require.NoError(t, err)
	assert.NotContains(t, d.Args(), "-color_primaries")
}

func TestPlan_Subtitles(t *testing.T) {
	p := newPlanner()
	base := media.ProbeSummary{VideoCodec: "h264", AudioCodec: "aac"}

	t.Run("convert excludes image streams", func(t *testing.T) {
		probe := base
		probe.HasTextSubtitles = true
		probe.HasImageSubtitles = true
		probe.SubtitleCodecs = []string{"subrip", "hdmv_pgs_subtitle", "ass"}
		d, err := p.Plan(context.Background(), Request{Probe: probe, PresetID: "mkv-to-mp4", SourcePath: "/in/a.mkv", OutputPath: "/o.mp4"})
		require.NoError(t, err)
		assert.True(t, d.Subtitles.Mapped)
		assert.Equal(t, []int{1}, d.Subtitles.Excluded)
		assert.True(t, contains(d.Args(), "-map", "0:s?", "-map", "-0:s:1", "-c:s", "mov_text"), "args: %v", d.Args())
	})

	t.Run("convert with image-only subtitles drops", func(t *testing.T) {
		probe := base
		probe.HasImageSubtitles = true
		d, err := p.Plan(context.Background(), Request{Probe: probe, PresetID: "mkv-to-webm", SourcePath: "/in/a.mkv", OutputPath: "/o.webm"})
		require.NoError(t, err)
		assert.False(t, d.Subtitles.Mapped)
		assert.Contains(t, d.Args(), "-sn")
		assert.NotEmpty(t, d.Warnings)
	})

	t.Run("keep copies", func(t *testing.T) {
		probe := base
		probe.HasImageSubtitles = true
		d, err := p.Plan(context.Background(), Request{Probe: probe, PresetID: "mp4-to-mkv", SourcePath: "/in/a.mp4", OutputPath: "/o.mkv"})
		require.NoError(t, err)
		assert.True(t, contains(d.Args(), "-map", "0:s?", "-c:s", "copy"))
	})

	t.Run("drop", func(t *testing.T) {
		probe := base
		probe.HasTextSubtitles = true
		d, err := p.Plan(context.Background(), Request{Probe: probe, PresetID: "mp4-to-gif", SourcePath: "/in/a.mp4", OutputPath: "/o.gif"})
		require.NoError(t, err)
		assert.Contains(t, d.Args(), "-sn")
		assert.NotContains(t, d.Args(), "-c:s")
	})
}

func TestPlan_BurnIsNotedNotApplied(t *testing.T) {
	target := preset.DefaultTargets()[0]
	target.Subtitles = preset.SubtitlesBurn
	p := New(preset.Generate([]preset.Target{target}), encoder.SoftwareOnly{})

	d, err := p.Plan(context.Background(), Request{
		Probe:      media.ProbeSummary{VideoCodec: "h264", AudioCodec: "aac", HasTextSubtitles: true},
		PresetID:   "mkv-to-mp4",
		SourcePath: "/in/a.mkv",
		OutputPath: "/o.mp4",
	})
	require.NoError(t, err)
	assert.Contains(t, d.Args(), "-sn")
	assert.NotContains(t, d.Args(), "-filter_complex")
	require.NotEmpty(t, d.Notes)
	assert.Contains(t, d.Command.Notes(), d.Notes[0])
}

func TestPlan_TierFallbackIsNoted(t *testing.T) {
	target := preset.DefaultTargets()[0]
	fast := 30
	target.Video.Tiers = map[preset.Tier]preset.Quality{preset.TierFast: {CRF: &fast}}
	p := New(preset.Generate([]preset.Target{target}), encoder.SoftwareOnly{})

	d, err := p.Plan(context.Background(), Request{
		Probe:      media.ProbeSummary{VideoCodec: "vp9"},
		PresetID:   "mkv-to-mp4",
		Tier:       preset.TierHigh,
		SourcePath: "/in/a.mkv",
		OutputPath: "/o.mp4",
	})
	require.NoError(t, err)
	assert.True(t, d.Video.Tier.FellBack)
	assert.Equal(t, preset.TierFast, d.Tier)
	assert.True(t, contains(d.Args(), "-crf", "30"))
	assert.Contains(t, d.Notes, "video tier high unavailable, using fast")
	// Base values fill what the tier leaves out.
	assert.True(t, contains(d.Args(), "-preset", "medium"))
}

func TestPlan_TierFallbackToBaseIsNoted(t *testing.T) {
	target := preset.DefaultTargets()[0]
	high := 16
	target.Video.Tiers = map[preset.Tier]preset.Quality{preset.TierHigh: {CRF: &high}}
	p := New(preset.Generate([]preset.Target{target}), encoder.SoftwareOnly{})

	d, err := p.Plan(context.Background(), Request{
		Probe:      media.ProbeSummary{VideoCodec: "vp9"},
		PresetID:   "mkv-to-mp4",
		Tier:       preset.TierFast,
		SourcePath: "/in/a.mkv",
		OutputPath: "/o.mp4",
	})
	require.NoError(t, err)
	assert.Contains(t, d.Notes, "video tier fast unavailable, using base settings")
	assert.True(t, contains(d.Args(), "-crf", "23"))
}

func TestPlan_ImageTarget(t *testing.T) {
	d, err := newPlanner().Plan(context.Background(), Request{
		Probe:      media.ProbeSummary{VideoCodec: "png"},
		PresetID:   "png-to-jpg",
		SourcePath: "/in/a.png",
		OutputPath: "/out/a.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, "mjpeg", d.Video.Encoder)
	assert.True(t, contains(d.Args(), "-frames:v", "1", "-f", "image2"), "args: %v", d.Args())
}

type staticCaps struct{ snap *capabilities.Snapshot }

func (s staticCaps) Snapshot() *capabilities.Snapshot { return s.snap }

func TestPlan_UsesCapabilitySource(t *testing.T) {
	caps := fullCaps()
	caps.VideoEncoders["hevc_nvenc"] = struct{}{}
	target := preset.DefaultTargets()[0]
	target.Video.Codec = "hevc"
	p := New(preset.Generate([]preset.Target{target}), encoder.HardwareFirst{}, WithCapabilities(staticCaps{caps}))

	d, err := p.Plan(context.Background(), Request{
		Probe:      media.ProbeSummary{VideoCodec: "h264"},
		PresetID:   "mkv-to-mp4",
		SourcePath: "/in/a.mkv",
		OutputPath: "/o.mp4",
	})
	require.NoError(t, err)
	assert.Equal(t, "hevc_nvenc", d.Video.Encoder)
}

func TestPlan_RecordsSpan(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	p := newPlanner(WithTracer(tp.Tracer("test")))
	_, err := p.Plan(context.Background(), Request{
		JobID:      "job-1",
		Probe:      media.ProbeSummary{VideoCodec: "h264", AudioCodec: "aac"},
		PresetID:   "mkv-to-mp4",
		SourcePath: "/in/a.mkv",
		OutputPath: "/o.mp4",
	})
	require.NoError(t, err)
	_, err = p.Plan(context.Background(), Request{PresetID: "missing"})
	require.Error(t, err)

	spans := exp.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "planner.plan", spans[0].Name)
	assert.Equal(t, "Error", spans[1].Status.Code.String())
}
