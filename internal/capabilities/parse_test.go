package capabilities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const encodersSample = `Encoders:
 V..... = Video
 A..... = Audio
 S..... = Subtitle
 .F.... = Frame-level multithreading
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10 (codec h264)
 V....D h264_videotoolbox    VideoToolbox H.264 Encoder (codec h264)
 V..... libvpx-vp9           libvpx VP9 (codec vp9)
 A....D aac                  AAC (Advanced Audio Coding)
 A....D libopus              libopus Opus (codec opus)
 S..... ass                  ASS (Advanced SSA) subtitle (codec ass)
`

const formatsSample = `File formats:
 D. = Demuxing supported
 .E = Muxing supported
 --
 D  aac             raw ADTS AAC (Advanced Audio Coding)
 DE mov,mp4,m4a,3gp,3g2,mj2 QuickTime / MOV
  E mp4             MP4 (MPEG-4 Part 14)
 DE matroska,webm   Matroska / WebM
 D d alsa           ALSA audio input
`

const filtersSample = `Filters:
  T.. = Timeline support
  .S. = Slice threading
  A = Audio input/output
  | = Source or sink filter
 ... abench            A->A       Benchmark part of a filtergraph.
 TSC scale             V->V       Scale the input video size and/or convert the image format.
 ... palettegen        V->V       Find the optimal palette for a given stream.
 ... paletteuse        VV->V      Use a palette to downsample an input video stream.
 ... split             V->N       Pass on the input to N video outputs.
 ... *hidden           V->V       Hidden entry.
`

func TestParseEncoders(t *testing.T) {
	video, audio := ParseEncoders(encodersSample)
	assert.Equal(t, []string{"h264_videotoolbox", "libvpx-vp9", "libx264"}, video.Sorted())
	assert.Equal(t, []string{"aac", "libopus"}, audio.Sorted())
}

func TestParseEncoders_NoSeparator(t *testing.T) {
	video, audio := ParseEncoders(" V..... h264  H.264\n A..... aac  AAC\n S..... srt  SubRip\n short\n")
	assert.Equal(t, []string{"h264"}, video.Sorted())
	assert.Equal(t, []string{"aac"}, audio.Sorted())
}

func TestParseFormats(t *testing.T) {
	formats := ParseFormats(formatsSample)
	for _, name := range []string{"aac", "mov", "mp4", "m4a", "matroska", "webm", "alsa"} {
		assert.True(t, formats.Has(name), name)
	}
	assert.False(t, formats.Has("="))
}

func TestParseFilters(t *testing.T) {
	filters := ParseFilters(filtersSample)
	assert.Equal(t, []string{"abench", "palettegen", "paletteuse", "scale", "split"}, filters.Sorted())
}

func TestSnapshot_NilSafe(t *testing.T) {
	var s *Snapshot
	assert.False(t, s.HasEncoder("libx264"))
	assert.False(t, s.HasFormat("mp4"))
	assert.False(t, s.HasFilter("scale"))
	assert.True(t, s.Empty())
}
