package runner

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/mediaconv/internal/events"
)

func feedAll(lines ...string) []events.Progress {
	var p progressParser
	var out []events.Progress
	for _, l := range lines {
		if prog, ok := p.Feed(l); ok {
			out = append(out, prog)
		}
	}
	return out
}

func TestProgressParser_KeyedBlock(t *testing.T) {
	got := feedAll(
		"frame=48",
		"fps=23.98",
		"out_time_us=2000000",
		"out_time=00:00:02.000000",
		"speed=1.25x",
		"progress=continue",
	)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].ProcessedSec)
	require.NotNil(t, got[0].FPS)
	require.NotNil(t, got[0].Speed)
	assert.InDelta(t, 2.0, *got[0].ProcessedSec, 1e-9)
	assert.InDelta(t, 23.98, *got[0].FPS, 1e-9)
	assert.InDelta(t, 1.25, *got[0].Speed, 1e-9)
}

func TestProgressParser_OutTimeFallback(t *testing.T) {
	got := feedAll("out_time=01:02:03.500000", "progress=end")
	require.Len(t, got, 1)
	assert.InDelta(t, 3723.5, *got[0].ProcessedSec, 1e-9)
	assert.Nil(t, got[0].FPS)
}

func TestProgressParser_EmptyBlockIsSkipped(t *testing.T) {
	assert.Empty(t, feedAll("bitrate=N/A", "out_time=N/A", "speed=N/A", "progress=continue"))
}

func TestProgressParser_BlocksAreIndependent(t *testing.T) {
	got := feedAll("fps=10", "progress=continue", "speed=2x", "progress=end")
	require.Len(t, got, 2)
	assert.Nil(t, got[1].FPS)
	require.NotNil(t, got[1].Speed)
	assert.InDelta(t, 2.0, *got[1].Speed, 1e-9)
}

func TestProgressParser_StatsLine(t *testing.T) {
	got := feedAll("frame=  120 fps= 30 q=28.0 size=     512kB time=00:00:04.00 bitrate=1048.6kbits/s speed=2.01x")
	require.Len(t, got, 1)
	assert.InDelta(t, 4.0, *got[0].ProcessedSec, 1e-9)
	assert.InDelta(t, 30.0, *got[0].FPS, 1e-9)
	assert.InDelta(t, 2.01, *got[0].Speed, 1e-9)
}

func TestProgressParser_IgnoresOrdinaryLines(t *testing.T) {
	assert.Empty(t, feedAll(
		"Input #0, matroska,webm, from 'in.mkv':",
		"  Stream #0:0: Video: h264 (High), yuv420p, 1920x1080",
		"Press [q] to stop, [?] for help",
		"",
	))
}

func TestParseTimecode(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"00:00:01.5", 1.5, true},
		{"10:00:00", 36000, true},
		{"12.25", 12.25, true},
		{"-00:00:00.04", -0.04, true},
		{"N/A", 0, false},
		{"", 0, false},
		{"aa:bb:cc", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseTimecode(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.InDelta(t, tt.want, got, 1e-9, tt.in)
		}
	}
}

func TestScanLinesCR(t *testing.T) {
	s := bufio.NewScanner(strings.NewReader("a\rb\nc\r\nd"))
	s.Split(scanLinesCR)
	var got []string
	for s.Scan() {
		got = append(got, s.Text())
	}
	assert.Equal(t, []string{"a", "b", "c", "", "d"}, got)
}

func TestExitMessage(t *testing.T) {
	assert.Contains(t, exitMessage(1), "Encoding failed")
	assert.Contains(t, exitMessage(2), "Invalid ffmpeg arguments")
	assert.Contains(t, exitMessage(69), "already exists")
	assert.Equal(t, "ffmpeg exited with status 7", exitMessage(7))
}
