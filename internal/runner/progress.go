package runner

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ManuGH/mediaconv/internal/events"
)

// progressParser turns engine stderr lines into progress updates. Keyed
// lines from -progress are aggregated until the "progress=" terminator;
// classic stats lines are reported as soon as they are seen.
type progressParser struct {
	pending events.Progress
	// out_time_us is exact; out_time is only used when it is absent.
	haveMicros bool
}

var statsToken = regexp.MustCompile(`(\w+)=\s*(\S+)`)

// Feed consumes one line and reports a progress update when one is complete.
func (p *progressParser) Feed(line string) (events.Progress, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return events.Progress{}, false
	}

	key, value, ok := strings.Cut(line, "=")
	if ok && !strings.ContainsAny(key, " \t") && !strings.ContainsAny(value, " \t") {
		return p.feedKey(key, value)
	}
	if strings.Contains(line, "time=") {
		return parseStats(line)
	}
	return events.Progress{}, false
}

func (p *progressParser) feedKey(key, value string) (events.Progress, bool) {
	switch key {
	case "out_time_us", "out_time_ms":
		// ffmpeg reports out_time_ms in microseconds as well.
		if us, err := strconv.ParseFloat(value, 64); err == nil && us >= 0 {
			sec := us / 1e6
			p.pending.ProcessedSec = &sec
			p.haveMicros = true
		}
	case "out_time":
		if p.haveMicros {
			break
		}
		if sec, ok := parseTimecode(value); ok {
			p.pending.ProcessedSec = &sec
		}
	case "fps":
		if v, ok := parseNumber(value); ok {
			p.pending.FPS = &v
		}
	case "speed":
		if v, ok := parseNumber(strings.TrimSuffix(value, "x")); ok {
			p.pending.Speed = &v
		}
	case "progress":
		out := p.pending
		p.pending = events.Progress{}
		p.haveMicros = false
		return out, !out.Empty()
	}
	return events.Progress{}, false
}

func parseStats(line string) (events.Progress, bool) {
	var out events.Progress
	for _, m := range statsToken.FindAllStringSubmatch(line, -1) {
		switch m[1] {
		case "time", "out_time":
			if sec, ok := parseTimecode(m[2]); ok {
				out.ProcessedSec = &sec
			}
		case "fps":
			if v, ok := parseNumber(m[2]); ok {
				out.FPS = &v
			}
		case "speed":
			if v, ok := parseNumber(strings.TrimSuffix(m[2], "x")); ok {
				out.Speed = &v
			}
		}
	}
	return out, !out.Empty()
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseTimecode accepts HH:MM:SS(.fraction) or plain seconds.
func parseTimecode(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" {
		return 0, false
	}
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		v, ok := parseNumber(s)
		if !ok {
			return 0, false
		}
		if neg {
			v = -v
		}
		return v, true
	}
	h, err1 := strconv.ParseFloat(parts[0], 64)
	m, err2 := strconv.ParseFloat(parts[1], 64)
	sec, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}
	total := h*3600 + m*60 + sec
	if neg {
		total = -total
	}
	return total, true
}
