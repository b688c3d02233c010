package capabilities

import (
	"bufio"
	"strings"
)

// ParseEncoders reads `ffmpeg -hide_banner -encoders` output. The first
// character of the flag column selects video (V) or audio (A); subtitle
// encoders are ignored.
func ParseEncoders(output string) (video, audio Set) {
	video, audio = Set{}, Set{}
	for _, fields := range tableRows(output) {
		if len(fields) < 2 || len(fields[0]) < 6 {
			continue
		}
		name := fields[1]
		if name == "=" {
			continue
		}
		switch fields[0][0] {
		case 'V':
			video[name] = struct{}{}
		case 'A':
			audio[name] = struct{}{}
		}
	}
	return video, audio
}

// ParseFormats reads `ffmpeg -hide_banner -formats` output. Comma-joined
// names such as "mov,mp4,m4a" are split into their members.
func ParseFormats(output string) Set {
	formats := Set{}
	for _, fields := range tableRows(output) {
		i := 0
		demux, mux := false, false
		for i < len(fields) && isFormatFlags(fields[i]) {
			demux = demux || strings.ContainsRune(fields[i], 'D')
			mux = mux || strings.ContainsRune(fields[i], 'E')
			i++
		}
		if i == 0 || i >= len(fields) || (!demux && !mux) {
			continue
		}
		for _, name := range strings.Split(fields[i], ",") {
			if name != "" && name != "=" {
				formats[name] = struct{}{}
			}
		}
	}
	return formats
}

func isFormatFlags(s string) bool {
	if s == "" || len(s) > 3 {
		return false
	}
	for _, r := range s {
		if r != 'D' && r != 'E' && r != 'd' && r != '.' {
			return false
		}
	}
	return true
}

// ParseFilters reads `ffmpeg -hide_banner -filters` output. Only rows with an
// "in->out" pad column are filters; `*`-prefixed entries are skipped.
func ParseFilters(output string) Set {
	filters := Set{}
	sc := bufio.NewScanner(strings.NewReader(output))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 3 || !strings.Contains(fields[2], "->") {
			continue
		}
		name := fields[1]
		if strings.HasPrefix(name, "*") {
			continue
		}
		filters[name] = struct{}{}
	}
	return filters
}

// tableRows returns the whitespace-split rows following the "---" separator
// that ends the legend of -encoders and -formats listings. Output without a
// separator is read in full.
func tableRows(output string) [][]string {
	var rows [][]string
	var all [][]string
	seenSep := false
	sc := bufio.NewScanner(strings.NewReader(output))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "--") {
			seenSep = true
			rows = rows[:0]
			continue
		}
		fields := strings.Fields(line)
		all = append(all, fields)
		if seenSep {
			rows = append(rows, fields)
		}
	}
	if !seenSep {
		return all
	}
	return rows
}
