package validation

import (
	"context"
	"strings"

	"github.com/ManuGH/mediaconv/internal/joberr"
)

// filterFlags take a filter graph value in which ';' separates chains.
var filterFlags = map[string]bool{
	"-filter_complex": true,
	"-lavfi":          true,
	"-vf":             true,
	"-af":             true,
	"-filter:v":       true,
	"-filter:a":       true,
}

// ArgsCheck rejects empty argument vectors and tokens that look like shell
// injection.
type ArgsCheck struct{}

func (ArgsCheck) Name() string { return "args" }

func (ArgsCheck) Check(_ context.Context, in Input) error {
	if len(in.Args) == 0 {
		return joberr.New(joberr.CodeInvalidArgs, "ffmpeg arguments cannot be empty")
	}
	for i, arg := range in.Args {
		graph := i > 0 && filterFlags[in.Args[i-1]]
		if reason := unsafeToken(arg, graph); reason != "" {
			return joberr.Newf(joberr.CodeInvalidArgs, "argument %d contains %s: %q", i, reason, arg)
		}
	}
	return nil
}

func unsafeToken(arg string, graph bool) string {
	switch {
	case strings.HasPrefix(arg, "$("):
		return "command substitution"
	case strings.ContainsRune(arg, '`'):
		return "a backtick"
	case strings.ContainsAny(arg, "\n\r"):
		return "a line break"
	case strings.ContainsRune(arg, '|'):
		return "a pipe"
	case strings.ContainsRune(arg, '&'):
		return "an ampersand"
	case !graph && strings.ContainsRune(arg, ';'):
		return "a semicolon"
	}
	return ""
}
