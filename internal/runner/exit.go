package runner

import "fmt"

var exitExplanations = map[int]string{
	1:  "Encoding failed. Check input file format and codec support.",
	2:  "Invalid ffmpeg arguments.",
	69: "Output file already exists and cannot be overwritten.",
}

// exitMessage describes a non-zero engine exit.
func exitMessage(code int) string {
	if why, ok := exitExplanations[code]; ok {
		return fmt.Sprintf("ffmpeg exited with status %d: %s", code, why)
	}
	return fmt.Sprintf("ffmpeg exited with status %d", code)
}
