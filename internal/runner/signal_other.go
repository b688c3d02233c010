//go:build !unix

package runner

import "os"

func exitSignal(*os.ProcessState) string { return "" }
