// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// validate checks a mediaconv YAML configuration file.
//
// Usage:
//
//	validate -f config.yaml
//	validate --file config.yaml
//
// Exit codes:
//   - 0: Configuration is valid
//   - 1: Configuration is invalid (parse or validation error)
//   - 2: Usage error (missing required flag)
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ManuGH/mediaconv/internal/config"
	"github.com/ManuGH/mediaconv/internal/preset"
	"github.com/ManuGH/mediaconv/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var file string
	var showVersion bool
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	fs.BoolVar(&showVersion, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if showVersion {
		_, _ = fmt.Fprintln(stdout, version.Version)
		return 0
	}

	if file == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --file is required")
		_, _ = fmt.Fprintln(stderr, "")
		_, _ = fmt.Fprintln(stderr, "Usage:")
		_, _ = fmt.Fprintln(stderr, "  validate -f config.yaml")
		_, _ = fmt.Fprintln(stderr, "  validate --file config.yaml")
		return 2
	}

	// Load parses strictly and validates every field.
	cfg, err := config.NewLoader(file, version.Version).Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Configuration error in %s:\n", file)
		_, _ = fmt.Fprintf(stderr, "  %v\n", err)
		return 1
	}

	// The preset overlay is only decoded when the catalog is built.
	if _, err := preset.LoadCatalog(cfg.Presets.File); err != nil {
		_, _ = fmt.Fprintf(stderr, "Preset overlay error in %s:\n", cfg.Presets.File)
		_, _ = fmt.Fprintf(stderr, "  %v\n", err)
		return 1
	}

	_, _ = fmt.Fprintf(stdout, "✓ %s is valid\n", file)
	return 0
}
