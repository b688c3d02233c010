package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/ManuGH/mediaconv/internal/preset"
)

func runPresets(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("presets", stderr)
	configPath := fs.String("config", "", "path to config file (YAML)")
	source := fs.String("source", "", "only presets accepting this source container, e.g. mkv")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, _, err := loadConfig(*configPath, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return exitError
	}
	catalog, err := preset.LoadCatalog(cfg.Presets.File)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	var list []preset.Preset
	if *source != "" {
		list = catalog.ForSource(strings.ToLower(strings.TrimPrefix(*source, ".")))
	} else {
		for _, id := range catalog.IDs() {
			p, _ := catalog.Get(id)
			list = append(list, p)
		}
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tLABEL\tKIND\tINTENSIVE")
	for _, p := range list {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", p.ID, p.Label, p.Kind, p.Intensive)
	}
	_ = tw.Flush()
	return exitOK
}

func runCaps(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("caps", stderr)
	configPath := fs.String("config", "", "path to config file (YAML)")
	refresh := fs.Bool("refresh", false, "ignore the cache and detect again")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	cfg, _, err := loadConfig(*configPath, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return exitError
	}
	detector, err := newDetector(cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	load := detector.Load
	if *refresh {
		load = detector.Refresh
	}
	snap, err := load(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	video, audio := snap.Summary()
	_, _ = fmt.Fprintf(stdout, "video encoders: %s\n", strings.Join(video, ", "))
	_, _ = fmt.Fprintf(stdout, "audio encoders: %s\n", strings.Join(audio, ", "))
	_, _ = fmt.Fprintf(stdout, "formats: %d  filters: %d\n", len(snap.Formats), len(snap.Filters))
	return exitOK
}
