package planner

import (
	"fmt"

	"github.com/ManuGH/mediaconv/internal/capabilities"
	"github.com/ManuGH/mediaconv/internal/ffargs"
	"github.com/ManuGH/mediaconv/internal/media"
	"github.com/ManuGH/mediaconv/internal/preset"
)

const (
	defaultPaletteFPS   = 15
	defaultPaletteWidth = 480
)

func isPalette(logical string) bool {
	return logical == "gif"
}

// palette plans an animated-image target. The stream is always re-rendered
// through a generated palette, so the copy shortcut never applies.
func (p *Planner) palette(pl *plan, pr preset.Preset, probe media.ProbeSummary, tier preset.Tier, caps *capabilities.Snapshot, b *ffargs.Builder) StreamDecision {
	sd := StreamDecision{Kind: StreamVideo, SourceCodec: probe.VideoCodec, Logical: pr.Video.Codec}
	if !probe.HasVideo() {
		sd.Action = ActionDrop
		pl.warn("preset expected video output but the source has no video stream")
		b.NoVideo()
		return sd
	}

	sd.Action = ActionTranscode
	sd.Palette = true
	enc, ok := p.strategy.Select(pr.Video.Codec, caps)
	if !ok || enc == "" {
		enc = pr.Video.Codec
	}
	sd.Encoder = enc
	sd.Tier = pr.Video.Resolve(tier)
	sd.Quality = sd.Tier.Quality

	if caps != nil {
		if !caps.HasEncoder(enc) {
			pl.warn(fmt.Sprintf("encoder %s is not reported by ffmpeg; execution may fail", enc))
		}
		for _, f := range []string{"palettegen", "paletteuse"} {
			if !caps.HasFilter(f) {
				pl.warn(fmt.Sprintf("filter %s is not reported by ffmpeg; execution may fail", f))
			}
		}
	}

	b.FilterComplex(paletteGraph(sd.Quality)).
		Map("[v]").
		VideoCodec(enc)
	pl.note("animated image rendered with a generated palette")
	return sd
}

// paletteGraph builds the two-stage graph: rate and scale first, then split
// into palette generation and palette application.
func paletteGraph(q preset.Quality) string {
	fps := q.FPS
	if fps <= 0 {
		fps = defaultPaletteFPS
	}
	width := q.MaxWidth
	if width <= 0 {
		width = defaultPaletteWidth
	}
	return fmt.Sprintf(
		"[0:v]fps=%d,scale=%d:-1:flags=lanczos,split[s0][s1];[s0]palettegen[p];[s1][p]paletteuse[v]",
		fps, width,
	)
}
