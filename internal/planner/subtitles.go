package planner

import (
	"fmt"

	"github.com/ManuGH/mediaconv/internal/compat"
	"github.com/ManuGH/mediaconv/internal/ffargs"
	"github.com/ManuGH/mediaconv/internal/media"
	"github.com/ManuGH/mediaconv/internal/preset"
)

func planSubtitles(pl *plan, pr preset.Preset, probe media.ProbeSummary, b *ffargs.Builder) SubtitleDecision {
	sd := SubtitleDecision{Policy: pr.Subtitles}
	if !probe.HasSubtitles() {
		b.NoSubtitles()
		return sd
	}

	switch pr.Subtitles {
	case preset.SubtitlesKeep:
		b.Map("0:s?").SubtitleCodec("copy")
		sd.Mapped = true
		sd.Codec = "copy"

	case preset.SubtitlesConvert:
		target := compat.TextSubtitleCodec(pr.Container)
		switch {
		case target == "":
			pl.warn(fmt.Sprintf("%s cannot carry subtitles; subtitles dropped", pr.Container))
			b.NoSubtitles()
		case !probe.HasTextSubtitles:
			pl.warn("source only has image-based subtitles, which cannot be converted to text; subtitles dropped")
			b.NoSubtitles()
		default:
			b.Map("0:s?")
			sd.Excluded = imageSubtitleIndexes(probe.SubtitleCodecs)
			for _, idx := range sd.Excluded {
				b.Map(fmt.Sprintf("-0:s:%d", idx))
			}
			if probe.HasImageSubtitles && len(sd.Excluded) == 0 {
				pl.warn("source mixes text and image subtitles but stream codecs are unknown; conversion may fail")
			}
			b.SubtitleCodec(target)
			sd.Mapped = true
			sd.Codec = target
		}

	case preset.SubtitlesBurn:
		pl.note("subtitle burn-in is not applied; subtitles are not included in the output")
		b.NoSubtitles()

	default:
		b.NoSubtitles()
	}
	return sd
}

// imageSubtitleIndexes returns the per-type subtitle indexes whose codec is
// bitmap based.
func imageSubtitleIndexes(codecs []string) []int {
	var out []int
	for i, c := range codecs {
		if compat.IsImageSubtitle(c) {
			out = append(out, i)
		}
	}
	return out
}
