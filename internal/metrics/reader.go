package metrics

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	LabelInteractive = "DOM Interactive"
	LabelLoad        = "Page Load"
	LabelLCP         = "Largest Contentful Paint"
)

// Grade maps a timing in seconds to its tier.
func Grade(seconds float64) Tier {
	switch {
	case seconds < GoodBelow:
		return TierGood
	case seconds < WarnBelow:
		return TierWarn
	default:
		return TierBad
	}
}

// Seconds converts a millisecond timing to seconds.
func Seconds(ms float64) float64 {
	return ms / 1000
}

// Samples builds the metric rows for one render pass. Rows appear in a fixed
// order: navigation, paints in entry order, then LCP. Missing sources are
// skipped. lcp may be nil.
func Samples(snap Snapshot, lcp *LCPCache) []MetricSample {
	samples := make([]MetricSample, 0, 2+len(snap.Paints)+1)

	if nav := snap.Navigation; nav != nil {
		samples = append(samples,
			newSample(LabelInteractive, Seconds(nav.DOMInteractive), KindNavigation),
			newSample(LabelLoad, Seconds(nav.LoadEventEnd), KindNavigation),
		)
	}

	for _, p := range snap.Paints {
		samples = append(samples, newSample(PaintLabel(p.Name), Seconds(p.StartTime), KindPaint))
	}

	if v, ok := lcp.Seconds(); ok {
		samples = append(samples, newSample(LabelLCP, v, KindLCP))
	}
	return samples
}

func newSample(label string, seconds float64, kind Kind) MetricSample {
	return MetricSample{
		Label:        label,
		ValueSeconds: seconds,
		Tier:         Grade(seconds),
		Kind:         kind,
	}
}

var titleCaser = cases.Title(language.English)

// PaintLabel turns a paint entry name into a row label:
// "first-contentful-paint" becomes "First Contentful Paint".
func PaintLabel(name string) string {
	return titleCaser.String(strings.ReplaceAll(name, "-", " "))
}
