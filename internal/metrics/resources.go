package metrics

import (
	"cmp"
	"net/url"
	"path"
	"slices"
	"strings"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// SlowestLimit is how many resources the details panel lists.
const SlowestLimit = 5

const (
	histMinMicros  = 1
	histMaxMicros  = 10 * 60 * 1_000_000
	histSigFigures = 3
)

// Entries normalizes raw resource-timing records.
func Entries(raw []ResourceTiming) []ResourceEntry {
	out := make([]ResourceEntry, 0, len(raw))
	for _, r := range raw {
		out = append(out, ResourceEntry{
			URL:               r.Name,
			InitiatorType:     r.InitiatorType,
			DurationMs:        r.Duration,
			TransferSizeBytes: max(r.TransferSize, 0),
		})
	}
	return out
}

// Summarize computes the details-panel view of the resource buffer: total
// count, total transferred bytes, duration percentiles and the slowest
// entries in descending duration order. Ties keep buffer order. The input
// slice is not modified.
func Summarize(entries []ResourceEntry) ResourceSummary {
	summary := ResourceSummary{Count: len(entries)}
	if len(entries) == 0 {
		summary.Slowest = []ResourceEntry{}
		return summary
	}

	hist := hdrhistogram.New(histMinMicros, histMaxMicros, histSigFigures)
	for _, e := range entries {
		summary.TotalTransferBytes += e.TransferSizeBytes
		micros := int64(e.DurationMs * 1000)
		_ = hist.RecordValue(min(max(micros, 0), histMaxMicros))
	}
	summary.P50Ms = float64(hist.ValueAtQuantile(50)) / 1000
	summary.P95Ms = float64(hist.ValueAtQuantile(95)) / 1000

	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b ResourceEntry) int {
		return cmp.Compare(b.DurationMs, a.DurationMs)
	})
	if len(sorted) > SlowestLimit {
		sorted = sorted[:SlowestLimit]
	}
	summary.Slowest = sorted
	return summary
}

// DisplayName is the short name shown for a resource: the last path segment
// without query string, or "..." when there is none.
func DisplayName(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	name := path.Base(strings.TrimRight(p, "/"))
	if strings.HasSuffix(p, "/") || name == "." || name == "/" || name == "" {
		return "..."
	}
	return name
}
