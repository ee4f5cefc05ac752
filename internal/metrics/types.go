// Package metrics turns the page's ambient timing records into the values the
// overlay shows: tiered metric samples and a resource summary.
package metrics

// Tier is the colour band a timing falls into.
type Tier string

const (
	TierGood Tier = "good"
	TierWarn Tier = "warn"
	TierBad  Tier = "bad"
)

// Tier boundaries in seconds. A value equal to a boundary belongs to the
// slower band.
const (
	GoodBelow = 1.0
	WarnBelow = 2.5
)

// Color returns the overlay colour for the tier.
func (t Tier) Color() string {
	switch t {
	case TierGood:
		return "#4ade80"
	case TierWarn:
		return "#fbbf24"
	default:
		return "#f87171"
	}
}

// Kind records which measurement source produced a sample.
type Kind string

const (
	KindNavigation Kind = "navigation"
	KindPaint      Kind = "paint"
	KindLCP        Kind = "lcp"
)

// MetricSample is one row of the live metrics list.
type MetricSample struct {
	Label        string  `json:"label"`
	ValueSeconds float64 `json:"value_seconds"`
	Tier         Tier    `json:"tier"`
	Kind         Kind    `json:"kind"`
}

// NavigationTiming carries the navigation entry fields we read, in
// milliseconds relative to navigation start.
type NavigationTiming struct {
	DOMInteractive float64 `json:"domInteractive"`
	LoadEventEnd   float64 `json:"loadEventEnd"`
}

// PaintTiming is one paint entry (first-paint, first-contentful-paint).
type PaintTiming struct {
	Name      string  `json:"name"`
	StartTime float64 `json:"startTime"`
}

// ResourceTiming is one raw resource-timing entry.
type ResourceTiming struct {
	Name          string  `json:"name"`
	InitiatorType string  `json:"initiatorType"`
	Duration      float64 `json:"duration"`
	TransferSize  int64   `json:"transferSize"`
}

// Snapshot is the set of ambient records read from the page at one moment.
// Navigation is nil when the page exposes no navigation entry.
type Snapshot struct {
	Navigation *NavigationTiming `json:"navigation"`
	Paints     []PaintTiming     `json:"paints"`
	Resources  []ResourceTiming  `json:"resources"`
}

// ResourceEntry is the normalized form of a resource-timing record.
type ResourceEntry struct {
	URL               string  `json:"url"`
	InitiatorType     string  `json:"initiator_type"`
	DurationMs        float64 `json:"duration_ms"`
	TransferSizeBytes int64   `json:"transfer_size_bytes"`
}

// ResourceSummary backs the collapsible details panel.
type ResourceSummary struct {
	Count              int             `json:"count"`
	TotalTransferBytes int64           `json:"total_transfer_bytes"`
	Slowest            []ResourceEntry `json:"slowest"`
	P50Ms              float64         `json:"p50_ms"`
	P95Ms              float64         `json:"p95_ms"`
}
