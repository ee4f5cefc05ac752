package overlay

import (
	"fmt"

	"perfoverlay/internal/metrics"
)

// Element ids. RootID is also the single-instance guard in the host document.
const (
	RootID           = "perf-overlay-ui"
	StatusID         = "perf-overlay-status"
	MetricsID        = "perf-overlay-metrics"
	AnalysisID       = "perf-overlay-ai"
	DetailsID        = "perf-overlay-details"
	DetailsContentID = "perf-overlay-details-content"
	ToggleID         = "perf-overlay-toggle"
)

// Fixed panel texts.
const (
	WaitingText     = "Waiting for page load..."
	PendingText     = "🔄 AI analyzing page..."
	UnavailableText = "AI currently unavailable."
	CompletedText   = "Performance analysis completed."

	statusLoading = "🔄"
	statusReady   = "✅"
	showDetails   = "View Details"
	hideDetails   = "Hide Details"
)

// Model is everything the panel shows at one moment.
type Model struct {
	Samples  []metrics.MetricSample   `json:"samples"`
	Details  *metrics.ResourceSummary `json:"details,omitempty"`
	Analysis string                   `json:"analysis"`
	Loaded   bool                     `json:"loaded"`
	State    State                    `json:"state"`
	Viewport Viewport                 `json:"viewport"`
}

var (
	baseStyle = Style{
		"background":              "rgba(0, 0, 0, 0.7)",
		"backdrop-filter":         "blur(20px) saturate(180%)",
		"-webkit-backdrop-filter": "blur(20px) saturate(180%)",
		"border":                  "1px solid rgba(255, 255, 255, 0.15)",
		"border-radius":           "20px",
		"padding":                 "0",
		"z-index":                 "999999",
		"font-family":             "-apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif",
		"font-size":               "14px",
		"color":                   "#ffffff",
		"box-shadow":              "0 25px 50px -12px rgba(0, 0, 0, 0.8), 0 0 0 1px rgba(255, 255, 255, 0.05)",
		"transition":              "all 0.3s cubic-bezier(0.4, 0, 0.2, 1)",
		"cursor":                  "default",
		"user-select":             "none",
		"overflow":                "hidden",
		"max-height":              "calc(100vh - 48px)",
	}
	detailsBaseStyle = Style{
		"overflow":   "auto",
		"transition": "max-height 0.3s cubic-bezier(0.4, 0, 0.2, 1)",
		"background": "rgba(0, 0, 0, 0.4)",
		"border-top": "1px solid rgba(255, 255, 255, 0.08)",
	}
	rowStyle = Style{
		"display":         "flex",
		"justify-content": "space-between",
		"align-items":     "center",
		"padding":         "8px 0",
		"border-bottom":   "1px solid rgba(255, 255, 255, 0.08)",
	}
	smallRowStyle = Style{
		"display":         "flex",
		"justify-content": "space-between",
		"margin-bottom":   "4px",
	}
	sectionTitleStyle = Style{"color": "#ffffff", "font-weight": "600", "margin-bottom": "8px"}
)

const scrollbarCSS = `#perf-overlay-ui .ai-content::-webkit-scrollbar { width: 6px; }
#perf-overlay-ui .ai-content::-webkit-scrollbar-track { background: rgba(147, 51, 234, 0.2); border-radius: 3px; }
#perf-overlay-ui .ai-content::-webkit-scrollbar-thumb { background: #c084fc; border-radius: 3px; }`

// RootStyle is the full style of the panel root for a viewport and state.
func RootStyle(vp Viewport, expanded bool) Style {
	return baseStyle.Merge(ComputeLayout(vp, expanded).Style())
}

// DetailsStyle is the style of the collapsible details container.
func DetailsStyle(vp Viewport, expanded bool) Style {
	return detailsBaseStyle.Merge(Style{"max-height": px(ComputeLayout(vp, expanded).DetailsMaxHeight)})
}

// Render builds the whole panel.
func Render(m Model) *Node {
	status := statusLoading
	if m.Loaded {
		status = statusReady
	}
	analysis := m.Analysis
	if analysis == "" {
		analysis = WaitingText
	}

	header := el("div", Style{
		"padding":         "20px 24px 16px",
		"background":      "linear-gradient(135deg, rgba(255, 255, 255, 0.08) 0%, rgba(255, 255, 255, 0.03) 100%)",
		"border-bottom":   "1px solid rgba(255, 255, 255, 0.12)",
		"display":         "flex",
		"align-items":     "center",
		"justify-content": "space-between",
	},
		text("div", Style{"font-size": "16px", "font-weight": "600"}, "⚡ Performance"),
		text("div", Style{"font-size": "14px", "opacity": "0.7"}, status).withID(StatusID),
	)

	content := el("div", Style{"padding": "20px 24px"},
		el("div", nil, RenderMetrics(m.Samples)...).withID(MetricsID),
	)

	aiSection := el("div", Style{
		"background":    "linear-gradient(135deg, rgba(147, 51, 234, 0.15) 0%, rgba(168, 85, 247, 0.1) 100%)",
		"border":        "1px solid rgba(147, 51, 234, 0.3)",
		"border-radius": "16px",
		"margin":        "0 24px 16px",
		"padding":       "16px",
	},
		text("div", Style{"font-size": "14px", "font-weight": "600", "color": "#c084fc", "margin-bottom": "12px"}, "🤖 AI Analysis"),
		RenderAnalysis(analysis),
	)

	var detailRows []*Node
	if m.Details != nil {
		detailRows = RenderDetails(*m.Details)
	}
	details := el("div", DetailsStyle(m.Viewport, m.State.Expanded),
		el("div", Style{"padding": "20px 24px", "font-size": "12px", "line-height": "1.6", "color": "#e0e0e0"}, detailRows...).withID(DetailsContentID),
	).withID(DetailsID)

	root := el("div", RootStyle(m.Viewport, m.State.Expanded),
		text("style", nil, scrollbarCSS),
		header,
		content,
		aiSection,
		details,
		ToggleButton(m.State.Expanded),
	).withID(RootID)
	return root
}

// RenderMetrics builds one row per sample: label, value in seconds, tier colour.
func RenderMetrics(samples []metrics.MetricSample) []*Node {
	rows := make([]*Node, 0, len(samples))
	for _, s := range samples {
		value := el("span", Style{"color": s.Tier.Color(), "font-size": "14px", "font-weight": "600"},
			text("strong", nil, fmt.Sprintf("%.2f", s.ValueSeconds)),
			text("span", nil, "s"),
		).withAttr("data-tier", string(s.Tier))
		rows = append(rows, el("div", rowStyle,
			text("span", Style{"color": "#e0e0e0", "font-size": "13px"}, s.Label),
			value,
		))
	}
	return rows
}

// RenderAnalysis builds the AI analysis text region.
func RenderAnalysis(s string) *Node {
	return text("div", Style{
		"font-size":   "12px",
		"line-height": "1.5",
		"color":       "#e0e7ff",
		"opacity":     "0.9",
		"max-height":  "120px",
		"overflow-y":  "auto",
	}, s).withID(AnalysisID).withAttr("class", "ai-content")
}

// RenderDetails builds the contents of the details panel: aggregate counts,
// duration percentiles and the slowest-resource list.
func RenderDetails(sum metrics.ResourceSummary) []*Node {
	summary := el("div", Style{"margin-bottom": "16px"},
		text("div", sectionTitleStyle, "📊 Resource Summary"),
		keyValue("Total Resources:", fmt.Sprintf("%d", sum.Count), "#80d4ff"),
		keyValue("Total Transfer Size:", FormatKB(sum.TotalTransferBytes), "#4ade80"),
		keyValue("Median Duration:", fmt.Sprintf("%.0fms", sum.P50Ms), "#80d4ff"),
		keyValue("p95 Duration:", fmt.Sprintf("%.0fms", sum.P95Ms), "#ffb347"),
	)

	slowest := el("div", nil, text("div", sectionTitleStyle, "🐌 Slowest Resources"))
	for _, r := range sum.Slowest {
		name := text("span", Style{
			"flex":          "1",
			"overflow":      "hidden",
			"text-overflow": "ellipsis",
			"white-space":   "nowrap",
		}, r.InitiatorType+": "+metrics.DisplayName(r.URL)).withAttr("title", r.URL)
		slowest.Children = append(slowest.Children, el("div", Style{
			"display":         "flex",
			"justify-content": "space-between",
			"padding":         "4px 0",
			"font-size":       "11px",
		},
			name,
			text("span", Style{"color": "#ffb347", "margin-left": "8px"}, fmt.Sprintf("%.0fms", r.DurationMs)),
		))
	}
	return []*Node{summary, slowest}
}

// ToggleButton builds the expand/collapse control.
func ToggleButton(expanded bool) *Node {
	return text("button", Style{
		"width":         "100%",
		"padding":       "12px 24px",
		"background":    "rgba(255, 255, 255, 0.08)",
		"border":        "1px solid rgba(255, 255, 255, 0.15)",
		"border-radius": "0 0 20px 20px",
		"color":         "#ffffff",
		"font-size":     "13px",
		"font-weight":   "500",
		"cursor":        "pointer",
		"outline":       "none",
	}, ToggleLabel(expanded)).withID(ToggleID)
}

// ToggleLabel is the button text for a state.
func ToggleLabel(expanded bool) string {
	if expanded {
		return hideDetails
	}
	return showDetails
}

// FormatKB renders a byte count as kilobytes with one decimal.
func FormatKB(bytes int64) string {
	return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
}

func keyValue(key, value, color string) *Node {
	return el("div", smallRowStyle,
		text("span", nil, key),
		text("span", Style{"color": color}, value),
	)
}
