package overlay

import (
	"strings"
	"testing"

	"perfoverlay/internal/metrics"
)

func TestStyleString(t *testing.T) {
	s := Style{"width": "320px", "bottom": "24px"}
	if got := s.String(); got != "bottom: 24px; width: 320px;" {
		t.Errorf("unexpected style string %q", got)
	}
	merged := s.Merge(Style{"width": "380px"})
	if merged["width"] != "380px" || s["width"] != "320px" {
		t.Error("Merge should layer without mutating the receiver")
	}
}

func TestRenderMetrics(t *testing.T) {
	rows := RenderMetrics([]metrics.MetricSample{
		{Label: "DOM Interactive", ValueSeconds: 0.8, Tier: metrics.TierGood},
		{Label: "Page Load", ValueSeconds: 2.61, Tier: metrics.TierBad},
	})
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if got := rows[0].TextContent(); got != "DOM Interactive0.80s" {
		t.Errorf("unexpected row text %q", got)
	}
	html := rows[1].HTML()
	if !strings.Contains(html, "#f87171") || !strings.Contains(html, `data-tier="bad"`) {
		t.Errorf("bad tier colour missing: %s", html)
	}
}

func TestRenderDetailsEscapesURLs(t *testing.T) {
	evil := `https://example.com/"><script>alert(1)</script>.js`
	nodes := RenderDetails(metrics.ResourceSummary{
		Count:              1,
		TotalTransferBytes: 2048,
		Slowest: []metrics.ResourceEntry{
			{URL: evil, InitiatorType: "<img>", DurationMs: 900},
		},
	})

	var b strings.Builder
	for _, n := range nodes {
		b.WriteString(n.HTML())
	}
	out := b.String()

	if strings.Contains(out, "<script>") || strings.Contains(out, "<img>") {
		t.Fatalf("markup leaked into details panel: %s", out)
	}
	if !strings.Contains(out, "&lt;script&gt;") {
		t.Errorf("expected escaped script tag in output: %s", out)
	}
	if !strings.Contains(out, "2.0 KB") || !strings.Contains(out, "900ms") {
		t.Errorf("expected size and duration in output: %s", out)
	}
}

func TestRenderFullPanel(t *testing.T) {
	summary := metrics.ResourceSummary{Count: 3}
	root := Render(Model{
		Samples:  []metrics.MetricSample{{Label: "Page Load", ValueSeconds: 1.2, Tier: metrics.TierWarn}},
		Details:  &summary,
		Loaded:   true,
		Viewport: Viewport{Width: 1200, Height: 900},
	})

	if root.ID() != RootID {
		t.Fatalf("root id = %q", root.ID())
	}
	for _, id := range []string{StatusID, MetricsID, AnalysisID, DetailsID, DetailsContentID, ToggleID} {
		if root.Find(id) == nil {
			t.Errorf("missing region %s", id)
		}
	}
	if got := root.Find(StatusID).Text; got != "✅" {
		t.Errorf("loaded status = %q", got)
	}
	if got := root.Find(AnalysisID).Text; got != WaitingText {
		t.Errorf("analysis placeholder = %q", got)
	}
	if got := root.Find(ToggleID).Text; got != "View Details" {
		t.Errorf("toggle label = %q", got)
	}
	if got := root.Find(DetailsID).Style["max-height"]; got != "0px" {
		t.Errorf("collapsed details height = %q", got)
	}
	if got := root.Style["width"]; got != "320px" {
		t.Errorf("root width = %q", got)
	}
}

func TestFormatKB(t *testing.T) {
	if got := FormatKB(1536); got != "1.5 KB" {
		t.Errorf("FormatKB(1536) = %q", got)
	}
	if got := FormatKB(0); got != "0.0 KB" {
		t.Errorf("FormatKB(0) = %q", got)
	}
}
