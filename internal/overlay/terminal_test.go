package overlay

import (
	"strings"
	"testing"

	"perfoverlay/internal/metrics"
)

func TestRenderTerminal(t *testing.T) {
	summary := metrics.ResourceSummary{
		Count:              2,
		TotalTransferBytes: 4096,
		Slowest: []metrics.ResourceEntry{
			{URL: "https://example.com/app.js", InitiatorType: "script", DurationMs: 420},
		},
	}
	out := RenderTerminal(Model{
		Samples: []metrics.MetricSample{
			{Label: "DOM Interactive", ValueSeconds: 0.8, Tier: metrics.TierGood},
		},
		Details:  &summary,
		Analysis: "Defer scripts.",
		Loaded:   true,
		State:    State{Expanded: true},
	}, 60)

	for _, want := range []string{"Performance", "DOM Interactive", "0.80s", "Defer scripts.", "4.0 KB", "script: app.js", "420ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("terminal panel missing %q:\n%s", want, out)
		}
	}
}

func TestRenderTerminalCollapsedHidesDetails(t *testing.T) {
	summary := metrics.ResourceSummary{Count: 2}
	out := RenderTerminal(Model{Details: &summary}, 60)
	if strings.Contains(out, "Resource Summary") {
		t.Errorf("collapsed panel should hide details:\n%s", out)
	}
	if !strings.Contains(out, WaitingText) {
		t.Errorf("expected waiting placeholder:\n%s", out)
	}
}
