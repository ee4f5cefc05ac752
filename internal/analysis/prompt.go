package analysis

import (
	"fmt"
	"regexp"
	"strings"

	"perfoverlay/internal/metrics"
)

const (
	promptHeader      = "Website performance metrics:\n"
	promptInstruction = "\nProvide a brief, actionable analysis (max 3 sentences) of this website's performance. Focus on potential improvements."
)

// ComposePrompt builds the request text from the page's timings: interactive
// time, load time, each paint entry by its raw name and the cached LCP when
// present, followed by the fixed instruction.
func ComposePrompt(snap metrics.Snapshot, lcp *metrics.LCPCache) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	if nav := snap.Navigation; nav != nil {
		fmt.Fprintf(&b, "- DOM Interactive: %.2fs\n", metrics.Seconds(nav.DOMInteractive))
		fmt.Fprintf(&b, "- Page Load: %.2fs\n", metrics.Seconds(nav.LoadEventEnd))
	}
	for _, p := range snap.Paints {
		fmt.Fprintf(&b, "- %s: %.2fs\n", p.Name, metrics.Seconds(p.StartTime))
	}
	if v, ok := lcp.Seconds(); ok {
		fmt.Fprintf(&b, "- Largest Contentful Paint: %.2fs\n", v)
	}
	b.WriteString(promptInstruction)
	return b.String()
}

var fencedBlock = regexp.MustCompile("(?s)```.*?```")

// Clean removes fenced code blocks from a reply and trims surrounding
// whitespace. Whitespace between the remaining fragments is kept.
func Clean(reply string) string {
	return strings.TrimSpace(fencedBlock.ReplaceAllString(reply, ""))
}
