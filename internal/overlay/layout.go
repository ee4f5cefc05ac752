package overlay

import (
	"math"
	"strconv"
)

// Breakpoint is the viewport width, in logical pixels, below which the panel
// switches to the phone layout.
const Breakpoint = 768

const (
	narrowMargin   = 12
	desktopMargin  = 24
	collapsedWidth = 320
	expandedWidth  = 380

	detailsMaxHeight   = 300
	detailsHeightRatio = 0.4
)

// Viewport is the host window size in logical pixels.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Narrow reports whether the viewport uses the phone layout.
func (v Viewport) Narrow() bool {
	return v.Width < Breakpoint
}

// Layout is the computed placement of the panel for one viewport.
type Layout struct {
	Narrow bool
	// Bottom is the distance from the bottom edge. Margin is the distance from
	// the right edge, and from the left edge too in the phone layout.
	Bottom int
	Margin int
	// Width is the fixed panel width; 0 means auto (edge to edge).
	Width            int
	MaxWidth         string
	DetailsMaxHeight int
}

// ComputeLayout places the panel. Narrow viewports always span edge to edge
// with fixed side margins; wider viewports get a fixed-width panel anchored
// bottom-right that widens while the details panel is open.
func ComputeLayout(vp Viewport, expanded bool) Layout {
	l := Layout{Narrow: vp.Narrow()}
	if l.Narrow {
		l.Bottom = narrowMargin
		l.Margin = narrowMargin
		l.MaxWidth = "none"
	} else {
		l.Bottom = desktopMargin
		l.Margin = desktopMargin
		l.Width = collapsedWidth
		if expanded {
			l.Width = expandedWidth
		}
		l.MaxWidth = "calc(100vw - " + px(2*desktopMargin) + ")"
	}
	if expanded {
		l.DetailsMaxHeight = int(math.Min(detailsMaxHeight, float64(vp.Height)*detailsHeightRatio))
	}
	return l
}

// Style returns the positioning declarations for the panel root.
func (l Layout) Style() Style {
	s := Style{
		"position":  "fixed",
		"bottom":    px(l.Bottom),
		"right":     px(l.Margin),
		"max-width": l.MaxWidth,
	}
	if l.Narrow {
		s["left"] = px(l.Margin)
		s["width"] = "auto"
	} else {
		s["width"] = px(l.Width)
	}
	return s
}

func px(n int) string {
	return strconv.Itoa(n) + "px"
}
