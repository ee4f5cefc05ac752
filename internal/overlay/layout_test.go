package overlay

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestComputeLayout(t *testing.T) {
	tests := []struct {
		name     string
		vp       Viewport
		expanded bool
		want     Layout
	}{
		{
			name: "phone collapsed",
			vp:   Viewport{Width: 400, Height: 800},
			want: Layout{Narrow: true, Bottom: 12, Margin: 12, Width: 0, MaxWidth: "none"},
		},
		{
			name:     "phone expanded stays edge to edge",
			vp:       Viewport{Width: 400, Height: 800},
			expanded: true,
			want:     Layout{Narrow: true, Bottom: 12, Margin: 12, Width: 0, MaxWidth: "none", DetailsMaxHeight: 300},
		},
		{
			name: "desktop collapsed",
			vp:   Viewport{Width: 1200, Height: 900},
			want: Layout{Bottom: 24, Margin: 24, Width: 320, MaxWidth: "calc(100vw - 48px)"},
		},
		{
			name:     "desktop expanded",
			vp:       Viewport{Width: 1200, Height: 900},
			expanded: true,
			want:     Layout{Bottom: 24, Margin: 24, Width: 380, MaxWidth: "calc(100vw - 48px)", DetailsMaxHeight: 300},
		},
		{
			name:     "short window caps details height",
			vp:       Viewport{Width: 1200, Height: 500},
			expanded: true,
			want:     Layout{Bottom: 24, Margin: 24, Width: 380, MaxWidth: "calc(100vw - 48px)", DetailsMaxHeight: 200},
		},
		{
			name: "breakpoint width is desktop",
			vp:   Viewport{Width: 768, Height: 900},
			want: Layout{Bottom: 24, Margin: 24, Width: 320, MaxWidth: "calc(100vw - 48px)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeLayout(tt.vp, tt.expanded)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ComputeLayout mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLayoutStyle(t *testing.T) {
	narrow := ComputeLayout(Viewport{Width: 400, Height: 800}, false).Style()
	wantNarrow := Style{
		"position":  "fixed",
		"bottom":    "12px",
		"left":      "12px",
		"right":     "12px",
		"width":     "auto",
		"max-width": "none",
	}
	if diff := cmp.Diff(wantNarrow, narrow); diff != "" {
		t.Errorf("narrow style mismatch (-want +got):\n%s", diff)
	}

	desktop := ComputeLayout(Viewport{Width: 1200, Height: 800}, true).Style()
	if desktop["width"] != "380px" || desktop["right"] != "24px" || desktop["bottom"] != "24px" {
		t.Errorf("unexpected desktop style: %v", desktop)
	}
	if _, ok := desktop["left"]; ok {
		t.Error("desktop panel should not be anchored left")
	}
}
