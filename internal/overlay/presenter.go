package overlay

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"perfoverlay/internal/metrics"
	"perfoverlay/internal/xslog"
)

// Surface applies rendered nodes to the host document. Implementations
// address elements by id.
type Surface interface {
	// Mount inserts root unless an element with root's id already exists. It
	// reports whether it inserted anything.
	Mount(ctx context.Context, root *Node) (bool, error)
	ReplaceChildren(ctx context.Context, id string, children []*Node) error
	SetStyle(ctx context.Context, id string, style Style) error
	SetText(ctx context.Context, id, text string) error
}

// Presenter owns the overlay state and keeps the surface in sync with it.
// Surface failures are logged and swallowed: the panel has no error states.
type Presenter struct {
	surface Surface
	logger  *slog.Logger

	mu       sync.Mutex
	created  bool
	state    State
	viewport Viewport
	samples  []metrics.MetricSample
	details  *metrics.ResourceSummary
	analysis string
	loaded   bool
}

func NewPresenter(surface Surface, vp Viewport, logger *slog.Logger) *Presenter {
	if logger == nil {
		logger = xslog.Discard()
	}
	return &Presenter{surface: surface, viewport: vp, logger: logger}
}

// EnsureCreated mounts the panel once. Later calls, and calls made when the
// document already holds a panel, do nothing.
func (p *Presenter) EnsureCreated(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.created {
		return false
	}
	mounted, err := p.surface.Mount(ctx, Render(p.modelLocked()))
	if err != nil {
		p.logger.WarnContext(ctx, "overlay mount failed", xslog.Error(err))
		return false
	}
	p.created = true
	return mounted
}

// Render replaces the live metrics list.
func (p *Presenter) Render(ctx context.Context, samples []metrics.MetricSample) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.samples = slices.Clone(samples)
	p.loaded = true
	for _, s := range samples {
		if s.Kind == metrics.KindLCP {
			v := s.ValueSeconds
			p.state.LastLCP = &v
		}
	}
	if !p.created {
		return
	}
	p.apply(ctx, "metrics", p.surface.ReplaceChildren(ctx, MetricsID, RenderMetrics(samples)))
	p.apply(ctx, "status", p.surface.SetText(ctx, StatusID, statusReady))
}

// RenderDetails fills the collapsible panel from a resource summary.
func (p *Presenter) RenderDetails(ctx context.Context, summary metrics.ResourceSummary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.details = &summary
	if !p.created {
		return
	}
	p.apply(ctx, "details", p.surface.ReplaceChildren(ctx, DetailsContentID, RenderDetails(summary)))
}

// ToggleDetails flips the details panel and returns the new expanded state.
func (p *Presenter) ToggleDetails(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Expanded = !p.state.Expanded
	if p.created {
		p.applyLayout(ctx)
		p.apply(ctx, "toggle", p.surface.SetText(ctx, ToggleID, ToggleLabel(p.state.Expanded)))
	}
	return p.state.Expanded
}

// Reposition recomputes the layout for a new viewport.
func (p *Presenter) Reposition(ctx context.Context, vp Viewport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.viewport = vp
	if p.created {
		p.applyLayout(ctx)
	}
}

// ShowAnalysisPending marks the analysis as requested and shows the placeholder.
func (p *Presenter) ShowAnalysisPending(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.AIRequested = true
	p.setAnalysisLocked(ctx, PendingText)
}

// ShowAnalysis replaces the analysis text.
func (p *Presenter) ShowAnalysis(ctx context.Context, s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setAnalysisLocked(ctx, s)
}

// State returns a copy of the overlay state.
func (p *Presenter) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked()
}

// Model returns what the panel currently shows.
func (p *Presenter) Model() Model {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.modelLocked()
}

func (p *Presenter) setAnalysisLocked(ctx context.Context, s string) {
	p.analysis = s
	if p.created {
		p.apply(ctx, "analysis", p.surface.SetText(ctx, AnalysisID, s))
	}
}

func (p *Presenter) applyLayout(ctx context.Context) {
	p.apply(ctx, "layout", p.surface.SetStyle(ctx, RootID, RootStyle(p.viewport, p.state.Expanded)))
	p.apply(ctx, "layout", p.surface.SetStyle(ctx, DetailsID, DetailsStyle(p.viewport, p.state.Expanded)))
}

func (p *Presenter) apply(ctx context.Context, region string, err error) {
	if err != nil {
		p.logger.WarnContext(ctx, "overlay update failed", slog.String("region", region), xslog.Error(err))
	}
}

func (p *Presenter) stateLocked() State {
	st := p.state
	if st.LastLCP != nil {
		v := *st.LastLCP
		st.LastLCP = &v
	}
	return st
}

func (p *Presenter) modelLocked() Model {
	m := Model{
		Samples:  slices.Clone(p.samples),
		Analysis: p.analysis,
		Loaded:   p.loaded,
		State:    p.stateLocked(),
		Viewport: p.viewport,
	}
	if p.details != nil {
		d := *p.details
		m.Details = &d
	}
	return m
}
