// Package perfcheck ties the metrics reader, the overlay presenter and the
// analysis requester to one host page.
package perfcheck

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"perfoverlay/internal/analysis"
	"perfoverlay/internal/metrics"
	"perfoverlay/internal/overlay"
	"perfoverlay/internal/recorder"
	"perfoverlay/internal/xslog"
)

// DefaultSettleDelay is the pause between the load event and the first read.
const DefaultSettleDelay = 100 * time.Millisecond

// DefaultViewport is used until the host reports its own.
var DefaultViewport = overlay.Viewport{Width: 1280, Height: 800}

// Host is the page the overlay lives in.
type Host interface {
	overlay.Surface
	Snapshot(ctx context.Context) (metrics.Snapshot, error)
	Viewport(ctx context.Context) (overlay.Viewport, error)
}

// ScriptLoader is implemented by hosts that can load the in-page capability.
type ScriptLoader interface {
	// EnsureScript adds a script tag for src unless one is already present.
	EnsureScript(ctx context.Context, src string) (bool, error)
}

// FactRecorder receives every metrics pass.
type FactRecorder interface {
	Record(ctx context.Context, samples []metrics.MetricSample, summary metrics.ResourceSummary) error
}

// Tracer receives controller events.
type Tracer interface {
	Log(kind string, data any)
}

type Options struct {
	// Enabled gates Init. A disabled controller never touches the page.
	Enabled bool
	// ScriptURL is loaded through the host when it implements ScriptLoader.
	ScriptURL   string
	SettleDelay time.Duration
	Analysis    analysis.Options
	Facts       FactRecorder
	Trace       Tracer
	Logger      *slog.Logger
}

// Report is what the overlay currently shows plus the analysis result.
type Report struct {
	Initialized bool                     `json:"initialized"`
	Model       overlay.Model            `json:"model"`
	Resources   *metrics.ResourceSummary `json:"resources,omitempty"`
	Outcome     *analysis.Outcome        `json:"outcome,omitempty"`
}

// Controller is the per-page singleton. Create one per page and call Init
// from whatever signals page readiness; repeated calls are harmless.
type Controller struct {
	host      Host
	presenter *overlay.Presenter
	requester *analysis.Requester
	lcp       metrics.LCPCache
	opts      Options
	logger    *slog.Logger

	initialized   atomic.Bool
	fallbackShown atomic.Bool
	analyzed      chan struct{}
	analyzeOnce   sync.Once

	mu       sync.Mutex
	life     context.Context // Init context; the analysis request runs on it
	snapshot metrics.Snapshot
	summary  *metrics.ResourceSummary
	outcome  *analysis.Outcome
}

// New builds a controller for host. capability may be nil, in which case the
// analysis section reports the capability as unavailable without waiting.
func New(host Host, capability analysis.Capability, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = xslog.Discard()
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = DefaultSettleDelay
	}

	c := &Controller{
		host:     host,
		opts:     opts,
		logger:   logger,
		analyzed: make(chan struct{}),
	}
	c.presenter = overlay.NewPresenter(host, DefaultViewport, logger)
	if capability != nil {
		aopts := opts.Analysis
		if aopts.Logger == nil {
			aopts.Logger = logger
		}
		c.requester = analysis.NewRequester(capability, c.presenter, aopts)
	}
	return c
}

// Init mounts the overlay and runs the load flow: settle, render metrics and
// details, record facts, then analyze once. It returns false without doing
// anything when the controller is disabled or was already initialized. The
// only error is context cancellation.
func (c *Controller) Init(ctx context.Context) (bool, error) {
	if !c.opts.Enabled {
		return false, nil
	}
	c.mu.Lock()
	if c.life == nil {
		c.life = ctx
	}
	c.mu.Unlock()
	if !c.initialized.CompareAndSwap(false, true) {
		return false, nil
	}

	if vp, err := c.host.Viewport(ctx); err != nil {
		c.logger.WarnContext(ctx, "viewport read failed", xslog.Error(err))
	} else {
		c.presenter.Reposition(ctx, vp)
	}

	if loader, ok := c.host.(ScriptLoader); ok && c.opts.ScriptURL != "" && c.requester != nil {
		if _, err := loader.EnsureScript(ctx, c.opts.ScriptURL); err != nil {
			c.logger.WarnContext(ctx, "capability script injection failed", xslog.URL(c.opts.ScriptURL), xslog.Error(err))
		}
	}

	mounted := c.presenter.EnsureCreated(ctx)
	c.trace(recorder.EventInit, map[string]any{"mounted": mounted, "viewport": c.presenter.Model().Viewport})

	if err := sleep(ctx, c.opts.SettleDelay); err != nil {
		return true, err
	}

	c.Refresh(ctx)
	c.Analyze(ctx)
	return true, ctx.Err()
}

// Initialized reports whether Init has run.
func (c *Controller) Initialized() bool {
	return c.initialized.Load()
}

// Refresh re-reads the page and re-renders the metrics and details regions.
func (c *Controller) Refresh(ctx context.Context) {
	snap := c.readSnapshot(ctx)
	samples := metrics.Samples(snap, &c.lcp)
	summary := metrics.Summarize(metrics.Entries(snap.Resources))

	c.mu.Lock()
	c.summary = &summary
	c.mu.Unlock()

	c.presenter.Render(ctx, samples)
	c.presenter.RenderDetails(ctx, summary)
	c.trace(recorder.EventMetrics, samples)
	c.trace(recorder.EventResources, summary)

	if c.opts.Facts != nil {
		if err := c.opts.Facts.Record(ctx, samples, summary); err != nil {
			c.logger.WarnContext(ctx, "fact recording failed", xslog.Error(err))
		}
	}
}

// ObserveLCP caches a largest-contentful-paint candidate and, once the
// overlay exists, re-renders the metrics.
func (c *Controller) ObserveLCP(ctx context.Context, startTimeMs float64) {
	v := c.lcp.Observe(startTimeMs)
	c.trace(recorder.EventLCP, map[string]float64{"seconds": v})
	if !c.Initialized() {
		return
	}
	snap := c.readSnapshot(ctx)
	samples := metrics.Samples(snap, &c.lcp)
	c.presenter.Render(ctx, samples)
	if c.opts.Facts != nil {
		c.mu.Lock()
		summary := metrics.ResourceSummary{}
		if c.summary != nil {
			summary = *c.summary
		}
		c.mu.Unlock()
		if err := c.opts.Facts.Record(ctx, samples, summary); err != nil {
			c.logger.WarnContext(ctx, "fact recording failed", xslog.Error(err))
		}
	}
}

// LCP returns the cached largest-contentful-paint value in seconds.
func (c *Controller) LCP() (float64, bool) {
	return c.lcp.Seconds()
}

// Resize repositions the overlay for a new viewport.
func (c *Controller) Resize(ctx context.Context, vp overlay.Viewport) {
	c.presenter.Reposition(ctx, vp)
	c.trace(recorder.EventResize, vp)
}

// ToggleDetails flips the details panel. Expanding re-reads the resources.
func (c *Controller) ToggleDetails(ctx context.Context) bool {
	expanded := c.presenter.ToggleDetails(ctx)
	if expanded && c.Initialized() {
		summary := metrics.Summarize(metrics.Entries(c.readSnapshot(ctx).Resources))
		c.mu.Lock()
		c.summary = &summary
		c.mu.Unlock()
		c.presenter.RenderDetails(ctx, summary)
	}
	c.trace(recorder.EventToggle, map[string]bool{"expanded": expanded})
	return expanded
}

// Analyze requests the analysis. Only the first call per page does any work,
// whether it comes from Init or from an explicit trigger. The request itself
// runs on the Init context; if ctx ends first the caller gets a canceled
// outcome while the request carries on and can be collected with Wait.
func (c *Controller) Analyze(ctx context.Context) analysis.Outcome {
	life := c.lifetime(ctx)
	if life == ctx {
		return c.analyze(ctx)
	}

	done := make(chan analysis.Outcome, 1)
	go func() { done <- c.analyze(life) }()
	select {
	case out := <-done:
		return out
	case <-ctx.Done():
		return analysis.Outcome{Kind: analysis.OutcomeCanceled, Err: ctx.Err()}
	}
}

func (c *Controller) lifetime(ctx context.Context) context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.life == nil {
		return ctx
	}
	return c.life
}

func (c *Controller) analyze(ctx context.Context) analysis.Outcome {
	var out analysis.Outcome
	if c.requester == nil {
		out = c.analyzeWithout(ctx)
	} else {
		out = c.requester.Analyze(ctx, func() string {
			return analysis.ComposePrompt(c.readSnapshot(ctx), &c.lcp)
		})
	}
	if !out.Requested() {
		return out
	}

	c.mu.Lock()
	c.outcome = &out
	c.mu.Unlock()
	c.analyzeOnce.Do(func() { close(c.analyzed) })

	entry := map[string]any{"kind": out.Kind, "text": out.Text, "attempts": out.Attempts}
	if out.Err != nil {
		entry["error"] = out.Err.Error()
	}
	c.trace(recorder.EventAnalysis, entry)
	return out
}

func (c *Controller) analyzeWithout(ctx context.Context) analysis.Outcome {
	if !c.fallbackShown.CompareAndSwap(false, true) {
		return analysis.Outcome{Kind: analysis.OutcomeSkipped}
	}
	c.presenter.ShowAnalysisPending(ctx)
	c.presenter.ShowAnalysis(ctx, overlay.UnavailableText)
	return analysis.Outcome{
		Kind: analysis.OutcomeUnavailable,
		Text: overlay.UnavailableText,
		Err:  analysis.ErrAnalysisUnavailable,
	}
}

// Wait blocks until the analysis has finished or ctx is done.
func (c *Controller) Wait(ctx context.Context) (analysis.Outcome, error) {
	select {
	case <-c.analyzed:
		c.mu.Lock()
		defer c.mu.Unlock()
		return *c.outcome, nil
	case <-ctx.Done():
		return analysis.Outcome{}, ctx.Err()
	}
}

// Report returns the current model and analysis result.
func (c *Controller) Report() Report {
	r := Report{
		Initialized: c.Initialized(),
		Model:       c.presenter.Model(),
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.summary != nil {
		s := *c.summary
		r.Resources = &s
	}
	if c.outcome != nil {
		o := *c.outcome
		r.Outcome = &o
	}
	return r
}

// readSnapshot falls back to the last good snapshot when the page cannot be read.
func (c *Controller) readSnapshot(ctx context.Context) metrics.Snapshot {
	snap, err := c.host.Snapshot(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "metrics snapshot failed", xslog.Error(err))
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.snapshot
	}
	c.mu.Lock()
	c.snapshot = snap
	c.mu.Unlock()
	return snap
}

func (c *Controller) trace(kind string, data any) {
	if c.opts.Trace != nil {
		c.opts.Trace.Log(kind, data)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
