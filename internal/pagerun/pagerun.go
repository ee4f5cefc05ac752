// Package pagerun assembles everything one monitored page needs from the
// configuration: the controller, its fact engine, the run trace and the
// event pump. The CLI and the MCP server both go through it.
package pagerun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"perfoverlay/internal/analysis"
	"perfoverlay/internal/browser"
	"perfoverlay/internal/config"
	"perfoverlay/internal/llm"
	"perfoverlay/internal/mangle"
	"perfoverlay/internal/perfcheck"
	"perfoverlay/internal/recorder"
	"perfoverlay/internal/xslog"

	"golang.org/x/sync/errgroup"
)

// Target is a page that can host the overlay and stream its events.
// *browser.Page implements it.
type Target interface {
	perfcheck.Host
	ID() string
	Watch(ctx context.Context, interval time.Duration, h browser.EventHandler) error
}

// Factory builds runs from one configuration. It is safe for concurrent use.
type Factory struct {
	cfg      config.Config
	logger   *slog.Logger
	recorder *recorder.Recorder
	remote   analysis.Capability
}

// NewFactory validates nothing beyond what the recorder needs; call
// cfg.Validate first.
func NewFactory(cfg config.Config, logger *slog.Logger) (*Factory, error) {
	if logger == nil {
		logger = xslog.Discard()
	}
	f := &Factory{cfg: cfg, logger: logger}

	if cfg.Recorder.Enabled {
		rec, err := recorder.NewRecorder(cfg.Recorder.Dir, cfg.Recorder.MaxTraces)
		if err != nil {
			return nil, fmt.Errorf("recorder: %w", err)
		}
		f.recorder = rec
		logger.Debug("trace recording enabled", slog.String("dir", rec.Dir()))
	}

	if cfg.Analysis.Provider == config.ProviderHTTP {
		f.remote = llm.New(llm.Options{
			Endpoint:     cfg.Analysis.Endpoint,
			APIKey:       cfg.Analysis.APIKey,
			Model:        cfg.Analysis.Model,
			MessageField: cfg.Analysis.MessageField,
			ResponsePath: cfg.Analysis.ResponsePath,
			HealthURL:    cfg.Analysis.HealthURL,
			Timeout:      cfg.Analysis.GetRequestTimeout(),
		})
	}
	return f, nil
}

// TraceDir is where run traces are written, or "" when recording is off.
func (f *Factory) TraceDir() string {
	if f.recorder == nil {
		return ""
	}
	return f.recorder.Dir()
}

// Capability picks the analysis capability for target: the page itself for
// the page provider, the shared HTTP client for the http provider, nil
// otherwise.
func (f *Factory) Capability(target Target) analysis.Capability {
	switch f.cfg.Analysis.Provider {
	case config.ProviderHTTP:
		return f.remote
	case config.ProviderPage:
		if c, ok := target.(analysis.Capability); ok {
			return c
		}
	}
	return nil
}

// Start builds the run for target and launches its event pump and load
// flow. The run lives until Close or until ctx is done.
func (f *Factory) Start(ctx context.Context, target Target) (*Run, error) {
	logger := f.logger.With(xslog.Session(target.ID()))

	facts, err := mangle.NewEngine(f.cfg.Mangle, logger)
	if err != nil {
		return nil, fmt.Errorf("fact engine: %w", err)
	}

	var trace *recorder.Trace
	if f.recorder != nil {
		trace, err = f.recorder.Start(target.ID())
		if err != nil {
			logger.WarnContext(ctx, "trace disabled for page", xslog.Error(err))
		}
	}

	opts := perfcheck.Options{
		Enabled:     f.cfg.Overlay.Enabled,
		SettleDelay: f.cfg.Overlay.GetSettleDelay(),
		Analysis: analysis.Options{
			PollInterval: f.cfg.Analysis.GetPollInterval(),
			MaxAttempts:  f.cfg.Analysis.GetMaxAttempts(),
		},
		Facts:  facts,
		Logger: logger,
	}
	if f.cfg.Analysis.Provider == config.ProviderPage {
		opts.ScriptURL = f.cfg.Analysis.ScriptURL
	}
	if trace != nil {
		opts.Trace = trace
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	r := &Run{
		target:     target,
		Controller: perfcheck.New(target, f.Capability(target), opts),
		Facts:      facts,
		trace:      trace,
		cancel:     cancel,
		group:      g,
		loaded:     make(chan struct{}),
		logger:     logger,
	}

	interval := f.cfg.Overlay.GetEventPollInterval()
	g.Go(func() error {
		return r.pump(gctx, interval)
	})
	g.Go(func() error {
		defer close(r.loaded)
		_, err := r.Controller.Init(gctx)
		return err
	})
	return r, nil
}

// Run is one monitored page.
type Run struct {
	Controller *perfcheck.Controller
	Facts      *mangle.Engine

	target Target
	trace  *recorder.Trace
	cancel context.CancelFunc
	group  *errgroup.Group
	loaded chan struct{}
	logger *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// ID is the page id.
func (r *Run) ID() string {
	return r.target.ID()
}

// TracePath is empty when recording is off.
func (r *Run) TracePath() string {
	return r.trace.Path()
}

// Loaded is closed once the load flow, including the analysis, has finished.
func (r *Run) Loaded() <-chan struct{} {
	return r.loaded
}

// WaitLoaded blocks until the load flow finishes or ctx is done.
func (r *Run) WaitLoaded(ctx context.Context) error {
	select {
	case <-r.loaded:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the pump and the load flow and closes the trace. It is safe to
// call more than once.
func (r *Run) Close() error {
	r.closeOnce.Do(func() {
		r.cancel()
		err := r.group.Wait()
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		r.closeErr = errors.Join(err, r.trace.Close())
	})
	return r.closeErr
}

// pump forwards page events once Init has started. A disabled controller
// never gets hooks installed.
func (r *Run) pump(ctx context.Context, interval time.Duration) error {
	if !r.waitInit(ctx) {
		return ctx.Err()
	}
	err := r.target.Watch(ctx, interval, r.Controller)
	if err != nil && ctx.Err() == nil {
		// A page that cannot be watched still has its overlay and report.
		r.logger.WarnContext(ctx, "event pump stopped", xslog.Error(err))
		return nil
	}
	return err
}

func (r *Run) waitInit(ctx context.Context) bool {
	t := time.NewTicker(10 * time.Millisecond)
	defer t.Stop()
	for {
		if r.Controller.Initialized() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-r.loaded:
			return r.Controller.Initialized()
		case <-t.C:
		}
	}
}
