package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"perfoverlay/internal/overlay"
	"perfoverlay/internal/xslog"
)

const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultMaxAttempts  = 50
)

// Options tune the availability wait.
type Options struct {
	PollInterval time.Duration
	MaxAttempts  int
	Logger       *slog.Logger
}

// Requester runs the analysis at most once over its lifetime.
type Requester struct {
	capability Capability
	display    Display
	interval   time.Duration
	attempts   int
	logger     *slog.Logger

	requested atomic.Bool
}

func NewRequester(capability Capability, display Display, opts Options) *Requester {
	r := &Requester{
		capability: capability,
		display:    display,
		interval:   opts.PollInterval,
		attempts:   opts.MaxAttempts,
		logger:     opts.Logger,
	}
	if r.interval <= 0 {
		r.interval = DefaultPollInterval
	}
	if r.attempts <= 0 {
		r.attempts = DefaultMaxAttempts
	}
	if r.logger == nil {
		r.logger = xslog.Discard()
	}
	return r
}

// Requested reports whether Analyze has claimed the one request.
func (r *Requester) Requested() bool {
	return r.requested.Load()
}

// Analyze waits for the capability, sends prompt once and shows the result.
// Only the first call does any work; the guard is claimed before anything
// else happens, so concurrent callers cannot both reach the capability.
// Failures are shown as fixed text and logged, never returned to the caller
// beyond the Outcome.
func (r *Requester) Analyze(ctx context.Context, prompt func() string) Outcome {
	if !r.requested.CompareAndSwap(false, true) {
		return Outcome{Kind: OutcomeSkipped}
	}

	r.display.ShowAnalysisPending(ctx)

	attempts, err := r.waitAvailable(ctx)
	if err != nil {
		return r.fail(ctx, attempts, err)
	}

	reply, err := r.capability.Chat(ctx, prompt())
	if err != nil {
		if ctx.Err() != nil {
			return r.fail(ctx, attempts, ctx.Err())
		}
		return r.fail(ctx, attempts, fmt.Errorf("%w: %w", ErrAnalysisRequestFailed, err))
	}

	text := Clean(reply)
	if text == "" {
		r.display.ShowAnalysis(ctx, overlay.CompletedText)
		return Outcome{Kind: OutcomeEmpty, Text: overlay.CompletedText, Attempts: attempts}
	}
	r.display.ShowAnalysis(ctx, text)
	return Outcome{Kind: OutcomeAnswered, Text: text, Attempts: attempts}
}

// waitAvailable checks the capability, sleeping one interval between checks,
// for at most r.attempts sleeps. It returns the number of sleeps taken.
func (r *Requester) waitAvailable(ctx context.Context) (int, error) {
	attempts := 0
	for {
		ok, err := r.capability.Available(ctx)
		if err != nil {
			r.logger.DebugContext(ctx, "analysis availability probe failed", xslog.Error(err))
		}
		if ok {
			return attempts, nil
		}
		if attempts >= r.attempts {
			return attempts, ErrAnalysisUnavailable
		}
		if err := sleep(ctx, r.interval); err != nil {
			return attempts, err
		}
		attempts++
	}
}

func (r *Requester) fail(ctx context.Context, attempts int, err error) Outcome {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		r.logger.DebugContext(ctx, "analysis abandoned", xslog.Error(err))
		return Outcome{Kind: OutcomeCanceled, Attempts: attempts, Err: err}
	}

	kind := OutcomeFailed
	if errors.Is(err, ErrAnalysisUnavailable) {
		kind = OutcomeUnavailable
	}
	r.logger.WarnContext(ctx, "AI analysis error", slog.String("outcome", string(kind)), xslog.Error(err))
	r.display.ShowAnalysis(ctx, overlay.UnavailableText)
	return Outcome{Kind: kind, Text: overlay.UnavailableText, Attempts: attempts, Err: err}
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
