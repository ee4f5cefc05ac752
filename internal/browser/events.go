package browser

import (
	"context"
	"fmt"
	"time"

	"perfoverlay/internal/overlay"
	"perfoverlay/internal/xslog"

	"github.com/goccy/go-json"
)

// Event types pushed by the page hooks.
const (
	EventLCP    = "lcp"
	EventResize = "resize"
	EventToggle = "toggle"
)

// PageEvent is one entry of the in-page event buffer.
type PageEvent struct {
	Type   string  `json:"type"`
	Value  float64 `json:"value,omitempty"`
	Width  int     `json:"width,omitempty"`
	Height int     `json:"height,omitempty"`
	TS     int64   `json:"ts"`
}

// EventHandler receives page events. perfcheck.Controller implements it.
type EventHandler interface {
	ObserveLCP(ctx context.Context, startTimeMs float64)
	Resize(ctx context.Context, vp overlay.Viewport)
	ToggleDetails(ctx context.Context) bool
}

// InstallHooks sets up the in-page observers once per document.
func (p *Page) InstallHooks(ctx context.Context) error {
	if _, err := p.eval(ctx, hooksJS, overlay.ToggleID); err != nil {
		return fmt.Errorf("install page hooks: %w", err)
	}
	return nil
}

// DrainEvents returns and clears the buffered page events.
func (p *Page) DrainEvents(ctx context.Context) ([]PageEvent, error) {
	v, err := p.eval(ctx, drainEventsJS)
	if err != nil {
		return nil, fmt.Errorf("drain page events: %w", err)
	}
	raw, err := v.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return decodeEvents(raw)
}

// Watch installs the page hooks and forwards buffered events to h every
// interval until ctx is done. Failed drains are logged and retried on the
// next tick.
func (p *Page) Watch(ctx context.Context, interval time.Duration, h EventHandler) error {
	if err := p.InstallHooks(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			events, err := p.DrainEvents(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				p.logger.DebugContext(ctx, "event drain failed", xslog.Error(err))
				continue
			}
			Dispatch(ctx, events, h)
		}
	}
}

// Dispatch forwards events to h in order. Consecutive resizes collapse to
// the last one.
func Dispatch(ctx context.Context, events []PageEvent, h EventHandler) {
	for i, ev := range events {
		switch ev.Type {
		case EventLCP:
			h.ObserveLCP(ctx, ev.Value)
		case EventResize:
			if i+1 < len(events) && events[i+1].Type == EventResize {
				continue
			}
			h.Resize(ctx, overlay.Viewport{Width: ev.Width, Height: ev.Height})
		case EventToggle:
			h.ToggleDetails(ctx)
		}
	}
}

func decodeEvents(raw []byte) ([]PageEvent, error) {
	var events []PageEvent
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("decode page events: %w", err)
	}
	return events, nil
}
