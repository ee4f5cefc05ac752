package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"perfoverlay/internal/metrics"
	"perfoverlay/internal/overlay"

	"github.com/go-rod/rod"
	"github.com/goccy/go-json"
	"github.com/ysmood/gson"
)

// Page is one tracked tab. It is the overlay's host: it reads the page's
// performance entries, applies overlay nodes to the DOM and exposes the
// in-page chat capability.
type Page struct {
	logger *slog.Logger
	page   *rod.Page

	mu   sync.RWMutex
	meta Session
}

func newPage(meta Session, page *rod.Page, logger *slog.Logger) *Page {
	return &Page{meta: meta, page: page, logger: logger}
}

func (p *Page) ID() string {
	return p.Session().ID
}

func (p *Page) Session() Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.meta
}

// Close closes the tab.
func (p *Page) Close() error {
	return p.page.Close()
}

func (p *Page) eval(ctx context.Context, js string, args ...interface{}) (gson.JSON, error) {
	res, err := p.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           js,
		JSArgs:       args,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return gson.JSON{}, err
	}
	return res.Value, nil
}

// Snapshot reads navigation, paint and resource timing entries.
func (p *Page) Snapshot(ctx context.Context) (metrics.Snapshot, error) {
	v, err := p.eval(ctx, snapshotJS)
	if err != nil {
		return metrics.Snapshot{}, fmt.Errorf("read performance entries: %w", err)
	}
	raw, err := v.MarshalJSON()
	if err != nil {
		return metrics.Snapshot{}, fmt.Errorf("encode performance entries: %w", err)
	}
	return decodeSnapshot(raw)
}

func decodeSnapshot(raw []byte) (metrics.Snapshot, error) {
	var snap metrics.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return metrics.Snapshot{}, fmt.Errorf("decode performance entries: %w", err)
	}
	return snap, nil
}

// Viewport returns the layout viewport in CSS pixels.
func (p *Page) Viewport(ctx context.Context) (overlay.Viewport, error) {
	v, err := p.eval(ctx, viewportJS)
	if err != nil {
		return overlay.Viewport{}, fmt.Errorf("read viewport: %w", err)
	}
	return overlay.Viewport{Width: v.Get("width").Int(), Height: v.Get("height").Int()}, nil
}

// Mount appends root to the body unless an element with its id exists.
func (p *Page) Mount(ctx context.Context, root *overlay.Node) (bool, error) {
	v, err := p.eval(ctx, mountJS, root.ID(), root.HTML())
	if err != nil {
		return false, fmt.Errorf("mount overlay: %w", err)
	}
	return v.Bool(), nil
}

func (p *Page) ReplaceChildren(ctx context.Context, id string, children []*overlay.Node) error {
	var b strings.Builder
	for _, c := range children {
		b.WriteString(c.HTML())
	}
	return p.update(ctx, replaceChildrenJS, id, b.String())
}

func (p *Page) SetStyle(ctx context.Context, id string, style overlay.Style) error {
	return p.update(ctx, setStyleJS, id, style.String())
}

func (p *Page) SetText(ctx context.Context, id, text string) error {
	return p.update(ctx, setTextJS, id, text)
}

func (p *Page) update(ctx context.Context, js, id, value string) error {
	v, err := p.eval(ctx, js, id, value)
	if err != nil {
		return fmt.Errorf("update #%s: %w", id, err)
	}
	if !v.Bool() {
		return fmt.Errorf("element %q not found", id)
	}
	return nil
}

// EnsureScript adds an async script tag for src unless one exists.
func (p *Page) EnsureScript(ctx context.Context, src string) (bool, error) {
	v, err := p.eval(ctx, ensureScriptJS, src)
	if err != nil {
		return false, fmt.Errorf("inject script: %w", err)
	}
	return v.Bool(), nil
}

// Available reports whether window.apifree.chat is defined.
func (p *Page) Available(ctx context.Context) (bool, error) {
	v, err := p.eval(ctx, capabilityReadyJS)
	if err != nil {
		return false, err
	}
	return v.Bool(), nil
}

// Chat calls window.apifree.chat and waits for its reply.
func (p *Page) Chat(ctx context.Context, prompt string) (string, error) {
	v, err := p.eval(ctx, chatJS, prompt)
	if err != nil {
		return "", fmt.Errorf("apifree chat: %w", err)
	}
	return v.Str(), nil
}
