package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"perfoverlay/internal/config"
	"perfoverlay/internal/xslog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
)

var (
	ErrNotConnected = errors.New("browser not connected")
	ErrPageNotFound = errors.New("page not found")
)

// Session describes the public metadata for a tracked page.
type Session struct {
	ID        string    `json:"id"`
	TargetID  string    `json:"target_id,omitempty"`
	URL       string    `json:"url,omitempty"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionManager owns the Chrome instance and tracks open pages.
type SessionManager struct {
	cfg    config.BrowserConfig
	logger *slog.Logger

	mu         sync.RWMutex
	browser    *rod.Browser
	pages      map[string]*Page
	controlURL string
	launched   *launcher.Launcher
}

func NewSessionManager(cfg config.BrowserConfig, logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = xslog.Discard()
	}
	return &SessionManager{
		cfg:    cfg,
		logger: logger,
		pages:  make(map[string]*Page),
	}
}

// Start connects to an existing Chrome or launches a new one using Rod's launcher.
func (m *SessionManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		if _, err := m.browser.Version(); err == nil {
			return nil
		}
		m.logger.WarnContext(ctx, "stale browser connection detected, reconnecting")
		_ = m.browser.Close()
		m.browser = nil
		m.controlURL = ""
		m.pages = make(map[string]*Page)
	}

	controlURL := m.cfg.DebuggerURL
	if controlURL == "" {
		l := m.newLauncher()
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = u
		m.launched = l
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	m.browser = b
	m.controlURL = controlURL
	m.logger.InfoContext(ctx, "browser connected", slog.String("control_url", controlURL))
	return nil
}

// newLauncher builds a launcher from the configured command. The first element
// is the binary; the rest are --flag or --flag=value switches. Without a
// command Rod finds or downloads a browser.
func (m *SessionManager) newLauncher() *launcher.Launcher {
	l := launcher.New().Headless(m.cfg.IsHeadless())
	if len(m.cfg.Launch) == 0 {
		return l
	}
	l = l.Bin(m.cfg.Launch[0])
	for _, raw := range m.cfg.Launch[1:] {
		name, val, hasVal := strings.Cut(strings.TrimLeft(raw, "-"), "=")
		if hasVal {
			l = l.Set(flags.Flag(name), val)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}
	return l
}

// ControlURL returns the WebSocket debugger URL for the connected browser.
func (m *SessionManager) ControlURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.controlURL
}

// IsConnected returns whether the browser is currently connected.
func (m *SessionManager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser != nil
}

// Open creates an incognito page with the configured viewport, navigates to
// url and waits for the load event.
func (m *SessionManager) Open(ctx context.Context, url string) (*Page, error) {
	m.mu.RLock()
	b := m.browser
	m.mu.RUnlock()
	if b == nil {
		return nil, ErrNotConnected
	}

	incognito, err := b.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}
	rp, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             m.cfg.GetViewportWidth(),
		Height:            m.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            m.cfg.GetViewportWidth() < 768,
	}).Call(rp); err != nil {
		m.logger.WarnContext(ctx, "failed to set viewport", xslog.Error(err))
	}

	nav := rp.Context(ctx).Timeout(m.cfg.NavigationTimeout())
	if err := nav.Navigate(url); err != nil {
		_ = rp.Close()
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := nav.WaitLoad(); err != nil {
		_ = rp.Close()
		return nil, fmt.Errorf("wait for load %s: %w", url, err)
	}

	meta := Session{
		ID:        uuid.NewString(),
		TargetID:  string(rp.TargetID),
		URL:       url,
		CreatedAt: time.Now(),
	}
	if info, err := rp.Info(); err == nil {
		meta.URL = info.URL
		meta.Title = info.Title
	}

	p := newPage(meta, rp, m.logger.With(xslog.Session(meta.ID)))
	m.mu.Lock()
	m.pages[meta.ID] = p
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "page opened", xslog.Session(meta.ID), xslog.URL(meta.URL))
	return p, nil
}

// Get returns a tracked page.
func (m *SessionManager) Get(id string) (*Page, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pages[id]
	return p, ok
}

// List returns metadata for all open pages, oldest first.
func (m *SessionManager) List() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Session, 0, len(m.pages))
	for _, p := range m.pages {
		out = append(out, p.Session())
	}
	slices.SortFunc(out, func(a, b Session) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Close closes one page and forgets it.
func (m *SessionManager) Close(id string) error {
	m.mu.Lock()
	p, ok := m.pages[id]
	delete(m.pages, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrPageNotFound, id)
	}
	return p.Close()
}

// Shutdown closes tracked pages and the underlying browser.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, p := range m.pages {
		_ = p.Close()
		delete(m.pages, id)
	}

	var err error
	if m.browser != nil {
		err = m.browser.Close()
		m.browser = nil
	}
	if m.launched != nil {
		m.launched.Cleanup()
		m.launched = nil
	}
	m.controlURL = ""
	m.logger.InfoContext(ctx, "browser shutdown complete")
	return err
}
