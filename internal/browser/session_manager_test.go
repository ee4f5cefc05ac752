package browser

import (
	"context"
	"errors"
	"testing"

	"perfoverlay/internal/config"
)

func TestSessionManagerWithoutBrowser(t *testing.T) {
	m := NewSessionManager(config.BrowserConfig{}, nil)

	if m.IsConnected() {
		t.Error("a new manager is not connected")
	}
	if m.ControlURL() != "" {
		t.Errorf("unexpected control url %q", m.ControlURL())
	}
	if _, err := m.Open(context.Background(), "https://example.com"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Open before Start: expected ErrNotConnected, got %v", err)
	}
	if got := m.List(); len(got) != 0 {
		t.Errorf("expected no pages, got %v", got)
	}
	if _, ok := m.Get("missing"); ok {
		t.Error("Get should miss")
	}
	if err := m.Close("missing"); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("Close: expected ErrPageNotFound, got %v", err)
	}
	if err := m.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown without a browser: %v", err)
	}
}

func TestNewLauncherFlags(t *testing.T) {
	headless := false
	m := NewSessionManager(config.BrowserConfig{
		Launch:   []string{"/usr/bin/chromium", "--disable-gpu", "--window-size=400,800"},
		Headless: &headless,
	}, nil)

	l := m.newLauncher()
	if got := l.Get("window-size"); got != "400,800" {
		t.Errorf("window-size = %q", got)
	}
	if !l.Has("disable-gpu") {
		t.Error("disable-gpu flag missing")
	}
	if l.Has("headless") {
		t.Error("headless flag should be off")
	}
}
