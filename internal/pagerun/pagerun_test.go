package pagerun

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"perfoverlay/internal/analysis"
	"perfoverlay/internal/browser"
	"perfoverlay/internal/config"
	"perfoverlay/internal/metrics"
	"perfoverlay/internal/overlay"

	"github.com/goccy/go-json"
)

type fakeTarget struct {
	*overlay.MemorySurface
	id      string
	watched atomic.Int32
	events  []browser.PageEvent
}

func newFakeTarget(id string) *fakeTarget {
	return &fakeTarget{MemorySurface: overlay.NewMemorySurface(), id: id}
}

func (f *fakeTarget) ID() string { return f.id }

func (f *fakeTarget) Snapshot(context.Context) (metrics.Snapshot, error) {
	return metrics.Snapshot{
		Navigation: &metrics.NavigationTiming{DOMInteractive: 300, LoadEventEnd: 1200},
		Paints:     []metrics.PaintTiming{{Name: "first-paint", StartTime: 250}},
		Resources: []metrics.ResourceTiming{
			{Name: "https://cdn.test/app.js", InitiatorType: "script", Duration: 120, TransferSize: 1024},
		},
	}, nil
}

func (f *fakeTarget) Viewport(context.Context) (overlay.Viewport, error) {
	return overlay.Viewport{Width: 1200, Height: 800}, nil
}

func (f *fakeTarget) Watch(ctx context.Context, _ time.Duration, h browser.EventHandler) error {
	f.watched.Add(1)
	browser.Dispatch(ctx, f.events, h)
	<-ctx.Done()
	return ctx.Err()
}

// pageTarget also carries the in-page capability.
type pageTarget struct {
	*fakeTarget
}

func (p pageTarget) Available(context.Context) (bool, error) { return true, nil }

func (p pageTarget) Chat(context.Context, string) (string, error) {
	return "Defer app.js.", nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Overlay.SettleDelay = "0s"
	cfg.Overlay.EventPollInterval = "5ms"
	cfg.Analysis.Provider = config.ProviderNone
	cfg.Analysis.PollInterval = "1ms"
	cfg.Recorder.Dir = t.TempDir()
	return cfg
}

func startRun(t *testing.T, cfg config.Config, target Target) *Run {
	t.Helper()
	f, err := NewFactory(cfg, nil)
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}
	r, err := f.Start(context.Background(), target)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.WaitLoaded(ctx); err != nil {
		t.Fatalf("WaitLoaded: %v", err)
	}
	return r
}

func TestRunWithoutProvider(t *testing.T) {
	target := newFakeTarget("page-1")
	r := startRun(t, testConfig(t), target)
	defer r.Close()

	rep := r.Controller.Report()
	if !rep.Initialized {
		t.Fatal("expected controller to be initialized")
	}
	if rep.Outcome == nil || rep.Outcome.Kind != analysis.OutcomeUnavailable {
		t.Fatalf("outcome = %+v, want unavailable", rep.Outcome)
	}
	if got := target.Mounts(); got != 1 {
		t.Errorf("mounts = %d, want 1", got)
	}
	if r.ID() != "page-1" {
		t.Errorf("ID = %q", r.ID())
	}
	if r.TracePath() != "" {
		t.Errorf("trace path = %q, want empty with recording off", r.TracePath())
	}
}

func TestRunForwardsPageEvents(t *testing.T) {
	target := newFakeTarget("page-2")
	target.events = []browser.PageEvent{{Type: browser.EventLCP, Value: 2600}}
	r := startRun(t, testConfig(t), target)
	defer r.Close()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, ok := r.Controller.LCP(); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("LCP event never reached the controller")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := target.watched.Load(); got != 1 {
		t.Errorf("watch calls = %d, want 1", got)
	}
}

func TestRunDisabledOverlay(t *testing.T) {
	cfg := testConfig(t)
	cfg.Overlay.Enabled = false
	target := newFakeTarget("page-3")
	r := startRun(t, cfg, target)

	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if target.Mounts() != 0 {
		t.Errorf("disabled overlay mounted %d times", target.Mounts())
	}
	if target.watched.Load() != 0 {
		t.Error("disabled overlay should not watch the page")
	}
}

func TestRunPageProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Analysis.Provider = config.ProviderPage
	r := startRun(t, cfg, pageTarget{newFakeTarget("page-4")})
	defer r.Close()

	out, err := r.Controller.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if out.Kind != analysis.OutcomeAnswered || out.Text != "Defer app.js." {
		t.Errorf("outcome = %+v", out)
	}
}

func TestRunHTTPProvider(t *testing.T) {
	var prompts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if prompt, _ := body["message"].(string); strings.Contains(prompt, "0.30s") {
			prompts.Add(1)
		}
		_, _ = w.Write([]byte(`{"response":"Cache app.js."}`))
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Analysis.Provider = config.ProviderHTTP
	cfg.Analysis.Endpoint = srv.URL
	r := startRun(t, cfg, newFakeTarget("page-5"))
	defer r.Close()

	rep := r.Controller.Report()
	if rep.Outcome == nil || rep.Outcome.Text != "Cache app.js." {
		t.Fatalf("outcome = %+v", rep.Outcome)
	}
	if prompts.Load() != 1 {
		t.Errorf("prompts with page timings = %d, want 1", prompts.Load())
	}
}

func TestRunRecordsTrace(t *testing.T) {
	cfg := testConfig(t)
	cfg.Recorder.Enabled = true
	r := startRun(t, cfg, newFakeTarget("page-6"))
	path := r.TracePath()
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if filepath.Dir(path) != cfg.Recorder.Dir {
		t.Fatalf("trace %q not under %q", path, cfg.Recorder.Dir)
	}

	fh, err := os.Open(path)
	if err != nil {
		t.Fatalf("open trace: %v", err)
	}
	defer fh.Close()

	var kinds []string
	sc := bufio.NewScanner(fh)
	for sc.Scan() {
		var ev struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("decode %q: %v", sc.Text(), err)
		}
		kinds = append(kinds, ev.Type)
	}
	if got := strings.Join(kinds, ","); got != "init,metrics,resources,analysis" {
		t.Errorf("trace events = %s", got)
	}
}

func TestRunFactsDerived(t *testing.T) {
	target := newFakeTarget("page-7")
	r := startRun(t, testConfig(t), target)
	defer r.Close()

	att, err := r.Facts.Attention(context.Background())
	if err != nil {
		t.Fatalf("Attention: %v", err)
	}
	// 0.30s, 1.20s and 0.25s: only the load time is borderline.
	if len(att.NeedsAttention) != 0 {
		t.Errorf("needs attention = %v", att.NeedsAttention)
	}
	if len(att.Borderline) != 1 || att.Borderline[0] != metrics.LabelLoad {
		t.Errorf("borderline = %v", att.Borderline)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	r := startRun(t, testConfig(t), newFakeTarget("page-8"))
	if err := r.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
