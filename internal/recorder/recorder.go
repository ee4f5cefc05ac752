package recorder

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

const (
	DefaultMaxTraces = 10
	TraceDir         = ".perfoverlay/traces"

	tracePrefix = "run_"
	traceExt    = ".jsonl"
)

// Event kinds written by the page controller.
const (
	EventInit      = "init"
	EventMetrics   = "metrics"
	EventResources = "resources"
	EventAnalysis  = "analysis"
	EventLCP       = "lcp"
	EventToggle    = "toggle"
	EventResize    = "resize"
)

// Event is one line of a run trace.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Type      string    `json:"type"`
	RunID     string    `json:"run_id"`
	Data      any       `json:"data,omitempty"`
}

// Recorder hands out one trace file per overlay run and keeps the directory
// bounded to the newest maxTraces files.
type Recorder struct {
	mu        sync.Mutex
	dir       string
	maxTraces int
	now       func() time.Time
}

// NewRecorder creates dir if needed.
func NewRecorder(dir string, maxTraces int) (*Recorder, error) {
	if dir == "" {
		dir = TraceDir
	}
	if maxTraces <= 0 {
		maxTraces = DefaultMaxTraces
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create trace dir: %w", err)
	}
	return &Recorder{dir: dir, maxTraces: maxTraces, now: time.Now}, nil
}

// Dir returns the trace directory.
func (r *Recorder) Dir() string {
	return r.dir
}

// Start rotates old traces and opens run_<id>_<ms>.jsonl.
func (r *Recorder) Start(runID string) (*Trace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.rotate(); err != nil {
		return nil, fmt.Errorf("rotate traces: %w", err)
	}

	name := fmt.Sprintf("%s%s_%d%s", tracePrefix, runID, r.now().UnixMilli(), traceExt)
	path := filepath.Join(r.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create trace: %w", err)
	}
	return &Trace{runID: runID, path: path, file: f, encoder: json.NewEncoder(f), now: r.now}, nil
}

// rotate leaves room for one new file under the limit.
func (r *Recorder) rotate() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return err
	}

	type trace struct {
		name    string
		modTime time.Time
	}
	var traces []trace
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), tracePrefix) || filepath.Ext(e.Name()) != traceExt {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		traces = append(traces, trace{e.Name(), info.ModTime()})
	}

	// Newest first.
	slices.SortFunc(traces, func(a, b trace) int {
		if c := b.modTime.Compare(a.modTime); c != 0 {
			return c
		}
		return strings.Compare(b.name, a.name)
	})

	keep := r.maxTraces - 1
	for i := keep; i < len(traces); i++ {
		if err := os.Remove(filepath.Join(r.dir, traces[i].name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Trace is an open run trace. A nil *Trace drops every event.
type Trace struct {
	mu      sync.Mutex
	runID   string
	path    string
	file    *os.File
	encoder *json.Encoder
	now     func() time.Time
}

// Path returns the trace file location.
func (t *Trace) Path() string {
	if t == nil {
		return ""
	}
	return t.path
}

// Log appends an event. Encoding failures are dropped; traces are best effort.
func (t *Trace) Log(kind string, data any) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.encoder == nil {
		return
	}
	_ = t.encoder.Encode(Event{
		Timestamp: t.now(),
		Type:      kind,
		RunID:     t.runID,
		Data:      data,
	})
}

// Close finishes the trace. Later Log calls are ignored.
func (t *Trace) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	t.encoder = nil
	return err
}
