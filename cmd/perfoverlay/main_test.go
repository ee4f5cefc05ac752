package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"perfoverlay/internal/analysis"
	"perfoverlay/internal/browser"
	"perfoverlay/internal/config"
	"perfoverlay/internal/mangle"
	"perfoverlay/internal/metrics"
	"perfoverlay/internal/overlay"
	"perfoverlay/internal/perfcheck"
)

func sampleResult() runResult {
	return runResult{
		Page: browser.Session{ID: "p1", URL: "https://shop.test/"},
		Report: perfcheck.Report{
			Initialized: true,
			Model: overlay.Model{
				Samples: []metrics.MetricSample{
					{Label: metrics.LabelLoad, ValueSeconds: 2.6, Tier: metrics.TierBad},
				},
				Analysis: "Defer the hero image.",
				Loaded:   true,
			},
			Resources: &metrics.ResourceSummary{
				Count:              1,
				TotalTransferBytes: 2048,
				Slowest: []metrics.ResourceEntry{
					{URL: "https://shop.test/hero.png", InitiatorType: "img", DurationMs: 900},
				},
			},
			Outcome: &analysis.Outcome{Kind: analysis.OutcomeAnswered, Text: "Defer the hero image.", Attempts: 1},
		},
		Attention: &mangle.Attention{NeedsAttention: []string{metrics.LabelLoad}},
		TracePath: "/tmp/run_p1.jsonl",
	}
}

func TestWriteResultJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := writeResult(&buf, sampleResult(), false, 60); err != nil {
		t.Fatalf("writeResult: %v", err)
	}

	var decoded struct {
		Page struct {
			ID string `json:"id"`
		} `json:"page"`
		Report struct {
			Outcome struct {
				Kind string `json:"kind"`
			} `json:"outcome"`
		} `json:"report"`
		Attention struct {
			NeedsAttention []string `json:"needs_attention"`
		} `json:"attention"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if decoded.Page.ID != "p1" || decoded.Report.Outcome.Kind != "answered" {
		t.Errorf("decoded = %+v", decoded)
	}
	if len(decoded.Attention.NeedsAttention) != 1 {
		t.Errorf("attention = %v", decoded.Attention.NeedsAttention)
	}
}

func TestWriteResultTerminal(t *testing.T) {
	var buf bytes.Buffer
	if err := writeResult(&buf, sampleResult(), true, 60); err != nil {
		t.Fatalf("writeResult: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Page Load", "Defer the hero image.", "hero.png", "needs attention: Page Load", "trace: /tmp/run_p1.jsonl"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestIsTerminalNonFile(t *testing.T) {
	if isTerminal(&bytes.Buffer{}) {
		t.Error("buffer reported as terminal")
	}
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	cmd := initCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{dir})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, config.WorkspaceDirName, config.WorkspaceConfigFile)); err != nil {
		t.Errorf("config template missing: %v", err)
	}
	if !strings.Contains(out.String(), config.WorkspaceDirName) {
		t.Errorf("output = %q", out.String())
	}

	cmd = initCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{dir})
	if err := cmd.Execute(); err == nil {
		t.Error("second init should fail on an existing workspace")
	}
}

func TestConfigFlagsLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("analysis:\n  provider: none\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PERFOVERLAY_OVERLAY_ENABLED", "false")

	flags := configFlags{configPath: path, noWorkspace: true, logLevel: "debug"}
	cfg, wsDir, err := flags.load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if wsDir != "" {
		t.Errorf("workspace = %q, want none", wsDir)
	}
	if cfg.Analysis.Provider != config.ProviderNone {
		t.Errorf("provider = %q", cfg.Analysis.Provider)
	}
	if cfg.Overlay.Enabled {
		t.Error("env override not applied")
	}
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("log level = %q", cfg.Server.LogLevel)
	}
}

func TestFileLoggerWithoutFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.LogFile = ""
	logger, closer := fileLogger(cfg)
	defer closer.Close()
	logger.Info("dropped")

	cfg.Server.LogFile = filepath.Join(t.TempDir(), "serve.log")
	logger, closer = fileLogger(cfg)
	logger.Info("kept")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(cfg.Server.LogFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "kept") {
		t.Errorf("log file = %q", data)
	}
}
