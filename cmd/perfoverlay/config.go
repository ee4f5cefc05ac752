package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"perfoverlay/internal/config"
	"perfoverlay/internal/xslog"
)

// configFlags are shared by every command that loads configuration.
type configFlags struct {
	configPath   string
	workspaceDir string
	noWorkspace  bool
	logLevel     string
}

func (f *configFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "Config file layered over the workspace config")
	pf.StringVar(&f.workspaceDir, "workspace-dir", "", "Use this directory's .perfoverlay/ instead of searching upward")
	pf.BoolVar(&f.noWorkspace, "no-workspace", false, "Skip workspace discovery")
	pf.StringVar(&f.logLevel, "log-level", "", "Override the configured log level")
}

func (f *configFlags) load() (config.Config, string, error) {
	cfg, wsDir, err := config.LoadWithWorkspace(f.configPath, config.WorkspaceOptions{
		Disable:     f.noWorkspace,
		ExplicitDir: f.workspaceDir,
	})
	if err != nil {
		return cfg, wsDir, fmt.Errorf("load config: %w", err)
	}
	if f.logLevel != "" {
		cfg.Server.LogLevel = f.logLevel
	}
	return cfg, wsDir, nil
}

// fileLogger writes to the configured log file, or nowhere when it cannot be
// opened. Used where stdout or stderr belong to something else.
func fileLogger(cfg config.Config) (*slog.Logger, io.Closer) {
	if cfg.Server.LogFile == "" {
		return xslog.Discard(), io.NopCloser(nil)
	}
	fh, err := os.OpenFile(cfg.Server.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return xslog.Discard(), io.NopCloser(nil)
	}
	return xslog.New(fh, cfg.Server.LogLevel), fh
}
