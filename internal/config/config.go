package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	// WorkspaceDirName is the directory name for project-level perfoverlay config.
	WorkspaceDirName = ".perfoverlay"
	// WorkspaceConfigFile is the config file name inside the workspace directory.
	WorkspaceConfigFile = "config.yaml"
	// MaxSearchDepth limits how many parent directories to walk when discovering a workspace.
	MaxSearchDepth = 10
	// EnvPrefix prefixes every environment override (PERFOVERLAY_ANALYSIS_ENDPOINT, ...).
	EnvPrefix = "PERFOVERLAY_"
)

// Analysis providers.
const (
	ProviderPage = "page"
	ProviderHTTP = "http"
	ProviderNone = "none"
)

// DefaultScriptURL hosts the in-page chat capability (window.apifree).
const DefaultScriptURL = "https://apifreellm.com/apifree.min.js"

// WorkspaceOptions controls workspace discovery behavior.
type WorkspaceOptions struct {
	// Disable skips workspace discovery entirely (--no-workspace flag).
	Disable bool
	// ExplicitDir uses this directory as workspace root instead of walking up (--workspace-dir flag).
	ExplicitDir string
}

// Config captures all tunable settings for the overlay CLI and MCP server.
type Config struct {
	Server   ServerConfig   `yaml:"server" envPrefix:"SERVER_"`
	Browser  BrowserConfig  `yaml:"browser" envPrefix:"BROWSER_"`
	Overlay  OverlayConfig  `yaml:"overlay" envPrefix:"OVERLAY_"`
	Analysis AnalysisConfig `yaml:"analysis" envPrefix:"ANALYSIS_"`
	MCP      MCPConfig      `yaml:"mcp" envPrefix:"MCP_"`
	Mangle   MangleConfig   `yaml:"mangle" envPrefix:"MANGLE_"`
	Recorder RecorderConfig `yaml:"recorder" envPrefix:"RECORDER_"`
}

type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	// LogFile receives logs in MCP stdio mode, where stdout carries the protocol.
	LogFile  string `yaml:"log_file" env:"LOG_FILE"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
}

// BrowserConfig configures how we attach to or launch Chrome for Rod.
type BrowserConfig struct {
	// Control endpoint for Rod (e.g., ws://localhost:9222). When empty Rod launches Chrome.
	DebuggerURL string `yaml:"debugger_url" env:"DEBUGGER_URL"`
	// Optional launch command (e.g., ["chrome", "--disable-gpu"]). The first element is the binary.
	Launch []string `yaml:"launch"`
	// Headless controls whether Chrome runs in headless mode (default: true).
	Headless *bool `yaml:"headless"`
	// Default navigation timeout (e.g., "15s").
	DefaultNavigationTimeout string `yaml:"default_navigation_timeout"`
	// Viewport width for new pages (default: 1280).
	ViewportWidth int `yaml:"viewport_width" env:"VIEWPORT_WIDTH"`
	// Viewport height for new pages (default: 800).
	ViewportHeight int `yaml:"viewport_height" env:"VIEWPORT_HEIGHT"`
}

// OverlayConfig gates the panel. Enabled is the non-production switch.
type OverlayConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// SettleDelay waits after the load event before reading metrics (default: 100ms).
	SettleDelay string `yaml:"settle_delay"`
	// EventPollInterval is how often page events (LCP, resize, toggle) are drained (default: 250ms).
	EventPollInterval string `yaml:"event_poll_interval"`
}

// AnalysisConfig selects and tunes the text-completion capability.
type AnalysisConfig struct {
	// Provider is page (window.apifree in the tab), http (JSON endpoint) or none.
	Provider string `yaml:"provider" env:"PROVIDER"`
	// ScriptURL is injected into the page when the page provider is used.
	ScriptURL string `yaml:"script_url" env:"SCRIPT_URL"`
	// Endpoint, APIKey and Model configure the http provider.
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`
	APIKey   string `yaml:"api_key" env:"API_KEY"`
	Model    string `yaml:"model" env:"MODEL"`
	// MessageField names the request field carrying the prompt (default: "message").
	MessageField string `yaml:"message_field"`
	// ResponsePath is a gjson path to the reply text (default: "response").
	ResponsePath string `yaml:"response_path"`
	// HealthURL, when set, is probed for availability instead of assuming the endpoint is up.
	HealthURL string `yaml:"health_url"`
	// PollInterval and MaxAttempts bound the wait for the capability (defaults: 100ms, 50).
	PollInterval   string `yaml:"poll_interval"`
	MaxAttempts    int    `yaml:"max_attempts"`
	RequestTimeout string `yaml:"request_timeout"`
}

type MCPConfig struct {
	// When set, starts an SSE server on this port instead of stdio-only.
	SSEPort int `yaml:"sse_port" env:"SSE_PORT"`
}

// MangleConfig controls the embedded deductive engine.
type MangleConfig struct {
	Enable bool `yaml:"enable" env:"ENABLE"`
	// SchemaPath optionally extends the built-in perf schema with project rules.
	SchemaPath      string `yaml:"schema_path" env:"SCHEMA_PATH"`
	FactBufferLimit int    `yaml:"fact_buffer_limit"`
}

// RecorderConfig controls the JSONL run traces.
type RecorderConfig struct {
	Enabled   bool   `yaml:"enabled" env:"ENABLED"`
	Dir       string `yaml:"dir" env:"DIR"`
	MaxTraces int    `yaml:"max_traces"`
}

// DefaultConfig provides reasonable defaults for local development.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Name:     "perfoverlay",
			Version:  "0.1.0",
			LogFile:  "perfoverlay.log",
			LogLevel: "info",
		},
		Browser: BrowserConfig{
			DefaultNavigationTimeout: "15s",
			ViewportWidth:            1280,
			ViewportHeight:           800,
		},
		Overlay: OverlayConfig{
			Enabled:           true,
			SettleDelay:       "100ms",
			EventPollInterval: "250ms",
		},
		Analysis: AnalysisConfig{
			Provider:       ProviderPage,
			ScriptURL:      DefaultScriptURL,
			MessageField:   "message",
			ResponsePath:   "response",
			PollInterval:   "100ms",
			MaxAttempts:    50,
			RequestTimeout: "30s",
		},
		Mangle: MangleConfig{
			Enable:          true,
			FactBufferLimit: 512,
		},
		Recorder: RecorderConfig{
			Enabled:   false,
			Dir:       "traces",
			MaxTraces: 10,
		},
	}
}

// Load reads YAML config from disk, overlays defaults and applies the environment.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, errors.New("config path is required")
	}

	if err := mergeFile(&cfg, path); err != nil {
		return cfg, err
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overlays PERFOVERLAY_* environment variables onto cfg. Unset
// variables leave the current values alone.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}

func mergeFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// DiscoverWorkspace walks up from startDir looking for a .perfoverlay/config.yaml file.
// Returns the workspace root directory (parent of .perfoverlay/) or empty string if not found.
func DiscoverWorkspace(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving start directory: %w", err)
	}

	for i := 0; i < MaxSearchDepth; i++ {
		candidate := filepath.Join(dir, WorkspaceDirName, WorkspaceConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", nil
}

// LoadWithWorkspace implements the layered config merge:
//
//	DefaultConfig() <- .perfoverlay/config.yaml <- explicit --config <- PERFOVERLAY_* env
//
// Returns the merged config and the workspace directory (empty if none found).
func LoadWithWorkspace(explicitConfig string, opts WorkspaceOptions) (Config, string, error) {
	cfg := DefaultConfig()
	wsDir := ""

	if !opts.Disable {
		if opts.ExplicitDir != "" {
			candidate := filepath.Join(opts.ExplicitDir, WorkspaceDirName, WorkspaceConfigFile)
			if _, statErr := os.Stat(candidate); statErr == nil {
				wsDir = opts.ExplicitDir
			}
		} else {
			cwd, err := os.Getwd()
			if err != nil {
				return cfg, "", fmt.Errorf("getting working directory: %w", err)
			}
			wsDir, err = DiscoverWorkspace(cwd)
			if err != nil {
				return cfg, "", fmt.Errorf("discovering workspace: %w", err)
			}
		}

		if wsDir != "" {
			if err := mergeFile(&cfg, filepath.Join(wsDir, WorkspaceDirName, WorkspaceConfigFile)); err != nil {
				return cfg, "", err
			}
			cfg = resolveWorkspacePaths(cfg, filepath.Join(wsDir, WorkspaceDirName))
		}
	}

	if explicitConfig != "" {
		if err := mergeFile(&cfg, explicitConfig); err != nil {
			return cfg, wsDir, err
		}
	}

	if err := ApplyEnv(&cfg); err != nil {
		return cfg, wsDir, err
	}
	return cfg, wsDir, cfg.Validate()
}

const templateConfig = `# perfoverlay project-level configuration
# Values here override defaults but are overridden by --config and PERFOVERLAY_* variables.

# overlay:
#   enabled: true

# analysis:
#   provider: http            # page | http | none
#   endpoint: "https://llm.internal/chat"
#   response_path: "choices.0.message.content"
#   max_attempts: 50

# mangle:
#   schema_path: "schemas/project.mg"

# recorder:
#   enabled: true
#   dir: "traces"

# browser:
#   headless: false
#   viewport_width: 1280
#   viewport_height: 800
`

// InitWorkspace creates a .perfoverlay/ directory with template files at root.
func InitWorkspace(root string) error {
	wsDir := filepath.Join(root, WorkspaceDirName)

	if _, err := os.Stat(wsDir); err == nil {
		return fmt.Errorf("workspace directory already exists: %s", wsDir)
	}

	for _, d := range []string{wsDir, filepath.Join(wsDir, "schemas"), filepath.Join(wsDir, "traces")} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	if err := os.WriteFile(filepath.Join(wsDir, WorkspaceConfigFile), []byte(templateConfig), 0o644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	gitignore := "# Run traces and logs - do not version control\ntraces/\n*.log\n"
	if err := os.WriteFile(filepath.Join(wsDir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}
	return nil
}

// resolveWorkspacePaths resolves relative paths in the config against the .perfoverlay directory.
func resolveWorkspacePaths(cfg Config, base string) Config {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}

	cfg.Server.LogFile = resolve(cfg.Server.LogFile)
	cfg.Mangle.SchemaPath = resolve(cfg.Mangle.SchemaPath)
	cfg.Recorder.Dir = resolve(cfg.Recorder.Dir)
	return cfg
}

// Validate ensures required fields exist so the tool can start deterministically.
func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return errors.New("server.name is required")
	}
	switch c.Analysis.Provider {
	case ProviderPage:
		if c.Analysis.ScriptURL == "" {
			return errors.New("analysis.script_url is required for the page provider")
		}
	case ProviderHTTP:
		if c.Analysis.Endpoint == "" {
			return errors.New("analysis.endpoint is required for the http provider")
		}
	case ProviderNone:
	default:
		return fmt.Errorf("analysis.provider must be page, http or none, got %q", c.Analysis.Provider)
	}
	if c.Analysis.MaxAttempts < 0 {
		return errors.New("analysis.max_attempts must not be negative")
	}
	if c.Recorder.MaxTraces < 0 {
		return errors.New("recorder.max_traces must not be negative")
	}
	return nil
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// NavigationTimeout returns the parsed navigation timeout with a sane default.
func (b BrowserConfig) NavigationTimeout() time.Duration {
	return parseDuration(b.DefaultNavigationTimeout, 15*time.Second)
}

// IsHeadless returns whether Chrome should run in headless mode (default: true).
func (b BrowserConfig) IsHeadless() bool {
	if b.Headless == nil {
		return true
	}
	return *b.Headless
}

// GetViewportWidth returns the viewport width with a sane default.
func (b BrowserConfig) GetViewportWidth() int {
	if b.ViewportWidth <= 0 {
		return 1280
	}
	return b.ViewportWidth
}

// GetViewportHeight returns the viewport height with a sane default.
func (b BrowserConfig) GetViewportHeight() int {
	if b.ViewportHeight <= 0 {
		return 800
	}
	return b.ViewportHeight
}

// GetSettleDelay returns the post-load delay with a sane default.
func (o OverlayConfig) GetSettleDelay() time.Duration {
	return parseDuration(o.SettleDelay, 100*time.Millisecond)
}

// GetEventPollInterval returns the page event drain interval with a sane default.
func (o OverlayConfig) GetEventPollInterval() time.Duration {
	d := parseDuration(o.EventPollInterval, 250*time.Millisecond)
	if d == 0 {
		return 250 * time.Millisecond
	}
	return d
}

// GetPollInterval returns the capability poll interval with a sane default.
func (a AnalysisConfig) GetPollInterval() time.Duration {
	d := parseDuration(a.PollInterval, 100*time.Millisecond)
	if d == 0 {
		return 100 * time.Millisecond
	}
	return d
}

// GetMaxAttempts returns the capability poll ceiling with a sane default.
func (a AnalysisConfig) GetMaxAttempts() int {
	if a.MaxAttempts <= 0 {
		return 50
	}
	return a.MaxAttempts
}

// GetRequestTimeout returns the per-request timeout for the http provider.
func (a AnalysisConfig) GetRequestTimeout() time.Duration {
	return parseDuration(a.RequestTimeout, 30*time.Second)
}
