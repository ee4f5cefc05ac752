package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"perfoverlay/internal/browser"
	"perfoverlay/internal/config"
	"perfoverlay/internal/pagerun"
	"perfoverlay/internal/xslog"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// ErrPageNotTracked is returned for page ids the server has not opened.
var ErrPageNotTracked = errors.New("page not tracked")

// Page is an open browser tab the server can monitor.
type Page interface {
	pagerun.Target
	Session() browser.Session
}

// Browser opens and closes pages. SessionBrowser adapts the Rod session manager.
type Browser interface {
	Open(ctx context.Context, url string) (Page, error)
	Close(id string) error
}

// Connection is implemented by browsers that can report their CDP link.
type Connection interface {
	IsConnected() bool
	ControlURL() string
}

// SessionBrowser exposes a browser.SessionManager as a Browser.
type SessionBrowser struct {
	Sessions *browser.SessionManager
}

func (b SessionBrowser) Open(ctx context.Context, url string) (Page, error) {
	p, err := b.Sessions.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (b SessionBrowser) Close(id string) error {
	return b.Sessions.Close(id)
}

func (b SessionBrowser) IsConnected() bool  { return b.Sessions.IsConnected() }
func (b SessionBrowser) ControlURL() string { return b.Sessions.ControlURL() }

// Server wires the MCP runtime to the browser and one overlay run per page.
type Server struct {
	cfg       config.Config
	browser   Browser
	factory   *pagerun.Factory
	logger    *slog.Logger
	tools     map[string]Tool
	mcpServer *mcpserver.MCPServer

	// base outlives individual tool calls; runs are bound to it.
	base   context.Context
	cancel context.CancelFunc

	mu    sync.RWMutex
	pages map[string]*trackedPage
}

type trackedPage struct {
	session browser.Session
	run     *pagerun.Run
}

// Tool describes the contract for MCP tool implementations.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// NewServer constructs the MCP server and registers all tools.
func NewServer(cfg config.Config, b Browser, factory *pagerun.Factory, logger *slog.Logger) (*Server, error) {
	if b == nil || factory == nil {
		return nil, errors.New("mcp server needs a browser and a run factory")
	}
	if logger == nil {
		logger = xslog.Discard()
	}

	mcpSrv := mcpserver.NewMCPServer(
		cfg.Server.Name,
		cfg.Server.Version,
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithLogging(),
		mcpserver.WithPromptCapabilities(false),
		mcpserver.WithRecovery(),
	)

	base, cancel := context.WithCancel(context.Background())
	server := &Server{
		cfg:       cfg,
		browser:   b,
		factory:   factory,
		logger:    logger,
		tools:     make(map[string]Tool),
		mcpServer: mcpSrv,
		base:      base,
		cancel:    cancel,
		pages:     make(map[string]*trackedPage),
	}

	server.registerAllTools()
	server.registerAllResources()
	return server, nil
}

// Start launches the stdio server.
func (s *Server) Start(ctx context.Context) error {
	stdio := mcpserver.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// StartSSE hosts the server over HTTP using SSE endpoints with graceful shutdown.
func (s *Server) StartSSE(ctx context.Context, port int) error {
	sseServer := mcpserver.NewSSEServer(s.mcpServer, mcpserver.WithBaseURL("http://localhost:"+strconv.Itoa(port)))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:    ":" + strconv.Itoa(port),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("SSE server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Close stops every page run and closes the pages.
func (s *Server) Close() error {
	s.cancel()

	s.mu.Lock()
	pages := s.pages
	s.pages = make(map[string]*trackedPage)
	s.mu.Unlock()

	var errs []error
	for id, p := range pages {
		errs = append(errs, p.run.Close(), s.browser.Close(id))
	}
	return errors.Join(errs...)
}

// ExecuteTool executes a tool directly (used by tests).
func (s *Server) ExecuteTool(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	tool, exists := s.tools[name]
	if !exists {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return tool.Execute(ctx, args)
}

// open navigates a new page and starts its overlay run.
func (s *Server) open(ctx context.Context, url string) (*trackedPage, error) {
	page, err := s.browser.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	run, err := s.factory.Start(s.base, page)
	if err != nil {
		_ = s.browser.Close(page.ID())
		return nil, err
	}

	tp := &trackedPage{session: page.Session(), run: run}
	s.mu.Lock()
	s.pages[page.ID()] = tp
	s.mu.Unlock()
	return tp, nil
}

func (s *Server) page(id string) (*trackedPage, error) {
	if id == "" {
		return nil, errors.New("page_id is required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pages[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPageNotTracked, id)
	}
	return p, nil
}

func (s *Server) closePage(id string) error {
	s.mu.Lock()
	p, ok := s.pages[id]
	delete(s.pages, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrPageNotTracked, id)
	}
	return errors.Join(p.run.Close(), s.browser.Close(id))
}

// sessions lists tracked pages, oldest first.
func (s *Server) sessions() []browser.Session {
	s.mu.RLock()
	out := make([]browser.Session, 0, len(s.pages))
	for _, p := range s.pages {
		out = append(out, p.session)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *Server) registerAllTools() {
	s.registerTool(&OpenPageTool{server: s})
	s.registerTool(&ListPagesTool{server: s})
	s.registerTool(&PageMetricsTool{server: s})
	s.registerTool(&ToggleDetailsTool{server: s})
	s.registerTool(&AnalyzePageTool{server: s})
	s.registerTool(&PageAttentionTool{server: s})
	s.registerTool(&ClosePageTool{server: s})
}

func (s *Server) registerTool(tool Tool) {
	s.tools[tool.Name()] = tool

	schema, err := json.Marshal(tool.InputSchema())
	if err != nil {
		schema = []byte(`{"type":"object"}`)
	}

	mcpTool := mcp.NewToolWithRawSchema(tool.Name(), tool.Description(), schema)
	s.mcpServer.AddTool(mcpTool, s.wrapTool(tool))
}

func (s *Server) wrapTool(tool Tool) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		if args == nil {
			args = map[string]interface{}{}
		}

		start := time.Now()
		result, err := tool.Execute(ctx, args)
		if err != nil {
			s.logger.WarnContext(ctx, "tool failed",
				slog.String("tool", tool.Name()),
				xslog.Duration(time.Since(start)),
				xslog.Error(err),
			)
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.NewTextContent(fmt.Sprintf("tool %s failed: %v", tool.Name(), err))},
				IsError: true,
			}, nil
		}

		payload := marshalToolPayload(tool.Name(), result)
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.NewTextContent(string(payload))},
			IsError: false,
		}, nil
	}
}

func marshalToolPayload(toolName string, result interface{}) []byte {
	payload, marshalErr := json.Marshal(result)
	if marshalErr == nil {
		return payload
	}

	fallback := map[string]interface{}{
		"success": false,
		"error":   fmt.Sprintf("tool %s returned non-serializable payload: %v", toolName, marshalErr),
	}
	payload, fallbackErr := json.Marshal(fallback)
	if fallbackErr == nil {
		return payload
	}

	return []byte(fmt.Sprintf(`{"success":false,"error":"tool %s failed to encode payload"}`, toolName))
}
