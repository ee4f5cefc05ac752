package mcp

import (
	"context"
	"errors"
	"time"

	"perfoverlay/internal/metrics"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	resourceMIMEJSON = "application/json"
)

func (s *Server) registerAllResources() {
	if s == nil || s.mcpServer == nil {
		return
	}

	s.mcpServer.AddResource(
		mcp.NewResource(
			"perfoverlay://about",
			"perfoverlay About",
			mcp.WithMIMEType(resourceMIMEJSON),
			mcp.WithResourceDescription("Server info, analysis provider and thresholds."),
		),
		s.handleAboutResource,
	)

	s.mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"perfoverlay://page/{pageId}/report",
			"Page Report",
			mcp.WithTemplateMIMEType(resourceMIMEJSON),
			mcp.WithTemplateDescription("The overlay report for one open page."),
		),
		s.handlePageReportResource,
	)
}

func (s *Server) handleAboutResource(_ context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	payload := map[string]interface{}{
		"name":     s.cfg.Server.Name,
		"version":  s.cfg.Server.Version,
		"provider": s.cfg.Analysis.Provider,
		"overlay":  s.cfg.Overlay.Enabled,
		"thresholds_seconds": map[string]float64{
			"warn": metrics.GoodBelow,
			"bad":  metrics.WarnBelow,
		},
		"trace_dir":    s.factory.TraceDir(),
		"timestamp_ms": time.Now().UnixMilli(),
	}
	if conn, ok := s.browser.(Connection); ok {
		payload["browser"] = map[string]interface{}{
			"connected":   conn.IsConnected(),
			"control_url": conn.ControlURL(),
		}
	}
	return jsonContents(request.Params.URI, payload)
}

func (s *Server) handlePageReportResource(_ context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	pageID := argString(request.Params.Arguments["pageId"])
	if pageID == "" {
		return nil, errors.New("missing pageId")
	}
	tp, err := s.page(pageID)
	if err != nil {
		return nil, err
	}
	return jsonContents(request.Params.URI, map[string]interface{}{
		"page":   tp.session,
		"report": tp.run.Controller.Report(),
	})
}

func jsonContents(uri string, payload interface{}) ([]mcp.ResourceContents, error) {
	text, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: resourceMIMEJSON,
			Text:     string(text),
		},
	}, nil
}

// argString unwraps URI template arguments, which arrive as a string or a
// one-element slice depending on the client.
func argString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []string:
		if len(t) > 0 {
			return t[0]
		}
	case []interface{}:
		if len(t) > 0 {
			if s, ok := t[0].(string); ok {
				return s
			}
		}
	}
	return ""
}
