package mcp

import (
	"context"
	"errors"

	"perfoverlay/internal/metrics"
	"perfoverlay/internal/overlay"
)

var pageIDSchema = map[string]interface{}{
	"type":        "string",
	"description": "Page id returned by open-page",
}

func pageOnlySchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"page_id": pageIDSchema,
		},
		"required": []string{"page_id"},
	}
}

type OpenPageTool struct {
	server *Server
}

func (t *OpenPageTool) Name() string { return "open-page" }
func (t *OpenPageTool) Description() string {
	return `Open a URL in a fresh incognito page and attach the performance overlay.

The overlay mounts after the load event, renders DOM Interactive, Page Load,
paint and LCP timings graded good/warn/bad, and requests one AI assessment.

By default the call waits for the load flow (metrics plus analysis) to finish
and returns the overlay report. Pass wait=false to return immediately and
poll page-metrics instead.

Returns: {page: {id, url, title}, report: {...}}`
}
func (t *OpenPageTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "URL to open",
			},
			"wait": map[string]interface{}{
				"type":        "boolean",
				"description": "Wait for the metrics and analysis before returning (default true)",
			},
		},
		"required": []string{"url"},
	}
}
func (t *OpenPageTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	url := getStringArg(args, "url")
	if url == "" {
		return nil, errors.New("url is required")
	}

	tp, err := t.server.open(ctx, url)
	if err != nil {
		return nil, err
	}

	result := map[string]interface{}{"page": tp.session}
	if getBoolArg(args, "wait", true) {
		if err := tp.run.WaitLoaded(ctx); err != nil {
			return nil, err
		}
	}
	result["report"] = tp.run.Controller.Report()
	return result, nil
}

type ListPagesTool struct {
	server *Server
}

func (t *ListPagesTool) Name() string { return "list-pages" }
func (t *ListPagesTool) Description() string {
	return `List pages opened with open-page, oldest first.

Returns: {pages: [{id, url, title, created_at}]}`
}
func (t *ListPagesTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
func (t *ListPagesTool) Execute(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{"pages": t.server.sessions()}, nil
}

type PageMetricsTool struct {
	server *Server
}

func (t *PageMetricsTool) Name() string { return "page-metrics" }
func (t *PageMetricsTool) Description() string {
	return `Return what the overlay currently shows for a page.

Includes graded metric samples, the layout, the details panel state, the
resource summary (count, total transfer size, slowest five, p50/p95) and the
analysis outcome once it exists. Set refresh=true to re-read the page first.

Returns: {report: {initialized, model, resources, outcome}, trace_path}`
}
func (t *PageMetricsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"page_id": pageIDSchema,
			"refresh": map[string]interface{}{
				"type":        "boolean",
				"description": "Re-read timings from the page before reporting",
			},
			"format": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"json", "text"},
				"description": "json (default) or a plain text panel",
			},
			"width": map[string]interface{}{
				"type":        "integer",
				"description": "Panel width for format=text (default 60)",
			},
		},
		"required": []string{"page_id"},
	}
}
func (t *PageMetricsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	tp, err := t.server.page(getStringArg(args, "page_id"))
	if err != nil {
		return nil, err
	}
	ctrl := tp.run.Controller
	if getBoolArg(args, "refresh", false) && ctrl.Initialized() {
		ctrl.Refresh(ctx)
	}

	report := ctrl.Report()
	if getStringArg(args, "format") == "text" {
		return map[string]interface{}{
			"panel": overlay.RenderTerminal(report.Model, getIntArg(args, "width", 60)),
		}, nil
	}
	return map[string]interface{}{
		"report":     report,
		"trace_path": tp.run.TracePath(),
	}, nil
}

type ToggleDetailsTool struct {
	server *Server
}

func (t *ToggleDetailsTool) Name() string { return "toggle-details" }
func (t *ToggleDetailsTool) Description() string {
	return `Expand or collapse the overlay's resource details panel, exactly like
clicking the toggle button. Expanding re-reads resource timings.

Returns: {expanded, label, resources}`
}
func (t *ToggleDetailsTool) InputSchema() map[string]interface{} {
	return pageOnlySchema()
}
func (t *ToggleDetailsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	tp, err := t.server.page(getStringArg(args, "page_id"))
	if err != nil {
		return nil, err
	}
	if !tp.run.Controller.Initialized() {
		return nil, errors.New("overlay not initialized")
	}

	expanded := tp.run.Controller.ToggleDetails(ctx)
	var resources *metrics.ResourceSummary
	if expanded {
		resources = tp.run.Controller.Report().Resources
	}
	return map[string]interface{}{
		"expanded":  expanded,
		"label":     overlay.ToggleLabel(expanded),
		"resources": resources,
	}, nil
}

type AnalyzePageTool struct {
	server *Server
}

func (t *AnalyzePageTool) Name() string { return "analyze-page" }
func (t *AnalyzePageTool) Description() string {
	return `Request the AI assessment for a page.

A page gets at most one analysis. If it was already requested (the load flow
requests it automatically) this returns the existing outcome once it is
available instead of sending another request.

Returns: {requested, outcome: {kind, text, attempts}}`
}
func (t *AnalyzePageTool) InputSchema() map[string]interface{} {
	return pageOnlySchema()
}
func (t *AnalyzePageTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	tp, err := t.server.page(getStringArg(args, "page_id"))
	if err != nil {
		return nil, err
	}

	ctrl := tp.run.Controller
	if !ctrl.Initialized() {
		return nil, errors.New("overlay not initialized")
	}
	out := ctrl.Analyze(ctx)
	requested := out.Requested()
	if !requested {
		out, err = ctrl.Wait(ctx)
		if err != nil {
			return nil, err
		}
	}
	result := map[string]interface{}{
		"requested": requested,
		"outcome":   out,
	}
	if out.Err != nil {
		result["error"] = out.Err.Error()
	}
	return result, nil
}

type PageAttentionTool struct {
	server *Server
}

func (t *PageAttentionTool) Name() string { return "page-attention" }
func (t *PageAttentionTool) Description() string {
	return `Return what the fact engine derived from the page's latest metrics.

needs_attention lists metrics graded bad, borderline those graded warn, and
heavy_initiators the initiator types behind several of the slowest resources.

Optionally pass a Mangle query (e.g. "metric_value(Label, V).") to read the
raw facts, including rules from the project schema. Set history=true to also
get the bounded log of every fact recorded for the page.

Returns: {attention: {...}, results?: [...], history?: [...]}`
}
func (t *PageAttentionTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"page_id": pageIDSchema,
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Optional Mangle query over the page's facts",
			},
			"history": map[string]interface{}{
				"type":        "boolean",
				"description": "Include the recorded fact log",
			},
		},
		"required": []string{"page_id"},
	}
}
func (t *PageAttentionTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	tp, err := t.server.page(getStringArg(args, "page_id"))
	if err != nil {
		return nil, err
	}

	att, err := tp.run.Facts.Attention(ctx)
	if err != nil {
		return nil, err
	}
	result := map[string]interface{}{"attention": att}

	if q := getStringArg(args, "query"); q != "" {
		rows, err := tp.run.Facts.Query(ctx, q)
		if err != nil {
			return nil, err
		}
		result["results"] = rows
	}
	if getBoolArg(args, "history", false) {
		result["history"] = tp.run.Facts.History()
	}
	return result, nil
}

type ClosePageTool struct {
	server *Server
}

func (t *ClosePageTool) Name() string { return "close-page" }
func (t *ClosePageTool) Description() string {
	return `Stop monitoring a page and close it. Pending analysis is abandoned.

Returns: {closed: page_id}`
}
func (t *ClosePageTool) InputSchema() map[string]interface{} {
	return pageOnlySchema()
}
func (t *ClosePageTool) Execute(_ context.Context, args map[string]interface{}) (interface{}, error) {
	id := getStringArg(args, "page_id")
	if id == "" {
		return nil, errors.New("page_id is required")
	}
	if err := t.server.closePage(id); err != nil {
		return nil, err
	}
	return map[string]interface{}{"closed": id}, nil
}
