// Package llm is the HTTP flavour of the analysis capability: a JSON chat
// endpoint that takes one prompt and answers with one text.
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

// ErrMalformedResponse means the endpoint answered 2xx with a body that does
// not carry a reply at the configured path.
var ErrMalformedResponse = errors.New("malformed chat response")

const (
	defaultMessageField = "message"
	defaultResponsePath = "response"
	defaultTimeout      = 30 * time.Second
	maxBodyBytes        = 1 << 20
)

type Options struct {
	Endpoint string
	// APIKey is sent as a bearer token when set.
	APIKey string
	Model  string
	// MessageField names the request field that carries the prompt.
	MessageField string
	// ResponsePath is a gjson path to the reply text.
	ResponsePath string
	// HealthURL is probed by Available. Empty means always available.
	HealthURL string
	Timeout   time.Duration
	// HTTPClient is the base client; its transport is wrapped for auth.
	HTTPClient *http.Client
}

type Client struct {
	opts Options
	http *http.Client
}

func New(opts Options) *Client {
	if opts.MessageField == "" {
		opts.MessageField = defaultMessageField
	}
	if opts.ResponsePath == "" {
		opts.ResponsePath = defaultResponsePath
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	base := &http.Client{}
	if opts.HTTPClient != nil {
		copied := *opts.HTTPClient
		base = &copied
	}
	client := base
	if opts.APIKey != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.APIKey, TokenType: "Bearer"})
		client = oauth2.NewClient(context.WithValue(context.Background(), oauth2.HTTPClient, base), ts)
	}
	client.Timeout = opts.Timeout

	return &Client{opts: opts, http: client}
}

// Available probes the health URL. Any 2xx means ready; other statuses mean
// not yet. Transport errors are returned alongside false.
func (c *Client) Available(ctx context.Context) (bool, error) {
	if c.opts.HealthURL == "" {
		return true, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.HealthURL, nil)
	if err != nil {
		return false, fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("health probe: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

// Chat sends prompt and returns the reply text found at the response path.
func (c *Client) Chat(ctx context.Context, prompt string) (string, error) {
	payload := map[string]string{c.opts.MessageField: prompt}
	if c.opts.Model != "" {
		payload["model"] = c.opts.Model
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("post chat: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("chat endpoint returned %d: %s", resp.StatusCode, snippet(raw))
	}
	return c.extract(raw)
}

func (c *Client) extract(raw []byte) (string, error) {
	if !gjson.ValidBytes(raw) {
		return "", fmt.Errorf("%w: body is not JSON: %s", ErrMalformedResponse, snippet(raw))
	}
	reply := gjson.GetBytes(raw, c.opts.ResponsePath)
	if !reply.Exists() {
		if apiErr := gjson.GetBytes(raw, "error"); apiErr.Exists() {
			return "", fmt.Errorf("%w: %s", ErrMalformedResponse, apiErr.String())
		}
		return "", fmt.Errorf("%w: no value at %q", ErrMalformedResponse, c.opts.ResponsePath)
	}
	if reply.Type != gjson.String {
		return "", fmt.Errorf("%w: value at %q is %s, not a string", ErrMalformedResponse, c.opts.ResponsePath, reply.Type)
	}
	return reply.String(), nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
