package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PaulJPhilp/mcluhan/pkg/api"
	"github.com/PaulJPhilp/mcluhan/pkg/debug"
)

// errorBodyLimit caps how much of an error response body is read into
// the failure message.
const errorBodyLimit = 4096

// Config holds the settings for one backend client.
type Config struct {
	// BaseURL is the backend root, without a trailing slash.
	BaseURL string

	// Path is the streaming endpoint path. Defaults to
	// "/v1/chat/completions" when empty.
	Path string

	// APIKey, when set, is sent as a Bearer token.
	APIKey string

	// Headers holds extra headers applied to every request.
	Headers map[string]string
}

// Client opens streaming HTTP response bodies from one backend.
//
// The underlying http.Client carries no timeout: a stream can
// legitimately outlast any fixed value, so lifecycle control relies on
// the request context instead.
type Client struct {
	httpClient *http.Client
	cfg        Config
}

// NewClient creates a Client for the backend at cfg.BaseURL.
func NewClient(cfg Config) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Path == "" {
		cfg.Path = "/v1/chat/completions"
	}
	return &Client{
		httpClient: &http.Client{},
		cfg:        cfg,
	}
}

// chatPayload is the wire form of a streaming generation request.
type chatPayload struct {
	Model       string        `json:"model"`
	Messages    []api.Message `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

// Open issues the streaming POST and returns the response body for the
// adapter to parse. The caller owns the body and must close it.
func (c *Client) Open(ctx context.Context, req *api.StreamRequest) (io.ReadCloser, error) {
	payload := chatPayload{
		Model:    req.Model,
		Messages: req.Messages,
		Stream:   true,
	}
	// A system prompt becomes the leading message.
	if req.System != "" {
		payload.Messages = append(
			[]api.Message{{Role: api.RoleSystem, Content: req.System}},
			req.Messages...,
		)
	}
	if req.Params != nil {
		payload.Temperature = req.Params.Temperature
		payload.TopP = req.Params.TopP
		payload.MaxTokens = req.Params.MaxTokens
		payload.Stop = req.Params.Stop
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, api.NewProtocolError(req.Provider, "failed to marshal request: "+err.Error())
	}

	url := c.cfg.BaseURL + c.cfg.Path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, api.NewTransportError(req.Provider, "failed to build request: "+err.Error(), err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	for k, v := range c.cfg.Headers {
		httpReq.Header.Set(k, v)
	}

	debug.Log(debug.Transport, "opening stream",
		"provider", req.Provider, "model", req.Model, "url", url)
	if debug.TraceIsEnabled(debug.Transport) {
		debug.Raw(debug.Transport, string(body))
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, api.NewTransportError(req.Provider, "request failed: "+err.Error(), err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(httpResp.Body, errorBodyLimit))
		httpResp.Body.Close()
		msg := fmt.Sprintf("backend returned %d", httpResp.StatusCode)
		if len(detail) > 0 {
			msg += ": " + strings.TrimSpace(string(detail))
		}
		return nil, api.NewUpstreamError(req.Provider, msg)
	}

	return httpResp.Body, nil
}

// Close releases idle connections held by the client.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
