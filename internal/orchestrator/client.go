// Package orchestrator forwards console actions to the external orchestration
// API. Callers fall back to a locally synthesized response when Forward
// returns nil.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"spectraconsole/internal/config"
)

const maxBodyBytes = 4 << 20

var (
	ErrNotConfigured = errors.New("orchestrator_not_configured")
	ErrUnavailable   = errors.New("orchestrator_unavailable")
)

type Response struct {
	Status int
	Body   json.RawMessage
}

func (r *Response) OK() bool { return r != nil && r.Status >= 200 && r.Status < 300 }

type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewClient(cfg config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.OrchestratorTimeout()
	if timeout <= 0 || timeout > 5*time.Second {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.OrchestratorBaseURL), "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *Client) Configured() bool { return c.baseURL != "" }

// Forward is Do with every failure collapsed into a nil response.
func (c *Client) Forward(ctx context.Context, method, path string, payload any) *Response {
	resp, err := c.Do(ctx, method, path, payload)
	if err != nil {
		if !errors.Is(err, ErrNotConfigured) {
			c.logger.Warn("orchestrator forward failed", "method", method, "path", path, "err", err)
		}
		return nil
	}
	return resp
}

// Do sends payload as JSON (nil means no body) and returns the upstream
// status and body whatever the status code.
func (c *Client) Do(ctx context.Context, method, path string, payload any) (*Response, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	if len(raw) > maxBodyBytes {
		return nil, fmt.Errorf("%w: response body exceeds %d bytes", ErrUnavailable, maxBodyBytes)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: upstream HTTP %d returned non-JSON body", ErrUnavailable, resp.StatusCode)
	}
	return &Response{Status: resp.StatusCode, Body: raw}, nil
}
