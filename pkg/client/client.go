// Package client is an HTTP client for a running hostmock daemon.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hostmock/hostmock/internal/mock"
)

// Config holds client configuration.
type Config struct {
	BaseURL string // e.g. http://localhost:7433/api
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:7433/api",
		Timeout: 30 * time.Second,
	}
}

// Client talks to the hostmock control API.
type Client struct {
	baseURL string
	client  *http.Client
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Client{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

type errorResp struct {
	Error string `json:"error"`
}

// StartServer asks the daemon to start a mock server for id.
func (c *Client) StartServer(ctx context.Context, id string, cfg mock.StartConfig) (mock.Record, error) {
	var rec mock.Record
	body, err := json.Marshal(cfg)
	if err != nil {
		return rec, err
	}
	err = c.do(ctx, http.MethodPost, "/servers/"+url.PathEscape(id)+"/start", bytes.NewReader(body), &rec)
	return rec, err
}

// StopServer asks the daemon to stop the mock server for id.
func (c *Client) StopServer(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/servers/"+url.PathEscape(id)+"/stop", nil, nil)
}

// GetServerInfo fetches the current record for id.
func (c *Client) GetServerInfo(ctx context.Context, id string) (mock.Record, error) {
	var rec mock.Record
	err := c.do(ctx, http.MethodGet, "/servers/"+url.PathEscape(id), nil, &rec)
	return rec, err
}

// GetAllServers fetches every tracked record.
func (c *Client) GetAllServers(ctx context.Context) (map[string]mock.Record, error) {
	out := make(map[string]mock.Record)
	err := c.do(ctx, http.MethodGet, "/servers", nil, &out)
	return out, err
}

// Cleanup asks the daemon to stop every tracked server.
func (c *Client) Cleanup(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/cleanup", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var er errorResp
		if json.Unmarshal(data, &er) == nil && er.Error != "" {
			return fmt.Errorf("%s", er.Error)
		}
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
