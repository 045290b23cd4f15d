package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client talks to a running control server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient accepts "host:port" or a full URL.
func NewClient(addr string, httpClient *http.Client) *Client {
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(addr, "/"), http: httpClient}
}

func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	return c.do(ctx, http.MethodGet, "/status")
}

func (c *Client) Stop(ctx context.Context) (StatusResponse, error) {
	return c.do(ctx, http.MethodPost, "/stop")
}

func (c *Client) Restart(ctx context.Context) (StatusResponse, error) {
	return c.do(ctx, http.MethodPost, "/restart")
}

func (c *Client) do(ctx context.Context, method, path string) (StatusResponse, error) {
	var status StatusResponse
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return status, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return status, fmt.Errorf("failed to reach control server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return status, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return status, fmt.Errorf("%s %s: %s (%d)", method, path, e.Error, resp.StatusCode)
		}
		return status, fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if err := json.Unmarshal(body, &status); err != nil {
		return status, fmt.Errorf("failed to decode response: %w", err)
	}
	return status, nil
}
