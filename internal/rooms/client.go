// Package rooms is the HTTP collaborator for room discovery and
// creation. It talks to a relay's /rooms endpoints; the sync engine
// itself never depends on it.
package rooms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Room describes one relay room as reported by the listing endpoint.
type Room struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PlayerCount int    `json:"playerCount"`
	MaxPlayers  int    `json:"maxPlayers"`
}

// Client lists and creates rooms against a relay's HTTP API. Requests
// retry transient failures with backoff.
type Client struct {
	baseURL string
	client  *retryablehttp.Client
}

// NewClient creates a rooms client for the given relay base URL.
func NewClient(baseURL string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil
	rc.HTTPClient.Timeout = 10 * time.Second
	return &Client{baseURL: baseURL, client: rc}
}

// List returns the rooms the relay currently hosts.
func (c *Client) List(ctx context.Context) ([]Room, error) {
	body, err := c.do(ctx, http.MethodGet, "/rooms", nil)
	if err != nil {
		return nil, err
	}
	var rooms []Room
	if err := json.Unmarshal(body, &rooms); err != nil {
		return nil, fmt.Errorf("decode room list: %w", err)
	}
	return rooms, nil
}

// Create registers a new room and returns it.
func (c *Client) Create(ctx context.Context, name string, maxPlayers int) (*Room, error) {
	payload, err := json.Marshal(map[string]any{
		"name":       name,
		"maxPlayers": maxPlayers,
	})
	if err != nil {
		return nil, fmt.Errorf("encode create request: %w", err)
	}
	body, err := c.do(ctx, http.MethodPost, "/rooms", payload)
	if err != nil {
		return nil, err
	}
	var room Room
	if err := json.Unmarshal(body, &room); err != nil {
		return nil, fmt.Errorf("decode created room: %w", err)
	}
	return &room, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("relay returned status %d: %s", resp.StatusCode, responseBody)
	}
	return responseBody, nil
}
