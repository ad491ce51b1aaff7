package rooms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"mathbattle/internal/domain"
)

// Client mints new room codes. One shot per call: no retry, no caching.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a provisioning client against an http:// or https://
// endpoint without a path.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// NewRoomCode requests a fresh room code from {host}/new_game.
func (c *Client) NewRoomCode(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/new_game", nil)
	if err != nil {
		return "", fmt.Errorf("build new_game request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request room code: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("new_game returned %s", resp.Status)
	}
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode new_game response: %w", err)
	}
	if body.Code == "" {
		return "", domain.ErrNoRoomCode
	}
	return body.Code, nil
}
