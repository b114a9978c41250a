package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"kavaach/database"
)

// Client resolves coordinates into human-readable addresses via a reverse
// geocoding service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new geocoder client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type reverseResponse struct {
	Address string `json:"address"`
}

// Reverse resolves a coordinate pair to an address. Failures are wrapped
// with ErrUpstream; callers fall back to a coordinate placeholder.
func (c *Client) Reverse(ctx context.Context, lat, lng float64) (string, error) {
	url := fmt.Sprintf("%s/reverse?lat=%f&lng=%f", c.baseURL, lat, lng)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: geocoder: %v", database.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: geocoder returned status %d: %s", database.ErrUpstream, resp.StatusCode, string(body))
	}

	var decoded reverseResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("failed to decode geocoder response: %w", err)
	}
	return decoded.Address, nil
}

// Placeholder is the address used when reverse geocoding is unavailable.
func Placeholder(lat, lng float64) string {
	return fmt.Sprintf("Near %.4f, %.4f", lat, lng)
}
