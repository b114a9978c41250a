package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"kavaach/database"
	"kavaach/models"
)

// Client handles communication with the image analysis API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new vision client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type analyzeRequest struct {
	Image     string `json:"image"`
	IssueType string `json:"issue_type,omitempty"`
}

// Analyze sends a report image to the analysis API and returns its verdict.
// Failures are wrapped with ErrUpstream so callers can treat the service as
// temporarily unavailable rather than broken.
func (c *Client) Analyze(ctx context.Context, image, issueType string) (*models.AIAnalysis, error) {
	requestBody, err := json.Marshal(analyzeRequest{Image: image, IssueType: issueType})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analysis request: %w", err)
	}

	url := fmt.Sprintf("%s/analyze", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: vision: %v", database.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: vision API returned status %d: %s", database.ErrUpstream, resp.StatusCode, string(body))
	}

	var analysis models.AIAnalysis
	if err := json.Unmarshal(body, &analysis); err != nil {
		return nil, fmt.Errorf("failed to decode analysis response: %w", err)
	}
	return &analysis, nil
}
