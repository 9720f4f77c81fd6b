// Package contacts integrates with the external contact-lookup service.
package contacts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"call-screener/internal/config"
)

// Client queries the contact-lookup service for whether a number belongs to
// a saved contact. A missing or permission-denied lookup degrades to "not a
// contact" so screening decisions never fail on it.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

type lookupResponse struct {
	Found bool `json:"found"`
}

// NewClient creates a new contact lookup client
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		baseURL: cfg.Contacts.BaseURL,
		apiKey:  cfg.Contacts.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Contacts.RequestTimeout,
		},
		logger: logger,
	}
}

// IsContact reports whether number resolves to a saved contact. When the
// lookup service is not configured the answer is false, not an error.
func (c *Client) IsContact(ctx context.Context, number string) (bool, error) {
	if c.baseURL == "" || number == "" {
		return false, nil
	}

	lookupURL := fmt.Sprintf("%s/api/v1/contacts/lookup?number=%s",
		c.baseURL, url.QueryEscape(number))

	req, err := http.NewRequestWithContext(ctx, "GET", lookupURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var result lookupResponse
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return false, fmt.Errorf("failed to decode response: %w", err)
		}
		return result.Found, nil
	case http.StatusForbidden:
		// Caller lacks contact permission; legitimately not an error.
		c.logger.Debug("contact lookup permission denied")
		return false, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
}

// HealthCheck checks the health of the contact lookup service
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.baseURL == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("contact lookup service unhealthy: status %d", resp.StatusCode)
	}

	return nil
}

// Close closes the client
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
