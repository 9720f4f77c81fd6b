// Package reputation looks up phone number reputation through a
// generative-language backend with web search grounding.
package reputation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"call-screener/internal/cache"
	"call-screener/internal/config"
	"call-screener/internal/models"
)

// ResultCache is the cache the client consults before going to the network.
type ResultCache interface {
	Get(ctx context.Context, number string) (*models.ReputationResult, error)
	Set(ctx context.Context, result *models.ReputationResult) error
}

// Client performs reputation lookups. Transient failures are retried with an
// escalating delay; a rate-limited primary credential is swapped for the
// fallback credential once, without burning an extra delay.
type Client struct {
	config     *config.ReputationConfig
	httpClient *http.Client
	cache      ResultCache
	logger     *zap.Logger
}

// NewClient creates a new reputation client
func NewClient(cfg *config.Config, results *cache.ResultCache, logger *zap.Logger) *Client {
	return newClient(&cfg.Reputation, results, logger)
}

func newClient(cfg *config.ReputationConfig, cache ResultCache, logger *zap.Logger) *Client {
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		cache:  cache,
		logger: logger,
	}
}

// Request/response shapes for the generateContent endpoint.

type generateRequest struct {
	Contents []content `json:"contents"`
	Tools    []tool    `json:"tools,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type tool struct {
	GoogleSearch *googleSearch `json:"google_search,omitempty"`
}

type googleSearch struct{}

type candidate struct {
	Content content `json:"content"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
}

// Lookup returns the reputation of number. It never returns a transport
// error: failures surface as a result with status=error so callers can
// record them uniformly.
func (c *Client) Lookup(ctx context.Context, number string) *models.ReputationResult {
	return c.lookup(ctx, number, false)
}

// ForceLookup bypasses the cache read and always refetches. A fresh success
// still replaces the cached entry.
func (c *Client) ForceLookup(ctx context.Context, number string) *models.ReputationResult {
	return c.lookup(ctx, number, true)
}

func (c *Client) lookup(ctx context.Context, number string, force bool) *models.ReputationResult {
	if number == "" {
		return &models.ReputationResult{
			Number:    number,
			Status:    models.ReputationNone,
			CheckedAt: time.Now(),
		}
	}

	if !c.config.Enabled {
		return &models.ReputationResult{
			Number:    number,
			Status:    models.ReputationNone,
			CheckedAt: time.Now(),
		}
	}

	if !force && c.config.CacheEnabled && c.cache != nil {
		cached, err := c.cache.Get(ctx, number)
		if err != nil {
			c.logger.Warn("reputation cache read failed", zap.Error(err))
		} else if cached != nil {
			c.logger.Debug("reputation served from cache", zap.String("number", number))
			return cached
		}
	}

	result := c.fetch(ctx, number)

	if result.Status == models.ReputationSuccess && c.config.CacheEnabled && c.cache != nil {
		if err := c.cache.Set(ctx, result); err != nil {
			c.logger.Warn("failed to cache reputation result", zap.Error(err))
		}
	}

	return result
}

// fetch performs the network lookup with retries. Attempt numbering starts
// at 1; attempt n waits n*RetryUnit before the next try. Switching to the
// fallback credential on a rate limit does not count as a retry delay.
func (c *Client) fetch(ctx context.Context, number string) *models.ReputationResult {
	apiKey := c.config.APIKey
	if apiKey == "" {
		c.logger.Warn("reputation lookup skipped: no api key configured")
		return &models.ReputationResult{
			Number:    number,
			Status:    models.ReputationError,
			Text:      "no api key configured",
			CheckedAt: time.Now(),
		}
	}

	usingFallback := false
	var lastErr error

	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		text, rateLimited, err := c.generate(ctx, apiKey, number)
		if err == nil {
			c.logger.Info("reputation lookup succeeded",
				zap.String("number", number),
				zap.Int("attempt", attempt),
				zap.Bool("fallback_key", usingFallback))
			return &models.ReputationResult{
				Number:    number,
				Status:    models.ReputationSuccess,
				Text:      text,
				CheckedAt: time.Now(),
			}
		}
		lastErr = err

		if rateLimited && !usingFallback && c.config.FallbackAPIKey != "" {
			// Rate limit on the primary credential: switch immediately and
			// retry without waiting.
			c.logger.Warn("reputation api rate limited, switching to fallback key",
				zap.Int("attempt", attempt))
			apiKey = c.config.FallbackAPIKey
			usingFallback = true
			continue
		}

		c.logger.Warn("reputation lookup attempt failed",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.config.MaxAttempts))

		if attempt < c.config.MaxAttempts {
			delay := time.Duration(attempt) * c.config.RetryUnit
			select {
			case <-ctx.Done():
				return &models.ReputationResult{
					Number:    number,
					Status:    models.ReputationError,
					Text:      ctx.Err().Error(),
					CheckedAt: time.Now(),
				}
			case <-time.After(delay):
			}
		}
	}

	c.logger.Error("reputation lookup exhausted retries",
		zap.String("number", number),
		zap.Error(lastErr))

	return &models.ReputationResult{
		Number:    number,
		Status:    models.ReputationError,
		Text:      lastErr.Error(),
		CheckedAt: time.Now(),
	}
}

// generate performs one generateContent call. rateLimited is true when the
// backend answered 429.
func (c *Client) generate(ctx context.Context, apiKey, number string) (text string, rateLimited bool, err error) {
	body := generateRequest{
		Contents: []content{
			{Parts: []part{{Text: c.buildPrompt(number)}}},
		},
		Tools: []tool{
			{GoogleSearch: &googleSearch{}},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", false, fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.config.BaseURL, c.config.Model)

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", true, fmt.Errorf("rate limited: status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", false, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(snippet))
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", false, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		// A response without content is treated as transient; the backend
		// occasionally returns empty candidates under load.
		return "", false, fmt.Errorf("response contained no candidates")
	}

	return decoded.Candidates[0].Content.Parts[0].Text, false, nil
}

// buildPrompt interpolates the number into the configured prompt. Prompts
// without a placeholder get the number appended so the model always sees it.
func (c *Client) buildPrompt(number string) string {
	prompt := c.config.Prompt
	if prompt == "" {
		prompt = config.DefaultPrompt
	}
	if strings.Contains(prompt, "{number}") {
		return strings.ReplaceAll(prompt, "{number}", number)
	}
	return fmt.Sprintf("%s (number: %s)", prompt, number)
}

// VerifyKey checks an API credential with a minimal request. A rate-limited
// answer still proves the credential is valid; the warning is passed along.
func (c *Client) VerifyKey(ctx context.Context, apiKey, model string) (bool, string, error) {
	if model == "" {
		model = c.config.Model
	}

	body := generateRequest{
		Contents: []content{
			{Parts: []part{{Text: "ping"}}},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return false, "", fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.config.BaseURL, model)

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(payload))
	if err != nil {
		return false, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, "", nil
	case http.StatusTooManyRequests:
		return true, "key is valid but currently rate limited", nil
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Sprintf("status %d: %s", resp.StatusCode, string(snippet)), nil
	}
}
