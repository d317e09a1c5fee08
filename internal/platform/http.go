package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Zwemvest/paradoxplazabot-sub000/internal/models"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// HTTPConfig configures the gateway client.
type HTTPConfig struct {
	BaseURL     string
	Token       string
	Timeout     time.Duration
	MaxFailures uint32
	OpenTimeout time.Duration
}

// HTTPClient talks JSON to the platform gateway. Calls go through a circuit breaker so an
// unavailable gateway fails fast instead of stalling every timer.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// NewHTTPClient creates a new platform gateway client.
func NewHTTPClient(cfg HTTPConfig, logger *zap.Logger) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	settings := gobreaker.Settings{
		Name:        "platform",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		// Answers about missing objects or rights mean the gateway is healthy.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrPermissionDenied)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}
	return &HTTPClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

func (c *HTTPClient) GetItem(ctx context.Context, itemID string) (*models.ContentItem, error) {
	var item models.ContentItem
	if err := c.do(ctx, http.MethodGet, "/items/"+url.PathEscape(itemID), nil, &item); err != nil {
		return nil, fmt.Errorf("failed to get item %s: %w", itemID, err)
	}
	return &item, nil
}

func (c *HTTPClient) ListComments(ctx context.Context, itemID string) ([]models.Comment, error) {
	var response struct {
		Comments []models.Comment `json:"comments"`
	}
	if err := c.do(ctx, http.MethodGet, "/items/"+url.PathEscape(itemID)+"/comments", nil, &response); err != nil {
		return nil, fmt.Errorf("failed to list comments of %s: %w", itemID, err)
	}
	return response.Comments, nil
}

func (c *HTTPClient) PostComment(ctx context.Context, itemID, body string, opts CommentOptions) (string, error) {
	request := struct {
		Body string `json:"body"`
		CommentOptions
	}{Body: body, CommentOptions: opts}
	var response struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/items/"+url.PathEscape(itemID)+"/comments", request, &response); err != nil {
		return "", fmt.Errorf("failed to post comment on %s: %w", itemID, err)
	}
	return response.ID, nil
}

func (c *HTTPClient) DeleteComment(ctx context.Context, commentID string) error {
	if err := c.do(ctx, http.MethodDelete, "/comments/"+url.PathEscape(commentID), nil, nil); err != nil {
		return fmt.Errorf("failed to delete comment %s: %w", commentID, err)
	}
	return nil
}

func (c *HTTPClient) Remove(ctx context.Context, itemID string) error {
	if err := c.do(ctx, http.MethodPost, "/items/"+url.PathEscape(itemID)+"/remove", nil, nil); err != nil {
		return fmt.Errorf("failed to remove %s: %w", itemID, err)
	}
	return nil
}

func (c *HTTPClient) Approve(ctx context.Context, itemID string) error {
	if err := c.do(ctx, http.MethodPost, "/items/"+url.PathEscape(itemID)+"/approve", nil, nil); err != nil {
		return fmt.Errorf("failed to approve %s: %w", itemID, err)
	}
	return nil
}

func (c *HTTPClient) Report(ctx context.Context, itemID, reason string) error {
	request := map[string]string{"reason": reason}
	if err := c.do(ctx, http.MethodPost, "/items/"+url.PathEscape(itemID)+"/report", request, nil); err != nil {
		return fmt.Errorf("failed to report %s: %w", itemID, err)
	}
	return nil
}

func (c *HTTPClient) ReplyToAppeal(ctx context.Context, threadID, body string) error {
	request := map[string]string{"body": body}
	if err := c.do(ctx, http.MethodPost, "/appeals/"+url.PathEscape(threadID)+"/reply", request, nil); err != nil {
		return fmt.Errorf("failed to reply to appeal %s: %w", threadID, err)
	}
	return nil
}

func (c *HTTPClient) ArchiveAppeal(ctx context.Context, threadID string) error {
	if err := c.do(ctx, http.MethodPost, "/appeals/"+url.PathEscape(threadID)+"/archive", nil, nil); err != nil {
		return fmt.Errorf("failed to archive appeal %s: %w", threadID, err)
	}
	return nil
}

// do performs one request through the circuit breaker and decodes the response into out.
func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, path, in, out)
	})
	return err
}

func (c *HTTPClient) roundTrip(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		c.logger.Error("Failed to create request to platform", zap.Error(err))
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to make request to platform", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return fmt.Errorf("failed to make request to platform: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrPermissionDenied
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		c.logger.Error("Platform returned non-OK status", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("platform returned status: %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.logger.Error("Failed to decode platform response", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("failed to decode platform response: %w", err)
	}
	return nil
}
