package ow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dotkom/vengeful/internal/logging"
	"github.com/sethvargo/go-retry"
)

// Source is the pull-based snapshot feed consumed by the reconciler.
type Source interface {
	// UserGroups returns snapshots of all groups the given external user
	// belongs to.
	UserGroups(ctx context.Context, owUserID int64) ([]Group, error)
	// Group returns a snapshot of a single group.
	Group(ctx context.Context, owGroupID int64) (*Group, error)
}

// Client talks to the provider's HTTP API. Transient failures (network
// errors, 5xx) are retried with exponential backoff; 4xx responses and
// malformed payloads fail immediately.
type Client struct {
	baseURL  string
	apiToken string
	http     *http.Client
	logger   logging.Logger
}

func NewClient(baseURL, apiToken string, logger logging.Logger) *Client {
	return &Client{
		baseURL:  baseURL,
		apiToken: apiToken,
		http:     &http.Client{Timeout: 10 * time.Second},
		logger:   logger.With("module", "ow_client"),
	}
}

func (c *Client) UserGroups(ctx context.Context, owUserID int64) ([]Group, error) {
	var groups []Group
	url := fmt.Sprintf("%s/users/%d/groups", c.baseURL, owUserID)
	if err := c.getJSON(ctx, url, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (c *Client) Group(ctx context.Context, owGroupID int64) (*Group, error) {
	g := &Group{}
	url := fmt.Sprintf("%s/groups/%d", c.baseURL, owGroupID)
	if err := c.getJSON(ctx, url, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		if c.apiToken != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiToken)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			c.logger.Warn(ctx, "provider request failed, retrying", "url", url, "error", err)
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			c.logger.Warn(ctx, "provider returned server error, retrying", "url", url, "status", resp.StatusCode)
			return retry.RetryableError(fmt.Errorf("provider status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("provider status %d", resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("malformed snapshot: %w", err)
		}
		return nil
	})
}
