// Package skinport is the REST client for the Skinport public items API,
// the reference price source for the live market.
package skinport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alanyoungcy/skintrend/internal/domain"
)

const (
	defaultBaseURL   = "https://api.skinport.com"
	defaultUserAgent = "SkinTrend/1.0"
	defaultTimeout   = 30 * time.Second
	// maxBodyBytes caps the catalog download; the full CS2 catalog is a few MB.
	maxBodyBytes = 64 << 20
)

// Config holds the request parameters for the items endpoint.
type Config struct {
	BaseURL   string
	AppID     int
	Currency  string
	UserAgent string
	Timeout   time.Duration
}

// Client fetches the item catalog from Skinport.
type Client struct {
	baseURL    string
	appID      int
	currency   string
	userAgent  string
	httpClient *http.Client
}

// NewClient creates a Skinport client. Empty fields fall back to the public
// API root, app 730 (CS2), USD and a 30s timeout.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.AppID == 0 {
		cfg.AppID = 730
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		appID:     cfg.AppID,
		currency:  cfg.Currency,
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// GetItems returns the full catalog, including items with no listing.
func (c *Client) GetItems(ctx context.Context) ([]domain.ReferenceItem, error) {
	params := url.Values{}
	params.Set("app_id", strconv.Itoa(c.appID))
	params.Set("currency", c.currency)
	params.Set("tradable", "0")

	body, err := c.doGet(ctx, "/v1/items?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("skinport: get items: %w", err)
	}

	var apiItems []APIItem
	if err := json.Unmarshal(body, &apiItems); err != nil {
		return nil, fmt.Errorf("skinport: decode items: %w", err)
	}

	items := make([]domain.ReferenceItem, 0, len(apiItems))
	for i := range apiItems {
		items = append(items, apiItems[i].ToDomain())
	}
	return items, nil
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, domain.ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 256))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

var _ domain.ReferenceSource = (*Client)(nil)
