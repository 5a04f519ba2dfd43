// Package hiveonboard is a client for the hiveonboard referral-listing API.
package hiveonboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Pagination and retry defaults
const (
	PageSize = 100

	maxAttempts    = 4
	initialBackoff = 500 * time.Millisecond
)

// ErrFeedUnavailable marks a page fetch that failed after all retries.
var ErrFeedUnavailable = errors.New("referral feed unavailable")

// ReferredAccount is one account created under the referral program.
type ReferredAccount struct {
	Account   string    `json:"account"`
	Weight    int       `json:"weight"`
	CreatedAt time.Time `json:"createdAt"`
}

// Client represents a hiveonboard API client
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a hiveonboard client against the public API
func NewClient() *Client {
	return NewClientWithHTTP(&http.Client{Timeout: 30 * time.Second}, "https://hiveonboard.com")
}

// NewClientWithHTTP creates a hiveonboard client with custom HTTP client and base URL
func NewClientWithHTTP(httpClient *http.Client, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

// getPage fetches one page of referred accounts, retrying transient
// failures with doubling backoff before giving up.
func (c *Client) getPage(ctx context.Context, referrer string, offset int) ([]ReferredAccount, error) {
	url := fmt.Sprintf("%s/api/referrer/%s?limit=%d&offset=%d", c.baseURL, referrer, PageSize, offset)

	var lastErr error
	backoff := initialBackoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		items, err := c.fetch(ctx, url)
		if err == nil {
			return items, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %d attempts: %w", ErrFeedUnavailable, maxAttempts, lastErr)
}

func (c *Client) fetch(ctx context.Context, url string) ([]ReferredAccount, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var payload struct {
		Items []ReferredAccount `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return payload.Items, nil
}

// GetReferredAccounts lists every account referred by the given referrer,
// walking fixed-size pages until an empty page or a repeated page is
// returned (the API serves the last page again past the end).
func (c *Client) GetReferredAccounts(ctx context.Context, referrer string) ([]ReferredAccount, error) {
	var (
		accounts []ReferredAccount
		previous []ReferredAccount
		offset   int
	)
	for {
		page, err := c.getPage(ctx, referrer, offset)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return accounts, nil
		}
		if len(previous) > 0 && page[0].Account == previous[0].Account {
			return accounts, nil
		}
		accounts = append(accounts, page...)
		previous = page
		offset += PageSize
	}
}
