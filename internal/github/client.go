// Package github provides a minimal, best-effort client for the GitHub
// users API. Lookups feed the external-profile staleness cache only;
// failures are reported to the caller and swallowed there, never reaching
// a badge response.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrNotFound indicates the username does not exist upstream.
var ErrNotFound = errors.New("github user not found")

// Profile is the subset of the users API response the counter cares about.
type Profile struct {
	Login     string `json:"login"`
	Followers int    `json:"followers"`
	Following int    `json:"following"`
}

// Client calls the GitHub REST API. The zero value is not usable; construct
// with NewClient.
type Client struct {
	http      *http.Client
	baseURL   string
	userAgent string
}

// NewClient returns a Client against baseURL (e.g. "https://api.github.com").
func NewClient(baseURL string) *Client {
	return &Client{
		http:      &http.Client{Timeout: 10 * time.Second},
		baseURL:   baseURL,
		userAgent: "GitHub-Profile-Views-Counter",
	}
}

// Lookup fetches the public profile for username. It is idempotent and
// honors ctx for cancellation.
func (c *Client) Lookup(ctx context.Context, username string) (*Profile, error) {
	u := fmt.Sprintf("%s/users/%s", c.baseURL, url.PathEscape(username))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github lookup: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("github lookup: unexpected status %d", resp.StatusCode)
	}

	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &p, nil
}
