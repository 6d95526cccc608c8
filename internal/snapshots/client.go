// Package snapshots is the client for the crawler collaborator that
// captures landing pages under varying access conditions. The engines only
// ever see its output; crawling itself lives outside this codebase.
package snapshots

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/clearsight/adscope/internal/domain"
	"github.com/clearsight/adscope/internal/pkg/httpretry"
)

// Client fetches snapshots from the crawler API with bounded retries.
type Client struct {
	baseURL string
	apiKey  string
	http    httpretry.Doer
	timeout time.Duration
}

// NewClient creates a crawler client. maxRetries <= 0 uses the httpretry
// default; timeout bounds each fetch including retries.
func NewClient(baseURL, apiKey string, timeout time.Duration, maxRetries int) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    httpretry.New(&http.Client{Timeout: timeout}, maxRetries),
		timeout: timeout,
	}
}

type snapshotPayload struct {
	Snapshots []struct {
		ID          string    `json:"id"`
		TargetURL   string    `json:"target_url"`
		Condition   string    `json:"condition"`
		CapturedAt  time.Time `json:"captured_at"`
		ContentHash string    `json:"content_hash"`
		Preview     string    `json:"preview"`
		ArchiveKey  string    `json:"archive_key"`
		Body        string    `json:"body"`
	} `json:"snapshots"`
}

// FetchSnapshots returns the ad's captures, newest first. The crawler
// promises that ordering but it is re-enforced here before anything
// downstream relies on it.
func (c *Client) FetchSnapshots(ctx context.Context, adID string) ([]domain.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/v1/ads/%s/snapshots", c.baseURL, url.PathEscape(adID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("snapshots: build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapshots: fetch for ad %s: %w", adID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil // no captures yet: insufficient data, not an error
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("snapshots: crawler returned %d: %s", resp.StatusCode, string(body))
	}

	var payload snapshotPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("snapshots: decode response: %w", err)
	}

	out := make([]domain.Snapshot, 0, len(payload.Snapshots))
	for _, s := range payload.Snapshots {
		out = append(out, domain.Snapshot{
			ID:          s.ID,
			AdID:        adID,
			TargetURL:   s.TargetURL,
			Condition:   s.Condition,
			CapturedAt:  s.CapturedAt,
			ContentHash: s.ContentHash,
			Preview:     s.Preview,
			ArchiveKey:  s.ArchiveKey,
			Body:        s.Body,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CapturedAt.After(out[j].CapturedAt) })
	return out, nil
}
