// Package m3u fetches live playlist files and parses their EXTVDJ entries
// into source sheets for consolidation.
package m3u

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"shared/logger"
)

// Client fetches playlist files over HTTP with client-side rate limiting.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	minInterval time.Duration
	lastRequest time.Time
	logger      *logger.Logger
}

// NewClient creates a playlist client. requestsPerMin caps the request rate;
// values below 1 disable the limiter.
func NewClient(baseURL string, requestsPerMin int) *Client {
	var minInterval time.Duration
	if requestsPerMin > 0 {
		minInterval = time.Minute / time.Duration(requestsPerMin)
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		minInterval: minInterval,
		logger:      logger.New("m3u-client"),
	}
}

// FetchPlaylist downloads one playlist file and returns its lines.
func (c *Client) FetchPlaylist(ctx context.Context, name string) ([]string, error) {
	if err := c.waitForRateLimit(ctx); err != nil {
		return nil, err
	}

	requestURL := c.baseURL + "/" + url.PathEscape(name)
	c.logger.Info("Fetching playlist", map[string]interface{}{"url": requestURL})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, logger.NewAppError(logger.ErrorTypePlaylist, "failed to build playlist request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, logger.NewAppErrorWithMetadata(logger.ErrorTypePlaylist, "playlist request failed", err,
			map[string]interface{}{"url": requestURL})
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, logger.NewAppErrorWithMetadata(logger.ErrorTypePlaylist,
			fmt.Sprintf("playlist request returned status %d", resp.StatusCode), nil,
			map[string]interface{}{"url": requestURL})
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, logger.NewAppError(logger.ErrorTypePlaylist, "failed to read playlist body", err)
	}

	lines := SplitLines(string(body))
	c.logger.InfoWithCount("Playlist fetched", len(lines), map[string]interface{}{"name": name})
	return lines, nil
}

func (c *Client) waitForRateLimit(ctx context.Context) error {
	if c.minInterval == 0 {
		return nil
	}
	if wait := c.minInterval - time.Since(c.lastRequest); wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	c.lastRequest = time.Now()
	return nil
}

// SplitLines splits playlist text into trimmed lines, dropping empty ones.
func SplitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
