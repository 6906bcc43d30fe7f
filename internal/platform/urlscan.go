package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/MalasadaTech/masq-monitor/internal/config"
	"github.com/MalasadaTech/masq-monitor/internal/logger"
)

// Default urlscan.io endpoints.
const (
	urlscanSearchEndpoint     = "https://urlscan.io/api/v1/search/"
	urlscanScreenshotEndpoint = "https://urlscan.io/screenshots/"
	urlscanAPIKeyHeader       = "API-Key"
	urlscanDateFilterLayout   = "2006-01-02"
)

// URLScan queries the urlscan.io search API. The API key is optional; without
// one, searches run against the public quota.
type URLScan struct {
	apiKey         string
	endpoint       string
	screenshotBase string
	client         *http.Client
	log            logger.Interface
}

// NewURLScan builds a urlscan.io client.
func NewURLScan(opts Options) *URLScan {
	opts.fill()
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = urlscanSearchEndpoint
	}
	screenshotBase := opts.ScreenshotEndpoint
	if screenshotBase == "" {
		screenshotBase = urlscanScreenshotEndpoint
	}
	return &URLScan{
		apiKey:         opts.APIKey,
		endpoint:       endpoint,
		screenshotBase: screenshotBase,
		client:         opts.HTTPClient,
		log:            opts.Logger.WithComponent("urlscan"),
	}
}

// Platform returns the platform identifier.
func (c *URLScan) Platform() string { return config.PlatformURLScan }

// Search runs the query and returns the raw result list from the response's
// "results" field. A non-zero since narrows the search with the platform's
// date:>= filter.
func (c *URLScan) Search(ctx context.Context, query string, since time.Time) (any, error) {
	if !since.IsZero() {
		query = fmt.Sprintf("%s AND date:>=%s", query, since.Format(urlscanDateFilterLayout))
	}

	requestURL := c.endpoint + "?q=" + url.QueryEscape(query)
	c.log.Debug("executing search", "query", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set(urlscanAPIKeyHeader, c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(c.Platform(), resp.StatusCode, body)
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	results, ok := payload["results"].([]any)
	if !ok {
		results = []any{}
	}
	c.log.Debug("search complete", "results", len(results))
	return results, nil
}

// DownloadScreenshot fetches the scan's screenshot and writes it to destPath.
// Missing screenshots are a normal condition on the platform and come back as
// an error the caller is expected to log and move past.
func (c *URLScan) DownloadScreenshot(ctx context.Context, uuid, destPath string) error {
	screenshotURL := c.screenshotBase + uuid + ".png"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, screenshotURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set(urlscanAPIKeyHeader, c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download screenshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return statusError(c.Platform(), resp.StatusCode, body)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read screenshot: %w", err)
	}
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write screenshot: %w", err)
	}
	return nil
}
