package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MalasadaTech/masq-monitor/internal/config"
	"github.com/MalasadaTech/masq-monitor/internal/logger"
)

const (
	scandataEndpoint         = "https://api.silentpush.com/api/v1/merge-api/explore/scandata/search/raw"
	scandataAPIKeyHeader     = "X-API-KEY"
	scandataDateFilterLayout = "2006-01-02 15:04:05"
	// scandataPageSize is the fixed result window; the monitor does not
	// paginate beyond the first page.
	scandataPageSize = 1000
)

// SilentPush queries the Silent Push raw scan-data API. An API key is
// required for every call.
type SilentPush struct {
	apiKey   string
	endpoint string
	client   *http.Client
	log      logger.Interface
}

// NewSilentPush builds a Silent Push client.
func NewSilentPush(opts Options) *SilentPush {
	opts.fill()
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = scandataEndpoint
	}
	return &SilentPush{
		apiKey:   opts.APIKey,
		endpoint: endpoint,
		client:   opts.HTTPClient,
		log:      opts.Logger.WithComponent("silentpush"),
	}
}

// Platform returns the platform identifier.
func (c *SilentPush) Platform() string { return config.PlatformSilentPush }

// scandataRequest is the POST body for a raw scan-data search.
type scandataRequest struct {
	Query string   `json:"query"`
	Sort  []string `json:"sort"`
}

// Search runs the query and returns the full decoded response envelope; the
// assembler owns unwrapping the nested scandata structure. A non-zero since
// narrows the search with a scan_date filter.
func (c *SilentPush) Search(ctx context.Context, query string, since time.Time) (any, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w for %s", ErrMissingAPIKey, c.Platform())
	}
	if !since.IsZero() {
		query = fmt.Sprintf("%s AND scan_date >= %q", query, since.Format(scandataDateFilterLayout))
	}

	body, err := json.Marshal(scandataRequest{
		Query: query,
		Sort:  []string{"scan_date/desc"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	requestURL := fmt.Sprintf("%s?limit=%d&skip=0&with_metadata=1", c.endpoint, scandataPageSize)
	c.log.Debug("executing search", "query", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(scandataAPIKeyHeader, c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(c.Platform(), resp.StatusCode, respBody)
	}

	var payload any
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return payload, nil
}
