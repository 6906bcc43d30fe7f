// Package platform implements the HTTP clients for the two supported search
// platforms: the urlscan.io web-scan API and the Silent Push scan-data API.
// Clients return decoded JSON payloads; all interpretation of record shapes
// belongs to the report assembler.
package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MalasadaTech/masq-monitor/internal/config"
	"github.com/MalasadaTech/masq-monitor/internal/logger"
)

// Sentinel errors surfaced by the clients.
var (
	ErrMissingAPIKey       = errors.New("missing API key")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)

// defaultTimeout bounds a single API call when the caller's context carries
// no earlier deadline.
const defaultTimeout = 30 * time.Second

// Client executes a saved query against one platform. since, when non-zero,
// limits results to scans at or after that instant using the platform's query
// syntax; the payload is the decoded JSON the assembler expects.
type Client interface {
	Search(ctx context.Context, query string, since time.Time) (any, error)
	Platform() string
}

// Options configures a client.
type Options struct {
	// APIKey authenticates requests. Optional for urlscan, required for
	// Silent Push.
	APIKey string
	// Endpoint overrides the platform's default search URL.
	Endpoint string
	// ScreenshotEndpoint overrides the urlscan screenshot base URL.
	ScreenshotEndpoint string
	// HTTPClient overrides the default client (mainly for tests).
	HTTPClient *http.Client
	Logger     logger.Interface
}

func (o *Options) fill() {
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	if o.Logger == nil {
		o.Logger = logger.NewNoOp()
	}
}

// New returns the client for the named platform.
func New(platform string, opts Options) (Client, error) {
	switch platform {
	case config.PlatformURLScan:
		return NewURLScan(opts), nil
	case config.PlatformSilentPush:
		return NewSilentPush(opts), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, platform)
	}
}

// statusError builds the error for a non-success HTTP response, keeping a
// short body excerpt for diagnosis.
func statusError(platform string, status int, body []byte) error {
	const maxExcerpt = 256
	excerpt := string(body)
	if len(excerpt) > maxExcerpt {
		excerpt = excerpt[:maxExcerpt] + "..."
	}
	return fmt.Errorf("%s returned status %d: %s", platform, status, excerpt)
}
