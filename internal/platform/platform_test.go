package platform_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MalasadaTech/masq-monitor/internal/config"
	"github.com/MalasadaTech/masq-monitor/internal/platform"
)

func TestNewSelectsPlatform(t *testing.T) {
	t.Parallel()

	urlscan, err := platform.New(config.PlatformURLScan, platform.Options{})
	require.NoError(t, err)
	require.Equal(t, config.PlatformURLScan, urlscan.Platform())

	silentpush, err := platform.New(config.PlatformSilentPush, platform.Options{APIKey: "k"})
	require.NoError(t, err)
	require.Equal(t, config.PlatformSilentPush, silentpush.Platform())

	_, err = platform.New("shodan", platform.Options{})
	require.ErrorIs(t, err, platform.ErrUnsupportedPlatform)
}

func TestURLScanSearch(t *testing.T) {
	t.Parallel()

	var gotQuery, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotKey = r.Header.Get("API-Key")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []any{
				map[string]any{"page": map[string]any{"domain": "fake.example.com"}},
			},
			"total": 1,
		})
	}))
	defer server.Close()

	client := platform.NewURLScan(platform.Options{
		APIKey:   "urlscan-key",
		Endpoint: server.URL,
	})

	since := time.Date(2025, 2, 22, 9, 30, 0, 0, time.UTC)
	raw, err := client.Search(context.Background(), "page.domain:(example.com)", since)
	require.NoError(t, err)

	require.Equal(t, "page.domain:(example.com) AND date:>=2025-02-22", gotQuery)
	require.Equal(t, "urlscan-key", gotKey)

	results, ok := raw.([]any)
	require.True(t, ok)
	require.Len(t, results, 1)
}

func TestURLScanSearchWithoutKeyOrFilter(t *testing.T) {
	t.Parallel()

	var sawHeader bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawHeader = r.Header["Api-Key"]
		_ = json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer server.Close()

	client := platform.NewURLScan(platform.Options{Endpoint: server.URL})
	raw, err := client.Search(context.Background(), "page.domain:(example.com)", time.Time{})
	require.NoError(t, err)
	require.False(t, sawHeader)

	// A response without a results field degrades to an empty list.
	results, ok := raw.([]any)
	require.True(t, ok)
	require.Empty(t, results)
}

func TestURLScanSearchErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := platform.NewURLScan(platform.Options{Endpoint: server.URL})
	_, err := client.Search(context.Background(), "q", time.Time{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "429")
}

func TestURLScanDownloadScreenshot(t *testing.T) {
	t.Parallel()

	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer server.Close()

	client := platform.NewURLScan(platform.Options{
		Endpoint:           server.URL,
		ScreenshotEndpoint: server.URL + "/",
	})

	dest := filepath.Join(t.TempDir(), "abc-123.png")
	require.NoError(t, client.DownloadScreenshot(context.Background(), "abc-123", dest))
	require.Equal(t, "/abc-123.png", gotPath)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, []byte("png-bytes"), data)
}

func TestSilentPushSearch(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	var gotMethod, gotKey, gotLimit string
	var decodeErr error
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotKey = r.Header.Get("X-API-KEY")
		gotLimit = r.URL.Query().Get("limit")
		decodeErr = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"response": map[string]any{
				"response": map[string]any{
					"scandata_raw": []any{
						map[string]any{"domain": "evil.example.com", "datasource": "whois"},
					},
				},
			},
		})
	}))
	defer server.Close()

	client := platform.NewSilentPush(platform.Options{
		APIKey:   "sp-key",
		Endpoint: server.URL,
	})

	since := time.Date(2025, 2, 22, 9, 30, 0, 0, time.UTC)
	raw, err := client.Search(context.Background(), `domain = "example.com"`, since)
	require.NoError(t, err)

	require.Equal(t, http.MethodPost, gotMethod)
	require.NoError(t, decodeErr)
	require.Equal(t, "sp-key", gotKey)
	require.Equal(t, "1000", gotLimit)
	require.Equal(t, `domain = "example.com" AND scan_date >= "2025-02-22 09:30:00"`, gotBody["query"])
	require.Equal(t, []any{"scan_date/desc"}, gotBody["sort"])

	payload, ok := raw.(map[string]any)
	require.True(t, ok)
	require.Contains(t, payload, "response")
}

func TestSilentPushSearchRequiresKey(t *testing.T) {
	t.Parallel()

	client := platform.NewSilentPush(platform.Options{})
	_, err := client.Search(context.Background(), "q", time.Time{})
	require.ErrorIs(t, err, platform.ErrMissingAPIKey)
}
