package extensions

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/MalasadaTech/masq-monitor/internal/logger"
)

const (
	defaultDOMEndpoint = "https://urlscan.io/dom/"
	defaultFetchDelay  = time.Second
	domFetchTimeout    = 30 * time.Second
	domCacheDirName    = "dom_cache"
	gtmOutputName      = "gtm_ids_extracted_from_urlscan_dom.csv"
)

var (
	// nsHTMLPattern matches the GTM noscript fallback URL and captures the
	// container ID.
	nsHTMLPattern = regexp.MustCompile(`https://www\.googletagmanager\.com/ns\.html\?id=(GTM-[A-Z0-9]+)`)

	// containerPattern catches bare container references in script bodies.
	containerPattern = regexp.MustCompile(`GTM-[A-Z0-9]+`)
)

// GTMExtractor pulls Google Tag Manager container IDs out of the DOM
// snapshots urlscan captured for a run's scan IDs. Matching container IDs
// across unrelated pages is a cheap way to tie kit deployments together.
type GTMExtractor struct {
	endpoint string
	client   *http.Client
	log      logger.Interface
	delay    time.Duration
	maxScans int
}

// GTMOptions configures a GTMExtractor. Zero values select production
// defaults.
type GTMOptions struct {
	Endpoint   string
	HTTPClient *http.Client
	Logger     logger.Interface
	Delay      time.Duration // pause before each live DOM fetch
	MaxScans   int           // cap on scan IDs processed, 0 means all
}

// NewGTMExtractor creates a GTM extractor.
func NewGTMExtractor(opts GTMOptions) *GTMExtractor {
	if opts.Endpoint == "" {
		opts.Endpoint = defaultDOMEndpoint
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: domFetchTimeout}
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOp()
	}
	if opts.Delay == 0 {
		opts.Delay = defaultFetchDelay
	}

	return &GTMExtractor{
		endpoint: opts.Endpoint,
		client:   opts.HTTPClient,
		log:      opts.Logger,
		delay:    opts.Delay,
		maxScans: opts.MaxScans,
	}
}

// Name implements Hook.
func (e *GTMExtractor) Name() string { return "gtm" }

// Run reads the run's scan IDs, resolves each scan's DOM (cache first, then
// urlscan), and writes every (scan_id, gtm_id) pair found to
// extensions/gtm_ids_extracted_from_urlscan_dom.csv. Scans that yield no
// container IDs are omitted; if none yield any, no file is written.
func (e *GTMExtractor) Run(ctx context.Context, runDir string) error {
	scanIDs, err := readScanIDs(runDir)
	if err != nil {
		return err
	}
	if len(scanIDs) == 0 {
		e.log.Info("No scan IDs found, skipping GTM extraction", "run_dir", runDir)
		return nil
	}
	if e.maxScans > 0 && len(scanIDs) > e.maxScans {
		scanIDs = scanIDs[:e.maxScans]
	}

	cacheDir := filepath.Join(runDir, "extensions", domCacheDirName)
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return fmt.Errorf("failed to create dom cache directory: %w", err)
	}

	type pair struct {
		scanID      string
		containerID string
	}
	var found []pair
	for _, scanID := range scanIDs {
		dom, domErr := e.domFor(ctx, cacheDir, scanID)
		if domErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.log.Warn("Failed to retrieve DOM", "scan_id", scanID, "error", domErr)
			continue
		}

		ids := ExtractContainerIDs(dom)
		if len(ids) == 0 {
			e.log.Debug("No GTM IDs in scan", "scan_id", scanID)
			continue
		}
		for _, id := range ids {
			found = append(found, pair{scanID: scanID, containerID: id})
		}
	}

	if len(found) == 0 {
		e.log.Info("No GTM IDs found in any scans", "run_dir", runDir)
		return nil
	}

	outPath := filepath.Join(runDir, "extensions", gtmOutputName)
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create GTM output file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"scan_id", "gtm_id"}); err != nil {
		return fmt.Errorf("failed to write GTM header: %w", err)
	}
	for _, p := range found {
		if err := w.Write([]string{p.scanID, p.containerID}); err != nil {
			return fmt.Errorf("failed to write GTM row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush GTM output: %w", err)
	}

	e.log.Info("Extracted GTM IDs", "count", len(found), "path", outPath)
	return nil
}

// domFor returns the DOM snapshot for a scan, serving from the cache when
// present and fetching (then caching) otherwise.
func (e *GTMExtractor) domFor(ctx context.Context, cacheDir, scanID string) (string, error) {
	cachePath := filepath.Join(cacheDir, scanID+"_dom.html")
	if data, err := os.ReadFile(cachePath); err == nil {
		return string(data), nil
	}

	// Pause before each live fetch to stay under urlscan's rate limits.
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(e.delay):
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.endpoint+scanID+"/", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create DOM request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch DOM: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch DOM: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read DOM response: %w", err)
	}

	if err := os.WriteFile(cachePath, body, 0o644); err != nil {
		e.log.Warn("Failed to cache DOM", "scan_id", scanID, "error", err)
	}

	return string(body), nil
}

// readScanIDs loads scan IDs from the first *scan_ids.csv artifact under the
// run's iocs directory. A missing artifact is not an error; the run may have
// produced no urlscan results.
func readScanIDs(runDir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(runDir, "iocs", "*scan_ids.csv"))
	if err != nil || len(matches) == 0 {
		return nil, nil
	}

	f, err := os.Open(matches[0])
	if err != nil {
		return nil, fmt.Errorf("failed to open scan IDs file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read scan IDs file: %w", err)
	}

	var ids []string
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		if len(row) > 0 && row[0] != "" {
			ids = append(ids, row[0])
		}
	}
	return ids, nil
}

// ExtractContainerIDs returns the unique GTM container IDs referenced in a
// DOM snapshot, in first-seen order. The noscript fallback iframe is the
// reliable marker; a bare container reference anywhere in the snapshot is the
// match of last resort.
func ExtractContainerIDs(dom string) []string {
	var (
		ids  []string
		seen = make(map[string]bool)
	)
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(dom)); err == nil {
		// noscript bodies parse as raw text, so the iframe markup inside them
		// is matched as text rather than walked as elements.
		doc.Find("noscript").Each(func(_ int, sel *goquery.Selection) {
			for _, m := range nsHTMLPattern.FindAllStringSubmatch(sel.Text(), -1) {
				add(m[1])
			}
		})
		doc.Find("iframe[src]").Each(func(_ int, sel *goquery.Selection) {
			src, _ := sel.Attr("src")
			if m := nsHTMLPattern.FindStringSubmatch(src); m != nil {
				add(m[1])
			}
		})
	}
	if len(ids) > 0 {
		return ids
	}

	for _, m := range nsHTMLPattern.FindAllStringSubmatch(dom, -1) {
		add(m[1])
	}
	if len(ids) > 0 {
		return ids
	}

	for _, m := range containerPattern.FindAllString(dom, -1) {
		add(m)
	}
	return ids
}
