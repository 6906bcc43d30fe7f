package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MalasadaTech/masq-monitor/internal/config"
	"github.com/MalasadaTech/masq-monitor/internal/history"
	"github.com/MalasadaTech/masq-monitor/internal/ioc"
	"github.com/MalasadaTech/masq-monitor/internal/platform"
	"github.com/MalasadaTech/masq-monitor/internal/record"
)

// resultsFileName is the cached raw payload inside every run directory.
const resultsFileName = "results.json"

// screenshotDownloader is the optional client capability used for urlscan
// runs.
type screenshotDownloader interface {
	DownloadScreenshot(ctx context.Context, uuid, destPath string) error
}

// RunQuery executes one saved query end to end and returns the run artifacts.
func (m *Monitor) RunQuery(ctx context.Context, name string, opts RunOptions) (*Result, error) {
	q, err := m.cfg.Query(name)
	if err != nil {
		return nil, err
	}
	return m.runQuery(ctx, q, opts)
}

func (m *Monitor) runQuery(ctx context.Context, q *config.Query, opts RunOptions) (*Result, error) {
	started := m.now()

	runDir, err := m.createRunDir(q.Name, started, "")
	if err != nil {
		return nil, err
	}

	client, err := m.clients(q.Platform)
	if err != nil {
		return nil, err
	}

	m.log.Info("Running query", "query", q.Name, "platform", q.Platform)

	raw, err := client.Search(ctx, q.Query, m.since(opts, started))
	if err != nil {
		m.recordRun(q.Name, "error", started)
		return nil, fmt.Errorf("search failed for query %q: %w", q.Name, err)
	}

	if cacheErr := writeResultsCache(runDir, raw); cacheErr != nil {
		m.log.Warn("Failed to cache raw results", "run_dir", runDir, "error", cacheErr)
	}

	if q.Platform == config.PlatformURLScan && !opts.SkipScreenshots {
		m.downloadScreenshots(ctx, client, raw, runDir)
	}

	result, err := m.produceArtifacts(q, raw, runDir, opts.TLPLevel, started)
	if err != nil {
		m.recordRun(q.Name, "error", started)
		return nil, err
	}

	m.recordRun(q.Name, "success", started)
	m.recordHistory(ctx, q, result, started)
	m.indexRun(ctx, result, runDir)
	m.fireExtensions(ctx, runDir)

	return result, nil
}

// RunAll executes every configured query in declaration order. Individual
// failures are logged and do not stop the sweep; the last error is returned
// so callers can exit non-zero.
func (m *Monitor) RunAll(ctx context.Context, opts RunOptions) ([]*Result, error) {
	var (
		results []*Result
		lastErr error
	)
	for i := range m.cfg.Queries {
		result, err := m.runQuery(ctx, &m.cfg.Queries[i], opts)
		if err != nil {
			m.log.Error("Query run failed", "query", m.cfg.Queries[i].Name, "error", err)
			lastErr = err
			continue
		}
		results = append(results, result)
	}
	return results, lastErr
}

// produceArtifacts assembles the report, writes it and the IOC files, and
// bumps the per-record metrics. Shared by live runs and offline rebuilds.
func (m *Monitor) produceArtifacts(q *config.Query, raw any, runDir, requested string, generatedAt time.Time) (*Result, error) {
	rep := m.assembler.AssembleQuery(q, raw, requested, generatedAt)

	reportPath, err := m.renderer.WriteFile(runDir, rep)
	if err != nil {
		return nil, fmt.Errorf("failed to write report for query %q: %w", q.Name, err)
	}

	set := m.extractIOCs(q.Platform, raw)
	if _, err := m.iocWriter.WriteAll(filepath.Join(runDir, "iocs"), q.Name, set); err != nil {
		return nil, fmt.Errorf("failed to write IOC artifacts for query %q: %w", q.Name, err)
	}

	m.recordCounts(rep.Records, set)

	return &Result{
		Name:        q.Name,
		RunDir:      runDir,
		ReportPath:  reportPath,
		Report:      rep,
		IOCs:        set,
		RecordCount: len(rep.Records),
	}, nil
}

// extractIOCs dispatches to the per-platform extractor over the raw record
// list.
func (m *Monitor) extractIOCs(platformName string, raw any) *ioc.Set {
	list := resultList(platformName, raw)
	if platformName == config.PlatformSilentPush {
		return ioc.ExtractScandata(list)
	}
	return ioc.ExtractURLScan(list)
}

// resultList unwraps a raw payload into the flat record list the IOC
// extractors expect. Unrecognized shapes yield an empty list; the report side
// handles the user-facing message.
func resultList(platformName string, raw any) []any {
	switch payload := raw.(type) {
	case []any:
		return payload
	case map[string]any:
		if platformName == config.PlatformSilentPush {
			if outer, ok := payload["response"].(map[string]any); ok {
				if inner, ok := outer["response"].(map[string]any); ok {
					if list, ok := inner["scandata_raw"].([]any); ok {
						return list
					}
				}
			}
			return nil
		}
		if list, ok := payload["results"].([]any); ok {
			return list
		}
		return nil
	default:
		return nil
	}
}

// downloadScreenshots fetches the screenshot for every result that carries a
// task UUID and stamps the record with its run-local path. Every failure is
// logged and skipped; screenshots are decoration, not data.
func (m *Monitor) downloadScreenshots(ctx context.Context, client platform.Client, raw any, runDir string) {
	downloader, ok := client.(screenshotDownloader)
	if !ok {
		return
	}

	for _, item := range resultList(config.PlatformURLScan, raw) {
		rec, isMap := item.(map[string]any)
		if !isMap {
			continue
		}
		task, isMap := rec["task"].(map[string]any)
		if !isMap {
			continue
		}
		uuid, isString := task["uuid"].(string)
		if !isString || uuid == "" {
			continue
		}

		dest := filepath.Join(runDir, "images", uuid+".png")
		if err := downloader.DownloadScreenshot(ctx, uuid, dest); err != nil {
			m.log.Warn("Failed to download screenshot", "uuid", uuid, "error", err)
			continue
		}
		rec["local_screenshot"] = "images/" + uuid + ".png"
		if m.metrics != nil {
			m.metrics.RecordScreenshot()
		}
	}
}

// createRunDir builds output/<name>_<stamp><suffix>/images and returns the
// run directory path.
func (m *Monitor) createRunDir(name string, started time.Time, suffix string) (string, error) {
	runDir := filepath.Join(m.cfg.OutputDir, name+"_"+started.Format(runDirStampLayout)+suffix)
	if err := os.MkdirAll(filepath.Join(runDir, "images"), 0o755); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}
	return runDir, nil
}

func writeResultsCache(runDir string, raw any) error {
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, resultsFileName), data, 0o644); err != nil {
		return fmt.Errorf("failed to write results cache: %w", err)
	}
	return nil
}

func (m *Monitor) recordRun(name, status string, started time.Time) {
	if m.metrics == nil {
		return
	}
	m.metrics.RecordRun(name, status, m.now().Sub(started))
}

func (m *Monitor) recordCounts(records []record.Record, set *ioc.Set) {
	if m.metrics == nil {
		return
	}
	byType := make(map[string]int)
	for _, rec := range records {
		byType[string(rec.Type)]++
	}
	for dataType, count := range byType {
		m.metrics.RecordRecords(dataType, count)
	}
	for _, category := range ioc.Categories {
		if n := len(set.Values(category)); n > 0 {
			m.metrics.RecordIOCs(category, n)
		}
	}
}

func (m *Monitor) recordHistory(ctx context.Context, q *config.Query, result *Result, started time.Time) {
	if m.history == nil {
		return
	}
	run := &history.Run{
		QueryName:   q.Name,
		Platform:    q.Platform,
		RunDir:      result.RunDir,
		ReportPath:  result.ReportPath,
		RecordCount: result.RecordCount,
		IOCCount:    result.IOCs.Count(),
		TLPLevel:    string(result.Report.TLPLevel),
		StartedAt:   started,
		FinishedAt:  m.now(),
	}
	if err := m.history.Record(ctx, run); err != nil {
		m.log.Warn("Failed to record run history", "query", q.Name, "error", err)
	}
}

func (m *Monitor) indexRun(ctx context.Context, result *Result, runDir string) {
	if m.store == nil {
		return
	}
	if err := m.store.StoreRun(ctx, result.Report, runDir); err != nil {
		m.log.Warn("Failed to index run records", "query", result.Name, "error", err)
	}
}

// fireExtensions launches the post-run hooks detached from the run; the run
// never waits on them and their outcome is only logged.
func (m *Monitor) fireExtensions(ctx context.Context, runDir string) {
	if m.extensions == nil {
		return
	}
	go m.extensions.Run(context.WithoutCancel(ctx), runDir)
}
