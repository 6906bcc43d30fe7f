package monitor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/MalasadaTech/masq-monitor/internal/config"
)

// Rebuild regenerates the report and IOC artifacts for an existing run
// directory from its cached results.json, without touching the network.
// The report filename keeps the directory's original timestamp suffix.
func (m *Monitor) Rebuild(runDir string, opts RunOptions) (*Result, error) {
	q, err := m.queryForRunDir(runDir)
	if err != nil {
		return nil, err
	}

	raw, err := readResultsCache(runDir)
	if err != nil {
		return nil, err
	}

	m.log.Info("Rebuilding run artifacts", "run_dir", runDir, "query", q.Name)
	return m.produceArtifacts(q, raw, runDir, opts.TLPLevel, m.now())
}

// ExtractRun re-runs IOC extraction over a cached run directory and rewrites
// the iocs/ artifacts. Useful after extractor fixes without burning API quota.
func (m *Monitor) ExtractRun(runDir string) (*Result, error) {
	q, err := m.queryForRunDir(runDir)
	if err != nil {
		return nil, err
	}

	raw, err := readResultsCache(runDir)
	if err != nil {
		return nil, err
	}

	set := m.extractIOCs(q.Platform, raw)
	if _, err := m.iocWriter.WriteAll(filepath.Join(runDir, "iocs"), q.Name, set); err != nil {
		return nil, fmt.Errorf("failed to write IOC artifacts for %q: %w", q.Name, err)
	}

	return &Result{Name: q.Name, RunDir: runDir, IOCs: set}, nil
}

// queryForRunDir resolves which configured query produced a run directory by
// matching its base name against <query>_<stamp>. Query names may themselves
// contain underscores, so the longest matching name wins.
func (m *Monitor) queryForRunDir(runDir string) (*config.Query, error) {
	base := filepath.Base(filepath.Clean(runDir))

	var match *config.Query
	for i := range m.cfg.Queries {
		q := &m.cfg.Queries[i]
		if !strings.HasPrefix(base, q.Name+"_") {
			continue
		}
		if match == nil || len(q.Name) > len(match.Name) {
			match = q
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRunDir, base)
	}
	return match, nil
}

func readResultsCache(runDir string) (any, error) {
	data, err := os.ReadFile(filepath.Join(runDir, resultsFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoCachedResults, runDir)
		}
		return nil, fmt.Errorf("failed to read results cache: %w", err)
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse results cache: %w", err)
	}
	return raw, nil
}
