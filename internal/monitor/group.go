package monitor

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/MalasadaTech/masq-monitor/internal/config"
	"github.com/MalasadaTech/masq-monitor/internal/history"
	"github.com/MalasadaTech/masq-monitor/internal/ioc"
	"github.com/MalasadaTech/masq-monitor/internal/report"
)

// groupPlatform is the platform column value for group runs in the history
// ledger.
const groupPlatform = "group"

// RunGroup executes every member of the named group, then assembles the
// combined report and the unioned IOC set into a dedicated group run
// directory. Members run in declaration order; nested groups recurse.
// A member failure is logged, recorded as an empty section and skipped;
// one broken query must not sink the rest of the group.
func (m *Monitor) RunGroup(ctx context.Context, name string, opts RunOptions) (*Result, error) {
	g, err := m.cfg.Group(name)
	if err != nil {
		return nil, err
	}

	started := m.now()
	runDir, err := m.createRunDir(g.Name, started, "_group")
	if err != nil {
		return nil, err
	}

	combined := ioc.NewSet()
	entries := m.runMembers(ctx, g, opts, combined)

	rep := m.assembler.AssembleGroup(g, entries, opts.TLPLevel, runDir, started)

	reportPath, err := m.renderer.WriteFile(runDir, rep)
	if err != nil {
		return nil, fmt.Errorf("failed to write group report for %q: %w", g.Name, err)
	}

	if _, err := m.iocWriter.WriteAll(filepath.Join(runDir, "iocs"), g.Name, combined); err != nil {
		return nil, fmt.Errorf("failed to write group IOC artifacts for %q: %w", g.Name, err)
	}

	result := &Result{
		Name:        g.Name,
		RunDir:      runDir,
		ReportPath:  reportPath,
		Report:      rep,
		IOCs:        combined,
		RecordCount: len(rep.Records),
	}

	m.recordRun(g.Name, "success", started)
	if m.history != nil {
		run := &history.Run{
			QueryName:   g.Name,
			Platform:    groupPlatform,
			RunDir:      runDir,
			ReportPath:  reportPath,
			RecordCount: result.RecordCount,
			IOCCount:    combined.Count(),
			TLPLevel:    string(rep.TLPLevel),
			StartedAt:   started,
			FinishedAt:  m.now(),
		}
		if err := m.history.Record(ctx, run); err != nil {
			m.log.Warn("Failed to record group run history", "group", g.Name, "error", err)
		}
	}
	m.fireExtensions(ctx, runDir)

	return result, nil
}

// runMembers executes a group's members in order, accumulating their IOC
// sets into combined and returning the group entries for assembly. Cycles
// were rejected at config load, so the recursion terminates.
func (m *Monitor) runMembers(ctx context.Context, g *config.QueryGroup, opts RunOptions, combined *ioc.Set) []report.GroupEntry {
	entries := make([]report.GroupEntry, 0, len(g.Members))
	for _, member := range g.Members {
		if nested, err := m.cfg.Group(member); err == nil {
			entries = append(entries, report.GroupEntry{
				Name:    member,
				IsGroup: true,
				Nested:  m.runMembers(ctx, nested, opts, combined),
			})
			continue
		}

		result, err := m.RunQuery(ctx, member, opts)
		if err != nil {
			m.log.Error("Group member failed", "group", g.Name, "member", member, "error", err)
			entries = append(entries, report.GroupEntry{Name: member})
			continue
		}
		combined.Union(result.IOCs)
		entries = append(entries, report.GroupEntry{
			Name:    member,
			Records: result.Report.Records,
			RunDir:  result.RunDir,
		})
	}
	return entries
}
