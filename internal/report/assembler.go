package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MalasadaTech/masq-monitor/internal/config"
	"github.com/MalasadaTech/masq-monitor/internal/logger"
	"github.com/MalasadaTech/masq-monitor/internal/record"
	"github.com/MalasadaTech/masq-monitor/internal/tlp"
)

// Synthetic message texts emitted when a platform response carries no
// renderable records.
const (
	msgNoRecords         = "No valid records found in the platform response."
	msgNoRecordList      = "Platform response does not contain a valid list of scan records."
	msgMissingStructure  = "Platform response does not contain the expected scan data structure."
	msgUnrecognizedShape = "Unrecognized platform response format."
)

// Assembler builds renderable reports from raw platform payloads. It owns
// classification and normalization of intelligence-platform records and all
// report-level TLP filtering.
type Assembler struct {
	cfg        *config.Config
	classifier *record.Classifier
	log        logger.Interface
}

// NewAssembler builds an assembler over the loaded configuration. A nil
// logger disables logging.
func NewAssembler(cfg *config.Config, log logger.Interface) *Assembler {
	if log == nil {
		log = logger.NewNoOp()
	}
	return &Assembler{
		cfg:        cfg,
		classifier: record.NewClassifier(),
		log:        log,
	}
}

// GroupEntry is one resolved member of a query group, produced by the monitor
// before group assembly. Leaf queries carry their processed records and the
// run directory their screenshots were downloaded into; nested groups carry
// their own entries.
type GroupEntry struct {
	Name    string
	IsGroup bool
	Records []record.Record
	RunDir  string
	Nested  []GroupEntry
}

// AssembleQuery builds the report for a single query from a raw platform
// payload. requested optionally overrides the TLP level; now stamps the
// generation time.
func (a *Assembler) AssembleQuery(q *config.Query, raw any, requested string, now time.Time) *Report {
	level := tlp.DetermineReportLevel(requested, q.DefaultTLPLevel, a.cfg.DefaultTLPLevel)

	rep := &Report{
		Name:         q.Name,
		TLPLevel:     level,
		Platform:     q.Platform,
		Username:     a.cfg.ReportUsername,
		GeneratedAt:  now,
		Records:      a.ProcessResults(q, raw),
		TemplatePath: a.templatePath(q.TemplatePath),
	}
	a.applyQueryMetadata(rep, q, level)

	a.log.Debug("assembled query report",
		"query", q.Name, "tlp_level", string(level), "records", len(rep.Records))
	return rep
}

// AssembleGroup builds the combined report for a query group. Entries are
// flattened depth-first in declaration order; every leaf record is stamped
// with its source query and screenshots are copied best-effort into the group
// run directory so the report is self-contained. runDir may be empty for a
// dry assembly without screenshot copying.
func (a *Assembler) AssembleGroup(g *config.QueryGroup, entries []GroupEntry, requested string, runDir string, now time.Time) *Report {
	level := tlp.DetermineReportLevel(requested, g.DefaultTLPLevel, a.cfg.DefaultTLPLevel)

	rep := &Report{
		Name:         g.Name,
		TLPLevel:     level,
		Username:     a.cfg.ReportUsername,
		GeneratedAt:  now,
		IsGroup:      true,
		TemplatePath: a.templatePath(""),
	}
	a.applyGroupMetadata(rep, g, level)

	var imgDir string
	if runDir != "" {
		imgDir = filepath.Join(runDir, "images")
		if err := os.MkdirAll(imgDir, 0o755); err != nil {
			a.log.Warn("failed to create group image directory", "path", imgDir, "error", err)
			imgDir = ""
		}
	}

	for _, entry := range entries {
		section := Section{Name: entry.Name, Type: "query", Count: len(entry.Records)}
		if entry.IsGroup {
			section.Type = "query_group"
			section.Count = countRecords(entry.Nested)
		}
		rep.Sections = append(rep.Sections, section)
		a.flatten(entry, imgDir, &rep.Records)
	}

	a.log.Debug("assembled group report",
		"group", g.Name, "tlp_level", string(level),
		"sections", len(rep.Sections), "records", len(rep.Records))
	return rep
}

// ProcessResults turns a raw platform payload into the final record list.
// Intelligence-platform records are classified and normalized; web-scan
// results keep their native shape and only gain defanged and screenshot
// fields. Unrecognized payload shapes degrade to a single message record,
// never an error.
func (a *Assembler) ProcessResults(q *config.Query, raw any) []record.Record {
	if q.Platform == config.PlatformSilentPush {
		return a.processScandata(raw)
	}
	return a.processURLScan(raw)
}

func (a *Assembler) processScandata(raw any) []record.Record {
	switch payload := raw.(type) {
	case map[string]any:
		outer, ok := payload["response"].(map[string]any)
		if !ok {
			return []record.Record{record.Message(msgMissingStructure)}
		}
		inner, ok := outer["response"].(map[string]any)
		if !ok {
			return []record.Record{record.Message(msgMissingStructure)}
		}
		list, ok := inner["scandata_raw"].([]any)
		if !ok {
			return []record.Record{record.Message(msgNoRecordList)}
		}
		records := a.classifyAll(list)
		if len(records) == 0 {
			return []record.Record{record.Message(msgNoRecords)}
		}
		return records
	case []any:
		return a.classifyAll(payload)
	case nil:
		return []record.Record{record.Message(msgNoRecords)}
	default:
		return []record.Record{record.Message(msgUnrecognizedShape)}
	}
}

func (a *Assembler) classifyAll(list []any) []record.Record {
	records := make([]record.Record, 0, len(list))
	for _, entry := range list {
		dt := a.classifier.Classify(entry)
		fields, ok := entry.(map[string]any)
		if !ok {
			records = append(records, record.Record{
				Type: dt,
				Fields: map[string]any{
					"data_type": string(record.TypeGeneric),
					"raw_data":  entry,
				},
			})
			continue
		}
		records = append(records, record.Record{Type: dt, Fields: record.Normalize(fields, dt)})
	}
	return records
}

// processURLScan keeps web-scan results as-is, adding defanged variants of
// the page URL and domain plus the run-local screenshot path.
func (a *Assembler) processURLScan(raw any) []record.Record {
	list, ok := raw.([]any)
	if !ok {
		if payload, isMap := raw.(map[string]any); isMap {
			list, ok = payload["results"].([]any)
		}
		if !ok {
			return []record.Record{record.Message(msgUnrecognizedShape)}
		}
	}

	records := make([]record.Record, 0, len(list))
	for _, entry := range list {
		fields, isMap := entry.(map[string]any)
		if !isMap {
			continue
		}
		record.EnrichURLScan(fields)
		records = append(records, record.Record{Fields: fields})
	}
	return records
}

// flatten appends entry's records (and its nested groups' records,
// depth-first) to out, stamping source_query and relocating screenshots.
func (a *Assembler) flatten(entry GroupEntry, imgDir string, out *[]record.Record) {
	if entry.IsGroup {
		for _, nested := range entry.Nested {
			a.flatten(nested, imgDir, out)
		}
		return
	}
	for _, rec := range entry.Records {
		if imgDir != "" {
			a.copyScreenshot(rec, entry.RunDir, imgDir)
		}
		rec.Fields["source_query"] = entry.Name
		*out = append(*out, rec)
	}
}

// copyScreenshot relocates one record's screenshot from its member run
// directory into the group image directory. Failures are logged and the
// record keeps its relative path either way.
func (a *Assembler) copyScreenshot(rec record.Record, srcRunDir, imgDir string) {
	rel, ok := rec.Fields["local_screenshot"].(string)
	if !ok || rel == "" || srcRunDir == "" {
		return
	}
	task, ok := rec.Fields["task"].(map[string]any)
	if !ok {
		return
	}
	uuid, ok := task["uuid"].(string)
	if !ok || uuid == "" {
		return
	}

	src := filepath.Join(srcRunDir, filepath.FromSlash(rel))
	data, err := os.ReadFile(src)
	if err != nil {
		a.log.Warn("failed to read screenshot for group report", "uuid", uuid, "error", err)
		return
	}
	dest := filepath.Join(imgDir, uuid+".png")
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		a.log.Warn("failed to copy screenshot into group report", "uuid", uuid, "error", err)
		return
	}
	rec.Fields["local_screenshot"] = "images/" + uuid + ".png"
}

func countRecords(entries []GroupEntry) int {
	total := 0
	for _, entry := range entries {
		if entry.IsGroup {
			total += countRecords(entry.Nested)
			continue
		}
		total += len(entry.Records)
	}
	return total
}

// applyQueryMetadata resolves the title and filters every metadata category
// down to what the report's TLP level may show. Items without their own level
// inherit the query default.
func (a *Assembler) applyQueryMetadata(rep *Report, q *config.Query, level tlp.Level) {
	reportLevel := string(level)
	defaultLevel := q.DefaultTLPLevel
	if defaultLevel == "" {
		defaultLevel = reportLevel
	}

	rep.Title = resolveTitle(q.Name, q.Titles, defaultLevel, reportLevel)
	rep.Notes = visibleValues(q.Notes, defaultLevel, reportLevel)
	rep.References = visibleValues(q.References, defaultLevel, reportLevel)
	if tlp.IsVisible(orDefault(q.TagsTLPLevel, defaultLevel), reportLevel) {
		rep.Tags = q.Tags
	}
	if tlp.IsVisible(orDefault(q.DescriptionTLPLevel, reportLevel), reportLevel) {
		rep.Description = q.Description
	}
	if tlp.IsVisible(orDefault(q.QueryTLPLevel, reportLevel), reportLevel) {
		rep.QueryString = q.Query
	}
	if tlp.IsVisible(orDefault(q.FrequencyTLPLevel, defaultLevel), reportLevel) {
		rep.Frequency = orDefault(q.Frequency, "N/A")
	}
	if tlp.IsVisible(orDefault(q.PriorityTLPLevel, defaultLevel), reportLevel) {
		rep.Priority = orDefault(q.Priority, "N/A")
	}
}

func (a *Assembler) applyGroupMetadata(rep *Report, g *config.QueryGroup, level tlp.Level) {
	reportLevel := string(level)
	defaultLevel := g.DefaultTLPLevel
	if defaultLevel == "" {
		defaultLevel = reportLevel
	}

	rep.Title = resolveTitle(g.Name, g.Titles, defaultLevel, reportLevel)
	rep.Notes = visibleValues(g.Notes, defaultLevel, reportLevel)
	rep.References = visibleValues(g.References, defaultLevel, reportLevel)
	if tlp.IsVisible(orDefault(g.TagsTLPLevel, defaultLevel), reportLevel) {
		rep.Tags = g.Tags
	}
	rep.Description = g.Description
}

// resolveTitle picks the first visible title, falling back to the synthesized
// default when none is configured or none is visible.
func resolveTitle(name string, titles []config.LabeledItem, defaultLevel, reportLevel string) string {
	for _, item := range titles {
		if tlp.IsVisible(orDefault(item.TLPLevel, defaultLevel), reportLevel) {
			return item.Value
		}
	}
	return fmt.Sprintf("Masquerade Monitor Report - %s", name)
}

func visibleValues(items []config.LabeledItem, defaultLevel, reportLevel string) []string {
	var values []string
	for _, item := range items {
		if tlp.IsVisible(orDefault(item.TLPLevel, defaultLevel), reportLevel) {
			values = append(values, item.Value)
		}
	}
	return values
}

func (a *Assembler) templatePath(queryPath string) string {
	if queryPath != "" {
		return queryPath
	}
	return a.cfg.DefaultTemplatePath
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
