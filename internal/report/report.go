// Package report turns classified platform results into TLP-filtered HTML
// reports. The assembler resolves report-level metadata visibility and
// flattens query groups; the renderer picks a template per record through the
// registry and writes the final document.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/MalasadaTech/masq-monitor/internal/record"
	"github.com/MalasadaTech/masq-monitor/internal/tlp"
)

// Section summarizes one top-level group member for the report header.
type Section struct {
	Name string
	// Type is "query" for a leaf query or "query_group" for a nested group.
	Type  string
	Count int
}

// Report is the fully resolved input to the renderer. Every field has
// already passed TLP filtering; the renderer shows what is here and nothing
// else.
type Report struct {
	Name     string
	Title    string
	TLPLevel tlp.Level
	Platform string
	// QueryString, Description, Frequency and Priority are empty when their
	// configured TLP level hides them at this report's level.
	QueryString string
	Description string
	Frequency   string
	Priority    string
	Notes       []string
	References  []string
	Tags        []string
	Username    string
	GeneratedAt time.Time
	Records     []record.Record
	IsGroup     bool
	Sections    []Section
	// TemplatePath optionally points at an on-disk override for the outer
	// report template. Empty selects the built-in.
	TemplatePath string
}

// Filename builds the report file name for a run directory, embedding the
// directory's timestamp suffix and the report TLP level:
// report_<name>_<suffix>_TLP-<level>.html.
func Filename(name, runDirBase string, level tlp.Level) string {
	suffix := strings.TrimPrefix(runDirBase, name+"_")
	if suffix == runDirBase {
		if i := strings.Index(runDirBase, "_"); i >= 0 {
			suffix = runDirBase[i+1:]
		}
	}
	return fmt.Sprintf("report_%s_%s_TLP-%s.html", name, suffix, level)
}
