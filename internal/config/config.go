// Package config loads and validates the monitor's YAML configuration:
// global defaults, saved queries and nested query groups. API keys never live
// here; they come from the environment.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/MalasadaTech/masq-monitor/internal/tlp"
)

// Supported platform identifiers.
const (
	PlatformURLScan    = "urlscan"
	PlatformSilentPush = "silentpush"
)

// Config is the root configuration.
type Config struct {
	OutputDir           string           `mapstructure:"output_dir"`
	DefaultTLPLevel     string           `mapstructure:"default_tlp_level"`
	DefaultTemplatePath string           `mapstructure:"default_template_path"`
	ReportUsername      string           `mapstructure:"report_username"`
	DefaultDays         int              `mapstructure:"default_days"`
	Storage             StorageConfig    `mapstructure:"storage"`
	History             HistoryConfig    `mapstructure:"history"`
	Extensions          ExtensionsConfig `mapstructure:"extensions"`
	Queries             []Query          `mapstructure:"queries"`
	QueryGroups         []QueryGroup     `mapstructure:"query_groups"`
}

// StorageConfig configures the optional Elasticsearch sink for normalized
// records.
type StorageConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	URL     string `mapstructure:"url" yaml:"url"`
	Index   string `mapstructure:"index" yaml:"index"`
}

// HistoryConfig configures the sqlite run ledger.
type HistoryConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// ExtensionsConfig selects the post-run hooks fired after each run.
type ExtensionsConfig struct {
	// GTM enables the built-in Google Tag Manager DOM extractor.
	GTM bool `mapstructure:"gtm" yaml:"gtm"`
	// Commands are external hooks executed with the run directory as their
	// final argument.
	Commands []CommandConfig `mapstructure:"commands" yaml:"commands"`
}

// CommandConfig is one external post-run command.
type CommandConfig struct {
	Name string   `mapstructure:"name" yaml:"name"`
	Args []string `mapstructure:"args" yaml:"args"`
}

// LabeledItem is a piece of report metadata paired with a TLP level. An empty
// TLPLevel inherits the owning query's default at filter time.
type LabeledItem struct {
	Value    string
	TLPLevel string
}

// Query is one saved platform search.
type Query struct {
	Name            string        `mapstructure:"name"`
	Description     string        `mapstructure:"description"`
	Query           string        `mapstructure:"query"`
	Platform        string        `mapstructure:"platform"`
	DefaultTLPLevel string        `mapstructure:"default_tlp_level"`
	Frequency       string        `mapstructure:"frequency"`
	Priority        string        `mapstructure:"priority"`
	Titles          []LabeledItem `mapstructure:"-"`
	Notes           []LabeledItem `mapstructure:"-"`
	References      []LabeledItem `mapstructure:"-"`
	Tags            []string      `mapstructure:"tags"`
	TagsTLPLevel    string        `mapstructure:"tags_tlp_level"`
	// The *_tlp_level fields gate whether the matching attribute is shown in
	// a report at a given level. Empty means always visible.
	DescriptionTLPLevel string `mapstructure:"description_tlp_level"`
	QueryTLPLevel       string `mapstructure:"query_tlp_level"`
	FrequencyTLPLevel   string `mapstructure:"frequency_tlp_level"`
	PriorityTLPLevel    string `mapstructure:"priority_tlp_level"`
	TemplatePath        string `mapstructure:"template_path"`
	Endpoint            string `mapstructure:"endpoint"`
	// LastRun is a legacy field kept for configs that recorded run times
	// in-file; the sqlite history store is authoritative now.
	LastRun string `mapstructure:"last_run"`
}

// QueryGroup is a named ordered list of query or group names whose results
// are assembled into one combined report. Groups nest arbitrarily deep;
// cycles are rejected at load time.
type QueryGroup struct {
	Name            string        `mapstructure:"name"`
	Description     string        `mapstructure:"description"`
	Members         []string      `mapstructure:"members"`
	DefaultTLPLevel string        `mapstructure:"default_tlp_level"`
	Titles          []LabeledItem `mapstructure:"-"`
	Notes           []LabeledItem `mapstructure:"-"`
	References      []LabeledItem `mapstructure:"-"`
	Tags            []string      `mapstructure:"tags"`
	TagsTLPLevel    string        `mapstructure:"tags_tlp_level"`
}

// Query returns the named query.
func (c *Config) Query(name string) (*Query, error) {
	for i := range c.Queries {
		if c.Queries[i].Name == name {
			return &c.Queries[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrQueryNotFound, name)
}

// Group returns the named query group.
func (c *Config) Group(name string) (*QueryGroup, error) {
	for i := range c.QueryGroups {
		if c.QueryGroups[i].Name == name {
			return &c.QueryGroups[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, name)
}

// IsGroup reports whether name refers to a configured group.
func (c *Config) IsGroup(name string) bool {
	_, err := c.Group(name)
	return err == nil
}

// HighestTLPLevel returns the most restrictive level attached to any of the
// query's metadata, so listings can flag what a full-clearance report would
// expose.
func (q *Query) HighestTLPLevel() tlp.Level {
	levels := []string{
		q.DefaultTLPLevel, q.TagsTLPLevel,
		q.DescriptionTLPLevel, q.QueryTLPLevel,
		q.FrequencyTLPLevel, q.PriorityTLPLevel,
	}
	return highestLevel(levels, q.Titles, q.Notes, q.References)
}

// HighestTLPLevel is the group analogue; it does not descend into members.
func (g *QueryGroup) HighestTLPLevel() tlp.Level {
	levels := []string{g.DefaultTLPLevel, g.TagsTLPLevel}
	return highestLevel(levels, g.Titles, g.Notes, g.References)
}

func highestLevel(levels []string, itemLists ...[]LabeledItem) tlp.Level {
	highest := tlp.Clear
	consider := func(raw string) {
		level, ok := tlp.Normalize(raw)
		if !ok {
			return
		}
		if tlp.ItemRank(string(level)) > tlp.ItemRank(string(highest)) {
			highest = level
		}
	}
	for _, raw := range levels {
		consider(raw)
	}
	for _, items := range itemLists {
		for _, item := range items {
			consider(item.TLPLevel)
		}
	}
	return highest
}

// setDefaults fills unset fields after decoding.
func (c *Config) setDefaults() {
	if c.OutputDir == "" {
		c.OutputDir = "output"
	}
	if c.Storage.Index == "" {
		c.Storage.Index = "masq-monitor-records"
	}
	if c.History.Path == "" {
		c.History.Path = filepath.Join(c.OutputDir, "masq-monitor.db")
	}
	for i := range c.Queries {
		if c.Queries[i].Platform == "" {
			c.Queries[i].Platform = PlatformURLScan
		}
	}
}
