package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// configFile mirrors the YAML document. Queries and groups stay raw maps
// through the first pass so the legacy metadata shapes can be normalized
// during conversion.
type configFile struct {
	OutputDir           string           `yaml:"output_dir"`
	DefaultTLPLevel     string           `yaml:"default_tlp_level"`
	DefaultTemplatePath string           `yaml:"default_template_path"`
	ReportUsername      string           `yaml:"report_username"`
	DefaultDays         int              `yaml:"default_days"`
	Storage             StorageConfig    `yaml:"storage"`
	History             HistoryConfig    `yaml:"history"`
	Extensions          ExtensionsConfig `yaml:"extensions"`
	Queries             []map[string]any `yaml:"queries"`
	QueryGroups         []map[string]any `yaml:"query_groups"`
}

// Load reads, decodes and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var file configFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg := &Config{
		OutputDir:           file.OutputDir,
		DefaultTLPLevel:     file.DefaultTLPLevel,
		DefaultTemplatePath: file.DefaultTemplatePath,
		ReportUsername:      file.ReportUsername,
		DefaultDays:         file.DefaultDays,
		Storage:             file.Storage,
		History:             file.History,
		Extensions:          file.Extensions,
	}

	for _, raw := range file.Queries {
		query, convertErr := convertQuery(raw)
		if convertErr != nil {
			return nil, fmt.Errorf("failed to decode query: %w", convertErr)
		}
		cfg.Queries = append(cfg.Queries, query)
	}
	for _, raw := range file.QueryGroups {
		group, convertErr := convertGroup(raw)
		if convertErr != nil {
			return nil, fmt.Errorf("failed to decode query group: %w", convertErr)
		}
		cfg.QueryGroups = append(cfg.QueryGroups, group)
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// convertQuery decodes one raw query map, normalizing the dual-shape
// titles/notes/references fields into labeled items.
func convertQuery(raw map[string]any) (Query, error) {
	var query Query
	if err := weakDecode(raw, &query); err != nil {
		return Query{}, err
	}
	query.Titles = labeledItems(raw["titles"])
	query.Notes = labeledItems(raw["notes"])
	query.References = labeledItems(raw["references"])
	return query, nil
}

func convertGroup(raw map[string]any) (QueryGroup, error) {
	var group QueryGroup
	if err := weakDecode(raw, &group); err != nil {
		return QueryGroup{}, err
	}
	group.Titles = labeledItems(raw["titles"])
	group.Notes = labeledItems(raw["notes"])
	group.References = labeledItems(raw["references"])
	return group, nil
}

func weakDecode(raw map[string]any, result any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           result,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("failed to decode: %w", err)
	}
	return nil
}

// labeledItems accepts every historic shape of report metadata: a bare
// scalar, a list of scalars, or a list of maps carrying the text under
// value, title, text or url plus an optional tlp_level. The result is
// always a normalized list so the assembler only sees one shape.
func labeledItems(v any) []LabeledItem {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return []LabeledItem{{Value: t}}
	case []any:
		items := make([]LabeledItem, 0, len(t))
		for _, entry := range t {
			switch e := entry.(type) {
			case string:
				items = append(items, LabeledItem{Value: e})
			case map[string]any:
				items = append(items, labeledItemFromMap(e))
			}
		}
		return items
	case map[string]any:
		return []LabeledItem{labeledItemFromMap(t)}
	default:
		return []LabeledItem{{Value: fmt.Sprintf("%v", t)}}
	}
}

func labeledItemFromMap(m map[string]any) LabeledItem {
	item := LabeledItem{}
	for _, key := range []string{"value", "title", "text", "url"} {
		if v, ok := m[key].(string); ok {
			item.Value = v
			break
		}
	}
	if v, ok := m["tlp_level"].(string); ok {
		item.TLPLevel = v
	}
	return item
}

// Validate checks structural integrity: required fields, known platforms,
// unique names, resolvable group members and the absence of group cycles.
func (c *Config) Validate() error {
	if len(c.Queries) == 0 && len(c.QueryGroups) == 0 {
		return ErrNoQueries
	}

	names := make(map[string]bool, len(c.Queries)+len(c.QueryGroups))
	for i := range c.Queries {
		query := &c.Queries[i]
		if query.Name == "" {
			return fmt.Errorf("%w: query name", ErrMissingRequiredField)
		}
		if query.Query == "" {
			return fmt.Errorf("%w: query string for %q", ErrMissingRequiredField, query.Name)
		}
		if query.Platform != PlatformURLScan && query.Platform != PlatformSilentPush {
			return fmt.Errorf("%w: %q for query %q", ErrInvalidPlatform, query.Platform, query.Name)
		}
		if names[query.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateName, query.Name)
		}
		names[query.Name] = true
	}

	groups := make(map[string]*QueryGroup, len(c.QueryGroups))
	for i := range c.QueryGroups {
		group := &c.QueryGroups[i]
		if group.Name == "" {
			return fmt.Errorf("%w: group name", ErrMissingRequiredField)
		}
		if names[group.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateName, group.Name)
		}
		names[group.Name] = true
		groups[group.Name] = group
	}

	for name, group := range groups {
		for _, member := range group.Members {
			if !names[member] {
				return fmt.Errorf("%w: %q in group %q", ErrUnknownMember, member, name)
			}
		}
	}

	return c.checkGroupCycles(groups)
}

// checkGroupCycles walks every group's member graph with a visited set and
// fails fast on self-reference or mutual recursion.
func (c *Config) checkGroupCycles(groups map[string]*QueryGroup) error {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int, len(groups))

	var walk func(name string) error
	walk = func(name string) error {
		group, isGroup := groups[name]
		if !isGroup {
			return nil
		}
		switch state[name] {
		case visiting:
			return fmt.Errorf("%w: %s", ErrGroupCycle, name)
		case done:
			return nil
		}
		state[name] = visiting
		for _, member := range group.Members {
			if err := walk(member); err != nil {
				return err
			}
		}
		state[name] = done
		return nil
	}

	for name := range groups {
		if err := walk(name); err != nil {
			return err
		}
	}
	return nil
}
