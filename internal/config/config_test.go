package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MalasadaTech/masq-monitor/internal/config"
	"github.com/MalasadaTech/masq-monitor/internal/tlp"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const fullConfig = `
output_dir: out
default_tlp_level: amber
report_username: analyst
default_days: 7
storage:
  enabled: true
  url: http://localhost:9200
queries:
  - name: phish_kit
    description: Masquerade kit lookalikes
    query: 'page.domain:(example.com)'
    platform: urlscan
    default_tlp_level: amber
    frequency: daily
    titles:
      - value: Phish Kit Monitor
        tlp_level: clear
      - value: Internal Phish Hunt
        tlp_level: red
    notes:
      - value: Hunting pivot
        tlp_level: amber
    references:
      - url: https://example.com/advisory
        tlp_level: green
    tags: [phishing, masquerade]
    tags_tlp_level: green
  - name: sp_whois
    query: 'domain = "example.com"'
    platform: silentpush
query_groups:
  - name: brand_watch
    members: [phish_kit, sp_whois]
    titles:
      - value: Brand Watch
        tlp_level: clear
`

func TestLoad(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(writeConfig(t, fullConfig))
	require.NoError(t, err)

	require.Equal(t, "out", cfg.OutputDir)
	require.Equal(t, "amber", cfg.DefaultTLPLevel)
	require.Equal(t, 7, cfg.DefaultDays)
	require.True(t, cfg.Storage.Enabled)
	require.Equal(t, "masq-monitor-records", cfg.Storage.Index)
	require.Equal(t, filepath.Join("out", "masq-monitor.db"), cfg.History.Path)

	require.Len(t, cfg.Queries, 2)
	query := cfg.Queries[0]
	require.Equal(t, "phish_kit", query.Name)
	require.Equal(t, "urlscan", query.Platform)
	require.Equal(t, []config.LabeledItem{
		{Value: "Phish Kit Monitor", TLPLevel: "clear"},
		{Value: "Internal Phish Hunt", TLPLevel: "red"},
	}, query.Titles)
	require.Equal(t, []config.LabeledItem{{Value: "https://example.com/advisory", TLPLevel: "green"}}, query.References)
	require.Equal(t, []string{"phishing", "masquerade"}, query.Tags)
	require.Equal(t, "green", query.TagsTLPLevel)

	require.Len(t, cfg.QueryGroups, 1)
	require.Equal(t, []string{"phish_kit", "sp_whois"}, cfg.QueryGroups[0].Members)
}

func TestLoadLegacyMetadataShapes(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(writeConfig(t, `
queries:
  - name: legacy
    query: 'page.domain:(example.com)'
    titles: Plain Title
    notes: [first note, second note]
    references: https://example.com/one
`))
	require.NoError(t, err)

	query := cfg.Queries[0]
	require.Equal(t, []config.LabeledItem{{Value: "Plain Title"}}, query.Titles)
	require.Equal(t, []config.LabeledItem{
		{Value: "first note"},
		{Value: "second note"},
	}, query.Notes)
	require.Equal(t, []config.LabeledItem{{Value: "https://example.com/one"}}, query.References)
}

func TestLoadNativeMetadataKeys(t *testing.T) {
	t.Parallel()

	// Titles use "title", notes use "text" and references use "url" in
	// configs written against the documented schema; all collapse to the
	// same labeled item shape.
	cfg, err := config.Load(writeConfig(t, `
queries:
  - name: native
    query: 'page.domain:(example.com)'
    description_tlp_level: amber
    query_tlp_level: red
    titles:
      - title: Kit Tracker
        tlp_level: green
    notes:
      - text: Shared with the IR channel
        tlp_level: amber
    references:
      - url: https://example.com/two
`))
	require.NoError(t, err)

	query := cfg.Queries[0]
	require.Equal(t, []config.LabeledItem{{Value: "Kit Tracker", TLPLevel: "green"}}, query.Titles)
	require.Equal(t, []config.LabeledItem{{Value: "Shared with the IR channel", TLPLevel: "amber"}}, query.Notes)
	require.Equal(t, []config.LabeledItem{{Value: "https://example.com/two"}}, query.References)
	require.Equal(t, "amber", query.DescriptionTLPLevel)
	require.Equal(t, "red", query.QueryTLPLevel)
}

func TestHighestTLPLevel(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(writeConfig(t, fullConfig))
	require.NoError(t, err)

	query, err := cfg.Query("phish_kit")
	require.NoError(t, err)
	// The red internal title outranks everything else on the query.
	require.Equal(t, tlp.Red, query.HighestTLPLevel())

	other, err := cfg.Query("sp_whois")
	require.NoError(t, err)
	require.Equal(t, tlp.Clear, other.HighestTLPLevel())

	group, err := cfg.Group("brand_watch")
	require.NoError(t, err)
	require.Equal(t, tlp.Clear, group.HighestTLPLevel())
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(writeConfig(t, `
queries:
  - name: q1
    query: 'page.domain:(example.com)'
`))
	require.NoError(t, err)

	require.Equal(t, "output", cfg.OutputDir)
	require.Equal(t, "urlscan", cfg.Queries[0].Platform)
	require.Equal(t, filepath.Join("output", "masq-monitor.db"), cfg.History.Path)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "empty config",
			content: `output_dir: out`,
			wantErr: config.ErrNoQueries,
		},
		{
			name: "missing query name",
			content: `
queries:
  - query: 'x'
`,
			wantErr: config.ErrMissingRequiredField,
		},
		{
			name: "missing query string",
			content: `
queries:
  - name: q1
`,
			wantErr: config.ErrMissingRequiredField,
		},
		{
			name: "invalid platform",
			content: `
queries:
  - name: q1
    query: 'x'
    platform: shodan
`,
			wantErr: config.ErrInvalidPlatform,
		},
		{
			name: "duplicate names",
			content: `
queries:
  - name: q1
    query: 'x'
  - name: q1
    query: 'y'
`,
			wantErr: config.ErrDuplicateName,
		},
		{
			name: "unknown group member",
			content: `
queries:
  - name: q1
    query: 'x'
query_groups:
  - name: g1
    members: [q1, ghost]
`,
			wantErr: config.ErrUnknownMember,
		},
		{
			name: "self-referencing group",
			content: `
queries:
  - name: q1
    query: 'x'
query_groups:
  - name: g1
    members: [q1, g1]
`,
			wantErr: config.ErrGroupCycle,
		},
		{
			name: "mutually recursive groups",
			content: `
queries:
  - name: q1
    query: 'x'
query_groups:
  - name: g1
    members: [g2]
  - name: g2
    members: [g1, q1]
`,
			wantErr: config.ErrGroupCycle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.Load(writeConfig(t, tt.content))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestQueryAndGroupLookup(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(writeConfig(t, fullConfig))
	require.NoError(t, err)

	query, err := cfg.Query("sp_whois")
	require.NoError(t, err)
	require.Equal(t, "silentpush", query.Platform)

	_, err = cfg.Query("ghost")
	require.ErrorIs(t, err, config.ErrQueryNotFound)

	group, err := cfg.Group("brand_watch")
	require.NoError(t, err)
	require.Len(t, group.Members, 2)

	_, err = cfg.Group("ghost")
	require.ErrorIs(t, err, config.ErrGroupNotFound)

	require.True(t, cfg.IsGroup("brand_watch"))
	require.False(t, cfg.IsGroup("phish_kit"))
}

func TestNestedGroupsValid(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(writeConfig(t, `
queries:
  - name: q1
    query: 'x'
  - name: q2
    query: 'y'
query_groups:
  - name: inner
    members: [q1]
  - name: outer
    members: [inner, q2]
`))
	require.NoError(t, err)
	require.Len(t, cfg.QueryGroups, 2)
}
