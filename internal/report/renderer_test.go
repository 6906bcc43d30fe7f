package report_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MalasadaTech/masq-monitor/internal/record"
	"github.com/MalasadaTech/masq-monitor/internal/report"
	"github.com/MalasadaTech/masq-monitor/internal/tlp"
)

func renderToString(t *testing.T, rep *report.Report) string {
	t.Helper()
	renderer, err := report.NewRenderer(nil, nil)
	require.NoError(t, err)

	var sb strings.Builder
	require.NoError(t, renderer.Render(&sb, rep))
	return sb.String()
}

func TestRenderQueryReport(t *testing.T) {
	t.Parallel()

	rep := &report.Report{
		Name:        "phish_kit",
		Title:       "Phish Kit Monitor",
		TLPLevel:    tlp.Amber,
		Platform:    "urlscan",
		QueryString: "page.domain:(example.com)",
		Description: "Lookalike hunting",
		Notes:       []string{"first note"},
		References:  []string{"https://example.com/advisory"},
		Tags:        []string{"phishing"},
		Username:    "analyst",
		GeneratedAt: testTime,
		Records: []record.Record{
			{Fields: map[string]any{
				"page": map[string]any{
					"url":    "https://fake.example.com/login",
					"domain": "fake.example.com",
					"server": "nginx",
				},
				"task":             map[string]any{"uuid": "abc-123", "time": "2025-03-01T11:58:00Z"},
				"defanged_url":     "hxxps://fake[.]example[.]com/login",
				"defanged_domain":  "fake[.]example[.]com",
				"local_screenshot": "images/abc-123.png",
			}},
		},
	}

	html := renderToString(t, rep)

	require.Contains(t, html, "TLP:AMBER")
	require.Contains(t, html, "Phish Kit Monitor")
	require.Contains(t, html, "2025-03-01 12:00:00")
	require.Contains(t, html, "analyst")
	require.Contains(t, html, "hxxps://fake[.]example[.]com/login")
	require.Contains(t, html, "images/abc-123.png")
	require.Contains(t, html, "https://urlscan.io/result/abc-123/")
	require.Contains(t, html, "first note")
	require.Contains(t, html, "https://example.com/advisory")
	// Blank lines are stripped from the final document.
	require.NotContains(t, html, "\n\n")
}

func TestRenderRecordTemplates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rec  record.Record
		want []string
	}{
		{
			name: "whois",
			rec: record.Record{Type: record.TypeWhois, Fields: map[string]any{
				"defanged_domain":   "evil[.]example[.]com",
				"registrar":         "Example Registrar",
				"created_formatted": "2024-06-01 00:00:00",
				"email":             "a@example.com, b@example.com",
			}},
			want: []string{"evil[.]example[.]com", "Example Registrar", "2024-06-01 00:00:00"},
		},
		{
			name: "webscan with flattened certificate",
			rec: record.Record{Type: record.TypeWebscan, Fields: map[string]any{
				"defanged_url":        "hxxps://evil[.]example[.]com/",
				"htmltitle":           "Login Portal",
				"scan_date_formatted": "2025-02-28 09:00:00",
				"ssl": map[string]any{
					"issuer": "Let's Encrypt", "issued": "2025-01-01",
					"expires": "2025-04-01", "sans_count": 2, "wildcard": false,
				},
			}},
			want: []string{"Login Portal", "Let&#39;s Encrypt", "2025-02-28 09:00:00"},
		},
		{
			name: "domain search",
			rec: record.Record{Type: record.TypeDomainSearch, Fields: map[string]any{
				"host": "a.b.com", "asn_diversity": 3, "ip_diversity_all": 7,
			}},
			want: []string{"a.b.com", "ASN diversity", "IP diversity (all)"},
		},
		{
			name: "generic dumps raw data",
			rec: record.Record{Type: record.TypeGeneric, Fields: map[string]any{
				"data_type": "generic",
				"raw_data":  map[string]any{"favicon_murmur3": "123456"},
			}},
			want: []string{"favicon_murmur3", "123456"},
		},
		{
			name: "message",
			rec:  record.Message("No valid records found in the platform response."),
			want: []string{"No valid records found in the platform response."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rep := &report.Report{
				Name:        "q",
				Title:       "Report",
				TLPLevel:    tlp.Clear,
				GeneratedAt: testTime,
				Records:     []record.Record{tt.rec},
			}
			html := renderToString(t, rep)
			for _, fragment := range tt.want {
				require.Contains(t, html, fragment)
			}
		})
	}
}

func TestRenderGroupSections(t *testing.T) {
	t.Parallel()

	rep := &report.Report{
		Name:        "brand_watch",
		Title:       "Brand Watch",
		TLPLevel:    tlp.Green,
		GeneratedAt: testTime,
		IsGroup:     true,
		Sections: []report.Section{
			{Name: "phish_kit", Type: "query", Count: 2},
			{Name: "inner", Type: "query_group", Count: 1},
		},
		Records: []record.Record{
			{Type: record.TypeWhois, Fields: map[string]any{
				"domain":       "c.com",
				"source_query": "sp_whois",
			}},
		},
	}

	html := renderToString(t, rep)

	require.Contains(t, html, "Queries in this report")
	require.Contains(t, html, "phish_kit")
	require.Contains(t, html, "query_group")
	// Flattened records carry their source query badge.
	require.Contains(t, html, "sp_whois")
}

func TestWriteFileUsesCanonicalFilename(t *testing.T) {
	t.Parallel()

	runDir := filepath.Join(t.TempDir(), "phish_kit_20250301_120000")
	require.NoError(t, os.MkdirAll(runDir, 0o755))

	renderer, err := report.NewRenderer(nil, nil)
	require.NoError(t, err)

	rep := &report.Report{
		Name:        "phish_kit",
		Title:       "Phish Kit Monitor",
		TLPLevel:    tlp.Amber,
		GeneratedAt: testTime,
	}
	path, err := renderer.WriteFile(runDir, rep)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(runDir, "report_phish_kit_20250301_120000_TLP-amber.html"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "Phish Kit Monitor")
}

func TestRenderTemplateOverride(t *testing.T) {
	t.Parallel()

	override := filepath.Join(t.TempDir(), "custom.html")
	require.NoError(t, os.WriteFile(override, []byte(
		`<html><body><h1>CUSTOM {{ .Title }}</h1>{{ range .Blocks }}{{ . }}{{ end }}</body></html>`,
	), 0o644))

	rep := &report.Report{
		Name:         "q",
		Title:        "Overridden",
		TLPLevel:     tlp.Clear,
		GeneratedAt:  testTime,
		TemplatePath: override,
		Records:      []record.Record{record.Message("hello")},
	}

	html := renderToString(t, rep)
	require.Contains(t, html, "CUSTOM Overridden")
	require.Contains(t, html, "hello")
}

func TestRenderTemplateOverrideFallsBack(t *testing.T) {
	t.Parallel()

	rep := &report.Report{
		Name:         "q",
		Title:        "Fallback",
		TLPLevel:     tlp.Clear,
		GeneratedAt:  testTime,
		TemplatePath: filepath.Join(t.TempDir(), "missing.html"),
	}

	html := renderToString(t, rep)
	// The built-in layout is used when the override cannot be loaded.
	require.Contains(t, html, "TLP:CLEAR")
	require.Contains(t, html, "Fallback")
}
