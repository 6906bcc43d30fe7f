package report_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MalasadaTech/masq-monitor/internal/record"
	"github.com/MalasadaTech/masq-monitor/internal/report"
)

func TestRegistryTemplateFor(t *testing.T) {
	t.Parallel()

	registry := report.NewRegistry()

	tests := []struct {
		name string
		rec  record.Record
		want string
	}{
		{
			name: "whois",
			rec:  record.Record{Type: record.TypeWhois, Fields: map[string]any{}},
			want: "silentpush_whois.html",
		},
		{
			name: "webscan",
			rec:  record.Record{Type: record.TypeWebscan, Fields: map[string]any{}},
			want: "silentpush_webscan.html",
		},
		{
			name: "domain search",
			rec:  record.Record{Type: record.TypeDomainSearch, Fields: map[string]any{}},
			want: "silentpush_domainsearch.html",
		},
		{
			name: "generic",
			rec:  record.Record{Type: record.TypeGeneric, Fields: map[string]any{}},
			want: "silentpush_generic.html",
		},
		{
			name: "unknown renders through the generic template",
			rec:  record.Record{Type: record.TypeUnknown, Fields: map[string]any{}},
			want: "silentpush_generic.html",
		},
		{
			name: "message",
			rec:  record.Message("nothing here"),
			want: "message.html",
		},
		{
			name: "untyped record shaped like a web-scan result",
			rec: record.Record{Fields: map[string]any{
				"page": map[string]any{"url": "https://x.example"},
				"task": map[string]any{"uuid": "abc"},
			}},
			want: "urlscan_result.html",
		},
		{
			name: "untyped record with task but no uuid",
			rec: record.Record{Fields: map[string]any{
				"page": map[string]any{},
				"task": map[string]any{},
			}},
			want: "urlscan_result.html",
		},
		{
			name: "untyped record without structure falls to default",
			rec:  record.Record{Fields: map[string]any{"x": 1}},
			want: "urlscan_result.html",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, registry.TemplateFor(tt.rec))
		})
	}
}

func TestRegistryRegister(t *testing.T) {
	t.Parallel()

	registry := report.NewRegistry()
	registry.Register(record.DataType("certstream"), "certstream.html")
	registry.RegisterPlatformDefault("default", "custom_default.html")

	rec := record.Record{Type: record.DataType("certstream"), Fields: map[string]any{}}
	require.Equal(t, "certstream.html", registry.TemplateFor(rec))

	plain := record.Record{Fields: map[string]any{}}
	require.Equal(t, "custom_default.html", registry.TemplateFor(plain))
}
