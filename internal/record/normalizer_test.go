package record_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MalasadaTech/masq-monitor/internal/record"
)

func TestNormalizeWhois(t *testing.T) {
	t.Parallel()

	in := map[string]any{
		"domain":        "evil.example.com",
		"registrar":     "Example Registrar",
		"creation_date": "2024-03-01T10:20:30Z",
		"expires":       float64(1717200000),
		"email":         []any{"a@example.com", "b@example.com"},
		"nameserver":    []any{"ns1.example.com"},
		"organization":  "None",
	}

	out := record.Normalize(in, record.TypeWhois)

	require.Equal(t, "evil[.]example[.]com", out["defanged_domain"])
	require.Equal(t, "2024-03-01 10:20:30", out["creation_date_formatted"])
	require.Equal(t, "2024-06-01 00:00:00", out["expires_formatted"])
	require.Equal(t, "a@example.com, b@example.com", out["email"])
	require.Equal(t, "ns1.example.com", out["nameserver"])
	require.Equal(t, "N/A", out["organization"])
	require.Equal(t, "Example Registrar", out["registrar"])

	// Input must stay untouched.
	require.Equal(t, []any{"a@example.com", "b@example.com"}, in["email"])
	require.NotContains(t, in, "defanged_domain")
}

func TestNormalizeWhoisDateFallback(t *testing.T) {
	t.Parallel()

	out := record.Normalize(map[string]any{
		"domain":        "x.test",
		"creation_date": "not-a-date",
	}, record.TypeWhois)

	require.Equal(t, "not-a-date", out["creation_date_formatted"])
}

func TestNormalizeWhoisMissingDomain(t *testing.T) {
	t.Parallel()

	out := record.Normalize(map[string]any{"registrar": "R"}, record.TypeWhois)
	require.Equal(t, "", out["defanged_domain"])
}

func TestNormalizeWebscan(t *testing.T) {
	t.Parallel()

	in := map[string]any{
		"domain":    "evil.example.com",
		"url":       "https://evil.example.com/login",
		"scan_date": "2025-02-03T04:05:06Z",
		"htmltitle": "Fake Login",
	}

	out := record.Normalize(in, record.TypeWebscan)

	require.Equal(t, "evil[.]example[.]com", out["defanged_domain"])
	require.Equal(t, "hxxps://evil[.]example[.]com/login", out["defanged_url"])
	require.Equal(t, "2025-02-03 04:05:06", out["scan_date_formatted"])
	require.Equal(t, "Fake Login", out["htmltitle"])

	raw, ok := out["raw_record"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "https://evil.example.com/login", raw["url"])
}

func TestNormalizeWebscanSSLFlatten(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ssl  map[string]any
		want map[string]any
	}{
		{
			name: "full certificate",
			ssl: map[string]any{
				"issuer":     map[string]any{"organization": "Let's Encrypt"},
				"not_after":  "2025-06-01",
				"not_before": "2025-03-01",
				"sans":       []any{"a.test", "b.test"},
				"wildcard":   float64(1),
			},
			want: map[string]any{
				"issuer":     "Let's Encrypt",
				"expires":    "2025-06-01",
				"issued":     "2025-03-01",
				"sans_count": 2,
				"wildcard":   true,
			},
		},
		{
			name: "empty certificate defaults",
			ssl:  map[string]any{},
			want: map[string]any{
				"issuer":     "N/A",
				"expires":    "N/A",
				"issued":     "N/A",
				"sans_count": 0,
				"wildcard":   false,
			},
		},
		{
			name: "string issuer and explicit count",
			ssl: map[string]any{
				"issuer":     "DigiCert Inc",
				"expires":    "2026-01-01",
				"sans_count": float64(5),
			},
			want: map[string]any{
				"issuer":     "DigiCert Inc",
				"expires":    "2026-01-01",
				"issued":     "N/A",
				"sans_count": 5,
				"wildcard":   false,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := record.Normalize(map[string]any{
				"url": "https://x.test",
				"ssl": tt.ssl,
			}, record.TypeWebscan)
			require.Equal(t, tt.want, out["ssl"])
		})
	}
}

func TestNormalizeWebscanGeoIPFlatten(t *testing.T) {
	t.Parallel()

	out := record.Normalize(map[string]any{
		"url": "https://x.test",
		"geoip": map[string]any{
			"country":  "NL",
			"asn":      float64(13335),
			"latitude": 52.37,
		},
	}, record.TypeWebscan)

	geo, ok := out["geoip"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "NL", geo["country"])
	require.Equal(t, "N/A", geo["city"])
	require.Equal(t, "N/A", geo["isp"])
	require.Equal(t, float64(13335), geo["asn"])
	require.Equal(t, 52.37, geo["latitude"])
	require.Equal(t, 0.0, geo["longitude"])
}

func TestNormalizeWebscanNonMapSSLIgnored(t *testing.T) {
	t.Parallel()

	out := record.Normalize(map[string]any{
		"url": "https://x.test",
		"ssl": "enabled",
	}, record.TypeWebscan)

	require.Equal(t, "enabled", out["ssl"])
}

func TestNormalizeDomainSearchPassthrough(t *testing.T) {
	t.Parallel()

	in := map[string]any{"host": "a.b.com", "asn_diversity": float64(3)}
	out := record.Normalize(in, record.TypeDomainSearch)

	require.Equal(t, in, out)
	require.NotContains(t, out, "defanged_domain")
	require.NotContains(t, out, "raw_record")
}

func TestNormalizeGenericWrap(t *testing.T) {
	t.Parallel()

	in := map[string]any{"something": "else"}

	for _, dt := range []record.DataType{record.TypeGeneric, record.TypeUnknown} {
		out := record.Normalize(in, dt)
		require.Equal(t, "generic", out["data_type"])
		require.Equal(t, in, out["raw_data"])
	}
}

func TestNormalizeEpochDates(t *testing.T) {
	t.Parallel()

	out := record.Normalize(map[string]any{
		"domain":  "x.test",
		"created": float64(0),
	}, record.TypeWhois)

	require.Equal(t, "1970-01-01 00:00:00", out["created_formatted"])
}

func TestMessage(t *testing.T) {
	t.Parallel()

	msg := record.Message("No valid records found in the platform response.")
	require.Equal(t, record.TypeMessage, msg.Type)
	require.Equal(t, "message", msg.Fields["data_type"])
	require.Equal(t, "No valid records found in the platform response.", msg.Fields["message"])
}
