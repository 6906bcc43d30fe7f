package record

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/MalasadaTech/masq-monitor/internal/defang"
)

// displayTimeLayout is the format used for every successfully parsed date.
const displayTimeLayout = "2006-01-02 15:04:05"

// whoisDateFields are the whois keys that get a parsed "_formatted" companion.
var whoisDateFields = []string{"creation_date", "expiration_date", "created", "expires"}

// dateLayouts are tried in order against string date values after a trailing
// Z has been rewritten to +00:00.
var dateLayouts = []string{
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Normalize transforms a classified record into its template-ready form. The
// input is treated as immutable; the result is always a fresh map. Nothing in
// here returns an error: malformed values degrade to raw string fallbacks so
// one bad record can never abort a batch.
func Normalize(rec map[string]any, dt DataType) map[string]any {
	switch dt {
	case TypeWhois:
		return normalizeWhois(rec)
	case TypeWebscan:
		return normalizeWebscan(rec)
	case TypeDomainSearch:
		// Passed through untouched; the domain-search template introspects
		// raw fields directly.
		return copyFields(rec)
	default:
		return map[string]any{
			"data_type": string(TypeGeneric),
			"raw_data":  rec,
		}
	}
}

func normalizeWhois(rec map[string]any) map[string]any {
	out := make(map[string]any, len(rec)+len(whoisDateFields)+1)
	for k, v := range rec {
		out[k] = displayValue(k, v)
	}

	out["defanged_domain"] = defang.Domain(stringOf(rec["domain"]))

	for _, field := range whoisDateFields {
		v, ok := rec[field]
		if !ok {
			continue
		}
		if formatted, parsed := formatDate(v); parsed {
			out[field+"_formatted"] = formatted
		} else {
			out[field+"_formatted"] = stringOf(v)
		}
	}

	return out
}

// EnrichURLScan adds display fields to a raw web-scan platform result in
// place: defanged variants of the page URL and domain, and the run-local
// screenshot path derived from the task UUID. These results keep their
// native shape otherwise and are never classified.
func EnrichURLScan(fields map[string]any) {
	if page, ok := fields["page"].(map[string]any); ok {
		if url := stringOf(page["url"]); url != "" {
			fields["defanged_url"] = defang.URL(url)
		}
		if domain := stringOf(page["domain"]); domain != "" {
			fields["defanged_domain"] = defang.Domain(domain)
		}
	}
	if task, ok := fields["task"].(map[string]any); ok {
		if uuid := stringOf(task["uuid"]); uuid != "" {
			fields["local_screenshot"] = "images/" + uuid + ".png"
		}
	}
}

func normalizeWebscan(rec map[string]any) map[string]any {
	out := make(map[string]any, len(rec)+5)
	for k, v := range rec {
		out[k] = v
	}

	out["raw_record"] = rec
	out["defanged_domain"] = defang.Domain(stringOf(rec["domain"]))
	out["defanged_url"] = defang.URL(stringOf(rec["url"]))

	if v, ok := rec["scan_date"]; ok {
		if formatted, parsed := formatDate(v); parsed {
			out["scan_date_formatted"] = formatted
		} else {
			out["scan_date_formatted"] = stringOf(v)
		}
	}

	if ssl, ok := rec["ssl"].(map[string]any); ok {
		out["ssl"] = flattenSSL(ssl)
	}
	if geo, ok := rec["geoip"].(map[string]any); ok {
		out["geoip"] = flattenGeoIP(geo)
	}

	return out
}

// flattenSSL reduces nested certificate metadata to the handful of fields the
// webscan template shows, defaulting anything missing.
func flattenSSL(ssl map[string]any) map[string]any {
	flat := map[string]any{
		"issuer":     "N/A",
		"expires":    "N/A",
		"issued":     "N/A",
		"sans_count": 0,
		"wildcard":   false,
	}

	if v, ok := ssl["issuer"]; ok {
		if m, isMap := v.(map[string]any); isMap {
			if org := stringOf(m["organization"]); org != "" {
				flat["issuer"] = org
			} else if cn := stringOf(m["common_name"]); cn != "" {
				flat["issuer"] = cn
			}
		} else if s := stringOf(v); s != "" {
			flat["issuer"] = s
		}
	}

	if s := firstString(ssl, "expires", "not_after"); s != "" {
		flat["expires"] = s
	}
	if s := firstString(ssl, "issued", "not_before"); s != "" {
		flat["issued"] = s
	}

	if n, ok := toInt(ssl["sans_count"]); ok {
		flat["sans_count"] = n
	} else if sans, isList := ssl["sans"].([]any); isList {
		flat["sans_count"] = len(sans)
	}

	if b, ok := toBool(ssl["wildcard"]); ok {
		flat["wildcard"] = b
	}

	return flat
}

// flattenGeoIP reduces nested location metadata the same way.
func flattenGeoIP(geo map[string]any) map[string]any {
	flat := map[string]any{
		"country":   "N/A",
		"city":      "N/A",
		"isp":       "N/A",
		"asn":       0,
		"latitude":  0.0,
		"longitude": 0.0,
	}

	for _, key := range []string{"country", "city", "isp"} {
		if s := stringOf(geo[key]); s != "" {
			flat[key] = s
		}
	}
	for _, key := range []string{"asn", "latitude", "longitude"} {
		if v, ok := geo[key]; ok && v != nil {
			flat[key] = v
		}
	}

	return flat
}

// displayValue normalizes a handful of whois values for display: list-valued
// email/nameserver fields join into one string and the registry's literal
// "None" organization becomes N/A.
func displayValue(key string, v any) any {
	switch key {
	case "email", "nameserver":
		if list, ok := v.([]any); ok {
			parts := make([]string, 0, len(list))
			for _, item := range list {
				parts = append(parts, stringOf(item))
			}
			return strings.Join(parts, ", ")
		}
	case "organization":
		if s, ok := v.(string); ok && s == "None" {
			return "N/A"
		}
	}
	return v
}

// formatDate renders epoch-seconds numbers and ISO-8601 strings as
// "YYYY-MM-DD HH:MM:SS". The second return is false when the value could not
// be parsed; callers fall back to the raw string form.
func formatDate(v any) (string, bool) {
	switch t := v.(type) {
	case float64:
		return time.Unix(int64(t), 0).UTC().Format(displayTimeLayout), true
	case int:
		return time.Unix(int64(t), 0).UTC().Format(displayTimeLayout), true
	case int64:
		return time.Unix(t, 0).UTC().Format(displayTimeLayout), true
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return time.Unix(int64(f), 0).UTC().Format(displayTimeLayout), true
		}
	case string:
		s := t
		if strings.HasSuffix(s, "Z") {
			s = strings.TrimSuffix(s, "Z") + "+00:00"
		}
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.Format(displayTimeLayout), true
			}
		}
	}
	return "", false
}

func copyFields(rec map[string]any) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

// firstString returns the first non-empty string value among keys.
func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := stringOf(m[key]); s != "" {
			return s
		}
	}
	return ""
}

func stringOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i), true
		}
	}
	return 0, false
}

func toBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case float64:
		return t != 0, true
	case int:
		return t != 0, true
	}
	return false, false
}
