package record

import (
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// Indicator substrings used by the keyword-scoring fallback. A field name
// containing any webscan indicator counts toward the webscan score, and
// likewise for whois.
var (
	webscanIndicators = []string{"favicon", "html", "header", "body_analysis", "ssl"}
	whoisIndicators   = []string{"registrar", "nameserver", "emails"}
)

// Classifier assigns a DataType to raw platform records. It trusts explicit
// vendor type hints first, then structural fingerprints, then falls back to
// keyword scoring over field names.
type Classifier struct {
	webscanMatcher *ahocorasick.Matcher
	whoisMatcher   *ahocorasick.Matcher
}

// NewClassifier creates a classifier with the built-in indicator sets.
func NewClassifier() *Classifier {
	return &Classifier{
		webscanMatcher: ahocorasick.NewStringMatcher(webscanIndicators),
		whoisMatcher:   ahocorasick.NewStringMatcher(whoisIndicators),
	}
}

// Classify maps a decoded JSON value to exactly one DataType. It is total:
// any input, including non-object values, yields a type, with TypeUnknown as
// the catch-all. The priority order is fixed - an explicit datasource hint
// beats structural checks, which beat keyword scoring.
func (c *Classifier) Classify(v any) DataType {
	rec, ok := v.(map[string]any)
	if !ok || rec == nil {
		return TypeUnknown
	}

	if ds, found := rec["datasource"]; found {
		switch strings.ToLower(stringOf(ds)) {
		case "webscan", "torscan":
			return TypeWebscan
		case "whois":
			return TypeWhois
		}
	}

	switch {
	case hasKey(rec, "host") && (hasKey(rec, "asn_diversity") || hasKey(rec, "ip_diversity_all")):
		return TypeDomainSearch
	case hasKey(rec, "registrar") && hasKey(rec, "domain") && (hasKey(rec, "name") || hasKey(rec, "organization")):
		return TypeWhois
	case hasKey(rec, "url") && hasKey(rec, "html_body_sha256"):
		return TypeWebscan
	case hasKey(rec, "url") && hasKey(rec, "htmltitle"):
		return TypeWebscan
	case hasKey(rec, "domain") && hasKey(rec, "scan_date") && hasKey(rec, "created"):
		return TypeWhois
	}

	return c.scoreFieldNames(rec)
}

// scoreFieldNames counts field names hitting each indicator family. A
// strictly higher score wins; ties (including zero-zero) stay unknown.
func (c *Classifier) scoreFieldNames(rec map[string]any) DataType {
	var webscanScore, whoisScore int
	for key := range rec {
		name := []byte(key)
		if len(c.webscanMatcher.Match(name)) > 0 {
			webscanScore++
		}
		if len(c.whoisMatcher.Match(name)) > 0 {
			whoisScore++
		}
	}

	switch {
	case webscanScore > whoisScore:
		return TypeWebscan
	case whoisScore > webscanScore:
		return TypeWhois
	default:
		return TypeUnknown
	}
}

func hasKey(rec map[string]any, key string) bool {
	_, ok := rec[key]
	return ok
}
