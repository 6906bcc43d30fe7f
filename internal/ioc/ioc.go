// Package ioc collects indicators of compromise from raw platform results
// into deduplicated, union-combinable sets, and serializes them to CSV and
// JSON artifacts.
package ioc

import (
	"fmt"
	"sort"

	"github.com/caffix/stringset"
)

// Categories lists every IOC collection in serialization order. Writers key
// off this list, so empty categories still appear in outputs.
var Categories = []string{
	"domains",
	"ips",
	"urls",
	"scan_ids",
	"scan_dates",
	"page_titles",
	"server_details",
	"emails",
	"registrars",
	"nameservers",
	"organizations",
}

// Row is one entry of the combined CSV artifact: an indicator value tied to
// the scan that produced it.
type Row struct {
	Type   string
	Value  string
	ScanID string
}

// Set accumulates distinct indicator values per category, plus the combined
// rows with per-scan provenance. Values are deduplicated on insert; rows are
// deduplicated on the full (type, value, scan_id) triple.
type Set struct {
	sets map[string]*stringset.Set
	rows []Row
	seen *stringset.Set
}

// NewSet creates an empty Set with every category present.
func NewSet() *Set {
	s := &Set{
		sets: make(map[string]*stringset.Set, len(Categories)),
		seen: stringset.New(),
	}
	for _, c := range Categories {
		s.sets[c] = stringset.New()
	}
	return s
}

// add records value under category, tagged with the scan it came from.
// Empty values are dropped.
func (s *Set) add(category, value, scanID string) {
	if value == "" || value == "None" {
		return
	}
	s.sets[category].Insert(value)

	key := category + "|" + value + "|" + scanID
	if s.seen.Has(key) {
		return
	}
	s.seen.Insert(key)
	s.rows = append(s.rows, Row{Type: category, Value: value, ScanID: scanID})
}

// Values returns the sorted distinct values of one category. Unknown
// categories yield nil.
func (s *Set) Values(category string) []string {
	set, ok := s.sets[category]
	if !ok {
		return nil
	}
	values := set.Slice()
	sort.Strings(values)
	return values
}

// Rows returns the combined rows in insertion order.
func (s *Set) Rows() []Row {
	return s.rows
}

// Count returns the total number of distinct values across all categories.
func (s *Set) Count() int {
	total := 0
	for _, c := range Categories {
		total += s.sets[c].Len()
	}
	return total
}

// Union merges other into s. This is the only combinator for group-level
// aggregation; per-query provenance of individual values is not preserved
// beyond the scan IDs already carried by the rows.
func (s *Set) Union(other *Set) {
	if other == nil {
		return
	}
	for _, c := range Categories {
		s.sets[c].Union(other.sets[c])
	}
	for _, row := range other.rows {
		key := row.Type + "|" + row.Value + "|" + row.ScanID
		if s.seen.Has(key) {
			continue
		}
		s.seen.Insert(key)
		s.rows = append(s.rows, row)
	}
}

// stringOf renders scalar JSON values for set membership; nil becomes empty
// and is dropped by add.
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

// stringsOf normalizes a value that may be a scalar or a list into strings.
func stringsOf(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := stringOf(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		if s := stringOf(t); s != "" {
			return []string{s}
		}
		return nil
	}
}
