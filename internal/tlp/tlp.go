// Package tlp implements the Traffic Light Protocol sensitivity lattice used
// to gate what appears in generated reports.
package tlp

import "strings"

// Level is a TLP sensitivity level name.
type Level string

// The five recognized levels. Clear and White are synonyms at the lowest rank.
const (
	Clear Level = "clear"
	White Level = "white"
	Green Level = "green"
	Amber Level = "amber"
	Red   Level = "red"
)

// ranks orders the levels ascending by sensitivity. Clear and white share the
// lowest rank.
var ranks = map[Level]int{
	Clear: 1,
	White: 1,
	Green: 2,
	Amber: 3,
	Red:   4,
}

const (
	// itemDefaultRank applies when an item carries no usable level: unlabeled
	// items are treated as clear and show up everywhere.
	itemDefaultRank = 1
	// reportDefaultRank applies when a report carries no usable level: an
	// unlabeled report is treated as red so nothing gets filtered out of it.
	reportDefaultRank = 4
)

// Valid reports whether s names one of the five levels, case-insensitively.
func Valid(s string) bool {
	_, ok := ranks[Level(strings.ToLower(s))]
	return ok
}

// Normalize lowercases s into its canonical Level. The second return is false
// when s is not a recognized level name.
func Normalize(s string) (Level, bool) {
	l := Level(strings.ToLower(s))
	_, ok := ranks[l]
	return l, ok
}

// ItemRank resolves an item's level string to its rank, defaulting missing or
// unrecognized values to clear.
func ItemRank(s string) int {
	if l, ok := Normalize(s); ok {
		return ranks[l]
	}
	return itemDefaultRank
}

// ReportRank resolves a report's level string to its rank, defaulting missing
// or unrecognized values to red.
func ReportRank(s string) int {
	if l, ok := Normalize(s); ok {
		return ranks[l]
	}
	return reportDefaultRank
}

// IsVisible reports whether an item labeled itemLevel may appear in a report
// cleared at reportLevel.
func IsVisible(itemLevel, reportLevel string) bool {
	return ItemRank(itemLevel) <= ReportRank(reportLevel)
}

// DetermineReportLevel resolves the effective report level from the requested
// level, the query default, and the global default, in that order. The first
// valid candidate wins; if none is valid the result is Clear.
func DetermineReportLevel(requested, queryDefault, globalDefault string) Level {
	for _, candidate := range []string{requested, queryDefault, globalDefault} {
		if l, ok := Normalize(candidate); ok {
			return l
		}
	}
	return Clear
}
