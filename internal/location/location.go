// Package location parses "City, ST" strings and holds the curated location
// tables used for batch sweeps and per-state fallbacks.
package location

import (
	"strings"
)

// Tables is the immutable location data a controller is built with.
type Tables struct {
	// Batch is the ordered list swept when the location is a batch sentinel.
	Batch []string
	// Fallback maps a 2-letter region code to its fallback "City, ST".
	Fallback map[string]string
	// Sentinels are the lowercase location values that select batch mode.
	Sentinels []string
}

// Default returns the built-in tables.
func Default() Tables {
	return Tables{
		Batch:     append([]string(nil), latinoHeavyLocations...),
		Fallback:  copyMap(stateFallbackCity),
		Sentinels: append([]string(nil), batchSentinels...),
	}
}

// LatinoHeavy returns a copy of the full latino-heavy sweep list.
func LatinoHeavy() []string {
	return append([]string(nil), latinoHeavyLocations...)
}

// LatinoCore returns a copy of the shorter sweep list.
func LatinoCore() []string {
	return append([]string(nil), latinoCoreLocations...)
}

// WithDefaults fills the fields of t that are unset from Default. An empty
// Batch stays empty so the caller can supply a per-site list.
func (t Tables) WithDefaults() Tables {
	d := Default()
	if t.Fallback == nil {
		t.Fallback = d.Fallback
	}
	if t.Sentinels == nil {
		t.Sentinels = d.Sentinels
	}
	return t
}

// IsBatch reports whether loc selects the batch sweep.
func (t Tables) IsBatch(loc string) bool {
	n := strings.ToLower(strings.TrimSpace(loc))
	for _, s := range t.Sentinels {
		if n == s {
			return true
		}
	}
	return false
}

// FallbackFor returns the fallback city for loc's region code, if any.
func (t Tables) FallbackFor(loc string) (string, bool) {
	region, ok := ParseRegion(loc)
	if !ok {
		return "", false
	}
	city, ok := t.Fallback[region]
	return city, ok
}

// ParseRegion extracts the 2-letter region code from "City, ST[ ZIP]".
// Only the part after the first comma is considered, and its first
// whitespace-delimited token must be exactly two letters.
func ParseRegion(loc string) (string, bool) {
	_, rest, found := strings.Cut(loc, ",")
	if !found {
		return "", false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", false
	}
	tok := strings.ToUpper(fields[0])
	if len(tok) != 2 || !isLetter(tok[0]) || !isLetter(tok[1]) {
		return "", false
	}
	return tok, true
}

// Split returns the trimmed city part and the upper-cased region token of loc.
// The region is empty when loc has no comma.
func Split(loc string) (city, region string) {
	before, rest, found := strings.Cut(loc, ",")
	city = strings.TrimSpace(before)
	if !found {
		return city, ""
	}
	if fields := strings.Fields(rest); len(fields) > 0 {
		region = strings.ToUpper(fields[0])
	}
	return city, region
}

// SameLocation compares two location strings case-insensitively.
func SameLocation(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
