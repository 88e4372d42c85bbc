package nar

import (
	"strings"
)

// streetAbbreviations maps full street-type words to the abbreviated forms
// used by the reference dataset.
var streetAbbreviations = [][2]string{
	{" STREET", " ST"},
	{" ROAD", " RD"},
	{" AVENUE", " AVE"},
	{" BOULEVARD", " BLVD"},
	{" DRIVE", " DR"},
	{" LANE", " LN"},
	{" COURT", " CT"},
	{" CRESCENT", " CRES"},
	{" PLACE", " PL"},
	{" TRAIL", " TRL"},
	{" WAY", " WAY"},
	{" CIRCLE", " CIR"},
	{" PARKWAY", " PKWY"},
	{" HIGHWAY", " HWY"},
}

// NormalizeStreet uppercases a street name and abbreviates street-type words
// to match the reference dataset's conventions. The leading space keeps the
// table's word-boundary anchors working when the name starts with a
// street-type word ("HIGHWAY 93").
func NormalizeStreet(street string) string {
	normalized := " " + strings.ToUpper(strings.TrimSpace(street))
	for _, pair := range streetAbbreviations {
		normalized = strings.ReplaceAll(normalized, pair[0], pair[1])
	}
	return strings.TrimSpace(normalized)
}

// ParseStreetNumber extracts the street number from a full address line.
// It tolerates hyphenated ranges (using the low end), alphanumeric suffixes,
// and leading municipality prefixes.
//
//	"3310 - 3350 STEELES AVE W"   -> "3310"
//	"123A King St"                -> "123A"
//	"Quinte West 178 Front St"    -> "178"
func ParseStreetNumber(address string) string {
	parts := strings.Fields(strings.TrimSpace(address))
	if len(parts) == 0 {
		return ""
	}

	idx := streetNumberIndex(parts)
	if idx < 0 {
		return ""
	}

	number := parts[idx]
	if strings.Contains(number, "-") {
		number = strings.TrimSpace(strings.SplitN(number, "-", 2)[0])
	}
	return number
}

// ParseStreetName extracts the street name that follows the street number,
// skipping the upper bound of a hyphenated range, and normalizes it for
// reference queries.
func ParseStreetName(address string) string {
	parts := strings.Fields(strings.ToUpper(strings.TrimSpace(address)))
	idx := streetNumberIndex(parts)
	if idx < 0 {
		return ""
	}

	start := idx + 1
	// Skip the "- 3350" tail of a range written as separate tokens.
	if start < len(parts) && parts[start] == "-" {
		start += 2
	}
	if start >= len(parts) {
		return ""
	}
	return NormalizeStreet(strings.Join(parts[start:], " "))
}

// streetNumberIndex finds the first token that starts a street number.
func streetNumberIndex(parts []string) int {
	for i, part := range parts {
		if part == "" {
			continue
		}
		if part[0] >= '0' && part[0] <= '9' {
			return i
		}
		if part[0] == '-' && len(part) > 1 {
			return i
		}
	}
	return -1
}

// NormalizeForCache canonicalizes an address line into the cache key form:
// uppercased, dots stripped, and any unit designation dropped.
func NormalizeForCache(address string) string {
	normalized := strings.ToUpper(strings.TrimSpace(address))
	normalized = strings.ReplaceAll(normalized, "  ", " ")
	normalized = strings.ReplaceAll(normalized, ".", "")

	for _, prefix := range []string{"UNIT ", "SUITE ", "APT ", "# "} {
		if idx := strings.Index(normalized, prefix); idx >= 0 {
			normalized = strings.TrimSpace(normalized[:idx])
			break
		}
	}
	return normalized
}

// CleanPostal uppercases a postal code and strips internal spaces.
func CleanPostal(postal string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(postal)), " ", "")
}
