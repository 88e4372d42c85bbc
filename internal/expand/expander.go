// Package expand detects raw address strings that describe more than one
// property ("471 & 481 KING ST E", "9220 - 9226 HWY 93", "10, 20 & 30
// BROADLEAF AVE") and splits them into discrete candidate addresses.
package expand

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/brandonolsen23/cleo-pipeline/internal/models"
)

var (
	ampersandRe = regexp.MustCompile(`(\d+)\s*&\s*(\d+)`)
	rangeDashRe = regexp.MustCompile(`(\d+)\s*-\s*(\d+)`)
	commaRe     = regexp.MustCompile(`(\d+),\s*(\d+)`)

	// Comma-separated list internals.
	numberSepRe     = regexp.MustCompile(`(\d+)\s*(?:,|&)`)
	lastNumberRe    = regexp.MustCompile(`(?:,|&)\s*(\d+)\s+([A-Z])`)
	leadingNumsRe   = regexp.MustCompile(`^[\d\s,&]+`)
	leadingNumberRe = regexp.MustCompile(`^(\d+)`)
	singleStreetRe  = regexp.MustCompile(`^\d+\s+(.+)`)
)

// IsMultiProperty reports whether the raw address contains any multi-property
// number pattern.
func IsMultiProperty(address string) bool {
	if address == "" {
		return false
	}
	return ampersandRe.MatchString(address) ||
		rangeDashRe.MatchString(address) ||
		commaRe.MatchString(address)
}

// Expand splits a raw address into candidate addresses. Detection precedence
// is comma-separated, then range-dash, then ampersand: a comma-separated list
// usually ends in an ampersand-joined number ("10, 20 & 30 X AVE"), so the
// stricter comma pattern has to win to avoid mis-splitting. Input with no
// pattern is returned unchanged as a single candidate; Expand never rejects.
func Expand(addressRaw, city string) models.Expansion {
	if addressRaw == "" {
		return models.Expansion{
			IsMultiProperty: false,
			OriginalAddress: addressRaw,
			PatternType:     models.PatternSingle,
			Addresses:       []models.ExpandedAddress{},
		}
	}

	if m := commaRe.FindAllStringSubmatchIndex(addressRaw, -1); len(m) > 0 {
		return parseCommaSeparated(addressRaw, city)
	}
	if m := rangeDashRe.FindStringSubmatchIndex(addressRaw); m != nil {
		return parseRangeDash(addressRaw, city, m)
	}
	if m := ampersandRe.FindAllStringSubmatchIndex(addressRaw, -1); len(m) > 0 {
		return parseAmpersand(addressRaw, city, m)
	}

	return models.Expansion{
		IsMultiProperty: false,
		OriginalAddress: withCity(addressRaw, city),
		PatternType:     models.PatternSingle,
		Addresses: []models.ExpandedAddress{{
			StreetNumber: leadingNumber(addressRaw),
			Street:       streetAfterNumber(addressRaw),
			FullAddress:  withCity(addressRaw, city),
			Position:     1,
			PatternType:  models.PatternSingle,
		}},
	}
}

// parseAmpersand handles "471 & 481 KING ST E": every number joined by an
// ampersand becomes a candidate, the street name is whatever follows the last
// number pattern.
func parseAmpersand(addressRaw, city string, matches [][]int) models.Expansion {
	var numbers []string
	for _, m := range matches {
		numbers = append(numbers, addressRaw[m[2]:m[3]], addressRaw[m[4]:m[5]])
	}
	numbers = dedupe(numbers)

	last := matches[len(matches)-1]
	street := strings.TrimSpace(addressRaw[last[1]:])

	return multiExpansion(addressRaw, city, models.PatternAmpersand, numbers, street)
}

// parseRangeDash handles "9220 - 9226 HWY 93". A range means "starts here,
// ends there": only the two endpoints become candidates, never the numbers
// between them.
func parseRangeDash(addressRaw, city string, m []int) models.Expansion {
	numbers := []string{addressRaw[m[2]:m[3]], addressRaw[m[4]:m[5]]}
	street := strings.TrimSpace(addressRaw[m[1]:])

	return multiExpansion(addressRaw, city, models.PatternRangeDash, numbers, street)
}

// parseCommaSeparated handles "10, 20 & 30 BROADLEAF AVE": every numeric
// token before the street name becomes a candidate, including the one joined
// by an ampersand immediately before the street.
func parseCommaSeparated(addressRaw, city string) models.Expansion {
	var numbers []string
	for _, m := range numberSepRe.FindAllStringSubmatch(addressRaw, -1) {
		numbers = append(numbers, m[1])
	}

	var street string
	if m := lastNumberRe.FindStringSubmatchIndex(addressRaw); m != nil {
		numbers = append(numbers, addressRaw[m[2]:m[3]])
		// m[4] is the first letter of the street name.
		street = strings.TrimSpace(addressRaw[m[4]:])
	} else {
		street = strings.TrimSpace(leadingNumsRe.ReplaceAllString(addressRaw, ""))
	}

	return multiExpansion(addressRaw, city, models.PatternCommaSeparated, numbers, street)
}

func multiExpansion(addressRaw, city string, pattern models.PatternType, numbers []string, street string) models.Expansion {
	addresses := make([]models.ExpandedAddress, 0, len(numbers))
	for i, num := range numbers {
		addresses = append(addresses, models.ExpandedAddress{
			StreetNumber: num,
			Street:       street,
			FullAddress:  withCity(fmt.Sprintf("%s %s", num, street), city),
			Position:     i + 1,
			PatternType:  pattern,
		})
	}

	return models.Expansion{
		IsMultiProperty: true,
		OriginalAddress: withCity(addressRaw, city),
		PatternType:     pattern,
		Addresses:       addresses,
	}
}

// leadingNumber returns the leading numeric run, or "" when the address does
// not start with a digit. A missing street number only annotates the
// candidate, it never rejects it.
func leadingNumber(address string) string {
	if m := leadingNumberRe.FindString(strings.TrimSpace(address)); m != "" {
		return m
	}
	return ""
}

func streetAfterNumber(address string) string {
	if m := singleStreetRe.FindStringSubmatch(strings.TrimSpace(address)); m != nil {
		return m[1]
	}
	return address
}

func withCity(address, city string) string {
	if city == "" {
		return address
	}
	return address + ", " + city
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
