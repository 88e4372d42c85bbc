// Package cities normalizes Ontario municipality names. Amalgamated or
// dissolved municipalities map to their current parent so that city
// comparisons against the reference dataset line up. The table is static and
// loaded once; nothing here depends on runtime lookups.
package cities

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// TableVersion identifies the amalgamation table revision. Bump when entries
// change so cached validation results can be traced to the table that
// produced them.
const TableVersion = "2024-01"

// amalgamations maps pre-amalgamation municipality names to their current
// city. Keys and values are uppercase.
var amalgamations = map[string]string{
	// Toronto (1998 amalgamation)
	"ETOBICOKE":   "TORONTO",
	"SCARBOROUGH": "TORONTO",
	"NORTH YORK":  "TORONTO",
	"EAST YORK":   "TORONTO",
	"YORK":        "TORONTO",

	// Ottawa (2001)
	"NEPEAN":     "OTTAWA",
	"KANATA":     "OTTAWA",
	"GLOUCESTER": "OTTAWA",
	"VANIER":     "OTTAWA",
	"ORLEANS":    "OTTAWA",

	// Hamilton (2001)
	"STONEY CREEK": "HAMILTON",
	"DUNDAS":       "HAMILTON",
	"ANCASTER":     "HAMILTON",
	"FLAMBOROUGH":  "HAMILTON",

	// Sudbury (2001)
	"VALLEY EAST": "GREATER SUDBURY",
	"SUDBURY":     "GREATER SUDBURY",

	// Chatham-Kent (1998)
	"CHATHAM": "CHATHAM-KENT",

	// Kawartha Lakes (2001)
	"LINDSAY": "KAWARTHA LAKES",

	// Quinte West (1998)
	"TRENTON": "QUINTE WEST",
}

// knownCities is the reference list used for closest-match suggestions.
var knownCities = []string{
	"TORONTO", "OTTAWA", "HAMILTON", "MISSISSAUGA", "BRAMPTON", "LONDON",
	"MARKHAM", "VAUGHAN", "KITCHENER", "WINDSOR", "RICHMOND HILL", "OAKVILLE",
	"BURLINGTON", "OSHAWA", "BARRIE", "ST. CATHARINES", "GUELPH", "CAMBRIDGE",
	"WHITBY", "KINGSTON", "AJAX", "THUNDER BAY", "WATERLOO", "BRANTFORD",
	"PICKERING", "NIAGARA FALLS", "NEWMARKET", "PETERBOROUGH", "SARNIA",
	"MIDLAND", "GREATER SUDBURY", "CHATHAM-KENT", "KAWARTHA LAKES",
	"QUINTE WEST", "BELLEVILLE", "CORNWALL", "TIMMINS", "ORILLIA",
}

// Normalize maps a city name to its canonical uppercase form, resolving
// amalgamated municipalities to their current parent. Unknown names are
// returned cleansed but otherwise untouched.
func Normalize(city string) string {
	c := strings.ToUpper(strings.TrimSpace(city))
	c = strings.Join(strings.Fields(c), " ")
	if parent, ok := amalgamations[c]; ok {
		return parent
	}
	return c
}

// Closest returns the known city nearest to the input by edit distance,
// along with that distance. It is a review aid for operators, never an
// automatic correction: a misspelled "TORNOTO" still fails validation, but
// the suggestion makes triage faster.
func Closest(city string) (string, int) {
	c := Normalize(city)
	if c == "" {
		return "", -1
	}

	best := ""
	bestDist := -1
	for _, known := range knownCities {
		d := levenshtein.ComputeDistance(c, known)
		if bestDist == -1 || d < bestDist {
			best = known
			bestDist = d
		}
	}
	return best, bestDist
}
