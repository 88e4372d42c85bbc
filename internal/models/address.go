package models

// PatternType identifies which multi-property pattern an address matched
// during expansion.
type PatternType string

const (
	// PatternSingle means no multi-property pattern matched.
	PatternSingle PatternType = "single"
	// PatternAmpersand matches addresses like "471 & 481 KING ST E".
	PatternAmpersand PatternType = "ampersand"
	// PatternRangeDash matches addresses like "9220 - 9226 HWY 93".
	PatternRangeDash PatternType = "range_dash"
	// PatternCommaSeparated matches addresses like "10, 20 & 30 BROADLEAF AVE".
	PatternCommaSeparated PatternType = "comma_separated"
)

// RawRecord is a source-provided transaction/address record as it arrives
// from an ingestion collaborator. It is immutable once ingested.
type RawRecord struct {
	Address    string
	City       string
	PostalCode string
	ARN        string
	PIN        string
}

// CanonicalAddress is the normalized, uppercase, punctuation-free
// representation of an address used for display and deduplication hashing.
// All component fields have been cleansed; CanonicalString is the comma-joined
// human-readable form and Hash is the SHA-256 dedup key over the space-joined
// form of the same fields.
type CanonicalAddress struct {
	Line1           string
	City            string
	Province        string
	Country         string
	CanonicalString string
	Hash            string
}

// ExpandedAddress is one candidate address produced from a raw record by the
// multi-property expander. Position is 1-based; position 1 is the primary
// candidate.
type ExpandedAddress struct {
	StreetNumber string
	Street       string
	FullAddress  string
	Position     int
	PatternType  PatternType
}

// Expansion is the full result of running the expander over one raw address.
type Expansion struct {
	IsMultiProperty bool
	OriginalAddress string
	PatternType     PatternType
	Addresses       []ExpandedAddress
}
