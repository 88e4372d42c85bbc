// Package canonical normalizes and hashes address text. The hash is the
// system-wide deduplication key: two records with equal hashes refer to the
// same property. Changing the cleansing rule or the digest algorithm here
// invalidates every stored hash.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/brandonolsen23/cleo-pipeline/internal/models"
)

var (
	punctRe = regexp.MustCompile(`[^A-Z0-9 ]+`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// DefaultCountry is assumed when the source record carries no country.
const DefaultCountry = "CA"

// cleanse uppercases, replaces anything outside [A-Z0-9 ] with a space,
// collapses whitespace runs and trims. It is the single cleansing rule shared
// by the canonical string and the hash input, so two addresses are
// duplicate-equivalent iff their cleansed forms are byte-identical.
func cleanse(s string) string {
	s = strings.ToUpper(s)
	s = punctRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// nonEmpty returns the cleansed forms of the given fields, skipping fields
// that cleanse to nothing. Missing fields never cause a failure.
func nonEmpty(fields ...string) []string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if c := cleanse(f); c != "" {
			parts = append(parts, c)
		}
	}
	return parts
}

// Canonicalize builds the canonical representation of an address. It is a
// pure, total function: empty fields are treated as absent and the result is
// always well formed. An empty country defaults to DefaultCountry.
func Canonicalize(line1, city, province, country string) models.CanonicalAddress {
	if country == "" {
		country = DefaultCountry
	}

	parts := nonEmpty(line1, city, province, country)

	return models.CanonicalAddress{
		Line1:           cleanse(line1),
		City:            cleanse(city),
		Province:        cleanse(province),
		Country:         cleanse(country),
		CanonicalString: strings.Join(parts, ", "),
		Hash:            digest(strings.Join(parts, " ")),
	}
}

// Hash computes the dedup hash over the cleansed, space-joined address
// fields without building the full canonical struct.
func Hash(line1, city, province, country string) string {
	if country == "" {
		country = DefaultCountry
	}
	return digest(strings.Join(nonEmpty(line1, city, province, country), " "))
}

// HashRaw is the minimal ingest-time hash over just the raw address and city,
// used to spot exact re-ingests before the full record is assembled.
func HashRaw(address, city string) string {
	return digest(strings.Join(nonEmpty(address, city), " "))
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
