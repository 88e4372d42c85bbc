// Package ingest drives the full resolution pipeline for incoming raw
// records: canonicalize and dedup, expand multi-property addresses, geocode
// each candidate, persist, and enqueue background validation.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/brandonolsen23/cleo-pipeline/internal/canonical"
	"github.com/brandonolsen23/cleo-pipeline/internal/cities"
	"github.com/brandonolsen23/cleo-pipeline/internal/expand"
	"github.com/brandonolsen23/cleo-pipeline/internal/geocode"
	"github.com/brandonolsen23/cleo-pipeline/internal/logger"
	"github.com/brandonolsen23/cleo-pipeline/internal/models"
)

// Resolver geocodes one address string. Satisfied by *geocode.Gateway.
type Resolver interface {
	Resolve(ctx context.Context, address string) (*models.GeocodeResult, error)
	BoostConfidence(ctx context.Context, result *models.GeocodeResult)
}

// PropertyStore is the slice of the property repository the pipeline needs.
type PropertyStore interface {
	GetByHash(ctx context.Context, hash string) (*models.Property, error)
	Insert(ctx context.Context, property *models.Property) (*models.Property, error)
}

// Enqueuer schedules persisted properties for background validation.
type Enqueuer interface {
	EnqueueBatch(ctx context.Context, propertyIDs []uuid.UUID, priority int) (int, error)
}

// Result summarizes what one raw record produced.
type Result struct {
	Properties []models.Property `json:"properties"`
	Duplicates int               `json:"duplicates"`
	Expanded   bool              `json:"expanded"`
}

// Pipeline wires the resolution stages together. Records in a batch are
// processed sequentially so duplicate detection inside one batch stays
// deterministic.
type Pipeline struct {
	props    PropertyStore
	queue    Enqueuer
	resolver Resolver
	province string
	log      *logger.Logger
}

// NewPipeline creates an ingest pipeline.
func NewPipeline(props PropertyStore, queue Enqueuer, resolver Resolver, log *logger.Logger) *Pipeline {
	return &Pipeline{
		props:    props,
		queue:    queue,
		resolver: resolver,
		province: "ON",
		log:      log.WithComponent("ingest"),
	}
}

// IngestRecord runs one raw record through the pipeline. Duplicate candidates
// (by address hash) are coalesced into their existing rows rather than
// re-geocoded.
func (p *Pipeline) IngestRecord(ctx context.Context, record models.RawRecord) (*Result, error) {
	city := cities.Normalize(record.City)
	if city != "" {
		// A near-miss on the known municipality list is almost always a
		// typo; surface the suggestion for triage but never auto-correct.
		if suggestion, dist := cities.Closest(city); dist > 0 && dist <= 2 {
			p.log.Warn("City not in known municipality list", map[string]interface{}{
				"city":       city,
				"suggestion": suggestion,
			})
		}
	}
	expansion := expand.Expand(record.Address, city)

	if len(expansion.Addresses) == 0 {
		return nil, fmt.Errorf("record has no usable address: %q", record.Address)
	}

	result := &Result{Expanded: expansion.IsMultiProperty}

	// Geocode only the candidates that are genuinely new.
	type pending struct {
		candidate models.ExpandedAddress
		hash      string
	}
	var fresh []pending
	geocoded := make(map[string]*models.GeocodeResult)

	for _, candidate := range expansion.Addresses {
		hash := canonical.Hash(candidateLine1(candidate), city, p.province, "")

		existing, err := p.props.GetByHash(ctx, hash)
		if err != nil {
			return nil, fmt.Errorf("failed to check for duplicate: %w", err)
		}
		if existing != nil {
			result.Duplicates++
			result.Properties = append(result.Properties, *existing)
			continue
		}

		geo, err := p.resolveCandidate(ctx, candidate, record)
		if err != nil {
			return nil, err
		}
		geocoded[hash] = geo
		fresh = append(fresh, pending{candidate: candidate, hash: hash})
	}

	// Children of a multi-property record that snapped to one coordinate
	// need a human look.
	results := make([]*models.GeocodeResult, 0, len(geocoded))
	for _, geo := range geocoded {
		if geo != nil {
			results = append(results, geo)
		}
	}
	geocode.FlagDuplicateCoordinates(results)

	var created []uuid.UUID
	for _, pend := range fresh {
		property, err := p.persist(ctx, pend.candidate, pend.hash, city, record, geocoded[pend.hash])
		if err != nil {
			return nil, err
		}
		result.Properties = append(result.Properties, *property)
		created = append(created, property.ID)
	}

	if len(created) > 0 {
		if _, err := p.queue.EnqueueBatch(ctx, created, models.PriorityDefault); err != nil {
			// Validation is recoverable by a later requeue; the ingest
			// itself already succeeded.
			p.log.Error("Failed to enqueue properties for validation", err, map[string]interface{}{
				"count": len(created),
			})
		}
	}

	return result, nil
}

// IngestBatch processes records sequentially and keeps going past individual
// failures. It returns per-record results aligned with the input, with nil
// for failed records. Records that repeat an earlier raw (address, city) pair
// in the same batch reuse that record's result instead of being re-run.
func (p *Pipeline) IngestBatch(ctx context.Context, records []models.RawRecord) ([]*Result, error) {
	results := make([]*Result, len(records))
	seen := make(map[string]int, len(records))

	for i, record := range records {
		rawHash := canonical.HashRaw(record.Address, record.City)
		if first, ok := seen[rawHash]; ok {
			results[i] = results[first]
			continue
		}

		res, err := p.IngestRecord(ctx, record)
		if err != nil {
			p.log.Warn("Record ingest failed", map[string]interface{}{
				"address": record.Address,
				"error":   err.Error(),
			})
			continue
		}
		results[i] = res
		seen[rawHash] = i
	}
	return results, nil
}

func (p *Pipeline) resolveCandidate(ctx context.Context, candidate models.ExpandedAddress, record models.RawRecord) (*models.GeocodeResult, error) {
	if p.resolver == nil {
		return nil, nil
	}

	query := candidate.FullAddress
	if record.PostalCode != "" {
		query = fmt.Sprintf("%s, %s", query, record.PostalCode)
	}

	geo, err := p.resolver.Resolve(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to geocode %q: %w", query, err)
	}
	if geo != nil && geo.NeedsReview {
		p.resolver.BoostConfidence(ctx, geo)
	}
	return geo, nil
}

// candidateLine1 is the street-level address line with no city attached.
// FullAddress carries the city for geocoding queries; the canonical form and
// hash take the city as a separate field.
func candidateLine1(candidate models.ExpandedAddress) string {
	line := strings.TrimSpace(candidate.StreetNumber + " " + candidate.Street)
	if line == "" {
		return candidate.FullAddress
	}
	return line
}

func (p *Pipeline) persist(ctx context.Context, candidate models.ExpandedAddress, hash, city string, record models.RawRecord, geo *models.GeocodeResult) (*models.Property, error) {
	canon := canonical.Canonicalize(candidateLine1(candidate), city, p.province, "")

	property := &models.Property{
		AddressLine1:     canon.Line1,
		Province:         &p.province,
		AddressCanonical: canon.CanonicalString,
		AddressHash:      hash,
	}
	if city != "" {
		property.City = &city
	}
	if record.PostalCode != "" {
		postal := record.PostalCode
		property.PostalCode = &postal
	}

	if geo != nil {
		property.NeedsReview = geo.NeedsReview
		if geo.HasLocation() {
			lat, lng := geo.Location.Lat, geo.Location.Lng
			property.Latitude = &lat
			property.Longitude = &lng
		}
		if property.PostalCode == nil && geo.HasPostalCode() {
			postal := geo.Components.PostalCode
			property.PostalCode = &postal
		}
		if property.City == nil && geo.Components.City != "" {
			geoCity := cities.Normalize(geo.Components.City)
			property.City = &geoCity
		}
	}

	saved, err := p.props.Insert(ctx, property)
	if err != nil {
		return nil, fmt.Errorf("failed to persist property: %w", err)
	}
	return saved, nil
}
