// Package normalize turns one raw scraped listing into the canonical output
// schema. Every step is best-effort and independent: a field that cannot be
// parsed or resolved is left empty, and any raw value without a canonical
// slot is preserved in the record's other_info bag.
package normalize

import (
	"strconv"
	"strings"

	"github.com/realpulse/bds-harvester/internal/listing"
	"github.com/realpulse/bds-harvester/internal/taxonomy"
	"github.com/realpulse/bds-harvester/internal/textutil"
)

// Pipeline holds the resolver used for every categorical field.
type Pipeline struct {
	resolver *taxonomy.Resolver
}

// New builds a pipeline over the loaded taxonomy.
func New(resolver *taxonomy.Resolver) *Pipeline {
	return &Pipeline{resolver: resolver}
}

// Normalize derives the canonical record for one raw listing. The input is
// not modified; the output is complete and never touched again.
func (p *Pipeline) Normalize(raw listing.RawListing) listing.CanonicalRecord {
	rec := listing.CanonicalRecord{Images: raw.Images}
	consumed := map[string]bool{}

	p.applyArea(raw, &rec, consumed)
	p.applyPrice(raw, &rec, consumed)
	p.applyCounts(raw, &rec, consumed)
	p.applyClassification(raw, &rec)
	p.applyAddress(raw, &rec)
	p.applyCategoricals(raw, &rec, consumed)
	p.applyCoords(raw, &rec)
	p.applyOtherInfo(raw, &rec, consumed)

	return rec
}

// fieldByLabels finds the first spec/config field whose folded label
// contains one of the keywords.
func fieldByLabels(fields listing.Fields, labels []string) (string, string, bool) {
	for _, field := range fields {
		folded := textutil.Fold(field.Label)
		for _, label := range labels {
			if strings.Contains(folded, label) {
				return field.Label, field.Value, true
			}
		}
	}
	return "", "", false
}

func (p *Pipeline) applyArea(raw listing.RawListing, rec *listing.CanonicalRecord, consumed map[string]bool) {
	text := raw.Area
	if text == "" {
		if label, value, ok := fieldByLabels(raw.Specs, areaLabels); ok {
			text, consumed[label] = value, true
		}
	} else if label, _, ok := fieldByLabels(raw.Specs, areaLabels); ok {
		consumed[label] = true
	}
	if area, ok := textutil.ParseArea(text); ok {
		rec.Area = &area
	}
}

func (p *Pipeline) applyPrice(raw listing.RawListing, rec *listing.CanonicalRecord, consumed map[string]bool) {
	text := raw.Price
	if text == "" {
		if label, value, ok := fieldByLabels(raw.Specs, priceLabels); ok {
			text, consumed[label] = value, true
		}
	} else if label, _, ok := fieldByLabels(raw.Specs, priceLabels); ok {
		consumed[label] = true
	}
	if price, unit, ok := textutil.ParsePrice(text); ok {
		rec.Price = &price
		rec.PriceUnit = unit
	}
	if perM2, _, ok := textutil.ParsePrice(raw.PricePerM2); ok {
		rec.PricePerM2 = &perM2
	}
}

// applyCounts extracts bedroom/bathroom/floor counts from the labeled
// spec and config tables. Config values override spec values, never the
// reverse.
func (p *Pipeline) applyCounts(raw listing.RawListing, rec *listing.CanonicalRecord, consumed map[string]bool) {
	counts := []struct {
		labels []string
		dest   **int
	}{
		{bedroomLabels, &rec.Bedrooms},
		{bathroomLabels, &rec.Bathrooms},
		{floorLabels, &rec.Floors},
	}
	for _, c := range counts {
		for _, source := range []listing.Fields{raw.Specs, raw.Config} {
			label, value, ok := fieldByLabels(source, c.labels)
			if !ok {
				continue
			}
			consumed[label] = true
			if n, ok := textutil.ParseCount(value); ok {
				n := n
				*c.dest = &n
			}
		}
	}
}

// applyClassification derives the property category and transaction demand
// from keyword tables over the URL and title, resolved to canonical ids.
func (p *Pipeline) applyClassification(raw listing.RawListing, rec *listing.CanonicalRecord) {
	haystack := textutil.Fold(raw.Href + " " + raw.Title)
	if label, ok := firstMatch(propertyTypeRules, haystack); ok {
		if id, ok := p.resolver.Resolve(dimPropertyType, label); ok {
			rec.RealEstateTypeID = &id
		}
	}
	if label, ok := firstMatch(demandRules, haystack); ok {
		if id, ok := p.resolver.Resolve(dimDemand, label); ok {
			rec.DemandID = &id
		}
	}
}

// applyAddress resolves administrative regions by splitting the free-text
// address and probing from the last, most general segment backward:
// province first, then district scoped by province, then ward scoped by
// both.
func (p *Pipeline) applyAddress(raw listing.RawListing, rec *listing.CanonicalRecord) {
	segments := splitAddress(raw.Location)
	if len(segments) == 0 {
		return
	}

	next := len(segments) - 1
	for i := next; i >= 0; i-- {
		if id, ok := p.resolver.Resolve(dimProvince, segments[i]); ok {
			rec.ProvinceID = &id
			next = i - 1
			break
		}
	}
	if rec.ProvinceID == nil {
		return
	}

	scope := taxonomy.Scope{ProvinceID: rec.ProvinceID}
	for i := next; i >= 0; i-- {
		if id, ok := p.resolver.ResolveScoped(dimDistrict, segments[i], scope); ok {
			rec.DistrictID = &id
			next = i - 1
			break
		}
	}
	if rec.DistrictID == nil {
		return
	}

	scope.DistrictID = rec.DistrictID
	for i := next; i >= 0; i-- {
		if id, ok := p.resolver.ResolveScoped(dimWard, segments[i], scope); ok {
			rec.WardID = &id
			break
		}
	}
}

func splitAddress(location string) []string {
	parts := strings.FieldsFunc(location, func(r rune) bool {
		return r == ',' || r == '-'
	})
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			segments = append(segments, part)
		}
	}
	return segments
}

// applyCategoricals resolves the optional categorical attributes from
// keyword triggers over the legal spec field and the description. Each is
// independent; a miss leaves the collection empty.
func (p *Pipeline) applyCategoricals(raw listing.RawListing, rec *listing.CanonicalRecord, consumed map[string]bool) {
	legalText := ""
	if label, value, ok := fieldByLabels(raw.Specs, legalLabels); ok {
		legalText, consumed[label] = value, true
	}
	description := textutil.Fold(raw.Description)

	rec.LegalDocumentIDs = p.resolveRules(dimLegal, legalRules, textutil.Fold(legalText), description)
	rec.ConditionIDs = p.resolveRules(dimCondition, conditionRules, description)
	rec.LocationTypeIDs = p.resolveRules(dimLocationType, locationTypeRules, description)
	rec.UtilityIDs = p.resolveAllRules(dimUtility, utilityRules, description)
	rec.SecurityIDs = p.resolveRules(dimSecurity, securityRules, description)
	rec.RoadTypeIDs = p.resolveRules(dimRoadType, roadTypeRules, description)
}

// resolveRules returns at most one id: the first rule whose keyword hits
// any of the haystacks, resolved through the taxonomy.
func (p *Pipeline) resolveRules(dimension string, rules []keywordRule, haystacks ...string) []int64 {
	for _, haystack := range haystacks {
		if haystack == "" {
			continue
		}
		if label, ok := firstMatch(rules, haystack); ok {
			if id, ok := p.resolver.Resolve(dimension, label); ok {
				return []int64{id}
			}
		}
	}
	return nil
}

// resolveAllRules collects every matching rule, for multi-valued dimensions
// such as utilities.
func (p *Pipeline) resolveAllRules(dimension string, rules []keywordRule, haystack string) []int64 {
	if haystack == "" {
		return nil
	}
	var ids []int64
	seen := map[int64]struct{}{}
	for _, rule := range rules {
		if !ruleMatches(rule, haystack) {
			continue
		}
		id, ok := p.resolver.Resolve(dimension, rule.label)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

func firstMatch(rules []keywordRule, haystack string) (string, bool) {
	for _, rule := range rules {
		if ruleMatches(rule, haystack) {
			return rule.label, true
		}
	}
	return "", false
}

func ruleMatches(rule keywordRule, haystack string) bool {
	for _, kw := range rule.keywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

func (p *Pipeline) applyCoords(raw listing.RawListing, rec *listing.CanonicalRecord) {
	if lat, lng, ok := textutil.ParseCoords(raw.MapCoords); ok {
		rec.Latitude = &lat
		rec.Longitude = &lng
	}
}

// applyOtherInfo preserves everything that carries no canonical slot,
// including the raw identifiers for traceability. Nothing scraped is
// silently dropped.
func (p *Pipeline) applyOtherInfo(raw listing.RawListing, rec *listing.CanonicalRecord, consumed map[string]bool) {
	info := &rec.OtherInfo
	info.Set("pid", raw.PID)
	info.Set("href", raw.Href)

	put := func(label, value string) {
		if value != "" {
			info.Set(label, value)
		}
	}
	put("title", raw.Title)
	put("location", raw.Location)
	put("description", raw.Description)
	put("thumbnail", raw.Thumbnail)
	put("posted_date", raw.PostedDate)
	put("expired_date", raw.ExpiredDate)
	put("agent_name", raw.AgentName)
	put("agent_phone", raw.AgentPhone)
	put("map_link", raw.MapLink)
	put("map_coords", raw.MapCoords)

	if rec.Area == nil {
		put("area_text", raw.Area)
	}
	if rec.Price == nil {
		put("price_text", raw.Price)
	}
	if rec.PricePerM2 == nil {
		put("price_per_m2_text", raw.PricePerM2)
	}
	if len(raw.Images) > 0 {
		info.Set("image_count", strconv.Itoa(len(raw.Images)))
	}

	for _, field := range raw.Specs {
		if !consumed[field.Label] {
			put(field.Label, field.Value)
		}
	}
	for _, field := range raw.Config {
		if !consumed[field.Label] {
			put(field.Label, field.Value)
		}
	}
}
