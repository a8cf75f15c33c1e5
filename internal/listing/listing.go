// Package listing defines the data model shared by the collectors, the
// normalization pipeline and the partition store: the raw item as extracted
// from the page, the canonical record written to disk, and the filter spec
// supplied per crawl invocation.
package listing

// RawListing is one listing as extracted from the site. The card scan fills
// PID and Href; detail extraction fills the rest in place. At least one of
// PID or Href is non-empty, and together they form the dedup key.
type RawListing struct {
	PID         string   `json:"pid"`
	Href        string   `json:"href"`
	Title       string   `json:"title"`
	Price       string   `json:"price"`
	Area        string   `json:"area"`
	PricePerM2  string   `json:"price_per_m2"`
	Location    string   `json:"location"`
	Description string   `json:"description"`
	Thumbnail   string   `json:"thumbnail"`
	PostedDate  string   `json:"posted_date"`
	ExpiredDate string   `json:"expired_date"`
	AgentName   string   `json:"agent_name"`
	AgentPhone  string   `json:"agent_phone"`
	Images      []string `json:"images"`
	Specs       Fields   `json:"specs"`
	Config      Fields   `json:"config"`
	MapCoords   string   `json:"map_coords"`
	MapLink     string   `json:"map_link"`
}

// Key returns the dedup key: PID when present, Href otherwise.
func (r RawListing) Key() string {
	if r.PID != "" {
		return r.PID
	}
	return r.Href
}

// CanonicalRecord is the normalized output schema. It is derived from one
// RawListing by the pipeline and never mutated afterwards. Categorical
// fields hold nil/empty when the resolver could not map them; whatever
// carries no canonical slot lands verbatim in OtherInfo.
type CanonicalRecord struct {
	RealEstateTypeID *int64 `json:"real_estate_type_id,omitempty"`
	DemandID         *int64 `json:"demand_id,omitempty"`

	ProvinceID *int64 `json:"province_id,omitempty"`
	DistrictID *int64 `json:"district_id,omitempty"`
	WardID     *int64 `json:"ward_id,omitempty"`

	Area       *float64 `json:"area,omitempty"`
	Price      *float64 `json:"price,omitempty"`
	PriceUnit  string   `json:"price_unit,omitempty"`
	PricePerM2 *float64 `json:"price_per_m2,omitempty"`

	Bedrooms  *int `json:"bedrooms,omitempty"`
	Bathrooms *int `json:"bathrooms,omitempty"`
	Floors    *int `json:"floors,omitempty"`

	LegalDocumentIDs []int64 `json:"legal_document_ids,omitempty"`
	ConditionIDs     []int64 `json:"condition_ids,omitempty"`
	LocationTypeIDs  []int64 `json:"location_type_ids,omitempty"`
	UtilityIDs       []int64 `json:"utility_ids,omitempty"`
	SecurityIDs      []int64 `json:"security_ids,omitempty"`
	RoadTypeIDs      []int64 `json:"road_type_ids,omitempty"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	Images []string `json:"images,omitempty"`

	OtherInfo Fields `json:"other_info,omitempty"`
}

// Key extracts the dedup key from the traceability fields in OtherInfo.
func (r CanonicalRecord) Key() string {
	if pid, ok := r.OtherInfo.Get("pid"); ok && pid != "" {
		return pid
	}
	if href, ok := r.OtherInfo.Get("href"); ok && href != "" {
		return href
	}
	return ""
}

// Envelope is the current partition schema: an object whose sole field is
// the record sequence. The legacy schema, a bare array, is still read by the
// store but never written.
type Envelope struct {
	Records []CanonicalRecord `json:"records"`
}
