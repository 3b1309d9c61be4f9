package model

// QueryKind selects the search strategy requested by the model
type QueryKind string

const (
	KindText          QueryKind = "text_search"
	KindCategory      QueryKind = "category"
	KindGeospatial    QueryKind = "geospatial"
	KindRomantic      QueryKind = "romantic"
	KindOutdoor       QueryKind = "outdoor"
	KindCultural      QueryKind = "cultural"
	KindWellness      QueryKind = "wellness"
	KindSpecificPlace QueryKind = "specific_place"
	KindAll           QueryKind = "all"
)

const (
	DefaultLimit    = 5
	MaxLimit        = 20
	DefaultRadiusKm = 20.0
)

// SearchIntent is the structured search request issued through the search_places tool
type SearchIntent struct {
	Kind      QueryKind `json:"query_type"`
	Text      string    `json:"text,omitempty"`
	Category  string    `json:"category,omitempty"`
	Region    string    `json:"region,omitempty"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	RadiusKm  *float64  `json:"max_distance_km,omitempty"`
	Limit     int       `json:"limit,omitempty"`

	Romantic bool `json:"romantic,omitempty"`
	Outdoor  bool `json:"outdoor,omitempty"`
	Cultural bool `json:"cultural,omitempty"`
	Wellness bool `json:"wellness,omitempty"`
}

// ClampedLimit returns the result limit clamped to [1, MaxLimit].
// An unset limit falls back to DefaultLimit.
func (i SearchIntent) ClampedLimit() int {
	switch {
	case i.Limit <= 0:
		return DefaultLimit
	case i.Limit > MaxLimit:
		return MaxLimit
	default:
		return i.Limit
	}
}
