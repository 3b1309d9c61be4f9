package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Place represents a point of interest from the places table
type Place struct {
	ID            string    `json:"id" db:"id"`
	Name          *string   `json:"name,omitempty" db:"name"`
	Categories    JSONArray `json:"categories" db:"categories"`
	District      *string   `json:"district,omitempty" db:"district"`
	Municipality  *string   `json:"municipality,omitempty" db:"municipality"`
	MicroRegion   *string   `json:"micro_region,omitempty" db:"micro_region"`
	Street        *string   `json:"street,omitempty" db:"street"`
	Longitude     *float64  `json:"longitude,omitempty" db:"longitude"`
	Latitude      *float64  `json:"latitude,omitempty" db:"latitude"`
	Description   *string   `json:"description,omitempty" db:"description"`
	Accessibility *string   `json:"accessibility,omitempty" db:"accessibility"`
	Website       *string   `json:"website,omitempty" db:"website"`
	Source        *string   `json:"source,omitempty" db:"source"` // category file the place was imported from, e.g. data_hk_rande/Hrady.geojson
	MuseumType    *string   `json:"museum_type,omitempty" db:"museum_type"`
	MuseumFocus   *string   `json:"museum_focus,omitempty" db:"museum_focus"`
}

// HasGeometry reports whether the place carries a point geometry
func (p *Place) HasGeometry() bool {
	return p.Longitude != nil && p.Latitude != nil
}

// JSONArray represents a JSON array field
type JSONArray []string

// Value implements driver.Valuer interface
func (j JSONArray) Value() (driver.Value, error) {
	if j == nil {
		return "[]", nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner interface
func (j *JSONArray) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return fmt.Errorf("unsupported JSONArray source type %T", value)
	}
}
