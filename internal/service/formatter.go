package service

import (
	"path"
	"strings"

	"randechat/internal/model"
	"randechat/internal/utils"
)

// MaxDescriptionRunes is the longest description returned to the model
const MaxDescriptionRunes = 300

// FormatPlace projects a stored place onto the compact result shape
func FormatPlace(p model.Place) model.PlaceResult {
	r := model.PlaceResult{
		Name:          orDefault(p.Name, model.UnknownName),
		ID:            utils.FirstNonEmpty(p.ID, model.NotAvailable),
		Category:      categoryLabel(p),
		District:      orDefault(p.District, model.NotAvailable),
		Municipality:  orDefault(p.Municipality, model.NotAvailable),
		Address:       strings.Trim(deref(p.Street)+", "+deref(p.Municipality), ", "),
		Coordinates:   []float64{},
		Website:       orDefault(p.Website, model.WebsiteNotAvailable),
		Accessibility: orDefault(p.Accessibility, model.AccessibilityMissing),
		MuseumType:    deref(p.MuseumType),
		MuseumFocus:   deref(p.MuseumFocus),
	}

	if p.HasGeometry() {
		r.Coordinates = []float64{*p.Longitude, *p.Latitude}
	}
	if desc := deref(p.Description); desc != "" {
		r.Description = utils.TruncateRunes(desc, MaxDescriptionRunes)
	}
	return r
}

// FormatPlaces projects every place, preserving order
func FormatPlaces(places []model.Place) []model.PlaceResult {
	out := make([]model.PlaceResult, len(places))
	for i := range places {
		out[i] = FormatPlace(places[i])
	}
	return out
}

// categoryLabel is the source file name without its extension, e.g.
// "data_hk_rande/Hrady.geojson" becomes "Hrady". Places without a source
// fall back to their tags.
func categoryLabel(p model.Place) string {
	if src := strings.TrimSpace(deref(p.Source)); src != "" {
		base := path.Base(strings.ReplaceAll(src, `\`, "/"))
		return strings.TrimSuffix(base, ".geojson")
	}
	if len(p.Categories) > 0 {
		return strings.Join(p.Categories, ", ")
	}
	return model.NotAvailable
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orDefault(s *string, def string) string {
	if v := deref(s); strings.TrimSpace(v) != "" {
		return v
	}
	return def
}
