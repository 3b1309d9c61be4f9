// Package intent compiles structured search intents issued by the model into
// store-agnostic filter trees.
package intent

import (
	"strings"

	"randechat/internal/catalog"
	"randechat/internal/model"
	"randechat/internal/utils"
)

// FallbackThreshold is the result count under which a category query is widened
const FallbackThreshold = 3

// Branch names the compiler rule that produced a query
type Branch string

const (
	BranchTheme    Branch = "theme"
	BranchText     Branch = "text"
	BranchCategory Branch = "category"
	BranchGeo      Branch = "geospatial"
	BranchSpecific Branch = "specific_place"
	BranchAll      Branch = "all"
	BranchFallback Branch = "fallback"
)

// Query is a compiled, store-agnostic search request
type Query struct {
	Filter Filter
	Limit  int
	Branch Branch
}

// Description is the human readable filter used in tool responses
func (q Query) Description() string {
	return q.Filter.Describe()
}

// Compiler turns SearchIntents into Queries. It is stateless apart from the
// read-only catalog and safe for concurrent use.
type Compiler struct {
	catalog *catalog.Catalog
}

// NewCompiler creates a compiler backed by the given catalog
func NewCompiler(c *catalog.Catalog) *Compiler {
	if c == nil {
		c = catalog.Default()
	}
	return &Compiler{catalog: c}
}

// Compile builds the query for an intent. It never fails: an intent that
// matches no rule compiles to an unrestricted query.
func (c *Compiler) Compile(in model.SearchIntent) Query {
	primary, branch := c.primary(in)
	return Query{
		Filter: And(primary, regionFilter(in.Region)),
		Limit:  in.ClampedLimit(),
		Branch: branch,
	}
}

// NeedsFallback reports whether q returned too few results and should be widened
func NeedsFallback(q Query, count int) bool {
	return q.Branch == BranchCategory && count < FallbackThreshold
}

// Widen builds the fallback query for a category intent: a substring match of
// the raw category on the source field, keeping the region and the limit.
// It returns false when the intent has no category to widen.
func (c *Compiler) Widen(in model.SearchIntent) (Query, bool) {
	raw := strings.TrimSpace(in.Category)
	if raw == "" {
		return Query{}, false
	}
	return Query{
		Filter: And(Contains(FieldSource, raw), regionFilter(in.Region)),
		Limit:  in.ClampedLimit(),
		Branch: BranchFallback,
	}, true
}

func (c *Compiler) primary(in model.SearchIntent) (Filter, Branch) {
	if theme, ok := selectTheme(in); ok {
		return In(FieldCategories, c.catalog.ThemeTags(theme)...), BranchTheme
	}

	switch in.Kind {
	case model.KindText:
		if text := strings.TrimSpace(in.Text); text != "" {
			return Text(text), BranchText
		}
	case model.KindCategory:
		if key := utils.NormalizeKey(in.Category); key != "" {
			if tags, ok := c.catalog.Lookup(key); ok {
				return In(FieldCategories, tags...), BranchCategory
			}
			return Eq(FieldCategories, key), BranchCategory
		}
	case model.KindGeospatial:
		if in.Latitude != nil && in.Longitude != nil {
			radius := model.DefaultRadiusKm
			if in.RadiusKm != nil && *in.RadiusKm > 0 {
				radius = *in.RadiusKm
			}
			return Near(Point{Lon: *in.Longitude, Lat: *in.Latitude}, radius), BranchGeo
		}
	case model.KindSpecificPlace:
		if text := strings.TrimSpace(in.Text); text != "" {
			return Or(Contains(FieldName, text), Eq(FieldID, text)), BranchSpecific
		}
	}

	return All(), BranchAll
}

// selectTheme picks the first set theme flag, then falls back to a themed kind
func selectTheme(in model.SearchIntent) (catalog.Theme, bool) {
	flags := []bool{in.Romantic, in.Outdoor, in.Cultural, in.Wellness}
	for i, set := range flags {
		if set {
			return catalog.Themes[i], true
		}
	}

	switch in.Kind {
	case model.KindRomantic:
		return catalog.ThemeRomantic, true
	case model.KindOutdoor:
		return catalog.ThemeOutdoor, true
	case model.KindCultural:
		return catalog.ThemeCultural, true
	case model.KindWellness:
		return catalog.ThemeWellness, true
	}
	return "", false
}

func regionFilter(region string) Filter {
	region = strings.TrimSpace(region)
	if region == "" {
		return All()
	}
	return Or(
		Contains(FieldDistrict, region),
		Contains(FieldMunicipality, region),
		Contains(FieldMicroRegion, region),
	)
}
