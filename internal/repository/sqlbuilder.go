package repository

import (
	"fmt"
	"strconv"
	"strings"

	"randechat/internal/intent"
	"randechat/internal/utils"

	"github.com/lib/pq"
)

// Dialect selects the SQL flavour a filter tree is rendered into
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

func (d Dialect) String() string {
	if d == DialectSQLite {
		return "sqlite"
	}
	return "postgres"
}

const placeColumns = `id, name, categories, district, municipality, micro_region, street,
	longitude, latitude, description, accessibility, website, source, museum_type, museum_focus`

// columns maps filterable scalar fields to their column names
var columns = map[intent.Field]string{
	intent.FieldID:           "id",
	intent.FieldName:         "name",
	intent.FieldDistrict:     "district",
	intent.FieldMunicipality: "municipality",
	intent.FieldMicroRegion:  "micro_region",
	intent.FieldSource:       "source",
}

// sqlBuilder renders a filter tree into a WHERE clause with positional args
type sqlBuilder struct {
	dialect Dialect
	args    []interface{}
}

func newSQLBuilder(d Dialect) *sqlBuilder {
	return &sqlBuilder{dialect: d}
}

// bind appends an argument and returns its placeholder
func (b *sqlBuilder) bind(v interface{}) string {
	b.args = append(b.args, v)
	if b.dialect == DialectPostgres {
		return "$" + strconv.Itoa(len(b.args))
	}
	return "?"
}

// buildSelect renders the full SELECT for a compiled query
func buildSelect(d Dialect, q intent.Query) (string, []interface{}, error) {
	b := newSQLBuilder(d)

	where, err := b.where(q.Filter)
	if err != nil {
		return "", nil, err
	}

	order := "name IS NULL, name, id"
	if p, ok := q.Filter.NearPoint(); ok {
		order = b.distance(p) + ", name, id"
	}

	query := fmt.Sprintf("SELECT %s FROM places WHERE %s ORDER BY %s LIMIT %s",
		placeColumns, where, order, b.bind(q.Limit))
	return query, b.args, nil
}

func (b *sqlBuilder) where(f intent.Filter) (string, error) {
	switch f.Op {
	case intent.OpAll:
		return "1=1", nil

	case intent.OpAnd, intent.OpOr:
		parts := make([]string, 0, len(f.Children))
		for _, c := range f.Children {
			part, err := b.where(c)
			if err != nil {
				return "", err
			}
			parts = append(parts, part)
		}
		return "(" + strings.Join(parts, " "+f.Op.String()+" ") + ")", nil

	case intent.OpEq:
		if f.Field == intent.FieldCategories {
			return b.categoriesAny([]string{f.Value}), nil
		}
		col, err := column(f.Field)
		if err != nil {
			return "", err
		}
		return col + " = " + b.bind(f.Value), nil

	case intent.OpContains:
		col, err := column(f.Field)
		if err != nil {
			return "", err
		}
		if b.dialect == DialectPostgres {
			return col + " ILIKE " + b.bind("%"+utils.EscapeLike(f.Value)+"%"), nil
		}
		return "ci_contains(" + col + ", " + b.bind(f.Value) + ")", nil

	case intent.OpIn:
		if len(f.Values) == 0 {
			return "1=0", nil
		}
		if f.Field == intent.FieldCategories {
			return b.categoriesAny(f.Values), nil
		}
		col, err := column(f.Field)
		if err != nil {
			return "", err
		}
		if b.dialect == DialectPostgres {
			return col + " = ANY(" + b.bind(pq.Array(f.Values)) + ")", nil
		}
		return col + " IN (" + b.bindList(f.Values) + ")", nil

	case intent.OpNear:
		return fmt.Sprintf("(latitude IS NOT NULL AND longitude IS NOT NULL AND %s <= %s)",
			b.distance(f.Point), b.bind(f.RadiusKm)), nil

	case intent.OpText:
		if b.dialect == DialectPostgres {
			return "to_tsvector('simple', coalesce(name, '') || ' ' || coalesce(description, '')) @@ plainto_tsquery('simple', " +
				b.bind(f.Value) + ")", nil
		}
		return "text_match(coalesce(name, '') || ' ' || coalesce(description, ''), " + b.bind(f.Value) + ")", nil
	}

	return "", fmt.Errorf("unsupported filter op %s", f.Op)
}

// categoriesAny matches places carrying at least one of tags
func (b *sqlBuilder) categoriesAny(tags []string) string {
	if b.dialect == DialectPostgres {
		if len(tags) == 1 {
			return "categories ? " + b.bind(tags[0])
		}
		return "categories ?| " + b.bind(pq.Array(tags))
	}
	return "EXISTS (SELECT 1 FROM json_each(places.categories) WHERE json_each.value IN (" + b.bindList(tags) + "))"
}

// distance renders the great-circle distance in km from p to the row's point
func (b *sqlBuilder) distance(p intent.Point) string {
	if b.dialect == DialectSQLite {
		return fmt.Sprintf("geo_distance_km(latitude, longitude, %s, %s)", b.bind(p.Lat), b.bind(p.Lon))
	}
	lat := b.bind(p.Lat) + "::float8"
	lon := b.bind(p.Lon) + "::float8"
	return fmt.Sprintf(
		"(%g * 2 * ASIN(SQRT(POWER(SIN(RADIANS(latitude - %s) / 2), 2) + COS(RADIANS(%s)) * COS(RADIANS(latitude)) * POWER(SIN(RADIANS(longitude - %s) / 2), 2))))",
		earthRadiusKm, lat, lat, lon)
}

func (b *sqlBuilder) bindList(values []string) string {
	ph := make([]string, len(values))
	for i, v := range values {
		ph[i] = b.bind(v)
	}
	return strings.Join(ph, ", ")
}

func column(f intent.Field) (string, error) {
	col, ok := columns[f]
	if !ok {
		return "", fmt.Errorf("field %q is not filterable", f)
	}
	return col, nil
}
