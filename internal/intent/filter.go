package intent

import (
	"fmt"
	"strconv"
	"strings"
)

// Op is the kind of a filter node
type Op int

const (
	OpAll Op = iota // matches every place
	OpAnd
	OpOr
	OpEq       // exact match; on categories, any tag equal to Value
	OpContains // case-insensitive substring
	OpIn       // any of Values; on categories, tag set intersection
	OpNear     // within RadiusKm of Point
	OpText     // full-text match over name and description
)

func (o Op) String() string {
	switch o {
	case OpAll:
		return "all"
	case OpAnd:
		return "AND"
	case OpOr:
		return "OR"
	case OpEq:
		return "eq"
	case OpContains:
		return "contains"
	case OpIn:
		return "in"
	case OpNear:
		return "near"
	case OpText:
		return "text"
	default:
		return "op(" + strconv.Itoa(int(o)) + ")"
	}
}

// Field names a filterable place attribute
type Field string

const (
	FieldID           Field = "id"
	FieldName         Field = "name"
	FieldCategories   Field = "categories"
	FieldDistrict     Field = "district"
	FieldMunicipality Field = "municipality"
	FieldMicroRegion  Field = "micro_region"
	FieldSource       Field = "source"
	FieldGeometry     Field = "geometry"
)

// Point is a WGS84 coordinate
type Point struct {
	Lon float64
	Lat float64
}

// Filter is a node of an immutable predicate tree. Build it only through the
// constructors below; they copy their inputs so a tree never aliases caller data.
type Filter struct {
	Op       Op
	Field    Field
	Value    string
	Values   []string
	Point    Point
	RadiusKm float64
	Children []Filter
}

// All matches every place
func All() Filter { return Filter{Op: OpAll} }

// Eq matches field equal to value
func Eq(field Field, value string) Filter {
	return Filter{Op: OpEq, Field: field, Value: value}
}

// Contains matches field containing value, ignoring case
func Contains(field Field, value string) Filter {
	return Filter{Op: OpContains, Field: field, Value: value}
}

// In matches field equal to any of values
func In(field Field, values ...string) Filter {
	return Filter{Op: OpIn, Field: field, Values: append([]string(nil), values...)}
}

// Near matches places with a geometry within radiusKm of p
func Near(p Point, radiusKm float64) Filter {
	return Filter{Op: OpNear, Field: FieldGeometry, Point: p, RadiusKm: radiusKm}
}

// Text matches the full-text index against query
func Text(query string) Filter {
	return Filter{Op: OpText, Value: query}
}

// And joins filters with a conjunction. Match-all operands are dropped and
// a single remaining operand is returned as is.
func And(filters ...Filter) Filter {
	return group(OpAnd, filters)
}

// Or joins filters with a disjunction
func Or(filters ...Filter) Filter {
	return group(OpOr, filters)
}

func group(op Op, filters []Filter) Filter {
	children := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if f.IsAll() {
			if op == OpOr {
				return All()
			}
			continue
		}
		children = append(children, f)
	}
	switch len(children) {
	case 0:
		return All()
	case 1:
		return children[0]
	}
	return Filter{Op: op, Children: children}
}

// IsAll reports whether the filter places no restriction
func (f Filter) IsAll() bool { return f.Op == OpAll }

// Describe renders the tree as a short human readable expression
func (f Filter) Describe() string {
	var b strings.Builder
	f.describe(&b)
	return b.String()
}

func (f Filter) String() string { return f.Describe() }

func (f Filter) describe(b *strings.Builder) {
	switch f.Op {
	case OpAll:
		b.WriteString("all places")
	case OpAnd, OpOr:
		b.WriteByte('(')
		for i, c := range f.Children {
			if i > 0 {
				b.WriteString(" " + f.Op.String() + " ")
			}
			c.describe(b)
		}
		b.WriteByte(')')
	case OpEq:
		fmt.Fprintf(b, "%s = %q", f.Field, f.Value)
	case OpContains:
		fmt.Fprintf(b, "%s contains %q", f.Field, f.Value)
	case OpIn:
		fmt.Fprintf(b, "%s in [%s]", f.Field, strings.Join(f.Values, ", "))
	case OpNear:
		fmt.Fprintf(b, "within %s km of (%s, %s)",
			formatFloat(f.RadiusKm), formatFloat(f.Point.Lon), formatFloat(f.Point.Lat))
	case OpText:
		fmt.Fprintf(b, "text matches %q", f.Value)
	default:
		b.WriteString(f.Op.String())
	}
}

// Walk visits f and every descendant depth first
func (f Filter) Walk(fn func(Filter)) {
	fn(f)
	for _, c := range f.Children {
		c.Walk(fn)
	}
}

// NearPoint returns the first radius predicate of the tree, if any
func (f Filter) NearPoint() (Point, bool) {
	var (
		p     Point
		found bool
	)
	f.Walk(func(n Filter) {
		if !found && n.Op == OpNear {
			p, found = n.Point, true
		}
	})
	return p, found
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
