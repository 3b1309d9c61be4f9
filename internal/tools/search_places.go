package tools

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"randechat/internal/llm"
	"randechat/internal/model"
)

// queryTypes exposed to the model. Themed kinds other than romantic are
// reachable through the boolean flags.
var queryTypes = []any{
	string(model.KindText),
	string(model.KindCategory),
	string(model.KindGeospatial),
	string(model.KindRomantic),
	string(model.KindSpecificPlace),
	string(model.KindAll),
}

// SearchPlacesTool declares the search_places function
func SearchPlacesTool() llm.Tool {
	prop := func(typ, desc string) map[string]any {
		return map[string]any{"type": typ, "description": desc}
	}

	queryType := prop("string", "Typ dotazu. Pro hledání podle kategorie (hrady, lázně, muzea...) použij vždy 'category'.")
	queryType["enum"] = queryTypes

	return llm.Tool{
		Name: string(OpSearchPlaces),
		Description: "Vyhledává místa vhodná na rande v Královéhradeckém kraji. " +
			"Kategorie: hrady, zámky, muzea a galerie, divadla, kina, pivovary, restaurace, lázně, solné jeskyně, " +
			"koupaliště, zoo, zábavní centra, přírodní zajímavosti, botanické zahrady, rozhledny a výhlídky, " +
			"letní sporty, golf, rybaření, církevní, národní kulturní a technické památky, hudební kluby, festivaly.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query_type":      queryType,
				"text":            prop("string", "Text k vyhledání v názvech a popisech míst, nebo název konkrétního místa."),
				"category":        prop("string", "JEDNA kategorie, nikdy seznam: hrady, zámky, muzea, pivovary, lázně, koupaliště, rozhledny... Nepoužívej čárky."),
				"region":          prop("string", "Okres, obec nebo mikroregion pro zúžení výsledků."),
				"latitude":        prop("number", "Zeměpisná šířka pro hledání v okolí (Hradec Králové je asi 50.2)."),
				"longitude":       prop("number", "Zeměpisná délka pro hledání v okolí (Hradec Králové je asi 15.8)."),
				"max_distance_km": prop("number", "Maximální vzdálenost v kilometrech, výchozí 20."),
				"limit":           prop("integer", "Maximální počet výsledků, výchozí 5, nejvýše 20."),
				"romantic":        prop("boolean", "Romantická místa: hrady, zámky, rozhledny, příroda."),
				"outdoor":         prop("boolean", "Venkovní aktivity a příroda."),
				"cultural":        prop("boolean", "Kulturní místa: muzea, galerie, památky."),
				"wellness":        prop("boolean", "Wellness a relaxace: lázně, koupaliště, solné jeskyně."),
			},
			"required": []any{"query_type"},
		},
	}
}

// DecodeSearchArgs converts raw function-call arguments into a SearchIntent.
// It is lenient: numbers may arrive as strings or floats ("5", 5.0) and values
// of the wrong type are ignored, leaving the compiler to fall back.
func DecodeSearchArgs(args map[string]any) model.SearchIntent {
	in := model.SearchIntent{
		Kind:     model.QueryKind(strings.TrimSpace(argString(args, "query_type"))),
		Text:     strings.TrimSpace(argString(args, "text")),
		Category: strings.TrimSpace(argString(args, "category")),
		Region:   strings.TrimSpace(argString(args, "region")),
		Romantic: argBool(args, "romantic"),
		Outdoor:  argBool(args, "outdoor"),
		Cultural: argBool(args, "cultural"),
		Wellness: argBool(args, "wellness"),
	}

	if v, ok := argFloat(args, "latitude"); ok {
		in.Latitude = &v
	}
	if v, ok := argFloat(args, "longitude"); ok {
		in.Longitude = &v
	}
	if v, ok := argFloat(args, "max_distance_km"); ok {
		in.RadiusKm = &v
	}
	if v, ok := argFloat(args, "limit"); ok {
		// bounded before the int conversion so huge values still clamp to MaxLimit
		in.Limit = int(math.Max(math.Min(v, model.MaxLimit+1), -1))
	}
	return in
}

func argString(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	}
	return ""
}

func argFloat(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, !math.IsNaN(v) && !math.IsInf(v, 0)
	case float32:
		f := float64(v)
		return f, !math.IsNaN(f) && !math.IsInf(f, 0)
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	return 0, false
}

func argBool(args map[string]any, key string) bool {
	switch v := args[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	}
	return false
}
