// Package catalog holds the category alias table and the theme tag sets
// used to translate user-facing category words into controlled vocabulary tags.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"randechat/internal/utils"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Theme is a curated grouping of category tags
type Theme string

const (
	ThemeRomantic Theme = "romantic"
	ThemeOutdoor  Theme = "outdoor"
	ThemeCultural Theme = "cultural"
	ThemeWellness Theme = "wellness"
)

// Themes lists every theme in flag priority order
var Themes = []Theme{ThemeRomantic, ThemeOutdoor, ThemeCultural, ThemeWellness}

// Catalog is a read-only alias and theme table. Safe for concurrent use.
type Catalog struct {
	aliases map[string][]string
	themes  map[Theme][]string
}

type catalogFile struct {
	Aliases map[string][]string `yaml:"aliases"`
	Themes  map[Theme][]string  `yaml:"themes"`
}

// Default returns the catalog embedded in the binary
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded catalog is invalid: %v", err))
	}
	return c
}

// Load reads a catalog from a YAML file. An empty path returns the embedded default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	c := &Catalog{
		aliases: make(map[string][]string, len(f.Aliases)),
		themes:  make(map[Theme][]string, len(Themes)),
	}

	for key, tags := range f.Aliases {
		norm := utils.NormalizeKey(key)
		if norm == "" {
			return nil, fmt.Errorf("catalog alias with empty key")
		}
		if len(tags) == 0 {
			return nil, fmt.Errorf("catalog alias %q maps to no tags", key)
		}
		c.aliases[norm] = normalizeTags(tags)
	}

	for _, theme := range Themes {
		tags := f.Themes[theme]
		if len(tags) == 0 {
			return nil, fmt.Errorf("catalog theme %q has no tags", theme)
		}
		c.themes[theme] = normalizeTags(tags)
	}

	return c, nil
}

// Lookup returns the tags mapped to a user-facing category word
func (c *Catalog) Lookup(category string) ([]string, bool) {
	tags, ok := c.aliases[utils.NormalizeKey(category)]
	if !ok {
		return nil, false
	}
	return append([]string(nil), tags...), true
}

// ThemeTags returns the curated tag set of a theme
func (c *Catalog) ThemeTags(theme Theme) []string {
	return append([]string(nil), c.themes[theme]...)
}

// Len returns the number of aliases
func (c *Catalog) Len() int {
	return len(c.aliases)
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		n := utils.NormalizeKey(t)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
