// Package catalog holds the static list of datasets rendered as overlays.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/go-playground/colors.v1"
	"gopkg.in/yaml.v3"
)

// ErrInvalidCatalog is returned for catalogs that fail validation.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Descriptor names one dataset: where to fetch it and how to color it.
type Descriptor struct {
	Name  string `json:"name" yaml:"name" koanf:"name" doc:"Unique layer name" example:"gas_lp"`
	URL   string `json:"url" yaml:"url" koanf:"url" doc:"GeoJSON source URL or path" example:"https://cdn.sassoapps.com/solicitud/gas_lp.geojson"`
	Color string `json:"color,omitempty" yaml:"color,omitempty" koanf:"color" doc:"RGB hex color" example:"#008000"`
}

// Catalog is an ordered list of descriptors. Order is the display order of
// every toggle surface.
type Catalog []Descriptor

// Default returns the built-in energy infrastructure catalog.
func Default() Catalog {
	const base = "https://cdn.sassoapps.com/solicitud/"
	return Catalog{
		{Name: "ductos_glp", URL: base + "ductos_glp.geojson", Color: "#ff0000"},
		{Name: "ductos_importacion", URL: base + "ductos_importacion.geojson", Color: "#ff0000"},
		{Name: "ductos_nosistrangas", URL: base + "ductos_nosistrangas.geojson", Color: "#ff0000"},
		{Name: "ductos_petroliferos", URL: base + "ductos_petroliferos.geojson", Color: "#ff0000"},
		{Name: "ductos_sistrangas", URL: base + "ductos_sistrangas.geojson", Color: "#ff0000"},
		{Name: "electricidad_proyectos", URL: base + "electricidad_proyectos.geojson", Color: "#008000"},
		{Name: "gas_lp", URL: base + "gas_lp.geojson", Color: "#008000"},
		{Name: "gas_natural", URL: base + "gas_natural.geojson", Color: "#008000"},
		{Name: "lineas_transmision", URL: base + "lineas_transmision.geojson", Color: "#ff0000"},
		{Name: "subestacion_electrica", URL: base + "subestacion_electrica.geojson", Color: "#0000ff"},
	}
}

// Validate checks names are present and unique, URLs are set and colors,
// when given, are RGB hex. Colors are normalized to lower case in place.
func (c Catalog) Validate() error {
	seen := make(map[string]struct{}, len(c))
	for i := range c {
		d := &c[i]
		d.Name = strings.TrimSpace(d.Name)
		if d.Name == "" {
			return fmt.Errorf("%w: entry %d has no name", ErrInvalidCatalog, i)
		}
		if _, dup := seen[d.Name]; dup {
			return fmt.Errorf("%w: duplicate layer name %q", ErrInvalidCatalog, d.Name)
		}
		seen[d.Name] = struct{}{}

		if strings.TrimSpace(d.URL) == "" {
			return fmt.Errorf("%w: layer %q has no url", ErrInvalidCatalog, d.Name)
		}
		if d.Color != "" {
			hex, err := ParseColor(d.Color)
			if err != nil {
				return fmt.Errorf("%w: layer %q: %v", ErrInvalidCatalog, d.Name, err)
			}
			d.Color = hex
		}
	}
	return nil
}

// Names returns the layer names in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, len(c))
	for i, d := range c {
		names[i] = d.Name
	}
	return names
}

// ParseColor validates an RGB hex color and returns it lower-cased.
func ParseColor(s string) (string, error) {
	hex, err := colors.ParseHEX(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return "", fmt.Errorf("color %q: %w", s, err)
	}
	return hex.String(), nil
}

// LoadFile reads a YAML catalog of the form `layers: [{name, url, color}]`.
func LoadFile(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	var doc struct {
		Layers Catalog `yaml:"layers"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrInvalidCatalog, path, err)
	}
	if err := doc.Layers.Validate(); err != nil {
		return nil, err
	}
	return doc.Layers, nil
}

// Marshal renders the catalog in the LoadFile format.
func (c Catalog) Marshal() ([]byte, error) {
	return yaml.Marshal(struct {
		Layers []Descriptor `yaml:"layers"`
	}{Layers: c})
}
