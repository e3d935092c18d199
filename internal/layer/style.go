package layer

import "github.com/joeblew999/plat-overlay/internal/catalog"

// FallbackColor is used when a descriptor has no usable color.
const FallbackColor = "#3388ff"

// Kind tags how a renderable is drawn.
type Kind string

const (
	Plain     Kind = "plain"
	Clustered Kind = "clustered"
)

// Style is the uniform paint applied to every feature of a layer.
type Style struct {
	Color       string  `json:"color" doc:"Fill color" example:"#008000"`
	Stroke      string  `json:"stroke" doc:"Stroke color" example:"#000000"`
	Weight      float64 `json:"weight" doc:"Stroke width in pixels" example:"1"`
	FillOpacity float64 `json:"fillOpacity" doc:"Fill opacity (0-1)" example:"0.5"`
	Radius      float64 `json:"radius,omitempty" doc:"Marker radius for points" example:"5"`
}

// PointStyle paints circle markers.
func PointStyle(color string) Style {
	return Style{Color: color, Stroke: "#000000", Weight: 1, FillOpacity: 0.8, Radius: 5}
}

// ShapeStyle paints lines and polygons with the layer color on both stroke and fill.
func ShapeStyle(color string) Style {
	return Style{Color: color, Stroke: color, Weight: 1, FillOpacity: 0.5}
}

// resolveColor returns the normalized descriptor color, or fallback when it
// is empty or not RGB hex.
func resolveColor(c, fallback string) string {
	if c == "" {
		return fallback
	}
	hex, err := catalog.ParseColor(c)
	if err != nil {
		return fallback
	}
	return hex
}
