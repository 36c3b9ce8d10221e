package domain

import "strings"

// GeometryKind discriminates the shape variants a gate can produce.
type GeometryKind string

const (
	// KindThreshold is a one-dimensional threshold split.
	KindThreshold GeometryKind = "threshold"
	// KindThreshold2D is a two-dimensional quadrant split.
	KindThreshold2D GeometryKind = "2d_threshold"
	// KindRect is an axis-aligned rectangle with inclusive bounds.
	KindRect GeometryKind = "rect"
	// KindEllipse is a rotated ellipse.
	KindEllipse GeometryKind = "ellipse"
	// KindPolygon is an arbitrary polygon with vertex order taken as given.
	KindPolygon GeometryKind = "poly"
	// KindSubtract marks a population derived by subtracting sibling indexes
	// from a parent; it carries axes only, no shape.
	KindSubtract GeometryKind = "sub"
	// KindSupervised marks a population derived by a supervised-ML strategy.
	// Its axis pair is not recorded and must be supplied externally when the
	// population is projected onto a control dataset.
	KindSupervised GeometryKind = "sml"
	// KindNone is carried by the root population, which is not gated.
	KindNone GeometryKind = ""
)

// Sign definitions for threshold, rectangle and ellipse membership.
const (
	SignPositive = "+"
	SignNegative = "-"
)

// Geometry describes the region that captured a population. It is a tagged
// variant: Kind selects which fields are meaningful. Optional scalar fields
// are pointers so that an absent value is distinguishable from zero.
type Geometry struct {
	Kind GeometryKind `json:"kind"`

	X string `json:"x,omitempty"`
	Y string `json:"y,omitempty"`

	TransformX string `json:"transform_x,omitempty"`
	TransformY string `json:"transform_y,omitempty"`

	// Definition carries the sign ("+" / "-") for threshold, rect and ellipse
	// geometries and the quadrant ("++", "--", "+-", "-+") for 2D thresholds.
	// Merged populations concatenate definitions with commas ("+,-").
	Definition string `json:"definition,omitempty"`

	Threshold  *float64 `json:"threshold,omitempty"`
	ThresholdX *float64 `json:"threshold_x,omitempty"`
	ThresholdY *float64 `json:"threshold_y,omitempty"`

	XMin *float64 `json:"x_min,omitempty"`
	XMax *float64 `json:"x_max,omitempty"`
	YMin *float64 `json:"y_min,omitempty"`
	YMax *float64 `json:"y_max,omitempty"`

	Center []float64 `json:"center,omitempty"`
	Width  *float64  `json:"width,omitempty"`
	Height *float64  `json:"height,omitempty"`
	Angle  *float64  `json:"angle,omitempty"`

	XValues []float64 `json:"x_values,omitempty"`
	YValues []float64 `json:"y_values,omitempty"`
}

// Definitions splits the Definition field on commas. Merged populations carry
// more than one definition; membership is the union across them.
func (g Geometry) Definitions() []string {
	if g.Definition == "" {
		return nil
	}
	parts := strings.Split(g.Definition, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// Validate checks that every field the Kind requires is present, returning a
// GeometryError naming the first missing field.
func (g Geometry) Validate() error {
	switch g.Kind {
	case KindThreshold:
		if g.X == "" {
			return &GeometryError{Kind: g.Kind, Field: "x"}
		}
		if g.Threshold == nil {
			return &GeometryError{Kind: g.Kind, Field: "threshold"}
		}
		if g.Definition == "" {
			return &GeometryError{Kind: g.Kind, Field: "definition"}
		}
	case KindThreshold2D:
		if g.X == "" {
			return &GeometryError{Kind: g.Kind, Field: "x"}
		}
		if g.Y == "" {
			return &GeometryError{Kind: g.Kind, Field: "y"}
		}
		if g.ThresholdX == nil {
			return &GeometryError{Kind: g.Kind, Field: "threshold_x"}
		}
		if g.ThresholdY == nil {
			return &GeometryError{Kind: g.Kind, Field: "threshold_y"}
		}
		if g.Definition == "" {
			return &GeometryError{Kind: g.Kind, Field: "definition"}
		}
	case KindRect:
		if g.X == "" {
			return &GeometryError{Kind: g.Kind, Field: "x"}
		}
		if g.Y == "" {
			return &GeometryError{Kind: g.Kind, Field: "y"}
		}
		for field, v := range map[string]*float64{"x_min": g.XMin, "x_max": g.XMax, "y_min": g.YMin, "y_max": g.YMax} {
			if v == nil {
				return &GeometryError{Kind: g.Kind, Field: field}
			}
		}
		if g.Definition == "" {
			return &GeometryError{Kind: g.Kind, Field: "definition"}
		}
	case KindEllipse:
		if g.X == "" {
			return &GeometryError{Kind: g.Kind, Field: "x"}
		}
		if g.Y == "" {
			return &GeometryError{Kind: g.Kind, Field: "y"}
		}
		if len(g.Center) != 2 {
			return &GeometryError{Kind: g.Kind, Field: "center"}
		}
		for field, v := range map[string]*float64{"width": g.Width, "height": g.Height, "angle": g.Angle} {
			if v == nil {
				return &GeometryError{Kind: g.Kind, Field: field}
			}
		}
		if g.Definition == "" {
			return &GeometryError{Kind: g.Kind, Field: "definition"}
		}
	case KindPolygon:
		if g.X == "" {
			return &GeometryError{Kind: g.Kind, Field: "x"}
		}
		if g.Y == "" {
			return &GeometryError{Kind: g.Kind, Field: "y"}
		}
		if len(g.XValues) == 0 {
			return &GeometryError{Kind: g.Kind, Field: "x_values"}
		}
		if len(g.YValues) == 0 {
			return &GeometryError{Kind: g.Kind, Field: "y_values"}
		}
		if len(g.XValues) != len(g.YValues) {
			return &GeometryError{Kind: g.Kind, Field: "y_values"}
		}
	case KindSubtract, KindSupervised, KindNone:
		// No shape requirements: sub and sml carry axes for bookkeeping only.
	default:
		return &GeometryError{Kind: g.Kind, Field: "kind"}
	}
	return nil
}

// HasShape reports whether the geometry encloses a planar region (polygon or
// ellipse). Threshold geometries split space instead of enclosing a region.
func (g Geometry) HasShape() bool {
	return g.Kind == KindPolygon || g.Kind == KindEllipse
}

// Clone returns a deep copy of the geometry.
func (g Geometry) Clone() Geometry {
	cp := g
	cp.Threshold = cloneFloat(g.Threshold)
	cp.ThresholdX = cloneFloat(g.ThresholdX)
	cp.ThresholdY = cloneFloat(g.ThresholdY)
	cp.XMin = cloneFloat(g.XMin)
	cp.XMax = cloneFloat(g.XMax)
	cp.YMin = cloneFloat(g.YMin)
	cp.YMax = cloneFloat(g.YMax)
	cp.Width = cloneFloat(g.Width)
	cp.Height = cloneFloat(g.Height)
	cp.Angle = cloneFloat(g.Angle)
	cp.Center = append([]float64(nil), g.Center...)
	cp.XValues = append([]float64(nil), g.XValues...)
	cp.YValues = append([]float64(nil), g.YValues...)
	return cp
}

// Float returns a pointer to v, for building geometries in place.
func Float(v float64) *float64 { return &v }

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}
