// Package static implements manual gating: the caller supplies the geometry
// explicitly and the strategy evaluates region membership for each declared
// child. It is the workhorse strategy for interactively drawn gates.
package static

import (
	"cytogate/internal/engine"
	"cytogate/pkg/dataset"
	"cytogate/pkg/domain"
	"cytogate/pkg/strategyapi"
)

// Strategy gates on caller-supplied geometry.
type Strategy struct{}

// New constructs the static strategy.
func New() *Strategy { return &Strategy{} }

// Name implements strategyapi.Strategy.
func (*Strategy) Name() string { return "static" }

// Methods implements strategyapi.Strategy.
func (*Strategy) Methods() map[string]strategyapi.MethodSpec {
	return map[string]strategyapi.MethodSpec{
		"threshold": {
			Required: []string{"x", "threshold", "children"},
			Optional: []string{"transform_x"},
		},
		"threshold_2d": {
			Required: []string{"x", "y", "threshold_x", "threshold_y", "children"},
			Optional: []string{"transform_x", "transform_y"},
		},
		"rect": {
			Required: []string{"x", "y", "x_min", "x_max", "y_min", "y_max", "children"},
			Optional: []string{"transform_x", "transform_y"},
		},
		"ellipse": {
			Required: []string{"x", "y", "center_x", "center_y", "width", "height", "angle", "children"},
			Optional: []string{"transform_x", "transform_y"},
		},
		"polygon": {
			Required: []string{"x", "y", "x_values", "y_values", "children"},
			Optional: []string{"transform_x", "transform_y"},
		},
	}
}

// Gate implements strategyapi.Strategy. Each declared child receives the
// method's geometry stamped with the child's own sign or quadrant definition.
func (s *Strategy) Gate(method string, frame *dataset.Frame, params strategyapi.Parameters) (strategyapi.Output, error) {
	base, err := s.baseGeometry(method, params)
	if err != nil {
		return strategyapi.Output{}, err
	}
	children, ok := params.Children()
	if !ok || len(children) == 0 {
		return strategyapi.Output{}, &domain.ValidationError{Op: "static gate", Reason: "no child populations declared"}
	}
	var output strategyapi.Output
	for _, child := range children {
		geometry := base.Clone()
		geometry.Definition = child.Definition
		index, err := engine.EvaluateRegion(geometry, frame)
		if err != nil {
			return strategyapi.Output{}, err
		}
		output.Results = append(output.Results, strategyapi.Result{
			Name:     child.Name,
			Geometry: geometry,
			Index:    index,
		})
	}
	return output, nil
}

func (s *Strategy) baseGeometry(method string, params strategyapi.Parameters) (domain.Geometry, error) {
	x, _ := params.String("x")
	y, _ := params.String("y")
	tx, _ := params.String("transform_x")
	ty, _ := params.String("transform_y")
	g := domain.Geometry{X: x, Y: y, TransformX: tx, TransformY: ty}
	switch method {
	case "threshold":
		g.Kind = domain.KindThreshold
		g.Threshold = floatParam(params, "threshold")
	case "threshold_2d":
		g.Kind = domain.KindThreshold2D
		g.ThresholdX = floatParam(params, "threshold_x")
		g.ThresholdY = floatParam(params, "threshold_y")
	case "rect":
		g.Kind = domain.KindRect
		g.XMin = floatParam(params, "x_min")
		g.XMax = floatParam(params, "x_max")
		g.YMin = floatParam(params, "y_min")
		g.YMax = floatParam(params, "y_max")
	case "ellipse":
		g.Kind = domain.KindEllipse
		cx, _ := params.Float("center_x")
		cy, _ := params.Float("center_y")
		g.Center = []float64{cx, cy}
		g.Width = floatParam(params, "width")
		g.Height = floatParam(params, "height")
		g.Angle = floatParam(params, "angle")
	case "polygon":
		g.Kind = domain.KindPolygon
		var ok bool
		if g.XValues, ok = floatList(params["x_values"]); !ok {
			return domain.Geometry{}, &domain.GeometryError{Kind: domain.KindPolygon, Field: "x_values"}
		}
		if g.YValues, ok = floatList(params["y_values"]); !ok {
			return domain.Geometry{}, &domain.GeometryError{Kind: domain.KindPolygon, Field: "y_values"}
		}
	default:
		return domain.Geometry{}, &domain.ValidationError{Op: "static gate", Reason: "unknown method " + method}
	}
	return g, nil
}

func floatParam(params strategyapi.Parameters, key string) *float64 {
	v, ok := params.Float(key)
	if !ok {
		return nil
	}
	return domain.Float(v)
}

func floatList(v any) ([]float64, bool) {
	switch list := v.(type) {
	case []float64:
		return append([]float64(nil), list...), true
	case []any:
		out := make([]float64, 0, len(list))
		for _, item := range list {
			f, ok := item.(float64)
			if !ok {
				return nil, false
			}
			out = append(out, f)
		}
		return out, true
	}
	return nil, false
}

var _ strategyapi.Strategy = (*Strategy)(nil)
