// Package quantile implements data-driven threshold gating: the threshold is
// placed at a caller-chosen quantile of the parent population's channel
// values rather than at a fixed coordinate.
package quantile

import (
	"sort"

	"cytogate/internal/engine"
	"cytogate/pkg/dataset"
	"cytogate/pkg/domain"
	"cytogate/pkg/strategyapi"
)

// Strategy places thresholds at empirical quantiles.
type Strategy struct{}

// New constructs the quantile strategy.
func New() *Strategy { return &Strategy{} }

// Name implements strategyapi.Strategy.
func (*Strategy) Name() string { return "quantile" }

// Methods implements strategyapi.Strategy.
func (*Strategy) Methods() map[string]strategyapi.MethodSpec {
	return map[string]strategyapi.MethodSpec{
		"threshold": {
			Required: []string{"x", "q", "children"},
			Optional: []string{"transform_x"},
		},
		"threshold_2d": {
			Required: []string{"x", "y", "q_x", "q_y", "children"},
			Optional: []string{"transform_x", "transform_y"},
		},
	}
}

// Gate implements strategyapi.Strategy.
func (s *Strategy) Gate(method string, frame *dataset.Frame, params strategyapi.Parameters) (strategyapi.Output, error) {
	x, _ := params.String("x")
	tx, _ := params.String("transform_x")
	base := domain.Geometry{X: x, TransformX: tx}
	switch method {
	case "threshold":
		q, _ := params.Float("q")
		threshold, err := columnQuantile(frame, x, q)
		if err != nil {
			return strategyapi.Output{}, err
		}
		base.Kind = domain.KindThreshold
		base.Threshold = domain.Float(threshold)
	case "threshold_2d":
		y, _ := params.String("y")
		ty, _ := params.String("transform_y")
		qx, _ := params.Float("q_x")
		qy, _ := params.Float("q_y")
		thresholdX, err := columnQuantile(frame, x, qx)
		if err != nil {
			return strategyapi.Output{}, err
		}
		thresholdY, err := columnQuantile(frame, y, qy)
		if err != nil {
			return strategyapi.Output{}, err
		}
		base.Kind = domain.KindThreshold2D
		base.Y = y
		base.TransformY = ty
		base.ThresholdX = domain.Float(thresholdX)
		base.ThresholdY = domain.Float(thresholdY)
	default:
		return strategyapi.Output{}, &domain.ValidationError{Op: "quantile gate", Reason: "unknown method " + method}
	}

	children, ok := params.Children()
	if !ok || len(children) == 0 {
		return strategyapi.Output{}, &domain.ValidationError{Op: "quantile gate", Reason: "no child populations declared"}
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

// columnQuantile returns the q-th empirical quantile of a channel using
// linear interpolation between order statistics.
func columnQuantile(frame *dataset.Frame, column string, q float64) (float64, error) {
	values, err := frame.Column(column)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, &domain.ValidationError{Op: "quantile gate", Reason: "parent dataset is empty"}
	}
	if q < 0 {
		q = 0
	}
	if q > 1 {
		q = 1
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	if lo == len(sorted)-1 {
		return sorted[lo], nil
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[lo+1]*frac, nil
}

var _ strategyapi.Strategy = (*Strategy)(nil)
