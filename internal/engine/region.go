package engine

import (
	"math"

	"cytogate/internal/geom"
	"cytogate/pkg/dataset"
	"cytogate/pkg/domain"
)

// EvaluateRegion maps a geometry plus a parent dataset to the subset of event
// ids inside the region. It is a pure function: same inputs, same output, no
// mutation of either argument. A geometry missing a required field fails with
// a GeometryError before any index is computed.
func EvaluateRegion(geometry domain.Geometry, frame *dataset.Frame) ([]int64, error) {
	if err := geometry.Validate(); err != nil {
		return nil, err
	}
	switch geometry.Kind {
	case domain.KindThreshold:
		return evaluateThreshold1D(geometry, frame)
	case domain.KindThreshold2D:
		return evaluateThreshold2D(geometry, frame)
	case domain.KindRect:
		return evaluateRect(geometry, frame)
	case domain.KindEllipse:
		return evaluateEllipse(geometry, frame)
	case domain.KindPolygon:
		return evaluatePolygon(geometry, frame)
	}
	return nil, &domain.GeometryError{Kind: geometry.Kind, Field: "kind"}
}

func evaluateThreshold1D(g domain.Geometry, frame *dataset.Frame) ([]int64, error) {
	values, err := frame.Column(g.X)
	if err != nil {
		return nil, err
	}
	ids := frame.EventIDs()
	threshold := *g.Threshold
	var out []int64
	for _, sign := range g.Definitions() {
		switch sign {
		case domain.SignPositive:
			for i, v := range values {
				if v >= threshold {
					out = append(out, ids[i])
				}
			}
		case domain.SignNegative:
			for i, v := range values {
				if v < threshold {
					out = append(out, ids[i])
				}
			}
		default:
			return nil, &domain.GeometryError{Kind: g.Kind, Field: "definition"}
		}
	}
	return dedupe(out), nil
}

// round2 snaps a value to 2 decimal places. Threshold comparisons in two
// dimensions are strict, so both data and thresholds are rounded first to
// keep events from flapping across the boundary on float noise.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func evaluateThreshold2D(g domain.Geometry, frame *dataset.Frame) ([]int64, error) {
	xs, err := frame.Column(g.X)
	if err != nil {
		return nil, err
	}
	ys, err := frame.Column(g.Y)
	if err != nil {
		return nil, err
	}
	ids := frame.EventIDs()
	tx, ty := round2(*g.ThresholdX), round2(*g.ThresholdY)
	var out []int64
	for _, quadrant := range g.Definitions() {
		var xPos, yPos bool
		switch quadrant {
		case "++":
			xPos, yPos = true, true
		case "--":
			xPos, yPos = false, false
		case "+-":
			xPos, yPos = true, false
		case "-+":
			xPos, yPos = false, true
		default:
			return nil, &domain.GeometryError{Kind: g.Kind, Field: "definition"}
		}
		for i := range xs {
			x, y := round2(xs[i]), round2(ys[i])
			xOK := x > tx
			if !xPos {
				xOK = x < tx
			}
			yOK := y > ty
			if !yPos {
				yOK = y < ty
			}
			if xOK && yOK {
				out = append(out, ids[i])
			}
		}
	}
	return dedupe(out), nil
}

func evaluateRect(g domain.Geometry, frame *dataset.Frame) ([]int64, error) {
	xs, err := frame.Column(g.X)
	if err != nil {
		return nil, err
	}
	ys, err := frame.Column(g.Y)
	if err != nil {
		return nil, err
	}
	ids := frame.EventIDs()
	xMin, xMax, yMin, yMax := *g.XMin, *g.XMax, *g.YMin, *g.YMax
	inside := make([]bool, len(xs))
	for i := range xs {
		inside[i] = xs[i] >= xMin && xs[i] <= xMax && ys[i] >= yMin && ys[i] <= yMax
	}
	return signedSelect(g, ids, inside)
}

func evaluateEllipse(g domain.Geometry, frame *dataset.Frame) ([]int64, error) {
	xs, err := frame.Column(g.X)
	if err != nil {
		return nil, err
	}
	ys, err := frame.Column(g.Y)
	if err != nil {
		return nil, err
	}
	ids := frame.EventIDs()
	center := geom.Point{X: g.Center[0], Y: g.Center[1]}
	inside := make([]bool, len(xs))
	for i := range xs {
		inside[i] = geom.EllipseContains(geom.Point{X: xs[i], Y: ys[i]}, center, *g.Width, *g.Height, *g.Angle)
	}
	return signedSelect(g, ids, inside)
}

func evaluatePolygon(g domain.Geometry, frame *dataset.Frame) ([]int64, error) {
	xs, err := frame.Column(g.X)
	if err != nil {
		return nil, err
	}
	ys, err := frame.Column(g.Y)
	if err != nil {
		return nil, err
	}
	ids := frame.EventIDs()
	poly := geom.NewPolygon(g.XValues, g.YValues)
	var out []int64
	for i := range xs {
		if poly.Contains(geom.Point{X: xs[i], Y: ys[i]}) {
			out = append(out, ids[i])
		}
	}
	return out, nil
}

// signedSelect keeps the inside rows for a "+" definition and the exact
// complement within the parent for "-".
func signedSelect(g domain.Geometry, ids []int64, inside []bool) ([]int64, error) {
	negate := false
	switch g.Definition {
	case domain.SignPositive, "":
	case domain.SignNegative:
		negate = true
	default:
		return nil, &domain.GeometryError{Kind: g.Kind, Field: "definition"}
	}
	var out []int64
	for i, in := range inside {
		if in != negate {
			out = append(out, ids[i])
		}
	}
	return out, nil
}

// dedupe removes repeated ids while preserving first-seen order. Quadrant and
// sign lists may overlap only degenerately, but the index must stay a set.
func dedupe(ids []int64) []int64 {
	if len(ids) < 2 {
		return ids
	}
	seen := make(map[int64]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
