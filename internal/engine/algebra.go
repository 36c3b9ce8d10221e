package engine

import (
	"math"

	"cytogate/internal/geom"
	"cytogate/pkg/domain"
)

// ellipseVertexCount is the boundary resolution used when an ellipse has to
// be re-expressed as a polygon for merging.
const ellipseVertexCount = 64

// MergePopulations combines two sibling populations into one. Threshold
// geometries must agree on axes, transforms, and threshold values; the result
// keeps the threshold shape and concatenates the two sign definitions. Shape
// geometries (polygon, ellipse) must geometrically overlap; the result is the
// planar union of both regions re-expressed as a polygon. The merged index is
// the set union, left's events first. Cluster annotations on either input do
// not carry over; their loss is recorded as a warning on the result.
func MergePopulations(left, right domain.Population, newName string) (domain.Population, error) {
	if left.Parent != right.Parent {
		return domain.Population{}, &domain.ConsistencyError{
			Op: "merge", Left: left.Name, Right: right.Name,
			Reason: "populations have different parents",
		}
	}
	if left.Geometry.Kind != right.Geometry.Kind {
		return domain.Population{}, &domain.ConsistencyError{
			Op: "merge", Left: left.Name, Right: right.Name,
			Reason: "geometry kinds differ",
		}
	}
	if err := sameAxes(left, right); err != nil {
		return domain.Population{}, err
	}

	var geometry domain.Geometry
	switch {
	case left.Geometry.Kind == domain.KindThreshold || left.Geometry.Kind == domain.KindThreshold2D:
		if err := sameThresholds(left, right); err != nil {
			return domain.Population{}, err
		}
		geometry = left.Geometry.Clone()
		geometry.Definition = left.Geometry.Definition + "," + right.Geometry.Definition
	case left.Geometry.HasShape():
		leftShape, err := shapeOf(left.Geometry)
		if err != nil {
			return domain.Population{}, err
		}
		rightShape, err := shapeOf(right.Geometry)
		if err != nil {
			return domain.Population{}, err
		}
		if !leftShape.Intersects(rightShape) {
			return domain.Population{}, &domain.ConsistencyError{
				Op: "merge", Left: left.Name, Right: right.Name,
				Reason: "regions do not overlap",
			}
		}
		union := geom.Union(leftShape, rightShape)
		xs, ys := union.Coordinates()
		geometry = domain.Geometry{
			Kind:       domain.KindPolygon,
			X:          left.Geometry.X,
			Y:          left.Geometry.Y,
			TransformX: left.Geometry.TransformX,
			TransformY: left.Geometry.TransformY,
			XValues:    xs,
			YValues:    ys,
		}
	default:
		return domain.Population{}, &domain.ConsistencyError{
			Op: "merge", Left: left.Name, Right: right.Name,
			Reason: "geometry kind " + string(left.Geometry.Kind) + " cannot be merged",
		}
	}

	merged := domain.Population{
		Name:     newName,
		Parent:   left.Parent,
		Index:    unionIndex(left.Index, right.Index),
		Geometry: geometry,
	}
	if len(left.Clusters) > 0 || len(right.Clusters) > 0 {
		merged.Warnings = append(merged.Warnings, "cluster annotations from merged populations were voided")
	}
	return merged, nil
}

// MergeMany reduces populations pairwise left to right. Without an explicit
// name every input must carry the same population name, which the result
// keeps.
func MergeMany(populations []domain.Population, newName string) (domain.Population, error) {
	if len(populations) < 2 {
		return domain.Population{}, &domain.ValidationError{
			Op: "merge", Name: newName, Reason: "at least two populations are required",
		}
	}
	if newName == "" {
		newName = populations[0].Name
		for _, p := range populations[1:] {
			if p.Name != newName {
				return domain.Population{}, &domain.ValidationError{
					Op: "merge", Reason: "unnamed n-way merge requires all inputs to share one population name",
				}
			}
		}
	}
	acc := populations[0]
	for _, p := range populations[1:] {
		merged, err := MergePopulations(acc, p, newName)
		if err != nil {
			return domain.Population{}, err
		}
		merged.Warnings = append(acc.Warnings, merged.Warnings...)
		acc = merged
	}
	return acc, nil
}

// SubtractPopulations removes the union of the target indexes from the parent
// population's index. The result inherits the parent's axes under a subtract
// marker; no shape is recomputed.
func SubtractPopulations(parent domain.Population, targets []domain.Population, newName string) (domain.Population, error) {
	if len(targets) == 0 {
		return domain.Population{}, &domain.ValidationError{
			Op: "subtract", Name: newName, Reason: "at least one target population is required",
		}
	}
	drop := make(map[int64]struct{})
	for _, t := range targets {
		if t.Parent != parent.Name {
			return domain.Population{}, &domain.ConsistencyError{
				Op: "subtract", Left: parent.Name, Right: t.Name,
				Reason: "target is not a child of the subtraction parent",
			}
		}
		for _, id := range t.Index {
			drop[id] = struct{}{}
		}
	}
	var index []int64
	for _, id := range parent.Index {
		if _, gone := drop[id]; !gone {
			index = append(index, id)
		}
	}
	return domain.Population{
		Name:   newName,
		Parent: parent.Name,
		Index:  index,
		Geometry: domain.Geometry{
			Kind:       domain.KindSubtract,
			X:          parent.Geometry.X,
			Y:          parent.Geometry.Y,
			TransformX: parent.Geometry.TransformX,
			TransformY: parent.Geometry.TransformY,
		},
	}, nil
}

func sameAxes(left, right domain.Population) error {
	lg, rg := left.Geometry, right.Geometry
	if lg.X != rg.X || lg.Y != rg.Y || lg.TransformX != rg.TransformX || lg.TransformY != rg.TransformY {
		return &domain.ConsistencyError{
			Op: "merge", Left: left.Name, Right: right.Name,
			Reason: "axes or transforms differ",
		}
	}
	return nil
}

func sameThresholds(left, right domain.Population) error {
	mismatch := func() error {
		return &domain.ConsistencyError{
			Op: "merge", Left: left.Name, Right: right.Name,
			Reason: "threshold values differ",
		}
	}
	lg, rg := left.Geometry, right.Geometry
	switch lg.Kind {
	case domain.KindThreshold:
		if !floatEq(lg.Threshold, rg.Threshold) {
			return mismatch()
		}
	case domain.KindThreshold2D:
		if !floatEq(lg.ThresholdX, rg.ThresholdX) || !floatEq(lg.ThresholdY, rg.ThresholdY) {
			return mismatch()
		}
	}
	return nil
}

func floatEq(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// shapeOf renders a shape geometry as a polygon: polygon vertices as given,
// ellipse boundary sampled at a fixed resolution.
func shapeOf(g domain.Geometry) (geom.Polygon, error) {
	switch g.Kind {
	case domain.KindPolygon:
		return geom.NewPolygon(g.XValues, g.YValues), nil
	case domain.KindEllipse:
		return ellipsePolygon(g.Center[0], g.Center[1], *g.Width, *g.Height, *g.Angle), nil
	}
	return geom.Polygon{}, &domain.GeometryError{Kind: g.Kind, Field: "kind"}
}

func ellipsePolygon(cx, cy, width, height, angle float64) geom.Polygon {
	rad := angle * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	a, b := width/2, height/2
	vertices := make([]geom.Point, ellipseVertexCount)
	for i := range vertices {
		theta := 2 * math.Pi * float64(i) / ellipseVertexCount
		px, py := a*math.Cos(theta), b*math.Sin(theta)
		vertices[i] = geom.Point{
			X: cx + cos*px - sin*py,
			Y: cy + sin*px + cos*py,
		}
	}
	return geom.Polygon{Vertices: vertices}
}

func unionIndex(left, right []int64) []int64 {
	seen := make(map[int64]struct{}, len(left)+len(right))
	out := make([]int64, 0, len(left)+len(right))
	for _, id := range left {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range right {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
