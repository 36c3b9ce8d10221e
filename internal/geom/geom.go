// Package geom is the planar geometry kernel behind region evaluation and
// population merging: point-in-polygon and point-in-ellipse membership tests,
// convex hulls, and polygon overlap checks. All operations are exact in the
// sense that no tolerance is applied beyond IEEE float arithmetic.
package geom

import (
	"math"
	"sort"
)

// Point is a 2D coordinate.
type Point struct {
	X float64
	Y float64
}

// Polygon is an ordered list of vertices. The boundary closes implicitly from
// the last vertex back to the first. Vertex order is taken as given; no
// re-ordering or de-duplication is performed.
type Polygon struct {
	Vertices []Point
}

// NewPolygon builds a polygon from parallel coordinate slices.
func NewPolygon(xs, ys []float64) Polygon {
	n := len(xs)
	if len(ys) < n {
		n = len(ys)
	}
	vertices := make([]Point, n)
	for i := 0; i < n; i++ {
		vertices[i] = Point{X: xs[i], Y: ys[i]}
	}
	return Polygon{Vertices: vertices}
}

// Coordinates returns the vertices as parallel x/y slices.
func (p Polygon) Coordinates() ([]float64, []float64) {
	xs := make([]float64, len(p.Vertices))
	ys := make([]float64, len(p.Vertices))
	for i, v := range p.Vertices {
		xs[i] = v.X
		ys[i] = v.Y
	}
	return xs, ys
}

// Contains reports whether pt lies inside the polygon using the even-odd ray
// casting rule. Points exactly on a boundary edge count as inside.
func (p Polygon) Contains(pt Point) bool {
	n := len(p.Vertices)
	if n < 3 {
		return false
	}
	for i := 0; i < n; i++ {
		if onSegment(p.Vertices[i], p.Vertices[(i+1)%n], pt) {
			return true
		}
	}
	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		vi, vj := p.Vertices[i], p.Vertices[j]
		if (vi.Y > pt.Y) != (vj.Y > pt.Y) {
			xCross := (vj.X-vi.X)*(pt.Y-vi.Y)/(vj.Y-vi.Y) + vi.X
			if pt.X < xCross {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// Intersects reports whether the two polygon regions overlap: any pair of
// edges crosses, or either polygon contains a vertex of the other.
func (p Polygon) Intersects(q Polygon) bool {
	if len(p.Vertices) < 3 || len(q.Vertices) < 3 {
		return false
	}
	np, nq := len(p.Vertices), len(q.Vertices)
	for i := 0; i < np; i++ {
		a1, a2 := p.Vertices[i], p.Vertices[(i+1)%np]
		for j := 0; j < nq; j++ {
			b1, b2 := q.Vertices[j], q.Vertices[(j+1)%nq]
			if segmentsIntersect(a1, a2, b1, b2) {
				return true
			}
		}
	}
	if p.Contains(q.Vertices[0]) || q.Contains(p.Vertices[0]) {
		return true
	}
	return false
}

// Union returns a single polygon covering both input regions, expressed as
// the convex hull of their combined vertices. Callers are expected to have
// verified that the regions overlap; the hull of disjoint regions would
// bridge the gap between them.
func Union(p, q Polygon) Polygon {
	combined := make([]Point, 0, len(p.Vertices)+len(q.Vertices))
	combined = append(combined, p.Vertices...)
	combined = append(combined, q.Vertices...)
	return ConvexHull(combined)
}

// ConvexHull computes the convex hull of the given points using Andrew's
// monotone chain, returned in counter-clockwise order without repeating the
// first vertex.
func ConvexHull(points []Point) Polygon {
	pts := append([]Point(nil), points...)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})
	// Collapse duplicates so collinear handling stays stable.
	uniq := pts[:0]
	for i, pt := range pts {
		if i == 0 || pt != pts[i-1] {
			uniq = append(uniq, pt)
		}
	}
	pts = uniq
	if len(pts) < 3 {
		return Polygon{Vertices: append([]Point(nil), pts...)}
	}
	var lower, upper []Point
	for _, pt := range pts {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], pt) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, pt)
	}
	for i := len(pts) - 1; i >= 0; i-- {
		pt := pts[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], pt) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, pt)
	}
	hull := append(lower[:len(lower)-1], upper[:len(upper)-1]...)
	return Polygon{Vertices: hull}
}

// EllipseContains reports whether pt lies inside or on the rotated ellipse
// described by its center, full width and height, and rotation angle in
// degrees.
func EllipseContains(pt Point, center Point, width, height, angle float64) bool {
	if width <= 0 || height <= 0 {
		return false
	}
	rad := angle * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	dx, dy := pt.X-center.X, pt.Y-center.Y
	// Rotate the point into the ellipse's frame.
	rx := cos*dx + sin*dy
	ry := -sin*dx + cos*dy
	a, b := width/2, height/2
	return (rx*rx)/(a*a)+(ry*ry)/(b*b) <= 1
}

func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

func onSegment(a, b, pt Point) bool {
	if cross(a, b, pt) != 0 {
		return false
	}
	return math.Min(a.X, b.X) <= pt.X && pt.X <= math.Max(a.X, b.X) &&
		math.Min(a.Y, b.Y) <= pt.Y && pt.Y <= math.Max(a.Y, b.Y)
}

func segmentsIntersect(a1, a2, b1, b2 Point) bool {
	d1 := cross(b1, b2, a1)
	d2 := cross(b1, b2, a2)
	d3 := cross(a1, a2, b1)
	d4 := cross(a1, a2, b2)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return (d1 == 0 && onSegment(b1, b2, a1)) ||
		(d2 == 0 && onSegment(b1, b2, a2)) ||
		(d3 == 0 && onSegment(a1, a2, b1)) ||
		(d4 == 0 && onSegment(a1, a2, b2))
}
