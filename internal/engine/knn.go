package engine

import "sort"

// knnClassifier is a brute-force k-nearest-neighbour classifier over 2D
// feature points with boolean labels. Training is storage; prediction scans
// all stored points. Datasets are bounded upstream by the FMO sub-sample
// cap, which keeps the quadratic cost predictable.
type knnClassifier struct {
	k      int
	points [][2]float64
	labels []bool
}

func newKNNClassifier(k int) *knnClassifier {
	return &knnClassifier{k: k}
}

// Fit replaces the training set.
func (c *knnClassifier) Fit(points [][2]float64, labels []bool) {
	c.points = points
	c.labels = labels
}

// Predict returns the majority label among the k nearest training points.
// With fewer than k training points all of them vote. Ties resolve negative.
func (c *knnClassifier) Predict(pt [2]float64) bool {
	type neighbour struct {
		dist  float64
		label bool
	}
	neighbours := make([]neighbour, len(c.points))
	for i, p := range c.points {
		dx, dy := p[0]-pt[0], p[1]-pt[1]
		neighbours[i] = neighbour{dist: dx*dx + dy*dy, label: c.labels[i]}
	}
	sort.Slice(neighbours, func(i, j int) bool { return neighbours[i].dist < neighbours[j].dist })
	k := c.k
	if k > len(neighbours) {
		k = len(neighbours)
	}
	positive := 0
	for _, n := range neighbours[:k] {
		if n.label {
			positive++
		}
	}
	return positive*2 > k
}

// PredictBatch predicts a label per point.
func (c *knnClassifier) PredictBatch(points [][2]float64) []bool {
	out := make([]bool, len(points))
	for i, pt := range points {
		out[i] = c.Predict(pt)
	}
	return out
}
