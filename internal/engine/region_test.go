package engine

import (
	"errors"
	"reflect"
	"testing"

	"cytogate/pkg/dataset"
	"cytogate/pkg/domain"
)

func regionFrame(t *testing.T) *dataset.Frame {
	t.Helper()
	frame, err := dataset.NewFrame(
		[]string{"CD4", "CD8"},
		[]int64{1, 2, 3, 4, 5},
		[][]float64{
			{0.0, 0.0},
			{1.0, 4.0},
			{2.0, 2.0},
			{3.0, 1.0},
			{5.0, 5.0},
		},
	)
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	return frame
}

func TestThreshold1D(t *testing.T) {
	frame := regionFrame(t)
	pos := domain.Geometry{Kind: domain.KindThreshold, X: "CD4", Threshold: domain.Float(2), Definition: "+"}
	neg := domain.Geometry{Kind: domain.KindThreshold, X: "CD4", Threshold: domain.Float(2), Definition: "-"}

	posIdx, err := EvaluateRegion(pos, frame)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	// value >= threshold is positive, so the boundary event 3 is included.
	if !reflect.DeepEqual(posIdx, []int64{3, 4, 5}) {
		t.Fatalf("positive index = %v", posIdx)
	}
	negIdx, _ := EvaluateRegion(neg, frame)
	if !reflect.DeepEqual(negIdx, []int64{1, 2}) {
		t.Fatalf("negative index = %v", negIdx)
	}

	// Idempotent: same geometry, same dataset, same index.
	again, _ := EvaluateRegion(pos, frame)
	if !reflect.DeepEqual(posIdx, again) {
		t.Fatal("threshold evaluation must be deterministic")
	}
}

func TestThresholdMergedDefinitionCoversParent(t *testing.T) {
	frame := regionFrame(t)
	both := domain.Geometry{Kind: domain.KindThreshold, X: "CD4", Threshold: domain.Float(2), Definition: "+,-"}
	idx, err := EvaluateRegion(both, frame)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(idx) != frame.NumRows() {
		t.Fatalf("merged definition must cover the parent, got %v", idx)
	}
}

func TestThreshold2DQuadrants(t *testing.T) {
	frame := regionFrame(t)
	g := domain.Geometry{
		Kind: domain.KindThreshold2D, X: "CD4", Y: "CD8",
		ThresholdX: domain.Float(2), ThresholdY: domain.Float(2),
	}

	cases := map[string][]int64{
		"++": {5},
		"--": {1},
		"+-": {4},
		"-+": {2},
	}
	for quadrant, want := range cases {
		q := g.Clone()
		q.Definition = quadrant
		idx, err := EvaluateRegion(q, frame)
		if err != nil {
			t.Fatalf("quadrant %s: %v", quadrant, err)
		}
		// Comparisons are strict, so event 3 at exactly (2,2) lands nowhere.
		if !reflect.DeepEqual(idx, want) {
			t.Fatalf("quadrant %s = %v, want %v", quadrant, idx, want)
		}
	}
}

func TestThreshold2DRounding(t *testing.T) {
	frame, err := dataset.NewFrame([]string{"CD4", "CD8"}, []int64{1, 2}, [][]float64{
		{1.0001, 5}, // rounds to 1.00, not above threshold 1.00
		{1.006, 5},  // rounds to 1.01, above
	})
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	g := domain.Geometry{
		Kind: domain.KindThreshold2D, X: "CD4", Y: "CD8",
		ThresholdX: domain.Float(1.0), ThresholdY: domain.Float(0), Definition: "++",
	}
	idx, err := EvaluateRegion(g, frame)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !reflect.DeepEqual(idx, []int64{2}) {
		t.Fatalf("rounded comparison index = %v, want [2]", idx)
	}
}

func TestThreshold2DQuadrantList(t *testing.T) {
	frame := regionFrame(t)
	g := domain.Geometry{
		Kind: domain.KindThreshold2D, X: "CD4", Y: "CD8",
		ThresholdX: domain.Float(2), ThresholdY: domain.Float(2), Definition: "++,--",
	}
	idx, err := EvaluateRegion(g, frame)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !reflect.DeepEqual(idx, []int64{5, 1}) {
		t.Fatalf("quadrant union = %v", idx)
	}
}

func TestRectInclusiveAndComplement(t *testing.T) {
	frame := regionFrame(t)
	rect := domain.Geometry{
		Kind: domain.KindRect, X: "CD4", Y: "CD8",
		XMin: domain.Float(1), XMax: domain.Float(3), YMin: domain.Float(1), YMax: domain.Float(4),
		Definition: "+",
	}
	idx, err := EvaluateRegion(rect, frame)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	// Bounds are inclusive: events 2 (1,4), 3 (2,2) and 4 (3,1) all qualify.
	if !reflect.DeepEqual(idx, []int64{2, 3, 4}) {
		t.Fatalf("rect index = %v", idx)
	}

	neg := rect.Clone()
	neg.Definition = "-"
	negIdx, _ := EvaluateRegion(neg, frame)
	if !reflect.DeepEqual(negIdx, []int64{1, 5}) {
		t.Fatalf("rect complement = %v", negIdx)
	}
}

func TestEllipseRegion(t *testing.T) {
	frame := regionFrame(t)
	g := domain.Geometry{
		Kind: domain.KindEllipse, X: "CD4", Y: "CD8",
		Center: []float64{2, 2}, Width: domain.Float(4), Height: domain.Float(4), Angle: domain.Float(0),
		Definition: "+",
	}
	idx, err := EvaluateRegion(g, frame)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	// Circle radius 2 around (2,2): events 3 (2,2), 4 (3,1) inside; 2 (1,4) outside.
	if !reflect.DeepEqual(idx, []int64{3, 4}) {
		t.Fatalf("ellipse index = %v", idx)
	}
}

func TestPolygonRegion(t *testing.T) {
	frame := regionFrame(t)
	g := domain.Geometry{
		Kind: domain.KindPolygon, X: "CD4", Y: "CD8",
		XValues: []float64{0, 4, 4, 0}, YValues: []float64{0, 0, 3, 3},
	}
	idx, err := EvaluateRegion(g, frame)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !reflect.DeepEqual(idx, []int64{1, 3, 4}) {
		t.Fatalf("polygon index = %v", idx)
	}
}

func TestEvaluateRejectsInvalidGeometry(t *testing.T) {
	frame := regionFrame(t)
	g := domain.Geometry{Kind: domain.KindThreshold, X: "CD4", Definition: "+"}
	_, err := EvaluateRegion(g, frame)
	var geomErr *domain.GeometryError
	if !errors.As(err, &geomErr) || geomErr.Field != "threshold" {
		t.Fatalf("expected GeometryError naming threshold, got %v", err)
	}

	sub := domain.Geometry{Kind: domain.KindSubtract}
	if _, err := EvaluateRegion(sub, frame); err == nil {
		t.Fatal("subtract geometry must not be evaluable")
	}
}
