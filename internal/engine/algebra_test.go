package engine

import (
	"errors"
	"reflect"
	"testing"

	"cytogate/pkg/domain"
)

func thresholdPop(name, parent, sign string, threshold float64, index []int64) domain.Population {
	return domain.Population{
		Name:   name,
		Parent: parent,
		Index:  index,
		Geometry: domain.Geometry{
			Kind: domain.KindThreshold, X: "CD4",
			Threshold: domain.Float(threshold), Definition: sign,
		},
	}
}

func TestMergeThresholdOppositeSigns(t *testing.T) {
	pos := thresholdPop("pos", "live", "+", 2, ids(3, 4, 5))
	neg := thresholdPop("neg", "live", "-", 2, ids(1, 2))

	merged, err := MergePopulations(pos, neg, "combined")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if merged.Geometry.Definition != "+,-" {
		t.Fatalf("definition = %q, want \"+,-\"", merged.Geometry.Definition)
	}
	if !reflect.DeepEqual(merged.Index, ids(3, 4, 5, 1, 2)) {
		t.Fatalf("merged index = %v", merged.Index)
	}
	if merged.Parent != "live" {
		t.Fatalf("merged parent = %q", merged.Parent)
	}
}

func TestMergeUnionCountsDuplicatesOnce(t *testing.T) {
	left := thresholdPop("a", "live", "+", 2, ids(1, 2, 3))
	right := thresholdPop("b", "live", "-", 2, ids(2, 3, 4))
	merged, err := MergePopulations(left, right, "ab")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(merged.Index) != 4 {
		t.Fatalf("|union| = %d, want 4", len(merged.Index))
	}
}

func TestMergeConsistencyChecks(t *testing.T) {
	var consErr *domain.ConsistencyError

	left := thresholdPop("a", "live", "+", 2, ids(1))
	differentParent := thresholdPop("b", "other", "-", 2, ids(2))
	if _, err := MergePopulations(left, differentParent, "x"); !errors.As(err, &consErr) {
		t.Fatalf("expected ConsistencyError for parent mismatch, got %v", err)
	}

	differentThreshold := thresholdPop("b", "live", "-", 3, ids(2))
	if _, err := MergePopulations(left, differentThreshold, "x"); !errors.As(err, &consErr) {
		t.Fatalf("expected ConsistencyError for threshold mismatch, got %v", err)
	}

	differentAxis := thresholdPop("b", "live", "-", 2, ids(2))
	differentAxis.Geometry.X = "CD8"
	if _, err := MergePopulations(left, differentAxis, "x"); !errors.As(err, &consErr) {
		t.Fatalf("expected ConsistencyError for axis mismatch, got %v", err)
	}

	polygon := domain.Population{Name: "b", Parent: "live", Geometry: domain.Geometry{Kind: domain.KindPolygon, X: "CD4"}}
	if _, err := MergePopulations(left, polygon, "x"); !errors.As(err, &consErr) {
		t.Fatalf("expected ConsistencyError for kind mismatch, got %v", err)
	}
}

func polygonPop(name string, xs, ys []float64, index []int64) domain.Population {
	return domain.Population{
		Name:   name,
		Parent: "live",
		Index:  index,
		Geometry: domain.Geometry{
			Kind: domain.KindPolygon, X: "CD4", Y: "CD8",
			XValues: xs, YValues: ys,
		},
	}
}

func TestMergePolygons(t *testing.T) {
	a := polygonPop("a", []float64{0, 4, 4, 0}, []float64{0, 0, 4, 4}, ids(1, 2))
	b := polygonPop("b", []float64{2, 6, 6, 2}, []float64{2, 2, 6, 6}, ids(2, 3))

	merged, err := MergePopulations(a, b, "ab")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if merged.Geometry.Kind != domain.KindPolygon {
		t.Fatalf("kind = %q", merged.Geometry.Kind)
	}
	if len(merged.Geometry.XValues) < 3 {
		t.Fatalf("union polygon degenerate: %v", merged.Geometry.XValues)
	}
	if len(merged.Index) != 3 {
		t.Fatalf("|union| = %d, want 3", len(merged.Index))
	}

	disjoint := polygonPop("c", []float64{10, 12, 12, 10}, []float64{10, 10, 12, 12}, ids(4))
	var consErr *domain.ConsistencyError
	if _, err := MergePopulations(a, disjoint, "x"); !errors.As(err, &consErr) {
		t.Fatalf("expected ConsistencyError for non-overlapping shapes, got %v", err)
	}
}

func TestMergeVoidsClusters(t *testing.T) {
	left := thresholdPop("a", "live", "+", 2, ids(1))
	left.Clusters = []domain.ClusterRef{{ID: "c1", N: 1}}
	right := thresholdPop("b", "live", "-", 2, ids(2))

	merged, err := MergePopulations(left, right, "ab")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(merged.Clusters) != 0 {
		t.Fatal("clusters must not carry over")
	}
	if len(merged.Warnings) == 0 {
		t.Fatal("cluster loss must be recorded as a warning")
	}
}

func TestMergeMany(t *testing.T) {
	a := thresholdPop("same", "live", "+", 2, ids(1))
	b := thresholdPop("same", "live", "-", 2, ids(2))
	c := thresholdPop("same", "live", "+", 2, ids(3))

	merged, err := MergeMany([]domain.Population{a, b, c}, "")
	if err != nil {
		t.Fatalf("merge many: %v", err)
	}
	if merged.Name != "same" {
		t.Fatalf("unnamed n-way merge must keep the shared name, got %q", merged.Name)
	}
	if len(merged.Index) != 3 {
		t.Fatalf("|union| = %d", len(merged.Index))
	}

	b.Name = "different"
	if _, err := MergeMany([]domain.Population{a, b}, ""); err == nil {
		t.Fatal("unnamed merge with differing input names must fail")
	}
	if _, err := MergeMany([]domain.Population{a}, "x"); err == nil {
		t.Fatal("merge of a single population must fail")
	}
}

func TestSubtractPopulations(t *testing.T) {
	parent := domain.Population{
		Name: "live", Parent: domain.RootName, Index: ids(1, 2, 3, 4, 5),
		Geometry: domain.Geometry{Kind: domain.KindRect, X: "FSC-A", Y: "SSC-A"},
	}
	a := domain.Population{Name: "a", Parent: "live", Index: ids(2, 3)}
	b := domain.Population{Name: "b", Parent: "live", Index: ids(3, 4)}

	rest, err := SubtractPopulations(parent, []domain.Population{a, b}, "rest")
	if err != nil {
		t.Fatalf("subtract: %v", err)
	}
	if !reflect.DeepEqual(rest.Index, ids(1, 5)) {
		t.Fatalf("subtracted index = %v", rest.Index)
	}
	if rest.Geometry.Kind != domain.KindSubtract {
		t.Fatalf("kind = %q, want sub", rest.Geometry.Kind)
	}
	if rest.Geometry.X != "FSC-A" || rest.Geometry.Y != "SSC-A" {
		t.Fatal("subtract geometry must inherit the parent axes")
	}

	stranger := domain.Population{Name: "s", Parent: "elsewhere", Index: ids(1)}
	var consErr *domain.ConsistencyError
	if _, err := SubtractPopulations(parent, []domain.Population{stranger}, "x"); !errors.As(err, &consErr) {
		t.Fatalf("expected ConsistencyError for non-child target, got %v", err)
	}
}

// Subtracting a child and merging it back reconstructs the parent index.
func TestSubtractMergeRoundTrip(t *testing.T) {
	parent := domain.Population{Name: "live", Parent: domain.RootName, Index: ids(1, 2, 3, 4, 5)}
	a := domain.Population{Name: "a", Parent: "live", Index: ids(2, 4)}

	rest, err := SubtractPopulations(parent, []domain.Population{a}, "rest")
	if err != nil {
		t.Fatalf("subtract: %v", err)
	}
	recovered := unionIndex(rest.Index, a.Index)
	if len(recovered) != len(parent.Index) {
		t.Fatalf("|rest ∪ a| = %d, want %d", len(recovered), len(parent.Index))
	}
	set := make(map[int64]struct{})
	for _, id := range recovered {
		set[id] = struct{}{}
	}
	for _, id := range parent.Index {
		if _, ok := set[id]; !ok {
			t.Fatalf("event %d lost in round trip", id)
		}
	}
}
