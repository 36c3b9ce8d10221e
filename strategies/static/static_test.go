package static

import (
	"errors"
	"reflect"
	"testing"

	"cytogate/pkg/dataset"
	"cytogate/pkg/domain"
	"cytogate/pkg/strategyapi"
)

func testFrame(t *testing.T) *dataset.Frame {
	t.Helper()
	frame, err := dataset.NewFrame(
		[]string{"CD4", "CD8"},
		[]int64{1, 2, 3, 4, 5},
		[][]float64{{0, 0}, {1, 4}, {2, 2}, {3, 1}, {5, 5}},
	)
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	return frame
}

func children(specs ...strategyapi.ChildSpec) []strategyapi.ChildSpec { return specs }

func TestThresholdMethod(t *testing.T) {
	s := New()
	out, err := s.Gate("threshold", testFrame(t), strategyapi.Parameters{
		"x":         "CD4",
		"threshold": 2.0,
		"children": children(
			strategyapi.ChildSpec{Name: "pos", Definition: "+"},
			strategyapi.ChildSpec{Name: "neg", Definition: "-"},
		),
	})
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	if len(out.Results) != 2 {
		t.Fatalf("results = %d", len(out.Results))
	}
	pos := out.Results[0]
	if pos.Name != "pos" || !reflect.DeepEqual(pos.Index, []int64{3, 4, 5}) {
		t.Fatalf("pos = %+v", pos)
	}
	if pos.Geometry.Kind != domain.KindThreshold || *pos.Geometry.Threshold != 2 {
		t.Fatalf("pos geometry = %+v", pos.Geometry)
	}
	neg := out.Results[1]
	if !reflect.DeepEqual(neg.Index, []int64{1, 2}) {
		t.Fatalf("neg index = %v", neg.Index)
	}
	if neg.Geometry.Definition != "-" {
		t.Fatalf("neg definition = %q", neg.Geometry.Definition)
	}
}

func TestEllipseMethod(t *testing.T) {
	s := New()
	out, err := s.Gate("ellipse", testFrame(t), strategyapi.Parameters{
		"x": "CD4", "y": "CD8",
		"center_x": 2.0, "center_y": 2.0,
		"width": 4.0, "height": 4.0, "angle": 0.0,
		"children": children(strategyapi.ChildSpec{Name: "in", Definition: "+"}),
	})
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	if !reflect.DeepEqual(out.Results[0].Index, []int64{3, 4}) {
		t.Fatalf("index = %v", out.Results[0].Index)
	}
}

func TestPolygonMethodAcceptsDecodedValues(t *testing.T) {
	s := New()
	// JSON round trips deliver vertex lists as []any of float64.
	out, err := s.Gate("polygon", testFrame(t), strategyapi.Parameters{
		"x": "CD4", "y": "CD8",
		"x_values": []any{0.0, 4.0, 4.0, 0.0},
		"y_values": []any{0.0, 0.0, 3.0, 3.0},
		"children": children(strategyapi.ChildSpec{Name: "in"}),
	})
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	if !reflect.DeepEqual(out.Results[0].Index, []int64{1, 3, 4}) {
		t.Fatalf("index = %v", out.Results[0].Index)
	}

	_, err = s.Gate("polygon", testFrame(t), strategyapi.Parameters{
		"x": "CD4", "y": "CD8",
		"x_values": "not a list",
		"y_values": []float64{0, 0, 3},
		"children": children(strategyapi.ChildSpec{Name: "in"}),
	})
	var geomErr *domain.GeometryError
	if !errors.As(err, &geomErr) || geomErr.Field != "x_values" {
		t.Fatalf("expected GeometryError naming x_values, got %v", err)
	}
}

func TestGateValidation(t *testing.T) {
	s := New()
	var vErr *domain.ValidationError
	if _, err := s.Gate("spline", testFrame(t), strategyapi.Parameters{}); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for unknown method, got %v", err)
	}
	_, err := s.Gate("threshold", testFrame(t), strategyapi.Parameters{"x": "CD4", "threshold": 2.0})
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError without children, got %v", err)
	}
}
