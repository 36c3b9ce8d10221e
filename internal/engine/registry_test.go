package engine

import (
	"errors"
	"reflect"
	"testing"

	"cytogate/pkg/dataset"
	"cytogate/pkg/domain"
	"cytogate/pkg/strategyapi"
)

type stubStrategy struct{}

func (stubStrategy) Name() string { return "static" }
func (stubStrategy) Methods() map[string]strategyapi.MethodSpec {
	return map[string]strategyapi.MethodSpec{
		"threshold": {Required: []string{"x", "threshold", "children"}},
	}
}
func (stubStrategy) Gate(string, *dataset.Frame, strategyapi.Parameters) (strategyapi.Output, error) {
	return strategyapi.Output{}, nil
}

func newTestRegistry(t *testing.T) *GateRegistry {
	t.Helper()
	strategies := strategyapi.NewRegistry()
	if err := strategies.Register(stubStrategy{}); err != nil {
		t.Fatalf("register strategy: %v", err)
	}
	return NewGateRegistry(strategies)
}

func thresholdGate(name string) domain.Gate {
	return domain.Gate{
		Name:     name,
		Parent:   domain.RootName,
		Strategy: "static",
		Method:   "threshold",
		Parameters: map[string]any{
			"x":         "CD4",
			"threshold": 2.0,
			"children":  []strategyapi.ChildSpec{{Name: name + "_pos", Definition: "+"}},
		},
	}
}

func TestGateCreateMissingParams(t *testing.T) {
	r := newTestRegistry(t)
	gate := thresholdGate("cd4_gate")
	delete(gate.Parameters, "threshold")
	delete(gate.Parameters, "x")

	err := r.Create(gate)
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !reflect.DeepEqual(vErr.Missing, []string{"threshold", "x"}) {
		t.Fatalf("missing = %v, want sorted [threshold x]", vErr.Missing)
	}
	if r.Len() != 0 {
		t.Fatal("failed create must not register the gate")
	}

	// Retryable: resubmitting with the gaps filled succeeds.
	if err := r.Create(thresholdGate("cd4_gate")); err != nil {
		t.Fatalf("retry after filling params: %v", err)
	}
}

func TestGateCreateValidation(t *testing.T) {
	r := newTestRegistry(t)
	var vErr *domain.ValidationError

	g := thresholdGate("g")
	g.Name = ""
	if err := r.Create(g); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for empty name, got %v", err)
	}

	g = thresholdGate("g")
	g.Parent = ""
	if err := r.Create(g); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for empty parent, got %v", err)
	}

	g = thresholdGate("g")
	g.Strategy = "nope"
	if err := r.Create(g); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for unknown strategy, got %v", err)
	}

	g = thresholdGate("g")
	g.Method = "nope"
	if err := r.Create(g); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for unknown method, got %v", err)
	}

	if err := r.Create(thresholdGate("g")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := r.Create(thresholdGate("g")); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for duplicate, got %v", err)
	}
}

func TestGateCreateFillsChildrenFromParams(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.Create(thresholdGate("g")); err != nil {
		t.Fatalf("create: %v", err)
	}
	g, ok := r.Get("g")
	if !ok {
		t.Fatal("gate not registered")
	}
	if !reflect.DeepEqual(g.Children, []string{"g_pos"}) {
		t.Fatalf("children = %v", g.Children)
	}
	if g.Status != domain.GateCreated {
		t.Fatalf("status = %q, want created", g.Status)
	}
}

func TestGateMergeSkipsStrategyLookup(t *testing.T) {
	r := newTestRegistry(t)
	g := domain.Gate{
		Name: "m", Parent: "live", Strategy: domain.StrategyMerge,
		Parameters: map[string]any{"left": "a", "right": "b"},
		Children:   []string{"ab"},
	}
	if err := r.Create(g); err != nil {
		t.Fatalf("merge gate must not require a registered strategy: %v", err)
	}
}

func TestGateLifecycle(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.Create(thresholdGate("g")); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := r.MarkApplied("g", []string{"g_pos"}); err != nil {
		t.Fatalf("mark applied: %v", err)
	}
	g, _ := r.Get("g")
	if g.Status != domain.GateApplied {
		t.Fatalf("status = %q, want applied", g.Status)
	}

	if err := r.MarkEdited("g"); err != nil {
		t.Fatalf("mark edited: %v", err)
	}
	g, _ = r.Get("g")
	if g.Status != domain.GateEdited {
		t.Fatalf("status = %q, want edited", g.Status)
	}

	if err := r.Reset("g"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	g, _ = r.Get("g")
	if g.Status != domain.GateCreated {
		t.Fatalf("status = %q, want created after reset", g.Status)
	}

	if err := r.Remove("g"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if r.Exists("g") {
		t.Fatal("gate still present after remove")
	}
	if err := r.MarkApplied("g", nil); err == nil {
		t.Fatal("expected error for unknown gate")
	}
}

func TestDependentGates(t *testing.T) {
	r := newTestRegistry(t)

	a := thresholdGate("a")
	a.Parent = "live"
	b := thresholdGate("b")
	b.Parent = "a_pos"
	c := thresholdGate("c")
	c.Parent = "elsewhere"
	for _, g := range []domain.Gate{a, b, c} {
		if err := r.Create(g); err != nil {
			t.Fatalf("create %s: %v", g.Name, err)
		}
	}

	hit := map[string]struct{}{"live": {}, "a_pos": {}}
	deps := r.DependentGates(hit)
	if !reflect.DeepEqual(deps, []string{"a", "b"}) {
		t.Fatalf("dependents = %v, want [a b] in creation order", deps)
	}

	if prods := r.GatesProducing("b_pos"); !reflect.DeepEqual(prods, []string{"b"}) {
		t.Fatalf("producers = %v", prods)
	}
	if prods := r.GatesProducing("ghost"); prods != nil {
		t.Fatalf("producers of unknown population = %v", prods)
	}
}
