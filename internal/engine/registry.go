package engine

import (
	"cytogate/pkg/domain"
	"cytogate/pkg/strategyapi"
)

// GateRegistry owns the named gate definitions for one engine instance and
// validates them against the available strategies. It references populations
// by name only; the population tree owns the nodes. Application of a gate is
// orchestrated by the Engine, which asks the registry for the definition and
// writes the resulting status transitions back.
type GateRegistry struct {
	strategies *strategyapi.Registry
	gates      map[string]*domain.Gate
	order      []string
}

// NewGateRegistry constructs a registry backed by the given strategy set.
func NewGateRegistry(strategies *strategyapi.Registry) *GateRegistry {
	return &GateRegistry{
		strategies: strategies,
		gates:      make(map[string]*domain.Gate),
	}
}

// Len returns the number of registered gates.
func (r *GateRegistry) Len() int { return len(r.gates) }

// Exists reports whether the named gate is registered.
func (r *GateRegistry) Exists(name string) bool {
	_, ok := r.gates[name]
	return ok
}

// Get returns a copy of the named gate.
func (r *GateRegistry) Get(name string) (domain.Gate, bool) {
	g, ok := r.gates[name]
	if !ok {
		return domain.Gate{}, false
	}
	return g.Clone(), true
}

// Names returns the registered gate names in creation order.
func (r *GateRegistry) Names() []string {
	return append([]string(nil), r.order...)
}

// Create validates and registers a gate in the Created state. A missing
// required strategy parameter is reported through ValidationError.Missing and
// is retryable: resubmit the gate with corrected parameters.
func (r *GateRegistry) Create(gate domain.Gate) error {
	if gate.Name == "" {
		return &domain.ValidationError{Op: "create gate", Reason: "name cannot be empty"}
	}
	if _, exists := r.gates[gate.Name]; exists {
		return &domain.ValidationError{Op: "create gate", Name: gate.Name, Reason: "already exists"}
	}
	if gate.Parent == "" {
		return &domain.ValidationError{Op: "create gate", Name: gate.Name, Reason: "parent population cannot be empty"}
	}
	params := strategyapi.Parameters(gate.Parameters)

	switch gate.Strategy {
	case domain.StrategyMerge, domain.StrategySubtract:
		// Built-in set algebra: inputs are validated at apply time against the
		// live tree, not here.
	case "":
		return &domain.ValidationError{Op: "create gate", Name: gate.Name, Reason: "strategy cannot be empty"}
	default:
		strategy, ok := r.strategies.Lookup(gate.Strategy)
		if !ok {
			return &domain.ValidationError{Op: "create gate", Name: gate.Name, Reason: "unknown strategy " + gate.Strategy}
		}
		spec, ok := strategy.Methods()[gate.Method]
		if !ok {
			return &domain.ValidationError{Op: "create gate", Name: gate.Name, Reason: "strategy " + gate.Strategy + " has no method " + gate.Method}
		}
		if missing := spec.Missing(params); len(missing) > 0 {
			return &domain.ValidationError{Op: "create gate", Name: gate.Name, Reason: "strategy parameters incomplete", Missing: missing}
		}
		if len(gate.Children) == 0 {
			children, ok := params.Children()
			if !ok || len(children) == 0 {
				return &domain.ValidationError{Op: "create gate", Name: gate.Name, Reason: "gate declares no child populations"}
			}
			for _, child := range children {
				gate.Children = append(gate.Children, child.Name)
			}
		}
	}

	stored := gate.Clone()
	stored.Status = domain.GateCreated
	r.gates[gate.Name] = &stored
	r.order = append(r.order, gate.Name)
	return nil
}

// MarkApplied records that the gate's children now exist in the tree.
func (r *GateRegistry) MarkApplied(name string, children []string) error {
	g, ok := r.gates[name]
	if !ok {
		return &domain.ValidationError{Op: "apply gate", Name: name, Reason: "gate does not exist"}
	}
	g.Children = append([]string(nil), children...)
	g.Status = domain.GateApplied
	return nil
}

// MarkEdited records that the gate's geometry was replaced after application.
func (r *GateRegistry) MarkEdited(name string) error {
	g, ok := r.gates[name]
	if !ok {
		return &domain.ValidationError{Op: "edit gate", Name: name, Reason: "gate does not exist"}
	}
	g.Status = domain.GateEdited
	return nil
}

// Reset reverts a gate to the Created state so it can be re-applied after
// its committed children were removed.
func (r *GateRegistry) Reset(name string) error {
	g, ok := r.gates[name]
	if !ok {
		return &domain.ValidationError{Op: "reset gate", Name: name, Reason: "gate does not exist"}
	}
	g.Status = domain.GateCreated
	return nil
}

// Remove deletes the named gate definition.
func (r *GateRegistry) Remove(name string) error {
	if _, ok := r.gates[name]; !ok {
		return &domain.ValidationError{Op: "remove gate", Name: name, Reason: "gate does not exist"}
	}
	delete(r.gates, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// DependentGates returns, in creation order, the gates whose parent
// population or any produced child lies in the given population set. It is
// the gate-side counterpart of a population cascade.
func (r *GateRegistry) DependentGates(populations map[string]struct{}) []string {
	var out []string
	for _, name := range r.order {
		g := r.gates[name]
		if _, hit := populations[g.Parent]; hit {
			out = append(out, name)
			continue
		}
		for _, child := range g.Children {
			if _, hit := populations[child]; hit {
				out = append(out, name)
				break
			}
		}
	}
	return out
}

// GatesProducing returns the gates that declare the named population among
// their children, in creation order.
func (r *GateRegistry) GatesProducing(population string) []string {
	var out []string
	for _, name := range r.order {
		for _, child := range r.gates[name].Children {
			if child == population {
				out = append(out, name)
				break
			}
		}
	}
	return out
}
